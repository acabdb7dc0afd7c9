package cmd

import (
	"encoding/base64"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/suyan/tianji-cli/internal/api"
	"github.com/suyan/tianji-cli/internal/ui"
)

var (
	profileUsername   string
	profileEmail      string
	profileAvatarFile string
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Update your profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireLogin(); err != nil {
			return err
		}
		if profileUsername == "" && profileEmail == "" && profileAvatarFile == "" {
			return fmt.Errorf("nothing to update, pass --username, --email or --avatar-file")
		}
		client, _, err := newClient()
		if err != nil {
			return err
		}

		req := api.UpdateProfileRequest{
			Username: profileUsername,
			Email:    profileEmail,
		}
		if profileAvatarFile != "" {
			data, err := os.ReadFile(profileAvatarFile)
			if err != nil {
				return fmt.Errorf("failed to read avatar file: %w", err)
			}
			req.AvatarURL = base64.StdEncoding.EncodeToString(data)
		}

		sp := ui.NewSpinner("Updating profile...")
		sp.Start()
		profile, err := client.UpdateMe(cmd.Context(), req)
		sp.Stop()
		if err != nil {
			return handleAuthErr(err)
		}

		fmt.Println("Profile updated.")
		fmt.Printf("Username: %s\n", profile.Username)
		if profile.Email != "" {
			fmt.Printf("Email:    %s\n", profile.Email)
		}
		return nil
	},
}

func init() {
	profileCmd.Flags().StringVar(&profileUsername, "username", "", "New display name")
	profileCmd.Flags().StringVar(&profileEmail, "email", "", "New email address")
	profileCmd.Flags().StringVar(&profileAvatarFile, "avatar-file", "", "Image file to set as avatar")
}
