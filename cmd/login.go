package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/suyan/tianji-cli/internal/api"
	"github.com/suyan/tianji-cli/internal/auth"
	"github.com/suyan/tianji-cli/internal/ui"
	"golang.org/x/term"
)

func promptLine(label string) (string, error) {
	fmt.Fprintf(os.Stderr, "%s: ", label)
	scanner := bufio.NewScanner(os.Stdin)
	if !scanner.Scan() {
		return "", scanner.Err()
	}
	return strings.TrimSpace(scanner.Text()), nil
}

func promptPassword(label string) (string, error) {
	fmt.Fprintf(os.Stderr, "%s: ", label)
	pw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(pw), nil
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and store the access token",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, cfg, err := newClient()
		if err != nil {
			return err
		}

		username, err := promptLine("username")
		if err != nil || username == "" {
			return fmt.Errorf("username is required")
		}
		password, err := promptPassword("password")
		if err != nil {
			return err
		}

		sp := ui.NewSpinner("Signing in...")
		sp.Start()
		token, err := client.Login(cmd.Context(), username, password)
		if err != nil {
			sp.Fail("Login failed")
			return err
		}
		if err := auth.SaveToken(token); err != nil {
			sp.Fail("Could not store token")
			return err
		}

		// Greet with the profile; login already succeeded, so a profile
		// failure only downgrades the message.
		authed := api.NewClient(cfg, token)
		profile, err := authed.Me(cmd.Context())
		sp.Stop()

		green := color.New(color.FgGreen)
		if err == nil && profile.Username != "" {
			green.Fprintf(os.Stderr, "  ✓ Logged in as %s\n", profile.Username)
		} else {
			green.Fprintln(os.Stderr, "  ✓ Logged in")
		}
		return nil
	},
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create a new account",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, err := newClient()
		if err != nil {
			return err
		}

		username, err := promptLine("username")
		if err != nil || username == "" {
			return fmt.Errorf("username is required")
		}
		password, err := promptPassword("password")
		if err != nil {
			return err
		}
		phone, err := promptLine("phone")
		if err != nil {
			return err
		}

		sp := ui.NewSpinner("Registering...")
		sp.Start()
		err = client.Register(cmd.Context(), api.RegisterRequest{
			Username: username,
			Password: password,
			Phone:    phone,
		})
		if err != nil {
			sp.Fail("Registration failed")
			return err
		}
		sp.Success("Account created. Now run: tianji login")
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored access token",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := auth.ClearToken(); err != nil {
			return err
		}
		fmt.Fprintln(os.Stderr, "Logged out.")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged-in profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireLogin(); err != nil {
			return err
		}
		client, _, err := newClient()
		if err != nil {
			return err
		}

		profile, err := client.Me(cmd.Context())
		if err != nil {
			return handleAuthErr(err)
		}

		fmt.Printf("Username: %s\n", profile.Username)
		if profile.Email != "" {
			fmt.Printf("Email:    %s\n", profile.Email)
		}
		if profile.Phone != "" {
			fmt.Printf("Phone:    %s\n", profile.Phone)
		}
		if profile.AvatarURL != "" {
			src := auth.ResolveAvatarSrc(profile.AvatarURL)
			if len(src) > 60 {
				src = src[:60] + "..."
			}
			fmt.Printf("Avatar:   %s\n", src)
		}
		return nil
	},
}
