package cmd

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
	"github.com/suyan/tianji-cli/internal/api"
	"github.com/suyan/tianji-cli/internal/auth"
	"github.com/suyan/tianji-cli/internal/config"
	"github.com/suyan/tianji-cli/internal/logging"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "tianji",
	Short: "Terminal client for the Tianji fortune-telling chat service",
	Long: `tianji talks to the Tianji fortune-telling backend from your terminal:
log in, manage conversation sessions, chat with streamed replies, and
attach reference knowledge (URLs or files) to a session.

Start with:
  tianji login
  tianji chat`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Write request logs to the debug log file")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(knowledgeCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(recentCmd)
	rootCmd.AddCommand(configCmd)
}

// Execute is the entry point called from main.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion wires the build-time version string.
func SetVersion(v string) {
	rootCmd.Version = v
}

// newClient builds an API client from config and the stored token.
func newClient() (*api.Client, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("configuration error: %w", err)
	}
	client := api.NewClient(cfg, auth.LoadToken())
	client.SetLogger(logging.New(verbose || cfg.Debug))
	return client, cfg, nil
}

// requireLogin fails fast when no token is stored.
func requireLogin() error {
	if auth.LoadToken() == "" {
		return errors.New("not logged in, run: tianji login")
	}
	return nil
}

// handleAuthErr applies the cross-cutting 401 rule: an expired or
// rejected token is wiped so the next command prompts a fresh login.
func handleAuthErr(err error) error {
	var apiErr *api.APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
		_ = auth.ClearToken()
		return fmt.Errorf("session expired, please log in again: %w", err)
	}
	return err
}
