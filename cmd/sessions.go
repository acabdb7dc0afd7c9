package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/suyan/tianji-cli/internal/ui"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage conversation sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your sessions, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireLogin(); err != nil {
			return err
		}
		client, cfg, err := newClient()
		if err != nil {
			return err
		}

		sp := ui.NewSpinner("Fetching sessions...")
		sp.Start()
		sessions, err := client.ListSessions(cmd.Context(), 0, cfg.PageSize)
		sp.Stop()
		if err != nil {
			return handleAuthErr(err)
		}

		if len(sessions) == 0 {
			fmt.Println("No sessions yet. Start one with: tianji chat")
			return nil
		}
		for _, s := range sessions {
			line := fmt.Sprintf("%s  %s", s.Key(), s.Title)
			if ts := ui.FormatTimestamp(s.Updated()); ts != "" {
				line += "  (" + ts + ")"
			}
			fmt.Println(line)
		}
		return nil
	},
}

var sessionsCreateCmd = &cobra.Command{
	Use:   "create [title]",
	Short: "Create a new session",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireLogin(); err != nil {
			return err
		}
		client, _, err := newClient()
		if err != nil {
			return err
		}

		title := "新会话"
		if len(args) == 1 && args[0] != "" {
			title = args[0]
		}
		created, err := client.CreateSession(cmd.Context(), title)
		if err != nil {
			return handleAuthErr(err)
		}
		fmt.Printf("Created session %s (%s)\n", created.Key(), created.Title)
		return nil
	},
}

var sessionsRenameCmd = &cobra.Command{
	Use:   "rename <session-id> <title>",
	Short: "Rename a session",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireLogin(); err != nil {
			return err
		}
		client, _, err := newClient()
		if err != nil {
			return err
		}
		if err := client.RenameSession(cmd.Context(), args[0], args[1]); err != nil {
			return handleAuthErr(err)
		}
		fmt.Printf("Renamed session %s to %q\n", args[0], args[1])
		return nil
	},
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <session-id>",
	Short: "Delete a session and its history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireLogin(); err != nil {
			return err
		}
		client, _, err := newClient()
		if err != nil {
			return err
		}
		if err := client.DeleteSession(cmd.Context(), args[0]); err != nil {
			return handleAuthErr(err)
		}
		fmt.Printf("Deleted session %s\n", args[0])
		return nil
	},
}

func init() {
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsCreateCmd)
	sessionsCmd.AddCommand(sessionsRenameCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)
}
