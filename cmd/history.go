package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/suyan/tianji-cli/internal/chat"
	"github.com/suyan/tianji-cli/internal/ui"
)

var historyCmd = &cobra.Command{
	Use:   "history <session-id>",
	Short: "Show the stored transcript of a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireLogin(); err != nil {
			return err
		}
		client, cfg, err := newClient()
		if err != nil {
			return err
		}

		sp := ui.NewSpinner("Fetching history...")
		sp.Start()
		items, err := client.History(cmd.Context(), args[0], 0, cfg.PageSize)
		sp.Stop()
		if err != nil {
			return handleAuthErr(err)
		}

		messages := chat.BuildHistory(items)
		if len(messages) == 0 {
			fmt.Println("No messages in this session.")
			return nil
		}
		ui.RenderTranscript(os.Stdout, messages, client.BaseURL())
		return nil
	},
}
