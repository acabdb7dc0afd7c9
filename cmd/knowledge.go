package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/suyan/tianji-cli/internal/auth"
	"github.com/suyan/tianji-cli/internal/chat"
	"github.com/suyan/tianji-cli/internal/ui"
)

var (
	knowledgeSessionID string
	knowledgeURL       string
	knowledgeFile      string
)

var knowledgeCmd = &cobra.Command{
	Use:   "knowledge",
	Short: "Attach reference material to a session",
	Long: `Attach reference knowledge to a session so the diviner can draw
on it when answering. Sources can be a web page URL, a local file,
or both at once.`,
}

var knowledgeAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a URL and/or file to a session",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireLogin(); err != nil {
			return err
		}
		client, cfg, err := newClient()
		if err != nil {
			return err
		}

		var reader io.Reader
		var fileName string
		if knowledgeFile != "" {
			f, err := os.Open(knowledgeFile)
			if err != nil {
				return fmt.Errorf("failed to open file: %w", err)
			}
			defer f.Close()
			reader = f
			fileName = filepath.Base(knowledgeFile)
		}

		store := chat.NewStore(client, chat.Options{
			PageSize: cfg.PageSize,
			OnUnauthorized: func() {
				_ = auth.ClearToken()
			},
		})
		store.SetActiveSession(knowledgeSessionID)

		sp := ui.NewSpinner("Uploading knowledge...")
		sp.Start()
		msg, err := store.SubmitKnowledge(cmd.Context(), knowledgeURL, fileName, reader)
		sp.Stop()
		if err != nil {
			return handleAuthErr(err)
		}
		fmt.Println(msg)
		return nil
	},
}

var knowledgeListCmd = &cobra.Command{
	Use:   "list <session-id>",
	Short: "List the sources attached to a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, err := newClient()
		if err != nil {
			return err
		}

		sources, err := client.ListKnowledge(cmd.Context(), args[0])
		if err != nil {
			return handleAuthErr(err)
		}
		if len(sources) == 0 {
			fmt.Println("No knowledge attached to this session.")
			return nil
		}
		for _, src := range sources {
			fmt.Println(src)
		}
		return nil
	},
}

func init() {
	knowledgeAddCmd.Flags().StringVarP(&knowledgeSessionID, "session", "s", "", "Session to attach the knowledge to (required)")
	knowledgeAddCmd.Flags().StringVarP(&knowledgeURL, "url", "u", "", "Web page URL to attach")
	knowledgeAddCmd.Flags().StringVarP(&knowledgeFile, "file", "f", "", "Local file to upload")
	_ = knowledgeAddCmd.MarkFlagRequired("session")

	knowledgeCmd.AddCommand(knowledgeAddCmd)
	knowledgeCmd.AddCommand(knowledgeListCmd)
}
