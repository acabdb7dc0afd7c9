package cmd

import (
	"fmt"
	"os"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/suyan/tianji-cli/internal/chat"
	"github.com/suyan/tianji-cli/internal/ui"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show your usage statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireLogin(); err != nil {
			return err
		}
		client, _, err := newClient()
		if err != nil {
			return err
		}

		sp := ui.NewSpinner("Fetching stats...")
		sp.Start()
		stats, err := client.Stats(cmd.Context())
		sp.Stop()
		if err != nil {
			return handleAuthErr(err)
		}

		cyan := color.New(color.FgCyan, color.Bold)
		dim := color.New(color.FgHiBlack)

		cyan.Fprintf(os.Stderr, "\n  📊 tianji stats\n\n")
		if len(stats) == 0 {
			dim.Fprintln(os.Stderr, "  No data yet. Chat for a while and come back.")
			fmt.Fprintln(os.Stderr)
			return nil
		}

		keys := make([]string, 0, len(stats))
		for k := range stats {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			dim.Fprintf(os.Stderr, "  %-24s ", k)
			fmt.Fprintf(os.Stderr, "%v\n", stats[k])
		}
		fmt.Fprintln(os.Stderr)
		return nil
	},
}

var recentDays int

var recentCmd = &cobra.Command{
	Use:   "recent",
	Short: "Show your recent conversation turns",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireLogin(); err != nil {
			return err
		}
		client, _, err := newClient()
		if err != nil {
			return err
		}

		sp := ui.NewSpinner("Fetching recent messages...")
		sp.Start()
		items, err := client.Recent(cmd.Context(), recentDays)
		sp.Stop()
		if err != nil {
			return handleAuthErr(err)
		}

		messages := chat.BuildHistory(items)
		if len(messages) == 0 {
			fmt.Printf("Nothing in the last %d days.\n", recentDays)
			return nil
		}
		ui.RenderTranscript(os.Stdout, messages, client.BaseURL())
		return nil
	},
}

func init() {
	recentCmd.Flags().IntVarP(&recentDays, "days", "d", 7, "How many days back to look")
}
