package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/suyan/tianji-cli/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage tianji configuration",
}

var configSetBaseCmd = &cobra.Command{
	Use:   "set-base <url>",
	Short: "Set the backend base URL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.SetBaseURL(args[0]); err != nil {
			return fmt.Errorf("failed to save base URL: %w", err)
		}
		fmt.Printf("Base URL set to %s.\n", args[0])
		return nil
	},
}

var configSetTTSCmd = &cobra.Command{
	Use:   "set-tts <true|false>",
	Short: "Request synthesized audio by default",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		enabled, err := strconv.ParseBool(args[0])
		if err != nil {
			return fmt.Errorf("expected true or false, got %q", args[0])
		}
		if err := config.SetTTS(enabled); err != nil {
			return fmt.Errorf("failed to save TTS setting: %w", err)
		}
		fmt.Printf("TTS set to %v.\n", enabled)
		return nil
	},
}

var configSetDebugCmd = &cobra.Command{
	Use:   "set-debug <true|false>",
	Short: "Always write request logs to the debug log file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		enabled, err := strconv.ParseBool(args[0])
		if err != nil {
			return fmt.Errorf("expected true or false, got %q", args[0])
		}
		if err := config.SetDebug(enabled); err != nil {
			return fmt.Errorf("failed to save debug setting: %w", err)
		}
		fmt.Printf("Debug logging set to %v.\n", enabled)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		fmt.Printf("Base URL:   %s\n", cfg.BaseURL)
		fmt.Printf("TTS:        %v\n", cfg.TTS)
		fmt.Printf("Page Size:  %d\n", cfg.PageSize)
		fmt.Printf("Debug:      %v\n", cfg.Debug)
		fmt.Printf("Config Dir: %s\n", config.Dir())
		return nil
	},
}

func init() {
	configCmd.AddCommand(configSetBaseCmd)
	configCmd.AddCommand(configSetTTSCmd)
	configCmd.AddCommand(configSetDebugCmd)
	configCmd.AddCommand(configShowCmd)
}
