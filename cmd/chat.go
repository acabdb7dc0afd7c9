package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/suyan/tianji-cli/internal/auth"
	"github.com/suyan/tianji-cli/internal/chat"
	"github.com/suyan/tianji-cli/internal/mood"
	"github.com/suyan/tianji-cli/internal/ui"
)

var (
	chatSessionID string
	chatTTS       bool
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive divination chat",
	Long: `Start a conversational session with the Tianji diviner. Replies
stream in with a typing effect; each answer carries a mood and,
with --tts, a synthesized audio reading.

Type 'exit' or 'quit' to end the session. Inside the session,
'/new' starts a fresh thread and '/sessions' lists your threads.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireLogin(); err != nil {
			return err
		}
		client, cfg, err := newClient()
		if err != nil {
			return err
		}

		store := chat.NewStore(client, chat.Options{
			PageSize:   cfg.PageSize,
			TTSEnabled: chatTTS || cfg.TTS,
			OnUnauthorized: func() {
				_ = auth.ClearToken()
			},
			OnReveal: func(text string) {
				fmt.Fprint(os.Stderr, text)
			},
		})

		cyan := color.New(color.FgCyan, color.Bold)

		fmt.Fprintln(os.Stderr)
		cyan.Fprintln(os.Stderr, "  tianji chat")
		ui.Dim(os.Stderr, "  问天机，断吉凶。Ask away.\n")
		ui.Dim(os.Stderr, "  Type 'exit' to quit, '/new' for a fresh thread.\n\n")

		if chatSessionID != "" {
			store.SetActiveSession(chatSessionID)
			if err := store.LoadHistory(cmd.Context(), chatSessionID); err != nil {
				return handleAuthErr(err)
			}
			if msgs := store.Messages(); len(msgs) > 0 {
				ui.RenderTranscript(os.Stderr, msgs, client.BaseURL())
				fmt.Fprintln(os.Stderr)
			}
		}

		scanner := bufio.NewScanner(os.Stdin)
		for {
			ui.UserPrompt(os.Stderr)
			if !scanner.Scan() {
				break
			}

			input := strings.TrimSpace(scanner.Text())
			if input == "" {
				continue
			}
			if input == "exit" || input == "quit" {
				ui.Dim(os.Stderr, "\n  后会有期。👋\n\n")
				break
			}
			if handled, err := runChatEscape(cmd, store, input); handled {
				if err != nil {
					fmt.Fprintf(os.Stderr, "  Error: %v\n\n", handleAuthErr(err))
				}
				continue
			}

			ui.AssistantPrefix(os.Stderr)
			reply, err := store.Send(cmd.Context(), input)
			if err != nil {
				fmt.Fprintf(os.Stderr, "\n  Error: %v\n\n", handleAuthErr(err))
				continue
			}
			if reply != nil {
				if e := mood.Emoji(reply.Mood); e != "" {
					fmt.Fprintf(os.Stderr, " %s", e)
				}
				fmt.Fprintln(os.Stderr)
				if reply.AudioURL != "" {
					ui.Dim(os.Stderr, "    audio: %s\n", mood.ResolveAudioURL(client.BaseURL(), reply.AudioURL))
				}
			} else {
				fmt.Fprintln(os.Stderr)
			}
			fmt.Fprintln(os.Stderr)
		}

		return scanner.Err()
	},
}

// runChatEscape handles in-session '/' commands. It reports whether the
// input was an escape, so plain messages fall through to Send.
func runChatEscape(cmd *cobra.Command, store *chat.Store, input string) (bool, error) {
	switch {
	case input == "/new":
		id, err := store.CreateSession(cmd.Context())
		if err != nil {
			return true, err
		}
		ui.Dim(os.Stderr, "  new session %s\n\n", id)
		return true, nil
	case input == "/sessions":
		if err := store.RefreshSessions(cmd.Context()); err != nil {
			return true, err
		}
		for _, s := range store.Sessions() {
			marker := "  "
			if s.Key() == store.ActiveSessionID() {
				marker = "* "
			}
			ui.Dim(os.Stderr, "  %s%s  %s\n", marker, s.Key(), s.Title)
		}
		fmt.Fprintln(os.Stderr)
		return true, nil
	case strings.HasPrefix(input, "/"):
		ui.Dim(os.Stderr, "  unknown command %q\n\n", input)
		return true, nil
	}
	return false, nil
}

func init() {
	chatCmd.Flags().StringVarP(&chatSessionID, "session", "s", "", "Resume an existing session by id")
	chatCmd.Flags().BoolVar(&chatTTS, "tts", false, "Request synthesized audio for each reply")
}
