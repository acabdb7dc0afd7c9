// Package ui provides terminal UI helpers: spinners, colors, and the
// chat transcript renderer.
package ui

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/suyan/tianji-cli/internal/chat"
	"github.com/suyan/tianji-cli/internal/mood"
)

var (
	userLabel      = color.New(color.FgGreen, color.Bold)
	assistantLabel = color.New(color.FgMagenta, color.Bold)
	dim            = color.New(color.FgHiBlack)
)

// RenderMessage writes one settled chat message to w. baseURL resolves
// relative audio paths.
func RenderMessage(w io.Writer, m chat.Message, baseURL string) {
	label := userLabel
	name := "you"
	if m.Role == chat.RoleAssistant {
		label = assistantLabel
		name = "tianji"
	}

	label.Fprintf(w, "  %s → ", name)
	fmt.Fprint(w, m.Content)
	if m.Role == chat.RoleAssistant {
		if e := mood.Emoji(m.Mood); e != "" {
			fmt.Fprintf(w, " %s", e)
		}
	}
	fmt.Fprintln(w)

	if !m.CreatedAt.IsZero() {
		dim.Fprintf(w, "    %s\n", m.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	if m.AudioURL != "" {
		dim.Fprintf(w, "    audio: %s\n", mood.ResolveAudioURL(baseURL, m.AudioURL))
	}
}

// RenderTranscript writes a full message list with blank lines between
// turns.
func RenderTranscript(w io.Writer, messages []chat.Message, baseURL string) {
	for i, m := range messages {
		RenderMessage(w, m, baseURL)
		if i < len(messages)-1 {
			fmt.Fprintln(w)
		}
	}
}

// AssistantPrefix prints the assistant label ahead of a streamed reply.
func AssistantPrefix(w io.Writer) {
	assistantLabel.Fprint(w, "  tianji → ")
}

// UserPrompt prints the input prompt.
func UserPrompt(w io.Writer) {
	userLabel.Fprint(w, "  you → ")
}

// Dim prints low-emphasis text.
func Dim(w io.Writer, format string, args ...any) {
	dim.Fprintf(w, format, args...)
}

// FormatTimestamp renders a backend timestamp string, or "" when it is
// missing or unparseable.
func FormatTimestamp(value string) string {
	if value == "" {
		return ""
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.Format("2006-01-02 15:04:05")
		}
	}
	return ""
}
