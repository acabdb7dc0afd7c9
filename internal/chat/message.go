// Package chat owns the client-side conversation state: the message
// list, the send orchestration over the streaming endpoint, and the
// paced reveal of incoming tokens.
package chat

import "time"

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one rendered chat turn. While Streaming is true the content
// only ever grows; once it flips false the message is settled except for
// a single late mood patch.
type Message struct {
	ID        string
	Role      string
	Content   string
	Streaming bool
	Mood      string
	AudioURL  string
	CreatedAt time.Time
}
