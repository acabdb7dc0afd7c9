// Package api provides types for the Tianji backend client.
package api

import (
	"bytes"
	"encoding/json"
	"io"
)

// flexString tolerates backends that serialize ids as numbers or strings.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	// Numbers keep their literal text.
	*f = flexString(data)
	return nil
}

// Session is one server-tracked conversation thread.
// Key fields appear under several names depending on backend version.
type Session struct {
	ID           flexString `json:"id"`
	SessionID    flexString `json:"session_id"`
	SessionIDAlt flexString `json:"sessionId"`
	Title        string     `json:"title"`
	CreatedAt    string     `json:"created_at"`
	UpdatedAt    string     `json:"updated_at"`
	UpdatedAtAlt string     `json:"updatedAt"`
}

// Key returns the opaque session identifier, whichever field carried it.
func (s Session) Key() string {
	if s.SessionID != "" {
		return string(s.SessionID)
	}
	if s.SessionIDAlt != "" {
		return string(s.SessionIDAlt)
	}
	return string(s.ID)
}

// Updated returns the last-activity timestamp string, if any.
func (s Session) Updated() string {
	if s.UpdatedAt != "" {
		return s.UpdatedAt
	}
	return s.UpdatedAtAlt
}

// Profile is the authenticated user's account data.
type Profile struct {
	ID        flexString `json:"id"`
	Username  string     `json:"username"`
	Email     string     `json:"email"`
	Phone     string     `json:"phone"`
	AvatarURL string     `json:"avatar_url"`
}

// HistoryItem is one row of stored conversation history. Backends emit
// either per-message rows (role + content) or paired rows holding both
// sides of a turn (user_message/query + assistant_message/response).
type HistoryItem struct {
	ID           flexString `json:"id"`
	Role         string     `json:"role"`
	Content      string     `json:"content"`
	Mood         string     `json:"mood"`
	CreatedAt    string     `json:"created_at"`
	CreatedAtAlt string     `json:"createdAt"`

	UserMessage      string `json:"user_message"`
	Query            string `json:"query"`
	AssistantMessage string `json:"assistant_message"`
	Response         string `json:"response"`
}

// Created returns the row timestamp string, if any.
func (h HistoryItem) Created() string {
	if h.CreatedAt != "" {
		return h.CreatedAt
	}
	return h.CreatedAtAlt
}

// LoginRequest is the credentials payload for /auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RegisterRequest is the payload for /auth/register.
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Phone    string `json:"phone"`
}

// UpdateProfileRequest carries the fields to change; empty fields are omitted.
type UpdateProfileRequest struct {
	Username  string `json:"username,omitempty"`
	Email     string `json:"email,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// AddKnowledgeRequest attaches a URL or a file to a session as reference
// material for the backend's inference step.
type AddKnowledgeRequest struct {
	URL       string
	FileName  string
	File      io.Reader
	SessionID string
}

// StreamRequest starts one streaming chat exchange.
type StreamRequest struct {
	Query     string
	SessionID string
	EnableTTS bool
}

// StreamRecord is one decoded unit from the chat streaming endpoint.
// It is ephemeral: consumed immediately into message mutations.
type StreamRecord struct {
	Type      string `json:"type"`
	Content   string `json:"content"`
	AudioURL  string `json:"audio_url"`
	Mood      string `json:"mood"`
	SessionID string `json:"session_id"`
}

// StreamCallbacks receive stream events as records arrive. OnToken fires
// for each non-empty incremental text fragment; OnDone fires with the
// completion payload (possibly more than once, the last one wins).
type StreamCallbacks struct {
	OnToken func(text string)
	OnDone  func(rec StreamRecord)
}

// tokenPayload is the login response body after unwrapping.
type tokenPayload struct {
	AccessToken    string `json:"access_token"`
	AccessTokenAlt string `json:"accessToken"`
}

func (t tokenPayload) token() string {
	if t.AccessToken != "" {
		return t.AccessToken
	}
	return t.AccessTokenAlt
}
