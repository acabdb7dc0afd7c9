package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/suyan/tianji-cli/internal/api"
)

// Backend is the slice of the API client the store needs. Tests swap in
// fakes here.
type Backend interface {
	CreateSession(ctx context.Context, title string) (*api.Session, error)
	ListSessions(ctx context.Context, skip, limit int) ([]api.Session, error)
	RenameSession(ctx context.Context, sessionID, title string) error
	DeleteSession(ctx context.Context, sessionID string) error
	History(ctx context.Context, sessionID string, skip, limit int) ([]api.HistoryItem, error)
	StreamChat(ctx context.Context, req api.StreamRequest, cb api.StreamCallbacks) error
	AddKnowledge(ctx context.Context, req api.AddKnowledgeRequest) (string, error)
	ListKnowledge(ctx context.Context, sessionID string) ([]string, error)
}

var (
	// ErrEmptyMessage rejects sends with no content after trimming.
	ErrEmptyMessage = errors.New("message is empty")
	// ErrStreamBusy rejects a send while a previous one is in flight.
	ErrStreamBusy = errors.New("a reply is already streaming")
	// ErrNoSession rejects knowledge operations without an active session.
	ErrNoSession = errors.New("no active session")
	// ErrNoKnowledge rejects knowledge submissions with neither url nor file.
	ErrNoKnowledge = errors.New("provide a url or a file")
)

const (
	defaultSessionTitle = "新会话"
	sessionTitleRunes   = 16
)

// Options configure a Store.
type Options struct {
	// PageSize bounds history and session list fetches.
	PageSize int
	// TTSEnabled requests audio synthesis on each send.
	TTSEnabled bool
	// OnUnauthorized fires when any backend call returns 401; the usual
	// hook clears the persisted token.
	OnUnauthorized func()
	// OnReveal mirrors each revealed text batch, e.g. to the terminal.
	OnReveal func(text string)
}

// Store owns the conversation state for one chat client: cached session
// list, the active message transcript, and the in-flight streaming gate.
// All mutation goes through the store's mutex; the reveal scheduler
// appends content through the same path.
type Store struct {
	mu                sync.Mutex
	backend           Backend
	revealer          *Revealer
	messages          []Message
	sessions          []api.Session
	activeSessionID   string
	messagesSessionID string
	isStreaming       bool
	ttsEnabled        bool
	pageSize          int
	onUnauthorized    func()
	onReveal          func(text string)
}

// NewStore creates a store over the given backend.
func NewStore(backend Backend, opts Options) *Store {
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	s := &Store{
		backend:        backend,
		ttsEnabled:     opts.TTSEnabled,
		pageSize:       pageSize,
		onUnauthorized: opts.OnUnauthorized,
		onReveal:       opts.OnReveal,
	}
	s.revealer = NewRevealer(s.appendContent)
	return s
}

// appendContent is the revealer sink: monotonic append to the target
// message, then the terminal mirror.
func (s *Store) appendContent(targetID, text string) {
	s.mu.Lock()
	for i := range s.messages {
		if s.messages[i].ID == targetID {
			s.messages[i].Content += text
			break
		}
	}
	mirror := s.onReveal
	s.mu.Unlock()

	if mirror != nil {
		mirror(text)
	}
}

// authGuard triggers the 401 side effect for any failed backend call.
func (s *Store) authGuard(err error) {
	var apiErr *api.APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized && s.onUnauthorized != nil {
		s.onUnauthorized()
	}
}

// Messages returns a snapshot of the current transcript.
func (s *Store) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Sessions returns the cached session list.
func (s *Store) Sessions() []api.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]api.Session, len(s.sessions))
	copy(out, s.sessions)
	return out
}

// ActiveSessionID returns the session new sends go to, or "".
func (s *Store) ActiveSessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeSessionID
}

// SetActiveSession switches the target session without loading history.
func (s *Store) SetActiveSession(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeSessionID = sessionID
}

// Streaming reports whether a send is in flight.
func (s *Store) Streaming() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isStreaming
}

// SetTTS toggles audio synthesis for subsequent sends.
func (s *Store) SetTTS(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ttsEnabled = enabled
}

// TTS reports the current audio synthesis preference.
func (s *Store) TTS() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ttsEnabled
}

// Reset drops all conversation state, e.g. on logout.
func (s *Store) Reset() {
	s.revealer.Stop()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = nil
	s.sessions = nil
	s.activeSessionID = ""
	s.messagesSessionID = ""
}

// RefreshSessions re-fetches and caches the session list.
func (s *Store) RefreshSessions(ctx context.Context) error {
	list, err := s.backend.ListSessions(ctx, 0, s.pageSize)
	if err != nil {
		s.authGuard(err)
		return err
	}
	s.mu.Lock()
	s.sessions = list
	s.mu.Unlock()
	return nil
}

// LoadHistory replaces the transcript with the stored history of a
// session. Any in-progress reveal is discarded first.
func (s *Store) LoadHistory(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	s.revealer.Stop()
	s.mu.Lock()
	s.messages = nil
	s.messagesSessionID = sessionID
	s.mu.Unlock()

	items, err := s.backend.History(ctx, sessionID, 0, s.pageSize)
	if err != nil {
		s.authGuard(err)
		return err
	}
	msgs := BuildHistory(items)
	s.mu.Lock()
	s.messages = msgs
	s.mu.Unlock()
	return nil
}

// CreateSession creates a fresh thread and makes it active.
func (s *Store) CreateSession(ctx context.Context) (string, error) {
	created, err := s.backend.CreateSession(ctx, defaultSessionTitle)
	if err != nil {
		s.authGuard(err)
		return "", err
	}
	sessionID := created.Key()
	if sessionID == "" {
		return "", errors.New("backend returned no session id")
	}
	_ = s.RefreshSessions(ctx)
	s.mu.Lock()
	s.activeSessionID = sessionID
	s.messages = nil
	s.messagesSessionID = sessionID
	s.mu.Unlock()
	return sessionID, nil
}

// RenameSession retitles a session and refreshes the cached list.
func (s *Store) RenameSession(ctx context.Context, sessionID, title string) error {
	if err := s.backend.RenameSession(ctx, sessionID, title); err != nil {
		s.authGuard(err)
		return err
	}
	return s.RefreshSessions(ctx)
}

// DeleteSession removes a session; if it was active, the transcript is
// cleared too.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	if err := s.backend.DeleteSession(ctx, sessionID); err != nil {
		s.authGuard(err)
		return err
	}
	_ = s.RefreshSessions(ctx)
	s.mu.Lock()
	if s.activeSessionID == sessionID {
		s.activeSessionID = ""
		s.messages = nil
		s.messagesSessionID = ""
	}
	s.mu.Unlock()
	return nil
}

// Send runs one full streaming exchange: lazily creates a session,
// appends the user message and a streaming assistant placeholder, feeds
// arriving tokens through the reveal scheduler, and settles the
// placeholder on completion. It returns the settled assistant message.
//
// Only one send may be in flight; concurrent calls get ErrStreamBusy
// without issuing a request or touching the transcript.
func (s *Store) Send(ctx context.Context, raw string) (*Message, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil, ErrEmptyMessage
	}

	s.mu.Lock()
	if s.isStreaming {
		s.mu.Unlock()
		return nil, ErrStreamBusy
	}
	s.isStreaming = true
	tts := s.ttsEnabled
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.isStreaming = false
		s.mu.Unlock()
	}()

	s.revealer.Stop()

	sessionID := s.ActiveSessionID()
	if sessionID == "" {
		created, err := s.backend.CreateSession(ctx, truncateTitle(text))
		if err != nil {
			s.authGuard(err)
			return nil, fmt.Errorf("failed to create session: %w", err)
		}
		sessionID = created.Key()
		if sessionID == "" {
			return nil, errors.New("backend returned no session id")
		}
		s.mu.Lock()
		s.activeSessionID = sessionID
		s.messages = nil
		s.messagesSessionID = sessionID
		s.mu.Unlock()
	}

	now := time.Now()
	assistantID := uuid.NewString()
	s.mu.Lock()
	s.messages = append(s.messages,
		Message{ID: uuid.NewString(), Role: RoleUser, Content: text, CreatedAt: now},
		Message{ID: assistantID, Role: RoleAssistant, Streaming: true, CreatedAt: now},
	)
	s.messagesSessionID = sessionID
	s.mu.Unlock()

	err := s.backend.StreamChat(ctx,
		api.StreamRequest{Query: text, SessionID: sessionID, EnableTTS: tts},
		api.StreamCallbacks{
			OnToken: func(tok string) {
				s.revealer.Enqueue(assistantID, tok)
			},
			OnDone: func(rec api.StreamRecord) {
				s.finishStream(ctx, assistantID, sessionID, rec)
			},
		})
	if err != nil {
		s.authGuard(err)
		s.revealer.Stop()
		s.mu.Lock()
		for i := range s.messages {
			if s.messages[i].ID == assistantID {
				s.messages[i].Streaming = false
			}
		}
		s.mu.Unlock()
		return nil, err
	}

	// The network finished first; let the typing effect catch up.
	s.revealer.Wait()

	// Titles may have changed server-side (first-message naming).
	_ = s.RefreshSessions(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.messages {
		if s.messages[i].ID == assistantID {
			m := s.messages[i]
			return &m, nil
		}
	}
	return nil, nil
}

// finishStream settles the assistant placeholder with the completion
// payload: streaming off, audio attached, mood patched (or recovered
// from history when the payload has none), and the active session
// retargeted if the server created one.
func (s *Store) finishStream(ctx context.Context, assistantID, sentSession string, rec api.StreamRecord) {
	s.mu.Lock()
	for i := range s.messages {
		if s.messages[i].ID == assistantID {
			s.messages[i].Streaming = false
			s.messages[i].AudioURL = rec.AudioURL
		}
	}
	s.mu.Unlock()

	next := rec.SessionID
	if next == "" {
		next = sentSession
	}
	if rec.Mood != "" {
		s.mu.Lock()
		patchLastAssistantMood(s.messages, rec.Mood)
		s.mu.Unlock()
	} else {
		s.fetchLatestMood(ctx, next)
	}

	if rec.SessionID != "" && rec.SessionID != sentSession {
		s.mu.Lock()
		s.activeSessionID = rec.SessionID
		s.messagesSessionID = rec.SessionID
		s.mu.Unlock()
	}
}

// fetchLatestMood recovers the mood of the last stored assistant turn.
// Fire-and-forget: any failure leaves the transcript as-is.
func (s *Store) fetchLatestMood(ctx context.Context, sessionID string) {
	if sessionID == "" {
		return
	}
	items, err := s.backend.History(ctx, sessionID, 0, s.pageSize)
	if err != nil || len(items) == 0 {
		return
	}
	mood := items[len(items)-1].Mood
	if mood == "" {
		return
	}
	s.mu.Lock()
	patchLastAssistantMood(s.messages, mood)
	s.mu.Unlock()
}

// SubmitKnowledge attaches a URL and/or file to the active session.
func (s *Store) SubmitKnowledge(ctx context.Context, urlStr, fileName string, file io.Reader) (string, error) {
	sessionID := s.ActiveSessionID()
	if sessionID == "" {
		return "", ErrNoSession
	}
	urlStr = strings.TrimSpace(urlStr)
	if urlStr == "" && file == nil {
		return "", ErrNoKnowledge
	}

	msg, err := s.backend.AddKnowledge(ctx, api.AddKnowledgeRequest{
		URL:       urlStr,
		FileName:  fileName,
		File:      file,
		SessionID: sessionID,
	})
	if err != nil {
		s.authGuard(err)
		return "", err
	}
	return msg, nil
}

// KnowledgeSources lists the attached sources for the active session.
func (s *Store) KnowledgeSources(ctx context.Context) ([]string, error) {
	sessionID := s.ActiveSessionID()
	if sessionID == "" {
		return nil, ErrNoSession
	}
	sources, err := s.backend.ListKnowledge(ctx, sessionID)
	if err != nil {
		s.authGuard(err)
		return nil, err
	}
	return sources, nil
}

// StopReveal discards any buffered reveal text, e.g. on view teardown.
func (s *Store) StopReveal() {
	s.revealer.Stop()
}

// truncateTitle derives a session title from the first message.
func truncateTitle(text string) string {
	runes := []rune(text)
	if len(runes) > sessionTitleRunes {
		runes = runes[:sessionTitleRunes]
	}
	title := strings.TrimSpace(string(runes))
	if title == "" {
		return defaultSessionTitle
	}
	return title
}
