package chat

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/suyan/tianji-cli/internal/api"
)

// fakeBackend scripts backend behavior and records calls.
type fakeBackend struct {
	mu sync.Mutex

	createdTitles  []string
	createSession  *api.Session
	createErr      error
	sessions       []api.Session
	listErr        error
	history        []api.HistoryItem
	historyErr     error
	historyCalls   int
	streamFn       func(ctx context.Context, req api.StreamRequest, cb api.StreamCallbacks) error
	streamCalls    int
	lastStreamReq  api.StreamRequest
	knowledgeMsg   string
	knowledgeErr   error
	knowledgeReqs  []api.AddKnowledgeRequest
	renameErr      error
	deleteErr      error
	deletedIDs     []string
	knowledgeSrcs  []string
	knowledgeLsErr error
}

func (f *fakeBackend) CreateSession(_ context.Context, title string) (*api.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createdTitles = append(f.createdTitles, title)
	if f.createErr != nil {
		return nil, f.createErr
	}
	if f.createSession != nil {
		return f.createSession, nil
	}
	return &api.Session{SessionID: "sess-1", Title: title}, nil
}

func (f *fakeBackend) ListSessions(context.Context, int, int) ([]api.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sessions, f.listErr
}

func (f *fakeBackend) RenameSession(context.Context, string, string) error { return f.renameErr }

func (f *fakeBackend) DeleteSession(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletedIDs = append(f.deletedIDs, id)
	return f.deleteErr
}

func (f *fakeBackend) History(context.Context, string, int, int) ([]api.HistoryItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.historyCalls++
	return f.history, f.historyErr
}

func (f *fakeBackend) StreamChat(ctx context.Context, req api.StreamRequest, cb api.StreamCallbacks) error {
	f.mu.Lock()
	f.streamCalls++
	f.lastStreamReq = req
	fn := f.streamFn
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, req, cb)
	}
	return nil
}

func (f *fakeBackend) AddKnowledge(_ context.Context, req api.AddKnowledgeRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.knowledgeReqs = append(f.knowledgeReqs, req)
	return f.knowledgeMsg, f.knowledgeErr
}

func (f *fakeBackend) ListKnowledge(context.Context, string) ([]string, error) {
	return f.knowledgeSrcs, f.knowledgeLsErr
}

func newTestStore(backend Backend, opts Options) *Store {
	s := NewStore(backend, opts)
	// Fast cadence so tests finish promptly.
	s.revealer = newRevealerWithCadence(s.appendContent, time.Millisecond, 2)
	return s
}

func TestSend_StreamsAndSettles(t *testing.T) {
	fb := &fakeBackend{
		streamFn: func(_ context.Context, req api.StreamRequest, cb api.StreamCallbacks) error {
			cb.OnToken("卦象")
			cb.OnToken("大吉")
			cb.OnDone(api.StreamRecord{Type: "complete", Content: "卦象大吉", AudioURL: "/tts/1.mp3", Mood: "cheerful", SessionID: req.SessionID})
			return nil
		},
	}
	s := newTestStore(fb, Options{})

	msg, err := s.Send(context.Background(), "  帮我算一卦  ")
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if msg == nil || msg.Role != RoleAssistant {
		t.Fatalf("expected assistant message, got %+v", msg)
	}
	if msg.Content != "卦象大吉" {
		t.Errorf("content = %q", msg.Content)
	}
	if msg.Streaming {
		t.Error("message should be settled")
	}
	if msg.AudioURL != "/tts/1.mp3" || msg.Mood != "cheerful" {
		t.Errorf("completion payload not applied: %+v", msg)
	}

	all := s.Messages()
	if len(all) != 2 {
		t.Fatalf("expected user + assistant pair, got %d", len(all))
	}
	if all[0].Role != RoleUser || all[0].Content != "帮我算一卦" {
		t.Errorf("user message wrong: %+v", all[0])
	}
	if fb.lastStreamReq.Query != "帮我算一卦" {
		t.Errorf("stream query = %q", fb.lastStreamReq.Query)
	}
	if s.Streaming() {
		t.Error("streaming gate not released")
	}
}

func TestSend_LazySessionTitleTruncated(t *testing.T) {
	fb := &fakeBackend{}
	s := newTestStore(fb, Options{})

	long := strings.Repeat("运", 20)
	if _, err := s.Send(context.Background(), long); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if len(fb.createdTitles) != 1 {
		t.Fatalf("expected one session create, got %v", fb.createdTitles)
	}
	if got := fb.createdTitles[0]; got != strings.Repeat("运", 16) {
		t.Errorf("title not truncated to 16 runes: %q", got)
	}
	if s.ActiveSessionID() != "sess-1" {
		t.Errorf("active session not set: %q", s.ActiveSessionID())
	}
}

func TestSend_ReusesActiveSession(t *testing.T) {
	fb := &fakeBackend{}
	s := newTestStore(fb, Options{})
	s.SetActiveSession("existing")

	if _, err := s.Send(context.Background(), "hi"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if len(fb.createdTitles) != 0 {
		t.Errorf("no session create expected, got %v", fb.createdTitles)
	}
	if fb.lastStreamReq.SessionID != "existing" {
		t.Errorf("stream should target the active session, got %q", fb.lastStreamReq.SessionID)
	}
}

func TestSend_EmptyMessage(t *testing.T) {
	fb := &fakeBackend{}
	s := newTestStore(fb, Options{})

	if _, err := s.Send(context.Background(), "   "); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}
	if fb.streamCalls != 0 || len(fb.createdTitles) != 0 {
		t.Error("empty send must not touch the backend")
	}
}

func TestSend_SingleFlightGate(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	fb := &fakeBackend{
		streamFn: func(_ context.Context, _ api.StreamRequest, cb api.StreamCallbacks) error {
			close(started)
			<-release
			cb.OnDone(api.StreamRecord{Type: "complete", Content: "x"})
			return nil
		},
	}
	s := newTestStore(fb, Options{})
	s.SetActiveSession("s1")

	errCh := make(chan error, 1)
	go func() {
		_, err := s.Send(context.Background(), "first")
		errCh <- err
	}()
	<-started

	if _, err := s.Send(context.Background(), "second"); !errors.Is(err, ErrStreamBusy) {
		t.Fatalf("expected ErrStreamBusy, got %v", err)
	}

	close(release)
	if err := <-errCh; err != nil {
		t.Fatalf("first send failed: %v", err)
	}

	if fb.streamCalls != 1 {
		t.Errorf("second send must not issue a request, got %d calls", fb.streamCalls)
	}
	if got := len(s.Messages()); got != 2 {
		t.Errorf("second send must not append messages, got %d", got)
	}
}

func TestSend_StreamErrorSettlesPlaceholder(t *testing.T) {
	fb := &fakeBackend{
		streamFn: func(_ context.Context, _ api.StreamRequest, cb api.StreamCallbacks) error {
			cb.OnToken("partial")
			return errors.New("connection reset")
		},
	}
	s := newTestStore(fb, Options{})
	s.SetActiveSession("s1")

	if _, err := s.Send(context.Background(), "hello"); err == nil {
		t.Fatal("expected stream error to propagate")
	}

	msgs := s.Messages()
	if len(msgs) != 2 {
		t.Fatalf("expected message pair, got %d", len(msgs))
	}
	if msgs[1].Streaming {
		t.Error("placeholder must be settled after a stream error")
	}
	if s.Streaming() {
		t.Error("streaming gate not released after error")
	}
}

func TestSend_MissingMoodRefetchedFromHistory(t *testing.T) {
	fb := &fakeBackend{
		history: []api.HistoryItem{
			{ID: "1", Role: RoleUser, Content: "问"},
			{ID: "2", Role: RoleAssistant, Content: "答", Mood: "depressed"},
		},
		streamFn: func(_ context.Context, req api.StreamRequest, cb api.StreamCallbacks) error {
			cb.OnToken("答")
			cb.OnDone(api.StreamRecord{Type: "complete", Content: "答", SessionID: req.SessionID})
			return nil
		},
	}
	s := newTestStore(fb, Options{})
	s.SetActiveSession("s1")

	msg, err := s.Send(context.Background(), "问")
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if msg.Mood != "depressed" {
		t.Errorf("mood not recovered from history, got %q", msg.Mood)
	}
	if fb.historyCalls == 0 {
		t.Error("expected a history re-fetch")
	}
}

func TestSend_MoodRefetchFailureSwallowed(t *testing.T) {
	fb := &fakeBackend{
		historyErr: errors.New("backend sulking"),
		streamFn: func(_ context.Context, req api.StreamRequest, cb api.StreamCallbacks) error {
			cb.OnDone(api.StreamRecord{Type: "complete", Content: "answer", SessionID: req.SessionID})
			return nil
		},
	}
	s := newTestStore(fb, Options{})
	s.SetActiveSession("s1")

	if _, err := s.Send(context.Background(), "q"); err != nil {
		t.Fatalf("mood re-fetch failure must not fail the send: %v", err)
	}
}

func TestSend_ServerSessionRetarget(t *testing.T) {
	fb := &fakeBackend{
		streamFn: func(_ context.Context, _ api.StreamRequest, cb api.StreamCallbacks) error {
			cb.OnDone(api.StreamRecord{Type: "complete", Content: "x", Mood: "friendly", SessionID: "server-side"})
			return nil
		},
	}
	s := newTestStore(fb, Options{})
	s.SetActiveSession("local")

	if _, err := s.Send(context.Background(), "hi"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if got := s.ActiveSessionID(); got != "server-side" {
		t.Errorf("active session should retarget to the server's id, got %q", got)
	}
}

func TestAuthGuard_401ClearsAuthOnAnyCall(t *testing.T) {
	unauthorized := &api.APIError{Status: http.StatusUnauthorized, Message: "expired"}

	cases := []struct {
		name string
		run  func(s *Store) error
	}{
		{"refresh sessions", func(s *Store) error { return s.RefreshSessions(context.Background()) }},
		{"load history", func(s *Store) error { return s.LoadHistory(context.Background(), "s1") }},
		{"send via create", func(s *Store) error { _, err := s.Send(context.Background(), "hi"); return err }},
		{"knowledge submit", func(s *Store) error {
			s.SetActiveSession("s1")
			_, err := s.SubmitKnowledge(context.Background(), "https://x.example.com", "", nil)
			return err
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fired := false
			fb := &fakeBackend{
				listErr:      unauthorized,
				historyErr:   unauthorized,
				createErr:    unauthorized,
				knowledgeErr: unauthorized,
			}
			s := newTestStore(fb, Options{OnUnauthorized: func() { fired = true }})
			if err := tc.run(s); err == nil {
				t.Fatal("expected error")
			}
			if !fired {
				t.Error("401 must trigger the unauthorized hook")
			}
		})
	}
}

func TestAuthGuard_Non401DoesNotFire(t *testing.T) {
	fired := false
	fb := &fakeBackend{listErr: &api.APIError{Status: http.StatusInternalServerError, Message: "boom"}}
	s := newTestStore(fb, Options{OnUnauthorized: func() { fired = true }})

	if err := s.RefreshSessions(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if fired {
		t.Error("non-401 must not clear auth")
	}
}

func TestLoadHistory_NormalizesRows(t *testing.T) {
	fb := &fakeBackend{
		history: []api.HistoryItem{
			{ID: "7", UserMessage: "求姻缘", Response: "良缘将至", Mood: "upbeat", CreatedAt: "2026-03-01T08:00:00Z"},
		},
	}
	s := newTestStore(fb, Options{})

	if err := s.LoadHistory(context.Background(), "s1"); err != nil {
		t.Fatalf("LoadHistory failed: %v", err)
	}
	msgs := s.Messages()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Role != RoleUser || msgs[1].Role != RoleAssistant {
		t.Errorf("pair order wrong: %+v", msgs)
	}
}

func TestSubmitKnowledge_Validation(t *testing.T) {
	fb := &fakeBackend{knowledgeMsg: "知识已添加"}
	s := newTestStore(fb, Options{})

	if _, err := s.SubmitKnowledge(context.Background(), "https://x.example.com", "", nil); !errors.Is(err, ErrNoSession) {
		t.Errorf("expected ErrNoSession, got %v", err)
	}

	s.SetActiveSession("s1")
	if _, err := s.SubmitKnowledge(context.Background(), "   ", "", nil); !errors.Is(err, ErrNoKnowledge) {
		t.Errorf("expected ErrNoKnowledge, got %v", err)
	}

	msg, err := s.SubmitKnowledge(context.Background(), "https://x.example.com", "", nil)
	if err != nil {
		t.Fatalf("SubmitKnowledge failed: %v", err)
	}
	if msg != "知识已添加" {
		t.Errorf("unexpected message: %q", msg)
	}
	if len(fb.knowledgeReqs) != 1 || fb.knowledgeReqs[0].SessionID != "s1" {
		t.Errorf("unexpected request: %+v", fb.knowledgeReqs)
	}
}

func TestDeleteSession_ClearsActiveState(t *testing.T) {
	fb := &fakeBackend{}
	s := newTestStore(fb, Options{})
	s.SetActiveSession("s1")

	if err := s.DeleteSession(context.Background(), "s1"); err != nil {
		t.Fatalf("DeleteSession failed: %v", err)
	}
	if s.ActiveSessionID() != "" {
		t.Error("active session should clear when deleted")
	}
	if len(s.Messages()) != 0 {
		t.Error("transcript should clear when active session deleted")
	}
}

func TestReset_DropsEverything(t *testing.T) {
	fb := &fakeBackend{
		streamFn: func(_ context.Context, req api.StreamRequest, cb api.StreamCallbacks) error {
			cb.OnDone(api.StreamRecord{Type: "complete", Content: "x", Mood: "friendly", SessionID: req.SessionID})
			return nil
		},
	}
	s := newTestStore(fb, Options{})
	s.SetActiveSession("s1")
	if _, err := s.Send(context.Background(), "hi"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	s.Reset()
	if len(s.Messages()) != 0 || s.ActiveSessionID() != "" {
		t.Error("Reset should drop all conversation state")
	}
}
