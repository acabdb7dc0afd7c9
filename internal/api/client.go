// Package api handles communication with the Tianji fortune-telling
// backend: authentication, session management, chat history, knowledge
// attachment, and the streaming chat endpoint.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"github.com/suyan/tianji-cli/internal/config"
)

const restTimeout = 30 * time.Second

// Client communicates with the Tianji backend API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	// streamClient has no overall timeout; streams run until the server
	// closes the connection or the context is cancelled.
	streamClient *http.Client
	logger       *slog.Logger
}

// NewClient creates a client for the configured backend. token may be
// empty for unauthenticated calls (login, register).
func NewClient(cfg *config.Config, token string) *Client {
	return &Client{
		baseURL:      cfg.BaseURL,
		token:        token,
		httpClient:   &http.Client{Timeout: restTimeout},
		streamClient: &http.Client{},
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// SetLogger routes request logging to the given logger.
func (c *Client) SetLogger(l *slog.Logger) {
	if l != nil {
		c.logger = l
	}
}

// BaseURL exposes the backend base for resolving relative media URLs.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) setAuth(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// request performs one JSON round trip and returns the unwrapped payload.
// Non-2xx responses become *APIError; 204 yields a nil payload.
func (c *Client) request(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.setAuth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("could not reach backend at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.Debug("api request", "method", method, "path", path, "status", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, parseAPIError(resp.StatusCode, resp.Header.Get("Content-Type"), data)
	}
	if resp.StatusCode == http.StatusNoContent || len(data) == 0 {
		return nil, nil
	}
	return unwrapEnvelope(data), nil
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	raw, err := c.request(ctx, http.MethodPost, "/auth/login", LoginRequest{Username: username, Password: password})
	if err != nil {
		return "", err
	}

	var payload tokenPayload
	_ = json.Unmarshal(innerObject(raw), &payload)
	token := payload.token()
	if token == "" {
		return "", fmt.Errorf("login failed: no access token in response")
	}
	return token, nil
}

// Register creates a new account. Logging in is a separate step.
func (c *Client) Register(ctx context.Context, req RegisterRequest) error {
	_, err := c.request(ctx, http.MethodPost, "/auth/register", req)
	return err
}

// Me fetches the authenticated user's profile.
func (c *Client) Me(ctx context.Context) (*Profile, error) {
	raw, err := c.request(ctx, http.MethodGet, "/auth/me", nil)
	if err != nil {
		return nil, err
	}
	var p Profile
	if err := json.Unmarshal(innerObject(raw), &p); err != nil {
		return nil, fmt.Errorf("failed to parse profile: %w", err)
	}
	return &p, nil
}

// UpdateMe changes profile fields and returns the updated profile as the
// backend reports it (which may be partial).
func (c *Client) UpdateMe(ctx context.Context, req UpdateProfileRequest) (*Profile, error) {
	raw, err := c.request(ctx, http.MethodPut, "/auth/update_me", req)
	if err != nil {
		return nil, err
	}
	var p Profile
	_ = json.Unmarshal(innerObject(raw), &p)
	return &p, nil
}

// ListSessions returns the user's conversation threads.
func (c *Client) ListSessions(ctx context.Context, skip, limit int) ([]Session, error) {
	path := fmt.Sprintf("/sessions/get_sessions?skip=%d&limit=%d", skip, limit)
	raw, err := c.request(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	return decodeList[Session](raw, sessionListPaths), nil
}

// CreateSession starts a new conversation thread with the given title.
func (c *Client) CreateSession(ctx context.Context, title string) (*Session, error) {
	// "creat_sessions" is the backend's route spelling.
	raw, err := c.request(ctx, http.MethodPost, "/sessions/creat_sessions", map[string]string{"title": title})
	if err != nil {
		return nil, err
	}
	var s Session
	_ = json.Unmarshal(innerObject(raw), &s)
	return &s, nil
}

// RenameSession changes a session's title.
func (c *Client) RenameSession(ctx context.Context, sessionID, title string) error {
	path := "/sessions/update/" + url.PathEscape(sessionID)
	_, err := c.request(ctx, http.MethodPut, path, map[string]string{"title": title})
	return err
}

// DeleteSession removes a session and its history.
func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	path := "/sessions/delete/" + url.PathEscape(sessionID)
	_, err := c.request(ctx, http.MethodDelete, path, nil)
	return err
}

// History fetches stored messages for a session, oldest page first.
func (c *Client) History(ctx context.Context, sessionID string, skip, limit int) ([]HistoryItem, error) {
	path := fmt.Sprintf("/chat/history?session_id=%s&skip=%d&limit=%d", url.QueryEscape(sessionID), skip, limit)
	raw, err := c.request(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	return decodeList[HistoryItem](raw, messageListPaths), nil
}

// Stats returns the backend's aggregate chat statistics payload.
func (c *Client) Stats(ctx context.Context) (map[string]any, error) {
	raw, err := c.request(ctx, http.MethodGet, "/chat/stats", nil)
	if err != nil {
		return nil, err
	}
	var stats map[string]any
	if err := json.Unmarshal(innerObject(raw), &stats); err != nil {
		return nil, fmt.Errorf("failed to parse stats: %w", err)
	}
	return stats, nil
}

// Recent returns history rows across sessions for the last n days.
func (c *Client) Recent(ctx context.Context, days int) ([]HistoryItem, error) {
	path := fmt.Sprintf("/chat/recent?days=%d", days)
	raw, err := c.request(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	return decodeList[HistoryItem](raw, messageListPaths), nil
}

// Send performs a non-streaming chat exchange. The streaming endpoint is
// the primary path; this exists for scripted one-shot use.
func (c *Client) Send(ctx context.Context, req StreamRequest) (*StreamRecord, error) {
	body := map[string]any{"query": req.Query, "enable_tts": req.EnableTTS}
	if req.SessionID != "" {
		body["session_id"] = req.SessionID
	}
	raw, err := c.request(ctx, http.MethodPost, "/chat", body)
	if err != nil {
		return nil, err
	}
	var rec StreamRecord
	_ = json.Unmarshal(innerObject(raw), &rec)
	return &rec, nil
}

// AddKnowledge uploads a URL and/or file as reference material for a
// session. Returns the backend's confirmation message.
func (c *Client) AddKnowledge(ctx context.Context, req AddKnowledgeRequest) (string, error) {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	if req.URL != "" {
		if err := form.WriteField("url", req.URL); err != nil {
			return "", err
		}
	}
	if req.File != nil {
		part, err := form.CreateFormFile("file", req.FileName)
		if err != nil {
			return "", err
		}
		if _, err := io.Copy(part, req.File); err != nil {
			return "", fmt.Errorf("failed to read knowledge file: %w", err)
		}
	}
	if req.SessionID != "" {
		if err := form.WriteField("session_id", req.SessionID); err != nil {
			return "", err
		}
	}
	if err := form.Close(); err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/add_knowledge", &buf)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", form.FormDataContentType())
	c.setAuth(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("could not reach backend at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.Debug("api request", "method", http.MethodPost, "path", "/add_knowledge", "status", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", parseAPIError(resp.StatusCode, resp.Header.Get("Content-Type"), data)
	}

	var msg struct {
		Message string `json:"message"`
		Msg     string `json:"msg"`
	}
	_ = json.Unmarshal(data, &msg)
	switch {
	case msg.Message != "":
		return msg.Message, nil
	case msg.Msg != "":
		return msg.Msg, nil
	default:
		return "knowledge added", nil
	}
}

// ListKnowledge returns the attached sources (URLs or file names) for a
// session.
func (c *Client) ListKnowledge(ctx context.Context, sessionID string) ([]string, error) {
	path := "/knowledge/" + url.PathEscape(sessionID)
	raw, err := c.request(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	return decodeList[string](raw, sourceListPaths), nil
}
