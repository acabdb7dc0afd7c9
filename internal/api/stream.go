package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
)

// Sentinel payloads some backends emit instead of a structured record.
const (
	doneSentinel        = "[DONE]"
	doneSentinelBare    = "DONE"
	streamDataPrefix    = "data:"
	streamReadChunkSize = 4096
)

// StreamChat opens the streaming chat endpoint and dispatches decoded
// records through cb as they arrive. It returns when the server closes
// the stream, the context is cancelled, or reading fails. A non-2xx
// response fails before any callback fires, with an *APIError carrying
// the status. The call holds no state between invocations.
func (c *Client) StreamChat(ctx context.Context, req StreamRequest, cb StreamCallbacks) error {
	body := map[string]any{
		"query":      req.Query,
		"enable_tts": req.EnableTTS,
		"async_mode": true,
	}
	if req.SessionID != "" {
		body["session_id"] = req.SessionID
	}
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/stream", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	c.setAuth(httpReq)

	resp, err := c.streamClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("could not reach backend at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errBody, _ := io.ReadAll(resp.Body)
		return parseAPIError(resp.StatusCode, resp.Header.Get("Content-Type"), errBody)
	}

	c.logger.Debug("stream open", "path", "/chat/stream", "session", req.SessionID)

	ing := &ingestor{sessionID: req.SessionID, cb: cb}
	return ing.consume(resp.Body)
}

// ingestor turns a raw stream body into dispatched records. Splitting
// happens at the byte level on '\n', so multi-byte characters straddling
// read boundaries are never decoded partially: only complete lines are
// ever interpreted as text.
type ingestor struct {
	sessionID   string
	cb          StreamCallbacks
	pending     []byte
	sentContent bool
}

func (g *ingestor) consume(r io.Reader) error {
	buf := make([]byte, streamReadChunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			g.pending = append(g.pending, buf[:n]...)
			for {
				i := bytes.IndexByte(g.pending, '\n')
				if i < 0 {
					break
				}
				line := string(g.pending[:i])
				g.pending = g.pending[i+1:]
				g.handleLine(line)
			}
		}
		if err == io.EOF {
			// A trailing fragment with no newline never became a
			// complete record; it is dropped.
			return nil
		}
		if err != nil {
			return fmt.Errorf("stream read failed: %w", err)
		}
	}
}

func (g *ingestor) handleLine(line string) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, streamDataPrefix) {
		return
	}
	payload := strings.TrimSpace(strings.TrimPrefix(trimmed, streamDataPrefix))
	if payload == "" {
		return
	}

	if payload == doneSentinel || payload == doneSentinelBare {
		// Degenerate completion: no audio, session as sent. More records
		// may still follow, so the loop keeps reading.
		if g.cb.OnDone != nil {
			g.cb.OnDone(StreamRecord{SessionID: g.sessionID})
		}
		return
	}

	rec, ok := parseStreamPayload(payload)
	if !ok {
		// Malformed records are dropped, never fatal.
		return
	}

	switch rec.Type {
	case "content":
		if rec.Content != "" {
			g.sentContent = true
			if g.cb.OnToken != nil {
				g.cb.OnToken(rec.Content)
			}
		}
	case "complete":
		// Some backends only emit a single final blob; surface it as one
		// token if nothing streamed incrementally.
		if rec.Content != "" && !g.sentContent {
			g.sentContent = true
			if g.cb.OnToken != nil {
				g.cb.OnToken(rec.Content)
			}
		}
		if g.cb.OnDone != nil {
			g.cb.OnDone(rec)
		}
	default:
		if rec.AudioURL != "" && g.cb.OnDone != nil {
			g.cb.OnDone(rec)
		}
	}
}

var (
	pyNone  = regexp.MustCompile(`\bNone\b`)
	pyTrue  = regexp.MustCompile(`\bTrue\b`)
	pyFalse = regexp.MustCompile(`\bFalse\b`)
)

// parseStreamPayload decodes one record payload. The strict JSON pass is
// tried first; on failure the payload is normalized from a Python-literal
// shape (None/True/False, single-quoted strings) and retried. Both
// failures collapse to "no record".
func parseStreamPayload(payload string) (StreamRecord, bool) {
	var rec StreamRecord
	if err := json.Unmarshal([]byte(payload), &rec); err == nil {
		return rec, true
	}

	normalized := normalizePythonLiteral(payload)
	if normalized == "" {
		return StreamRecord{}, false
	}
	rec = StreamRecord{}
	if err := json.Unmarshal([]byte(normalized), &rec); err != nil {
		return StreamRecord{}, false
	}
	return rec, true
}

// normalizePythonLiteral rewrites a Python dict repr into JSON: bare
// None/True/False become null/true/false, and single-quote string
// delimiters become double quotes. Escaped single quotes inside strings
// are protected before the global substitution and restored after.
func normalizePythonLiteral(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	s = pyNone.ReplaceAllString(s, "null")
	s = pyTrue.ReplaceAllString(s, "true")
	s = pyFalse.ReplaceAllString(s, "false")

	const placeholder = "\x00SQ\x00"
	s = strings.ReplaceAll(s, `\'`, placeholder)
	s = strings.ReplaceAll(s, `'`, `"`)
	s = strings.ReplaceAll(s, placeholder, `'`)
	return s
}
