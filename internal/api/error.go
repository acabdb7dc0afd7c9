package api

import (
	"encoding/json"
	"fmt"
	"strings"
)

// APIError is a non-2xx backend response. Status is kept so callers can
// react to specific codes (401 triggers a client-side logout upstream).
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend error (status %d): %s", e.Status, e.Message)
}

// parseAPIError extracts a human-readable message from an error body.
// JSON bodies carry {detail: string | [{msg}, ...]}; anything else is
// treated as plain text.
func parseAPIError(status int, contentType string, body []byte) *APIError {
	msg := "request failed"

	if strings.Contains(contentType, "application/json") {
		var payload struct {
			Detail json.RawMessage `json:"detail"`
		}
		if err := json.Unmarshal(body, &payload); err == nil && len(payload.Detail) > 0 {
			var s string
			if err := json.Unmarshal(payload.Detail, &s); err == nil && s != "" {
				msg = s
			} else {
				var items []struct {
					Msg string `json:"msg"`
				}
				if err := json.Unmarshal(payload.Detail, &items); err == nil && len(items) > 0 {
					parts := make([]string, 0, len(items))
					for _, it := range items {
						parts = append(parts, it.Msg)
					}
					msg = strings.Join(parts, ", ")
				}
			}
		}
	} else if text := strings.TrimSpace(string(body)); text != "" {
		msg = text
	}

	return &APIError{Status: status, Message: msg}
}
