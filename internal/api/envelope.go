package api

import (
	"encoding/json"
	"strings"
)

// Backends wrap payloads inconsistently: sometimes bare, sometimes inside
// {data|result: ..., message, code, status, success}. A body is treated as
// an envelope only when every key belongs to the recognized metadata set,
// so domain objects that legitimately carry a "data" field survive intact.
var envelopeKeys = map[string]struct{}{
	"data":    {},
	"result":  {},
	"message": {},
	"msg":     {},
	"code":    {},
	"status":  {},
	"success": {},
}

// Candidate key paths tried in order when locating list payloads.
var (
	sessionListPaths = []string{
		"sessions", "records", "list",
		"data.sessions", "data.records", "data.list",
		"result.sessions", "result.records", "result.list",
		"items", "data.items",
	}
	messageListPaths = []string{
		"messages", "history", "records",
		"data.messages", "data.history", "data.records",
		"result.messages", "result.history", "result.records",
		"items", "data.items",
	}
	sourceListPaths = []string{"sources", "data.sources", "result.sources"}
)

// unwrapEnvelope strips one recognized metadata envelope, or returns the
// body unchanged when it does not look like one.
func unwrapEnvelope(raw json.RawMessage) json.RawMessage {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return raw
	}

	for k := range obj {
		if _, ok := envelopeKeys[k]; !ok {
			return raw
		}
	}
	for _, key := range []string{"data", "result"} {
		if inner, ok := obj[key]; ok {
			return inner
		}
	}
	return raw
}

// innerObject digs one level into {data: ...} / {result: ...} wrappers
// that survive envelope unwrapping (e.g. a session payload inside a
// response that also carried domain keys).
func innerObject(raw json.RawMessage) json.RawMessage {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return raw
	}
	if d, ok := obj["data"]; ok && !isJSONNull(d) {
		return d
	}
	if r, ok := obj["result"]; ok && !isJSONNull(r) {
		return r
	}
	return raw
}

func isJSONNull(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return s == "" || s == "null"
}

// pathValue walks a dot-separated key path through nested JSON objects.
func pathValue(raw json.RawMessage, path string) (json.RawMessage, bool) {
	cur := raw
	for _, key := range strings.Split(path, ".") {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(cur, &obj); err != nil {
			return nil, false
		}
		next, ok := obj[key]
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// resolveList locates a JSON array by trying each candidate path, falling
// back to treating the payload itself as the list.
func resolveList(raw json.RawMessage, paths []string) []json.RawMessage {
	for _, p := range paths {
		v, ok := pathValue(raw, p)
		if !ok {
			continue
		}
		var list []json.RawMessage
		if err := json.Unmarshal(v, &list); err == nil {
			return list
		}
	}
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}
	return nil
}

// decodeList resolves a list payload and decodes each element, dropping
// elements that do not decode.
func decodeList[T any](raw json.RawMessage, paths []string) []T {
	elems := resolveList(raw, paths)
	out := make([]T, 0, len(elems))
	for _, e := range elems {
		var v T
		if err := json.Unmarshal(e, &v); err != nil {
			continue
		}
		out = append(out, v)
	}
	return out
}
