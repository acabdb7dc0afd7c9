// Package mood maps backend mood labels to terminal presentation.
package mood

import "strings"

var emojiByLabel = map[string]string{
	"default":   "😊",
	"friendly":  "😊",
	"upbeat":    "😄",
	"angry":     "😠",
	"depressed": "😔",
	"cheerful":  "😃",
}

// Emoji returns the emoji for a mood label. Unknown labels fall back to
// the default face; empty moods render as nothing.
func Emoji(label string) string {
	if label == "" {
		return ""
	}
	if e, ok := emojiByLabel[strings.ToLower(label)]; ok {
		return e
	}
	return emojiByLabel["default"]
}

// ResolveAudioURL turns a possibly-relative audio path into a fetchable
// URL against the backend base.
func ResolveAudioURL(base, url string) string {
	if url == "" {
		return ""
	}
	if strings.HasPrefix(url, "http") {
		return url
	}
	if strings.HasPrefix(url, "/") {
		return base + url
	}
	return base + "/" + url
}
