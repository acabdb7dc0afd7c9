package chat

import (
	"fmt"
	"sort"
	"time"

	"github.com/suyan/tianji-cli/internal/api"
)

// histEntry keeps the raw timestamp string alongside the message so the
// sort can distinguish "equal timestamps" from "unparseable timestamps".
type histEntry struct {
	msg Message
	raw string
}

var roleOrder = map[string]int{RoleUser: 0, RoleAssistant: 1}

// BuildHistory normalizes stored history rows into messages. Backends
// emit either one row per message or one row per exchange (user side and
// assistant side in the same row); both shapes are accepted. Rows are
// ordered by creation time when parseable, user before assistant on
// ties, and arrival order otherwise.
func BuildHistory(items []api.HistoryItem) []Message {
	var entries []histEntry
	for i, item := range items {
		if item.Role != "" && item.Content != "" {
			id := string(item.ID)
			if id == "" {
				id = fmt.Sprintf("%s-%d", item.Role, i)
			}
			entries = append(entries, histEntry{
				raw: item.Created(),
				msg: Message{
					ID:        id,
					Role:      item.Role,
					Content:   item.Content,
					Mood:      item.Mood,
					CreatedAt: parseTime(item.Created()),
				},
			})
			continue
		}

		pairID := string(item.ID)
		if pairID == "" {
			pairID = fmt.Sprintf("%d", i)
		}
		if content := firstNonEmpty(item.UserMessage, item.Query); content != "" {
			entries = append(entries, histEntry{
				raw: item.Created(),
				msg: Message{
					ID:        "u-" + pairID,
					Role:      RoleUser,
					Content:   content,
					Mood:      item.Mood,
					CreatedAt: parseTime(item.Created()),
				},
			})
		}
		if content := firstNonEmpty(item.AssistantMessage, item.Response); content != "" {
			entries = append(entries, histEntry{
				raw: item.Created(),
				msg: Message{
					ID:        "a-" + pairID,
					Role:      RoleAssistant,
					Content:   content,
					Mood:      item.Mood,
					CreatedAt: parseTime(item.Created()),
				},
			})
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		aOK, bOK := !a.msg.CreatedAt.IsZero(), !b.msg.CreatedAt.IsZero()
		if aOK && bOK && !a.msg.CreatedAt.Equal(b.msg.CreatedAt) {
			return a.msg.CreatedAt.Before(b.msg.CreatedAt)
		}
		if aOK && !bOK {
			return true
		}
		if !aOK && bOK {
			return false
		}
		if a.raw != "" && a.raw == b.raw {
			return roleOrder[a.msg.Role] < roleOrder[b.msg.Role]
		}
		return false // stable sort keeps arrival order
	})

	out := make([]Message, len(entries))
	for i, e := range entries {
		out[i] = e.msg
	}
	return out
}

// timeLayouts covers the timestamp shapes the backend has been seen to
// emit.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// patchLastAssistantMood sets the mood on the most recent assistant
// message, in place. No-op when the mood is empty, already set, or no
// assistant message exists.
func patchLastAssistantMood(messages []Message, mood string) {
	if mood == "" {
		return
	}
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleAssistant {
			if messages[i].Mood != mood {
				messages[i].Mood = mood
			}
			return
		}
	}
}
