package chat

import (
	"testing"

	"github.com/suyan/tianji-cli/internal/api"
)

func TestBuildHistory_PerMessageRows(t *testing.T) {
	items := []api.HistoryItem{
		{ID: "2", Role: RoleAssistant, Content: "卦象平稳", Mood: "friendly", CreatedAt: "2026-03-01T10:00:05Z"},
		{ID: "1", Role: RoleUser, Content: "问运势", CreatedAt: "2026-03-01T10:00:00Z"},
	}
	msgs := BuildHistory(items)
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Role != RoleUser || msgs[1].Role != RoleAssistant {
		t.Errorf("messages not reordered by time: %+v", msgs)
	}
	if msgs[1].Mood != "friendly" {
		t.Errorf("mood lost: %+v", msgs[1])
	}
}

func TestBuildHistory_PairedRows(t *testing.T) {
	items := []api.HistoryItem{
		{ID: "10", UserMessage: "求签", AssistantMessage: "上上签", Mood: "cheerful", CreatedAt: "2026-03-01T09:00:00Z"},
		{ID: "11", Query: "解签", Response: "签文曰...", CreatedAt: "2026-03-01T09:05:00Z"},
	}
	msgs := BuildHistory(items)
	if len(msgs) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(msgs))
	}
	wantIDs := []string{"u-10", "a-10", "u-11", "a-11"}
	for i, want := range wantIDs {
		if msgs[i].ID != want {
			t.Errorf("message %d id = %q, want %q", i, msgs[i].ID, want)
		}
	}
	if msgs[1].Content != "上上签" || msgs[3].Content != "签文曰..." {
		t.Errorf("pair contents wrong: %+v", msgs)
	}
}

func TestBuildHistory_TimestampTieUserFirst(t *testing.T) {
	items := []api.HistoryItem{
		{ID: "2", Role: RoleAssistant, Content: "答", CreatedAt: "2026-03-01T10:00:00Z"},
		{ID: "1", Role: RoleUser, Content: "问", CreatedAt: "2026-03-01T10:00:00Z"},
	}
	msgs := BuildHistory(items)
	if msgs[0].Role != RoleUser {
		t.Errorf("user should sort before assistant on equal timestamps, got %+v", msgs)
	}
}

func TestBuildHistory_UnparseableTimesKeepArrivalOrder(t *testing.T) {
	items := []api.HistoryItem{
		{ID: "1", Role: RoleUser, Content: "first", CreatedAt: "someday"},
		{ID: "2", Role: RoleAssistant, Content: "second", CreatedAt: "another day"},
	}
	msgs := BuildHistory(items)
	if msgs[0].Content != "first" || msgs[1].Content != "second" {
		t.Errorf("arrival order not preserved: %+v", msgs)
	}
}

func TestBuildHistory_ParseableSortsBeforeUnparseable(t *testing.T) {
	items := []api.HistoryItem{
		{ID: "1", Role: RoleUser, Content: "undated"},
		{ID: "2", Role: RoleUser, Content: "dated", CreatedAt: "2026-03-01T10:00:00Z"},
	}
	msgs := BuildHistory(items)
	if msgs[0].Content != "dated" {
		t.Errorf("dated rows should sort first: %+v", msgs)
	}
}

func TestBuildHistory_SkipsEmptyRows(t *testing.T) {
	items := []api.HistoryItem{
		{ID: "1"},
		{ID: "2", Role: RoleUser, Content: "kept"},
	}
	msgs := BuildHistory(items)
	if len(msgs) != 1 || msgs[0].Content != "kept" {
		t.Errorf("empty rows should vanish: %+v", msgs)
	}
}

func TestPatchLastAssistantMood(t *testing.T) {
	msgs := []Message{
		{ID: "1", Role: RoleUser},
		{ID: "2", Role: RoleAssistant, Mood: "friendly"},
		{ID: "3", Role: RoleUser},
		{ID: "4", Role: RoleAssistant},
	}
	patchLastAssistantMood(msgs, "angry")
	if msgs[3].Mood != "angry" {
		t.Errorf("last assistant message not patched: %+v", msgs[3])
	}
	if msgs[1].Mood != "friendly" {
		t.Errorf("earlier assistant message must not change: %+v", msgs[1])
	}

	patchLastAssistantMood(msgs, "")
	if msgs[3].Mood != "angry" {
		t.Error("empty mood must be a no-op")
	}
}

func TestPatchLastAssistantMood_NoAssistant(t *testing.T) {
	msgs := []Message{{ID: "1", Role: RoleUser}}
	patchLastAssistantMood(msgs, "angry") // must not panic
	if msgs[0].Mood != "" {
		t.Errorf("user message must not get a mood: %+v", msgs[0])
	}
}
