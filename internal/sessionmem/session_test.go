package sessionmem

import (
	"testing"
	"time"
)

func TestAppendCreatesSessionAndTrimsToMax(t *testing.T) {
	s := NewStore(2, time.Hour)
	s.Append("sess-1", Message{Role: RoleUser, Content: "one"})
	s.Append("sess-1", Message{Role: RoleAssistant, Content: "two"})
	s.Append("sess-1", Message{Role: RoleUser, Content: "three"})

	history := s.History("sess-1")
	if len(history) != 2 {
		t.Fatalf("len(history) = %d, want 2 (trimmed to maxMessages)", len(history))
	}
	if history[0].Content != "two" || history[1].Content != "three" {
		t.Fatalf("history = %+v, want [two, three]", history)
	}
}

func TestHistoryOfUnknownSessionIsNil(t *testing.T) {
	s := NewStore(10, time.Hour)
	if got := s.History("does-not-exist"); got != nil {
		t.Fatalf("History = %v, want nil", got)
	}
}

func TestSetStatusAndStatus(t *testing.T) {
	s := NewStore(10, time.Hour)
	s.Append("sess-1", Message{Role: RoleUser, Content: "hi"})
	s.SetStatus("sess-1", "waiting_approval")
	if got := s.Status("sess-1"); got != "waiting_approval" {
		t.Fatalf("Status = %q, want waiting_approval", got)
	}
}

func TestClearRemovesSession(t *testing.T) {
	s := NewStore(10, time.Hour)
	s.Append("sess-1", Message{Role: RoleUser, Content: "hi"})
	s.Clear("sess-1")
	if got := s.History("sess-1"); got != nil {
		t.Fatalf("History after Clear = %v, want nil", got)
	}
}

func TestFormatTranscript(t *testing.T) {
	messages := []Message{
		{Role: RoleUser, Content: "hello"},
		{Role: RoleAssistant, Content: "hi there"},
		{Role: RoleTool, ToolName: "Read", Content: "file contents"},
	}
	got := FormatTranscript(messages)
	want := "User: hello\nAssistant: hi there\nTool(Read): file contents\n"
	if got != want {
		t.Fatalf("FormatTranscript = %q, want %q", got, want)
	}
}

func TestFormatTranscriptEmpty(t *testing.T) {
	if got := FormatTranscript(nil); got != "" {
		t.Fatalf("FormatTranscript(nil) = %q, want empty", got)
	}
}
