package ui

import (
	"os"
	"path/filepath"
	"testing"

	"waveline/chat"
	"waveline/models"
	"waveline/realtime"
)

func TestAttachmentMessageTypeByExtension(t *testing.T) {
	cases := []struct {
		path string
		want models.MessageType
	}{
		{"/tmp/photo.PNG", models.MessageTypeImage},
		{"/tmp/clip.mov", models.MessageTypeVideo},
		{"/tmp/report.pdf", models.MessageTypeRaw},
		{"/tmp/noext", models.MessageTypeRaw},
	}
	for _, tc := range cases {
		if got := attachmentMessageType(tc.path); got != tc.want {
			t.Fatalf("attachmentMessageType(%q) = %q, want %q", tc.path, got, tc.want)
		}
	}
}

func TestLocalAttachmentPathRejectsRemoteAndMissing(t *testing.T) {
	if got := localAttachmentPath(models.Message{AttachmentURL: "https://cdn.example.com/a.png"}); got != "" {
		t.Fatalf("expected remote URL to be rejected, got %q", got)
	}
	if got := localAttachmentPath(models.Message{AttachmentURL: "/nonexistent/file.png"}); got != "" {
		t.Fatalf("expected missing file to be rejected, got %q", got)
	}

	path := filepath.Join(t.TempDir(), "a.png")
	if err := os.WriteFile(path, []byte("png"), 0o600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	if got := localAttachmentPath(models.Message{AttachmentURL: path}); got != path {
		t.Fatalf("expected local path %q, got %q", path, got)
	}
}

func TestConversationTitleFallsBackToMembers(t *testing.T) {
	withTitle := models.Conversation{ID: "c1", Title: "Ops"}
	if got := conversationTitle(withTitle); got != "Ops" {
		t.Fatalf("expected explicit title, got %q", got)
	}

	withMembers := models.Conversation{
		ID: "c2",
		Members: []models.Profile{
			{ID: "p1", DisplayName: "Nina"},
			{ID: "p2", DisplayName: "Tom"},
		},
	}
	if got := conversationTitle(withMembers); got != "Nina, Tom" {
		t.Fatalf("expected member names, got %q", got)
	}

	bare := models.Conversation{ID: "c3"}
	if got := conversationTitle(bare); got != "c3" {
		t.Fatalf("expected ID fallback, got %q", got)
	}
}

func TestReplayPendingEventsAppliesInOrder(t *testing.T) {
	timeline := chat.NewTimeline("conv-1")
	timeline.ReplaceAll([]models.Message{
		{ID: "m1", ConversationID: "conv-1", SenderID: "p2", Content: "hello", Type: models.MessageTypeText, CreatedAt: 1000},
	})

	ctrl := &controller{timeline: timeline}
	inbound := models.Message{ID: "m2", ConversationID: "conv-1", SenderID: "p2", Content: "draft", Type: models.MessageTypeText, CreatedAt: 2000}
	ctrl.pendingEvents = []inboundEvent{
		{message: &inbound},
		{edit: &realtime.EditEvent{ConversationID: "conv-1", MessageID: "m2", NewContent: "final"}},
		{recall: &realtime.RecallEvent{ConversationID: "conv-1", MessageID: "m1"}},
	}

	ctrl.replayPendingEvents()

	if len(ctrl.pendingEvents) != 0 {
		t.Fatalf("expected pending queue to drain, %d left", len(ctrl.pendingEvents))
	}
	messages := timeline.Messages()
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages after replay, got %d", len(messages))
	}
	if messages[0].ID != "m2" || messages[0].Content != "final" {
		t.Fatalf("expected edited m2 first, got %+v", messages[0])
	}
	if !messages[1].IsRecalled {
		t.Fatalf("expected m1 to be recalled after replay")
	}
}

func TestReplayIsIdempotentAgainstRefreshSnapshot(t *testing.T) {
	timeline := chat.NewTimeline("conv-1")
	// The refresh snapshot already contains the message the buffered event
	// carries.
	timeline.ReplaceAll([]models.Message{
		{ID: "m1", ConversationID: "conv-1", SenderID: "p2", Content: "hello", Type: models.MessageTypeText, CreatedAt: 1000},
	})

	ctrl := &controller{timeline: timeline}
	duplicate := models.Message{ID: "m1", ConversationID: "conv-1", SenderID: "p2", Content: "hello", Type: models.MessageTypeText, CreatedAt: 1000}
	ctrl.pendingEvents = []inboundEvent{{message: &duplicate}}

	ctrl.replayPendingEvents()

	if timeline.Len() != 1 {
		t.Fatalf("expected replayed duplicate to be a no-op, got %d messages", timeline.Len())
	}
}

func TestDeleteEventFallsBackToTempID(t *testing.T) {
	timeline := chat.NewTimeline("conv-1")
	timeline.PrependOptimistic(models.Message{TempID: "tmp-1", ConversationID: "conv-1", SenderID: "p1", Content: "x", Type: models.MessageTypeText})

	ctrl := &controller{timeline: timeline}
	ctrl.applyInboundEvent(inboundEvent{delete: &realtime.DeleteEvent{ConversationID: "conv-1", TempID: "tmp-1"}})

	if timeline.Len() != 0 {
		t.Fatalf("expected optimistic entry removed via temp ID, got %d messages", timeline.Len())
	}
}
