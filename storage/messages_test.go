package storage

import (
	"errors"
	"testing"

	"waveline/models"
)

func TestMessageCacheRoundTrip(t *testing.T) {
	store := newTestStore(t)
	mustAddConversation(t, store, "conv-1", "Alice")

	oldAt := nowUnixMilli() - 10_000
	newAt := nowUnixMilli()

	err := store.SaveMessages([]models.Message{
		{
			ID:             "msg-old",
			ConversationID: "conv-1",
			SenderID:       "alice",
			Content:        "older message",
			Type:           models.MessageTypeText,
			CreatedAt:      oldAt,
		},
		{
			ID:             "msg-new",
			ConversationID: "conv-1",
			SenderID:       "self",
			Content:        "newer message",
			Type:           models.MessageTypeText,
			CreatedAt:      newAt,
		},
		{
			ID:             "msg-photo",
			ConversationID: "conv-1",
			SenderID:       "alice",
			Type:           models.MessageTypeImage,
			AttachmentURL:  "https://cdn.example/p.jpg",
			AttachmentName: "p.jpg",
			AttachmentSize: 2048,
			ThumbnailURL:   "https://cdn.example/p_thumb.jpg",
			CreatedAt:      newAt + 1,
		},
	})
	if err != nil {
		t.Fatalf("SaveMessages failed: %v", err)
	}

	cached, err := store.CachedMessages("conv-1", 10)
	if err != nil {
		t.Fatalf("CachedMessages failed: %v", err)
	}
	if len(cached) != 3 {
		t.Fatalf("expected 3 cached messages, got %d", len(cached))
	}
	if cached[0].ID != "msg-photo" || cached[2].ID != "msg-old" {
		t.Fatalf("cached messages are not ordered newest first: %q, %q, %q",
			cached[0].ID, cached[1].ID, cached[2].ID)
	}
	if cached[0].AttachmentURL != "https://cdn.example/p.jpg" || cached[0].AttachmentSize != 2048 {
		t.Fatalf("attachment fields did not survive the round trip: %+v", cached[0])
	}
	if cached[0].Delivery != models.DeliverySent {
		t.Fatalf("cached messages must read back as sent, got %q", cached[0].Delivery)
	}
}

func TestSaveMessagesSkipsOptimisticEntries(t *testing.T) {
	store := newTestStore(t)
	mustAddConversation(t, store, "conv-1", "Alice")

	err := store.SaveMessages([]models.Message{
		{TempID: "tmp-1", ConversationID: "conv-1", SenderID: "self", Content: "not yet acknowledged"},
		{ID: "msg-1", ConversationID: "conv-1", SenderID: "self", Content: "acknowledged"},
	})
	if err != nil {
		t.Fatalf("SaveMessages failed: %v", err)
	}

	cached, err := store.CachedMessages("conv-1", 10)
	if err != nil {
		t.Fatalf("CachedMessages failed: %v", err)
	}
	if len(cached) != 1 || cached[0].ID != "msg-1" {
		t.Fatalf("expected only the confirmed message in cache, got %+v", cached)
	}
}

func TestSaveMessagesUpsertIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	mustAddConversation(t, store, "conv-1", "Alice")

	first := models.Message{
		ID: "msg-1", ConversationID: "conv-1", SenderID: "self",
		Content: "original", Type: models.MessageTypeText, CreatedAt: nowUnixMilli(),
	}
	if err := store.SaveMessages([]models.Message{first}); err != nil {
		t.Fatalf("first SaveMessages failed: %v", err)
	}

	first.Content = "revised"
	first.IsEdited = true
	first.UpdatedAt = nowUnixMilli()
	if err := store.SaveMessages([]models.Message{first}); err != nil {
		t.Fatalf("second SaveMessages failed: %v", err)
	}

	cached, err := store.CachedMessages("conv-1", 10)
	if err != nil {
		t.Fatalf("CachedMessages failed: %v", err)
	}
	if len(cached) != 1 {
		t.Fatalf("upsert duplicated a row: %d entries", len(cached))
	}
	if cached[0].Content != "revised" || !cached[0].IsEdited {
		t.Fatalf("upsert did not refresh fields: %+v", cached[0])
	}
}

func TestMarkRecalledBlanksContent(t *testing.T) {
	store := newTestStore(t)
	mustAddConversation(t, store, "conv-1", "Alice")

	if err := store.SaveMessages([]models.Message{{
		ID: "msg-1", ConversationID: "conv-1", SenderID: "alice",
		Content: "take this back", CreatedAt: nowUnixMilli(),
	}}); err != nil {
		t.Fatalf("SaveMessages failed: %v", err)
	}

	if err := store.MarkRecalled("msg-1"); err != nil {
		t.Fatalf("MarkRecalled failed: %v", err)
	}

	message, err := store.CachedMessage("msg-1")
	if err != nil {
		t.Fatalf("CachedMessage failed: %v", err)
	}
	if !message.IsRecalled || message.Content != "" {
		t.Fatalf("recall did not blank the message: %+v", message)
	}

	if err := store.MarkRecalled("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown message, got %v", err)
	}
}

func TestRemoveAndEditCachedMessage(t *testing.T) {
	store := newTestStore(t)
	mustAddConversation(t, store, "conv-1", "Alice")

	if err := store.SaveMessages([]models.Message{
		{ID: "msg-1", ConversationID: "conv-1", SenderID: "self", Content: "first", CreatedAt: 1_000},
		{ID: "msg-2", ConversationID: "conv-1", SenderID: "self", Content: "second", CreatedAt: 2_000},
	}); err != nil {
		t.Fatalf("SaveMessages failed: %v", err)
	}

	if err := store.UpdateMessageContent("msg-1", "first, fixed", 3_000); err != nil {
		t.Fatalf("UpdateMessageContent failed: %v", err)
	}
	edited, err := store.CachedMessage("msg-1")
	if err != nil {
		t.Fatalf("CachedMessage failed: %v", err)
	}
	if edited.Content != "first, fixed" || !edited.IsEdited || edited.UpdatedAt != 3_000 {
		t.Fatalf("edit not applied: %+v", edited)
	}

	if err := store.RemoveMessage("msg-2"); err != nil {
		t.Fatalf("RemoveMessage failed: %v", err)
	}
	if _, err := store.CachedMessage("msg-2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after remove, got %v", err)
	}
	if err := store.RemoveMessage("msg-2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for repeated remove, got %v", err)
	}
}

func TestPruneConversationCacheKeepsNewest(t *testing.T) {
	store := newTestStore(t)
	mustAddConversation(t, store, "conv-1", "Alice")

	batch := make([]models.Message, 0, 10)
	for i := 0; i < 10; i++ {
		batch = append(batch, models.Message{
			ID:             "msg-" + string(rune('a'+i)),
			ConversationID: "conv-1",
			SenderID:       "alice",
			Content:        "entry",
			CreatedAt:      int64(1_000 + i),
		})
	}
	if err := store.SaveMessages(batch); err != nil {
		t.Fatalf("SaveMessages failed: %v", err)
	}

	pruned, err := store.PruneConversationCache("conv-1", 4)
	if err != nil {
		t.Fatalf("PruneConversationCache failed: %v", err)
	}
	if pruned != 6 {
		t.Fatalf("expected 6 pruned rows, got %d", pruned)
	}

	cached, err := store.CachedMessages("conv-1", 100)
	if err != nil {
		t.Fatalf("CachedMessages failed: %v", err)
	}
	if len(cached) != 4 {
		t.Fatalf("expected 4 survivors, got %d", len(cached))
	}
	if cached[0].CreatedAt != 1_009 {
		t.Fatalf("prune removed the newest rows: head CreatedAt %d", cached[0].CreatedAt)
	}
}

func TestSaveMessagesRejectsInvalidType(t *testing.T) {
	store := newTestStore(t)
	mustAddConversation(t, store, "conv-1", "Alice")

	err := store.SaveMessages([]models.Message{{
		ID: "msg-1", ConversationID: "conv-1", SenderID: "self",
		Type: models.MessageType("GIFT"),
	}})
	if err == nil {
		t.Fatalf("expected invalid message type to be rejected")
	}
}
