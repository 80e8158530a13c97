package storage

import (
	"errors"
	"testing"

	"waveline/models"
)

func TestConversationUpsertAndOrdering(t *testing.T) {
	store := newTestStore(t)

	err := store.UpsertConversation(models.Conversation{
		ID:            "conv-quiet",
		Kind:          models.ConversationKindPrivate,
		Title:         "Quiet thread",
		LastMessage:   "see you",
		LastMessageAt: 1_000,
	})
	if err != nil {
		t.Fatalf("UpsertConversation failed: %v", err)
	}

	err = store.UpsertConversation(models.Conversation{
		ID:   "conv-busy",
		Kind: models.ConversationKindGroup,
		Members: []models.Profile{
			{ID: "alice", DisplayName: "Alice"},
			{ID: "bob", DisplayName: "Bob"},
		},
		LastMessage:   "lunch?",
		LastMessageAt: 2_000,
		UnreadCount:   2,
	})
	if err != nil {
		t.Fatalf("UpsertConversation group failed: %v", err)
	}

	conversations, err := store.Conversations()
	if err != nil {
		t.Fatalf("Conversations failed: %v", err)
	}
	if len(conversations) != 2 {
		t.Fatalf("expected 2 conversations, got %d", len(conversations))
	}
	if conversations[0].ID != "conv-busy" {
		t.Fatalf("conversations are not ordered by recent activity: head %q", conversations[0].ID)
	}
	if len(conversations[0].Members) != 2 || conversations[0].Members[1].DisplayName != "Bob" {
		t.Fatalf("members did not survive the round trip: %+v", conversations[0].Members)
	}

	// Refreshing an existing row must replace, not duplicate.
	err = store.UpsertConversation(models.Conversation{
		ID:            "conv-quiet",
		Kind:          models.ConversationKindPrivate,
		Title:         "Renamed thread",
		LastMessageAt: 5_000,
	})
	if err != nil {
		t.Fatalf("UpsertConversation refresh failed: %v", err)
	}
	conversations, err = store.Conversations()
	if err != nil {
		t.Fatalf("Conversations after refresh failed: %v", err)
	}
	if len(conversations) != 2 || conversations[0].Title != "Renamed thread" {
		t.Fatalf("refresh did not replace the row: %+v", conversations)
	}
}

func TestRecordActivityBumpsUnread(t *testing.T) {
	store := newTestStore(t)
	mustAddConversation(t, store, "conv-1", "Alice")

	if err := store.RecordActivity("conv-1", "ping", 4_000); err != nil {
		t.Fatalf("first RecordActivity failed: %v", err)
	}
	if err := store.RecordActivity("conv-1", "ping again", 5_000); err != nil {
		t.Fatalf("second RecordActivity failed: %v", err)
	}

	conversation, err := store.Conversation("conv-1")
	if err != nil {
		t.Fatalf("Conversation failed: %v", err)
	}
	if conversation.UnreadCount != 2 {
		t.Fatalf("expected unread count 2, got %d", conversation.UnreadCount)
	}
	if conversation.LastMessage != "ping again" || conversation.LastMessageAt != 5_000 {
		t.Fatalf("preview not updated: %+v", conversation)
	}

	if err := store.ClearUnread("conv-1"); err != nil {
		t.Fatalf("ClearUnread failed: %v", err)
	}
	conversation, err = store.Conversation("conv-1")
	if err != nil {
		t.Fatalf("Conversation after clear failed: %v", err)
	}
	if conversation.UnreadCount != 0 {
		t.Fatalf("expected unread count 0 after clear, got %d", conversation.UnreadCount)
	}
}

func TestSetUnreadClampsNegative(t *testing.T) {
	store := newTestStore(t)
	mustAddConversation(t, store, "conv-1", "Alice")

	if err := store.SetUnread("conv-1", -3); err != nil {
		t.Fatalf("SetUnread failed: %v", err)
	}
	conversation, err := store.Conversation("conv-1")
	if err != nil {
		t.Fatalf("Conversation failed: %v", err)
	}
	if conversation.UnreadCount != 0 {
		t.Fatalf("negative unread count must clamp to 0, got %d", conversation.UnreadCount)
	}
}

func TestConversationNotFound(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.Conversation("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := store.RecordActivity("missing", "x", 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown conversation, got %v", err)
	}
	if err := store.UpsertConversation(models.Conversation{ID: "c", Kind: "broadcast"}); err == nil {
		t.Fatalf("expected invalid conversation kind to be rejected")
	}
}

func TestRemoveConversationDropsCachedMessages(t *testing.T) {
	store := newTestStore(t)
	mustAddConversation(t, store, "conv-1", "Alice")

	err := store.SaveMessages([]models.Message{
		{ID: "m1", ConversationID: "conv-1", SenderID: "p2", Content: "hi", Type: models.MessageTypeText, CreatedAt: 1000},
	})
	if err != nil {
		t.Fatalf("SaveMessages failed: %v", err)
	}

	if err := store.RemoveConversation("conv-1"); err != nil {
		t.Fatalf("RemoveConversation failed: %v", err)
	}
	if _, err := store.Conversation("conv-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected conversation gone, got %v", err)
	}
	messages, err := store.CachedMessages("conv-1", 10)
	if err != nil {
		t.Fatalf("CachedMessages failed: %v", err)
	}
	if len(messages) != 0 {
		t.Fatalf("expected cached messages removed, got %d", len(messages))
	}
	if err := store.RemoveConversation("conv-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second remove, got %v", err)
	}
}
