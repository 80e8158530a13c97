package storage

import (
	"testing"

	"waveline/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	dataDir := t.TempDir()
	store, _, err := Open(dataDir)
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close test store: %v", err)
		}
	})

	return store
}

func mustAddConversation(t *testing.T, store *Store, conversationID, title string) {
	t.Helper()

	err := store.UpsertConversation(models.Conversation{
		ID:    conversationID,
		Kind:  models.ConversationKindPrivate,
		Title: title,
	})
	if err != nil {
		t.Fatalf("upsert conversation %q: %v", conversationID, err)
	}
}
