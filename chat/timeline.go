package chat

import (
	"log"
	"sort"
	"sync"
	"time"

	"waveline/models"
)

// Timeline is the in-memory source of truth for one conversation's messages.
//
// Messages are kept in non-increasing CreatedAt order (newest first, matching
// the inverted transcript presentation). All mutation funnels through
// reconciliation-aware operations so the final state converges regardless of
// the arrival order of REST acknowledgments and realtime echoes. Operations
// never fail; anomalies are logged and ignored.
type Timeline struct {
	mu             sync.RWMutex
	conversationID string
	messages       []models.Message
}

// NewTimeline creates an empty timeline for one conversation.
func NewTimeline(conversationID string) *Timeline {
	return &Timeline{conversationID: conversationID}
}

// ConversationID returns the owning conversation.
func (t *Timeline) ConversationID() string {
	return t.conversationID
}

// Messages returns a copy of the current collection, newest first.
func (t *Timeline) Messages() []models.Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]models.Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// Len returns the number of stored messages.
func (t *Timeline) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages)
}

// ReplaceAll swaps the whole collection, de-duplicated by id (temp id for
// pending entries) and sorted newest first. Used after a full refresh fetch.
// Replacing with the same input twice yields the same observable state.
func (t *Timeline) ReplaceAll(messages []models.Message) {
	deduped := make([]models.Message, 0, len(messages))
	seen := make(map[string]bool, len(messages))
	for _, msg := range messages {
		key := msg.Key()
		if key == "" {
			log.Printf("chat: dropping message without id or temp id in ReplaceAll")
			continue
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		if msg.Delivery == "" {
			if msg.Pending() {
				msg.Delivery = models.DeliveryPending
			} else {
				msg.Delivery = models.DeliverySent
			}
		}
		deduped = append(deduped, msg)
	}
	sortNewestFirst(deduped)

	t.mu.Lock()
	t.messages = deduped
	t.mu.Unlock()
}

// AppendHistory merges an older page fetched through pagination. Entries
// already present (by server id) are skipped, so re-fetching an overlapping
// page cannot duplicate messages.
func (t *Timeline) AppendHistory(messages []models.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, msg := range messages {
		if msg.ID == "" {
			log.Printf("chat: dropping history message without server id")
			continue
		}
		if t.indexOfID(msg.ID) >= 0 {
			continue
		}
		msg.Delivery = models.DeliverySent
		t.insertSorted(msg)
	}
}

// PrependOptimistic inserts a client-authored message at the most-recent
// position before the backend has acknowledged it. The entry must carry a
// temp id and no server id. A duplicate temp id is rejected silently: that
// signals a caller bug, not a user-facing error.
func (t *Timeline) PrependOptimistic(message models.Message) bool {
	if message.TempID == "" || message.ID != "" {
		log.Printf("chat: rejecting optimistic insert without temp-only identity (id=%q tempId=%q)", message.ID, message.TempID)
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.indexOfTempID(message.TempID) >= 0 {
		log.Printf("chat: duplicate optimistic insert for temp id %q ignored", message.TempID)
		return false
	}

	message.Delivery = models.DeliveryPending
	if message.CreatedAt == 0 {
		message.CreatedAt = time.Now().UnixMilli()
	}
	t.messages = append([]models.Message{message}, t.messages...)
	return true
}

// Reconcile merges the server-confirmed counterpart of an optimistic entry,
// located by temp id. Server fields win; a locally-known attachment URI is
// retained when the acknowledgment does not echo one. When no entry matches
// the temp id (for example the acknowledgment outlived an eviction), the
// server message is inserted fresh instead.
func (t *Timeline) Reconcile(tempID string, server models.Message) {
	if tempID == "" || server.ID == "" {
		log.Printf("chat: reconcile needs a temp id and a server id (tempId=%q id=%q)", tempID, server.ID)
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	// The realtime echo of our own send may have landed first. In that case
	// the confirmed entry already exists and the pending one is redundant.
	if existing := t.indexOfID(server.ID); existing >= 0 {
		if pending := t.indexOfTempID(tempID); pending >= 0 && pending != existing {
			t.messages = append(t.messages[:pending], t.messages[pending+1:]...)
		}
		return
	}

	idx := t.indexOfTempID(tempID)
	if idx < 0 {
		server.Delivery = models.DeliverySent
		t.insertSorted(server)
		return
	}

	local := t.messages[idx]
	merged := server
	// Temp id is kept through the transition window so late delete or edit
	// confirmations correlated by temp id still match.
	merged.TempID = local.TempID
	merged.Delivery = models.DeliverySent
	if merged.Content == "" {
		merged.Content = local.Content
	}
	if merged.Type == "" {
		merged.Type = local.Type
	}
	merged.AttachmentURL = firstNonEmpty(server.AttachmentURL, server.ThumbnailURL, local.AttachmentURL)
	if merged.AttachmentName == "" {
		merged.AttachmentName = local.AttachmentName
	}
	if merged.AttachmentSize == 0 {
		merged.AttachmentSize = local.AttachmentSize
	}
	if merged.CreatedAt == 0 {
		merged.CreatedAt = local.CreatedAt
	}

	t.messages[idx] = merged
	sortNewestFirst(t.messages)
}

// ApplyInbound inserts a message delivered over the realtime channel.
// Messages already present (matched by server id) are ignored, and pending
// entries keep their position.
func (t *Timeline) ApplyInbound(message models.Message) {
	if message.ID == "" {
		log.Printf("chat: ignoring inbound message without server id")
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.indexOfID(message.ID) >= 0 {
		return
	}

	message.Delivery = models.DeliverySent
	t.insertSorted(message)
}

// MarkRecalled flags a message as recalled. Recall is irreversible; repeated
// or unknown-id calls are no-ops.
func (t *Timeline) MarkRecalled(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	idx := t.indexOfID(id)
	if idx < 0 {
		log.Printf("chat: recall for unknown message %q ignored", id)
		return
	}
	if t.messages[idx].IsRecalled {
		return
	}
	t.messages[idx].IsRecalled = true
}

// Remove deletes a message by server id, falling back to temp id matching to
// cover a delete confirmation that outpaces reconciliation. Deleting an
// unknown message is expected under concurrent multi-device delivery and is
// a logged no-op.
func (t *Timeline) Remove(id string) {
	if id == "" {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	idx := t.indexOfID(id)
	if idx < 0 {
		idx = t.indexOfTempID(id)
	}
	if idx < 0 {
		log.Printf("chat: delete for unknown message %q ignored", id)
		return
	}
	t.messages = append(t.messages[:idx], t.messages[idx+1:]...)
}

// UpdateContent applies an edit. Re-delivering the current content is a
// no-op and does not flip the edited flag, so idempotent redeliveries never
// produce a spurious "edited" label.
func (t *Timeline) UpdateContent(id, newContent string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	idx := t.indexOfID(id)
	if idx < 0 {
		log.Printf("chat: edit for unknown message %q ignored", id)
		return
	}
	if t.messages[idx].Content == newContent {
		return
	}
	t.messages[idx].Content = newContent
	t.messages[idx].IsEdited = true
	t.messages[idx].UpdatedAt = time.Now().UnixMilli()
}

// MarkFailed flags an optimistic entry whose send request failed. The entry
// stays visible so the user can retry or delete it.
func (t *Timeline) MarkFailed(tempID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	idx := t.indexOfTempID(tempID)
	if idx < 0 {
		log.Printf("chat: send failure for unknown temp id %q ignored", tempID)
		return
	}
	t.messages[idx].Delivery = models.DeliveryFailed
}

// indexOfID returns the position of the message with the given server id,
// or -1. Caller must hold the lock.
func (t *Timeline) indexOfID(id string) int {
	if id == "" {
		return -1
	}
	for i := range t.messages {
		if t.messages[i].ID == id {
			return i
		}
	}
	return -1
}

// indexOfTempID returns the position of the entry with the given temp id,
// or -1. Caller must hold the lock.
func (t *Timeline) indexOfTempID(tempID string) int {
	if tempID == "" {
		return -1
	}
	for i := range t.messages {
		if t.messages[i].TempID == tempID {
			return i
		}
	}
	return -1
}

// insertSorted places a message at its newest-first position without
// reordering entries that share its timestamp. Caller must hold the lock.
func (t *Timeline) insertSorted(message models.Message) {
	pos := len(t.messages)
	for i := range t.messages {
		if t.messages[i].CreatedAt < message.CreatedAt {
			pos = i
			break
		}
	}
	t.messages = append(t.messages, models.Message{})
	copy(t.messages[pos+1:], t.messages[pos:])
	t.messages[pos] = message
}

func sortNewestFirst(messages []models.Message) {
	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].CreatedAt > messages[j].CreatedAt
	})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
