package ui

import (
	"errors"
	"fmt"

	"waveline/models"
	"waveline/realtime"
	"waveline/storage"
)

// bridgeHandlers wires the realtime channel into the controller. Events for
// the open conversation mutate the visible timeline; events for any other
// conversation only touch the cached summaries.
func (c *controller) bridgeHandlers() realtime.Handlers {
	return realtime.Handlers{
		OnMessage:      c.handleInboundMessage,
		OnRecall:       c.handleInboundRecall,
		OnDelete:       c.handleInboundDelete,
		OnEdit:         c.handleInboundEdit,
		OnUnread:       c.handleUnreadUpdate,
		OnPresence:     c.handlePresenceUpdate,
		OnSocketError:  c.handleSocketError,
		OnConnected:    func() { c.setStatus("Connected") },
		OnDisconnected: func(err error) { c.setStatus(fmt.Sprintf("Realtime connection lost: %v", err)) },
	}
}

// isVisible reports whether the conversation is the one on screen. The
// timeline is the gate rather than the session: the session only flips open
// after the socket acknowledges, and events must not miss the transcript in
// that window.
func (c *controller) isVisible(conversationID string) bool {
	timeline, _ := c.currentChatState()
	return timeline != nil && timeline.ConversationID() == conversationID
}

// bufferWhileRefreshing holds an event back when a refresh is replacing the
// timeline, so the event is not lost under the incoming snapshot. Returns
// true when the event was queued.
func (c *controller) bufferWhileRefreshing(event inboundEvent) bool {
	_, paginator := c.currentChatState()
	if paginator == nil || !paginator.Refreshing() {
		return false
	}

	c.pendingMu.Lock()
	c.pendingEvents = append(c.pendingEvents, event)
	c.pendingMu.Unlock()
	return true
}

// replayPendingEvents applies events buffered during a refresh in arrival
// order. Applying is idempotent, so an event the refresh snapshot already
// contains is a no-op.
func (c *controller) replayPendingEvents() {
	c.pendingMu.Lock()
	pending := c.pendingEvents
	c.pendingEvents = nil
	c.pendingMu.Unlock()

	for _, event := range pending {
		c.applyInboundEvent(event)
	}
}

func (c *controller) applyInboundEvent(event inboundEvent) {
	timeline, _ := c.currentChatState()
	if timeline == nil {
		return
	}

	switch {
	case event.message != nil:
		timeline.ApplyInbound(*event.message)
	case event.recall != nil:
		timeline.MarkRecalled(event.recall.MessageID)
	case event.delete != nil:
		id := event.delete.MessageID
		if id == "" {
			id = event.delete.TempID
		}
		timeline.Remove(id)
	case event.edit != nil:
		timeline.UpdateContent(event.edit.MessageID, event.edit.NewContent)
	}
}

func (c *controller) handleInboundMessage(message models.Message) {
	if message.ID != "" {
		// A reconnect can redeliver a message the previous session already
		// processed.
		if seen, err := c.store.HasSeenID(message.ID); err == nil && seen {
			return
		}
		if err := c.store.SaveMessages([]models.Message{message}); err != nil {
			c.setStatus(fmt.Sprintf("Cache inbound message failed: %v", err))
		}
		if err := c.store.InsertSeenID(message.ID, message.CreatedAt); err != nil {
			c.setStatus(fmt.Sprintf("Record seen message failed: %v", err))
		}
	}

	if !c.isVisible(message.ConversationID) {
		c.bumpConversationActivity(message)
		return
	}

	if c.bufferWhileRefreshing(inboundEvent{message: &message}) {
		return
	}
	c.applyInboundEvent(inboundEvent{message: &message})
	c.renderTranscript()

	// The viewer is looking at this thread, so the message is read on
	// arrival.
	c.bridge.MarkRead(c.cfg.ProfileID, message.ConversationID)
}

func (c *controller) handleInboundRecall(event realtime.RecallEvent) {
	if err := c.store.MarkRecalled(event.MessageID); err != nil && !errors.Is(err, storage.ErrNotFound) {
		c.setStatus(fmt.Sprintf("Cache recall failed: %v", err))
	}

	if !c.isVisible(event.ConversationID) {
		return
	}
	if c.bufferWhileRefreshing(inboundEvent{recall: &event}) {
		return
	}
	c.applyInboundEvent(inboundEvent{recall: &event})
	c.renderTranscript()
}

func (c *controller) handleInboundDelete(event realtime.DeleteEvent) {
	if event.MessageID != "" {
		if err := c.store.RemoveMessage(event.MessageID); err != nil && !errors.Is(err, storage.ErrNotFound) {
			c.setStatus(fmt.Sprintf("Cache delete failed: %v", err))
		}
	}

	if !c.isVisible(event.ConversationID) {
		return
	}
	if c.bufferWhileRefreshing(inboundEvent{delete: &event}) {
		return
	}
	c.applyInboundEvent(inboundEvent{delete: &event})
	c.renderTranscript()
}

func (c *controller) handleInboundEdit(event realtime.EditEvent) {
	if err := c.store.UpdateMessageContent(event.MessageID, event.NewContent, event.UpdatedAt); err != nil && !errors.Is(err, storage.ErrNotFound) {
		c.setStatus(fmt.Sprintf("Cache edit failed: %v", err))
	}

	if !c.isVisible(event.ConversationID) {
		return
	}
	if c.bufferWhileRefreshing(inboundEvent{edit: &event}) {
		return
	}
	c.applyInboundEvent(inboundEvent{edit: &event})
	c.renderTranscript()
}

// handleUnreadUpdate applies the backend's authoritative unread counter.
// The open conversation stays at zero; the viewer is already reading it.
func (c *controller) handleUnreadUpdate(event realtime.UnreadEvent) {
	if c.isVisible(event.ConversationID) {
		return
	}

	if err := c.store.SetUnread(event.ConversationID, event.UnreadCount); err != nil && !errors.Is(err, storage.ErrNotFound) {
		c.setStatus(fmt.Sprintf("Cache unread update failed: %v", err))
	}

	c.convMu.Lock()
	for i := range c.conversations {
		if c.conversations[i].ID == event.ConversationID {
			c.conversations[i].UnreadCount = event.UnreadCount
			if event.LastMessage != "" {
				c.conversations[i].LastMessage = event.LastMessage
			}
			if event.LastMessageAt > 0 {
				c.conversations[i].LastMessageAt = event.LastMessageAt
			}
			break
		}
	}
	c.convMu.Unlock()
	c.refreshConversationList()
}

func (c *controller) handlePresenceUpdate(event realtime.PresenceEvent) {
	c.convMu.Lock()
	for i := range c.conversations {
		for j := range c.conversations[i].Members {
			if c.conversations[i].Members[j].ID == event.ProfileID {
				c.conversations[i].Members[j].Status = event.Status
				if event.LastSeenAt > 0 {
					c.conversations[i].Members[j].LastSeenAt = event.LastSeenAt
				}
			}
		}
	}
	c.convMu.Unlock()
	c.refreshConversationList()
	c.updateChatHeader()
}

func (c *controller) handleSocketError(event realtime.SocketErrorEvent) {
	c.setStatus(fmt.Sprintf("Realtime error: %s", event.Message))
}

// bumpConversationActivity updates the list pane for a message in a
// conversation that is not on screen.
func (c *controller) bumpConversationActivity(message models.Message) {
	preview := messagePreview(message)
	if err := c.store.RecordActivity(message.ConversationID, preview, message.CreatedAt); err != nil && !errors.Is(err, storage.ErrNotFound) {
		c.setStatus(fmt.Sprintf("Record activity failed: %v", err))
	}

	known := false
	c.convMu.Lock()
	for i := range c.conversations {
		if c.conversations[i].ID == message.ConversationID {
			c.conversations[i].LastMessage = preview
			c.conversations[i].LastMessageAt = message.CreatedAt
			c.conversations[i].UnreadCount++
			known = true
			break
		}
	}
	c.convMu.Unlock()

	if !known {
		// First message of a conversation this client has never listed.
		c.loadConversations()
		return
	}
	c.refreshConversationList()
}
