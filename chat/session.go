package chat

import (
	"context"
	"fmt"
	"sync"
)

// Announcer tells the backend which conversation the viewer currently has
// open. The realtime bridge implements it.
type Announcer interface {
	// OpenConversation is acknowledgment-based; it returns once the backend
	// confirms or the bounded wait expires.
	OpenConversation(ctx context.Context, profileID, conversationID string) error
	// CloseConversation and MarkRead are fire-and-forget.
	CloseConversation(profileID, conversationID string)
	MarkRead(profileID, conversationID string)
}

// Session tracks the single open conversation for the viewer. Inbound
// realtime events are applied to the active timeline only when their
// conversation is the open one; everything else feeds unread counters and
// previews.
type Session struct {
	viewerID  string
	announcer Announcer

	mu   sync.Mutex
	open string
}

// NewSession creates a session with no open conversation.
func NewSession(viewerID string, announcer Announcer) *Session {
	return &Session{viewerID: viewerID, announcer: announcer}
}

// ViewerID returns the viewer's profile id.
func (s *Session) ViewerID() string {
	return s.viewerID
}

// Current returns the open conversation id, or empty when none is open.
func (s *Session) Current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// IsOpen reports whether the given conversation is the open one.
func (s *Session) IsOpen(conversationID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return conversationID != "" && s.open == conversationID
}

// Open switches the session to a conversation. The previous conversation is
// closed first (best-effort, fire-and-forget) so the backend never sees two
// open conversations for one viewer.
func (s *Session) Open(ctx context.Context, conversationID string) error {
	if conversationID == "" {
		return fmt.Errorf("open conversation: conversation id is required")
	}

	s.mu.Lock()
	previous := s.open
	s.mu.Unlock()

	if previous != "" && previous != conversationID {
		s.announcer.CloseConversation(s.viewerID, previous)
	}

	if err := s.announcer.OpenConversation(ctx, s.viewerID, conversationID); err != nil {
		return fmt.Errorf("open conversation %q: %w", conversationID, err)
	}

	s.mu.Lock()
	s.open = conversationID
	s.mu.Unlock()

	s.announcer.MarkRead(s.viewerID, conversationID)
	return nil
}

// Close leaves the open conversation, if any.
func (s *Session) Close() {
	s.mu.Lock()
	current := s.open
	s.open = ""
	s.mu.Unlock()

	if current != "" {
		s.announcer.CloseConversation(s.viewerID, current)
	}
}
