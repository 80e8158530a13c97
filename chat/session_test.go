package chat

import (
	"context"
	"errors"
	"testing"
)

type recordingAnnouncer struct {
	opened  []string
	closed  []string
	read    []string
	openErr error
}

func (r *recordingAnnouncer) OpenConversation(_ context.Context, _, conversationID string) error {
	if r.openErr != nil {
		return r.openErr
	}
	r.opened = append(r.opened, conversationID)
	return nil
}

func (r *recordingAnnouncer) CloseConversation(_, conversationID string) {
	r.closed = append(r.closed, conversationID)
}

func (r *recordingAnnouncer) MarkRead(_, conversationID string) {
	r.read = append(r.read, conversationID)
}

func TestSessionSwitchClosesPreviousFirst(t *testing.T) {
	announcer := &recordingAnnouncer{}
	session := NewSession("alice", announcer)

	if err := session.Open(context.Background(), "c1"); err != nil {
		t.Fatalf("open c1 failed: %v", err)
	}
	if err := session.Open(context.Background(), "c2"); err != nil {
		t.Fatalf("open c2 failed: %v", err)
	}

	if len(announcer.closed) != 1 || announcer.closed[0] != "c1" {
		t.Fatalf("expected c1 closed on switch, got %v", announcer.closed)
	}
	if len(announcer.opened) != 2 || announcer.opened[1] != "c2" {
		t.Fatalf("expected open sequence [c1 c2], got %v", announcer.opened)
	}
	if !session.IsOpen("c2") || session.IsOpen("c1") {
		t.Fatalf("expected c2 open, got %q", session.Current())
	}
	if len(announcer.read) != 2 {
		t.Fatalf("expected mark-read per open, got %v", announcer.read)
	}
}

func TestSessionOpenFailureKeepsPrevious(t *testing.T) {
	announcer := &recordingAnnouncer{}
	session := NewSession("alice", announcer)
	if err := session.Open(context.Background(), "c1"); err != nil {
		t.Fatalf("open c1 failed: %v", err)
	}

	announcer.openErr = errors.New("register timed out")
	if err := session.Open(context.Background(), "c2"); err == nil {
		t.Fatalf("expected open failure to propagate")
	}
	// The failed target never became current.
	if session.Current() == "c2" {
		t.Fatalf("failed open became current")
	}
}

func TestSessionCloseEmitsOnce(t *testing.T) {
	announcer := &recordingAnnouncer{}
	session := NewSession("alice", announcer)
	if err := session.Open(context.Background(), "c1"); err != nil {
		t.Fatalf("open failed: %v", err)
	}

	session.Close()
	session.Close()

	if len(announcer.closed) != 1 {
		t.Fatalf("expected one close emit, got %v", announcer.closed)
	}
	if session.Current() != "" {
		t.Fatalf("session still open after Close: %q", session.Current())
	}
}
