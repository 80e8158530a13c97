package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"waveline/models"
)

var (
	// ErrLoadInFlight indicates a fetch is already running for this
	// conversation. The caller keeps its loading indicator engaged and
	// retries later instead of stacking requests.
	ErrLoadInFlight = errors.New("chat: a history load is already in flight")
)

// PaginatorState is the lifecycle state of the history loader.
type PaginatorState string

const (
	StateIdle        PaginatorState = "IDLE"
	StateLoadingMore PaginatorState = "LOADING_MORE"
	StateRefreshing  PaginatorState = "REFRESHING"
)

// FetchPageFunc loads one page of conversation history. An empty cursor
// requests the newest page.
type FetchPageFunc func(ctx context.Context, conversationID, cursor string) (models.MessagePage, error)

// Paginator drives "load older" and "refresh to latest" fetches for one
// conversation without duplicate in-flight requests.
//
// The in-flight flag, not the state value alone, guards trigger attempts:
// two rapid triggers can both observe IDLE before either transition lands,
// and the flag closes that window.
type Paginator struct {
	conversationID string
	timeline       *Timeline
	fetch          FetchPageFunc

	mu        sync.Mutex
	state     PaginatorState
	inFlight  bool
	cursor    string
	exhausted bool
}

// NewPaginator creates an idle paginator bound to a timeline and a fetch
// function.
func NewPaginator(timeline *Timeline, fetch FetchPageFunc) *Paginator {
	return &Paginator{
		conversationID: timeline.ConversationID(),
		timeline:       timeline,
		fetch:          fetch,
		state:          StateIdle,
	}
}

// State returns the current lifecycle state.
func (p *Paginator) State() PaginatorState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Refreshing reports whether a destructive refresh is in progress. Inbound
// realtime events must not mutate the timeline while this is true; the
// caller buffers them and replays after the refresh completes.
func (p *Paginator) Refreshing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state == StateRefreshing
}

// Cursor returns the current pagination token. Empty plus HasMore()==false
// means the full history is loaded.
func (p *Paginator) Cursor() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cursor
}

// HasMore reports whether older history may still exist.
func (p *Paginator) HasMore() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.exhausted
}

// Refresh fetches the newest page and replaces the timeline contents with
// it. Returns ErrLoadInFlight when any load is already running: refresh is
// never queued behind a load-more, the user retries instead.
func (p *Paginator) Refresh(ctx context.Context) error {
	p.mu.Lock()
	if p.inFlight {
		p.mu.Unlock()
		return ErrLoadInFlight
	}
	p.inFlight = true
	p.state = StateRefreshing
	p.mu.Unlock()

	page, err := p.fetch(ctx, p.conversationID, "")

	p.mu.Lock()
	defer p.mu.Unlock()
	p.inFlight = false
	p.state = StateIdle
	if err != nil {
		return fmt.Errorf("refresh conversation %q: %w", p.conversationID, err)
	}

	p.timeline.ReplaceAll(page.Messages)
	p.cursor = page.NextCursor
	p.exhausted = page.NextCursor == ""
	return nil
}

// LoadMore fetches the page older than the current cursor and appends it to
// the timeline. A trigger without a cursor (no page fetched yet, or history
// exhausted) is a no-op; a trigger while any load is running returns
// ErrLoadInFlight.
func (p *Paginator) LoadMore(ctx context.Context) error {
	p.mu.Lock()
	if p.inFlight {
		p.mu.Unlock()
		return ErrLoadInFlight
	}
	if p.exhausted || p.cursor == "" {
		p.mu.Unlock()
		return nil
	}
	requestCursor := p.cursor
	p.inFlight = true
	p.state = StateLoadingMore
	p.mu.Unlock()

	page, err := p.fetch(ctx, p.conversationID, requestCursor)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.inFlight = false
	p.state = StateIdle
	if err != nil {
		return fmt.Errorf("load older messages for %q: %w", p.conversationID, err)
	}

	// Soft cancellation: a result computed against a superseded cursor is
	// discarded rather than merged.
	if p.cursor != requestCursor {
		return nil
	}

	p.timeline.AppendHistory(page.Messages)
	p.cursor = page.NextCursor
	p.exhausted = page.NextCursor == ""
	return nil
}
