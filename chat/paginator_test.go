package chat

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"waveline/models"
)

// blockingFetch lets a test hold a fetch open while concurrent triggers fire.
type blockingFetch struct {
	mu       sync.Mutex
	started  chan struct{}
	release  chan struct{}
	calls    atomic.Int32
	pages    map[string]models.MessagePage
	fetchErr error
}

func newBlockingFetch(pages map[string]models.MessagePage) *blockingFetch {
	return &blockingFetch{
		started: make(chan struct{}, 8),
		release: make(chan struct{}),
		pages:   pages,
	}
}

func (f *blockingFetch) fetch(_ context.Context, _, cursor string) (models.MessagePage, error) {
	f.calls.Add(1)
	f.started <- struct{}{}
	<-f.release
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return models.MessagePage{}, f.fetchErr
	}
	return f.pages[cursor], nil
}

func immediateFetch(pages map[string]models.MessagePage, calls *atomic.Int32) FetchPageFunc {
	return func(_ context.Context, _, cursor string) (models.MessagePage, error) {
		if calls != nil {
			calls.Add(1)
		}
		return pages[cursor], nil
	}
}

func TestRefreshReplacesAndStoresCursor(t *testing.T) {
	pages := map[string]models.MessagePage{
		"": {
			Messages: []models.Message{
				confirmed("m5", "c1", "bob", "5", 5_000),
				confirmed("m4", "c1", "bob", "4", 4_000),
				confirmed("m3", "c1", "bob", "3", 3_000),
				confirmed("m2", "c1", "bob", "2", 2_000),
				confirmed("m1", "c1", "bob", "1", 1_000),
			},
			NextCursor: "cur2",
		},
	}

	timeline := NewTimeline("c1")
	timeline.ReplaceAll([]models.Message{confirmed("stale", "c1", "bob", "stale", 100)})

	paginator := NewPaginator(timeline, immediateFetch(pages, nil))
	if err := paginator.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	if timeline.Len() != 5 {
		t.Fatalf("expected 5 messages after refresh, got %d", timeline.Len())
	}
	if got := paginator.Cursor(); got != "cur2" {
		t.Fatalf("expected cursor cur2, got %q", got)
	}
	if !paginator.HasMore() {
		t.Fatalf("non-empty next cursor should leave history open")
	}
	if got := paginator.State(); got != StateIdle {
		t.Fatalf("expected IDLE after refresh, got %q", got)
	}
}

func TestRapidLoadMoreTriggersFetchOnce(t *testing.T) {
	pages := map[string]models.MessagePage{
		"":     {Messages: []models.Message{confirmed("m2", "c1", "bob", "2", 2_000)}, NextCursor: "cur2"},
		"cur2": {Messages: []models.Message{confirmed("m1", "c1", "bob", "1", 1_000)}},
	}

	timeline := NewTimeline("c1")
	blocking := newBlockingFetch(pages)
	paginator := NewPaginator(timeline, blocking.fetch)

	// Initial refresh establishes the cursor.
	refreshErr := make(chan error, 1)
	go func() {
		refreshErr <- paginator.Refresh(context.Background())
	}()
	<-blocking.started
	close(blocking.release)
	if err := <-refreshErr; err != nil {
		t.Fatalf("refresh failed: %v", err)
	}

	// Re-arm the gate for the load-more race.
	blocking.release = make(chan struct{})

	firstErr := make(chan error, 1)
	go func() {
		firstErr <- paginator.LoadMore(context.Background())
	}()
	<-blocking.started

	// Second trigger while the first fetch is still in flight.
	if err := paginator.LoadMore(context.Background()); !errors.Is(err, ErrLoadInFlight) {
		t.Fatalf("expected ErrLoadInFlight for concurrent trigger, got %v", err)
	}

	close(blocking.release)
	if err := <-firstErr; err != nil {
		t.Fatalf("first LoadMore failed: %v", err)
	}

	// One refresh plus exactly one load-more reached the network.
	if got := blocking.calls.Load(); got != 2 {
		t.Fatalf("expected 2 fetches (refresh + one load-more), got %d", got)
	}
	if paginator.HasMore() {
		t.Fatalf("empty next cursor should terminate pagination")
	}
}

func TestLoadMoreWithoutCursorIsNoOp(t *testing.T) {
	timeline := NewTimeline("c1")
	var calls atomic.Int32
	paginator := NewPaginator(timeline, immediateFetch(nil, &calls))

	if err := paginator.LoadMore(context.Background()); err != nil {
		t.Fatalf("LoadMore before first page should be a no-op, got %v", err)
	}
	if calls.Load() != 0 {
		t.Fatalf("LoadMore without cursor reached the network")
	}
}

func TestRefreshRejectedWhileLoadInFlight(t *testing.T) {
	pages := map[string]models.MessagePage{
		"":     {Messages: []models.Message{confirmed("m2", "c1", "bob", "2", 2_000)}, NextCursor: "cur2"},
		"cur2": {Messages: []models.Message{confirmed("m1", "c1", "bob", "1", 1_000)}},
	}

	timeline := NewTimeline("c1")
	blocking := newBlockingFetch(pages)
	paginator := NewPaginator(timeline, blocking.fetch)

	refreshErr := make(chan error, 1)
	go func() {
		refreshErr <- paginator.Refresh(context.Background())
	}()
	<-blocking.started

	if got := paginator.State(); got != StateRefreshing {
		t.Fatalf("expected REFRESHING during fetch, got %q", got)
	}
	if !paginator.Refreshing() {
		t.Fatalf("Refreshing() false during refresh")
	}
	if err := paginator.LoadMore(context.Background()); !errors.Is(err, ErrLoadInFlight) {
		t.Fatalf("expected ErrLoadInFlight during refresh, got %v", err)
	}

	close(blocking.release)
	if err := <-refreshErr; err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
}

func TestLoadMoreErrorReturnsToIdle(t *testing.T) {
	timeline := NewTimeline("c1")
	pages := map[string]models.MessagePage{
		"": {Messages: []models.Message{confirmed("m2", "c1", "bob", "2", 2_000)}, NextCursor: "cur2"},
	}
	var calls atomic.Int32
	boom := errors.New("backend unavailable")
	fetch := func(ctx context.Context, conversationID, cursor string) (models.MessagePage, error) {
		if cursor == "" {
			return pages[""], nil
		}
		calls.Add(1)
		return models.MessagePage{}, boom
	}

	paginator := NewPaginator(timeline, fetch)
	if err := paginator.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}

	if err := paginator.LoadMore(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped fetch error, got %v", err)
	}
	if got := paginator.State(); got != StateIdle {
		t.Fatalf("expected IDLE after failed load, got %q", got)
	}
	// The cursor is unchanged, so the user can retry.
	if err := paginator.LoadMore(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("retry did not reach the network: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 load-more attempts, got %d", calls.Load())
	}
}
