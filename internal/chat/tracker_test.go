package chat_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pulseai/pulsewatch/internal/chat"
	"github.com/pulseai/pulsewatch/internal/database"
)

const testTimeout = 5 * time.Minute

func newTestTracker(t *testing.T, store database.Store) *chat.Tracker {
	t.Helper()
	tracker, err := chat.NewTracker(context.Background(), store, testTimeout, nil)
	if err != nil {
		t.Fatalf("NewTracker() error: %v", err)
	}
	return tracker
}

func TestTrackerResolveLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newMemStore()
	tracker := newTestTracker(t, store)

	t0 := time.Date(2025, 6, 2, 10, 0, 0, 0, time.Local)

	chatID, err := tracker.Resolve(ctx, "alice", t0)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if chatID != 1 {
		t.Fatalf("first contact chat id = %d, want 1", chatID)
	}

	// Within the window: same chat.
	chatID, err = tracker.Resolve(ctx, "alice", t0.Add(4*time.Minute))
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if chatID != 1 {
		t.Errorf("chat id within window = %d, want 1", chatID)
	}

	// Exactly at the boundary still continues the chat.
	chatID, _ = tracker.Resolve(ctx, "alice", t0.Add(4*time.Minute).Add(testTimeout))
	if chatID != 1 {
		t.Errorf("chat id at boundary = %d, want 1", chatID)
	}

	// Past the window: next chat.
	last := t0.Add(4 * time.Minute).Add(testTimeout)
	chatID, _ = tracker.Resolve(ctx, "alice", last.Add(testTimeout+time.Second))
	if chatID != 2 {
		t.Errorf("chat id after expiry = %d, want 2", chatID)
	}

	// Another counterpart is independent.
	chatID, _ = tracker.Resolve(ctx, "bob", t0)
	if chatID != 1 {
		t.Errorf("independent counterpart chat id = %d, want 1", chatID)
	}

	// Sessions are written through to the store.
	row, ok := store.storedSession("alice")
	if !ok {
		t.Fatal("alice session was not persisted")
	}
	if row.ChatID != 2 {
		t.Errorf("persisted chat id = %d, want 2", row.ChatID)
	}
}

func TestTrackerPeekDoesNotMutate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tracker := newTestTracker(t, newMemStore())

	t0 := time.Now()
	if _, _, ok := tracker.Peek("ghost", t0); ok {
		t.Error("Peek() for unseen counterpart should report ok=false")
	}

	if _, err := tracker.Resolve(ctx, "alice", t0); err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}

	chatID, active, ok := tracker.Peek("alice", t0.Add(time.Minute))
	if !ok || !active || chatID != 1 {
		t.Fatalf("Peek() = (%d, %v, %v), want (1, true, true)", chatID, active, ok)
	}

	// Peeking past expiry must classify as inactive without advancing.
	_, active, _ = tracker.Peek("alice", t0.Add(testTimeout+time.Minute))
	if active {
		t.Error("Peek() past expiry should report inactive")
	}
	chatID, _ = tracker.Resolve(ctx, "alice", t0.Add(2*time.Minute))
	if chatID != 1 {
		t.Errorf("Peek must not extend or advance the session; Resolve got chat %d, want 1", chatID)
	}
}

func TestTrackerForceClose(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tracker := newTestTracker(t, newMemStore())

	now := time.Now()
	if _, err := tracker.Resolve(ctx, "alice", now); err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}

	if err := tracker.ForceClose(ctx, "alice"); err != nil {
		t.Fatalf("ForceClose() error: %v", err)
	}

	if _, active, _ := tracker.Peek("alice", now); active {
		t.Error("session still active after ForceClose")
	}

	// The next message, even seconds later, starts the following chat.
	chatID, err := tracker.Resolve(ctx, "alice", now.Add(10*time.Second))
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if chatID != 2 {
		t.Errorf("chat id after force close = %d, want 2", chatID)
	}

	// Idempotent, and a no-op for unknown counterparts.
	if err := tracker.ForceClose(ctx, "alice"); err != nil {
		t.Errorf("second ForceClose() error: %v", err)
	}
	if err := tracker.ForceClose(ctx, "nobody"); err != nil {
		t.Errorf("ForceClose() for unknown counterpart error: %v", err)
	}
}

func TestTrackerLoadsPersistedSessions(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newMemStore()
	lastActivity := time.Now().Add(-time.Minute)
	if err := store.SaveChatSession(ctx, &database.ChatSession{
		Counterpart:  "alice",
		ChatID:       7,
		LastActivity: lastActivity,
	}); err != nil {
		t.Fatalf("seed session: %v", err)
	}
	// A malformed row must not block startup; its counterpart starts fresh.
	store.sessions["broken"] = database.ChatSession{Counterpart: "broken", ChatID: -1}

	tracker := newTestTracker(t, store)

	chatID, active, ok := tracker.Peek("alice", time.Now())
	if !ok || !active || chatID != 7 {
		t.Errorf("restored session = (%d, %v, %v), want (7, true, true)", chatID, active, ok)
	}

	chatID, err := tracker.Resolve(ctx, "broken", time.Now())
	if err != nil {
		t.Fatalf("Resolve() for corrupt row error: %v", err)
	}
	if chatID != 1 {
		t.Errorf("corrupt row should restart at chat 1, got %d", chatID)
	}
}

func TestTrackerStorageErrorPropagates(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newMemStore()
	tracker := newTestTracker(t, store)

	store.failSaveSession = true
	if _, err := tracker.Resolve(ctx, "alice", time.Now()); err == nil {
		t.Error("Resolve() should surface the storage error")
	}
}

// TestTrackerConcurrentResolve checks per-counterpart linearizability: many
// concurrent resolutions within the active window must produce at most one
// increment in total, and the final last-activity must be the latest time
// observed.
func TestTrackerConcurrentResolve(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newMemStore()
	tracker := newTestTracker(t, store)

	t0 := time.Date(2025, 6, 2, 10, 0, 0, 0, time.Local)
	if _, err := tracker.Resolve(ctx, "alice", t0); err != nil {
		t.Fatalf("seed Resolve() error: %v", err)
	}

	const goroutines = 50

	// Phase 1: all within the window. No increments allowed.
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(offset int) {
			defer wg.Done()
			now := t0.Add(time.Duration(offset+1) * time.Second)
			chatID, err := tracker.Resolve(ctx, "alice", now)
			if err != nil {
				t.Errorf("Resolve() error: %v", err)
			}
			if chatID != 1 {
				t.Errorf("chat id within window = %d, want 1", chatID)
			}
		}(i)
	}
	wg.Wait()

	latest := t0.Add(goroutines * time.Second)
	if _, active, _ := tracker.Peek("alice", latest.Add(testTimeout)); !active {
		t.Error("final last-activity update was lost")
	}

	// Phase 2: all past the window at the same instant. Exactly one
	// increment in total.
	expiredAt := latest.Add(testTimeout + time.Minute)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			chatID, err := tracker.Resolve(ctx, "alice", expiredAt)
			if err != nil {
				t.Errorf("Resolve() error: %v", err)
			}
			if chatID != 2 {
				t.Errorf("chat id after concurrent expiry = %d, want 2", chatID)
			}
		}()
	}
	wg.Wait()

	row, _ := store.storedSession("alice")
	if row.ChatID != 2 {
		t.Errorf("persisted chat id = %d, want exactly one increment to 2", row.ChatID)
	}
}

func TestTrackerAggregate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tracker := newTestTracker(t, newMemStore())

	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.Local)
	mustResolve := func(counterpart string, at time.Time) {
		t.Helper()
		if _, err := tracker.Resolve(ctx, counterpart, at); err != nil {
			t.Fatalf("Resolve(%s) error: %v", counterpart, err)
		}
	}

	mustResolve("alice", now.Add(-time.Minute))
	mustResolve("bob", now.Add(-10*time.Minute))
	mustResolve("carol", now.Add(-4*time.Minute))

	stats := tracker.Aggregate(now)
	if stats.ActiveChats != 2 || stats.ClosedChats != 1 || stats.TotalUsers != 3 {
		t.Fatalf("Aggregate() = %d active, %d closed, %d total; want 2/1/3",
			stats.ActiveChats, stats.ClosedChats, stats.TotalUsers)
	}
	if len(stats.ActiveChatList) != 2 || len(stats.ClosedChatList) != 1 {
		t.Fatalf("list sizes = %d/%d, want 2/1",
			len(stats.ActiveChatList), len(stats.ClosedChatList))
	}
	if stats.ClosedChatList[0].Counterpart != "bob" {
		t.Errorf("closed list = %v, want bob", stats.ClosedChatList[0].Counterpart)
	}
	// Sorted by counterpart for stable output.
	if stats.ActiveChatList[0].Counterpart != "alice" || stats.ActiveChatList[1].Counterpart != "carol" {
		t.Errorf("active list order = %v, %v; want alice, carol",
			stats.ActiveChatList[0].Counterpart, stats.ActiveChatList[1].Counterpart)
	}

	// Six minutes of silence later the same counterparts read as closed.
	later := tracker.Aggregate(now.Add(6 * time.Minute))
	if later.ActiveChats != 0 || later.ClosedChats != 3 {
		t.Errorf("after 6 minutes = %d active, %d closed; want 0/3",
			later.ActiveChats, later.ClosedChats)
	}
}
