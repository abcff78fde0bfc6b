package chat

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/pulseai/pulsewatch/internal/database"
)

// forceCloseHeadroom is how far beyond the timeout a force-close back-dates
// last activity, so readers compute the session as expired regardless of
// minor clock differences.
const forceCloseHeadroom = time.Hour

// Tracker is the chat session table: one entry per counterpart, holding the
// current logical chat id and last activity time. Entries live in memory as
// the authoritative working set and are written through to the Store on
// every mutation. The Tracker is the sole writer of chat_sessions rows.
//
// Whether a session is "active" or "closed" is a pure function of its
// last-activity time and the clock; nothing is ever swept or deleted, so
// cardinality is bounded only by the number of distinct counterparts seen.
type Tracker struct {
	store   database.Store
	logger  *slog.Logger
	timeout time.Duration

	mu       sync.RWMutex
	sessions map[string]*session
}

// session state for one counterpart. Its mutex serializes all transitions
// for that counterpart, which makes Resolve linearizable per key.
type session struct {
	mu           sync.Mutex
	chatID       int64
	lastActivity time.Time
}

// SessionView is a read-only snapshot of one counterpart's session.
type SessionView struct {
	Counterpart  string    `json:"counterpart"`
	ChatID       int64     `json:"chat_id"`
	LastActivity time.Time `json:"last_activity"`
}

// NewTracker creates a Tracker and loads existing session rows from the
// store. Malformed rows (non-positive chat id, zero activity time) are
// skipped: the counterpart is treated as unseen and gets a fresh session
// on its next message rather than blocking ingestion.
func NewTracker(ctx context.Context, store database.Store, timeout time.Duration, logger *slog.Logger) (*Tracker, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("session timeout must be positive, got %s", timeout)
	}

	t := &Tracker{
		store:    store,
		logger:   logger.With("component", "tracker"),
		timeout:  timeout,
		sessions: make(map[string]*session),
	}

	rows, err := store.GetChatSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load chat sessions: %w", err)
	}
	for _, row := range rows {
		if row.Counterpart == "" || row.ChatID <= 0 || row.LastActivity.IsZero() {
			t.logger.Warn("skipping malformed chat session row",
				"counterpart", row.Counterpart, "chat_id", row.ChatID)
			continue
		}
		t.sessions[row.Counterpart] = &session{
			chatID:       row.ChatID,
			lastActivity: row.LastActivity,
		}
	}

	t.logger.Info("chat session table loaded", "sessions", len(t.sessions), "timeout", timeout)
	return t, nil
}

// Timeout returns the inactivity window after which a session is closed.
func (t *Tracker) Timeout() time.Duration {
	return t.timeout
}

// entry returns the session for a counterpart, creating an unseen
// placeholder if needed.
func (t *Tracker) entry(counterpart string) *session {
	t.mu.RLock()
	e, ok := t.sessions[counterpart]
	t.mu.RUnlock()
	if ok {
		return e
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok = t.sessions[counterpart]; ok {
		return e
	}
	e = &session{}
	t.sessions[counterpart] = e
	return e
}

// Resolve advances the session for a counterpart and returns the chat id
// the message at 'now' belongs to. First contact opens chat 1; activity
// within the timeout continues the current chat and refreshes last
// activity; activity after expiry increments the chat id and starts a new
// logical chat on the same row.
//
// The returned chat id is valid even when an error is reported; the error
// means the durable write failed and the caller must surface it.
func (t *Tracker) Resolve(ctx context.Context, counterpart string, now time.Time) (int64, error) {
	if counterpart == "" {
		return 0, fmt.Errorf("counterpart cannot be empty")
	}

	e := t.entry(counterpart)
	e.mu.Lock()
	defer e.mu.Unlock()

	switch {
	case e.chatID == 0:
		e.chatID = 1
		t.logger.Info("new counterpart, opening first chat", "counterpart", counterpart)
	case now.Sub(e.lastActivity) > t.timeout:
		e.chatID++
		t.logger.Info("session expired, opening next chat",
			"counterpart", counterpart, "chat_id", e.chatID)
	}
	if now.After(e.lastActivity) {
		e.lastActivity = now
	}

	if err := t.persist(ctx, counterpart, e); err != nil {
		return e.chatID, err
	}
	return e.chatID, nil
}

// Peek classifies the session for a counterpart at 'now' without mutating
// it. Returns ok=false for unseen counterparts.
func (t *Tracker) Peek(counterpart string, now time.Time) (chatID int64, active bool, ok bool) {
	t.mu.RLock()
	e, found := t.sessions[counterpart]
	t.mu.RUnlock()
	if !found {
		return 0, false, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.chatID == 0 {
		return 0, false, false
	}
	return e.chatID, now.Sub(e.lastActivity) <= t.timeout, true
}

// ForceClose back-dates the session's last activity so it is immediately
// computed as expired. Idempotent; a no-op for unknown counterparts.
func (t *Tracker) ForceClose(ctx context.Context, counterpart string) error {
	t.mu.RLock()
	e, found := t.sessions[counterpart]
	t.mu.RUnlock()
	if !found {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.chatID == 0 {
		return nil
	}

	e.lastActivity = time.Now().Add(-(t.timeout + forceCloseHeadroom))
	t.logger.Info("chat force-closed", "counterpart", counterpart, "chat_id", e.chatID)

	return t.persist(ctx, counterpart, e)
}

// persist writes the session through to the store. Callers hold e.mu.
func (t *Tracker) persist(ctx context.Context, counterpart string, e *session) error {
	err := t.store.SaveChatSession(ctx, &database.ChatSession{
		Counterpart:  counterpart,
		ChatID:       e.chatID,
		LastActivity: e.lastActivity,
	})
	if err != nil {
		return fmt.Errorf("failed to persist session for %q: %w", counterpart, err)
	}
	return nil
}

// Snapshot returns a point-in-time view of every known session.
func (t *Tracker) Snapshot() []SessionView {
	t.mu.RLock()
	entries := make(map[string]*session, len(t.sessions))
	for counterpart, e := range t.sessions {
		entries[counterpart] = e
	}
	t.mu.RUnlock()

	views := make([]SessionView, 0, len(entries))
	for counterpart, e := range entries {
		e.mu.Lock()
		if e.chatID > 0 {
			views = append(views, SessionView{
				Counterpart:  counterpart,
				ChatID:       e.chatID,
				LastActivity: e.lastActivity,
			})
		}
		e.mu.Unlock()
	}
	return views
}
