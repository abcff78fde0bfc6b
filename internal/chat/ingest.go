package chat

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/pulseai/pulsewatch/internal/database"
)

// EventType identifies a significant ingestion outcome.
type EventType string

const (
	// EventMessageStored fires after a message is appended to the log.
	EventMessageStored EventType = "message_stored"
	// EventMessageDropped fires when the noise filter excludes a message.
	EventMessageDropped EventType = "message_dropped"
	// EventSessionClosed fires when an outgoing farewell force-closes a chat.
	EventSessionClosed EventType = "session_closed"
)

// Event describes an ingestion outcome for observability and live updates.
type Event struct {
	Type        EventType `json:"type"`
	Counterpart string    `json:"counterpart"`
	ChatID      int64     `json:"chat_id,omitempty"`
	Direction   string    `json:"direction"`
	Shift       string    `json:"shift,omitempty"`
	Rule        string    `json:"rule,omitempty"`
}

// Notifier receives ingestion events. Implementations must not block; the
// ingestion path calls Notify inline.
type Notifier interface {
	Notify(event Event)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(Event)

// Notify calls the wrapped function.
func (f NotifierFunc) Notify(event Event) { f(event) }

// Ingestor coordinates the ingestion path: filter, session resolution,
// message append, and farewell detection. It is the only component that
// writes messages and mutates sessions.
type Ingestor struct {
	store     database.Store
	tracker   *Tracker
	filter    *Filter
	farewells map[string]struct{}
	notifier  Notifier
	logger    *slog.Logger
}

// NewIngestor creates an Ingestor. The notifier may be nil when nobody
// subscribes to ingestion events.
func NewIngestor(store database.Store, tracker *Tracker, filter *Filter, farewells []string, notifier Notifier, logger *slog.Logger) *Ingestor {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	fw := make(map[string]struct{}, len(farewells))
	for _, phrase := range farewells {
		if trimmed := strings.TrimSpace(phrase); trimmed != "" {
			fw[trimmed] = struct{}{}
		}
	}
	return &Ingestor{
		store:     store,
		tracker:   tracker,
		filter:    filter,
		farewells: fw,
		notifier:  notifier,
		logger:    logger.With("component", "ingestor"),
	}
}

// Ingest processes one message event. Filtered noise is discarded before it
// can create or extend a session. Both directions extend session activity:
// an operator reply is evidence the conversation is still live. An outgoing
// message that exactly matches a farewell phrase (after trimming) force-
// closes the chat.
//
// An empty counterpart is tolerated: the message is logged without a
// session attribution (the source should have substituted a synthetic
// identity where a numeric id was available). Empty text is stored as an
// empty string, not rejected. Storage errors propagate to the caller.
func (i *Ingestor) Ingest(ctx context.Context, counterpart, text, direction string, now time.Time) error {
	if direction != database.DirectionIncoming && direction != database.DirectionOutgoing {
		return fmt.Errorf("invalid message direction %q", direction)
	}

	if excluded, rule := i.filter.ShouldExclude(counterpart, text); excluded {
		i.logger.DebugContext(ctx, "message excluded by filter",
			"counterpart", counterpart, "direction", direction, "rule", rule)
		i.notify(Event{
			Type:        EventMessageDropped,
			Counterpart: counterpart,
			Direction:   direction,
			Rule:        rule,
		})
		return nil
	}

	msg := &database.Message{
		Direction: direction,
		Content:   text,
		Shift:     ShiftName(now),
		Timestamp: now,
	}

	if counterpart != "" {
		chatID, err := i.tracker.Resolve(ctx, counterpart, now)
		if err != nil {
			return fmt.Errorf("session resolution failed: %w", err)
		}
		msg.Counterpart = sql.NullString{String: counterpart, Valid: true}
		msg.ChatID = sql.NullInt64{Int64: chatID, Valid: true}
	}

	if err := i.store.SaveMessage(ctx, msg); err != nil {
		return fmt.Errorf("message append failed: %w", err)
	}

	i.notify(Event{
		Type:        EventMessageStored,
		Counterpart: counterpart,
		ChatID:      msg.ChatID.Int64,
		Direction:   direction,
		Shift:       msg.Shift,
	})

	if direction == database.DirectionOutgoing && counterpart != "" && i.isFarewell(text) {
		if err := i.tracker.ForceClose(ctx, counterpart); err != nil {
			return fmt.Errorf("farewell close failed: %w", err)
		}
		i.logger.InfoContext(ctx, "chat auto-closed on farewell", "counterpart", counterpart)
		i.notify(Event{
			Type:        EventSessionClosed,
			Counterpart: counterpart,
			ChatID:      msg.ChatID.Int64,
			Direction:   direction,
		})
	}

	return nil
}

// ForceClose administratively closes the chat for a counterpart.
func (i *Ingestor) ForceClose(ctx context.Context, counterpart string) error {
	if err := i.tracker.ForceClose(ctx, counterpart); err != nil {
		return err
	}
	i.notify(Event{Type: EventSessionClosed, Counterpart: counterpart})
	return nil
}

func (i *Ingestor) isFarewell(text string) bool {
	_, ok := i.farewells[strings.TrimSpace(text)]
	return ok
}

func (i *Ingestor) notify(event Event) {
	if i.notifier != nil {
		i.notifier.Notify(event)
	}
}
