package database

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

// Store defines the interface for database operations.
// Methods accept context.Context for cancellation and timeouts.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// SaveMessage appends a new message record to the log.
	SaveMessage(ctx context.Context, message *Message) error

	// GetShiftMessages retrieves all messages for a shift, split by
	// direction, ordered oldest first within each direction.
	GetShiftMessages(ctx context.Context, shift string) (incoming, outgoing []Message, err error)

	// CountShiftMessages returns per-direction message counts for a shift.
	CountShiftMessages(ctx context.Context, shift string) (incoming, outgoing int, err error)

	// GetRecentMessages retrieves the most recent 'limit' messages across
	// all counterparts, newest first.
	GetRecentMessages(ctx context.Context, limit int) ([]Message, error)

	// SearchMessages retrieves up to 'limit' messages whose content contains
	// the given substring (case-sensitive), newest first.
	SearchMessages(ctx context.Context, substring string, limit int) ([]Message, error)

	// GetCounterpartMessages retrieves up to 'limit' messages exchanged with
	// one counterpart, newest first.
	GetCounterpartMessages(ctx context.Context, counterpart string, limit int) ([]Message, error)

	// GetChatSessions retrieves all chat session rows.
	GetChatSessions(ctx context.Context) ([]ChatSession, error)

	// SaveChatSession inserts or updates the session row for a counterpart.
	SaveChatSession(ctx context.Context, session *ChatSession) error

	// RunSQLMaintenance performs database maintenance tasks like VACUUM.
	RunSQLMaintenance(ctx context.Context) error
}

// sqlxStore provides an implementation of the Store interface using sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a new Store implementation backed by sqlx.
// It requires a connected sqlx.DB instance and a logger.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

// Ping checks the database connection.
func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// SaveMessage appends a new message record to the log. Content may be
// empty (the source degrades empty bodies to empty strings), but direction,
// shift, and timestamp are required.
func (s *sqlxStore) SaveMessage(ctx context.Context, message *Message) error {
	if message == nil {
		return fmt.Errorf("cannot save nil message")
	}
	if message.Direction != DirectionIncoming && message.Direction != DirectionOutgoing {
		return fmt.Errorf("message has invalid direction %q", message.Direction)
	}
	if message.Shift == "" {
		return fmt.Errorf("message must have a non-empty shift")
	}
	if message.Timestamp.IsZero() {
		return fmt.Errorf("message must have a non-zero timestamp")
	}

	now := time.Now().UTC()
	message.CreatedAt = now
	message.UpdatedAt = now

	query := `
        INSERT INTO messages (counterpart, chat_id, direction, content, shift, timestamp, created_at, updated_at)
        VALUES (:counterpart, :chat_id, :direction, :content, :shift, :timestamp, :created_at, :updated_at);
    `

	result, err := s.db.NamedExecContext(ctx, query, message)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error saving message",
			"counterpart", message.Counterpart.String, "direction", message.Direction, "error", err)
		return fmt.Errorf("failed to save message: %w", err)
	}

	if id, err := result.LastInsertId(); err == nil {
		//nolint:gosec // integer overflow conversion is acceptable here
		message.ID = uint(id)
	} else {
		s.logger.WarnContext(ctx, "Could not retrieve last insert ID after saving message",
			"counterpart", message.Counterpart.String, "error", err)
	}

	s.logger.DebugContext(ctx, "Message saved",
		"counterpart", message.Counterpart.String, "direction", message.Direction,
		"shift", message.Shift, "message_id", message.ID)
	return nil
}

// GetShiftMessages retrieves all messages for a shift, split by direction.
func (s *sqlxStore) GetShiftMessages(ctx context.Context, shift string) ([]Message, []Message, error) {
	if shift == "" {
		return nil, nil, fmt.Errorf("shift cannot be empty")
	}

	var all []Message
	query := `
        SELECT id, counterpart, chat_id, direction, content, shift, timestamp, created_at, updated_at
        FROM messages
        WHERE shift = ?
        ORDER BY timestamp ASC, id ASC;
    `
	if err := s.db.SelectContext(ctx, &all, query, shift); err != nil {
		s.logger.ErrorContext(ctx, "Error retrieving shift messages", "shift", shift, "error", err)
		return nil, nil, fmt.Errorf("failed to get messages for shift %q: %w", shift, err)
	}

	incoming := make([]Message, 0, len(all))
	outgoing := make([]Message, 0, len(all))
	for _, m := range all {
		if m.Direction == DirectionOutgoing {
			outgoing = append(outgoing, m)
		} else {
			incoming = append(incoming, m)
		}
	}
	return incoming, outgoing, nil
}

// CountShiftMessages returns per-direction message counts for a shift.
func (s *sqlxStore) CountShiftMessages(ctx context.Context, shift string) (int, int, error) {
	if shift == "" {
		return 0, 0, fmt.Errorf("shift cannot be empty")
	}

	var rows []struct {
		Direction string `db:"direction"`
		Count     int    `db:"count"`
	}
	query := `SELECT direction, COUNT(*) AS count FROM messages WHERE shift = ? GROUP BY direction;`
	if err := s.db.SelectContext(ctx, &rows, query, shift); err != nil {
		s.logger.ErrorContext(ctx, "Error counting shift messages", "shift", shift, "error", err)
		return 0, 0, fmt.Errorf("failed to count messages for shift %q: %w", shift, err)
	}

	var incoming, outgoing int
	for _, r := range rows {
		switch r.Direction {
		case DirectionIncoming:
			incoming = r.Count
		case DirectionOutgoing:
			outgoing = r.Count
		}
	}
	return incoming, outgoing, nil
}

// GetRecentMessages retrieves the most recent 'limit' messages, newest first.
func (s *sqlxStore) GetRecentMessages(ctx context.Context, limit int) ([]Message, error) {
	limit = clampLimit(limit)

	var messages []Message
	query := `
        SELECT id, counterpart, chat_id, direction, content, shift, timestamp, created_at, updated_at
        FROM messages
        ORDER BY timestamp DESC, id DESC
        LIMIT ?;
    `
	if err := s.db.SelectContext(ctx, &messages, query, limit); err != nil {
		s.logger.ErrorContext(ctx, "Error retrieving recent messages", "limit", limit, "error", err)
		return nil, fmt.Errorf("failed to get recent messages: %w", err)
	}
	return messages, nil
}

// SearchMessages retrieves messages containing the given substring, newest
// first. Uses instr() rather than LIKE so matching stays case-sensitive
// (SQLite LIKE is case-insensitive for ASCII).
func (s *sqlxStore) SearchMessages(ctx context.Context, substring string, limit int) ([]Message, error) {
	if substring == "" {
		return nil, fmt.Errorf("search substring cannot be empty")
	}
	limit = clampLimit(limit)

	var messages []Message
	query := `
        SELECT id, counterpart, chat_id, direction, content, shift, timestamp, created_at, updated_at
        FROM messages
        WHERE instr(content, ?) > 0
        ORDER BY timestamp DESC, id DESC
        LIMIT ?;
    `
	if err := s.db.SelectContext(ctx, &messages, query, substring, limit); err != nil {
		s.logger.ErrorContext(ctx, "Error searching messages", "error", err)
		return nil, fmt.Errorf("failed to search messages: %w", err)
	}
	return messages, nil
}

// GetCounterpartMessages retrieves the conversation history with one
// counterpart, newest first.
func (s *sqlxStore) GetCounterpartMessages(ctx context.Context, counterpart string, limit int) ([]Message, error) {
	if counterpart == "" {
		return nil, fmt.Errorf("counterpart cannot be empty")
	}
	limit = clampLimit(limit)

	var messages []Message
	query := `
        SELECT id, counterpart, chat_id, direction, content, shift, timestamp, created_at, updated_at
        FROM messages
        WHERE counterpart = ?
        ORDER BY timestamp DESC, id DESC
        LIMIT ?;
    `
	if err := s.db.SelectContext(ctx, &messages, query, counterpart, limit); err != nil {
		s.logger.ErrorContext(ctx, "Error retrieving counterpart messages",
			"counterpart", counterpart, "error", err)
		return nil, fmt.Errorf("failed to get messages for counterpart %q: %w", counterpart, err)
	}
	return messages, nil
}

// GetChatSessions retrieves all chat session rows.
func (s *sqlxStore) GetChatSessions(ctx context.Context) ([]ChatSession, error) {
	var sessions []ChatSession
	query := `
        SELECT counterpart, chat_id, last_activity, created_at, updated_at
        FROM chat_sessions;
    `
	if err := s.db.SelectContext(ctx, &sessions, query); err != nil {
		s.logger.ErrorContext(ctx, "Error retrieving chat sessions", "error", err)
		return nil, fmt.Errorf("failed to get chat sessions: %w", err)
	}
	return sessions, nil
}

// SaveChatSession inserts or updates the session row for a counterpart.
func (s *sqlxStore) SaveChatSession(ctx context.Context, session *ChatSession) error {
	if session == nil {
		return fmt.Errorf("cannot save nil chat session")
	}
	if session.Counterpart == "" {
		return fmt.Errorf("chat session must have a non-empty counterpart")
	}
	if session.ChatID <= 0 {
		return fmt.Errorf("chat session must have a positive chat_id")
	}

	now := time.Now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = now

	query := `
        INSERT INTO chat_sessions (counterpart, chat_id, last_activity, created_at, updated_at)
        VALUES (:counterpart, :chat_id, :last_activity, :created_at, :updated_at)
        ON CONFLICT (counterpart) DO UPDATE SET
            chat_id = excluded.chat_id,
            last_activity = excluded.last_activity,
            updated_at = excluded.updated_at;
    `
	if _, err := s.db.NamedExecContext(ctx, query, session); err != nil {
		s.logger.ErrorContext(ctx, "Error saving chat session",
			"counterpart", session.Counterpart, "chat_id", session.ChatID, "error", err)
		return fmt.Errorf("failed to save chat session for %q: %w", session.Counterpart, err)
	}

	s.logger.DebugContext(ctx, "Chat session saved",
		"counterpart", session.Counterpart, "chat_id", session.ChatID)
	return nil
}

// RunSQLMaintenance executes VACUUM and ANALYZE on the SQLite database.
func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		s.logger.WarnContext(ctx, "Context cancelled before starting maintenance", "error", ctx.Err())
		return ctx.Err()
	}

	s.logger.InfoContext(ctx, "Starting database maintenance (VACUUM, ANALYZE)...")
	startTime := time.Now()

	// VACUUM must run outside a transaction.
	if _, err := s.db.ExecContext(ctx, "VACUUM;"); err != nil {
		s.logger.ErrorContext(ctx, "VACUUM failed", "error", err)
		return fmt.Errorf("failed to vacuum database: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "ANALYZE;"); err != nil {
		s.logger.ErrorContext(ctx, "ANALYZE failed", "error", err)
		return fmt.Errorf("failed to analyze database: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA optimize;"); err != nil {
		s.logger.WarnContext(ctx, "PRAGMA optimize failed", "error", err)
	}

	s.logger.InfoContext(ctx, "Database maintenance completed",
		"duration", time.Since(startTime))
	return nil
}

func clampLimit(limit int) int {
	const (
		defaultLimit = 50
		maxLimit     = 500
	)
	if limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}
