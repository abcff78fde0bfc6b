package database

import (
	"database/sql"
	"time"
)

// Message directions as stored in the messages table.
const (
	DirectionIncoming = "incoming"
	DirectionOutgoing = "outgoing"
)

// Message represents a single message exchanged with a counterpart.
// Messages are immutable once written; the log is append-only and
// partitioned by shift label.
type Message struct {
	ID        uint      `db:"id"         json:"id"`
	CreatedAt time.Time `db:"created_at" json:"-"`
	UpdatedAt time.Time `db:"updated_at" json:"-"`

	// Counterpart is the remote identity the message is with, never the
	// local support account. Empty when the source could not resolve one.
	Counterpart sql.NullString `db:"counterpart" json:"counterpart"`

	// ChatID is the logical chat session the message belongs to. Null when
	// the counterpart identity is unknown.
	ChatID sql.NullInt64 `db:"chat_id" json:"chat_id"`

	Direction string    `db:"direction" json:"direction"`
	Content   string    `db:"content"   json:"content"`
	Shift     string    `db:"shift"     json:"shift"`
	Timestamp time.Time `db:"timestamp" json:"timestamp"`
}

// ChatSession tracks the current logical chat for one counterpart.
// ChatID starts at 1 and only ever increases; LastActivity only decreases
// via an explicit force-close. Whether the session is "active" or "closed"
// is computed from LastActivity at read time, never stored.
type ChatSession struct {
	Counterpart  string    `db:"counterpart"   json:"counterpart"`
	ChatID       int64     `db:"chat_id"       json:"chat_id"`
	LastActivity time.Time `db:"last_activity" json:"last_activity"`
	CreatedAt    time.Time `db:"created_at"    json:"-"`
	UpdatedAt    time.Time `db:"updated_at"    json:"-"`
}
