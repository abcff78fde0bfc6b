// Package telegram adapts the Telegram update stream into message events
// for the ingestion path. It is a thin I/O adapter: direction and
// counterpart identity are resolved here, everything else is the chat
// engine's business.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/pulseai/pulsewatch/internal/chat"
	"github.com/pulseai/pulsewatch/internal/database"
)

// Listener receives Telegram updates and feeds them to the Ingestor.
// Messages sent by the operator account are recorded as outgoing and
// attributed to the chat's counterpart; everything else is incoming and
// attributed to the sender.
type Listener struct {
	bot        *bot.Bot
	ingestor   *chat.Ingestor
	operatorID int64
	logger     *slog.Logger
}

// NewListener creates a Listener with its own bot instance. Extra options
// (middleware, test servers) are appended after the default handler.
func NewListener(token string, operatorID int64, ingestor *chat.Ingestor, logger *slog.Logger, opts ...bot.Option) (*Listener, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram bot token cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}

	l := &Listener{
		ingestor:   ingestor,
		operatorID: operatorID,
		logger:     logger.With("component", "telegram_listener"),
	}

	allOpts := append([]bot.Option{bot.WithDefaultHandler(l.handleUpdate)}, opts...)
	b, err := bot.New(token, allOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	l.bot = b

	l.logger.Info("telegram listener created", "token_prefix", token[:min(8, len(token))]+"...")
	return l, nil
}

// Run starts long polling and blocks until the context is cancelled.
func (l *Listener) Run(ctx context.Context) {
	l.logger.Info("telegram listener starting")
	l.bot.Start(ctx)
	l.logger.Info("telegram listener stopped")
}

// handleUpdate converts one update into an ingestion call. Ingestion
// failures are logged, never allowed to crash message receipt.
func (l *Listener) handleUpdate(ctx context.Context, _ *bot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil {
		msg = update.BusinessMessage
	}
	if msg == nil {
		return
	}

	direction := database.DirectionIncoming
	var counterpart string
	if msg.From != nil && msg.From.ID == l.operatorID {
		direction = database.DirectionOutgoing
		counterpart = counterpartFromChat(msg.Chat)
	} else {
		counterpart = counterpartFromUser(msg.From)
	}

	now := time.Now()
	if msg.Date > 0 {
		now = time.Unix(int64(msg.Date), 0)
	}

	l.logger.Debug("message event received",
		"counterpart", counterpart, "direction", direction, "length", len(msg.Text))

	if err := l.ingestor.Ingest(ctx, counterpart, msg.Text, direction, now); err != nil {
		l.logger.ErrorContext(ctx, "failed to ingest message",
			"counterpart", counterpart, "direction", direction, "error", err)
	}
}

// counterpartFromUser derives a counterpart identity from a sender,
// falling back to a synthetic user_<id> when no name is available.
func counterpartFromUser(u *models.User) string {
	if u == nil {
		return ""
	}
	if u.Username != "" {
		return u.Username
	}
	if u.FirstName != "" {
		return u.FirstName
	}
	return fmt.Sprintf("user_%d", u.ID)
}

// counterpartFromChat derives a counterpart identity from the chat an
// outgoing message was sent to.
func counterpartFromChat(c models.Chat) string {
	if c.Username != "" {
		return c.Username
	}
	if c.FirstName != "" {
		return c.FirstName
	}
	if c.Title != "" {
		return c.Title
	}
	return fmt.Sprintf("user_%d", c.ID)
}
