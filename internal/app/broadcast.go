package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/pulseai/pulsewatch/internal/chat"
	"github.com/pulseai/pulsewatch/internal/web"
)

// snapshotTimeout bounds the store read triggered by an ingestion event.
const snapshotTimeout = 5 * time.Second

// NewEventBroadcaster returns a Notifier that pushes a fresh statistics
// snapshot to live-update subscribers when a message is stored or a
// session is closed. The snapshot is built asynchronously so the ingestion
// path never waits on dashboard fan-out.
func NewEventBroadcaster(reporter *chat.Reporter, hub *web.Hub, logger *slog.Logger) chat.Notifier {
	log := logger.With("component", "event_broadcaster")

	return chat.NotifierFunc(func(event chat.Event) {
		if event.Type == chat.EventMessageDropped {
			// Drops are counted by the filter; no dashboard push needed.
			return
		}

		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
			defer cancel()

			snapshot, err := reporter.Snapshot(ctx, time.Now())
			if err != nil {
				log.Error("failed to build event snapshot", "event", event.Type, "error", err)
				return
			}

			hub.Broadcast(map[string]any{
				"type":  string(event.Type),
				"event": event,
				"data":  snapshot,
			})
		}()
	})
}
