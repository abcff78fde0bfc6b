package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pulseai/pulsewatch/internal/chat"
	"github.com/pulseai/pulsewatch/internal/database"
	"github.com/pulseai/pulsewatch/internal/web"
)

// ScheduledTaskFunc is the standard signature for scheduled tasks. The
// context provided by the scheduler should be respected for cancellation.
type ScheduledTaskFunc func(ctx context.Context) error

// TaskDeps contains the dependencies available to scheduled tasks.
type TaskDeps struct {
	Logger   *slog.Logger
	Store    database.Store
	Reporter *chat.Reporter
	Hub      *web.Hub
}

// RegisterAllTasks returns the map of all scheduled tasks, keyed by the
// names used in the scheduler configuration.
func RegisterAllTasks(deps TaskDeps) map[string]ScheduledTaskFunc {
	tasks := map[string]ScheduledTaskFunc{
		"stats_broadcast": newStatsBroadcastTask(deps),
		"sql_maintenance": newSQLMaintenanceTask(deps),
	}

	deps.Logger.Info("Initialized scheduled tasks", "count", len(tasks))
	return tasks
}

// newStatsBroadcastTask pushes the aggregate statistics snapshot to all
// live-update subscribers.
func newStatsBroadcastTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "stats_broadcast")

	return func(ctx context.Context) error {
		snapshot, err := deps.Reporter.Snapshot(ctx, time.Now())
		if err != nil {
			log.ErrorContext(ctx, "failed to build stats snapshot", "error", err)
			return fmt.Errorf("stats snapshot failed: %w", err)
		}

		deps.Hub.Broadcast(map[string]any{
			"type": "update",
			"data": snapshot,
		})
		return nil
	}
}

// newSQLMaintenanceTask runs periodic database maintenance.
func newSQLMaintenanceTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "sql_maintenance")

	return func(ctx context.Context) error {
		log.InfoContext(ctx, "Starting scheduled SQL maintenance task...")
		startTime := time.Now()

		err := deps.Store.RunSQLMaintenance(ctx)

		duration := time.Since(startTime)
		if err != nil {
			log.ErrorContext(ctx, "SQL maintenance task failed", "error", err, "duration", duration)
			return fmt.Errorf("sql maintenance failed: %w", err)
		}

		log.InfoContext(ctx, "Scheduled SQL maintenance task completed", "duration", duration)
		return nil
	}
}
