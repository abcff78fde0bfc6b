// Package app wires the PulseWatch components together and manages their
// lifecycle: the Telegram listener, the dashboard server, the live-update
// hub, and the task scheduler all run under one errgroup and stop together.
package app

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/pulseai/pulsewatch/internal/telegram"
	"github.com/pulseai/pulsewatch/internal/web"
)

// App owns the running components of the PulseWatch service.
type App struct {
	logger    *slog.Logger
	listener  *telegram.Listener
	webServer *web.Server
	hub       *web.Hub
	scheduler *Scheduler
}

// New creates the application orchestrator from already-constructed
// components.
func New(logger *slog.Logger, listener *telegram.Listener, webServer *web.Server, hub *web.Hub, scheduler *Scheduler) *App {
	return &App{
		logger:    logger.With("component", "app"),
		listener:  listener,
		webServer: webServer,
		hub:       hub,
		scheduler: scheduler,
	}
}

// Run starts all components and blocks until the context is cancelled or a
// component fails. Components stop together: one failure cancels the rest.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("Starting application components...")

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.hub.Run(gCtx)
		return nil
	})

	g.Go(func() error {
		a.listener.Run(gCtx)
		if gCtx.Err() == nil {
			a.logger.Warn("Telegram listener stopped unexpectedly without context cancellation.")
			return errors.New("telegram listener stopped unexpectedly")
		}
		return nil
	})

	g.Go(func() error {
		return a.webServer.Run(gCtx)
	})

	g.Go(func() error {
		if err := a.scheduler.Start(); err != nil {
			return err
		}

		<-gCtx.Done()
		a.logger.Info("Shutdown signal received, stopping scheduler...")
		if err := a.scheduler.Stop(); err != nil {
			a.logger.Error("Error stopping scheduler", "error", err)
		}
		return nil
	})

	a.logger.Info("Application running. Waiting for shutdown signal or error...")
	err := g.Wait()

	if err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Error("Application stopped due to error", "error", err)
		return err
	}

	a.logger.Info("Application stopped gracefully.")
	return nil
}
