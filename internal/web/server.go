// Package web serves the operational dashboard API: aggregate statistics,
// shift views, message search, administrative chat control, and a
// websocket channel for live updates. It is a read-mostly presentation
// layer over the chat engine; query failures degrade to empty results
// rather than faulting the dashboard.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pulseai/pulsewatch/internal/chat"
	"github.com/pulseai/pulsewatch/internal/config"
	"github.com/pulseai/pulsewatch/internal/database"
)

// shutdownTimeout bounds how long graceful shutdown waits for in-flight
// requests.
const shutdownTimeout = 5 * time.Second

// Server is the dashboard HTTP server.
type Server struct {
	cfg      *config.WebConfig
	logger   *slog.Logger
	store    database.Store
	reporter *chat.Reporter
	ingestor *chat.Ingestor
	filter   *chat.Filter
	// filterPath, when set, receives the filter config on runtime updates.
	filterPath string
	hub        *Hub
	router     *gin.Engine
}

// NewServer wires the dashboard routes.
func NewServer(cfg *config.WebConfig, logger *slog.Logger, store database.Store, reporter *chat.Reporter, ingestor *chat.Ingestor, filter *chat.Filter, filterPath string, hub *Hub) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		cfg:        cfg,
		logger:     logger.With("component", "web"),
		store:      store,
		reporter:   reporter,
		ingestor:   ingestor,
		filter:     filter,
		filterPath: filterPath,
		hub:        hub,
		router:     router,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.GET("/healthz", s.handleHealth)
	s.router.POST("/api/login", s.handleLogin)

	authed := s.router.Group("/", s.authMiddleware())
	authed.GET("/api/stats", s.handleStats)
	authed.GET("/api/shift/:shift", s.handleShift)
	authed.GET("/api/recent", s.handleRecent)
	authed.GET("/api/search", s.handleSearch)
	authed.GET("/api/chats/:counterpart/messages", s.handleCounterpartMessages)
	authed.POST("/api/chats/:counterpart/close", s.handleForceClose)
	authed.GET("/api/filter", s.handleGetFilter)
	authed.PUT("/api/filter", s.handleUpdateFilter)
	authed.GET("/ws", s.handleWS)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves the dashboard until the context is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("dashboard server listening", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		s.logger.Info("shutting down dashboard server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("dashboard server shutdown failed", "error", err)
			return err
		}
		return nil
	}
}
