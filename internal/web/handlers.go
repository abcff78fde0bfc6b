package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pulseai/pulsewatch/internal/chat"
	"github.com/pulseai/pulsewatch/internal/database"
)

func (s *Server) handleHealth(c *gin.Context) {
	if err := s.store.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleStats serves the aggregate dashboard snapshot. A failing store
// degrades to zeroed message counts with live chat stats rather than an
// error page.
func (s *Server) handleStats(c *gin.Context) {
	now := time.Now()
	snapshot, err := s.reporter.Snapshot(c.Request.Context(), now)
	if err != nil {
		s.logger.Error("stats snapshot failed, serving degraded payload", "error", err)
		snapshot = &chat.StatsSnapshot{
			ChatStats: chat.ChatStats{
				ActiveChatList: []chat.SessionView{},
				ClosedChatList: []chat.SessionView{},
			},
			Shift:     chat.ShiftName(now),
			Timestamp: now.Format("15:04:05"),
		}
	}
	c.JSON(http.StatusOK, snapshot)
}

// handleShift serves the full message lists for one shift period.
func (s *Server) handleShift(c *gin.Context) {
	shift := c.Param("shift")
	incoming, outgoing, err := s.store.GetShiftMessages(c.Request.Context(), shift)
	if err != nil {
		s.logger.Error("shift query failed, serving empty lists", "shift", shift, "error", err)
		incoming, outgoing = []database.Message{}, []database.Message{}
	}
	c.JSON(http.StatusOK, gin.H{
		"shift":    shift,
		"incoming": incoming,
		"outgoing": outgoing,
	})
}

func (s *Server) handleRecent(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	messages, err := s.store.GetRecentMessages(c.Request.Context(), limit)
	if err != nil {
		s.logger.Error("recent messages query failed, serving empty list", "error", err)
		messages = []database.Message{}
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

func (s *Server) handleSearch(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter 'q' is required"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	messages, err := s.store.SearchMessages(c.Request.Context(), query, limit)
	if err != nil {
		s.logger.Error("message search failed, serving empty list", "error", err)
		messages = []database.Message{}
	}
	c.JSON(http.StatusOK, gin.H{"query": query, "messages": messages})
}

// handleCounterpartMessages serves the conversation history with one
// counterpart, newest first.
func (s *Server) handleCounterpartMessages(c *gin.Context) {
	counterpart := c.Param("counterpart")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	messages, err := s.store.GetCounterpartMessages(c.Request.Context(), counterpart, limit)
	if err != nil {
		s.logger.Error("counterpart messages query failed, serving empty list",
			"counterpart", counterpart, "error", err)
		messages = []database.Message{}
	}
	c.JSON(http.StatusOK, gin.H{"counterpart": counterpart, "messages": messages})
}

// handleForceClose administratively closes the chat for a counterpart.
func (s *Server) handleForceClose(c *gin.Context) {
	counterpart := c.Param("counterpart")
	if err := s.ingestor.ForceClose(c.Request.Context(), counterpart); err != nil {
		s.logger.Error("force close failed", "counterpart", counterpart, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to close chat"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"counterpart": counterpart, "status": "closed"})
}

func (s *Server) handleGetFilter(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"config":  s.filter.Config(),
		"dropped": s.filter.Dropped(),
	})
}

// handleUpdateFilter installs a new filter configuration snapshot and, when
// a filter path is configured, persists it for the next start.
func (s *Server) handleUpdateFilter(c *gin.Context) {
	var cfg chat.FilterConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.filter.Update(cfg)
	if s.filterPath != "" {
		if err := s.filter.SaveFile(s.filterPath); err != nil {
			s.logger.Error("failed to persist filter configuration", "path", s.filterPath, "error", err)
		}
	}
	c.JSON(http.StatusOK, gin.H{"config": s.filter.Config()})
}

func (s *Server) handleWS(c *gin.Context) {
	s.hub.ServeWS(c.Writer, c.Request)
}
