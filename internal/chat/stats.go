package chat

import (
	"context"
	"sort"
	"time"

	"github.com/pulseai/pulsewatch/internal/database"
)

// Reporter derives dashboard statistics from the session table and the
// message store. Read-only; safe for concurrent use.
type Reporter struct {
	store   database.Store
	tracker *Tracker
}

// NewReporter creates a Reporter over the given store and tracker.
func NewReporter(store database.Store, tracker *Tracker) *Reporter {
	return &Reporter{store: store, tracker: tracker}
}

// ChatStats is the aggregate view over the session table, computed at read
// time from last-activity timestamps. It is an O(distinct counterparts)
// scan; no caching layer.
type ChatStats struct {
	ActiveChats    int           `json:"active_chats"`
	ClosedChats    int           `json:"closed_chats"`
	TotalUsers     int           `json:"total_users"`
	ActiveChatList []SessionView `json:"active_chat_list"`
	ClosedChatList []SessionView `json:"closed_chat_list"`
}

// Aggregate classifies every known session as active or closed at 'now'
// and returns summary counts plus the full per-counterpart breakdown,
// sorted by counterpart for stable output.
func (t *Tracker) Aggregate(now time.Time) ChatStats {
	views := t.Snapshot()
	sort.Slice(views, func(i, j int) bool {
		return views[i].Counterpart < views[j].Counterpart
	})

	stats := ChatStats{
		ActiveChatList: make([]SessionView, 0, len(views)),
		ClosedChatList: make([]SessionView, 0, len(views)),
	}
	for _, v := range views {
		if now.Sub(v.LastActivity) <= t.timeout {
			stats.ActiveChatList = append(stats.ActiveChatList, v)
		} else {
			stats.ClosedChatList = append(stats.ClosedChatList, v)
		}
	}
	stats.ActiveChats = len(stats.ActiveChatList)
	stats.ClosedChats = len(stats.ClosedChatList)
	stats.TotalUsers = len(views)
	return stats
}

// StatsSnapshot is the payload pushed to dashboard subscribers and served
// by the stats API: chat aggregates plus current-shift message counts.
type StatsSnapshot struct {
	ChatStats     ChatStats `json:"chat_stats"`
	IncomingCount int       `json:"incoming_count"`
	OutgoingCount int       `json:"outgoing_count"`
	TotalMessages int       `json:"total_messages"`
	Shift         string    `json:"shift"`
	Timestamp     string    `json:"timestamp"`
}

// Snapshot assembles the full dashboard statistics payload for 'now'.
// The shift counts come from the store; a store failure is returned to the
// caller, which decides whether to degrade.
func (r *Reporter) Snapshot(ctx context.Context, now time.Time) (*StatsSnapshot, error) {
	shift := ShiftName(now)

	incoming, outgoing, err := r.store.CountShiftMessages(ctx, shift)
	if err != nil {
		return nil, err
	}

	return &StatsSnapshot{
		ChatStats:     r.tracker.Aggregate(now),
		IncomingCount: incoming,
		OutgoingCount: outgoing,
		TotalMessages: incoming + outgoing,
		Shift:         shift,
		Timestamp:     now.Format("15:04:05"),
	}, nil
}
