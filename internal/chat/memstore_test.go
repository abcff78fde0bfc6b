package chat_test

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/pulseai/pulsewatch/internal/database"
)

// memStore is an in-memory Store implementation for tests.
type memStore struct {
	mu       sync.Mutex
	messages []database.Message
	sessions map[string]database.ChatSession

	failSaveMessage bool
	failSaveSession bool
}

var errStoreUnavailable = errors.New("store unavailable")

func newMemStore() *memStore {
	return &memStore{sessions: make(map[string]database.ChatSession)}
}

func (m *memStore) Ping(context.Context) error { return nil }

func (m *memStore) SaveMessage(_ context.Context, message *database.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSaveMessage {
		return errStoreUnavailable
	}
	message.ID = uint(len(m.messages) + 1)
	m.messages = append(m.messages, *message)
	return nil
}

func (m *memStore) GetShiftMessages(_ context.Context, shift string) ([]database.Message, []database.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var incoming, outgoing []database.Message
	for _, msg := range m.messages {
		if msg.Shift != shift {
			continue
		}
		if msg.Direction == database.DirectionOutgoing {
			outgoing = append(outgoing, msg)
		} else {
			incoming = append(incoming, msg)
		}
	}
	return incoming, outgoing, nil
}

func (m *memStore) CountShiftMessages(ctx context.Context, shift string) (int, int, error) {
	incoming, outgoing, err := m.GetShiftMessages(ctx, shift)
	if err != nil {
		return 0, 0, err
	}
	return len(incoming), len(outgoing), nil
}

func (m *memStore) GetRecentMessages(_ context.Context, limit int) ([]database.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []database.Message
	for i := len(m.messages) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.messages[i])
	}
	return out, nil
}

func (m *memStore) SearchMessages(_ context.Context, substring string, limit int) ([]database.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []database.Message
	for i := len(m.messages) - 1; i >= 0 && len(out) < limit; i-- {
		if strings.Contains(m.messages[i].Content, substring) {
			out = append(out, m.messages[i])
		}
	}
	return out, nil
}

func (m *memStore) GetCounterpartMessages(_ context.Context, counterpart string, limit int) ([]database.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []database.Message
	for i := len(m.messages) - 1; i >= 0 && len(out) < limit; i-- {
		if m.messages[i].Counterpart.String == counterpart {
			out = append(out, m.messages[i])
		}
	}
	return out, nil
}

func (m *memStore) GetChatSessions(context.Context) ([]database.ChatSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]database.ChatSession, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out, nil
}

func (m *memStore) SaveChatSession(_ context.Context, session *database.ChatSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSaveSession {
		return errStoreUnavailable
	}
	m.sessions[session.Counterpart] = *session
	return nil
}

func (m *memStore) RunSQLMaintenance(context.Context) error { return nil }

func (m *memStore) messageCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

func (m *memStore) lastMessage() (database.Message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.messages) == 0 {
		return database.Message{}, false
	}
	return m.messages[len(m.messages)-1], true
}

func (m *memStore) storedSession(counterpart string) (database.ChatSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[counterpart]
	return s, ok
}
