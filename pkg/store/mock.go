package store

import (
	"context"
	"sync"
	"time"
)

// Nop is a Store that records nothing. Used when no database is
// configured.
type Nop struct{}

// NewNop creates a no-op store.
func NewNop() *Nop { return &Nop{} }

func (*Nop) CreateSession(context.Context, string, string) error       { return nil }
func (*Nop) CloseSession(context.Context, string, int, int) error     { return nil }
func (*Nop) AppendMessage(context.Context, string, string, string) error { return nil }
func (*Nop) RecentMessages(context.Context, string, int) ([]Message, error) {
	return nil, nil
}
func (*Nop) Health(context.Context) error { return nil }
func (*Nop) Close() error                 { return nil }

// Mock is an in-memory Store for testing.
type Mock struct {
	mu sync.Mutex

	// Err, when set, is returned by every operation.
	Err error

	Sessions map[string]MockSession
	Messages []Message
}

// MockSession captures session lifecycle calls.
type MockSession struct {
	UserID        string
	Closed        bool
	Turns         int
	Interruptions int
}

// NewMock creates an in-memory store.
func NewMock() *Mock {
	return &Mock{Sessions: make(map[string]MockSession)}
}

// CreateSession implements Store.
func (m *Mock) CreateSession(ctx context.Context, sessionID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Sessions[sessionID] = MockSession{UserID: userID}
	return nil
}

// CloseSession implements Store.
func (m *Mock) CloseSession(ctx context.Context, sessionID string, turns, interruptions int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	s := m.Sessions[sessionID]
	s.Closed = true
	s.Turns = turns
	s.Interruptions = interruptions
	m.Sessions[sessionID] = s
	return nil
}

// AppendMessage implements Store.
func (m *Mock) AppendMessage(ctx context.Context, sessionID, role, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Messages = append(m.Messages, Message{
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	})
	return nil
}

// RecentMessages implements Store.
func (m *Mock) RecentMessages(ctx context.Context, sessionID string, limit int) ([]Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	var out []Message
	for _, msg := range m.Messages {
		if msg.SessionID == sessionID {
			out = append(out, msg)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// Health implements Store.
func (m *Mock) Health(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Err
}

// Close implements Store.
func (m *Mock) Close() error { return nil }

// MessageCount returns how many messages were appended for a session.
func (m *Mock) MessageCount(sessionID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, msg := range m.Messages {
		if msg.SessionID == sessionID {
			n++
		}
	}
	return n
}

// Verify implementations at compile time.
var (
	_ Store = (*Nop)(nil)
	_ Store = (*Mock)(nil)
)
