// Package store persists conversation history. Persistence is a
// collaborator of the session layer, never on the hot path: failures
// are logged and the conversation continues without history.
package store

import (
	"context"
	"time"
)

// Store records sessions and the messages exchanged within them.
type Store interface {
	// CreateSession records a new session for the given user.
	CreateSession(ctx context.Context, sessionID, userID string) error

	// CloseSession marks a session ended and records its turn counters.
	CloseSession(ctx context.Context, sessionID string, turns, interruptions int) error

	// AppendMessage records one message within a session. Role is
	// "user" or "assistant".
	AppendMessage(ctx context.Context, sessionID, role, content string) error

	// RecentMessages returns the most recent messages for a session,
	// oldest first, up to limit.
	RecentMessages(ctx context.Context, sessionID string, limit int) ([]Message, error)

	// Health checks backend connectivity.
	Health(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// Message is one persisted conversation message.
type Message struct {
	SessionID string
	Role      string
	Content   string
	CreatedAt time.Time
}
