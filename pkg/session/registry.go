package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/irisvoice/go-iris/pkg/protocol"
	"github.com/irisvoice/go-iris/pkg/store"
)

// Sentinel errors.
var (
	// ErrSessionClosed is returned when sending on an ended session.
	ErrSessionClosed = errors.New("session: closed")

	// ErrHandshakeFailed is returned when the connected message could
	// not be delivered.
	ErrHandshakeFailed = errors.New("session: handshake failed")
)

const (
	handshakeAttempts = 3
	handshakeWait     = 50 * time.Millisecond
)

// Registry owns all active sessions.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	store           store.Store
	logger          *slog.Logger
	bufferThreshold int
}

// NewRegistry creates a session registry. The store may be a Nop
// store; persistence failures never block the conversation.
func NewRegistry(st store.Store, bufferThreshold int, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		sessions:        make(map[string]*Session),
		store:           st,
		logger:          logger.With("component", "session.registry"),
		bufferThreshold: bufferThreshold,
	}
}

// Open creates a session for a new connection, persists it best
// effort, and performs the connected handshake. A handshake that
// fails after all retries aborts the connection; the session is not
// registered.
func (r *Registry) Open(ctx context.Context, conn Conn, userID string) (*Session, error) {
	id := uuid.NewString()
	s := newSession(id, userID, conn, r.bufferThreshold)

	if err := r.store.CreateSession(ctx, id, userID); err != nil {
		// History is a collaborator, not a dependency.
		r.logger.Warn("session persist failed", "session_id", id, "error", err)
	}

	if err := r.handshake(s); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.sessions[id] = s
	count := len(r.sessions)
	r.mu.Unlock()

	r.logger.Info("session opened", "session_id", id, "active", count)
	return s, nil
}

// handshake delivers the connected message with bounded retries.
func (r *Registry) handshake(s *Session) error {
	msg, err := protocol.NewConnectedMessage(s.ID)
	if err != nil {
		return fmt.Errorf("session: build handshake: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= handshakeAttempts; attempt++ {
		if lastErr = s.conn.Send(msg); lastErr == nil {
			return nil
		}
		r.logger.Warn("handshake attempt failed",
			"session_id", s.ID,
			"attempt", attempt,
			"error", lastErr,
		)
		if attempt < handshakeAttempts {
			time.Sleep(handshakeWait)
		}
	}
	return fmt.Errorf("%w: %v", ErrHandshakeFailed, lastErr)
}

// Get returns the session with the given ID, or nil.
func (r *Registry) Get(id string) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[id]
}

// Close ends a session. Safe to call more than once; only the first
// call flushes state and persists counters.
func (r *Registry) Close(ctx context.Context, id string) {
	r.mu.Lock()
	s := r.sessions[id]
	delete(r.sessions, id)
	count := len(r.sessions)
	r.mu.Unlock()

	if s == nil || !s.end() {
		return
	}

	// Discard any partial utterance.
	if leftover := s.Buffer.Flush(); leftover != nil {
		r.logger.Debug("discarded buffered audio", "session_id", id, "bytes", len(leftover))
	}

	if err := r.store.CloseSession(ctx, id, s.Turns(), s.Interruptions()); err != nil {
		r.logger.Warn("session close persist failed", "session_id", id, "error", err)
	}

	r.logger.Info("session closed",
		"session_id", id,
		"turns", s.Turns(),
		"interruptions", s.Interruptions(),
		"active", count,
	)
}

// Count returns the number of active sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// All returns a snapshot of active sessions.
func (r *Registry) All() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// Broadcast sends a message to every active session except the one
// with excludeID. Send failures are logged and skipped.
func (r *Registry) Broadcast(msg *protocol.Message, excludeID string) {
	for _, s := range r.All() {
		if s.ID == excludeID {
			continue
		}
		if err := s.Send(msg); err != nil {
			r.logger.Warn("broadcast send failed", "session_id", s.ID, "error", err)
		}
	}
}

// CloseAll ends every session, used at shutdown.
func (r *Registry) CloseAll(ctx context.Context) {
	for _, s := range r.All() {
		r.Close(ctx, s.ID)
	}
}
