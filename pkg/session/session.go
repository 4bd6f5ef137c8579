// Package session tracks connected conversations: one Session per
// client connection, holding the interrupt flag, the utterance audio
// buffer, and turn counters. The Registry owns the session lifecycle.
package session

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/irisvoice/go-iris/pkg/audio"
	"github.com/irisvoice/go-iris/pkg/protocol"
)

// Conn is the transport half of a session. The gateway adapts a
// websocket connection to this; the local runner uses an in-process
// implementation. Send must be safe for concurrent use.
type Conn interface {
	Send(msg *protocol.Message) error
}

// Session is the state of one connected conversation.
type Session struct {
	// ID is the server-assigned session identifier.
	ID string

	// UserID identifies the user, when the transport supplies one.
	UserID string

	// Buffer accumulates utterance audio until flush.
	Buffer *audio.Buffer

	conn      Conn
	createdAt time.Time

	mu        sync.Mutex
	endedAt   time.Time
	active    bool
	newsIndex int

	// interrupted is the per-session interrupt flag. It is set by
	// voice commands and client messages, checked between streaming
	// fragments, and cleared when a new turn starts.
	interrupted atomic.Bool

	turns         atomic.Int64
	interruptions atomic.Int64
}

// newSession is called by the Registry.
func newSession(id, userID string, conn Conn, bufferThreshold int) *Session {
	return &Session{
		ID:        id,
		UserID:    userID,
		Buffer:    audio.NewBuffer(bufferThreshold),
		conn:      conn,
		createdAt: time.Now(),
		active:    true,
	}
}

// Send forwards a message to the client. Returns an error after the
// session has ended.
func (s *Session) Send(msg *protocol.Message) error {
	if !s.IsActive() {
		return ErrSessionClosed
	}
	return s.conn.Send(msg)
}

// Interrupt sets the interrupt flag. The flag stays set until the
// next turn starts, so an interrupt that lands between turns still
// applies.
func (s *Session) Interrupt() {
	if !s.interrupted.Swap(true) {
		s.interruptions.Add(1)
	}
}

// Interrupted reports whether the interrupt flag is set.
func (s *Session) Interrupted() bool {
	return s.interrupted.Load()
}

// BeginTurn clears the interrupt flag and counts a new turn.
func (s *Session) BeginTurn() {
	s.interrupted.Store(false)
	s.turns.Add(1)
}

// IsActive reports whether the session is still open.
func (s *Session) IsActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// CreatedAt returns when the session was opened.
func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}

// Turns returns the number of turns started.
func (s *Session) Turns() int {
	return int(s.turns.Load())
}

// Interruptions returns the number of interrupts delivered.
func (s *Session) Interruptions() int {
	return int(s.interruptions.Load())
}

// NewsIndex returns the cursor into the rotating news headlines.
func (s *Session) NewsIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.newsIndex
}

// AdvanceNews moves the headline cursor forward and returns the
// previous position.
func (s *Session) AdvanceNews() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.newsIndex
	s.newsIndex++
	return i
}

// end marks the session closed. Returns false if already closed.
func (s *Session) end() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return false
	}
	s.active = false
	s.endedAt = time.Now()
	return true
}
