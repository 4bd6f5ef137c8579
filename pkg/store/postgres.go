package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres implements Store on a pgx connection pool.
type Postgres struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// schema is applied on startup. Idempotent.
const schema = `
CREATE TABLE IF NOT EXISTS sessions (
    id             TEXT PRIMARY KEY,
    user_id        TEXT NOT NULL,
    created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
    ended_at       TIMESTAMPTZ,
    turns          INT NOT NULL DEFAULT 0,
    interruptions  INT NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS messages (
    id          BIGSERIAL PRIMARY KEY,
    session_id  TEXT NOT NULL REFERENCES sessions(id),
    role        TEXT NOT NULL,
    content     TEXT NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS messages_session_idx ON messages (session_id, created_at);
`

// NewPostgres connects to Postgres and ensures the schema exists.
func NewPostgres(ctx context.Context, databaseURL string, logger *slog.Logger) (*Postgres, error) {
	if logger == nil {
		logger = slog.Default()
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}

	return &Postgres{
		pool:   pool,
		logger: logger.With("component", "store.postgres"),
	}, nil
}

// CreateSession implements Store.
func (p *Postgres) CreateSession(ctx context.Context, sessionID, userID string) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO sessions (id, user_id) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING`,
		sessionID, userID)
	if err != nil {
		return fmt.Errorf("store: create session: %w", err)
	}
	return nil
}

// CloseSession implements Store.
func (p *Postgres) CloseSession(ctx context.Context, sessionID string, turns, interruptions int) error {
	_, err := p.pool.Exec(ctx,
		`UPDATE sessions SET ended_at = now(), turns = $2, interruptions = $3 WHERE id = $1`,
		sessionID, turns, interruptions)
	if err != nil {
		return fmt.Errorf("store: close session: %w", err)
	}
	return nil
}

// AppendMessage implements Store.
func (p *Postgres) AppendMessage(ctx context.Context, sessionID, role, content string) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO messages (session_id, role, content) VALUES ($1, $2, $3)`,
		sessionID, role, content)
	if err != nil {
		return fmt.Errorf("store: append message: %w", err)
	}
	return nil
}

// RecentMessages implements Store.
func (p *Postgres) RecentMessages(ctx context.Context, sessionID string, limit int) ([]Message, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT session_id, role, content, created_at
		 FROM (
		     SELECT session_id, role, content, created_at
		     FROM messages WHERE session_id = $1
		     ORDER BY created_at DESC LIMIT $2
		 ) recent
		 ORDER BY created_at ASC`,
		sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("store: query messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.SessionID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan message: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// Health implements Store.
func (p *Postgres) Health(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close implements Store.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

// Verify Postgres implements Store at compile time.
var _ Store = (*Postgres)(nil)
