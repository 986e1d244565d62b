package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/mohammad-safakhou/insight/config"
	"github.com/mohammad-safakhou/insight/internal/research"
)

// ErrNotFound is returned when a session id has no stored row.
var ErrNotFound = errors.New("store: session not found")

// SessionStore persists research sessions in Postgres. The full session is
// stored as one JSONB document next to a few indexed columns, so the state
// model can evolve without schema churn.
type SessionStore struct {
	DB *sql.DB
}

func NewSessionStore(db *sql.DB) *SessionStore { return &SessionStore{DB: db} }

// Open connects to Postgres with the configured DSN and verifies the
// connection.
func Open(ctx context.Context, cfg config.PostgresConfig) (*sql.DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// SessionSummary is the list-view projection of a stored session.
type SessionSummary struct {
	ID        string    `json:"id"`
	Query     string    `json:"query"`
	Status    string    `json:"status"`
	Sections  int       `json:"sections"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SaveSession upserts the session document keyed by id.
func (s *SessionStore) SaveSession(ctx context.Context, sess *research.Session) error {
	state, err := sess.Marshal()
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	_, err = s.DB.ExecContext(ctx, `
INSERT INTO research_sessions (id, query, status, sections, state, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (id) DO UPDATE SET
  status = EXCLUDED.status,
  sections = EXCLUDED.sections,
  state = EXCLUDED.state,
  updated_at = EXCLUDED.updated_at`,
		sess.ID, sess.Query, string(sess.Status), len(sess.Sections), state, sess.CreatedAt, sess.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save session %s: %w", sess.ID, err)
	}
	return nil
}

// GetSession loads one session document by id.
func (s *SessionStore) GetSession(ctx context.Context, id string) (*research.Session, error) {
	var state []byte
	err := s.DB.QueryRowContext(ctx,
		`SELECT state FROM research_sessions WHERE id = $1`, id).Scan(&state)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}
	sess, err := research.UnmarshalSession(state)
	if err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return sess, nil
}

// ListSessions returns summaries ordered newest first.
func (s *SessionStore) ListSessions(ctx context.Context, limit int) ([]SessionSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, query, status, sections, created_at, updated_at
FROM research_sessions
ORDER BY created_at DESC
LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionSummary
	for rows.Next() {
		var sum SessionSummary
		if err := rows.Scan(&sum.ID, &sum.Query, &sum.Status, &sum.Sections, &sum.CreatedAt, &sum.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan session summary: %w", err)
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// CreateUser inserts a new account with a bcrypt password hash.
func (s *SessionStore) CreateUser(ctx context.Context, id, email, passwordHash string) error {
	_, err := s.DB.ExecContext(ctx, `
INSERT INTO users (id, email, password_hash, created_at)
VALUES ($1,$2,$3,NOW())`, id, email, passwordHash)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// GetUserByEmail returns the account id and password hash for email.
func (s *SessionStore) GetUserByEmail(ctx context.Context, email string) (string, string, error) {
	var id, hash string
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, password_hash FROM users WHERE email = $1`, email).Scan(&id, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", ErrNotFound
	}
	if err != nil {
		return "", "", fmt.Errorf("get user: %w", err)
	}
	return id, hash, nil
}

// DeleteSession removes a stored session. Missing ids are not an error.
func (s *SessionStore) DeleteSession(ctx context.Context, id string) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM research_sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	return nil
}
