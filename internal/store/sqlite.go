// ABOUTME: SQLite implementation of SessionStore using modernc.org/sqlite
// ABOUTME: Creates its schema on open and runs in WAL mode

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// timeLayout is fixed-width so that created_at sorts chronologically as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteStore implements SessionStore using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if path == ":memory:" {
		// Each connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	} else if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS sessions (
			user_id    TEXT NOT NULL,
			agent_name TEXT NOT NULL,
			session_id TEXT NOT NULL,
			agent_id   TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			PRIMARY KEY (user_id, agent_name, session_id)
		);

		CREATE INDEX IF NOT EXISTS idx_sessions_user_agent_created
			ON sessions(user_id, agent_name, created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveSession records a session, updating agent_id if it already exists
func (s *SQLiteStore) SaveSession(ctx context.Context, session *Session) error {
	if err := session.Validate(); err != nil {
		return err
	}

	createdAt := session.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	query := `
		INSERT INTO sessions (user_id, agent_name, session_id, agent_id, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id, agent_name, session_id) DO UPDATE SET agent_id = excluded.agent_id
	`

	_, err := s.db.ExecContext(ctx, query,
		session.UserID,
		session.AgentName,
		session.SessionID,
		session.AgentID,
		createdAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}

// DeleteSession removes a session record
func (s *SQLiteStore) DeleteSession(ctx context.Context, userID, agentName, sessionID string) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE user_id = ? AND agent_name = ? AND session_id = ?`,
		userID, agentName, sessionID,
	)
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// ListSessions returns the sessions for a user and agent, oldest first
func (s *SQLiteStore) ListSessions(ctx context.Context, userID, agentName string) ([]*Session, error) {
	query := `
		SELECT user_id, agent_name, session_id, agent_id, created_at
		FROM sessions
		WHERE user_id = ? AND agent_name = ?
		ORDER BY created_at ASC, session_id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, userID, agentName)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		var sess Session
		var createdAt string
		if err := rows.Scan(&sess.UserID, &sess.AgentName, &sess.SessionID, &sess.AgentID, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		sess.CreatedAt, err = time.Parse(timeLayout, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		sessions = append(sessions, &sess)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sessions: %w", err)
	}
	return sessions, nil
}

// Ping checks the database connection
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
