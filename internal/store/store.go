// ABOUTME: SessionStore interface and data types for cauldron-gateway persistence
// ABOUTME: Records the runtime sessions the gateway created so they can be listed per user and agent

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/2389/cauldron-gateway/internal/config"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrInvalidSession is returned when a session is missing a key field
var ErrInvalidSession = errors.New("session requires user_id, agent_name and session_id")

// Session is a runtime session the gateway created on behalf of a user.
// The runtime owns the session itself; this is only the gateway's record of it.
type Session struct {
	UserID    string
	AgentName string
	SessionID string
	AgentID   string
	CreatedAt time.Time
}

// Validate checks the key fields.
func (s *Session) Validate() error {
	if s.UserID == "" || s.AgentName == "" || s.SessionID == "" {
		return ErrInvalidSession
	}
	return nil
}

// SessionStore persists session records.
type SessionStore interface {
	// SaveSession records a session. Saving an existing key updates AgentID.
	SaveSession(ctx context.Context, session *Session) error

	// DeleteSession removes a record. Returns ErrNotFound if it does not exist.
	DeleteSession(ctx context.Context, userID, agentName, sessionID string) error

	// ListSessions returns a user's sessions for one agent, oldest first.
	ListSessions(ctx context.Context, userID, agentName string) ([]*Session, error)

	// Ping checks that the backing database is reachable.
	Ping(ctx context.Context) error

	Close() error
}

// Open creates the SessionStore selected by cfg.Driver.
func Open(cfg config.DatabaseConfig) (SessionStore, error) {
	switch cfg.Driver {
	case "", "sqlite":
		return NewSQLiteStore(cfg.Path)
	case "postgres":
		return NewGormStore("postgres", cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// SessionIDs extracts the ids from a listing, preserving order.
func SessionIDs(sessions []*Session) []string {
	ids := make([]string, 0, len(sessions))
	for _, s := range sessions {
		ids = append(ids, s.SessionID)
	}
	return ids
}
