// ABOUTME: Mock SessionStore implementation for testing
// ABOUTME: Allows tests to run without a database and to inject failures

package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MockStore is an in-memory SessionStore implementation for testing.
type MockStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session // keyed by "userID/agentName/sessionID"

	// SaveErr, when set, is returned by SaveSession.
	SaveErr error
	// PingErr, when set, is returned by Ping.
	PingErr error
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		sessions: make(map[string]*Session),
	}
}

func sessionKey(userID, agentName, sessionID string) string {
	return userID + "/" + agentName + "/" + sessionID
}

// SaveSession stores a copy of the session.
func (m *MockStore) SaveSession(ctx context.Context, session *Session) error {
	if err := session.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SaveErr != nil {
		return m.SaveErr
	}

	key := sessionKey(session.UserID, session.AgentName, session.SessionID)
	if existing, ok := m.sessions[key]; ok {
		existing.AgentID = session.AgentID
		return nil
	}

	s := *session
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	m.sessions[key] = &s
	return nil
}

// DeleteSession removes a session.
func (m *MockStore) DeleteSession(ctx context.Context, userID, agentName, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := sessionKey(userID, agentName, sessionID)
	if _, ok := m.sessions[key]; !ok {
		return ErrNotFound
	}
	delete(m.sessions, key)
	return nil
}

// ListSessions returns copies of the matching sessions, oldest first.
func (m *MockStore) ListSessions(ctx context.Context, userID, agentName string) ([]*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*Session
	for _, s := range m.sessions {
		if s.UserID == userID && s.AgentName == agentName {
			cp := *s
			result = append(result, &cp)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].SessionID < result[j].SessionID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// Ping returns PingErr.
func (m *MockStore) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.PingErr
}

// Close is a no-op.
func (m *MockStore) Close() error {
	return nil
}

var (
	_ SessionStore = (*MockStore)(nil)
	_ SessionStore = (*SQLiteStore)(nil)
	_ SessionStore = (*GormStore)(nil)
)
