package services

import (
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/codyseavey/imgtools/internal/metrics"
)

const defaultSessionTTL = 30 * time.Minute

// SessionStore holds the live tool sessions. It is bounded in both size and
// age; evicted sessions are cancelled so their assets can be collected.
type SessionStore struct {
	sessions *expirable.LRU[string, *ToolSession]
}

// NewSessionStore creates a store for at most size sessions, each dropped
// after ttl without access. A zero ttl uses the default of 30 minutes.
func NewSessionStore(size int, ttl time.Duration) *SessionStore {
	if size <= 0 {
		size = 256
	}
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	onEvict := func(_ string, session *ToolSession) {
		// Sessions removed by the client are already empty
		if session.Asset() != nil {
			metrics.SessionsEvictedTotal.Inc()
		}
		session.Cancel()
		metrics.ActiveSessions.Dec()
	}
	return &SessionStore{
		sessions: expirable.NewLRU[string, *ToolSession](size, onEvict, ttl),
	}
}

// Add assigns the session a new id and stores it.
func (s *SessionStore) Add(session *ToolSession) string {
	session.ID = uuid.New().String()
	s.sessions.Add(session.ID, session)
	metrics.ActiveSessions.Inc()
	return session.ID
}

// Get returns the session with id, if it is still live, and restarts its
// idle timer.
func (s *SessionStore) Get(id string) (*ToolSession, bool) {
	session, ok := s.sessions.Get(id)
	if !ok {
		return nil, false
	}
	// Get alone does not extend the expiry; re-adding an existing key does
	s.sessions.Add(id, session)
	return session, true
}

// Remove cancels and drops a session. Removing an unknown id is a no-op.
func (s *SessionStore) Remove(id string) bool {
	if session, ok := s.sessions.Peek(id); ok {
		session.Cancel()
	}
	return s.sessions.Remove(id)
}

// Len returns the number of live sessions.
func (s *SessionStore) Len() int {
	return s.sessions.Len()
}
