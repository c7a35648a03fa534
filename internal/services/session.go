package services

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/securebank/backoffice/types"
)

const defaultSessionTTL = 8 * time.Hour

// SessionStore tracks live sessions by id. A session is gone once it is
// deleted or its expiry passes.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]types.Session
	ttl      time.Duration
	now      func() time.Time
}

func NewSessionStore(ttl time.Duration, now func() time.Time) *SessionStore {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	if now == nil {
		now = time.Now
	}
	return &SessionStore{
		sessions: make(map[string]types.Session),
		ttl:      ttl,
		now:      now,
	}
}

func (s *SessionStore) Create(username, role string, userID int64) types.Session {
	now := s.now()
	session := types.Session{
		ID:        uuid.NewString(),
		Username:  username,
		Role:      role,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()
	return session
}

func (s *SessionStore) Get(id string) (types.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return types.Session{}, false
	}
	if s.now().After(session.ExpiresAt) {
		delete(s.sessions, id)
		return types.Session{}, false
	}
	return session, true
}

// Delete removes a session and reports whether it existed.
func (s *SessionStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.sessions[id]
	delete(s.sessions, id)
	return ok
}

// Purge drops expired sessions and returns how many were removed.
func (s *SessionStore) Purge() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, session := range s.sessions {
		if now.After(session.ExpiresAt) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// TTL is the lifetime given to new sessions.
func (s *SessionStore) TTL() time.Duration {
	return s.ttl
}
