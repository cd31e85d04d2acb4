package memory

import (
	"context"
	"sync"
	"time"

	"quizmaster/internal/app"
)

// SessionStore is an in-memory implementation of app.SessionRepository.
// Sessions idle for longer than ttl are abandoned and dropped on the next Put
// or Get, or by Run.
type SessionStore struct {
	ttl   time.Duration
	clock func() time.Time

	mu       sync.RWMutex
	sessions map[string]*entry
}

type entry struct {
	session *app.Session
	touched time.Time
}

func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{
		ttl:      ttl,
		clock:    time.Now,
		sessions: make(map[string]*entry),
	}
}

func (s *SessionStore) Put(session *app.Session) {
	now := s.clock()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked(now)
	s.sessions[session.ID()] = &entry{session: session, touched: now}
}

func (s *SessionStore) Get(sessionID string) (*app.Session, bool) {
	now := s.clock()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked(now)
	e, ok := s.sessions[sessionID]
	if !ok {
		return nil, false
	}
	e.touched = now
	return e.session, true
}

// Sweep abandons and drops idle sessions.
func (s *SessionStore) Sweep() {
	now := s.clock()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked(now)
}

// Run sweeps every interval until ctx is done, so idle sessions are released
// even when no requests arrive.
func (s *SessionStore) Run(ctx context.Context, interval time.Duration) {
	if s.ttl <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

func (s *SessionStore) Delete(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}

// Len reports how many sessions are registered.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *SessionStore) sweepLocked(now time.Time) {
	if s.ttl <= 0 {
		return
	}
	for id, e := range s.sessions {
		if now.Sub(e.touched) > s.ttl {
			e.session.Abandon()
			delete(s.sessions, id)
		}
	}
}
