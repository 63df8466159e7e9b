package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store keeps editor sessions in memory with a capacity limit and TTL.
type Store struct {
	mu          sync.RWMutex
	sessions    map[string]*Editor
	maxSessions int
	ttl         time.Duration
	newEditor   func() *Editor
}

// NewStore creates a session store. newEditor builds each new session.
func NewStore(maxSessions int, ttl time.Duration, newEditor func() *Editor) *Store {
	return &Store{
		sessions:    make(map[string]*Editor),
		maxSessions: maxSessions,
		ttl:         ttl,
		newEditor:   newEditor,
	}
}

// Create starts a new session, evicting the least recently used one when
// the store is full.
func (s *Store) Create() *Editor {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.maxSessions > 0 && len(s.sessions) >= s.maxSessions {
		var oldestID string
		var oldestTime time.Time
		for id, ed := range s.sessions {
			if oldestTime.IsZero() || ed.LastAccess.Before(oldestTime) {
				oldestID = id
				oldestTime = ed.LastAccess
			}
		}
		delete(s.sessions, oldestID)
	}

	now := time.Now()
	ed := s.newEditor()
	ed.ID = uuid.New().String()
	ed.CreatedAt = now
	ed.LastAccess = now

	s.sessions[ed.ID] = ed
	return ed
}

// Get retrieves a session by ID and updates its LastAccess time.
func (s *Store) Get(id string) (*Editor, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ed, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	ed.LastAccess = time.Now()
	return ed, true
}

// Delete removes a session.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Cleanup removes sessions idle for longer than the TTL.
func (s *Store) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-s.ttl)
	for id, ed := range s.sessions {
		if ed.LastAccess.Before(cutoff) {
			delete(s.sessions, id)
		}
	}
}

// StartCleanup runs Cleanup every interval until the returned stop function
// is called.
func (s *Store) StartCleanup(interval time.Duration) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.C:
				s.Cleanup()
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()

	return func() { close(done) }
}
