package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/picitalk/pkg/tts"
)

// ErrNotFound is returned for unknown or expired session ids.
var ErrNotFound = errors.New("session not found")

// Store keeps sessions in memory. Sessions untouched for longer than the idle
// timeout are pruned lazily whenever the store is accessed.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	idle     time.Duration
	voice    tts.Voice
	now      func() time.Time
}

// NewStore creates a Store. New sessions start with voice.
func NewStore(idle time.Duration, voice tts.Voice) *Store {
	return &Store{
		sessions: make(map[string]*Session),
		idle:     idle,
		voice:    voice,
		now:      time.Now,
	}
}

// Create starts a new session.
func (s *Store) Create() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.pruneLocked(now)

	sess := newSession(uuid.NewString(), s.voice, now)
	s.sessions[sess.ID] = sess
	return sess
}

// Get returns the session and marks it as recently used.
func (s *Store) Get(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.pruneLocked(now)

	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	sess.lastAccess = now
	return sess, nil
}

// Delete removes a session and reports whether it existed.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.sessions[id]
	delete(s.sessions, id)
	return ok
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked(s.now())
	return len(s.sessions)
}

func (s *Store) pruneLocked(now time.Time) {
	if s.idle <= 0 {
		return
	}
	for id, sess := range s.sessions {
		if now.Sub(sess.lastAccess) > s.idle {
			delete(s.sessions, id)
		}
	}
}
