package auth

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mind-engage/mindengage-quiz/internal/identity"
)

// Session is one sign-in: it starts at login and ends at logout or expiry.
type Session struct {
	ID        string           `json:"id"`
	Profile   identity.Profile `json:"profile"`
	StartedAt time.Time        `json:"started_at"`
	ExpiresAt time.Time        `json:"expires_at"`
}

// Sessions tracks live sessions in process memory. A bearer token is only
// honoured while its session is here.
type Sessions struct {
	mu   sync.Mutex
	byID map[string]Session
	ttl  time.Duration
	now  func() time.Time
}

func NewSessions(ttl time.Duration) *Sessions {
	if ttl <= 0 {
		ttl = 8 * time.Hour
	}
	return &Sessions{byID: map[string]Session{}, ttl: ttl, now: time.Now}
}

func (s *Sessions) TTL() time.Duration { return s.ttl }

func (s *Sessions) Begin(p identity.Profile) Session {
	now := s.now()
	sess := Session{ID: uuid.NewString(), Profile: p, StartedAt: now, ExpiresAt: now.Add(s.ttl)}
	s.mu.Lock()
	s.byID[sess.ID] = sess
	s.mu.Unlock()
	return sess
}

func (s *Sessions) End(id string) {
	s.mu.Lock()
	delete(s.byID, id)
	s.mu.Unlock()
}

func (s *Sessions) Lookup(id string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.byID[id]
	if !ok {
		return Session{}, false
	}
	if !s.now().Before(sess.ExpiresAt) {
		delete(s.byID, id)
		return Session{}, false
	}
	return sess, true
}

// Update replaces the profile carried by a live session, e.g. after the
// user sets a username.
func (s *Sessions) Update(id string, p identity.Profile) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.byID[id]
	if !ok {
		return Session{}, false
	}
	sess.Profile = p
	s.byID[id] = sess
	return sess, true
}

// Sweep drops expired sessions and reports how many it removed.
func (s *Sessions) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	n := 0
	for id, sess := range s.byID {
		if !now.Before(sess.ExpiresAt) {
			delete(s.byID, id)
			n++
		}
	}
	return n
}
