package websocket

import (
	"sync"
	"time"
)

// Session is the per-connection state. Created on connect, mutated by
// auth and liveness events, destroyed on disconnect. Owned by the Hub.
type Session struct {
	Id string

	mu             sync.RWMutex
	subjectId      string
	authenticated  bool
	lastLivenessAt time.Time
}

func NewSession(id string) *Session {
	return &Session{
		Id:             id,
		lastLivenessAt: time.Now(),
	}
}

// BindSubject marks the session authenticated as subjectId. Re-binding
// is allowed and replaces the prior identity.
func (s *Session) BindSubject(subjectId string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subjectId = subjectId
	s.authenticated = true
}

func (s *Session) SubjectId() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.subjectId
}

func (s *Session) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authenticated
}

func (s *Session) TouchLiveness() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastLivenessAt = time.Now()
}

func (s *Session) LastLivenessAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastLivenessAt
}
