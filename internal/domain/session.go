package domain

import (
	"sync"
	"time"
)

// IdentityState tags the result of handshake identity resolution.
type IdentityState int

const (
	IdentityAnonymous IdentityState = iota
	IdentityAuthenticated
	IdentityFailed
)

// Identity is the typed result of resolving a connection's credentials.
type Identity struct {
	State  IdentityState
	UserID string
	Err    error
}

// Authenticated builds an authenticated identity.
func Authenticated(userID string) Identity {
	return Identity{State: IdentityAuthenticated, UserID: userID}
}

// Anonymous builds an anonymous identity.
func Anonymous() Identity {
	return Identity{State: IdentityAnonymous}
}

// FailedIdentity builds a failed identity resolution result.
func FailedIdentity(err error) Identity {
	return Identity{State: IdentityFailed, Err: err}
}

// SessionState is the lifecycle state of a connection session.
type SessionState int

const (
	StateConnecting SessionState = iota
	StateAuthenticated
	StateClosed
)

// Session tracks one connection's lifecycle: Connecting → Authenticated →
// Closed, or Connecting → Closed when identity resolution fails. All
// methods are safe for concurrent use; the read pump and the hub touch a
// session from different goroutines.
type Session struct {
	ID     string
	RoomID string

	mu           sync.RWMutex
	state        SessionState
	userID       string
	createdAt    time.Time
	lastActiveAt time.Time
}

// NewSession creates a session in the Connecting state bound to one room.
func NewSession(id, roomID string) *Session {
	now := time.Now()
	return &Session{
		ID:           id,
		RoomID:       roomID,
		state:        StateConnecting,
		createdAt:    now,
		lastActiveAt: now,
	}
}

// Authenticate transitions Connecting → Authenticated. Returns false when
// the session is not in the Connecting state.
func (s *Session) Authenticate(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateConnecting {
		return false
	}
	s.state = StateAuthenticated
	s.userID = userID
	s.lastActiveAt = time.Now()
	return true
}

// Close transitions to Closed from any state. Idempotent; returns true only
// on the first call so teardown runs once.
func (s *Session) Close() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return false
	}
	s.state = StateClosed
	return true
}

// State returns the current lifecycle state.
func (s *Session) State() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// IsAuthenticated reports whether the session completed its handshake.
func (s *Session) IsAuthenticated() bool {
	return s.State() == StateAuthenticated
}

// UserID returns the authenticated user id, "" while Connecting.
func (s *Session) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

// UpdateActivity refreshes the last-activity timestamp.
func (s *Session) UpdateActivity() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActiveAt = time.Now()
}

// LastActiveAt returns the time of the last inbound activity.
func (s *Session) LastActiveAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActiveAt
}
