// Package session tracks live client connections and their bound users.
package session

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// ErrUnknownSession reports an id that is not registered.
var ErrUnknownSession = errors.New("unknown session")

// SessionError reports a registry rule violation: a duplicate registration
// or an attempt to rebind a session to a different user.
type SessionError struct {
	SessionID string
	Reason    string
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("session %s: %s", e.SessionID, e.Reason)
}

// Session is one live connection.
type Session struct {
	ID          string
	User        string
	Held        string
	ConnectedAt time.Time
	LastSeen    time.Time
}

// Registry is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	now      func() time.Time
}

// NewRegistry returns an empty registry. A nil clock uses time.Now.
func NewRegistry(now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{sessions: make(map[string]*Session), now: now}
}

// Register adds a session with no user and no held segment.
func (r *Registry) Register(id string) (Session, error) {
	if id == "" {
		return Session{}, &SessionError{SessionID: id, Reason: "empty session id"}
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[id]; exists {
		return Session{}, &SessionError{SessionID: id, Reason: "already registered"}
	}
	now := r.now()
	s := &Session{ID: id, ConnectedAt: now, LastSeen: now}
	r.sessions[id] = s
	return *s, nil
}

// BindUser associates user with the session. The first non-empty name wins;
// repeating it is a no-op and a different name is rejected.
func (r *Registry) BindUser(id, user string) error {
	if user == "" {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	switch s.User {
	case "":
		s.User = user
		return nil
	case user:
		return nil
	default:
		return &SessionError{SessionID: id, Reason: fmt.Sprintf("bound to user %q, cannot rebind to %q", s.User, user)}
	}
}

// SetHeld records the segment the session holds. An empty id clears it.
func (r *Registry) SetHeld(id, segmentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	s.Held = segmentID
	return nil
}

// ClearHeldAll clears the held segment of every session and returns how many
// sessions held one.
func (r *Registry) ClearHeldAll() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, s := range r.sessions {
		if s.Held != "" {
			s.Held = ""
			n++
		}
	}
	return n
}

// ClearHeldIf clears the held segment of session id when it equals segmentID.
func (r *Registry) ClearHeldIf(id, segmentID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok || s.Held != segmentID {
		return false
	}
	s.Held = ""
	return true
}

// Unregister removes the session and returns its final state so the caller
// can release the held lock.
func (r *Registry) Unregister(id string) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return Session{}, fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	delete(r.sessions, id)
	return *s, nil
}

// Get returns a copy of the session.
func (r *Registry) Get(id string) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok {
		return Session{}, false
	}
	return *s, true
}

// Touch records activity on the session.
func (r *Registry) Touch(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[id]; ok {
		s.LastSeen = r.now()
	}
}

// List returns copies of all sessions ordered by connection time.
func (r *Registry) List() []Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ConnectedAt.Equal(out[j].ConnectedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].ConnectedAt.Before(out[j].ConnectedAt)
	})
	return out
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
