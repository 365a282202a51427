package ping

import (
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/google/uuid"
)

// Registry tracks which users are running a session and the sessions
// themselves. Every method is a single critical section, so test-and-set
// style operations never interleave.
type Registry struct {
	mu       sync.Mutex
	active   map[snowflake.ID]struct{}
	sessions map[SessionID]*Session
	now      func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		active:   make(map[snowflake.ID]struct{}),
		sessions: make(map[SessionID]*Session),
		now:      time.Now,
	}
}

// TryAcquire sets the user's active marker. It returns false when the marker
// is already held.
func (r *Registry) TryAcquire(userID snowflake.ID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.active[userID]; ok {
		return false
	}
	r.active[userID] = struct{}{}
	return true
}

// Release removes the user's active marker. Releasing an absent marker is a no-op.
func (r *Registry) Release(userID snowflake.ID) {
	r.mu.Lock()
	delete(r.active, userID)
	r.mu.Unlock()
}

// IsActive reports whether the user holds an active marker.
func (r *Registry) IsActive(userID snowflake.ID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.active[userID]
	return ok
}

// CreateSession registers a fresh session with stop=false and completed=0.
func (r *Registry) CreateSession(opts SessionOptions) SessionID {
	id := SessionID{Owner: opts.Owner, Nonce: uuid.New()}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[id] = &Session{
		ID:        id,
		TargetID:  opts.TargetID,
		Amount:    opts.Amount,
		Method:    opts.Method,
		Context:   opts.Context,
		CreatedAt: r.now(),
	}
	return id
}

// Session returns the session with the given identifier.
func (r *Registry) Session(id SessionID) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	return s, ok
}

// SessionFor returns the session owned by the user, if any.
func (r *Registry) SessionFor(userID snowflake.ID) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.sessionFor(userID)
}

func (r *Registry) sessionFor(userID snowflake.ID) (*Session, bool) {
	for id, s := range r.sessions {
		if id.Owner == userID {
			return s, true
		}
	}
	return nil, false
}

// RequestStop flags the session owned by the user for stopping. It returns
// false when the user has no session. Repeated requests are harmless.
func (r *Registry) RequestStop(userID snowflake.ID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessionFor(userID)
	if !ok {
		return false
	}
	s.requestStop()
	return true
}

// IsStopped reports whether a stop was requested for the session. A session
// that no longer exists counts as stopped.
func (r *Registry) IsStopped(id SessionID) bool {
	s, ok := r.Session(id)
	if !ok {
		return true
	}
	return s.Stopped()
}

// IncrementCompleted records one delivered ping and returns the new count.
func (r *Registry) IncrementCompleted(id SessionID) int {
	s, ok := r.Session(id)
	if !ok {
		return 0
	}
	return s.increment()
}

// Completed returns the number of pings delivered by the session.
func (r *Registry) Completed(id SessionID) int {
	s, ok := r.Session(id)
	if !ok {
		return 0
	}
	return s.Completed()
}

// DestroySession forgets the session. Destroying twice is a no-op.
func (r *Registry) DestroySession(id SessionID) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
}

// ActiveSessions returns the number of registered sessions.
func (r *Registry) ActiveSessions() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
