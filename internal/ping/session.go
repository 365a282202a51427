package ping

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/google/uuid"
)

// SessionID identifies one confirmed run. The owner is kept as a separate
// field so lookups by user never depend on parsing the identifier.
type SessionID struct {
	Owner snowflake.ID
	Nonce uuid.UUID
}

// String formats the identifier for logs.
func (id SessionID) String() string {
	return fmt.Sprintf("%s/%s", id.Owner, id.Nonce)
}

// IsZero reports whether the identifier was never assigned.
func (id SessionID) IsZero() bool {
	return id.Owner == 0 && id.Nonce == uuid.Nil
}

// SessionOptions describes the run being registered.
type SessionOptions struct {
	Owner    snowflake.ID
	TargetID snowflake.ID
	Amount   int
	Method   Method
	Context  string
}

// Session is one in-flight delivery run.
type Session struct {
	ID        SessionID
	TargetID  snowflake.ID
	Amount    int
	Method    Method
	Context   string
	CreatedAt time.Time

	stopped   atomic.Bool
	completed atomic.Int64
}

// Stopped reports whether a stop was requested.
func (s *Session) Stopped() bool {
	return s.stopped.Load()
}

// Completed returns how many pings were delivered so far.
func (s *Session) Completed() int {
	return int(s.completed.Load())
}

func (s *Session) requestStop() {
	s.stopped.Store(true)
}

func (s *Session) increment() int {
	return int(s.completed.Add(1))
}
