package ping

import (
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

// CooldownCheck is the answer of a cooldown lookup.
type CooldownCheck struct {
	Allowed   bool
	Remaining time.Duration
}

// RemainingSeconds rounds the remaining cooldown up to whole seconds.
func (c CooldownCheck) RemainingSeconds() int64 {
	return RemainingSeconds(c.Remaining)
}

// RemainingSeconds returns ceil(d / 1s), never negative.
func RemainingSeconds(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	secs := int64(d / time.Second)
	if d%time.Second != 0 {
		secs++
	}
	return secs
}

// Limiter tracks per-user cooldown expiry instants.
// Checking and recording are separate so that rejected or cancelled
// invocations never incur a cooldown.
type Limiter struct {
	mu      sync.Mutex
	expires map[snowflake.ID]time.Time
}

// NewLimiter creates an empty cooldown limiter.
func NewLimiter() *Limiter {
	return &Limiter{
		expires: make(map[snowflake.ID]time.Time),
	}
}

// Check reports whether the user may start a session at now.
func (l *Limiter) Check(userID snowflake.ID, now time.Time) CooldownCheck {
	l.mu.Lock()
	defer l.mu.Unlock()

	expiry, ok := l.expires[userID]
	if !ok {
		return CooldownCheck{Allowed: true}
	}

	remaining := expiry.Sub(now)
	if remaining <= 0 {
		// Stale entry, nothing else depends on it
		delete(l.expires, userID)
		return CooldownCheck{Allowed: true}
	}

	return CooldownCheck{Allowed: false, Remaining: remaining}
}

// Record starts a cooldown of the given duration for the user.
func (l *Limiter) Record(userID snowflake.ID, now time.Time, duration time.Duration) {
	if duration <= 0 {
		return
	}

	l.mu.Lock()
	l.expires[userID] = now.Add(duration)
	l.mu.Unlock()
}

// Purge removes every entry that has expired at now and returns how many
// entries were dropped.
func (l *Limiter) Purge(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	purged := 0
	for userID, expiry := range l.expires {
		if !now.Before(expiry) {
			delete(l.expires, userID)
			purged++
		}
	}
	return purged
}

// Len returns the number of tracked entries, stale ones included.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.expires)
}
