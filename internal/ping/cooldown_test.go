package ping_test

import (
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/pingbot/internal/ping"
	"github.com/stretchr/testify/assert"
)

func TestRemainingSeconds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    time.Duration
		expected int64
	}{
		{name: "zero", input: 0, expected: 0},
		{name: "negative", input: -time.Second, expected: 0},
		{name: "one millisecond", input: time.Millisecond, expected: 1},
		{name: "exact seconds", input: 30 * time.Second, expected: 30},
		{name: "rounds up", input: 59*time.Second + time.Millisecond, expected: 60},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, ping.RemainingSeconds(tt.input))
		})
	}
}

func TestLimiter_Check(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	user := snowflake.ID(42)

	t.Run("unknown user is allowed", func(t *testing.T) {
		t.Parallel()

		l := ping.NewLimiter()
		check := l.Check(user, now)
		assert.True(t, check.Allowed)
		assert.Zero(t, check.Remaining)
	})

	t.Run("unexpired cooldown reports exact remaining time", func(t *testing.T) {
		t.Parallel()

		l := ping.NewLimiter()
		l.Record(user, now, time.Minute)

		check := l.Check(user, now.Add(15*time.Second+250*time.Millisecond))
		assert.False(t, check.Allowed)
		assert.Equal(t, 44*time.Second+750*time.Millisecond, check.Remaining)
		assert.Equal(t, int64(45), check.RemainingSeconds())

		// A failed check has no side effects
		assert.Equal(t, 1, l.Len())
		assert.Equal(t, check, l.Check(user, now.Add(15*time.Second+250*time.Millisecond)))
	})

	t.Run("expiry instant is allowed", func(t *testing.T) {
		t.Parallel()

		l := ping.NewLimiter()
		l.Record(user, now, time.Minute)

		assert.True(t, l.Check(user, now.Add(time.Minute)).Allowed)
		assert.Zero(t, l.Len())
	})

	t.Run("users are independent", func(t *testing.T) {
		t.Parallel()

		l := ping.NewLimiter()
		l.Record(user, now, time.Minute)

		assert.False(t, l.Check(user, now).Allowed)
		assert.True(t, l.Check(user+1, now).Allowed)
	})

	t.Run("non-positive duration records nothing", func(t *testing.T) {
		t.Parallel()

		l := ping.NewLimiter()
		l.Record(user, now, 0)

		assert.True(t, l.Check(user, now).Allowed)
		assert.Zero(t, l.Len())
	})

	t.Run("record replaces previous expiry", func(t *testing.T) {
		t.Parallel()

		l := ping.NewLimiter()
		l.Record(user, now, time.Minute)
		l.Record(user, now.Add(30*time.Second), time.Minute)

		check := l.Check(user, now.Add(time.Minute))
		assert.False(t, check.Allowed)
		assert.Equal(t, 30*time.Second, check.Remaining)
	})
}

func TestLimiter_Purge(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	l := ping.NewLimiter()
	l.Record(1, now, time.Second)
	l.Record(2, now, 10*time.Second)
	l.Record(3, now, time.Minute)

	assert.Equal(t, 2, l.Purge(now.Add(10*time.Second)))
	assert.Equal(t, 1, l.Len())
	assert.False(t, l.Check(3, now.Add(10*time.Second)).Allowed)

	assert.Zero(t, l.Purge(now.Add(10*time.Second)))
}
