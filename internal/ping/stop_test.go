package ping_test

import (
	"testing"

	"github.com/robalyx/pingbot/internal/ping"
	"github.com/stretchr/testify/assert"
)

func TestController_Stop(t *testing.T) {
	t.Parallel()

	t.Run("owner with a running session", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t)
		id := h.registry.CreateSession(ping.SessionOptions{Owner: invokerID, Amount: 5})

		assert.Equal(t, ping.StopRequested, h.controller.Stop(invokerID, invokerID))
		assert.True(t, h.registry.IsStopped(id))
	})

	t.Run("owner without a session", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t)
		assert.Equal(t, ping.StopNotFound, h.controller.Stop(invokerID, invokerID))
	})

	t.Run("someone else never touches the flag", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t)
		id := h.registry.CreateSession(ping.SessionOptions{Owner: invokerID, Amount: 5})

		assert.Equal(t, ping.StopDenied, h.controller.Stop(targetID, invokerID))
		assert.False(t, h.registry.IsStopped(id))

		// Denied even when the requester has a session of their own
		own := h.registry.CreateSession(ping.SessionOptions{Owner: targetID, Amount: 5})
		assert.Equal(t, ping.StopDenied, h.controller.Stop(targetID, invokerID))
		assert.False(t, h.registry.IsStopped(id))
		assert.False(t, h.registry.IsStopped(own))
	})
}

func TestStopResult_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "requested", ping.StopRequested.String())
	assert.Equal(t, "not_found", ping.StopNotFound.String())
	assert.Equal(t, "denied", ping.StopDenied.String())
}
