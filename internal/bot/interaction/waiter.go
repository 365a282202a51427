// Package interaction adapts Discord interactions to the ping controller's
// Prompter and Deliverer ports.
package interaction

import (
	"sync"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
)

// Press is a button press on a confirmation prompt.
type Press struct {
	Confirm bool
	// Acknowledge answers the component interaction by editing the prompt.
	// It is nil when the press needs no response.
	Acknowledge func(update discord.MessageUpdate) error
}

// ResolveResult describes what happened to a routed button press.
type ResolveResult int

const (
	// ResolveDelivered means the press reached a waiting prompt.
	ResolveDelivered ResolveResult = iota
	// ResolveExpired means no prompt waits on the nonce anymore.
	ResolveExpired
	// ResolveNotOwner means the press came from someone other than the invoker.
	ResolveNotOwner
)

type pendingPrompt struct {
	owner snowflake.ID
	ch    chan Press
}

// Waiter routes confirmation button presses to the prompt that is waiting
// for them, keyed by the nonce carried in the button custom IDs.
type Waiter struct {
	mu      sync.Mutex
	pending map[string]*pendingPrompt
}

// NewWaiter creates an empty waiter.
func NewWaiter() *Waiter {
	return &Waiter{
		pending: make(map[string]*pendingPrompt),
	}
}

// Register starts waiting for a press by owner on the prompt with nonce.
// The returned cancel func stops waiting and must always be called.
func (w *Waiter) Register(nonce string, owner snowflake.ID) (<-chan Press, func()) {
	p := &pendingPrompt{owner: owner, ch: make(chan Press, 1)}

	w.mu.Lock()
	w.pending[nonce] = p
	w.mu.Unlock()

	return p.ch, func() {
		w.mu.Lock()
		if w.pending[nonce] == p {
			delete(w.pending, nonce)
		}
		w.mu.Unlock()
	}
}

// Resolve hands a press to the prompt waiting on nonce. Only the first press
// by the owner is delivered.
func (w *Waiter) Resolve(nonce string, userID snowflake.ID, press Press) ResolveResult {
	w.mu.Lock()
	defer w.mu.Unlock()

	p, ok := w.pending[nonce]
	if !ok {
		return ResolveExpired
	}

	if p.owner != userID {
		return ResolveNotOwner
	}

	delete(w.pending, nonce)
	p.ch <- press
	return ResolveDelivered
}

// Pending returns the number of prompts currently waiting.
func (w *Waiter) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}
