package interaction

import (
	"context"
	"errors"

	"github.com/disgoorg/disgo/discord"
	"github.com/google/uuid"
	view "github.com/robalyx/pingbot/internal/bot/views/ping"
	"github.com/robalyx/pingbot/internal/ping"
	"go.uber.org/zap"
)

// Responder answers the slash command interaction of one invocation.
type Responder interface {
	// Respond sends the initial interaction response.
	Respond(ctx context.Context, create discord.MessageCreate) error
	// EditOriginal edits the initial interaction response.
	EditOriginal(ctx context.Context, update discord.MessageUpdate) error
	// Followup sends an additional message tied to the interaction.
	Followup(ctx context.Context, create discord.MessageCreate) error
}

// Prompter renders one invocation through a Responder. The controller calls
// it from a single goroutine, so it keeps no locks.
type Prompter struct {
	responder Responder
	waiter    *Waiter
	logger    *zap.Logger
	newNonce  func() string

	responded bool
	// pending acknowledges the component interaction of the last press; the
	// next render must go through it.
	pending func(update discord.MessageUpdate) error
}

// PrompterOption customizes a Prompter.
type PrompterOption func(*Prompter)

// WithNonce overrides how prompt nonces are generated.
func WithNonce(newNonce func() string) PrompterOption {
	return func(p *Prompter) {
		p.newNonce = newNonce
	}
}

// NewPrompter creates a prompter for one invocation.
func NewPrompter(responder Responder, waiter *Waiter, logger *zap.Logger, opts ...PrompterOption) *Prompter {
	p := &Prompter{
		responder: responder,
		waiter:    waiter,
		logger:    logger,
		newNonce:  uuid.NewString,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Reject implements ping.Prompter.
func (p *Prompter) Reject(ctx context.Context, _ *ping.Request, rejection ping.Rejection) error {
	builder := view.NewRejectionBuilder(rejection)
	if p.responded {
		return p.update(ctx, builder.BuildUpdate().Build())
	}
	return p.respond(ctx, builder.Build().Build())
}

// AwaitConfirmation implements ping.Prompter.
func (p *Prompter) AwaitConfirmation(ctx context.Context, req *ping.Request) (ping.Decision, error) {
	nonce := p.newNonce()
	presses, cancel := p.waiter.Register(nonce, req.InvokerID)
	defer cancel()

	if err := p.respond(ctx, view.NewConfirmationBuilder(req, nonce).Build().Build()); err != nil {
		return ping.DecisionTimeout, err
	}

	select {
	case press := <-presses:
		p.pending = press.Acknowledge
		if press.Confirm {
			return ping.DecisionConfirm, nil
		}
		return ping.DecisionCancel, nil
	case <-ctx.Done():
		// A press that raced the deadline still needs its acknowledgement
		select {
		case press := <-presses:
			p.pending = press.Acknowledge
		default:
		}

		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ping.DecisionTimeout, nil
		}
		return ping.DecisionTimeout, ctx.Err()
	}
}

// ShowProgress implements ping.Prompter.
func (p *Prompter) ShowProgress(ctx context.Context, req *ping.Request, _ ping.SessionID) error {
	return p.update(ctx, view.NewProgressBuilder(req).Build().Build())
}

// NotifyDeliveryFailure implements ping.Prompter.
func (p *Prompter) NotifyDeliveryFailure(ctx context.Context, req *ping.Request) error {
	return p.responder.Followup(ctx, view.NewDeliveryFailureBuilder(req).Build().Build())
}

// Report implements ping.Prompter.
func (p *Prompter) Report(ctx context.Context, req *ping.Request, result ping.Result) error {
	return p.update(ctx, view.NewOutcomeBuilder(req, result).Build().Build())
}

// Fail shows a generic error in place of whatever the invocation last
// rendered, or as the first response if nothing was sent yet.
func (p *Prompter) Fail(ctx context.Context, message string) error {
	builder := view.NewErrorBuilder(message)
	if p.responded {
		return p.update(ctx, builder.BuildUpdate().Build())
	}
	return p.respond(ctx, builder.Build().Build())
}

func (p *Prompter) respond(ctx context.Context, create discord.MessageCreate) error {
	if err := p.responder.Respond(ctx, create); err != nil {
		return err
	}
	p.responded = true
	return nil
}

// update edits the prompt, acknowledging a pending button press first.
func (p *Prompter) update(ctx context.Context, update discord.MessageUpdate) error {
	if ack := p.pending; ack != nil {
		p.pending = nil
		err := ack(update)
		if err == nil {
			return nil
		}
		p.logger.Debug("Failed to acknowledge button press, editing response instead", zap.Error(err))
	}
	return p.responder.EditOriginal(ctx, update)
}
