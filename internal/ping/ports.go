package ping

import (
	"context"

	"github.com/disgoorg/snowflake/v2"
)

// Prompter renders invocation state to the invoker and collects the
// confirmation decision.
type Prompter interface {
	// Reject tells the invoker why the request was refused.
	Reject(ctx context.Context, req *Request, rejection Rejection) error

	// AwaitConfirmation shows the confirm/cancel choice and blocks until the
	// invoker answers or ctx is done. A ctx deadline must surface either as
	// DecisionTimeout or as the context error.
	AwaitConfirmation(ctx context.Context, req *Request) (Decision, error)

	// ShowProgress replaces the confirmation with the in-progress view that
	// carries the stop control.
	ShowProgress(ctx context.Context, req *Request, id SessionID) error

	// NotifyDeliveryFailure surfaces the one-off notice that direct messages
	// could not be delivered.
	NotifyDeliveryFailure(ctx context.Context, req *Request) error

	// Report replaces any prompt with the terminal outcome.
	Report(ctx context.Context, req *Request, result Result) error
}

// Deliverer sends ping messages. Each call is a single attempt.
type Deliverer interface {
	// OpenDirect returns the direct message channel with a user.
	OpenDirect(ctx context.Context, userID snowflake.ID) (snowflake.ID, error)
	// Send posts one message to a channel.
	Send(ctx context.Context, channelID snowflake.ID, content string) error
}
