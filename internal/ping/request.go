// Package ping implements the lifecycle of a /ping invocation: admission,
// confirmation, paced delivery with cooperative cancellation, and outcome
// reporting. Discord specifics live behind the Prompter and Deliverer ports.
package ping

import (
	"github.com/disgoorg/snowflake/v2"
)

// Method selects where pings are delivered.
type Method string

const (
	// MethodServer sends pings into the channel the command was used in.
	MethodServer Method = "this server"
	// MethodDirectMessage sends pings to the target's direct messages.
	MethodDirectMessage Method = "DMs"
)

// Valid reports whether the method is one of the supported delivery methods.
func (m Method) Valid() bool {
	return m == MethodServer || m == MethodDirectMessage
}

// String returns the display label used in messages.
func (m Method) String() string {
	return string(m)
}

// Request is a parsed /ping invocation.
type Request struct {
	InvokerID snowflake.ID
	// TargetID is zero when the target could not be resolved.
	TargetID  snowflake.ID
	Amount    int
	Method    Method
	Context   string
	GuildID   *snowflake.ID
	GuildName string
	ChannelID snowflake.ID
}

// HasGuild reports whether the invocation happened inside a server.
func (r *Request) HasGuild() bool {
	return r.GuildID != nil && *r.GuildID != 0
}

// Decision is the user's answer to the confirmation prompt.
type Decision int

const (
	DecisionTimeout Decision = iota
	DecisionConfirm
	DecisionCancel
)

// Outcome is the terminal state of an invocation.
type Outcome int

const (
	// OutcomeRejected means validation refused the request; no state changed.
	OutcomeRejected Outcome = iota
	OutcomeCompleted
	OutcomePartiallyStopped
	OutcomeDeliveryFailed
	OutcomeCancelled
	OutcomeTimedOut
)

func (o Outcome) String() string {
	switch o {
	case OutcomeRejected:
		return "rejected"
	case OutcomeCompleted:
		return "completed"
	case OutcomePartiallyStopped:
		return "partially_stopped"
	case OutcomeDeliveryFailed:
		return "delivery_failed"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// Result describes how an invocation ended.
type Result struct {
	Outcome   Outcome
	Completed int
	Amount    int
	// Rejection is set for OutcomeRejected: either validation failed or a
	// confirmed prompt lost the race for the user's marker.
	Rejection *Rejection
	// Err holds the unexpected error behind a timed out or failed outcome.
	Err error
}

// Rejected reports whether the invocation was refused before running.
func (r Result) Rejected() bool {
	return r.Outcome == OutcomeRejected
}

// RejectionReason enumerates validation failures.
type RejectionReason int

const (
	RejectActiveSession RejectionReason = iota
	RejectCooldown
	RejectSelfTarget
	RejectUnknownTarget
	RejectNoGuild
	RejectInvalidAmount
	RejectInvalidMethod
)

func (r RejectionReason) String() string {
	switch r {
	case RejectActiveSession:
		return "active_session"
	case RejectCooldown:
		return "cooldown"
	case RejectSelfTarget:
		return "self_target"
	case RejectUnknownTarget:
		return "unknown_target"
	case RejectNoGuild:
		return "no_guild"
	case RejectInvalidAmount:
		return "invalid_amount"
	case RejectInvalidMethod:
		return "invalid_method"
	default:
		return "unknown"
	}
}

// Rejection is a validation failure reported to the invoker.
type Rejection struct {
	Reason RejectionReason
	// RemainingSeconds is set for RejectCooldown.
	RemainingSeconds int64
	// MaxAmount is set for RejectInvalidAmount.
	MaxAmount int
}
