package ping

import (
	"github.com/disgoorg/snowflake/v2"
	"go.uber.org/zap"
)

// StopResult is the answer to a stop request.
type StopResult int

const (
	// StopRequested means the owner's session was flagged and will end
	// before its next send.
	StopRequested StopResult = iota
	// StopNotFound means the owner has no running session.
	StopNotFound
	// StopDenied means the requester does not own the session.
	StopDenied
)

func (r StopResult) String() string {
	switch r {
	case StopRequested:
		return "requested"
	case StopNotFound:
		return "not_found"
	case StopDenied:
		return "denied"
	default:
		return "unknown"
	}
}

// Stop handles a press of the stop control bound to owner. Only the owner may
// stop their own session; the flag is observed by the delivery loop.
func (c *Controller) Stop(requester, owner snowflake.ID) StopResult {
	if requester != owner {
		c.logger.Debug("Stop denied",
			zap.Uint64("requester_id", uint64(requester)),
			zap.Uint64("owner_id", uint64(owner)))
		return StopDenied
	}

	if !c.registry.RequestStop(owner) {
		return StopNotFound
	}

	c.logger.Debug("Stop requested", zap.Uint64("user_id", uint64(owner)))
	return StopRequested
}
