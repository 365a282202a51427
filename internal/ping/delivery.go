package ping

import (
	"context"
	"fmt"
	"strings"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/pingbot/pkg/utils"
)

// Mention formats a user mention.
func Mention(userID snowflake.ID) string {
	return fmt.Sprintf("<@%s>", userID)
}

// FormatMessage builds the content of a single ping for the request's method.
func FormatMessage(req *Request) string {
	var b strings.Builder

	switch req.Method {
	case MethodDirectMessage:
		fmt.Fprintf(&b, "👤 **Pinged By:** %s\n\n🌐 **Server:** %s\n", Mention(req.InvokerID), req.GuildName)
	default:
		fmt.Fprintf(&b, "👤 **Pinged:** %s\n", Mention(req.TargetID))
	}

	if req.Context != "" {
		fmt.Fprintf(&b, "\n📜 **Context:** ` %s `", req.Context)
	}

	return b.String()
}

// deliver sends up to req.Amount pings, checking the stop flag before every
// send and pausing after each one. A direct message channel is opened once
// up front. It returns OutcomeDeliveryFailed on the first error and otherwise
// compares the completed count to the amount.
func (c *Controller) deliver(ctx context.Context, req *Request, id SessionID) (Outcome, error) {
	channelID, err := c.destination(ctx, req)
	if err != nil {
		return OutcomeDeliveryFailed, fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
	}

	content := FormatMessage(req)

	for range req.Amount {
		if c.registry.IsStopped(id) || utils.ContextGuard(ctx) {
			break
		}

		if err := c.deliverer.Send(ctx, channelID, content); err != nil {
			return OutcomeDeliveryFailed, fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
		}

		c.registry.IncrementCompleted(id)

		// A cancelled sleep is picked up by the next stop check
		_ = c.sleep(ctx, c.config.Pacing)
	}

	if c.registry.Completed(id) == req.Amount {
		return OutcomeCompleted, nil
	}
	return OutcomePartiallyStopped, nil
}

// destination resolves the channel pings of req are posted to.
func (c *Controller) destination(ctx context.Context, req *Request) (snowflake.ID, error) {
	if req.Method == MethodDirectMessage {
		return c.deliverer.OpenDirect(ctx, req.TargetID)
	}
	return req.ChannelID, nil
}
