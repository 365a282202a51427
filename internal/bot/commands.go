package bot

import (
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/pingbot/internal/bot/constants"
	"github.com/robalyx/pingbot/internal/ping"
)

// PingCommand returns the /ping command definition.
func PingCommand(maxAmount int) discord.SlashCommandCreate {
	minAmount := 1

	return discord.SlashCommandCreate{
		Name:        constants.PingCommandName,
		Description: "Ping a user multiple times!",
		Options: []discord.ApplicationCommandOption{
			discord.ApplicationCommandOptionUser{
				Name:        constants.PingOptionUser,
				Description: "The user to ping",
				Required:    true,
			},
			discord.ApplicationCommandOptionInt{
				Name:        constants.PingOptionAmount,
				Description: "Number of times to ping",
				Required:    true,
				MinValue:    &minAmount,
				MaxValue:    &maxAmount,
			},
			discord.ApplicationCommandOptionString{
				Name:        constants.PingOptionMethod,
				Description: "Where to send the pings",
				Required:    true,
				Choices: []discord.ApplicationCommandOptionChoiceString{
					{Name: "Server", Value: ping.MethodServer.String()},
					{Name: "Direct Message", Value: ping.MethodDirectMessage.String()},
				},
			},
			discord.ApplicationCommandOptionString{
				Name:        constants.PingOptionContext,
				Description: "Context or reason for the pings",
				Required:    false,
			},
		},
	}
}

// CommandOptions is the part of slash command data used to read /ping options.
type CommandOptions interface {
	OptUser(name string) (discord.User, bool)
	OptInt(name string) (int, bool)
	OptString(name string) (string, bool)
}

// Invocation carries the interaction details of a /ping call that do not
// come from its options.
type Invocation struct {
	InvokerID snowflake.ID
	GuildID   *snowflake.ID
	GuildName string
	ChannelID snowflake.ID
}

// ParsePingRequest builds a ping request from the command options. A target
// that could not be resolved is left as zero.
func ParsePingRequest(inv Invocation, opts CommandOptions) *ping.Request {
	req := &ping.Request{
		InvokerID: inv.InvokerID,
		GuildID:   inv.GuildID,
		GuildName: inv.GuildName,
		ChannelID: inv.ChannelID,
	}

	if user, ok := opts.OptUser(constants.PingOptionUser); ok {
		req.TargetID = user.ID
	}

	if amount, ok := opts.OptInt(constants.PingOptionAmount); ok {
		req.Amount = amount
	}

	if method, ok := opts.OptString(constants.PingOptionMethod); ok {
		req.Method = ping.Method(method)
	}

	if context, ok := opts.OptString(constants.PingOptionContext); ok {
		req.Context = context
	}

	return req
}
