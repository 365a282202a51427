package events

import (
	"slices"

	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/snowflake/v2"
	"go.uber.org/zap"
)

// CommandRegistrar registers the bot's commands in a single guild.
type CommandRegistrar func(guildID snowflake.ID) error

// GuildEventHandler manages gateway lifecycle and guild events for the bot.
type GuildEventHandler struct {
	logger        *zap.Logger
	commandGuilds []snowflake.ID
	register      CommandRegistrar
}

// NewGuildEventHandler creates a new instance of the guild event handler.
// commandGuilds lists the guilds that get guild-scoped commands; when empty
// commands are global and joins need no registration.
func NewGuildEventHandler(
	commandGuilds []snowflake.ID, register CommandRegistrar, logger *zap.Logger,
) *GuildEventHandler {
	return &GuildEventHandler{
		logger:        logger.Named("guild_events"),
		commandGuilds: commandGuilds,
		register:      register,
	}
}

// OnReady logs the identity the gateway session was opened with.
func (h *GuildEventHandler) OnReady(event *events.Ready) {
	h.logger.Info("Gateway session ready",
		zap.String("user", event.User.Username),
		zap.String("userID", event.User.ID.String()),
		zap.Int("guilds", len(event.Guilds)))
}

// OnGuildJoin registers commands when the bot joins one of the command guilds.
func (h *GuildEventHandler) OnGuildJoin(event *events.GuildJoin) {
	h.HandleGuildJoin(event.Guild.ID, event.Guild.Name)
}

// OnGuildLeave logs the guild the bot was removed from.
func (h *GuildEventHandler) OnGuildLeave(event *events.GuildLeave) {
	h.logger.Info("Bot left a guild", zap.String("guildID", event.GuildID.String()))
}

// HandleGuildJoin is OnGuildJoin without the gateway event.
func (h *GuildEventHandler) HandleGuildJoin(guildID snowflake.ID, guildName string) {
	h.logger.Info("Bot joined a new guild",
		zap.String("guildID", guildID.String()),
		zap.String("guild_name", guildName))

	if !slices.Contains(h.commandGuilds, guildID) {
		return
	}

	if err := h.register(guildID); err != nil {
		h.logger.Error("Failed to register guild commands",
			zap.String("guildID", guildID.String()),
			zap.Error(err))
		return
	}

	h.logger.Debug("Successfully registered guild commands",
		zap.String("guildID", guildID.String()))
}
