// Package bot connects the ping controller to the Discord gateway.
package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/disgoorg/disgo"
	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/gateway"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/pingbot/internal/bot/constants"
	guildEvents "github.com/robalyx/pingbot/internal/bot/events"
	"github.com/robalyx/pingbot/internal/bot/interaction"
	view "github.com/robalyx/pingbot/internal/bot/views/ping"
	"github.com/robalyx/pingbot/internal/ping"
	"github.com/robalyx/pingbot/internal/setup"
	"github.com/robalyx/pingbot/internal/setup/config"
	"github.com/robalyx/pingbot/pkg/utils"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
	"go.uber.org/zap"
)

// Bot owns the Discord client and routes interactions to the ping controller.
// Every interaction is handled on its own goroutine so a running ping never
// blocks the gateway.
type Bot struct {
	app        *setup.App
	client     bot.Client
	controller *ping.Controller
	waiter     *interaction.Waiter
	logger     *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     conc.WaitGroup
}

// New creates the Discord client and the ping controller behind it.
func New(app *setup.App) (*Bot, error) {
	cfg := app.Config.Bot
	if cfg.Discord.Token == "" {
		return nil, config.ErrMissingToken
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &Bot{
		app:    app,
		waiter: interaction.NewWaiter(),
		logger: app.LogManager.ComponentLogger("bot"),
		ctx:    ctx,
		cancel: cancel,
	}

	guildHandler := guildEvents.NewGuildEventHandler(b.commandGuilds(), b.registerGuildCommands, b.logger)

	client, err := disgo.New(cfg.Discord.Token,
		bot.WithGatewayConfigOpts(
			gateway.WithIntents(
				gateway.IntentGuilds,
				gateway.IntentGuildMessages,
				gateway.IntentDirectMessages,
			),
		),
		bot.WithRestClientConfigOpts(
			rest.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeoutDuration()}),
		),
		bot.WithEventListeners(&events.ListenerAdapter{
			OnReady:                         guildHandler.OnReady,
			OnGuildJoin:                     guildHandler.OnGuildJoin,
			OnGuildLeave:                    guildHandler.OnGuildLeave,
			OnApplicationCommandInteraction: b.handleApplicationCommandInteraction,
			OnComponentInteraction:          b.handleComponentInteraction,
		}),
	)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create discord client: %w", err)
	}
	b.client = client

	b.controller = ping.NewController(
		client.ID(),
		ping.Config{
			MaxAmount:                 cfg.Ping.MaxAmount,
			Cooldown:                  cfg.Ping.CooldownDuration(),
			Pacing:                    cfg.Ping.PacingDuration(),
			ConfirmTimeout:            cfg.Ping.ConfirmTimeoutDuration(),
			CooldownOnDeliveryFailure: cfg.Ping.CooldownOnDeliveryFailure,
		},
		ping.NewRegistry(),
		ping.NewLimiter(),
		interaction.NewDeliverer(client.Rest(), b.logger),
		b.logger,
	)

	return b, nil
}

// Start registers the commands, opens the gateway and starts the cooldown
// janitor.
func (b *Bot) Start(ctx context.Context) error {
	if err := b.RegisterCommands(ctx); err != nil {
		return err
	}

	b.logger.Info("Starting bot")
	if err := b.client.OpenGateway(ctx); err != nil {
		return fmt.Errorf("failed to open gateway: %w", err)
	}

	b.wg.Go(b.runJanitor)
	return nil
}

// RegisterCommands registers /ping globally, or in each configured guild.
func (b *Bot) RegisterCommands(ctx context.Context) error {
	guildIDs := b.commandGuilds()
	if len(guildIDs) == 0 {
		b.logger.Info("Registering global commands")

		_, err := utils.WithRetry(ctx, func() ([]discord.ApplicationCommand, error) {
			commands, err := b.client.Rest().SetGlobalCommands(b.client.ApplicationID(), b.commands(), rest.WithCtx(ctx))
			return commands, permanentClientError(err)
		}, utils.GetRegistrationRetryOptions())
		if err != nil {
			return fmt.Errorf("failed to register commands: %w", err)
		}
		return nil
	}

	for _, guildID := range guildIDs {
		b.logger.Info("Registering guild commands", zap.String("guildID", guildID.String()))

		_, err := utils.WithRetry(ctx, func() ([]discord.ApplicationCommand, error) {
			commands, err := b.client.Rest().SetGuildCommands(
				b.client.ApplicationID(), guildID, b.commands(), rest.WithCtx(ctx),
			)
			return commands, permanentClientError(err)
		}, utils.GetRegistrationRetryOptions())
		if err != nil {
			return fmt.Errorf("failed to register commands in guild %s: %w", guildID, err)
		}
	}

	return nil
}

// Close stops running sessions and closes the gateway, then waits for
// in-flight handlers to report before closing the client.
func (b *Bot) Close(ctx context.Context) {
	b.logger.Info("Closing bot")
	b.cancel()

	// No new interactions arrive once the gateway is closed
	if b.client.HasGateway() {
		b.client.Gateway().Close(ctx)
	}

	b.wg.Wait()
	b.client.Close(ctx)
}

// permanentClientError stops registration retries on client errors other
// than rate limits.
func permanentClientError(err error) error {
	var restErr *rest.Error
	if errors.As(err, &restErr) && restErr.Response != nil {
		status := restErr.Response.StatusCode
		if status < http.StatusInternalServerError && status != http.StatusTooManyRequests {
			return utils.Permanent(err)
		}
	}
	return err
}

func (b *Bot) commands() []discord.ApplicationCommandCreate {
	return []discord.ApplicationCommandCreate{
		PingCommand(b.app.Config.Bot.Ping.MaxAmount),
	}
}

func (b *Bot) commandGuilds() []snowflake.ID {
	ids := make([]snowflake.ID, 0, len(b.app.Config.Bot.Discord.GuildIDs))
	for _, id := range b.app.Config.Bot.Discord.GuildIDs {
		ids = append(ids, snowflake.ID(id))
	}
	return ids
}

func (b *Bot) registerGuildCommands(guildID snowflake.ID) error {
	_, err := b.client.Rest().SetGuildCommands(b.client.ApplicationID(), guildID, b.commands())
	return err
}

// runJanitor drops expired cooldown entries until the bot closes.
func (b *Bot) runJanitor() {
	ticker := time.NewTicker(b.app.Config.Bot.Ping.PurgeIntervalDuration())
	defer ticker.Stop()

	for {
		select {
		case <-b.ctx.Done():
			return
		case now := <-ticker.C:
			if purged := b.controller.Limiter().Purge(now); purged > 0 {
				b.logger.Debug("Purged expired cooldowns", zap.Int("count", purged))
			}
		}
	}
}

// handleApplicationCommandInteraction runs a /ping invocation to completion.
func (b *Bot) handleApplicationCommandInteraction(event *events.ApplicationCommandInteractionCreate) {
	data, ok := event.Data.(discord.SlashCommandInteractionData)
	if !ok || data.CommandName() != constants.PingCommandName {
		b.respondWithError(event.CreateMessage, "This command is not available.")
		return
	}

	b.wg.Go(func() {
		start := time.Now()

		prompter := interaction.NewPrompter(interaction.NewSlashResponder(event), b.waiter, b.logger)

		var catcher panics.Catcher
		catcher.Try(func() {
			req := ParsePingRequest(b.invocation(event), data)

			result := b.controller.Run(b.ctx, req, prompter)
			b.logger.Debug("Ping command handled",
				zap.String("outcome", result.Outcome.String()),
				zap.Duration("duration", time.Since(start)))
		})

		if recovered := catcher.Recovered(); recovered != nil {
			b.logger.Error("Panic in ping command handler", zap.String("panic", recovered.String()))

			err := prompter.Fail(context.WithoutCancel(b.ctx), "Internal error. Please report this to an administrator.")
			if err != nil {
				b.logger.Error("Failed to send error response", zap.Error(err))
			}
		}
	})
}

// handleComponentInteraction routes confirmation and stop button presses.
func (b *Bot) handleComponentInteraction(event *events.ComponentInteractionCreate) {
	b.wg.Go(func() {
		var catcher panics.Catcher
		catcher.Try(func() {
			b.routeComponent(event)
		})

		if recovered := catcher.Recovered(); recovered != nil {
			b.logger.Error("Panic in component interaction handler", zap.String("panic", recovered.String()))
		}
	})
}

func (b *Bot) routeComponent(event *events.ComponentInteractionCreate) {
	customID := event.Data.CustomID()
	userID := event.User().ID

	if nonce, confirm, ok := view.ParsePromptButtonID(customID); ok {
		press := interaction.Press{
			Confirm: confirm,
			Acknowledge: func(update discord.MessageUpdate) error {
				return event.UpdateMessage(update)
			},
		}

		switch b.waiter.Resolve(nonce, userID, press) {
		case interaction.ResolveDelivered:
		case interaction.ResolveNotOwner:
			b.respondWithError(event.CreateMessage, "Only the user who ran the command can answer this prompt.")
		case interaction.ResolveExpired:
			b.respondWithError(event.CreateMessage, "This prompt is no longer active.")
		}
		return
	}

	if strings.HasPrefix(customID, constants.StopButtonPrefix) {
		owner, ok := view.ParseStopButtonID(customID)
		if !ok {
			b.respondWithError(event.CreateMessage, "This button is not recognized.")
			return
		}

		result := b.controller.Stop(userID, owner)
		b.logger.Debug("Stop button pressed",
			zap.Uint64("user_id", uint64(userID)),
			zap.Uint64("owner_id", uint64(owner)),
			zap.String("result", result.String()))

		if err := event.CreateMessage(view.NewStopBuilder(result).Build().Build()); err != nil {
			b.logger.Error("Failed to reply to stop button", zap.Error(err))
		}
		return
	}

	b.logger.Debug("Unknown component interaction", zap.String("custom_id", customID))
	b.respondWithError(event.CreateMessage, "This button is not recognized.")
}

// invocation collects the interaction details of a slash command.
func (b *Bot) invocation(event *events.ApplicationCommandInteractionCreate) Invocation {
	inv := Invocation{
		InvokerID: event.User().ID,
		GuildID:   event.GuildID(),
		ChannelID: event.Channel().ID(),
	}

	if inv.GuildID != nil {
		inv.GuildName = b.guildName(*inv.GuildID)
	}

	return inv
}

func (b *Bot) guildName(guildID snowflake.ID) string {
	if guild, ok := b.client.Caches().Guild(guildID); ok {
		return guild.Name
	}

	guild, err := b.client.Rest().GetGuild(guildID, false)
	if err != nil {
		b.logger.Warn("Failed to fetch guild", zap.String("guildID", guildID.String()), zap.Error(err))
		return "Unknown Server"
	}

	return guild.Name
}

func (b *Bot) respondWithError(
	respond func(discord.MessageCreate, ...rest.RequestOpt) error, message string,
) {
	if err := respond(view.NewErrorBuilder(message).Build().Build()); err != nil && !errors.Is(err, context.Canceled) {
		b.logger.Error("Failed to send error response", zap.Error(err))
	}
}
