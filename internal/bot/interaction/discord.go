package interaction

import (
	"context"
	"fmt"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"go.uber.org/zap"
)

// SlashResponder answers an application command interaction through disgo.
type SlashResponder struct {
	event *events.ApplicationCommandInteractionCreate
}

// NewSlashResponder creates a responder for the given slash command event.
func NewSlashResponder(event *events.ApplicationCommandInteractionCreate) *SlashResponder {
	return &SlashResponder{event: event}
}

// Respond implements Responder.
func (r *SlashResponder) Respond(ctx context.Context, create discord.MessageCreate) error {
	return r.event.CreateMessage(create, rest.WithCtx(ctx))
}

// EditOriginal implements Responder.
func (r *SlashResponder) EditOriginal(ctx context.Context, update discord.MessageUpdate) error {
	_, err := r.event.Client().Rest().UpdateInteractionResponse(
		r.event.ApplicationID(), r.event.Token(), update, rest.WithCtx(ctx),
	)
	return err
}

// Followup implements Responder.
func (r *SlashResponder) Followup(ctx context.Context, create discord.MessageCreate) error {
	_, err := r.event.Client().Rest().CreateFollowupMessage(
		r.event.ApplicationID(), r.event.Token(), create, rest.WithCtx(ctx),
	)
	return err
}

// MessageClient is the part of the Discord REST API used to send pings.
type MessageClient interface {
	CreateDMChannel(userID snowflake.ID, opts ...rest.RequestOpt) (*discord.DMChannel, error)
	CreateMessage(
		channelID snowflake.ID, messageCreate discord.MessageCreate, opts ...rest.RequestOpt,
	) (*discord.Message, error)
}

// Deliverer sends ping messages over the Discord REST API. Every call is a
// single request; rate limits are handled by the disgo REST client.
type Deliverer struct {
	client MessageClient
	logger *zap.Logger
}

// NewDeliverer creates a deliverer.
func NewDeliverer(client MessageClient, logger *zap.Logger) *Deliverer {
	return &Deliverer{
		client: client,
		logger: logger.Named("ping_deliverer"),
	}
}

// OpenDirect implements ping.Deliverer.
func (d *Deliverer) OpenDirect(ctx context.Context, userID snowflake.ID) (snowflake.ID, error) {
	channel, err := d.client.CreateDMChannel(userID, rest.WithCtx(ctx))
	if err != nil {
		return 0, fmt.Errorf("failed to open DM channel: %w", err)
	}
	return channel.ID(), nil
}

// Send implements ping.Deliverer. Mentions are limited to users.
func (d *Deliverer) Send(ctx context.Context, channelID snowflake.ID, content string) error {
	message := discord.NewMessageCreateBuilder().
		SetContent(content).
		SetAllowedMentions(&discord.AllowedMentions{
			Parse: []discord.AllowedMentionType{discord.AllowedMentionTypeUsers},
		}).
		Build()

	if _, err := d.client.CreateMessage(channelID, message, rest.WithCtx(ctx)); err != nil {
		d.logger.Debug("Ping send failed",
			zap.Uint64("channel_id", uint64(channelID)),
			zap.Error(err))
		return fmt.Errorf("failed to send message: %w", err)
	}

	return nil
}
