// Package ping builds the Discord messages of the /ping command.
package ping

import (
	"fmt"

	"github.com/disgoorg/disgo/discord"
	"github.com/robalyx/pingbot/internal/bot/constants"
	pingcore "github.com/robalyx/pingbot/internal/ping"
)

// RejectionBuilder creates the reply for a refused /ping invocation.
type RejectionBuilder struct {
	rejection pingcore.Rejection
}

// NewRejectionBuilder creates a new rejection builder.
func NewRejectionBuilder(rejection pingcore.Rejection) *RejectionBuilder {
	return &RejectionBuilder{rejection: rejection}
}

// Embed returns the rejection embed.
func (b *RejectionBuilder) Embed() discord.Embed {
	var title, description string

	switch b.rejection.Reason {
	case pingcore.RejectActiveSession:
		title = "Command in Progress"
		description = "⚠️ You already have an active ping command running. Please wait for it to finish."
	case pingcore.RejectCooldown:
		title = "Cooldown Active"
		description = fmt.Sprintf(
			"⏳ You're on cooldown. Please wait **%d seconds** before using this command again.",
			b.rejection.RemainingSeconds,
		)
	case pingcore.RejectSelfTarget:
		title = "Invalid Target"
		description = "❌ I cannot ping myself!"
	case pingcore.RejectUnknownTarget:
		title = "Invalid Target"
		description = "❌ Cannot find the specified user!"
	case pingcore.RejectNoGuild:
		title = "Invalid Execution"
		description = "❌ This command can only be called in a server."
	case pingcore.RejectInvalidAmount:
		title = "Invalid Amount"
		description = fmt.Sprintf("❌ The amount must be between 1 and %d.", b.rejection.MaxAmount)
	case pingcore.RejectInvalidMethod:
		title = "Invalid Method"
		description = fmt.Sprintf("❌ The method must be either %s or %s.",
			pingcore.MethodServer, pingcore.MethodDirectMessage)
	}

	return discord.NewEmbedBuilder().
		SetTitle(title).
		SetDescription(description).
		SetColor(constants.ErrorEmbedColor).
		Build()
}

// Build creates the ephemeral rejection reply.
func (b *RejectionBuilder) Build() *discord.MessageCreateBuilder {
	return discord.NewMessageCreateBuilder().
		SetEmbeds(b.Embed()).
		SetFlags(discord.MessageFlagEphemeral)
}

// BuildUpdate replaces an existing prompt with the rejection.
func (b *RejectionBuilder) BuildUpdate() *discord.MessageUpdateBuilder {
	return discord.NewMessageUpdateBuilder().
		SetEmbeds(b.Embed()).
		ClearContainerComponents()
}

// ConfirmationBuilder creates the confirm/cancel prompt.
type ConfirmationBuilder struct {
	req   *pingcore.Request
	nonce string
}

// NewConfirmationBuilder creates a prompt whose buttons carry nonce.
func NewConfirmationBuilder(req *pingcore.Request, nonce string) *ConfirmationBuilder {
	return &ConfirmationBuilder{req: req, nonce: nonce}
}

// Build creates the ephemeral confirmation prompt.
func (b *ConfirmationBuilder) Build() *discord.MessageCreateBuilder {
	context := "`None`"
	if b.req.Context != "" {
		context = fmt.Sprintf("` ' %s ' `", b.req.Context)
	}

	embed := discord.NewEmbedBuilder().
		SetTitle("Ping Confirmation").
		AddField("Target", fmt.Sprintf("**%s**", pingcore.Mention(b.req.TargetID)), false).
		AddField("Amount", fmt.Sprintf("**%d**", b.req.Amount), false).
		AddField("Method", fmt.Sprintf("**%s**", b.req.Method), false).
		AddField("Context", context, false).
		SetFooterText("Click Confirm to start or Cancel to abort.").
		SetColor(constants.SuccessEmbedColor).
		Build()

	return discord.NewMessageCreateBuilder().
		SetEmbeds(embed).
		AddActionRow(
			discord.NewSuccessButton("✔ Confirm", ConfirmButtonID(b.nonce)),
			discord.NewDangerButton("❌ Cancel", CancelButtonID(b.nonce)),
		).
		SetFlags(discord.MessageFlagEphemeral)
}

// ProgressBuilder creates the in-progress view with the stop button.
type ProgressBuilder struct {
	req *pingcore.Request
}

// NewProgressBuilder creates a new progress builder.
func NewProgressBuilder(req *pingcore.Request) *ProgressBuilder {
	return &ProgressBuilder{req: req}
}

// Build replaces the confirmation prompt with the progress view.
func (b *ProgressBuilder) Build() *discord.MessageUpdateBuilder {
	embed := discord.NewEmbedBuilder().
		SetTitle("Pinging in Progress").
		SetDescription("Click Stop below to interrupt.").
		AddField("Target", fmt.Sprintf("**%s**", pingcore.Mention(b.req.TargetID)), true).
		AddField("Method", fmt.Sprintf("**%s**", b.req.Method), true).
		AddField("Pings", fmt.Sprintf("**%d**", b.req.Amount), true).
		SetFooterText("Sit tight while the magic happens!").
		SetColor(constants.ProgressEmbedColor).
		Build()

	return discord.NewMessageUpdateBuilder().
		SetEmbeds(embed).
		ClearContainerComponents().
		AddActionRow(
			discord.NewDangerButton("🛑 Stop Pinging", StopButtonID(b.req.InvokerID)),
		)
}

// OutcomeBuilder creates the terminal message of an invocation.
type OutcomeBuilder struct {
	req    *pingcore.Request
	result pingcore.Result
}

// NewOutcomeBuilder creates a new outcome builder.
func NewOutcomeBuilder(req *pingcore.Request, result pingcore.Result) *OutcomeBuilder {
	return &OutcomeBuilder{req: req, result: result}
}

// Build replaces any prompt with the outcome and removes the buttons.
func (b *OutcomeBuilder) Build() *discord.MessageUpdateBuilder {
	if b.result.Rejected() && b.result.Rejection != nil {
		return NewRejectionBuilder(*b.result.Rejection).BuildUpdate()
	}

	target := pingcore.Mention(b.req.TargetID)
	embed := discord.NewEmbedBuilder()

	switch b.result.Outcome {
	case pingcore.OutcomeCompleted:
		embed.SetTitle("Ping Complete").
			SetDescription(fmt.Sprintf("✅ Successfully completed all %d pings to %s through %s!",
				b.result.Amount, target, b.req.Method)).
			SetColor(constants.SuccessEmbedColor)
	case pingcore.OutcomePartiallyStopped:
		embed.SetTitle("Ping Complete").
			SetDescription(fmt.Sprintf("⏹ Stopped after sending %d out of %d pings to %s through %s.",
				b.result.Completed, b.result.Amount, target, b.req.Method)).
			SetColor(constants.SuccessEmbedColor)
	case pingcore.OutcomeDeliveryFailed:
		embed.SetTitle("Ping Complete").
			SetDescription(fmt.Sprintf("❌ Failed to ping %s through %s!", target, b.req.Method)).
			SetColor(constants.SuccessEmbedColor)
	case pingcore.OutcomeCancelled:
		embed.SetTitle("Command Cancelled").
			SetDescription("❌ You aborted the ping operation.").
			SetColor(constants.WarningEmbedColor)
	default:
		embed.SetTitle("Timeout").
			SetDescription("⏳ You didn’t respond in time.").
			SetColor(constants.TimeoutEmbedColor)
	}

	return discord.NewMessageUpdateBuilder().
		SetEmbeds(embed.Build()).
		ClearContainerComponents()
}

// DeliveryFailureBuilder creates the notice shown when direct messages to
// the target fail.
type DeliveryFailureBuilder struct {
	req *pingcore.Request
}

// NewDeliveryFailureBuilder creates a new delivery failure builder.
func NewDeliveryFailureBuilder(req *pingcore.Request) *DeliveryFailureBuilder {
	return &DeliveryFailureBuilder{req: req}
}

// Build creates the ephemeral follow-up notice.
func (b *DeliveryFailureBuilder) Build() *discord.MessageCreateBuilder {
	embed := discord.NewEmbedBuilder().
		SetTitle("Failed to Ping").
		SetDescription(fmt.Sprintf("⚠ Could not DM %s. They might have DMs disabled.",
			pingcore.Mention(b.req.TargetID))).
		SetColor(constants.ErrorEmbedColor).
		Build()

	return discord.NewMessageCreateBuilder().
		SetEmbeds(embed).
		SetFlags(discord.MessageFlagEphemeral)
}

// StopBuilder creates the reply to a stop button press.
type StopBuilder struct {
	result pingcore.StopResult
}

// NewStopBuilder creates a new stop reply builder.
func NewStopBuilder(result pingcore.StopResult) *StopBuilder {
	return &StopBuilder{result: result}
}

// Build creates the ephemeral stop reply.
func (b *StopBuilder) Build() *discord.MessageCreateBuilder {
	embed := discord.NewEmbedBuilder()

	switch b.result {
	case pingcore.StopRequested:
		embed.SetTitle("Stopping Pings").
			SetDescription("🛑 Stopping the ping sequence...").
			SetColor(constants.WarningEmbedColor)
	case pingcore.StopNotFound:
		embed.SetTitle("No Active Ping").
			SetDescription("❌ No active ping sequence found.").
			SetColor(constants.ErrorEmbedColor)
	default:
		embed.SetTitle("Permission Denied").
			SetDescription("❌ You can only stop your own ping sequences.").
			SetColor(constants.ErrorEmbedColor)
	}

	return discord.NewMessageCreateBuilder().
		SetEmbeds(embed.Build()).
		SetFlags(discord.MessageFlagEphemeral)
}

// ErrorBuilder creates a generic failure reply.
type ErrorBuilder struct {
	message string
}

// NewErrorBuilder creates a new error builder.
func NewErrorBuilder(message string) *ErrorBuilder {
	return &ErrorBuilder{message: message}
}

// Embed returns the error embed.
func (b *ErrorBuilder) Embed() discord.Embed {
	return discord.NewEmbedBuilder().
		SetTitle("Something Went Wrong").
		SetDescription("❌ " + b.message).
		SetColor(constants.ErrorEmbedColor).
		Build()
}

// Build creates the ephemeral error reply.
func (b *ErrorBuilder) Build() *discord.MessageCreateBuilder {
	return discord.NewMessageCreateBuilder().
		SetEmbeds(b.Embed()).
		SetFlags(discord.MessageFlagEphemeral)
}

// BuildUpdate replaces an existing prompt with the error.
func (b *ErrorBuilder) BuildUpdate() *discord.MessageUpdateBuilder {
	return discord.NewMessageUpdateBuilder().
		SetEmbeds(b.Embed()).
		ClearContainerComponents()
}
