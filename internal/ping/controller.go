package ping

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/pingbot/pkg/utils"
	"github.com/sourcegraph/conc/panics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	// DefaultMaxAmount is the largest number of pings a single invocation may send.
	DefaultMaxAmount = 100
	// DefaultCooldown is the time a user waits after a run before starting another.
	DefaultCooldown = 60 * time.Second
	// DefaultPacing is the pause after every delivered ping.
	DefaultPacing = 300 * time.Millisecond
	// DefaultConfirmTimeout bounds how long the confirmation prompt waits.
	DefaultConfirmTimeout = 30 * time.Second
)

// Config holds the tunables of the session controller.
type Config struct {
	MaxAmount      int
	Cooldown       time.Duration
	Pacing         time.Duration
	ConfirmTimeout time.Duration
	// CooldownOnDeliveryFailure also records a cooldown after a run that
	// ended in OutcomeDeliveryFailed.
	CooldownOnDeliveryFailure bool
}

// DefaultConfig returns the stock controller configuration.
func DefaultConfig() Config {
	return Config{
		MaxAmount:      DefaultMaxAmount,
		Cooldown:       DefaultCooldown,
		Pacing:         DefaultPacing,
		ConfirmTimeout: DefaultConfirmTimeout,
	}
}

// Option customizes a Controller.
type Option func(*Controller)

// WithClock overrides the time source used for cooldowns.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// WithSleeper overrides how the pacing delay is waited out.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) utils.SleepResult) Option {
	return func(c *Controller) {
		c.sleep = sleep
	}
}

// WithTracer overrides the tracer used for session spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *Controller) {
		c.tracer = tracer
	}
}

// Controller drives /ping invocations from validation to their terminal outcome.
type Controller struct {
	selfID    snowflake.ID
	config    Config
	registry  *Registry
	limiter   *Limiter
	deliverer Deliverer
	logger    *zap.Logger
	tracer    trace.Tracer
	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration) utils.SleepResult
}

// NewController creates a controller. selfID is the bot's own user ID, which
// may never be targeted.
func NewController(
	selfID snowflake.ID,
	config Config,
	registry *Registry,
	limiter *Limiter,
	deliverer Deliverer,
	logger *zap.Logger,
	opts ...Option,
) *Controller {
	c := &Controller{
		selfID:    selfID,
		config:    config,
		registry:  registry,
		limiter:   limiter,
		deliverer: deliverer,
		logger:    logger.Named("ping_controller"),
		tracer:    otel.Tracer("github.com/robalyx/pingbot/internal/ping"),
		now:       time.Now,
		sleep:     utils.ContextSleep,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Config returns the controller configuration.
func (c *Controller) Config() Config {
	return c.config
}

// Registry returns the session registry used by the controller.
func (c *Controller) Registry() *Registry {
	return c.registry
}

// Limiter returns the cooldown limiter used by the controller.
func (c *Controller) Limiter() *Limiter {
	return c.limiter
}

// Run handles one invocation end to end and returns how it ended. Exactly one
// of Prompter.Reject or Prompter.Report is called. The user's marker and
// session are always gone when Run returns. A panic during delivery is
// reported as OutcomeDeliveryFailed.
func (c *Controller) Run(ctx context.Context, req *Request, prompter Prompter) Result {
	logger := c.logger.With(
		zap.Uint64("user_id", uint64(req.InvokerID)),
		zap.Uint64("target_id", uint64(req.TargetID)),
		zap.Int("amount", req.Amount),
		zap.String("method", req.Method.String()),
	)

	// Validating
	if rejection := c.validate(req); rejection != nil {
		logger.Debug("Ping request rejected", zap.String("reason", rejection.Reason.String()))
		return c.reject(ctx, req, prompter, *rejection, logger)
	}

	// Awaiting confirmation
	decision, err := c.awaitConfirmation(ctx, req, prompter)
	switch decision {
	case DecisionConfirm:
	case DecisionCancel:
		logger.Debug("Ping request cancelled by user")
		return c.report(ctx, req, prompter, Result{Outcome: OutcomeCancelled, Amount: req.Amount}, logger)
	default:
		if err != nil && !errors.Is(err, context.DeadlineExceeded) {
			logger.Error("Failed while awaiting confirmation", zap.Error(err))
		} else {
			logger.Debug("Ping confirmation timed out")
		}
		return c.report(ctx, req, prompter, Result{Outcome: OutcomeTimedOut, Amount: req.Amount, Err: err}, logger)
	}

	// Confirmed; another prompt of the same user may have won the marker
	if !c.registry.TryAcquire(req.InvokerID) {
		logger.Debug("Confirmed ping lost the active session race")
		return c.reject(ctx, req, prompter, Rejection{Reason: RejectActiveSession}, logger)
	}

	result := c.runSession(ctx, req, prompter, logger)
	return c.report(ctx, req, prompter, result, logger)
}

// validate checks the request against the registry and limiter without
// mutating either.
func (c *Controller) validate(req *Request) *Rejection {
	if c.registry.IsActive(req.InvokerID) {
		return &Rejection{Reason: RejectActiveSession}
	}

	if check := c.limiter.Check(req.InvokerID, c.now()); !check.Allowed {
		return &Rejection{Reason: RejectCooldown, RemainingSeconds: check.RemainingSeconds()}
	}

	if req.TargetID != 0 && req.TargetID == c.selfID {
		return &Rejection{Reason: RejectSelfTarget}
	}

	if req.TargetID == 0 {
		return &Rejection{Reason: RejectUnknownTarget}
	}

	if !req.HasGuild() {
		return &Rejection{Reason: RejectNoGuild}
	}

	if req.Amount < 1 || req.Amount > c.config.MaxAmount {
		return &Rejection{Reason: RejectInvalidAmount, MaxAmount: c.config.MaxAmount}
	}

	if !req.Method.Valid() {
		return &Rejection{Reason: RejectInvalidMethod}
	}

	return nil
}

// awaitConfirmation blocks on the prompter for at most the confirm timeout.
func (c *Controller) awaitConfirmation(ctx context.Context, req *Request, prompter Prompter) (Decision, error) {
	confirmCtx, cancel := context.WithTimeout(ctx, c.config.ConfirmTimeout)
	defer cancel()

	decision, err := prompter.AwaitConfirmation(confirmCtx, req)
	if err != nil {
		return DecisionTimeout, err
	}

	if decision == DecisionTimeout {
		return DecisionTimeout, ErrConfirmationTimeout
	}

	return decision, nil
}

// runSession owns the marker acquired by Run. It creates the session, drives
// delivery and records the cooldown; the marker and session are released on
// every way out. A panic while the session runs ends it as a delivery failure.
func (c *Controller) runSession(ctx context.Context, req *Request, prompter Prompter, logger *zap.Logger) Result {
	id := c.registry.CreateSession(SessionOptions{
		Owner:    req.InvokerID,
		TargetID: req.TargetID,
		Amount:   req.Amount,
		Method:   req.Method,
		Context:  req.Context,
	})
	defer func() {
		c.registry.DestroySession(id)
		c.registry.Release(req.InvokerID)
	}()

	logger = logger.With(zap.Stringer("session_id", id))

	var result Result
	var catcher panics.Catcher
	catcher.Try(func() {
		result = c.driveSession(ctx, req, id, prompter, logger)
	})

	if recovered := catcher.Recovered(); recovered != nil {
		logger.Error("Panic during ping session", zap.String("panic", recovered.String()))

		result = Result{
			Outcome:   OutcomeDeliveryFailed,
			Completed: c.registry.Completed(id),
			Amount:    req.Amount,
			Err:       fmt.Errorf("%w: %w", ErrDeliveryFailed, recovered.AsError()),
		}
		if c.shouldRecordCooldown(result.Outcome) {
			c.limiter.Record(req.InvokerID, c.now(), c.config.Cooldown)
		}
	}

	return result
}

func (c *Controller) driveSession(
	ctx context.Context, req *Request, id SessionID, prompter Prompter, logger *zap.Logger,
) Result {
	ctx, span := c.tracer.Start(ctx, "ping.session", trace.WithAttributes(
		attribute.String("ping.session_id", id.String()),
		attribute.Int("ping.amount", req.Amount),
		attribute.String("ping.method", req.Method.String()),
	))
	defer span.End()

	logger.Info("Ping session started")

	if err := prompter.ShowProgress(ctx, req, id); err != nil {
		logger.Warn("Failed to show ping progress", zap.Error(err))
	}

	outcome, err := c.deliver(ctx, req, id)
	result := Result{
		Outcome:   outcome,
		Completed: c.registry.Completed(id),
		Amount:    req.Amount,
		Err:       err,
	}

	if outcome == OutcomeDeliveryFailed {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delivery failed")
		logger.Warn("Ping delivery failed", zap.Int("completed", result.Completed), zap.Error(err))

		if req.Method == MethodDirectMessage {
			if nerr := prompter.NotifyDeliveryFailure(ctx, req); nerr != nil {
				logger.Warn("Failed to send delivery failure notice", zap.Error(nerr))
			}
		}
	}

	if c.shouldRecordCooldown(outcome) {
		c.limiter.Record(req.InvokerID, c.now(), c.config.Cooldown)
	}

	span.SetAttributes(
		attribute.String("ping.outcome", outcome.String()),
		attribute.Int("ping.completed", result.Completed),
	)
	logger.Info("Ping session finished",
		zap.String("outcome", outcome.String()),
		zap.Int("completed", result.Completed))

	return result
}

func (c *Controller) shouldRecordCooldown(outcome Outcome) bool {
	switch outcome {
	case OutcomeCompleted, OutcomePartiallyStopped:
		return true
	case OutcomeDeliveryFailed:
		return c.config.CooldownOnDeliveryFailure
	default:
		return false
	}
}

func (c *Controller) reject(
	ctx context.Context, req *Request, prompter Prompter, rejection Rejection, logger *zap.Logger,
) Result {
	if err := prompter.Reject(ctx, req, rejection); err != nil {
		logger.Error("Failed to report rejection", zap.Error(err))
	}
	return Result{Outcome: OutcomeRejected, Amount: req.Amount, Rejection: &rejection}
}

func (c *Controller) report(
	ctx context.Context, req *Request, prompter Prompter, result Result, logger *zap.Logger,
) Result {
	// The invocation context may already be done (shutdown), the report
	// should still reach the user.
	if err := prompter.Report(context.WithoutCancel(ctx), req, result); err != nil {
		logger.Error("Failed to report ping outcome",
			zap.String("outcome", result.Outcome.String()),
			zap.Error(err))
	}
	return result
}
