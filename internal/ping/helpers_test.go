package ping_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/pingbot/internal/ping"
	"github.com/robalyx/pingbot/pkg/utils"
	"go.uber.org/zap/zaptest"
)

const (
	botID       snowflake.ID = 1000
	invokerID   snowflake.ID = 2000
	targetID    snowflake.ID = 3000
	guildID     snowflake.ID = 4000
	channelID   snowflake.ID = 5000
	dmChannelID snowflake.ID = 6000
)

var errSendFailed = errors.New("cannot send messages to this user")

// fakePrompter records every interaction and answers the confirmation with
// a fixed decision.
type fakePrompter struct {
	mu sync.Mutex

	decision   ping.Decision
	confirmErr error
	// blockConfirm makes AwaitConfirmation wait for ctx to be done.
	blockConfirm bool
	// onConfirm runs inside AwaitConfirmation before answering.
	onConfirm func()
	// onProgress runs inside ShowProgress.
	onProgress func(id ping.SessionID)

	rejections     []ping.Rejection
	reports        []ping.Result
	progress       []ping.SessionID
	failureNotices int
	confirmations  int
}

func (p *fakePrompter) Reject(_ context.Context, _ *ping.Request, rejection ping.Rejection) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rejections = append(p.rejections, rejection)
	return nil
}

func (p *fakePrompter) AwaitConfirmation(ctx context.Context, _ *ping.Request) (ping.Decision, error) {
	p.mu.Lock()
	p.confirmations++
	onConfirm := p.onConfirm
	p.mu.Unlock()

	if onConfirm != nil {
		onConfirm()
	}

	if p.blockConfirm {
		<-ctx.Done()
		return ping.DecisionTimeout, ctx.Err()
	}

	return p.decision, p.confirmErr
}

func (p *fakePrompter) ShowProgress(_ context.Context, _ *ping.Request, id ping.SessionID) error {
	p.mu.Lock()
	p.progress = append(p.progress, id)
	onProgress := p.onProgress
	p.mu.Unlock()

	if onProgress != nil {
		onProgress(id)
	}
	return nil
}

func (p *fakePrompter) NotifyDeliveryFailure(_ context.Context, _ *ping.Request) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failureNotices++
	return nil
}

func (p *fakePrompter) Report(_ context.Context, _ *ping.Request, result ping.Result) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reports = append(p.reports, result)
	return nil
}

// fakeDeliverer counts sends and optionally fails from a given send on.
type fakeDeliverer struct {
	mu sync.Mutex

	// failAt is the 1-based send that fails; zero never fails.
	failAt int
	// openErr fails every OpenDirect call.
	openErr error
	// onSend runs after every successful send with the running count.
	onSend func(sent int)

	opened   []snowflake.ID
	channels []snowflake.ID
	contents []string
}

func (d *fakeDeliverer) OpenDirect(_ context.Context, userID snowflake.ID) (snowflake.ID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.opened = append(d.opened, userID)
	if d.openErr != nil {
		return 0, d.openErr
	}
	return dmChannelID, nil
}

func (d *fakeDeliverer) Send(_ context.Context, channelID snowflake.ID, content string) error {
	d.mu.Lock()
	if d.failAt > 0 && len(d.contents)+1 >= d.failAt {
		d.mu.Unlock()
		return errSendFailed
	}
	d.channels = append(d.channels, channelID)
	d.contents = append(d.contents, content)
	sent := len(d.contents)
	onSend := d.onSend
	d.mu.Unlock()

	if onSend != nil {
		onSend(sent)
	}
	return nil
}

func (d *fakeDeliverer) Sent() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.contents)
}

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// recordingSleeper records pacing delays without waiting.
type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) utils.SleepResult {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()

	if utils.ContextGuard(ctx) {
		return utils.SleepCancelled
	}
	return utils.SleepCompleted
}

func (s *recordingSleeper) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.delays)
}

type testHarness struct {
	controller *ping.Controller
	registry   *ping.Registry
	limiter    *ping.Limiter
	deliverer  *fakeDeliverer
	clock      *fakeClock
	sleeper    *recordingSleeper
}

func newHarness(t *testing.T, mutate ...func(*ping.Config)) *testHarness {
	t.Helper()

	cfg := ping.DefaultConfig()
	cfg.ConfirmTimeout = 200 * time.Millisecond
	for _, m := range mutate {
		m(&cfg)
	}

	h := &testHarness{
		registry:  ping.NewRegistry(),
		limiter:   ping.NewLimiter(),
		deliverer: &fakeDeliverer{},
		clock:     newFakeClock(),
		sleeper:   &recordingSleeper{},
	}
	h.controller = ping.NewController(
		botID, cfg, h.registry, h.limiter, h.deliverer, zaptest.NewLogger(t),
		ping.WithClock(h.clock.Now),
		ping.WithSleeper(h.sleeper.Sleep),
	)
	return h
}

func newRequest(amount int, method ping.Method) *ping.Request {
	guild := guildID
	return &ping.Request{
		InvokerID: invokerID,
		TargetID:  targetID,
		Amount:    amount,
		Method:    method,
		GuildID:   &guild,
		GuildName: "Test Server",
		ChannelID: channelID,
	}
}
