// Package loki ships zap log entries to Grafana Loki in gzip-compressed
// batches.
package loki

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
)

// ErrUnexpectedStatusCode is returned when Loki responds with an unexpected status code.
var ErrUnexpectedStatusCode = errors.New("unexpected status code from Loki")

// PushPath is appended to the configured Loki URL.
const PushPath = "/loki/api/v1/push"

// Config controls batching and the push target.
type Config struct {
	URL          string
	Username     string
	Password     string
	Labels       map[string]string
	BatchMaxSize int
	BatchMaxWait time.Duration
	Client       *http.Client
}

// Pusher batches entries and pushes them to Loki from a background goroutine.
// Entries are dropped rather than blocking the logger when the queue is full.
type Pusher struct {
	config  Config
	pushURL string
	client  *http.Client
	entries chan Entry
	batch   []Entry
	dropped atomic.Int64

	cancel   context.CancelFunc
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewPusher starts a pusher. It runs until Stop is called or ctx ends.
func NewPusher(ctx context.Context, config Config) *Pusher {
	if config.BatchMaxSize <= 0 {
		config.BatchMaxSize = 100
	}

	if config.BatchMaxWait <= 0 {
		config.BatchMaxWait = 5 * time.Second
	}

	client := config.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	ctx, cancel := context.WithCancel(ctx)

	p := &Pusher{
		config:  config,
		pushURL: config.URL + PushPath,
		client:  client,
		entries: make(chan Entry, config.BatchMaxSize*2),
		batch:   make([]Entry, 0, config.BatchMaxSize),
		cancel:  cancel,
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}

	go p.run(ctx)

	return p
}

// Push queues an entry.
func (p *Pusher) Push(entry Entry) {
	select {
	case p.entries <- entry:
	default:
		p.dropped.Add(1)
	}
}

// Dropped returns how many entries were discarded because the queue was full.
func (p *Pusher) Dropped() int64 {
	return p.dropped.Load()
}

// Stop flushes queued entries and stops the pusher. It is safe to call twice.
func (p *Pusher) Stop() {
	p.stopOnce.Do(func() {
		close(p.quit)
		<-p.done
		p.cancel()
	})
}

func (p *Pusher) run(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.config.BatchMaxWait)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.quit:
			p.drain()
			p.flush(context.WithoutCancel(ctx))
			return
		case entry := <-p.entries:
			p.batch = append(p.batch, entry)
			if len(p.batch) >= p.config.BatchMaxSize {
				p.flush(ctx)
			}
		case <-ticker.C:
			p.flush(ctx)
		}
	}
}

// drain moves everything still queued into the batch.
func (p *Pusher) drain() {
	for {
		select {
		case entry := <-p.entries:
			p.batch = append(p.batch, entry)
		default:
			return
		}
	}
}

func (p *Pusher) flush(ctx context.Context) {
	if len(p.batch) == 0 {
		return
	}

	if err := p.send(ctx, p.batch); err != nil {
		slog.Error("Failed to send Loki batch", slog.Int("entries", len(p.batch)), slog.Any("error", err))
	}

	p.batch = p.batch[:0]
}

// send pushes entries as one stream per level.
func (p *Pusher) send(ctx context.Context, entries []Entry) error {
	body, err := p.encode(entries)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.pushURL, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Content-Encoding", "gzip")

	if p.config.Username != "" && p.config.Password != "" {
		req.SetBasicAuth(p.config.Username, p.config.Password)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %d", ErrUnexpectedStatusCode, resp.StatusCode)
	}

	return nil
}

func (p *Pusher) encode(entries []Entry) (*bytes.Buffer, error) {
	byLevel := make(map[string]*stream)
	for _, entry := range entries {
		s, ok := byLevel[entry.Level]
		if !ok {
			labels := make(map[string]string, len(p.config.Labels)+1)
			maps.Copy(labels, p.config.Labels)
			labels["level"] = entry.Level

			s = &stream{Stream: labels}
			byLevel[entry.Level] = s
		}
		s.Values = append(s.Values, [2]string{strconv.FormatInt(entry.UnixNano, 10), entry.Line})
	}

	levels := make([]string, 0, len(byLevel))
	for level := range byLevel {
		levels = append(levels, level)
	}
	sort.Strings(levels)

	request := pushRequest{Streams: make([]stream, 0, len(levels))}
	for _, level := range levels {
		request.Streams = append(request.Streams, *byLevel[level])
	}

	raw, err := sonic.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to encode JSON: %w", err)
	}

	var buf bytes.Buffer

	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(raw); err != nil {
		return nil, fmt.Errorf("failed to compress: %w", err)
	}

	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("failed to compress: %w", err)
	}

	return &buf, nil
}
