package loki_test

import (
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/robalyx/pingbot/internal/setup/telemetry/loki"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type receivedPush struct {
	Streams []struct {
		Stream map[string]string `json:"stream"`
		Values [][2]string       `json:"values"`
	} `json:"streams"`
}

// fakeLoki records decoded push requests.
type fakeLoki struct {
	mu       sync.Mutex
	pushes   []receivedPush
	auth     []string
	received chan struct{}
}

func newFakeLoki(t *testing.T) (*fakeLoki, *httptest.Server) {
	t.Helper()

	f := &fakeLoki{received: make(chan struct{}, 16)}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, loki.PushPath, r.URL.Path)
		assert.Equal(t, "gzip", r.Header.Get("Content-Encoding"))

		gz, err := gzip.NewReader(r.Body)
		if !assert.NoError(t, err) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		raw, err := io.ReadAll(gz)
		if !assert.NoError(t, err) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		var push receivedPush
		if !assert.NoError(t, sonic.Unmarshal(raw, &push)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		user, _, _ := r.BasicAuth()

		f.mu.Lock()
		f.pushes = append(f.pushes, push)
		f.auth = append(f.auth, user)
		f.mu.Unlock()

		w.WriteHeader(http.StatusNoContent)
		f.received <- struct{}{}
	}))
	t.Cleanup(srv.Close)

	return f, srv
}

func (f *fakeLoki) Pushes() []receivedPush {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]receivedPush(nil), f.pushes...)
}

func TestPusher_StopFlushesByLevel(t *testing.T) {
	t.Parallel()

	f, srv := newFakeLoki(t)

	p := loki.NewPusher(context.Background(), loki.Config{
		URL:          srv.URL,
		Username:     "user",
		Password:     "secret",
		Labels:       map[string]string{"component": "bot"},
		BatchMaxSize: 100,
		BatchMaxWait: time.Hour,
	})

	p.Push(loki.Entry{Level: "info", UnixNano: 1, Line: "first"})
	p.Push(loki.Entry{Level: "error", UnixNano: 2, Line: "second"})
	p.Push(loki.Entry{Level: "info", UnixNano: 3, Line: "third"})
	p.Stop()
	p.Stop()

	pushes := f.Pushes()
	require.Len(t, pushes, 1)
	require.Len(t, pushes[0].Streams, 2)

	errStream := pushes[0].Streams[0]
	assert.Equal(t, map[string]string{"component": "bot", "level": "error"}, errStream.Stream)
	assert.Equal(t, [][2]string{{"2", "second"}}, errStream.Values)

	infoStream := pushes[0].Streams[1]
	assert.Equal(t, "info", infoStream.Stream["level"])
	assert.Equal(t, [][2]string{{"1", "first"}, {"3", "third"}}, infoStream.Values)

	assert.Equal(t, []string{"user"}, f.auth)
	assert.Zero(t, p.Dropped())
}

func TestPusher_FullBatchIsSent(t *testing.T) {
	t.Parallel()

	f, srv := newFakeLoki(t)

	p := loki.NewPusher(context.Background(), loki.Config{
		URL:          srv.URL,
		BatchMaxSize: 2,
		BatchMaxWait: time.Hour,
	})
	defer p.Stop()

	p.Push(loki.Entry{Level: "info", UnixNano: 1, Line: "a"})
	p.Push(loki.Entry{Level: "info", UnixNano: 2, Line: "b"})

	select {
	case <-f.received:
	case <-time.After(5 * time.Second):
		t.Fatal("batch was not pushed")
	}

	pushes := f.Pushes()
	require.Len(t, pushes, 1)
	assert.Len(t, pushes[0].Streams[0].Values, 2)
}

func TestCore_WritesStructuredLines(t *testing.T) {
	t.Parallel()

	f, srv := newFakeLoki(t)

	p := loki.NewPusher(context.Background(), loki.Config{
		URL:          srv.URL,
		BatchMaxWait: time.Hour,
	})

	logger := zap.New(loki.NewCore(zapcore.InfoLevel, p)).Named("bot").With(zap.String("session", "abc"))
	logger.Debug("filtered out")
	logger.Info("Ping session finished", zap.Int("completed", 3))
	p.Stop()

	pushes := f.Pushes()
	require.Len(t, pushes, 1)
	require.Len(t, pushes[0].Streams, 1)
	require.Len(t, pushes[0].Streams[0].Values, 1)

	var line map[string]any
	require.NoError(t, sonic.UnmarshalString(pushes[0].Streams[0].Values[0][1], &line))
	assert.Equal(t, "info", line["level"])
	assert.Equal(t, "Ping session finished", line["msg"])
	assert.Equal(t, "bot", line["logger"])

	fields, ok := line["fields"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "abc", fields["session"])
	assert.EqualValues(t, 3, fields["completed"])
}
