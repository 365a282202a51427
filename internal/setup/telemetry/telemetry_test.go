package telemetry_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/robalyx/pingbot/internal/setup/config"
	"github.com/robalyx/pingbot/internal/setup/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestManager_Logger(t *testing.T) {
	t.Parallel()

	logDir := t.TempDir()

	// Three older runs, oldest first
	base := time.Now().Add(-time.Hour)
	for i, name := range []string{"run-a", "run-b", "run-c"} {
		dir := filepath.Join(logDir, name)
		require.NoError(t, os.MkdirAll(dir, 0o755))
		modTime := base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, os.Chtimes(dir, modTime, modTime))
	}

	m := telemetry.NewManager(context.Background(), "bot", logDir,
		&config.Debug{LogLevel: "info", MaxLogsToKeep: 2, MaxLogLines: 100},
		&config.Loki{})

	logger, err := m.Logger()
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("Bot started", zap.String("user", "pingbot"))
	m.Stop()

	// Only the newest old run survives next to the current one
	entries, err := os.ReadDir(logDir)
	require.NoError(t, err)

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	assert.Len(t, names, 2)
	assert.Contains(t, names, "run-c")
	assert.Contains(t, names, filepath.Base(m.SessionDir()))

	content, err := os.ReadFile(filepath.Join(m.SessionDir(), "main.log"))
	require.NoError(t, err)
	assert.Contains(t, string(content), "Bot started")
	assert.Contains(t, string(content), m.InstanceID())
	assert.NotContains(t, string(content), "hidden")
}

func TestManager_InvalidLevel(t *testing.T) {
	t.Parallel()

	m := telemetry.NewManager(context.Background(), "bot", t.TempDir(),
		&config.Debug{LogLevel: "loud", MaxLogsToKeep: 1, MaxLogLines: 10},
		&config.Loki{})
	defer m.Stop()

	_, err := m.Logger()
	require.Error(t, err)
}

func TestCore_ErrorsBecomeSpans(t *testing.T) {
	t.Parallel()

	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	core := telemetry.NewCoreWithTracer(zapcore.DebugLevel, provider.Tracer("test"))
	logger := zap.New(core).Named("ping_controller").With(zap.String("session_id", "1/abc"))

	logger.Warn("not traced")
	logger.Error("Failed to report ping outcome", zap.Error(errors.New("unknown interaction")))

	spans := recorder.Ended()
	require.Len(t, spans, 1)

	span := spans[0]
	assert.Equal(t, "error.ping", span.Name())
	assert.Equal(t, codes.Error, span.Status().Code)
	assert.Contains(t, span.Attributes(), attribute.String("error.message", "Failed to report ping outcome"))
	assert.Contains(t, span.Attributes(), attribute.String("error.logger", "ping_controller"))
	assert.Contains(t, span.Attributes(), attribute.String("log.session_id", "1/abc"))
	assert.Contains(t, span.Attributes(), attribute.String("log.error", "unknown interaction"))
}
