// Package telemetry sets up logging and tracing for a pingbot process: a
// per-run log directory, optional Loki shipping and error spans.
package telemetry

import (
	"context"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robalyx/pingbot/internal/setup/config"
	"github.com/robalyx/pingbot/internal/setup/telemetry/logger"
	"github.com/robalyx/pingbot/internal/setup/telemetry/loki"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// sessionDirLayout names each run's log directory.
const sessionDirLayout = "2006-01-02_15-04-05"

// Manager creates the log files of one process run. Each run gets its own
// timestamped directory under logDir; older runs beyond maxLogsToKeep are
// removed.
type Manager struct {
	lokiPusher    *loki.Pusher
	instanceID    string
	componentName string
	logDir        string
	level         string
	maxLogsToKeep int
	maxLogLines   int
	console       bool

	mu         sync.Mutex
	sessionDir string
	writers    []*logger.LogRotator
}

// Option customizes a Manager.
type Option func(*Manager)

// WithConsole also writes log entries to stderr.
func WithConsole() Option {
	return func(m *Manager) {
		m.console = true
	}
}

// NewManager creates a new Manager. Loki shipping starts immediately when
// enabled in lokiCfg.
func NewManager(
	ctx context.Context, componentName, logDir string,
	debugCfg *config.Debug, lokiCfg *config.Loki, opts ...Option,
) *Manager {
	m := &Manager{
		instanceID:    uuid.New().String(),
		componentName: componentName,
		logDir:        logDir,
		level:         debugCfg.LogLevel,
		maxLogsToKeep: debugCfg.MaxLogsToKeep,
		maxLogLines:   debugCfg.MaxLogLines,
	}

	for _, opt := range opts {
		opt(m)
	}

	if lokiCfg.Enabled && lokiCfg.URL != "" {
		labels := make(map[string]string, len(lokiCfg.Labels)+2)
		maps.Copy(labels, lokiCfg.Labels)
		labels["component"] = componentName
		labels["instance_id"] = m.instanceID

		m.lokiPusher = loki.NewPusher(ctx, loki.Config{
			URL:          lokiCfg.URL,
			Username:     lokiCfg.Username,
			Password:     lokiCfg.Password,
			Labels:       labels,
			BatchMaxSize: lokiCfg.BatchMaxSize,
			BatchMaxWait: time.Duration(lokiCfg.BatchMaxWaitMS) * time.Millisecond,
		})
	}

	return m
}

// Logger creates the main application logger writing to main.log in a fresh
// session directory.
func (m *Manager) Logger() (*zap.Logger, error) {
	if err := m.setupLogDirectories(); err != nil {
		return nil, err
	}

	warnLevel := zapcore.WarnLevel

	mainLogger, err := m.newLogger(filepath.Join(m.SessionDir(), "main.log"), &warnLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize main logger: %w", err)
	}

	return mainLogger.With(zap.String("instance_id", m.instanceID)), nil
}

// ComponentLogger creates a logger with its own file in the session directory.
// It falls back to a no-op logger if the file cannot be created.
func (m *Manager) ComponentLogger(name string) *zap.Logger {
	l, err := m.newLogger(filepath.Join(m.SessionDir(), name+".log"), nil)
	if err != nil {
		return zap.NewNop()
	}
	return l.Named(name)
}

// SessionDir returns the log directory of the current run.
func (m *Manager) SessionDir() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sessionDir != "" {
		return m.sessionDir
	}

	sessionDir := filepath.Join(m.logDir, time.Now().Format(sessionDirLayout))
	if err := os.MkdirAll(sessionDir, os.ModePerm); err != nil {
		return m.logDir
	}

	m.sessionDir = sessionDir
	return sessionDir
}

// InstanceID returns the unique identifier of this process run.
func (m *Manager) InstanceID() string {
	return m.instanceID
}

// Stop flushes Loki and closes the log files.
func (m *Manager) Stop() {
	if m.lokiPusher != nil {
		m.lokiPusher.Stop()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, w := range m.writers {
		_ = w.Sync()
		_ = w.Close()
	}
	m.writers = nil
}

// setupLogDirectories creates the base directory, removes old runs and
// creates this run's directory.
func (m *Manager) setupLogDirectories() error {
	if err := os.MkdirAll(m.logDir, os.ModePerm); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	if err := m.rotateLogSessions(); err != nil {
		return fmt.Errorf("failed to rotate log sessions: %w", err)
	}

	sessionDir := filepath.Join(m.logDir, time.Now().Format(sessionDirLayout))
	if err := os.MkdirAll(sessionDir, os.ModePerm); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	m.mu.Lock()
	m.sessionDir = sessionDir
	m.mu.Unlock()

	return nil
}

// newLogger builds a logger over path plus the optional console, Loki and
// span cores. lokiMinLevel raises the level shipped to Loki.
func (m *Manager) newLogger(path string, lokiMinLevel *zapcore.Level) (*zap.Logger, error) {
	zapLevel, err := zapcore.ParseLevel(m.level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	rotator, err := logger.OpenLogRotator(path, m.maxLogLines)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.writers = append(m.writers, rotator)
	m.mu.Unlock()

	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.AddSync(rotator), zapLevel),
		NewCore(zapLevel),
	}

	if m.console {
		consoleConfig := encoderConfig
		consoleConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(consoleConfig), zapcore.Lock(os.Stderr), zapLevel,
		))
	}

	if m.lokiPusher != nil {
		minLevel := zapLevel
		if lokiMinLevel != nil && *lokiMinLevel > minLevel {
			minLevel = *lokiMinLevel
		}
		cores = append(cores, loki.NewCore(minLevel, m.lokiPusher))
	}

	return zap.New(
		zapcore.NewTee(cores...),
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
		zap.Development(),
	), nil
}

// rotateLogSessions removes the oldest run directories so that, with the run
// about to be created, at most maxLogsToKeep remain.
func (m *Manager) rotateLogSessions() error {
	sessions, err := filepath.Glob(filepath.Join(m.logDir, "*"))
	if err != nil {
		return err
	}

	keep := max(m.maxLogsToKeep-1, 0)
	if len(sessions) <= keep {
		return nil
	}

	modTimes := make(map[string]time.Time, len(sessions))
	for _, session := range sessions {
		if info, err := os.Stat(session); err == nil {
			modTimes[session] = info.ModTime()
		}
	}

	sort.Slice(sessions, func(i, j int) bool {
		return modTimes[sessions[i]].Before(modTimes[sessions[j]])
	})

	for _, session := range sessions[:len(sessions)-keep] {
		if err := os.RemoveAll(session); err != nil {
			return err
		}
	}

	return nil
}
