package loki

import (
	"maps"

	"github.com/bytedance/sonic"
	"go.uber.org/zap/zapcore"
)

// Core is a zapcore.Core that queues entries on a Pusher.
type Core struct {
	zapcore.LevelEnabler

	pusher *Pusher
	fields map[string]any
}

// NewCore creates a Core shipping entries enabled by enabler to pusher.
func NewCore(enabler zapcore.LevelEnabler, pusher *Pusher) *Core {
	return &Core{
		LevelEnabler: enabler,
		pusher:       pusher,
	}
}

// With returns a copy of the core carrying the extra fields.
func (c *Core) With(fields []zapcore.Field) zapcore.Core {
	return &Core{
		LevelEnabler: c.LevelEnabler,
		pusher:       c.pusher,
		fields:       c.merge(fields),
	}
}

// Check implements zapcore.Core.
func (c *Core) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

// Write serializes the entry and hands it to the pusher.
func (c *Core) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	payload := line{
		Level:   ent.Level.String(),
		Message: ent.Message,
		Logger:  ent.LoggerName,
		Stack:   ent.Stack,
		Fields:  c.merge(fields),
	}
	if ent.Caller.Defined {
		payload.Caller = ent.Caller.TrimmedPath()
	}

	raw, err := sonic.MarshalString(payload)
	if err != nil {
		return err
	}

	c.pusher.Push(Entry{
		Level:    payload.Level,
		UnixNano: ent.Time.UnixNano(),
		Line:     raw,
	})

	return nil
}

// Sync is a no-op; the pusher flushes on its own schedule and on Stop.
func (c *Core) Sync() error {
	return nil
}

func (c *Core) merge(fields []zapcore.Field) map[string]any {
	if len(c.fields) == 0 && len(fields) == 0 {
		return nil
	}

	enc := zapcore.NewMapObjectEncoder()
	for i := range fields {
		fields[i].AddTo(enc)
	}

	merged := make(map[string]any, len(c.fields)+len(enc.Fields))
	maps.Copy(merged, c.fields)
	maps.Copy(merged, enc.Fields)

	return merged
}
