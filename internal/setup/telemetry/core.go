package telemetry

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap/zapcore"
)

const modulePath = "github.com/robalyx/pingbot"

// Core is a zapcore.Core that turns error-level entries into spans, so that
// failures show up next to the ping session traces.
type Core struct {
	zapcore.LevelEnabler

	tracer trace.Tracer
	fields []zapcore.Field
}

// NewCore creates a span-emitting core. Entries below error level are ignored
// regardless of enab.
func NewCore(enab zapcore.LevelEnabler) *Core {
	return NewCoreWithTracer(enab, otel.Tracer(modulePath + "/logs"))
}

// NewCoreWithTracer is NewCore with an explicit tracer.
func NewCoreWithTracer(enab zapcore.LevelEnabler, tracer trace.Tracer) *Core {
	return &Core{
		LevelEnabler: enab,
		tracer:       tracer,
	}
}

func (c *Core) With(fields []zapcore.Field) zapcore.Core {
	merged := make([]zapcore.Field, 0, len(c.fields)+len(fields))
	merged = append(merged, c.fields...)
	merged = append(merged, fields...)

	return &Core{
		LevelEnabler: c.LevelEnabler,
		tracer:       c.tracer,
		fields:       merged,
	}
}

func (c *Core) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if ent.Level >= zapcore.ErrorLevel && c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *Core) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	_, span := c.tracer.Start(context.Background(), "error."+errorCategory(ent), trace.WithTimestamp(ent.Time))
	defer span.End()

	attrs := []attribute.KeyValue{
		attribute.String("error.message", ent.Message),
		attribute.String("error.level", ent.Level.String()),
	}
	if ent.LoggerName != "" {
		attrs = append(attrs, attribute.String("error.logger", ent.LoggerName))
	}
	if ent.Caller.Defined {
		attrs = append(attrs, attribute.String("error.caller", ent.Caller.TrimmedPath()))
	}

	enc := zapcore.NewMapObjectEncoder()
	for i := range c.fields {
		c.fields[i].AddTo(enc)
	}
	for i := range fields {
		fields[i].AddTo(enc)
	}
	for key, value := range enc.Fields {
		attrs = append(attrs, attribute.String("log."+key, fmt.Sprint(value)))
	}

	span.SetAttributes(attrs...)
	span.SetStatus(codes.Error, ent.Message)

	return nil
}

func (c *Core) Sync() error {
	return nil
}

// errorCategory groups entries by the component that logged them.
func errorCategory(ent zapcore.Entry) string {
	function := strings.TrimPrefix(ent.Caller.Function, modulePath+"/")
	name := ent.LoggerName

	switch {
	case strings.HasPrefix(function, "internal/ping."), strings.Contains(name, "ping_controller"):
		return "ping"
	case strings.HasPrefix(function, "internal/bot/interaction"), strings.Contains(name, "interaction"):
		return "interaction"
	case strings.HasPrefix(function, "internal/bot"), strings.HasPrefix(name, "bot"):
		return "bot"
	case strings.HasPrefix(function, "internal/setup"), strings.HasPrefix(function, "cmd/"):
		return "setup"
	default:
		return "application"
	}
}
