package logging

import (
	"context"
	"sort"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLogger adapts a zap.SugaredLogger to ContextLogger. Loggers derived
// with With* share the parent's level.
type ZapLogger struct {
	sugar *zap.SugaredLogger
	level zap.AtomicLevel
}

// NewZapLogger wraps an existing zap logger whose core honours level.
func NewZapLogger(base *zap.Logger, level zap.AtomicLevel) *ZapLogger {
	return &ZapLogger{
		sugar: base.WithOptions(zap.AddCallerSkip(1)).Sugar(),
		level: level,
	}
}

// NewNop returns a logger that discards everything.
func NewNop() *ZapLogger {
	return NewZapLogger(zap.NewNop(), zap.NewAtomicLevelAt(ErrorLevel))
}

func (l *ZapLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, normalize(keysAndValues)...)
}

func (l *ZapLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Infow(msg, normalize(keysAndValues)...)
}

func (l *ZapLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.sugar.Warnw(msg, normalize(keysAndValues)...)
}

func (l *ZapLogger) Error(msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, normalize(keysAndValues)...)
}

// Fatal logs and exits the process.
func (l *ZapLogger) Fatal(msg string, keysAndValues ...interface{}) {
	l.sugar.Fatalw(msg, normalize(keysAndValues)...)
}

func (l *ZapLogger) SetLevel(level Level) { l.level.SetLevel(level) }

func (l *ZapLogger) GetLevel() Level { return l.level.Level() }

// WithContext attaches correlation and request IDs carried by ctx.
func (l *ZapLogger) WithContext(ctx context.Context) ContextLogger {
	var args []interface{}
	if id, ok := CorrelationIDFromContext(ctx); ok {
		args = append(args, "correlation_id", id)
	}
	if id, ok := RequestIDFromContext(ctx); ok {
		args = append(args, "request_id", id)
	}
	if len(args) == 0 {
		return l
	}
	return &ZapLogger{sugar: l.sugar.With(args...), level: l.level}
}

func (l *ZapLogger) WithField(key string, value interface{}) ContextLogger {
	return &ZapLogger{sugar: l.sugar.With(key, value), level: l.level}
}

func (l *ZapLogger) WithFields(fields map[string]interface{}) ContextLogger {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	args := make([]interface{}, 0, len(fields)*2)
	for _, k := range keys {
		args = append(args, k, fields[k])
	}
	return &ZapLogger{sugar: l.sugar.With(args...), level: l.level}
}

// Sync flushes buffered entries.
func (l *ZapLogger) Sync() error { return l.sugar.Sync() }

// normalize keeps a dangling trailing value instead of letting zap report it
// as an error, and turns errors into zap error fields.
func normalize(kv []interface{}) []interface{} {
	if len(kv) == 0 {
		return nil
	}
	out := make([]interface{}, 0, len(kv)+1)
	for i := 0; i < len(kv); {
		switch v := kv[i].(type) {
		case zapcore.Field:
			out = append(out, v)
			i++
		case error:
			out = append(out, zap.Error(v))
			i++
		default:
			if i == len(kv)-1 {
				out = append(out, "extra", v)
				i++
				continue
			}
			out = append(out, v, kv[i+1])
			i += 2
		}
	}
	return out
}
