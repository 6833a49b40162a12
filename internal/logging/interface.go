package logging

import (
	"context"
	"strings"

	"go.uber.org/zap/zapcore"
)

// Level is the minimum severity a logger emits.
type Level = zapcore.Level

const (
	DebugLevel = zapcore.DebugLevel
	InfoLevel  = zapcore.InfoLevel
	WarnLevel  = zapcore.WarnLevel
	ErrorLevel = zapcore.ErrorLevel
)

// ParseLevel maps a config string to a Level, defaulting to info.
func ParseLevel(level string) Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return DebugLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// LoggerInterface is the leveled logging surface. Trailing args are
// alternating key/value pairs.
type LoggerInterface interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Fatal(msg string, keysAndValues ...interface{})

	SetLevel(level Level)
	GetLevel() Level
}

// ContextLogger extends LoggerInterface with context support.
type ContextLogger interface {
	LoggerInterface
	WithContext(ctx context.Context) ContextLogger
	WithField(key string, value interface{}) ContextLogger
	WithFields(fields map[string]interface{}) ContextLogger
}

var _ ContextLogger = (*ZapLogger)(nil)
