package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogFormat represents the log output format.
type LogFormat string

const (
	// FormatText is a human readable console format.
	FormatText LogFormat = "text"
	// FormatJSON is structured JSON format.
	FormatJSON LogFormat = "json"
)

// Config represents logging configuration.
type Config struct {
	Level   string
	Format  LogFormat
	Service string
	Version string
	// File, when set, receives the same entries as stderr.
	File string
	// Output replaces stderr; used by tests.
	Output io.Writer
}

// NewLoggerFromConfig builds a zap-backed logger. The returned closer is
// non-nil only when a log file was opened.
func NewLoggerFromConfig(cfg *Config) (ContextLogger, io.Closer, error) {
	format := cfg.Format
	if format == "" {
		format = FormatJSON
	}
	if format == "console" {
		format = FormatText
	}

	level := zap.NewAtomicLevelAt(ParseLevel(cfg.Level))

	var out io.Writer = os.Stderr
	if cfg.Output != nil {
		out = cfg.Output
	}
	cores := []zapcore.Core{
		zapcore.NewCore(encoder(format), zapcore.AddSync(out), level),
	}

	var file *os.File
	if cfg.File != "" {
		if err := ensureDir(filepath.Dir(cfg.File)); err != nil {
			return nil, nil, fmt.Errorf("create log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		file = f
		// Files always get JSON so they stay machine readable.
		cores = append(cores, zapcore.NewCore(encoder(FormatJSON), zapcore.AddSync(f), level))
	}

	base := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	if cfg.Service != "" {
		base = base.With(zap.String("service", cfg.Service))
	}
	if cfg.Version != "" {
		base = base.With(zap.String("version", cfg.Version))
	}

	logger := NewZapLogger(base, level)
	if file != nil {
		return logger, file, nil
	}
	return logger, nil, nil
}

// MustGetLogger creates a logger or panics.
func MustGetLogger(cfg *Config) (ContextLogger, io.Closer) {
	logger, closer, err := NewLoggerFromConfig(cfg)
	if err != nil {
		panic(fmt.Sprintf("failed to create logger: %v", err))
	}
	return logger, closer
}

func encoder(format LogFormat) zapcore.Encoder {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	if format == FormatText {
		cfg.EncodeLevel = zapcore.CapitalLevelEncoder
		cfg.ConsoleSeparator = " | "
		return zapcore.NewConsoleEncoder(cfg)
	}
	cfg.EncodeLevel = zapcore.LowercaseLevelEncoder
	cfg.MessageKey = "message"
	return zapcore.NewJSONEncoder(cfg)
}

func ensureDir(dir string) error {
	if strings.TrimSpace(dir) == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
