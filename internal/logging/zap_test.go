package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newBufferLogger(t *testing.T, level string) (ContextLogger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger, closer, err := NewLoggerFromConfig(&Config{
		Level:   level,
		Format:  FormatJSON,
		Service: "test-service",
		Version: "1.0.0",
		Output:  &buf,
	})
	require.NoError(t, err)
	assert.Nil(t, closer)
	return logger, &buf
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var entries []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry), line)
		entries = append(entries, entry)
	}
	return entries
}

func TestJSONEntryCarriesContext(t *testing.T) {
	logger, buf := newBufferLogger(t, "debug")

	ctx := ContextWithCorrelationID(context.Background(), "corr-123")
	ctx = ContextWithRequestID(ctx, "req-456")
	logger.WithContext(ctx).WithField("tool", "evaluatePosition").Info("Tool request received")

	entries := decodeLines(t, buf)
	require.Len(t, entries, 1)
	entry := entries[0]
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "Tool request received", entry["message"])
	assert.Equal(t, "test-service", entry["service"])
	assert.Equal(t, "1.0.0", entry["version"])
	assert.Equal(t, "corr-123", entry["correlation_id"])
	assert.Equal(t, "req-456", entry["request_id"])
	assert.Equal(t, "evaluatePosition", entry["tool"])
	assert.Contains(t, entry["caller"], "zap_test.go")
}

func TestLevelFiltering(t *testing.T) {
	logger, buf := newBufferLogger(t, "info")

	logger.Debug("hidden")
	logger.Info("shown")
	assert.Len(t, decodeLines(t, buf), 1)

	logger.SetLevel(DebugLevel)
	assert.Equal(t, DebugLevel, logger.GetLevel())
	logger.WithField("k", "v").Debug("now shown")
	assert.Len(t, decodeLines(t, buf), 2)
}

func TestKeyValueArgs(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	logger := NewZapLogger(zap.New(core), zap.NewAtomicLevelAt(DebugLevel))

	logger.Info("Rate limit exceeded", "client", "anonymous", "tool", "getBestMove")
	logger.Warn("Global rate limit exceeded", "client", "anonymous", "dangling")
	logger.Error("Engine crashed", errors.New("broken pipe"))
	logger.Error("Spawn failed", "error", errors.New("not found"), "attempt", 2)

	entries := logs.All()
	require.Len(t, entries, 4)

	fields := entries[0].ContextMap()
	assert.Equal(t, "anonymous", fields["client"])
	assert.Equal(t, "getBestMove", fields["tool"])

	fields = entries[1].ContextMap()
	assert.Equal(t, "dangling", fields["extra"])

	fields = entries[2].ContextMap()
	assert.Equal(t, "broken pipe", fields["error"])

	fields = entries[3].ContextMap()
	assert.Equal(t, int64(2), fields["attempt"])
}

func TestWithFieldsIsSorted(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	logger := NewZapLogger(zap.New(core), zap.NewAtomicLevelAt(DebugLevel))

	logger.WithFields(map[string]interface{}{"b": 2, "a": 1}).Info("fields")

	entries := logs.All()
	require.Len(t, entries, 1)
	require.Len(t, entries[0].Context, 2)
	assert.Equal(t, "a", entries[0].Context[0].Key)
	assert.Equal(t, "b", entries[0].Context[1].Key)
}

func TestWithContextWithoutIDs(t *testing.T) {
	logger := NewNop()
	assert.Same(t, logger, logger.WithContext(context.Background()))
}

func TestTextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, _, err := NewLoggerFromConfig(&Config{Level: "info", Format: "console", Output: &buf})
	require.NoError(t, err)

	logger.Info("Engine ready", "name", "Stockfish 16")
	out := buf.String()
	assert.Contains(t, out, "INFO")
	assert.Contains(t, out, " | ")
	assert.Contains(t, out, "Engine ready")
}

func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "endgame.log")
	var buf bytes.Buffer
	logger, closer, err := NewLoggerFromConfig(&Config{
		Level:  "info",
		Format: FormatText,
		File:   path,
		Output: &buf,
	})
	require.NoError(t, err)
	require.NotNil(t, closer)

	logger.Info("to both sinks")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &entry))
	assert.Equal(t, "to both sinks", entry["message"])
	assert.Contains(t, buf.String(), "to both sinks")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, WarnLevel, ParseLevel("warning"))
	assert.Equal(t, ErrorLevel, ParseLevel("error"))
	assert.Equal(t, InfoLevel, ParseLevel("bogus"))
}
