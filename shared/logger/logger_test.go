package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newJSONLogger(t *testing.T, level string, output *bytes.Buffer) *Logger {
	t.Helper()

	l, err := New(&Config{
		Level:      level,
		Format:     "json",
		TimeFormat: time.RFC3339,
		writer:     output,
	})
	require.NoError(t, err)
	return l
}

func decodeLines(t *testing.T, output *bytes.Buffer) []map[string]any {
	t.Helper()

	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(output.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		entries = append(entries, entry)
	}
	return entries
}

func TestNew_LevelFiltering(t *testing.T) {
	tests := []struct {
		level     string
		wantLevel string
	}{
		{level: "debug", wantLevel: "DEBUG"},
		{level: "info", wantLevel: "INFO"},
		{level: "warn", wantLevel: "WARN"},
		{level: "error", wantLevel: "ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			output := &bytes.Buffer{}
			l := newJSONLogger(t, tt.level, output)

			l.Debug("debug message")
			l.Info("info message")
			l.Warn("warn message")
			l.Error("error message", slog.String("job_id", "abc"))

			entries := decodeLines(t, output)
			require.NotEmpty(t, entries)
			assert.Equal(t, tt.wantLevel, entries[0]["level"])
			assert.Equal(t, "abc", entries[len(entries)-1]["job_id"])
		})
	}
}

func TestNew_ConsoleFormat(t *testing.T) {
	output := &bytes.Buffer{}

	l, err := New(&Config{Level: "info", Format: "console", writer: output})
	require.NoError(t, err)

	l.Info("console test", slog.String("job_id", "abc"))

	// tint abbreviates levels and never colours a non-terminal writer
	logOutput := output.String()
	assert.Contains(t, logOutput, "INF")
	assert.Contains(t, logOutput, "console test")
	assert.Contains(t, logOutput, "job_id=abc")
	assert.NotContains(t, logOutput, "\x1b[")
}

func TestNew_SourceLocation(t *testing.T) {
	output := &bytes.Buffer{}

	l, err := New(&Config{Level: "info", Format: "json", EnableSource: true, writer: output})
	require.NoError(t, err)

	l.Info("message with source")

	entries := decodeLines(t, output)
	require.Len(t, entries, 1)
	source, ok := entries[0]["source"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, source, "file")
	assert.Contains(t, source, "line")
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "service.log")

	l, err := New(&Config{Level: "info", Format: "json", Output: path})
	require.NoError(t, err)

	l.Info("written to file")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written to file")
}

func TestNew_FileOutputError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "service.log")

	l, err := New(&Config{Level: "info", Format: "json", Output: path})
	require.Error(t, err)
	assert.Nil(t, l)
	assert.Contains(t, err.Error(), "failed to open log file")
}

func TestNewDefault(t *testing.T) {
	l := NewDefault()
	require.NotNil(t, l)
	assert.NotNil(t, l.Logger)
	assert.NoError(t, l.Close())
}

func TestDiscard(t *testing.T) {
	l := Discard()
	require.NotNil(t, l)
	assert.False(t, l.Enabled(context.Background(), slog.LevelError))
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected slog.Level
	}{
		{level: "debug", expected: slog.LevelDebug},
		{level: "info", expected: slog.LevelInfo},
		{level: "warn", expected: slog.LevelWarn},
		{level: "warning", expected: slog.LevelWarn},
		{level: "error", expected: slog.LevelError},
		{level: "DEBUG", expected: slog.LevelInfo}, // case-sensitive
		{level: "invalid", expected: slog.LevelInfo},
		{level: "", expected: slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLevel(tt.level))
		})
	}
}

func TestLogger_WithGroup(t *testing.T) {
	output := &bytes.Buffer{}
	l := newJSONLogger(t, "info", output)

	l.WithGroup("worker").Info("test message", slog.String("key", "value"))

	entries := decodeLines(t, output)
	require.Len(t, entries, 1)
	group, ok := entries[0]["worker"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "value", group["key"])
}

func TestLogger_With(t *testing.T) {
	output := &bytes.Buffer{}
	l := newJSONLogger(t, "info", output)

	l.With(slog.String("service", "worker"), slog.Int("worker_num", 3)).Info("operation complete")

	entries := decodeLines(t, output)
	require.Len(t, entries, 1)
	assert.Equal(t, "worker", entries[0]["service"])
	assert.Equal(t, float64(3), entries[0]["worker_num"]) // JSON numbers are float64
	assert.Equal(t, "operation complete", entries[0]["msg"])
}
