package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  slog.Level
	}{
		{"info", "info", slog.LevelInfo},
		{"debug", "debug", slog.LevelDebug},
		{"trace", "trace", LevelTrace},
		{"uppercase DEBUG", "DEBUG", slog.LevelDebug},
		{"mixed case Trace", "Trace", LevelTrace},
		{"unknown defaults to info", "verbose", slog.LevelInfo},
		{"empty defaults to info", "", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.input))
		})
	}
}

func TestValidLevel(t *testing.T) {
	for _, ok := range []string{"", "info", "DEBUG", "trace"} {
		assert.True(t, ValidLevel(ok), ok)
	}
	for _, bad := range []string{"warn", "verbose", "0"} {
		assert.False(t, ValidLevel(bad), bad)
	}
}

func TestNewLogger_LevelFiltering(t *testing.T) {
	tests := []struct {
		level      string
		logAtTrace bool
		logAtDebug bool
	}{
		{"info", false, false},
		{"debug", false, true},
		{"trace", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogger(tt.level, &buf)

			logger.Log(t.Context(), LevelTrace, "trace message")
			assert.Equal(t, tt.logAtTrace, strings.Contains(buf.String(), "trace message"))

			buf.Reset()
			logger.Debug("debug message")
			assert.Equal(t, tt.logAtDebug, strings.Contains(buf.String(), "debug message"))

			buf.Reset()
			logger.Info("info message")
			assert.Contains(t, buf.String(), "info message")
		})
	}
}

func TestNewLogger_TraceLabel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("trace", &buf)
	logger.Log(t.Context(), LevelTrace, "round", "arm", 3)

	assert.Contains(t, buf.String(), "level=TRACE")
	assert.Contains(t, buf.String(), "arm=3")
}

func TestNewDecisionLogger_InfoLevel(t *testing.T) {
	dir := t.TempDir()
	dl := NewDecisionLogger(dir, "info")
	assert.Nil(t, dl)

	// Nil logger should still be safe to use
	dl.Log(map[string]any{"event": "round"})
	assert.NoError(t, dl.Close())

	_, err := os.Stat(filepath.Join(dir, DecisionFile))
	assert.True(t, os.IsNotExist(err), "no trace file at info level")
}

func TestNewDecisionLogger_DebugLevel(t *testing.T) {
	dir := t.TempDir()
	dl := NewDecisionLogger(dir, "debug")
	require.NotNil(t, dl)

	event := map[string]any{"event": "round", "arm": 2, "regret": 1.25}
	dl.Log(event)
	dl.Log(map[string]any{"event": "round", "arm": 0})
	require.NoError(t, dl.Close())

	_, mutated := event["time"]
	assert.False(t, mutated, "caller's map must not be mutated")

	data, err := os.ReadFile(filepath.Join(dir, DecisionFile))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)

	var first map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "round", first["event"])
	assert.Equal(t, 2.0, first["arm"])
	assert.Equal(t, 1.25, first["regret"])
	assert.Contains(t, first, "time")
}

func TestDecisionLogger_CloseTwice(t *testing.T) {
	dl := NewDecisionLogger(t.TempDir(), "trace")
	require.NotNil(t, dl)
	require.NoError(t, dl.Close())
	assert.NoError(t, dl.Close())

	// Logging after close is a no-op.
	dl.Log(map[string]any{"event": "late"})
}
