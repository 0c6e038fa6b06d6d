// Package logging provides leveled logging and round tracing for armbench.
// It offers two complementary outputs:
//   - A leveled slog.Logger for stderr (operational output)
//   - A DecisionLogger for per-round JSONL decision traces (decisions.jsonl)
package logging

import (
	"bufio"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// LevelTrace is a custom slog level below Debug. At this level the engine
// logs every round.
const LevelTrace = slog.LevelDebug - 4

// DecisionFile is the name of the decision trace inside its directory.
const DecisionFile = "decisions.jsonl"

// ParseLevel maps a string level name to a slog.Level.
// Supported values: "info", "debug", "trace" (case-insensitive).
// Unknown values default to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "trace":
		return LevelTrace
	default:
		return slog.LevelInfo
	}
}

// ValidLevel reports whether s is a recognized level name. Empty is valid
// and means info.
func ValidLevel(s string) bool {
	switch strings.ToLower(s) {
	case "", "info", "debug", "trace":
		return true
	}
	return false
}

// NewLogger creates a leveled slog.Logger writing text to w.
func NewLogger(level string, w io.Writer) *slog.Logger {
	lvl := ParseLevel(level)
	opts := &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Label the custom trace level
			if a.Key == slog.LevelKey {
				if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelTrace {
					a.Value = slog.StringValue("TRACE")
				}
			}
			return a
		},
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// DecisionLogger writes structured per-round events to a JSONL file.
// Writes are buffered; Close flushes them. It is safe for concurrent use.
// A nil DecisionLogger is safe to use; all methods are no-ops on nil receiver.
type DecisionLogger struct {
	mu   sync.Mutex
	file *os.File
	buf  *bufio.Writer
}

// NewDecisionLogger creates a decision logger appending to dir/decisions.jsonl.
// At "info" level (the default), returns nil and no file is created.
// At "debug" or "trace" level, the file is opened for append.
// Returns nil if the file cannot be opened. All methods are nil-safe.
func NewDecisionLogger(dir string, level string) *DecisionLogger {
	if ParseLevel(level) == slog.LevelInfo {
		return nil
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil
	}

	path := filepath.Join(dir, DecisionFile)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil
	}

	return &DecisionLogger{file: f, buf: bufio.NewWriter(f)}
}

// Log writes an event as a single JSONL line.
// A "time" field is added automatically. The caller's map is not mutated.
// Safe to call on nil receiver.
func (dl *DecisionLogger) Log(event map[string]any) {
	if dl == nil {
		return
	}

	entry := make(map[string]any, len(event)+1)
	for k, v := range event {
		entry[k] = v
	}
	entry["time"] = time.Now().UTC().Format(time.RFC3339Nano)

	data, err := json.Marshal(entry)
	if err != nil {
		return
	}

	dl.mu.Lock()
	defer dl.mu.Unlock()

	if dl.buf == nil {
		return
	}
	data = append(data, '\n')
	_, _ = dl.buf.Write(data)
}

// Close flushes buffered events and closes the file. Safe to call on nil
// receiver and more than once.
func (dl *DecisionLogger) Close() error {
	if dl == nil {
		return nil
	}

	dl.mu.Lock()
	defer dl.mu.Unlock()

	if dl.file == nil {
		return nil
	}
	flushErr := dl.buf.Flush()
	closeErr := dl.file.Close()
	dl.file, dl.buf = nil, nil
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}
