// Package tracing implements init_tracing: a leveled, structured logger
// resolved to a file or stderr, using log/slog for component-scoped
// logging rather than a hand-rolled level-filtered writer.
package tracing

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// Level is one of the five levels init_tracing's contract accepts.
type Level string

const (
	LevelError Level = "error"
	LevelWarn  Level = "warn"
	LevelInfo  Level = "info"
	LevelDebug Level = "debug"
	LevelTrace Level = "trace"
)

// slogLevel maps the five-level taxonomy onto slog.Level. trace has no
// direct slog equivalent, so it is modeled as a level below Debug,
// consistent with slog's documented convention for sub-debug verbosity.
func slogLevel(l Level) slog.Level {
	switch l {
	case LevelError:
		return slog.LevelError
	case LevelWarn:
		return slog.LevelWarn
	case LevelInfo:
		return slog.LevelInfo
	case LevelDebug:
		return slog.LevelDebug
	case LevelTrace:
		return slog.LevelDebug - 4
	default:
		return slog.LevelInfo
	}
}

// Init resolves logFile (empty means stderr), opens it for append, and
// installs a slog.Logger at the given level as the process default. It
// returns the resolved absolute log file path, matching init_tracing's
// documented return value.
func Init(logFile string, level Level) (string, error) {
	var w io.Writer = os.Stderr
	resolved := ""

	if logFile != "" {
		abs, err := filepath.Abs(logFile)
		if err != nil {
			return "", fmt.Errorf("tracing: resolve log file path: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			return "", fmt.Errorf("tracing: create log directory: %w", err)
		}
		f, err := os.OpenFile(abs, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return "", fmt.Errorf("tracing: open log file: %w", err)
		}
		w = f
		resolved = abs
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slogLevel(level)})
	slog.SetDefault(slog.New(handler))
	return resolved, nil
}

// Named returns a logger scoped to a component name, attaching a
// "component" attribute to every record the way the coordinator wants to attribute messages
// from the index, watcher, git tracker, and frecency store independently.
func Named(component string) *slog.Logger {
	return slog.Default().With("component", component)
}
