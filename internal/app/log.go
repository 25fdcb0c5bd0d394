package app

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"hubsync/internal/hub"

	"github.com/rs/zerolog"
)

// newLogger creates a structured logger that writes JSON to
// logDir/hubsync.log and human-readable output to stderr.
// It returns the logger and the open log file (for cleanup).
func newLogger(logDir string) (hub.Logger, *os.File, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("creating log directory: %w", err)
	}

	logPath := filepath.Join(logDir, "hubsync.log")
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	console := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	logger := zerolog.New(zerolog.MultiLevelWriter(f, console)).
		With().Timestamp().Logger()

	return &zerologAdapter{l: logger}, f, nil
}

// zerologAdapter wraps a zerolog.Logger to satisfy the hub.Logger interface.
type zerologAdapter struct {
	l zerolog.Logger
}

func (a *zerologAdapter) Debug(msg string, args ...any) { emit(a.l.Debug(), msg, args) }
func (a *zerologAdapter) Info(msg string, args ...any)  { emit(a.l.Info(), msg, args) }
func (a *zerologAdapter) Warn(msg string, args ...any)  { emit(a.l.Warn(), msg, args) }
func (a *zerologAdapter) Error(msg string, args ...any) { emit(a.l.Error(), msg, args) }

// emit translates alternating key/value args into zerolog fields. A trailing
// key without a value is dropped.
func emit(e *zerolog.Event, msg string, args []any) {
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprint(args[i])
		}
		e = e.Interface(key, args[i+1])
	}
	e.Msg(msg)
}
