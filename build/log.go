// Package build provides the disburser's rotating log writer. The disburser
// is a long-running, non-interactive daemon, so rotation is always on
// rather than gated behind an optional build tag.
package build

import (
	"io"
	"os"

	"github.com/decred/slog"
	"github.com/jrick/logrotate/rotator"
)

// RotatingLogWriter wraps a rotator.Rotator and a set of per-subsystem
// backends so that packages can obtain loggers tagged with their subsystem
// name, mirroring dcrlnd's log.go SetupLoggers/AddSubLogger pattern.
type RotatingLogWriter struct {
	rotator  *rotator.Rotator
	backend  *slog.Backend
	subLoggers map[string]slog.Logger
}

// NewRotatingLogWriter creates a log writer backed by a file rotator at
// logFile, rotating when the file exceeds 10MB, retaining maxRollFiles old
// copies. If logFile is empty, only stdout is used.
func NewRotatingLogWriter(logFile string, maxRollFiles int) (*RotatingLogWriter, error) {
	var writers []io.Writer
	w := &RotatingLogWriter{subLoggers: make(map[string]slog.Logger)}

	if logFile != "" {
		r, err := rotator.New(logFile, 10*1024, false, maxRollFiles)
		if err != nil {
			return nil, err
		}
		w.rotator = r
		writers = append(writers, r)
	}
	writers = append(writers, os.Stdout)

	w.backend = slog.NewBackend(io.MultiWriter(writers...))
	return w, nil
}

// GenSubLogger returns a new slog.Logger tagged with subsystem and records
// it under that tag, replacing any logger recorded there before.
func (w *RotatingLogWriter) GenSubLogger(subsystem string) slog.Logger {
	l := w.backend.Logger(subsystem)
	w.subLoggers[subsystem] = l
	return l
}

// RegisterSubLogger records a logger under a subsystem tag so SetLevel can
// find it later.
func (w *RotatingLogWriter) RegisterSubLogger(subsystem string, logger slog.Logger) {
	w.subLoggers[subsystem] = logger
}

// SetLevel sets the logging level for a previously registered subsystem. A
// no-op if the subsystem was never registered.
func (w *RotatingLogWriter) SetLevel(subsystem string, level slog.Level) {
	if l, ok := w.subLoggers[subsystem]; ok {
		l.SetLevel(level)
	}
}

// SetLevelAll sets the logging level for every registered subsystem.
func (w *RotatingLogWriter) SetLevelAll(level slog.Level) {
	for _, l := range w.subLoggers {
		l.SetLevel(level)
	}
}

// Close flushes and closes the underlying rotator, if any.
func (w *RotatingLogWriter) Close() error {
	if w.rotator == nil {
		return nil
	}
	return w.rotator.Close()
}
