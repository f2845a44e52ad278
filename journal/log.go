package journal

import "github.com/decred/slog"

// log is the package-level subsystem logger. It defaults to a disabled
// backend so the package is silent until the host binary wires up a real
// logger via UseLogger.
var log = slog.Disabled

// UseLogger sets the subsystem logger used by this package.
func UseLogger(logger slog.Logger) {
	log = logger
}
