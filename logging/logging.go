// Package logging wires the per-package subsystem loggers to a root rotating
// log writer.
package logging

import (
	"github.com/decred/slog"

	"github.com/poolcore/disburser/batchdriver"
	"github.com/poolcore/disburser/build"
	"github.com/poolcore/disburser/chaingateway"
	"github.com/poolcore/disburser/engine"
	"github.com/poolcore/disburser/feepolicy"
	"github.com/poolcore/disburser/journal"
	"github.com/poolcore/disburser/poolapi"
	"github.com/poolcore/disburser/preflight"
)

// Subsystem tags, one per component.
const (
	SubsystemChainGateway = "CGWY"
	SubsystemPoolGateway  = "PGWY"
	SubsystemJournal      = "JRNL"
	SubsystemFeePolicy    = "FEEP"
	SubsystemEngine       = "ENGN"
	SubsystemBatchDriver  = "BDRV"
	SubsystemPreflight    = "PRFL"
)

// SetupLoggers creates one sub-logger per component from root and wires it
// into the corresponding package via that package's UseLogger setter.
func SetupLoggers(root *build.RotatingLogWriter) {
	addSubLogger(root, SubsystemChainGateway, chaingateway.UseLogger)
	addSubLogger(root, SubsystemPoolGateway, poolapi.UseLogger)
	addSubLogger(root, SubsystemJournal, journal.UseLogger)
	addSubLogger(root, SubsystemFeePolicy, feepolicy.UseLogger)
	addSubLogger(root, SubsystemEngine, engine.UseLogger)
	addSubLogger(root, SubsystemBatchDriver, batchdriver.UseLogger)
	addSubLogger(root, SubsystemPreflight, preflight.UseLogger)
}

func addSubLogger(root *build.RotatingLogWriter, subsystem string, use func(slog.Logger)) {
	logger := root.GenSubLogger(subsystem)
	root.RegisterSubLogger(subsystem, logger)
	use(logger)
}

// LevelFromString maps the disburser's configured debug level name to a
// slog.Level, defaulting to LevelInfo for an unrecognized name rather than
// failing startup over a typo in a log-level string.
func LevelFromString(s string) slog.Level {
	switch s {
	case "trace":
		return slog.LevelTrace
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "critical":
		return slog.LevelCritical
	case "off":
		return slog.LevelOff
	default:
		return slog.LevelInfo
	}
}
