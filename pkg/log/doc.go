// Package log provides the simulation event log for ecusim.
//
// This package defines the Logger interface and the Event type emitted by the
// subscription manager and the vehicle: lifecycle records, subscription
// changes, notifications, samples and absorbed errors. It is separate from
// operational logging (slog) in the commands; the event log is a complete
// machine-readable trace of a simulation run.
//
// # Basic Usage
//
// Components receive a Logger at construction:
//
//	// For development: log to console via slog
//	cfg.Logger = log.NewSlogAdapter(slog.Default())
//
//	// For analysis: write to binary file
//	cfg.Logger, _ = log.NewFileLogger("/tmp/run.elog")
//
//	// Both: use MultiLogger
//	cfg.Logger = log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    fileLogger,
//	)
//
// A Recorder stamps every event with a timestamp and the run's session id.
//
// # File Format
//
// Log files use CBOR encoding with integer keys and the .elog extension. The
// ecusim-log command provides viewing, filtering and export.
package log
