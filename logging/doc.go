// Package logging provides a minimal logging interface and adapters for actionmesh.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that the parser, runner and workbench use for diagnostics. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - ZapAdapter wrapping go.uber.org/zap for hosts already on zap
//   - Scoped loggers that tag every record with a component name
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	r := runner.New(sb, func(o *runner.Options) { o.Logger = logger })
//
// Arguments after the message are alternating key/value pairs, as with slog.
package logging
