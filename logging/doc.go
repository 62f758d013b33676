// Package logging provides a minimal logging interface and adapters for collabmesh.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that the transport, store, agents and gateway use for observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - CollabLogger with component, user and replica scoped clones
//   - ForComponent and ForUser to scope any Logger
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	bus := transport.New(func(o *transport.Options) { o.Logger = logger })
//
// Arguments after the message are slog style key/value pairs.
package logging
