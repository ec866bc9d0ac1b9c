// Package logging provides a minimal logging interface and adapters for AgentCrew.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that agents, providers and stores use for observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	crew := agentcrew.New(manager, func(o *agentcrew.Options) { o.Logger = logger })
//
// The design intentionally keeps the interface minimal to avoid vendor lock-in
// while supporting structured logging where available.
package logging
