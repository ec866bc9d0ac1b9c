// Package provider defines the vendor‑agnostic abstraction and concrete
// helpers for exchanging conversation turns with language model backends
// inside AgentCrew.
//
// Core goals:
//   - One synchronous call per loop iteration: turns + tool schemas in,
//     text + tool calls + token usage out
//   - Normalize tool / function call representation across vendors
//   - Keep request/response shapes minimal and transport independent
//   - Facilitate deterministic scripting for tests (MockProvider)
//
// Vendors (e.g. OpenAI, Anthropic, Bedrock) implement the Provider interface
// from this package so agents remain decoupled from vendor SDKs. A returned
// error is fatal to the calling execution; recoverable conditions are
// expressed in-band as tool turns by the agent layer.
package provider
