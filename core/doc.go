// Package core provides the foundational domain types and capability
// interfaces used by AgentCrew. It defines the core abstractions for:
//
//   - Tasks (immutable units of work submitted to a manager)
//   - Turns (ordered conversation messages with tool-call correlation)
//   - Conversations (append-only turn sequences owned by one agent)
//   - ExecutionResults (outcome + aggregated token usage of one run)
//   - ConversationStore (pluggable persistence for finished runs)
//
// The package intentionally keeps implementation concerns (model providers,
// tool execution, concrete agents, storage engines) out of scope, exposing
// small interfaces and plain data types so that custom backends and
// extensions can be layered on top without import cycles.
package core
