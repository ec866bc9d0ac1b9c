package core

import (
	"errors"
	"fmt"
)

// ErrConversationNotFound is returned by conversation stores when no
// conversation with the requested ID exists.
var ErrConversationNotFound = errors.New("conversation not found")

// ProviderError wraps a failed provider call. It is always fatal to the
// current execution: the loop catches it once at its boundary, converts it
// into a failed ExecutionResult and still persists the conversation.
type ProviderError struct {
	Provider string // provider vendor, e.g. "anthropic"
	Err      error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

// Unwrap returns the underlying provider failure.
func (e *ProviderError) Unwrap() error { return e.Err }

// MissingToolError reports that a provider requested a tool the worker has no
// registered implementation for. Unlike a registered tool failing at runtime,
// this is an integration defect and aborts the execution immediately.
type MissingToolError struct {
	Agent string // worker name
	Tool  string // requested tool name
}

// Error implements the error interface; the message names the missing tool.
func (e *MissingToolError) Error() string {
	return fmt.Sprintf("agent %q has no implementation registered for tool %q", e.Agent, e.Tool)
}

// DelegationError reports that a manager's delegation target could not be
// resolved: the name is unknown or on the restricted list. It is never fatal;
// the manager surfaces it to the model as a tool turn and keeps iterating.
type DelegationError struct {
	Worker string
}

// Error implements the error interface. The text is fixed; the manager
// prefixes it with "Error: " when building the tool turn.
func (e *DelegationError) Error() string {
	return fmt.Sprintf("Worker '%s' not found or restricted", e.Worker)
}

// UnknownWorkerError reports a direct invocation of a worker name the
// orchestrator does not know. Distinct from DelegationError: outside the
// manager's loop there is no model to recover, so the call fails immediately.
type UnknownWorkerError struct {
	Worker string
}

// Error implements the error interface.
func (e *UnknownWorkerError) Error() string {
	return fmt.Sprintf("worker %q not registered", e.Worker)
}
