// Package tool implements the function / tool calling subsystem that lets
// workers invoke structured capabilities (APIs, computations, side‑effects)
// with schema validated arguments, consistent error handling and rich
// metadata for LLM guidance.
package tool

import (
	"context"
	"fmt"

	"github.com/hupe1980/agentcrew/internal/util"
)

// Tool defines the interface for extending worker capabilities with external
// functions.
//
// Tools are registered with workers to enable function calling, allowing
// workers to perform actions beyond text generation such as API calls,
// calculations, database queries, or any other programmatic operations.
//
// Tool implementations should:
//   - Provide clear, descriptive names and descriptions
//   - Define proper JSON schema for parameters
//   - Handle errors gracefully (a returned error is surfaced to the model as
//     a tool turn, never aborting the execution)
//   - Honor the context for long-running work
//   - Follow consistent naming conventions (snake_case recommended)
type Tool interface {
	// Name returns the unique identifier for this tool.
	Name() string

	// Description returns a human-readable description of what this tool does.
	// This description is provided to the LLM to help it understand when and
	// how to use the tool.
	Description() string

	// Parameters returns a JSON schema describing the expected input format.
	// This schema is used for parameter validation and LLM function calling.
	Parameters() map[string]interface{}

	// Call executes the tool with structured arguments and returns the text
	// handed back to the model. Arguments are parsed from JSON before the
	// call; validation against the tool's schema is the implementation's
	// responsibility (FunctionTool does it for you).
	Call(ctx context.Context, args map[string]interface{}) (string, error)
}

// ValidationError represents parameter validation errors with detailed information.
type ValidationError = util.ValidationError

// ToolError represents errors that occur during tool execution.
type ToolError struct {
	Tool    string      `json:"tool"`              // Name of the tool that failed
	Message string      `json:"message"`           // Error message
	Code    string      `json:"code"`              // Error code for categorization
	Details interface{} `json:"details,omitempty"` // Additional error details
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}
