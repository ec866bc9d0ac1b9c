package tool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hupe1980/agentcrew/internal/util"
)

// FunctionTool is a generic adapter that exposes a plain Go function as an
// AgentCrew tool.
//
// Responsibilities:
//   - Holds a lightweight JSON-Schema-like parameter specification
//   - Applies declared defaults and validates model-supplied arguments
//     against that schema before execution
//   - Normalizes error handling so callers receive *ToolError with
//     consistent codes:
//     VALIDATION_ERROR  -> schema / argument mismatch
//     EXECUTION_ERROR   -> underlying function returned an error (non-ToolError)
//     (custom codes preserved if the function returns *ToolError directly)
//   - Serializes non-string results to JSON so the model always receives text
//
// Concurrency:
//
//	A FunctionTool has no internal mutable state after construction and is
//	safe for concurrent use by multiple goroutines.
//
// Parameter Schema Expectations:
//
//	The parameters map should follow the minimal JSON Schema shape used
//	elsewhere in the project. Only the subset actually validated by
//	util.ValidateParameters needs to be supplied (type, properties,
//	required, enum, etc.).
type FunctionTool struct {
	// Tool identifier (snake_case recommended)
	name string
	// Human-readable description shown to models
	description string
	// JSON schema describing accepted arguments
	parameters map[string]any
	// User supplied implementation
	fn func(ctx context.Context, args map[string]any) (any, error)
}

// NewFunctionTool constructs a FunctionTool from explicit schema and function.
//
// Example:
//
//	sumTool := NewFunctionTool(
//	  "calculate_sum",
//	  "Calculate the sum of two numbers",
//	  map[string]any{
//	    "type": "object",
//	    "properties": map[string]any{
//	      "a": map[string]any{"type": "number"},
//	      "b": map[string]any{"type": "number"},
//	    },
//	    "required": []string{"a", "b"},
//	  },
//	  func(ctx context.Context, args map[string]any) (any, error) {
//	    return args["a"].(float64) + args["b"].(float64), nil
//	  },
//	)
func NewFunctionTool(
	name, description string,
	parameters map[string]any,
	fn func(ctx context.Context, args map[string]any) (any, error),
) *FunctionTool {
	return &FunctionTool{
		name:        name,
		description: description,
		parameters:  parameters,
		fn:          fn,
	}
}

// NewFunctionToolFromStruct derives the parameter schema from a struct using
// reflection. It is a convenience for simple argument containers and produces
// a schema equivalent to util.CreateSchema(structType).
//
// Example:
//
//	type SumArgs struct {
//	  A float64 `json:"a" description:"First addend"`
//	  B float64 `json:"b" description:"Second addend"`
//	}
//
//	sumTool := NewFunctionToolFromStruct(
//	  "calculate_sum",
//	  "Calculate the sum of two numbers",
//	  SumArgs{},
//	  func(ctx context.Context, args map[string]any) (any, error) {
//	    return args["a"].(float64) + args["b"].(float64), nil
//	  },
//	)
func NewFunctionToolFromStruct(
	name, description string,
	structType any,
	fn func(ctx context.Context, args map[string]any) (any, error),
) *FunctionTool {
	schema := util.CreateSchema(structType)
	return NewFunctionTool(name, description, schema, fn)
}

// Name returns the unique tool name used in function call declarations and routing.
func (t *FunctionTool) Name() string { return t.name }

// Description returns the short natural language description exposed to models.
func (t *FunctionTool) Description() string { return t.description }

// Parameters returns the (minimal) JSON schema describing expected arguments.
func (t *FunctionTool) Parameters() map[string]any { return t.parameters }

// Call applies schema defaults, validates the provided args and invokes the
// underlying function. Validation or execution failures are wrapped (or
// passed through) as *ToolError for uniform downstream handling.
//
// Error semantics:
//
//	*ToolError (returned directly)  -> forwarded unchanged
//	validation failure              -> *ToolError{Code: "VALIDATION_ERROR"}
//	other error                     -> *ToolError{Code: "EXECUTION_ERROR"}
func (t *FunctionTool) Call(ctx context.Context, args map[string]any) (string, error) {
	args = util.ApplyDefaults(args, t.parameters)

	if err := util.ValidateParameters(args, t.parameters); err != nil {
		return "", &ToolError{
			Tool:    t.name,
			Message: fmt.Sprintf("parameter validation failed: %v", err),
			Code:    "VALIDATION_ERROR",
			Details: err,
		}
	}

	result, err := t.fn(ctx, args)
	if err != nil {
		if toolErr, ok := err.(*ToolError); ok { // already a ToolError -> forward
			return "", toolErr
		}
		return "", &ToolError{
			Tool:    t.name,
			Message: err.Error(),
			Code:    "EXECUTION_ERROR",
		}
	}

	return marshalResult(result), nil
}

// marshalResult renders a tool result as the text handed back to the model.
// Strings pass through untouched; everything else is JSON-encoded.
func marshalResult(result any) string {
	switch v := result.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(raw)
	}
}
