package tool

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sumSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"a": map[string]any{"type": "number"},
			"b": map[string]any{"type": "number"},
		},
		"required": []string{"a", "b"},
	}
}

func TestFunctionTool_Call(t *testing.T) {
	sum := NewFunctionTool("calculate_sum", "Adds two numbers", sumSchema(),
		func(ctx context.Context, args map[string]any) (any, error) {
			return args["a"].(float64) + args["b"].(float64), nil
		})

	assert.Equal(t, "calculate_sum", sum.Name())
	assert.Equal(t, "Adds two numbers", sum.Description())

	out, err := sum.Call(context.Background(), map[string]any{"a": 2.0, "b": 3.0})
	require.NoError(t, err)
	assert.Equal(t, "5", out)
}

func TestFunctionTool_ValidationError(t *testing.T) {
	sum := NewFunctionTool("calculate_sum", "Adds two numbers", sumSchema(),
		func(ctx context.Context, args map[string]any) (any, error) {
			t.Fatal("fn must not run on invalid args")
			return nil, nil
		})

	_, err := sum.Call(context.Background(), map[string]any{"a": 2.0})
	require.Error(t, err)

	var toolErr *ToolError
	require.True(t, errors.As(err, &toolErr))
	assert.Equal(t, "VALIDATION_ERROR", toolErr.Code)
	assert.Equal(t, "calculate_sum", toolErr.Tool)
}

func TestFunctionTool_ExecutionError(t *testing.T) {
	failing := NewFunctionTool("flaky", "Always fails", map[string]any{"type": "object"},
		func(ctx context.Context, args map[string]any) (any, error) {
			return nil, errors.New("backend unavailable")
		})

	_, err := failing.Call(context.Background(), map[string]any{})
	require.Error(t, err)

	var toolErr *ToolError
	require.True(t, errors.As(err, &toolErr))
	assert.Equal(t, "EXECUTION_ERROR", toolErr.Code)
	assert.Contains(t, toolErr.Message, "backend unavailable")
}

func TestFunctionTool_PreservesCustomToolError(t *testing.T) {
	custom := NewFunctionTool("quota", "Quota checked", map[string]any{"type": "object"},
		func(ctx context.Context, args map[string]any) (any, error) {
			return nil, NewToolError("quota", "limit exceeded", "QUOTA_EXCEEDED")
		})

	_, err := custom.Call(context.Background(), map[string]any{})
	var toolErr *ToolError
	require.True(t, errors.As(err, &toolErr))
	assert.Equal(t, "QUOTA_EXCEEDED", toolErr.Code)
}

func TestFunctionTool_StringResultPassesThrough(t *testing.T) {
	echo := NewFunctionTool("echo", "Echoes input", map[string]any{"type": "object"},
		func(ctx context.Context, args map[string]any) (any, error) {
			return "plain text", nil
		})

	out, err := echo.Call(context.Background(), map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "plain text", out)
}

func TestFunctionTool_StructResultIsJSON(t *testing.T) {
	report := NewFunctionTool("report", "Returns a report", map[string]any{"type": "object"},
		func(ctx context.Context, args map[string]any) (any, error) {
			return map[string]any{"status": "ok"}, nil
		})

	out, err := report.Call(context.Background(), map[string]any{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"ok"}`, out)
}

func TestNewFunctionToolFromStruct_SchemaReflection(t *testing.T) {
	type SumArgs struct {
		A float64 `json:"a" description:"First addend"`
		B float64 `json:"b" description:"Second addend"`
	}

	sum := NewFunctionToolFromStruct("calculate_sum", "Adds two numbers", SumArgs{},
		func(ctx context.Context, args map[string]any) (any, error) {
			return args["a"].(float64) + args["b"].(float64), nil
		})

	schema := sum.Parameters()
	assert.Equal(t, "object", schema["type"])
	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "a")
	assert.Contains(t, props, "b")
	assert.ElementsMatch(t, []string{"a", "b"}, schema["required"])
}

func TestRegistry_LookupAndOrder(t *testing.T) {
	a := NewFunctionTool("alpha", "", map[string]any{"type": "object"}, nil)
	b := NewFunctionTool("beta", "", map[string]any{"type": "object"}, nil)

	r := NewRegistry(a, b)
	assert.Equal(t, 2, r.Len())
	assert.Equal(t, []string{"alpha", "beta"}, r.Names())

	got, ok := r.Lookup("beta")
	require.True(t, ok)
	assert.Equal(t, "beta", got.Name())

	_, ok = r.Lookup("gamma")
	assert.False(t, ok)
}

func TestRegistry_RegisterReplacesByName(t *testing.T) {
	r := NewRegistry(NewFunctionTool("alpha", "v1", map[string]any{"type": "object"}, nil))
	r.Register(NewFunctionTool("alpha", "v2", map[string]any{"type": "object"}, nil))

	assert.Equal(t, 1, r.Len())
	got, _ := r.Lookup("alpha")
	assert.Equal(t, "v2", got.Description())
}
