package agent

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentcrew/core"
	"github.com/hupe1980/agentcrew/internal/testutil"
	"github.com/hupe1980/agentcrew/provider"
	"github.com/hupe1980/agentcrew/tool"
)

// echoTool returns its "text" argument, or fails when failWith is set.
func echoTool(name string, failWith error) tool.Tool {
	return tool.NewFunctionTool(name, "Echoes the text argument",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"text": map[string]any{"type": "string"},
			},
		},
		func(ctx context.Context, args map[string]any) (any, error) {
			if failWith != nil {
				return nil, failWith
			}
			text, _ := args["text"].(string)
			return "echo: " + text, nil
		})
}

func TestWorker_FirstResponseWithoutToolCalls(t *testing.T) {
	mock := provider.NewMockProvider("test-model")
	mock.QueueText("all done")

	w := NewWorker("researcher", mock)
	result := w.Invoke(context.Background(), map[string]any{"task": "summarize"})

	require.True(t, result.Success)
	assert.Equal(t, "all done", result.Content)
	assert.Equal(t, 1, result.Iterations)
	assert.Equal(t, 1, mock.CallCount())
}

func TestWorker_ToolCallRoundTrip(t *testing.T) {
	mock := provider.NewMockProvider("test-model")
	mock.QueueToolCall("echo", map[string]any{"text": "hi"})
	mock.QueueText("finished")

	store := testutil.NewRecordingStore()
	w := NewWorker("researcher", mock, func(o *WorkerOptions) {
		o.Tools = []tool.Tool{echoTool("echo", nil)}
		o.Store = store
	})

	result := w.Invoke(context.Background(), map[string]any{"task": "say hi"})

	require.True(t, result.Success)
	assert.Equal(t, "finished", result.Content)
	assert.Equal(t, 2, result.Iterations)

	conv := store.Last()
	require.NotNil(t, conv)
	// system, user, assistant(tool call), tool, assistant
	require.Len(t, conv.Turns, 5)
	assert.Equal(t, core.RoleSystem, conv.Turns[0].Role)
	assert.Equal(t, core.RoleAssistant, conv.Turns[2].Role)
	require.Len(t, conv.Turns[2].ToolCalls, 1)
	assert.Equal(t, core.RoleTool, conv.Turns[3].Role)
	assert.Equal(t, conv.Turns[2].ToolCalls[0].ID, conv.Turns[3].ToolCallID)
	assert.Equal(t, "echo: hi", conv.Turns[3].Content)
}

func TestWorker_MissingToolIsFatal(t *testing.T) {
	mock := provider.NewMockProvider("test-model")
	mock.QueueToolCall("web_search", map[string]any{"query": "go"})
	mock.QueueText("never reached")

	store := testutil.NewRecordingStore()
	w := NewWorker("researcher", mock, func(o *WorkerOptions) {
		o.Store = store
	})

	result := w.Invoke(context.Background(), map[string]any{"task": "search"})

	require.False(t, result.Success)
	assert.Contains(t, result.Error, "web_search")
	assert.Empty(t, result.Content)
	assert.Equal(t, 1, mock.CallCount(), "execution must abort immediately")

	// The conversation is persisted even on a fatal error.
	conv := store.Last()
	require.NotNil(t, conv)
	assert.Equal(t, core.RoleSystem, conv.Turns[0].Role)
}

func TestWorker_ToolRuntimeErrorRecovered(t *testing.T) {
	mock := provider.NewMockProvider("test-model")
	mock.QueueToolCall("echo", map[string]any{"text": "hi"})
	mock.QueueText("recovered")

	store := testutil.NewRecordingStore()
	w := NewWorker("researcher", mock, func(o *WorkerOptions) {
		o.Tools = []tool.Tool{echoTool("echo", errors.New("rate limited"))}
		o.Store = store
	})

	result := w.Invoke(context.Background(), map[string]any{"task": "say hi"})

	require.True(t, result.Success, "a registered tool failing is not fatal")
	assert.Equal(t, "recovered", result.Content)

	conv := store.Last()
	require.NotNil(t, conv)
	toolTurn := conv.Turns[3]
	assert.Equal(t, core.RoleTool, toolTurn.Role)
	assert.Contains(t, toolTurn.Content, `Error executing tool "echo"`)
	assert.Contains(t, toolTurn.Content, "rate limited")
}

func TestWorker_PanickingToolRecovered(t *testing.T) {
	mock := provider.NewMockProvider("test-model")
	mock.QueueToolCall("boom", nil)
	mock.QueueText("still standing")

	panicking := tool.NewFunctionTool("boom", "Panics", map[string]any{"type": "object"},
		func(ctx context.Context, args map[string]any) (any, error) {
			panic("kaboom")
		})

	w := NewWorker("researcher", mock, func(o *WorkerOptions) {
		o.Tools = []tool.Tool{panicking}
	})

	result := w.Invoke(context.Background(), map[string]any{"task": "explode"})
	require.True(t, result.Success)
	assert.Equal(t, "still standing", result.Content)
}

func TestWorker_CeilingReached(t *testing.T) {
	mock := provider.NewMockProvider("test-model")
	mock.QueueToolCall("echo", map[string]any{"text": "again"})

	w := NewWorker("researcher", mock, func(o *WorkerOptions) {
		o.Tools = []tool.Tool{echoTool("echo", nil)}
		o.IterationCeiling = 1
	})

	result := w.Invoke(context.Background(), map[string]any{"task": "loop"})

	require.True(t, result.Success, "ceiling exhaustion is a graceful partial success")
	assert.Equal(t, MaxIterationsMessage, result.Content)
	assert.Equal(t, 1, result.Iterations)
	assert.Equal(t, 1, mock.CallCount())
}

func TestWorker_UsageAggregation(t *testing.T) {
	mock := provider.NewMockProvider("test-model")
	mock.Queue(&provider.Response{
		ToolCalls:    []core.ToolCall{{ID: "call_1", Name: "echo", Arguments: []byte(`{"text":"a"}`)}},
		Usage:        core.TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
		FinishReason: provider.FinishReasonToolCalls,
	})
	mock.Queue(&provider.Response{
		Content:      "done",
		Usage:        core.TokenUsage{PromptTokens: 20, CompletionTokens: 7, TotalTokens: 27},
		FinishReason: provider.FinishReasonStop,
	})

	w := NewWorker("researcher", mock, func(o *WorkerOptions) {
		o.Tools = []tool.Tool{echoTool("echo", nil)}
	})

	result := w.Invoke(context.Background(), map[string]any{"task": "count"})

	require.True(t, result.Success)
	assert.Equal(t, 30, result.Usage.PromptTokens)
	assert.Equal(t, 12, result.Usage.CompletionTokens)
	assert.Equal(t, 42, result.Usage.TotalTokens)
}

func TestWorker_ProviderFailureIsFatalAndPersisted(t *testing.T) {
	mock := provider.NewMockProvider("test-model")
	mock.FailWith(errors.New("backend down"))

	store := testutil.NewRecordingStore()
	w := NewWorker("researcher", mock, func(o *WorkerOptions) {
		o.Store = store
	})

	result := w.Invoke(context.Background(), map[string]any{"task": "anything"})

	require.False(t, result.Success)
	assert.Contains(t, result.Error, "backend down")
	assert.Empty(t, result.Content)

	conv := store.Last()
	require.NotNil(t, conv)
	assert.Equal(t, core.RoleSystem, conv.Turns[0].Role)
	assert.Equal(t, core.KindWorker, conv.AgentKind)
}

func TestWorker_PersistenceFailureIsSwallowed(t *testing.T) {
	mock := provider.NewMockProvider("test-model")
	mock.QueueText("fine")

	store := testutil.NewRecordingStore().FailWith(errors.New("disk full"))
	w := NewWorker("researcher", mock, func(o *WorkerOptions) {
		o.Store = store
	})

	result := w.Invoke(context.Background(), map[string]any{"task": "anything"})
	require.True(t, result.Success, "store failures never change the execution outcome")
	assert.Empty(t, result.Error)
}

func TestWorker_FreshPerCallByDefault(t *testing.T) {
	mock := provider.NewMockProvider("test-model")
	mock.QueueText("first")
	mock.QueueText("second")

	w := NewWorker("researcher", mock)

	w.Invoke(context.Background(), map[string]any{"task": "one"})
	w.Invoke(context.Background(), map[string]any{"task": "two"})

	calls := mock.Calls()
	require.Len(t, calls, 2)
	// The second invocation starts fresh: system turn + its own user turn only.
	require.Len(t, calls[1].Turns, 2)
	assert.Equal(t, core.RoleSystem, calls[1].Turns[0].Role)
	assert.Equal(t, "task: two", calls[1].Turns[1].Content)
}

func TestWorker_ContinuityRetainsHistory(t *testing.T) {
	mock := provider.NewMockProvider("test-model")
	mock.QueueText("first answer")
	mock.QueueText("second answer")

	w := NewWorker("researcher", mock, func(o *WorkerOptions) {
		o.Continuity = true
		o.WindowSize = 10
	})

	w.Invoke(context.Background(), map[string]any{"task": "one"})
	w.Invoke(context.Background(), map[string]any{"task": "two"})

	calls := mock.Calls()
	require.Len(t, calls, 2)

	// Second transmission includes the first invocation's turns, bounded by
	// the window: system, user(one), assistant(first answer), user(two).
	second := calls[1].Turns
	require.Len(t, second, 4)
	assert.Equal(t, "task: one", second[1].Content)
	assert.Equal(t, "first answer", second[2].Content)
	assert.Equal(t, "task: two", second[3].Content)
	assert.LessOrEqual(t, len(second), 10)
}

func TestWorker_ContinuityWindowBoundsTransmission(t *testing.T) {
	mock := provider.NewMockProvider("test-model")
	for i := 0; i < 4; i++ {
		mock.QueueText(fmt.Sprintf("answer %d", i+1))
	}

	w := NewWorker("researcher", mock, func(o *WorkerOptions) {
		o.Continuity = true
		o.WindowSize = 3
	})

	for i := 0; i < 4; i++ {
		w.Invoke(context.Background(), map[string]any{"task": fmt.Sprintf("q%d", i+1)})
	}

	calls := mock.Calls()
	last := calls[3].Turns
	require.Len(t, last, 3, "transmitted view must be trimmed to the window")
	assert.Equal(t, core.RoleSystem, last[0].Role, "turn 0 survives trimming")
	assert.Equal(t, "task: q4", last[2].Content)
}

func TestWorker_ContinuityResetStartsFresh(t *testing.T) {
	mock := provider.NewMockProvider("test-model")
	mock.QueueText("first")
	mock.QueueText("second")

	w := NewWorker("researcher", mock, func(o *WorkerOptions) {
		o.Continuity = true
	})

	w.Invoke(context.Background(), map[string]any{"task": "one"})
	w.Reset()
	w.Invoke(context.Background(), map[string]any{"task": "two"})

	calls := mock.Calls()
	require.Len(t, calls[1].Turns, 2, "reset drops the retained history")
}

func TestWorker_ConversationMetadata(t *testing.T) {
	mock := provider.NewMockProvider("test-model")
	mock.QueueText("ok")

	store := testutil.NewRecordingStore()
	w := NewWorker("researcher", mock, func(o *WorkerOptions) {
		o.Tools = []tool.Tool{echoTool("echo", nil)}
		o.Store = store
		o.SessionID = "sess-1"
	})

	w.Invoke(context.Background(), map[string]any{"task": "anything"})

	conv := store.Last()
	require.NotNil(t, conv)
	assert.Equal(t, "mock", conv.Metadata[core.MetaProvider])
	assert.Equal(t, "test-model", conv.Metadata[core.MetaModel])
	assert.Equal(t, DefaultWorkerIterationCeiling, conv.Metadata[core.MetaCeiling])
	assert.Equal(t, []string{"echo"}, conv.Metadata[core.MetaTools])
	assert.Equal(t, "sess-1", conv.Metadata[core.MetaSessionID])
}

func TestRenderPayload_SortedKeys(t *testing.T) {
	out := renderPayload(map[string]any{
		"task":     "write a report",
		"priority": "high",
		"metadata": map[string]any{"team": "research"},
	})

	assert.Equal(t, "metadata: {\"team\":\"research\"}\npriority: high\ntask: write a report", out)
}

func TestWorker_InstructionTemplate(t *testing.T) {
	mock := provider.NewMockProvider("test-model")
	mock.QueueText("ok")

	store := testutil.NewRecordingStore()
	w := NewWorker("researcher", mock, func(o *WorkerOptions) {
		o.Instruction = "You are a {{.specialty}} expert."
		o.InstructionVars = map[string]any{"specialty": "database"}
		o.Store = store
	})

	w.Invoke(context.Background(), map[string]any{"task": "anything"})

	conv := store.Last()
	require.NotNil(t, conv)
	assert.Equal(t, "You are a database expert.", conv.Turns[0].Content)
}
