package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/hupe1980/agentcrew/core"
)

// Conventional finish reasons. Vendors report their own vocabulary; adapters
// pass it through verbatim, so loop logic must never branch on it — the
// presence or absence of tool calls is the termination signal.
const (
	FinishReasonStop      = "stop"
	FinishReasonToolCalls = "tool_calls"
)

// ToolDefinition declaratively exposes a callable operation to the model.
// Parameters is a JSON Schema object (draft agnostic, minimal subset
// expected). Unified across vendors so downstream logic does not need
// per-provider branching.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Response is the provider's answer to one chat call.
type Response struct {
	ID           string          `json:"id"`
	Content      string          `json:"content"`
	ToolCalls    []core.ToolCall `json:"tool_calls,omitempty"`
	Usage        core.TokenUsage `json:"usage"`
	FinishReason string          `json:"finish_reason"`
}

// Info contains metadata about a provider implementation.
type Info struct {
	Model         string `json:"model"`
	Vendor        string `json:"vendor"` // "openai", "anthropic", "bedrock", etc.
	SupportsTools bool   `json:"supports_tools"`
}

// Provider is the minimal interface agents use to drive generation. Chat must
// be safe to call repeatedly within one execution; a non-nil error is fatal
// to that execution.
type Provider interface {
	Chat(ctx context.Context, turns []core.Turn, tools []ToolDefinition) (*Response, error)

	// Info returns information about the provider implementation.
	Info() Info
}

// RecordedCall captures the exact input of one MockProvider.Chat invocation.
type RecordedCall struct {
	Turns []core.Turn
	Tools []ToolDefinition
}

// MockProvider is a lightweight in‑memory Provider useful for tests &
// examples. Responses are queued as a script and consumed one per call; once
// the script is exhausted the last response keeps repeating, which makes
// "the model keeps asking for tools" scenarios trivial to stage. Every call's
// input is recorded for later inspection.
type MockProvider struct {
	mu      sync.Mutex
	info    Info
	script  []*Response
	pos     int
	failure error
	calls   []RecordedCall
	callSeq int
}

// NewMockProvider constructs a MockProvider with basic tool support enabled.
func NewMockProvider(model string) *MockProvider {
	return &MockProvider{
		info: Info{
			Model:         model,
			Vendor:        "mock",
			SupportsTools: true,
		},
	}
}

// Queue appends a fully specified response to the script.
func (m *MockProvider) Queue(resp *Response) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, resp)
	return m
}

// QueueText appends a plain text response (no tool calls) to the script.
func (m *MockProvider) QueueText(text string) *MockProvider {
	return m.Queue(&Response{Content: text, FinishReason: FinishReasonStop})
}

// QueueToolCall appends a response requesting a single tool call. Arguments
// may be any JSON-marshalable value; the call ID is generated
// deterministically (call_1, call_2, ...).
func (m *MockProvider) QueueToolCall(name string, args any) *MockProvider {
	m.mu.Lock()
	m.callSeq++
	id := fmt.Sprintf("call_%d", m.callSeq)
	m.mu.Unlock()

	raw, err := json.Marshal(args)
	if err != nil {
		raw = []byte("{}")
	}
	return m.Queue(&Response{
		ToolCalls:    []core.ToolCall{{ID: id, Name: name, Arguments: raw}},
		FinishReason: FinishReasonToolCalls,
	})
}

// FailWith makes every subsequent Chat call return err.
func (m *MockProvider) FailWith(err error) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failure = err
	return m
}

// Chat implements Provider; pops the next scripted response and records the
// call input.
func (m *MockProvider) Chat(ctx context.Context, turns []core.Turn, tools []ToolDefinition) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	recorded := RecordedCall{Turns: make([]core.Turn, len(turns)), Tools: make([]ToolDefinition, len(tools))}
	copy(recorded.Turns, turns)
	copy(recorded.Tools, tools)
	m.calls = append(m.calls, recorded)

	if m.failure != nil {
		return nil, m.failure
	}

	if len(m.script) == 0 {
		return &Response{Content: "mock response", FinishReason: FinishReasonStop}, nil
	}

	resp := m.script[m.pos]
	if m.pos < len(m.script)-1 {
		m.pos++
	}
	out := *resp
	return &out, nil
}

// Info implements Provider.
func (m *MockProvider) Info() Info {
	return m.info
}

// Calls returns the recorded inputs of every Chat invocation so far.
func (m *MockProvider) Calls() []RecordedCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]RecordedCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many times Chat was invoked.
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}
