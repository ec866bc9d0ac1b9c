package core

import "encoding/json"

// Role attributes a turn to one of the four conversation participants.
type Role string

// Conversation roles. Turn 0 of every conversation is RoleSystem; assistant
// turns may carry tool calls; tool turns answer exactly one of them.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is an assistant-authored request to invoke a named tool or worker.
// ID is unique within the owning assistant turn and correlates the eventual
// tool turn back to this request. Unified across vendors so downstream logic
// does not need per-provider branching.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Turn is one message in a conversation. Turns are append-only within one
// execution; assistant turns carry the raw tool calls they requested (for
// audit and replay) and tool turns carry the ToolCallID they answer.
type Turn struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// NewSystemTurn builds the system-instruction turn that opens a conversation.
func NewSystemTurn(content string) Turn {
	return Turn{Role: RoleSystem, Content: content}
}

// NewUserTurn builds a user turn.
func NewUserTurn(content string) Turn {
	return Turn{Role: RoleUser, Content: content}
}

// NewAssistantTurn builds an assistant turn carrying the provider's text and
// any tool calls it requested.
func NewAssistantTurn(content string, calls []ToolCall) Turn {
	return Turn{Role: RoleAssistant, Content: content, ToolCalls: calls}
}

// NewToolTurn builds a tool turn answering the request with the given ID.
func NewToolTurn(toolCallID, content string) Turn {
	return Turn{Role: RoleTool, Content: content, ToolCallID: toolCallID}
}
