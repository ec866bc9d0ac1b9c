package core

import (
	"time"

	"github.com/google/uuid"
)

// AgentKind distinguishes the two agent roles a conversation can belong to.
type AgentKind string

// Conversation owners.
const (
	KindManager AgentKind = "manager"
	KindWorker  AgentKind = "worker"
)

// Metadata keys conventionally set on conversations by agents. Stores treat
// metadata as opaque; these exist so integrators can query and inspect runs
// without guessing key spellings.
const (
	MetaSessionID  = "session_id"
	MetaProvider   = "provider"
	MetaModel      = "model"
	MetaCeiling    = "iteration_ceiling"
	MetaTools      = "tools"
	MetaWindowSize = "window_size"
)

// Conversation is the ordered turn sequence produced by one agent. It is
// instantiated at the start of an execution, mutated turn-by-turn strictly
// within that execution, and persisted exactly once at loop exit.
//
// Contract:
//   - Turn 0 is always the system instruction.
//   - Every tool turn's ToolCallID matches a call emitted by the immediately
//     preceding (or a still-outstanding) assistant turn.
//   - The struct is not safe for concurrent use; one execution owns it
//     exclusively. A worker running in continuity mode shares its
//     conversation across invocations and callers must serialize them.
type Conversation struct {
	ID        string         `json:"id"`
	AgentKind AgentKind      `json:"agent_kind"`
	AgentName string         `json:"agent_name"`
	Turns     []Turn         `json:"turns"`
	Created   time.Time      `json:"created"`
	Updated   time.Time      `json:"updated"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// NewConversation creates an empty conversation owned by the given agent,
// with a generated ID and creation timestamps set to now.
func NewConversation(kind AgentKind, agentName string) *Conversation {
	now := time.Now()
	return &Conversation{
		ID:        uuid.NewString(),
		AgentKind: kind,
		AgentName: agentName,
		Turns:     []Turn{},
		Created:   now,
		Updated:   now,
		Metadata:  map[string]any{},
	}
}

// Append adds a turn to the sequence and advances the Updated timestamp.
func (c *Conversation) Append(t Turn) {
	c.Turns = append(c.Turns, t)
	c.Updated = time.Now()
}

// Window builds the turn sequence actually transmitted to a provider,
// distinct from the retained sequence: turn 0 (the system instruction) is
// always kept, and if the full sequence is longer than w, only the most
// recent w-1 turns after it are included. The retained sequence is never
// truncated. A window of zero or less disables trimming.
func (c *Conversation) Window(w int) []Turn {
	if w <= 0 || len(c.Turns) <= w {
		out := make([]Turn, len(c.Turns))
		copy(out, c.Turns)
		return out
	}
	out := make([]Turn, 0, w)
	out = append(out, c.Turns[0])
	out = append(out, c.Turns[len(c.Turns)-(w-1):]...)
	return out
}

// Clone returns a deep copy of the conversation safe for independent
// mutation; stores use it to decouple persisted state from the caller.
func (c *Conversation) Clone() *Conversation {
	clone := &Conversation{
		ID:        c.ID,
		AgentKind: c.AgentKind,
		AgentName: c.AgentName,
		Turns:     make([]Turn, len(c.Turns)),
		Created:   c.Created,
		Updated:   c.Updated,
		Metadata:  make(map[string]any, len(c.Metadata)),
	}
	for i, t := range c.Turns {
		ct := t
		if len(t.ToolCalls) > 0 {
			ct.ToolCalls = make([]ToolCall, len(t.ToolCalls))
			copy(ct.ToolCalls, t.ToolCalls)
		}
		clone.Turns[i] = ct
	}
	for k, v := range c.Metadata {
		clone.Metadata[k] = v
	}
	return clone
}
