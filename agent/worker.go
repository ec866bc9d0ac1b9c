package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/hupe1980/agentcrew/core"
	"github.com/hupe1980/agentcrew/internal/util"
	"github.com/hupe1980/agentcrew/logging"
	"github.com/hupe1980/agentcrew/provider"
	"github.com/hupe1980/agentcrew/tool"
)

// DefaultWorkerIterationCeiling bounds a worker's loop when no explicit
// ceiling is configured.
const DefaultWorkerIterationCeiling = 25

// DefaultWindowSize bounds the transmitted turn sequence when no explicit
// window is configured.
const DefaultWindowSize = 50

// WorkerOptions configures a Worker instance.
//
// Use functional options with NewWorker to override defaults.
type WorkerOptions struct {
	// Instruction is the system prompt; turn 0 of every conversation. May
	// contain {{.Var}} template markers resolved against InstructionVars.
	Instruction string
	// InstructionVars are substituted into Instruction at construction time.
	InstructionVars map[string]any
	// Description is shown to the manager's model when the worker is exposed
	// as a delegation target.
	Description string
	// Tools the worker may invoke.
	Tools []tool.Tool
	// IterationCeiling caps loop rounds (default DefaultWorkerIterationCeiling).
	IterationCeiling int
	// WindowSize caps the transmitted turn sequence (default DefaultWindowSize);
	// zero or negative disables trimming.
	WindowSize int
	// Continuity retains the conversation across separate invocations,
	// giving the worker cross-call memory. See Worker.Invoke for the
	// serialization contract this imposes.
	Continuity bool
	// Store receives the finished conversation of every invocation. Nil
	// skips persistence.
	Store core.ConversationStore
	// Logger defaults to logging.NoOpLogger.
	Logger logging.Logger
	// SessionID keys persisted conversations back to an orchestrator run.
	SessionID string
}

// Worker is a delegate agent: one provider binding, one tool registry, and
// the bounded execution loop that connects them. Workers are invoked either
// directly (Invoke) or by a Manager that exposes them as synthetic tools.
type Worker struct {
	name        string
	description string
	instruction string
	provider    provider.Provider
	tools       *tool.Registry
	ceiling     int
	window      int
	continuity  bool
	store       core.ConversationStore
	logger      logging.Logger
	sessionID   string

	// conv is the retained conversation in continuity mode; nil until the
	// first invocation and always nil when continuity is off.
	conv *core.Conversation
}

// NewWorker creates a worker with sensible defaults: a generic system
// instruction, a 25-round ceiling, a 50-turn transmission window, fresh
// conversation state per invocation and no persistence.
func NewWorker(name string, p provider.Provider, optFns ...func(o *WorkerOptions)) *Worker {
	opts := WorkerOptions{
		Instruction:      fmt.Sprintf("You are %s, a specialized worker agent. Use your tools to complete the task you are given, then answer with the result.", name),
		Description:      fmt.Sprintf("Specialized worker agent %q", name),
		IterationCeiling: DefaultWorkerIterationCeiling,
		WindowSize:       DefaultWindowSize,
		Logger:           logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	instruction := opts.Instruction
	if len(opts.InstructionVars) > 0 {
		if rendered, err := util.RenderTemplate(instruction, opts.InstructionVars); err == nil {
			instruction = rendered
		} else {
			opts.Logger.Warn("instruction template rendering failed", "agent", name, "error", err.Error())
		}
	}

	return &Worker{
		name:        name,
		description: opts.Description,
		instruction: instruction,
		provider:    p,
		tools:       tool.NewRegistry(opts.Tools...),
		ceiling:     opts.IterationCeiling,
		window:      opts.WindowSize,
		continuity:  opts.Continuity,
		store:       opts.Store,
		logger:      opts.Logger,
		sessionID:   opts.SessionID,
	}
}

// Name returns the worker's unique name; a manager uses it as the synthetic
// tool name for delegation.
func (w *Worker) Name() string { return w.name }

// Description returns the delegation-facing description shown to the
// manager's model.
func (w *Worker) Description() string { return w.description }

// Continuity reports whether the worker retains its conversation across
// invocations.
func (w *Worker) Continuity() bool { return w.continuity }

// AttachServices fills in the store, logger and session identifier for a
// worker that was not explicitly configured with them. Called by the
// orchestrator at registration; explicit per-worker configuration wins.
func (w *Worker) AttachServices(store core.ConversationStore, logger logging.Logger, sessionID string) {
	if w.store == nil {
		w.store = store
	}
	if _, isNoOp := w.logger.(logging.NoOpLogger); isNoOp && logger != nil {
		w.logger = logger
	}
	if w.sessionID == "" {
		w.sessionID = sessionID
	}
}

// Reset drops the retained conversation of a continuity worker. The next
// invocation starts from a fresh system turn. No-op when continuity is off.
func (w *Worker) Reset() { w.conv = nil }

// Invoke runs the worker's bounded loop against a raw argument payload,
// seeded with a single user turn built from the payload's key/value pairs.
//
// In continuity mode the conversation carries over from previous
// invocations; it is instance-mutable state, so concurrent invocations of
// the same worker race on it and callers must serialize them. With
// continuity off every invocation starts fresh and the worker holds no
// state between calls.
//
// The finished conversation is persisted exactly once at loop exit — on
// success, ceiling exhaustion or error alike.
func (w *Worker) Invoke(ctx context.Context, payload map[string]any) core.ExecutionResult {
	conv := w.conv
	if conv == nil {
		conv = w.newConversation()
	}
	conv.Append(core.NewUserTurn(renderPayload(payload)))

	if w.continuity {
		w.conv = conv
	}

	w.logger.Debug("worker invoked", "agent", w.name, "continuity", w.continuity)

	result := runLoop(ctx, conv, loopConfig{
		provider: w.provider,
		tools:    w.definitions(),
		ceiling:  w.ceiling,
		window:   w.window,
		dispatch: w.dispatch,
		logger:   w.logger,
		agent:    w.name,
	})

	persist(ctx, w.store, w.logger, conv)

	return result
}

// newConversation seeds a fresh conversation with the system instruction and
// the worker's run metadata.
func (w *Worker) newConversation() *core.Conversation {
	conv := core.NewConversation(core.KindWorker, w.name)
	conv.Append(core.NewSystemTurn(w.instruction))

	info := w.provider.Info()
	conv.Metadata[core.MetaProvider] = info.Vendor
	conv.Metadata[core.MetaModel] = info.Model
	conv.Metadata[core.MetaCeiling] = w.ceiling
	conv.Metadata[core.MetaWindowSize] = w.window
	conv.Metadata[core.MetaTools] = w.tools.Names()
	if w.sessionID != "" {
		conv.Metadata[core.MetaSessionID] = w.sessionID
	}

	return conv
}

// definitions exposes the registry's tools to the provider.
func (w *Worker) definitions() []provider.ToolDefinition {
	tools := w.tools.Tools()
	defs := make([]provider.ToolDefinition, len(tools))
	for i, t := range tools {
		defs[i] = provider.ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		}
	}
	return defs
}

// dispatch resolves one tool call against the registry. A registered tool
// failing is recovered into error text the model can react to; a missing
// implementation is an integration defect and aborts the execution.
func (w *Worker) dispatch(ctx context.Context, call core.ToolCall) (string, core.TokenUsage, error) {
	t, ok := w.tools.Lookup(call.Name)
	if !ok {
		return "", core.TokenUsage{}, &core.MissingToolError{Agent: w.name, Tool: call.Name}
	}

	out, err := w.callTool(ctx, t, call)
	if err != nil {
		w.logger.Warn("tool execution failed", "agent", w.name, "tool", call.Name, "error", err.Error())
		return fmt.Sprintf("Error executing tool %q: %s", call.Name, err.Error()), core.TokenUsage{}, nil
	}

	return out, core.TokenUsage{}, nil
}

// callTool parses the call's arguments and runs the implementation under a
// failure guard: a panicking tool is converted into an error instead of
// tearing down the execution.
func (w *Worker) callTool(ctx context.Context, t tool.Tool, call core.ToolCall) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tool panicked: %v", r)
		}
	}()

	args := map[string]any{}
	if len(call.Arguments) > 0 {
		if uerr := json.Unmarshal(call.Arguments, &args); uerr != nil {
			return "", fmt.Errorf("invalid arguments: %w", uerr)
		}
	}

	return t.Call(ctx, args)
}

// renderPayload builds the opening user turn of a direct invocation from the
// payload's key/value pairs. Keys are sorted for a deterministic prompt;
// non-string values are JSON-encoded.
func renderPayload(payload map[string]any) string {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		v := payload[k]
		switch val := v.(type) {
		case string:
			fmt.Fprintf(&b, "%s: %s\n", k, val)
		default:
			raw, err := json.Marshal(val)
			if err != nil {
				fmt.Fprintf(&b, "%s: %v\n", k, val)
				continue
			}
			fmt.Fprintf(&b, "%s: %s\n", k, raw)
		}
	}

	return strings.TrimRight(b.String(), "\n")
}
