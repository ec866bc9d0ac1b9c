package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hupe1980/agentcrew/core"
	"github.com/hupe1980/agentcrew/internal/util"
	"github.com/hupe1980/agentcrew/logging"
	"github.com/hupe1980/agentcrew/provider"
)

// DefaultManagerIterationCeiling bounds a manager's loop when no explicit
// ceiling is configured.
const DefaultManagerIterationCeiling = 20

// DefaultManagerName is used when no explicit name is configured.
const DefaultManagerName = "manager"

// ManagerOptions configures a Manager instance.
//
// Use functional options with NewManager to override defaults.
type ManagerOptions struct {
	// Name identifies the manager; persisted conversations are keyed by it.
	Name string
	// Instruction is the system prompt; turn 0 of every conversation. May
	// contain {{.Var}} template markers resolved against InstructionVars.
	Instruction string
	// InstructionVars are substituted into Instruction at construction time.
	InstructionVars map[string]any
	// IterationCeiling caps loop rounds (default DefaultManagerIterationCeiling).
	IterationCeiling int
	// WindowSize caps the transmitted turn sequence (default DefaultWindowSize);
	// zero or negative disables trimming.
	WindowSize int
	// RestrictedWorkers lists worker names the model must not delegate to.
	// Restricted workers are neither advertised to the model nor dispatched.
	RestrictedWorkers []string
	// Store receives the finished conversation of every execution. Nil
	// skips persistence.
	Store core.ConversationStore
	// Logger defaults to logging.NoOpLogger.
	Logger logging.Logger
	// SessionID keys persisted conversations back to an orchestrator run.
	SessionID string
}

// Manager is the coordinating agent: it runs the same bounded loop as a
// Worker, but its dispatch table is the set of registered workers, each
// exposed to the model as a synthetic tool with the fixed delegation schema
// (task, context, metadata, priority).
//
// Delegation failures are never fatal. An unknown or restricted worker name
// and a failing worker alike become error text in the tool turn, leaving the
// model free to route the work elsewhere on the next round.
type Manager struct {
	name        string
	instruction string
	provider    provider.Provider
	workers     map[string]*Worker
	order       []string
	restricted  map[string]struct{}
	ceiling     int
	window      int
	store       core.ConversationStore
	logger      logging.Logger
	sessionID   string
}

// NewManager creates a manager with sensible defaults: a generic
// coordination instruction, a 20-round ceiling, a 50-turn transmission
// window, no restricted workers and no persistence.
func NewManager(p provider.Provider, optFns ...func(o *ManagerOptions)) *Manager {
	opts := ManagerOptions{
		Name:             DefaultManagerName,
		Instruction:      "You are the manager agent. Decompose the task into subtasks and delegate them to your workers using the available tools. When the work is done, answer with the final result.",
		IterationCeiling: DefaultManagerIterationCeiling,
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
			opts.Logger.Warn("instruction template rendering failed", "agent", opts.Name, "error", err.Error())
		}
	}

	restricted := make(map[string]struct{}, len(opts.RestrictedWorkers))
	for _, name := range opts.RestrictedWorkers {
		restricted[name] = struct{}{}
	}

	return &Manager{
		name:        opts.Name,
		instruction: instruction,
		provider:    p,
		workers:     map[string]*Worker{},
		restricted:  restricted,
		ceiling:     opts.IterationCeiling,
		window:      opts.WindowSize,
		store:       opts.Store,
		logger:      opts.Logger,
		sessionID:   opts.SessionID,
	}
}

// Name returns the manager's name.
func (m *Manager) Name() string { return m.name }

// AttachServices fills in the store, logger and session identifier for a
// manager that was not explicitly configured with them. Called by the
// orchestrator at construction; explicit configuration wins.
func (m *Manager) AttachServices(store core.ConversationStore, logger logging.Logger, sessionID string) {
	if m.store == nil {
		m.store = store
	}
	if _, isNoOp := m.logger.(logging.NoOpLogger); isNoOp && logger != nil {
		m.logger = logger
	}
	if m.sessionID == "" {
		m.sessionID = sessionID
	}
}

// RegisterWorker adds a worker as a delegation target, replacing any
// previously registered worker with the same name.
func (m *Manager) RegisterWorker(w *Worker) {
	if _, exists := m.workers[w.Name()]; !exists {
		m.order = append(m.order, w.Name())
	}
	m.workers[w.Name()] = w
}

// Worker resolves a registered worker by name. The restricted list does not
// apply here; it only governs in-loop delegation.
func (m *Manager) Worker(name string) (*Worker, bool) {
	w, ok := m.workers[name]
	return w, ok
}

// WorkerNames returns the registered worker names in registration order.
func (m *Manager) WorkerNames() []string {
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// ExecuteTask runs the manager's bounded loop for one task. The task is
// rendered into the opening user turn; the model then delegates to workers
// round by round until it answers without tool calls, the ceiling is
// reached, or the provider fails. Worker usage is folded into the returned
// result's counters. The finished conversation is persisted exactly once at
// loop exit.
func (m *Manager) ExecuteTask(ctx context.Context, task core.Task) core.ExecutionResult {
	conv := core.NewConversation(core.KindManager, m.name)
	conv.Append(core.NewSystemTurn(m.instruction))
	conv.Append(core.NewUserTurn(renderTask(task)))

	info := m.provider.Info()
	conv.Metadata[core.MetaProvider] = info.Vendor
	conv.Metadata[core.MetaModel] = info.Model
	conv.Metadata[core.MetaCeiling] = m.ceiling
	conv.Metadata[core.MetaWindowSize] = m.window
	conv.Metadata[core.MetaTools] = m.delegatableNames()
	if m.sessionID != "" {
		conv.Metadata[core.MetaSessionID] = m.sessionID
	}

	m.logger.Info("task execution started", "agent", m.name, "task", task.Title)

	result := runLoop(ctx, conv, loopConfig{
		provider: m.provider,
		tools:    m.definitions(),
		ceiling:  m.ceiling,
		window:   m.window,
		dispatch: m.dispatch,
		logger:   m.logger,
		agent:    m.name,
	})

	persist(ctx, m.store, m.logger, conv)

	return result
}

// delegatableNames returns the registered, non-restricted worker names in
// registration order.
func (m *Manager) delegatableNames() []string {
	out := make([]string, 0, len(m.order))
	for _, name := range m.order {
		if _, denied := m.restricted[name]; denied {
			continue
		}
		out = append(out, name)
	}
	return out
}

// definitions exposes every delegatable worker as a synthetic tool carrying
// the fixed delegation schema.
func (m *Manager) definitions() []provider.ToolDefinition {
	names := m.delegatableNames()
	defs := make([]provider.ToolDefinition, len(names))
	for i, name := range names {
		defs[i] = delegationDefinition(m.workers[name])
	}
	return defs
}

// dispatch routes one tool call to the named worker. Unknown and restricted
// names, like failing workers, are rendered into error text; delegation
// never aborts the manager's loop.
func (m *Manager) dispatch(ctx context.Context, call core.ToolCall) (string, core.TokenUsage, error) {
	w, ok := m.workers[call.Name]
	if _, denied := m.restricted[call.Name]; denied {
		ok = false
	}
	if !ok {
		m.logger.Warn("delegation target unavailable", "agent", m.name, "worker", call.Name)
		delErr := &core.DelegationError{Worker: call.Name}
		return "Error: " + delErr.Error(), core.TokenUsage{}, nil
	}

	m.logger.Debug("delegating to worker", "agent", m.name, "worker", call.Name)

	result := w.Invoke(ctx, parseDelegationPayload(call.Arguments))
	if !result.Success {
		return "Error: " + result.Error, result.Usage, nil
	}

	return result.Content, result.Usage, nil
}

// delegationDefinition builds the fixed manager-facing schema for a worker.
// Workers never define their own delegation schema; only their tool schemas
// are caller-defined.
func delegationDefinition(w *Worker) provider.ToolDefinition {
	return provider.ToolDefinition{
		Name:        w.Name(),
		Description: w.Description(),
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"task": map[string]any{
					"type":        "string",
					"description": "The task the worker should perform",
				},
				"context": map[string]any{
					"type":        "string",
					"description": "Additional context for the task",
				},
				"metadata": map[string]any{
					"type":        "object",
					"description": "Structured metadata accompanying the task",
				},
				"priority": map[string]any{
					"type":    "string",
					"enum":    []string{"low", "medium", "high"},
					"default": string(core.PriorityHigh),
				},
			},
			"required": []string{"task", "metadata"},
		},
	}
}

// parseDelegationPayload decodes a delegation call's arguments, defaulting
// the priority to high when absent or invalid. Malformed payloads degrade to
// an empty map; the worker still receives a well-formed (if empty) user turn
// and the model sees its own arguments echoed back as unusable.
func parseDelegationPayload(raw json.RawMessage) map[string]any {
	payload := map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &payload); err != nil {
			return map[string]any{}
		}
	}

	p, _ := payload["priority"].(string)
	if !core.Priority(p).Valid() {
		payload["priority"] = string(core.PriorityHigh)
	}

	return payload
}

// renderTask builds the manager's opening user turn from a submitted task.
func renderTask(task core.Task) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n", task.Title)
	fmt.Fprintf(&b, "Description: %s\n", task.Description)
	if task.Priority != "" {
		fmt.Fprintf(&b, "Priority: %s\n", task.Priority)
	}
	if len(task.Metadata) > 0 {
		if raw, err := json.Marshal(task.Metadata); err == nil {
			fmt.Fprintf(&b, "Metadata: %s\n", raw)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
