// Package agentcrew provides a high-level façade over the manager/worker
// agents and the conversation persistence abstractions, enabling rapid
// construction of delegation-based multi-agent systems. Most applications
// interact with this package by:
//  1. Creating a manager (agent.NewManager) and an Orchestrator via New()
//  2. Registering one or more workers (agent.NewWorker)
//  3. Submitting tasks (ExecuteTask) or invoking single workers (CallWorker)
//
// The façade wires one manager to its workers and an optional shared
// conversation store: services configured on the orchestrator (store,
// logger, session identifier) propagate to the manager and to every
// registered worker that was not explicitly configured with its own. All
// defaults are safe for local development and testing; production
// deployments typically supply a durable store implementation (for example
// store/sqlite) and a structured logger.
package agentcrew

import (
	"context"

	"github.com/google/uuid"

	"github.com/hupe1980/agentcrew/agent"
	"github.com/hupe1980/agentcrew/core"
	"github.com/hupe1980/agentcrew/logging"
)

// Options configures the Orchestrator.
type Options struct {
	// Store receives every finished conversation (manager and workers). Nil
	// disables persistence.
	Store core.ConversationStore

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger

	// SessionID keys the persisted conversations of one orchestrator
	// instance. Generated when empty.
	SessionID string
}

// Orchestrator wires one manager to a set of workers and an optional shared
// conversation store.
type Orchestrator struct {
	opts    Options
	manager *agent.Manager
}

// New creates an Orchestrator around an existing manager. The orchestrator's
// store, logger and session identifier are attached to the manager and to
// every worker subsequently registered through RegisterWorker; explicit
// per-agent configuration takes precedence.
func New(m *agent.Manager, optFns ...func(o *Options)) *Orchestrator {
	opts := Options{
		Logger:    logging.NoOpLogger{},
		SessionID: uuid.NewString(),
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	m.AttachServices(opts.Store, opts.Logger, opts.SessionID)

	return &Orchestrator{opts: opts, manager: m}
}

// RegisterWorker adds a worker as a delegation target of the manager and
// attaches the orchestrator's services to it.
func (o *Orchestrator) RegisterWorker(w *agent.Worker) {
	w.AttachServices(o.opts.Store, o.opts.Logger, o.opts.SessionID)
	o.manager.RegisterWorker(w)
}

// ExecuteTask submits a task to the manager and blocks until the execution
// finishes: the manager answered without delegating further, its iteration
// ceiling was reached, or a fatal error occurred.
func (o *Orchestrator) ExecuteTask(ctx context.Context, task core.Task) core.ExecutionResult {
	return o.manager.ExecuteTask(ctx, task)
}

// CallWorker invokes one worker directly, bypassing the manager's loop. An
// unknown worker name fails immediately; unlike delegation inside the
// manager's loop there is no model in the path that could recover from it.
func (o *Orchestrator) CallWorker(ctx context.Context, name string, payload map[string]any) core.ExecutionResult {
	w, ok := o.manager.Worker(name)
	if !ok {
		err := &core.UnknownWorkerError{Worker: name}
		o.opts.Logger.Error("direct worker call failed", "worker", name, "error", err.Error())
		return core.ExecutionResult{Success: false, Error: err.Error()}
	}
	return w.Invoke(ctx, payload)
}

// Manager returns the wired manager.
func (o *Orchestrator) Manager() *agent.Manager { return o.manager }

// WorkerNames returns the registered worker names in registration order.
func (o *Orchestrator) WorkerNames() []string { return o.manager.WorkerNames() }

// Store returns the configured conversation store, or nil.
func (o *Orchestrator) Store() core.ConversationStore { return o.opts.Store }

// SessionID returns the identifier keying this orchestrator's persisted
// conversations.
func (o *Orchestrator) SessionID() string { return o.opts.SessionID }

// Close releases the conversation store, if one is configured.
func (o *Orchestrator) Close() error {
	if o.opts.Store == nil {
		return nil
	}
	return o.opts.Store.Close()
}
