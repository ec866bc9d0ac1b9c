// Package agent implements the two agent kinds that drive AgentCrew's
// bounded execution loop:
//
//   - Worker: owns one provider binding and one tool registry; resolves the
//     model's tool calls against the registry and feeds results back until
//     the model answers without requesting tools, or the iteration ceiling
//     is reached.
//   - Manager: owns one provider binding and a set of registered workers;
//     exposes every worker to the model as a synthetic tool with a fixed
//     delegation schema and routes tool calls to the workers' direct
//     invocation entry point.
//
// Both kinds share one loop implementation and differ only in how a tool
// call is dispatched and in their error semantics: a worker aborts when a
// requested tool has no registered implementation (an integration defect),
// while a manager surfaces unknown or restricted worker names to the model
// as error text and keeps iterating (a routing mistake the model can
// recover from).
//
// Executions are single-threaded and cooperative: provider calls and
// tool/worker invocations run strictly in request order, never
// concurrently. Finished conversations are handed to the configured
// ConversationStore exactly once per execution; store failures are logged
// and never change the execution's outcome.
package agent
