package agent

import (
	"context"

	"github.com/hupe1980/agentcrew/core"
	"github.com/hupe1980/agentcrew/logging"
	"github.com/hupe1980/agentcrew/provider"
)

// MaxIterationsMessage is the content of an ExecutionResult whose loop hit
// the iteration ceiling before the model produced a tool-less response.
// Ceiling exhaustion is a graceful partial success, not an error.
const MaxIterationsMessage = "Maximum iterations reached"

// dispatchFunc resolves one tool call into the text of its tool turn plus any
// token usage consumed while doing so (worker delegations burn tokens). A
// non-nil error is fatal and aborts the execution; recoverable failures must
// be rendered into the returned text instead.
type dispatchFunc func(ctx context.Context, call core.ToolCall) (string, core.TokenUsage, error)

// loopConfig parameterizes runLoop for the two agent kinds.
type loopConfig struct {
	provider provider.Provider
	tools    []provider.ToolDefinition
	ceiling  int
	window   int
	dispatch dispatchFunc
	logger   logging.Logger
	agent    string
}

// runLoop executes the bounded loop shared by Worker and Manager against the
// given conversation, which must already be seeded with the system
// instruction and the opening user turn.
//
// Per round: transmit the windowed view of the conversation, accumulate the
// response's usage, and either finish (no tool calls) or append the
// assistant turn with its raw calls and dispatch them strictly in request
// order, appending exactly one tool turn per call. The conversation is
// mutated in place so that callers can persist the full causal sequence at
// exit; runLoop itself never persists.
func runLoop(ctx context.Context, conv *core.Conversation, cfg loopConfig) core.ExecutionResult {
	var usage core.TokenUsage

	for i := 1; i <= cfg.ceiling; i++ {
		resp, err := cfg.provider.Chat(ctx, conv.Window(cfg.window), cfg.tools)
		if err != nil {
			provErr := &core.ProviderError{Provider: cfg.provider.Info().Vendor, Err: err}
			cfg.logger.Error("provider call failed", "agent", cfg.agent, "iteration", i, "error", provErr.Error())

			return core.ExecutionResult{
				Success:    false,
				Usage:      usage,
				Iterations: i,
				Error:      provErr.Error(),
			}
		}

		usage.Add(resp.Usage)

		if len(resp.ToolCalls) == 0 {
			conv.Append(core.NewAssistantTurn(resp.Content, nil))
			cfg.logger.Debug("execution finished", "agent", cfg.agent, "iterations", i)

			return core.ExecutionResult{
				Success:    true,
				Content:    resp.Content,
				Usage:      usage,
				Iterations: i,
			}
		}

		conv.Append(core.NewAssistantTurn(resp.Content, resp.ToolCalls))

		for _, call := range resp.ToolCalls {
			text, callUsage, err := cfg.dispatch(ctx, call)
			usage.Add(callUsage)
			if err != nil {
				cfg.logger.Error("dispatch failed", "agent", cfg.agent, "tool", call.Name, "error", err.Error())

				return core.ExecutionResult{
					Success:    false,
					Usage:      usage,
					Iterations: i,
					Error:      err.Error(),
				}
			}
			conv.Append(core.NewToolTurn(call.ID, text))
		}
	}

	cfg.logger.Info("iteration ceiling reached", "agent", cfg.agent, "ceiling", cfg.ceiling)

	return core.ExecutionResult{
		Success:    true,
		Content:    MaxIterationsMessage,
		Usage:      usage,
		Iterations: cfg.ceiling,
	}
}

// persist hands a finished conversation to the store, if one is configured.
// Persistence failures are logged and swallowed: they never change the
// outcome of the execution that produced the conversation.
func persist(ctx context.Context, store core.ConversationStore, logger logging.Logger, conv *core.Conversation) {
	if store == nil {
		return
	}
	if err := store.Store(ctx, conv); err != nil {
		logger.Warn("failed to persist conversation", "conversation_id", conv.ID, "agent", conv.AgentName, "error", err.Error())
	}
}
