// Package openai provides an implementation of provider.Provider using the
// OpenAI Chat Completions API (including function/tool calling). It adapts
// AgentCrew's normalized turn sequence into the SDK's message format and back.
package openai

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hupe1980/agentcrew/core"
	"github.com/hupe1980/agentcrew/provider"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Options configure the OpenAI provider adapter.
// Fields mirror a subset of Chat Completion parameters intentionally kept
// minimal; extend via functional options without breaking callers.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
	APIKey              string
}

// Provider wraps the OpenAI Chat Completions API behind the generic
// provider.Provider interface.
type Provider struct {
	client *openai.Client
	opts   Options
}

// NewProvider creates a new OpenAI provider using the official client.
func NewProvider(optFns ...func(o *Options)) *Provider {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}

	client := openai.NewClient(clientOpts...)
	p := &Provider{client: &client, opts: opts}
	return p
}

// NewProviderFromClient creates a new OpenAI provider from an existing client.
func NewProviderFromClient(client *openai.Client, optFns ...func(o *Options)) *Provider {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Provider{client: client, opts: opts}
}

// Chat implements provider.Provider with a single non-streaming completion.
func (p *Provider) Chat(ctx context.Context, turns []core.Turn, tools []provider.ToolDefinition) (*provider.Response, error) {
	params := openai.ChatCompletionNewParams{
		Messages:            buildMessages(turns),
		Model:               p.opts.Model,
		Temperature:         openai.Float(p.opts.Temperature),
		MaxCompletionTokens: openai.Int(p.opts.MaxCompletionTokens),
	}

	if len(tools) > 0 {
		params.Tools = buildTools(tools)
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai api error: no choices returned")
	}

	ch0 := resp.Choices[0]
	out := &provider.Response{
		ID:           resp.ID,
		Content:      ch0.Message.Content,
		FinishReason: ch0.FinishReason,
		Usage: core.TokenUsage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}
	for _, tc := range ch0.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, core.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: json.RawMessage(tc.Function.Arguments),
		})
	}

	return out, nil
}

// buildMessages converts normalized turns into OpenAI chat messages. OpenAI
// has a native tool role, so tool turns map one-to-one.
func buildMessages(turns []core.Turn) []openai.ChatCompletionMessageParamUnion {
	var messages []openai.ChatCompletionMessageParamUnion
	for _, t := range turns {
		switch t.Role {
		case core.RoleSystem:
			messages = append(messages, openai.SystemMessage(t.Content))
		case core.RoleUser:
			messages = append(messages, openai.UserMessage(t.Content))
		case core.RoleAssistant:
			if len(t.ToolCalls) == 0 {
				messages = append(messages, openai.AssistantMessage(t.Content))
				continue
			}
			messages = append(messages, openai.ChatCompletionMessageParamUnion{
				OfAssistant: &openai.ChatCompletionAssistantMessageParam{
					Role:      "assistant",
					ToolCalls: buildToolCalls(t.ToolCalls),
				},
			})
		case core.RoleTool:
			messages = append(messages, openai.ToolMessage(t.Content, t.ToolCallID))
		default:
			if t.Content != "" {
				messages = append(messages, openai.UserMessage(t.Content))
			}
		}
	}
	return messages
}

// buildToolCalls converts recorded tool calls back into OpenAI parameters.
func buildToolCalls(calls []core.ToolCall) []openai.ChatCompletionMessageToolCallParam {
	out := make([]openai.ChatCompletionMessageToolCallParam, len(calls))
	for i, call := range calls {
		out[i] = openai.ChatCompletionMessageToolCallParam{
			ID:   call.ID,
			Type: "function",
			Function: openai.ChatCompletionMessageToolCallFunctionParam{
				Name:      call.Name,
				Arguments: string(call.Arguments),
			},
		}
	}
	return out
}

// buildTools assembles the OpenAI tool definitions.
func buildTools(tools []provider.ToolDefinition) []openai.ChatCompletionToolParam {
	out := make([]openai.ChatCompletionToolParam, len(tools))
	for i, tdef := range tools {
		out[i] = openai.ChatCompletionToolParam{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        tdef.Name,
				Description: openai.String(tdef.Description),
				Parameters:  tdef.Parameters,
			},
		}
	}
	return out
}

// Info returns metadata describing this OpenAI provider implementation.
func (p *Provider) Info() provider.Info {
	return provider.Info{
		Model:         p.opts.Model,
		Vendor:        "openai",
		SupportsTools: true,
	}
}
