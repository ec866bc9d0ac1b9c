// Package anthropic provides a provider adapter for the Anthropic Claude API.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/hupe1980/agentcrew/core"
	"github.com/hupe1980/agentcrew/provider"
)

// Options configures the Anthropic provider adapter (temperature, model id,
// max tokens, API key). Extend via functional options to preserve stability.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
}

// Provider wraps the Anthropic Messages API behind the generic
// provider.Provider interface.
type Provider struct {
	client *anthropic.Client
	opts   Options
}

// NewProvider creates a new Anthropic provider using the official client.
func NewProvider(optFns ...func(o *Options)) *Provider {
	opts := Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}

	client := anthropic.NewClient(clientOpts...)

	return &Provider{
		client: &client,
		opts:   opts,
	}
}

// NewProviderFromClient creates a new Anthropic provider from an existing client.
func NewProviderFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Provider {
	opts := Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Provider{
		client: client,
		opts:   opts,
	}
}

// Chat implements provider.Provider. It adapts the turn sequence into
// Anthropic's message format (tool results travel in user-role messages),
// performs one Messages call and maps the reply back.
func (p *Provider) Chat(ctx context.Context, turns []core.Turn, tools []provider.ToolDefinition) (*provider.Response, error) {
	params := anthropic.MessageNewParams{
		Model:       p.opts.Model,
		Messages:    buildMessages(turns),
		MaxTokens:   p.opts.MaxTokens,
		Temperature: anthropic.Float(p.opts.Temperature),
	}

	if systemBlocks := extractSystemBlocks(turns); len(systemBlocks) > 0 {
		params.System = systemBlocks
	}

	if len(tools) > 0 {
		params.Tools = buildTools(tools)
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic api error: %w", err)
	}

	out := &provider.Response{
		ID:           resp.ID,
		FinishReason: string(resp.StopReason),
		Usage: core.TokenUsage{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
			TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
		},
	}

	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			out.Content += block.AsText().Text
		case "tool_use":
			toolBlock := block.AsToolUse()
			args := json.RawMessage(`{}`)
			if toolBlock.Input != nil {
				if raw, err := json.Marshal(toolBlock.Input); err == nil {
					args = raw
				}
			}
			out.ToolCalls = append(out.ToolCalls, core.ToolCall{
				ID:        toolBlock.ID,
				Name:      toolBlock.Name,
				Arguments: args,
			})
		}
	}

	return out, nil
}

// buildMessages converts AgentCrew turns to Anthropic message format. Tool
// turns are folded into user-role messages of tool_result blocks, placed
// directly after the assistant message that requested them.
func buildMessages(turns []core.Turn) []anthropic.MessageParam {
	var messages []anthropic.MessageParam
	var pendingResults []anthropic.ContentBlockParamUnion

	flushResults := func() {
		if len(pendingResults) > 0 {
			messages = append(messages, anthropic.NewUserMessage(pendingResults...))
			pendingResults = nil
		}
	}

	for _, t := range turns {
		switch t.Role {
		case core.RoleSystem:
			continue // handled separately via params.System
		case core.RoleTool:
			pendingResults = append(pendingResults, anthropic.NewToolResultBlock(t.ToolCallID, t.Content, false))
		case core.RoleAssistant:
			flushResults()
			var content []anthropic.ContentBlockParamUnion
			if t.Content != "" {
				content = append(content, anthropic.NewTextBlock(t.Content))
			}
			for _, call := range t.ToolCalls {
				var input interface{}
				if len(call.Arguments) > 0 {
					if err := json.Unmarshal(call.Arguments, &input); err != nil {
						input = string(call.Arguments) // fallback to string
					}
				}
				content = append(content, anthropic.NewToolUseBlock(call.ID, input, call.Name))
			}
			if len(content) > 0 {
				messages = append(messages, anthropic.NewAssistantMessage(content...))
			}
		default: // user and unknown roles
			flushResults()
			if t.Content != "" {
				messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(t.Content)))
			}
		}
	}
	flushResults()

	return messages
}

// extractSystemBlocks collects system turns into Anthropic system blocks.
func extractSystemBlocks(turns []core.Turn) []anthropic.TextBlockParam {
	var systemBlocks []anthropic.TextBlockParam

	for _, t := range turns {
		if t.Role == core.RoleSystem && t.Content != "" {
			systemBlocks = append(systemBlocks, anthropic.TextBlockParam{
				Text: t.Content,
			})
		}
	}

	return systemBlocks
}

// buildTools converts agentcrew tool definitions to Anthropic tool format.
func buildTools(tools []provider.ToolDefinition) []anthropic.ToolUnionParam {
	anthropicTools := make([]anthropic.ToolUnionParam, len(tools))

	for i, tool := range tools {
		var inputSchema anthropic.ToolInputSchemaParam

		if tool.Parameters != nil {
			if properties, exists := tool.Parameters["properties"]; exists {
				inputSchema.Properties = properties
			}
			if required, exists := tool.Parameters["required"]; exists {
				switch req := required.(type) {
				case []string:
					inputSchema.Required = req
				case []interface{}:
					var reqStrings []string
					for _, r := range req {
						if s, ok := r.(string); ok {
							reqStrings = append(reqStrings, s)
						}
					}
					inputSchema.Required = reqStrings
				}
			}
		}

		anthropicTools[i] = anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        tool.Name,
				Description: anthropic.String(tool.Description),
				InputSchema: inputSchema,
			},
		}
	}

	return anthropicTools
}

// Info returns metadata describing this Anthropic provider implementation.
func (p *Provider) Info() provider.Info {
	return provider.Info{
		Model:         string(p.opts.Model),
		Vendor:        "anthropic",
		SupportsTools: true,
	}
}
