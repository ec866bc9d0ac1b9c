// Package bedrock provides a provider adapter for the AWS Bedrock Converse
// API, using the default AWS credential chain.
package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go"
	"github.com/hupe1980/agentcrew/core"
	"github.com/hupe1980/agentcrew/provider"
)

// ConverseAPI abstracts the Bedrock runtime method used by the adapter so
// tests can inject a fake client.
type ConverseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// Options configures the Bedrock provider adapter.
type Options struct {
	Model       string
	Region      string
	Temperature float64
	MaxTokens   int32
}

// Provider wraps the AWS Bedrock Converse API behind the generic
// provider.Provider interface.
type Provider struct {
	client ConverseAPI
	opts   Options
}

// NewProvider creates a Bedrock provider using the default AWS credential
// chain. Construction fails if the AWS configuration cannot be loaded.
func NewProvider(optFns ...func(o *Options)) (*Provider, error) {
	opts := Options{
		Model:       "anthropic.claude-3-5-sonnet-20241022-v2:0",
		Region:      "us-east-1",
		Temperature: 0.7,
		MaxTokens:   4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(opts.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &Provider{
		client: bedrockruntime.NewFromConfig(awsCfg),
		opts:   opts,
	}, nil
}

// NewProviderFromClient creates a Bedrock provider with an injected client.
func NewProviderFromClient(client ConverseAPI, optFns ...func(o *Options)) *Provider {
	opts := Options{
		Model:       "anthropic.claude-3-5-sonnet-20241022-v2:0",
		Temperature: 0.7,
		MaxTokens:   4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Provider{client: client, opts: opts}
}

// Chat implements provider.Provider via one Converse call.
func (p *Provider) Chat(ctx context.Context, turns []core.Turn, tools []provider.ToolDefinition) (*provider.Response, error) {
	input := p.buildInput(turns, tools)

	output, err := p.client.Converse(ctx, input)
	if err != nil {
		return nil, wrapError(err)
	}

	return fromConverseOutput(output), nil
}

// buildInput converts the turn sequence and tool definitions into a Converse
// request. System turns become system content blocks; tool turns travel as
// user-role tool_result blocks.
func (p *Provider) buildInput(turns []core.Turn, tools []provider.ToolDefinition) *bedrockruntime.ConverseInput {
	input := &bedrockruntime.ConverseInput{
		ModelId: aws.String(p.opts.Model),
		InferenceConfig: &types.InferenceConfiguration{
			MaxTokens: aws.Int32(p.opts.MaxTokens),
		},
	}
	if p.opts.Temperature > 0 {
		input.InferenceConfig.Temperature = aws.Float32(float32(p.opts.Temperature))
	}

	for _, t := range turns {
		if t.Role == core.RoleSystem {
			input.System = append(input.System, &types.SystemContentBlockMemberText{Value: t.Content})
			continue
		}
		if msg := toMessage(t); msg != nil {
			input.Messages = append(input.Messages, *msg)
		}
	}

	if len(tools) > 0 {
		input.ToolConfig = toToolConfig(tools)
	}

	return input
}

func toMessage(t core.Turn) *types.Message {
	msg := &types.Message{}

	switch t.Role {
	case core.RoleTool:
		msg.Role = types.ConversationRoleUser
		msg.Content = []types.ContentBlock{
			&types.ContentBlockMemberToolResult{
				Value: types.ToolResultBlock{
					ToolUseId: aws.String(t.ToolCallID),
					Content: []types.ToolResultContentBlock{
						&types.ToolResultContentBlockMemberText{Value: t.Content},
					},
				},
			},
		}

	case core.RoleAssistant:
		msg.Role = types.ConversationRoleAssistant
		if t.Content != "" {
			msg.Content = append(msg.Content, &types.ContentBlockMemberText{Value: t.Content})
		}
		for _, call := range t.ToolCalls {
			var inputDoc map[string]interface{}
			if len(call.Arguments) > 0 {
				_ = json.Unmarshal(call.Arguments, &inputDoc)
			}
			if inputDoc == nil {
				inputDoc = map[string]interface{}{}
			}
			msg.Content = append(msg.Content, &types.ContentBlockMemberToolUse{
				Value: types.ToolUseBlock{
					ToolUseId: aws.String(call.ID),
					Name:      aws.String(call.Name),
					Input:     document.NewLazyDocument(inputDoc),
				},
			})
		}

	case core.RoleUser:
		msg.Role = types.ConversationRoleUser
		msg.Content = []types.ContentBlock{
			&types.ContentBlockMemberText{Value: t.Content},
		}

	default:
		return nil
	}

	return msg
}

func toToolConfig(tools []provider.ToolDefinition) *types.ToolConfiguration {
	var bedrockTools []types.Tool
	for _, t := range tools {
		schema := t.Parameters
		if schema == nil {
			schema = map[string]interface{}{"type": "object"}
		}

		bedrockTools = append(bedrockTools, &types.ToolMemberToolSpec{
			Value: types.ToolSpecification{
				Name:        aws.String(t.Name),
				Description: aws.String(t.Description),
				InputSchema: &types.ToolInputSchemaMemberJson{
					Value: document.NewLazyDocument(schema),
				},
			},
		})
	}
	return &types.ToolConfiguration{Tools: bedrockTools}
}

func fromConverseOutput(output *bedrockruntime.ConverseOutput) *provider.Response {
	resp := &provider.Response{
		FinishReason: string(output.StopReason),
	}

	if output.Usage != nil {
		resp.Usage = core.TokenUsage{
			PromptTokens:     int(aws.ToInt32(output.Usage.InputTokens)),
			CompletionTokens: int(aws.ToInt32(output.Usage.OutputTokens)),
			TotalTokens:      int(aws.ToInt32(output.Usage.InputTokens)) + int(aws.ToInt32(output.Usage.OutputTokens)),
		}
	}

	if outMsg, ok := output.Output.(*types.ConverseOutputMemberMessage); ok {
		for _, block := range outMsg.Value.Content {
			switch b := block.(type) {
			case *types.ContentBlockMemberText:
				resp.Content += b.Value
			case *types.ContentBlockMemberToolUse:
				resp.ToolCalls = append(resp.ToolCalls, core.ToolCall{
					ID:        aws.ToString(b.Value.ToolUseId),
					Name:      aws.ToString(b.Value.Name),
					Arguments: marshalDocument(b.Value.Input),
				})
			}
		}
	}

	return resp
}

// marshalDocument converts a Bedrock document.Interface to json.RawMessage.
func marshalDocument(doc document.Interface) json.RawMessage {
	if doc == nil {
		return json.RawMessage("{}")
	}
	var v interface{}
	if err := doc.UnmarshalSmithyDocument(&v); err != nil {
		return json.RawMessage("{}")
	}
	data, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("{}")
	}
	return data
}

// wrapError keeps the Bedrock API error code visible in the message so loop
// failures are diagnosable from the ExecutionResult alone.
func wrapError(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("bedrock api error %s: %w", apiErr.ErrorCode(), err)
	}
	return fmt.Errorf("bedrock api error: %w", err)
}

// Info returns metadata describing this Bedrock provider implementation.
func (p *Provider) Info() provider.Info {
	return provider.Info{
		Model:         p.opts.Model,
		Vendor:        "bedrock",
		SupportsTools: true,
	}
}
