package llm

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/agentserve-dev/agentserve/agent"
)

// BedrockClient is the slice of the Bedrock runtime client this provider
// needs, kept narrow for testability.
type BedrockClient interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
	ConverseStream(ctx context.Context, params *bedrockruntime.ConverseStreamInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseStreamOutput, error)
}

// Bedrock implements ChatModel against the AWS Bedrock Converse API.
// Text-only: tool definitions in the request are not forwarded, so graphs
// that need tool calling should pair with the OpenAI provider.
type Bedrock struct {
	client       BedrockClient
	defaultModel string
}

// BedrockConfig holds connection settings for the Bedrock provider.
type BedrockConfig struct {
	// Region is the AWS region hosting the models.
	Region string
	// Profile selects a shared-config credentials profile (optional).
	Profile string
	// DefaultModel is the model id used when a request names none.
	DefaultModel string
}

// NewBedrock creates a provider with credentials resolved from the
// environment and shared config.
func NewBedrock(ctx context.Context, cfg BedrockConfig) (*Bedrock, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.Profile != "" {
		loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return NewBedrockWithClient(bedrockruntime.NewFromConfig(awsCfg), cfg.DefaultModel), nil
}

// NewBedrockWithClient creates a provider with a custom client (useful for
// testing).
func NewBedrockWithClient(client BedrockClient, defaultModel string) *Bedrock {
	if defaultModel == "" {
		defaultModel = "anthropic.claude-3-5-haiku-20241022-v1:0"
	}
	return &Bedrock{client: client, defaultModel: defaultModel}
}

// Name returns the provider name.
func (p *Bedrock) Name() string { return "bedrock" }

// Complete drives one blocking model invocation.
func (p *Bedrock) Complete(ctx context.Context, req Request) (*Response, error) {
	modelID, messages, system := p.convertRequest(req)

	out, err := p.client.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId:         aws.String(modelID),
		Messages:        messages,
		System:          system,
		InferenceConfig: inferenceConfig(req),
	})
	if err != nil {
		return nil, fmt.Errorf("bedrock converse: %w", err)
	}

	msg, ok := out.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok {
		return nil, fmt.Errorf("bedrock converse returned no message output")
	}

	var content string
	for _, block := range msg.Value.Content {
		if text, ok := block.(*brtypes.ContentBlockMemberText); ok {
			content += text.Value
		}
	}

	resp := &Response{Content: content, Model: modelID}
	if out.Usage != nil {
		resp.Usage = Usage{
			PromptTokens:     int(aws.ToInt32(out.Usage.InputTokens)),
			CompletionTokens: int(aws.ToInt32(out.Usage.OutputTokens)),
			TotalTokens:      int(aws.ToInt32(out.Usage.TotalTokens)),
		}
	}
	return resp, nil
}

// Stream drives one streaming invocation over the Converse event stream.
func (p *Bedrock) Stream(ctx context.Context, req Request, onToken TokenFunc) (*Response, error) {
	modelID, messages, system := p.convertRequest(req)

	out, err := p.client.ConverseStream(ctx, &bedrockruntime.ConverseStreamInput{
		ModelId:         aws.String(modelID),
		Messages:        messages,
		System:          system,
		InferenceConfig: inferenceConfig(req),
	})
	if err != nil {
		return nil, fmt.Errorf("bedrock converse stream: %w", err)
	}

	stream := out.GetStream()
	defer func() { _ = stream.Close() }()

	var content string
	for event := range stream.Events() {
		delta, ok := event.(*brtypes.ConverseStreamOutputMemberContentBlockDelta)
		if !ok {
			continue
		}
		text, ok := delta.Value.Delta.(*brtypes.ContentBlockDeltaMemberText)
		if !ok {
			continue
		}
		content += text.Value
		if err := onToken(text.Value); err != nil {
			return nil, err
		}
	}
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("bedrock stream: %w", err)
	}

	return &Response{Content: content, Model: modelID}, nil
}

func (p *Bedrock) convertRequest(req Request) (string, []brtypes.Message, []brtypes.SystemContentBlock) {
	modelID := req.Model
	if modelID == "" {
		modelID = p.defaultModel
	}

	var messages []brtypes.Message
	var system []brtypes.SystemContentBlock
	for _, m := range req.Messages {
		switch m.Role {
		case agent.RoleSystem:
			system = append(system, &brtypes.SystemContentBlockMemberText{Value: m.Content})
		case agent.RoleAssistant:
			messages = append(messages, brtypes.Message{
				Role:    brtypes.ConversationRoleAssistant,
				Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: m.Content}},
			})
		default:
			messages = append(messages, brtypes.Message{
				Role:    brtypes.ConversationRoleUser,
				Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: m.Content}},
			})
		}
	}
	return modelID, messages, system
}

func inferenceConfig(req Request) *brtypes.InferenceConfiguration {
	cfg := &brtypes.InferenceConfiguration{}
	if req.MaxTokens > 0 {
		cfg.MaxTokens = aws.Int32(int32(req.MaxTokens))
	}
	if req.Temperature > 0 {
		cfg.Temperature = aws.Float32(req.Temperature)
	}
	return cfg
}
