package llm

import (
	"encoding/json"

	"context"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicClient implements Provider against the Anthropic Messages API,
// always driving the streaming accumulator so Chat can surface OnToken
// regardless of whether the caller wants incremental output.
type AnthropicClient struct {
	client *anthropic.Client
}

func NewAnthropicClient(apiKey string) *AnthropicClient {
	return &AnthropicClient{client: anthropic.NewClient(option.WithAPIKey(apiKey))}
}

func (c *AnthropicClient) Name() string { return "anthropic" }

func (c *AnthropicClient) Chat(ctx context.Context, model string, messages []Message, opts ChatOptions) (ChatResult, error) {
	anthropicMessages := make([]anthropic.MessageParam, 0, len(messages))
	var systemPrompt string

	for _, m := range messages {
		switch m.Role {
		case "system":
			if systemPrompt != "" {
				systemPrompt += "\n" + m.Content
			} else {
				systemPrompt = m.Content
			}
		case "user":
			anthropicMessages = append(anthropicMessages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		default:
			anthropicMessages = append(anthropicMessages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		}
	}

	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.F(anthropic.Model(model)),
		Messages:  anthropic.F(anthropicMessages),
		MaxTokens: anthropic.F(int64(maxTokens)),
	}
	if systemPrompt != "" {
		params.System = anthropic.F([]anthropic.TextBlockParam{anthropic.NewTextBlock(systemPrompt)})
	}
	if opts.Temperature > 0 {
		params.Temperature = anthropic.F(float64(opts.Temperature))
	}
	if len(opts.Tools) > 0 {
		toolParams := make([]anthropic.ToolParam, len(opts.Tools))
		for i, t := range opts.Tools {
			toolParams[i] = anthropic.ToolParam{
				Name:        anthropic.F(t.Name),
				Description: anthropic.F(t.Description),
				InputSchema: anthropic.F[interface{}](t.Parameters),
			}
		}
		params.Tools = anthropic.F(toolParams)
	}

	stream := c.client.Messages.NewStreaming(ctx, params)
	message := anthropic.Message{}

	for stream.Next() {
		event := stream.Current()
		message.Accumulate(event)

		if event.Type == anthropic.MessageStreamEventTypeContentBlockDelta {
			if delta, ok := event.Delta.(anthropic.ContentBlockDeltaEventDelta); ok {
				if delta.Type == anthropic.ContentBlockDeltaEventDeltaTypeTextDelta && delta.Text != "" {
					if opts.OnToken != nil {
						opts.OnToken(delta.Text)
					}
				}
			}
		}
	}
	if err := stream.Err(); err != nil {
		return ChatResult{}, err
	}

	result := ChatResult{
		FinishReason: string(message.StopReason),
		Usage: Usage{
			PromptTokens:     int(message.Usage.InputTokens),
			CompletionTokens: int(message.Usage.OutputTokens),
			TotalTokens:      int(message.Usage.InputTokens + message.Usage.OutputTokens),
		},
	}
	for _, block := range message.Content {
		switch block.Type {
		case anthropic.ContentBlockTypeText:
			result.Content += block.Text
		case anthropic.ContentBlockTypeToolUse:
			var args map[string]interface{}
			if block.Input != nil {
				raw, _ := json.Marshal(block.Input)
				_ = json.Unmarshal(raw, &args)
			}
			result.ToolCalls = append(result.ToolCalls, ToolCall{ID: block.ID, Name: block.Name, Arguments: args})
		}
	}

	return result, nil
}

func (c *AnthropicClient) GetModelCapabilities(model string) ModelCapabilities {
	text := map[string]bool{ModalityText: true}
	textImage := map[string]bool{ModalityText: true, ModalityImage: true}
	params := map[string]bool{"temperature": true, "maxTokens": true, "tools": true}

	switch model {
	case "claude-opus-4", "claude-sonnet-4", "claude-3-7-sonnet":
		return ModelCapabilities{InputModalities: textImage, OutputModalities: text, ContextLength: 200000, SupportedParameters: params}
	default:
		return ModelCapabilities{InputModalities: textImage, OutputModalities: text, ContextLength: 200000, SupportedParameters: params}
	}
}
