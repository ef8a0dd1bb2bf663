package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIClient implements Provider against the OpenAI chat completions API.
type OpenAIClient struct {
	client *openai.Client
}

func NewOpenAIClient(apiKey string) *OpenAIClient {
	return &OpenAIClient{client: openai.NewClient(apiKey)}
}

func (c *OpenAIClient) Name() string { return "openai" }

func (c *OpenAIClient) Chat(ctx context.Context, model string, messages []Message, opts ChatOptions) (ChatResult, error) {
	oaMessages := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		oaMessages[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}

	req := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    oaMessages,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
		Stream:      true,
	}

	if len(opts.Tools) > 0 {
		tools := make([]openai.Tool, len(opts.Tools))
		for i, t := range opts.Tools {
			tools[i] = openai.Tool{
				Type: openai.ToolTypeFunction,
				Function: &openai.FunctionDefinition{
					Name:        t.Name,
					Description: t.Description,
					Parameters:  t.Parameters,
				},
			}
		}
		req.Tools = tools
		if opts.ToolChoice != "" && opts.ToolChoice != "auto" {
			req.ToolChoice = openai.ToolChoice{
				Type:     openai.ToolTypeFunction,
				Function: openai.ToolFunction{Name: opts.ToolChoice},
			}
		}
	}

	stream, err := c.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return ChatResult{}, err
	}
	defer stream.Close()

	var content string
	var finishReason string
	toolCallsByIndex := make(map[int]*openai.ToolCall)
	var order []int

	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return ChatResult{}, err
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		choice := chunk.Choices[0]
		if choice.Delta.Content != "" {
			content += choice.Delta.Content
			if opts.OnToken != nil {
				opts.OnToken(choice.Delta.Content)
			}
		}
		for _, tc := range choice.Delta.ToolCalls {
			idx := 0
			if tc.Index != nil {
				idx = *tc.Index
			}
			existing, ok := toolCallsByIndex[idx]
			if !ok {
				order = append(order, idx)
				copyTC := tc
				toolCallsByIndex[idx] = &copyTC
				continue
			}
			existing.Function.Arguments += tc.Function.Arguments
		}
		if choice.FinishReason != "" {
			finishReason = string(choice.FinishReason)
		}
	}

	result := ChatResult{Content: content, FinishReason: finishReason}
	for _, idx := range order {
		tc := toolCallsByIndex[idx]
		var args map[string]interface{}
		_ = json.Unmarshal([]byte(tc.Function.Arguments), &args)
		result.ToolCalls = append(result.ToolCalls, ToolCall{ID: tc.ID, Name: tc.Function.Name, Arguments: args})
	}

	return result, nil
}

func (c *OpenAIClient) GetModelCapabilities(model string) ModelCapabilities {
	return openAICapabilities(model)
}

func openAICapabilities(model string) ModelCapabilities {
	text := map[string]bool{ModalityText: true}
	textImage := map[string]bool{ModalityText: true, ModalityImage: true}
	params := map[string]bool{"temperature": true, "maxTokens": true, "tools": true}

	switch model {
	case "gpt-4o", "gpt-4o-mini", "gpt-4.1", "gpt-4.1-mini":
		return ModelCapabilities{InputModalities: textImage, OutputModalities: text, ContextLength: 128000, SupportedParameters: params}
	case "o1", "o1-mini", "o3-mini":
		return ModelCapabilities{InputModalities: text, OutputModalities: text, ContextLength: 128000, SupportedParameters: map[string]bool{"maxTokens": true}}
	default:
		return ModelCapabilities{InputModalities: text, OutputModalities: text, ContextLength: 16000, SupportedParameters: params}
	}
}
