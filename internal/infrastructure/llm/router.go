package llm

import (
	"context"
	"strings"

	"github.com/duragraph/duragraph/internal/infrastructure/tracing"
	"github.com/duragraph/duragraph/internal/pkg/errors"
)

// Router dispatches a Chat/GetModelCapabilities call to the concrete
// provider whose models match the requested model name's prefix.
type Router struct {
	providers map[string]Provider
}

// NewRouter builds a Router from the configured providers. providers with
// a nil value (no API key configured for that backend) are skipped.
func NewRouter(providers map[string]Provider) *Router {
	r := &Router{providers: make(map[string]Provider)}
	for name, p := range providers {
		if p != nil {
			r.providers[name] = p
		}
	}
	return r
}

func (r *Router) Name() string { return "router" }

func (r *Router) Chat(ctx context.Context, model string, messages []Message, opts ChatOptions) (ChatResult, error) {
	p, err := r.resolve(model)
	if err != nil {
		return ChatResult{}, err
	}

	spanCtx, endSpan := tracing.ProviderSpan(ctx, "duragraph/llm", model)
	result, err := p.Chat(spanCtx, model, messages, opts)
	if err != nil {
		endSpan(err, 0, 0)
		return ChatResult{}, errors.Provider(model, err)
	}
	endSpan(nil, result.Usage.PromptTokens, result.Usage.CompletionTokens)
	return result, nil
}

func (r *Router) GetModelCapabilities(model string) ModelCapabilities {
	p, err := r.resolve(model)
	if err != nil {
		return ModelCapabilities{}
	}
	return p.GetModelCapabilities(model)
}

func (r *Router) resolve(model string) (Provider, error) {
	name := ProviderNameForModel(model)
	p, ok := r.providers[name]
	if !ok {
		return nil, errors.InvalidInput("model", "no provider configured for model: "+model)
	}
	return p, nil
}

// ProviderNameForModel determines which provider owns a model name, by
// prefix, the way a model picker in the editor would.
func ProviderNameForModel(model string) string {
	switch {
	case strings.HasPrefix(model, "claude-"):
		return "anthropic"
	case strings.HasPrefix(model, "gpt-"), strings.HasPrefix(model, "o1-"), strings.HasPrefix(model, "o3-"), strings.HasPrefix(model, "chatgpt"):
		return "openai"
	default:
		return "openai"
	}
}
