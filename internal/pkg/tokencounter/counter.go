// Package tokencounter estimates token counts and accumulates per-model
// usage/cost across a run, the way a cost tracker would without a
// model-specific tokenizer available.
package tokencounter

import (
	"sync"

	"github.com/duragraph/duragraph/internal/domain/execution"
)

// charsPerToken approximates token length from character count absent a
// real tokenizer; close enough to decide compaction timing.
const charsPerToken = 4

// Counter implements execution.TokenCounter: a thread-safe running total
// of tokens and USD cost across every provider call in a run.
type Counter struct {
	mu        sync.Mutex
	pricing   map[string]ModelPricing
	total     execution.TokenUsage
	byModel   map[string]execution.TokenUsage
	costUSD   float64
}

// NewCounter builds a Counter seeded with the default pricing table.
func NewCounter() *Counter {
	return &Counter{
		pricing: cloneDefaultPricing(),
		byModel: make(map[string]execution.TokenUsage),
	}
}

// SetPricing overrides or adds a model's per-1M-token pricing.
func (c *Counter) SetPricing(model string, p ModelPricing) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pricing[model] = p
}

// EstimateTokens approximates the prompt-token cost of a message array.
func (c *Counter) EstimateTokens(messages []execution.ChatMessage) int {
	chars := 0
	for _, m := range messages {
		chars += len(m.Content) + len(m.Role) + 4
	}
	return chars / charsPerToken
}

// Record folds a provider call's usage into the running totals.
func (c *Counter) Record(usage execution.TokenUsage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.total.PromptTokens += usage.PromptTokens
	c.total.CompletionTokens += usage.CompletionTokens
	c.total.TotalTokens += usage.TotalTokens

	agg := c.byModel[usage.Model]
	agg.Model = usage.Model
	agg.PromptTokens += usage.PromptTokens
	agg.CompletionTokens += usage.CompletionTokens
	agg.TotalTokens += usage.TotalTokens
	c.byModel[usage.Model] = agg

	if p, ok := c.pricing[usage.Model]; ok {
		c.costUSD += float64(usage.PromptTokens) / 1_000_000 * p.InputPer1M
		c.costUSD += float64(usage.CompletionTokens) / 1_000_000 * p.OutputPer1M
	}
}

func (c *Counter) TotalTokens() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total.TotalTokens
}

func (c *Counter) TotalCostUSD() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.costUSD
}

// UsageByModel returns a snapshot of accumulated usage per model.
func (c *Counter) UsageByModel() map[string]execution.TokenUsage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]execution.TokenUsage, len(c.byModel))
	for k, v := range c.byModel {
		out[k] = v
	}
	return out
}

// Reset clears accumulated usage and cost without touching pricing.
func (c *Counter) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.total = execution.TokenUsage{}
	c.byModel = make(map[string]execution.TokenUsage)
	c.costUSD = 0
}
