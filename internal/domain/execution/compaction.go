package execution

import "strings"

// DefaultCompactor implements the compaction strategy SPEC_FULL §4.15
// describes: once the running prompt-token estimate for history crosses a
// configurable fraction of the model's context window, summarize the
// oldest half of history into a single system message.
type DefaultCompactor struct {
	// Threshold is the fraction of contextLength that triggers compaction.
	Threshold float64
}

// NewDefaultCompactor returns a compactor triggering at 80% of context.
func NewDefaultCompactor() *DefaultCompactor {
	return &DefaultCompactor{Threshold: 0.8}
}

func (c *DefaultCompactor) ShouldCompact(messages []ChatMessage, model string, counter TokenCounter, caps ModelCapabilities) bool {
	if caps.ContextLength <= 0 || counter == nil {
		return false
	}
	estimate := counter.EstimateTokens(messages)
	threshold := c.Threshold
	if threshold <= 0 {
		threshold = 0.8
	}
	return float64(estimate) >= threshold*float64(caps.ContextLength)
}

func (c *DefaultCompactor) Compact(messages []ChatMessage, summarize func(systemPrompt, userContent string) (string, error)) ([]ChatMessage, error) {
	if len(messages) < 2 {
		return messages, nil
	}

	cut := len(messages) / 2
	older := messages[:cut]
	newer := messages[cut:]

	var sb strings.Builder
	for _, m := range older {
		sb.WriteString(string(m.Role))
		sb.WriteString(": ")
		sb.WriteString(m.Content)
		sb.WriteString("\n")
	}

	summary, err := summarize(
		"Summarize the following conversation history concisely, preserving facts and decisions a later turn would need.",
		sb.String(),
	)
	if err != nil {
		return nil, err
	}

	compacted := make([]ChatMessage, 0, len(newer)+1)
	compacted = append(compacted, ChatMessage{Role: RoleSystem, Content: "Earlier conversation summary: " + summary})
	compacted = append(compacted, newer...)
	return compacted, nil
}
