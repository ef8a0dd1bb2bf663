package execution

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	execdomain "github.com/duragraph/duragraph/internal/domain/execution"
	"github.com/duragraph/duragraph/internal/domain/workflow"
	"github.com/duragraph/duragraph/internal/infrastructure/llm"
	pkgerrors "github.com/duragraph/duragraph/internal/pkg/errors"
)

// OutputHandler implements the terminal output node (SPEC_FULL §4.8):
// combine, synthesis, or legacy template modes, followed by text/json/
// markdown formatting. Always terminal: nextNodes is empty.
type OutputHandler struct {
	provider llm.Provider
}

func NewOutputHandler(provider llm.Provider) *OutputHandler {
	return &OutputHandler{provider: provider}
}

func (h *OutputHandler) Execute(ctx context.Context, ectx *execdomain.ExecutionContext) (execdomain.NodeResult, error) {
	mode := ectx.DataString("mode", "combine")
	sourceIDs := stringSlice(ectx.Node.Data["sources"])
	if len(sourceIDs) == 0 {
		sourceIDs = nonStartChain(ectx)
	}

	var content string
	var err error
	switch mode {
	case "synthesis":
		content, err = h.synthesize(ctx, ectx, sourceIDs)
	case "template":
		content = h.renderTemplate(ectx)
	default:
		content = h.combine(ectx, sourceIDs)
	}
	if err != nil {
		return execdomain.NodeResult{}, err
	}

	format := ectx.DataString("format", "text")
	includeMetadata := ectx.DataBool("includeMetadata", false)
	final := formatFinal(content, format, includeMetadata, ectx.NodeChain)

	return execdomain.NodeResult{Output: final, NextNodes: nil}, nil
}

// nonStartChain is the fallback source set for combine/synthesis modes: the
// executed chain minus pass-through start nodes, whose output is just the
// run's initial input and carries nothing worth echoing into the result.
func nonStartChain(ectx *execdomain.ExecutionContext) []string {
	out := make([]string, 0, len(ectx.NodeChain))
	for _, id := range ectx.NodeChain {
		if node, ok := ectx.GetNode(id); ok && node.Kind == workflow.NodeKindStart {
			continue
		}
		out = append(out, id)
	}
	return out
}

func (h *OutputHandler) combine(ectx *execdomain.ExecutionContext, sourceIDs []string) string {
	parts := make([]string, 0, len(sourceIDs))
	for _, id := range sourceIDs {
		if v, ok := ectx.Outputs[id]; ok && v != "" {
			parts = append(parts, v)
		}
	}
	body := strings.Join(parts, "\n\n")

	intro := ectx.DataString("introText", "")
	outro := ectx.DataString("outroText", "")
	if intro == "" && outro == "" {
		return body
	}

	var b strings.Builder
	if intro != "" {
		b.WriteString(intro)
		b.WriteString("\n\n")
	}
	b.WriteString(body)
	if outro != "" {
		b.WriteString("\n\n")
		b.WriteString(outro)
	}
	return b.String()
}

func (h *OutputHandler) synthesize(ctx context.Context, ectx *execdomain.ExecutionContext, sourceIDs []string) (string, error) {
	systemPrompt := "Combine the following inputs into a cohesive document."
	if syn, ok := ectx.Node.Data["synthesis"].(map[string]interface{}); ok {
		if p, ok := syn["prompt"].(string); ok && p != "" {
			systemPrompt = p
		}
	}

	var b strings.Builder
	for _, id := range sourceIDs {
		if v, ok := ectx.Outputs[id]; ok && v != "" {
			fmt.Fprintf(&b, "### %s\n%s\n\n", id, v)
		}
	}

	model := ectx.DataString("model", ectx.DefaultModel)
	result, err := h.provider.Chat(ctx, model, []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: b.String()},
	}, llm.ChatOptions{})
	if err != nil {
		return "", pkgerrors.Provider(model, err)
	}
	if ectx.TokenCounter != nil {
		ectx.TokenCounter.Record(execdomain.TokenUsage{Model: model, PromptTokens: result.Usage.PromptTokens, CompletionTokens: result.Usage.CompletionTokens, TotalTokens: result.Usage.TotalTokens})
	}
	return result.Content, nil
}

func (h *OutputHandler) renderTemplate(ectx *execdomain.ExecutionContext) string {
	result := ectx.DataString("template", "")
	for nodeID, output := range ectx.Outputs {
		result = strings.ReplaceAll(result, "{{"+nodeID+"}}", output)
	}
	return result
}

func formatFinal(content, format string, includeMetadata bool, nodeChain []string) string {
	switch format {
	case "json":
		return formatJSON(content, includeMetadata, nodeChain)
	case "markdown":
		return formatMarkdown(content, includeMetadata, nodeChain)
	default:
		return formatText(content, includeMetadata, nodeChain)
	}
}

func formatJSON(content string, includeMetadata bool, nodeChain []string) string {
	var payload interface{}
	if json.Valid([]byte(content)) {
		var v interface{}
		_ = json.Unmarshal([]byte(content), &v)
		payload = v
	} else {
		payload = map[string]interface{}{"result": content}
	}

	if !includeMetadata {
		b, _ := json.Marshal(payload)
		return string(b)
	}

	wrapped := map[string]interface{}{
		"result": payload,
		"metadata": map[string]interface{}{
			"nodeChain": nodeChain,
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}
	b, _ := json.Marshal(wrapped)
	return string(b)
}

func formatMarkdown(content string, includeMetadata bool, nodeChain []string) string {
	if !includeMetadata {
		return content
	}
	var b strings.Builder
	b.WriteString("---\n")
	fmt.Fprintf(&b, "nodeChain: %s\n", strings.Join(nodeChain, " -> "))
	b.WriteString("---\n\n")
	b.WriteString(content)
	return b.String()
}

func formatText(content string, includeMetadata bool, nodeChain []string) string {
	if !includeMetadata || len(nodeChain) == 0 {
		return content
	}
	return fmt.Sprintf("[Executed: %s]\n%s", strings.Join(nodeChain, " -> "), content)
}
