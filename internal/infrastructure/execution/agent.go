package execution

import (
	"context"

	execdomain "github.com/duragraph/duragraph/internal/domain/execution"
	"github.com/duragraph/duragraph/internal/domain/workflow"
	"github.com/duragraph/duragraph/internal/infrastructure/llm"
)

// AgentHandler implements the agent node kind: an LLM call with an optional
// bounded tool-calling loop (SPEC_FULL §4.3).
type AgentHandler struct {
	provider llm.Provider
}

func NewAgentHandler(provider llm.Provider) *AgentHandler {
	return &AgentHandler{provider: provider}
}

func (h *AgentHandler) Execute(ctx context.Context, ectx *execdomain.ExecutionContext) (execdomain.NodeResult, error) {
	cfg := agentLoopConfig{
		NodeID:              ectx.Node.ID,
		NodeLabel:           ectx.Node.Label,
		Model:               ectx.DataString("model", ""),
		SystemPrompt:        ectx.DataString("prompt", ""),
		Input:               ectx.Input,
		Attachments:         ectx.Attachments,
		ToolNames:           stringSlice(ectx.Node.Data["tools"]),
		MaxToolIterations:    ectx.DataInt("maxToolIterations", ectx.MaxToolIterations),
		OnMaxToolIterations:  ectx.DataString("onMaxToolIterations", "warning"),
		OnToken:              ectx.Callbacks.OnToken,
		OnReasoning:          ectx.Callbacks.OnReasoning,
	}

	result, err := runAgentLoop(ctx, h.provider, ectx, cfg)
	if err != nil {
		return execdomain.NodeResult{}, err
	}

	next := targetsForHandle(ectx, workflow.HandleOutput)
	metadata := map[string]interface{}{}
	if result.Warning {
		metadata["warning"] = true
	}
	return execdomain.NodeResult{Output: result.Output, NextNodes: next, Metadata: metadata}, nil
}

// stringSlice coerces a node data field (typically []interface{} from JSON
// decoding) into a []string, dropping non-string entries.
func stringSlice(v interface{}) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// targetsForHandle returns the outgoing edge targets on the given handle.
func targetsForHandle(ectx *execdomain.ExecutionContext, handle string) []string {
	edges := ectx.GetOutgoingEdges(ectx.Node.ID, handle)
	out := make([]string, 0, len(edges))
	for _, e := range edges {
		out = append(out, e.Target)
	}
	return out
}
