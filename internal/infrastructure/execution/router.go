package execution

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	execdomain "github.com/duragraph/duragraph/internal/domain/execution"
	"github.com/duragraph/duragraph/internal/domain/workflow"
	"github.com/duragraph/duragraph/internal/infrastructure/llm"
	pkgerrors "github.com/duragraph/duragraph/internal/pkg/errors"
)

// RouterHandler implements LLM-driven conditional dispatch (SPEC_FULL §4.5).
type RouterHandler struct {
	provider llm.Provider
}

func NewRouterHandler(provider llm.Provider) *RouterHandler {
	return &RouterHandler{provider: provider}
}

type routeOption struct {
	ID          string
	NodeID      string
	Name        string
	Description string
}

func (h *RouterHandler) Execute(ctx context.Context, ectx *execdomain.ExecutionContext) (execdomain.NodeResult, error) {
	routes := h.buildRoutes(ectx)
	if len(routes) == 0 {
		return execdomain.NodeResult{}, pkgerrors.InvalidState("router", "no eligible routes")
	}

	if program := ectx.DataString("routeExpr", ""); program != "" {
		if routeID, ok := evalRouteExpr(program, ectx); ok {
			if selected, ok := findRoute(routes, routeID); ok {
				return execdomain.NodeResult{
					Output:    ectx.Input,
					NextNodes: []string{selected.NodeID},
					Metadata: map[string]interface{}{
						"selectedRouteId": selected.ID,
						"selectedNodeId":  selected.NodeID,
						"fallbackUsed":    false,
						"exprUsed":        true,
					},
				}, nil
			}
		}
	}

	model := ectx.DataString("model", ectx.DefaultModel)
	systemPrompt := h.buildRoutingPrompt(routes, ectx.DataString("prompt", ""))

	selectTool := llm.Tool{
		Name:        "select_route",
		Description: "Select which route to take next",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"route_id":  map[string]interface{}{"type": "string", "enum": routeIDs(routes)},
				"reasoning": map[string]interface{}{"type": "string"},
			},
			"required": []string{"route_id"},
		},
	}

	result, err := h.provider.Chat(ctx, model, []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: ectx.Input},
	}, llm.ChatOptions{Temperature: 0, MaxTokens: 100, Tools: []llm.Tool{selectTool}, ToolChoice: "select_route"})
	if err != nil {
		return execdomain.NodeResult{}, pkgerrors.Provider(model, err)
	}

	if ectx.TokenCounter != nil {
		ectx.TokenCounter.Record(execdomain.TokenUsage{Model: model, PromptTokens: result.Usage.PromptTokens, CompletionTokens: result.Usage.CompletionTokens, TotalTokens: result.Usage.TotalTokens})
	}

	routeID, reasoning := parseRouteSelection(result)
	selected, ok := findRoute(routes, routeID)
	fallbackUsed := false

	if !ok {
		if idx, err := strconv.Atoi(strings.TrimSpace(result.Content)); err == nil && idx >= 1 && idx <= len(routes) {
			selected = routes[idx-1]
			ok = true
		}
	}

	if !ok {
		fallback := ectx.DataString("fallbackBehavior", "first")
		switch fallback {
		case "error":
			return execdomain.NodeResult{}, pkgerrors.InvalidState("router", "no valid route selected")
		case "none":
			return execdomain.NodeResult{NextNodes: []string{}, Metadata: map[string]interface{}{"fallbackUsed": true}}, nil
		default:
			selected = routes[0]
			fallbackUsed = true
		}
	}

	return execdomain.NodeResult{
		Output:    ectx.Input,
		NextNodes: []string{selected.NodeID},
		Metadata: map[string]interface{}{
			"selectedRouteId": selected.ID,
			"selectedNodeId":  selected.NodeID,
			"reasoning":       reasoning,
			"fallbackUsed":    fallbackUsed,
		},
	}, nil
}

func (h *RouterHandler) buildRoutes(ectx *execdomain.ExecutionContext) []routeOption {
	edges := ectx.GetOutgoingEdges(ectx.Node.ID, "")
	routes := make([]routeOption, 0, len(edges))
	n := 0
	for _, e := range edges {
		if e.SourceHandle == workflow.HandleError || e.SourceHandle == workflow.HandleRejected {
			continue
		}
		n++
		id := e.SourceHandle
		if id == "" {
			id = fmt.Sprintf("route-%d", n)
		}
		target, _ := ectx.GetNode(e.Target)
		name := target.Label
		if name == "" {
			name = e.Label
		}
		if name == "" {
			name = fmt.Sprintf("Route %d", n)
		}
		routes = append(routes, routeOption{ID: id, NodeID: e.Target, Name: name, Description: target.Description})
	}
	return routes
}

func (h *RouterHandler) buildRoutingPrompt(routes []routeOption, extra string) string {
	var b strings.Builder
	b.WriteString("Select the best route for the user's input. Available routes:\n")
	for _, r := range routes {
		fmt.Fprintf(&b, "- %s: %s — %s\n", r.ID, r.Name, r.Description)
	}
	if extra != "" {
		b.WriteString("\nRouting rules:\n")
		b.WriteString(extra)
	}
	return b.String()
}

func routeIDs(routes []routeOption) []string {
	out := make([]string, len(routes))
	for i, r := range routes {
		out[i] = r.ID
	}
	return out
}

func findRoute(routes []routeOption, id string) (routeOption, bool) {
	for _, r := range routes {
		if r.ID == id {
			return r, true
		}
	}
	return routeOption{}, false
}

func parseRouteSelection(result llm.ChatResult) (routeID, reasoning string) {
	for _, call := range result.ToolCalls {
		if call.Name != "select_route" {
			continue
		}
		if v, ok := call.Arguments["route_id"].(string); ok {
			routeID = v
		}
		if v, ok := call.Arguments["reasoning"].(string); ok {
			reasoning = v
		}
		return
	}
	return "", ""
}
