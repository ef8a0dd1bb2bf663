package execution

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duragraph/duragraph/internal/domain/workflow"
	"github.com/duragraph/duragraph/internal/infrastructure/llm"
)

func routerTestGraph(t *testing.T) (*workflow.Graph, workflow.Node) {
	t.Helper()
	nodes := []workflow.Node{
		{ID: "start", Kind: workflow.NodeKindStart},
		{ID: "router", Kind: workflow.NodeKindRouter},
		{ID: "billing", Kind: workflow.NodeKind("echo"), Label: "Billing"},
		{ID: "support", Kind: workflow.NodeKind("echo"), Label: "Support"},
	}
	edges := []workflow.Edge{
		{ID: "e1", Source: "start", Target: "router"},
		{ID: "e2", Source: "router", Target: "billing", SourceHandle: "billing"},
		{ID: "e3", Source: "router", Target: "support", SourceHandle: "support"},
	}
	g, err := workflow.NewGraph("wf-router", "router test", "1.0.0", "", nodes, edges, nil)
	require.NoError(t, err)
	routerNode, _ := g.Node("router")
	return g, routerNode
}

// TestRouterFallsBackToFirstRoute verifies that when the model's
// select_route tool call names a route that doesn't exist, the default
// fallback behavior picks the first eligible route instead of failing.
func TestRouterFallsBackToFirstRoute(t *testing.T) {
	g, node := routerTestGraph(t)
	provider := &fakeProvider{
		responses: []llm.ChatResult{
			{
				ToolCalls: []llm.ToolCall{
					{Name: "select_route", Arguments: map[string]interface{}{"route_id": "nonexistent-route"}},
				},
			},
		},
	}
	handler := NewRouterHandler(provider)
	ectx := newTestContext(node, g, "I have a question", nil)

	result, err := handler.Execute(context.Background(), ectx)
	require.NoError(t, err)
	assert.Equal(t, []string{"billing"}, result.NextNodes)
	assert.Equal(t, true, result.Metadata["fallbackUsed"])
}

// TestRouterFallbackErrorsWhenConfigured verifies fallbackBehavior=error
// surfaces a domain error instead of silently guessing a route.
func TestRouterFallbackErrorsWhenConfigured(t *testing.T) {
	g, node := routerTestGraph(t)
	node.Data = map[string]interface{}{"fallbackBehavior": "error"}

	provider := &fakeProvider{
		responses: []llm.ChatResult{
			{ToolCalls: []llm.ToolCall{{Name: "select_route", Arguments: map[string]interface{}{"route_id": "missing"}}}},
		},
	}
	handler := NewRouterHandler(provider)
	ectx := newTestContext(node, g, "hello", nil)

	_, err := handler.Execute(context.Background(), ectx)
	assert.Error(t, err)
}

// TestRouterHonorsRouteExpr verifies a configured routeExpr short-circuits
// the LLM call entirely when it resolves to a valid route.
func TestRouterHonorsRouteExpr(t *testing.T) {
	g, node := routerTestGraph(t)
	node.Data = map[string]interface{}{"routeExpr": `"support"`}

	provider := &fakeProvider{}
	handler := NewRouterHandler(provider)
	ectx := newTestContext(node, g, "anything", nil)

	result, err := handler.Execute(context.Background(), ectx)
	require.NoError(t, err)
	assert.Equal(t, []string{"support"}, result.NextNodes)
	assert.Empty(t, provider.calls, "routeExpr should bypass the LLM call")
}
