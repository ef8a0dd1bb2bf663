package execution

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duragraph/duragraph/internal/domain/workflow"
	"github.com/duragraph/duragraph/internal/infrastructure/llm"
)

func whileLoopGraph(t *testing.T, data map[string]interface{}) (*workflow.Graph, workflow.Node) {
	t.Helper()
	nodes := []workflow.Node{
		{ID: "start", Kind: workflow.NodeKindStart},
		{ID: "loop", Kind: workflow.NodeKindWhileLoop, Data: data},
		{ID: "body", Kind: workflow.NodeKind("echo")},
		{ID: "after", Kind: workflow.NodeKind("echo")},
	}
	edges := []workflow.Edge{
		{ID: "e1", Source: "start", Target: "loop"},
		{ID: "e2", Source: "loop", Target: "body", SourceHandle: workflow.HandleBody},
		{ID: "e3", Source: "loop", Target: "after", SourceHandle: workflow.HandleDone},
	}
	g, err := workflow.NewGraph("wf-loop", "while loop test", "1.0.0", "", nodes, edges, nil)
	require.NoError(t, err)
	n, _ := g.Node("loop")
	return g, n
}

// TestWhileLoopStopsAtMaxIterations verifies the loop body never runs more
// than maxIterations times even when the condition always says continue.
func TestWhileLoopStopsAtMaxIterations(t *testing.T) {
	g, node := whileLoopGraph(t, map[string]interface{}{
		"conditionPrompt": "keep going?",
		"maxIterations":   3,
	})
	provider := &fakeProvider{responses: []llm.ChatResult{
		{Content: "continue"},
		{Content: "continue"},
		{Content: "continue"},
		{Content: "continue"},
	}}
	runner := &fakeRunner{}
	handler := NewWhileLoopHandler(provider)
	ectx := newTestContext(node, g, "seed", runner)

	result, err := handler.Execute(context.Background(), ectx)
	require.NoError(t, err)
	assert.Equal(t, 3, runner.calls)
	assert.Equal(t, []string{"after"}, result.NextNodes)
}

// TestWhileLoopOnMaxIterationsError verifies onMaxIterations="error" turns
// hitting the cap into a domain error instead of a silent exit.
func TestWhileLoopOnMaxIterationsError(t *testing.T) {
	g, node := whileLoopGraph(t, map[string]interface{}{
		"conditionPrompt": "keep going?",
		"maxIterations":   2,
		"onMaxIterations": "error",
	})
	provider := &fakeProvider{responses: []llm.ChatResult{
		{Content: "continue"},
		{Content: "continue"},
	}}
	runner := &fakeRunner{}
	handler := NewWhileLoopHandler(provider)
	ectx := newTestContext(node, g, "seed", runner)

	_, err := handler.Execute(context.Background(), ectx)
	require.Error(t, err)
	assert.Equal(t, 2, runner.calls)
}

// TestWhileLoopStopsWhenConditionSaysDone verifies the loop exits as soon as
// the condition evaluator answers anything other than "continue", well
// before the iteration cap.
func TestWhileLoopStopsWhenConditionSaysDone(t *testing.T) {
	g, node := whileLoopGraph(t, map[string]interface{}{
		"conditionPrompt": "keep going?",
		"maxIterations":   10,
	})
	provider := &fakeProvider{responses: []llm.ChatResult{
		{Content: "done"},
	}}
	runner := &fakeRunner{outputs: []string{"first pass"}}
	handler := NewWhileLoopHandler(provider)
	ectx := newTestContext(node, g, "seed", runner)

	result, err := handler.Execute(context.Background(), ectx)
	require.NoError(t, err)
	assert.Equal(t, 1, runner.calls)
	assert.Equal(t, "first pass", result.Output)
}

// TestWhileLoopConditionExprBypassesLLM verifies a configured conditionExpr
// decides continuation without ever calling the model.
func TestWhileLoopConditionExprBypassesLLM(t *testing.T) {
	g, node := whileLoopGraph(t, map[string]interface{}{
		"conditionExpr": "false",
		"maxIterations": 5,
	})
	provider := &fakeProvider{}
	runner := &fakeRunner{}
	handler := NewWhileLoopHandler(provider)
	ectx := newTestContext(node, g, "seed", runner)

	result, err := handler.Execute(context.Background(), ectx)
	require.NoError(t, err)
	assert.Equal(t, 1, runner.calls)
	assert.Empty(t, provider.calls)
	assert.Equal(t, []string{"after"}, result.NextNodes)
}
