package execution

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duragraph/duragraph/internal/domain/workflow"
	"github.com/duragraph/duragraph/internal/infrastructure/llm"
)

func parallelBranches() []interface{} {
	return []interface{}{
		map[string]interface{}{"id": "a", "label": "Branch A"},
		map[string]interface{}{"id": "b", "label": "Branch B"},
	}
}

func parallelMergeGraph(t *testing.T) (*workflow.Graph, workflow.Node) {
	t.Helper()
	nodes := []workflow.Node{
		{ID: "start", Kind: workflow.NodeKindStart},
		{ID: "par", Kind: workflow.NodeKindParallel, Data: map[string]interface{}{"branches": parallelBranches()}},
		{ID: "after", Kind: workflow.NodeKind("echo")},
	}
	edges := []workflow.Edge{
		{ID: "e1", Source: "start", Target: "par"},
		{ID: "e2", Source: "par", Target: "after", SourceHandle: workflow.HandleMerged},
	}
	g, err := workflow.NewGraph("wf-par", "parallel test", "1.0.0", "", nodes, edges, nil)
	require.NoError(t, err)
	n, _ := g.Node("par")
	return g, n
}

// TestParallelMergeConcatenatesBranchOutputs verifies mergeEnabled=true with
// no merge prompt just concatenates each branch's labeled output.
func TestParallelMergeConcatenatesBranchOutputs(t *testing.T) {
	g, node := parallelMergeGraph(t)
	provider := &fakeProvider{
		responses: []llm.ChatResult{
			{Content: "result A"},
			{Content: "result B"},
		},
	}
	handler := NewParallelHandler(provider)
	ectx := newTestContext(node, g, "do the thing", nil)

	result, err := handler.Execute(context.Background(), ectx)
	require.NoError(t, err)
	assert.Contains(t, result.Output, "Branch A")
	assert.Contains(t, result.Output, "Branch B")
	assert.Equal(t, []string{"after"}, result.NextNodes)
}

// TestParallelMergeRunsMergePrompt verifies a configured "prompt" triggers a
// dedicated merge LLM call whose content becomes the node's final output.
func TestParallelMergeRunsMergePrompt(t *testing.T) {
	g, node := parallelMergeGraph(t)
	node.Data["prompt"] = "combine these"

	provider := &fakeProvider{
		responses: []llm.ChatResult{
			{Content: "result A"},
			{Content: "result B"},
			{Content: "combined summary"},
		},
	}
	handler := NewParallelHandler(provider)
	ectx := newTestContext(node, g, "do the thing", nil)

	result, err := handler.Execute(context.Background(), ectx)
	require.NoError(t, err)
	assert.Equal(t, "combined summary", result.Output)
	require.Len(t, provider.calls, 3)
}

// TestParallelMergeIsolatesBranchFailures verifies one branch erroring never
// aborts the node: the error is folded into the merged output's "Errors"
// section and the node still reports its merged handle's next node.
func TestParallelMergeIsolatesBranchFailures(t *testing.T) {
	g, node := parallelMergeGraph(t)
	provider := &fakeProvider{
		errs:      []error{assert.AnError, nil},
		responses: []llm.ChatResult{{Content: "result"}},
	}
	handler := NewParallelHandler(provider)
	ectx := newTestContext(node, g, "hello", nil)

	result, err := handler.Execute(context.Background(), ectx)
	require.NoError(t, err)
	assert.Contains(t, result.Output, "## Errors")
	assert.Equal(t, []string{"after"}, result.NextNodes)
}

func parallelSplitGraph(t *testing.T) (*workflow.Graph, workflow.Node) {
	t.Helper()
	nodes := []workflow.Node{
		{ID: "start", Kind: workflow.NodeKindStart},
		{ID: "par", Kind: workflow.NodeKindParallel, Data: map[string]interface{}{
			"branches":     parallelBranches(),
			"mergeEnabled": false,
		}},
		{ID: "branchA-target", Kind: workflow.NodeKind("echo")},
		{ID: "branchB-target", Kind: workflow.NodeKind("echo")},
	}
	edges := []workflow.Edge{
		{ID: "e1", Source: "start", Target: "par"},
		{ID: "e2", Source: "par", Target: "branchA-target", SourceHandle: "a"},
		{ID: "e3", Source: "par", Target: "branchB-target", SourceHandle: "b"},
	}
	g, err := workflow.NewGraph("wf-par-split", "parallel splitter test", "1.0.0", "", nodes, edges, nil)
	require.NoError(t, err)
	n, _ := g.Node("par")
	return g, n
}

// TestParallelSplitDrivesPerBranchSubgraphs verifies mergeEnabled=false
// dispatches each branch's output directly into its own downstream subgraph
// via the Runner, rather than reporting NextNodes for the scheduler frontier.
func TestParallelSplitDrivesPerBranchSubgraphs(t *testing.T) {
	g, node := parallelSplitGraph(t)
	provider := &fakeProvider{
		responses: []llm.ChatResult{
			{Content: "result A"},
			{Content: "result B"},
		},
	}
	runner := &fakeRunner{outputs: []string{"ran branch"}}
	handler := NewParallelHandler(provider)
	ectx := newTestContext(node, g, "hello", runner)

	result, err := handler.Execute(context.Background(), ectx)
	require.NoError(t, err)
	assert.Nil(t, result.NextNodes)
	assert.Equal(t, 2, runner.calls)
	targets, ok := result.Metadata["splitTargets"].([]string)
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"branchA-target", "branchB-target"}, targets)
}
