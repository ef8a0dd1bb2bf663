package execution_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	execdomain "github.com/duragraph/duragraph/internal/domain/execution"
	"github.com/duragraph/duragraph/internal/domain/workflow"
	pkgerrors "github.com/duragraph/duragraph/internal/pkg/errors"
)

// forwardHandler dispatches to every outgoing edge target regardless of
// source handle, echoing its input as output.
type forwardHandler struct{}

func (forwardHandler) Execute(_ context.Context, ectx *execdomain.ExecutionContext) (execdomain.NodeResult, error) {
	edges := ectx.GetOutgoingEdges(ectx.Node.ID, "")
	next := make([]string, 0, len(edges))
	for _, e := range edges {
		next = append(next, e.Target)
	}
	return execdomain.NodeResult{Output: ectx.Input, NextNodes: next}, nil
}

func mustGraph(t *testing.T, nodes []workflow.Node, edges []workflow.Edge) *workflow.Graph {
	t.Helper()
	g, err := workflow.NewGraph("wf-1", "test graph", "1.0.0", "", nodes, edges, nil)
	require.NoError(t, err)
	return g
}

// TestCircuitBreakerCap verifies a node stuck in a self-loop trips the
// per-node execution cap instead of looping forever.
func TestCircuitBreakerCap(t *testing.T) {
	nodes := []workflow.Node{
		{ID: "start", Kind: workflow.NodeKindStart},
		{ID: "loop", Kind: workflow.NodeKind("loop")},
	}
	edges := []workflow.Edge{
		{ID: "e1", Source: "start", Target: "loop"},
		{ID: "e2", Source: "loop", Target: "loop"},
	}
	g := mustGraph(t, nodes, edges)

	handlers := execdomain.HandlerRegistry{
		"start": forwardHandler{},
		"loop":  forwardHandler{},
	}
	engine := execdomain.NewEngine(handlers, nil, nil)

	opts := execdomain.DefaultRunOptions()
	opts.MaxNodeExecutions = 3

	_, err := engine.Run(context.Background(), g, "hi", nil, opts)
	require.Error(t, err)
	assert.ErrorIs(t, err, pkgerrors.ErrCircuitBreaker)
}

// TestRunCompletesWithoutLoop sanity-checks the happy path: a two-node
// chain with no cycle runs to completion and records the full node chain.
func TestRunCompletesWithoutLoop(t *testing.T) {
	nodes := []workflow.Node{
		{ID: "start", Kind: workflow.NodeKindStart},
		{ID: "echo", Kind: workflow.NodeKind("echo")},
	}
	edges := []workflow.Edge{
		{ID: "e1", Source: "start", Target: "echo"},
	}
	g := mustGraph(t, nodes, edges)

	handlers := execdomain.HandlerRegistry{
		"start": forwardHandler{},
		"echo":  forwardHandler{},
	}
	engine := execdomain.NewEngine(handlers, nil, nil)

	result, err := engine.Run(context.Background(), g, "hello", nil, execdomain.DefaultRunOptions())
	require.NoError(t, err)
	assert.Equal(t, "hello", result.Output)
	assert.Equal(t, []string{"start", "echo"}, result.NodeChain)
	assert.Equal(t, execdomain.StatusCompleted, result.NodeStatuses["echo"])
}

// recordingRepository captures SaveRunResult/SaveNodeExecution calls so
// tests can assert the engine persists through the Repository port.
type recordingRepository struct {
	nodeExecs  []execdomain.NodeExecution
	runResults []string // statuses recorded
}

func (r *recordingRepository) SaveNodeExecution(_ context.Context, exec execdomain.NodeExecution) error {
	r.nodeExecs = append(r.nodeExecs, exec)
	return nil
}

func (r *recordingRepository) GetExecutionHistory(_ context.Context, _ string) ([]execdomain.NodeExecution, error) {
	return r.nodeExecs, nil
}

func (r *recordingRepository) SaveRunResult(_ context.Context, _ string, _ execdomain.NodeResult, status string) error {
	r.runResults = append(r.runResults, status)
	return nil
}

func TestRunPersistsNodeExecutionsAndResult(t *testing.T) {
	nodes := []workflow.Node{
		{ID: "start", Kind: workflow.NodeKindStart},
		{ID: "echo", Kind: workflow.NodeKind("echo")},
	}
	edges := []workflow.Edge{{ID: "e1", Source: "start", Target: "echo"}}
	g := mustGraph(t, nodes, edges)

	handlers := execdomain.HandlerRegistry{"start": forwardHandler{}, "echo": forwardHandler{}}
	repo := &recordingRepository{}
	engine := execdomain.NewEngine(handlers, nil, repo)

	_, err := engine.Run(context.Background(), g, "hi", nil, execdomain.DefaultRunOptions())
	require.NoError(t, err)

	assert.Len(t, repo.nodeExecs, 2)
	require.Len(t, repo.runResults, 1)
	assert.Equal(t, "completed", repo.runResults[0])
}
