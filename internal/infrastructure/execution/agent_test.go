package execution

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	execdomain "github.com/duragraph/duragraph/internal/domain/execution"
	"github.com/duragraph/duragraph/internal/domain/workflow"
	"github.com/duragraph/duragraph/internal/infrastructure/llm"
)

func agentTestGraph(t *testing.T, data map[string]interface{}) (*workflow.Graph, workflow.Node) {
	t.Helper()
	nodes := []workflow.Node{
		{ID: "start", Kind: workflow.NodeKindStart},
		{ID: "agent", Kind: workflow.NodeKindAgent, Data: data},
		{ID: "after", Kind: workflow.NodeKind("echo")},
	}
	edges := []workflow.Edge{
		{ID: "e1", Source: "start", Target: "agent"},
		{ID: "e2", Source: "agent", Target: "after", SourceHandle: workflow.HandleOutput},
	}
	g, err := workflow.NewGraph("wf-agent", "agent test", "1.0.0", "", nodes, edges, nil)
	require.NoError(t, err)
	n, _ := g.Node("agent")
	return g, n
}

// TestAgentHandlerAppendsUserMessageOnce verifies a fresh run with no prior
// history records the user turn and returns the model's reply.
func TestAgentHandlerAppendsUserMessageOnce(t *testing.T) {
	g, node := agentTestGraph(t, nil)
	provider := &fakeProvider{responses: []llm.ChatResult{{Content: "hello back"}}}
	handler := NewAgentHandler(provider)
	ectx := newTestContext(node, g, "hi there", nil)

	result, err := handler.Execute(context.Background(), ectx)
	require.NoError(t, err)
	assert.Equal(t, "hello back", result.Output)
	assert.Equal(t, []string{"after"}, result.NextNodes)

	history := ectx.State.HistorySnapshot()
	require.Len(t, history, 2)
	assert.Equal(t, execdomain.RoleUser, history[0].Role)
	assert.Equal(t, "hi there", history[0].Content)
	assert.Equal(t, execdomain.RoleAssistant, history[1].Role)
}

// TestAgentHandlerDedupsRepeatedUserTurn verifies that when the node's input
// is already the last history entry (e.g. a retry re-dispatch), the handler
// does not append a second identical user message.
func TestAgentHandlerDedupsRepeatedUserTurn(t *testing.T) {
	g, node := agentTestGraph(t, nil)
	provider := &fakeProvider{responses: []llm.ChatResult{{Content: "reply"}}}
	handler := NewAgentHandler(provider)

	state := execdomain.NewRunState("run-1", "")
	priorHistory := []execdomain.ChatMessage{{Role: execdomain.RoleUser, Content: "same input"}}
	for _, m := range priorHistory {
		state.AppendHistory(m)
	}

	ectx := &execdomain.ExecutionContext{
		Ctx:               context.Background(),
		Node:              node,
		Graph:             g,
		Input:             "same input",
		History:           priorHistory,
		Outputs:           map[string]string{},
		State:             state,
		DefaultModel:      "gpt-test",
		MaxToolIterations: 10,
	}

	_, err := handler.Execute(context.Background(), ectx)
	require.NoError(t, err)

	history := state.HistorySnapshot()
	// Only the assistant reply should have been appended; the duplicate
	// user turn must not be.
	require.Len(t, history, 2)
	assert.Equal(t, execdomain.RoleUser, history[0].Role)
	assert.Equal(t, "same input", history[0].Content)
	assert.Equal(t, execdomain.RoleAssistant, history[1].Role)
}

// TestAgentHandlerToolIterationCapWarning verifies hitting
// maxToolIterations with the default "warning" behavior returns a capped
// result instead of looping forever.
func TestAgentHandlerToolIterationCapWarning(t *testing.T) {
	g, node := agentTestGraph(t, map[string]interface{}{"maxToolIterations": 2})
	toolCallResponse := llm.ChatResult{
		ToolCalls: []llm.ToolCall{{Name: "lookup", Arguments: map[string]interface{}{"q": "x"}}},
	}
	provider := &fakeProvider{responses: []llm.ChatResult{
		toolCallResponse, toolCallResponse, toolCallResponse, toolCallResponse, toolCallResponse,
	}}
	handler := NewAgentHandler(provider)
	ectx := newTestContext(node, g, "find it", nil)
	ectx.Callbacks.OnToolCall = func(name string, args map[string]interface{}) (string, error) {
		return "some result", nil
	}

	result, err := handler.Execute(context.Background(), ectx)
	require.NoError(t, err)
	assert.Contains(t, result.Output, "Maximum tool iterations")
	assert.Equal(t, true, result.Metadata["warning"])
}

// TestAgentHandlerToolIterationCapError verifies onMaxToolIterations="error"
// surfaces a domain error instead of a warning string.
func TestAgentHandlerToolIterationCapError(t *testing.T) {
	g, node := agentTestGraph(t, map[string]interface{}{
		"maxToolIterations":   1,
		"onMaxToolIterations": "error",
	})
	toolCallResponse := llm.ChatResult{
		ToolCalls: []llm.ToolCall{{Name: "lookup", Arguments: map[string]interface{}{"q": "x"}}},
	}
	provider := &fakeProvider{responses: []llm.ChatResult{toolCallResponse, toolCallResponse}}
	handler := NewAgentHandler(provider)
	ectx := newTestContext(node, g, "find it", nil)
	ectx.Callbacks.OnToolCall = func(name string, args map[string]interface{}) (string, error) {
		return "some result", nil
	}

	_, err := handler.Execute(context.Background(), ectx)
	require.Error(t, err)
}

// TestAgentHandlerToolIterationCapHITL verifies onMaxToolIterations="hitl"
// invokes the HITL callback and, on approval, grants one more round rather
// than failing outright.
func TestAgentHandlerToolIterationCapHITL(t *testing.T) {
	g, node := agentTestGraph(t, map[string]interface{}{
		"maxToolIterations":   1,
		"onMaxToolIterations": "hitl",
	})
	toolCallResponse := llm.ChatResult{
		ToolCalls: []llm.ToolCall{{Name: "lookup", Arguments: map[string]interface{}{"q": "x"}}},
	}
	provider := &fakeProvider{responses: []llm.ChatResult{
		toolCallResponse, {Content: "done after approval"},
	}}
	handler := NewAgentHandler(provider)
	ectx := newTestContext(node, g, "find it", nil)
	ectx.Callbacks.OnToolCall = func(name string, args map[string]interface{}) (string, error) {
		return "some result", nil
	}
	hitlCalled := false
	ectx.Callbacks.OnHITLRequest = func(req execdomain.HITLRequest) (execdomain.HITLResponse, error) {
		hitlCalled = true
		return execdomain.HITLResponse{Action: execdomain.HITLApprove}, nil
	}

	result, err := handler.Execute(context.Background(), ectx)
	require.NoError(t, err)
	assert.True(t, hitlCalled)
	assert.Equal(t, "done after approval", result.Output)
}
