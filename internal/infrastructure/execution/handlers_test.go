package execution

import (
	"context"
	"sync"

	execdomain "github.com/duragraph/duragraph/internal/domain/execution"
	"github.com/duragraph/duragraph/internal/domain/workflow"
	"github.com/duragraph/duragraph/internal/infrastructure/llm"
)

// fakeProvider is a scripted llm.Provider: each Chat call pops the next
// queued response, so tests can drive multi-turn tool loops and
// router/while-loop decisions deterministically. Guarded by a mutex since
// the parallel node handler dispatches branches concurrently.
type fakeProvider struct {
	mu        sync.Mutex
	responses []llm.ChatResult
	errs      []error
	calls     []fakeCall
	caps      llm.ModelCapabilities
}

type fakeCall struct {
	model    string
	messages []llm.Message
	opts     llm.ChatOptions
}

func (p *fakeProvider) Chat(_ context.Context, model string, messages []llm.Message, opts llm.ChatOptions) (llm.ChatResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls = append(p.calls, fakeCall{model: model, messages: messages, opts: opts})
	if len(p.errs) > 0 {
		next := p.errs[0]
		p.errs = p.errs[1:]
		if next != nil {
			return llm.ChatResult{}, next
		}
	}
	if len(p.responses) == 0 {
		return llm.ChatResult{}, nil
	}
	next := p.responses[0]
	p.responses = p.responses[1:]
	return next, nil
}

func (p *fakeProvider) GetModelCapabilities(string) llm.ModelCapabilities { return p.caps }
func (p *fakeProvider) Name() string                                     { return "fake" }

// fakeRunner answers ExecuteSubgraph with a scripted output string each
// call, counting invocations so while-loop bound tests can assert the
// handler stopped rather than looping unbounded.
type fakeRunner struct {
	outputs []string
	calls   int
}

func (r *fakeRunner) ExecuteSubgraph(_ context.Context, _, input string, _ *execdomain.RunState) (execdomain.NodeResult, error) {
	r.calls++
	out := input
	if len(r.outputs) > 0 {
		idx := r.calls - 1
		if idx < len(r.outputs) {
			out = r.outputs[idx]
		} else {
			out = r.outputs[len(r.outputs)-1]
		}
	}
	return execdomain.NodeResult{Output: out}, nil
}

func (r *fakeRunner) ExecuteWorkflow(_ context.Context, _ *workflow.Graph, _ string, _ []execdomain.Attachment, _ execdomain.RunOptions) (execdomain.NodeResult, error) {
	return execdomain.NodeResult{}, nil
}

func newTestContext(node workflow.Node, graph *workflow.Graph, input string, runner execdomain.SubgraphRunner) *execdomain.ExecutionContext {
	return &execdomain.ExecutionContext{
		Ctx:               context.Background(),
		Node:              node,
		Graph:             graph,
		Input:             input,
		Outputs:           map[string]string{},
		State:             execdomain.NewRunState("run-1", ""),
		DefaultModel:      "gpt-test",
		MaxToolIterations: 10,
		Runner:            runner,
	}
}
