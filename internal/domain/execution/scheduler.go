package execution

import (
	"context"
	"fmt"
	"time"

	"github.com/duragraph/duragraph/internal/domain/workflow"
	"github.com/duragraph/duragraph/internal/pkg/errors"
	"github.com/duragraph/duragraph/internal/pkg/eventbus"
	pkguuid "github.com/duragraph/duragraph/internal/pkg/uuid"
)

// RunResult is the Scheduler's return value: the final output plus the
// full runtime state snapshot a caller or post-mortem viewer needs.
type RunResult struct {
	Output       string
	NodeStatuses map[string]NodeStatus
	NodeChain    []string
	Outputs      map[string]string
}

type workItem struct {
	nodeID string
	input  string
}

// Engine is the workflow scheduler: it owns the run loop described in
// SPEC_FULL §4.1, dispatching each frontier item to the registered handler
// for the node's kind and folding the result back into RunState.
type Engine struct {
	handlers HandlerRegistry
	bus      *eventbus.EventBus
	repo     Repository
}

// NewEngine constructs a scheduler. bus and repo may be nil.
func NewEngine(handlers HandlerRegistry, bus *eventbus.EventBus, repo Repository) *Engine {
	return &Engine{handlers: handlers, bus: bus, repo: repo}
}

// Run executes a workflow from its start node to frontier exhaustion. The
// only check made up front is that a start node exists; full static
// validation is workflow.Validator's job.
func (e *Engine) Run(ctx context.Context, g *workflow.Graph, initialInput string, attachments []Attachment, opts RunOptions) (RunResult, error) {
	start, ok := g.StartNode()
	if !ok {
		return RunResult{}, errors.ValidationFailed([]string{"MISSING_START_NODE"})
	}

	opts = fillDefaults(opts)
	runID := pkguuid.New()
	state := NewRunState(runID, opts.SessionID)

	result, err := e.runFrontier(ctx, g, state, []workItem{{nodeID: start.ID, input: initialInput}}, attachments, opts)
	if err != nil {
		if e.repo != nil {
			_ = e.repo.SaveRunResult(ctx, runID, result, "error")
		}
		return RunResult{
			NodeStatuses: state.NodeStatuses,
			NodeChain:    state.ChainSnapshot(),
			Outputs:      state.OutputsSnapshot(),
		}, err
	}

	if e.repo != nil {
		_ = e.repo.SaveRunResult(ctx, runID, result, "completed")
	}

	return RunResult{
		Output:       result.Output,
		NodeStatuses: state.NodeStatuses,
		NodeChain:    state.ChainSnapshot(),
		Outputs:      state.OutputsSnapshot(),
	}, nil
}

// ExecuteSubgraph drives a local frontier starting at startNodeID within
// the same graph and RunState, used by while-loop bodies. It does not
// count against maxSubflowDepth: it is not entering a different workflow
// document, merely a different region of the current one.
func (e *Engine) ExecuteSubgraph(ctx context.Context, g *workflow.Graph, startNodeID, input string, state *RunState, attachments []Attachment, opts RunOptions) (NodeResult, error) {
	return e.runFrontier(ctx, g, state, []workItem{{nodeID: startNodeID, input: input}}, attachments, opts)
}

// ExecuteWorkflow runs an embedded subflow's own graph to completion in a
// derived RunState, enforcing maxSubflowDepth.
func (e *Engine) ExecuteWorkflow(ctx context.Context, parent *RunState, g *workflow.Graph, text string, attachments []Attachment, opts RunOptions, shareSession, shareHistory bool) (NodeResult, error) {
	if parent.SubflowDepth+1 > opts.MaxSubflowDepth {
		return NodeResult{}, errors.MaxSubflowDepthExceeded(parent.SubflowDepth+1, opts.MaxSubflowDepth)
	}

	start, ok := g.StartNode()
	if !ok {
		return NodeResult{}, errors.ValidationFailed([]string{"MISSING_START_NODE"})
	}

	child := parent.Derive(shareSession, shareHistory)
	return e.runFrontier(ctx, g, child, []workItem{{nodeID: start.ID, input: text}}, attachments, opts)
}

func (e *Engine) runFrontier(ctx context.Context, g *workflow.Graph, state *RunState, frontier []workItem, attachments []Attachment, opts RunOptions) (NodeResult, error) {
	var last NodeResult

	for len(frontier) > 0 {
		select {
		case <-ctx.Done():
			return last, errors.Cancelled(state.RunID)
		default:
		}

		item := frontier[0]
		frontier = frontier[1:]

		count := state.IncrementExecCount(item.nodeID)
		if count > opts.MaxNodeExecutions {
			return last, errors.CircuitBreakerTripped(item.nodeID, count, opts.MaxNodeExecutions)
		}

		node, ok := g.Node(item.nodeID)
		if !ok {
			return last, errors.NotFound("node", item.nodeID)
		}

		state.SetStatus(node.ID, StatusActive)
		e.emitStatus(opts, node.ID, StatusActive)
		e.publish(NodeStarted{RunID: state.RunID, NodeID: node.ID, NodeKind: string(node.Kind), Input: item.input, OccurredAt: time.Now()})

		handler, ok := e.handlers.Get(string(node.Kind))
		if !ok {
			return last, errors.Internal(fmt.Sprintf("no handler registered for node kind %q", node.Kind), nil)
		}

		spanCtx := ctx
		endSpan := func(error) {}
		if opts.Callbacks.OnNodeSpan != nil {
			spanCtx, endSpan = opts.Callbacks.OnNodeSpan(ctx, node.ID, string(node.Kind))
		}

		ectx := e.buildContext(spanCtx, g, node, item.input, attachments, state, opts)

		start := time.Now()
		res, err := handler.Execute(spanCtx, ectx)
		duration := time.Since(start)
		endSpan(err)

		if err != nil {
			state.SetStatus(node.ID, StatusError)
			e.emitStatus(opts, node.ID, StatusError)
			e.publish(NodeFailed{RunID: state.RunID, NodeID: node.ID, NodeKind: string(node.Kind), Error: err.Error(), Input: item.input, OccurredAt: time.Now()})

			errEdges := g.OutgoingEdges(node.ID, workflow.HandleError)
			if len(errEdges) == 0 {
				return last, err
			}
			for _, edge := range errEdges {
				frontier = append(frontier, workItem{nodeID: edge.Target, input: err.Error()})
			}
			continue
		}

		state.Complete(node.ID, res.Output)
		e.emitStatus(opts, node.ID, StatusCompleted)
		e.publish(NodeCompleted{RunID: state.RunID, NodeID: node.ID, NodeKind: string(node.Kind), Output: res.Output, DurationMs: duration.Milliseconds(), OccurredAt: time.Now()})

		if e.repo != nil {
			_ = e.repo.SaveNodeExecution(ctx, NodeExecution{
				RunID: state.RunID, NodeID: node.ID, NodeKind: string(node.Kind),
				Status: string(StatusCompleted), Input: item.input, Output: res.Output, DurationMs: duration.Milliseconds(),
			})
		}

		last = res
		for _, next := range res.NextNodes {
			frontier = append(frontier, workItem{nodeID: next, input: res.Output})
		}
	}

	return last, nil
}

func (e *Engine) buildContext(ctx context.Context, g *workflow.Graph, node workflow.Node, input string, attachments []Attachment, state *RunState, opts RunOptions) *ExecutionContext {
	return &ExecutionContext{
		Ctx:               ctx,
		Node:              node,
		Graph:             g,
		Input:             input,
		Attachments:       attachments,
		History:           state.HistorySnapshot(),
		Outputs:           state.OutputsSnapshot(),
		NodeChain:         state.ChainSnapshot(),
		SessionID:         state.SessionID,
		State:             state,
		Callbacks:         opts.Callbacks,
		Memory:            opts.Memory,
		SubflowRegistry:   opts.SubflowRegistry,
		Tools:             opts.Tools,
		CustomEvaluators:  opts.CustomEvaluators,
		TokenCounter:      opts.TokenCounter,
		Compaction:        opts.Compaction,
		DefaultModel:      opts.DefaultModel,
		MaxToolIterations: opts.MaxToolIterations,
		Debug:             opts.Debug,
		NodeOverrides:     opts.NodeOverrides,
		Runner:            &engineRunner{engine: e, graph: g, state: state, attachments: attachments, opts: opts},
	}
}

func (e *Engine) emitStatus(opts RunOptions, nodeID string, status NodeStatus) {
	if opts.Callbacks.OnStatus != nil {
		opts.Callbacks.OnStatus(nodeID, status)
	}
}

func (e *Engine) publish(ev eventbus.Event) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(ev)
}

func fillDefaults(opts RunOptions) RunOptions {
	if opts.MaxNodeExecutions <= 0 {
		opts.MaxNodeExecutions = 100
	}
	if opts.MaxSubflowDepth <= 0 {
		opts.MaxSubflowDepth = 10
	}
	if opts.MaxToolIterations <= 0 {
		opts.MaxToolIterations = 10
	}
	if opts.OnMaxToolIterations == "" {
		opts.OnMaxToolIterations = "warning"
	}
	return opts
}

// engineRunner adapts Engine to the SubgraphRunner interface handlers see
// through ExecutionContext.Runner, closing over the graph/state/opts of
// the dispatch that created it.
type engineRunner struct {
	engine      *Engine
	graph       *workflow.Graph
	state       *RunState
	attachments []Attachment
	opts        RunOptions
}

func (r *engineRunner) ExecuteSubgraph(ctx context.Context, startNodeID, input string, state *RunState) (NodeResult, error) {
	if state == nil {
		state = r.state
	}
	return r.engine.ExecuteSubgraph(ctx, r.graph, startNodeID, input, state, r.attachments, r.opts)
}

func (r *engineRunner) ExecuteWorkflow(ctx context.Context, wf *workflow.Graph, text string, attachments []Attachment, opts RunOptions) (NodeResult, error) {
	shareSession := opts.SessionID != ""
	merged := r.opts
	if opts.MaxSubflowDepth > 0 {
		merged.MaxSubflowDepth = opts.MaxSubflowDepth
	}
	return r.engine.ExecuteWorkflow(ctx, r.state, wf, text, attachments, merged, shareSession, true)
}
