package execution

import "context"

// NodeResult is what a node-kind handler returns to the scheduler: the
// produced output, the set of next node ids to enqueue (each receiving
// Output as its input), and optional diagnostic metadata (router's
// selectedRouteId, agent's fallback warnings, ...).
type NodeResult struct {
	Output    string
	NextNodes []string
	Metadata  map[string]interface{}
}

// NodeHandler implements the execute contract for one node kind. Handlers
// never touch RunState directly; everything they need arrives through ctx,
// and everything they produce flows back through the returned NodeResult,
// which the scheduler folds into RunState.
type NodeHandler interface {
	Execute(ctx context.Context, ectx *ExecutionContext) (NodeResult, error)
}

// HandlerRegistry maps a node kind to its handler. Populated by the host
// (infrastructure/execution) and injected into the Engine; domain/execution
// never imports concrete handler implementations.
type HandlerRegistry map[string]NodeHandler

func (r HandlerRegistry) Get(kind string) (NodeHandler, bool) {
	h, ok := r[kind]
	return h, ok
}
