package execution

import "context"

// NodeExecution is one persisted node-execution record, written for
// post-mortem inspection of a run.
type NodeExecution struct {
	ID         int64
	RunID      string
	NodeID     string
	NodeKind   string
	Status     string
	Input      string
	Output     string
	Error      string
	DurationMs int64
}

// Repository persists run/node-execution history. Concrete implementation:
// infrastructure/persistence/postgres.
type Repository interface {
	SaveNodeExecution(ctx context.Context, exec NodeExecution) error
	GetExecutionHistory(ctx context.Context, runID string) ([]NodeExecution, error)
	SaveRunResult(ctx context.Context, runID string, result NodeResult, status string) error
}
