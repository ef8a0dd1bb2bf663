package execution

import (
	"context"
	"sync"

	execdomain "github.com/duragraph/duragraph/internal/domain/execution"
)

// InMemoryRepository is a process-local execution.Repository, for the CLI's
// run command and for tests. The durable adapter is
// infrastructure/persistence/postgres.ExecutionRepository.
type InMemoryRepository struct {
	mu         sync.Mutex
	executions []execdomain.NodeExecution
	results    map[string]runResult
}

type runResult struct {
	output execdomain.NodeResult
	status string
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{results: make(map[string]runResult)}
}

func (r *InMemoryRepository) SaveNodeExecution(ctx context.Context, exec execdomain.NodeExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	exec.ID = int64(len(r.executions) + 1)
	r.executions = append(r.executions, exec)
	return nil
}

func (r *InMemoryRepository) GetExecutionHistory(ctx context.Context, runID string) ([]execdomain.NodeExecution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]execdomain.NodeExecution, 0)
	for _, e := range r.executions {
		if e.RunID == runID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *InMemoryRepository) SaveRunResult(ctx context.Context, runID string, result execdomain.NodeResult, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results[runID] = runResult{output: result, status: status}
	return nil
}
