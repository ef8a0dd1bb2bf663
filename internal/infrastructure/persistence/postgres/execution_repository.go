package postgres

import (
	"context"

	execdomain "github.com/duragraph/duragraph/internal/domain/execution"
	"github.com/duragraph/duragraph/internal/pkg/errors"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ExecutionRepository implements execution.Repository against two tables:
// node_executions (one row per dispatched node, the scheduler's audit
// trail) and run_results (the final output/status of a completed run).
type ExecutionRepository struct {
	pool *pgxpool.Pool
}

// NewExecutionRepository creates a new execution repository.
func NewExecutionRepository(pool *pgxpool.Pool) *ExecutionRepository {
	return &ExecutionRepository{pool: pool}
}

// SaveNodeExecution records a single node dispatch.
func (r *ExecutionRepository) SaveNodeExecution(ctx context.Context, exec execdomain.NodeExecution) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO node_executions (run_id, node_id, node_kind, status, input, output, error, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		exec.RunID,
		exec.NodeID,
		exec.NodeKind,
		exec.Status,
		exec.Input,
		exec.Output,
		exec.Error,
		exec.DurationMs,
	)
	if err != nil {
		return errors.Internal("failed to save node execution", err)
	}
	return nil
}

// GetExecutionHistory returns every recorded dispatch for a run, in
// dispatch order.
func (r *ExecutionRepository) GetExecutionHistory(ctx context.Context, runID string) ([]execdomain.NodeExecution, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, run_id, node_id, node_kind, status, input, output, error, duration_ms
		FROM node_executions
		WHERE run_id = $1
		ORDER BY id ASC
	`, runID)
	if err != nil {
		return nil, errors.Internal("failed to query node executions", err)
	}
	defer rows.Close()

	history := make([]execdomain.NodeExecution, 0)
	for rows.Next() {
		var exec execdomain.NodeExecution
		if err := rows.Scan(&exec.ID, &exec.RunID, &exec.NodeID, &exec.NodeKind,
			&exec.Status, &exec.Input, &exec.Output, &exec.Error, &exec.DurationMs); err != nil {
			return nil, errors.Internal("failed to scan node execution", err)
		}
		history = append(history, exec)
	}

	return history, nil
}

// SaveRunResult upserts the terminal output/status for a run.
func (r *ExecutionRepository) SaveRunResult(ctx context.Context, runID string, result execdomain.NodeResult, status string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO run_results (run_id, output, status)
		VALUES ($1, $2, $3)
		ON CONFLICT (run_id) DO UPDATE SET output = EXCLUDED.output, status = EXCLUDED.status
	`, runID, result.Output, status)
	if err != nil {
		return errors.Internal("failed to save run result", err)
	}
	return nil
}
