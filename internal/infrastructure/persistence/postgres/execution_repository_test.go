package postgres

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	execdomain "github.com/duragraph/duragraph/internal/domain/execution"
	"github.com/jackc/pgx/v5/pgxpool"
)

func openTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	pool, err := pgxpool.New(context.Background(), testDSN)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

// TestExecutionRepositoryRecordsNodeExecutionsInOrder verifies
// SaveNodeExecution rows come back from GetExecutionHistory in dispatch
// order, matching the scheduler's audit-trail contract.
func TestExecutionRepositoryRecordsNodeExecutionsInOrder(t *testing.T) {
	pool := openTestPool(t)
	repo := NewExecutionRepository(pool)
	ctx := context.Background()
	runID := uuid.NewString()

	require.NoError(t, repo.SaveNodeExecution(ctx, execdomain.NodeExecution{
		RunID: runID, NodeID: "start", NodeKind: "start", Status: "completed", Output: "ok", DurationMs: 1,
	}))
	require.NoError(t, repo.SaveNodeExecution(ctx, execdomain.NodeExecution{
		RunID: runID, NodeID: "agent", NodeKind: "agent", Status: "completed", Output: "done", DurationMs: 42,
	}))

	history, err := repo.GetExecutionHistory(ctx, runID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, "start", history[0].NodeID)
	require.Equal(t, "agent", history[1].NodeID)
	require.Equal(t, int64(42), history[1].DurationMs)
}

// TestExecutionRepositorySaveRunResultUpserts verifies a second call for
// the same run_id updates the row rather than conflicting, since the
// scheduler calls SaveRunResult exactly once per run but a retried
// dispatch could call it again with a corrected status.
func TestExecutionRepositorySaveRunResultUpserts(t *testing.T) {
	pool := openTestPool(t)
	repo := NewExecutionRepository(pool)
	ctx := context.Background()
	runID := uuid.NewString()

	require.NoError(t, repo.SaveRunResult(ctx, runID, execdomain.NodeResult{Output: "first"}, "error"))
	require.NoError(t, repo.SaveRunResult(ctx, runID, execdomain.NodeResult{Output: "final"}, "completed"))

	var output, status string
	row := pool.QueryRow(ctx, `SELECT output, status FROM run_results WHERE run_id = $1`, runID)
	require.NoError(t, row.Scan(&output, &status))
	require.Equal(t, "final", output)
	require.Equal(t, "completed", status)
}
