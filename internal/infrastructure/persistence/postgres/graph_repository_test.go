package postgres

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/duragraph/duragraph/internal/domain/workflow"
)

func testGraph(t *testing.T, workflowID string) *workflow.Graph {
	t.Helper()
	nodes := []workflow.Node{
		{ID: "start", Kind: workflow.NodeKindStart},
		{ID: "agent", Kind: workflow.NodeKindAgent, Data: map[string]interface{}{"prompt": "hi"}},
	}
	edges := []workflow.Edge{{ID: "e1", Source: "start", Target: "agent"}}
	g, err := workflow.NewGraph(workflowID, "persisted graph", "1.0.0", "a persistence test fixture", nodes, edges, nil)
	require.NoError(t, err)
	return g
}

// TestGraphRepositorySaveAndFindByID verifies a saved graph round-trips
// through Postgres with its nodes/edges/config intact.
func TestGraphRepositorySaveAndFindByID(t *testing.T) {
	pool := openTestPool(t)
	repo := NewGraphRepository(pool, NewEventStore(pool))
	ctx := context.Background()

	g := testGraph(t, uuid.NewString())
	require.NoError(t, repo.Save(ctx, g))

	found, err := repo.FindByID(ctx, g.ID())
	require.NoError(t, err)
	require.Equal(t, g.WorkflowID(), found.WorkflowID())
	require.Equal(t, g.Name(), found.Name())
	require.Len(t, found.Nodes(), 2)
	require.Len(t, found.Edges(), 1)
}

// TestGraphRepositoryFindByWorkflowIDAndVersion verifies version-scoped
// lookup returns the exact published revision, not just any row sharing
// the workflow id.
func TestGraphRepositoryFindByWorkflowIDAndVersion(t *testing.T) {
	pool := openTestPool(t)
	repo := NewGraphRepository(pool, NewEventStore(pool))
	ctx := context.Background()
	workflowID := uuid.NewString()

	g := testGraph(t, workflowID)
	require.NoError(t, repo.Save(ctx, g))

	found, err := repo.FindByWorkflowIDAndVersion(ctx, workflowID, "1.0.0")
	require.NoError(t, err)
	require.Equal(t, g.ID(), found.ID())

	_, err = repo.FindByWorkflowIDAndVersion(ctx, workflowID, "9.9.9")
	require.Error(t, err)
}

// TestGraphRepositoryUpdateOverwritesEditableFields verifies Update
// persists a new name/description in place, under the same id, without
// creating a second row for the workflow.
func TestGraphRepositoryUpdateOverwritesEditableFields(t *testing.T) {
	pool := openTestPool(t)
	repo := NewGraphRepository(pool, NewEventStore(pool))
	ctx := context.Background()
	workflowID := uuid.NewString()

	g := testGraph(t, workflowID)
	require.NoError(t, repo.Save(ctx, g))

	newName, newDesc := "renamed graph", "updated description"
	require.NoError(t, g.Update(&newName, &newDesc, nil, nil, nil))
	require.NoError(t, repo.Update(ctx, g))

	found, err := repo.FindByID(ctx, g.ID())
	require.NoError(t, err)
	require.Equal(t, "renamed graph", found.Name())
	require.Equal(t, "updated description", found.Description())

	revisions, err := repo.FindByWorkflowID(ctx, workflowID)
	require.NoError(t, err)
	require.Len(t, revisions, 1)
}
