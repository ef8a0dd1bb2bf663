package postgres

import (
	"context"
	"encoding/json"

	"github.com/duragraph/duragraph/internal/domain/workflow"
	"github.com/duragraph/duragraph/internal/pkg/errors"
	pkguuid "github.com/duragraph/duragraph/internal/pkg/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// GraphRepository implements workflow.GraphRepository against a single
// `graphs` table, keyed by workflow id and version so a given workflow can
// carry multiple published revisions.
type GraphRepository struct {
	pool       *pgxpool.Pool
	eventStore *EventStore
}

// NewGraphRepository creates a new graph repository.
func NewGraphRepository(pool *pgxpool.Pool, eventStore *EventStore) *GraphRepository {
	return &GraphRepository{pool: pool, eventStore: eventStore}
}

// Save persists a graph aggregate and flushes its recorded events.
func (r *GraphRepository) Save(ctx context.Context, g *workflow.Graph) error {
	nodesJSON, _ := json.Marshal(g.Nodes())
	edgesJSON, _ := json.Marshal(g.Edges())
	configJSON, _ := json.Marshal(g.Config())

	_, err := r.pool.Exec(ctx, `
		INSERT INTO graphs (id, workflow_id, name, version, description, nodes, edges, config, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		g.ID(),
		g.WorkflowID(),
		g.Name(),
		g.Version(),
		g.Description(),
		nodesJSON,
		edgesJSON,
		configJSON,
		g.CreatedAt(),
		g.UpdatedAt(),
	)
	if err != nil {
		return errors.Internal("failed to save graph", err)
	}

	return r.flushEvents(ctx, g)
}

// FindByID retrieves a graph by its storage id.
func (r *GraphRepository) FindByID(ctx context.Context, id string) (*workflow.Graph, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT workflow_id, name, version, description, nodes, edges, config
		FROM graphs
		WHERE id = $1
	`, id)
	return scanGraph(row, id)
}

// FindByWorkflowID retrieves every persisted revision of a workflow.
func (r *GraphRepository) FindByWorkflowID(ctx context.Context, workflowID string) ([]*workflow.Graph, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, workflow_id, name, version, description, nodes, edges, config
		FROM graphs
		WHERE workflow_id = $1
		ORDER BY created_at DESC
	`, workflowID)
	if err != nil {
		return nil, errors.Internal("failed to query graphs", err)
	}
	defer rows.Close()

	graphs := make([]*workflow.Graph, 0)
	for rows.Next() {
		var id, wfID, name, version, description string
		var nodesJSON, edgesJSON, configJSON []byte

		if err := rows.Scan(&id, &wfID, &name, &version, &description, &nodesJSON, &edgesJSON, &configJSON); err != nil {
			return nil, errors.Internal("failed to scan graph", err)
		}

		g, err := buildGraph(wfID, name, version, description, nodesJSON, edgesJSON, configJSON)
		if err != nil {
			continue
		}
		graphs = append(graphs, g)
	}

	return graphs, nil
}

// FindByWorkflowIDAndVersion retrieves a specific published revision.
func (r *GraphRepository) FindByWorkflowIDAndVersion(ctx context.Context, workflowID, version string) (*workflow.Graph, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, description, nodes, edges, config
		FROM graphs
		WHERE workflow_id = $1 AND version = $2
	`, workflowID, version)

	var id, name, description string
	var nodesJSON, edgesJSON, configJSON []byte
	if err := row.Scan(&id, &name, &description, &nodesJSON, &edgesJSON, &configJSON); err != nil {
		return nil, errors.NotFound("graph", workflowID+":"+version)
	}

	return buildGraph(workflowID, name, version, description, nodesJSON, edgesJSON, configJSON)
}

// Update overwrites a graph's editable fields and flushes its events.
func (r *GraphRepository) Update(ctx context.Context, g *workflow.Graph) error {
	nodesJSON, _ := json.Marshal(g.Nodes())
	edgesJSON, _ := json.Marshal(g.Edges())
	configJSON, _ := json.Marshal(g.Config())

	_, err := r.pool.Exec(ctx, `
		UPDATE graphs
		SET name = $1, description = $2, nodes = $3, edges = $4, config = $5, updated_at = $6
		WHERE id = $7
	`,
		g.Name(),
		g.Description(),
		nodesJSON,
		edgesJSON,
		configJSON,
		g.UpdatedAt(),
		g.ID(),
	)
	if err != nil {
		return errors.Internal("failed to update graph", err)
	}

	return r.flushEvents(ctx, g)
}

// Delete removes a graph by id.
func (r *GraphRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM graphs WHERE id = $1`, id); err != nil {
		return errors.Internal("failed to delete graph", err)
	}
	return nil
}

func (r *GraphRepository) flushEvents(ctx context.Context, g *workflow.Graph) error {
	if len(g.Events()) == 0 {
		return nil
	}
	streamID := pkguuid.New()
	if err := r.eventStore.SaveEvents(ctx, streamID, "graph", g.ID(), g.Events()); err != nil {
		return err
	}
	g.ClearEvents()
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanGraph(row rowScanner, id string) (*workflow.Graph, error) {
	var workflowID, name, version, description string
	var nodesJSON, edgesJSON, configJSON []byte

	if err := row.Scan(&workflowID, &name, &version, &description, &nodesJSON, &edgesJSON, &configJSON); err != nil {
		return nil, errors.NotFound("graph", id)
	}

	return buildGraph(workflowID, name, version, description, nodesJSON, edgesJSON, configJSON)
}

func buildGraph(workflowID, name, version, description string, nodesJSON, edgesJSON, configJSON []byte) (*workflow.Graph, error) {
	var nodes []workflow.Node
	var edges []workflow.Edge
	var config map[string]interface{}

	if err := json.Unmarshal(nodesJSON, &nodes); err != nil {
		return nil, errors.Internal("failed to decode graph nodes", err)
	}
	if err := json.Unmarshal(edgesJSON, &edges); err != nil {
		return nil, errors.Internal("failed to decode graph edges", err)
	}
	_ = json.Unmarshal(configJSON, &config)

	return workflow.NewGraph(workflowID, name, version, description, nodes, edges, config)
}
