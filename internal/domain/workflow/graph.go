package workflow

import (
	"time"

	"github.com/duragraph/duragraph/internal/pkg/errors"
	"github.com/duragraph/duragraph/internal/pkg/eventbus"
	pkguuid "github.com/duragraph/duragraph/internal/pkg/uuid"
)

// NodeKind identifies the behavior a node's handler implements.
type NodeKind string

const (
	NodeKindStart     NodeKind = "start"
	NodeKindAgent     NodeKind = "agent"
	NodeKindRouter    NodeKind = "router"
	NodeKindParallel  NodeKind = "parallel"
	NodeKindWhileLoop NodeKind = "whileLoop"
	NodeKindSubflow   NodeKind = "subflow"
	NodeKindMemory    NodeKind = "memory"
	NodeKindTool      NodeKind = "tool"
	NodeKindOutput    NodeKind = "output"
)

// Reserved edge handles that never participate in normal fan-out routing.
const (
	HandleError    = "error"
	HandleRejected = "rejected"
	HandleOutput   = "output"
	HandleMerged   = "merged"
	HandleBody     = "body"
	HandleDone     = "done"
)

// Node is a single vertex in a workflow graph. Data holds the kind-specific
// configuration record (e.g. an agent's prompt/model, a parallel node's
// branch list); unknown fields in Data are preserved verbatim on round-trip
// since the editor round-trips graphs it does not fully understand.
type Node struct {
	ID          string                 `json:"id"`
	Kind        NodeKind               `json:"kind"`
	Label       string                 `json:"label,omitempty"`
	Description string                 `json:"description,omitempty"`
	Data        map[string]interface{} `json:"data,omitempty"`
	Position    map[string]float64     `json:"position,omitempty"`
}

// Edge connects a source node's handle to a target node's handle. Multiple
// edges may share a source; SourceHandle disambiguates which output the
// edge carries.
type Edge struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	SourceHandle string `json:"sourceHandle,omitempty"`
	Target       string `json:"target"`
	TargetHandle string `json:"targetHandle,omitempty"`
	Label        string `json:"label,omitempty"`
}

// Graph is the workflow aggregate: an immutable-by-convention node/edge set
// plus the metadata the editor persists alongside it. Mutations go through
// Update and are event-sourced like the rest of the domain layer.
type Graph struct {
	id          string
	workflowID  string
	name        string
	version     string
	description string
	nodes       []Node
	edges       []Edge
	config      map[string]interface{}
	createdAt   time.Time
	updatedAt   time.Time

	events []eventbus.Event
}

// NewGraph constructs and statically validates a Graph.
func NewGraph(workflowID, name, version, description string, nodes []Node, edges []Edge, config map[string]interface{}) (*Graph, error) {
	if workflowID == "" {
		return nil, errors.InvalidInput("workflow_id", "workflow_id is required")
	}
	if name == "" {
		return nil, errors.InvalidInput("name", "name is required")
	}
	if version == "" {
		version = "1.0.0"
	}

	if err := validateGraphShape(nodes, edges); err != nil {
		return nil, err
	}

	now := time.Now()
	graphID := pkguuid.New()

	if config == nil {
		config = make(map[string]interface{})
	}

	graph := &Graph{
		id:          graphID,
		workflowID:  workflowID,
		name:        name,
		version:     version,
		description: description,
		nodes:       nodes,
		edges:       edges,
		config:      config,
		createdAt:   now,
		updatedAt:   now,
		events:      make([]eventbus.Event, 0),
	}

	graph.recordEvent(GraphDefined{
		GraphID:     graphID,
		WorkflowID:  workflowID,
		Name:        name,
		Version:     version,
		Description: description,
		Nodes:       nodes,
		Edges:       edges,
		Config:      config,
		OccurredAt:  now,
	})

	return graph, nil
}

func (g *Graph) ID() string                        { return g.id }
func (g *Graph) WorkflowID() string                { return g.workflowID }
func (g *Graph) Name() string                      { return g.name }
func (g *Graph) Version() string                   { return g.version }
func (g *Graph) Description() string               { return g.description }
func (g *Graph) Nodes() []Node                     { return g.nodes }
func (g *Graph) Edges() []Edge                     { return g.edges }
func (g *Graph) Config() map[string]interface{}    { return g.config }
func (g *Graph) CreatedAt() time.Time              { return g.createdAt }
func (g *Graph) UpdatedAt() time.Time              { return g.updatedAt }

// Node looks up a node by id.
func (g *Graph) Node(id string) (Node, bool) {
	for _, n := range g.nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// OutgoingEdges returns edges sourced at nodeID, optionally filtered to a
// single sourceHandle (empty string disables the filter and returns every
// outgoing edge).
func (g *Graph) OutgoingEdges(nodeID, sourceHandle string) []Edge {
	var out []Edge
	for _, e := range g.edges {
		if e.Source != nodeID {
			continue
		}
		if sourceHandle != "" && e.SourceHandle != sourceHandle {
			continue
		}
		out = append(out, e)
	}
	return out
}

// StartNode returns the workflow's unique start node.
func (g *Graph) StartNode() (Node, bool) {
	for _, n := range g.nodes {
		if n.Kind == NodeKindStart {
			return n, true
		}
	}
	return Node{}, false
}

// Update replaces the provided fields, re-validating if nodes/edges change.
func (g *Graph) Update(name, description *string, nodes []Node, edges []Edge, config map[string]interface{}) error {
	if nodes != nil && edges != nil {
		if err := validateGraphShape(nodes, edges); err != nil {
			return err
		}
	}

	now := time.Now()
	event := GraphUpdated{GraphID: g.id, OccurredAt: now}

	if name != nil && *name != "" {
		g.name = *name
		event.Name = name
	}
	if description != nil {
		g.description = *description
		event.Description = description
	}
	if nodes != nil {
		g.nodes = nodes
		event.Nodes = nodes
	}
	if edges != nil {
		g.edges = edges
		event.Edges = edges
	}
	if config != nil {
		g.config = config
		event.Config = config
	}

	g.updatedAt = now
	g.recordEvent(event)
	return nil
}

func (g *Graph) Events() []eventbus.Event { return g.events }
func (g *Graph) ClearEvents()             { g.events = make([]eventbus.Event, 0) }

func (g *Graph) recordEvent(event eventbus.Event) {
	g.events = append(g.events, event)
}

// validateGraphShape enforces the structural invariants every Graph must
// satisfy to exist at all (exactly one start node, no dangling edges).
// Semantic/warning-level checks (dead ends, missing prompts, duplicate
// handles, ...) live in Validator and run just before execution, not at
// construction time, since editors legitimately hold in-progress graphs
// that violate them.
func validateGraphShape(nodes []Node, edges []Edge) error {
	if len(nodes) == 0 {
		return errors.InvalidInput("nodes", "at least one node is required")
	}

	nodeMap := make(map[string]bool, len(nodes))
	startCount := 0

	for _, node := range nodes {
		if node.ID == "" {
			return errors.InvalidInput("node.id", "node ID is required")
		}
		if nodeMap[node.ID] {
			return errors.InvalidInput("node.id", "duplicate node ID: "+node.ID)
		}
		nodeMap[node.ID] = true

		if node.Kind == NodeKindStart {
			startCount++
		}
	}

	if startCount == 0 {
		return errors.InvalidInput("nodes", "workflow must have exactly one start node")
	}
	if startCount > 1 {
		return errors.InvalidInput("nodes", "workflow must have exactly one start node")
	}

	for _, edge := range edges {
		if edge.Source == "" || edge.Target == "" {
			return errors.InvalidInput("edge", "edge source and target are required")
		}
		if !nodeMap[edge.Source] {
			return errors.InvalidInput("edge.source", "source node not found: "+edge.Source)
		}
		if !nodeMap[edge.Target] {
			return errors.InvalidInput("edge.target", "target node not found: "+edge.Target)
		}
	}

	return nil
}
