// Package cli holds the loading/rendering glue shared by the run and
// validate subcommands, kept separate from cmd/server so it can be unit
// tested without pulling in cobra.
package cli

import (
	"encoding/json"
	"os"

	"github.com/duragraph/duragraph/internal/domain/workflow"
	pkgerrors "github.com/duragraph/duragraph/internal/pkg/errors"
)

// graphFile is the on-disk shape of a workflow graph definition: the editor
// exports exactly this shape, modulo the private Graph aggregate's
// bookkeeping fields (id/timestamps), which are assigned fresh on load.
type graphFile struct {
	WorkflowID  string                 `json:"workflowId"`
	Name        string                 `json:"name"`
	Version     string                 `json:"version"`
	Description string                 `json:"description"`
	Nodes       []workflow.Node        `json:"nodes"`
	Edges       []workflow.Edge        `json:"edges"`
	Config      map[string]interface{} `json:"config"`
}

// LoadGraph reads and validates a graph definition file into the domain
// aggregate.
func LoadGraph(path string) (*workflow.Graph, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, pkgerrors.Internal("failed to read graph file", err)
	}

	var gf graphFile
	if err := json.Unmarshal(raw, &gf); err != nil {
		return nil, pkgerrors.Internal("failed to parse graph file", err)
	}

	return workflow.NewGraph(gf.WorkflowID, gf.Name, gf.Version, gf.Description, gf.Nodes, gf.Edges, gf.Config)
}
