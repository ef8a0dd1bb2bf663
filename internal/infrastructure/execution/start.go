package execution

import (
	"context"

	"github.com/duragraph/duragraph/internal/domain/execution"
)

// StartHandler is a pass-through: output equals input, fan-out to every
// outgoing edge. It never fails.
type StartHandler struct{}

func NewStartHandler() *StartHandler { return &StartHandler{} }

func (h *StartHandler) Execute(ctx context.Context, ectx *execution.ExecutionContext) (execution.NodeResult, error) {
	edges := ectx.GetOutgoingEdges(ectx.Node.ID, "")
	next := make([]string, 0, len(edges))
	for _, e := range edges {
		next = append(next, e.Target)
	}
	return execution.NodeResult{Output: ectx.Input, NextNodes: next}, nil
}
