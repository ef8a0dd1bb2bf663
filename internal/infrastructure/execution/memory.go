package execution

import (
	"context"
	"strings"

	execdomain "github.com/duragraph/duragraph/internal/domain/execution"
	"github.com/duragraph/duragraph/internal/domain/workflow"
	pkgerrors "github.com/duragraph/duragraph/internal/pkg/errors"
)

// MemoryHandler implements the memory node kind: store or query against the
// Memory Adapter. Mode is read from node data ("store" or "query", default
// "store").
type MemoryHandler struct{}

func NewMemoryHandler() *MemoryHandler { return &MemoryHandler{} }

func (h *MemoryHandler) Execute(ctx context.Context, ectx *execdomain.ExecutionContext) (execdomain.NodeResult, error) {
	if ectx.Memory == nil {
		return execdomain.NodeResult{}, pkgerrors.InvalidState("memory", "no memory adapter configured")
	}

	mode := ectx.DataString("mode", "store")
	next := targetsForHandle(ectx, workflow.HandleOutput)

	switch mode {
	case "query":
		limit := ectx.DataInt("limit", 20)
		entries, err := ectx.Memory.Query(execdomain.MemoryQuery{
			SessionID: ectx.SessionID,
			Text:      ectx.Input,
			Limit:     limit,
		})
		if err != nil {
			return execdomain.NodeResult{}, err
		}
		contents := make([]string, 0, len(entries))
		for _, e := range entries {
			contents = append(contents, e.Content)
		}
		return execdomain.NodeResult{Output: strings.Join(contents, "\n\n"), NextNodes: next}, nil

	default:
		metadata := map[string]interface{}{"sessionId": ectx.SessionID, "nodeId": ectx.Node.ID}
		if err := ectx.Memory.Store(execdomain.MemoryEntry{Content: ectx.Input, Metadata: metadata}); err != nil {
			return execdomain.NodeResult{}, err
		}
		return execdomain.NodeResult{Output: ectx.Input, NextNodes: next}, nil
	}
}
