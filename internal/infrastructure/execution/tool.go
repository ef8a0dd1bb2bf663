package execution

import (
	"context"
	"encoding/json"
	"fmt"

	execdomain "github.com/duragraph/duragraph/internal/domain/execution"
	"github.com/duragraph/duragraph/internal/domain/workflow"
	pkgerrors "github.com/duragraph/duragraph/internal/pkg/errors"
)

// ToolHandler implements the tool node kind: a direct, non-LLM-mediated
// invocation of a single named tool with statically-configured arguments
// (optionally overridden by the node's input, which is parsed as JSON when
// it looks like an object and merged over the configured args).
type ToolHandler struct{}

func NewToolHandler() *ToolHandler { return &ToolHandler{} }

func (h *ToolHandler) Execute(ctx context.Context, ectx *execdomain.ExecutionContext) (execdomain.NodeResult, error) {
	name := ectx.DataString("tool", "")
	if name == "" {
		return execdomain.NodeResult{}, pkgerrors.InvalidInput("tool", "tool node requires a tool name")
	}
	if ectx.Tools == nil {
		return execdomain.NodeResult{}, pkgerrors.NotFound("tool", name)
	}
	if _, ok := ectx.Tools.Get(name); !ok {
		return execdomain.NodeResult{}, pkgerrors.NotFound("tool", name)
	}

	args := map[string]interface{}{}
	if configured, ok := ectx.Node.Data["args"].(map[string]interface{}); ok {
		for k, v := range configured {
			args[k] = v
		}
	}

	var fromInput map[string]interface{}
	if err := json.Unmarshal([]byte(ectx.Input), &fromInput); err == nil {
		for k, v := range fromInput {
			args[k] = v
		}
	} else if ectx.Input != "" {
		args["input"] = ectx.Input
	}

	result, err := ectx.Tools.Execute(ctx, name, args)
	if err != nil {
		return execdomain.NodeResult{}, err
	}

	return execdomain.NodeResult{
		Output:    fmt.Sprintf("%v", result),
		NextNodes: targetsForHandle(ectx, workflow.HandleOutput),
	}, nil
}
