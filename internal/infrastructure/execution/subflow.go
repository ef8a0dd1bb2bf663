package execution

import (
	"context"
	"fmt"
	"strings"

	execdomain "github.com/duragraph/duragraph/internal/domain/execution"
	"github.com/duragraph/duragraph/internal/domain/workflow"
	pkgerrors "github.com/duragraph/duragraph/internal/pkg/errors"
)

// SubflowHandler implements embedded reusable workflow invocation
// (SPEC_FULL §4.7). Subflow-depth enforcement lives in the scheduler's
// ExecuteWorkflow, not here.
type SubflowHandler struct{}

func NewSubflowHandler() *SubflowHandler {
	return &SubflowHandler{}
}

func (h *SubflowHandler) Execute(ctx context.Context, ectx *execdomain.ExecutionContext) (execdomain.NodeResult, error) {
	subflowID := ectx.DataString("subflowId", "")
	if subflowID == "" {
		return execdomain.NodeResult{}, pkgerrors.InvalidInput("subflowId", "subflow node requires subflowId")
	}
	if ectx.SubflowRegistry == nil {
		return execdomain.NodeResult{}, pkgerrors.NotFound("subflow", subflowID)
	}
	def, ok := ectx.SubflowRegistry.Get(subflowID)
	if !ok {
		return execdomain.NodeResult{}, pkgerrors.NotFound("subflow", subflowID)
	}

	mappings, _ := ectx.Node.Data["inputMappings"].(map[string]interface{})

	resolved := make(map[string]string, len(def.Inputs))
	for _, port := range def.Inputs {
		raw, has := mappings[port.ID]
		switch {
		case has:
			resolved[port.ID] = resolveSubflowExpr(raw, ectx)
		case port.Default != nil:
			resolved[port.ID] = fmt.Sprintf("%v", port.Default)
		case port.Required:
			err := h.routeOrPropagate(ectx, pkgerrors.InvalidInput(port.ID, "missing required subflow input mapping"))
			return err.result, err.err
		}
	}

	primaryInput := ""
	if len(def.Inputs) > 0 {
		primaryInput = resolved[def.Inputs[0].ID]
	}

	shareSession := ectx.DataBool("shareSession", true)
	opts := execdomain.RunOptions{}
	if shareSession {
		opts.SessionID = ectx.SessionID
	}

	result, err := ectx.Runner.ExecuteWorkflow(ctx, def.Workflow, primaryInput, ectx.Attachments, opts)
	if err != nil {
		outcome := h.routeOrPropagate(ectx, err)
		return outcome.result, outcome.err
	}

	return execdomain.NodeResult{
		Output:    result.Output,
		NextNodes: targetsForHandle(ectx, workflow.HandleOutput),
	}, nil
}

type subflowOutcome struct {
	result execdomain.NodeResult
	err    error
}

// routeOrPropagate follows §4.7 step 7's failure handling: route to a
// connected error handle with the error string as input, or propagate.
func (h *SubflowHandler) routeOrPropagate(ectx *execdomain.ExecutionContext, err error) subflowOutcome {
	errEdges := targetsForHandle(ectx, workflow.HandleError)
	if len(errEdges) == 0 {
		return subflowOutcome{err: err}
	}
	return subflowOutcome{result: execdomain.NodeResult{Output: err.Error(), NextNodes: errEdges}}
}

// resolveSubflowExpr resolves a literal or "{{expr}}" input-mapping value
// per SPEC_FULL §4.7 step 4.
func resolveSubflowExpr(v interface{}, ectx *execdomain.ExecutionContext) string {
	s, ok := v.(string)
	if !ok {
		return fmt.Sprintf("%v", v)
	}
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "{{") || !strings.HasSuffix(trimmed, "}}") {
		return s
	}

	expr := strings.TrimSpace(trimmed[2 : len(trimmed)-2])
	switch {
	case expr == "output" || expr == "input":
		return ectx.Input
	case expr == "context.sessionId":
		return ectx.SessionID
	case strings.HasPrefix(expr, "outputs."):
		return ectx.Outputs[strings.TrimPrefix(expr, "outputs.")]
	default:
		return ""
	}
}
