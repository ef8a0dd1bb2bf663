package execution

import (
	"github.com/expr-lang/expr"

	execdomain "github.com/duragraph/duragraph/internal/domain/execution"
)

// evalExpr evaluates a router/while-loop data.routeExpr or
// data.conditionExpr program against {input, outputs, session}
// (SPEC_FULL §4.16). ok is false whenever the program is absent, fails to
// compile, or fails to evaluate. evalConditionExpr and evalRouteExpr
// additionally reject a result that is not a bool or a string respectively;
// in every such case the caller falls back to the LLM-driven path.
func evalExpr(program, current string, ectx *execdomain.ExecutionContext) (result interface{}, ok bool) {
	if program == "" {
		return nil, false
	}
	env := map[string]interface{}{
		"input":   current,
		"outputs": ectx.Outputs,
		"session": ectx.SessionID,
	}
	out, err := expr.Eval(program, env)
	if err != nil {
		return nil, false
	}
	return out, true
}

func evalConditionExpr(program, current string, ectx *execdomain.ExecutionContext) (shouldContinue bool, ok bool) {
	out, ok := evalExpr(program, current, ectx)
	if !ok {
		return false, false
	}
	b, isBool := out.(bool)
	if !isBool {
		return false, false
	}
	return b, true
}

func evalRouteExpr(program string, ectx *execdomain.ExecutionContext) (routeID string, ok bool) {
	out, ok := evalExpr(program, ectx.Input, ectx)
	if !ok {
		return "", false
	}
	s, isStr := out.(string)
	if !isStr {
		return "", false
	}
	return s, true
}
