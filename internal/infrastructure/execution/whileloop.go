package execution

import (
	"context"
	"strings"

	execdomain "github.com/duragraph/duragraph/internal/domain/execution"
	"github.com/duragraph/duragraph/internal/domain/workflow"
	"github.com/duragraph/duragraph/internal/infrastructure/llm"
	pkgerrors "github.com/duragraph/duragraph/internal/pkg/errors"
)

// WhileLoopHandler implements conditional iteration over a body subgraph
// (SPEC_FULL §4.6).
type WhileLoopHandler struct {
	provider llm.Provider
}

func NewWhileLoopHandler(provider llm.Provider) *WhileLoopHandler {
	return &WhileLoopHandler{provider: provider}
}

func (h *WhileLoopHandler) Execute(ctx context.Context, ectx *execdomain.ExecutionContext) (execdomain.NodeResult, error) {
	bodyTargets := targetsForHandle(ectx, workflow.HandleBody)
	if len(bodyTargets) == 0 {
		return execdomain.NodeResult{}, pkgerrors.InvalidState("whileLoop", "no body edge configured")
	}
	bodyStartID := bodyTargets[0]

	maxIterations := ectx.DataInt("maxIterations", 10)
	if maxIterations <= 0 {
		maxIterations = 10
	}
	onMax := ectx.DataString("onMaxIterations", "warning")
	conditionPrompt := ectx.DataString("conditionPrompt", "")
	conditionModel := ectx.DataString("conditionModel", ectx.DefaultModel)
	customEvaluatorName := ectx.DataString("customEvaluator", "")
	conditionExpr := ectx.DataString("conditionExpr", "")

	current := ectx.Input
	iteration := 0

	for {
		if iteration > 0 {
			cont, err := h.evaluateCondition(ctx, ectx, customEvaluatorName, conditionExpr, conditionModel, conditionPrompt, current, iteration)
			if err != nil {
				return execdomain.NodeResult{}, err
			}
			if !cont {
				break
			}
		}

		select {
		case <-ctx.Done():
			return execdomain.NodeResult{}, pkgerrors.Cancelled(ectx.State.RunID)
		default:
		}

		result, err := ectx.Runner.ExecuteSubgraph(ctx, bodyStartID, current, ectx.State)
		if err != nil {
			return execdomain.NodeResult{}, err
		}
		current = result.Output
		iteration++

		if iteration >= maxIterations {
			break
		}
	}

	if iteration == maxIterations && onMax == "error" {
		return execdomain.NodeResult{}, pkgerrors.MaxIterationsReached(ectx.Node.ID, maxIterations)
	}

	return execdomain.NodeResult{
		Output:    current,
		NextNodes: targetsForHandle(ectx, workflow.HandleDone),
	}, nil
}

func (h *WhileLoopHandler) evaluateCondition(ctx context.Context, ectx *execdomain.ExecutionContext, customEvaluatorName, conditionExpr, model, prompt, current string, iteration int) (bool, error) {
	if conditionExpr != "" {
		if cont, ok := evalConditionExpr(conditionExpr, current, ectx); ok {
			return cont, nil
		}
	}

	if customEvaluatorName != "" {
		if ev, ok := ectx.CustomEvaluators[customEvaluatorName]; ok {
			return ev(execdomain.CustomEvaluatorInput{
				CurrentInput: current,
				Session:      ectx.SessionID,
				Memory:       ectx.Memory,
				Outputs:      ectx.Outputs,
				Iteration:    iteration,
				LastOutput:   current,
			})
		}
	}

	systemPrompt := `Decide whether a loop should continue. Respond with exactly "continue" or "done".`
	if prompt != "" {
		systemPrompt = prompt + "\n\n" + systemPrompt
	}

	result, err := h.provider.Chat(ctx, model, []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: current},
	}, llm.ChatOptions{Temperature: 0, MaxTokens: 20})
	if err != nil {
		return false, pkgerrors.Provider(model, err)
	}

	if ectx.TokenCounter != nil {
		ectx.TokenCounter.Record(execdomain.TokenUsage{Model: model, PromptTokens: result.Usage.PromptTokens, CompletionTokens: result.Usage.CompletionTokens, TotalTokens: result.Usage.TotalTokens})
	}

	return strings.Contains(strings.ToLower(result.Content), "continue"), nil
}
