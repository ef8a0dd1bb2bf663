package execution

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sync/errgroup"

	execdomain "github.com/duragraph/duragraph/internal/domain/execution"
	"github.com/duragraph/duragraph/internal/domain/workflow"
	"github.com/duragraph/duragraph/internal/infrastructure/llm"
	pkgerrors "github.com/duragraph/duragraph/internal/pkg/errors"
)

// ParallelHandler implements fan-out to N concurrent branches with optional
// fan-in merge or per-branch splitter routing (SPEC_FULL §4.4).
type ParallelHandler struct {
	provider llm.Provider
}

func NewParallelHandler(provider llm.Provider) *ParallelHandler {
	return &ParallelHandler{provider: provider}
}

type branchConfig struct {
	ID    string
	Label string
	Model string
	Prompt string
	Tools []string
}

type branchOutcome struct {
	ID     string
	Label  string
	Output string
	Err    error
}

func (h *ParallelHandler) Execute(ctx context.Context, ectx *execdomain.ExecutionContext) (execdomain.NodeResult, error) {
	branches := parseBranches(ectx.Node.Data["branches"])
	if len(branches) == 0 {
		return execdomain.NodeResult{}, pkgerrors.InvalidState("parallel", "no branches configured")
	}

	mergeEnabled := ectx.DataBool("mergeEnabled", true)
	branchTimeoutMs := ectx.DataInt("branchTimeout", 300000)

	results := xsync.NewMapOf[string, branchOutcome]()

	var g errgroup.Group
	for _, br := range branches {
		br := br
		g.Go(func() error {
			branchCtx, cancel := context.WithTimeout(ctx, time.Duration(branchTimeoutMs)*time.Millisecond)
			defer cancel()

			if ectx.Callbacks.OnBranchStart != nil {
				ectx.Callbacks.OnBranchStart(br.ID, br.Label)
			}

			onToken := func(tok string) {
				if ectx.Callbacks.OnBranchToken != nil {
					ectx.Callbacks.OnBranchToken(br.ID, br.Label, tok)
				}
			}

			cfg := agentLoopConfig{
				NodeID:            ectx.Node.ID + ":" + br.ID,
				NodeLabel:         br.Label,
				Model:             br.Model,
				SystemPrompt:      br.Prompt,
				Input:             ectx.Input,
				Attachments:       ectx.Attachments,
				ToolNames:         br.Tools,
				MaxToolIterations: ectx.MaxToolIterations,
				OnToken:           onToken,
			}

			res, err := runAgentLoop(branchCtx, h.provider, ectx, cfg)

			outcome := branchOutcome{ID: br.ID, Label: br.Label}
			if err != nil {
				outcome.Err = err
			} else {
				outcome.Output = res.Output
			}
			results.Store(br.ID, outcome)
			ectx.State.RecordBranchOutput(ectx.Node.ID, br.ID, outcome.Output)

			if ectx.Callbacks.OnBranchComplete != nil {
				ectx.Callbacks.OnBranchComplete(br.ID, br.Label, outcome.Output)
			}

			// Branch failures are recorded, never propagated: every branch
			// must settle regardless of its siblings' outcomes.
			return nil
		})
	}
	_ = g.Wait()

	ordered := make([]branchOutcome, 0, len(branches))
	for _, br := range branches {
		if outcome, ok := results.Load(br.ID); ok {
			ordered = append(ordered, outcome)
		}
	}

	if mergeEnabled {
		return h.merge(ctx, ectx, ordered)
	}
	return h.split(ctx, ectx, ordered)
}

func (h *ParallelHandler) merge(ctx context.Context, ectx *execdomain.ExecutionContext, outcomes []branchOutcome) (execdomain.NodeResult, error) {
	var body strings.Builder
	var errs strings.Builder
	for _, o := range outcomes {
		if o.Err != nil {
			fmt.Fprintf(&errs, "- %s: %s\n", o.Label, o.Err.Error())
			continue
		}
		fmt.Fprintf(&body, "## %s\n%s\n\n", o.Label, o.Output)
	}
	if errs.Len() > 0 {
		body.WriteString("## Errors\n")
		body.WriteString(errs.String())
	}
	concatenation := body.String()

	output := concatenation
	mergePrompt := ectx.DataString("prompt", "")
	if mergePrompt != "" {
		mergeModel := ectx.DataString("model", ectx.DefaultModel)
		onMergeToken := func(tok string) {
			if ectx.Callbacks.OnBranchToken != nil {
				ectx.Callbacks.OnBranchToken("__merge__", "Merge", tok)
			}
			if ectx.Callbacks.OnToken != nil {
				ectx.Callbacks.OnToken(tok)
			}
		}

		result, err := h.provider.Chat(ctx, mergeModel, []llm.Message{
			{Role: "system", Content: mergePrompt},
			{Role: "user", Content: concatenation},
		}, llm.ChatOptions{OnToken: onMergeToken})
		if err != nil {
			return execdomain.NodeResult{}, pkgerrors.Provider(mergeModel, err)
		}
		if ectx.TokenCounter != nil {
			ectx.TokenCounter.Record(execdomain.TokenUsage{Model: mergeModel, PromptTokens: result.Usage.PromptTokens, CompletionTokens: result.Usage.CompletionTokens, TotalTokens: result.Usage.TotalTokens})
		}
		output = result.Content
	}

	return execdomain.NodeResult{
		Output:    output,
		NextNodes: targetsForHandle(ectx, workflow.HandleMerged),
	}, nil
}

// split drives splitter-mode routing: since a single NodeResult cannot carry
// distinct inputs to distinct next nodes through the scheduler's frontier,
// each branch's downstream subgraph is driven directly via executeSubgraph,
// carrying that branch's own output as input. The parallel node itself
// reports no further frontier transitions.
func (h *ParallelHandler) split(ctx context.Context, ectx *execdomain.ExecutionContext, outcomes []branchOutcome) (execdomain.NodeResult, error) {
	targetInputs := make(map[string]string)
	targetOrder := make([]string, 0)

	for _, o := range outcomes {
		edges := ectx.GetOutgoingEdges(ectx.Node.ID, o.ID)
		for _, e := range edges {
			if _, seen := targetInputs[e.Target]; !seen {
				targetOrder = append(targetOrder, e.Target)
			}
			targetInputs[e.Target] = o.Output
		}
	}

	var last execdomain.NodeResult
	for _, target := range targetOrder {
		res, err := ectx.Runner.ExecuteSubgraph(ctx, target, targetInputs[target], ectx.State)
		if err != nil {
			return execdomain.NodeResult{}, err
		}
		last = res
	}

	metadata := map[string]interface{}{"splitTargets": targetOrder}
	return execdomain.NodeResult{Output: last.Output, NextNodes: nil, Metadata: metadata}, nil
}

func parseBranches(v interface{}) []branchConfig {
	list, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]branchConfig, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		bc := branchConfig{
			ID:     stringOr(m["id"], ""),
			Label:  stringOr(m["label"], ""),
			Model:  stringOr(m["model"], ""),
			Prompt: stringOr(m["prompt"], ""),
			Tools:  stringSlice(m["tools"]),
		}
		if bc.ID == "" {
			continue
		}
		if bc.Label == "" {
			bc.Label = bc.ID
		}
		out = append(out, bc)
	}
	return out
}

func stringOr(v interface{}, def string) string {
	if s, ok := v.(string); ok {
		return s
	}
	return def
}
