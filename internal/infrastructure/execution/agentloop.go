package execution

import (
	"context"
	"fmt"
	"strings"
	"time"

	execdomain "github.com/duragraph/duragraph/internal/domain/execution"
	"github.com/duragraph/duragraph/internal/infrastructure/llm"
	pkgerrors "github.com/duragraph/duragraph/internal/pkg/errors"
	pkguuid "github.com/duragraph/duragraph/internal/pkg/uuid"
)

// agentLoopConfig configures one LLM-call-with-tool-loop invocation, shared
// by the agent node handler and each parallel branch runner.
type agentLoopConfig struct {
	NodeID              string
	NodeLabel           string
	Model               string
	SystemPrompt        string
	Input               string
	Attachments         []execdomain.Attachment
	ToolNames           []string
	MaxToolIterations   int
	OnMaxToolIterations string
	OnToken             func(string)
	OnReasoning         func(string)
}

type agentLoopResult struct {
	Output  string
	Warning bool
}

// runAgentLoop implements SPEC_FULL §4.3's system-message composition,
// history dedup, tool resolution, and bounded tool-calling loop. It is
// reused verbatim by the parallel node's per-branch runs.
func runAgentLoop(ctx context.Context, provider llm.Provider, ectx *execdomain.ExecutionContext, cfg agentLoopConfig) (agentLoopResult, error) {
	model := cfg.Model
	if model == "" {
		model = ectx.DefaultModel
	}
	caps := provider.GetModelCapabilities(model)

	systemPrompt := buildSystemPrompt(cfg.SystemPrompt, ectx)
	userContent := buildUserContent(cfg.Input, cfg.Attachments, caps)

	messages := make([]execdomain.ChatMessage, 0, len(ectx.History)+2)
	if systemPrompt != "" {
		messages = append(messages, execdomain.ChatMessage{Role: execdomain.RoleSystem, Content: systemPrompt})
	}
	messages = append(messages, ectx.History...)

	dedup := false
	if n := len(ectx.History); n > 0 {
		last := ectx.History[n-1]
		if last.Role == execdomain.RoleUser && last.Content == userContent {
			dedup = true
		}
	}
	if !dedup {
		userMsg := execdomain.ChatMessage{Role: execdomain.RoleUser, Content: userContent}
		messages = append(messages, userMsg)
		ectx.State.AppendHistory(userMsg)
	}

	toolNames := resolveToolNames(ectx, cfg.ToolNames)
	var tools []llm.Tool
	if ectx.Tools != nil && len(toolNames) > 0 {
		for _, schema := range ectx.Tools.Schemas(toolNames) {
			tools = append(tools, llm.Tool{
				Name:        stringField(schema, "name"),
				Description: stringField(schema, "description"),
				Parameters:  mapField(schema, "parameters"),
			})
		}
	}

	maxIter := cfg.MaxToolIterations
	if maxIter <= 0 {
		maxIter = 10
	}
	onCap := cfg.OnMaxToolIterations
	if onCap == "" {
		onCap = "warning"
	}

	opts := llm.ChatOptions{Tools: tools, OnToken: cfg.OnToken, OnReasoning: cfg.OnReasoning}

	var lastContent string
	iteration := 0
	for {
		select {
		case <-ctx.Done():
			return agentLoopResult{}, pkgerrors.Cancelled(ectx.State.RunID)
		default:
		}

		if ectx.Compaction != nil && ectx.Compaction.ShouldCompact(messages, model, ectx.TokenCounter, toExecCapabilities(caps)) {
			summarize := func(systemPrompt, userContent string) (string, error) {
				res, err := provider.Chat(ctx, model, []llm.Message{
					{Role: "system", Content: systemPrompt},
					{Role: "user", Content: userContent},
				}, llm.ChatOptions{})
				if err != nil {
					return "", err
				}
				return res.Content, nil
			}
			compacted, err := ectx.Compaction.Compact(messages, summarize)
			if err == nil {
				messages = compacted
			}
		}

		if iteration >= maxIter {
			outcome, retry, err := handleToolCapHit(ectx, cfg.NodeID, maxIter, onCap, lastContent)
			if err != nil {
				return agentLoopResult{}, err
			}
			if !retry {
				return outcome, nil
			}
			maxIter++
		}
		iteration++

		result, err := provider.Chat(ctx, model, toLLMMessages(messages), opts)
		if err != nil {
			return agentLoopResult{}, pkgerrors.Provider(model, err)
		}

		usage := execdomain.TokenUsage{Model: model, PromptTokens: result.Usage.PromptTokens, CompletionTokens: result.Usage.CompletionTokens, TotalTokens: result.Usage.TotalTokens}
		if ectx.TokenCounter != nil {
			ectx.TokenCounter.Record(usage)
		}
		if ectx.Callbacks.OnTokenUsage != nil {
			ectx.Callbacks.OnTokenUsage(usage)
		}

		lastContent = result.Content

		if len(result.ToolCalls) == 0 {
			assistantMsg := execdomain.ChatMessage{Role: execdomain.RoleAssistant, Content: result.Content}
			ectx.State.AppendHistory(assistantMsg)
			return agentLoopResult{Output: result.Content}, nil
		}

		assistantMsg := execdomain.ChatMessage{Role: execdomain.RoleAssistant, Content: result.Content}
		messages = append(messages, assistantMsg)
		ectx.State.AppendHistory(assistantMsg)

		for _, call := range result.ToolCalls {
			if ectx.Callbacks.OnToolCallEvent != nil {
				ectx.Callbacks.OnToolCallEvent(execdomain.ToolCallEvent{Name: call.Name, Args: call.Arguments})
			}

			output, err := invokeTool(ctx, ectx, call.Name, call.Arguments)

			ev := execdomain.ToolCallEvent{Name: call.Name, Args: call.Arguments, Result: output}
			if err != nil {
				ev.Err = err.Error()
				output = fmt.Sprintf("error: %s", err.Error())
			}
			if ectx.Callbacks.OnToolCallEvent != nil {
				ectx.Callbacks.OnToolCallEvent(ev)
			}

			resultMsg := execdomain.ChatMessage{Role: execdomain.RoleSystem, Content: fmt.Sprintf("[Tool Result: %s]\n%s", call.Name, output)}
			messages = append(messages, resultMsg)
			ectx.State.AppendHistory(resultMsg)
		}
	}
}

// invokeTool dispatches through the resolved Tool Registry handler, falling
// back to context.onToolCall when no registry entry matches.
func invokeTool(ctx context.Context, ectx *execdomain.ExecutionContext, name string, args map[string]interface{}) (string, error) {
	if ectx.Tools != nil {
		if _, ok := ectx.Tools.Get(name); ok {
			res, err := ectx.Tools.Execute(ctx, name, args)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%v", res), nil
		}
	}
	if ectx.Callbacks.OnToolCall != nil {
		return ectx.Callbacks.OnToolCall(name, args)
	}
	return "", fmt.Errorf("no handler registered for tool %q", name)
}

func handleToolCapHit(ectx *execdomain.ExecutionContext, nodeID string, maxIter int, onCap, lastContent string) (agentLoopResult, bool, error) {
	switch onCap {
	case "error":
		return agentLoopResult{}, false, pkgerrors.MaxToolIterationsReached(nodeID, maxIter)
	case "hitl":
		if ectx.Callbacks.OnHITLRequest == nil {
			return agentLoopResult{}, false, pkgerrors.MaxToolIterationsReached(nodeID, maxIter)
		}
		req := execdomain.HITLRequest{
			ID:        pkguuid.New(),
			RunID:     ectx.State.RunID,
			NodeID:    nodeID,
			NodeLabel: ectx.Node.Label,
			Mode:      "tool_iteration_cap",
			Prompt:    fmt.Sprintf("Node %s reached its tool-call iteration cap (%d). Approve another round?", nodeID, maxIter),
			CreatedAt: time.Now(),
			ExpiresAt: time.Now().Add(5 * time.Minute),
		}
		resp, err := ectx.Callbacks.OnHITLRequest(req)
		if err != nil {
			return agentLoopResult{}, false, err
		}
		if resp.Action == execdomain.HITLApprove {
			return agentLoopResult{}, true, nil
		}
		return agentLoopResult{}, false, pkgerrors.HITLRejected(req.ID, resp.Reason)
	default:
		return agentLoopResult{
			Output:  fmt.Sprintf("Warning: Maximum tool iterations (%d) reached. %s", maxIter, lastContent),
			Warning: true,
		}, false, nil
	}
}

// resolveToolNames intersects the node's configured tool names with the
// context-provided global tool set; an empty node configuration means "use
// every global tool".
func resolveToolNames(ectx *execdomain.ExecutionContext, configured []string) []string {
	if ectx.Tools == nil {
		return nil
	}
	global := ectx.Tools.Names()
	if len(configured) == 0 {
		return global
	}

	allowed := make(map[string]bool, len(global))
	for _, name := range global {
		allowed[name] = true
	}

	out := make([]string, 0, len(configured))
	for _, name := range configured {
		if allowed[name] {
			out = append(out, name)
		}
	}
	return out
}

// buildSystemPrompt composes the configured prompt with a context block
// summarizing prior nodes' outputs along the chain executed so far.
func buildSystemPrompt(configured string, ectx *execdomain.ExecutionContext) string {
	block := buildContextBlock(ectx)
	switch {
	case configured == "" && block == "":
		return ""
	case configured == "":
		return block
	case block == "":
		return configured
	default:
		return configured + "\n\n" + block
	}
}

func buildContextBlock(ectx *execdomain.ExecutionContext) string {
	if len(ectx.NodeChain) == 0 {
		return ""
	}
	var b strings.Builder
	wrote := false
	for _, nodeID := range ectx.NodeChain {
		if nodeID == ectx.Node.ID {
			continue
		}
		output, ok := ectx.Outputs[nodeID]
		if !ok || output == "" {
			continue
		}
		if !wrote {
			b.WriteString("Context from previous agents:\n")
			wrote = true
		}
		fmt.Fprintf(&b, "\n### %s\n%s\n", nodeID, output)
	}
	if !wrote {
		return ""
	}
	return b.String()
}

// buildUserContent appends attachment references the model's declared input
// modalities admit; images require explicit "image" capability, everything
// else is included whenever the capability is declared at all.
func buildUserContent(input string, attachments []execdomain.Attachment, caps llm.ModelCapabilities) string {
	if len(attachments) == 0 {
		return input
	}
	var b strings.Builder
	b.WriteString(input)
	for _, a := range attachments {
		if !caps.InputModalities[a.Type] {
			continue
		}
		fmt.Fprintf(&b, "\n[Attachment: %s %s]", a.Type, a.URL)
	}
	return b.String()
}

func toLLMMessages(messages []execdomain.ChatMessage) []llm.Message {
	out := make([]llm.Message, len(messages))
	for i, m := range messages {
		out[i] = llm.Message{Role: string(m.Role), Content: m.Content}
	}
	return out
}

func toExecCapabilities(caps llm.ModelCapabilities) execdomain.ModelCapabilities {
	return execdomain.ModelCapabilities{
		InputModalities:    caps.InputModalities,
		OutputModalities:   caps.OutputModalities,
		ContextLength:      caps.ContextLength,
		SupportedParameters: caps.SupportedParameters,
	}
}

func stringField(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}

func mapField(m map[string]interface{}, key string) map[string]interface{} {
	v, _ := m[key].(map[string]interface{})
	return v
}
