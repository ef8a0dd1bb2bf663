// Package composition wires the concrete collaborators (LLM providers,
// tool/subflow/memory registries, the handler registry) into a running
// domain/execution.Engine, the way cmd/server/main.go used to assemble the
// teacher's CRUD command/query handlers by hand.
package composition

import (
	"github.com/duragraph/duragraph/cmd/server/config"
	execdomain "github.com/duragraph/duragraph/internal/domain/execution"
	"github.com/duragraph/duragraph/internal/domain/subflow"
	infraexec "github.com/duragraph/duragraph/internal/infrastructure/execution"
	"github.com/duragraph/duragraph/internal/infrastructure/llm"
	"github.com/duragraph/duragraph/internal/infrastructure/memory"
	"github.com/duragraph/duragraph/internal/infrastructure/monitoring"
	"github.com/duragraph/duragraph/internal/infrastructure/tools"
	"github.com/duragraph/duragraph/internal/infrastructure/tracing"
	"github.com/duragraph/duragraph/internal/pkg/eventbus"
	"github.com/duragraph/duragraph/internal/pkg/tokencounter"
)

// Runtime bundles everything a run needs: the scheduler engine plus the
// collaborators execdomain.DefaultRunOptions() leaves for the caller to
// supply.
type Runtime struct {
	Engine          *execdomain.Engine
	Tools           *tools.Invoker
	ToolRegistry    *tools.Registry
	Memory          execdomain.MemoryAdapter
	SubflowRegistry *subflow.Registry
	TokenCounter    *tokencounter.Counter
	Compaction      execdomain.Compactor
	DefaultModel    string
	Options         execdomain.RunOptions
}

// Build assembles a Runtime from configuration. repo may be nil, in which
// case an in-memory execution.Repository is used (CLI `run`);
// pass a durable adapter for `serve`. metrics may be nil, in which case
// node/tool callbacks are left unset.
func Build(cfg *config.Config, bus *eventbus.EventBus, repo execdomain.Repository, metrics *monitoring.Metrics) *Runtime {
	provider := buildProvider(cfg.LLM)

	toolRegistry := tools.NewRegistry()
	_ = tools.RegisterBuiltinTools(toolRegistry)

	mem := buildMemory(cfg.Execution)
	_ = tools.RegisterMemoryTool(toolRegistry, mem)

	subflowRegistry := subflow.NewRegistry()
	counter := tokencounter.NewCounter()
	compactor := execdomain.NewDefaultCompactor()

	if repo == nil {
		repo = infraexec.NewInMemoryRepository()
	}

	handlers := infraexec.BuildHandlerRegistry(provider)
	engine := execdomain.NewEngine(handlers, bus, repo)

	invoker := tools.NewInvoker(toolRegistry)

	opts := execdomain.DefaultRunOptions()
	opts.DefaultModel = cfg.LLM.DefaultModel
	opts.MaxNodeExecutions = cfg.Execution.MaxNodeExecutions
	opts.MaxSubflowDepth = cfg.Execution.MaxSubflowDepth
	opts.MaxToolIterations = cfg.Execution.MaxToolIterations
	opts.OnMaxToolIterations = cfg.Execution.OnMaxToolIterations
	opts.Tools = invoker
	opts.Memory = mem
	opts.SubflowRegistry = subflowRegistry
	opts.TokenCounter = counter
	opts.Compaction = compactor

	if metrics != nil {
		opts.Callbacks.OnStatus = func(nodeID string, status execdomain.NodeStatus) {
			metrics.RecordNodeStatus(nodeID, string(status))
		}
		opts.Callbacks.OnToolCallEvent = func(evt execdomain.ToolCallEvent) {
			metrics.RecordToolCallEvent(evt.Name, evt.Err != "")
		}
		opts.Callbacks.OnTokenUsage = func(usage execdomain.TokenUsage) {
			metrics.RecordLLMRequest("", usage.Model, "ok", 0, usage.PromptTokens, usage.CompletionTokens)
		}
	}
	opts.Callbacks.OnNodeSpan = tracing.NodeSpanCallback("duragraph/scheduler")

	return &Runtime{
		Engine:          engine,
		Tools:           invoker,
		ToolRegistry:    toolRegistry,
		Memory:          mem,
		SubflowRegistry: subflowRegistry,
		TokenCounter:    counter,
		Compaction:      compactor,
		DefaultModel:    cfg.LLM.DefaultModel,
		Options:         opts,
	}
}

func buildProvider(cfg config.LLMConfig) llm.Provider {
	providers := map[string]llm.Provider{}
	if cfg.OpenAIAPIKey != "" {
		providers["openai"] = llm.NewOpenAIClient(cfg.OpenAIAPIKey)
		providers["gpt"] = providers["openai"]
	}
	if cfg.AnthropicAPIKey != "" {
		providers["anthropic"] = llm.NewAnthropicClient(cfg.AnthropicAPIKey)
		providers["claude"] = providers["anthropic"]
	}
	return llm.NewRouter(providers)
}

func buildMemory(cfg config.ExecutionConfig) execdomain.MemoryAdapter {
	if cfg.MemoryBackend == "redis" {
		if adapter, err := memory.NewRedisAdapter(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB); err == nil {
			return adapter
		}
	}
	return memory.NewInMemoryAdapter()
}
