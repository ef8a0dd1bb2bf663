package execution

import (
	execdomain "github.com/duragraph/duragraph/internal/domain/execution"
	"github.com/duragraph/duragraph/internal/domain/workflow"
	"github.com/duragraph/duragraph/internal/infrastructure/llm"
)

// BuildHandlerRegistry assembles the scheduler's HandlerRegistry from the
// concrete handler for each node kind, analogous to the teacher's
// GetExecutorForNodeType factory.
func BuildHandlerRegistry(provider llm.Provider) execdomain.HandlerRegistry {
	return execdomain.HandlerRegistry{
		string(workflow.NodeKindStart):     NewStartHandler(),
		string(workflow.NodeKindAgent):     NewAgentHandler(provider),
		string(workflow.NodeKindRouter):    NewRouterHandler(provider),
		string(workflow.NodeKindParallel):  NewParallelHandler(provider),
		string(workflow.NodeKindWhileLoop): NewWhileLoopHandler(provider),
		string(workflow.NodeKindSubflow):   NewSubflowHandler(),
		string(workflow.NodeKindMemory):    NewMemoryHandler(),
		string(workflow.NodeKindTool):      NewToolHandler(),
		string(workflow.NodeKindOutput):    NewOutputHandler(provider),
	}
}
