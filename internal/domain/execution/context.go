package execution

import (
	"context"
	"time"

	"github.com/duragraph/duragraph/internal/domain/workflow"
)

// Attachment is a non-text input carried alongside a node's input string.
type Attachment struct {
	Type     string `json:"type"` // image, audio, video, file
	URL      string `json:"url,omitempty"`
	Name     string `json:"name,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
}

// TokenUsage reports a single provider call's token accounting.
type TokenUsage struct {
	Model            string `json:"model"`
	PromptTokens     int    `json:"promptTokens"`
	CompletionTokens int    `json:"completionTokens"`
	TotalTokens      int    `json:"totalTokens"`
}

// ToolCallEvent is reported to context.onToolCallEvent as a tool call is
// dispatched and again as it resolves.
type ToolCallEvent struct {
	Name   string                 `json:"name"`
	Args   map[string]interface{} `json:"args"`
	Result string                 `json:"result,omitempty"`
	Err    string                 `json:"error,omitempty"`
}

// HITLRequest is issued by a handler awaiting external approval.
type HITLRequest struct {
	ID        string                 `json:"id"`
	RunID     string                 `json:"runId"`
	NodeID    string                 `json:"nodeId"`
	NodeLabel string                 `json:"nodeLabel"`
	Mode      string                 `json:"mode"`
	Prompt    string                 `json:"prompt"`
	Context   map[string]interface{} `json:"context,omitempty"`
	Options   []string               `json:"options,omitempty"`
	CreatedAt time.Time              `json:"createdAt"`
	ExpiresAt time.Time              `json:"expiresAt"`
}

// HITLAction is the resolution of a HITLRequest.
type HITLAction string

const (
	HITLApprove HITLAction = "approve"
	HITLReject  HITLAction = "reject"
)

// HITLResponse is what context.onHITLRequest returns, either from a real
// external resolution or synthesized by the HITL gate callback on timeout.
type HITLResponse struct {
	Action HITLAction             `json:"action"`
	Reason string                 `json:"reason,omitempty"`
	Data   map[string]interface{} `json:"data,omitempty"`
}

// CustomEvaluatorInput is what a while-loop's named evaluator receives.
type CustomEvaluatorInput struct {
	CurrentInput string
	Session      string
	Memory       MemoryAdapter
	Outputs      map[string]string
	Iteration    int
	LastOutput   string
}

// CustomEvaluator decides whether a while-loop should continue iterating.
type CustomEvaluator func(in CustomEvaluatorInput) (shouldContinue bool, err error)

// MemoryEntry is one record in the Memory Adapter.
type MemoryEntry struct {
	ID       string                 `json:"id"`
	Content  string                 `json:"content"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// MemoryQuery filters a Memory Adapter query.
type MemoryQuery struct {
	SessionID string
	Text      string
	Limit     int
	Filter    map[string]interface{}
}

// MemoryAdapter is the interface long-term memory nodes and tools use.
type MemoryAdapter interface {
	Store(entry MemoryEntry) error
	Query(q MemoryQuery) ([]MemoryEntry, error)
}

// SubflowDefinition is a registered, reusable workflow.
type SubflowDefinition struct {
	ID          string
	Name        string
	Description string
	Inputs      []SubflowPort
	Outputs     []SubflowPort
	Workflow    *workflow.Graph
}

// SubflowPort is one typed input/output port on a subflow definition.
type SubflowPort struct {
	ID       string
	Name     string
	Type     string // string, number, object, array, any
	Required bool
	Default  interface{}
}

// SubflowRegistry is the process-wide name -> definition collaborator.
type SubflowRegistry interface {
	Register(def SubflowDefinition) error
	Get(id string) (SubflowDefinition, bool)
	List() []SubflowDefinition
	Has(id string) bool
}

// ToolDescriptor is a tool's LLM-facing shape.
type ToolDescriptor struct {
	Name        string
	Description string
	Parameters  map[string]interface{}
}

// ToolInvoker is the subset of the Tool Registry node handlers call
// through. Concrete tool registration/management lives in
// infrastructure/tools.
type ToolInvoker interface {
	Get(name string) (ToolDescriptor, bool)
	Execute(ctx context.Context, name string, args map[string]interface{}) (map[string]interface{}, error)
	Schemas(names []string) []map[string]interface{}
	Names() []string
}

// ModelCapabilities describes what a model accepts/returns.
type ModelCapabilities struct {
	InputModalities    map[string]bool
	OutputModalities    map[string]bool
	ContextLength       int
	SupportedParameters map[string]bool
}

// Callbacks are the optional hooks a scheduler run may supply; handlers
// call them at-least-once in the order documented per node kind and must
// nil-check before invoking.
type Callbacks struct {
	OnToken          func(string)
	OnReasoning      func(string)
	OnBranchStart    func(branchID, label string)
	OnBranchToken    func(branchID, label, token string)
	OnBranchComplete func(branchID, label, output string)
	OnTokenUsage     func(TokenUsage)
	OnToolCallEvent  func(ToolCallEvent)
	OnToolCall       func(name string, args map[string]interface{}) (string, error)
	OnHITLRequest    func(HITLRequest) (HITLResponse, error)
	OnStatus         func(nodeID string, status NodeStatus)

	// OnNodeSpan, if set, wraps a single node dispatch in a tracing span. It
	// returns a context to pass into the handler (carrying the started span)
	// and an end func the scheduler calls with the dispatch's error (nil on
	// success) once the handler returns.
	OnNodeSpan func(ctx context.Context, nodeID, nodeKind string) (context.Context, func(err error))
}

// SubgraphRunner is the re-entrant execution surface the scheduler exposes
// to handlers that drive nested runs (parallel branches, while-loop bodies,
// subflow invocations).
type SubgraphRunner interface {
	ExecuteSubgraph(ctx context.Context, startNodeID, input string, state *RunState) (NodeResult, error)
	ExecuteWorkflow(ctx context.Context, wf *workflow.Graph, text string, attachments []Attachment, opts RunOptions) (NodeResult, error)
}

// ExecutionContext is the read/append-only facade the scheduler builds for
// each node dispatch.
type ExecutionContext struct {
	Ctx         context.Context
	Node        workflow.Node
	Graph       *workflow.Graph
	Input       string
	Attachments []Attachment
	History     []ChatMessage
	Outputs     map[string]string
	NodeChain   []string
	SessionID   string
	State       *RunState

	Callbacks Callbacks

	Memory           MemoryAdapter
	SubflowRegistry  SubflowRegistry
	Tools            ToolInvoker
	CustomEvaluators map[string]CustomEvaluator
	TokenCounter     TokenCounter
	Compaction       Compactor

	DefaultModel      string
	MaxToolIterations int
	Debug             bool
	NodeOverrides     map[string]map[string]interface{}

	Runner SubgraphRunner
}

// GetNode looks up a node in the owning graph by id.
func (e *ExecutionContext) GetNode(id string) (workflow.Node, bool) {
	return e.Graph.Node(id)
}

// GetOutgoingEdges returns edges sourced at nodeID on the given handle.
func (e *ExecutionContext) GetOutgoingEdges(nodeID, sourceHandle string) []workflow.Edge {
	return e.Graph.OutgoingEdges(nodeID, sourceHandle)
}

// Data reads a key from the current node's data record, applying any
// nodeOverrides the run was started with.
func (e *ExecutionContext) Data(key string) (interface{}, bool) {
	if e.NodeOverrides != nil {
		if override, ok := e.NodeOverrides[e.Node.ID]; ok {
			if v, ok := override[key]; ok {
				return v, true
			}
		}
	}
	if e.Node.Data == nil {
		return nil, false
	}
	v, ok := e.Node.Data[key]
	return v, ok
}

func (e *ExecutionContext) DataString(key, def string) string {
	v, ok := e.Data(key)
	if !ok {
		return def
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return def
	}
	return s
}

func (e *ExecutionContext) DataInt(key string, def int) int {
	v, ok := e.Data(key)
	if !ok {
		return def
	}
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	}
	return def
}

func (e *ExecutionContext) DataBool(key string, def bool) bool {
	v, ok := e.Data(key)
	if !ok {
		return def
	}
	b, ok := v.(bool)
	if !ok {
		return def
	}
	return b
}

// RunOptions are the execution options recognized by Scheduler.Run and by
// nested executeWorkflow invocations.
type RunOptions struct {
	SessionID           string
	DefaultModel        string
	MaxNodeExecutions   int
	MaxSubflowDepth     int
	MaxToolIterations   int
	OnMaxToolIterations string
	Tools               ToolInvoker
	CustomEvaluators    map[string]CustomEvaluator
	Memory              MemoryAdapter
	SubflowRegistry     SubflowRegistry
	TokenCounter        TokenCounter
	Compaction          Compactor
	Debug               bool
	NodeOverrides       map[string]map[string]interface{}
	Callbacks           Callbacks

	subflowDepth int
	shareHistory bool
}

// DefaultRunOptions fills in the spec's documented defaults.
func DefaultRunOptions() RunOptions {
	return RunOptions{
		MaxNodeExecutions:   100,
		MaxSubflowDepth:     10,
		MaxToolIterations:   10,
		OnMaxToolIterations: "warning",
	}
}
