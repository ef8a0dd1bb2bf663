package workflow

import "fmt"

// Validation codes the Validator may report. Subset names match the
// diagnostics a workflow editor surfaces to the user before a run starts.
const (
	CodeMissingModel          = "MISSING_MODEL"
	CodeEmptyPrompt           = "EMPTY_PROMPT"
	CodeDisconnectedNode      = "DISCONNECTED_NODE"
	CodeMultipleStartNodes    = "MULTIPLE_START_NODES"
	CodeMissingRequiredPort   = "MISSING_REQUIRED_PORT"
	CodeMissingEdgeLabel      = "MISSING_EDGE_LABEL"
	CodeDuplicateSourceHandle = "DUPLICATE_SOURCE_HANDLE"
	CodeMissingConditionPrompt = "MISSING_CONDITION_PROMPT"
	CodeInvalidMaxIterations  = "INVALID_MAX_ITERATIONS"
	CodeMissingSubflowID      = "MISSING_SUBFLOW_ID"
	CodeSubflowNotFound       = "SUBFLOW_NOT_FOUND"
	CodeMissingInputMapping   = "MISSING_INPUT_MAPPING"
	CodeNoSubflowOutputs      = "NO_SUBFLOW_OUTPUTS"
	CodeDeadEndNode           = "DEAD_END_NODE"
)

// Severity distinguishes diagnostics that block a run from ones that are
// merely surfaced to the editor.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is a single validation finding.
type Issue struct {
	Code     string   `json:"code"`
	Severity Severity `json:"severity"`
	NodeID   string   `json:"nodeId,omitempty"`
	EdgeID   string   `json:"edgeId,omitempty"`
	Message  string   `json:"message"`
}

// Validator performs static checks on a graph before it is handed to the
// scheduler. SubflowLookup lets the subflow-existence checks run without
// the Validator depending on the concrete registry implementation.
type Validator struct {
	SubflowLookup func(id string) (exists bool, requiredInputs []string, hasOutputs bool)
}

// NewValidator constructs a Validator. subflowLookup may be nil, in which
// case subflow-existence checks are skipped (useful when validating a
// graph fragment in isolation).
func NewValidator(subflowLookup func(id string) (bool, []string, bool)) *Validator {
	return &Validator{SubflowLookup: subflowLookup}
}

// Validate runs every static check and returns all findings, both errors
// and warnings. HasErrors on the result tells the caller whether the graph
// may be executed.
func (v *Validator) Validate(g *Graph) []Issue {
	var issues []Issue

	nodesByID := make(map[string]Node, len(g.nodes))
	for _, n := range g.nodes {
		nodesByID[n.ID] = n
	}

	issues = append(issues, v.checkStartNodes(g)...)
	issues = append(issues, v.checkConnectivity(g, nodesByID)...)
	issues = append(issues, v.checkDuplicateHandles(g)...)
	issues = append(issues, v.checkEdgeLabels(g)...)

	for _, n := range g.nodes {
		switch n.Kind {
		case NodeKindAgent:
			issues = append(issues, v.checkAgent(g, n)...)
		case NodeKindRouter:
			issues = append(issues, v.checkRouter(g, n)...)
		case NodeKindParallel:
			issues = append(issues, v.checkParallel(g, n)...)
		case NodeKindWhileLoop:
			issues = append(issues, v.checkWhileLoop(g, n)...)
		case NodeKindSubflow:
			issues = append(issues, v.checkSubflow(g, n)...)
		case NodeKindOutput:
			issues = append(issues, v.checkOutput(g, n)...)
		}
	}

	return issues
}

// HasErrors reports whether any issue in the list is error-severity.
func HasErrors(issues []Issue) bool {
	for _, i := range issues {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}

func (v *Validator) checkStartNodes(g *Graph) []Issue {
	var starts []Node
	for _, n := range g.nodes {
		if n.Kind == NodeKindStart {
			starts = append(starts, n)
		}
	}
	if len(starts) <= 1 {
		return nil
	}
	issues := make([]Issue, 0, len(starts))
	for _, n := range starts {
		issues = append(issues, Issue{
			Code: CodeMultipleStartNodes, Severity: SeverityError, NodeID: n.ID,
			Message: "workflow has more than one start node",
		})
	}
	return issues
}

func (v *Validator) checkConnectivity(g *Graph, nodesByID map[string]Node) []Issue {
	var issues []Issue

	incoming := make(map[string]int, len(g.nodes))
	outgoing := make(map[string]int, len(g.nodes))
	for _, e := range g.edges {
		incoming[e.Target]++
		outgoing[e.Source]++
	}

	for _, n := range g.nodes {
		switch n.Kind {
		case NodeKindStart:
			if incoming[n.ID] > 0 {
				issues = append(issues, Issue{
					Code: CodeDisconnectedNode, Severity: SeverityError, NodeID: n.ID,
					Message: "start node must not have incoming edges",
				})
			}
			if outgoing[n.ID] == 0 {
				issues = append(issues, Issue{
					Code: CodeDeadEndNode, Severity: SeverityError, NodeID: n.ID,
					Message: "start node has no outgoing edges",
				})
			}
		case NodeKindOutput:
			if outgoing[n.ID] > 0 {
				issues = append(issues, Issue{
					Code: CodeDeadEndNode, Severity: SeverityWarning, NodeID: n.ID,
					Message: "output node has outgoing edges but is terminal",
				})
			}
			if incoming[n.ID] == 0 {
				issues = append(issues, Issue{
					Code: CodeDisconnectedNode, Severity: SeverityWarning, NodeID: n.ID,
					Message: "output node has no incoming edges",
				})
			}
		default:
			if incoming[n.ID] == 0 {
				issues = append(issues, Issue{
					Code: CodeDisconnectedNode, Severity: SeverityWarning, NodeID: n.ID,
					Message: fmt.Sprintf("node %s has no incoming edges", n.ID),
				})
			}
			if outgoing[n.ID] == 0 {
				issues = append(issues, Issue{
					Code: CodeDeadEndNode, Severity: SeverityWarning, NodeID: n.ID,
					Message: fmt.Sprintf("node %s has no outgoing edges", n.ID),
				})
			}
		}
	}

	return issues
}

func (v *Validator) checkDuplicateHandles(g *Graph) []Issue {
	var issues []Issue
	seen := make(map[string]map[string]bool)
	for _, e := range g.edges {
		if seen[e.Source] == nil {
			seen[e.Source] = make(map[string]bool)
		}
		key := e.SourceHandle
		if seen[e.Source][key] && !handlePermitsFanout(key) {
			issues = append(issues, Issue{
				Code: CodeDuplicateSourceHandle, Severity: SeverityWarning, EdgeID: e.ID, NodeID: e.Source,
				Message: fmt.Sprintf("duplicate edge on source handle %q from node %s", key, e.Source),
			})
		}
		seen[e.Source][key] = true
	}
	return issues
}

// handlePermitsFanout reports whether a handle is expected to carry more
// than one outgoing edge (the start node's default handle, and plain
// pass-through fan-out on the "output" handle both legitimately do).
func handlePermitsFanout(handle string) bool {
	return handle == "" || handle == HandleOutput
}

func (v *Validator) checkEdgeLabels(g *Graph) []Issue {
	var issues []Issue
	bySource := make(map[string]int)
	for _, e := range g.edges {
		bySource[e.Source]++
	}
	for _, e := range g.edges {
		if bySource[e.Source] > 1 && e.Label == "" && e.SourceHandle == "" {
			issues = append(issues, Issue{
				Code: CodeMissingEdgeLabel, Severity: SeverityWarning, EdgeID: e.ID, NodeID: e.Source,
				Message: "edge shares a source with siblings but has neither a label nor a source handle",
			})
		}
	}
	return issues
}

func (v *Validator) checkAgent(g *Graph, n Node) []Issue {
	var issues []Issue
	if s, _ := n.Data["model"].(string); s == "" {
		issues = append(issues, Issue{Code: CodeMissingModel, Severity: SeverityWarning, NodeID: n.ID,
			Message: "agent node has no model configured; the run's defaultModel will be used"})
	}
	if s, _ := n.Data["prompt"].(string); s == "" {
		issues = append(issues, Issue{Code: CodeEmptyPrompt, Severity: SeverityWarning, NodeID: n.ID,
			Message: "agent node has an empty system prompt"})
	}
	return issues
}

func (v *Validator) checkRouter(g *Graph, n Node) []Issue {
	var issues []Issue
	routes := 0
	for _, e := range g.OutgoingEdges(n.ID, "") {
		if e.SourceHandle != HandleError && e.SourceHandle != HandleRejected {
			routes++
		}
	}
	if routes == 0 {
		issues = append(issues, Issue{Code: CodeMissingRequiredPort, Severity: SeverityError, NodeID: n.ID,
			Message: "router has no outgoing edges on a non-reserved handle"})
	}
	return issues
}

func (v *Validator) checkParallel(g *Graph, n Node) []Issue {
	var issues []Issue
	mergeEnabled := true
	if b, ok := n.Data["mergeEnabled"].(bool); ok {
		mergeEnabled = b
	}
	branches, _ := n.Data["branches"].([]interface{})

	if mergeEnabled {
		if len(g.OutgoingEdges(n.ID, HandleMerged)) == 0 {
			issues = append(issues, Issue{Code: CodeMissingRequiredPort, Severity: SeverityError, NodeID: n.ID,
				Message: "parallel node in merge mode has no outgoing edge on handle \"merged\""})
		}
		return issues
	}

	for _, b := range branches {
		bm, ok := b.(map[string]interface{})
		if !ok {
			continue
		}
		id, _ := bm["id"].(string)
		if id == "" {
			continue
		}
		if len(g.OutgoingEdges(n.ID, id)) == 0 {
			issues = append(issues, Issue{Code: CodeMissingRequiredPort, Severity: SeverityError, NodeID: n.ID,
				Message: fmt.Sprintf("parallel node in splitter mode has no outgoing edge for branch %q", id)})
		}
	}
	return issues
}

func (v *Validator) checkWhileLoop(g *Graph, n Node) []Issue {
	var issues []Issue
	if s, _ := n.Data["conditionPrompt"].(string); s == "" {
		if _, ok := n.Data["customEvaluator"]; !ok {
			issues = append(issues, Issue{Code: CodeMissingConditionPrompt, Severity: SeverityWarning, NodeID: n.ID,
				Message: "while-loop has neither a conditionPrompt nor a customEvaluator"})
		}
	}
	if mi, ok := n.Data["maxIterations"]; ok {
		if f, ok := toFloat(mi); !ok || f <= 0 {
			issues = append(issues, Issue{Code: CodeInvalidMaxIterations, Severity: SeverityError, NodeID: n.ID,
				Message: "maxIterations must be a positive number"})
		}
	}
	if len(g.OutgoingEdges(n.ID, HandleBody)) == 0 {
		issues = append(issues, Issue{Code: CodeMissingRequiredPort, Severity: SeverityWarning, NodeID: n.ID,
			Message: "while-loop has no outgoing edge on handle \"body\""})
	}
	if len(g.OutgoingEdges(n.ID, HandleDone)) == 0 {
		issues = append(issues, Issue{Code: CodeMissingRequiredPort, Severity: SeverityWarning, NodeID: n.ID,
			Message: "while-loop has no outgoing edge on handle \"done\""})
	}
	return issues
}

func (v *Validator) checkSubflow(g *Graph, n Node) []Issue {
	var issues []Issue
	subflowID, _ := n.Data["subflowId"].(string)
	if subflowID == "" {
		issues = append(issues, Issue{Code: CodeMissingSubflowID, Severity: SeverityError, NodeID: n.ID,
			Message: "subflow node has no subflowId configured"})
		return issues
	}

	if v.SubflowLookup == nil {
		return issues
	}
	exists, requiredInputs, hasOutputs := v.SubflowLookup(subflowID)
	if !exists {
		issues = append(issues, Issue{Code: CodeSubflowNotFound, Severity: SeverityError, NodeID: n.ID,
			Message: fmt.Sprintf("subflow %q is not registered", subflowID)})
		return issues
	}

	mappings, _ := n.Data["inputMappings"].(map[string]interface{})
	for _, reqID := range requiredInputs {
		if mappings == nil {
			issues = append(issues, Issue{Code: CodeMissingInputMapping, Severity: SeverityError, NodeID: n.ID,
				Message: fmt.Sprintf("required subflow input %q has no mapping", reqID)})
			continue
		}
		if _, ok := mappings[reqID]; !ok {
			issues = append(issues, Issue{Code: CodeMissingInputMapping, Severity: SeverityError, NodeID: n.ID,
				Message: fmt.Sprintf("required subflow input %q has no mapping", reqID)})
		}
	}

	if !hasOutputs {
		issues = append(issues, Issue{Code: CodeNoSubflowOutputs, Severity: SeverityWarning, NodeID: n.ID,
			Message: fmt.Sprintf("subflow %q declares no outputs", subflowID)})
	}

	return issues
}

func (v *Validator) checkOutput(g *Graph, n Node) []Issue {
	return nil
}

func toFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	}
	return 0, false
}
