package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	execdomain "github.com/duragraph/duragraph/internal/domain/execution"
	"github.com/duragraph/duragraph/internal/domain/workflow"
	"github.com/duragraph/duragraph/internal/infrastructure/http/dto"
	pkguuid "github.com/duragraph/duragraph/internal/pkg/uuid"
	"github.com/labstack/echo/v4"
)

// GraphRunHandler exposes the execution engine over HTTP: register a graph
// definition once, then submit runs against it by id. It plays the role the
// teacher's RunHandler played for assistants/threads, but against the
// workflow.Graph/execution.Engine model instead.
type GraphRunHandler struct {
	engine *execdomain.Engine
	opts   execdomain.RunOptions
	repo   workflow.GraphRepository

	mu     sync.RWMutex
	graphs map[string]*workflow.Graph
}

// NewGraphRunHandler creates a GraphRunHandler bound to a running engine.
// repo may be nil, in which case registered graphs only live in the
// process's memory (CLI/dev use); pass a durable adapter to survive restarts.
func NewGraphRunHandler(engine *execdomain.Engine, opts execdomain.RunOptions, repo workflow.GraphRepository) *GraphRunHandler {
	return &GraphRunHandler{
		engine: engine,
		opts:   opts,
		repo:   repo,
		graphs: make(map[string]*workflow.Graph),
	}
}

// RegisterGraphRequest is the body of POST /graphs.
type RegisterGraphRequest struct {
	WorkflowID  string                 `json:"workflowId"`
	Name        string                 `json:"name"`
	Version     string                 `json:"version"`
	Description string                 `json:"description"`
	Nodes       []workflow.Node        `json:"nodes"`
	Edges       []workflow.Edge        `json:"edges"`
	Config      map[string]interface{} `json:"config"`
}

// RegisterGraph handles POST /graphs: validates and stores a graph
// definition, returning the id future runs are submitted against.
func (h *GraphRunHandler) RegisterGraph(c echo.Context) error {
	var req RegisterGraphRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid_request", Message: err.Error()})
	}

	graph, err := workflow.NewGraph(req.WorkflowID, req.Name, req.Version, req.Description, req.Nodes, req.Edges, req.Config)
	if err != nil {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid_graph", Message: err.Error()})
	}

	validator := workflow.NewValidator(nil)
	if issues := validator.Validate(graph); workflow.HasErrors(issues) {
		return c.JSON(http.StatusUnprocessableEntity, map[string]interface{}{
			"error":  "validation_failed",
			"issues": issues,
		})
	}

	h.mu.Lock()
	h.graphs[graph.ID()] = graph
	h.mu.Unlock()

	if h.repo != nil {
		if err := h.repo.Save(c.Request().Context(), graph); err != nil {
			return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "persist_failed", Message: err.Error()})
		}
	}

	return c.JSON(http.StatusCreated, map[string]string{"workflowId": graph.ID()})
}

// CreateRunRequest is the body of POST /graphs/:id/runs.
type CreateRunRequest struct {
	Input     string `json:"input"`
	SessionID string `json:"sessionId"`
}

// CreateRunResponse is the synchronous result of a graph run.
type CreateRunResponse struct {
	RunID        string                            `json:"runId"`
	Output       string                            `json:"output"`
	NodeChain    []string                          `json:"nodeChain"`
	NodeStatuses map[string]execdomain.NodeStatus   `json:"nodeStatuses"`
}

// CreateRun handles POST /graphs/:id/runs: executes the named graph to
// frontier exhaustion and returns the final result. There is no streaming
// variant: this endpoint blocks for the lifetime of the run, bounded by a
// 10-minute timeout.
func (h *GraphRunHandler) CreateRun(c echo.Context) error {
	workflowID := c.Param("id")

	h.mu.RLock()
	graph, ok := h.graphs[workflowID]
	h.mu.RUnlock()
	if !ok && h.repo != nil {
		var err error
		graph, err = h.repo.FindByID(c.Request().Context(), workflowID)
		ok = err == nil && graph != nil
		if ok {
			h.mu.Lock()
			h.graphs[graph.ID()] = graph
			h.mu.Unlock()
		}
	}
	if !ok {
		return c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "not_found", Message: "graph not registered"})
	}

	var req CreateRunRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid_request", Message: err.Error()})
	}

	opts := h.opts
	opts.SessionID = req.SessionID
	if opts.SessionID == "" {
		opts.SessionID = pkguuid.New()
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Minute)
	defer cancel()

	result, err := h.engine.Run(ctx, graph, req.Input, nil, opts)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "run_failed", Message: err.Error()})
	}

	return c.JSON(http.StatusOK, CreateRunResponse{
		RunID:        opts.SessionID,
		Output:       result.Output,
		NodeChain:    result.NodeChain,
		NodeStatuses: result.NodeStatuses,
	})
}
