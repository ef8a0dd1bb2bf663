// Package subflow holds the process-wide name -> workflow definition map
// subflow nodes resolve against.
package subflow

import (
	"sync"

	"github.com/duragraph/duragraph/internal/domain/execution"
	"github.com/duragraph/duragraph/internal/pkg/errors"
)

// Registry is a concurrency-safe, in-memory implementation of
// execution.SubflowRegistry, shaped like the tool registry: a mutex-guarded
// map outliving any single run.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]execution.SubflowDefinition
}

func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]execution.SubflowDefinition)}
}

func (r *Registry) Register(def execution.SubflowDefinition) error {
	if def.ID == "" {
		return errors.InvalidInput("id", "subflow id cannot be empty")
	}
	if def.Workflow == nil {
		return errors.InvalidInput("workflow", "subflow definition must carry a workflow graph")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.defs[def.ID] = def
	return nil
}

func (r *Registry) Get(id string) (execution.SubflowDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[id]
	return def, ok
}

func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.defs[id]
	return ok
}

func (r *Registry) List() []execution.SubflowDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]execution.SubflowDefinition, 0, len(r.defs))
	for _, def := range r.defs {
		out = append(out, def)
	}
	return out
}

// Unregister removes a subflow definition; used by tests and hot-reload.
func (r *Registry) Unregister(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.defs[id]; !ok {
		return errors.NotFound("subflow", id)
	}
	delete(r.defs, id)
	return nil
}
