package tools

import (
	"context"

	"github.com/duragraph/duragraph/internal/domain/execution"
	"github.com/duragraph/duragraph/internal/pkg/errors"
)

// Invoker adapts Registry to execution.ToolInvoker, the narrow surface node
// handlers are allowed to call through.
type Invoker struct {
	registry *Registry
}

func NewInvoker(registry *Registry) *Invoker {
	return &Invoker{registry: registry}
}

func (i *Invoker) Get(name string) (execution.ToolDescriptor, bool) {
	tool, err := i.registry.Get(name)
	if err != nil {
		return execution.ToolDescriptor{}, false
	}
	return execution.ToolDescriptor{
		Name:        tool.Name(),
		Description: tool.Description(),
		Parameters:  tool.Schema(),
	}, true
}

func (i *Invoker) Execute(ctx context.Context, name string, args map[string]interface{}) (map[string]interface{}, error) {
	tool, err := i.registry.Get(name)
	if err != nil {
		return nil, errors.NotFound("tool", name)
	}
	return tool.Execute(ctx, args)
}

func (i *Invoker) Schemas(names []string) []map[string]interface{} {
	if len(names) == 0 {
		return i.registry.GetSchemas()
	}
	out := make([]map[string]interface{}, 0, len(names))
	for _, name := range names {
		tool, err := i.registry.Get(name)
		if err != nil {
			continue
		}
		out = append(out, map[string]interface{}{
			"name":        tool.Name(),
			"description": tool.Description(),
			"parameters":  tool.Schema(),
		})
	}
	return out
}

func (i *Invoker) Names() []string {
	list := i.registry.List()
	out := make([]string, 0, len(list))
	for _, tool := range list {
		out = append(out, tool.Name())
	}
	return out
}
