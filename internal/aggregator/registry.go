package aggregator

import (
	"context"
	"fmt"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
)

// Registry is the aggregate tool namespace: an explicit mapping from
// qualified name to tool record, built once during startup. Every invocation
// dispatches through this map rather than through closures captured at
// registration time. The namespace is written during Start and read-only
// afterward; the lock exists for the concurrent-startup mode.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*Tool
	order []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]*Tool),
	}
}

// Register adds a tool under its qualified name. Qualified names are unique
// by construction, so a collision means one server reported the same tool
// twice and is rejected.
func (r *Registry) Register(tool *Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[tool.QualifiedName]; exists {
		return fmt.Errorf("tool %s already registered", tool.QualifiedName)
	}
	r.tools[tool.QualifiedName] = tool
	r.order = append(r.order, tool.QualifiedName)
	return nil
}

// Get returns the tool registered under the qualified name.
func (r *Registry) Get(qualifiedName string) (*Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[qualifiedName]
	return tool, ok
}

// List returns all tools in registration order.
func (r *Registry) List() []*Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]*Tool, 0, len(r.order))
	for _, name := range r.order {
		tools = append(tools, r.tools[name])
	}
	return tools
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Call dispatches an invocation through the registry map.
func (r *Registry) Call(ctx context.Context, qualifiedName string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	tool, ok := r.Get(qualifiedName)
	if !ok {
		return nil, fmt.Errorf("unknown tool %s", qualifiedName)
	}
	return tool.Invoke(ctx, args)
}
