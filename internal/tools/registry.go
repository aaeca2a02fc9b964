package tools

import (
	"sort"
	"sync"

	"google.golang.org/adk/tool"

	"advisor/internal/tools/shared"
	"advisor/pkg/errors"
)

// Registry stores tools by name for discovery and lookup.
type Registry struct {
	tools map[string]shared.Tool
	mu    sync.RWMutex
}

// NewRegistry constructs an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]shared.Tool),
	}
}

// Register adds or replaces a tool under its own name.
func (r *Registry) Register(t shared.Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

// Get retrieves a tool by name if registered.
func (r *Registry) Get(name string) (shared.Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns the sorted names of all registered tools.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// ADKTools resolves names to ADK tools in the given order. Any unknown name is an error.
func (r *Registry) ADKTools(names ...string) ([]tool.Tool, error) {
	out := make([]tool.Tool, 0, len(names))
	for _, name := range names {
		t, ok := r.Get(name)
		if !ok {
			return nil, errors.Wrapf(errors.ErrNotFound, "tool %q", name)
		}
		adkTool, err := t.ADK()
		if err != nil {
			return nil, err
		}
		out = append(out, adkTool)
	}
	return out, nil
}
