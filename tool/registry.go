package tool

// Registry is the explicit dispatch table mapping tool names to
// implementations. Lookup is total: a missing name is reported via the
// boolean, never by panicking or returning a typed nil.
//
// Registration order is preserved so that the definitions exposed to a
// provider are stable across calls. A Registry is built once at construction
// time and read-only afterwards; it is not safe for concurrent mutation.
type Registry struct {
	tools map[string]Tool
	order []string
}

// NewRegistry creates a registry holding the given tools.
func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{tools: map[string]Tool{}}
	for _, t := range tools {
		r.Register(t)
	}
	return r
}

// Register adds a tool, replacing any previous tool with the same name.
func (r *Registry) Register(t Tool) {
	if _, exists := r.tools[t.Name()]; !exists {
		r.order = append(r.order, t.Name())
	}
	r.tools[t.Name()] = t
}

// Lookup resolves a tool by name.
func (r *Registry) Lookup(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Tools returns the registered tools in registration order.
func (r *Registry) Tools() []Tool {
	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// Len returns the number of registered tools.
func (r *Registry) Len() int { return len(r.tools) }
