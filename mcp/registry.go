package mcp

// Registry maps tool names to tools. It is filled once at startup and is
// read-only after it has been sealed, so sessions may share it without
// locking.
type Registry struct {
	tools  map[string]*Tool
	order  []string
	sealed bool
}

// NewRegistry creates a registry holding the given tools
func NewRegistry(tools ...*Tool) (*Registry, error) {
	r := &Registry{tools: make(map[string]*Tool)}
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a tool. It fails with *DuplicateToolError when the name is
// taken and with ErrRegistrySealed once the registry serves a Server.
func (r *Registry) Register(t *Tool) error {
	if r.sealed {
		return ErrRegistrySealed
	}
	if _, ok := r.tools[t.Name]; ok {
		return &DuplicateToolError{Name: t.Name}
	}
	if err := t.prepare(); err != nil {
		return err
	}
	r.tools[t.Name] = t
	r.order = append(r.order, t.Name)
	return nil
}

// Lookup returns the tool registered under name
func (r *Registry) Lookup(name string) (*Tool, error) {
	t, ok := r.tools[name]
	if !ok {
		return nil, &UnknownToolError{Name: name}
	}
	return t, nil
}

// List returns the catalogue entries of all tools in registration order
func (r *Registry) List() []ToolInfo {
	infos := make([]ToolInfo, 0, len(r.order))
	for _, name := range r.order {
		infos = append(infos, r.tools[name].Info())
	}
	return infos
}

// Len returns the number of registered tools
func (r *Registry) Len() int {
	return len(r.order)
}

// Seal stops further registration
func (r *Registry) Seal() {
	r.sealed = true
}
