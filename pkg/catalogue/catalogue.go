package catalogue

import (
	"fmt"

	toolerrors "github.com/alennartz/toolscript/pkg/errors"
)

// Catalogue is the immutable, shared-by-all-executions registry built from
// a Manifest. It is read-only after construction: concurrent executions
// read it without synchronization.
type Catalogue struct {
	apis       map[string]ApiDescriptor
	functions  map[string]FunctionDescriptor
	funcOrder  []string
	types      map[string]TypeDescriptor
	mcpServers map[string]McpServerDescriptor
	mcpOrder   []string
}

// New builds a Catalogue from an already-validated Manifest.
func New(m *Manifest) *Catalogue {
	c := &Catalogue{
		apis:       make(map[string]ApiDescriptor, len(m.Apis)),
		functions:  make(map[string]FunctionDescriptor, len(m.Functions)),
		types:      make(map[string]TypeDescriptor, len(m.Schemas)),
		mcpServers: make(map[string]McpServerDescriptor, len(m.McpServers)),
	}
	for _, a := range m.Apis {
		c.apis[a.Name] = a
	}
	for _, f := range m.Functions {
		c.functions[f.Name] = f
		c.funcOrder = append(c.funcOrder, f.Name)
	}
	for _, t := range m.Schemas {
		c.types[t.Name] = t
	}
	for _, s := range m.McpServers {
		c.mcpServers[s.Name] = s
		c.mcpOrder = append(c.mcpOrder, s.Name)
	}
	return c
}

// Function looks up a FunctionDescriptor by name.
func (c *Catalogue) Function(name string) (FunctionDescriptor, error) {
	f, ok := c.functions[name]
	if !ok {
		return FunctionDescriptor{}, toolerrors.NewNotFoundError(
			fmt.Sprintf("no function descriptor named %q", name), nil)
	}
	return f, nil
}

// API looks up an ApiDescriptor by name.
func (c *Catalogue) API(name string) (ApiDescriptor, error) {
	a, ok := c.apis[name]
	if !ok {
		return ApiDescriptor{}, toolerrors.NewNotFoundError(
			fmt.Sprintf("no api descriptor named %q", name), nil)
	}
	return a, nil
}

// Type looks up a TypeDescriptor by name.
func (c *Catalogue) Type(name string) (TypeDescriptor, bool) {
	t, ok := c.types[name]
	return t, ok
}

// Functions returns every FunctionDescriptor in manifest order.
func (c *Catalogue) Functions() []FunctionDescriptor {
	out := make([]FunctionDescriptor, 0, len(c.funcOrder))
	for _, name := range c.funcOrder {
		out = append(out, c.functions[name])
	}
	return out
}

// McpServers returns every McpServerDescriptor in manifest order.
func (c *Catalogue) McpServers() []McpServerDescriptor {
	out := make([]McpServerDescriptor, 0, len(c.mcpOrder))
	for _, name := range c.mcpOrder {
		out = append(out, c.mcpServers[name])
	}
	return out
}
