package pipeline

import (
	"context"
	"sort"

	"tagrag/internal/llm"
)

// Tool es una funcion que el modelo puede invocar durante un turno.
type Tool interface {
	Name() string
	Definition() llm.ToolDefinition
	Invoke(ctx context.Context, arguments string) (string, error)
}

// Registry agrupa herramientas por nombre.
type Registry struct {
	tools map[string]Tool
}

func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		r.Register(t)
	}
	return r
}

// Register agrega o reemplaza una herramienta.
func (r *Registry) Register(t Tool) {
	if t == nil {
		return
	}
	r.tools[t.Name()] = t
}

func (r *Registry) Lookup(name string) (Tool, bool) {
	if r == nil {
		return nil, false
	}
	t, ok := r.tools[name]
	return t, ok
}

// Definitions devuelve las definiciones ordenadas por nombre.
func (r *Registry) Definitions() []llm.ToolDefinition {
	if r == nil || len(r.tools) == 0 {
		return nil
	}
	names := make([]string, 0, len(r.tools))
	for n := range r.tools {
		names = append(names, n)
	}
	sort.Strings(names)

	defs := make([]llm.ToolDefinition, 0, len(names))
	for _, n := range names {
		defs = append(defs, r.tools[n].Definition())
	}
	return defs
}
