package tools

import (
	"context"
	"fmt"
	"sort"

	"github.com/mohammad-safakhou/insight/internal/research"
)

// Executor runs a validated call against the backing data source. The params
// it receives have already passed the spec's Normalize; query is the raw
// search text from the selection, for tools that consume free text.
type Executor func(ctx context.Context, query string, params map[string]any) (research.Response, error)

// Spec describes one registered tool. Normalize inspects the loose params and
// either returns the typed parameter map the executor needs, or ok=false to
// signal the call is unsalvageable and the default tool should run.
type Spec struct {
	Name        string
	Description string
	Normalize   func(p Params) (map[string]any, bool)
	Execute     Executor
}

// Registry holds the tool specs available to one research engine plus the
// default tool substituted for unusable selections.
type Registry struct {
	specs         map[string]Spec
	defaultTool   string
	defaultParams map[string]any
}

func NewRegistry(defaultTool string, defaultParams map[string]any) *Registry {
	return &Registry{
		specs:         make(map[string]Spec),
		defaultTool:   defaultTool,
		defaultParams: defaultParams,
	}
}

func (r *Registry) Register(s Spec) {
	if s.Name == "" {
		panic("tools: spec with empty name")
	}
	r.specs[s.Name] = s
}

func (r *Registry) Lookup(name string) (Spec, bool) {
	s, ok := r.specs[name]
	return s, ok
}

// Default returns the fallback spec and its fixed parameters. It panics when
// the configured default was never registered, which is a wiring bug.
func (r *Registry) Default() (Spec, map[string]any) {
	s, ok := r.specs[r.defaultTool]
	if !ok {
		panic(fmt.Sprintf("tools: default tool %q not registered", r.defaultTool))
	}
	params := make(map[string]any, len(r.defaultParams))
	for k, v := range r.defaultParams {
		params[k] = v
	}
	return s, params
}

// Names lists the registered tools in stable order, for prompt construction.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.specs))
	for name := range r.specs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Describe renders one line per tool for inclusion in a system prompt.
func (r *Registry) Describe() []string {
	out := make([]string, 0, len(r.specs))
	for _, name := range r.Names() {
		out = append(out, fmt.Sprintf("- %s: %s", name, r.specs[name].Description))
	}
	return out
}
