package tool

import (
	"fmt"
	"strings"
)

// Registry binds tool names to tool objects. It is populated once at
// startup and read-only afterwards, so concurrent queries share it without
// synchronization.
type Registry struct {
	tools map[string]Tool
	order []string
}

// NewRegistry builds the standard thirteen-tool registry over the given
// dependencies.
func NewRegistry(deps Deps) *Registry {
	r := &Registry{tools: make(map[string]Tool)}
	for _, t := range []Tool{
		&searchLogsTool{deps},
		&filterByTimeTool{deps},
		&filterBySeverityTool{deps},
		&filterByFieldTool{deps},
		&getLogCountTool{deps},
		&extractEntitiesTool{deps},
		&countEntitiesTool{deps},
		&aggregateEntitiesTool{deps},
		&findRelationshipsTool{deps},
		&normalizeTermTool{deps},
		&fuzzySearchTool{deps},
		&returnLogsTool{deps},
		&finalizeAnswerTool{deps},
	} {
		r.register(t)
	}
	return r
}

func (r *Registry) register(t Tool) {
	if _, dup := r.tools[t.Name()]; dup {
		panic(fmt.Sprintf("duplicate tool registration: %s", t.Name()))
	}
	r.tools[t.Name()] = t
	r.order = append(r.order, t.Name())
}

// Get returns the named tool, or false if no such tool is registered.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Names returns tool names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// DescribeAll renders the tool catalog embedded in the model's system
// prompt. The rendering is deterministic: registration order for tools,
// declaration order for parameters. This catalog is the model's sole
// source of truth for which tools exist.
func (r *Registry) DescribeAll() string {
	var b strings.Builder
	for _, name := range r.order {
		t := r.tools[name]
		fmt.Fprintf(&b, "- %s: %s\n", t.Name(), t.Purpose())
		for _, p := range t.Params() {
			requiredness := "[OPTIONAL]"
			if p.Required {
				requiredness = "[REQUIRED]"
			}
			if p.Kind == KindRowSet {
				requiredness = "[OPTIONAL — auto-injected]"
			}
			fmt.Fprintf(&b, "    %s (%s) %s", p.Name, p.Kind, requiredness)
			if p.Description != "" {
				fmt.Fprintf(&b, " — %s", p.Description)
			}
			if p.Example != "" {
				fmt.Fprintf(&b, " e.g. %s", p.Example)
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}
