package prompt

// Package prompt assembles the two strings sent to the model each
// iteration: a per-query system prompt (role, entity aliases, tool
// catalog, output contract) and a per-iteration user prompt (question
// plus the trace of everything observed so far).

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/loglens/loglens-ai/internal/agent/tool"
	"github.com/loglens/loglens-ai/internal/entity"
	"github.com/loglens/loglens-ai/internal/logstore"
)

// TraceStep is the prompt builder's view of one completed iteration. The
// orchestrator owns the full Step record; this carries only what the model
// needs to see.
type TraceStep struct {
	Iteration int
	Reasoning string
	Tool      string
	Params    map[string]any
	Message   string
	Data      any
	Err       string
}

// Builder renders prompts for one catalog and tool registry. Both are
// frozen at startup, so the system prompt is computed once and reused.
type Builder struct {
	systemPrompt string
}

// NewBuilder precomputes the system prompt from the catalog and registry.
func NewBuilder(catalog *entity.Catalog, registry *tool.Registry) *Builder {
	return &Builder{systemPrompt: renderSystemPrompt(catalog, registry)}
}

// System returns the static system prompt.
func (b *Builder) System() string { return b.systemPrompt }

func renderSystemPrompt(catalog *entity.Catalog, registry *tool.Registry) string {
	var sb strings.Builder

	sb.WriteString("You are a log analysis assistant. You answer questions about a loaded log dataset by calling tools, one per step, and reading their observations.\n\n")

	sb.WriteString("ENTITY TYPES (map the user's words to these type names):\n")
	for _, typ := range catalog.Types() {
		related := catalog.Related(typ.Name)
		fmt.Fprintf(&sb, "- User says %s -> use '%s'", quoteAll(typ.Aliases), typ.Name)
		if len(related) > 0 {
			fmt.Fprintf(&sb, " (related: %s)", strings.Join(related, ", "))
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\n")

	sb.WriteString("TOOLS:\n")
	sb.WriteString(registry.DescribeAll())
	sb.WriteString("\n")

	sb.WriteString("PROCESS: Reason about what is missing, Act by choosing one tool, Observe its result, Decide whether to continue, and Finalize when the observations answer the question.\n\n")

	sb.WriteString("RULES:\n")
	sb.WriteString("1. Reply with a single JSON object and nothing else: no prose, no code fences.\n")
	sb.WriteString("2. The object has exactly these fields: reasoning (string), tool (string or null), parameters (object), answer (string or null), confidence (number 0-1), done (boolean).\n")
	sb.WriteString("3. Use double quotes and no trailing commas.\n")
	sb.WriteString("4. When done=true, tool must be null and answer must contain the complete answer with the concrete values from the observations.\n")
	sb.WriteString("5. When done=false, tool must name one of the tools above and parameters must satisfy its [REQUIRED] entries.\n")
	sb.WriteString("6. If the needed information is already in the observations, set done=true now instead of calling more tools.\n")
	sb.WriteString("7. If a tool call has failed twice with the same parameters, do not repeat it; change the parameters or choose another tool.\n")

	return sb.String()
}

func quoteAll(words []string) string {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = "'" + w + "'"
	}
	return strings.Join(quoted, " or ")
}

// User renders the per-iteration user prompt: the question, the trace so
// far, and the request for the next decision. From the second iteration
// on it nudges the model to finalize once the observations suffice.
func (b *Builder) User(query string, trace []TraceStep) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "QUESTION: %s\n", query)

	if len(trace) > 0 {
		sb.WriteString("\nOBSERVATIONS SO FAR:\n")
		for _, step := range trace {
			fmt.Fprintf(&sb, "Step %d:\n", step.Iteration)
			if step.Reasoning != "" {
				fmt.Fprintf(&sb, "  reasoning: %s\n", step.Reasoning)
			}
			if step.Tool != "" {
				fmt.Fprintf(&sb, "  action: %s(%s)\n", step.Tool, renderParams(step.Params))
			}
			if step.Err != "" {
				fmt.Fprintf(&sb, "  error: %s\n", step.Err)
			}
			if step.Message != "" {
				fmt.Fprintf(&sb, "  observation: %s\n", step.Message)
			}
			if data := renderData(step.Data); data != "" {
				fmt.Fprintf(&sb, "  data: %s\n", data)
			}
		}
	}

	sb.WriteString("\nWhat is your next decision? Reply with the JSON object only.")
	if len(trace) >= 1 {
		sb.WriteString(" If the observations already contain the answer, finalize now.")
	}
	return sb.String()
}

// renderParams shows the model-supplied parameters; injected row sets are
// elided since the model neither produced nor can read them.
func renderParams(params map[string]any) string {
	cleaned := make(map[string]any, len(params))
	for k, v := range params {
		if _, isRowSet := v.(*logstore.RowSet); isRowSet {
			continue
		}
		cleaned[k] = v
	}
	if len(cleaned) == 0 {
		return ""
	}
	raw, err := json.Marshal(cleaned)
	if err != nil {
		return ""
	}
	return string(raw)
}

// renderData serializes entity and count dicts so the model can cite the
// concrete values. Row sets and large strings are already summarized in
// the observation message and are not repeated.
func renderData(data any) string {
	switch t := data.(type) {
	case map[string][]string:
		raw, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(raw)
	case map[string]int:
		raw, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(raw)
	case map[string]map[string]any:
		raw, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(raw)
	case []string:
		raw, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(raw)
	case string:
		return t
	case int:
		return fmt.Sprintf("%d", t)
	default:
		return ""
	}
}
