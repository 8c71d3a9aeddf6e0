package tool

// Package tool holds the concrete operations the reasoning loop can invoke
// against a loaded log dataset, plus the registry that renders their
// catalog for the model prompt.
//
// Responsibilities:
//   - Declare each tool's parameter contract (name, kind, required, example)
//   - Execute tools against the log store, entity catalog, and normalizer
//   - Produce short observation messages suitable for the reasoning trace
//   - Enforce result-size bounds so tool output cannot flood the context
//
// Tools are pure with respect to their inputs: row sets are immutable, so
// every row-producing tool returns a freshly derived set.

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/loglens/loglens-ai/internal/entity"
	"github.com/loglens/loglens-ai/internal/logstore"
	"github.com/loglens/loglens-ai/internal/normalize"
)

// ParamKind classifies a tool parameter for validation and for rendering
// in the prompt catalog.
type ParamKind string

const (
	KindString  ParamKind = "STRING"
	KindInteger ParamKind = "INTEGER"
	KindList    ParamKind = "LIST"
	KindRowSet  ParamKind = "ROWSET"
	KindDict    ParamKind = "DICT"
)

// InjectSource says which cached row set the orchestrator injects when the
// model omits a ROWSET parameter.
type InjectSource string

const (
	// InjectFiltered injects the last filtered set when it is non-empty,
	// falling back to the full dataset.
	InjectFiltered InjectSource = "filtered"

	// InjectLoaded always injects the full dataset. Entry-point tools use
	// this so a search starts fresh regardless of prior filters.
	InjectLoaded InjectSource = "loaded"
)

// ParamSpec describes one tool parameter.
type ParamSpec struct {
	Name        string
	Kind        ParamKind
	Required    bool
	Example     string
	Description string

	// Inject applies to ROWSET parameters only.
	Inject InjectSource
}

// Result is the outcome of one tool execution. Data may be a *logstore.RowSet,
// a map, a count, or a formatted string depending on the tool.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	Err     string `json:"error,omitempty"`
}

func ok(message string, data any) *Result {
	return &Result{Success: true, Message: message, Data: data}
}

func fail(format string, args ...any) *Result {
	msg := fmt.Sprintf(format, args...)
	return &Result{Success: false, Message: msg, Err: msg}
}

// Tool is one named operation the reasoner can choose.
type Tool interface {
	// Name is the unique identifier the model uses to invoke the tool.
	Name() string

	// Purpose is the one-line intent shown in the prompt catalog.
	Purpose() string

	// Params returns the ordered parameter contract.
	Params() []ParamSpec

	// Execute runs the tool. Parameters have already passed required-ness
	// and kind validation; rowset parameters are injected by the caller.
	Execute(params map[string]any) *Result
}

// Bounds caps tool output sizes so observations stay within the model's
// context budget.
type Bounds struct {
	MaxRows            int
	MaxEntitiesPerType int
	MaxSamples         int
}

// DefaultBounds mirrors the configuration defaults.
func DefaultBounds() Bounds {
	return Bounds{MaxRows: 1000, MaxEntitiesPerType: 500, MaxSamples: 10}
}

// Deps bundles the shared read-only collaborators every tool draws on.
type Deps struct {
	Store      *logstore.Store
	Catalog    *entity.Catalog
	Normalizer *normalize.Normalizer
	Bounds     Bounds
	Logger     *zap.Logger
}

// ─── parameter accessors ────────────────────────────────────────────────────

// stringParam reads a string parameter; absent or empty returns ("", false).
func stringParam(params map[string]any, name string) (string, bool) {
	v, ok := params[name]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// listParam reads a list-of-strings parameter, tolerating both []string and
// the []any produced by JSON decoding. A bare string is promoted to a
// one-element list, since models frequently send one where a list is asked.
func listParam(params map[string]any, name string) ([]string, bool) {
	v, ok := params[name]
	if !ok {
		return nil, false
	}
	switch t := v.(type) {
	case []string:
		return t, true
	case string:
		if t == "" {
			return nil, false
		}
		return []string{t}, true
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}

// intParam reads a numeric parameter. JSON numbers decode as float64, so
// both int and float forms are accepted and truncated.
func intParam(params map[string]any, name string) (int, bool) {
	v, ok := params[name]
	if !ok {
		return 0, false
	}
	switch t := v.(type) {
	case int:
		return t, true
	case int64:
		return int(t), true
	case float64:
		return int(t), true
	default:
		return 0, false
	}
}

// floatParam reads a numeric parameter as float64.
func floatParam(params map[string]any, name string) (float64, bool) {
	v, ok := params[name]
	if !ok {
		return 0, false
	}
	switch t := v.(type) {
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case float64:
		return t, true
	default:
		return 0, false
	}
}

// rowsetParam reads an injected row set parameter.
func rowsetParam(params map[string]any, name string) (*logstore.RowSet, bool) {
	v, ok := params[name]
	if !ok {
		return nil, false
	}
	rs, ok := v.(*logstore.RowSet)
	if !ok || rs == nil {
		return nil, false
	}
	return rs, true
}

// CheckKind validates a provided value against the declared kind. Absent
// values are the caller's concern; this only rejects present-but-wrong.
func CheckKind(spec ParamSpec, value any) error {
	switch spec.Kind {
	case KindString:
		if _, ok := value.(string); !ok {
			return fmt.Errorf("parameter %q must be a string", spec.Name)
		}
	case KindInteger:
		switch value.(type) {
		case int, int64, float64:
		default:
			return fmt.Errorf("parameter %q must be a number", spec.Name)
		}
	case KindList:
		switch t := value.(type) {
		case []string, string:
		case []any:
			for _, item := range t {
				if _, ok := item.(string); !ok {
					return fmt.Errorf("parameter %q must be a list of strings", spec.Name)
				}
			}
		default:
			return fmt.Errorf("parameter %q must be a list of strings", spec.Name)
		}
	case KindRowSet:
		if _, ok := value.(*logstore.RowSet); !ok {
			return fmt.Errorf("parameter %q is managed internally and must not be supplied", spec.Name)
		}
	case KindDict:
		if _, ok := value.(map[string]any); !ok {
			return fmt.Errorf("parameter %q must be an object", spec.Name)
		}
	}
	return nil
}

// truncateRows caps a derived row set at the configured maximum. The
// returned bool reports whether truncation happened.
func truncateRows(rs *logstore.RowSet, max int) (*logstore.RowSet, bool) {
	if max <= 0 || rs.Len() <= max {
		return rs, false
	}
	return logstore.NewRowSet(rs.Rows()[:max]), true
}
