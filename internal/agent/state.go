package agent

// Per-query mutable state and the terminal result envelope. One State is
// created per query, owned by exactly one worker, and discarded once the
// Result is assembled.

import (
	"encoding/json"

	"github.com/loglens/loglens-ai/internal/agent/decision"
	"github.com/loglens/loglens-ai/internal/agent/tool"
	"github.com/loglens/loglens-ai/internal/logstore"
)

// Error kinds surfaced in steps and the result envelope.
const (
	ErrLLMUnreachable     = "llm_unreachable"
	ErrLLMParseFailed     = "llm_parse_failed"
	ErrUnknownTool        = "unknown_tool"
	ErrMissingParameter   = "missing_parameter"
	ErrInvalidParameter   = "invalid_parameter"
	ErrToolFailed         = "tool_execution_failed"
	ErrLoopDetected       = "loop_detected"
	ErrDeadlineExceeded   = "deadline_exceeded"
	ErrIterationExhausted = "iteration_exhausted"
)

// Step records one loop iteration: the model's decision and what came of
// it. Steps are appended in order and never rewritten.
type Step struct {
	Iteration   int                `json:"iteration"`
	Decision    *decision.Decision `json:"decision,omitempty"`
	Result      *tool.Result       `json:"result,omitempty"`
	Error       string             `json:"error,omitempty"`
	ErrorKind   string             `json:"error_kind,omitempty"`
	WallclockMS int64              `json:"wallclock_ms"`
}

// State is the per-query container the loop mutates.
type State struct {
	Query         string
	Iteration     int
	MaxIterations int
	Trace         []*Step

	LoadedRows   *logstore.RowSet
	FilteredRows *logstore.RowSet

	Answer     string
	Confidence float64
	Done       bool

	FailedAttempts map[string]int
}

// NewState creates the state for one query over a loaded dataset.
func NewState(query string, loaded *logstore.RowSet, maxIterations int) *State {
	return &State{
		Query:          query,
		MaxIterations:  maxIterations,
		LoadedRows:     loaded,
		FailedAttempts: make(map[string]int),
	}
}

// WorkingRows returns the row set a rowset parameter should be injected
// with: the last non-empty filtered set, else the full dataset.
func (s *State) WorkingRows() *logstore.RowSet {
	if s.FilteredRows != nil && s.FilteredRows.Len() > 0 {
		return s.FilteredRows
	}
	return s.LoadedRows
}

// AnalyzedCount reports how many rows the final answer is based on.
func (s *State) AnalyzedCount() int {
	if s.FilteredRows != nil {
		return s.FilteredRows.Len()
	}
	return s.LoadedRows.Len()
}

// Fingerprint identifies one (tool, parameters) combination for the
// failure-attempts map. Rowset parameters are excluded since they are
// injected, not chosen, and JSON marshalling of a map sorts its keys, so
// equal parameter sets always produce equal fingerprints.
func Fingerprint(toolName string, params map[string]any) string {
	cleaned := make(map[string]any, len(params))
	for k, v := range params {
		if _, isRowSet := v.(*logstore.RowSet); isRowSet {
			continue
		}
		cleaned[k] = v
	}
	raw, err := json.Marshal(cleaned)
	if err != nil {
		raw = []byte("{}")
	}
	return toolName + ":" + string(raw)
}

// Result is the terminal envelope returned to the caller.
type Result struct {
	QueryID      string  `json:"query_id"`
	Success      bool    `json:"success"`
	Answer       string  `json:"answer"`
	Confidence   float64 `json:"confidence"`
	Iterations   int     `json:"iterations"`
	Trace        []*Step `json:"trace"`
	LogsAnalyzed int     `json:"logs_analyzed"`
	Error        string  `json:"error,omitempty"`
	ErrorKind    string  `json:"error_kind,omitempty"`
}
