package db

import (
	"encoding/json"
	"time"

	"github.com/loglens/loglens-ai/internal/agent"
	"github.com/loglens/loglens-ai/internal/agent/tool"
	"github.com/loglens/loglens-ai/internal/logstore"
)

// FromResult converts a finished query into its persisted form. Row sets
// inside step results are replaced with their row count; raw rows are
// reproducible from the dataset and would bloat the history database.
func FromResult(query string, res *agent.Result, started, finished time.Time) *RunRecord {
	rec := &RunRecord{
		ID:           res.QueryID,
		Query:        query,
		Success:      res.Success,
		Answer:       res.Answer,
		Confidence:   res.Confidence,
		Iterations:   res.Iterations,
		LogsAnalyzed: res.LogsAnalyzed,
		ErrorKind:    res.ErrorKind,
		Error:        res.Error,
		StartedAt:    started,
		FinishedAt:   finished,
	}

	for _, step := range res.Trace {
		sr := &RunStepRecord{
			RunID:       res.QueryID,
			Iteration:   step.Iteration,
			Error:       step.Error,
			ErrorKind:   step.ErrorKind,
			WallclockMS: step.WallclockMS,
		}
		if step.Decision != nil {
			sr.Tool = step.Decision.Tool
			if b, err := json.Marshal(step.Decision); err == nil {
				sr.DecisionJSON = string(b)
			}
		}
		if step.Result != nil {
			sr.ResultJSON = marshalStepResult(step.Result)
		}
		rec.Steps = append(rec.Steps, sr)
	}
	return rec
}

func marshalStepResult(res *tool.Result) string {
	data := res.Data
	if rs, ok := data.(*logstore.RowSet); ok {
		data = map[string]int{"rows": rs.Len()}
	}
	b, err := json.Marshal(map[string]any{
		"success": res.Success,
		"message": res.Message,
		"data":    data,
		"error":   res.Err,
	})
	if err != nil {
		return ""
	}
	return string(b)
}
