package db

// Package db persists finished query runs so past investigations can be
// reviewed after the process exits.

import (
	"context"
	"time"
)

// RunRecord is the DB representation of one completed query run.
type RunRecord struct {
	ID           string    `json:"id"`
	Query        string    `json:"query"`
	Success      bool      `json:"success"`
	Answer       string    `json:"answer"`
	Confidence   float64   `json:"confidence"`
	Iterations   int       `json:"iterations"`
	LogsAnalyzed int       `json:"logs_analyzed"`
	ErrorKind    string    `json:"error_kind,omitempty"`
	Error        string    `json:"error,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`

	Steps []*RunStepRecord `json:"steps,omitempty"`
}

// RunStepRecord is one trace step of a persisted run. DecisionJSON and
// ResultJSON hold the serialized step pieces; the schema stays stable as
// the in-memory shapes evolve.
type RunStepRecord struct {
	RunID        string `json:"run_id"`
	Iteration    int    `json:"iteration"`
	Tool         string `json:"tool,omitempty"`
	DecisionJSON string `json:"decision_json,omitempty"`
	ResultJSON   string `json:"result_json,omitempty"`
	Error        string `json:"error,omitempty"`
	ErrorKind    string `json:"error_kind,omitempty"`
	WallclockMS  int64  `json:"wallclock_ms"`
}

// Store is the persistence interface for query runs.
type Store interface {
	// SaveRun writes a run and its steps. Saving the same ID again
	// replaces the run.
	SaveRun(ctx context.Context, rec *RunRecord) error

	// GetRun reads one run with its steps. Returns nil, nil when no run
	// has that ID.
	GetRun(ctx context.Context, id string) (*RunRecord, error)

	// ListRuns returns the most recent runs, newest first, without steps.
	ListRuns(ctx context.Context, limit int) ([]*RunRecord, error)

	// Close releases database resources.
	Close() error

	// Ping verifies the connection is alive.
	Ping(ctx context.Context) error
}
