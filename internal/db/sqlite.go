package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // pure-Go SQLite driver (no CGO required)
)

// schema for the run-history store. Version is tracked in the
// schema_versions table.
var migrations = []struct {
	version int
	sql     string
}{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_versions (
    version     INTEGER PRIMARY KEY,
    applied_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS runs (
    id             TEXT PRIMARY KEY,
    query          TEXT NOT NULL,
    success        INTEGER NOT NULL DEFAULT 0,
    answer         TEXT NOT NULL DEFAULT '',
    confidence     REAL NOT NULL DEFAULT 0.0,
    iterations     INTEGER NOT NULL DEFAULT 0,
    logs_analyzed  INTEGER NOT NULL DEFAULT 0,
    error_kind     TEXT NOT NULL DEFAULT '',
    error          TEXT NOT NULL DEFAULT '',
    started_at     DATETIME NOT NULL,
    finished_at    DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at DESC);

CREATE TABLE IF NOT EXISTS run_steps (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id         TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    iteration      INTEGER NOT NULL,
    tool           TEXT NOT NULL DEFAULT '',
    decision_json  TEXT NOT NULL DEFAULT '',
    result_json    TEXT NOT NULL DEFAULT '',
    error          TEXT NOT NULL DEFAULT '',
    error_kind     TEXT NOT NULL DEFAULT '',
    wallclock_ms   INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_run_steps_run ON run_steps(run_id, iteration ASC);
`,
	},
}

// sqliteStore is the SQLite-backed implementation of Store.
type sqliteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at the given path and
// runs all pending schema migrations. Pass ":memory:" for an in-memory store.
func NewSQLiteStore(path string) (Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}

	// One connection: SQLite serializes writers anyway, and ":memory:"
	// databases exist per connection.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrency and performance.
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	// Enable foreign-key constraints.
	if _, err := db.Exec(`PRAGMA foreign_keys=ON`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	s := &sqliteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// migrate applies any unapplied migrations in order.
func (s *sqliteStore) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_versions (
        version    INTEGER PRIMARY KEY,
        applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
    )`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := s.db.QueryRow(`SELECT COUNT(*) FROM schema_versions WHERE version = ?`, m.version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.version, err)
		}
		if count > 0 {
			continue // already applied
		}

		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("apply migration %d: %w", m.version, err)
		}

		if _, err := s.db.Exec(`INSERT INTO schema_versions(version) VALUES(?)`, m.version); err != nil {
			return fmt.Errorf("record migration %d: %w", m.version, err)
		}
	}
	return nil
}

func (s *sqliteStore) Close() error { return s.db.Close() }

func (s *sqliteStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// ─── Runs ───────────────────────────────────────────────────────────────────

func (s *sqliteStore) SaveRun(ctx context.Context, rec *RunRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
        INSERT INTO runs(id, query, success, answer, confidence, iterations, logs_analyzed, error_kind, error, started_at, finished_at)
        VALUES(?,?,?,?,?,?,?,?,?,?,?)
        ON CONFLICT(id) DO UPDATE SET
            success       = excluded.success,
            answer        = excluded.answer,
            confidence    = excluded.confidence,
            iterations    = excluded.iterations,
            logs_analyzed = excluded.logs_analyzed,
            error_kind    = excluded.error_kind,
            error         = excluded.error,
            finished_at   = excluded.finished_at
    `,
		rec.ID, rec.Query, rec.Success, rec.Answer, rec.Confidence,
		rec.Iterations, rec.LogsAnalyzed, rec.ErrorKind, rec.Error,
		rec.StartedAt.UTC(), rec.FinishedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert run: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM run_steps WHERE run_id=?`, rec.ID); err != nil {
		return fmt.Errorf("delete steps: %w", err)
	}
	for _, step := range rec.Steps {
		_, err := tx.ExecContext(ctx, `
            INSERT INTO run_steps(run_id, iteration, tool, decision_json, result_json, error, error_kind, wallclock_ms)
            VALUES(?,?,?,?,?,?,?,?)
        `,
			rec.ID, step.Iteration, step.Tool, step.DecisionJSON,
			step.ResultJSON, step.Error, step.ErrorKind, step.WallclockMS,
		)
		if err != nil {
			return fmt.Errorf("insert step %d: %w", step.Iteration, err)
		}
	}

	return tx.Commit()
}

func (s *sqliteStore) GetRun(ctx context.Context, id string) (*RunRecord, error) {
	rec := &RunRecord{}
	err := s.db.QueryRowContext(ctx, `
        SELECT id, query, success, answer, confidence, iterations, logs_analyzed, error_kind, error, started_at, finished_at
        FROM runs WHERE id=?
    `, id).Scan(
		&rec.ID, &rec.Query, &rec.Success, &rec.Answer, &rec.Confidence,
		&rec.Iterations, &rec.LogsAnalyzed, &rec.ErrorKind, &rec.Error,
		&rec.StartedAt, &rec.FinishedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select run: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
        SELECT run_id, iteration, tool, decision_json, result_json, error, error_kind, wallclock_ms
        FROM run_steps WHERE run_id=? ORDER BY iteration ASC
    `, id)
	if err != nil {
		return nil, fmt.Errorf("select steps: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		step := &RunStepRecord{}
		if err := rows.Scan(
			&step.RunID, &step.Iteration, &step.Tool, &step.DecisionJSON,
			&step.ResultJSON, &step.Error, &step.ErrorKind, &step.WallclockMS,
		); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		rec.Steps = append(rec.Steps, step)
	}
	return rec, rows.Err()
}

func (s *sqliteStore) ListRuns(ctx context.Context, limit int) ([]*RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, query, success, answer, confidence, iterations, logs_analyzed, error_kind, error, started_at, finished_at
        FROM runs ORDER BY started_at DESC LIMIT ?
    `, limit)
	if err != nil {
		return nil, fmt.Errorf("select runs: %w", err)
	}
	defer rows.Close()

	var out []*RunRecord
	for rows.Next() {
		rec := &RunRecord{}
		if err := rows.Scan(
			&rec.ID, &rec.Query, &rec.Success, &rec.Answer, &rec.Confidence,
			&rec.Iterations, &rec.LogsAnalyzed, &rec.ErrorKind, &rec.Error,
			&rec.StartedAt, &rec.FinishedAt,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
