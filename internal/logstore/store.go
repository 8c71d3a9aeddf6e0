package logstore

// Package logstore provides the Log Store adapter: deterministic, read-only
// primitives over CSV log rows whose payload column carries JSON.
//
// Responsibilities:
//   - Ingest a CSV export once at startup (header row defines column names)
//   - Expose the full dataset as an immutable RowSet
//   - Substring search over named columns (or all columns)
//   - Time-range, severity, and field-equality filters
//   - Row counting
//
// All filters preserve original row ordering and return new row sets; inputs
// are never mutated. A nil or absent input row set yields an empty result,
// never a crash — the orchestration layer surfaces the failure as a tool
// error.

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Severity levels recognised in the severity column, in ascending order.
const (
	SeverityDebug    = "DEBUG"
	SeverityInfo     = "INFO"
	SeverityWarning  = "WARNING"
	SeverityError    = "ERROR"
	SeverityCritical = "CRITICAL"
)

// severityRank orders the known levels. Membership in this map doubles as
// the "is this a known level" check for filter validation.
var severityRank = map[string]int{
	SeverityDebug:    0,
	SeverityInfo:     1,
	SeverityWarning:  2,
	SeverityError:    3,
	SeverityCritical: 4,
}

// KnownSeverities returns the recognised severity level names in rank order.
func KnownSeverities() []string {
	return []string{SeverityDebug, SeverityInfo, SeverityWarning, SeverityError, SeverityCritical}
}

// Options configures column addressing for a Store.
type Options struct {
	// PayloadColumn is the JSON-bearing log payload column.
	PayloadColumn string

	// TimestampColumn holds ISO-8601 timestamps sortable lexicographically.
	TimestampColumn string

	// SeverityColumn holds one of the known severity level names.
	SeverityColumn string
}

// DefaultOptions returns the column names used by the standard CSV export.
func DefaultOptions() Options {
	return Options{
		PayloadColumn:   "_source.log",
		TimestampColumn: "timestamp",
		SeverityColumn:  "severity",
	}
}

// Store is the Log Store adapter. It owns the immutable backing data for
// one dataset and provides the filter primitives the tool library is built
// from. A Store is safe for concurrent readers; it is never written after
// Open returns.
type Store struct {
	opts    Options
	columns []string
	loaded  *RowSet
	logger  *zap.Logger
}

// Open ingests the CSV file at path and returns a ready Store. The first
// record is the header; every following record becomes one Row. Records
// with fewer cells than the header are padded with empty strings, longer
// ones are truncated to the header width.
func Open(path string, opts Options, logger *zap.Logger) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	store, err := Ingest(f, opts, logger)
	if err != nil {
		return nil, fmt.Errorf("ingest %s: %w", path, err)
	}
	return store, nil
}

// Ingest reads CSV content from r and builds a Store. Split out from Open
// so tests can feed datasets from memory.
func Ingest(r io.Reader, opts Options, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.PayloadColumn == "" {
		opts = DefaultOptions()
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // tolerate ragged rows, pad/truncate below

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	columns := make([]string, len(header))
	for i, h := range header {
		columns[i] = strings.TrimSpace(h)
	}

	hasPayload := false
	for _, c := range columns {
		if c == opts.PayloadColumn {
			hasPayload = true
			break
		}
	}
	if !hasPayload {
		logger.Warn("payload column not present in dataset header",
			zap.String("payload_column", opts.PayloadColumn),
			zap.Strings("columns", columns))
	}

	var rows []*Row
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", len(rows)+1, err)
		}
		fields := make(map[string]string, len(columns))
		for i, col := range columns {
			if i < len(record) {
				fields[col] = record[i]
			} else {
				fields[col] = ""
			}
		}
		rows = append(rows, &Row{Index: len(rows), Fields: fields})
	}

	logger.Info("dataset ingested",
		zap.Int("rows", len(rows)),
		zap.Int("columns", len(columns)))

	return &Store{
		opts:    opts,
		columns: columns,
		loaded:  NewRowSet(rows),
		logger:  logger,
	}, nil
}

// Load returns the full ingested dataset. The returned RowSet is the same
// immutable view on every call.
func (s *Store) Load() *RowSet {
	return s.loaded
}

// Columns returns the dataset's column names in header order.
func (s *Store) Columns() []string {
	return s.columns
}

// Count returns the number of rows in the given set.
func (s *Store) Count(rs *RowSet) int {
	return rs.Len()
}

// ─── Filters ──────────────────────────────────────────────────────────────────

// SearchSubstring returns the rows of rs whose named columns contain needle
// as a case-sensitive literal substring. With no columns given, every column
// of the row is searched. An empty needle is an error.
func (s *Store) SearchSubstring(rs *RowSet, needle string, columns []string) (*RowSet, error) {
	if needle == "" {
		return EmptyRowSet(), fmt.Errorf("search value must not be empty")
	}
	if rs == nil {
		return EmptyRowSet(), nil
	}

	var kept []*Row
	for _, row := range rs.Rows() {
		if rowContains(row, needle, columns, s.columns) {
			kept = append(kept, row)
		}
	}
	return NewRowSet(kept), nil
}

func rowContains(row *Row, needle string, columns, allColumns []string) bool {
	if len(columns) == 0 {
		columns = allColumns
	}
	for _, col := range columns {
		if v, ok := row.Fields[col]; ok && strings.Contains(v, needle) {
			return true
		}
	}
	return false
}

// FilterTime retains rows whose timestamp is >= start and <= end, comparing
// ISO-8601 strings lexicographically. Either bound may be empty; both empty
// is an error. Rows with missing or unparseable timestamps are excluded.
func (s *Store) FilterTime(rs *RowSet, start, end string) (*RowSet, error) {
	if start == "" && end == "" {
		return EmptyRowSet(), fmt.Errorf("at least one of start or end is required")
	}
	if rs == nil {
		return EmptyRowSet(), nil
	}

	var kept []*Row
	for _, row := range rs.Rows() {
		ts := strings.TrimSpace(row.Fields[s.opts.TimestampColumn])
		if !parseableTimestamp(ts) {
			continue
		}
		if start != "" && ts < start {
			continue
		}
		if end != "" && ts > end {
			continue
		}
		kept = append(kept, row)
	}
	return NewRowSet(kept), nil
}

// timestampLayouts are the accepted ISO-8601 shapes. Lexicographic order
// matches chronological order for all of them.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseableTimestamp(ts string) bool {
	if ts == "" {
		return false
	}
	for _, layout := range timestampLayouts {
		if _, err := time.Parse(layout, ts); err == nil {
			return true
		}
	}
	return false
}

// FilterSeverity retains rows whose severity is in the given set. Level
// names are matched case-insensitively; an empty set or an unknown level
// name is an error.
func (s *Store) FilterSeverity(rs *RowSet, severities []string) (*RowSet, error) {
	if len(severities) == 0 {
		return EmptyRowSet(), fmt.Errorf("severity list must not be empty")
	}
	wanted := make(map[string]bool, len(severities))
	for _, sev := range severities {
		canon := strings.ToUpper(strings.TrimSpace(sev))
		if _, known := severityRank[canon]; !known {
			return EmptyRowSet(), fmt.Errorf("unknown severity level %q (known: %s)",
				sev, strings.Join(KnownSeverities(), ", "))
		}
		wanted[canon] = true
	}
	if rs == nil {
		return EmptyRowSet(), nil
	}

	var kept []*Row
	for _, row := range rs.Rows() {
		sev := strings.ToUpper(strings.TrimSpace(row.Fields[s.opts.SeverityColumn]))
		if wanted[sev] {
			kept = append(kept, row)
		}
	}
	return NewRowSet(kept), nil
}

// FilterField retains rows whose named field equals value exactly. Rows
// missing the field are excluded; a universally missing field yields an
// empty result, not an error.
func (s *Store) FilterField(rs *RowSet, field, value string) (*RowSet, error) {
	if field == "" {
		return EmptyRowSet(), fmt.Errorf("field name must not be empty")
	}
	if rs == nil {
		return EmptyRowSet(), nil
	}

	var kept []*Row
	for _, row := range rs.Rows() {
		if v, ok := row.Fields[field]; ok && v == value {
			kept = append(kept, row)
		}
	}
	return NewRowSet(kept), nil
}

// PayloadColumn returns the configured JSON payload column name.
func (s *Store) PayloadColumn() string {
	return s.opts.PayloadColumn
}

// TimestampColumn returns the configured timestamp column name.
func (s *Store) TimestampColumn() string {
	return s.opts.TimestampColumn
}

// SeverityColumn returns the configured severity column name.
func (s *Store) SeverityColumn() string {
	return s.opts.SeverityColumn
}
