package logstore

// RowSet is an ordered, immutable view of a subset of ingested rows.
//
// Row sets are the currency of tool inputs and outputs: every filter and
// search returns a fresh RowSet derived from its input, and two independent
// row sets never share mutable state. Rows themselves are read-only after
// ingest, so a RowSet can be handed to nested tool calls without defensive
// copies.
type RowSet struct {
	rows []*Row
}

// NewRowSet creates a row set over the given rows. The slice is copied so
// later mutation of the caller's slice cannot affect the view.
func NewRowSet(rows []*Row) *RowSet {
	cp := make([]*Row, len(rows))
	copy(cp, rows)
	return &RowSet{rows: cp}
}

// EmptyRowSet returns a row set with no rows.
func EmptyRowSet() *RowSet {
	return &RowSet{}
}

// Len returns the number of rows in the set.
func (s *RowSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.rows)
}

// At returns the row at position i within this set.
func (s *RowSet) At(i int) *Row {
	return s.rows[i]
}

// Rows returns the underlying rows in order. Callers must treat the
// returned slice and its rows as read-only.
func (s *RowSet) Rows() []*Row {
	if s == nil {
		return nil
	}
	return s.rows
}

// Row is one ingested CSV log row. Fields maps column name to the raw cell
// value; Index is the row's position in the full dataset and is stable for
// the lifetime of the process. Rows are never mutated after ingest.
type Row struct {
	Index  int
	Fields map[string]string
}

// Field returns the named column's value and whether the column exists.
func (r *Row) Field(name string) (string, bool) {
	v, ok := r.Fields[name]
	return v, ok
}
