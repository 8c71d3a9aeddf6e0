package entity

import (
	"fmt"
	"strings"

	"github.com/loglens/loglens-ai/internal/logstore"
)

// Extraction is the result of one extraction pass over a row set.
type Extraction struct {
	// Values maps type name to its unique values in first-seen order.
	Values map[string][]string

	// Occurrences maps type name to value to the positions (within the
	// scanned row set) of the rows the value was found in. Every listed
	// index is valid for the source row set.
	Occurrences map[string]map[string][]int

	// TypeOrder lists the extracted type names in request order, so
	// renderings of the result are deterministic.
	TypeOrder []string

	// Skipped lists requested type names that are not in the catalog.
	Skipped []string
}

// Extract runs every pattern of the requested types over the configured
// scan columns of each row in rs. Capture group 1 is the value when the
// pattern defines one, the whole match otherwise. Values are deduplicated
// per type preserving first-seen order; at most maxPerType values are kept
// per type (0 means unlimited). Unknown type names are skipped and
// reported, not fatal; an empty request is an error.
func (c *Catalog) Extract(rs *logstore.RowSet, typeNames []string, maxPerType int) (*Extraction, error) {
	if len(typeNames) == 0 {
		return nil, fmt.Errorf("at least one entity type is required")
	}

	ext := &Extraction{
		Values:      make(map[string][]string),
		Occurrences: make(map[string]map[string][]int),
	}

	for _, raw := range typeNames {
		name := strings.ToLower(strings.TrimSpace(raw))
		t, ok := c.types[name]
		if !ok {
			ext.Skipped = append(ext.Skipped, raw)
			continue
		}
		if _, dup := ext.Values[name]; dup {
			continue
		}
		values, occurrences := c.extractType(rs, t, maxPerType)
		ext.Values[name] = values
		ext.Occurrences[name] = occurrences
		ext.TypeOrder = append(ext.TypeOrder, name)
	}

	if len(ext.Values) == 0 && len(ext.Skipped) > 0 {
		return ext, fmt.Errorf("no known entity types in %v", typeNames)
	}
	return ext, nil
}

func (c *Catalog) extractType(rs *logstore.RowSet, t *Type, maxPerType int) ([]string, map[string][]int) {
	values := []string{}
	occurrences := make(map[string][]int)

	if rs == nil {
		return values, occurrences
	}

	for pos, row := range rs.Rows() {
		for _, col := range c.scanColumns {
			text, ok := row.Field(col)
			if !ok || text == "" {
				continue
			}
			for _, re := range t.Patterns {
				for _, m := range re.FindAllStringSubmatch(text, -1) {
					value := m[0]
					if len(m) > 1 && m[1] != "" {
						value = m[1]
					}
					if _, seen := occurrences[value]; !seen {
						if maxPerType > 0 && len(values) >= maxPerType {
							continue
						}
						values = append(values, value)
						occurrences[value] = nil
					}
					occurrences[value] = appendUnique(occurrences[value], pos)
				}
			}
		}
	}
	return values, occurrences
}

func appendUnique(indices []int, idx int) []int {
	for _, existing := range indices {
		if existing == idx {
			return indices
		}
	}
	return append(indices, idx)
}

// Summary renders the short per-type message surfaced to the reasoning
// trace: count plus up to three example values per type. Showing the
// values themselves (not merely counts) is what lets the reasoner cite
// them in final answers.
func (e *Extraction) Summary() string {
	var b strings.Builder
	first := true
	for _, name := range e.TypeOrder {
		values := e.Values[name]
		if !first {
			b.WriteString("; ")
		}
		first = false
		fmt.Fprintf(&b, "%s: %d", name, len(values))
		if len(values) > 0 {
			n := len(values)
			if n > 3 {
				n = 3
			}
			fmt.Fprintf(&b, " [%s", strings.Join(values[:n], ", "))
			if len(values) > n {
				fmt.Fprintf(&b, " (and %d more)", len(values)-n)
			}
			b.WriteString("]")
		}
	}
	if len(e.Skipped) > 0 {
		if !first {
			b.WriteString("; ")
		}
		fmt.Fprintf(&b, "skipped unknown types: %s", strings.Join(e.Skipped, ", "))
	}
	return b.String()
}
