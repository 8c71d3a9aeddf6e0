package tool

// Row-producing tools and the dataset formatters. Every tool here returns
// its derived set in Result.Data so the orchestrator can cache it as the
// current filtered set.

import (
	"fmt"
	"sort"
	"strings"

	"github.com/loglens/loglens-ai/internal/logstore"
)

// previewLimit caps how much of a row is shown in a formatted sample.
const previewLimit = 200

// ─── search_logs ────────────────────────────────────────────────────────────

type searchLogsTool struct{ deps Deps }

func (t *searchLogsTool) Name() string { return "search_logs" }

func (t *searchLogsTool) Purpose() string {
	return "Search the full dataset for rows containing an exact substring"
}

func (t *searchLogsTool) Params() []ParamSpec {
	return []ParamSpec{
		{Name: "value", Kind: KindString, Required: true, Example: `{"value": "MAWED07T01"}`,
			Description: "literal, case-sensitive substring to search for"},
		{Name: "columns", Kind: KindList, Required: false, Example: `{"columns": ["_source.log"]}`,
			Description: "restrict the search to these columns; all columns when omitted"},
		{Name: "rows", Kind: KindRowSet, Required: false, Inject: InjectLoaded,
			Description: "row set to search"},
	}
}

func (t *searchLogsTool) Execute(params map[string]any) *Result {
	value, given := stringParam(params, "value")
	if !given {
		return fail("search_logs requires a non-empty 'value'")
	}
	rows, _ := rowsetParam(params, "rows")
	columns, _ := listParam(params, "columns")

	found, err := t.deps.Store.SearchSubstring(rows, value, columns)
	if err != nil {
		return fail("search failed: %v", err)
	}
	found, truncated := truncateRows(found, t.deps.Bounds.MaxRows)

	msg := fmt.Sprintf("kept %d of %d rows containing %q", found.Len(), rows.Len(), value)
	if truncated {
		msg += fmt.Sprintf(" (truncated to first %d)", t.deps.Bounds.MaxRows)
	}
	return ok(msg, found)
}

// ─── filter_by_time ─────────────────────────────────────────────────────────

type filterByTimeTool struct{ deps Deps }

func (t *filterByTimeTool) Name() string { return "filter_by_time" }

func (t *filterByTimeTool) Purpose() string {
	return "Keep rows whose timestamp falls within an ISO-8601 range"
}

func (t *filterByTimeTool) Params() []ParamSpec {
	return []ParamSpec{
		{Name: "start_time", Kind: KindString, Required: false, Example: `{"start_time": "2024-03-01T10:00:00Z"}`,
			Description: "inclusive lower bound; may be omitted"},
		{Name: "end_time", Kind: KindString, Required: false, Example: `{"end_time": "2024-03-01T11:00:00Z"}`,
			Description: "inclusive upper bound; may be omitted"},
		{Name: "rows", Kind: KindRowSet, Required: false, Inject: InjectFiltered,
			Description: "row set to filter"},
	}
}

func (t *filterByTimeTool) Execute(params map[string]any) *Result {
	start, _ := stringParam(params, "start_time")
	end, _ := stringParam(params, "end_time")
	rows, _ := rowsetParam(params, "rows")

	kept, err := t.deps.Store.FilterTime(rows, start, end)
	if err != nil {
		return fail("time filter failed: %v", err)
	}
	kept, truncated := truncateRows(kept, t.deps.Bounds.MaxRows)

	span := describeSpan(start, end)
	msg := fmt.Sprintf("kept %d of %d rows within %s", kept.Len(), rows.Len(), span)
	if truncated {
		msg += fmt.Sprintf(" (truncated to first %d)", t.deps.Bounds.MaxRows)
	}
	return ok(msg, kept)
}

func describeSpan(start, end string) string {
	switch {
	case start != "" && end != "":
		return fmt.Sprintf("[%s, %s]", start, end)
	case start != "":
		return fmt.Sprintf("[%s, ∞)", start)
	case end != "":
		return fmt.Sprintf("(-∞, %s]", end)
	default:
		return "(unbounded)"
	}
}

// ─── filter_by_severity ─────────────────────────────────────────────────────

type filterBySeverityTool struct{ deps Deps }

func (t *filterBySeverityTool) Name() string { return "filter_by_severity" }

func (t *filterBySeverityTool) Purpose() string {
	return "Keep rows whose severity is one of the given levels"
}

func (t *filterBySeverityTool) Params() []ParamSpec {
	return []ParamSpec{
		{Name: "severities", Kind: KindList, Required: true, Example: `{"severities": ["ERROR", "CRITICAL"]}`,
			Description: "levels to keep, from DEBUG, INFO, WARNING, ERROR, CRITICAL"},
		{Name: "rows", Kind: KindRowSet, Required: false, Inject: InjectFiltered,
			Description: "row set to filter"},
	}
}

func (t *filterBySeverityTool) Execute(params map[string]any) *Result {
	severities, given := listParam(params, "severities")
	if !given || len(severities) == 0 {
		return fail("filter_by_severity requires a non-empty 'severities' list")
	}
	rows, _ := rowsetParam(params, "rows")

	kept, err := t.deps.Store.FilterSeverity(rows, severities)
	if err != nil {
		return fail("severity filter failed: %v", err)
	}

	msg := fmt.Sprintf("kept %d of %d rows with severity in [%s]",
		kept.Len(), rows.Len(), strings.Join(severities, ", "))
	return ok(msg, kept)
}

// ─── filter_by_field ────────────────────────────────────────────────────────

type filterByFieldTool struct{ deps Deps }

func (t *filterByFieldTool) Name() string { return "filter_by_field" }

func (t *filterByFieldTool) Purpose() string {
	return "Keep rows where a named column exactly equals a value"
}

func (t *filterByFieldTool) Params() []ParamSpec {
	return []ParamSpec{
		{Name: "field", Kind: KindString, Required: true, Example: `{"field": "pod_name"}`,
			Description: "column name to compare"},
		{Name: "value", Kind: KindString, Required: true, Example: `{"value": "logpod-1"}`,
			Description: "exact value the column must equal"},
		{Name: "rows", Kind: KindRowSet, Required: false, Inject: InjectFiltered,
			Description: "row set to filter"},
	}
}

func (t *filterByFieldTool) Execute(params map[string]any) *Result {
	field, given := stringParam(params, "field")
	if !given {
		return fail("filter_by_field requires a non-empty 'field'")
	}
	value, given := stringParam(params, "value")
	if !given {
		return fail("filter_by_field requires a non-empty 'value'")
	}
	rows, _ := rowsetParam(params, "rows")

	kept, err := t.deps.Store.FilterField(rows, field, value)
	if err != nil {
		return fail("field filter failed: %v", err)
	}

	msg := fmt.Sprintf("kept %d of %d rows where %s == %q", kept.Len(), rows.Len(), field, value)
	return ok(msg, kept)
}

// ─── get_log_count ──────────────────────────────────────────────────────────

type getLogCountTool struct{ deps Deps }

func (t *getLogCountTool) Name() string { return "get_log_count" }

func (t *getLogCountTool) Purpose() string {
	return "Count the rows in the current working set"
}

func (t *getLogCountTool) Params() []ParamSpec {
	return []ParamSpec{
		{Name: "rows", Kind: KindRowSet, Required: false, Inject: InjectFiltered,
			Description: "row set to count"},
	}
}

func (t *getLogCountTool) Execute(params map[string]any) *Result {
	rows, _ := rowsetParam(params, "rows")
	n := t.deps.Store.Count(rows)
	return ok(fmt.Sprintf("total: %d logs", n), n)
}

// ─── return_logs ────────────────────────────────────────────────────────────

type returnLogsTool struct{ deps Deps }

func (t *returnLogsTool) Name() string { return "return_logs" }

func (t *returnLogsTool) Purpose() string {
	return "Format the current working set for display: count, time span, severity histogram, sample rows"
}

func (t *returnLogsTool) Params() []ParamSpec {
	return []ParamSpec{
		{Name: "max_samples", Kind: KindInteger, Required: false, Example: `{"max_samples": 5}`,
			Description: "how many example rows to include"},
		{Name: "rows", Kind: KindRowSet, Required: false, Inject: InjectFiltered,
			Description: "row set to format"},
	}
}

func (t *returnLogsTool) Execute(params map[string]any) *Result {
	rows, _ := rowsetParam(params, "rows")
	maxSamples, given := intParam(params, "max_samples")
	if !given || maxSamples <= 0 || maxSamples > t.deps.Bounds.MaxSamples {
		maxSamples = t.deps.Bounds.MaxSamples
	}

	block := t.format(rows, maxSamples)
	return ok(fmt.Sprintf("Formatted %d logs", rows.Len()), block)
}

func (t *returnLogsTool) format(rows *logstore.RowSet, maxSamples int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Total logs: %d\n", rows.Len())
	if rows.Len() == 0 {
		return b.String()
	}

	tsCol := t.deps.Store.TimestampColumn()
	sevCol := t.deps.Store.SeverityColumn()

	minTS, maxTS := "", ""
	histogram := map[string]int{}
	for _, row := range rows.Rows() {
		if ts, ok := row.Field(tsCol); ok && ts != "" {
			if minTS == "" || ts < minTS {
				minTS = ts
			}
			if ts > maxTS {
				maxTS = ts
			}
		}
		if sev, ok := row.Field(sevCol); ok && sev != "" {
			histogram[strings.ToUpper(sev)]++
		}
	}
	if minTS != "" {
		fmt.Fprintf(&b, "Time span: %s to %s\n", minTS, maxTS)
	}
	if len(histogram) > 0 {
		levels := make([]string, 0, len(histogram))
		for level := range histogram {
			levels = append(levels, level)
		}
		sort.Strings(levels)
		parts := make([]string, 0, len(levels))
		for _, level := range levels {
			parts = append(parts, fmt.Sprintf("%s=%d", level, histogram[level]))
		}
		fmt.Fprintf(&b, "Severity: %s\n", strings.Join(parts, " "))
	}

	n := rows.Len()
	if n > maxSamples {
		n = maxSamples
	}
	fmt.Fprintf(&b, "Samples (%d of %d):\n", n, rows.Len())
	payloadCol := t.deps.Store.PayloadColumn()
	for i := 0; i < n; i++ {
		row := rows.At(i)
		ts, _ := row.Field(tsCol)
		sev, _ := row.Field(sevCol)
		payload, _ := row.Field(payloadCol)
		line := fmt.Sprintf("  [%s] %s %s", sev, ts, payload)
		if len(line) > previewLimit {
			line = line[:previewLimit] + "…"
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}
