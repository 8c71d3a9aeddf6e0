package tool

// Entity-centric tools: extraction, frequency counting, aggregation, and
// co-occurrence lookup. All delegate pattern work to the entity catalog.

import (
	"fmt"
	"strings"
)

// ─── extract_entities ───────────────────────────────────────────────────────

type extractEntitiesTool struct{ deps Deps }

func (t *extractEntitiesTool) Name() string { return "extract_entities" }

func (t *extractEntitiesTool) Purpose() string {
	return "Extract unique entity values of the given types from the current working set"
}

func (t *extractEntitiesTool) Params() []ParamSpec {
	return []ParamSpec{
		{Name: "entity_types", Kind: KindList, Required: true, Example: `{"entity_types": ["cm_mac"]}`,
			Description: "entity type names to extract"},
		{Name: "rows", Kind: KindRowSet, Required: false, Inject: InjectFiltered,
			Description: "row set to scan"},
	}
}

func (t *extractEntitiesTool) Execute(params map[string]any) *Result {
	types, given := listParam(params, "entity_types")
	if !given || len(types) == 0 {
		return fail("extract_entities requires a non-empty 'entity_types' list")
	}
	rows, _ := rowsetParam(params, "rows")

	ext, err := t.deps.Catalog.Extract(rows, types, t.deps.Bounds.MaxEntitiesPerType)
	if err != nil {
		return fail("extraction failed: %v", err)
	}
	return ok(ext.Summary(), ext.Values)
}

// ─── count_entities ─────────────────────────────────────────────────────────

type countEntitiesTool struct{ deps Deps }

func (t *countEntitiesTool) Name() string { return "count_entities" }

func (t *countEntitiesTool) Purpose() string {
	return "Count how many rows mention each value of one entity type"
}

func (t *countEntitiesTool) Params() []ParamSpec {
	return []ParamSpec{
		{Name: "entity_type", Kind: KindString, Required: true, Example: `{"entity_type": "cm_mac"}`,
			Description: "entity type whose values to count"},
		{Name: "rows", Kind: KindRowSet, Required: false, Inject: InjectFiltered,
			Description: "row set to scan"},
	}
}

func (t *countEntitiesTool) Execute(params map[string]any) *Result {
	typeName, given := stringParam(params, "entity_type")
	if !given {
		return fail("count_entities requires a non-empty 'entity_type'")
	}
	rows, _ := rowsetParam(params, "rows")

	ext, err := t.deps.Catalog.Extract(rows, []string{typeName}, t.deps.Bounds.MaxEntitiesPerType)
	if err != nil {
		return fail("counting failed: %v", err)
	}

	key := strings.ToLower(strings.TrimSpace(typeName))
	counts := make(map[string]int, len(ext.Values[key]))
	total := 0
	for _, value := range ext.Values[key] {
		n := len(ext.Occurrences[key][value])
		counts[value] = n
		total += n
	}
	msg := fmt.Sprintf("%s: %d unique values, %d total occurrences", key, len(counts), total)
	return ok(msg, counts)
}

// ─── aggregate_entities ─────────────────────────────────────────────────────

type aggregateEntitiesTool struct{ deps Deps }

func (t *aggregateEntitiesTool) Name() string { return "aggregate_entities" }

func (t *aggregateEntitiesTool) Purpose() string {
	return "Extract several entity types at once with per-type value counts"
}

func (t *aggregateEntitiesTool) Params() []ParamSpec {
	return []ParamSpec{
		{Name: "entity_types", Kind: KindList, Required: true, Example: `{"entity_types": ["cm_mac", "rpdname"]}`,
			Description: "entity type names to aggregate"},
		{Name: "rows", Kind: KindRowSet, Required: false, Inject: InjectFiltered,
			Description: "row set to scan"},
	}
}

func (t *aggregateEntitiesTool) Execute(params map[string]any) *Result {
	types, given := listParam(params, "entity_types")
	if !given || len(types) == 0 {
		return fail("aggregate_entities requires a non-empty 'entity_types' list")
	}
	rows, _ := rowsetParam(params, "rows")

	ext, err := t.deps.Catalog.Extract(rows, types, t.deps.Bounds.MaxEntitiesPerType)
	if err != nil {
		return fail("aggregation failed: %v", err)
	}

	agg := make(map[string]map[string]any, len(ext.TypeOrder))
	total := 0
	for _, name := range ext.TypeOrder {
		values := ext.Values[name]
		agg[name] = map[string]any{
			"count":  len(values),
			"values": values,
		}
		total += len(values)
	}
	msg := fmt.Sprintf("%d values across %d types; %s", total, len(ext.TypeOrder), ext.Summary())
	return ok(msg, agg)
}

// ─── find_entity_relationships ──────────────────────────────────────────────

type findRelationshipsTool struct{ deps Deps }

func (t *findRelationshipsTool) Name() string { return "find_entity_relationships" }

func (t *findRelationshipsTool) Purpose() string {
	return "Find entity values that co-occur in rows mentioning a target value"
}

func (t *findRelationshipsTool) Params() []ParamSpec {
	return []ParamSpec{
		{Name: "target_value", Kind: KindString, Required: true, Example: `{"target_value": "MAWED07T01"}`,
			Description: "exact entity value to pivot on"},
		{Name: "related_types", Kind: KindList, Required: true, Example: `{"related_types": ["cm_mac"]}`,
			Description: "entity types to extract from the rows mentioning the target"},
		{Name: "rows", Kind: KindRowSet, Required: false, Inject: InjectFiltered,
			Description: "row set to search"},
	}
}

func (t *findRelationshipsTool) Execute(params map[string]any) *Result {
	target, given := stringParam(params, "target_value")
	if !given {
		return fail("find_entity_relationships requires a non-empty 'target_value'")
	}
	types, given := listParam(params, "related_types")
	if !given || len(types) == 0 {
		return fail("find_entity_relationships requires a non-empty 'related_types' list")
	}
	rows, _ := rowsetParam(params, "rows")

	mentioning, err := t.deps.Store.SearchSubstring(rows, target, nil)
	if err != nil {
		return fail("relationship search failed: %v", err)
	}
	if mentioning.Len() == 0 {
		return fail("no rows mention %q", target)
	}

	ext, err := t.deps.Catalog.Extract(mentioning, types, t.deps.Bounds.MaxEntitiesPerType)
	if err != nil {
		return fail("relationship extraction failed: %v", err)
	}

	msg := fmt.Sprintf("%d rows mention %q; co-occurring %s", mentioning.Len(), target, ext.Summary())
	return ok(msg, ext.Values)
}
