package tool

// Vocabulary tools: synonym expansion and variant-union search, for queries
// phrased in words the logs never use literally.

import (
	"fmt"
	"strings"
)

// ─── normalize_term ─────────────────────────────────────────────────────────

type normalizeTermTool struct{ deps Deps }

func (t *normalizeTermTool) Name() string { return "normalize_term" }

func (t *normalizeTermTool) Purpose() string {
	return "Expand a search term into the variant spellings that appear in logs"
}

func (t *normalizeTermTool) Params() []ParamSpec {
	return []ParamSpec{
		{Name: "term", Kind: KindString, Required: true, Example: `{"term": "registration"}`,
			Description: "term to expand"},
	}
}

func (t *normalizeTermTool) Execute(params map[string]any) *Result {
	term, given := stringParam(params, "term")
	if !given {
		return fail("normalize_term requires a non-empty 'term'")
	}

	variants, err := t.deps.Normalizer.Normalize(term)
	if err != nil {
		return fail("normalization failed: %v", err)
	}
	msg := fmt.Sprintf("%q expands to %d variants: [%s]", term, len(variants), strings.Join(variants, ", "))
	return ok(msg, variants)
}

// ─── fuzzy_search ───────────────────────────────────────────────────────────

type fuzzySearchTool struct{ deps Deps }

func (t *fuzzySearchTool) Name() string { return "fuzzy_search" }

func (t *fuzzySearchTool) Purpose() string {
	return "Search for a term and all its variant spellings at once"
}

func (t *fuzzySearchTool) Params() []ParamSpec {
	return []ParamSpec{
		{Name: "term", Kind: KindString, Required: true, Example: `{"term": "registration"}`,
			Description: "term to search; synonyms are searched too"},
		{Name: "rows", Kind: KindRowSet, Required: false, Inject: InjectLoaded,
			Description: "row set to search"},
	}
}

func (t *fuzzySearchTool) Execute(params map[string]any) *Result {
	term, given := stringParam(params, "term")
	if !given {
		return fail("fuzzy_search requires a non-empty 'term'")
	}
	rows, _ := rowsetParam(params, "rows")

	found, variants, err := t.deps.Normalizer.FuzzySearch(rows, term)
	if err != nil {
		return fail("fuzzy search failed: %v", err)
	}
	found, truncated := truncateRows(found, t.deps.Bounds.MaxRows)

	msg := fmt.Sprintf("kept %d of %d rows matching any of [%s]",
		found.Len(), rows.Len(), strings.Join(variants, ", "))
	if truncated {
		msg += fmt.Sprintf(" (truncated to first %d)", t.deps.Bounds.MaxRows)
	}
	return ok(msg, found)
}

// ─── finalize_answer ────────────────────────────────────────────────────────

type finalizeAnswerTool struct{ deps Deps }

func (t *finalizeAnswerTool) Name() string { return "finalize_answer" }

func (t *finalizeAnswerTool) Purpose() string {
	return "Terminate the investigation with a final answer"
}

func (t *finalizeAnswerTool) Params() []ParamSpec {
	return []ParamSpec{
		{Name: "answer", Kind: KindString, Required: true, Example: `{"answer": "2 modems are connected: …"}`,
			Description: "complete answer to the user's question, citing concrete values"},
		{Name: "confidence", Kind: KindInteger, Required: false, Example: `{"confidence": 0.9}`,
			Description: "confidence in the answer, 0.0 to 1.0"},
	}
}

func (t *finalizeAnswerTool) Execute(params map[string]any) *Result {
	answer, given := stringParam(params, "answer")
	if !given {
		return fail("finalize_answer requires a non-empty 'answer'")
	}
	return ok("Answer provided", answer)
}
