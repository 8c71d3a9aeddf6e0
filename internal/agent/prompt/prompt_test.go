package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/loglens/loglens-ai/internal/agent/tool"
	"github.com/loglens/loglens-ai/internal/entity"
	"github.com/loglens/loglens-ai/internal/logstore"
	"github.com/loglens/loglens-ai/internal/normalize"
)

const promptCSV = `timestamp,severity,_source.log
2024-03-01T10:00:00Z,INFO,"{""rpdname"":""MAWED07T01""}"
`

func testBuilder(t *testing.T) (*Builder, tool.Deps) {
	t.Helper()
	store, err := logstore.Ingest(strings.NewReader(promptCSV), logstore.DefaultOptions(), zap.NewNop())
	require.NoError(t, err)
	deps := tool.Deps{
		Store:      store,
		Catalog:    entity.DefaultCatalog([]string{store.PayloadColumn()}),
		Normalizer: normalize.New(store),
		Bounds:     tool.DefaultBounds(),
		Logger:     zap.NewNop(),
	}
	return NewBuilder(deps.Catalog, tool.NewRegistry(deps)), deps
}

func TestSystemPromptContents(t *testing.T) {
	b, _ := testBuilder(t)
	sys := b.System()

	// Alias table, tool catalog, and the output contract all present.
	assert.Contains(t, sys, "use 'cm_mac'")
	assert.Contains(t, sys, "- search_logs:")
	assert.Contains(t, sys, "- finalize_answer:")
	assert.Contains(t, sys, "single JSON object")
	assert.Contains(t, sys, "failed twice")

	// Stable across calls.
	assert.Equal(t, sys, b.System())
}

func TestUserPromptRendersTrace(t *testing.T) {
	b, _ := testBuilder(t)

	trace := []TraceStep{
		{
			Iteration: 1,
			Reasoning: "search for the rpd first",
			Tool:      "search_logs",
			Params:    map[string]any{"value": "MAWED07T01"},
			Message:   "kept 3 of 24 rows containing \"MAWED07T01\"",
		},
		{
			Iteration: 2,
			Tool:      "extract_entities",
			Params:    map[string]any{"entity_types": []any{"cm_mac"}},
			Message:   "cm_mac: 2 [1c:93:7c:2a:72:c3, 28:7a:ee:c9:66:4a]",
			Data:      map[string][]string{"cm_mac": {"1c:93:7c:2a:72:c3", "28:7a:ee:c9:66:4a"}},
		},
	}

	user := b.User("find all cms connected to rpd MAWED07T01", trace)

	assert.Contains(t, user, "QUESTION: find all cms connected to rpd MAWED07T01")
	assert.Contains(t, user, "Step 1:")
	assert.Contains(t, user, `search_logs({"value":"MAWED07T01"})`)
	assert.Contains(t, user, "kept 3 of 24")

	// Entity data is rendered in full so the model can cite the values.
	assert.Contains(t, user, `"cm_mac":["1c:93:7c:2a:72:c3","28:7a:ee:c9:66:4a"]`)

	// Second iteration onwards carries the finalize reminder.
	assert.Contains(t, user, "finalize now")
}

func TestUserPromptFirstIterationHasNoReminder(t *testing.T) {
	b, _ := testBuilder(t)

	user := b.User("count all logs", nil)
	assert.Contains(t, user, "QUESTION: count all logs")
	assert.NotContains(t, user, "finalize now")
	assert.NotContains(t, user, "OBSERVATIONS")
}

func TestUserPromptElidesInjectedRowSets(t *testing.T) {
	b, deps := testBuilder(t)

	trace := []TraceStep{{
		Iteration: 1,
		Tool:      "get_log_count",
		Params:    map[string]any{"rows": deps.Store.Load()},
		Message:   "total: 1 logs",
	}}

	user := b.User("count all logs", trace)
	assert.Contains(t, user, "get_log_count()")
	assert.NotContains(t, user, "rows")
}

func TestUserPromptShowsErrors(t *testing.T) {
	b, _ := testBuilder(t)

	trace := []TraceStep{{
		Iteration: 1,
		Tool:      "filter_by_severity",
		Params:    map[string]any{"severities": []any{"BOGUS"}},
		Err:       "severity filter failed: unknown severity \"BOGUS\"",
	}}

	user := b.User("show errors", trace)
	assert.Contains(t, user, "error: severity filter failed")
}
