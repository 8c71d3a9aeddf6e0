package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loglens/loglens-ai/internal/agent"
	"github.com/loglens/loglens-ai/internal/agent/decision"
	"github.com/loglens/loglens-ai/internal/agent/tool"
	"github.com/loglens/loglens-ai/internal/config"
	"github.com/loglens/loglens-ai/internal/db"
)

// fakeEngine replays a canned result and feeds its trace to the observer,
// mimicking how the orchestrator reports steps as they happen.
type fakeEngine struct {
	res *agent.Result
	obs agent.StepObserver
}

func (f *fakeEngine) Analyze(ctx context.Context, query string) *agent.Result {
	if f.obs != nil {
		for _, step := range f.res.Trace {
			f.obs(f.res.QueryID, step)
		}
	}
	return f.res
}

func cannedResult() *agent.Result {
	return &agent.Result{
		QueryID:    "q-123",
		Success:    true,
		Answer:     "pod api-7f9 registered the modem",
		Confidence: 0.9,
		Iterations: 2,
		Trace: []*agent.Step{
			{
				Iteration: 1,
				Decision:  &decision.Decision{Tool: "search_logs", Parameters: map[string]any{"value": "modem"}},
				Result:    &tool.Result{Success: true, Message: `kept 3 of 10 rows containing "modem"`},
			},
			{
				Iteration: 2,
				Decision:  &decision.Decision{Done: true, Answer: "pod api-7f9 registered the modem"},
			},
		},
		LogsAnalyzed: 3,
	}
}

func newTestServer(t *testing.T, engine QueryEngine, factory EngineFactory) (*Server, db.Store) {
	t.Helper()
	store, err := db.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	srv, err := NewServer(Deps{
		Config:    config.DefaultConfig(),
		Engine:    engine,
		NewEngine: factory,
		Runs:      store,
	})
	require.NoError(t, err)
	return srv, store
}

func TestNewServerRequiresConfigAndEngine(t *testing.T) {
	_, err := NewServer(Deps{Engine: &fakeEngine{}})
	assert.Error(t, err)

	_, err = NewServer(Deps{Config: config.DefaultConfig()})
	assert.Error(t, err)
}

func TestHealthAndReady(t *testing.T) {
	srv, _ := newTestServer(t, &fakeEngine{res: cannedResult()}, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/readyz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, &fakeEngine{res: cannedResult()}, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestQueryEndpoint(t *testing.T) {
	srv, store := newTestServer(t, &fakeEngine{res: cannedResult()}, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	body, _ := json.Marshal(QueryRequest{Query: "who registered the modem?"})
	resp, err := http.Post(ts.URL+"/api/v1/query", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var res agent.Result
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	assert.True(t, res.Success)
	assert.Equal(t, "pod api-7f9 registered the modem", res.Answer)
	assert.Len(t, res.Trace, 2)

	// The run was persisted under its query ID.
	rec, err := store.GetRun(context.Background(), "q-123")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "who registered the modem?", rec.Query)
	assert.Len(t, rec.Steps, 2)
	assert.Equal(t, "search_logs", rec.Steps[0].Tool)
}

func TestQueryEndpointRejectsEmptyQuery(t *testing.T) {
	srv, _ := newTestServer(t, &fakeEngine{res: cannedResult()}, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/v1/query", "application/json", bytes.NewReader([]byte(`{"query":"  "}`)))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestQueryEndpointRejectsGet(t *testing.T) {
	srv, _ := newTestServer(t, &fakeEngine{res: cannedResult()}, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/v1/query")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestRunHistoryEndpoints(t *testing.T) {
	srv, _ := newTestServer(t, &fakeEngine{res: cannedResult()}, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	body, _ := json.Marshal(QueryRequest{Query: "who registered the modem?"})
	resp, err := http.Post(ts.URL+"/api/v1/query", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()

	// List
	resp, err = http.Get(ts.URL + "/api/v1/runs?limit=5")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var list struct {
		Runs  []*db.RunRecord `json:"runs"`
		Count int             `json:"count"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Equal(t, 1, list.Count)
	assert.Equal(t, "q-123", list.Runs[0].ID)
	assert.Empty(t, list.Runs[0].Steps)

	// Get one
	resp, err = http.Get(ts.URL + "/api/v1/runs/q-123")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var rec db.RunRecord
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rec))
	assert.Equal(t, "q-123", rec.ID)
	assert.Len(t, rec.Steps, 2)

	// Missing run
	resp, err = http.Get(ts.URL + "/api/v1/runs/nope")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListRunsRejectsBadLimit(t *testing.T) {
	srv, _ := newTestServer(t, &fakeEngine{res: cannedResult()}, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/v1/runs?limit=zero")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
