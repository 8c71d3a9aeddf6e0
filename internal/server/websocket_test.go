package server

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loglens/loglens-ai/internal/agent"
)

func dialWS(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := strings.Replace(ts.URL, "http", "ws", 1) + "/ws/query"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestQueryStreamEmitsStepsThenResult(t *testing.T) {
	factory := func(obs agent.StepObserver) QueryEngine {
		return &fakeEngine{res: cannedResult(), obs: obs}
	}
	srv, store := newTestServer(t, &fakeEngine{res: cannedResult()}, factory)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn := dialWS(t, ts)
	require.NoError(t, conn.WriteJSON(QueryRequest{Query: "who registered the modem?"}))

	var frames []wsFrame
	for i := 0; i < 3; i++ {
		var f wsFrame
		require.NoError(t, conn.ReadJSON(&f))
		frames = append(frames, f)
	}

	require.Equal(t, frameTypeStep, frames[0].Type)
	assert.Equal(t, 1, frames[0].Step.Iteration)
	assert.Equal(t, "q-123", frames[0].QueryID)

	require.Equal(t, frameTypeStep, frames[1].Type)
	assert.Equal(t, 2, frames[1].Step.Iteration)

	require.Equal(t, frameTypeResult, frames[2].Type)
	require.NotNil(t, frames[2].Result)
	assert.True(t, frames[2].Result.Success)
	assert.Equal(t, "pod api-7f9 registered the modem", frames[2].Result.Answer)

	// The run was persisted just like the REST path.
	rec, err := store.GetRun(context.Background(), "q-123")
	require.NoError(t, err)
	require.NotNil(t, rec)
}

func TestQueryStreamWithoutFactoryStillAnswers(t *testing.T) {
	srv, _ := newTestServer(t, &fakeEngine{res: cannedResult()}, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn := dialWS(t, ts)
	require.NoError(t, conn.WriteJSON(QueryRequest{Query: "who registered the modem?"}))

	var f wsFrame
	require.NoError(t, conn.ReadJSON(&f))
	assert.Equal(t, frameTypeResult, f.Type)
	require.NotNil(t, f.Result)
	assert.True(t, f.Result.Success)
}

func TestQueryStreamRejectsEmptyQuery(t *testing.T) {
	srv, _ := newTestServer(t, &fakeEngine{res: cannedResult()}, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn := dialWS(t, ts)
	require.NoError(t, conn.WriteJSON(QueryRequest{Query: "   "}))

	var f wsFrame
	require.NoError(t, conn.ReadJSON(&f))
	assert.Equal(t, frameTypeError, f.Type)
	assert.Contains(t, f.Error, "query cannot be empty")
}

func TestQueryStreamServesFollowUpQueries(t *testing.T) {
	srv, _ := newTestServer(t, &fakeEngine{res: cannedResult()}, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn := dialWS(t, ts)
	for i := 0; i < 2; i++ {
		require.NoError(t, conn.WriteJSON(QueryRequest{Query: "who registered the modem?"}))
		var f wsFrame
		require.NoError(t, conn.ReadJSON(&f))
		assert.Equal(t, frameTypeResult, f.Type)
	}
}
