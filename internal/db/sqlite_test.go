package db

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) Store {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleRun(id string, started time.Time) *RunRecord {
	return &RunRecord{
		ID:           id,
		Query:        "which pod logged errors?",
		Success:      true,
		Answer:       "pod api-7f9 logged 3 errors",
		Confidence:   0.9,
		Iterations:   3,
		LogsAnalyzed: 120,
		StartedAt:    started,
		FinishedAt:   started.Add(2 * time.Second),
		Steps: []*RunStepRecord{
			{
				RunID:        id,
				Iteration:    1,
				Tool:         "search_logs",
				DecisionJSON: `{"tool":"search_logs"}`,
				ResultJSON:   `{"success":true,"message":"kept 3 of 120 rows containing \"error\""}`,
				WallclockMS:  412,
			},
			{
				RunID:        id,
				Iteration:    2,
				Tool:         "finalize_answer",
				DecisionJSON: `{"tool":"finalize_answer"}`,
				ResultJSON:   `{"success":true,"message":"Answer provided"}`,
				WallclockMS:  388,
			},
		},
	}
}

func TestSaveAndGetRun(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec := sampleRun("run-1", time.Now().UTC().Truncate(time.Second))
	require.NoError(t, store.SaveRun(ctx, rec))

	got, err := store.GetRun(ctx, "run-1")
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, rec.Query, got.Query)
	assert.True(t, got.Success)
	assert.Equal(t, rec.Answer, got.Answer)
	assert.InDelta(t, 0.9, got.Confidence, 1e-9)
	assert.Equal(t, 3, got.Iterations)
	assert.Equal(t, 120, got.LogsAnalyzed)

	require.Len(t, got.Steps, 2)
	assert.Equal(t, "search_logs", got.Steps[0].Tool)
	assert.Equal(t, 1, got.Steps[0].Iteration)
	assert.Equal(t, "finalize_answer", got.Steps[1].Tool)
	assert.Equal(t, int64(388), got.Steps[1].WallclockMS)
}

func TestGetRunMissingReturnsNil(t *testing.T) {
	store := newTestStore(t)

	got, err := store.GetRun(context.Background(), "no-such-run")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSaveRunReplacesExisting(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	started := time.Now().UTC().Truncate(time.Second)

	rec := sampleRun("run-1", started)
	require.NoError(t, store.SaveRun(ctx, rec))

	rec.Answer = "revised answer"
	rec.Iterations = 5
	rec.Steps = rec.Steps[:1]
	require.NoError(t, store.SaveRun(ctx, rec))

	got, err := store.GetRun(ctx, "run-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "revised answer", got.Answer)
	assert.Equal(t, 5, got.Iterations)
	assert.Len(t, got.Steps, 1)
}

func TestListRunsNewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Second)

	for i := 0; i < 5; i++ {
		rec := sampleRun(fmt.Sprintf("run-%d", i), base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, store.SaveRun(ctx, rec))
	}

	runs, err := store.ListRuns(ctx, 3)
	require.NoError(t, err)
	require.Len(t, runs, 3)

	assert.Equal(t, "run-4", runs[0].ID)
	assert.Equal(t, "run-3", runs[1].ID)
	assert.Equal(t, "run-2", runs[2].ID)

	// Listing skips steps.
	assert.Empty(t, runs[0].Steps)
}

func TestListRunsDefaultLimit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveRun(ctx, sampleRun("run-a", time.Now().UTC())))

	runs, err := store.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestMigrateIsIdempotent(t *testing.T) {
	store := newTestStore(t)

	s := store.(*sqliteStore)
	require.NoError(t, s.migrate())
	require.NoError(t, s.migrate())

	assert.NoError(t, store.Ping(context.Background()))
}
