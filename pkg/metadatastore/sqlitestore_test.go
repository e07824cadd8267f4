package metadatastore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "meta.db"))
	require.NoError(t, err, "store should initialize its schema on a fresh file")
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRecordAndQueryGenerations(t *testing.T) {
	store := testStore(t)

	latest, err := store.LatestGeneration("flat")
	require.NoError(t, err)
	assert.Nil(t, latest, "an empty store has no latest generation")

	older := &ModelGeneration{
		ID: "gen-1", PropertyType: "flat", Path: "models/flat.json",
		TrainedAt: time.Now().Add(-2 * time.Hour).UTC(),
		LoadedAt:  time.Now().Add(-1 * time.Hour).UTC(),
		MAE:       41000, RMSE: 55000, R2: 0.87,
	}
	newer := &ModelGeneration{
		ID: "gen-2", PropertyType: "flat", Path: "models/flat.json",
		TrainedAt: time.Now().Add(-10 * time.Minute).UTC(),
		LoadedAt:  time.Now().UTC(),
		MAE:       39000, RMSE: 52000, R2: 0.89,
	}
	require.NoError(t, store.RecordGeneration(older))
	require.NoError(t, store.RecordGeneration(newer))

	latest, err = store.LatestGeneration("flat")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "gen-2", latest.ID, "the most recently loaded generation should win")
	assert.InDelta(t, 0.89, latest.R2, 1e-9)

	latest, err = store.LatestGeneration("plot")
	require.NoError(t, err)
	assert.Nil(t, latest, "generations are scoped per property type")
}

func TestRecordGenerationReplaceIsIdempotent(t *testing.T) {
	store := testStore(t)
	gen := &ModelGeneration{
		ID: "gen-1", PropertyType: "house", Path: "models/house.json",
		TrainedAt: time.Now().UTC(), LoadedAt: time.Now().UTC(),
	}
	require.NoError(t, store.RecordGeneration(gen))
	gen.MAE = 12345
	require.NoError(t, store.RecordGeneration(gen), "re-recording the same generation should replace, not fail")

	latest, err := store.LatestGeneration("house")
	require.NoError(t, err)
	assert.Equal(t, 12345.0, latest.MAE)
}

func TestRetrainRunRoundTrip(t *testing.T) {
	store := testStore(t)

	runs, err := store.ListRetrainRuns(0)
	require.NoError(t, err)
	assert.Empty(t, runs)

	first := &RetrainRun{
		ID:        "run-1",
		StartedAt: time.Now().Add(-time.Hour).UTC(),
		Status:    "failed",
		Detail:    "training plot model: dataset missing",
	}
	first.FinishedAt = first.StartedAt.Add(time.Minute)
	second := &RetrainRun{
		ID:        "run-2",
		StartedAt: time.Now().UTC(),
		Status:    "ok",
	}
	second.FinishedAt = second.StartedAt.Add(5 * time.Minute)

	require.NoError(t, store.RecordRetrainRun(first))
	require.NoError(t, store.RecordRetrainRun(second))

	runs, err = store.ListRetrainRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-2", runs[0].ID, "runs should come back most recent first")
	assert.Equal(t, "ok", runs[0].Status)
	assert.Equal(t, "training plot model: dataset missing", runs[1].Detail)

	runs, err = store.ListRetrainRuns(1)
	require.NoError(t, err)
	assert.Len(t, runs, 1, "the limit should cap the result set")
}
