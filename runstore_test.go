package pulsar

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRunRecord(id string, startedAt time.Time, success bool) *RunRecord {
	return &RunRecord{
		ID:           id,
		WorkflowName: "article-review",
		Success:      success,
		StepCount:    2,
		FinalState:   map[string]any{"draft": "text"},
		StartedAt:    startedAt,
		CompletedAt:  startedAt.Add(3 * time.Second),
		Duration:     3 * time.Second,
	}
}

func TestFileRunStore(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileRunStore(t.TempDir())
	require.NoError(t, err)

	base := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, store.Save(ctx, sampleRunRecord("run_1", base, true)))
	require.NoError(t, store.Save(ctx, sampleRunRecord("run_2", base.Add(time.Minute), false)))

	t.Run("get round trip", func(t *testing.T) {
		record, err := store.Get(ctx, "run_1")
		require.NoError(t, err)
		require.NotNil(t, record)
		assert.Equal(t, "article-review", record.WorkflowName)
		assert.Equal(t, map[string]any{"draft": "text"}, record.FinalState)
		assert.True(t, record.StartedAt.Equal(base))
	})

	t.Run("get missing returns nil", func(t *testing.T) {
		record, err := store.Get(ctx, "run_nope")
		require.NoError(t, err)
		assert.Nil(t, record)
	})

	t.Run("list newest first", func(t *testing.T) {
		records, err := store.List(ctx, 0)
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, "run_2", records[0].ID)
		assert.Equal(t, "run_1", records[1].ID)
	})

	t.Run("list honors limit", func(t *testing.T) {
		records, err := store.List(ctx, 1)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "run_2", records[0].ID)
	})

	t.Run("delete removes the record", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, "run_1"))
		record, err := store.Get(ctx, "run_1")
		require.NoError(t, err)
		assert.Nil(t, record)

		// deleting an absent ID is a no-op
		require.NoError(t, store.Delete(ctx, "run_1"))
	})
}

func TestNullRunStore(t *testing.T) {
	ctx := context.Background()
	store := NewNullRunStore()
	require.NoError(t, store.Save(ctx, sampleRunRecord("run_1", time.Now(), true)))
	record, err := store.Get(ctx, "run_1")
	require.NoError(t, err)
	assert.Nil(t, record)
	records, err := store.List(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, records)
	require.NoError(t, store.Delete(ctx, "run_1"))
}
