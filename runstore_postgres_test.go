package pulsar

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestPostgresRunStore spins up a throwaway database in Docker. Set
// PULSAR_TEST_POSTGRES=1 to run it.
func TestPostgresRunStore(t *testing.T) {
	if os.Getenv("PULSAR_TEST_POSTGRES") != "1" {
		t.Skip("set PULSAR_TEST_POSTGRES=1 to run postgres integration tests")
	}

	ctx := context.Background()
	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("pulsar_test"),
		postgres.WithUsername("pulsar"),
		postgres.WithPassword("pulsar"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute)),
	)
	require.NoError(t, err)
	defer container.Terminate(ctx)

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	store, err := NewPostgresRunStore(ctx, dsn)
	require.NoError(t, err)
	defer store.Close()

	base := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, store.Save(ctx, sampleRunRecord("run_pg_1", base, true)))
	require.NoError(t, store.Save(ctx, sampleRunRecord("run_pg_2", base.Add(time.Minute), false)))

	record, err := store.Get(ctx, "run_pg_1")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "article-review", record.WorkflowName)
	assert.Equal(t, map[string]any{"draft": "text"}, record.FinalState)
	assert.Equal(t, 3*time.Second, record.Duration)

	missing, err := store.Get(ctx, "run_pg_404")
	require.NoError(t, err)
	assert.Nil(t, missing)

	records, err := store.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "run_pg_2", records[0].ID)

	// saving the same ID again updates in place
	updated := sampleRunRecord("run_pg_1", base, false)
	updated.Error = "agent execution failed"
	require.NoError(t, store.Save(ctx, updated))
	record, err = store.Get(ctx, "run_pg_1")
	require.NoError(t, err)
	assert.False(t, record.Success)
	assert.Equal(t, "agent execution failed", record.Error)

	require.NoError(t, store.Delete(ctx, "run_pg_1"))
	deleted, err := store.Get(ctx, "run_pg_1")
	require.NoError(t, err)
	assert.Nil(t, deleted)
}
