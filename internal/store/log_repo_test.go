package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogRepo_StartAndFinalize(t *testing.T) {
	repo, err := NewLogRepo(newTestDB(t))
	require.NoError(t, err)
	ctx := context.Background()

	id, err := repo.Start(ctx, "orders", "finance")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	entry, err := repo.Get(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, StatusRunning, entry.Status)
	assert.Nil(t, entry.CompletedAt)

	counts := RunCounts{Inserted: 10, Updated: 2, Deleted: 1, Total: 13}
	require.NoError(t, repo.Finalize(ctx, id, StatusSuccess, counts, "", 1500*time.Millisecond))

	entry, err = repo.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, entry.Status)
	assert.Equal(t, 10, entry.RowsInserted)
	assert.Equal(t, 13, entry.RowsTotal)
	assert.Equal(t, int64(1500), entry.DurationMS)
	require.NotNil(t, entry.CompletedAt)

	// finalized entries are immutable
	require.NoError(t, repo.Finalize(ctx, id, StatusError, RunCounts{}, "late", 0))
	entry, err = repo.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, entry.Status)
	assert.Empty(t, entry.ErrorText)
}

func TestLogRepo_RecentOrderAndFilter(t *testing.T) {
	repo, err := NewLogRepo(newTestDB(t))
	require.NoError(t, err)
	ctx := context.Background()

	for range 3 {
		_, err := repo.Start(ctx, "a", "")
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
	}
	_, err = repo.Start(ctx, "b", "")
	require.NoError(t, err)

	all, err := repo.Recent(ctx, "", 10)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	onlyA, err := repo.Recent(ctx, "a", 10)
	require.NoError(t, err)
	assert.Len(t, onlyA, 3)

	limited, err := repo.Recent(ctx, "a", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestLogRepo_RetentionSweepKeepsRunning(t *testing.T) {
	repo, err := NewLogRepo(newTestDB(t))
	require.NoError(t, err)
	ctx := context.Background()

	idOld, err := repo.Start(ctx, "t", "")
	require.NoError(t, err)
	require.NoError(t, repo.Finalize(ctx, idOld, StatusSuccess, RunCounts{}, "", 0))

	idRunning, err := repo.Start(ctx, "t", "")
	require.NoError(t, err)

	// cutoff in the future: finalized entries go, the open one stays
	n, err := repo.DeleteOlderThan(ctx, time.Now().UTC().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	still, err := repo.Get(ctx, idRunning)
	require.NoError(t, err)
	require.NotNil(t, still)
	gone, err := repo.Get(ctx, idOld)
	require.NoError(t, err)
	assert.Nil(t, gone)
}
