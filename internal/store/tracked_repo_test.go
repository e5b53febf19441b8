package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackedRepo_UpsertAndMap(t *testing.T) {
	database := newTestDB(t)
	repo, err := NewTrackedRepo(database)
	require.NoError(t, err)
	ctx := context.Background()

	entries := []TrackedRow{
		{Dataset: "ds", TableName: "orders", RowNum: 2, RowHash: "h1"},
		{Dataset: "ds", TableName: "orders", RowNum: 3, RowHash: "h2"},
	}
	require.NoError(t, repo.UpsertBatch(ctx, database, entries))

	m, err := repo.MapForTable(ctx, "orders")
	require.NoError(t, err)
	assert.Equal(t, map[int64]string{2: "h1", 3: "h2"}, m)

	// updating an existing row replaces the hash, no duplicate key
	require.NoError(t, repo.UpsertBatch(ctx, database, []TrackedRow{
		{Dataset: "ds", TableName: "orders", RowNum: 2, RowHash: "h1b"},
	}))
	m, err = repo.MapForTable(ctx, "orders")
	require.NoError(t, err)
	assert.Equal(t, "h1b", m[2])

	n, err := repo.Count(ctx, "orders")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestTrackedRepo_DeleteRowAndTable(t *testing.T) {
	database := newTestDB(t)
	repo, err := NewTrackedRepo(database)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, repo.UpsertBatch(ctx, database, []TrackedRow{
		{Dataset: "ds", TableName: "orders", RowNum: 2, RowHash: "h1"},
		{Dataset: "ds", TableName: "orders", RowNum: 3, RowHash: "h2"},
		{Dataset: "ds", TableName: "other", RowNum: 2, RowHash: "h3"},
	}))

	require.NoError(t, repo.DeleteRow(ctx, database, "orders", 3))
	m, err := repo.MapForTable(ctx, "orders")
	require.NoError(t, err)
	assert.Equal(t, map[int64]string{2: "h1"}, m)

	require.NoError(t, repo.DeleteTable(ctx, "orders"))
	m, err = repo.MapForTable(ctx, "orders")
	require.NoError(t, err)
	assert.Empty(t, m)

	// other tables untouched
	other, err := repo.MapForTable(ctx, "other")
	require.NoError(t, err)
	assert.Len(t, other, 1)
}
