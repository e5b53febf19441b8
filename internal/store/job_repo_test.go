package store

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newJobRepo(t *testing.T) (*JobRepo, *sqlx.DB) {
	t.Helper()
	database := newTestDB(t)
	repo, err := NewJobRepo(database)
	require.NoError(t, err)
	return repo, database
}

func TestJobRepo_CreateAndGet(t *testing.T) {
	repo, _ := newJobRepo(t)
	ctx := context.Background()

	job := &CronJob{Name: "orders-nightly", TableName: "orders", Schedule: "every 1h", Enabled: true}
	require.NoError(t, repo.Create(ctx, job))
	require.NotEmpty(t, job.ID)

	got, err := repo.GetByName(ctx, "orders-nightly")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "orders", got.TableName)
	assert.Nil(t, got.Status)
	assert.False(t, got.IsRunning())

	missing, err := repo.GetByName(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestJobRepo_TryClaim_OnlyOneWinner(t *testing.T) {
	repo, _ := newJobRepo(t)
	ctx := context.Background()

	job := &CronJob{Name: "j", TableName: "t", Schedule: "every 5m", Enabled: true}
	require.NoError(t, repo.Create(ctx, job))

	won, err := repo.TryClaim(ctx, job.ID)
	require.NoError(t, err)
	assert.True(t, won)

	// second claim loses while the job is running
	won, err = repo.TryClaim(ctx, job.ID)
	require.NoError(t, err)
	assert.False(t, won)

	got, err := repo.GetByName(ctx, "j")
	require.NoError(t, err)
	assert.True(t, got.IsRunning())
	require.NotNil(t, got.LastRunAt)

	// claimable again after the run finishes
	require.NoError(t, repo.Finish(ctx, job.ID, StatusSuccess, nil))
	won, err = repo.TryClaim(ctx, job.ID)
	require.NoError(t, err)
	assert.True(t, won)
}

func TestJobRepo_ForceFailClearsNextRun(t *testing.T) {
	repo, _ := newJobRepo(t)
	ctx := context.Background()

	next := time.Now().UTC().Add(time.Hour)
	job := &CronJob{Name: "j", TableName: "t", Schedule: "every 5m", Enabled: true, NextRunAt: &next}
	require.NoError(t, repo.Create(ctx, job))

	won, err := repo.TryClaim(ctx, job.ID)
	require.NoError(t, err)
	require.True(t, won)

	require.NoError(t, repo.ForceFail(ctx, job.ID))

	got, err := repo.GetByName(ctx, "j")
	require.NoError(t, err)
	require.NotNil(t, got.Status)
	assert.Equal(t, StatusFailed, *got.Status)
	assert.Nil(t, got.NextRunAt)
}

func TestJobRepo_ResetStuck(t *testing.T) {
	repo, database := newJobRepo(t)
	ctx := context.Background()

	stale := &CronJob{Name: "stale", TableName: "t1", Schedule: "every 5m", Enabled: true}
	fresh := &CronJob{Name: "fresh", TableName: "t2", Schedule: "every 5m", Enabled: true}
	require.NoError(t, repo.Create(ctx, stale))
	require.NoError(t, repo.Create(ctx, fresh))

	for _, j := range []*CronJob{stale, fresh} {
		won, err := repo.TryClaim(ctx, j.ID)
		require.NoError(t, err)
		require.True(t, won)
	}

	// age the stale job's updated_at by 20 minutes
	_, err := database.Exec(database.Rebind("UPDATE cron_jobs SET updated_at = ? WHERE id = ?"),
		time.Now().UTC().Add(-20*time.Minute), stale.ID)
	require.NoError(t, err)
	// the fresh one is 5 minutes old
	_, err = database.Exec(database.Rebind("UPDATE cron_jobs SET updated_at = ? WHERE id = ?"),
		time.Now().UTC().Add(-5*time.Minute), fresh.ID)
	require.NoError(t, err)

	n, err := repo.ResetStuck(ctx, time.Now().UTC().Add(-15*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := repo.GetByName(ctx, "stale")
	require.NoError(t, err)
	assert.Nil(t, got.Status)

	got, err = repo.GetByName(ctx, "fresh")
	require.NoError(t, err)
	assert.True(t, got.IsRunning())
}

func TestJobRepo_EnableDisableAndDelete(t *testing.T) {
	repo, _ := newJobRepo(t)
	ctx := context.Background()

	job := &CronJob{Name: "j", TableName: "t", Schedule: "every 5m", Enabled: true}
	require.NoError(t, repo.Create(ctx, job))

	require.NoError(t, repo.SetEnabled(ctx, job.ID, false))
	enabled, err := repo.ListEnabled(ctx)
	require.NoError(t, err)
	assert.Empty(t, enabled)

	all, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, repo.Delete(ctx, job.ID))
	all, err = repo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}
