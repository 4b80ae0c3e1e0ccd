package workers_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/buildit-dev/buildit/common/gerror"
	"github.com/buildit-dev/buildit/common/logger"
	"github.com/buildit-dev/buildit/common/models"
	"github.com/buildit-dev/buildit/server/store/store_test"
	"github.com/buildit-dev/buildit/server/store/workers"
)

func TestWorkerStore(t *testing.T) {
	var logFactory logger.LogFactory = logger.NoOpLogFactory
	db, cleanup, err := store_test.Connect(logFactory)
	require.Nil(t, err)
	defer cleanup()

	ctx := context.Background()
	now := time.Now()

	workerStore := workers.NewStore(db, logFactory)

	newWorker := func(hostname, arch string, heartbeat time.Time) *models.Worker {
		return &models.Worker{
			CreatedAt: models.NewTime(now),
			Hostname:  hostname,
			Arch:      arch,
			WorkerCapabilities: models.WorkerCapabilities{
				LogicalCores:       8,
				MemoryBytes:        16 << 30,
				DiskFreeSpaceBytes: 100 << 30,
			},
			SourceRev:       "abc123",
			LastHeartbeatAt: models.NewTime(heartbeat),
		}
	}

	workerID, err := workerStore.Create(ctx, nil, newWorker("builder-1", "amd64", now))
	require.Nil(t, err)
	require.True(t, workerID.Valid())

	t.Run("HostnameArchUnique", func(t *testing.T) {
		_, err := workerStore.Create(ctx, nil, newWorker("builder-1", "amd64", now))
		require.NotNil(t, err)
		require.True(t, gerror.ToAlreadyExists(err) != nil)

		// Same hostname with a different arch is a distinct worker
		otherID, err := workerStore.Create(ctx, nil, newWorker("builder-1", "arm64", now))
		require.Nil(t, err)
		require.NotEqual(t, workerID, otherID)
	})

	t.Run("ReadByHostnameArch", func(t *testing.T) {
		worker, err := workerStore.ReadByHostnameArch(ctx, nil, "builder-1", "amd64")
		require.Nil(t, err)
		require.Equal(t, workerID, worker.ID)

		_, err = workerStore.ReadByHostnameArch(ctx, nil, "builder-1", "riscv64")
		require.NotNil(t, err)
		require.True(t, gerror.ToNotFound(err) != nil)
	})

	t.Run("SetRunningJob", func(t *testing.T) {
		jobID := models.JobID(42)
		err := workerStore.SetRunningJob(ctx, nil, workerID, &jobID)
		require.Nil(t, err)
		worker, err := workerStore.Read(ctx, nil, workerID)
		require.Nil(t, err)
		require.NotNil(t, worker.RunningJobID)
		require.Equal(t, jobID, *worker.RunningJobID)

		err = workerStore.SetRunningJob(ctx, nil, workerID, nil)
		require.Nil(t, err)
		worker, err = workerStore.Read(ctx, nil, workerID)
		require.Nil(t, err)
		require.Nil(t, worker.RunningJobID)
	})

	t.Run("ListStaleAndCountLive", func(t *testing.T) {
		staleID, err := workerStore.Create(ctx, nil, newWorker("builder-2", "amd64", now.Add(-10*time.Minute)))
		require.Nil(t, err)
		jobID := models.JobID(7)
		err = workerStore.SetRunningJob(ctx, nil, staleID, &jobID)
		require.Nil(t, err)

		deadline := now.Add(-2 * time.Minute)
		stale, err := workerStore.ListStale(ctx, nil, deadline)
		require.Nil(t, err)
		require.Len(t, stale, 1)
		require.Equal(t, staleID, stale[0].ID)

		live, err := workerStore.CountLive(ctx, nil, deadline)
		require.Nil(t, err)
		require.Equal(t, int64(2), live)
	})
}
