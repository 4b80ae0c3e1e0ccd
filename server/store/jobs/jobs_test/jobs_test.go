package jobs_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/buildit-dev/buildit/common/gerror"
	"github.com/buildit-dev/buildit/common/logger"
	"github.com/buildit-dev/buildit/common/models"
	"github.com/buildit-dev/buildit/server/store"
	"github.com/buildit-dev/buildit/server/store/jobs"
	"github.com/buildit-dev/buildit/server/store/pipelines"
	"github.com/buildit-dev/buildit/server/store/store_test"
	"github.com/buildit-dev/buildit/server/store/workers"
)

func int64Ptr(v int64) *int64 { return &v }

func TestJobStore(t *testing.T) {
	var logFactory logger.LogFactory = logger.NoOpLogFactory
	db, cleanup, err := store_test.Connect(logFactory)
	require.Nil(t, err)
	defer cleanup()

	ctx := context.Background()
	now := models.NewTime(time.Now())

	pipelineStore := pipelines.NewStore(db, logFactory)
	jobStore := jobs.NewStore(db, logFactory)
	workerStore := workers.NewStore(db, logFactory)

	pipelineID, err := pipelineStore.Create(ctx, nil, &models.Pipeline{
		CreatedAt: now,
		Packages:  "llvm,rustc",
		Archs:     "amd64,arm64",
		GitBranch: "stable",
		GitSha:    "0123456789abcdef0123456789abcdef01234567",
		Source:    models.PipelineSourceAPI,
	})
	require.Nil(t, err)
	require.True(t, pipelineID.Valid())

	worker := &models.Worker{
		CreatedAt: now,
		Hostname:  "builder-1",
		Arch:      "amd64",
		WorkerCapabilities: models.WorkerCapabilities{
			LogicalCores:       16,
			MemoryBytes:        32 << 30,
			DiskFreeSpaceBytes: 500 << 30,
		},
		SourceRev:       "abc123",
		LastHeartbeatAt: now,
	}
	workerID, err := workerStore.Create(ctx, nil, worker)
	require.Nil(t, err)

	newJob := func(arch string, requirements models.JobRequirements) *models.Job {
		return &models.Job{
			CreatedAt:       now,
			PipelineID:      pipelineID,
			Packages:        "llvm,rustc",
			Arch:            arch,
			Status:          models.JobStatusCreated,
			JobRequirements: requirements,
		}
	}

	t.Run("FindClaimableJobMatchesArch", func(t *testing.T) {
		otherArchID, err := jobStore.Create(ctx, nil, newJob("arm64", models.JobRequirements{}))
		require.Nil(t, err)
		matchingID, err := jobStore.Create(ctx, nil, newJob("amd64", models.JobRequirements{}))
		require.Nil(t, err)

		found, err := jobStore.FindClaimableJob(ctx, nil, worker)
		require.Nil(t, err)
		require.Equal(t, matchingID, found.ID)
		require.NotEqual(t, otherArchID, found.ID)

		err = jobStore.Assign(ctx, nil, found.ID, workerID, now)
		require.Nil(t, err)
	})

	t.Run("FindClaimableJobHonoursRequirements", func(t *testing.T) {
		tooBigID, err := jobStore.Create(ctx, nil, newJob("amd64", models.JobRequirements{
			MinTotalMemoryBytes: int64Ptr(64 << 30),
		}))
		require.Nil(t, err)
		fitsID, err := jobStore.Create(ctx, nil, newJob("amd64", models.JobRequirements{
			MinCores:              int64Ptr(8),
			MinMemoryPerCoreBytes: int64Ptr(1 << 30),
		}))
		require.Nil(t, err)

		found, err := jobStore.FindClaimableJob(ctx, nil, worker)
		require.Nil(t, err)
		require.Equal(t, fitsID, found.ID)
		require.NotEqual(t, tooBigID, found.ID)

		err = jobStore.Assign(ctx, nil, found.ID, workerID, now)
		require.Nil(t, err)
	})

	t.Run("CompleteWhereAssigned", func(t *testing.T) {
		jobID, err := jobStore.Create(ctx, nil, newJob("amd64", models.JobRequirements{}))
		require.Nil(t, err)
		err = jobStore.Assign(ctx, nil, jobID, workerID, now)
		require.Nil(t, err)

		buildSuccess := true
		uploadSuccess := true
		result := &models.JobResult{
			FinishTime:      models.NewTimePtr(time.Now()),
			BuildSuccess:    &buildSuccess,
			UploadSuccess:   &uploadSuccess,
			ElapsedSecs:     int64Ptr(120),
			BuiltByWorkerID: &workerID,
		}
		updated, err := jobStore.CompleteWhereAssigned(ctx, nil, jobID, workerID, models.JobStatusSuccess, result)
		require.Nil(t, err)
		require.Equal(t, int64(1), updated)

		job, err := jobStore.Read(ctx, nil, jobID)
		require.Nil(t, err)
		require.Equal(t, models.JobStatusSuccess, job.Status)
		require.Nil(t, job.AssignedWorkerID)
		require.NotNil(t, job.FinishTime)

		// A second completion for the same job must not match any rows
		updated, err = jobStore.CompleteWhereAssigned(ctx, nil, jobID, workerID, models.JobStatusSuccess, result)
		require.Nil(t, err)
		require.Equal(t, int64(0), updated)
	})

	t.Run("ReclaimAllAssignedTo", func(t *testing.T) {
		jobID, err := jobStore.Create(ctx, nil, newJob("amd64", models.JobRequirements{}))
		require.Nil(t, err)
		err = jobStore.Assign(ctx, nil, jobID, workerID, now)
		require.Nil(t, err)

		reclaimed, err := jobStore.ReclaimAllAssignedTo(ctx, nil, workerID)
		require.Nil(t, err)
		require.Contains(t, reclaimed, jobID)

		job, err := jobStore.Read(ctx, nil, jobID)
		require.Nil(t, err)
		require.Equal(t, models.JobStatusCreated, job.Status)
		require.Nil(t, job.AssignedWorkerID)
	})

	t.Run("ListByPipelineID", func(t *testing.T) {
		listed, err := jobStore.ListByPipelineID(ctx, nil, pipelineID)
		require.Nil(t, err)
		require.True(t, len(listed) >= 4)
		for i := 1; i < len(listed); i++ {
			require.True(t, listed[i-1].ID < listed[i].ID, "jobs must be listed oldest first")
		}
	})

	t.Run("CountByArchStatus", func(t *testing.T) {
		cells, err := jobStore.CountByArchStatus(ctx, nil)
		require.Nil(t, err)
		total, err := jobStore.Count(ctx, nil)
		require.Nil(t, err)
		var sum int64
		for _, cell := range cells {
			require.NotEmpty(t, cell.Arch)
			require.True(t, cell.Status.Valid())
			sum += cell.Count
		}
		require.Equal(t, total, sum)
	})

	t.Run("ReadAndLock", func(t *testing.T) {
		id, err := jobStore.Create(ctx, nil, newJob("arm64", models.JobRequirements{}))
		require.Nil(t, err)
		err = db.WithTx(ctx, nil, func(tx *store.Tx) error {
			locked, err := jobStore.ReadAndLock(ctx, tx, id)
			require.Nil(t, err)
			require.Equal(t, id, locked.ID)
			_, err = jobStore.ReadAndLock(ctx, tx, models.JobID(999999))
			require.True(t, gerror.IsNotFound(err))
			return nil
		})
		require.Nil(t, err)
	})
}
