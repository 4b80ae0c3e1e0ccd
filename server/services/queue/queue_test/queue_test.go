package queue_test

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"

	"github.com/buildit-dev/buildit/common/gerror"
	"github.com/buildit-dev/buildit/common/logger"
	"github.com/buildit-dev/buildit/common/models"
	"github.com/buildit-dev/buildit/server/dto"
	"github.com/buildit-dev/buildit/server/services/queue"
	workersvc "github.com/buildit-dev/buildit/server/services/worker"
	"github.com/buildit-dev/buildit/server/store"
	"github.com/buildit-dev/buildit/server/store/jobs"
	"github.com/buildit-dev/buildit/server/store/pipelines"
	"github.com/buildit-dev/buildit/server/store/store_test"
	"github.com/buildit-dev/buildit/server/store/workers"
)

type fixture struct {
	db            *store.DB
	pipelineStore *pipelines.PipelineStore
	jobStore      *jobs.JobStore
	workerStore   *workers.WorkerStore
	workerService *workersvc.WorkerService
	queueService  *queue.QueueService
}

func newFixture(t *testing.T) (*fixture, func()) {
	var logFactory logger.LogFactory = logger.NoOpLogFactory
	db, cleanup, err := store_test.Connect(logFactory)
	require.Nil(t, err)
	f := &fixture{
		db:            db,
		pipelineStore: pipelines.NewStore(db, logFactory),
		jobStore:      jobs.NewStore(db, logFactory),
		workerStore:   workers.NewStore(db, logFactory),
	}
	f.workerService = workersvc.NewWorkerService(db, f.workerStore, f.jobStore, logFactory)
	f.queueService = queue.NewQueueService(db, f.pipelineStore, f.jobStore, f.workerStore, f.workerService, nil, logFactory)
	return f, cleanup
}

func (f *fixture) createPipeline(t *testing.T, archs ...string) *models.Pipeline {
	pipeline := &models.Pipeline{
		CreatedAt: models.NewTime(time.Now()),
		Packages:  "llvm,rustc",
		Archs:     models.JoinCommaList(archs),
		GitBranch: "stable",
		GitSha:    "0123456789abcdef0123456789abcdef01234567",
		Source:    models.PipelineSourceAPI,
	}
	_, err := f.pipelineStore.Create(context.Background(), nil, pipeline)
	require.Nil(t, err)
	return pipeline
}

func (f *fixture) createJob(t *testing.T, pipeline *models.Pipeline, arch string) *models.Job {
	job := &models.Job{
		CreatedAt:  models.NewTime(time.Now()),
		PipelineID: pipeline.ID,
		Packages:   pipeline.Packages,
		Arch:       arch,
		Status:     models.JobStatusCreated,
	}
	_, err := f.jobStore.Create(context.Background(), nil, job)
	require.Nil(t, err)
	return job
}

func (f *fixture) createWorker(t *testing.T, hostname string, arch string, heartbeat time.Time) *models.Worker {
	worker := &models.Worker{
		CreatedAt: models.NewTime(time.Now()),
		Hostname:  hostname,
		Arch:      arch,
		WorkerCapabilities: models.WorkerCapabilities{
			LogicalCores:       16,
			MemoryBytes:        32 << 30,
			DiskFreeSpaceBytes: 500 << 30,
		},
		SourceRev:       "abc123",
		LastHeartbeatAt: models.NewTime(heartbeat),
	}
	_, err := f.workerStore.Create(context.Background(), nil, worker)
	require.Nil(t, err)
	return worker
}

func TestPollClaimsOldestMatchingJob(t *testing.T) {
	f, cleanup := newFixture(t)
	defer cleanup()
	ctx := context.Background()

	pipeline := f.createPipeline(t, "amd64", "arm64")
	first := f.createJob(t, pipeline, "amd64")
	second := f.createJob(t, pipeline, "amd64")
	other := f.createJob(t, pipeline, "arm64")

	workerA := f.createWorker(t, "builder-1", "amd64", time.Now())
	workerB := f.createWorker(t, "builder-2", "amd64", time.Now())

	claimedA, err := f.queueService.Poll(ctx, workerA.ID, nil)
	require.Nil(t, err)
	require.Equal(t, first.ID, claimedA.ID)
	require.Equal(t, models.JobStatusAssigned, claimedA.Status)

	// The second worker must get the next job, never the one already claimed
	claimedB, err := f.queueService.Poll(ctx, workerB.ID, nil)
	require.Nil(t, err)
	require.Equal(t, second.ID, claimedB.ID)

	// The arm64 job stays queued; no amd64 worker can take it
	job, err := f.jobStore.Read(ctx, nil, other.ID)
	require.Nil(t, err)
	require.Equal(t, models.JobStatusCreated, job.Status)
}

func TestPollIsIdempotentWhileJobRuns(t *testing.T) {
	f, cleanup := newFixture(t)
	defer cleanup()
	ctx := context.Background()

	pipeline := f.createPipeline(t, "amd64")
	first := f.createJob(t, pipeline, "amd64")
	f.createJob(t, pipeline, "amd64")

	worker := f.createWorker(t, "builder-1", "amd64", time.Now())

	claimed, err := f.queueService.Poll(ctx, worker.ID, nil)
	require.Nil(t, err)
	require.Equal(t, first.ID, claimed.ID)

	// A retried poll returns the same job instead of claiming the next one
	again, err := f.queueService.Poll(ctx, worker.ID, nil)
	require.Nil(t, err)
	require.Equal(t, first.ID, again.ID)
}

func TestPollRefreshesHeartbeat(t *testing.T) {
	f, cleanup := newFixture(t)
	defer cleanup()
	ctx := context.Background()

	stale := time.Now().Add(-time.Hour)
	worker := f.createWorker(t, "builder-1", "amd64", stale)

	_, err := f.queueService.Poll(ctx, worker.ID, nil)
	require.Nil(t, err)

	refreshed, err := f.workerStore.Read(ctx, nil, worker.ID)
	require.Nil(t, err)
	require.True(t, refreshed.LastHeartbeatAt.Time.After(stale))
}

func TestPollRefreshesCapabilities(t *testing.T) {
	f, cleanup := newFixture(t)
	defer cleanup()
	ctx := context.Background()

	pipeline := f.createPipeline(t, "amd64")
	minMemory := int64(48 << 30)
	job := &models.Job{
		CreatedAt:       models.NewTime(time.Now()),
		PipelineID:      pipeline.ID,
		Packages:        pipeline.Packages,
		Arch:            "amd64",
		Status:          models.JobStatusCreated,
		JobRequirements: models.JobRequirements{MinTotalMemoryBytes: &minMemory},
	}
	_, err := f.jobStore.Create(ctx, nil, job)
	require.Nil(t, err)

	// The worker registered with 32 GiB; the job wants 48
	worker := f.createWorker(t, "builder-1", "amd64", time.Now())
	claimed, err := f.queueService.Poll(ctx, worker.ID, &dto.WorkerPoll{
		Capabilities:         worker.WorkerCapabilities,
		InternetConnectivity: true,
	})
	require.Nil(t, err)
	require.Nil(t, claimed)

	// After a memory upgrade the very next poll must see the new hardware
	// and hand the job over, without waiting for a heartbeat
	upgraded := worker.WorkerCapabilities
	upgraded.MemoryBytes = 64 << 30
	claimed, err = f.queueService.Poll(ctx, worker.ID, &dto.WorkerPoll{
		Capabilities:         upgraded,
		InternetConnectivity: true,
	})
	require.Nil(t, err)
	require.NotNil(t, claimed)
	require.Equal(t, job.ID, claimed.ID)

	refreshed, err := f.workerStore.Read(ctx, nil, worker.ID)
	require.Nil(t, err)
	require.Equal(t, upgraded.MemoryBytes, refreshed.MemoryBytes)
	require.True(t, refreshed.InternetConnectivity)
}

func TestPollReturnsNilWhenQueueIsEmpty(t *testing.T) {
	f, cleanup := newFixture(t)
	defer cleanup()
	ctx := context.Background()

	worker := f.createWorker(t, "builder-1", "amd64", time.Now())
	job, err := f.queueService.Poll(ctx, worker.ID, nil)
	require.Nil(t, err)
	require.Nil(t, job)
}

func TestCompleteDerivesTerminalStatus(t *testing.T) {
	f, cleanup := newFixture(t)
	defer cleanup()
	ctx := context.Background()

	pipeline := f.createPipeline(t, "amd64")
	worker := f.createWorker(t, "builder-1", "amd64", time.Now())

	errorMessage := "ciel: container exploded"
	tests := []struct {
		name       string
		completion dto.JobCompletion
		expected   models.JobStatus
	}{
		{"BuildAndUploadSucceeded", dto.JobCompletion{BuildSuccess: true, UploadSuccess: true}, models.JobStatusSuccess},
		{"BuildFailed", dto.JobCompletion{BuildSuccess: false, UploadSuccess: false}, models.JobStatusFailed},
		{"UploadFailed", dto.JobCompletion{BuildSuccess: true, UploadSuccess: false}, models.JobStatusFailed},
		{"InfrastructureError", dto.JobCompletion{BuildSuccess: true, UploadSuccess: true, ErrorMessage: &errorMessage}, models.JobStatusError},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			f.createJob(t, pipeline, "amd64")
			claimed, err := f.queueService.Poll(ctx, worker.ID, nil)
			require.Nil(t, err)
			require.NotNil(t, claimed)

			finished, err := f.queueService.Complete(ctx, worker.ID, claimed.ID, &test.completion)
			require.Nil(t, err)
			require.Equal(t, test.expected, finished.Status)
			require.Nil(t, finished.AssignedWorkerID)
			require.NotNil(t, finished.BuiltByWorkerID)
			require.Equal(t, worker.ID, *finished.BuiltByWorkerID)
		})
	}
}

func TestCompleteAfterReclaimIsStale(t *testing.T) {
	f, cleanup := newFixture(t)
	defer cleanup()
	ctx := context.Background()

	pipeline := f.createPipeline(t, "amd64")
	job := f.createJob(t, pipeline, "amd64")
	worker := f.createWorker(t, "builder-1", "amd64", time.Now())

	claimed, err := f.queueService.Poll(ctx, worker.ID, nil)
	require.Nil(t, err)
	require.Equal(t, job.ID, claimed.ID)

	reclaimed, err := f.queueService.ReclaimWorker(ctx, nil, worker.ID)
	require.Nil(t, err)
	require.Contains(t, reclaimed, job.ID)

	// The worker finishes the build anyway; the report must be rejected and
	// the queued job left untouched
	_, err = f.queueService.Complete(ctx, worker.ID, job.ID, &dto.JobCompletion{BuildSuccess: true, UploadSuccess: true})
	require.Error(t, err)
	require.True(t, gerror.IsStale(err))

	requeued, err := f.jobStore.Read(ctx, nil, job.ID)
	require.Nil(t, err)
	require.Equal(t, models.JobStatusCreated, requeued.Status)
	require.Nil(t, requeued.AssignedWorkerID)
}

func TestCompleteUnknownJobIsNotFound(t *testing.T) {
	f, cleanup := newFixture(t)
	defer cleanup()
	ctx := context.Background()

	worker := f.createWorker(t, "builder-1", "amd64", time.Now())

	// A job id the coordinator has never issued is NotFound, not Stale
	_, err := f.queueService.Complete(ctx, worker.ID, models.JobID(4242), &dto.JobCompletion{BuildSuccess: true, UploadSuccess: true})
	require.Error(t, err)
	require.True(t, gerror.IsNotFound(err))
	require.False(t, gerror.IsStale(err))
}

func TestRestart(t *testing.T) {
	f, cleanup := newFixture(t)
	defer cleanup()
	ctx := context.Background()

	pipeline := f.createPipeline(t, "amd64")
	job := f.createJob(t, pipeline, "amd64")
	worker := f.createWorker(t, "builder-1", "amd64", time.Now())

	// A queued job cannot be restarted
	_, err := f.queueService.Restart(ctx, job.ID)
	require.Error(t, err)
	require.True(t, gerror.IsValidationFailed(err))

	claimed, err := f.queueService.Poll(ctx, worker.ID, nil)
	require.Nil(t, err)
	_, err = f.queueService.Complete(ctx, worker.ID, claimed.ID, &dto.JobCompletion{BuildSuccess: false, UploadSuccess: false})
	require.Nil(t, err)

	clone, err := f.queueService.Restart(ctx, job.ID)
	require.Nil(t, err)
	require.NotEqual(t, job.ID, clone.ID)
	require.Equal(t, job.PipelineID, clone.PipelineID)
	require.Equal(t, job.Packages, clone.Packages)
	require.Equal(t, job.Arch, clone.Arch)
	require.Equal(t, models.JobStatusCreated, clone.Status)

	// The original row survives with its failed verdict
	original, err := f.jobStore.Read(ctx, nil, job.ID)
	require.Nil(t, err)
	require.Equal(t, models.JobStatusFailed, original.Status)
}

func TestSweeperReclaimsJobsFromDeadWorkers(t *testing.T) {
	f, cleanup := newFixture(t)
	defer cleanup()
	ctx := context.Background()

	pipeline := f.createPipeline(t, "amd64")
	job := f.createJob(t, pipeline, "amd64")

	mockClock := clock.NewMock()
	mockClock.Set(time.Now())

	worker := f.createWorker(t, "builder-1", "amd64", mockClock.Now())
	claimed, err := f.queueService.Poll(ctx, worker.ID, nil)
	require.Nil(t, err)
	require.Equal(t, job.ID, claimed.ID)

	sweeper := queue.NewLivenessSweeper(f.db, f.queueService, f.workerStore, mockClock, logger.NoOpLogFactory)
	sweeper.Start()
	defer sweeper.Stop()

	// Within the liveness window nothing is reclaimed
	require.Equal(t, 0, sweeper.SweepNow())

	// Advance past the heartbeat deadline; the worker is now presumed dead
	mockClock.Add(queue.DefaultLivenessTimeout + time.Second)
	require.Equal(t, 1, sweeper.SweepNow())

	requeued, err := f.jobStore.Read(ctx, nil, job.ID)
	require.Nil(t, err)
	require.Equal(t, models.JobStatusCreated, requeued.Status)
	require.Nil(t, requeued.AssignedWorkerID)

	refreshed, err := f.workerStore.Read(ctx, nil, worker.ID)
	require.Nil(t, err)
	require.Nil(t, refreshed.RunningJobID)

	// A live worker can pick the job right back up
	live := f.createWorker(t, "builder-2", "amd64", time.Now())
	again, err := f.queueService.Poll(ctx, live.ID, nil)
	require.Nil(t, err)
	require.Equal(t, job.ID, again.ID)
}
