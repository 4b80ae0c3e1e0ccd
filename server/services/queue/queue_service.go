package queue

import (
	"context"
	"time"

	"github.com/buildit-dev/buildit/common/gerror"
	"github.com/buildit-dev/buildit/common/logger"
	"github.com/buildit-dev/buildit/common/models"
	"github.com/buildit-dev/buildit/server/dto"
	"github.com/buildit-dev/buildit/server/services"
	"github.com/buildit-dev/buildit/server/store"
)

type QueueService struct {
	db            *store.DB
	pipelineStore store.PipelineStore
	jobStore      store.JobStore
	workerStore   store.WorkerStore
	workerService services.WorkerService
	notifier      services.Notifier
	logger.Log
}

func NewQueueService(
	db *store.DB,
	pipelineStore store.PipelineStore,
	jobStore store.JobStore,
	workerStore store.WorkerStore,
	workerService services.WorkerService,
	notifier services.Notifier,
	logFactory logger.LogFactory,
) *QueueService {
	return &QueueService{
		db:            db,
		pipelineStore: pipelineStore,
		jobStore:      jobStore,
		workerStore:   workerStore,
		workerService: workerService,
		notifier:      notifier,
		Log:           logFactory("QueueService"),
	}
}

// Poll claims the oldest queued job the worker can satisfy, inside a single
// transaction so that two workers can never claim the same job. The poll
// payload refreshes the worker's capabilities before the queue is matched, so
// a worker whose disk filled up since its last heartbeat does not claim a job
// it can no longer build. If the worker already has a job assigned the same
// job is returned again, which makes the call idempotent across network
// retries. Returns nil when the queue has nothing for this worker.
func (s *QueueService) Poll(ctx context.Context, workerID models.WorkerID, poll *dto.WorkerPoll) (*models.Job, error) {
	var job *models.Job
	err := s.db.WithTx(ctx, nil, func(tx *store.Tx) error {
		worker, err := s.workerStore.Read(ctx, tx, workerID)
		if err != nil {
			return err
		}

		// Polling counts as proof of life, and refreshes the self-reported
		// hardware the claim below matches against
		worker.LastHeartbeatAt = models.NewTime(time.Now())
		if poll != nil {
			worker.WorkerCapabilities = poll.Capabilities
			worker.InternetConnectivity = poll.InternetConnectivity
		}
		err = s.workerStore.Update(ctx, tx, worker)
		if err != nil {
			return err
		}

		// If the worker is already building a job, hand back the same job
		// rather than claiming another one
		if worker.RunningJobID != nil {
			running, err := s.jobStore.Read(ctx, tx, *worker.RunningJobID)
			if err == nil && running.Status == models.JobStatusAssigned &&
				running.AssignedWorkerID != nil && *running.AssignedWorkerID == workerID {
				job = running
				return nil
			}
			// The recorded job was reclaimed or finished out from under the
			// worker; clear the stale record and fall through to claim afresh
			err = s.workerStore.SetRunningJob(ctx, tx, workerID, nil)
			if err != nil {
				return err
			}
		}

		claimed, err := s.jobStore.FindClaimableJob(ctx, tx, worker)
		if err != nil {
			if gerror.IsNotFound(err) {
				return nil
			}
			return err
		}

		now := models.NewTime(time.Now())
		err = s.jobStore.Assign(ctx, tx, claimed.ID, workerID, now)
		if err != nil {
			return err
		}
		err = s.workerStore.SetRunningJob(ctx, tx, workerID, &claimed.ID)
		if err != nil {
			return err
		}

		claimed.Status = models.JobStatusAssigned
		claimed.AssignedWorkerID = &workerID
		claimed.AssignTime = &now
		job = claimed
		return nil
	})
	if err != nil {
		return nil, err
	}
	if job != nil {
		s.Infof("Assigned job %s (arch %s) to worker %s", job.ID, job.Arch, workerID)
	}
	return job, nil
}

// Complete records the result a worker reports for a job. The terminal status
// is derived from the report, never trusted from the worker. Returns a Stale
// error if the job is no longer assigned to the reporting worker, which
// happens when the liveness sweeper reclaimed it first.
func (s *QueueService) Complete(
	ctx context.Context,
	workerID models.WorkerID,
	jobID models.JobID,
	completion *dto.JobCompletion,
) (*models.Job, error) {
	status := models.DeriveJobStatus(completion.BuildSuccess, completion.UploadSuccess, completion.ErrorMessage)
	now := models.NewTime(time.Now())

	result := &models.JobResult{
		FinishTime:      &now,
		BuildSuccess:    &completion.BuildSuccess,
		UploadSuccess:   &completion.UploadSuccess,
		FailedPackage:   completion.FailedPackage,
		LogURL:          completion.LogURL,
		ErrorMessage:    completion.ErrorMessage,
		ElapsedSecs:     completion.ElapsedSecs,
		BuiltByWorkerID: &workerID,
	}
	if len(completion.SuccessfulPackages) > 0 {
		joined := models.JoinCommaList(completion.SuccessfulPackages)
		result.SuccessfulPackages = &joined
	}
	if len(completion.SkippedPackages) > 0 {
		joined := models.JoinCommaList(completion.SkippedPackages)
		result.SkippedPackages = &joined
	}

	err := s.db.WithTx(ctx, nil, func(tx *store.Tx) error {
		// A job id the coordinator has never seen is NotFound; Stale is
		// reserved for jobs that exist but were reclaimed out from under
		// the reporting worker
		_, err := s.jobStore.Read(ctx, tx, jobID)
		if err != nil {
			return err
		}
		updated, err := s.jobStore.CompleteWhereAssigned(ctx, tx, jobID, workerID, status, result)
		if err != nil {
			return err
		}
		if updated == 0 {
			return gerror.NewErrStale("Job is no longer assigned to this worker")
		}
		err = s.workerStore.SetRunningJob(ctx, tx, workerID, nil)
		if err != nil {
			return err
		}
		// Completion counts as proof of life too
		return s.workerService.Touch(ctx, tx, workerID)
	})
	if err != nil {
		return nil, err
	}

	job, err := s.jobStore.Read(ctx, nil, jobID)
	if err != nil {
		return nil, err
	}
	s.Infof("Job %s finished with status %s (worker %s)", job.ID, job.Status, workerID)
	s.notifyFinished(ctx, job)
	return job, nil
}

// notifyFinished fans the terminal job out to the configured notifier, and
// checks whether the job was the last one standing in its pipeline.
// Notification failures are logged, never surfaced to the worker.
func (s *QueueService) notifyFinished(ctx context.Context, job *models.Job) {
	if s.notifier == nil {
		return
	}
	pipeline, err := s.pipelineStore.Read(ctx, nil, job.PipelineID)
	if err != nil {
		s.Errorf("Error reading pipeline %s for notification: %s", job.PipelineID, err)
		return
	}
	err = s.notifier.JobFinished(ctx, pipeline, job)
	if err != nil {
		s.Errorf("Error notifying job %s finished: %s", job.ID, err)
	}

	jobs, err := s.jobStore.ListByPipelineID(ctx, nil, job.PipelineID)
	if err != nil {
		s.Errorf("Error listing jobs of pipeline %s for notification: %s", job.PipelineID, err)
		return
	}
	graph := &dto.PipelineGraph{Pipeline: pipeline, Jobs: jobs}
	graph.Status = graph.RollUpStatus()
	if graph.Status == models.PipelineStatusRunning {
		return
	}
	err = s.notifier.PipelineFinished(ctx, graph)
	if err != nil {
		s.Errorf("Error notifying pipeline %s finished: %s", pipeline.ID, err)
	}
}

// ReclaimWorker moves every job assigned to the worker back to the queue.
// Reclaimed jobs keep their position in the queue because claiming is ordered
// by job id, not assignment history.
func (s *QueueService) ReclaimWorker(ctx context.Context, txOrNil *store.Tx, workerID models.WorkerID) ([]models.JobID, error) {
	var reclaimed []models.JobID
	err := s.db.WithTx(ctx, txOrNil, func(tx *store.Tx) error {
		var err error
		reclaimed, err = s.jobStore.ReclaimAllAssignedTo(ctx, tx, workerID)
		if err != nil {
			return err
		}
		return s.workerStore.SetRunningJob(ctx, tx, workerID, nil)
	})
	if err != nil {
		return nil, err
	}
	if len(reclaimed) > 0 {
		s.Infof("Reclaimed %d job(s) from worker %s", len(reclaimed), workerID)
	}
	return reclaimed, nil
}

// Restart clones a finished job into a new queued job in the same pipeline.
// The original row is left untouched so the history of the failed attempt
// survives, but it is locked for the duration of the transaction so two
// concurrent restarts of the same job cannot both pass the status check.
// Only failed and error jobs can be restarted.
func (s *QueueService) Restart(ctx context.Context, jobID models.JobID) (*models.Job, error) {
	var clone *models.Job
	err := s.db.WithTx(ctx, nil, func(tx *store.Tx) error {
		job, err := s.jobStore.ReadAndLock(ctx, tx, jobID)
		if err != nil {
			return err
		}
		if !job.Status.CanRestart() {
			return gerror.NewErrValidationFailed("Only failed and error jobs can be restarted")
		}
		clone = &models.Job{
			CreatedAt:       models.NewTime(time.Now()),
			PipelineID:      job.PipelineID,
			Packages:        job.Packages,
			Arch:            job.Arch,
			Status:          models.JobStatusCreated,
			JobRequirements: job.JobRequirements,
		}
		_, err = s.jobStore.Create(ctx, tx, clone)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.Infof("Restarted job %s as job %s", jobID, clone.ID)
	return clone, nil
}

// ReadJob returns a single job.
func (s *QueueService) ReadJob(ctx context.Context, id models.JobID) (*models.Job, error) {
	return s.jobStore.Read(ctx, nil, id)
}

// ListJobs returns one page of jobs, most recent first, along with the total
// number of jobs.
func (s *QueueService) ListJobs(ctx context.Context, pagination models.Pagination) ([]*models.Job, int64, error) {
	if err := pagination.Validate(); err != nil {
		return nil, 0, gerror.NewErrInvalidQueryParameter(err.Error()).Wrap(err)
	}
	var (
		jobs  []*models.Job
		total int64
	)
	err := s.db.WithTx(ctx, nil, func(tx *store.Tx) error {
		var err error
		jobs, err = s.jobStore.List(ctx, tx, pagination)
		if err != nil {
			return err
		}
		total, err = s.jobStore.Count(ctx, tx)
		return err
	})
	if err != nil {
		return nil, 0, err
	}
	return jobs, total, nil
}
