package worker

import (
	"context"
	"time"

	"github.com/buildit-dev/buildit/common/gerror"
	"github.com/buildit-dev/buildit/common/logger"
	"github.com/buildit-dev/buildit/common/models"
	"github.com/buildit-dev/buildit/server/dto"
	"github.com/buildit-dev/buildit/server/store"
)

const livenessTimeout = 120 * time.Second

type WorkerService struct {
	db          *store.DB
	workerStore store.WorkerStore
	jobStore    store.JobStore
	logger.Log
}

func NewWorkerService(
	db *store.DB,
	workerStore store.WorkerStore,
	jobStore store.JobStore,
	logFactory logger.LogFactory,
) *WorkerService {
	return &WorkerService{
		db:          db,
		workerStore: workerStore,
		jobStore:    jobStore,
		Log:         logFactory("WorkerService"),
	}
}

// ProcessHeartbeat registers the worker on first contact and refreshes its
// capabilities and heartbeat time on every subsequent call. Workers are keyed
// by (hostname, arch); a returning worker updates its existing row.
func (s *WorkerService) ProcessHeartbeat(ctx context.Context, heartbeat *dto.WorkerHeartbeat) (*models.Worker, error) {
	if heartbeat.Hostname == "" {
		return nil, gerror.NewErrValidationFailed("Hostname must be set")
	}
	if heartbeat.Arch == "" {
		return nil, gerror.NewErrValidationFailed("Arch must be set")
	}

	var worker *models.Worker
	now := models.NewTime(time.Now())
	err := s.db.WithTx(ctx, nil, func(tx *store.Tx) error {
		existing, err := s.workerStore.ReadByHostnameArch(ctx, tx, heartbeat.Hostname, heartbeat.Arch)
		if err != nil {
			if !gerror.IsNotFound(err) {
				return err
			}
			worker = &models.Worker{
				CreatedAt:            now,
				Hostname:             heartbeat.Hostname,
				Arch:                 heartbeat.Arch,
				WorkerCapabilities:   heartbeat.Capabilities,
				SourceRev:            heartbeat.SourceRev,
				Performance:          heartbeat.Performance,
				InternetConnectivity: heartbeat.InternetConnectivity,
				LastHeartbeatAt:      now,
			}
			_, err = s.workerStore.Create(ctx, tx, worker)
			if err == nil {
				s.Infof("Registered new worker %s (%s/%s)", worker.ID, worker.Hostname, worker.Arch)
			}
			return err
		}
		existing.WorkerCapabilities = heartbeat.Capabilities
		existing.SourceRev = heartbeat.SourceRev
		existing.Performance = heartbeat.Performance
		existing.InternetConnectivity = heartbeat.InternetConnectivity
		existing.LastHeartbeatAt = now
		worker = existing
		return s.workerStore.Update(ctx, tx, existing)
	})
	if err != nil {
		return nil, err
	}
	return worker, nil
}

// Touch refreshes the worker's heartbeat timestamp only.
func (s *WorkerService) Touch(ctx context.Context, txOrNil *store.Tx, workerID models.WorkerID) error {
	return s.db.WithTx(ctx, txOrNil, func(tx *store.Tx) error {
		worker, err := s.workerStore.Read(ctx, tx, workerID)
		if err != nil {
			return err
		}
		worker.LastHeartbeatAt = models.NewTime(time.Now())
		return s.workerStore.Update(ctx, tx, worker)
	})
}

// Read returns a worker with its derived liveness.
func (s *WorkerService) Read(ctx context.Context, id models.WorkerID) (*dto.WorkerStatus, error) {
	var status *dto.WorkerStatus
	err := s.db.WithTx(ctx, nil, func(tx *store.Tx) error {
		worker, err := s.workerStore.Read(ctx, tx, id)
		if err != nil {
			return err
		}
		status, err = s.decorate(ctx, tx, worker)
		return err
	})
	if err != nil {
		return nil, err
	}
	return status, nil
}

// List returns one page of workers with derived liveness, along with the
// total number of workers.
func (s *WorkerService) List(ctx context.Context, pagination models.Pagination) ([]*dto.WorkerStatus, int64, error) {
	if err := pagination.Validate(); err != nil {
		return nil, 0, gerror.NewErrInvalidQueryParameter(err.Error()).Wrap(err)
	}
	var (
		statuses []*dto.WorkerStatus
		total    int64
	)
	err := s.db.WithTx(ctx, nil, func(tx *store.Tx) error {
		workers, err := s.workerStore.List(ctx, tx, pagination)
		if err != nil {
			return err
		}
		for _, worker := range workers {
			status, err := s.decorate(ctx, tx, worker)
			if err != nil {
				return err
			}
			statuses = append(statuses, status)
		}
		total, err = s.workerStore.Count(ctx, tx)
		return err
	})
	if err != nil {
		return nil, 0, err
	}
	return statuses, total, nil
}

// decorate derives liveness and, when the worker holds a job, surfaces the
// assignment time so dashboards can show how long the build has been running.
func (s *WorkerService) decorate(ctx context.Context, tx *store.Tx, worker *models.Worker) (*dto.WorkerStatus, error) {
	status := &dto.WorkerStatus{
		Worker: worker,
		IsLive: worker.IsLive(time.Now(), livenessTimeout),
	}
	if worker.RunningJobID != nil {
		job, err := s.jobStore.Read(ctx, tx, *worker.RunningJobID)
		if err != nil {
			if !gerror.IsNotFound(err) {
				return nil, err
			}
		} else {
			status.RunningJobAssignTime = job.AssignTime
		}
	}
	return status, nil
}
