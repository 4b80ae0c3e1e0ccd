package workers

import (
	"time"

	"context"

	"github.com/doug-martin/goqu/v9"

	"github.com/buildit-dev/buildit/common/logger"
	"github.com/buildit-dev/buildit/common/models"
	"github.com/buildit-dev/buildit/server/store"
)

type WorkerStore struct {
	db    *store.DB
	table *store.Table
}

func NewStore(db *store.DB, logFactory logger.LogFactory) *WorkerStore {
	return &WorkerStore{
		db:    db,
		table: store.NewTable(db, logFactory, "workers", "worker_id"),
	}
}

// Create a new worker and return the id the database assigned to it.
// Returns an AlreadyExists error if a worker with the same (hostname, arch)
// pair already exists.
func (d *WorkerStore) Create(ctx context.Context, txOrNil *store.Tx, worker *models.Worker) (models.WorkerID, error) {
	id, err := d.table.Create(ctx, txOrNil, worker)
	if err != nil {
		return 0, err
	}
	worker.ID = models.WorkerID(id)
	return worker.ID, nil
}

// Read an existing worker, looking it up by id.
// Returns a NotFound error if the worker does not exist.
func (d *WorkerStore) Read(ctx context.Context, txOrNil *store.Tx, id models.WorkerID) (*models.Worker, error) {
	worker := &models.Worker{}
	return worker, d.table.ReadByID(ctx, txOrNil, int64(id), worker)
}

// ReadByHostnameArch reads a worker by its (hostname, arch) natural key.
// Returns a NotFound error if the worker does not exist.
func (d *WorkerStore) ReadByHostnameArch(ctx context.Context, txOrNil *store.Tx, hostname string, arch string) (*models.Worker, error) {
	worker := &models.Worker{}
	return worker, d.table.ReadWhere(ctx, txOrNil, worker,
		goqu.Ex{"worker_hostname": hostname},
		goqu.Ex{"worker_arch": arch},
	)
}

// Update an existing worker. Overrides all mutable columns using the supplied model.
func (d *WorkerStore) Update(ctx context.Context, txOrNil *store.Tx, worker *models.Worker) error {
	return d.table.UpdateByID(ctx, txOrNil, int64(worker.ID), worker)
}

// SetRunningJob records which job the worker is currently building, or clears
// the record when jobID is nil.
func (d *WorkerStore) SetRunningJob(ctx context.Context, txOrNil *store.Tx, workerID models.WorkerID, jobID *models.JobID) error {
	var value interface{}
	if jobID != nil {
		value = *jobID
	}
	_, err := d.table.UpdateWhere(ctx, txOrNil, goqu.Record{
		"worker_running_job_id": value,
	}, nil, goqu.Ex{"worker_id": workerID})
	return err
}

// List workers ordered by hostname then arch.
func (d *WorkerStore) List(ctx context.Context, txOrNil *store.Tx, pagination models.Pagination) ([]*models.Worker, error) {
	var workers []*models.Worker
	err := d.table.ListIn(ctx, txOrNil, &workers, pagination, func(ds *goqu.SelectDataset) *goqu.SelectDataset {
		return ds.Order(goqu.I("worker_hostname").Asc(), goqu.I("worker_arch").Asc())
	})
	if err != nil {
		return nil, err
	}
	return workers, nil
}

// Count returns the total number of registered workers.
func (d *WorkerStore) Count(ctx context.Context, txOrNil *store.Tx) (int64, error) {
	return d.table.Count(ctx, txOrNil)
}

// ListStale lists workers whose last heartbeat is older than the deadline but
// which still have a job recorded as running.
func (d *WorkerStore) ListStale(ctx context.Context, txOrNil *store.Tx, deadline time.Time) ([]*models.Worker, error) {
	var workers []*models.Worker
	err := d.table.ListIn(ctx, txOrNil, &workers, models.NewPagination(1, models.AllItems), func(ds *goqu.SelectDataset) *goqu.SelectDataset {
		return ds.Where(
			goqu.C("worker_last_heartbeat_at").Lt(models.NewTime(deadline)),
			goqu.C("worker_running_job_id").IsNotNull(),
		).Order(goqu.I("worker_id").Asc())
	})
	if err != nil {
		return nil, err
	}
	return workers, nil
}

// CountLive returns the number of workers whose last heartbeat is at or after
// the deadline.
func (d *WorkerStore) CountLive(ctx context.Context, txOrNil *store.Tx, deadline time.Time) (int64, error) {
	return d.table.Count(ctx, txOrNil, goqu.C("worker_last_heartbeat_at").Gte(models.NewTime(deadline)))
}
