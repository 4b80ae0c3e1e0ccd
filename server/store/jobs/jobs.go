package jobs

import (
	"context"
	"database/sql"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/pkg/errors"

	"github.com/buildit-dev/buildit/common/gerror"
	"github.com/buildit-dev/buildit/common/logger"
	"github.com/buildit-dev/buildit/common/models"
	"github.com/buildit-dev/buildit/server/store"
)

type JobStore struct {
	db    *store.DB
	table *store.Table
}

func NewStore(db *store.DB, logFactory logger.LogFactory) *JobStore {
	return &JobStore{
		db:    db,
		table: store.NewTable(db, logFactory, "jobs", "job_id"),
	}
}

// Create a new job and return the id the database assigned to it.
func (d *JobStore) Create(ctx context.Context, txOrNil *store.Tx, job *models.Job) (models.JobID, error) {
	id, err := d.table.Create(ctx, txOrNil, job)
	if err != nil {
		return 0, err
	}
	job.ID = models.JobID(id)
	return job.ID, nil
}

// Read an existing job, looking it up by id.
// Returns a NotFound error if the job does not exist.
func (d *JobStore) Read(ctx context.Context, txOrNil *store.Tx, id models.JobID) (*models.Job, error) {
	job := &models.Job{}
	return job, d.table.ReadByID(ctx, txOrNil, int64(id), job)
}

// ReadAndLock reads an existing job and locks its row for update for the
// duration of the transaction. Used where a status check and a follow-up
// write must not race with a concurrent caller.
// Returns a NotFound error if the job does not exist.
func (d *JobStore) ReadAndLock(ctx context.Context, tx *store.Tx, id models.JobID) (*models.Job, error) {
	job := &models.Job{}
	return job, d.table.ReadAndLockRowForUpdateWhere(ctx, tx, job, goqu.Ex{"job_id": id})
}

// List jobs, most recent first.
func (d *JobStore) List(ctx context.Context, txOrNil *store.Tx, pagination models.Pagination) ([]*models.Job, error) {
	var jobs []*models.Job
	err := d.table.ListIn(ctx, txOrNil, &jobs, pagination, func(ds *goqu.SelectDataset) *goqu.SelectDataset {
		return ds.Order(goqu.I("job_id").Desc())
	})
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

// Count returns the total number of jobs.
func (d *JobStore) Count(ctx context.Context, txOrNil *store.Tx) (int64, error) {
	return d.table.Count(ctx, txOrNil)
}

// ListByPipelineID lists all jobs of a pipeline, oldest first.
func (d *JobStore) ListByPipelineID(ctx context.Context, txOrNil *store.Tx, pipelineID models.PipelineID) ([]*models.Job, error) {
	var jobs []*models.Job
	err := d.table.ListIn(ctx, txOrNil, &jobs, models.NewPagination(1, models.AllItems), func(ds *goqu.SelectDataset) *goqu.SelectDataset {
		return ds.
			Where(goqu.Ex{"job_pipeline_id": pipelineID}).
			Order(goqu.I("job_id").Asc())
	})
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

// FindClaimableJob finds the oldest queued job whose architecture and capability
// requirements the given worker satisfies, locking the row for update inside tx
// so that concurrent polls cannot claim the same job twice.
// Returns a NotFound error if no job matches.
func (d *JobStore) FindClaimableJob(ctx context.Context, tx *store.Tx, worker *models.Worker) (*models.Job, error) {
	expressions := []exp.Expression{
		goqu.Ex{"job_status": models.JobStatusCreated},
		goqu.C("job_arch").In(models.ArchsServedBy(worker.Arch)),
		goqu.Or(
			goqu.C("job_require_min_cores").IsNull(),
			goqu.C("job_require_min_cores").Lte(worker.LogicalCores)),
		goqu.Or(
			goqu.C("job_require_min_total_memory_bytes").IsNull(),
			goqu.C("job_require_min_total_memory_bytes").Lte(worker.MemoryBytes)),
		goqu.Or(
			goqu.C("job_require_min_free_disk_bytes").IsNull(),
			goqu.C("job_require_min_free_disk_bytes").Lte(worker.DiskFreeSpaceBytes)),
	}
	// The per-core dimension is computed here rather than in SQL so that the
	// predicate stays portable across dialects.
	if worker.LogicalCores > 0 {
		expressions = append(expressions, goqu.Or(
			goqu.C("job_require_min_memory_per_core_bytes").IsNull(),
			goqu.C("job_require_min_memory_per_core_bytes").Lte(worker.MemoryBytes/worker.LogicalCores)))
	} else {
		expressions = append(expressions, goqu.C("job_require_min_memory_per_core_bytes").IsNull())
	}

	job := &models.Job{}
	err := d.db.Read(tx, func(reader store.Reader) error {
		ds := reader.
			From(d.table.TableName()).
			Prepared(true).
			Where(expressions...).
			Order(goqu.I("job_id").Asc()).
			Limit(1)
		if d.db.SupportsRowLevelLocking() {
			ds = ds.ForUpdate(exp.Wait)
		}
		query, args, err := ds.ToSQL()
		if err != nil {
			return errors.Wrap(err, "error generating query")
		}
		found, err := reader.ScanStructContext(ctx, job, query, args...)
		if err != nil {
			return d.table.MakeStandardDBError(err)
		}
		if !found {
			return gerror.NewErrNotFound("Not Found").Wrap(sql.ErrNoRows)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

// Assign marks a job as assigned to the given worker at the given time.
func (d *JobStore) Assign(ctx context.Context, txOrNil *store.Tx, jobID models.JobID, workerID models.WorkerID, at models.Time) error {
	updated, err := d.table.UpdateWhere(ctx, txOrNil, goqu.Record{
		"job_status":             models.JobStatusAssigned,
		"job_assigned_worker_id": workerID,
		"job_assign_time":        at,
	}, nil, goqu.Ex{"job_id": jobID})
	if err != nil {
		return err
	}
	if updated == 0 {
		return gerror.NewErrNotFound("Not Found").Wrap(sql.ErrNoRows)
	}
	return nil
}

// CompleteWhereAssigned writes the result into a job iff the job is still
// assigned to the reporting worker. Returns the number of rows updated, which
// is zero when the job was reclaimed or re-assigned in the meantime.
func (d *JobStore) CompleteWhereAssigned(
	ctx context.Context,
	txOrNil *store.Tx,
	jobID models.JobID,
	workerID models.WorkerID,
	status models.JobStatus,
	result *models.JobResult,
) (int64, error) {
	return d.table.UpdateWhere(ctx, txOrNil, goqu.Record{
		"job_status":              status,
		"job_assigned_worker_id":  nil,
		"job_finish_time":         result.FinishTime,
		"job_build_success":       result.BuildSuccess,
		"job_upload_success":      result.UploadSuccess,
		"job_successful_packages": result.SuccessfulPackages,
		"job_failed_package":      result.FailedPackage,
		"job_skipped_packages":    result.SkippedPackages,
		"job_log_url":             result.LogURL,
		"job_error_message":       result.ErrorMessage,
		"job_elapsed_secs":        result.ElapsedSecs,
		"job_built_by_worker_id":  result.BuiltByWorkerID,
	}, nil,
		goqu.Ex{"job_id": jobID},
		goqu.Ex{"job_status": models.JobStatusAssigned},
		goqu.Ex{"job_assigned_worker_id": workerID},
	)
}

// ReclaimAllAssignedTo moves every job assigned to the given worker back to
// the queue and returns the ids of the reclaimed jobs.
func (d *JobStore) ReclaimAllAssignedTo(ctx context.Context, txOrNil *store.Tx, workerID models.WorkerID) ([]models.JobID, error) {
	var reclaimed []models.JobID
	err := d.db.WithTx(ctx, txOrNil, func(tx *store.Tx) error {
		var jobs []*models.Job
		err := d.table.ListIn(ctx, tx, &jobs, models.NewPagination(1, models.AllItems), func(ds *goqu.SelectDataset) *goqu.SelectDataset {
			return ds.Where(goqu.Ex{
				"job_status":             models.JobStatusAssigned,
				"job_assigned_worker_id": workerID,
			}).Order(goqu.I("job_id").Asc())
		})
		if err != nil {
			return err
		}
		if len(jobs) == 0 {
			return nil
		}
		ids := make([]int64, len(jobs))
		for i, job := range jobs {
			ids[i] = int64(job.ID)
		}
		_, err = d.table.UpdateWhere(ctx, tx, goqu.Record{
			"job_status":             models.JobStatusCreated,
			"job_assigned_worker_id": nil,
			"job_assign_time":        nil,
		}, nil, goqu.C("job_id").In(ids))
		if err != nil {
			return err
		}
		for _, job := range jobs {
			reclaimed = append(reclaimed, job.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reclaimed, nil
}

// CountByArchStatus returns job counts grouped by architecture and status.
func (d *JobStore) CountByArchStatus(ctx context.Context, txOrNil *store.Tx) ([]*store.JobArchStatusCount, error) {
	var counts []*store.JobArchStatusCount
	err := d.db.Read(txOrNil, func(reader store.Reader) error {
		query, args, err := reader.
			From("jobs").
			Prepared(true).
			Select(
				goqu.C("job_arch"),
				goqu.C("job_status"),
				goqu.COUNT(goqu.Star()).As("count")).
			GroupBy(goqu.C("job_arch"), goqu.C("job_status")).
			Order(goqu.C("job_arch").Asc(), goqu.C("job_status").Asc()).
			ToSQL()
		if err != nil {
			return errors.Wrap(err, "error generating job count query")
		}
		return reader.ScanStructsContext(ctx, &counts, query, args...)
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}
