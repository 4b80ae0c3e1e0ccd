package store

import (
	"context"
	"time"

	"github.com/buildit-dev/buildit/common/models"
)

// JobArchStatusCount is one cell of the job table broken down by
// architecture and status.
type JobArchStatusCount struct {
	Arch   string           `db:"job_arch" json:"arch"`
	Status models.JobStatus `db:"job_status" json:"status"`
	Count  int64            `db:"count" json:"count"`
}

type PipelineStore interface {
	// Create a new pipeline and return the id the database assigned to it.
	Create(ctx context.Context, txOrNil *Tx, pipeline *models.Pipeline) (models.PipelineID, error)
	// Read an existing pipeline, looking it up by id.
	// Returns a NotFound error if the pipeline does not exist.
	Read(ctx context.Context, txOrNil *Tx, id models.PipelineID) (*models.Pipeline, error)
	// List pipelines matching the search, most recent first.
	List(ctx context.Context, txOrNil *Tx, search models.PipelineSearch) ([]*models.Pipeline, error)
	// Count returns the number of pipelines matching the search filters.
	Count(ctx context.Context, txOrNil *Tx, search models.PipelineSearch) (int64, error)
}

type JobStore interface {
	// Create a new job and return the id the database assigned to it.
	Create(ctx context.Context, txOrNil *Tx, job *models.Job) (models.JobID, error)
	// Read an existing job, looking it up by id.
	// Returns a NotFound error if the job does not exist.
	Read(ctx context.Context, txOrNil *Tx, id models.JobID) (*models.Job, error)
	// ReadAndLock reads an existing job and locks its row for update for the
	// duration of the transaction.
	// Returns a NotFound error if the job does not exist.
	ReadAndLock(ctx context.Context, tx *Tx, id models.JobID) (*models.Job, error)
	// List jobs, most recent first.
	List(ctx context.Context, txOrNil *Tx, pagination models.Pagination) ([]*models.Job, error)
	// Count returns the total number of jobs.
	Count(ctx context.Context, txOrNil *Tx) (int64, error)
	// ListByPipelineID lists all jobs of a pipeline, oldest first.
	ListByPipelineID(ctx context.Context, txOrNil *Tx, pipelineID models.PipelineID) ([]*models.Job, error)
	// FindClaimableJob finds the oldest queued job whose architecture and
	// capability requirements the given worker satisfies, locking the row
	// for update inside tx. Returns a NotFound error if no job matches.
	FindClaimableJob(ctx context.Context, tx *Tx, worker *models.Worker) (*models.Job, error)
	// Assign marks a job as assigned to the given worker at the given time.
	Assign(ctx context.Context, txOrNil *Tx, jobID models.JobID, workerID models.WorkerID, at models.Time) error
	// CompleteWhereAssigned writes the result into a job iff the job is still
	// assigned to the reporting worker. Returns the number of rows updated,
	// which is zero when the job was reclaimed or re-assigned in the meantime.
	CompleteWhereAssigned(ctx context.Context, txOrNil *Tx, jobID models.JobID, workerID models.WorkerID, status models.JobStatus, result *models.JobResult) (int64, error)
	// ReclaimAllAssignedTo moves every job assigned to the given worker back
	// to the queue and returns the ids of the reclaimed jobs.
	ReclaimAllAssignedTo(ctx context.Context, txOrNil *Tx, workerID models.WorkerID) ([]models.JobID, error)
	// CountByArchStatus returns job counts grouped by architecture and status.
	CountByArchStatus(ctx context.Context, txOrNil *Tx) ([]*JobArchStatusCount, error)
}

type WorkerStore interface {
	// Create a new worker and return the id the database assigned to it.
	// Returns an AlreadyExists error if a worker with the same (hostname, arch)
	// pair already exists.
	Create(ctx context.Context, txOrNil *Tx, worker *models.Worker) (models.WorkerID, error)
	// Read an existing worker, looking it up by id.
	// Returns a NotFound error if the worker does not exist.
	Read(ctx context.Context, txOrNil *Tx, id models.WorkerID) (*models.Worker, error)
	// ReadByHostnameArch reads a worker by its (hostname, arch) natural key.
	// Returns a NotFound error if the worker does not exist.
	ReadByHostnameArch(ctx context.Context, txOrNil *Tx, hostname string, arch string) (*models.Worker, error)
	// Update an existing worker.
	Update(ctx context.Context, txOrNil *Tx, worker *models.Worker) error
	// SetRunningJob records which job the worker is currently building, or
	// clears the record when jobID is nil.
	SetRunningJob(ctx context.Context, txOrNil *Tx, workerID models.WorkerID, jobID *models.JobID) error
	// List workers ordered by hostname then arch.
	List(ctx context.Context, txOrNil *Tx, pagination models.Pagination) ([]*models.Worker, error)
	// Count returns the total number of registered workers.
	Count(ctx context.Context, txOrNil *Tx) (int64, error)
	// ListStale lists workers whose last heartbeat is older than the deadline
	// but which still have a job recorded as running.
	ListStale(ctx context.Context, txOrNil *Tx, deadline time.Time) ([]*models.Worker, error)
	// CountLive returns the number of workers whose last heartbeat is at or
	// after the deadline.
	CountLive(ctx context.Context, txOrNil *Tx, deadline time.Time) (int64, error)
}

type UserStore interface {
	// Create a new user and return the id the database assigned to it.
	Create(ctx context.Context, txOrNil *Tx, user *models.User) (models.UserID, error)
	// Read an existing user, looking it up by id.
	// Returns a NotFound error if the user does not exist.
	Read(ctx context.Context, txOrNil *Tx, id models.UserID) (*models.User, error)
	// ReadByChatID reads a user by their chat platform identity.
	// Returns a NotFound error if the user does not exist.
	ReadByChatID(ctx context.Context, txOrNil *Tx, chatID string) (*models.User, error)
	// Update an existing user.
	Update(ctx context.Context, txOrNil *Tx, user *models.User) error
}
