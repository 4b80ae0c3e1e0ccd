package services

import (
	"context"

	"github.com/buildit-dev/buildit/common/models"
	"github.com/buildit-dev/buildit/server/dto"
	"github.com/buildit-dev/buildit/server/store"
)

type PipelineService interface {
	// Create validates, resolves and stores a new pipeline together with one
	// job per architecture.
	Create(ctx context.Context, create *dto.CreatePipeline) (*dto.PipelineGraph, error)
	// Read returns a pipeline with its jobs and derived status.
	Read(ctx context.Context, id models.PipelineID) (*dto.PipelineGraph, error)
	// List returns one page of pipelines matching the search, most recent
	// first, each with its derived status, along with the total number of
	// matching pipelines.
	List(ctx context.Context, search dto.PipelineSearch) ([]*dto.PipelineGraph, int64, error)
	// Dashboard aggregates queue and fleet state.
	Dashboard(ctx context.Context) (*dto.Dashboard, error)
}

type QueueService interface {
	// Poll claims the oldest matching queued job for the worker, or returns
	// the job the worker is already building, or nil when the queue has
	// nothing for it. The poll payload refreshes the worker's self-reported
	// capabilities before the match; a nil payload leaves them as they are.
	Poll(ctx context.Context, workerID models.WorkerID, poll *dto.WorkerPoll) (*models.Job, error)
	// Complete records the result a worker reports for a job. Returns a Stale
	// error if the job is no longer assigned to the reporting worker.
	Complete(ctx context.Context, workerID models.WorkerID, jobID models.JobID, completion *dto.JobCompletion) (*models.Job, error)
	// ReclaimWorker moves every job assigned to the worker back to the queue.
	ReclaimWorker(ctx context.Context, txOrNil *store.Tx, workerID models.WorkerID) ([]models.JobID, error)
	// Restart clones a finished job into a new queued job in the same
	// pipeline. Only failed and error jobs can be restarted.
	Restart(ctx context.Context, jobID models.JobID) (*models.Job, error)
	// ReadJob returns a single job.
	ReadJob(ctx context.Context, id models.JobID) (*models.Job, error)
	// ListJobs returns one page of jobs, most recent first, along with the
	// total number of jobs.
	ListJobs(ctx context.Context, pagination models.Pagination) ([]*models.Job, int64, error)
}

type WorkerService interface {
	// ProcessHeartbeat registers the worker on first contact and refreshes
	// its capabilities and heartbeat time on every subsequent call.
	ProcessHeartbeat(ctx context.Context, heartbeat *dto.WorkerHeartbeat) (*models.Worker, error)
	// Touch refreshes the worker's heartbeat timestamp only.
	Touch(ctx context.Context, txOrNil *store.Tx, workerID models.WorkerID) error
	// Read returns a worker with its derived liveness.
	Read(ctx context.Context, id models.WorkerID) (*dto.WorkerStatus, error)
	// List returns one page of workers with derived liveness, along with the
	// total number of workers.
	List(ctx context.Context, pagination models.Pagination) ([]*dto.WorkerStatus, int64, error)
}

// Resolver answers questions about the packaging tree and its code forge:
// resolving branches and pull requests to commits, and looking up submitter
// identity and org membership.
type Resolver interface {
	// ResolveBranch resolves a branch name to the commit sha at its tip.
	ResolveBranch(ctx context.Context, branch string) (sha string, err error)
	// ResolvePR resolves a pull request number to its head branch and sha.
	ResolvePR(ctx context.Context, number int64) (branch string, sha string, err error)
	// LookupUser returns the forge profile for a login.
	LookupUser(ctx context.Context, login string) (*ForgeUser, error)
	// IsOrgMember reports whether the login belongs to the packaging org.
	IsOrgMember(ctx context.Context, login string) (bool, error)
	// AuthenticateToken identifies the forge user a personal access token
	// belongs to.
	AuthenticateToken(ctx context.Context, token string) (*ForgeUser, error)
}

type AuthService interface {
	// VerifyWorkerSecret checks the shared secret presented by a worker.
	VerifyWorkerSecret(secret string) error
	// VerifyChatCredential checks the credential presented by the chat bridge.
	VerifyChatCredential(credential string) error
	// ExchangeForgeToken validates a forge personal access token, checks the
	// maintainer-org membership of its owner and mints a submitter JWT.
	ExchangeForgeToken(ctx context.Context, forgeToken string) (jwt string, user *ForgeUser, err error)
	// VerifySubmitterJWT validates a submitter JWT and returns the forge
	// login it was minted for.
	VerifySubmitterJWT(jwt string) (login string, err error)
}

// ForgeUser is the subset of a code-forge profile the coordinator cares about.
type ForgeUser struct {
	ID        int64
	Login     string
	AvatarURL string
}

// Notifier is told when jobs and pipelines reach a terminal status.
// Implementations must tolerate being called concurrently.
type Notifier interface {
	// JobFinished is invoked after a job result has been committed.
	JobFinished(ctx context.Context, pipeline *models.Pipeline, job *models.Job) error
	// PipelineFinished is invoked when the last running job of a pipeline
	// finishes.
	PipelineFinished(ctx context.Context, pipeline *dto.PipelineGraph) error
}
