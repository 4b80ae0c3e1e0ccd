package dto

import (
	"github.com/buildit-dev/buildit/common/models"
)

// WorkerHeartbeat is the self-report a worker sends on registration and on
// every heartbeat thereafter.
type WorkerHeartbeat struct {
	Hostname             string
	Arch                 string
	Capabilities         models.WorkerCapabilities
	SourceRev            string
	Performance          *int64
	InternetConnectivity bool
}

// WorkerPoll is the self-report a worker attaches to every poll. Capabilities
// drift between heartbeats (disk fills up, memory gets upgraded), so the poll
// refreshes them before the queue is matched against the worker.
type WorkerPoll struct {
	Capabilities         models.WorkerCapabilities
	InternetConnectivity bool
}

// WorkerStatus is a worker with its derived liveness, as returned by the
// query API. RunningJobAssignTime is populated when the worker has a job.
type WorkerStatus struct {
	*models.Worker
	IsLive               bool         `json:"is_live"`
	RunningJobAssignTime *models.Time `json:"running_job_assign_time,omitempty"`
}

// JobCompletion is the result a worker reports when it finishes a job, for
// better or worse. The terminal status is derived server-side, never
// trusted from the worker.
type JobCompletion struct {
	BuildSuccess       bool
	UploadSuccess      bool
	SuccessfulPackages []string
	FailedPackage      *string
	SkippedPackages    []string
	LogURL             *string
	ErrorMessage       *string
	ElapsedSecs        *int64
}

// DashboardCounts aggregates queue and fleet state, either for the whole
// deployment or for a single architecture. Jobs for noarch and the 32-bit
// optional environment are counted under the amd64 pool that builds them.
type DashboardCounts struct {
	TotalJobCount     int64 `json:"total_job_count"`
	PendingJobCount   int64 `json:"pending_job_count"`
	RunningJobCount   int64 `json:"running_job_count"`
	FinishedJobCount  int64 `json:"finished_job_count"`
	TotalWorkerCount  int64 `json:"total_worker_count"`
	LiveWorkerCount   int64 `json:"live_worker_count"`
	TotalLogicalCores int64 `json:"total_logical_cores"`
	TotalMemoryBytes  int64 `json:"total_memory_bytes"`
}

// Dashboard is the landing-page aggregate: deployment-wide counts plus a
// per-architecture breakdown.
type Dashboard struct {
	TotalPipelineCount int64 `json:"total_pipeline_count"`
	DashboardCounts
	ByArch map[string]*DashboardCounts `json:"by_arch"`
}
