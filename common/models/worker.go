package models

import (
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// Worker is the long-lived registration of a build machine. Workers are
// keyed by (hostname, arch); re-registering the same pair updates the
// existing row. A worker is never deleted, only considered dead once its
// heartbeats stop.
type Worker struct {
	ID        WorkerID `json:"id" goqu:"skipinsert,skipupdate" db:"worker_id"`
	CreatedAt Time     `json:"created_at" goqu:"skipupdate" db:"worker_created_at"`
	// Hostname is the self-reported machine hostname.
	Hostname string `json:"hostname" goqu:"skipupdate" db:"worker_hostname"`
	// Arch is the single architecture the worker builds for. Immutable after
	// first registration.
	Arch string `json:"arch" goqu:"skipupdate" db:"worker_arch"`
	WorkerCapabilities
	// SourceRev is the revision of the worker software, for fleet tracking.
	SourceRev string `json:"source_rev" db:"worker_source_rev"`
	// Performance is an optional relative throughput hint.
	Performance *int64 `json:"performance,omitempty" db:"worker_performance"`
	// InternetConnectivity reports whether the worker can reach the public
	// internet, which some builds require.
	InternetConnectivity bool `json:"internet_connectivity" db:"worker_internet_connectivity"`
	// LastHeartbeatAt is refreshed by every heartbeat, poll and completion call.
	LastHeartbeatAt Time `json:"last_heartbeat_at" db:"worker_last_heartbeat_at"`
	// RunningJobID is the job currently assigned to this worker, if any.
	RunningJobID *JobID `json:"running_job_id,omitempty" db:"worker_running_job_id"`
}

// IsLive reports whether the worker's most recent heartbeat is within the
// liveness timeout. Liveness is always derived, never stored.
func (m *Worker) IsLive(now time.Time, timeout time.Duration) bool {
	return now.Sub(m.LastHeartbeatAt.Time) < timeout
}

func (m *Worker) Validate() error {
	var result *multierror.Error
	if m.CreatedAt.IsZero() {
		result = multierror.Append(result, errors.New("error created at must be set"))
	}
	if m.Hostname == "" {
		result = multierror.Append(result, errors.New("error hostname must be set"))
	}
	if m.Arch == "" {
		result = multierror.Append(result, errors.New("error arch must be set"))
	}
	if m.LogicalCores < 0 {
		result = multierror.Append(result, errors.New("error logical cores must not be negative"))
	}
	if m.MemoryBytes < 0 {
		result = multierror.Append(result, errors.New("error memory bytes must not be negative"))
	}
	if m.DiskFreeSpaceBytes < 0 {
		result = multierror.Append(result, errors.New("error disk free space bytes must not be negative"))
	}
	if m.LastHeartbeatAt.IsZero() {
		result = multierror.Append(result, errors.New("error last heartbeat at must be set"))
	}
	return result.ErrorOrNil()
}
