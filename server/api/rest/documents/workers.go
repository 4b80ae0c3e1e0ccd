package documents

import (
	"net/http"

	"github.com/buildit-dev/buildit/common/gerror"
	"github.com/buildit-dev/buildit/common/models"
	"github.com/buildit-dev/buildit/server/dto"
)

// HeartbeatRequest is the self-report a worker sends on registration and on
// every heartbeat thereafter.
type HeartbeatRequest struct {
	Hostname             string `json:"hostname"`
	Arch                 string `json:"arch"`
	LogicalCores         int64  `json:"logical_cores"`
	MemoryBytes          int64  `json:"memory_bytes"`
	DiskFreeSpaceBytes   int64  `json:"disk_free_space_bytes"`
	SourceRev            string `json:"source_rev"`
	Performance          *int64 `json:"performance,omitempty"`
	InternetConnectivity bool   `json:"internet_connectivity"`
}

func (d *HeartbeatRequest) Bind(r *http.Request) error {
	if d.Hostname == "" {
		return gerror.NewErrValidationFailed("A hostname must be specified")
	}
	if d.Arch == "" {
		return gerror.NewErrValidationFailed("An arch must be specified")
	}
	return nil
}

// ToHeartbeat converts the request into the service-layer report.
func (d *HeartbeatRequest) ToHeartbeat() *dto.WorkerHeartbeat {
	return &dto.WorkerHeartbeat{
		Hostname: d.Hostname,
		Arch:     d.Arch,
		Capabilities: models.WorkerCapabilities{
			LogicalCores:       d.LogicalCores,
			MemoryBytes:        d.MemoryBytes,
			DiskFreeSpaceBytes: d.DiskFreeSpaceBytes,
		},
		SourceRev:            d.SourceRev,
		Performance:          d.Performance,
		InternetConnectivity: d.InternetConnectivity,
	}
}

// PollRequest asks for the oldest queued job the worker can satisfy. It
// carries the same self-reported hardware as a heartbeat so the capability
// match runs against what the worker has right now, not what it had a
// minute ago.
type PollRequest struct {
	WorkerID             models.WorkerID `json:"worker_id"`
	LogicalCores         int64           `json:"logical_cores"`
	MemoryBytes          int64           `json:"memory_bytes"`
	DiskFreeSpaceBytes   int64           `json:"disk_free_space_bytes"`
	InternetConnectivity bool            `json:"internet_connectivity"`
}

func (d *PollRequest) Bind(r *http.Request) error {
	if !d.WorkerID.Valid() {
		return gerror.NewErrValidationFailed("A worker id must be specified")
	}
	return nil
}

// ToPoll converts the request into the service-layer report.
func (d *PollRequest) ToPoll() *dto.WorkerPoll {
	return &dto.WorkerPoll{
		Capabilities: models.WorkerCapabilities{
			LogicalCores:       d.LogicalCores,
			MemoryBytes:        d.MemoryBytes,
			DiskFreeSpaceBytes: d.DiskFreeSpaceBytes,
		},
		InternetConnectivity: d.InternetConnectivity,
	}
}

// CompleteRequest reports the result of a finished build, for better or
// worse. The terminal status is derived server-side.
type CompleteRequest struct {
	WorkerID           models.WorkerID `json:"worker_id"`
	JobID              models.JobID    `json:"job_id"`
	BuildSuccess       bool            `json:"build_success"`
	UploadSuccess      bool            `json:"upload_success"`
	SuccessfulPackages []string        `json:"successful_packages,omitempty"`
	FailedPackage      *string         `json:"failed_package,omitempty"`
	SkippedPackages    []string        `json:"skipped_packages,omitempty"`
	LogURL             *string         `json:"log_url,omitempty"`
	ErrorMessage       *string         `json:"error_message,omitempty"`
	ElapsedSecs        *int64          `json:"elapsed_secs,omitempty"`
}

func (d *CompleteRequest) Bind(r *http.Request) error {
	if !d.WorkerID.Valid() {
		return gerror.NewErrValidationFailed("A worker id must be specified")
	}
	if !d.JobID.Valid() {
		return gerror.NewErrValidationFailed("A job id must be specified")
	}
	return nil
}

// ToCompletion converts the request into the service-layer report.
func (d *CompleteRequest) ToCompletion() *dto.JobCompletion {
	return &dto.JobCompletion{
		BuildSuccess:       d.BuildSuccess,
		UploadSuccess:      d.UploadSuccess,
		SuccessfulPackages: d.SuccessfulPackages,
		FailedPackage:      d.FailedPackage,
		SkippedPackages:    d.SkippedPackages,
		LogURL:             d.LogURL,
		ErrorMessage:       d.ErrorMessage,
		ElapsedSecs:        d.ElapsedSecs,
	}
}
