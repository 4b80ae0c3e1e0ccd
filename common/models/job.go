package models

import (
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// Job is a single (packages x architecture) unit of work dispatched to at
// most one worker at a time. A job row is never deleted; restarts clone a
// new row into the same pipeline.
type Job struct {
	ID         JobID      `json:"id" goqu:"skipinsert,skipupdate" db:"job_id"`
	CreatedAt  Time       `json:"created_at" goqu:"skipupdate" db:"job_created_at"`
	PipelineID PipelineID `json:"pipeline_id" goqu:"skipupdate" db:"job_pipeline_id"`
	// Packages is the comma-joined package list, inherited from the pipeline.
	Packages string `json:"packages" db:"job_packages"`
	// Arch is the single architecture this job builds for.
	Arch string `json:"arch" db:"job_arch"`
	// Status reflects where the job is in its lifecycle.
	Status JobStatus `json:"status" db:"job_status"`
	JobRequirements
	// AssignedWorkerID is set iff Status is assigned.
	AssignedWorkerID *WorkerID `json:"assigned_worker_id,omitempty" db:"job_assigned_worker_id"`
	// AssignTime is the time of the most recent assignment.
	AssignTime *Time `json:"assign_time,omitempty" db:"job_assign_time"`
	JobResult
}

// JobResult holds the completion fields reported by the worker that built
// the job. All fields are nil until the job reaches a terminal status.
type JobResult struct {
	// FinishTime is set iff the job has reached a terminal status.
	FinishTime *Time `json:"finish_time,omitempty" db:"job_finish_time"`
	// BuildSuccess reports whether the builder exited cleanly with all packages built.
	BuildSuccess *bool `json:"build_success,omitempty" db:"job_build_success"`
	// UploadSuccess reports whether the built packages were uploaded to the repository.
	UploadSuccess *bool `json:"upload_success,omitempty" db:"job_upload_success"`
	// SuccessfulPackages is the comma-joined list of packages that built.
	SuccessfulPackages *string `json:"successful_packages,omitempty" db:"job_successful_packages"`
	// FailedPackage is the package the builder stopped at, if any.
	FailedPackage *string `json:"failed_package,omitempty" db:"job_failed_package"`
	// SkippedPackages is the comma-joined list of packages skipped after the failure.
	SkippedPackages *string `json:"skipped_packages,omitempty" db:"job_skipped_packages"`
	// LogURL points at the uploaded full build log.
	LogURL *string `json:"log_url,omitempty" db:"job_log_url"`
	// ErrorMessage is set iff the worker hit an infrastructure error.
	ErrorMessage *string `json:"error_message,omitempty" db:"job_error_message"`
	// ElapsedSecs is how long the build ran on the worker.
	ElapsedSecs *int64 `json:"elapsed_secs,omitempty" db:"job_elapsed_secs"`
	// BuiltByWorkerID records which worker produced the terminal result.
	BuiltByWorkerID *WorkerID `json:"built_by_worker_id,omitempty" db:"job_built_by_worker_id"`
}

// DeriveJobStatus implements the completion truth table: an error message
// always wins, a clean build plus a clean upload is a success, and anything
// else is a failure.
func DeriveJobStatus(buildSuccess, uploadSuccess bool, errorMessage *string) JobStatus {
	if errorMessage != nil && *errorMessage != "" {
		return JobStatusError
	}
	if buildSuccess && uploadSuccess {
		return JobStatusSuccess
	}
	return JobStatusFailed
}

// PackageList splits the comma-joined package list.
func (m *Job) PackageList() []string {
	return splitCommaList(m.Packages)
}

func (m *Job) Validate() error {
	var result *multierror.Error
	if m.CreatedAt.IsZero() {
		result = multierror.Append(result, errors.New("error created at must be set"))
	}
	if !m.PipelineID.Valid() {
		result = multierror.Append(result, errors.New("error pipeline id must be set"))
	}
	if m.Packages == "" {
		result = multierror.Append(result, errors.New("error packages must be set"))
	}
	if m.Arch == "" {
		result = multierror.Append(result, errors.New("error arch must be set"))
	}
	if !m.Status.Valid() {
		result = multierror.Append(result, errors.Errorf("error unknown job status: %s", m.Status))
	}
	if (m.Status == JobStatusAssigned) != (m.AssignedWorkerID != nil) {
		result = multierror.Append(result, errors.New("error assigned worker id must be set iff status is assigned"))
	}
	if m.Status.HasFinished() != (m.FinishTime != nil) {
		result = multierror.Append(result, errors.New("error finish time must be set iff status is terminal"))
	}
	return result.ErrorOrNil()
}
