package models

import (
	"database/sql/driver"

	"github.com/pkg/errors"
)

const (
	// JobStatusCreated means the job is waiting in the queue for a worker.
	JobStatusCreated JobStatus = "created"
	// JobStatusAssigned means the job has been claimed by a worker and is being built.
	JobStatusAssigned JobStatus = "assigned"
	// JobStatusSuccess means the build and the upload both succeeded.
	JobStatusSuccess JobStatus = "success"
	// JobStatusFailed means the build or the upload failed.
	JobStatusFailed JobStatus = "failed"
	// JobStatusError means the worker hit an infrastructure error before a verdict was reached.
	JobStatusError JobStatus = "error"
)

type JobStatus string

func (s JobStatus) String() string {
	return string(s)
}

func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusCreated, JobStatusAssigned, JobStatusSuccess, JobStatusFailed, JobStatusError:
		return true
	}
	return false
}

// HasFinished returns true if the job has reached a terminal status.
func (s JobStatus) HasFinished() bool {
	return s == JobStatusSuccess || s == JobStatusFailed || s == JobStatusError
}

// CanRestart returns true if a new job may be cloned from a job in this status.
func (s JobStatus) CanRestart() bool {
	return s == JobStatusFailed || s == JobStatusError
}

func (s *JobStatus) Scan(src interface{}) error {
	if src == nil {
		return errors.New("error cannot convert nil to JobStatus")
	}
	t, ok := src.(string)
	if !ok {
		return errors.Errorf("error expected string but found: %T", src)
	}
	status := JobStatus(t)
	if !status.Valid() {
		return errors.Errorf("error unknown job status: %s", t)
	}
	*s = status
	return nil
}

func (s JobStatus) Value() (driver.Value, error) {
	return string(s), nil
}

const (
	PipelineStatusRunning PipelineStatus = "running"
	PipelineStatusSuccess PipelineStatus = "success"
	PipelineStatusFailed  PipelineStatus = "failed"
	PipelineStatusError   PipelineStatus = "error"
)

// PipelineStatus is derived from the statuses of a pipeline's jobs and is
// never persisted.
type PipelineStatus string

func (s PipelineStatus) String() string {
	return string(s)
}

// RollUpPipelineStatus derives a pipeline's status from its job statuses.
// Precedence: any error job wins, then any failed job, then any job still
// queued or building, and only a fully successful set reports success.
func RollUpPipelineStatus(statuses []JobStatus) PipelineStatus {
	var anyFailed, anyUnfinished bool
	for _, status := range statuses {
		switch {
		case status == JobStatusError:
			return PipelineStatusError
		case status == JobStatusFailed:
			anyFailed = true
		case !status.HasFinished():
			anyUnfinished = true
		}
	}
	if anyFailed {
		return PipelineStatusFailed
	}
	if anyUnfinished {
		return PipelineStatusRunning
	}
	return PipelineStatusSuccess
}
