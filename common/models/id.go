package models

import (
	"fmt"
	"strconv"
)

// IDs are monotonic integers allocated by the database. Zero means unset.

type PipelineID int64

func (id PipelineID) Valid() bool    { return id > 0 }
func (id PipelineID) String() string { return strconv.FormatInt(int64(id), 10) }

func ParsePipelineID(str string) (PipelineID, error) {
	v, err := strconv.ParseInt(str, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("error parsing pipeline id %q: %w", str, err)
	}
	return PipelineID(v), nil
}

type JobID int64

func (id JobID) Valid() bool    { return id > 0 }
func (id JobID) String() string { return strconv.FormatInt(int64(id), 10) }

func ParseJobID(str string) (JobID, error) {
	v, err := strconv.ParseInt(str, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("error parsing job id %q: %w", str, err)
	}
	return JobID(v), nil
}

type WorkerID int64

func (id WorkerID) Valid() bool    { return id > 0 }
func (id WorkerID) String() string { return strconv.FormatInt(int64(id), 10) }

func ParseWorkerID(str string) (WorkerID, error) {
	v, err := strconv.ParseInt(str, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("error parsing worker id %q: %w", str, err)
	}
	return WorkerID(v), nil
}

type UserID int64

func (id UserID) Valid() bool    { return id > 0 }
func (id UserID) String() string { return strconv.FormatInt(int64(id), 10) }

func ParseUserID(str string) (UserID, error) {
	v, err := strconv.ParseInt(str, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("error parsing user id %q: %w", str, err)
	}
	return UserID(v), nil
}
