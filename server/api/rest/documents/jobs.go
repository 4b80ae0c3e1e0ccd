package documents

import (
	"net/http"

	"github.com/buildit-dev/buildit/common/gerror"
	"github.com/buildit-dev/buildit/common/models"
)

// Job is a job record decorated with the hostnames behind its worker ids.
type Job struct {
	*models.Job
	AssignedWorkerHostname *string `json:"assigned_worker_hostname,omitempty"`
	BuiltByWorkerHostname  *string `json:"built_by_worker_hostname,omitempty"`
}

func MakeJob(job *models.Job, assignedHostname *string, builtByHostname *string) *Job {
	return &Job{
		Job:                    job,
		AssignedWorkerHostname: assignedHostname,
		BuiltByWorkerHostname:  builtByHostname,
	}
}

// RunnableJob is what a worker receives from a successful poll: the claimed
// job plus the git coordinates of its pipeline, so the worker can prepare
// the packaging tree without a second round trip.
type RunnableJob struct {
	*models.Job
	GitBranch string `json:"git_branch"`
	GitSha    string `json:"git_sha"`
}

func MakeRunnableJob(job *models.Job, pipeline *models.Pipeline) *RunnableJob {
	return &RunnableJob{
		Job:       job,
		GitBranch: pipeline.GitBranch,
		GitSha:    pipeline.GitSha,
	}
}

// RestartJobRequest asks for a failed or error job to be cloned back into
// the queue.
type RestartJobRequest struct {
	JobID models.JobID `json:"job_id"`
}

func (d *RestartJobRequest) Bind(r *http.Request) error {
	if !d.JobID.Valid() {
		return gerror.NewErrValidationFailed("A job id must be specified")
	}
	return nil
}
