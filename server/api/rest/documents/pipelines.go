package documents

import (
	"net/http"

	"github.com/buildit-dev/buildit/common/gerror"
	"github.com/buildit-dev/buildit/common/models"
	"github.com/buildit-dev/buildit/server/dto"
)

// CreatePipelineRequest submits a new pipeline. Exactly one of git_branch or
// github_pr must be set.
type CreatePipelineRequest struct {
	// Packages to build, in order.
	Packages []string `json:"packages"`
	// Archs to build for. Empty or "mainline" expands to every mainline arch.
	Archs []string `json:"archs"`
	// GitBranch of the packaging tree to build from.
	GitBranch string `json:"git_branch"`
	// GitHubPR to build instead of a branch.
	GitHubPR *int64 `json:"github_pr,omitempty"`
	// ChatUserID identifies the submitter when the request arrives through
	// the chat bridge.
	ChatUserID *string `json:"chat_user_id,omitempty"`
	// Optional capability constraints applied to every job of the pipeline.
	MinCores              *int64 `json:"min_cores,omitempty"`
	MinTotalMemoryBytes   *int64 `json:"min_total_memory_bytes,omitempty"`
	MinMemoryPerCoreBytes *int64 `json:"min_memory_per_core_bytes,omitempty"`
	MinFreeDiskBytes      *int64 `json:"min_free_disk_bytes,omitempty"`
}

func (d *CreatePipelineRequest) Bind(r *http.Request) error {
	if len(d.Packages) == 0 {
		return gerror.NewErrValidationFailed("At least one package must be specified")
	}
	if d.GitBranch == "" && d.GitHubPR == nil {
		return gerror.NewErrValidationFailed("A branch or pull request must be specified")
	}
	if d.GitBranch != "" && d.GitHubPR != nil {
		return gerror.NewErrValidationFailed("A branch and a pull request must not both be specified")
	}
	return nil
}

// Requirements converts the optional constraint fields.
func (d *CreatePipelineRequest) Requirements() models.JobRequirements {
	return models.JobRequirements{
		MinCores:              d.MinCores,
		MinTotalMemoryBytes:   d.MinTotalMemoryBytes,
		MinMemoryPerCoreBytes: d.MinMemoryPerCoreBytes,
		MinFreeDiskBytes:      d.MinFreeDiskBytes,
	}
}

// PipelineJobSummary is the per-job stub embedded in a pipeline listing.
type PipelineJobSummary struct {
	JobID  models.JobID     `json:"job_id"`
	Arch   string           `json:"arch"`
	Status models.JobStatus `json:"status"`
}

// Pipeline is a pipeline with its derived status and job stubs.
type Pipeline struct {
	*models.Pipeline
	Status models.PipelineStatus `json:"status"`
	Jobs   []*PipelineJobSummary `json:"jobs"`
}

func MakePipeline(graph *dto.PipelineGraph) *Pipeline {
	doc := &Pipeline{
		Pipeline: graph.Pipeline,
		Status:   graph.Status,
	}
	for _, job := range graph.Jobs {
		doc.Jobs = append(doc.Jobs, &PipelineJobSummary{
			JobID:  job.ID,
			Arch:   job.Arch,
			Status: job.Status,
		})
	}
	return doc
}

// PipelineGraph is a pipeline with its full job records, as returned by
// pipeline/info.
type PipelineGraph struct {
	*models.Pipeline
	Status models.PipelineStatus `json:"status"`
	Jobs   []*models.Job         `json:"jobs"`
}

func MakePipelineGraph(graph *dto.PipelineGraph) *PipelineGraph {
	return &PipelineGraph{
		Pipeline: graph.Pipeline,
		Status:   graph.Status,
		Jobs:     graph.Jobs,
	}
}
