package dto

import (
	"github.com/buildit-dev/buildit/common/models"
)

// CreatePipeline carries everything needed to submit a new pipeline.
// Exactly one of GitBranch or GitHubPR must be set; the other coordinates
// are resolved against the packaging tree before the pipeline is stored.
type CreatePipeline struct {
	// Packages to build, in submission order.
	Packages []string
	// Archs requested by the submitter. An empty list or the mainline
	// pseudo-architecture expands to every mainline architecture.
	Archs []string
	// GitBranch of the packaging tree to build from.
	GitBranch string
	// GitHubPR is the pull request to build instead of a branch.
	GitHubPR *int64
	// Source records which surface submitted the pipeline.
	Source models.PipelineSource
	// ChatUserID is the chat identity of the submitter, when the pipeline
	// arrives via the chat surface.
	ChatUserID *string
	// SubmitterLogin is the forge login of the submitter, when the pipeline
	// arrives with a submitter token.
	SubmitterLogin  *string
	JobRequirements models.JobRequirements
}

// PipelineSearch filters a pipeline listing through the query API.
type PipelineSearch struct {
	models.Pagination
	// StableOnly restricts the listing to pipelines built from the stable branch.
	StableOnly bool
	// GitHubPROnly restricts the listing to pull-request pipelines.
	GitHubPROnly bool
}

// PipelineGraph is a pipeline with its jobs and derived status, as returned
// by every pipeline read.
type PipelineGraph struct {
	*models.Pipeline
	Status models.PipelineStatus `json:"status"`
	Jobs   []*models.Job         `json:"jobs"`
}

// RollUpStatus derives the pipeline status from the job set.
func (g *PipelineGraph) RollUpStatus() models.PipelineStatus {
	statuses := make([]models.JobStatus, len(g.Jobs))
	for i, job := range g.Jobs {
		statuses[i] = job.Status
	}
	return models.RollUpPipelineStatus(statuses)
}
