package notify

import (
	"context"
	"fmt"

	"github.com/google/go-github/v28/github"

	"github.com/buildit-dev/buildit/common/logger"
	"github.com/buildit-dev/buildit/common/models"
	"github.com/buildit-dev/buildit/common/util"
	"github.com/buildit-dev/buildit/server/dto"
)

// githubStatusStates maps job/pipeline status onto GitHub's commit status
// vocabulary (pending, success, failure, error).
var githubStatusStates = map[models.JobStatus]string{
	models.JobStatusCreated:  "pending",
	models.JobStatusAssigned: "pending",
	models.JobStatusSuccess:  "success",
	models.JobStatusFailed:   "failure",
	models.JobStatusError:    "error",
}

// GitHubNotifier mirrors job and pipeline results onto the commit they were
// built from, as commit statuses. Each arch gets its own status context so a
// PR shows one check per job plus a roll-up.
type GitHubNotifier struct {
	owner  string
	repo   string
	client *github.Client
	log    logger.Log
}

func NewGitHubNotifier(owner string, repo string, client *github.Client, logFactory logger.LogFactory) *GitHubNotifier {
	return &GitHubNotifier{
		owner:  owner,
		repo:   repo,
		client: client,
		log:    logFactory("GitHubNotifier"),
	}
}

func (n *GitHubNotifier) JobFinished(ctx context.Context, pipeline *models.Pipeline, job *models.Job) error {
	description := string(job.Status)
	if job.Status == models.JobStatusFailed && job.FailedPackage != nil {
		description = fmt.Sprintf("failed at %s", *job.FailedPackage)
	}
	if job.Status == models.JobStatusError && job.ErrorMessage != nil {
		description = *job.ErrorMessage
	}
	return n.createStatus(ctx, pipeline.GitSha, &github.RepoStatus{
		State:       github.String(githubStatusStates[job.Status]),
		Context:     github.String(fmt.Sprintf("buildit/%s", job.Arch)),
		Description: github.String(truncateDescription(description)),
		TargetURL:   job.LogURL,
	})
}

var githubPipelineStates = map[models.PipelineStatus]string{
	models.PipelineStatusRunning: "pending",
	models.PipelineStatusSuccess: "success",
	models.PipelineStatusFailed:  "failure",
	models.PipelineStatusError:   "error",
}

func (n *GitHubNotifier) PipelineFinished(ctx context.Context, graph *dto.PipelineGraph) error {
	return n.createStatus(ctx, graph.GitSha, &github.RepoStatus{
		State:       github.String(githubPipelineStates[graph.Status]),
		Context:     github.String("buildit"),
		Description: github.String(truncateDescription(fmt.Sprintf("pipeline %s", graph.Status))),
	})
}

func (n *GitHubNotifier) createStatus(ctx context.Context, sha string, status *github.RepoStatus) error {
	_, _, err := n.client.Repositories.CreateStatus(ctx, n.owner, n.repo, sha, status)
	if err != nil {
		return fmt.Errorf("error setting commit status on %s: %w", shortSha(sha), err)
	}
	return nil
}

// GitHub rejects status descriptions over 140 characters.
func truncateDescription(description string) string {
	return util.TruncateStringToMaxLength(description, 140)
}
