package models

import (
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

const (
	// PipelineSourceWeb is a pipeline submitted through the web UI.
	PipelineSourceWeb PipelineSource = "web"
	// PipelineSourceChat is a pipeline submitted by the chat bot surface.
	PipelineSourceChat PipelineSource = "chat"
	// PipelineSourceAPI is a pipeline submitted directly against the API, e.g. by the CLI.
	PipelineSourceAPI PipelineSource = "api"
)

type PipelineSource string

func (s PipelineSource) Valid() bool {
	return s == PipelineSourceWeb || s == PipelineSourceChat || s == PipelineSourceAPI
}

// Pipeline is a user-visible build request spanning one or more
// architectures. Pipelines are immutable after creation; their status is
// derived from their jobs on every read.
type Pipeline struct {
	ID        PipelineID `json:"id" goqu:"skipinsert,skipupdate" db:"pipeline_id"`
	CreatedAt Time       `json:"created_at" goqu:"skipupdate" db:"pipeline_created_at"`
	// Packages is the comma-joined package list in the order it was submitted.
	Packages string `json:"packages" db:"pipeline_packages"`
	// Archs is the comma-joined, sorted, deduplicated architecture list.
	Archs string `json:"archs" db:"pipeline_archs"`
	// GitBranch is the packaging tree branch the pipeline builds from.
	GitBranch string `json:"git_branch" db:"pipeline_git_branch"`
	// GitSha is the commit the branch or PR resolved to at submission time.
	GitSha string `json:"git_sha" db:"pipeline_git_sha"`
	// GitHubPR is the pull request number the pipeline was submitted for, if any.
	GitHubPR *int64 `json:"github_pr,omitempty" db:"pipeline_github_pr"`
	// Source records which surface submitted the pipeline.
	Source PipelineSource `json:"source" db:"pipeline_source"`
	// CreatorUserID links to the chat-surface user who submitted the pipeline, if known.
	CreatorUserID *UserID `json:"creator_user_id,omitempty" db:"pipeline_creator_user_id"`
	// CreatorLogin is the code-forge login of the submitter, if known.
	CreatorLogin *string `json:"creator_login,omitempty" db:"pipeline_creator_login"`
	// CreatorAvatarURL is the avatar of the submitter, if known.
	CreatorAvatarURL *string `json:"creator_avatar_url,omitempty" db:"pipeline_creator_avatar_url"`
}

// PipelineSearch filters and paginates a pipeline listing.
type PipelineSearch struct {
	Pagination
	// Branch restricts the listing to pipelines built from this branch.
	Branch *string
	// GitHubPROnly restricts the listing to pull-request pipelines.
	GitHubPROnly bool
}

// PackageList splits the comma-joined package list.
func (m *Pipeline) PackageList() []string {
	return splitCommaList(m.Packages)
}

// ArchList splits the comma-joined architecture list.
func (m *Pipeline) ArchList() []string {
	return splitCommaList(m.Archs)
}

func (m *Pipeline) Validate() error {
	var result *multierror.Error
	if m.CreatedAt.IsZero() {
		result = multierror.Append(result, errors.New("error created at must be set"))
	}
	if m.Packages == "" {
		result = multierror.Append(result, errors.New("error packages must be set"))
	}
	if m.Archs == "" {
		result = multierror.Append(result, errors.New("error archs must be set"))
	}
	if m.GitBranch == "" {
		result = multierror.Append(result, errors.New("error git branch must be set"))
	}
	if m.GitSha == "" {
		result = multierror.Append(result, errors.New("error git sha must be set"))
	}
	if !m.Source.Valid() {
		result = multierror.Append(result, errors.Errorf("error unknown pipeline source: %s", m.Source))
	}
	return result.ErrorOrNil()
}

// Package names and git branches end up on a worker's build command line, so
// they are restricted to ASCII letters, digits and ",-.+:/" before anything
// is stored.
func safeCommandLineString(s string) bool {
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == ',' || r == '-' || r == '.' || r == '+' || r == ':' || r == '/':
		default:
			return false
		}
	}
	return true
}

// ValidatePackageName rejects empty package names and names containing
// characters outside the safe command-line charset.
func ValidatePackageName(name string) error {
	if name == "" {
		return errors.New("error package name must not be empty")
	}
	if !safeCommandLineString(name) {
		return errors.Errorf("error invalid character in package name: %q", name)
	}
	return nil
}

// ValidateGitBranch applies the safe command-line charset to a branch name.
func ValidateGitBranch(branch string) error {
	if !safeCommandLineString(branch) {
		return errors.Errorf("error invalid character in branch name: %q", branch)
	}
	return nil
}

func splitCommaList(list string) []string {
	if list == "" {
		return nil
	}
	parts := strings.Split(list, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// JoinCommaList is the inverse of PackageList/ArchList.
func JoinCommaList(items []string) string {
	return strings.Join(items, ",")
}
