package resolver

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/google/go-github/v28/github"
	"golang.org/x/oauth2"

	"github.com/buildit-dev/buildit/common/logger"
	"github.com/buildit-dev/buildit/server/services"
)

// GitHubResolverConfig selects how the resolver authenticates against GitHub.
// A personal access token is the common deployment; an app installation can
// be used instead by setting AppID, InstallationID and PrivateKeyPath.
type GitHubResolverConfig struct {
	// Owner and Repo locate the packaging tree.
	Owner string
	Repo  string
	// Org is the organization whose members may submit pipelines.
	Org string
	// Token is a personal access token.
	Token string
	// AppID, InstallationID and PrivateKeyPath authenticate as a GitHub App
	// installation instead of a token.
	AppID          int64
	InstallationID int64
	PrivateKeyPath string
}

// GitHubResolver resolves branches, pull requests and user identity against
// the packaging tree's GitHub repository.
type GitHubResolver struct {
	config GitHubResolverConfig
	client *github.Client
	logger.Log
}

func NewGitHubResolver(config GitHubResolverConfig, logFactory logger.LogFactory) (*GitHubResolver, error) {
	client, err := makeGitHubClient(config)
	if err != nil {
		return nil, err
	}
	return &GitHubResolver{
		config: config,
		client: client,
		Log:    logFactory("GitHubResolver"),
	}, nil
}

// Client exposes the underlying GitHub client so other services (e.g. commit
// status notifications) can share the resolver's authentication.
func (r *GitHubResolver) Client() *github.Client {
	return r.client
}

func makeGitHubClient(config GitHubResolverConfig) (*github.Client, error) {
	if config.AppID > 0 {
		privateKey, err := os.ReadFile(config.PrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("error reading GitHub app private key: %w", err)
		}
		transport, err := ghinstallation.New(http.DefaultTransport, config.AppID, config.InstallationID, privateKey)
		if err != nil {
			return nil, fmt.Errorf("error loading GitHub app auth: %w", err)
		}
		return github.NewClient(&http.Client{Transport: transport}), nil
	}
	if config.Token != "" {
		tokenSrc := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: config.Token})
		return github.NewClient(oauth2.NewClient(context.Background(), tokenSrc)), nil
	}
	// Unauthenticated clients work against public repos with tight rate limits
	return github.NewClient(nil), nil
}

// ResolveBranch resolves a branch name to the commit sha at its tip.
func (r *GitHubResolver) ResolveBranch(ctx context.Context, branch string) (string, error) {
	ghBranch, _, err := r.client.Repositories.GetBranch(ctx, r.config.Owner, r.config.Repo, branch)
	if err != nil {
		return "", fmt.Errorf("error resolving branch %q: %w", branch, err)
	}
	if ghBranch.Commit == nil || ghBranch.Commit.SHA == nil {
		return "", fmt.Errorf("error branch %q has no commit", branch)
	}
	return *ghBranch.Commit.SHA, nil
}

// ResolvePR resolves a pull request number to its head branch and sha.
func (r *GitHubResolver) ResolvePR(ctx context.Context, number int64) (string, string, error) {
	pr, _, err := r.client.PullRequests.Get(ctx, r.config.Owner, r.config.Repo, int(number))
	if err != nil {
		return "", "", fmt.Errorf("error resolving pull request #%d: %w", number, err)
	}
	if pr.Head == nil || pr.Head.Ref == nil || pr.Head.SHA == nil {
		return "", "", fmt.Errorf("error pull request #%d has no head", number)
	}
	return *pr.Head.Ref, *pr.Head.SHA, nil
}

// LookupUser returns the forge profile for a login.
func (r *GitHubResolver) LookupUser(ctx context.Context, login string) (*services.ForgeUser, error) {
	user, _, err := r.client.Users.Get(ctx, login)
	if err != nil {
		return nil, fmt.Errorf("error looking up user %q: %w", login, err)
	}
	return &services.ForgeUser{
		ID:        user.GetID(),
		Login:     user.GetLogin(),
		AvatarURL: user.GetAvatarURL(),
	}, nil
}

// AuthenticateToken identifies the forge user a personal access token
// belongs to. The token is used directly; the resolver's own credentials
// play no part.
func (r *GitHubResolver) AuthenticateToken(ctx context.Context, token string) (*services.ForgeUser, error) {
	tokenSrc := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	client := github.NewClient(oauth2.NewClient(ctx, tokenSrc))
	user, _, err := client.Users.Get(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("error authenticating forge token: %w", err)
	}
	return &services.ForgeUser{
		ID:        user.GetID(),
		Login:     user.GetLogin(),
		AvatarURL: user.GetAvatarURL(),
	}, nil
}

// IsOrgMember reports whether the login belongs to the packaging org.
func (r *GitHubResolver) IsOrgMember(ctx context.Context, login string) (bool, error) {
	if r.config.Org == "" {
		// No org configured means membership checks are disabled
		return true, nil
	}
	member, _, err := r.client.Organizations.IsMember(ctx, r.config.Org, login)
	if err != nil {
		return false, fmt.Errorf("error checking org membership for %q: %w", login, err)
	}
	return member, nil
}
