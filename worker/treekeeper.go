package worker

import (
	"context"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	gitssh "github.com/go-git/go-git/v5/plumbing/transport/ssh"
	"github.com/pkg/errors"
	"golang.org/x/crypto/ssh"

	"github.com/buildit-dev/buildit/common/logger"
)

const (
	treeRemoteName    = "origin"
	treeFetchAttempts = 5
)

// TreePreparer puts the packaging tree at the exact commit a job must build
// from. The executor only depends on this interface.
type TreePreparer interface {
	Prepare(ctx context.Context, branch, sha string, buildLog *BuildLog) error
}

type TreeKeeperConfig struct {
	// TreePath is the checkout of the packaging tree inside the ciel workspace.
	TreePath string
	// RemoteURL is where branches are fetched from.
	RemoteURL string
	// SSHKeyFile optionally authenticates fetches from a private remote.
	SSHKeyFile string
}

// TreeKeeper owns the shared packaging tree checkout. The scheduler runs one
// job at a time, so the fetch/checkout/reset sequence never races itself.
type TreeKeeper struct {
	config TreeKeeperConfig
	log    logger.Log
}

func NewTreeKeeper(config TreeKeeperConfig, logFactory logger.LogFactory) *TreeKeeper {
	return &TreeKeeper{
		config: config,
		log:    logFactory("TreeKeeper"),
	}
}

// Prepare fetches branch from the remote and hard-resets the tree to sha.
// The sha was resolved by the coordinator at submission time, so a push that
// lands between submission and build does not change what gets built.
func (k *TreeKeeper) Prepare(ctx context.Context, branch, sha string, buildLog *BuildLog) error {
	repo, err := git.PlainOpen(k.config.TreePath)
	if err != nil {
		return errors.Wrapf(err, "error opening packaging tree at %q", k.config.TreePath)
	}
	buildLog.Linef("%s: Fetching %q from %s", time.Now().Format(time.RFC3339), branch, k.config.RemoteURL)
	err = k.fetchWithRetry(ctx, repo, branch, buildLog)
	if err != nil {
		return errors.Wrapf(err, "error fetching branch %q", branch)
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return errors.Wrap(err, "error opening worktree")
	}
	localRef := plumbing.NewBranchReferenceName(branch)
	_, err = repo.Reference(localRef, false)
	if err != nil {
		// First build on this branch; create the local branch at the fetched tip
		remoteRef, err := repo.Reference(plumbing.NewRemoteReferenceName(treeRemoteName, branch), true)
		if err != nil {
			return errors.Wrapf(err, "error resolving fetched branch %q", branch)
		}
		err = worktree.Checkout(&git.CheckoutOptions{
			Branch: localRef,
			Create: true,
			Hash:   remoteRef.Hash(),
			Force:  true,
		})
		if err != nil {
			return errors.Wrapf(err, "error creating branch %q", branch)
		}
	} else {
		err = worktree.Checkout(&git.CheckoutOptions{Branch: localRef, Force: true})
		if err != nil {
			return errors.Wrapf(err, "error checking out branch %q", branch)
		}
	}
	buildLog.Linef("%s: Resetting tree to %s", time.Now().Format(time.RFC3339), sha)
	err = worktree.Reset(&git.ResetOptions{
		Commit: plumbing.NewHash(sha),
		Mode:   git.HardReset,
	})
	if err != nil {
		return errors.Wrapf(err, "error resetting tree to %q", sha)
	}
	return nil
}

func (k *TreeKeeper) fetchWithRetry(ctx context.Context, repo *git.Repository, branch string, buildLog *BuildLog) error {
	auth, err := k.auth()
	if err != nil {
		return err
	}
	refSpec := config.RefSpec("+refs/heads/" + branch + ":refs/remotes/" + treeRemoteName + "/" + branch)
	var lastErr error
	for i := 0; i < treeFetchAttempts; i++ {
		if i > 0 {
			k.log.Infof("Attempt #%d to fetch branch %q", i, branch)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second << i):
			}
		}
		err := repo.FetchContext(ctx, &git.FetchOptions{
			RemoteURL: k.config.RemoteURL,
			RefSpecs:  []config.RefSpec{refSpec},
			Auth:      auth,
			Force:     true,
			Tags:      git.NoTags,
		})
		if err == nil || err == git.NoErrAlreadyUpToDate {
			return nil
		}
		buildLog.Linef("%s: Fetch attempt failed: %s", time.Now().Format(time.RFC3339), err)
		lastErr = err
	}
	return lastErr
}

func (k *TreeKeeper) auth() (transport.AuthMethod, error) {
	if k.config.SSHKeyFile == "" {
		return nil, nil
	}
	auth, err := gitssh.NewPublicKeysFromFile("git", k.config.SSHKeyFile, "")
	if err != nil {
		return nil, errors.Wrapf(err, "error reading ssh key %q", k.config.SSHKeyFile)
	}
	auth.HostKeyCallback = ssh.InsecureIgnoreHostKey()
	return auth, nil
}
