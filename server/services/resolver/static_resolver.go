package resolver

import (
	"context"
	"fmt"
	"sync"

	"github.com/buildit-dev/buildit/server/services"
)

// StaticResolver is an in-memory Resolver for tests and offline development.
// Branches, pull requests, users and org members are registered up front.
type StaticResolver struct {
	mu       sync.RWMutex
	branches map[string]string
	prs      map[int64][2]string // number -> (branch, sha)
	users    map[string]*services.ForgeUser
	members  map[string]bool
	tokens   map[string]*services.ForgeUser
}

func NewStaticResolver() *StaticResolver {
	return &StaticResolver{
		branches: make(map[string]string),
		prs:      make(map[int64][2]string),
		users:    make(map[string]*services.ForgeUser),
		members:  make(map[string]bool),
		tokens:   make(map[string]*services.ForgeUser),
	}
}

func (r *StaticResolver) AddBranch(branch, sha string) *StaticResolver {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.branches[branch] = sha
	return r
}

func (r *StaticResolver) AddPR(number int64, branch, sha string) *StaticResolver {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prs[number] = [2]string{branch, sha}
	return r
}

func (r *StaticResolver) AddUser(user *services.ForgeUser, orgMember bool) *StaticResolver {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.Login] = user
	r.members[user.Login] = orgMember
	return r
}

func (r *StaticResolver) AddToken(token string, user *services.ForgeUser) *StaticResolver {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[token] = user
	return r
}

func (r *StaticResolver) ResolveBranch(ctx context.Context, branch string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sha, ok := r.branches[branch]
	if !ok {
		return "", fmt.Errorf("error unknown branch %q", branch)
	}
	return sha, nil
}

func (r *StaticResolver) ResolvePR(ctx context.Context, number int64) (string, string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pr, ok := r.prs[number]
	if !ok {
		return "", "", fmt.Errorf("error unknown pull request #%d", number)
	}
	return pr[0], pr[1], nil
}

func (r *StaticResolver) LookupUser(ctx context.Context, login string) (*services.ForgeUser, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[login]
	if !ok {
		return nil, fmt.Errorf("error unknown user %q", login)
	}
	return user, nil
}

func (r *StaticResolver) IsOrgMember(ctx context.Context, login string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.members[login], nil
}

func (r *StaticResolver) AuthenticateToken(ctx context.Context, token string) (*services.ForgeUser, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.tokens[token]
	if !ok {
		return nil, fmt.Errorf("error unknown token")
	}
	return user, nil
}
