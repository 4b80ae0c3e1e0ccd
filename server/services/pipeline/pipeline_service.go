package pipeline

import (
	"context"
	"time"

	"github.com/buildit-dev/buildit/common/gerror"
	"github.com/buildit-dev/buildit/common/logger"
	"github.com/buildit-dev/buildit/common/models"
	"github.com/buildit-dev/buildit/server/dto"
	"github.com/buildit-dev/buildit/server/services"
	"github.com/buildit-dev/buildit/server/store"
)

type PipelineService struct {
	db            *store.DB
	pipelineStore store.PipelineStore
	jobStore      store.JobStore
	workerStore   store.WorkerStore
	userStore     store.UserStore
	resolver      services.Resolver
	mainlineArchs []string
	stableBranch  string
	logger.Log
}

// DefaultStableBranch is the packaging tree branch stable pipelines build from.
const DefaultStableBranch = "stable"

func NewPipelineService(
	db *store.DB,
	pipelineStore store.PipelineStore,
	jobStore store.JobStore,
	workerStore store.WorkerStore,
	userStore store.UserStore,
	resolver services.Resolver,
	logFactory logger.LogFactory,
) *PipelineService {
	return &PipelineService{
		db:            db,
		pipelineStore: pipelineStore,
		jobStore:      jobStore,
		workerStore:   workerStore,
		userStore:     userStore,
		resolver:      resolver,
		mainlineArchs: models.DefaultMainlineArchs,
		stableBranch:  DefaultStableBranch,
		Log:           logFactory("PipelineService"),
	}
}

// Create validates, resolves and stores a new pipeline together with one job
// per architecture. The architecture list is sanitised before anything is
// stored: duplicates collapse, the mainline pseudo-architecture expands, and
// noarch must stand alone.
func (s *PipelineService) Create(ctx context.Context, create *dto.CreatePipeline) (*dto.PipelineGraph, error) {
	if len(create.Packages) == 0 {
		return nil, gerror.NewErrValidationFailed("At least one package must be specified")
	}
	for _, pkg := range create.Packages {
		if err := models.ValidatePackageName(pkg); err != nil {
			return nil, gerror.NewErrValidationFailed(err.Error()).Wrap(err)
		}
	}
	if create.GitBranch != "" {
		if err := models.ValidateGitBranch(create.GitBranch); err != nil {
			return nil, gerror.NewErrValidationFailed(err.Error()).Wrap(err)
		}
	}
	if !create.Source.Valid() {
		return nil, gerror.NewErrValidationFailed("Unknown pipeline source")
	}

	requested := create.Archs
	if len(requested) == 0 {
		requested = []string{models.ArchMainline}
	}
	archs, err := models.SanitizeArchs(requested, s.mainlineArchs)
	if err != nil {
		return nil, gerror.NewErrValidationFailed(err.Error()).Wrap(err)
	}

	branch, sha, err := s.resolveRef(ctx, create)
	if err != nil {
		return nil, err
	}

	now := models.NewTime(time.Now())
	pipeline := &models.Pipeline{
		CreatedAt: now,
		Packages:  models.JoinCommaList(create.Packages),
		Archs:     models.JoinCommaList(archs),
		GitBranch: branch,
		GitSha:    sha,
		GitHubPR:  create.GitHubPR,
		Source:    create.Source,
	}
	err = s.attachSubmitter(ctx, pipeline, create)
	if err != nil {
		return nil, err
	}

	graph := &dto.PipelineGraph{Pipeline: pipeline}
	err = s.db.WithTx(ctx, nil, func(tx *store.Tx) error {
		_, err := s.pipelineStore.Create(ctx, tx, pipeline)
		if err != nil {
			return err
		}
		for _, arch := range archs {
			job := &models.Job{
				CreatedAt:       now,
				PipelineID:      pipeline.ID,
				Packages:        pipeline.Packages,
				Arch:            arch,
				Status:          models.JobStatusCreated,
				JobRequirements: create.JobRequirements,
			}
			_, err = s.jobStore.Create(ctx, tx, job)
			if err != nil {
				return err
			}
			graph.Jobs = append(graph.Jobs, job)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	graph.Status = graph.RollUpStatus()
	s.Infof("Created pipeline %s for %s@%s across %d arch(s)", pipeline.ID, branch, sha[:minInt(len(sha), 8)], len(archs))
	return graph, nil
}

// resolveRef turns the submitted branch or pull request into a concrete
// (branch, sha) pair via the code forge.
func (s *PipelineService) resolveRef(ctx context.Context, create *dto.CreatePipeline) (string, string, error) {
	if create.GitHubPR != nil {
		branch, sha, err := s.resolver.ResolvePR(ctx, *create.GitHubPR)
		if err != nil {
			return "", "", gerror.NewErrUpstream("Error resolving pull request", err)
		}
		return branch, sha, nil
	}
	if create.GitBranch == "" {
		return "", "", gerror.NewErrValidationFailed("A branch or pull request must be specified")
	}
	sha, err := s.resolver.ResolveBranch(ctx, create.GitBranch)
	if err != nil {
		return "", "", gerror.NewErrUpstream("Error resolving branch", err)
	}
	return create.GitBranch, sha, nil
}

// attachSubmitter links the pipeline to its submitter and decorates it with
// their forge profile. Chat submitters must have linked a forge account, and
// every submitter must belong to the packaging org.
func (s *PipelineService) attachSubmitter(ctx context.Context, pipeline *models.Pipeline, create *dto.CreatePipeline) error {
	if create.SubmitterLogin != nil {
		return s.attachForgeLogin(ctx, pipeline, *create.SubmitterLogin, nil)
	}
	if create.ChatUserID == nil {
		return nil
	}
	user, err := s.userStore.ReadByChatID(ctx, nil, *create.ChatUserID)
	if err != nil {
		if gerror.IsNotFound(err) {
			return gerror.NewErrUnauthorized("Submitter has not linked a forge account")
		}
		return err
	}
	if user.ForgeLogin == nil {
		return gerror.NewErrUnauthorized("Submitter has not linked a forge account")
	}
	return s.attachForgeLogin(ctx, pipeline, *user.ForgeLogin, &user.ID)
}

func (s *PipelineService) attachForgeLogin(ctx context.Context, pipeline *models.Pipeline, login string, userID *models.UserID) error {
	member, err := s.resolver.IsOrgMember(ctx, login)
	if err != nil {
		return gerror.NewErrUpstream("Error checking org membership", err)
	}
	if !member {
		return gerror.NewErrUnauthorized("Submitter is not a member of the packaging org")
	}
	pipeline.CreatorUserID = userID
	pipeline.CreatorLogin = &login
	profile, err := s.resolver.LookupUser(ctx, login)
	if err != nil {
		// The avatar is decoration; a forge hiccup should not block submission
		s.Warnf("Error looking up forge profile for %s: %s", login, err)
		return nil
	}
	pipeline.CreatorAvatarURL = &profile.AvatarURL
	return nil
}

// Read returns a pipeline with its jobs and derived status.
func (s *PipelineService) Read(ctx context.Context, id models.PipelineID) (*dto.PipelineGraph, error) {
	var graph *dto.PipelineGraph
	err := s.db.WithTx(ctx, nil, func(tx *store.Tx) error {
		pipeline, err := s.pipelineStore.Read(ctx, tx, id)
		if err != nil {
			return err
		}
		jobs, err := s.jobStore.ListByPipelineID(ctx, tx, id)
		if err != nil {
			return err
		}
		graph = &dto.PipelineGraph{Pipeline: pipeline, Jobs: jobs}
		graph.Status = graph.RollUpStatus()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return graph, nil
}

// List returns one page of pipelines matching the search, most recent
// first, each with its derived status, along with the total number of
// matching pipelines.
func (s *PipelineService) List(ctx context.Context, search dto.PipelineSearch) ([]*dto.PipelineGraph, int64, error) {
	if err := search.Pagination.Validate(); err != nil {
		return nil, 0, gerror.NewErrInvalidQueryParameter(err.Error()).Wrap(err)
	}
	storeSearch := models.PipelineSearch{
		Pagination:   search.Pagination,
		GitHubPROnly: search.GitHubPROnly,
	}
	if search.StableOnly {
		storeSearch.Branch = &s.stableBranch
	}
	var (
		graphs []*dto.PipelineGraph
		total  int64
	)
	err := s.db.WithTx(ctx, nil, func(tx *store.Tx) error {
		pipelines, err := s.pipelineStore.List(ctx, tx, storeSearch)
		if err != nil {
			return err
		}
		for _, pipeline := range pipelines {
			jobs, err := s.jobStore.ListByPipelineID(ctx, tx, pipeline.ID)
			if err != nil {
				return err
			}
			graph := &dto.PipelineGraph{Pipeline: pipeline, Jobs: jobs}
			graph.Status = graph.RollUpStatus()
			graphs = append(graphs, graph)
		}
		total, err = s.pipelineStore.Count(ctx, tx, storeSearch)
		return err
	})
	if err != nil {
		return nil, 0, err
	}
	return graphs, total, nil
}

// Dashboard aggregates queue and fleet state, deployment-wide and broken
// down by architecture. Jobs for the noarch and 32-bit optional environment
// pools fold into amd64, which builds them.
func (s *PipelineService) Dashboard(ctx context.Context) (*dto.Dashboard, error) {
	dashboard := &dto.Dashboard{ByArch: make(map[string]*dto.DashboardCounts)}
	archCounts := func(arch string) *dto.DashboardCounts {
		counts, ok := dashboard.ByArch[arch]
		if !ok {
			counts = &dto.DashboardCounts{}
			dashboard.ByArch[arch] = counts
		}
		return counts
	}
	err := s.db.WithTx(ctx, nil, func(tx *store.Tx) error {
		var err error
		dashboard.TotalPipelineCount, err = s.pipelineStore.Count(ctx, tx, models.PipelineSearch{})
		if err != nil {
			return err
		}
		jobCounts, err := s.jobStore.CountByArchStatus(ctx, tx)
		if err != nil {
			return err
		}
		for _, cell := range jobCounts {
			for _, counts := range []*dto.DashboardCounts{&dashboard.DashboardCounts, archCounts(models.DisplayArch(cell.Arch))} {
				counts.TotalJobCount += cell.Count
				switch {
				case cell.Status == models.JobStatusCreated:
					counts.PendingJobCount += cell.Count
				case cell.Status == models.JobStatusAssigned:
					counts.RunningJobCount += cell.Count
				case cell.Status.HasFinished():
					counts.FinishedJobCount += cell.Count
				}
			}
		}
		workers, err := s.workerStore.List(ctx, tx, models.NewPagination(1, models.AllItems))
		if err != nil {
			return err
		}
		now := time.Now()
		for _, worker := range workers {
			for _, counts := range []*dto.DashboardCounts{&dashboard.DashboardCounts, archCounts(models.DisplayArch(worker.Arch))} {
				counts.TotalWorkerCount++
				if worker.IsLive(now, DefaultWorkerLivenessTimeout) {
					counts.LiveWorkerCount++
				}
				counts.TotalLogicalCores += worker.LogicalCores
				counts.TotalMemoryBytes += worker.MemoryBytes
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dashboard, nil
}

// DefaultWorkerLivenessTimeout mirrors the sweeper's liveness window so the
// dashboard and the sweeper agree on which workers count as live.
const DefaultWorkerLivenessTimeout = 120 * time.Second

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
