package app

import (
	"context"
	"fmt"

	"github.com/benbjohnson/clock"

	"github.com/buildit-dev/buildit/common/logger"
	"github.com/buildit-dev/buildit/server/api/rest/server"
	"github.com/buildit-dev/buildit/server/services"
	"github.com/buildit-dev/buildit/server/services/auth"
	"github.com/buildit-dev/buildit/server/services/notify"
	"github.com/buildit-dev/buildit/server/services/pipeline"
	"github.com/buildit-dev/buildit/server/services/queue"
	"github.com/buildit-dev/buildit/server/services/relay"
	"github.com/buildit-dev/buildit/server/services/resolver"
	"github.com/buildit-dev/buildit/server/services/worker"
	"github.com/buildit-dev/buildit/server/store"
	"github.com/buildit-dev/buildit/server/store/jobs"
	"github.com/buildit-dev/buildit/server/store/migrations"
	"github.com/buildit-dev/buildit/server/store/pipelines"
	"github.com/buildit-dev/buildit/server/store/users"
	"github.com/buildit-dev/buildit/server/store/workers"
)

type Server struct {
	PipelineService services.PipelineService
	QueueService    services.QueueService
	WorkerService   services.WorkerService
	RelayService    *relay.RelayService
	LivenessSweeper *queue.LivenessSweeper
	CoreAPIServer   *server.CoreAPIServer
}

// Start brings up the background sweeper and the API server.
func (s *Server) Start() {
	s.LivenessSweeper.Start()
	s.CoreAPIServer.Start()
}

// Stop shuts down the API server gracefully and stops the sweeper.
func (s *Server) Stop(ctx context.Context) error {
	err := s.CoreAPIServer.Stop(ctx)
	s.LivenessSweeper.Stop()
	return err
}

// MakeNotifier assembles the notifier fan-out from the notification config.
// With nothing configured the fan-out is empty and terminal statuses are
// only recorded in the database.
func MakeNotifier(config NotifyConfig, ghResolver *resolver.GitHubResolver, ghConfig resolver.GitHubResolverConfig, logFactory logger.LogFactory) services.Notifier {
	var notifiers []services.Notifier
	if config.WebhookURL != "" {
		notifiers = append(notifiers, notify.NewWebhookNotifier(config.WebhookURL, logFactory))
	}
	if config.CommitStatuses {
		notifiers = append(notifiers, notify.NewGitHubNotifier(ghConfig.Owner, ghConfig.Repo, ghResolver.Client(), logFactory))
	}
	return notify.NewMultiNotifier(notifiers...)
}

// New assembles a fully wired coordinator from the config. The returned
// cleanup function closes the database.
func New(ctx context.Context, config *ServerConfig) (*Server, func(), error) {
	logRegistry, err := logger.NewLogRegistry(config.LogLevels)
	if err != nil {
		return nil, nil, fmt.Errorf("error creating log registry: %w", err)
	}
	logFactory := logger.MakeLogrusLogFactoryStdOut(logRegistry)

	migrationRunner := migrations.NewBuildItGolangMigrateRunner(logFactory)
	db, cleanup, err := store.NewDatabase(ctx, config.DatabaseConfig, migrationRunner)
	if err != nil {
		return nil, nil, fmt.Errorf("error initializing database: %w", err)
	}

	pipelineStore := pipelines.NewStore(db, logFactory)
	jobStore := jobs.NewStore(db, logFactory)
	workerStore := workers.NewStore(db, logFactory)
	userStore := users.NewStore(db, logFactory)

	ghResolver, err := resolver.NewGitHubResolver(config.GitHubConfig, logFactory)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("error creating GitHub resolver: %w", err)
	}
	notifier := MakeNotifier(config.NotifyConfig, ghResolver, config.GitHubConfig, logFactory)

	pipelineService := pipeline.NewPipelineService(db, pipelineStore, jobStore, workerStore, userStore, ghResolver, logFactory)
	workerService := worker.NewWorkerService(db, workerStore, jobStore, logFactory)
	queueService := queue.NewQueueService(db, pipelineStore, jobStore, workerStore, workerService, notifier, logFactory)
	authService := auth.NewAuthService(config.AuthConfig, ghResolver, logFactory)
	relayService := relay.NewRelayService(config.RelayBufferSize, logFactory)
	sweeper := queue.NewLivenessSweeper(db, queueService, workerStore, clock.New(), logFactory)

	rootAPI := server.NewRootAPI(logFactory)
	pipelineAPI := server.NewPipelineAPI(pipelineService, logFactory)
	jobAPI := server.NewJobAPI(queueService, workerService, logFactory)
	workerAPI := server.NewWorkerAPI(workerService, queueService, pipelineService, logFactory)
	dashboardAPI := server.NewDashboardAPI(pipelineService, logFactory)
	relayAPI := server.NewRelayAPI(relayService, logFactory)
	tokenExchangeAPI := server.NewTokenExchangeAPI(authService, logFactory)

	router := server.NewCoreAPIRouter(rootAPI, pipelineAPI, jobAPI, workerAPI, dashboardAPI, relayAPI, tokenExchangeAPI, authService, logFactory)
	coreAPIServer, err := server.NewCoreAPIServer(router, config.CoreAPIConfig, server.RealHTTPServerFactory(), logFactory)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("error creating API server: %w", err)
	}

	return &Server{
		PipelineService: pipelineService,
		QueueService:    queueService,
		WorkerService:   workerService,
		RelayService:    relayService,
		LivenessSweeper: sweeper,
		CoreAPIServer:   coreAPIServer,
	}, cleanup, nil
}
