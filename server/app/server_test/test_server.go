package server_test

import (
	"net/http/httptest"

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
	"github.com/buildit-dev/buildit/server/store/pipelines"
	"github.com/buildit-dev/buildit/server/store/store_test"
	"github.com/buildit-dev/buildit/server/store/users"
	"github.com/buildit-dev/buildit/server/store/workers"
)

// Secrets the test server is configured with, for clients to present.
const (
	TestWorkerSecret   = "test-worker-secret"
	TestChatCredential = "test-chat-credential"
	TestJWTSecret      = "test-jwt-signing-secret"
)

// TestServer is a fully wired coordinator running against an in-memory
// database and an in-memory resolver, serving its REST API over httptest.
type TestServer struct {
	DB              *store.DB
	PipelineStore   store.PipelineStore
	JobStore        store.JobStore
	WorkerStore     store.WorkerStore
	UserStore       store.UserStore
	Resolver        *resolver.StaticResolver
	PipelineService services.PipelineService
	QueueService    services.QueueService
	WorkerService   services.WorkerService
	AuthService     services.AuthService
	RelayService    *relay.RelayService
	LivenessSweeper *queue.LivenessSweeper
	LogFactory      logger.LogFactory

	httpServer *httptest.Server
}

// URL returns the base URL of the test server's REST API.
func (s *TestServer) URL() string {
	return s.httpServer.URL
}

// New stands up a test coordinator. The returned cleanup function stops the
// HTTP server and closes the database.
func New(logFactory logger.LogFactory) (*TestServer, func(), error) {
	db, dbCleanup, err := store_test.Connect(logFactory)
	if err != nil {
		return nil, nil, err
	}

	pipelineStore := pipelines.NewStore(db, logFactory)
	jobStore := jobs.NewStore(db, logFactory)
	workerStore := workers.NewStore(db, logFactory)
	userStore := users.NewStore(db, logFactory)

	staticResolver := resolver.NewStaticResolver()
	notifier := notify.NewMultiNotifier()

	pipelineService := pipeline.NewPipelineService(db, pipelineStore, jobStore, workerStore, userStore, staticResolver, logFactory)
	workerService := worker.NewWorkerService(db, workerStore, jobStore, logFactory)
	queueService := queue.NewQueueService(db, pipelineStore, jobStore, workerStore, workerService, notifier, logFactory)
	authService := auth.NewAuthService(auth.AuthServiceConfig{
		WorkerSharedSecret: TestWorkerSecret,
		ChatCredential:     TestChatCredential,
		JWTSigningSecret:   []byte(TestJWTSecret),
	}, staticResolver, logFactory)
	relayService := relay.NewRelayService(0, logFactory)
	sweeper := queue.NewLivenessSweeper(db, queueService, workerStore, clock.NewMock(), logFactory)

	rootAPI := server.NewRootAPI(logFactory)
	pipelineAPI := server.NewPipelineAPI(pipelineService, logFactory)
	jobAPI := server.NewJobAPI(queueService, workerService, logFactory)
	workerAPI := server.NewWorkerAPI(workerService, queueService, pipelineService, logFactory)
	dashboardAPI := server.NewDashboardAPI(pipelineService, logFactory)
	relayAPI := server.NewRelayAPI(relayService, logFactory)
	tokenExchangeAPI := server.NewTokenExchangeAPI(authService, logFactory)
	router := server.NewCoreAPIRouter(rootAPI, pipelineAPI, jobAPI, workerAPI, dashboardAPI, relayAPI, tokenExchangeAPI, authService, logFactory)

	httpServer := httptest.NewServer(router)

	testServer := &TestServer{
		DB:              db,
		PipelineStore:   pipelineStore,
		JobStore:        jobStore,
		WorkerStore:     workerStore,
		UserStore:       userStore,
		Resolver:        staticResolver,
		PipelineService: pipelineService,
		QueueService:    queueService,
		WorkerService:   workerService,
		AuthService:     authService,
		RelayService:    relayService,
		LivenessSweeper: sweeper,
		LogFactory:      logFactory,
		httpServer:      httpServer,
	}
	cleanup := func() {
		httpServer.Close()
		dbCleanup()
	}
	return testServer, cleanup, nil
}
