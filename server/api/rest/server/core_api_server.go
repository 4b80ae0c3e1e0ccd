package server

import (
	"fmt"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/buildit-dev/buildit/common/logger"
	bimiddleware "github.com/buildit-dev/buildit/server/api/rest/middleware"
	"github.com/buildit-dev/buildit/server/services"
)

type CoreAPIServerConfig struct {
	HTTPServerConfig
}

type CoreAPIServer struct {
	APIServer
}

func NewCoreAPIServer(router *CoreAPIRouter, config CoreAPIServerConfig, httpServerFactory HTTPServerFactory, logFactory logger.LogFactory) (*CoreAPIServer, error) {
	httpServer, err := httpServerFactory(router, config.HTTPServerConfig, logFactory("CoreAPIServer"))
	if err != nil {
		return nil, fmt.Errorf("error creating HTTP server: %w", err)
	}
	return &CoreAPIServer{
		APIServer: httpServer,
	}, nil
}

type CoreAPIRouter struct {
	chi.Router
}

func NewCoreAPIRouter(
	root *RootAPI,
	pipeline *PipelineAPI,
	job *JobAPI,
	worker *WorkerAPI,
	dashboard *DashboardAPI,
	relay *RelayAPI,
	tokenExchange *TokenExchangeAPI,
	authService services.AuthService,
	logFactory logger.LogFactory) *CoreAPIRouter {

	logger := logFactory("CoreAPIRouter")

	middleware.DefaultLogger = middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: logger, NoColor: true})
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)

	r.Route("/api", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			ExposedHeaders:   []string{"Link"},
			AllowCredentials: false,
			MaxAge:           300, // Maximum value not ignored by any of major browsers
		}))

		// WebSocket streams are long-lived and stay outside the request timeout
		r.Route("/ws", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(bimiddleware.MakeWorkerAuthenticator(logger, authService))
				r.Get("/producer/{hostname}", relay.Producer)
			})
			r.Get("/viewer/{hostname}", relay.Viewer)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Compress(6))
			r.Use(middleware.Timeout(30 * time.Second))

			// Public routes that can be accessed without auth
			r.Group(func(r chi.Router) {
				r.Post("/auth/exchange", tokenExchange.Exchange)
				r.Get("/pipeline/list", pipeline.List)
				r.Get("/pipeline/info", pipeline.Get)
				r.Get("/job/list", job.List)
				r.Get("/job/info", job.Get)
				r.Get("/worker/list", worker.List)
				r.Get("/worker/info", worker.Get)
				r.Get("/dashboard/status", dashboard.Status)
			})

			// Routes for the worker fleet
			r.Group(func(r chi.Router) {
				r.Use(bimiddleware.MakeWorkerAuthenticator(logger, authService))
				r.Post("/worker/heartbeat", worker.Heartbeat)
				r.Post("/worker/poll", worker.Poll)
				r.Post("/worker/complete", worker.Complete)
			})

			// Routes for pipeline submitters
			r.Group(func(r chi.Router) {
				r.Use(bimiddleware.MakeSubmitterAuthenticator(logger, authService))
				r.Post("/pipeline/new", pipeline.Create)
				r.Post("/job/restart", job.Restart)
			})
		})
	})

	r.Get("/", root.GetRootDocument)

	return &CoreAPIRouter{Router: r}
}
