package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/buildit-dev/buildit/common/logger"
)

type HTTPServerConfig struct {
	Address string
}

// APIServer is implemented by HTTPServer and HTTPAPITestServer
type APIServer interface {
	Start()
	Stop(ctx context.Context) error
	GetServerURL() string
	GetHTTPServer() *http.Server
}

type HTTPServerFactory = func(handler http.Handler, config HTTPServerConfig, log logger.Log) (APIServer, error)

func RealHTTPServerFactory() HTTPServerFactory {
	return func(handler http.Handler, config HTTPServerConfig, log logger.Log) (APIServer, error) {
		return NewHTTPServer(handler, config, log)
	}
}

// HTTPServer is an HTTP server that serves coordinator API requests.
type HTTPServer struct {
	httpServer *http.Server
	config     HTTPServerConfig
	log        logger.Log
}

func NewHTTPServer(handler http.Handler, config HTTPServerConfig, log logger.Log) (*HTTPServer, error) {
	return &HTTPServer{
		httpServer: &http.Server{
			Addr:    config.Address,
			Handler: handler,
		},
		config: config,
		log:    log,
	}, nil
}

// Start starts listening on the API server HTTP port.
// ListenAndServe is called on a goroutine so this function returns immediately.
func (s *HTTPServer) Start() {
	go func() {
		s.log.Infof("HTTP listening on %s", s.httpServer.Addr)
		err := s.httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			// If we can't start the HTTP server then log an error and terminate the process
			s.log.Fatalf("Error starting server: %s", err)
		}
	}()
}

// Stop shuts down the HTTP server gracefully, allowing existing requests to
// complete until the context expires. Stop should only be called once.
func (s *HTTPServer) Stop(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if err != nil {
		return fmt.Errorf("error shutting down HTTP server: %w", err)
	}
	return nil
}

func (s *HTTPServer) GetServerURL() string {
	return fmt.Sprintf("http://%s", s.httpServer.Addr)
}

func (s *HTTPServer) GetHTTPServer() *http.Server {
	return s.httpServer
}
