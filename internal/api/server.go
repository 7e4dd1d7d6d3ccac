// Package api exposes the deployment orchestrator over HTTP: streaming
// deployment endpoints (one SSE event per pipeline event), a synchronous
// variant returning only the final outcome, and run-history lookups.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/graphmart/graphmart/internal/audit"
	"github.com/graphmart/graphmart/internal/deploy"
)

// Deployer starts deployment runs. The returned channel is the live event
// stream; it closes after the final close event.
type Deployer interface {
	DeployBlueprints(ctx context.Context, req deploy.Request) <-chan deploy.Event
	DeployModels(ctx context.Context, req deploy.Request) <-chan deploy.Event
}

// RunLister reads past runs from the audit trail.
type RunLister interface {
	ListRuns(ctx context.Context, limit int) ([]audit.Record, error)
}

// Server is the HTTP API server.
type Server struct {
	deployer Deployer
	runs     RunLister
	host     string
	port     int
	logger   *slog.Logger
}

// Config holds configuration for the API server.
type Config struct {
	Deployer Deployer
	Runs     RunLister
	Host     string
	Port     int
	Logger   *slog.Logger
}

// NewServer creates a new API server instance.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{
		deployer: cfg.Deployer,
		runs:     cfg.Runs,
		host:     cfg.Host,
		port:     cfg.Port,
		logger:   logger,
	}
}

// Routes builds the server's router.
func (s *Server) Routes() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.Recoverer,
		middleware.RealIP,
	)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/runs", s.handleListRuns)

		r.Post("/deploy/blueprints", s.handleDeploySync(s.deployer.DeployBlueprints))
		r.Post("/deploy/blueprints/follow", s.handleDeployStream(s.deployer.DeployBlueprints))
		r.Post("/deploy/models", s.handleDeploySync(s.deployer.DeployModels))
		r.Post("/deploy/models/follow", s.handleDeployStream(s.deployer.DeployModels))
	})

	return r
}

// Serve starts the API server and blocks until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	s.logger.Info("starting API server", "addr", addr)

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:    addr,
		Handler: s.Routes(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down API server...")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}
