// Package server exposes the CDP pipeline over HTTP: event ingest, profile
// reads, SSE streams for segment transitions and profile updates, and the
// operational endpoints (/metrics, /healthz, /readyz).
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"

	"github.com/Sumatoshi-tech/streamcdp/internal/observability"
	"github.com/Sumatoshi-tech/streamcdp/internal/pipeline"
)

const (
	// DefaultReadTimeout bounds request header and body reads. SSE responses
	// stream indefinitely, so there is no write timeout.
	DefaultReadTimeout = 10 * time.Second

	// DefaultShutdownTimeout bounds graceful shutdown.
	DefaultShutdownTimeout = 10 * time.Second

	// maxBodyBytes caps an ingest request body.
	maxBodyBytes = 1 << 20
)

// Config holds the HTTP server settings.
type Config struct {
	Addr            string
	ReadTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// Server is the streamcdp HTTP front end.
type Server struct {
	cfg    Config
	pipe   *pipeline.Pipeline
	logger *slog.Logger
	tracer trace.Tracer
	red    *observability.REDMetrics

	router *mux.Router
}

// New builds a Server with its routes, metric instruments, and middleware
// wired. A nil tracer or logger falls back to no-op/default.
func New(cfg Config, pipe *pipeline.Pipeline, logger *slog.Logger, tracer trace.Tracer) (*Server, error) {
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}

	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}

	if logger == nil {
		logger = slog.Default()
	}

	if tracer == nil {
		tracer = nooptrace.NewTracerProvider().Tracer("streamcdp")
	}

	metricsHandler, meter, err := observability.PrometheusHandler()
	if err != nil {
		return nil, fmt.Errorf("create metrics handler: %w", err)
	}

	red, err := observability.NewREDMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("create request metrics: %w", err)
	}

	_, err = observability.NewPipelineMetrics(meter, pipe.StatsView())
	if err != nil {
		return nil, fmt.Errorf("register pipeline metrics: %w", err)
	}

	_, err = observability.NewRuntimeMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("register runtime metrics: %w", err)
	}

	srv := &Server{
		cfg:    cfg,
		pipe:   pipe,
		logger: logger,
		tracer: tracer,
		red:    red,
	}

	srv.router = srv.buildRouter(metricsHandler)

	return srv, nil
}

func (s *Server) buildRouter(metricsHandler http.Handler) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/v1/events", s.handleIngest).Methods(http.MethodPost)
	r.HandleFunc("/v1/profiles", s.handleProfiles).Methods(http.MethodGet)
	r.HandleFunc("/v1/profiles/{id}", s.handleProfile).Methods(http.MethodGet)
	r.HandleFunc("/v1/stats", s.handleStats).Methods(http.MethodGet)
	r.HandleFunc("/v1/stream/segments", s.handleSegmentStream).Methods(http.MethodGet)
	r.HandleFunc("/v1/stream/profiles", s.handleProfileStream).Methods(http.MethodGet)

	r.Handle("/metrics", metricsHandler).Methods(http.MethodGet)
	r.Handle("/healthz", observability.HealthHandler()).Methods(http.MethodGet)
	r.Handle("/readyz", observability.ReadyHandler(s.pipelineReady)).Methods(http.MethodGet)

	return r
}

// Handler returns the full middleware-wrapped handler chain.
func (s *Server) Handler() http.Handler {
	return observability.HTTPMiddleware(s.tracer, s.router)
}

// pipelineReady reports whether the pipeline is accepting events.
func (s *Server) pipelineReady(_ context.Context) error {
	if s.pipe == nil {
		return errors.New("pipeline not configured")
	}

	return nil
}

// Run serves HTTP until ctx is canceled, then shuts down gracefully. The
// pipeline's ticker and sweep goroutines run under the same context.
func (s *Server) Run(ctx context.Context) error {
	s.pipe.Start(ctx)
	defer s.pipe.Stop()

	var lc net.ListenConfig

	listener, err := lc.Listen(ctx, "tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Addr, err)
	}

	httpSrv := &http.Server{
		Handler:           s.Handler(),
		ReadTimeout:       s.cfg.ReadTimeout,
		ReadHeaderTimeout: s.cfg.ReadTimeout,
	}

	s.logger.InfoContext(ctx, "server listening", "addr", listener.Addr().String())

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		serveErr := httpSrv.Serve(listener)
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", serveErr)
		}

		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()

		shutdownErr := httpSrv.Shutdown(shutdownCtx)
		if shutdownErr != nil {
			return fmt.Errorf("shutdown: %w", shutdownErr)
		}

		return nil
	})

	err = group.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}
