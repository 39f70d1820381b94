// Package server is the amyqd JSON API: record comparison and merges over
// HTTP, plus health and Prometheus endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.uber.org/zap"

	"github.com/lherron/amyq/internal/db"
	"github.com/lherron/amyq/internal/merge"
	"github.com/lherron/amyq/internal/store"
)

// Options configures a Server.
type Options struct {
	DB           *db.DB
	Engine       *merge.Engine
	Logger       *zap.Logger
	Token        string // shared bearer token; empty disables the check
	DefaultActor string // actor used when a request names none
	Version      string
}

// Server wires the HTTP routes to the merge engine.
type Server struct {
	echo         *echo.Echo
	db           *db.DB
	store        *store.Store
	engine       *merge.Engine
	logger       *zap.Logger
	token        string
	defaultActor string
	version      string
	started      time.Time
}

// New builds a server and registers its routes.
func New(opts Options) (*Server, error) {
	if opts.DB == nil || opts.Engine == nil {
		return nil, errors.New("server needs a database and a merge engine")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		echo:         echo.New(),
		db:           opts.DB,
		store:        store.New(opts.DB),
		engine:       opts.Engine,
		logger:       logger,
		token:        opts.Token,
		defaultActor: opts.DefaultActor,
		version:      opts.Version,
		started:      time.Now(),
	}

	e := s.echo
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.handleError
	e.Use(otelecho.Middleware("amyqd"))
	e.Use(requestMetrics())
	e.Use(requestLogger(logger))

	e.GET("/v1/health", s.handleHealth)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/v1", s.requireToken)
	api.POST("/compare", s.handleCompare)
	api.POST("/merge", s.handleMerge)
	api.GET("/log", s.handleLog)

	return s, nil
}

// ServeHTTP lets the server be used as an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Start listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	s.echo.Server.ReadTimeout = 30 * time.Second
	s.echo.Server.WriteTimeout = 60 * time.Second

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("amyqd listening", zap.String("addr", addr))
		errCh <- s.echo.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server stopped: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("amyqd shutting down")
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	return nil
}
