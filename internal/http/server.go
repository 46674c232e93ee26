// Package http provides the featureflow HTTP API.
//
// Routes:
//
//	POST /api/v1/workflows              start a workflow
//	GET  /api/v1/workflows              list active workflow ids
//	GET  /api/v1/workflows/:id          workflow status
//	POST /api/v1/workflows/:id/step     report an outcome, get the next action
//	POST /api/v1/workflows/:id/abort    abort a workflow
//	GET  /api/v1/workflows/:id/events   server-sent phase events (needs NATS)
//	GET  /api/v1/reviewers              configured reviewers with availability
//	GET  /health
//	GET  /metrics                       prometheus exposition
//
// Response keys are snake_case: workflow_id, failed_step, suggested_files,
// and workflows for the active id list. Request bodies take snake_case keys
// and also accept projectPath, filesCreated and filesModified.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/featureflow/internal/logging"
	"github.com/fyrsmithlabs/featureflow/internal/reviewer"
	"github.com/fyrsmithlabs/featureflow/internal/workflow"
)

// Engine is the workflow surface the API exposes.
type Engine interface {
	Start(ctx context.Context, req workflow.StartRequest) (*workflow.StartResponse, error)
	Step(ctx context.Context, id string, result *workflow.StepResult) (*workflow.StepResponse, error)
	Status(ctx context.Context, id string) (*workflow.WorkflowContext, error)
	ListActive(ctx context.Context) ([]string, error)
	Abort(ctx context.Context, id, reason string) (*workflow.StepResponse, error)
}

// ReviewerChecker reports configured reviewers and their availability.
type ReviewerChecker interface {
	Names() []string
	Check(ctx context.Context, names []string, timeout time.Duration) []reviewer.Status
}

// Server provides HTTP endpoints for featureflow.
type Server struct {
	echo      *echo.Echo
	engine    Engine
	reviewers ReviewerChecker
	logger    *logging.Logger
	config    *Config
	metrics   *HTTPMetrics
	limiter   *clientLimiter
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
	// RateLimit is requests per second per client; zero or negative disables it.
	RateLimit float64
	// ReviewerTimeout bounds each availability probe on /api/v1/reviewers.
	ReviewerTimeout time.Duration
	// Gatherer backs /metrics. Defaults to the prometheus default registry.
	Gatherer prometheus.Gatherer
	// NATS enables /api/v1/workflows/:id/events when set.
	NATS          *nats.Conn
	SubjectPrefix string
	Version       string
}

// NewServer creates a new HTTP server.
func NewServer(engine Engine, reviewers ReviewerChecker, logger *logging.Logger, cfg *Config) (*Server, error) {
	if engine == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	if reviewers == nil {
		return nil, fmt.Errorf("reviewer registry cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host:      "127.0.0.1",
			Port:      9191,
			RateLimit: 20,
		}
	}
	if cfg.ReviewerTimeout <= 0 {
		cfg.ReviewerTimeout = 5 * time.Second
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler(logger)

	s := &Server{
		echo:      e,
		engine:    engine,
		reviewers: reviewers,
		logger:    logger,
		config:    cfg,
		metrics:   NewHTTPMetrics(logger),
	}
	if cfg.RateLimit > 0 {
		s.limiter = newClientLimiter(cfg.RateLimit, burstFor(cfg.RateLimit))
	}

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(s.requestContext)
	e.Use(s.metrics.MetricsMiddleware())
	e.Use(s.requestLogger)
	if s.limiter != nil {
		e.Use(s.limiter.Middleware(logger))
	}

	s.registerRoutes()

	return s, nil
}

// Echo exposes the underlying router, e.g. for tests or extra routes.
func (s *Server) Echo() *echo.Echo { return s.echo }

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.config.Gatherer, promhttp.HandlerOpts{})))

	v1 := s.echo.Group("/api/v1")
	v1.POST("/workflows", s.handleStart)
	v1.GET("/workflows", s.handleList)
	v1.GET("/workflows/:id", s.handleStatus)
	v1.POST("/workflows/:id/step", s.handleStep)
	v1.POST("/workflows/:id/abort", s.handleAbort)
	v1.GET("/workflows/:id/events", s.handleEvents)
	v1.GET("/reviewers", s.handleReviewers)
}

// requestContext carries the echo request id into the logging context.
func (s *Server) requestContext(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		rid := c.Response().Header().Get(echo.HeaderXRequestID)
		if logging.ValidID(rid) {
			ctx := logging.WithRequestID(c.Request().Context(), rid)
			c.SetRequest(c.Request().WithContext(ctx))
		}
		return next(c)
	}
}

// requestLogger commits handler errors before logging so the recorded status
// is the one sent.
func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}

		s.logger.Info(c.Request().Context(), "http request",
			zap.String("method", c.Request().Method),
			zap.String("route", c.Path()),
			zap.Int("status", c.Response().Status),
			zap.Duration("duration", time.Since(start)),
		)
		return nil
	}
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	resp := HealthResponse{Status: "ok", Version: s.config.Version}
	resp.Counts = countWorkflows(c.Request().Context(), s.engine)
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleStart(c echo.Context) error {
	var req workflow.StartRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn(c.Request().Context(), "invalid start request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	resp, err := s.engine.Start(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, resp)
}

func (s *Server) handleList(c echo.Context) error {
	ids, err := s.engine.ListActive(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ListResponse{Workflows: ids})
}

func (s *Server) handleStatus(c echo.Context) error {
	id := c.Param("id")
	wc, err := s.engine.Status(c.Request().Context(), id)
	if err != nil {
		return err
	}
	if wc == nil {
		return fmt.Errorf("%w: %s", workflow.ErrNotFound, id)
	}
	return c.JSON(http.StatusOK, wc)
}

func (s *Server) handleStep(c echo.Context) error {
	var result workflow.StepResult
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&result); err != nil {
			s.logger.Warn(c.Request().Context(), "invalid step request", zap.Error(err))
			return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
		}
	}

	resp, err := s.engine.Step(c.Request().Context(), c.Param("id"), &result)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleAbort(c echo.Context) error {
	var req AbortRequest
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
		}
	}

	resp, err := s.engine.Abort(c.Request().Context(), c.Param("id"), req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleReviewers(c echo.Context) error {
	statuses := s.reviewers.Check(c.Request().Context(), s.reviewers.Names(), s.config.ReviewerTimeout)
	return c.JSON(http.StatusOK, ReviewersResponse{Reviewers: statuses})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info(context.Background(), "starting http server", zap.String("addr", addr))
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	return s.echo.Shutdown(ctx)
}
