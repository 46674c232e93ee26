package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/fyrsmithlabs/featureflow/internal/logging"
	"github.com/fyrsmithlabs/featureflow/internal/reviewer"
	"github.com/fyrsmithlabs/featureflow/internal/workflow"
)

// Engine is the workflow surface the tools expose.
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

// Server is an MCP server backed by the workflow engine.
type Server struct {
	mcp       *mcp.Server
	engine    Engine
	reviewers ReviewerChecker
	logger    *logging.Logger
	metrics   *Metrics
	config    *Config
}

// Config configures the MCP server.
type Config struct {
	// Name is the server implementation name (default: "featureflow")
	Name string

	// Version is the server version (default: "dev")
	Version string

	// Logger for structured logging
	Logger *logging.Logger

	// ReviewerTimeout bounds each availability probe in reviewer_list.
	ReviewerTimeout time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Name:            "featureflow",
		Version:         "dev",
		Logger:          logging.NewNop(),
		ReviewerTimeout: 5 * time.Second,
	}
}

// NewServer creates a new MCP server with all tools registered.
func NewServer(cfg *Config, engine Engine, reviewers ReviewerChecker) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if engine == nil {
		return nil, fmt.Errorf("workflow engine is required")
	}
	if reviewers == nil {
		return nil, fmt.Errorf("reviewer registry is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNop()
	}
	if cfg.Name == "" {
		cfg.Name = "featureflow"
	}
	if cfg.ReviewerTimeout <= 0 {
		cfg.ReviewerTimeout = 5 * time.Second
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    cfg.Name,
			Version: cfg.Version,
		},
		nil,
	)

	s := &Server{
		mcp:       mcpServer,
		engine:    engine,
		reviewers: reviewers,
		logger:    cfg.Logger,
		metrics:   NewMetrics(cfg.Logger),
		config:    cfg,
	}
	s.registerTools()

	return s, nil
}

// Run starts the MCP server on the stdio transport.
func (s *Server) Run(ctx context.Context) error {
	return s.Serve(ctx, &mcp.StdioTransport{})
}

// Serve runs the server on t until the client disconnects or ctx is done.
func (s *Server) Serve(ctx context.Context, t mcp.Transport) error {
	s.logger.Info(ctx, "starting MCP server")
	if err := s.mcp.Run(ctx, t); err != nil {
		return fmt.Errorf("server run failed: %w", err)
	}
	return nil
}
