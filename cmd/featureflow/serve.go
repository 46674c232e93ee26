package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	httpserver "github.com/fyrsmithlabs/featureflow/internal/http"
	"github.com/fyrsmithlabs/featureflow/internal/mcp"
	"github.com/fyrsmithlabs/featureflow/internal/telemetry"
)

const telemetryShutdownTimeout = 5 * time.Second

// startTelemetry installs the OTLP providers when telemetry is enabled.
// The returned func flushes and shuts them down.
func (a *app) startTelemetry(ctx context.Context) (func(), error) {
	tel, err := telemetry.New(ctx, telemetry.FromAppConfig(a.cfg.Telemetry, version))
	if err != nil {
		return nil, err
	}
	if tel.IsEnabled() {
		a.logger.Info(ctx, "telemetry enabled",
			zap.String("endpoint", a.cfg.Telemetry.Endpoint),
			zap.String("protocol", a.cfg.Telemetry.Protocol),
		)
	}
	return func() {
		sctx, cancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
		defer cancel()
		if err := tel.Shutdown(sctx); err != nil {
			a.logger.Warn(sctx, "telemetry shutdown failed", zap.Error(err))
		}
	}, nil
}

func newServeCmd(a *app) *cobra.Command {
	var (
		host string
		port int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the workflow API over HTTP",
		Long: `Serve the workflow API over HTTP.

Routes:
  GET    /health
  GET    /metrics
  POST   /api/v1/workflows
  GET    /api/v1/workflows
  GET    /api/v1/workflows/:id
  POST   /api/v1/workflows/:id/step
  POST   /api/v1/workflows/:id/abort
  GET    /api/v1/workflows/:id/events   (requires events.nats_url)
  GET    /api/v1/reviewers`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(a.withLogger(cmd.Context()), os.Interrupt, syscall.SIGTERM)
			defer stop()

			shutdownTelemetry, err := a.startTelemetry(ctx)
			if err != nil {
				return err
			}
			defer shutdownTelemetry()

			engine, err := a.workflowEngine()
			if err != nil {
				return err
			}
			nc, err := a.natsConn()
			if err != nil {
				return err
			}

			srvCfg := &httpserver.Config{
				Host:            a.cfg.Server.Host,
				Port:            a.cfg.Server.Port,
				RateLimit:       a.cfg.Server.RateLimit,
				ReviewerTimeout: a.cfg.Workflow.AvailabilityTimeout.Duration(),
				Gatherer:        a.promReg,
				NATS:            nc,
				SubjectPrefix:   a.cfg.Events.SubjectPrefix,
				Version:         version,
			}
			if cmd.Flags().Changed("host") {
				srvCfg.Host = host
			}
			if cmd.Flags().Changed("port") {
				srvCfg.Port = port
			}

			server, err := httpserver.NewServer(engine, a.reviewers, a.logger, srvCfg)
			if err != nil {
				return err
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(server.Start)
			g.Go(func() error {
				<-gctx.Done()
				sctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout.Duration())
				defer cancel()
				return server.Shutdown(sctx)
			})

			if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			a.logger.Info(ctx, "server stopped")
			return nil
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "listen address (default server.host)")
	cmd.Flags().IntVar(&port, "port", 0, "listen port (default server.port)")
	return cmd
}

func newMCPCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the workflow tools over MCP on stdio",
		Long: `Serve the workflow tools to an MCP client on stdin/stdout.

Logs go to logging.output, which must not be stdout in this mode.

Tools: workflow_start, workflow_step, workflow_status, workflow_abort, reviewer_list`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.cfg.Logging.Output == "stdout" {
				return errors.New("logging.output must not be stdout when serving MCP on stdio")
			}

			ctx, stop := signal.NotifyContext(a.withLogger(cmd.Context()), os.Interrupt, syscall.SIGTERM)
			defer stop()

			shutdownTelemetry, err := a.startTelemetry(ctx)
			if err != nil {
				return err
			}
			defer shutdownTelemetry()

			engine, err := a.workflowEngine()
			if err != nil {
				return err
			}

			server, err := mcp.NewServer(&mcp.Config{
				Name:            "featureflow",
				Version:         version,
				Logger:          a.logger,
				ReviewerTimeout: a.cfg.Workflow.AvailabilityTimeout.Duration(),
			}, engine, a.reviewers)
			if err != nil {
				return err
			}

			if err := server.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
}
