// Package main implements the featureflow CLI.
//
// featureflow drives a feature through spec, review, TDD and verification
// one step at a time. Each command loads the workflow from the state
// directory, applies one operation and prints the next action.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/featureflow/internal/config"
	"github.com/fyrsmithlabs/featureflow/internal/events"
	"github.com/fyrsmithlabs/featureflow/internal/logging"
	"github.com/fyrsmithlabs/featureflow/internal/redact"
	"github.com/fyrsmithlabs/featureflow/internal/reviewer"
	"github.com/fyrsmithlabs/featureflow/internal/store"
	"github.com/fyrsmithlabs/featureflow/internal/workflow"
)

// version information, set by the linker.
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// app carries state shared by every command: flags, configuration and the
// lazily built engine.
type app struct {
	configPath string
	jsonOutput bool

	cfg    *config.Config
	logger *logging.Logger

	// promReg receives the workflow collectors; serve exposes it on /metrics.
	promReg   *prometheus.Registry
	store     *store.FileStore
	reviewers *reviewer.Registry
	nc        *nats.Conn
	engine    *workflow.Orchestrator
}

func newRootCmd() *cobra.Command {
	a := &app{promReg: prometheus.NewRegistry()}

	root := &cobra.Command{
		Use:   "featureflow",
		Short: "Drive features through spec, review, TDD and verification",
		Long: `featureflow is a step-wise workflow engine for feature development.

Start a workflow, perform the action it returns, then call step with the
outcome. Repeat until the workflow completes.

Examples:
  # Start a workflow in the current project
  featureflow start "Add dark mode toggle"

  # Report that the last command succeeded
  featureflow step add-dark-mode-toggle-1a2b3c4d --success

  # Follow a workflow from another terminal
  featureflow status add-dark-mode-toggle-1a2b3c4d --watch`,
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			a.close()
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default ~/.config/featureflow/config.yaml)")
	root.PersistentFlags().BoolVar(&a.jsonOutput, "json", false, "print machine-readable JSON")

	root.AddCommand(
		newStartCmd(a),
		newStepCmd(a),
		newStatusCmd(a),
		newAbortCmd(a),
		newListCmd(a),
		newHistoryCmd(a),
		newReviewersCmd(a),
		newServeCmd(a),
		newMCPCmd(a),
		newVersionCmd(a),
	)
	return root
}

// init loads configuration and the logger.
func (a *app) init() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	logCfg, err := logging.FromAppConfig(cfg.Logging)
	if err != nil {
		return fmt.Errorf("logging config: %w", err)
	}
	logger, err := logging.NewLogger(logCfg, nil)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	a.logger = logger
	return nil
}

// close releases whatever the command opened.
func (a *app) close() {
	if a.nc != nil {
		_ = a.nc.Drain()
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

// fileStore opens the workflow state directory.
func (a *app) fileStore() (*store.FileStore, error) {
	if a.store != nil {
		return a.store, nil
	}
	s, err := store.NewFileStore(a.cfg.Workflow.StateDir)
	if err != nil {
		return nil, err
	}
	a.store = s
	return s, nil
}

// registry builds the reviewer registry from configuration.
func (a *app) registry() (*reviewer.Registry, error) {
	if a.reviewers != nil {
		return a.reviewers, nil
	}
	r, err := reviewer.NewRegistry(a.cfg.Reviewers)
	if err != nil {
		return nil, fmt.Errorf("reviewers: %w", err)
	}
	a.reviewers = r
	return r, nil
}

// natsConn connects to NATS once; nil when events are not configured.
func (a *app) natsConn() (*nats.Conn, error) {
	if a.nc != nil || a.cfg.Events.NATSURL == "" {
		return a.nc, nil
	}
	nc, err := events.Connect(a.cfg.Events, a.logger)
	if err != nil {
		return nil, err
	}
	a.nc = nc
	return nc, nil
}

// workflowEngine wires the orchestrator over the file store.
func (a *app) workflowEngine() (*workflow.Orchestrator, error) {
	if a.engine != nil {
		return a.engine, nil
	}
	st, err := a.fileStore()
	if err != nil {
		return nil, err
	}
	reg, err := a.registry()
	if err != nil {
		return nil, err
	}

	var publisher workflow.Publisher = workflow.NopPublisher{}
	nc, err := a.natsConn()
	if err != nil {
		return nil, err
	}
	if nc != nil {
		if publisher, err = events.NewNATSPublisher(nc, a.cfg.Events.SubjectPrefix); err != nil {
			return nil, err
		}
	}

	opts := []workflow.Option{
		workflow.WithLogger(a.logger),
		workflow.WithMetrics(workflow.NewMetrics(a.promReg)),
		workflow.WithPublisher(publisher),
		workflow.WithSpecDir(a.cfg.Workflow.SpecDir),
		workflow.WithDefaultReviewers(a.cfg.Workflow.DefaultReviewers),
		workflow.WithCommands(a.cfg.Commands),
		workflow.WithAvailabilityTimeout(a.cfg.Workflow.AvailabilityTimeout.Duration()),
	}
	if !a.cfg.Redaction.Disabled {
		r, err := redact.New(redact.WithUserAllowlist(a.cfg.Redaction.Allowlist))
		if err != nil {
			return nil, err
		}
		opts = append(opts, workflow.WithRedactor(r))
	}

	engine, err := workflow.New(st, reg, opts...)
	if err != nil {
		return nil, err
	}
	a.engine = engine
	return engine, nil
}

// renderer returns the output renderer for cmd.
func (a *app) renderer(cmd *cobra.Command) *renderer {
	return newRenderer(cmd.OutOrStdout(), a.jsonOutput)
}

// withLogger puts the app logger into ctx for packages that log from context.
func (a *app) withLogger(ctx context.Context) context.Context {
	return logging.WithLogger(ctx, a.logger)
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the featureflow version",
		Args:  cobra.NoArgs,
		// no config needed
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), map[string]string{"version": version})
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "featureflow %s\n", version)
			return err
		},
	}
}
