package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/featureflow/internal/logging"
	"github.com/fyrsmithlabs/featureflow/internal/workflow"
)

// maxOutputSize caps --output-file input.
const maxOutputSize = 4 * 1024 * 1024

func newStartCmd(a *app) *cobra.Command {
	var (
		projectPath string
		reviewers   []string
		noReview    bool
	)

	cmd := &cobra.Command{
		Use:   "start <description>",
		Short: "Start a feature workflow",
		Long: `Start a feature workflow and print its first action.

Reviewers default to workflow.default_reviewers. Every selected reviewer must
be available before the workflow starts.

Examples:
  featureflow start "Add dark mode toggle"
  featureflow start --reviewers claude,gemini "Export reports as CSV"
  featureflow start --no-review --project ../api "Add health endpoint"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := a.workflowEngine()
			if err != nil {
				return err
			}

			if projectPath == "" {
				if projectPath, err = os.Getwd(); err != nil {
					return fmt.Errorf("resolve project path: %w", err)
				}
			}
			if projectPath, err = filepath.Abs(projectPath); err != nil {
				return fmt.Errorf("resolve project path: %w", err)
			}

			req := workflow.StartRequest{
				Description: joinArgs(args),
				ProjectPath: projectPath,
				Reviewers:   reviewers,
			}
			if noReview {
				req.Reviewers = []string{}
			}

			resp, err := engine.Start(a.withLogger(cmd.Context()), req)
			if err != nil {
				return startError(cmd.ErrOrStderr(), err)
			}
			return a.renderer(cmd).start(resp)
		},
	}

	cmd.Flags().StringVarP(&projectPath, "project", "p", "", "project directory (default current directory)")
	cmd.Flags().StringSliceVarP(&reviewers, "reviewers", "r", nil, "reviewers to consult (default workflow.default_reviewers)")
	cmd.Flags().BoolVar(&noReview, "no-review", false, "skip the review stage")
	cmd.MarkFlagsMutuallyExclusive("reviewers", "no-review")
	return cmd
}

// startError prints install hints for unavailable reviewers before returning err.
func startError(w io.Writer, err error) error {
	var unavailable *workflow.UnavailableError
	if errors.As(err, &unavailable) {
		if hints := unavailable.Instructions(); hints != "" {
			_, _ = fmt.Fprintln(w, hints)
		}
	}
	return err
}

func newStepCmd(a *app) *cobra.Command {
	var (
		success    bool
		failed     bool
		output     string
		outputFile string
		created    []string
		modified   []string
	)

	cmd := &cobra.Command{
		Use:   "step <workflow-id>",
		Short: "Report the outcome of the last action and get the next one",
		Long: `Report the outcome of the last action and print the next one.

Use --success or --failed after shell actions that expect a result, and pass
captured output with --output or --output-file ("-" reads stdin).

Examples:
  featureflow step add-dark-mode-toggle-1a2b3c4d
  go test ./... 2>&1 | featureflow step add-dark-mode-toggle-1a2b3c4d --failed --output-file -
  featureflow step add-dark-mode-toggle-1a2b3c4d --created internal/theme/toggle_test.go`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := a.workflowEngine()
			if err != nil {
				return err
			}

			result := &workflow.StepResult{
				Output:        output,
				FilesCreated:  created,
				FilesModified: modified,
			}
			switch {
			case success:
				result.Success = ptr(true)
			case failed:
				result.Success = ptr(false)
			}
			if outputFile != "" {
				data, err := readOutput(cmd.InOrStdin(), outputFile)
				if err != nil {
					return err
				}
				result.Output = data
			}

			ctx := logging.WithWorkflowID(a.withLogger(cmd.Context()), args[0])
			resp, err := engine.Step(ctx, args[0], result)
			if err != nil {
				return err
			}
			return a.renderer(cmd).step(resp)
		},
	}

	cmd.Flags().BoolVar(&success, "success", false, "the last command succeeded")
	cmd.Flags().BoolVar(&failed, "failed", false, "the last command failed")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output of the last action")
	cmd.Flags().StringVar(&outputFile, "output-file", "", `read the output from a file ("-" for stdin)`)
	cmd.Flags().StringSliceVar(&created, "created", nil, "files created by the last action")
	cmd.Flags().StringSliceVar(&modified, "modified", nil, "files modified by the last action")
	cmd.MarkFlagsMutuallyExclusive("success", "failed")
	cmd.MarkFlagsMutuallyExclusive("output", "output-file")
	return cmd
}

func readOutput(stdin io.Reader, path string) (string, error) {
	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return "", fmt.Errorf("open output file: %w", err)
		}
		defer f.Close()
		r = f
	}
	data, err := io.ReadAll(io.LimitReader(r, maxOutputSize+1))
	if err != nil {
		return "", fmt.Errorf("read output: %w", err)
	}
	if len(data) > maxOutputSize {
		return "", fmt.Errorf("output exceeds %d bytes", maxOutputSize)
	}
	return string(data), nil
}

func newStatusCmd(a *app) *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "status <workflow-id>",
		Short: "Show a workflow's persisted state",
		Long: `Show a workflow's persisted state.

With --watch the state is printed again each time another process advances
the workflow, until it is archived or the command is interrupted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			r := a.renderer(cmd)

			if watch {
				st, err := a.fileStore()
				if err != nil {
					return err
				}
				ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
				defer stop()

				seen := false
				err = st.Watch(ctx, id, func(wc *workflow.WorkflowContext) {
					if seen && !a.jsonOutput {
						r.println()
					}
					seen = true
					_ = r.status(wc)
				})
				if errors.Is(err, context.Canceled) {
					return nil
				}
				if err == nil && !seen {
					return fmt.Errorf("%w: %s", workflow.ErrNotFound, id)
				}
				return err
			}

			engine, err := a.workflowEngine()
			if err != nil {
				return err
			}
			wc, err := engine.Status(a.withLogger(cmd.Context()), id)
			if err != nil {
				return err
			}
			if wc == nil {
				return fmt.Errorf("%w: %s", workflow.ErrNotFound, id)
			}
			return r.status(wc)
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "follow the workflow until it is archived")
	return cmd
}

func newAbortCmd(a *app) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "abort <workflow-id>",
		Short: "Abort a workflow and archive it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := a.workflowEngine()
			if err != nil {
				return err
			}
			ctx := logging.WithWorkflowID(a.withLogger(cmd.Context()), args[0])
			resp, err := engine.Abort(ctx, args[0], reason)
			if err != nil {
				return err
			}
			return a.renderer(cmd).step(resp)
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "why the workflow is being aborted")
	return cmd
}

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List active workflow ids",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			engine, err := a.workflowEngine()
			if err != nil {
				return err
			}
			ids, err := engine.ListActive(a.withLogger(cmd.Context()))
			if err != nil {
				return err
			}
			if ids == nil {
				ids = []string{}
			}
			return a.renderer(cmd).workflows(ids)
		},
	}
}

func newHistoryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "history [workflow-id]",
		Short: "List archived workflows, or show one archived workflow",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.fileStore()
			if err != nil {
				return err
			}
			r := a.renderer(cmd)

			if len(args) == 1 {
				wc, err := st.LoadArchived(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return r.status(wc)
			}

			entries, err := st.ListArchived(cmd.Context())
			if err != nil {
				return err
			}
			return r.history(entries)
		},
	}
}

func joinArgs(args []string) string {
	out := args[0]
	for _, s := range args[1:] {
		out += " " + s
	}
	return out
}

func ptr[T any](v T) *T { return &v }
