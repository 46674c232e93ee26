package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/featureflow/internal/logging"
	"github.com/fyrsmithlabs/featureflow/internal/workflow"
)

const (
	toolWorkflowStart  = "workflow_start"
	toolWorkflowStep   = "workflow_step"
	toolWorkflowStatus = "workflow_status"
	toolWorkflowAbort  = "workflow_abort"
	toolReviewerList   = "reviewer_list"
)

// ===== WORKFLOW TOOLS =====

type workflowStartInput struct {
	Description string   `json:"description" jsonschema:"Feature description, one or two sentences"`
	ProjectPath string   `json:"project_path" jsonschema:"Absolute path of the project the feature is built in"`
	Reviewers   []string `json:"reviewers,omitempty" jsonschema:"Reviewer names. Omit for the configured defaults; an empty list disables review"`
}

type workflowStartOutput struct {
	WorkflowID  string         `json:"workflow_id"`
	Phase       string         `json:"phase"`
	Action      map[string]any `json:"action,omitempty"`
	Instruction string         `json:"instruction"`
}

type workflowStepInput struct {
	WorkflowID    string   `json:"workflow_id" jsonschema:"Workflow id returned by workflow_start"`
	Success       *bool    `json:"success,omitempty" jsonschema:"Whether the last shell command succeeded"`
	Output        string   `json:"output,omitempty" jsonschema:"Output of the last action (reviewer feedback, command output)"`
	FilesCreated  []string `json:"files_created,omitempty" jsonschema:"Files created while performing the last action"`
	FilesModified []string `json:"files_modified,omitempty" jsonschema:"Files modified while performing the last action"`
}

type workflowStepOutput struct {
	WorkflowID  string         `json:"workflow_id"`
	Phase       string         `json:"phase"`
	Action      map[string]any `json:"action,omitempty"`
	Complete    bool           `json:"complete"`
	Instruction string         `json:"instruction"`
}

type workflowStatusInput struct {
	WorkflowID string `json:"workflow_id,omitempty" jsonschema:"Workflow id. Omit to list active workflow ids"`
}

// workflowStatusOutput lists active ids when no id was given. For an id it
// carries the full persisted context, or no workflow when the id is unknown.
type workflowStatusOutput struct {
	Workflows []string       `json:"workflows,omitempty"`
	Workflow  map[string]any `json:"workflow,omitempty"`
}

type workflowAbortInput struct {
	WorkflowID string `json:"workflow_id" jsonschema:"Workflow id to abort"`
	Reason     string `json:"reason,omitempty" jsonschema:"Why the workflow is being aborted"`
}

// ===== REVIEWER TOOLS =====

type reviewerListInput struct{}

type reviewerStatus struct {
	Name                string `json:"name"`
	Backend             string `json:"backend"`
	Model               string `json:"model,omitempty"`
	Available           bool   `json:"available"`
	Reason              string `json:"reason,omitempty"`
	InstallInstructions string `json:"install_instructions,omitempty"`
}

type reviewerListOutput struct {
	Reviewers []reviewerStatus `json:"reviewers"`
}

// registerTools registers all MCP tools with the server.
func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name: toolWorkflowStart,
		Description: "Start a feature workflow (spec, review, TDD, lint, build, test, summary). " +
			"Perform the returned action, then report the outcome with workflow_step.",
	}, instrument(s, toolWorkflowStart, s.workflowStart))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        toolWorkflowStep,
		Description: "Report the outcome of the last action and get the next one",
	}, instrument(s, toolWorkflowStep, s.workflowStep))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        toolWorkflowStatus,
		Description: "Show a workflow's full persisted state (no workflow field when the id is unknown or archived), or list active workflow ids when no id is given",
	}, instrument(s, toolWorkflowStatus, s.workflowStatus))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        toolWorkflowAbort,
		Description: "Abort a workflow and archive it",
	}, instrument(s, toolWorkflowAbort, s.workflowAbort))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        toolReviewerList,
		Description: "List configured reviewers with live availability",
	}, instrument(s, toolReviewerList, s.reviewerList))
}

// instrument wraps a tool body with metrics and error logging.
func instrument[In, Out any](s *Server, name string, fn func(context.Context, In) (Out, error)) mcp.ToolHandlerFor[In, Out] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, args In) (*mcp.CallToolResult, Out, error) {
		start := time.Now()
		s.metrics.IncrementActive(ctx, name)
		out, err := fn(ctx, args)
		s.metrics.DecrementActive(ctx, name)
		s.metrics.RecordInvocation(ctx, name, time.Since(start), err)

		if err != nil {
			s.logger.Warn(ctx, "tool failed",
				zap.String("tool", name),
				zap.String("reason", categorizeError(err)),
				zap.Error(err),
			)
			var zero Out
			return nil, zero, toolError(err)
		}
		return nil, out, nil
	}
}

// toolError appends install hints to reviewer preflight failures.
func toolError(err error) error {
	var unavailable *workflow.UnavailableError
	if errors.As(err, &unavailable) {
		if hints := unavailable.Instructions(); hints != "" {
			return fmt.Errorf("%w\n%s", err, hints)
		}
	}
	return err
}

func (s *Server) workflowStart(ctx context.Context, args workflowStartInput) (workflowStartOutput, error) {
	resp, err := s.engine.Start(ctx, workflow.StartRequest{
		Description: args.Description,
		ProjectPath: args.ProjectPath,
		Reviewers:   args.Reviewers,
	})
	if err != nil {
		return workflowStartOutput{}, err
	}
	action, err := actionDocument(resp.Action)
	if err != nil {
		return workflowStartOutput{}, err
	}
	return workflowStartOutput{
		WorkflowID:  resp.WorkflowID,
		Phase:       string(resp.Phase),
		Action:      action,
		Instruction: resp.Instruction,
	}, nil
}

func (s *Server) workflowStep(ctx context.Context, args workflowStepInput) (workflowStepOutput, error) {
	ctx = logging.WithWorkflowID(ctx, args.WorkflowID)
	resp, err := s.engine.Step(ctx, args.WorkflowID, &workflow.StepResult{
		Success:       args.Success,
		Output:        args.Output,
		FilesCreated:  args.FilesCreated,
		FilesModified: args.FilesModified,
	})
	if err != nil {
		return workflowStepOutput{}, err
	}
	return stepOutput(resp)
}

func (s *Server) workflowStatus(ctx context.Context, args workflowStatusInput) (workflowStatusOutput, error) {
	if args.WorkflowID == "" {
		ids, err := s.engine.ListActive(ctx)
		if err != nil {
			return workflowStatusOutput{}, err
		}
		return workflowStatusOutput{Workflows: ids}, nil
	}

	wc, err := s.engine.Status(logging.WithWorkflowID(ctx, args.WorkflowID), args.WorkflowID)
	if err != nil {
		return workflowStatusOutput{}, err
	}
	if wc == nil {
		return workflowStatusOutput{}, nil
	}
	doc, err := jsonDocument(wc)
	if err != nil {
		return workflowStatusOutput{}, fmt.Errorf("encoding workflow %s: %w", wc.ID, err)
	}
	return workflowStatusOutput{Workflow: doc}, nil
}

func (s *Server) workflowAbort(ctx context.Context, args workflowAbortInput) (workflowStepOutput, error) {
	ctx = logging.WithWorkflowID(ctx, args.WorkflowID)
	resp, err := s.engine.Abort(ctx, args.WorkflowID, args.Reason)
	if err != nil {
		return workflowStepOutput{}, err
	}
	return stepOutput(resp)
}

func (s *Server) reviewerList(ctx context.Context, _ reviewerListInput) (reviewerListOutput, error) {
	statuses := s.reviewers.Check(ctx, s.reviewers.Names(), s.config.ReviewerTimeout)
	out := reviewerListOutput{Reviewers: make([]reviewerStatus, 0, len(statuses))}
	for _, st := range statuses {
		out.Reviewers = append(out.Reviewers, reviewerStatus{
			Name:                st.Name,
			Backend:             st.Backend,
			Model:               st.Model,
			Available:           st.Available,
			Reason:              st.Reason,
			InstallInstructions: st.InstallInstructions,
		})
	}
	return out, nil
}

func stepOutput(resp *workflow.StepResponse) (workflowStepOutput, error) {
	action, err := actionDocument(resp.Action)
	if err != nil {
		return workflowStepOutput{}, err
	}
	return workflowStepOutput{
		WorkflowID:  resp.WorkflowID,
		Phase:       string(resp.Phase),
		Action:      action,
		Complete:    resp.Complete,
		Instruction: resp.Instruction,
	}, nil
}

// actionDocument renders an action in its tagged JSON form. A nil action
// yields a nil document.
func actionDocument(a workflow.Action) (map[string]any, error) {
	if a == nil {
		return nil, nil
	}
	doc, err := jsonDocument(a)
	if err != nil {
		return nil, fmt.Errorf("encoding %s action: %w", a.Type(), err)
	}
	return doc, nil
}

// jsonDocument re-encodes v as a generic object so structured tool output
// keeps the same keys as the HTTP API.
func jsonDocument(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}
