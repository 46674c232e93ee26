package workflow

import (
	"time"

	"github.com/fyrsmithlabs/featureflow/internal/project"
	"github.com/fyrsmithlabs/featureflow/internal/reviewer"
)

// ReviewResult is one reviewer's parsed feedback.
type ReviewResult = reviewer.Result

// CommandResult records the reported outcome of a lint, build or test command.
type CommandResult struct {
	Command    string    `json:"command"`
	Success    bool      `json:"success"`
	ExitCode   int       `json:"exit_code"`
	Output     string    `json:"output,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

func newCommandResult(command string, success bool, output string, now time.Time) *CommandResult {
	exit := 1
	if success {
		exit = 0
	}
	return &CommandResult{
		Command:    command,
		Success:    success,
		ExitCode:   exit,
		Output:     output,
		RecordedAt: now,
	}
}

// WorkflowContext is the persisted state of one workflow.
//
// PendingReviewers and CompletedReviewers partition ActiveReviewers.
// The review queue pops from the head of PendingReviewers.
type WorkflowContext struct {
	ID        string    `json:"id"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Description string           `json:"description"`
	ProjectPath string           `json:"project_path"`
	Commands    project.Commands `json:"commands"`
	Phase       Phase            `json:"phase"`

	ActiveReviewers    []string                `json:"active_reviewers"`
	PendingReviewers   []string                `json:"pending_reviewers"`
	CompletedReviewers []string                `json:"completed_reviewers"`
	Reviews            map[string]ReviewResult `json:"reviews"`

	SpecPath            string   `json:"spec_path"`
	SpecContent         string   `json:"spec_content,omitempty"`
	TestFiles           []string `json:"test_files"`
	ImplementationFiles []string `json:"implementation_files"`

	LintResult  *CommandResult `json:"lint_result,omitempty"`
	BuildResult *CommandResult `json:"build_result,omitempty"`
	TestResult  *CommandResult `json:"test_result,omitempty"`

	LastError   string `json:"last_error,omitempty"`
	FailedPhase Phase  `json:"failed_phase,omitempty"`
}

// headReviewer returns the next reviewer in the queue.
func (wc *WorkflowContext) headReviewer() (string, bool) {
	if len(wc.PendingReviewers) == 0 {
		return "", false
	}
	return wc.PendingReviewers[0], true
}

// popReviewer moves the queue head to CompletedReviewers.
func (wc *WorkflowContext) popReviewer() {
	if len(wc.PendingReviewers) == 0 {
		return
	}
	wc.CompletedReviewers = append(wc.CompletedReviewers, wc.PendingReviewers[0])
	wc.PendingReviewers = wc.PendingReviewers[1:]
}

// appendUnique appends items not already in list, keeping arrival order.
func appendUnique(list []string, items ...string) []string {
	seen := make(map[string]struct{}, len(list)+len(items))
	for _, s := range list {
		seen[s] = struct{}{}
	}
	for _, s := range items {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		list = append(list, s)
	}
	return list
}
