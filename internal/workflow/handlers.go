package workflow

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fyrsmithlabs/featureflow/internal/project"
	"github.com/fyrsmithlabs/featureflow/internal/reviewer"
)

type hop struct {
	from, to Phase
}

// step is the state of a single Step call: the loaded context, the driver's
// report and the phase changes made so far.
type step struct {
	o      *Orchestrator
	wc     *WorkflowContext
	result *StepResult
	hops   []hop
}

func (s *step) advance(to Phase) error {
	from := s.wc.Phase
	if err := advance(s.wc, to); err != nil {
		return err
	}
	s.hops = append(s.hops, hop{from: from, to: to})
	return nil
}

// dispatch handles the current phase. It must cover every non-terminal
// phase in the transition table.
func (s *step) dispatch() (Action, error) {
	switch s.wc.Phase {
	case PhaseInitialized:
		return s.initialized()
	case PhaseSpecCreated:
		return s.specCreated()
	case PhaseReviewsPending:
		return s.reviewsPending()
	case PhaseReviewsComplete:
		return s.reviewsComplete()
	case PhaseSpecRefined:
		return s.specRefined()
	case PhaseTestsPending:
		return s.testsPending()
	case PhaseTestsCreated:
		return s.testsCreated()
	case PhaseImplementationPending:
		return s.implementationPending()
	case PhaseImplementationComplete:
		return s.gateway(PhaseLintPending)
	case PhaseLintPassed:
		return s.gateway(PhaseBuildPending)
	case PhaseBuildPassed:
		return s.gateway(PhaseTestsRunPending)
	case PhaseLintPending, PhaseBuildPending, PhaseTestsRunPending:
		return s.verify()
	case PhaseTestsPassed:
		return s.testsPassed()
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnexpectedPhase, s.wc.Phase)
	}
}

func (s *step) initialized() (Action, error) {
	data, err := s.o.readSpec(s.wc.SpecPath)
	if err != nil {
		return nil, fmt.Errorf("%w: read spec %s: %w", ErrInvalidInput, s.wc.SpecPath, err)
	}
	s.wc.SpecContent = string(data)
	return nil, s.advance(PhaseSpecCreated)
}

func (s *step) specCreated() (Action, error) {
	head, ok := s.wc.headReviewer()
	if !ok {
		if err := s.advance(PhaseSpecRefined); err != nil {
			return nil, err
		}
		return &InfoAction{Instruction: instructionNoReviewers}, nil
	}
	if err := s.advance(PhaseReviewsPending); err != nil {
		return nil, err
	}
	return s.reviewAction(head)
}

func (s *step) reviewsPending() (Action, error) {
	head, ok := s.wc.headReviewer()
	if !ok {
		return nil, s.advance(PhaseReviewsComplete)
	}
	if strings.TrimSpace(s.result.Output) == "" {
		return s.reviewAction(head)
	}

	adapter, err := s.o.reviewers.Lookup(head)
	if err != nil {
		return nil, err
	}
	r := adapter.ParseReviewOutput(s.result.Output)
	s.stampReview(&r, head, adapter)
	if s.wc.Reviews == nil {
		s.wc.Reviews = map[string]ReviewResult{}
	}
	s.wc.Reviews[head] = r
	s.wc.popReviewer()

	next, ok := s.wc.headReviewer()
	if !ok {
		return nil, s.advance(PhaseReviewsComplete)
	}
	if err := s.advance(PhaseReviewsPending); err != nil {
		return nil, err
	}
	return s.reviewAction(next)
}

func (s *step) stampReview(r *ReviewResult, name string, a reviewer.Adapter) {
	if r.Reviewer == "" {
		r.Reviewer = name
	}
	if r.Backend == "" {
		r.Backend = a.Backend()
	}
	if r.Model == "" {
		r.Model = a.Model()
	}
	if r.Timestamp == "" {
		r.Timestamp = s.o.now().Format(time.RFC3339)
	}
	if r.Suggestions == nil {
		r.Suggestions = []string{}
	}
	if r.Concerns == nil {
		r.Concerns = []string{}
	}
}

func (s *step) reviewAction(name string) (Action, error) {
	adapter, err := s.o.reviewers.Lookup(name)
	if err != nil {
		return nil, err
	}
	req := reviewer.Request{
		WorkflowID:  s.wc.ID,
		Description: s.wc.Description,
		SpecPath:    s.wc.SpecPath,
		ProjectPath: s.wc.ProjectPath,
	}
	position := len(s.wc.CompletedReviewers) + 1
	return &ShellAction{
		Command:       adapter.ReviewCommand(s.wc.SpecContent, req),
		Instruction:   reviewInstruction(name, position, len(s.wc.ActiveReviewers)),
		CaptureOutput: true,
		ExpectSuccess: true,
	}, nil
}

func (s *step) reviewsComplete() (Action, error) {
	synthesis := Synthesize(s.wc)
	if err := s.advance(PhaseSpecRefined); err != nil {
		return nil, err
	}
	return &EditFileAction{
		Path:        s.wc.SpecPath,
		Instruction: refineInstruction(s.wc.SpecPath, synthesis),
	}, nil
}

func (s *step) specRefined() (Action, error) {
	if data, err := s.o.readSpec(s.wc.SpecPath); err == nil {
		s.wc.SpecContent = string(data)
	}
	if err := s.advance(PhaseTestsPending); err != nil {
		return nil, err
	}
	return &CreateFilesAction{
		Instruction:    writeTestsInstruction(s.wc.SpecPath),
		SuggestedFiles: project.SuggestedTestFiles(s.wc.Commands.Language, s.stem()),
	}, nil
}

func (s *step) testsPending() (Action, error) {
	s.wc.TestFiles = appendUnique(s.wc.TestFiles, s.reportedFiles()...)
	if err := s.advance(PhaseTestsCreated); err != nil {
		return nil, err
	}
	return &InfoAction{Instruction: instructionTestsCreated}, nil
}

func (s *step) testsCreated() (Action, error) {
	s.wc.TestFiles = appendUnique(s.wc.TestFiles, s.reportedFiles()...)
	if err := s.advance(PhaseImplementationPending); err != nil {
		return nil, err
	}
	return &CreateFilesAction{
		Instruction:    implementInstruction(s.wc.SpecPath),
		SuggestedFiles: project.SuggestedImplementationFiles(s.wc.Commands.Language, s.stem()),
	}, nil
}

func (s *step) implementationPending() (Action, error) {
	s.wc.ImplementationFiles = appendUnique(s.wc.ImplementationFiles, s.reportedFiles()...)
	if err := s.advance(PhaseImplementationComplete); err != nil {
		return nil, err
	}
	return s.commandAction(PhaseLintPending), nil
}

// gateway enters a verification phase. A reported outcome belongs to the
// command issued on entry to the gateway, so it is evaluated right away.
func (s *step) gateway(pending Phase) (Action, error) {
	if err := s.advance(pending); err != nil {
		return nil, err
	}
	if s.result.Success == nil {
		return s.commandAction(pending), nil
	}
	return s.verify()
}

// verify records the outcome of the current verification command.
func (s *step) verify() (Action, error) {
	v := verificationFor(s.wc.Phase)
	if s.result.Success == nil {
		return s.commandAction(s.wc.Phase), nil
	}

	success := *s.result.Success
	cr := newCommandResult(v.command(s.wc.Commands), success, s.result.Output, s.o.now())
	switch v.step {
	case StepLint:
		s.wc.LintResult = cr
	case StepBuild:
		s.wc.BuildResult = cr
	case StepTest:
		s.wc.TestResult = cr
	}

	if !success {
		s.wc.FailedPhase = s.wc.Phase
		s.wc.LastError = fmt.Sprintf("%s failed: %s", v.step, cr.Command)
		if out := strings.TrimSpace(s.result.Output); out != "" {
			s.wc.LastError += "\n" + out
		}
		if err := s.advance(PhaseFailed); err != nil {
			return nil, err
		}
		return failedAction(s.wc), nil
	}

	if err := s.advance(v.passed); err != nil {
		return nil, err
	}
	switch v.passed {
	case PhaseLintPassed:
		return s.commandAction(PhaseBuildPending), nil
	case PhaseBuildPassed:
		return s.commandAction(PhaseTestsRunPending), nil
	default:
		return &InfoAction{Instruction: instructionAllPassed}, nil
	}
}

func (s *step) testsPassed() (Action, error) {
	if err := s.advance(PhaseComplete); err != nil {
		return nil, err
	}
	return completeAction(s.wc), nil
}

// commandAction emits the shell command for a verification phase.
func (s *step) commandAction(pending Phase) Action {
	v := verificationFor(pending)
	return &ShellAction{
		Command:       v.command(s.wc.Commands),
		Instruction:   commandInstruction(v.step),
		CaptureOutput: true,
		ExpectSuccess: true,
	}
}

func (s *step) reportedFiles() []string {
	files := make([]string, 0, len(s.result.FilesCreated)+len(s.result.FilesModified))
	files = append(files, s.result.FilesCreated...)
	return append(files, s.result.FilesModified...)
}

// stem is the spec file name without its extension.
func (s *step) stem() string {
	base := filepath.Base(s.wc.SpecPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

type verification struct {
	step    FailedStep
	passed  Phase
	command func(project.Commands) string
}

func verificationFor(pending Phase) verification {
	switch pending {
	case PhaseLintPending:
		return verification{StepLint, PhaseLintPassed, func(c project.Commands) string { return c.Lint }}
	case PhaseBuildPending:
		return verification{StepBuild, PhaseBuildPassed, func(c project.Commands) string { return c.Build }}
	default:
		return verification{StepTest, PhaseTestsPassed, func(c project.Commands) string { return c.Test }}
	}
}
