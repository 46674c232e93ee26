package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/featureflow/internal/config"
	"github.com/fyrsmithlabs/featureflow/internal/logging"
	"github.com/fyrsmithlabs/featureflow/internal/project"
	"github.com/fyrsmithlabs/featureflow/internal/reviewer"
	"github.com/fyrsmithlabs/featureflow/internal/sanitize"
)

const (
	// idPrefixLength bounds the human-readable part of a workflow id.
	idPrefixLength = 40

	defaultAbortReason = "aborted by user"
	defaultSpecDir     = "docs/specs"

	instrumentationName = "github.com/fyrsmithlabs/featureflow/internal/workflow"
)

// ReviewerLookup resolves reviewer names to adapters.
type ReviewerLookup interface {
	Lookup(name string) (reviewer.Adapter, error)
}

// StartRequest creates a workflow. A nil Reviewers uses the configured
// defaults; an empty non-nil slice disables review.
type StartRequest struct {
	Description string   `json:"description"`
	ProjectPath string   `json:"project_path"`
	Reviewers   []string `json:"reviewers,omitempty"`
}

// StartResponse carries the new workflow id and its first action.
type StartResponse struct {
	WorkflowID  string `json:"workflow_id"`
	Phase       Phase  `json:"phase"`
	Action      Action `json:"action"`
	Instruction string `json:"instruction"`
}

// StepResult is what the driver reports after performing an action.
type StepResult struct {
	Success       *bool    `json:"success,omitempty"`
	Output        string   `json:"output,omitempty"`
	FilesCreated  []string `json:"files_created,omitempty"`
	FilesModified []string `json:"files_modified,omitempty"`
}

// StepResponse carries the phase reached and the next action, if any.
type StepResponse struct {
	WorkflowID  string `json:"workflow_id"`
	Phase       Phase  `json:"phase"`
	Action      Action `json:"action"`
	Complete    bool   `json:"complete"`
	Instruction string `json:"instruction"`
}

// UnmarshalJSON also accepts the camelCase key projectPath.
func (r *StartRequest) UnmarshalJSON(data []byte) error {
	type plain StartRequest
	var aux struct {
		plain
		ProjectPathCamel string `json:"projectPath"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*r = StartRequest(aux.plain)
	if r.ProjectPath == "" {
		r.ProjectPath = aux.ProjectPathCamel
	}
	return nil
}

// UnmarshalJSON also accepts the camelCase keys filesCreated and filesModified.
func (r *StepResult) UnmarshalJSON(data []byte) error {
	type plain StepResult
	var aux struct {
		plain
		FilesCreatedCamel  []string `json:"filesCreated"`
		FilesModifiedCamel []string `json:"filesModified"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*r = StepResult(aux.plain)
	if r.FilesCreated == nil {
		r.FilesCreated = aux.FilesCreatedCamel
	}
	if r.FilesModified == nil {
		r.FilesModified = aux.FilesModifiedCamel
	}
	return nil
}

// UnmarshalJSON decodes the tagged action.
func (r *StartResponse) UnmarshalJSON(data []byte) error {
	type plain StartResponse
	var aux struct {
		plain
		Action json.RawMessage `json:"action"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	a, err := DecodeAction(aux.Action)
	if err != nil {
		return err
	}
	*r = StartResponse(aux.plain)
	r.Action = a
	return nil
}

// UnmarshalJSON decodes the tagged action.
func (r *StepResponse) UnmarshalJSON(data []byte) error {
	type plain StepResponse
	var aux struct {
		plain
		Action json.RawMessage `json:"action"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	a, err := DecodeAction(aux.Action)
	if err != nil {
		return err
	}
	*r = StepResponse(aux.plain)
	r.Action = a
	return nil
}

// Orchestrator drives workflows one call at a time. It keeps no workflow
// state in memory: every call loads from and saves to the Store.
type Orchestrator struct {
	store     Store
	reviewers ReviewerLookup
	publisher Publisher
	logger    *logging.Logger
	metrics   *Metrics
	tracer    trace.Tracer
	redactor  Redactor

	readSpec func(path string) ([]byte, error)
	now      func() time.Time
	newID    func(description string) string

	specDir             string
	defaultReviewers    []string
	commands            config.CommandsConfig
	availabilityTimeout time.Duration
}

// Redactor removes secrets from driver-reported output before it is
// persisted. projectPath locates per-project allowlists.
type Redactor interface {
	Redact(projectPath, content string) (string, error)
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithPublisher sets the event publisher. The default discards events.
func WithPublisher(p Publisher) Option {
	return func(o *Orchestrator) { o.publisher = p }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithMetrics sets the Prometheus collectors.
func WithMetrics(m *Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithTracer sets the tracer. The default uses the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) { o.tracer = t }
}

// WithRedactor redacts StepResult.Output before it reaches the workflow
// document. The default stores output as reported.
func WithRedactor(r Redactor) Option {
	return func(o *Orchestrator) { o.redactor = r }
}

// WithSpecReader replaces os.ReadFile for reading spec files.
func WithSpecReader(fn func(path string) ([]byte, error)) Option {
	return func(o *Orchestrator) { o.readSpec = fn }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithIDGenerator replaces the id generator.
func WithIDGenerator(fn func(description string) string) Option {
	return func(o *Orchestrator) { o.newID = fn }
}

// WithSpecDir sets the project-relative directory for spec files.
func WithSpecDir(dir string) Option {
	return func(o *Orchestrator) { o.specDir = dir }
}

// WithDefaultReviewers sets the reviewers used when a start request names none.
func WithDefaultReviewers(names []string) Option {
	return func(o *Orchestrator) { o.defaultReviewers = append([]string(nil), names...) }
}

// WithCommands sets global lint/build/test overrides.
func WithCommands(c config.CommandsConfig) Option {
	return func(o *Orchestrator) { o.commands = c }
}

// WithAvailabilityTimeout bounds each reviewer availability check.
func WithAvailabilityTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.availabilityTimeout = d }
}

// New creates an Orchestrator.
func New(store Store, reviewers ReviewerLookup, opts ...Option) (*Orchestrator, error) {
	if store == nil {
		return nil, errors.New("workflow store is required")
	}
	if reviewers == nil {
		return nil, errors.New("reviewer lookup is required")
	}
	o := &Orchestrator{
		store:     store,
		reviewers: reviewers,
		publisher: NopPublisher{},
		logger:    logging.NewNop(),
		tracer:    otel.Tracer(instrumentationName),
		readSpec:  os.ReadFile,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     NewID,
		specDir:   defaultSpecDir,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// NewID derives a workflow id from a description: a slug prefix plus
// eight random hex characters.
func NewID(description string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return sanitize.Prefix(description, idPrefixLength) + "-" + suffix
}

// Start validates the request, checks reviewer availability and persists a
// new workflow. Nothing is persisted when any check fails.
func (o *Orchestrator) Start(ctx context.Context, req StartRequest) (resp *StartResponse, err error) {
	ctx, span := o.tracer.Start(ctx, "workflow.start")
	defer func() {
		if resp != nil {
			span.SetAttributes(attribute.String("workflow.id", resp.WorkflowID))
		}
		endSpan(span, err)
	}()

	description := strings.TrimSpace(req.Description)
	if description == "" {
		return nil, fmt.Errorf("%w: description is required", ErrInvalidInput)
	}
	projectPath, err := sanitize.ValidateProjectPath(req.ProjectPath)
	if err != nil {
		return nil, fmt.Errorf("%w: project path: %w", ErrInvalidInput, err)
	}

	names := req.Reviewers
	if names == nil {
		names = o.defaultReviewers
	}
	adapters, err := o.resolveReviewers(names)
	if err != nil {
		return nil, err
	}
	if err := o.preflight(ctx, adapters); err != nil {
		return nil, err
	}

	commands, err := project.Detect(projectPath, o.commands)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	slug := sanitize.Slug(description)
	specPath, err := sanitize.ValidatePath(filepath.Join(projectPath, o.specDir, slug+".md"), projectPath)
	if err != nil {
		return nil, fmt.Errorf("%w: spec path: %w", ErrInvalidInput, err)
	}

	now := o.now()
	active := make([]string, 0, len(adapters))
	for _, a := range adapters {
		active = append(active, a.Name())
	}
	wc := &WorkflowContext{
		ID:                  o.newID(description),
		CreatedAt:           now,
		UpdatedAt:           now,
		Description:         description,
		ProjectPath:         projectPath,
		Commands:            commands,
		Phase:               PhaseInitialized,
		ActiveReviewers:     active,
		PendingReviewers:    append([]string{}, active...),
		CompletedReviewers:  []string{},
		Reviews:             map[string]ReviewResult{},
		SpecPath:            specPath,
		TestFiles:           []string{},
		ImplementationFiles: []string{},
	}
	if err := sanitize.ValidateWorkflowID(wc.ID); err != nil {
		return nil, fmt.Errorf("generated id: %w", err)
	}

	ctx = logging.WithWorkflowID(ctx, wc.ID)
	if err := o.store.Save(ctx, wc); err != nil {
		return nil, fmt.Errorf("save workflow: %w", err)
	}

	o.metrics.recordStarted()
	o.publish(ctx, Event{WorkflowID: wc.ID, Kind: EventStarted, To: wc.Phase, Action: ActionCreateFile, At: now})
	o.logger.Info(ctx, "workflow started",
		zap.String("project", projectPath),
		zap.String("language", string(commands.Language)),
		zap.Strings("reviewers", active),
	)

	action := &CreateFileAction{
		Path:        specPath,
		Content:     specTemplate(description),
		Instruction: startInstruction(specPath),
	}
	return &StartResponse{
		WorkflowID:  wc.ID,
		Phase:       wc.Phase,
		Action:      action,
		Instruction: action.Instruction,
	}, nil
}

func (o *Orchestrator) resolveReviewers(names []string) ([]reviewer.Adapter, error) {
	seen := make(map[string]struct{}, len(names))
	adapters := make([]reviewer.Adapter, 0, len(names))
	for _, name := range names {
		if err := sanitize.ValidateReviewerName(name); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("%w: reviewer %q listed twice", ErrInvalidInput, name)
		}
		seen[name] = struct{}{}

		a, err := o.reviewers.Lookup(name)
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, a)
	}
	return adapters, nil
}

// preflight checks every adapter concurrently and reports all failures at once.
func (o *Orchestrator) preflight(ctx context.Context, adapters []reviewer.Adapter) error {
	results := make([]reviewer.Availability, len(adapters))
	g, gctx := errgroup.WithContext(ctx)
	for i, a := range adapters {
		g.Go(func() error {
			cctx := gctx
			if o.availabilityTimeout > 0 {
				var cancel context.CancelFunc
				cctx, cancel = context.WithTimeout(gctx, o.availabilityTimeout)
				defer cancel()
			}
			results[i] = a.CheckAvailability(cctx)
			return nil
		})
	}
	_ = g.Wait()

	var unavailable []UnavailableReviewer
	for i, res := range results {
		if res.Available {
			continue
		}
		name := adapters[i].Name()
		o.metrics.recordUnavailable(name)
		unavailable = append(unavailable, UnavailableReviewer{
			Name:                name,
			Reason:              sanitize.Reason(res.Reason),
			InstallInstructions: res.InstallInstructions,
		})
	}
	if len(unavailable) > 0 {
		o.logger.Warn(ctx, "reviewer preflight failed", zap.Int("unavailable", len(unavailable)))
		return &UnavailableError{Reviewers: unavailable}
	}
	return nil
}

// Step applies one driver report to a workflow and returns the next action.
func (o *Orchestrator) Step(ctx context.Context, id string, result *StepResult) (resp *StepResponse, err error) {
	ctx, span := o.tracer.Start(ctx, "workflow.step", trace.WithAttributes(attribute.String("workflow.id", id)))
	defer func() {
		if resp != nil {
			span.SetAttributes(attribute.String("workflow.phase", string(resp.Phase)))
		}
		endSpan(span, err)
	}()

	if err := sanitize.ValidateWorkflowID(id); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if result == nil {
		result = &StepResult{}
	}
	ctx = logging.WithWorkflowID(ctx, id)

	wc, err := o.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}

	switch wc.Phase {
	case PhaseFailed:
		return o.respond(wc, failedAction(wc)), nil
	case PhaseComplete, PhaseAborted:
		o.archive(ctx, wc)
		return o.respond(wc, finalAction(wc)), nil
	}

	if result, err = o.redact(wc, result); err != nil {
		return nil, err
	}

	s := &step{o: o, wc: wc, result: result}
	action, err := s.dispatch()
	if err != nil {
		return nil, err
	}

	wc.UpdatedAt = o.now()
	if err := o.store.Save(ctx, wc); err != nil {
		return nil, fmt.Errorf("save workflow: %w", err)
	}

	for i, h := range s.hops {
		ev := Event{WorkflowID: wc.ID, Kind: EventTransitioned, From: h.from, To: h.to, At: wc.UpdatedAt}
		if i == len(s.hops)-1 && action != nil {
			ev.Action = action.Type()
		}
		o.metrics.recordTransition(h.from, h.to)
		o.publish(ctx, ev)
		o.logger.Info(ctx, "workflow transitioned", zap.String("from", string(h.from)), zap.String("to", string(h.to)))
	}

	if wc.Phase == PhaseComplete {
		o.archive(ctx, wc)
	}
	return o.respond(wc, action), nil
}

// redact returns result with its output redacted. The caller's value is
// not modified.
func (o *Orchestrator) redact(wc *WorkflowContext, result *StepResult) (*StepResult, error) {
	if o.redactor == nil || result.Output == "" {
		return result, nil
	}
	out, err := o.redactor.Redact(wc.ProjectPath, result.Output)
	if err != nil {
		return nil, fmt.Errorf("redact output: %w", err)
	}
	redacted := *result
	redacted.Output = out
	return &redacted, nil
}

// Status returns the active workflow with id, or nil when there is none.
func (o *Orchestrator) Status(ctx context.Context, id string) (*WorkflowContext, error) {
	if err := sanitize.ValidateWorkflowID(id); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	wc, err := o.store.Load(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return wc, nil
}

// ListActive returns the sorted ids of active workflows.
func (o *Orchestrator) ListActive(ctx context.Context) ([]string, error) {
	return o.store.List(ctx)
}

// Abort forces a workflow into the aborted phase and archives it. It
// bypasses the transition table: any active workflow can be aborted.
func (o *Orchestrator) Abort(ctx context.Context, id, reason string) (resp *StepResponse, err error) {
	ctx, span := o.tracer.Start(ctx, "workflow.abort", trace.WithAttributes(attribute.String("workflow.id", id)))
	defer func() { endSpan(span, err) }()

	if err := sanitize.ValidateWorkflowID(id); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	ctx = logging.WithWorkflowID(ctx, id)

	wc, err := o.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}

	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = defaultAbortReason
	}
	from := wc.Phase
	wc.Phase = PhaseAborted
	wc.LastError = reason
	wc.UpdatedAt = o.now()
	if err := o.store.Save(ctx, wc); err != nil {
		return nil, fmt.Errorf("save workflow: %w", err)
	}

	o.metrics.recordTransition(from, PhaseAborted)
	o.publish(ctx, Event{WorkflowID: wc.ID, Kind: EventAborted, From: from, To: PhaseAborted, Action: ActionInfo, At: wc.UpdatedAt})
	o.logger.Info(ctx, "workflow aborted", zap.String("from", string(from)), zap.String("reason", reason))

	o.archive(ctx, wc)
	return o.respond(wc, finalAction(wc)), nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// archive moves a finished workflow out of the active set. Failures are
// logged; the next Step on the id retries.
func (o *Orchestrator) archive(ctx context.Context, wc *WorkflowContext) {
	if err := o.store.Archive(ctx, wc.ID); err != nil {
		o.logger.Warn(ctx, "archive workflow failed", zap.Error(err))
		return
	}
	o.publish(ctx, Event{WorkflowID: wc.ID, Kind: EventArchived, To: wc.Phase, At: o.now()})
}

func (o *Orchestrator) publish(ctx context.Context, ev Event) {
	if err := o.publisher.Publish(ctx, ev); err != nil {
		o.logger.Warn(ctx, "publish workflow event failed", zap.String("kind", string(ev.Kind)), zap.Error(err))
	}
}

func (o *Orchestrator) respond(wc *WorkflowContext, action Action) *StepResponse {
	resp := &StepResponse{
		WorkflowID:  wc.ID,
		Phase:       wc.Phase,
		Action:      action,
		Complete:    wc.Phase == PhaseComplete,
		Instruction: instructionContinue,
	}
	if action != nil {
		resp.Instruction = action.InstructionText()
	}
	return resp
}

// finalAction rebuilds the response action for a complete or aborted workflow.
func finalAction(wc *WorkflowContext) Action {
	if wc.Phase == PhaseComplete {
		return completeAction(wc)
	}
	return &InfoAction{Instruction: abortedInstruction(wc.LastError)}
}

func completeAction(wc *WorkflowContext) *CompleteAction {
	return &CompleteAction{
		Instruction: instructionComplete,
		Summary: CompletionSummary{
			Description:         wc.Description,
			SpecPath:            wc.SpecPath,
			TestFiles:           append([]string{}, wc.TestFiles...),
			ImplementationFiles: append([]string{}, wc.ImplementationFiles...),
		},
	}
}

func failedAction(wc *WorkflowContext) *FailedAction {
	step := StepTest
	switch wc.FailedPhase {
	case PhaseLintPending:
		step = StepLint
	case PhaseBuildPending:
		step = StepBuild
	}
	return &FailedAction{
		Instruction: failedInstruction(step, wc.LastError),
		FailedStep:  step,
	}
}
