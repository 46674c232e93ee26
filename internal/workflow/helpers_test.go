package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/featureflow/internal/logging"
	"github.com/fyrsmithlabs/featureflow/internal/reviewer"
)

var testNow = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

// memStore is a minimal versioned Store for engine tests.
type memStore struct {
	mu         sync.Mutex
	active     map[string][]byte
	archived   map[string][]byte
	saveErr    error
	archiveErr error
	saves      int
}

func newMemStore() *memStore {
	return &memStore{active: map[string][]byte{}, archived: map[string][]byte{}}
}

func (s *memStore) Save(_ context.Context, wc *WorkflowContext) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	var current int64
	if raw, ok := s.active[wc.ID]; ok {
		var prev WorkflowContext
		if err := json.Unmarshal(raw, &prev); err != nil {
			return err
		}
		current = prev.Version
	}
	if wc.Version != current {
		return fmt.Errorf("%w: have %d, stored %d", ErrConflict, wc.Version, current)
	}
	wc.Version++
	raw, err := json.Marshal(wc)
	if err != nil {
		return err
	}
	s.active[wc.ID] = raw
	s.saves++
	return nil
}

func (s *memStore) Load(_ context.Context, id string) (*WorkflowContext, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.active[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	var wc WorkflowContext
	if err := json.Unmarshal(raw, &wc); err != nil {
		return nil, err
	}
	return &wc, nil
}

func (s *memStore) List(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.active))
	for id := range s.active {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *memStore) Archive(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.archiveErr != nil {
		return s.archiveErr
	}
	raw, ok := s.active[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.archived[id] = raw
	delete(s.active, id)
	return nil
}

func (s *memStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.active[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(s.active, id)
	return nil
}

func (s *memStore) isArchived(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.archived[id]
	return ok
}

// mockAdapter is a reviewer whose availability is scripted with testify.
type mockAdapter struct {
	mock.Mock
	name    string
	backend string
	model   string
}

func newMockAdapter(name string, available bool) *mockAdapter {
	a := &mockAdapter{name: name, backend: reviewer.BackendCLI, model: "m-" + name}
	a.On("CheckAvailability", mock.Anything).Return(reviewer.Availability{Available: available}).Maybe()
	return a
}

func (a *mockAdapter) Name() string    { return a.name }
func (a *mockAdapter) Backend() string { return a.backend }
func (a *mockAdapter) Model() string   { return a.model }

func (a *mockAdapter) CheckAvailability(ctx context.Context) reviewer.Availability {
	args := a.Called(ctx)
	return args.Get(0).(reviewer.Availability)
}

func (a *mockAdapter) ReviewCommand(_ string, _ reviewer.Request) string {
	return "review-" + a.name
}

func (a *mockAdapter) ParseReviewOutput(raw string) reviewer.Result {
	return reviewer.ParseOutput(raw)
}

// mockPublisher records published events.
type mockPublisher struct {
	mock.Mock
}

func newMockPublisher(err error) *mockPublisher {
	p := &mockPublisher{}
	p.On("Publish", mock.Anything, mock.Anything).Return(err)
	return p
}

func (p *mockPublisher) Publish(ctx context.Context, ev Event) error {
	args := p.Called(ctx, ev)
	return args.Error(0)
}

func (p *mockPublisher) events() []Event {
	out := make([]Event, 0, len(p.Calls))
	for _, c := range p.Calls {
		out = append(out, c.Arguments.Get(1).(Event))
	}
	return out
}

type harness struct {
	o          *Orchestrator
	store      *memStore
	publisher  *mockPublisher
	logger     *logging.TestLogger
	registry   *prometheus.Registry
	projectDir string
}

func newHarness(t *testing.T, adapters []reviewer.Adapter, opts ...Option) *harness {
	t.Helper()

	projectDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(projectDir, "go.mod"), []byte("module example.com/demo\n"), 0o644))

	reg, err := reviewer.NewRegistryFromAdapters(adapters...)
	require.NoError(t, err)

	h := &harness{
		store:      newMemStore(),
		publisher:  newMockPublisher(nil),
		logger:     logging.NewTestLogger(),
		registry:   prometheus.NewRegistry(),
		projectDir: projectDir,
	}
	base := []Option{
		WithPublisher(h.publisher),
		WithLogger(h.logger.Logger),
		WithMetrics(NewMetrics(h.registry)),
		WithClock(func() time.Time { return testNow }),
	}
	h.o, err = New(h.store, reg, append(base, opts...)...)
	require.NoError(t, err)
	return h
}

// start creates a workflow and writes its spec file.
func (h *harness) start(t *testing.T, reviewers []string) *StartResponse {
	t.Helper()
	resp, err := h.o.Start(context.Background(), StartRequest{
		Description: "Add dark mode toggle",
		ProjectPath: h.projectDir,
		Reviewers:   reviewers,
	})
	require.NoError(t, err)

	create := resp.Action.(*CreateFileAction)
	require.NoError(t, os.MkdirAll(filepath.Dir(create.Path), 0o755))
	require.NoError(t, os.WriteFile(create.Path, []byte(create.Content), 0o644))
	return resp
}

func (h *harness) step(t *testing.T, id string, result *StepResult) *StepResponse {
	t.Helper()
	resp, err := h.o.Step(context.Background(), id, result)
	require.NoError(t, err)
	return resp
}

func (h *harness) load(t *testing.T, id string) *WorkflowContext {
	t.Helper()
	wc, err := h.store.Load(context.Background(), id)
	require.NoError(t, err)
	return wc
}

// seed persists a context positioned at phase.
func (h *harness) seed(t *testing.T, id string, phase Phase) {
	t.Helper()
	wc := &WorkflowContext{
		ID:                  id,
		CreatedAt:           testNow,
		UpdatedAt:           testNow,
		Description:         "Seeded",
		ProjectPath:         h.projectDir,
		Phase:               phase,
		ActiveReviewers:     []string{},
		PendingReviewers:    []string{},
		CompletedReviewers:  []string{},
		Reviews:             map[string]ReviewResult{},
		SpecPath:            filepath.Join(h.projectDir, "docs", "specs", "seeded.md"),
		TestFiles:           []string{},
		ImplementationFiles: []string{},
	}
	wc.Commands.Lint = "go vet ./..."
	wc.Commands.Build = "go build ./..."
	wc.Commands.Test = "go test ./..."
	require.NoError(t, h.store.Save(context.Background(), wc))
}

func boolPtr(b bool) *bool { return &b }
