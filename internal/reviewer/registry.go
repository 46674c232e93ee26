package reviewer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/featureflow/internal/config"
	"github.com/fyrsmithlabs/featureflow/internal/sanitize"
)

// maxConcurrentChecks bounds parallel availability probes.
const maxConcurrentChecks = 8

// Errors for registry construction.
var (
	ErrDuplicateReviewer = errors.New("duplicate reviewer")
	ErrUnknownBackend    = errors.New("unknown reviewer backend")
)

// Registry maps reviewer names to adapters. It is built once from config
// and passed explicitly to whoever needs it.
type Registry struct {
	order    []string
	adapters map[string]Adapter
}

type registryOptions struct {
	httpClient *http.Client
	lookPath   func(string) (string, error)
}

// Option customizes adapters built by NewRegistry.
type Option func(*registryOptions)

// WithHTTPClient sets the client used by ollama probes.
func WithHTTPClient(c *http.Client) Option {
	return func(o *registryOptions) { o.httpClient = c }
}

// WithLookPath replaces exec.LookPath for cli availability checks.
func WithLookPath(fn func(string) (string, error)) Option {
	return func(o *registryOptions) { o.lookPath = fn }
}

// NewRegistry builds a registry from reviewer definitions. The type tag of
// each definition selects the backend.
func NewRegistry(defs []config.ReviewerConfig, opts ...Option) (*Registry, error) {
	var o registryOptions
	for _, opt := range opts {
		opt(&o)
	}

	adapters := make([]Adapter, 0, len(defs))
	for i, def := range defs {
		if err := def.Validate(); err != nil {
			return nil, fmt.Errorf("reviewers[%d]: %w", i, err)
		}
		switch def.Type {
		case config.ReviewerTypeCLI:
			a := NewCLIAdapter(def)
			if o.lookPath != nil {
				a.lookPath = o.lookPath
			}
			adapters = append(adapters, a)
		case config.ReviewerTypeOllama:
			adapters = append(adapters, NewOllamaAdapter(def, o.httpClient))
		default:
			return nil, fmt.Errorf("reviewers[%d] %q: %w: %q", i, def.Name, ErrUnknownBackend, def.Type)
		}
	}
	return NewRegistryFromAdapters(adapters...)
}

// NewRegistryFromAdapters builds a registry from ready adapters, in order.
func NewRegistryFromAdapters(adapters ...Adapter) (*Registry, error) {
	r := &Registry{
		order:    make([]string, 0, len(adapters)),
		adapters: make(map[string]Adapter, len(adapters)),
	}
	for _, a := range adapters {
		name := a.Name()
		if err := sanitize.ValidateReviewerName(name); err != nil {
			return nil, err
		}
		if _, ok := r.adapters[name]; ok {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateReviewer, name)
		}
		r.order = append(r.order, name)
		r.adapters[name] = a
	}
	return r, nil
}

// Names returns reviewer names in definition order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Lookup returns the adapter registered under name.
func (r *Registry) Lookup(name string) (Adapter, error) {
	a, ok := r.adapters[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownReviewer, name)
	}
	return a, nil
}

// Status is one reviewer's identity plus a probe outcome.
type Status struct {
	Name    string `json:"name"`
	Backend string `json:"backend"`
	Model   string `json:"model,omitempty"`
	Availability
}

// Check probes the named reviewers concurrently and returns their statuses
// in the order given. Each probe is bounded by timeout when it is positive.
// Unknown names are reported as unavailable.
func (r *Registry) Check(ctx context.Context, names []string, timeout time.Duration) []Status {
	out := make([]Status, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentChecks)

	for i, name := range names {
		a, err := r.Lookup(name)
		if err != nil {
			out[i] = Status{Name: name, Availability: Availability{Reason: err.Error()}}
			continue
		}
		out[i] = Status{Name: name, Backend: a.Backend(), Model: a.Model()}
		g.Go(func() error {
			cctx := gctx
			if timeout > 0 {
				var cancel context.CancelFunc
				cctx, cancel = context.WithTimeout(gctx, timeout)
				defer cancel()
			}
			out[i].Availability = a.CheckAvailability(cctx)
			return nil
		})
	}
	_ = g.Wait()
	return out
}
