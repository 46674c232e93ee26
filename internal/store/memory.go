package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/fyrsmithlabs/featureflow/internal/workflow"
)

// MemoryStore keeps workflow contexts in process memory. Documents are
// copied through JSON on the way in and out, so callers never share state
// with the store.
type MemoryStore struct {
	mu       sync.RWMutex
	active   map[string][]byte
	archived map[string][]byte
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		active:   make(map[string][]byte),
		archived: make(map[string][]byte),
	}
}

func (s *MemoryStore) Save(_ context.Context, wc *workflow.WorkflowContext) error {
	if wc == nil {
		return errors.New("save: nil workflow context")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var stored int64
	if raw, ok := s.active[wc.ID]; ok {
		prev, err := decode(raw)
		if err != nil {
			return err
		}
		stored = prev.Version
	}
	if wc.Version != stored {
		return fmt.Errorf("%w: %s has version %d, stored %d", workflow.ErrConflict, wc.ID, wc.Version, stored)
	}

	next := *wc
	next.Version = stored + 1
	raw, err := json.Marshal(&next)
	if err != nil {
		return fmt.Errorf("save %s: %w", wc.ID, err)
	}
	s.active[wc.ID] = raw
	wc.Version = next.Version
	return nil
}

func (s *MemoryStore) Load(_ context.Context, id string) (*workflow.WorkflowContext, error) {
	s.mu.RLock()
	raw, ok := s.active[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", workflow.ErrNotFound, id)
	}
	return decode(raw)
}

func (s *MemoryStore) List(context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.active))
	for id := range s.active {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *MemoryStore) Archive(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.active[id]
	if !ok {
		return fmt.Errorf("%w: %s", workflow.ErrNotFound, id)
	}
	s.archived[id] = raw
	delete(s.active, id)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.active[id]; !ok {
		return fmt.Errorf("%w: %s", workflow.ErrNotFound, id)
	}
	delete(s.active, id)
	return nil
}

// LoadArchived returns the archived document for id.
func (s *MemoryStore) LoadArchived(_ context.Context, id string) (*workflow.WorkflowContext, error) {
	s.mu.RLock()
	raw, ok := s.archived[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: archived %s", workflow.ErrNotFound, id)
	}
	return decode(raw)
}

func decode(raw []byte) (*workflow.WorkflowContext, error) {
	var wc workflow.WorkflowContext
	if err := json.Unmarshal(raw, &wc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupted, err)
	}
	return &wc, nil
}

var _ workflow.Store = (*MemoryStore)(nil)
