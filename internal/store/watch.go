package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/fyrsmithlabs/featureflow/internal/sanitize"
	"github.com/fyrsmithlabs/featureflow/internal/workflow"
)

// ErrWatcherFailed indicates the filesystem watcher could not be started.
var ErrWatcherFailed = errors.New("failed to initialize filesystem watcher")

// Watch calls fn with the current version of workflow id, if any, and then
// with every newer version persisted by any process. When the workflow leaves
// the active directory, fn receives the archived document (when one exists)
// and Watch returns nil. Otherwise Watch runs until ctx is done.
//
// fn is called from the watching goroutine; versions are delivered in
// increasing order and never repeated.
func (s *FileStore) Watch(ctx context.Context, id string, fn func(*workflow.WorkflowContext)) error {
	if err := sanitize.ValidateWorkflowID(id); err != nil {
		return fmt.Errorf("%w: %s", workflow.ErrNotFound, id)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Join(s.root, activeDir)); err != nil {
		return fmt.Errorf("watch active directory: %w", err)
	}

	path := s.activePath(id)
	var last int64
	deliver := func(wc *workflow.WorkflowContext) {
		if wc.Version > last {
			last = wc.Version
			fn(wc)
		}
	}

	// Registered before the first read so no write falls between the two.
	if wc, err := readDocument(path); err == nil {
		deliver(wc)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			switch {
			case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
				// A partially visible write is impossible after rename, but
				// a concurrent archive can remove the file first.
				if wc, err := readDocument(path); err == nil {
					deliver(wc)
				}
			case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
				if wc, err := s.LoadArchived(ctx, id); err == nil {
					deliver(wc)
					return nil
				}
				if s.exists(path) {
					continue
				}
				return nil
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watch %s: %w", id, err)
		}
	}
}

func (s *FileStore) exists(path string) bool {
	_, err := readDocument(path)
	return err == nil
}
