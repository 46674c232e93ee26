// Package store provides workflow.Store implementations.
//
// FileStore is the production store: one JSON document per workflow under
// a root directory, laid out as
//
//	<root>/
//	├── .lock                              ← flock for check-and-write
//	├── active/<id>.json                   ← in-flight workflows
//	└── archive/<20060102T150405Z>_<id>.json
//
// MemoryStore implements the same contract for tests and embedding.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fyrsmithlabs/featureflow/internal/sanitize"
	"github.com/fyrsmithlabs/featureflow/internal/workflow"
)

const (
	activeDir   = "active"
	archiveDir  = "archive"
	lockName    = ".lock"
	tempPrefix  = ".tmp-"
	docSuffix   = ".json"
	archiveTime = "20060102T150405Z"
)

// ErrCorrupted indicates a stored document could not be decoded.
var ErrCorrupted = errors.New("workflow document corrupted")

// ArchiveEntry describes one archived workflow.
type ArchiveEntry struct {
	ID         string    `json:"id"`
	ArchivedAt time.Time `json:"archived_at"`
	Path       string    `json:"path"`
}

// FileStore persists workflow contexts as JSON files.
type FileStore struct {
	root string
	// mu serializes writers within the process; lock covers other processes.
	mu   sync.Mutex
	lock *fileLock
	now  func() time.Time
}

// FileOption configures a FileStore.
type FileOption func(*FileStore)

// WithFileClock overrides the clock used to stamp archive entries.
func WithFileClock(now func() time.Time) FileOption {
	return func(s *FileStore) { s.now = now }
}

// NewFileStore opens (creating if needed) a store rooted at root.
func NewFileStore(root string, opts ...FileOption) (*FileStore, error) {
	if root == "" {
		return nil, errors.New("store root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve store root: %w", err)
	}
	for _, dir := range []string{activeDir, archiveDir} {
		if err := os.MkdirAll(filepath.Join(abs, dir), 0o700); err != nil {
			return nil, fmt.Errorf("create %s directory: %w", dir, err)
		}
	}

	s := &FileStore{
		root: abs,
		lock: newFileLock(filepath.Join(abs, lockName)),
		now:  func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Root returns the absolute store root.
func (s *FileStore) Root() string { return s.root }

func (s *FileStore) activePath(id string) string {
	return filepath.Join(s.root, activeDir, id+docSuffix)
}

// withLock runs fn holding both the process mutex and the file lock.
func (s *FileStore) withLock(fn func() error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.lock.Lock(); err != nil {
		return err
	}
	defer func() {
		if uerr := s.lock.Unlock(); uerr != nil && err == nil {
			err = uerr
		}
	}()
	return fn()
}

// Save writes wc if its Version matches the stored one, then increments it.
func (s *FileStore) Save(ctx context.Context, wc *workflow.WorkflowContext) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if wc == nil {
		return errors.New("save: nil workflow context")
	}
	if err := sanitize.ValidateWorkflowID(wc.ID); err != nil {
		return fmt.Errorf("save: %w", err)
	}

	return s.withLock(func() error {
		path := s.activePath(wc.ID)
		var stored int64
		prev, err := readDocument(path)
		switch {
		case err == nil:
			stored = prev.Version
		case errors.Is(err, fs.ErrNotExist):
		default:
			return fmt.Errorf("save %s: %w", wc.ID, err)
		}
		if wc.Version != stored {
			return fmt.Errorf("%w: %s has version %d, stored %d", workflow.ErrConflict, wc.ID, wc.Version, stored)
		}

		next := *wc
		next.Version = stored + 1
		if err := writeDocument(path, &next); err != nil {
			return fmt.Errorf("save %s: %w", wc.ID, err)
		}
		wc.Version = next.Version
		return nil
	})
}

// Load reads the active document for id.
func (s *FileStore) Load(ctx context.Context, id string) (*workflow.WorkflowContext, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := sanitize.ValidateWorkflowID(id); err != nil {
		return nil, fmt.Errorf("%w: %s", workflow.ErrNotFound, id)
	}
	wc, err := readDocument(s.activePath(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", workflow.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", id, err)
	}
	return wc, nil
}

// List returns the sorted ids of active workflows.
func (s *FileStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(filepath.Join(s.root, activeDir))
	if err != nil {
		return nil, fmt.Errorf("list active workflows: %w", err)
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if id, ok := activeID(e.Name()); ok && !e.IsDir() {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Archive moves the active document for id into the archive.
func (s *FileStore) Archive(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := sanitize.ValidateWorkflowID(id); err != nil {
		return fmt.Errorf("%w: %s", workflow.ErrNotFound, id)
	}

	return s.withLock(func() error {
		src := s.activePath(id)
		wc, err := readDocument(src)
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", workflow.ErrNotFound, id)
		}
		if err != nil {
			return fmt.Errorf("archive %s: %w", id, err)
		}

		name := s.now().UTC().Format(archiveTime) + "_" + id + docSuffix
		if err := writeDocument(filepath.Join(s.root, archiveDir, name), wc); err != nil {
			return fmt.Errorf("archive %s: %w", id, err)
		}
		if err := os.Remove(src); err != nil {
			return fmt.Errorf("archive %s: remove active document: %w", id, err)
		}
		return nil
	})
}

// Delete removes the active document for id without archiving it.
func (s *FileStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := sanitize.ValidateWorkflowID(id); err != nil {
		return fmt.Errorf("%w: %s", workflow.ErrNotFound, id)
	}
	return s.withLock(func() error {
		err := os.Remove(s.activePath(id))
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", workflow.ErrNotFound, id)
		}
		if err != nil {
			return fmt.Errorf("delete %s: %w", id, err)
		}
		return nil
	})
}

// ListArchived returns archive entries, oldest first.
func (s *FileStore) ListArchived(ctx context.Context) ([]ArchiveEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir := filepath.Join(s.root, archiveDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list archived workflows: %w", err)
	}
	out := make([]ArchiveEntry, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		entry, ok := parseArchiveName(e.Name())
		if !ok {
			continue
		}
		entry.Path = filepath.Join(dir, e.Name())
		out = append(out, entry)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].ArchivedAt.Equal(out[j].ArchivedAt) {
			return out[i].ArchivedAt.Before(out[j].ArchivedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// LoadArchived reads the most recent archived document for id.
func (s *FileStore) LoadArchived(ctx context.Context, id string) (*workflow.WorkflowContext, error) {
	entries, err := s.ListArchived(ctx)
	if err != nil {
		return nil, err
	}
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].ID != id {
			continue
		}
		wc, err := readDocument(entries[i].Path)
		if err != nil {
			return nil, fmt.Errorf("load archived %s: %w", id, err)
		}
		return wc, nil
	}
	return nil, fmt.Errorf("%w: archived %s", workflow.ErrNotFound, id)
}

func activeID(name string) (string, bool) {
	if strings.HasPrefix(name, ".") || !strings.HasSuffix(name, docSuffix) {
		return "", false
	}
	id := strings.TrimSuffix(name, docSuffix)
	if sanitize.ValidateWorkflowID(id) != nil {
		return "", false
	}
	return id, true
}

func parseArchiveName(name string) (ArchiveEntry, bool) {
	if strings.HasPrefix(name, ".") || !strings.HasSuffix(name, docSuffix) {
		return ArchiveEntry{}, false
	}
	stamp, id, ok := strings.Cut(strings.TrimSuffix(name, docSuffix), "_")
	if !ok {
		return ArchiveEntry{}, false
	}
	at, err := time.Parse(archiveTime, stamp)
	if err != nil || sanitize.ValidateWorkflowID(id) != nil {
		return ArchiveEntry{}, false
	}
	return ArchiveEntry{ID: id, ArchivedAt: at}, true
}

func readDocument(path string) (*workflow.WorkflowContext, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var wc workflow.WorkflowContext
	if err := json.Unmarshal(data, &wc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupted, filepath.Base(path), err)
	}
	return &wc, nil
}

// writeDocument writes wc to path via a synced temp file and rename.
func writeDocument(path string, wc *workflow.WorkflowContext) error {
	data, err := json.MarshalIndent(wc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), tempPrefix+"*"+docSuffix)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if err := tmp.Chmod(0o600); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

var _ workflow.Store = (*FileStore)(nil)
