package workflow

import "context"

// Store persists workflow contexts between calls.
//
// Save is optimistic: wc.Version must equal the persisted version (0 for a
// new id) or Save returns ErrConflict. On success the store increments
// wc.Version in place.
type Store interface {
	Save(ctx context.Context, wc *WorkflowContext) error
	// Load returns ErrNotFound when id has no active document.
	Load(ctx context.Context, id string) (*WorkflowContext, error)
	// List returns active ids in sorted order.
	List(ctx context.Context) ([]string, error)
	// Archive moves an active document to the archive.
	Archive(ctx context.Context, id string) error
	// Delete removes an active document.
	Delete(ctx context.Context, id string) error
}
