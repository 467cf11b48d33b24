package layout

import "context"

// Store is a layout persistence backend. Implementations must be safe for
// concurrent use; concurrent Puts to one key are last-writer-wins.
type Store interface {
	// Get returns the layout for key, or nil, nil if none was saved.
	Get(ctx context.Context, key Key) (*Layout, error)

	// Put creates or replaces the layout at l.Key.
	Put(ctx context.Context, l *Layout) error

	// Delete removes the layout for key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key Key) error

	// List returns every layout of the given kind.
	List(ctx context.Context, kind Kind) ([]*Layout, error)

	Close() error
}
