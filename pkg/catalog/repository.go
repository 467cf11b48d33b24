package catalog

import (
	"context"
)

// Reader is the read side of entity data access used by the diagram builder.
type Reader interface {
	// Streams returns every stream with its apps populated.
	Streams(ctx context.Context) ([]Stream, error)

	// StreamByName returns the stream and its apps.
	// Returns a NOT_FOUND error if no stream has that name.
	StreamByName(ctx context.Context, name string) (*Stream, error)

	// StreamByID returns the stream and its apps.
	StreamByID(ctx context.Context, id int64) (*Stream, error)

	// AppsByStream returns the apps owned by a stream, ordered by name.
	AppsByStream(ctx context.Context, streamID int64) ([]App, error)

	// App returns one app with StreamName resolved.
	App(ctx context.Context, id int64) (*App, error)

	// AppsByIDs returns the apps with the given ids; unknown ids are skipped.
	AppsByIDs(ctx context.Context, ids []int64) ([]App, error)

	// IntegrationsTouching returns integrations with at least one endpoint in
	// appIDs, ordered by id.
	IntegrationsTouching(ctx context.Context, appIDs []int64) ([]Integration, error)

	// Integration returns one integration.
	Integration(ctx context.Context, id int64) (*Integration, error)

	// ConnectionTypes returns every connection type.
	ConnectionTypes(ctx context.Context) ([]ConnectionType, error)

	// Contracts returns the contracts covering appID.
	Contracts(ctx context.Context, appID int64) ([]Contract, error)
}

// Writer is the admin side of entity data access.
type Writer interface {
	SaveStream(ctx context.Context, s *Stream) error
	SaveApp(ctx context.Context, a *App) error
	SaveIntegration(ctx context.Context, i *Integration) error
	SaveConnectionType(ctx context.Context, c *ConnectionType) error
	SaveContract(ctx context.Context, c *Contract) error

	// DeleteApp removes the app, the integrations touching it and its
	// contract attachments.
	DeleteApp(ctx context.Context, id int64) error

	// DeleteStream removes an empty stream. Returns CONFLICT while apps remain.
	DeleteStream(ctx context.Context, id int64) error

	// DeleteIntegration removes one integration.
	DeleteIntegration(ctx context.Context, id int64) error

	// DeleteConnectionType removes a type. Returns CONFLICT while in use.
	DeleteConnectionType(ctx context.Context, id int64) error
}

// Repository combines read and write access.
type Repository interface {
	Reader
	Writer
}

// StreamIDByName resolves a stream name to its numeric id through r.
func StreamIDByName(ctx context.Context, r Reader, name string) (int64, error) {
	s, err := r.StreamByName(ctx, name)
	if err != nil {
		return 0, err
	}
	return s.ID, nil
}

// ConnectionTypeIndex indexes connection types by id.
func ConnectionTypeIndex(types []ConnectionType) map[int64]ConnectionType {
	idx := make(map[int64]ConnectionType, len(types))
	for _, t := range types {
		idx[t.ID] = t
	}
	return idx
}
