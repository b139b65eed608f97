package repository

import (
	"context"
	"time"

	"github.com/patrueduard03/nasdaq-cassandra-dw-fin-api/internal/domain"
)

// DataSourcePayload is the caller-supplied part of a data-source version.
// Merge semantics match AssetPayload; Provider additionally keeps the old
// value when empty.
type DataSourcePayload struct {
	Name        string
	Description string
	Provider    string
	Attributes  map[string]string
}

// DataSourcesRepository manages the data_source version chain.
type DataSourcesRepository interface {
	// List returns the current non-deleted version of every source, ordered by id.
	List(ctx context.Context) ([]domain.DataSource, error)

	// Get returns the current version; domain.ErrNotFound when absent or deleted.
	Get(ctx context.Context, id int) (*domain.DataSource, error)

	// GetIncludingDeleted also returns an open tombstone.
	GetIncludingDeleted(ctx context.Context, id int) (*domain.DataSource, error)

	// GetAt returns the version that was current at the given instant.
	GetAt(ctx context.Context, id int, at time.Time) (*domain.DataSource, error)

	// ByProvider returns the first non-deleted source whose provider
	// matches (case-insensitive substring).
	ByProvider(ctx context.Context, provider string) (*domain.DataSource, error)

	// Create inserts a new source with a fresh id.
	Create(ctx context.Context, payload DataSourcePayload) (*domain.DataSource, error)

	// Update closes the current version and opens one with the merged payload.
	Update(ctx context.Context, id int, payload DataSourcePayload) (*domain.DataSource, error)

	// MarkDeleted closes the current version and opens a tombstone.
	MarkDeleted(ctx context.Context, id int) error

	// Resurrect closes an open tombstone and opens a new live version.
	Resurrect(ctx context.Context, id int, payload DataSourcePayload) (*domain.DataSource, error)
}
