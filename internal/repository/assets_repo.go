package repository

import (
	"context"
	"time"

	"github.com/patrueduard03/nasdaq-cassandra-dw-fin-api/internal/domain"
)

// AssetPayload is the caller-supplied part of an asset version. On update
// and resurrect it is merged over the existing version: empty Name and
// Description keep the old value, Attributes overlay key by key.
type AssetPayload struct {
	Name        string
	Description string
	Attributes  map[string]string
}

// AssetsRepository manages the asset version chain. Every mutation is an
// append of a new version; nothing is ever removed.
type AssetsRepository interface {
	// List returns the current non-deleted version of every asset, ordered by id.
	List(ctx context.Context) ([]domain.Asset, error)

	// Get returns the current version; domain.ErrNotFound when absent or deleted.
	Get(ctx context.Context, id int) (*domain.Asset, error)

	// GetIncludingDeleted also returns an open tombstone.
	GetIncludingDeleted(ctx context.Context, id int) (*domain.Asset, error)

	// GetAt returns the version that was current at the given instant.
	GetAt(ctx context.Context, id int, at time.Time) (*domain.Asset, error)

	// ActiveBySymbol returns the non-deleted asset carrying the symbol.
	ActiveBySymbol(ctx context.Context, symbol string) (*domain.Asset, error)

	// DeletedBySymbol returns the asset whose open version is a tombstone
	// and whose payload carries the symbol (a resurrection candidate).
	DeletedBySymbol(ctx context.Context, symbol string) (*domain.Asset, error)

	// Create inserts a new asset. A live asset with the same symbol is a
	// domain.ErrConflict; a tombstoned one is resurrected instead, keeping
	// its logical key so historical series links stay valid.
	Create(ctx context.Context, payload AssetPayload) (*domain.Asset, error)

	// Update closes the current version and opens a new one with the
	// merged payload. domain.ErrNotFound when absent or deleted.
	Update(ctx context.Context, id int, payload AssetPayload) (*domain.Asset, error)

	// MarkDeleted closes the current version and opens a tombstone.
	// domain.ErrConflict when the asset is already deleted.
	MarkDeleted(ctx context.Context, id int) error

	// Resurrect closes an open tombstone and opens a new live version.
	// domain.ErrConflict when the asset is not deleted.
	Resurrect(ctx context.Context, id int, payload AssetPayload) (*domain.Asset, error)
}
