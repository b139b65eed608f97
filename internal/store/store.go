// Package store is the thin contract over the underlying wide-column
// store. Adapters append version rows and scan them back; they carry no
// retries and no temporal logic. Appending a row with the same primary key
// overwrites it, which is how version closes are issued (re-append the row
// with valid_to set) and why re-issuing a close is safe.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/patrueduard03/nasdaq-cassandra-dw-fin-api/internal/domain"
)

// AssetStore persists asset version rows, keyed by (id, valid_from).
type AssetStore interface {
	// Append writes one version row, overwriting any row with the same
	// (id, valid_from).
	Append(ctx context.Context, row domain.Asset) error

	// Versions returns every physical row stored for the id, any order.
	Versions(ctx context.Context, id int) ([]domain.Asset, error)

	// ScanAll returns every row of every asset. Listing and identifier
	// lookups resolve over this; there are no secondary indexes.
	ScanAll(ctx context.Context) ([]domain.Asset, error)

	// MaxID returns the highest id ever written, 0 when empty.
	MaxID(ctx context.Context) (int, error)
}

// DataSourceStore persists data-source version rows, keyed by (id, valid_from).
type DataSourceStore interface {
	Append(ctx context.Context, row domain.DataSource) error
	Versions(ctx context.Context, id int) ([]domain.DataSource, error)
	ScanAll(ctx context.Context) ([]domain.DataSource, error)
	MaxID(ctx context.Context) (int, error)
}

// DataStore persists time-series version rows, partitioned by scope and
// keyed by (scope, business_date, system_date).
type DataStore interface {
	Append(ctx context.Context, row domain.Data) error

	// AppendBatch writes the rows as one grouped write. All-or-nothing is
	// not guaranteed by the backend; callers own the per-row fallback.
	AppendBatch(ctx context.Context, rows []domain.Data) error

	// ScanRange returns all version rows of one scope whose business date
	// falls inside [start, end]; nil bounds are unbounded.
	ScanRange(ctx context.Context, scope domain.SeriesScope, start, end *time.Time) ([]domain.Data, error)

	// ScanAsset returns all version rows for one asset across every data
	// source (unindexed full scan on the backend).
	ScanAsset(ctx context.Context, assetID int) ([]domain.Data, error)

	// ScanAll returns every row of every series.
	ScanAll(ctx context.Context) ([]domain.Data, error)
}

// Stores bundles the three adapters over one backend session.
type Stores struct {
	Assets      AssetStore
	DataSources DataSourceStore
	Data        DataStore
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w", op, errors.Join(domain.ErrStore, err))
}
