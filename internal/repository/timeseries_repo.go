package repository

import (
	"context"
	"time"

	"github.com/patrueduard03/nasdaq-cassandra-dw-fin-api/internal/domain"
)

// SeriesMutation is one reconciliation decision ready to apply: the new
// open version plus, when the business date already has coverage, the
// currently-open version to close.
type SeriesMutation struct {
	Row    domain.Data
	Closes *domain.Data // nil for brand-new dates
}

// Update reports whether the mutation supersedes existing coverage.
func (m SeriesMutation) Update() bool { return m.Closes != nil }

// SeriesCoverage is the current-date extent of one series.
type SeriesCoverage struct {
	Scope domain.SeriesScope
	Start time.Time
	End   time.Time
	Days  int
}

// TimeSeriesRepository manages the data version chain and the read-only
// coverage aggregations over it.
type TimeSeriesRepository interface {
	// CurrentRange returns the current non-deleted version of every
	// business date in [start, end] (nil bounds unbounded), ordered by
	// business date descending.
	CurrentRange(ctx context.Context, scope domain.SeriesScope, start, end *time.Time) ([]domain.Data, error)

	// CurrentForDate returns the current version for one business date;
	// domain.ErrNotFound when the date has no live coverage.
	CurrentForDate(ctx context.Context, scope domain.SeriesScope, date time.Time) (*domain.Data, error)

	// SaveVersioned writes one row with temporal logic: an existing open
	// version for the date is closed first, then the row is appended open.
	SaveVersioned(ctx context.Context, row domain.Data) error

	// ApplyBatch applies mutations as grouped writes of batchSize rows,
	// falling back to per-mutation writes when a grouped write fails, so
	// one bad row cannot void its batch. Returns the mutations that
	// actually committed; per-row failures are logged, not returned.
	ApplyBatch(ctx context.Context, muts []SeriesMutation, batchSize int) ([]SeriesMutation, error)

	// CoveragePeriod returns the min and max covered business dates;
	// ok=false when the series has no live rows.
	CoveragePeriod(ctx context.Context, scope domain.SeriesScope) (start, end time.Time, ok bool, err error)

	// AssetsWithData lists every series that has live coverage, optionally
	// filtered by data source.
	AssetsWithData(ctx context.Context, filterDataSourceID *int) ([]SeriesCoverage, error)

	// CompatibleDataSources returns the data sources an asset has any live
	// rows for.
	CompatibleDataSources(ctx context.Context, assetID int) ([]int, error)
}
