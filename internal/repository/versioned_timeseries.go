package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/patrueduard03/nasdaq-cassandra-dw-fin-api/internal/domain"
	"github.com/patrueduard03/nasdaq-cassandra-dw-fin-api/internal/metrics"
	"github.com/patrueduard03/nasdaq-cassandra-dw-fin-api/internal/store"
	"github.com/patrueduard03/nasdaq-cassandra-dw-fin-api/internal/temporal"

	"go.uber.org/zap"
)

// VersionedTimeSeriesRepo implements TimeSeriesRepository over the
// versioned store.
type VersionedTimeSeriesRepo struct {
	store store.DataStore
	locks *keyMutex
	log   *zap.Logger
}

var _ TimeSeriesRepository = (*VersionedTimeSeriesRepo)(nil)

func NewVersionedTimeSeriesRepo(s store.DataStore, log *zap.Logger) *VersionedTimeSeriesRepo {
	return &VersionedTimeSeriesRepo{store: s, locks: newKeyMutex(), log: log}
}

func (r *VersionedTimeSeriesRepo) CurrentRange(ctx context.Context, scope domain.SeriesScope, start, end *time.Time) ([]domain.Data, error) {
	rows, err := r.store.ScanRange(ctx, scope, start, end)
	if err != nil {
		return nil, err
	}
	out := currentPerDate(rows, r.log)
	sort.Slice(out, func(i, j int) bool { return out[i].BusinessDate.After(out[j].BusinessDate) })
	return out, nil
}

func (r *VersionedTimeSeriesRepo) CurrentForDate(ctx context.Context, scope domain.SeriesScope, date time.Time) (*domain.Data, error) {
	day := domain.BusinessDay(date)
	rows, err := r.store.ScanRange(ctx, scope, &day, &day)
	if err != nil {
		return nil, err
	}
	cur, ok := temporal.Current(rows, r.log)
	if !ok {
		return nil, fmt.Errorf("series %d/%d date %s: %w",
			scope.AssetID, scope.DataSourceID, day.Format("2006-01-02"), domain.ErrNotFound)
	}
	return &cur, nil
}

func (r *VersionedTimeSeriesRepo) SaveVersioned(ctx context.Context, row domain.Data) error {
	unlock := r.locks.lock(seriesLockKey(row.Key()))
	defer unlock()

	existing, err := r.CurrentForDate(ctx, row.Scope(), row.BusinessDate)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	var mut SeriesMutation
	mut.Row = row
	mut.Closes = existing
	return r.applyOne(ctx, mut)
}

func (r *VersionedTimeSeriesRepo) ApplyBatch(ctx context.Context, muts []SeriesMutation, batchSize int) ([]SeriesMutation, error) {
	if batchSize <= 0 {
		batchSize = 100
	}
	committed := make([]SeriesMutation, 0, len(muts))
	for offset := 0; offset < len(muts); offset += batchSize {
		if err := ctx.Err(); err != nil {
			return committed, err
		}
		chunk := muts[offset:min(offset+batchSize, len(muts))]
		rows := make([]domain.Data, 0, 2*len(chunk))
		for _, mut := range chunk {
			rows = append(rows, mutationRows(mut)...)
		}
		if err := r.store.AppendBatch(ctx, rows); err == nil {
			committed = append(committed, chunk...)
			continue
		} else {
			metrics.BatchFallbacks.Inc()
			r.log.Warn("grouped write failed, applying rows individually",
				zap.Int("batch_rows", len(chunk)), zap.Error(err))
		}
		for _, mut := range chunk {
			if err := r.applyOne(ctx, mut); err != nil {
				r.log.Error("individual save failed",
					zap.Int("asset_id", mut.Row.AssetID),
					zap.Int("data_source_id", mut.Row.DataSourceID),
					zap.Time("business_date", mut.Row.BusinessDate),
					zap.Error(err))
				continue
			}
			committed = append(committed, mut)
		}
	}
	return committed, nil
}

func (r *VersionedTimeSeriesRepo) CoveragePeriod(ctx context.Context, scope domain.SeriesScope) (time.Time, time.Time, bool, error) {
	rows, err := r.CurrentRange(ctx, scope, nil, nil)
	if err != nil || len(rows) == 0 {
		return time.Time{}, time.Time{}, false, err
	}
	// CurrentRange orders business date descending.
	return rows[len(rows)-1].BusinessDate, rows[0].BusinessDate, true, nil
}

func (r *VersionedTimeSeriesRepo) AssetsWithData(ctx context.Context, filterDataSourceID *int) ([]SeriesCoverage, error) {
	rows, err := r.store.ScanAll(ctx)
	if err != nil {
		return nil, err
	}
	out := coverageFromRows(rows, filterDataSourceID, r.log)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Scope.AssetID != out[j].Scope.AssetID {
			return out[i].Scope.AssetID < out[j].Scope.AssetID
		}
		return out[i].Scope.DataSourceID < out[j].Scope.DataSourceID
	})
	return out, nil
}

func (r *VersionedTimeSeriesRepo) CompatibleDataSources(ctx context.Context, assetID int) ([]int, error) {
	rows, err := r.store.ScanAsset(ctx, assetID)
	if err != nil {
		return nil, err
	}
	ids := map[int]bool{}
	for _, cov := range coverageFromRows(rows, nil, r.log) {
		ids[cov.Scope.DataSourceID] = true
	}
	out := make([]int, 0, len(ids))
	for id := range ids {
		out = append(out, id)
	}
	sort.Ints(out)
	return out, nil
}

// applyOne writes one mutation with the two-append close-then-insert. A
// failure after the close committed leaves the date with no open version;
// both row identities are logged for manual reconciliation.
func (r *VersionedTimeSeriesRepo) applyOne(ctx context.Context, mut SeriesMutation) error {
	if mut.Closes != nil {
		closed := *mut.Closes
		closed.Validity = closed.Validity.Close(mut.Row.Validity.From)
		if err := r.store.Append(ctx, closed); err != nil {
			return err
		}
	}
	if err := r.store.Append(ctx, mut.Row); err != nil {
		if mut.Closes != nil {
			r.log.Error("version chain left inconsistent: close committed, insert failed",
				zap.Int("asset_id", mut.Row.AssetID),
				zap.Int("data_source_id", mut.Row.DataSourceID),
				zap.Time("business_date", mut.Row.BusinessDate),
				zap.Time("closed_valid_from", mut.Closes.Validity.From),
				zap.Time("missing_valid_from", mut.Row.Validity.From),
				zap.Error(err))
		}
		return err
	}
	return nil
}

func mutationRows(mut SeriesMutation) []domain.Data {
	if mut.Closes == nil {
		return []domain.Data{mut.Row}
	}
	closed := *mut.Closes
	closed.Validity = closed.Validity.Close(mut.Row.Validity.From)
	return []domain.Data{closed, mut.Row}
}

func currentPerDate(rows []domain.Data, log *zap.Logger) []domain.Data {
	byDate := map[time.Time][]domain.Data{}
	for _, row := range rows {
		byDate[row.BusinessDate] = append(byDate[row.BusinessDate], row)
	}
	var out []domain.Data
	for _, versions := range byDate {
		if cur, ok := temporal.Current(versions, log); ok {
			out = append(out, cur)
		}
	}
	return out
}

func coverageFromRows(rows []domain.Data, filterDataSourceID *int, log *zap.Logger) []SeriesCoverage {
	byScope := map[domain.SeriesScope][]domain.Data{}
	for _, row := range rows {
		if filterDataSourceID != nil && row.DataSourceID != *filterDataSourceID {
			continue
		}
		byScope[row.Scope()] = append(byScope[row.Scope()], row)
	}
	var out []SeriesCoverage
	for scope, scopeRows := range byScope {
		live := currentPerDate(scopeRows, log)
		if len(live) == 0 {
			continue
		}
		cov := SeriesCoverage{Scope: scope, Start: live[0].BusinessDate, End: live[0].BusinessDate}
		for _, row := range live[1:] {
			if row.BusinessDate.Before(cov.Start) {
				cov.Start = row.BusinessDate
			}
			if row.BusinessDate.After(cov.End) {
				cov.End = row.BusinessDate
			}
		}
		cov.Days = len(live)
		out = append(out, cov)
	}
	return out
}

func seriesLockKey(key domain.SeriesKey) string {
	return fmt.Sprintf("data:%d:%d:%s", key.AssetID, key.DataSourceID, key.BusinessDate.Format("2006-01-02"))
}
