package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/patrueduard03/nasdaq-cassandra-dw-fin-api/internal/domain"
	"github.com/patrueduard03/nasdaq-cassandra-dw-fin-api/internal/store"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testScope = domain.SeriesScope{AssetID: 1, DataSourceID: 1}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func observation(scope domain.SeriesScope, date string, px float64, at time.Time) domain.Data {
	return domain.Data{
		AssetID:      scope.AssetID,
		DataSourceID: scope.DataSourceID,
		BusinessDate: day(date),
		SystemDate:   at,
		ValuesDouble: map[string]float64{"close": px},
		Validity:     domain.OpenSpan(at),
	}
}

func TestSaveVersionedSupersedes(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryDataStore()
	repo := NewVersionedTimeSeriesRepo(st, zap.NewNop())

	t1 := time.Now().UTC()
	require.NoError(t, repo.SaveVersioned(ctx, observation(testScope, "2024-01-02", 100, t1)))

	cur, err := repo.CurrentForDate(ctx, testScope, day("2024-01-02"))
	require.NoError(t, err)
	require.Equal(t, 100.0, cur.ValuesDouble["close"])

	time.Sleep(time.Millisecond)
	t2 := time.Now().UTC()
	require.NoError(t, repo.SaveVersioned(ctx, observation(testScope, "2024-01-02", 101, t2)))

	cur, err = repo.CurrentForDate(ctx, testScope, day("2024-01-02"))
	require.NoError(t, err)
	require.Equal(t, 101.0, cur.ValuesDouble["close"])

	// Old version is closed at the new version's valid_from, not removed.
	rows, err := st.ScanRange(ctx, testScope, nil, nil)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	open := 0
	for _, row := range rows {
		if row.Validity.Open() {
			open++
			require.Equal(t, 101.0, row.ValuesDouble["close"])
		} else {
			require.Equal(t, t2, row.Validity.To)
		}
	}
	require.Equal(t, 1, open)
}

func TestCurrentRangeOrdersDescending(t *testing.T) {
	ctx := context.Background()
	repo := NewVersionedTimeSeriesRepo(store.NewMemoryDataStore(), zap.NewNop())

	now := time.Now().UTC()
	for i, d := range []string{"2024-01-02", "2024-01-04", "2024-01-03"} {
		require.NoError(t, repo.SaveVersioned(ctx, observation(testScope, d, float64(i), now.Add(time.Duration(i)))))
	}

	rows, err := repo.CurrentRange(ctx, testScope, nil, nil)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, day("2024-01-04"), rows[0].BusinessDate)
	require.Equal(t, day("2024-01-03"), rows[1].BusinessDate)
	require.Equal(t, day("2024-01-02"), rows[2].BusinessDate)

	start := day("2024-01-03")
	bounded, err := repo.CurrentRange(ctx, testScope, &start, nil)
	require.NoError(t, err)
	require.Len(t, bounded, 2)
}

func TestApplyBatchCommitsInChunks(t *testing.T) {
	ctx := context.Background()
	repo := NewVersionedTimeSeriesRepo(store.NewMemoryDataStore(), zap.NewNop())

	now := time.Now().UTC()
	var muts []SeriesMutation
	for i := 0; i < 250; i++ {
		date := day("2024-01-01").AddDate(0, 0, i).Format("2006-01-02")
		muts = append(muts, SeriesMutation{Row: observation(testScope, date, float64(i), now)})
	}

	committed, err := repo.ApplyBatch(ctx, muts, 100)
	require.NoError(t, err)
	require.Len(t, committed, 250)

	rows, err := repo.CurrentRange(ctx, testScope, nil, nil)
	require.NoError(t, err)
	require.Len(t, rows, 250)
}

// flakyDataStore fails every grouped write and individual appends for one
// poisoned business date, exercising the per-row fallback path.
type flakyDataStore struct {
	*store.MemoryDataStore
	poisoned time.Time
}

func (s *flakyDataStore) AppendBatch(context.Context, []domain.Data) error {
	return fmt.Errorf("simulated batch failure: %w", domain.ErrStore)
}

func (s *flakyDataStore) Append(ctx context.Context, row domain.Data) error {
	if row.BusinessDate.Equal(s.poisoned) && row.Validity.Open() {
		return fmt.Errorf("simulated row failure: %w", domain.ErrStore)
	}
	return s.MemoryDataStore.Append(ctx, row)
}

func TestApplyBatchFallsBackPerRow(t *testing.T) {
	ctx := context.Background()
	flaky := &flakyDataStore{MemoryDataStore: store.NewMemoryDataStore(), poisoned: day("2024-01-03")}
	repo := NewVersionedTimeSeriesRepo(flaky, zap.NewNop())

	now := time.Now().UTC()
	var muts []SeriesMutation
	for _, d := range []string{"2024-01-01", "2024-01-02", "2024-01-03", "2024-01-04"} {
		muts = append(muts, SeriesMutation{Row: observation(testScope, d, 1, now)})
	}

	committed, err := repo.ApplyBatch(ctx, muts, 100)
	require.NoError(t, err)
	// One bad row must not void its batch.
	require.Len(t, committed, 3)
	for _, mut := range committed {
		require.False(t, mut.Row.BusinessDate.Equal(flaky.poisoned))
	}

	rows, err := repo.CurrentRange(ctx, testScope, nil, nil)
	require.NoError(t, err)
	require.Len(t, rows, 3)
}

func TestApplyBatchStopsOnCancelledContext(t *testing.T) {
	repo := NewVersionedTimeSeriesRepo(store.NewMemoryDataStore(), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	now := time.Now().UTC()
	muts := []SeriesMutation{{Row: observation(testScope, "2024-01-01", 1, now)}}
	committed, err := repo.ApplyBatch(ctx, muts, 100)
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, committed)
}

func TestCoverageAggregations(t *testing.T) {
	ctx := context.Background()
	repo := NewVersionedTimeSeriesRepo(store.NewMemoryDataStore(), zap.NewNop())

	now := time.Now().UTC()
	otherScope := domain.SeriesScope{AssetID: 2, DataSourceID: 7}
	for i, d := range []string{"2024-01-02", "2024-01-03", "2024-01-05"} {
		require.NoError(t, repo.SaveVersioned(ctx, observation(testScope, d, 1, now.Add(time.Duration(i)))))
	}
	require.NoError(t, repo.SaveVersioned(ctx, observation(otherScope, "2024-02-01", 1, now)))

	start, end, ok, err := repo.CoveragePeriod(ctx, testScope)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, day("2024-01-02"), start)
	require.Equal(t, day("2024-01-05"), end)

	_, _, ok, err = repo.CoveragePeriod(ctx, domain.SeriesScope{AssetID: 9, DataSourceID: 9})
	require.NoError(t, err)
	require.False(t, ok)

	all, err := repo.AssetsWithData(ctx, nil)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, testScope, all[0].Scope)
	require.Equal(t, 3, all[0].Days)

	filter := 7
	filtered, err := repo.AssetsWithData(ctx, &filter)
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	require.Equal(t, otherScope, filtered[0].Scope)

	sources, err := repo.CompatibleDataSources(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, []int{7}, sources)
}
