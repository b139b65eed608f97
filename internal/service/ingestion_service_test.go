package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/patrueduard03/nasdaq-cassandra-dw-fin-api/internal/domain"
	"github.com/patrueduard03/nasdaq-cassandra-dw-fin-api/internal/progress"
	"github.com/patrueduard03/nasdaq-cassandra-dw-fin-api/internal/provider"
	"github.com/patrueduard03/nasdaq-cassandra-dw-fin-api/internal/repository"
	"github.com/patrueduard03/nasdaq-cassandra-dw-fin-api/internal/store"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeFetcher serves canned rows, filtered to the requested window the
// way the real vendor does.
type fakeFetcher struct {
	rows []provider.Row
	err  error

	mu    sync.Mutex
	calls int
}

func (f *fakeFetcher) FetchSeries(_ context.Context, _ string, start, end time.Time) ([]provider.Row, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var out []provider.Row
	for _, row := range f.rows {
		d := domain.BusinessDay(row.Date)
		if d.Before(domain.BusinessDay(start)) || d.After(domain.BusinessDay(end)) {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

// captureSink records every progress event for assertions.
type captureSink struct {
	mu     sync.Mutex
	events []progress.Event
}

func (s *captureSink) Notify(_ context.Context, ev progress.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *captureSink) all() []progress.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]progress.Event(nil), s.events...)
}

func (s *captureSink) stages() []string {
	var out []string
	for _, ev := range s.all() {
		out = append(out, ev.Stage)
	}
	return out
}

type ingestFixture struct {
	svc     IngestionService
	series  repository.TimeSeriesRepository
	sources repository.DataSourcesRepository
	fetcher *fakeFetcher
	sink    *captureSink
	asset   *domain.Asset
	source  *domain.DataSource
}

func newIngestFixture(t *testing.T, fetcher *fakeFetcher) *ingestFixture {
	t.Helper()
	ctx := context.Background()
	log := zap.NewNop()

	assets := repository.NewVersionedAssetsRepo(store.NewMemoryAssetStore(), nil, log)
	sources := repository.NewVersionedDataSourcesRepo(store.NewMemoryDataSourceStore(), log)
	series := repository.NewVersionedTimeSeriesRepo(store.NewMemoryDataStore(), log)

	asset, err := assets.Create(ctx, repository.AssetPayload{
		Name:       "Apple Inc.",
		Attributes: map[string]string{domain.SymbolAttribute: "AAPL"},
	})
	require.NoError(t, err)
	source, err := sources.Create(ctx, repository.DataSourcePayload{
		Name:     "Nasdaq Data Link",
		Provider: "Nasdaq Data Link",
	})
	require.NoError(t, err)

	sink := &captureSink{}
	return &ingestFixture{
		svc:     NewIngestionService(assets, sources, series, fetcher, sink, log),
		series:  series,
		sources: sources,
		fetcher: fetcher,
		sink:    sink,
		asset:   asset,
		source:  source,
	}
}

func priceRow(date string, px float64) provider.Row {
	d, err := time.Parse("2006-01-02", date)
	if err != nil {
		panic(err)
	}
	return provider.Row{Date: d, Values: map[string]float64{
		"open": px - 1, "high": px + 1, "low": px - 2, "close": px, "volume": 1000,
	}}
}

func priceRows(startDate string, days int) []provider.Row {
	start, err := time.Parse("2006-01-02", startDate)
	if err != nil {
		panic(err)
	}
	rows := make([]provider.Row, 0, days)
	for i := 0; i < days; i++ {
		rows = append(rows, priceRow(start.AddDate(0, 0, i).Format("2006-01-02"), 100+float64(i)))
	}
	return rows
}

func (f *ingestFixture) request(start, end string) IngestRequest {
	s, _ := time.Parse("2006-01-02", start)
	e, _ := time.Parse("2006-01-02", end)
	return IngestRequest{AssetID: f.asset.ID, DataSourceID: f.source.ID, StartDate: s, EndDate: e}
}

func TestReconcileSavesNewRows(t *testing.T) {
	ctx := context.Background()
	fx := newIngestFixture(t, &fakeFetcher{rows: priceRows("2024-01-01", 5)})

	sum, err := fx.svc.Reconcile(ctx, "s1", fx.request("2024-01-01", "2024-01-05"))
	require.NoError(t, err)
	require.Equal(t, &IngestSummary{Fetched: 5, Saved: 5}, sum)

	scope := domain.SeriesScope{AssetID: fx.asset.ID, DataSourceID: fx.source.ID}
	live, err := fx.series.CurrentRange(ctx, scope, nil, nil)
	require.NoError(t, err)
	require.Len(t, live, 5)
	require.Contains(t, fx.sink.stages(), progress.StageComplete)
}

func TestReconcileIsIdempotent(t *testing.T) {
	ctx := context.Background()
	fx := newIngestFixture(t, &fakeFetcher{rows: priceRows("2024-01-01", 5)})
	req := fx.request("2024-01-01", "2024-01-05")

	first, err := fx.svc.Reconcile(ctx, "s1", req)
	require.NoError(t, err)
	require.Equal(t, 5, first.Saved)

	second, err := fx.svc.Reconcile(ctx, "s2", req)
	require.NoError(t, err)
	require.Equal(t, 0, second.Saved)
	require.Equal(t, 0, second.Updated)
	// Every date the first run saved, the second run skips.
	require.Equal(t, first.Saved, second.Skipped)
}

func TestReconcileForceRefreshSupersedes(t *testing.T) {
	ctx := context.Background()
	fx := newIngestFixture(t, &fakeFetcher{rows: priceRows("2024-01-01", 3)})
	req := fx.request("2024-01-01", "2024-01-03")

	_, err := fx.svc.Reconcile(ctx, "s1", req)
	require.NoError(t, err)

	time.Sleep(time.Millisecond)
	req.ForceRefresh = true
	second, err := fx.svc.Reconcile(ctx, "s2", req)
	require.NoError(t, err)
	require.Equal(t, 3, second.Updated)
	require.Equal(t, 0, second.Saved)
	require.Equal(t, 0, second.Skipped)

	// Superseding keeps exactly one live version per date.
	scope := domain.SeriesScope{AssetID: fx.asset.ID, DataSourceID: fx.source.ID}
	live, err := fx.series.CurrentRange(ctx, scope, nil, nil)
	require.NoError(t, err)
	require.Len(t, live, 3)
}

func TestReconcileSkipsDuplicateDates(t *testing.T) {
	ctx := context.Background()
	rows := []provider.Row{priceRow("2024-01-02", 100), priceRow("2024-01-02", 101)}
	fx := newIngestFixture(t, &fakeFetcher{rows: rows})

	sum, err := fx.svc.Reconcile(ctx, "s1", fx.request("2024-01-01", "2024-01-05"))
	require.NoError(t, err)
	require.Equal(t, 1, sum.Saved)
	require.Equal(t, 1, sum.Skipped)

	scope := domain.SeriesScope{AssetID: fx.asset.ID, DataSourceID: fx.source.ID}
	cur, err := fx.series.CurrentForDate(ctx, scope, mustDate("2024-01-02"))
	require.NoError(t, err)
	// First occurrence wins.
	require.Equal(t, 100.0, cur.ValuesDouble["close"])
}

func TestReconcileFillsCanonicalDefaults(t *testing.T) {
	ctx := context.Background()
	d, _ := time.Parse("2006-01-02", "2024-01-02")
	fx := newIngestFixture(t, &fakeFetcher{rows: []provider.Row{
		{Date: d, Values: map[string]float64{"close": 100}},
	}})

	_, err := fx.svc.Reconcile(ctx, "s1", fx.request("2024-01-01", "2024-01-05"))
	require.NoError(t, err)

	scope := domain.SeriesScope{AssetID: fx.asset.ID, DataSourceID: fx.source.ID}
	cur, err := fx.series.CurrentForDate(ctx, scope, d)
	require.NoError(t, err)
	require.Equal(t, 100.0, cur.ValuesDouble["close"])
	require.Equal(t, 0.0, cur.ValuesDouble["volume"])
	require.Equal(t, 1.0, cur.ValuesDouble["split_ratio"])
}

func TestReconcileProviderFailure(t *testing.T) {
	ctx := context.Background()
	fx := newIngestFixture(t, &fakeFetcher{
		err: fmt.Errorf("vendor is down: %w", domain.ErrProvider),
	})

	_, err := fx.svc.Reconcile(ctx, "s1", fx.request("2024-01-01", "2024-01-05"))
	require.ErrorIs(t, err, domain.ErrProvider)
	require.Contains(t, fx.sink.stages(), progress.StageError)
}

func TestReconcilePreconditions(t *testing.T) {
	ctx := context.Background()
	fx := newIngestFixture(t, &fakeFetcher{})

	// Unknown asset.
	req := fx.request("2024-01-01", "2024-01-05")
	req.AssetID = 99
	_, err := fx.svc.Reconcile(ctx, "s1", req)
	require.ErrorIs(t, err, domain.ErrNotFound)

	// Source that is not a nasdaq provider.
	other, err := fx.sources.Create(ctx, repository.DataSourcePayload{Name: "CSV import", Provider: "csv"})
	require.NoError(t, err)
	req = fx.request("2024-01-01", "2024-01-05")
	req.DataSourceID = other.ID
	_, err = fx.svc.Reconcile(ctx, "s1", req)
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestReconcileEmitsPeriodicProgress(t *testing.T) {
	ctx := context.Background()
	fx := newIngestFixture(t, &fakeFetcher{rows: priceRows("2023-01-01", 250)})

	sum, err := fx.svc.Reconcile(ctx, "s1", fx.request("2023-01-01", "2023-12-31"))
	require.NoError(t, err)
	require.Equal(t, 250, sum.Saved)

	stages := fx.sink.stages()
	require.Equal(t, []string{
		progress.StageFetching,
		progress.StageProcessing, // after 100 rows
		progress.StageProcessing, // after 200 rows
		progress.StageComplete,
	}, stages)

	events := fx.sink.all()
	mid := events[1]
	require.Equal(t, 100, mid.Processed)
	require.Equal(t, 250, mid.Total)
	// Interval counts reflect committed writes only.
	require.Equal(t, 100, mid.Saved)

	final := events[len(events)-1]
	require.Equal(t, 250, final.Processed)
	require.Equal(t, 250, final.Saved)
}

func TestStartSessionRunsInBackground(t *testing.T) {
	ctx := context.Background()
	fx := newIngestFixture(t, &fakeFetcher{rows: priceRows("2024-01-01", 5)})

	id, err := fx.svc.StartSession(ctx, fx.request("2024-01-01", "2024-01-05"))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	require.Eventually(t, func() bool {
		return len(fx.svc.ActiveSessions()) == 0
	}, 5*time.Second, 10*time.Millisecond)

	scope := domain.SeriesScope{AssetID: fx.asset.ID, DataSourceID: fx.source.ID}
	live, err := fx.series.CurrentRange(ctx, scope, nil, nil)
	require.NoError(t, err)
	require.Len(t, live, 5)
}

func TestStartSessionRejectsBadScope(t *testing.T) {
	ctx := context.Background()
	fx := newIngestFixture(t, &fakeFetcher{})

	req := fx.request("2024-01-01", "2024-01-05")
	req.AssetID = 99
	_, err := fx.svc.StartSession(ctx, req)
	require.ErrorIs(t, err, domain.ErrNotFound)
	require.Empty(t, fx.svc.ActiveSessions())
}

func TestCancelSessionUnknownID(t *testing.T) {
	fx := newIngestFixture(t, &fakeFetcher{})
	require.False(t, fx.svc.CancelSession("nope"))
}

func TestExtendCoverageFetchesOnlyNewEdges(t *testing.T) {
	ctx := context.Background()
	fx := newIngestFixture(t, &fakeFetcher{rows: priceRows("2024-01-01", 10)})

	// Seed coverage for the middle of the window.
	_, err := fx.svc.Reconcile(ctx, "seed", fx.request("2024-01-04", "2024-01-06"))
	require.NoError(t, err)

	newStart := mustDate("2024-01-01")
	newEnd := mustDate("2024-01-10")
	sum, err := fx.svc.ExtendCoverage(ctx, fx.asset.ID, fx.source.ID, &newStart, &newEnd)
	require.NoError(t, err)
	// Three days before the old start, four after the old end.
	require.Equal(t, 7, sum.Saved)
	require.Equal(t, 0, sum.Skipped)

	scope := domain.SeriesScope{AssetID: fx.asset.ID, DataSourceID: fx.source.ID}
	start, end, ok, err := fx.series.CoveragePeriod(ctx, scope)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, mustDate("2024-01-01"), start)
	require.Equal(t, mustDate("2024-01-10"), end)
}

func TestExtendCoverageRequiresExistingData(t *testing.T) {
	ctx := context.Background()
	fx := newIngestFixture(t, &fakeFetcher{})

	newEnd := mustDate("2024-01-10")
	_, err := fx.svc.ExtendCoverage(ctx, fx.asset.ID, fx.source.ID, nil, &newEnd)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRefreshExistingSupersedesWholeWindow(t *testing.T) {
	ctx := context.Background()
	fx := newIngestFixture(t, &fakeFetcher{rows: priceRows("2024-01-01", 4)})

	_, err := fx.svc.Reconcile(ctx, "seed", fx.request("2024-01-01", "2024-01-04"))
	require.NoError(t, err)

	time.Sleep(time.Millisecond)
	sum, err := fx.svc.RefreshExisting(ctx, fx.asset.ID, fx.source.ID)
	require.NoError(t, err)
	require.Equal(t, 4, sum.Updated)
	require.Equal(t, 0, sum.Saved)
}

func TestRefreshExistingRequiresCoverage(t *testing.T) {
	ctx := context.Background()
	fx := newIngestFixture(t, &fakeFetcher{})

	_, err := fx.svc.RefreshExisting(ctx, fx.asset.ID, fx.source.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestEnsureDataSourceFindsThenCreates(t *testing.T) {
	ctx := context.Background()
	fx := newIngestFixture(t, &fakeFetcher{})

	// Fixture already registered a nasdaq source.
	found, err := fx.svc.EnsureDataSource(ctx, "nasdaq")
	require.NoError(t, err)
	require.Equal(t, fx.source.ID, found.ID)

	created, err := fx.svc.EnsureDataSource(ctx, "quandl")
	require.NoError(t, err)
	require.NotEqual(t, fx.source.ID, created.ID)
	require.Equal(t, "quandl", created.Provider)

	again, err := fx.svc.EnsureDataSource(ctx, "quandl")
	require.NoError(t, err)
	require.Equal(t, created.ID, again.ID)
}

func mustDate(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}
