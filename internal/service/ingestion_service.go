package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/patrueduard03/nasdaq-cassandra-dw-fin-api/internal/domain"
	"github.com/patrueduard03/nasdaq-cassandra-dw-fin-api/internal/metrics"
	"github.com/patrueduard03/nasdaq-cassandra-dw-fin-api/internal/progress"
	"github.com/patrueduard03/nasdaq-cassandra-dw-fin-api/internal/provider"
	"github.com/patrueduard03/nasdaq-cassandra-dw-fin-api/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// ingestBatchSize rows go into one grouped write.
	ingestBatchSize = 100
	// progressInterval rows between progress notifications.
	progressInterval = 100
)

// canonicalFields are the daily price columns every stored observation
// carries. A field the vendor omitted is stored as its default so rows
// stay uniform across the dataset's history.
var canonicalFields = []string{
	"open", "high", "low", "close", "volume",
	"adj_open", "adj_high", "adj_low", "adj_close", "adj_volume",
	"split_ratio",
}

// fieldDefault is the value a missing or non-finite vendor field is
// coerced to. split_ratio defaults to 1.0 (no split), everything else 0.
func fieldDefault(field string) float64 {
	if field == "split_ratio" {
		return 1.0
	}
	return 0.0
}

// IngestRequest scopes one reconciliation run.
type IngestRequest struct {
	AssetID      int
	DataSourceID int
	StartDate    time.Time
	EndDate      time.Time
	// ForceRefresh supersedes already-covered dates instead of skipping them.
	ForceRefresh bool
}

// IngestSummary is the outcome of a reconciliation run. Saved, Updated
// and Failed count committed (respectively not-committed) writes, never
// attempts.
type IngestSummary struct {
	Fetched int `json:"fetched"`
	Saved   int `json:"saved"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

func (s *IngestSummary) add(o IngestSummary) {
	s.Fetched += o.Fetched
	s.Saved += o.Saved
	s.Updated += o.Updated
	s.Skipped += o.Skipped
	s.Failed += o.Failed
}

// IngestionService reconciles vendor time series into the store.
type IngestionService interface {
	// StartSession validates the request, then runs Reconcile on a
	// background context and returns the session id immediately.
	StartSession(ctx context.Context, req IngestRequest) (string, error)

	// CancelSession stops an active session between batches; in-flight
	// grouped writes finish. Returns false for unknown or finished ids.
	CancelSession(sessionID string) bool

	// ActiveSessions lists ids of sessions still running.
	ActiveSessions() []string

	// Reconcile fetches the vendor series for the request window and
	// converges stored coverage onto it synchronously.
	Reconcile(ctx context.Context, sessionID string, req IngestRequest) (*IngestSummary, error)

	// ExtendCoverage ingests only the dates outside the existing coverage
	// period; domain.ErrNotFound when the series has no coverage yet.
	ExtendCoverage(ctx context.Context, assetID, dataSourceID int, newStart, newEnd *time.Time) (*IngestSummary, error)

	// RefreshExisting re-ingests the already-covered window with
	// ForceRefresh, superseding every covered date.
	RefreshExisting(ctx context.Context, assetID, dataSourceID int) (*IngestSummary, error)

	// EnsureDataSource returns the data source for the provider, creating
	// it when none exists.
	EnsureDataSource(ctx context.Context, providerName string) (*domain.DataSource, error)
}

type ingestionService struct {
	assets  repository.AssetsRepository
	sources repository.DataSourcesRepository
	series  repository.TimeSeriesRepository
	fetcher provider.SeriesFetcher
	sink    progress.Sink
	log     *zap.Logger

	mu       sync.Mutex
	sessions map[string]context.CancelFunc
}

var _ IngestionService = (*ingestionService)(nil)

func NewIngestionService(
	assets repository.AssetsRepository,
	sources repository.DataSourcesRepository,
	series repository.TimeSeriesRepository,
	fetcher provider.SeriesFetcher,
	sink progress.Sink,
	log *zap.Logger,
) IngestionService {
	return &ingestionService{
		assets:   assets,
		sources:  sources,
		series:   series,
		fetcher:  fetcher,
		sink:     sink,
		log:      log,
		sessions: map[string]context.CancelFunc{},
	}
}

func (s *ingestionService) StartSession(ctx context.Context, req IngestRequest) (string, error) {
	if _, _, _, err := s.resolveScope(ctx, req.AssetID, req.DataSourceID); err != nil {
		return "", err
	}

	id := uuid.NewString()
	runCtx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.sessions[id] = cancel
	s.mu.Unlock()
	metrics.SessionsStarted.Inc()

	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.sessions, id)
			s.mu.Unlock()
			cancel()
		}()
		if _, err := s.Reconcile(runCtx, id, req); err != nil {
			s.log.Error("ingestion session failed",
				zap.String("session_id", id),
				zap.Int("asset_id", req.AssetID),
				zap.Int("data_source_id", req.DataSourceID),
				zap.Error(err))
		}
	}()
	return id, nil
}

func (s *ingestionService) CancelSession(sessionID string) bool {
	s.mu.Lock()
	cancel, ok := s.sessions[sessionID]
	s.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

func (s *ingestionService) ActiveSessions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	return ids
}

func (s *ingestionService) Reconcile(ctx context.Context, sessionID string, req IngestRequest) (*IngestSummary, error) {
	asset, _, symbol, err := s.resolveScope(ctx, req.AssetID, req.DataSourceID)
	if err != nil {
		return nil, err
	}
	scope := domain.SeriesScope{AssetID: req.AssetID, DataSourceID: req.DataSourceID}

	s.notify(ctx, progress.Event{SessionID: sessionID, Stage: progress.StageFetching,
		Message: fmt.Sprintf("fetching %s", symbol)})

	rows, err := s.fetcher.FetchSeries(ctx, symbol, req.StartDate, req.EndDate)
	if err != nil {
		s.notify(ctx, progress.Event{SessionID: sessionID, Stage: progress.StageError, Message: err.Error()})
		return nil, err
	}
	summary := &IngestSummary{Fetched: len(rows)}
	if len(rows) == 0 {
		s.log.Info("no rows fetched", zap.String("session_id", sessionID), zap.String("symbol", symbol))
		s.notify(ctx, progress.Event{SessionID: sessionID, Stage: progress.StageComplete,
			Message: "no rows in requested window"})
		return summary, nil
	}

	covered, err := s.coverageSnapshot(ctx, scope, req)
	if err != nil {
		s.notify(ctx, progress.Event{SessionID: sessionID, Stage: progress.StageError, Message: err.Error()})
		return nil, err
	}

	var (
		now       = time.Now().UTC()
		seen      = map[time.Time]bool{}
		pending   []repository.SeriesMutation
		processed int
	)
	// Cancellation is honored between batches only; an in-flight grouped
	// write runs to completion on a detached context so committed counts
	// stay exact.
	writeCtx := context.WithoutCancel(ctx)

	flush := func() {
		if len(pending) == 0 {
			return
		}
		committed, err := s.series.ApplyBatch(writeCtx, pending, ingestBatchSize)
		if err != nil {
			s.log.Error("batch application failed",
				zap.String("session_id", sessionID), zap.Error(err))
		}
		for _, mut := range committed {
			if mut.Update() {
				summary.Updated++
				metrics.RowsUpdated.Inc()
			} else {
				summary.Saved++
				metrics.RowsSaved.Inc()
			}
		}
		failed := len(pending) - len(committed)
		summary.Failed += failed
		metrics.RowsFailed.Add(float64(failed))
		pending = nil
	}

	for _, row := range rows {
		if ctx.Err() != nil {
			break
		}
		processed++

		day := domain.BusinessDay(row.Date)
		switch {
		case day.IsZero() || row.Date.IsZero():
			summary.Failed++
			metrics.RowsFailed.Inc()
		case seen[day]:
			// The vendor occasionally repeats a date inside one window;
			// the first occurrence wins.
			summary.Skipped++
			metrics.RowsSkipped.Inc()
		default:
			seen[day] = true
			existing := covered[day]
			if existing != nil && !req.ForceRefresh {
				summary.Skipped++
				metrics.RowsSkipped.Inc()
				break
			}
			mut := repository.SeriesMutation{Row: buildObservation(scope, day, row.Values, now)}
			if existing != nil {
				closed := *existing
				closed.Validity = closed.Validity.Close(now)
				mut.Closes = &closed
			}
			pending = append(pending, mut)
			if len(pending) >= ingestBatchSize {
				flush()
			}
		}

		if processed%progressInterval == 0 {
			flush()
			s.notify(ctx, progress.Event{SessionID: sessionID, Stage: progress.StageProcessing,
				Processed: processed, Total: len(rows),
				Saved: summary.Saved, Updated: summary.Updated,
				Skipped: summary.Skipped, Failed: summary.Failed})
		}
	}
	flush()

	if ctx.Err() != nil {
		// Rows never reached are neither committed nor failed.
		s.log.Warn("ingestion cancelled",
			zap.String("session_id", sessionID),
			zap.Int("processed", processed), zap.Int("total", len(rows)))
		s.notify(writeCtx, progress.Event{SessionID: sessionID, Stage: progress.StageError,
			Processed: processed, Total: len(rows),
			Saved: summary.Saved, Updated: summary.Updated,
			Skipped: summary.Skipped, Failed: summary.Failed,
			Message: "session cancelled"})
		return summary, fmt.Errorf("ingest %s: %w", symbol, ctx.Err())
	}

	s.log.Info("ingestion complete",
		zap.String("session_id", sessionID),
		zap.Int("asset_id", asset.ID),
		zap.String("symbol", symbol),
		zap.Int("fetched", summary.Fetched),
		zap.Int("saved", summary.Saved),
		zap.Int("updated", summary.Updated),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed))
	s.notify(ctx, progress.Event{SessionID: sessionID, Stage: progress.StageComplete,
		Processed: processed, Total: len(rows),
		Saved: summary.Saved, Updated: summary.Updated,
		Skipped: summary.Skipped, Failed: summary.Failed})
	return summary, nil
}

func (s *ingestionService) ExtendCoverage(ctx context.Context, assetID, dataSourceID int, newStart, newEnd *time.Time) (*IngestSummary, error) {
	scope := domain.SeriesScope{AssetID: assetID, DataSourceID: dataSourceID}
	start, end, ok, err := s.series.CoveragePeriod(ctx, scope)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("series %d/%d has no coverage to extend: %w",
			assetID, dataSourceID, domain.ErrNotFound)
	}

	sessionID := uuid.NewString()
	total := &IngestSummary{}
	if newStart != nil {
		day := domain.BusinessDay(*newStart)
		if day.Before(start) {
			sum, err := s.Reconcile(ctx, sessionID, IngestRequest{
				AssetID: assetID, DataSourceID: dataSourceID,
				StartDate: day, EndDate: start.AddDate(0, 0, -1),
			})
			if err != nil {
				return nil, err
			}
			total.add(*sum)
		}
	}
	if newEnd != nil {
		day := domain.BusinessDay(*newEnd)
		if day.After(end) {
			sum, err := s.Reconcile(ctx, sessionID, IngestRequest{
				AssetID: assetID, DataSourceID: dataSourceID,
				StartDate: end.AddDate(0, 0, 1), EndDate: day,
			})
			if err != nil {
				return nil, err
			}
			total.add(*sum)
		}
	}
	return total, nil
}

func (s *ingestionService) RefreshExisting(ctx context.Context, assetID, dataSourceID int) (*IngestSummary, error) {
	scope := domain.SeriesScope{AssetID: assetID, DataSourceID: dataSourceID}
	start, end, ok, err := s.series.CoveragePeriod(ctx, scope)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("series %d/%d has no coverage to refresh: %w",
			assetID, dataSourceID, domain.ErrNotFound)
	}
	return s.Reconcile(ctx, uuid.NewString(), IngestRequest{
		AssetID: assetID, DataSourceID: dataSourceID,
		StartDate: start, EndDate: end, ForceRefresh: true,
	})
}

func (s *ingestionService) EnsureDataSource(ctx context.Context, providerName string) (*domain.DataSource, error) {
	source, err := s.sources.ByProvider(ctx, providerName)
	if err == nil {
		return source, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	s.log.Info("registering data source for provider", zap.String("provider", providerName))
	return s.sources.Create(ctx, repository.DataSourcePayload{
		Name:        fmt.Sprintf("%s Data Source", providerName),
		Description: fmt.Sprintf("Auto-registered data source for %s", providerName),
		Provider:    providerName,
	})
}

// resolveScope loads the live asset and source and checks the pair is
// ingestable: the source must be a Nasdaq-class provider and the asset
// must carry a ticker symbol.
func (s *ingestionService) resolveScope(ctx context.Context, assetID, dataSourceID int) (*domain.Asset, *domain.DataSource, string, error) {
	asset, err := s.assets.Get(ctx, assetID)
	if err != nil {
		return nil, nil, "", err
	}
	source, err := s.sources.Get(ctx, dataSourceID)
	if err != nil {
		return nil, nil, "", err
	}
	if !source.IsProvider(domain.ProviderNasdaq) {
		return nil, nil, "", fmt.Errorf("data source %d (%s) is not a nasdaq provider: %w",
			source.ID, source.Provider, domain.ErrValidation)
	}
	symbol := asset.Symbol()
	if symbol == "" {
		return nil, nil, "", fmt.Errorf("asset %d has no symbol attribute: %w",
			asset.ID, domain.ErrValidation)
	}
	return asset, source, symbol, nil
}

// coverageSnapshot returns the currently-open version per covered
// business day in the request window.
func (s *ingestionService) coverageSnapshot(ctx context.Context, scope domain.SeriesScope, req IngestRequest) (map[time.Time]*domain.Data, error) {
	start := domain.BusinessDay(req.StartDate)
	end := domain.BusinessDay(req.EndDate)
	rows, err := s.series.CurrentRange(ctx, scope, &start, &end)
	if err != nil {
		return nil, err
	}
	covered := make(map[time.Time]*domain.Data, len(rows))
	for i := range rows {
		covered[domain.BusinessDay(rows[i].BusinessDate)] = &rows[i]
	}
	return covered, nil
}

// buildObservation shapes one vendor row into a stored version: all
// canonical fields present with defaults filled in, plus any extra
// numeric columns the vendor sent.
func buildObservation(scope domain.SeriesScope, day time.Time, values map[string]float64, now time.Time) domain.Data {
	doubles := make(map[string]float64, len(values))
	for k, v := range values {
		doubles[k] = safeFloat(v, fieldDefault(k))
	}
	for _, field := range canonicalFields {
		if _, ok := doubles[field]; !ok {
			doubles[field] = fieldDefault(field)
		}
	}
	return domain.Data{
		AssetID:      scope.AssetID,
		DataSourceID: scope.DataSourceID,
		BusinessDate: day,
		SystemDate:   now,
		ValuesDouble: doubles,
		Validity:     domain.OpenSpan(now),
	}
}

// safeFloat guards against NaN and infinities the decoder let through.
func safeFloat(v, def float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return def
	}
	return v
}

func (s *ingestionService) notify(ctx context.Context, ev progress.Event) {
	if s.sink == nil {
		return
	}
	if err := s.sink.Notify(ctx, ev); err != nil {
		s.log.Warn("progress notification failed",
			zap.String("session_id", ev.SessionID),
			zap.String("stage", ev.Stage),
			zap.Error(err))
	}
}
