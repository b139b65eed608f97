package service

import (
	"context"
	"errors"
	"time"

	"github.com/patrueduard03/nasdaq-cassandra-dw-fin-api/internal/domain"
	"github.com/patrueduard03/nasdaq-cassandra-dw-fin-api/internal/repository"

	"go.uber.org/zap"
)

// CoveragePeriod is the inclusive business-date extent of a series.
type CoveragePeriod struct {
	Start time.Time `json:"start_date"`
	End   time.Time `json:"end_date"`
}

// Availability says whether a series has any live coverage and, when it
// does, its extent and the number of covered days.
type Availability struct {
	AssetID      int             `json:"asset_id"`
	DataSourceID int             `json:"data_source_id"`
	HasData      bool            `json:"has_data"`
	Coverage     *CoveragePeriod `json:"coverage,omitempty"`
	TotalDays    int             `json:"total_days"`
}

// SeriesStatus is one row of the ingestion status report: a series with
// live coverage joined with its asset and data source metadata.
type SeriesStatus struct {
	AssetID            int            `json:"asset_id"`
	AssetName          string         `json:"asset_name"`
	AssetSymbol        string         `json:"asset_symbol"`
	DataSourceID       int            `json:"data_source_id"`
	DataSourceName     string         `json:"data_source_name"`
	DataSourceProvider string         `json:"data_source_provider"`
	Coverage           CoveragePeriod `json:"coverage"`
	TotalDays          int            `json:"total_days"`
}

// CoverageService answers "what data do we have" questions.
type CoverageService interface {
	// Period returns the coverage extent of a series; nil when the series
	// has no live rows. The asset and data source must resolve live.
	Period(ctx context.Context, assetID, dataSourceID int) (*CoveragePeriod, error)

	// Availability reports coverage without requiring any to exist.
	Availability(ctx context.Context, assetID, dataSourceID int) (*Availability, error)

	// IngestionStatus lists every series with live coverage, joined with
	// current asset and source metadata, optionally filtered. Series whose
	// asset or source no longer resolves live are skipped.
	IngestionStatus(ctx context.Context, filterAssetID, filterDataSourceID *int) ([]SeriesStatus, error)

	// CompatibleDataSources returns the live data sources an asset has
	// rows for.
	CompatibleDataSources(ctx context.Context, assetID int) ([]domain.DataSource, error)
}

type coverageService struct {
	assets  repository.AssetsRepository
	sources repository.DataSourcesRepository
	series  repository.TimeSeriesRepository
	log     *zap.Logger
}

var _ CoverageService = (*coverageService)(nil)

func NewCoverageService(
	assets repository.AssetsRepository,
	sources repository.DataSourcesRepository,
	series repository.TimeSeriesRepository,
	log *zap.Logger,
) CoverageService {
	return &coverageService{assets: assets, sources: sources, series: series, log: log}
}

func (s *coverageService) Period(ctx context.Context, assetID, dataSourceID int) (*CoveragePeriod, error) {
	if err := s.checkScope(ctx, assetID, dataSourceID); err != nil {
		return nil, err
	}
	scope := domain.SeriesScope{AssetID: assetID, DataSourceID: dataSourceID}
	start, end, ok, err := s.series.CoveragePeriod(ctx, scope)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return &CoveragePeriod{Start: start, End: end}, nil
}

func (s *coverageService) Availability(ctx context.Context, assetID, dataSourceID int) (*Availability, error) {
	if err := s.checkScope(ctx, assetID, dataSourceID); err != nil {
		return nil, err
	}
	scope := domain.SeriesScope{AssetID: assetID, DataSourceID: dataSourceID}
	start, end, ok, err := s.series.CoveragePeriod(ctx, scope)
	if err != nil {
		return nil, err
	}
	av := &Availability{AssetID: assetID, DataSourceID: dataSourceID, HasData: ok}
	if !ok {
		return av, nil
	}
	rows, err := s.series.CurrentRange(ctx, scope, &start, &end)
	if err != nil {
		return nil, err
	}
	av.Coverage = &CoveragePeriod{Start: start, End: end}
	av.TotalDays = len(rows)
	return av, nil
}

func (s *coverageService) IngestionStatus(ctx context.Context, filterAssetID, filterDataSourceID *int) ([]SeriesStatus, error) {
	covered, err := s.series.AssetsWithData(ctx, filterDataSourceID)
	if err != nil {
		return nil, err
	}

	statuses := make([]SeriesStatus, 0, len(covered))
	for _, cov := range covered {
		if filterAssetID != nil && cov.Scope.AssetID != *filterAssetID {
			continue
		}
		asset, err := s.assets.Get(ctx, cov.Scope.AssetID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return nil, err
		}
		source, err := s.sources.Get(ctx, cov.Scope.DataSourceID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return nil, err
		}
		statuses = append(statuses, SeriesStatus{
			AssetID:            asset.ID,
			AssetName:          asset.Name,
			AssetSymbol:        asset.Symbol(),
			DataSourceID:       source.ID,
			DataSourceName:     source.Name,
			DataSourceProvider: source.Provider,
			Coverage:           CoveragePeriod{Start: cov.Start, End: cov.End},
			TotalDays:          cov.Days,
		})
	}
	return statuses, nil
}

func (s *coverageService) CompatibleDataSources(ctx context.Context, assetID int) ([]domain.DataSource, error) {
	if _, err := s.assets.Get(ctx, assetID); err != nil {
		return nil, err
	}
	ids, err := s.series.CompatibleDataSources(ctx, assetID)
	if err != nil {
		return nil, err
	}
	sources := make([]domain.DataSource, 0, len(ids))
	for _, id := range ids {
		source, err := s.sources.Get(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return nil, err
		}
		sources = append(sources, *source)
	}
	return sources, nil
}

func (s *coverageService) checkScope(ctx context.Context, assetID, dataSourceID int) error {
	if _, err := s.assets.Get(ctx, assetID); err != nil {
		return err
	}
	if _, err := s.sources.Get(ctx, dataSourceID); err != nil {
		return err
	}
	return nil
}
