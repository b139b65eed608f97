package service

import (
	"context"
	"time"

	"github.com/patrueduard03/nasdaq-cassandra-dw-fin-api/internal/domain"
	"github.com/patrueduard03/nasdaq-cassandra-dw-fin-api/internal/repository"

	"go.uber.org/zap"
)

// TimeSeriesRequest scopes a time-series read. Nil bounds are unbounded.
type TimeSeriesRequest struct {
	AssetID      int
	DataSourceID int
	StartDate    *time.Time
	EndDate      *time.Time
}

// DataService is the reference-data facade the HTTP layer talks to.
type DataService interface {
	ListAssets(ctx context.Context) ([]domain.Asset, error)
	GetAsset(ctx context.Context, id int) (*domain.Asset, error)
	GetAssetIncludingDeleted(ctx context.Context, id int) (*domain.Asset, error)
	CreateAsset(ctx context.Context, payload repository.AssetPayload) (*domain.Asset, error)
	UpdateAsset(ctx context.Context, id int, payload repository.AssetPayload) (*domain.Asset, error)
	DeleteAsset(ctx context.Context, id int) error
	ResurrectAsset(ctx context.Context, id int, payload repository.AssetPayload) (*domain.Asset, error)

	ListDataSources(ctx context.Context) ([]domain.DataSource, error)
	GetDataSource(ctx context.Context, id int) (*domain.DataSource, error)
	GetDataSourceByProvider(ctx context.Context, provider string) (*domain.DataSource, error)
	CreateDataSource(ctx context.Context, payload repository.DataSourcePayload) (*domain.DataSource, error)
	UpdateDataSource(ctx context.Context, id int, payload repository.DataSourcePayload) (*domain.DataSource, error)
	DeleteDataSource(ctx context.Context, id int) error
	ResurrectDataSource(ctx context.Context, id int, payload repository.DataSourcePayload) (*domain.DataSource, error)

	// GetTimeSeries returns current non-deleted observations for the
	// scope, newest business date first. The asset must resolve live.
	GetTimeSeries(ctx context.Context, req TimeSeriesRequest) ([]domain.Data, error)
}

type dataService struct {
	assets  repository.AssetsRepository
	sources repository.DataSourcesRepository
	series  repository.TimeSeriesRepository
	log     *zap.Logger
}

var _ DataService = (*dataService)(nil)

func NewDataService(
	assets repository.AssetsRepository,
	sources repository.DataSourcesRepository,
	series repository.TimeSeriesRepository,
	log *zap.Logger,
) DataService {
	return &dataService{assets: assets, sources: sources, series: series, log: log}
}

func (s *dataService) ListAssets(ctx context.Context) ([]domain.Asset, error) {
	return s.assets.List(ctx)
}

func (s *dataService) GetAsset(ctx context.Context, id int) (*domain.Asset, error) {
	return s.assets.Get(ctx, id)
}

func (s *dataService) GetAssetIncludingDeleted(ctx context.Context, id int) (*domain.Asset, error) {
	return s.assets.GetIncludingDeleted(ctx, id)
}

func (s *dataService) CreateAsset(ctx context.Context, payload repository.AssetPayload) (*domain.Asset, error) {
	return s.assets.Create(ctx, payload)
}

func (s *dataService) UpdateAsset(ctx context.Context, id int, payload repository.AssetPayload) (*domain.Asset, error) {
	return s.assets.Update(ctx, id, payload)
}

func (s *dataService) DeleteAsset(ctx context.Context, id int) error {
	return s.assets.MarkDeleted(ctx, id)
}

func (s *dataService) ResurrectAsset(ctx context.Context, id int, payload repository.AssetPayload) (*domain.Asset, error) {
	return s.assets.Resurrect(ctx, id, payload)
}

func (s *dataService) ListDataSources(ctx context.Context) ([]domain.DataSource, error) {
	return s.sources.List(ctx)
}

func (s *dataService) GetDataSource(ctx context.Context, id int) (*domain.DataSource, error) {
	return s.sources.Get(ctx, id)
}

func (s *dataService) GetDataSourceByProvider(ctx context.Context, provider string) (*domain.DataSource, error) {
	return s.sources.ByProvider(ctx, provider)
}

func (s *dataService) CreateDataSource(ctx context.Context, payload repository.DataSourcePayload) (*domain.DataSource, error) {
	return s.sources.Create(ctx, payload)
}

func (s *dataService) UpdateDataSource(ctx context.Context, id int, payload repository.DataSourcePayload) (*domain.DataSource, error) {
	return s.sources.Update(ctx, id, payload)
}

func (s *dataService) DeleteDataSource(ctx context.Context, id int) error {
	return s.sources.MarkDeleted(ctx, id)
}

func (s *dataService) ResurrectDataSource(ctx context.Context, id int, payload repository.DataSourcePayload) (*domain.DataSource, error) {
	return s.sources.Resurrect(ctx, id, payload)
}

func (s *dataService) GetTimeSeries(ctx context.Context, req TimeSeriesRequest) ([]domain.Data, error) {
	if _, err := s.assets.Get(ctx, req.AssetID); err != nil {
		return nil, err
	}
	if _, err := s.sources.Get(ctx, req.DataSourceID); err != nil {
		return nil, err
	}
	scope := domain.SeriesScope{AssetID: req.AssetID, DataSourceID: req.DataSourceID}
	return s.series.CurrentRange(ctx, scope, req.StartDate, req.EndDate)
}
