package store

import (
	"context"
	"sync"
	"time"

	"github.com/patrueduard03/nasdaq-cassandra-dw-fin-api/internal/domain"
)

// NewMemoryStores returns in-memory adapters with the same upsert-by-key
// semantics as the Cassandra ones. They back the temporal-engine tests and
// DB-less operation.
func NewMemoryStores() Stores {
	return Stores{
		Assets:      NewMemoryAssetStore(),
		DataSources: NewMemoryDataSourceStore(),
		Data:        NewMemoryDataStore(),
	}
}

// MemoryAssetStore keeps asset version rows in a map keyed like the asset
// table: (id, valid_from).
type MemoryAssetStore struct {
	mu   sync.RWMutex
	rows map[int]map[int64]domain.Asset // id -> valid_from (unixnano) -> row
}

var _ AssetStore = (*MemoryAssetStore)(nil)

func NewMemoryAssetStore() *MemoryAssetStore {
	return &MemoryAssetStore{rows: map[int]map[int64]domain.Asset{}}
}

func (s *MemoryAssetStore) Append(_ context.Context, row domain.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	versions, ok := s.rows[row.ID]
	if !ok {
		versions = map[int64]domain.Asset{}
		s.rows[row.ID] = versions
	}
	versions[row.Validity.From.UnixNano()] = row
	return nil
}

func (s *MemoryAssetStore) Versions(_ context.Context, id int) ([]domain.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Asset, 0, len(s.rows[id]))
	for _, row := range s.rows[id] {
		out = append(out, row)
	}
	return out, nil
}

func (s *MemoryAssetStore) ScanAll(_ context.Context) ([]domain.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Asset
	for _, versions := range s.rows {
		for _, row := range versions {
			out = append(out, row)
		}
	}
	return out, nil
}

func (s *MemoryAssetStore) MaxID(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	max := 0
	for id := range s.rows {
		if id > max {
			max = id
		}
	}
	return max, nil
}

// MemoryDataSourceStore keeps data-source version rows keyed by (id, valid_from).
type MemoryDataSourceStore struct {
	mu   sync.RWMutex
	rows map[int]map[int64]domain.DataSource
}

var _ DataSourceStore = (*MemoryDataSourceStore)(nil)

func NewMemoryDataSourceStore() *MemoryDataSourceStore {
	return &MemoryDataSourceStore{rows: map[int]map[int64]domain.DataSource{}}
}

func (s *MemoryDataSourceStore) Append(_ context.Context, row domain.DataSource) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	versions, ok := s.rows[row.ID]
	if !ok {
		versions = map[int64]domain.DataSource{}
		s.rows[row.ID] = versions
	}
	versions[row.Validity.From.UnixNano()] = row
	return nil
}

func (s *MemoryDataSourceStore) Versions(_ context.Context, id int) ([]domain.DataSource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.DataSource, 0, len(s.rows[id]))
	for _, row := range s.rows[id] {
		out = append(out, row)
	}
	return out, nil
}

func (s *MemoryDataSourceStore) ScanAll(_ context.Context) ([]domain.DataSource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.DataSource
	for _, versions := range s.rows {
		for _, row := range versions {
			out = append(out, row)
		}
	}
	return out, nil
}

func (s *MemoryDataSourceStore) MaxID(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	max := 0
	for id := range s.rows {
		if id > max {
			max = id
		}
	}
	return max, nil
}

type memoryDataKey struct {
	businessDate int64 // unix day
	systemDate   int64 // unixnano
}

// MemoryDataStore keeps time-series version rows keyed like the data
// table: partition (scope), row (business_date, system_date).
type MemoryDataStore struct {
	mu   sync.RWMutex
	rows map[domain.SeriesScope]map[memoryDataKey]domain.Data
}

var _ DataStore = (*MemoryDataStore)(nil)

func NewMemoryDataStore() *MemoryDataStore {
	return &MemoryDataStore{rows: map[domain.SeriesScope]map[memoryDataKey]domain.Data{}}
}

func (s *MemoryDataStore) Append(_ context.Context, row domain.Data) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.append(row)
	return nil
}

func (s *MemoryDataStore) AppendBatch(_ context.Context, rows []domain.Data) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range rows {
		s.append(row)
	}
	return nil
}

func (s *MemoryDataStore) append(row domain.Data) {
	scope := row.Scope()
	partition, ok := s.rows[scope]
	if !ok {
		partition = map[memoryDataKey]domain.Data{}
		s.rows[scope] = partition
	}
	partition[memoryDataKey{
		businessDate: row.BusinessDate.Unix() / 86400,
		systemDate:   row.SystemDate.UnixNano(),
	}] = row
}

func (s *MemoryDataStore) ScanRange(_ context.Context, scope domain.SeriesScope, start, end *time.Time) ([]domain.Data, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Data
	for _, row := range s.rows[scope] {
		if start != nil && row.BusinessDate.Before(domain.BusinessDay(*start)) {
			continue
		}
		if end != nil && row.BusinessDate.After(domain.BusinessDay(*end)) {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

func (s *MemoryDataStore) ScanAsset(_ context.Context, assetID int) ([]domain.Data, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Data
	for scope, partition := range s.rows {
		if scope.AssetID != assetID {
			continue
		}
		for _, row := range partition {
			out = append(out, row)
		}
	}
	return out, nil
}

func (s *MemoryDataStore) ScanAll(_ context.Context) ([]domain.Data, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Data
	for _, partition := range s.rows {
		for _, row := range partition {
			out = append(out, row)
		}
	}
	return out, nil
}
