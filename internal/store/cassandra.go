package store

import (
	"context"
	"time"

	"github.com/patrueduard03/nasdaq-cassandra-dw-fin-api/internal/domain"

	"github.com/gocql/gocql"
)

// CassandraConfig holds connection parameters for the backing cluster.
type CassandraConfig struct {
	Hosts    []string
	Port     int
	Keyspace string
	Username string
	Password string
	Timeout  time.Duration
}

// NewCassandraSession connects to the cluster. The session pools
// connections internally and is safe for concurrent reads and appends.
func NewCassandraSession(cfg CassandraConfig) (*gocql.Session, error) {
	cluster := gocql.NewCluster(cfg.Hosts...)
	if cfg.Port > 0 {
		cluster.Port = cfg.Port
	}
	cluster.Keyspace = cfg.Keyspace
	cluster.Consistency = gocql.Quorum
	if cfg.Timeout > 0 {
		cluster.Timeout = cfg.Timeout
		cluster.ConnectTimeout = cfg.Timeout
	}
	if cfg.Username != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: cfg.Username,
			Password: cfg.Password,
		}
	}
	return cluster.CreateSession()
}

// NewCassandraStores builds the three adapters over one session.
func NewCassandraStores(sess *gocql.Session) Stores {
	return Stores{
		Assets:      &CassandraAssetStore{sess: sess},
		DataSources: &CassandraDataSourceStore{sess: sess},
		Data:        &CassandraDataStore{sess: sess},
	}
}

const (
	insertAssetCQL = `INSERT INTO asset (id, name, description, system_date, is_deleted, valid_from, valid_to, attributes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	selectAssetCQL = `SELECT id, name, description, system_date, is_deleted, valid_from, valid_to, attributes FROM asset`

	insertDataSourceCQL = `INSERT INTO data_source (id, name, description, system_date, provider, attributes, is_deleted, valid_from, valid_to)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	selectDataSourceCQL = `SELECT id, name, description, system_date, provider, attributes, is_deleted, valid_from, valid_to FROM data_source`

	insertDataCQL = `INSERT INTO data (asset_id, data_source_id, business_date, system_date, values_double, values_int, values_text, is_deleted, valid_from, valid_to)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	selectDataCQL = `SELECT asset_id, data_source_id, business_date, system_date, values_double, values_int, values_text, is_deleted, valid_from, valid_to FROM data`
)

// CassandraAssetStore is the asset adapter over the asset table.
type CassandraAssetStore struct {
	sess *gocql.Session
}

var _ AssetStore = (*CassandraAssetStore)(nil)

func (s *CassandraAssetStore) Append(ctx context.Context, row domain.Asset) error {
	err := s.sess.Query(insertAssetCQL,
		row.ID, row.Name, row.Description, row.SystemDate, row.Deleted,
		row.Validity.From, row.Validity.StorageValidTo(), row.Attributes,
	).WithContext(ctx).Exec()
	if err != nil {
		return storeErr("append asset version", err)
	}
	return nil
}

func (s *CassandraAssetStore) Versions(ctx context.Context, id int) ([]domain.Asset, error) {
	return s.scan(ctx, selectAssetCQL+` WHERE id = ?`, id)
}

func (s *CassandraAssetStore) ScanAll(ctx context.Context) ([]domain.Asset, error) {
	return s.scan(ctx, selectAssetCQL)
}

func (s *CassandraAssetStore) MaxID(ctx context.Context) (int, error) {
	var max int
	if err := s.sess.Query(`SELECT MAX(id) FROM asset`).WithContext(ctx).Scan(&max); err != nil {
		return 0, storeErr("max asset id", err)
	}
	return max, nil
}

func (s *CassandraAssetStore) scan(ctx context.Context, cql string, args ...interface{}) ([]domain.Asset, error) {
	iter := s.sess.Query(cql, args...).WithContext(ctx).Iter()
	var rows []domain.Asset
	var (
		row     domain.Asset
		validTo time.Time
	)
	for iter.Scan(&row.ID, &row.Name, &row.Description, &row.SystemDate, &row.Deleted,
		&row.Validity.From, &validTo, &row.Attributes) {
		row.Validity.To = domain.NormalizeValidTo(validTo)
		rows = append(rows, row)
		row = domain.Asset{}
	}
	if err := iter.Close(); err != nil {
		return nil, storeErr("scan asset versions", err)
	}
	return rows, nil
}

// CassandraDataSourceStore is the data-source adapter over the data_source table.
type CassandraDataSourceStore struct {
	sess *gocql.Session
}

var _ DataSourceStore = (*CassandraDataSourceStore)(nil)

func (s *CassandraDataSourceStore) Append(ctx context.Context, row domain.DataSource) error {
	err := s.sess.Query(insertDataSourceCQL,
		row.ID, row.Name, row.Description, row.SystemDate, row.Provider,
		row.Attributes, row.Deleted, row.Validity.From, row.Validity.StorageValidTo(),
	).WithContext(ctx).Exec()
	if err != nil {
		return storeErr("append data source version", err)
	}
	return nil
}

func (s *CassandraDataSourceStore) Versions(ctx context.Context, id int) ([]domain.DataSource, error) {
	return s.scan(ctx, selectDataSourceCQL+` WHERE id = ?`, id)
}

func (s *CassandraDataSourceStore) ScanAll(ctx context.Context) ([]domain.DataSource, error) {
	return s.scan(ctx, selectDataSourceCQL)
}

func (s *CassandraDataSourceStore) MaxID(ctx context.Context) (int, error) {
	var max int
	if err := s.sess.Query(`SELECT MAX(id) FROM data_source`).WithContext(ctx).Scan(&max); err != nil {
		return 0, storeErr("max data source id", err)
	}
	return max, nil
}

func (s *CassandraDataSourceStore) scan(ctx context.Context, cql string, args ...interface{}) ([]domain.DataSource, error) {
	iter := s.sess.Query(cql, args...).WithContext(ctx).Iter()
	var rows []domain.DataSource
	var (
		row     domain.DataSource
		validTo time.Time
	)
	for iter.Scan(&row.ID, &row.Name, &row.Description, &row.SystemDate, &row.Provider,
		&row.Attributes, &row.Deleted, &row.Validity.From, &validTo) {
		row.Validity.To = domain.NormalizeValidTo(validTo)
		rows = append(rows, row)
		row = domain.DataSource{}
	}
	if err := iter.Close(); err != nil {
		return nil, storeErr("scan data source versions", err)
	}
	return rows, nil
}

// CassandraDataStore is the time-series adapter over the data table.
type CassandraDataStore struct {
	sess *gocql.Session
}

var _ DataStore = (*CassandraDataStore)(nil)

func (s *CassandraDataStore) Append(ctx context.Context, row domain.Data) error {
	err := s.sess.Query(insertDataCQL, dataArgs(row)...).WithContext(ctx).Exec()
	if err != nil {
		return storeErr("append data version", err)
	}
	return nil
}

func (s *CassandraDataStore) AppendBatch(ctx context.Context, rows []domain.Data) error {
	if len(rows) == 0 {
		return nil
	}
	// Unlogged: every row targets the same handful of partitions and the
	// caller owns the per-row fallback on failure.
	batch := s.sess.NewBatch(gocql.UnloggedBatch).WithContext(ctx)
	for _, row := range rows {
		batch.Query(insertDataCQL, dataArgs(row)...)
	}
	if err := s.sess.ExecuteBatch(batch); err != nil {
		return storeErr("append data batch", err)
	}
	return nil
}

func (s *CassandraDataStore) ScanRange(ctx context.Context, scope domain.SeriesScope, start, end *time.Time) ([]domain.Data, error) {
	cql := selectDataCQL + ` WHERE asset_id = ? AND data_source_id = ?`
	args := []interface{}{scope.AssetID, scope.DataSourceID}
	if start != nil {
		cql += ` AND business_date >= ?`
		args = append(args, *start)
	}
	if end != nil {
		cql += ` AND business_date <= ?`
		args = append(args, *end)
	}
	return s.scan(ctx, cql, args...)
}

func (s *CassandraDataStore) ScanAsset(ctx context.Context, assetID int) ([]domain.Data, error) {
	return s.scan(ctx, selectDataCQL+` WHERE asset_id = ? ALLOW FILTERING`, assetID)
}

func (s *CassandraDataStore) ScanAll(ctx context.Context) ([]domain.Data, error) {
	return s.scan(ctx, selectDataCQL)
}

func (s *CassandraDataStore) scan(ctx context.Context, cql string, args ...interface{}) ([]domain.Data, error) {
	iter := s.sess.Query(cql, args...).WithContext(ctx).Iter()
	var rows []domain.Data
	var (
		row     domain.Data
		bd      time.Time
		validTo time.Time
	)
	for iter.Scan(&row.AssetID, &row.DataSourceID, &bd, &row.SystemDate,
		&row.ValuesDouble, &row.ValuesInt, &row.ValuesText,
		&row.Deleted, &row.Validity.From, &validTo) {
		row.BusinessDate = domain.BusinessDay(bd)
		row.Validity.To = domain.NormalizeValidTo(validTo)
		rows = append(rows, row)
		row = domain.Data{}
	}
	if err := iter.Close(); err != nil {
		return nil, storeErr("scan data versions", err)
	}
	return rows, nil
}

func dataArgs(row domain.Data) []interface{} {
	return []interface{}{
		row.AssetID, row.DataSourceID, row.BusinessDate, row.SystemDate,
		row.ValuesDouble, row.ValuesInt, row.ValuesText,
		row.Deleted, row.Validity.From, row.Validity.StorageValidTo(),
	}
}
