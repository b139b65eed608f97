package repository

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/patrueduard03/nasdaq-cassandra-dw-fin-api/internal/domain"
	"github.com/patrueduard03/nasdaq-cassandra-dw-fin-api/internal/store"
	"github.com/patrueduard03/nasdaq-cassandra-dw-fin-api/internal/temporal"

	"go.uber.org/zap"
)

// VersionedDataSourcesRepo implements DataSourcesRepository over the
// versioned store.
type VersionedDataSourcesRepo struct {
	store store.DataSourceStore
	locks *keyMutex
	log   *zap.Logger
}

var _ DataSourcesRepository = (*VersionedDataSourcesRepo)(nil)

func NewVersionedDataSourcesRepo(s store.DataSourceStore, log *zap.Logger) *VersionedDataSourcesRepo {
	return &VersionedDataSourcesRepo{store: s, locks: newKeyMutex(), log: log}
}

func (r *VersionedDataSourcesRepo) List(ctx context.Context) ([]domain.DataSource, error) {
	rows, err := r.store.ScanAll(ctx)
	if err != nil {
		return nil, err
	}
	byID := map[int][]domain.DataSource{}
	for _, row := range rows {
		byID[row.ID] = append(byID[row.ID], row)
	}
	var out []domain.DataSource
	for _, versions := range byID {
		if cur, ok := temporal.Current(versions, r.log); ok {
			out = append(out, cur)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *VersionedDataSourcesRepo) Get(ctx context.Context, id int) (*domain.DataSource, error) {
	return r.resolve(ctx, id, false)
}

func (r *VersionedDataSourcesRepo) GetIncludingDeleted(ctx context.Context, id int) (*domain.DataSource, error) {
	return r.resolve(ctx, id, true)
}

func (r *VersionedDataSourcesRepo) GetAt(ctx context.Context, id int, at time.Time) (*domain.DataSource, error) {
	rows, err := r.store.Versions(ctx, id)
	if err != nil {
		return nil, err
	}
	v, ok := temporal.At(rows, at, r.log)
	if !ok {
		return nil, fmt.Errorf("data source %d at %s: %w", id, at.Format(time.RFC3339), domain.ErrNotFound)
	}
	return &v, nil
}

func (r *VersionedDataSourcesRepo) ByProvider(ctx context.Context, provider string) (*domain.DataSource, error) {
	sources, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, src := range sources {
		if src.IsProvider(provider) {
			return &src, nil
		}
	}
	return nil, fmt.Errorf("data source for provider %q: %w", provider, domain.ErrNotFound)
}

func (r *VersionedDataSourcesRepo) Create(ctx context.Context, payload DataSourcePayload) (*domain.DataSource, error) {
	unlock := r.locks.lock("data_source:create")
	defer unlock()

	if payload.Provider == "" {
		return nil, fmt.Errorf("data source provider is required: %w", domain.ErrValidation)
	}
	maxID, err := r.store.MaxID(ctx)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	row := domain.DataSource{
		ID:          maxID + 1,
		Name:        payload.Name,
		Description: payload.Description,
		Provider:    payload.Provider,
		Attributes:  copyAttrs(payload.Attributes),
		SystemDate:  now,
		Validity:    domain.OpenSpan(now),
	}
	if err := r.store.Append(ctx, row); err != nil {
		return nil, err
	}
	r.log.Info("data source created",
		zap.Int("data_source_id", row.ID), zap.String("provider", row.Provider))
	return &row, nil
}

func (r *VersionedDataSourcesRepo) Update(ctx context.Context, id int, payload DataSourcePayload) (*domain.DataSource, error) {
	unlock := r.locks.lock(dataSourceLockKey(id))
	defer unlock()

	cur, err := r.resolve(ctx, id, false)
	if err != nil {
		return nil, err
	}
	next := *cur
	next.Attributes = mergeAttrs(cur.Attributes, payload.Attributes)
	if payload.Name != "" {
		next.Name = payload.Name
	}
	if payload.Description != "" {
		next.Description = payload.Description
	}
	if payload.Provider != "" {
		next.Provider = payload.Provider
	}
	return r.supersede(ctx, *cur, next)
}

func (r *VersionedDataSourcesRepo) MarkDeleted(ctx context.Context, id int) error {
	unlock := r.locks.lock(dataSourceLockKey(id))
	defer unlock()

	cur, err := r.resolve(ctx, id, true)
	if err != nil {
		return err
	}
	if cur.Deleted {
		return fmt.Errorf("data source %d is already deleted: %w", id, domain.ErrConflict)
	}
	tombstone := *cur
	tombstone.Deleted = true
	if _, err := r.supersede(ctx, *cur, tombstone); err != nil {
		return err
	}
	r.log.Info("data source marked deleted", zap.Int("data_source_id", id))
	return nil
}

func (r *VersionedDataSourcesRepo) Resurrect(ctx context.Context, id int, payload DataSourcePayload) (*domain.DataSource, error) {
	unlock := r.locks.lock(dataSourceLockKey(id))
	defer unlock()

	cur, err := r.resolve(ctx, id, true)
	if err != nil {
		return nil, err
	}
	if !cur.Deleted {
		return nil, fmt.Errorf("data source %d is not deleted and cannot be resurrected: %w", id, domain.ErrConflict)
	}
	next := *cur
	next.Deleted = false
	next.Attributes = mergeAttrs(cur.Attributes, payload.Attributes)
	if payload.Name != "" {
		next.Name = payload.Name
	}
	if payload.Description != "" {
		next.Description = payload.Description
	}
	if payload.Provider != "" {
		next.Provider = payload.Provider
	}
	revived, err := r.supersede(ctx, *cur, next)
	if err != nil {
		return nil, err
	}
	r.log.Info("data source resurrected", zap.Int("data_source_id", id))
	return revived, nil
}

func (r *VersionedDataSourcesRepo) supersede(ctx context.Context, cur, next domain.DataSource) (*domain.DataSource, error) {
	now := time.Now().UTC()
	closed := cur
	closed.Validity = cur.Validity.Close(now)
	if err := r.store.Append(ctx, closed); err != nil {
		return nil, err
	}
	next.SystemDate = now
	next.Validity = domain.OpenSpan(now)
	if err := r.store.Append(ctx, next); err != nil {
		r.log.Error("version chain left inconsistent: close committed, insert failed",
			zap.Int("data_source_id", cur.ID),
			zap.Time("closed_valid_from", cur.Validity.From),
			zap.Time("missing_valid_from", now),
			zap.Error(err))
		return nil, err
	}
	return &next, nil
}

func (r *VersionedDataSourcesRepo) resolve(ctx context.Context, id int, includeDeleted bool) (*domain.DataSource, error) {
	rows, err := r.store.Versions(ctx, id)
	if err != nil {
		return nil, err
	}
	var (
		cur domain.DataSource
		ok  bool
	)
	if includeDeleted {
		cur, ok = temporal.CurrentAny(rows, r.log)
	} else {
		cur, ok = temporal.Current(rows, r.log)
	}
	if !ok {
		return nil, fmt.Errorf("data source %d: %w", id, domain.ErrNotFound)
	}
	return &cur, nil
}

func dataSourceLockKey(id int) string { return fmt.Sprintf("data_source:%d", id) }
