package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/patrueduard03/nasdaq-cassandra-dw-fin-api/internal/domain"
	"github.com/patrueduard03/nasdaq-cassandra-dw-fin-api/internal/store"
	"github.com/patrueduard03/nasdaq-cassandra-dw-fin-api/internal/temporal"

	"go.uber.org/zap"
)

const assetCacheTTL = 5 * time.Minute

// VersionedAssetsRepo implements AssetsRepository over the versioned
// store. An optional KV keeps resolved current versions to spare the
// O(versions) partition scan on hot reads; it is dropped on every
// lifecycle append and never consulted for preconditions.
type VersionedAssetsRepo struct {
	store store.AssetStore
	cache store.KV // nil disables caching
	locks *keyMutex
	log   *zap.Logger
}

var _ AssetsRepository = (*VersionedAssetsRepo)(nil)

func NewVersionedAssetsRepo(s store.AssetStore, cache store.KV, log *zap.Logger) *VersionedAssetsRepo {
	return &VersionedAssetsRepo{store: s, cache: cache, locks: newKeyMutex(), log: log}
}

func assetCacheKey(id int) string { return fmt.Sprintf("asset:current:%d", id) }

func (r *VersionedAssetsRepo) List(ctx context.Context) ([]domain.Asset, error) {
	rows, err := r.store.ScanAll(ctx)
	if err != nil {
		return nil, err
	}
	byID := map[int][]domain.Asset{}
	for _, row := range rows {
		byID[row.ID] = append(byID[row.ID], row)
	}
	var out []domain.Asset
	for _, versions := range byID {
		if cur, ok := temporal.Current(versions, r.log); ok {
			out = append(out, cur)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *VersionedAssetsRepo) Get(ctx context.Context, id int) (*domain.Asset, error) {
	if cached := r.cacheGet(ctx, id); cached != nil {
		return cached, nil
	}
	cur, err := r.resolve(ctx, id, false)
	if err != nil {
		return nil, err
	}
	r.cacheSet(ctx, *cur)
	return cur, nil
}

func (r *VersionedAssetsRepo) GetIncludingDeleted(ctx context.Context, id int) (*domain.Asset, error) {
	return r.resolve(ctx, id, true)
}

func (r *VersionedAssetsRepo) GetAt(ctx context.Context, id int, at time.Time) (*domain.Asset, error) {
	rows, err := r.store.Versions(ctx, id)
	if err != nil {
		return nil, err
	}
	v, ok := temporal.At(rows, at, r.log)
	if !ok {
		return nil, fmt.Errorf("asset %d at %s: %w", id, at.Format(time.RFC3339), domain.ErrNotFound)
	}
	return &v, nil
}

func (r *VersionedAssetsRepo) ActiveBySymbol(ctx context.Context, symbol string) (*domain.Asset, error) {
	return r.bySymbol(ctx, symbol, false)
}

func (r *VersionedAssetsRepo) DeletedBySymbol(ctx context.Context, symbol string) (*domain.Asset, error) {
	return r.bySymbol(ctx, symbol, true)
}

func (r *VersionedAssetsRepo) Create(ctx context.Context, payload AssetPayload) (*domain.Asset, error) {
	unlock := r.locks.lock("asset:create")
	defer unlock()

	symbol := domain.Asset{Attributes: payload.Attributes}.Symbol()
	if symbol != "" {
		if active, err := r.ActiveBySymbol(ctx, symbol); err == nil {
			return nil, fmt.Errorf("asset with symbol %q already exists as id %d: %w",
				symbol, active.ID, domain.ErrConflict)
		} else if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		if dead, err := r.DeletedBySymbol(ctx, symbol); err == nil {
			r.log.Info("create redirected to resurrect: tombstoned asset carries the symbol",
				zap.String("symbol", symbol), zap.Int("asset_id", dead.ID))
			return r.Resurrect(ctx, dead.ID, payload)
		} else if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}

	maxID, err := r.store.MaxID(ctx)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	row := domain.Asset{
		ID:          maxID + 1,
		Name:        payload.Name,
		Description: payload.Description,
		Attributes:  copyAttrs(payload.Attributes),
		SystemDate:  now,
		Validity:    domain.OpenSpan(now),
	}
	if err := r.store.Append(ctx, row); err != nil {
		return nil, err
	}
	r.log.Info("asset created", zap.Int("asset_id", row.ID), zap.String("name", row.Name))
	return &row, nil
}

func (r *VersionedAssetsRepo) Update(ctx context.Context, id int, payload AssetPayload) (*domain.Asset, error) {
	unlock := r.locks.lock(assetCacheKey(id))
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
	return r.supersede(ctx, *cur, next)
}

func (r *VersionedAssetsRepo) MarkDeleted(ctx context.Context, id int) error {
	unlock := r.locks.lock(assetCacheKey(id))
	defer unlock()

	cur, err := r.resolve(ctx, id, true)
	if err != nil {
		return err
	}
	if cur.Deleted {
		return fmt.Errorf("asset %d is already deleted: %w", id, domain.ErrConflict)
	}
	tombstone := *cur
	tombstone.Deleted = true
	if _, err := r.supersede(ctx, *cur, tombstone); err != nil {
		return err
	}
	r.log.Info("asset marked deleted", zap.Int("asset_id", id))
	return nil
}

func (r *VersionedAssetsRepo) Resurrect(ctx context.Context, id int, payload AssetPayload) (*domain.Asset, error) {
	unlock := r.locks.lock(assetCacheKey(id))
	defer unlock()

	cur, err := r.resolve(ctx, id, true)
	if err != nil {
		return nil, err
	}
	if !cur.Deleted {
		return nil, fmt.Errorf("asset %d is not deleted and cannot be resurrected: %w", id, domain.ErrConflict)
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
	revived, err := r.supersede(ctx, *cur, next)
	if err != nil {
		return nil, err
	}
	r.log.Info("asset resurrected", zap.Int("asset_id", id))
	return revived, nil
}

// supersede performs the two-append close-then-insert. The pair is not
// atomic: when the second append fails the chain is left with a closed
// head and no open version, which is logged with both row identities for
// manual reconciliation and never retried blindly.
func (r *VersionedAssetsRepo) supersede(ctx context.Context, cur, next domain.Asset) (*domain.Asset, error) {
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
			zap.Int("asset_id", cur.ID),
			zap.Time("closed_valid_from", cur.Validity.From),
			zap.Time("missing_valid_from", now),
			zap.Error(err))
		return nil, err
	}
	r.cacheDel(ctx, cur.ID)
	return &next, nil
}

// resolve reads the chain fresh from the store, bypassing the cache.
func (r *VersionedAssetsRepo) resolve(ctx context.Context, id int, includeDeleted bool) (*domain.Asset, error) {
	rows, err := r.store.Versions(ctx, id)
	if err != nil {
		return nil, err
	}
	var (
		cur domain.Asset
		ok  bool
	)
	if includeDeleted {
		cur, ok = temporal.CurrentAny(rows, r.log)
	} else {
		cur, ok = temporal.Current(rows, r.log)
	}
	if !ok {
		return nil, fmt.Errorf("asset %d: %w", id, domain.ErrNotFound)
	}
	return &cur, nil
}

func (r *VersionedAssetsRepo) bySymbol(ctx context.Context, symbol string, wantDeleted bool) (*domain.Asset, error) {
	probe := domain.Asset{Attributes: map[string]string{domain.SymbolAttribute: symbol}}
	symbol = probe.Symbol()
	rows, err := r.store.ScanAll(ctx)
	if err != nil {
		return nil, err
	}
	byID := map[int][]domain.Asset{}
	for _, row := range rows {
		byID[row.ID] = append(byID[row.ID], row)
	}
	for _, versions := range byID {
		cur, ok := temporal.CurrentAny(versions, r.log)
		if !ok || cur.Symbol() != symbol {
			continue
		}
		if cur.Deleted == wantDeleted {
			return &cur, nil
		}
	}
	return nil, fmt.Errorf("asset with symbol %q (deleted=%t): %w", symbol, wantDeleted, domain.ErrNotFound)
}

func (r *VersionedAssetsRepo) cacheGet(ctx context.Context, id int) *domain.Asset {
	if r.cache == nil {
		return nil
	}
	raw, err := r.cache.Get(ctx, assetCacheKey(id))
	if err != nil {
		if !errors.Is(err, store.ErrMiss) {
			r.log.Warn("asset cache read failed", zap.Int("asset_id", id), zap.Error(err))
		}
		return nil
	}
	var a domain.Asset
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		r.log.Warn("asset cache entry malformed", zap.Int("asset_id", id), zap.Error(err))
		return nil
	}
	return &a
}

func (r *VersionedAssetsRepo) cacheSet(ctx context.Context, a domain.Asset) {
	if r.cache == nil {
		return
	}
	raw, err := json.Marshal(a)
	if err != nil {
		return
	}
	if err := r.cache.Set(ctx, assetCacheKey(a.ID), string(raw), assetCacheTTL); err != nil {
		r.log.Warn("asset cache write failed", zap.Int("asset_id", a.ID), zap.Error(err))
	}
}

func (r *VersionedAssetsRepo) cacheDel(ctx context.Context, id int) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Del(ctx, assetCacheKey(id)); err != nil {
		r.log.Warn("asset cache invalidation failed", zap.Int("asset_id", id), zap.Error(err))
	}
}

func copyAttrs(attrs map[string]string) map[string]string {
	out := make(map[string]string, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}

func mergeAttrs(old, overlay map[string]string) map[string]string {
	out := copyAttrs(old)
	for k, v := range overlay {
		out[k] = v
	}
	return out
}
