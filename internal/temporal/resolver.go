// Package temporal resolves the logical state of an entity from the set of
// physical version rows stored for its key. The store cannot filter on
// validity, so callers load every version of a key and resolution happens
// here. All functions are pure over their inputs and safe for concurrent
// use.
package temporal

import (
	"time"

	"github.com/patrueduard03/nasdaq-cassandra-dw-fin-api/internal/domain"

	"go.uber.org/zap"
)

// Version is one physical row of an entity's version chain.
type Version interface {
	Valid() domain.Span
	IsDeleted() bool
}

// At returns the version that was the logical truth at the given instant,
// or ok=false when the entity did not exist or was deleted at that time.
func At[V Version](rows []V, at time.Time, log *zap.Logger) (V, bool) {
	v, ok := AtAny(rows, at, log)
	if !ok || v.IsDeleted() {
		var zero V
		return zero, false
	}
	return v, true
}

// AtAny is At without the tombstone filter: a deletion marker covering the
// instant is returned as-is. Callers that need to inspect "currently
// absent" state (resurrection, audit) use this variant.
func AtAny[V Version](rows []V, at time.Time, log *zap.Logger) (V, bool) {
	var (
		best     V
		found    bool
		covering int
	)
	for _, v := range rows {
		if !v.Valid().Covers(at) {
			continue
		}
		covering++
		if !found || v.Valid().From.After(best.Valid().From) {
			best = v
			found = true
		}
	}
	if covering > 1 && log != nil {
		// Interval overlap means a writer's close append was lost or raced.
		// The max-valid_from tie-break keeps reads deterministic.
		log.Warn("overlapping version intervals for one logical key",
			zap.Time("at", at),
			zap.Int("covering_versions", covering),
			zap.Time("selected_valid_from", best.Valid().From))
	}
	return best, found
}

// Current resolves the entity's present state, skipping tombstones.
func Current[V Version](rows []V, log *zap.Logger) (V, bool) {
	return At(rows, time.Now(), log)
}

// CurrentAny resolves the present state including tombstones.
func CurrentAny[V Version](rows []V, log *zap.Logger) (V, bool) {
	return AtAny(rows, time.Now(), log)
}
