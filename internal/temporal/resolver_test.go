package temporal

import (
	"testing"
	"time"

	"github.com/patrueduard03/nasdaq-cassandra-dw-fin-api/internal/domain"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func asset(id int, name string, validity domain.Span, deleted bool) domain.Asset {
	return domain.Asset{ID: id, Name: name, Deleted: deleted, Validity: validity}
}

func TestAtPicksCoveringVersion(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(24 * time.Hour)
	rows := []domain.Asset{
		asset(1, "v1", domain.Span{From: t0, To: t1}, false),
		asset(1, "v2", domain.OpenSpan(t1), false),
	}

	v, ok := At(rows, t0.Add(time.Hour), zap.NewNop())
	require.True(t, ok)
	require.Equal(t, "v1", v.Name)

	// valid_to is exclusive: at the boundary the next version owns the instant.
	v, ok = At(rows, t1, zap.NewNop())
	require.True(t, ok)
	require.Equal(t, "v2", v.Name)

	_, ok = At(rows, t0.Add(-time.Second), zap.NewNop())
	require.False(t, ok)
}

func TestAtSkipsTombstonesAtAnyReturnsThem(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := []domain.Asset{
		asset(1, "dead", domain.OpenSpan(t0), true),
	}

	_, ok := At(rows, t0.Add(time.Hour), zap.NewNop())
	require.False(t, ok)

	v, ok := AtAny(rows, t0.Add(time.Hour), zap.NewNop())
	require.True(t, ok)
	require.True(t, v.Deleted)
}

func TestOverlappingVersionsResolveToLatestFrom(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)
	// Two open versions: a close append was lost. Reads must still be
	// deterministic and prefer the later valid_from.
	rows := []domain.Asset{
		asset(1, "stale", domain.OpenSpan(t0), false),
		asset(1, "fresh", domain.OpenSpan(t1), false),
	}

	v, ok := At(rows, t1.Add(time.Hour), zap.NewNop())
	require.True(t, ok)
	require.Equal(t, "fresh", v.Name)
}

func TestCurrentIgnoresFutureVersions(t *testing.T) {
	future := time.Now().Add(time.Hour)
	rows := []domain.Asset{
		asset(1, "scheduled", domain.OpenSpan(future), false),
	}
	_, ok := Current(rows, zap.NewNop())
	require.False(t, ok)
}

func TestAtEmptyChain(t *testing.T) {
	_, ok := At[domain.Asset](nil, time.Now(), zap.NewNop())
	require.False(t, ok)
}
