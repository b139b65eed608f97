package repository

import (
	"context"
	"testing"
	"time"

	"github.com/patrueduard03/nasdaq-cassandra-dw-fin-api/internal/domain"
	"github.com/patrueduard03/nasdaq-cassandra-dw-fin-api/internal/store"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newSourcesFixture(t *testing.T) *VersionedDataSourcesRepo {
	t.Helper()
	return NewVersionedDataSourcesRepo(store.NewMemoryDataSourceStore(), zap.NewNop())
}

func TestDataSourceCreateRequiresProvider(t *testing.T) {
	ctx := context.Background()
	repo := newSourcesFixture(t)

	_, err := repo.Create(ctx, DataSourcePayload{Name: "anonymous"})
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestDataSourceLifecycleAndProviderLookup(t *testing.T) {
	ctx := context.Background()
	repo := newSourcesFixture(t)

	created, err := repo.Create(ctx, DataSourcePayload{
		Name:     "Nasdaq Data Link",
		Provider: "Nasdaq Data Link",
	})
	require.NoError(t, err)
	require.Equal(t, 1, created.ID)

	// Substring, case-insensitive.
	found, err := repo.ByProvider(ctx, "nasdaq")
	require.NoError(t, err)
	require.Equal(t, created.ID, found.ID)

	_, err = repo.ByProvider(ctx, "bloomberg")
	require.ErrorIs(t, err, domain.ErrNotFound)

	time.Sleep(time.Millisecond)
	require.NoError(t, repo.MarkDeleted(ctx, created.ID))
	_, err = repo.ByProvider(ctx, "nasdaq")
	require.ErrorIs(t, err, domain.ErrNotFound)

	time.Sleep(time.Millisecond)
	revived, err := repo.Resurrect(ctx, created.ID, DataSourcePayload{})
	require.NoError(t, err)
	require.Equal(t, "Nasdaq Data Link", revived.Provider)
}
