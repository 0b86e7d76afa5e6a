package repository

import (
	"context"
	"testing"
	"time"

	"DataPull/internal/domain/models"
	"DataPull/pkg/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheCatalogStoreRoundTrip(t *testing.T) {
	mc := cache.NewMemoryCache()
	defer mc.Close()
	store := NewCacheCatalogStore(mc, time.Hour, time.Second)
	ctx := context.Background()

	got, err := store.Load(ctx, models.VendorCoinMetrics)
	require.NoError(t, err)
	assert.Nil(t, got, "miss is not an error")

	cat := models.NewCatalog(models.VendorCoinMetrics)
	cat.Tickers.Add("btc", "eth")
	cat.Frequencies.Add("d")
	cat.FetchedAt = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.Save(ctx, cat))

	got, err = store.Load(ctx, models.VendorCoinMetrics)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.HasTicker("eth"))
	assert.True(t, got.HasFrequency(models.FreqDay))
	assert.True(t, cat.FetchedAt.Equal(got.FetchedAt))
}

func TestCacheCatalogStoreLock(t *testing.T) {
	mc := cache.NewMemoryCache()
	defer mc.Close()
	store := NewCacheCatalogStore(mc, time.Hour, time.Minute)
	ctx := context.Background()

	ok, release, err := store.Lock(ctx, models.VendorCCXT)
	require.NoError(t, err)
	require.True(t, ok)

	ok2, _, err := store.Lock(ctx, models.VendorCCXT)
	require.NoError(t, err)
	assert.False(t, ok2)

	other, releaseOther, err := store.Lock(ctx, models.VendorCoinMetrics)
	require.NoError(t, err)
	assert.True(t, other, "locks are per vendor")
	releaseOther()

	release()
	ok3, release3, err := store.Lock(ctx, models.VendorCCXT)
	require.NoError(t, err)
	assert.True(t, ok3)
	release3()
}

func TestNewCHTickReaderRejectsBadTable(t *testing.T) {
	_, err := newCHTickReader(nil, "ticks; DROP TABLE x")
	assert.Error(t, err)

	r, err := newCHTickReader(nil, "market.ticks")
	require.NoError(t, err)
	assert.Equal(t, "market.ticks", r.table)
}
