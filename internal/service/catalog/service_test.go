package catalog

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"DataPull/internal/domain/models"
	"DataPull/internal/domain/repository/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type slowSource struct {
	calls atomic.Int32
	delay time.Duration
	err   error
}

func (s *slowSource) FetchCatalog(ctx context.Context) (*models.Catalog, error) {
	s.calls.Add(1)
	time.Sleep(s.delay)
	if s.err != nil {
		return nil, s.err
	}
	c := models.NewCatalog("")
	c.Tickers.Add("BTC", "ETH")
	return c, nil
}

type memStore struct {
	mu     sync.Mutex
	saved  map[models.Vendor]*models.Catalog
	locked bool
}

func newMemStore() *memStore { return &memStore{saved: map[models.Vendor]*models.Catalog{}} }

func (m *memStore) Load(_ context.Context, v models.Vendor) (*models.Catalog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saved[v], nil
}

func (m *memStore) Save(_ context.Context, c *models.Catalog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved[c.Vendor] = c
	return nil
}

func (m *memStore) Lock(context.Context, models.Vendor) (bool, func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locked {
		return false, nil, nil
	}
	m.locked = true
	return true, func() {
		m.mu.Lock()
		m.locked = false
		m.mu.Unlock()
	}, nil
}

func TestGetPopulatesOnceUnderConcurrency(t *testing.T) {
	src := &slowSource{delay: 50 * time.Millisecond}
	svc := New(models.VendorCoinMetrics, src)

	var wg sync.WaitGroup
	results := make([]*models.Catalog, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := svc.Get(context.Background())
			assert.NoError(t, err)
			results[i] = c
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), src.calls.Load())
	for _, c := range results {
		assert.Same(t, results[0], c)
	}
	assert.Equal(t, models.VendorCoinMetrics, results[0].Vendor)
	assert.False(t, results[0].FetchedAt.IsZero())
}

func TestGetRetriesAfterFailure(t *testing.T) {
	src := &slowSource{err: errors.New("boom")}
	svc := New(models.VendorCCXT, src)

	_, err := svc.Get(context.Background())
	require.Error(t, err)
	_, ok := svc.Cached()
	assert.False(t, ok)

	src.err = nil
	c, err := svc.Get(context.Background())
	require.NoError(t, err)
	assert.True(t, c.HasTicker("BTC"))
	assert.Equal(t, int32(2), src.calls.Load())
}

func TestGetCallerCancelDoesNotPoisonOthers(t *testing.T) {
	src := &slowSource{delay: 60 * time.Millisecond}
	svc := New(models.VendorCCXT, src)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err := svc.Get(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	c, err := svc.Get(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, c)
	assert.Equal(t, int32(1), src.calls.Load())
}

func TestGetWarmStartsFromStore(t *testing.T) {
	ctrl := gomock.NewController(t)
	src := mocks.NewMockCapabilitySource(ctrl)
	src.EXPECT().FetchCatalog(gomock.Any()).Times(0)

	store := newMemStore()
	stored := models.NewCatalog(models.VendorWarehouse)
	stored.Tickers.Add("AAPL")
	require.NoError(t, store.Save(context.Background(), stored))

	svc := New(models.VendorWarehouse, src, WithStore(store))
	c, err := svc.Get(context.Background())
	require.NoError(t, err)
	assert.True(t, c.HasTicker("AAPL"))
}

func TestPopulateSavesToStore(t *testing.T) {
	store := newMemStore()
	svc := New(models.VendorCoinMetrics, &slowSource{}, WithStore(store))

	_, err := svc.Get(context.Background())
	require.NoError(t, err)

	saved, _ := store.Load(context.Background(), models.VendorCoinMetrics)
	require.NotNil(t, saved)
	assert.True(t, saved.HasTicker("ETH"))
}

func TestRefreshReplacesCatalog(t *testing.T) {
	src := &slowSource{}
	store := newMemStore()
	svc := New(models.VendorCoinMetrics, src, WithStore(store))

	first, err := svc.Get(context.Background())
	require.NoError(t, err)
	second, err := svc.Refresh(context.Background())
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	cur, _ := svc.Cached()
	assert.Same(t, second, cur)
	assert.Equal(t, int32(2), src.calls.Load())
	assert.False(t, store.locked, "lock released")
}

func TestRefreshSkippedWhenLocked(t *testing.T) {
	src := &slowSource{}
	store := newMemStore()
	store.locked = true
	svc := New(models.VendorCoinMetrics, src, WithStore(store))

	_, err := svc.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), src.calls.Load(), "falls back to a normal Get")
}
