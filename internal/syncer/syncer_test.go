package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moneyfolio/internal/models"
	"moneyfolio/internal/pricecache"
	"moneyfolio/internal/quote"
)

type fakeStore struct {
	mu      sync.Mutex
	assets  []models.Asset
	updates map[string]models.PriceUpdate
	failIDs map[string]bool
}

func newFakeStore(assets ...models.Asset) *fakeStore {
	return &fakeStore{
		assets:  assets,
		updates: make(map[string]models.PriceUpdate),
		failIDs: make(map[string]bool),
	}
}

func (f *fakeStore) ListActiveWithTickers(ctx context.Context) ([]models.Asset, error) {
	return f.assets, nil
}

func (f *fakeStore) UpdatePrice(ctx context.Context, id string, upd models.PriceUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failIDs[id] {
		return errors.New("write rejected")
	}
	f.updates[id] = upd
	return nil
}

type fakeProvider struct {
	mu     sync.Mutex
	calls  map[string]int
	quotes map[string]models.Quote
	errs   map[string]error
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		calls:  make(map[string]int),
		quotes: make(map[string]models.Quote),
		errs:   make(map[string]error),
	}
}

func (f *fakeProvider) price(ticker string, price int64) {
	f.quotes[ticker] = models.Quote{Ticker: ticker, Price: decimal.NewFromInt(price), Currency: models.JPY}
}

func (f *fakeProvider) Fetch(ctx context.Context, ticker string) (models.Quote, error) {
	f.mu.Lock()
	f.calls[ticker]++
	f.mu.Unlock()
	if err, ok := f.errs[ticker]; ok {
		return models.Quote{}, err
	}
	q, ok := f.quotes[ticker]
	if !ok {
		return models.Quote{}, quote.ErrNoPrice
	}
	return q, nil
}

func (f *fakeProvider) callCount(ticker string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[ticker]
}

func asset(id, ticker string) models.Asset {
	return models.Asset{ID: id, Ticker: ticker, Type: models.TypeJPStock, Currency: models.JPY}
}

func newSyncer(store AssetStore, provider quote.Provider, cache *pricecache.Cache) *Syncer {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	return New(store, provider, cache, log, DefaultWorkers)
}

func TestRefreshAllSuccess(t *testing.T) {
	store := newFakeStore(asset("a1", "7203.T"), asset("a2", "9984.T"))
	provider := newFakeProvider()
	provider.price("7203.T", 2500)
	provider.price("9984.T", 7100)

	s := newSyncer(store, provider, pricecache.New(pricecache.DefaultTTL))
	res, err := s.RefreshAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{Updated: 2, Failed: 0}, res)
	assert.True(t, store.updates["a1"].Price.Equal(decimal.NewFromInt(2500)))
	assert.True(t, store.updates["a2"].Price.Equal(decimal.NewFromInt(7100)))
}

func TestRefreshAllEmpty(t *testing.T) {
	s := newSyncer(newFakeStore(), newFakeProvider(), pricecache.New(pricecache.DefaultTTL))
	res, err := s.RefreshAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)
}

func TestSharedTickerFetchedOnce(t *testing.T) {
	// two assets holding the same fund must share one fetch
	store := newFakeStore(asset("a1", "0331418A"), asset("a2", "0331418A"))
	provider := newFakeProvider()
	provider.price("0331418A", 21500)

	s := newSyncer(store, provider, pricecache.New(pricecache.DefaultTTL))
	res, err := s.RefreshAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{Updated: 2, Failed: 0}, res)
	assert.Equal(t, 1, provider.callCount("0331418A"))
}

func TestSecondRefreshWithinTTLHitsCache(t *testing.T) {
	store := newFakeStore(asset("a1", "VTI"))
	provider := newFakeProvider()
	provider.price("VTI", 280)

	s := newSyncer(store, provider, pricecache.New(pricecache.DefaultTTL))
	for i := 0; i < 2; i++ {
		res, err := s.RefreshAll(context.Background())
		require.NoError(t, err)
		assert.Equal(t, Result{Updated: 1, Failed: 0}, res)
	}
	assert.Equal(t, 1, provider.callCount("VTI"), "refresh within the TTL must not refetch")
}

func TestFetchFailureFallsBackToStaleCache(t *testing.T) {
	store := newFakeStore(asset("a1", "AAPL"))
	provider := newFakeProvider()
	provider.errs["AAPL"] = errors.New("rate limited")

	// tiny TTL: the entry is stale by the time the refresh runs, so Get
	// misses, the provider is consulted and fails, and Stale kicks in
	cache := pricecache.New(time.Nanosecond)
	cache.Set("AAPL", models.Quote{Ticker: "AAPL", Price: decimal.NewFromInt(190)})
	time.Sleep(time.Millisecond)

	s := newSyncer(store, provider, cache)
	res, err := s.RefreshAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{Updated: 1, Failed: 0}, res)
	assert.True(t, store.updates["a1"].Price.Equal(decimal.NewFromInt(190)), "stale price persisted")
	assert.Equal(t, 1, provider.callCount("AAPL"))
}

func TestFetchFailureWithoutCacheCountsFailed(t *testing.T) {
	store := newFakeStore(asset("a1", "FAIL1"), asset("a2", "OK1"))
	provider := newFakeProvider()
	provider.errs["FAIL1"] = errors.New("boom")
	provider.price("OK1", 100)

	s := newSyncer(store, provider, pricecache.New(pricecache.DefaultTTL))
	res, err := s.RefreshAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{Updated: 1, Failed: 1}, res)
	_, wrote := store.updates["a1"]
	assert.False(t, wrote, "failed asset must be left untouched")
}

func TestNonPositivePriceIsFailure(t *testing.T) {
	store := newFakeStore(asset("a1", "ZERO"))
	provider := newFakeProvider()
	provider.quotes["ZERO"] = models.Quote{Ticker: "ZERO", Price: decimal.Zero}

	s := newSyncer(store, provider, pricecache.New(pricecache.DefaultTTL))
	res, err := s.RefreshAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{Updated: 0, Failed: 1}, res)
}

func TestPersistFailureDoesNotBlockOthers(t *testing.T) {
	store := newFakeStore(asset("a1", "T1"), asset("a2", "T2"), asset("a3", "T3"))
	store.failIDs["a2"] = true
	provider := newFakeProvider()
	provider.price("T1", 1)
	provider.price("T2", 2)
	provider.price("T3", 3)

	s := newSyncer(store, provider, pricecache.New(pricecache.DefaultTTL))
	res, err := s.RefreshAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{Updated: 2, Failed: 1}, res)
}

func TestPartialFailureWithCachedFallbacks(t *testing.T) {
	// K of N fetches fail but all K have cache entries: updated == N
	const n = 8
	cache := pricecache.New(time.Nanosecond)
	provider := newFakeProvider()
	assets := make([]models.Asset, 0, n)
	for i := 0; i < n; i++ {
		ticker := fmt.Sprintf("S%d", i)
		assets = append(assets, asset(fmt.Sprintf("id%d", i), ticker))
		if i%2 == 0 {
			provider.errs[ticker] = errors.New("transient")
			cache.Set(ticker, models.Quote{Ticker: ticker, Price: decimal.NewFromInt(int64(i + 1))})
		} else {
			provider.price(ticker, int64(i+1))
		}
	}
	time.Sleep(time.Millisecond)

	s := newSyncer(newFakeStore(assets...), provider, cache)
	res, err := s.RefreshAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{Updated: n, Failed: 0}, res)
}

func TestConcurrencyIsBounded(t *testing.T) {
	const n = 40
	var inFlight, peak atomic.Int64
	provider := quote.Func(func(ctx context.Context, ticker string) (models.Quote, error) {
		cur := inFlight.Add(1)
		for {
			old := peak.Load()
			if cur <= old || peak.CompareAndSwap(old, cur) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return models.Quote{Ticker: ticker, Price: decimal.NewFromInt(1)}, nil
	})

	assets := make([]models.Asset, 0, n)
	for i := 0; i < n; i++ {
		assets = append(assets, asset(fmt.Sprintf("id%d", i), fmt.Sprintf("T%d", i)))
	}

	s := newSyncer(newFakeStore(assets...), provider, pricecache.New(pricecache.DefaultTTL))
	res, err := s.RefreshAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, n, res.Updated)
	assert.LessOrEqual(t, peak.Load(), int64(DefaultWorkers))
	assert.Greater(t, peak.Load(), int64(1), "work should actually run in parallel")
}

func TestListErrorPropagates(t *testing.T) {
	store := &erroringStore{}
	s := newSyncer(store, newFakeProvider(), pricecache.New(pricecache.DefaultTTL))
	_, err := s.RefreshAll(context.Background())
	assert.Error(t, err)
}

type erroringStore struct{}

func (e *erroringStore) ListActiveWithTickers(ctx context.Context) ([]models.Asset, error) {
	return nil, errors.New("db down")
}

func (e *erroringStore) UpdatePrice(ctx context.Context, id string, upd models.PriceUpdate) error {
	return nil
}
