package syncer

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"moneyfolio/internal/models"
	"moneyfolio/internal/pricecache"
	"moneyfolio/internal/quote"
)

// DefaultWorkers bounds concurrent outbound quote fetches.
const DefaultWorkers = 5

// AssetStore is the persistence the syncer needs: the refreshable slice
// of the portfolio, and a per-asset price write-back.
type AssetStore interface {
	ListActiveWithTickers(ctx context.Context) ([]models.Asset, error)
	UpdatePrice(ctx context.Context, id string, upd models.PriceUpdate) error
}

// Result is the aggregate outcome of one refresh batch.
type Result struct {
	Updated int `json:"updated"`
	Failed  int `json:"failed"`
}

// Syncer refreshes current prices for every active ticker-bearing asset
// under a bounded worker pool. Outcomes are independent per asset: one
// ticker failing never aborts the batch.
type Syncer struct {
	store    AssetStore
	provider quote.Provider
	cache    *pricecache.Cache
	log      *logrus.Logger
	workers  int
}

func New(store AssetStore, provider quote.Provider, cache *pricecache.Cache, log *logrus.Logger, workers int) *Syncer {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Syncer{store: store, provider: provider, cache: cache, log: log, workers: workers}
}

// RefreshAll refreshes every non-archived asset that has a ticker and
// returns how many succeeded and how many failed. The batch runs to
// completion; a caller wanting a deadline should bound ctx and take the
// partial counts.
func (s *Syncer) RefreshAll(ctx context.Context) (Result, error) {
	assets, err := s.store.ListActiveWithTickers(ctx)
	if err != nil {
		return Result{}, err
	}
	if len(assets) == 0 {
		return Result{}, nil
	}

	jobs := make(chan models.Asset)
	var updated, failed atomic.Int64

	workers := s.workers
	if workers > len(assets) {
		workers = len(assets)
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for a := range jobs {
				if s.refreshOne(ctx, a) {
					updated.Add(1)
				} else {
					failed.Add(1)
				}
			}
		}()
	}

	for _, a := range assets {
		jobs <- a
	}
	close(jobs)
	wg.Wait()

	res := Result{Updated: int(updated.Load()), Failed: int(failed.Load())}
	s.log.Infof("price refresh done: %d updated, %d failed", res.Updated, res.Failed)
	return res, nil
}

// refreshOne resolves a quote for one asset and persists it. Resolution
// order: fresh cache entry, live fetch (written through to the cache),
// then any stale cache entry when the fetch fails.
func (s *Syncer) refreshOne(ctx context.Context, a models.Asset) bool {
	q, ok := s.cache.Get(a.Ticker)
	if !ok {
		fetched, err := s.provider.Fetch(ctx, a.Ticker)
		if err == nil && fetched.Price.Sign() <= 0 {
			err = quote.ErrNoPrice
		}
		if err != nil {
			stale, found := s.cache.Stale(a.Ticker)
			if !found {
				s.log.Warnf("refresh %s (%s): fetch failed with no cached fallback: %v", a.Ticker, a.ID, err)
				return false
			}
			s.log.Warnf("refresh %s (%s): fetch failed, using stale cache: %v", a.Ticker, a.ID, err)
			q = stale
		} else {
			q = fetched
			s.cache.Set(a.Ticker, q)
		}
	}

	upd := models.PriceUpdate{
		Price:            q.Price,
		DividendRate:     q.DividendRate,
		DividendYield:    q.DividendYield,
		NextDividendDate: q.NextDividendDate,
	}
	if err := s.store.UpdatePrice(ctx, a.ID, upd); err != nil {
		s.log.Warnf("refresh %s (%s): persist failed: %v", a.Ticker, a.ID, err)
		return false
	}
	return true
}

// Start runs RefreshAll on a fixed interval until ctx is cancelled.
func (s *Syncer) Start(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				s.log.Info("price syncer stopping")
				return
			case <-ticker.C:
				if _, err := s.RefreshAll(ctx); err != nil {
					s.log.Warnf("scheduled refresh failed: %v", err)
				}
			}
		}
	}()
}
