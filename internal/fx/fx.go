package fx

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"moneyfolio/internal/quote"
)

const (
	// rateTicker is the Yahoo Finance symbol for the USD/JPY pair.
	rateTicker = "USDJPY=X"

	// DefaultTTL is how long a fetched rate is reused before refetching.
	DefaultTTL = time.Hour
)

// FallbackRate is used when no rate can be fetched. A stale-but-real
// rate is preferred, so this only applies before the first success.
var FallbackRate = decimal.NewFromInt(150)

// Source provides the USD/JPY exchange rate, cached with its own TTL.
// It never fails: when the upstream quote is unavailable it serves the
// last known rate, or FallbackRate if there has never been one.
type Source struct {
	provider quote.Provider
	log      *logrus.Logger
	ttl      time.Duration

	mu        sync.Mutex
	rate      decimal.Decimal
	fetchedAt time.Time
	now       func() time.Time
}

func NewSource(provider quote.Provider, log *logrus.Logger, ttl time.Duration) *Source {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Source{provider: provider, log: log, ttl: ttl, now: time.Now}
}

// Rate returns the current USD/JPY rate.
func (s *Source) Rate(ctx context.Context) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.fetchedAt.IsZero() && s.now().Sub(s.fetchedAt) < s.ttl {
		return s.rate
	}

	q, err := s.provider.Fetch(ctx, rateTicker)
	if err != nil || q.Price.Sign() <= 0 {
		s.log.Warnf("usd/jpy rate fetch failed: %v", err)
		if s.rate.Sign() > 0 {
			return s.rate
		}
		return FallbackRate
	}

	s.rate = q.Price
	s.fetchedAt = s.now()
	return s.rate
}
