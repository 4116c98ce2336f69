package fx

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"moneyfolio/internal/models"
	"moneyfolio/internal/quote"
)

func TestRateCachedWithinTTL(t *testing.T) {
	calls := 0
	provider := quote.Func(func(ctx context.Context, ticker string) (models.Quote, error) {
		calls++
		assert.Equal(t, "USDJPY=X", ticker)
		return models.Quote{Ticker: ticker, Price: decimal.RequireFromString("147.5")}, nil
	})
	s := NewSource(provider, logrus.New(), DefaultTTL)

	r1 := s.Rate(context.Background())
	r2 := s.Rate(context.Background())
	assert.Equal(t, 1, calls, "second read within the TTL must not refetch")
	assert.True(t, r1.Equal(decimal.RequireFromString("147.5")))
	assert.True(t, r2.Equal(r1))
}

func TestRateRefetchesAfterTTL(t *testing.T) {
	calls := 0
	provider := quote.Func(func(ctx context.Context, ticker string) (models.Quote, error) {
		calls++
		return models.Quote{Ticker: ticker, Price: decimal.NewFromInt(int64(140 + calls))}, nil
	})
	s := NewSource(provider, logrus.New(), DefaultTTL)
	now := time.Now()
	s.now = func() time.Time { return now }

	first := s.Rate(context.Background())
	s.now = func() time.Time { return now.Add(DefaultTTL + time.Second) }
	second := s.Rate(context.Background())

	assert.Equal(t, 2, calls)
	assert.True(t, first.Equal(decimal.NewFromInt(141)))
	assert.True(t, second.Equal(decimal.NewFromInt(142)))
}

func TestRateFallsBackToDefault(t *testing.T) {
	provider := quote.Func(func(ctx context.Context, ticker string) (models.Quote, error) {
		return models.Quote{}, errors.New("network down")
	})
	s := NewSource(provider, logrus.New(), DefaultTTL)
	assert.True(t, s.Rate(context.Background()).Equal(FallbackRate))
}

func TestRateServesStaleOnFailure(t *testing.T) {
	healthy := true
	provider := quote.Func(func(ctx context.Context, ticker string) (models.Quote, error) {
		if !healthy {
			return models.Quote{}, errors.New("rate limited")
		}
		return models.Quote{Ticker: ticker, Price: decimal.RequireFromString("151.2")}, nil
	})
	s := NewSource(provider, logrus.New(), DefaultTTL)
	now := time.Now()
	s.now = func() time.Time { return now }

	s.Rate(context.Background())

	healthy = false
	s.now = func() time.Time { return now.Add(2 * DefaultTTL) }
	got := s.Rate(context.Background())
	assert.True(t, got.Equal(decimal.RequireFromString("151.2")), "stale rate preferred over default")
}

func TestRateRejectsNonPositive(t *testing.T) {
	provider := quote.Func(func(ctx context.Context, ticker string) (models.Quote, error) {
		return models.Quote{Ticker: ticker, Price: decimal.Zero}, nil
	})
	s := NewSource(provider, logrus.New(), DefaultTTL)
	assert.True(t, s.Rate(context.Background()).Equal(FallbackRate))
}
