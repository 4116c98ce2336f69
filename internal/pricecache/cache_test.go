package pricecache

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moneyfolio/internal/models"
)

func quote(ticker string, price int64) models.Quote {
	return models.Quote{Ticker: ticker, Price: decimal.NewFromInt(price), Currency: models.JPY}
}

func TestGetMissing(t *testing.T) {
	c := New(DefaultTTL)
	_, ok := c.Get("7203.T")
	assert.False(t, ok)
	_, ok = c.Stale("7203.T")
	assert.False(t, ok)
}

func TestGetFresh(t *testing.T) {
	c := New(DefaultTTL)
	c.Set("7203.T", quote("7203.T", 2500))

	got, ok := c.Get("7203.T")
	require.True(t, ok)
	assert.True(t, got.Price.Equal(decimal.NewFromInt(2500)))
}

func TestExpiredEntryStaysReachableViaStale(t *testing.T) {
	c := New(DefaultTTL)
	now := time.Now()
	c.now = func() time.Time { return now }
	c.Set("VTI", quote("VTI", 280))

	// jump past the TTL
	c.now = func() time.Time { return now.Add(DefaultTTL + time.Second) }

	_, ok := c.Get("VTI")
	assert.False(t, ok, "expired entry must not be returned as fresh")

	got, ok := c.Stale("VTI")
	require.True(t, ok, "expired entry must remain reachable for fallback")
	assert.True(t, got.Price.Equal(decimal.NewFromInt(280)))

	// and Get must not have evicted it
	s := c.Stats()
	assert.Equal(t, 1, s.Total)
	assert.Equal(t, 1, s.Expired)
}

func TestSetRefreshesTimestamp(t *testing.T) {
	c := New(DefaultTTL)
	now := time.Now()
	c.now = func() time.Time { return now }
	c.Set("AAPL", quote("AAPL", 190))

	c.now = func() time.Time { return now.Add(DefaultTTL + time.Minute) }
	c.Set("AAPL", quote("AAPL", 195))

	got, ok := c.Get("AAPL")
	require.True(t, ok)
	assert.True(t, got.Price.Equal(decimal.NewFromInt(195)))
}

func TestCleanupDropsOnlyExpired(t *testing.T) {
	c := New(DefaultTTL)
	now := time.Now()
	c.now = func() time.Time { return now }
	c.Set("OLD", quote("OLD", 1))

	c.now = func() time.Time { return now.Add(DefaultTTL + time.Second) }
	c.Set("NEW", quote("NEW", 2))

	removed := c.Cleanup()
	assert.Equal(t, 1, removed)

	_, ok := c.Stale("OLD")
	assert.False(t, ok)
	_, ok = c.Get("NEW")
	assert.True(t, ok)
}

func TestClear(t *testing.T) {
	c := New(DefaultTTL)
	c.Set("A", quote("A", 1))
	c.Set("B", quote("B", 2))
	c.Clear()
	assert.Equal(t, 0, c.Stats().Total)
}
