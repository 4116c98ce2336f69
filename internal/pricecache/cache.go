package pricecache

import (
	"sync"
	"time"

	"moneyfolio/internal/models"
)

// DefaultTTL is how long a cached quote is considered fresh.
const DefaultTTL = 15 * time.Minute

// Entry is one cached quote plus the time it was fetched.
type Entry struct {
	Quote     models.Quote
	FetchedAt time.Time
}

// Stats summarizes cache contents for monitoring.
type Stats struct {
	Total   int           `json:"total"`
	Fresh   int           `json:"fresh"`
	Expired int           `json:"expired"`
	TTL     time.Duration `json:"ttl"`
}

// Cache is a mutex-guarded TTL store mapping ticker to the last known
// quote. Entries are never dropped just because they expired: staleness
// only decides whether Get reports them, so the synchronizer can still
// reach old values through Stale when a live fetch fails.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]Entry
	ttl     time.Duration
	now     func() time.Time
}

func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		entries: make(map[string]Entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the cached quote for ticker if it is still fresh.
func (c *Cache) Get(ticker string) (models.Quote, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[ticker]
	if !ok || !c.fresh(e.FetchedAt) {
		return models.Quote{}, false
	}
	return e.Quote, true
}

// Stale returns the cached quote for ticker regardless of age. It is the
// fallback path for failed fetches.
func (c *Cache) Stale(ticker string) (models.Quote, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[ticker]
	if !ok {
		return models.Quote{}, false
	}
	return e.Quote, true
}

// Set stores q for ticker, stamping it with the current time.
func (c *Cache) Set(ticker string, q models.Quote) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[ticker] = Entry{Quote: q, FetchedAt: c.now()}
}

// Fresh reports whether a quote fetched at t is still within the TTL.
func (c *Cache) Fresh(t time.Time) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fresh(t)
}

func (c *Cache) fresh(t time.Time) bool {
	return c.now().Sub(t) < c.ttl
}

// Clear drops every entry. Used by tests and manual full refreshes.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]Entry)
}

// Stats returns entry counts for monitoring.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := Stats{Total: len(c.entries), TTL: c.ttl}
	for _, e := range c.entries {
		if c.fresh(e.FetchedAt) {
			s.Fresh++
		} else {
			s.Expired++
		}
	}
	return s
}

// Cleanup removes expired entries and returns how many were dropped.
// Callers that want to bound memory can run it periodically; the
// synchronizer never does, since expired entries back its stale
// fallback.
func (c *Cache) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for k, e := range c.entries {
		if !c.fresh(e.FetchedAt) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}
