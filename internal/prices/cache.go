package prices

import (
	"sync"
	"time"
)

// Cached wraps a Source with a TTL cache so the report read path does not
// hit the wiki API on every request. Safe for concurrent use.
type Cached struct {
	src Source
	ttl time.Duration
	now func() time.Time

	mu        sync.Mutex
	prices    map[int64]int64
	fetchedAt time.Time
}

var _ Source = (*Cached)(nil)

// NewCached creates a TTL cache in front of src.
func NewCached(src Source, ttl time.Duration) *Cached {
	return &Cached{src: src, ttl: ttl, now: time.Now}
}

// SellPrices returns the cached prices when fresh, otherwise refetches.
// A failed refetch does not evict a previously cached result; the error
// is only returned when there is nothing cached to fall back on.
func (c *Cached) SellPrices() (map[int64]int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.prices != nil && c.now().Sub(c.fetchedAt) < c.ttl {
		return c.prices, nil
	}

	prices, err := c.src.SellPrices()
	if err != nil {
		if c.prices != nil {
			return c.prices, nil
		}
		return nil, err
	}

	c.prices = prices
	c.fetchedAt = c.now()
	return prices, nil
}
