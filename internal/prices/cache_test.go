package prices

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type countingSource struct {
	prices map[int64]int64
	err    error
	calls  int
}

func (s *countingSource) SellPrices() (map[int64]int64, error) {
	s.calls++
	return s.prices, s.err
}

func TestCached_ServesWithinTTL(t *testing.T) {
	src := &countingSource{prices: map[int64]int64{4151: 1480000}}
	cached := NewCached(src, time.Minute)

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	cached.now = func() time.Time { return now }

	first, err := cached.SellPrices()
	assert.NoError(t, err)
	assert.Equal(t, int64(1480000), first[4151])
	assert.Equal(t, 1, src.calls)

	// A second read inside the TTL does not hit the upstream.
	now = now.Add(30 * time.Second)
	_, err = cached.SellPrices()
	assert.NoError(t, err)
	assert.Equal(t, 1, src.calls)

	// Past the TTL it refetches.
	now = now.Add(time.Minute)
	_, err = cached.SellPrices()
	assert.NoError(t, err)
	assert.Equal(t, 2, src.calls)
}

func TestCached_KeepsStaleResultOnRefetchFailure(t *testing.T) {
	src := &countingSource{prices: map[int64]int64{4151: 1480000}}
	cached := NewCached(src, time.Minute)

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	cached.now = func() time.Time { return now }

	_, err := cached.SellPrices()
	assert.NoError(t, err)

	src.err = errors.New("wiki down")
	now = now.Add(2 * time.Minute)

	stale, err := cached.SellPrices()
	assert.NoError(t, err)
	assert.Equal(t, int64(1480000), stale[4151])
}

func TestCached_PropagatesErrorWithNothingCached(t *testing.T) {
	src := &countingSource{err: errors.New("wiki down")}
	cached := NewCached(src, time.Minute)

	_, err := cached.SellPrices()
	assert.Error(t, err)
}
