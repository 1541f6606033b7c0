package core

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChangeCacheStartsStale(t *testing.T) {
	c := NewChangeCache(RecomputeOnChange)
	assert.Equal(t, Stale, c.State())
	assert.True(t, c.ShouldRecompute(0))
}

func TestChangeCacheIdempotent(t *testing.T) {
	c := NewChangeCache(RecomputeOnChange)
	fp := Fingerprint(DefaultEarthParameters())

	c.MarkFresh(fp)
	assert.Equal(t, Fresh, c.State())
	assert.False(t, c.ShouldRecompute(fp))
	assert.False(t, c.ShouldRecompute(fp))

	c.MarkFresh(fp)
	assert.False(t, c.ShouldRecompute(fp))
	assert.True(t, c.ShouldRecompute(fp+1))
}

func TestChangeCacheInvalidate(t *testing.T) {
	c := NewChangeCache(RecomputeOnChange)
	c.MarkFresh(42)
	c.Invalidate()
	assert.Equal(t, Stale, c.State())
	assert.True(t, c.ShouldRecompute(42))
}

func TestChangeCacheAlways(t *testing.T) {
	c := NewChangeCache(RecomputeAlways)
	c.MarkFresh(7)
	assert.Equal(t, Stale, c.State())
	assert.True(t, c.ShouldRecompute(7))
	assert.Equal(t, uint64(7), c.LastFingerprint())
	assert.Equal(t, RecomputeAlways, c.Policy())
}

func TestRecomputePolicyString(t *testing.T) {
	assert.Equal(t, "on-change", RecomputeOnChange.String())
	assert.Equal(t, "always", RecomputeAlways.String())
	assert.Equal(t, "unknown", RecomputePolicy(9).String())
}

func TestChangeCacheConcurrentUse(t *testing.T) {
	c := NewChangeCache(RecomputeOnChange)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(fp uint64) {
			defer wg.Done()
			if c.ShouldRecompute(fp) {
				c.MarkFresh(fp)
			}
		}(uint64(i))
	}
	wg.Wait()
	assert.Equal(t, Fresh, c.State())
}
