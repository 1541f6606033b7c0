package core

import "sync"

type CacheState int

const (
	Stale CacheState = iota
	Fresh
)

func (s CacheState) String() string {
	if s == Fresh {
		return "fresh"
	}
	return "stale"
}

type RecomputePolicy int

const (
	// RecomputeOnChange reruns the precomputation only when the fingerprint changes.
	RecomputeOnChange RecomputePolicy = iota
	// RecomputeAlways keeps the cache stale, so every frame recomputes.
	RecomputeAlways
)

func (p RecomputePolicy) String() string {
	switch p {
	case RecomputeOnChange:
		return "on-change"
	case RecomputeAlways:
		return "always"
	}
	return "unknown"
}

// ChangeCache decides whether the tables are out of date for a parameter fingerprint.
type ChangeCache struct {
	mu     sync.Mutex
	policy RecomputePolicy
	state  CacheState
	last   uint64
}

func NewChangeCache(policy RecomputePolicy) *ChangeCache {
	return &ChangeCache{policy: policy}
}

func (c *ChangeCache) Policy() RecomputePolicy {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.policy
}

// ShouldRecompute is true when the cache is stale or fp differs from the fingerprint
// the tables were last built from. It does not change the cache.
func (c *ChangeCache) ShouldRecompute(fp uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.policy == RecomputeAlways {
		return true
	}
	return c.state == Stale || c.last != fp
}

// MarkFresh records fp as the fingerprint of the current tables.
func (c *ChangeCache) MarkFresh(fp uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = fp
	if c.policy != RecomputeAlways {
		c.state = Fresh
	}
}

func (c *ChangeCache) State() CacheState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastFingerprint is the fingerprint passed to the last MarkFresh. The tables match it
// only while the cache is Fresh, or under RecomputeAlways until the next frame.
func (c *ChangeCache) LastFingerprint() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

func (c *ChangeCache) Invalidate() {
	c.mu.Lock()
	c.state = Stale
	c.mu.Unlock()
}
