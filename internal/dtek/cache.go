package dtek

import (
	"sync"
	"time"

	"github.com/odanko/outagebot/internal/clock"
	"github.com/odanko/outagebot/internal/schedule"
)

// payloadCache is a short-TTL cache keyed by the exact street string, so
// subscribers sharing a street reuse one upstream query per cycle. A nil
// cache is valid and disables caching.
type payloadCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	clk     clock.Clock
	entries map[string]cacheEntry
}

type cacheEntry struct {
	payload *schedule.Payload
	expires time.Time
}

func newPayloadCache(ttl time.Duration, clk clock.Clock) *payloadCache {
	if ttl <= 0 {
		return nil
	}
	return &payloadCache{
		ttl:     ttl,
		clk:     clk,
		entries: make(map[string]cacheEntry),
	}
}

func (c *payloadCache) get(street string) (*schedule.Payload, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[street]
	if !ok {
		return nil, false
	}
	if c.clk.Now().After(entry.expires) {
		delete(c.entries, street)
		return nil, false
	}
	return entry.payload, true
}

func (c *payloadCache) put(street string, p *schedule.Payload) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[street] = cacheEntry{payload: p, expires: c.clk.Now().Add(c.ttl)}
}
