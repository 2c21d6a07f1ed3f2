// Package ratelimit keeps one token bucket per client key.
package ratelimit

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
)

const (
	DefaultCacheSize = 10_000
	DefaultIdleTTL   = time.Hour
)

// PerKey forgets a key after it has been idle for the TTL, and drops the
// least recently seen key once the cache is full.
type PerKey struct {
	mu       sync.Mutex
	visitors *expirable.LRU[string, *rate.Limiter]
	limit    rate.Limit
	burst    int
}

func New(rps float64, burst, cacheSize int, idleTTL time.Duration) *PerKey {
	return &PerKey{
		visitors: expirable.NewLRU[string, *rate.Limiter](cacheSize, nil, idleTTL),
		limit:    rate.Limit(rps),
		burst:    burst,
	}
}

func (p *PerKey) Allow(key string) bool {
	p.mu.Lock()
	l, ok := p.visitors.Get(key)
	if !ok {
		l = rate.NewLimiter(p.limit, p.burst)
	}
	// re-adding refreshes the idle deadline
	p.visitors.Add(key, l)
	p.mu.Unlock()

	return l.Allow()
}
