package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kevinms/leakybucket-go"
)

// MemoryRateLimiter is the single-process counterpart of RedisStore.Allow,
// used with the memory and postgres drivers. Each (action, limit, window)
// gets its own leaky bucket collector keyed by subject, so a full bucket
// drains at limit per window instead of resetting at a boundary.
type MemoryRateLimiter struct {
	mu         sync.Mutex
	collectors map[string]*leakybucket.Collector
}

func NewMemoryRateLimiter() *MemoryRateLimiter {
	return &MemoryRateLimiter{collectors: make(map[string]*leakybucket.Collector)}
}

func (l *MemoryRateLimiter) Allow(_ context.Context, subject, action string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 || window <= 0 {
		return false, nil
	}
	return l.collector(action, limit, window).Add(subject, 1) == 1, nil
}

func (l *MemoryRateLimiter) collector(action string, limit int, window time.Duration) *leakybucket.Collector {
	key := fmt.Sprintf("%s:%d:%s", action, limit, window)

	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.collectors[key]
	if !ok {
		c = leakybucket.NewCollector(float64(limit)/window.Seconds(), int64(limit), true)
		l.collectors[key] = c
	}
	return c
}
