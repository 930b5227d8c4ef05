// Package dedup suppresses duplicate visible deliveries of the same job.
// The guard is best-effort: the queue's single-pop semantics remain the
// primary defence, and delivery stays at-least-once.
package dedup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRetention is how long a job identity is remembered.
const DefaultRetention = time.Hour

// Guard decides whether a job identity should be processed. The first call
// for an identity returns true and records it; repeat calls within the
// retention window return false.
type Guard interface {
	ShouldProcess(ctx context.Context, identity string) bool
}

// dedupKey returns the key for a processed-job marker.
func dedupKey(identity string) string {
	return fmt.Sprintf("dedup:%s", identity)
}

// RedisGuard records identities in Redis with a TTL, so deduplication holds
// across concurrently scheduled worker instances.
type RedisGuard struct {
	client    *redis.Client
	retention time.Duration
}

// NewRedisGuard creates a Redis-backed guard.
func NewRedisGuard(client *redis.Client, retention time.Duration) *RedisGuard {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &RedisGuard{client: client, retention: retention}
}

// ShouldProcess returns true exactly when this call created the marker.
// On Redis errors it returns true: a duplicate post beats a dropped answer.
func (g *RedisGuard) ShouldProcess(ctx context.Context, identity string) bool {
	if identity == "" {
		return true
	}
	created, err := g.client.SetNX(ctx, dedupKey(identity), time.Now().UnixMilli(), g.retention).Result()
	if err != nil {
		return true
	}
	return created
}

// MemoryGuard is a process-local guard for single-instance runs and tests.
// It suppresses duplicates only within one process; it is not a substitute
// for the Redis guard across scaled instances.
type MemoryGuard struct {
	mu        sync.Mutex
	seen      map[string]time.Time
	retention time.Duration
	done      chan struct{}
	stopOnce  sync.Once
}

// NewMemoryGuard creates an in-memory guard.
func NewMemoryGuard(retention time.Duration) *MemoryGuard {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &MemoryGuard{
		seen:      make(map[string]time.Time),
		retention: retention,
		done:      make(chan struct{}),
	}
}

// ShouldProcess returns true on first sight of an identity within retention.
func (g *MemoryGuard) ShouldProcess(ctx context.Context, identity string) bool {
	if identity == "" {
		return true
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if first, ok := g.seen[identity]; ok && time.Since(first) < g.retention {
		return false
	}
	g.seen[identity] = time.Now()
	return true
}

// StartSweep evicts expired entries every interval to bound memory. Call
// Stop to terminate the sweeper.
func (g *MemoryGuard) StartSweep(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				g.sweep()
			case <-g.done:
				return
			}
		}
	}()
}

// Stop terminates the background sweeper.
func (g *MemoryGuard) Stop() {
	g.stopOnce.Do(func() { close(g.done) })
}

func (g *MemoryGuard) sweep() {
	g.mu.Lock()
	defer g.mu.Unlock()

	cutoff := time.Now().Add(-g.retention)
	for identity, first := range g.seen {
		if first.Before(cutoff) {
			delete(g.seen, identity)
		}
	}
}
