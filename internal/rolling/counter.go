// Package rolling maintains per-(profile, event-name) time-bucketed event
// counts and answers windowed count queries.
package rolling

import (
	"context"
	"sync"
	"time"

	"github.com/Sumatoshi-tech/streamcdp/internal/clock"
)

const (
	// DefaultBucketSize is the bucket alignment width.
	DefaultBucketSize = time.Minute

	// DefaultWindow is the retention window; buckets older than this are
	// evicted and ignored by queries.
	DefaultWindow = 24 * time.Hour

	// appendsPerEviction triggers an opportunistic eviction pass for a series
	// every N appends, bounding memory even without the background sweep.
	appendsPerEviction = 256
)

// key identifies one counter series.
type key struct {
	profileID string
	name      string
}

// Counter is a concurrent rolling counter. Event timestamps are floored to
// bucketSize boundaries; queries sum the buckets whose start lies inside
// [now-window, now].
type Counter struct {
	mu      sync.Mutex
	clock   clock.Clock
	bucket  time.Duration
	window  time.Duration
	series  map[key]map[int64]int64
	appends map[key]int
}

// NewCounter creates a Counter with the given bucket size and retention
// window. Non-positive values fall back to the defaults.
func NewCounter(clk clock.Clock, bucketSize, window time.Duration) *Counter {
	if bucketSize <= 0 {
		bucketSize = DefaultBucketSize
	}

	if window <= 0 {
		window = DefaultWindow
	}

	return &Counter{
		clock:   clk,
		bucket:  bucketSize,
		window:  window,
		series:  make(map[key]map[int64]int64),
		appends: make(map[key]int),
	}
}

// Append increments the bucket containing ts for (profileID, name).
func (c *Counter) Append(profileID, name string, ts time.Time) {
	k := key{profileID: profileID, name: name}
	start := ts.Truncate(c.bucket).Unix()

	c.mu.Lock()
	defer c.mu.Unlock()

	buckets, ok := c.series[k]
	if !ok {
		buckets = make(map[int64]int64)
		c.series[k] = buckets
	}

	buckets[start]++

	c.appends[k]++
	if c.appends[k]%appendsPerEviction == 0 {
		c.evictSeries(k, c.clock.Now())
	}
}

// Count sums the buckets for (profileID, name) whose start instant lies in
// [now-window, now]. The window is clamped to the retention window, so stale
// buckets never contribute even when present.
func (c *Counter) Count(profileID, name string, window time.Duration) int64 {
	if window > c.window {
		window = c.window
	}

	now := c.clock.Now()
	from := now.Add(-window).Unix()
	to := now.Unix()

	c.mu.Lock()
	defer c.mu.Unlock()

	var total int64

	for start, n := range c.series[key{profileID: profileID, name: name}] {
		if start >= from && start <= to {
			total += n
		}
	}

	return total
}

// Snapshot returns the windowed counts for every event name recorded for
// profileID.
func (c *Counter) Snapshot(profileID string, window time.Duration) map[string]int64 {
	if window > c.window {
		window = c.window
	}

	now := c.clock.Now()
	from := now.Add(-window).Unix()
	to := now.Unix()

	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]int64)

	for k, buckets := range c.series {
		if k.profileID != profileID {
			continue
		}

		var total int64

		for start, n := range buckets {
			if start >= from && start <= to {
				total += n
			}
		}

		if total > 0 {
			out[k.name] = total
		}
	}

	return out
}

// EvictOldBuckets drops buckets strictly older than now-window across all
// series and removes empty series.
func (c *Counter) EvictOldBuckets() {
	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	for k := range c.series {
		c.evictSeries(k, now)
	}
}

// Sweep runs EvictOldBuckets every interval until ctx is cancelled. It is
// meant to run on its own goroutine, outside the drain handler path.
func (c *Counter) Sweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.EvictOldBuckets()
		}
	}
}

// evictSeries drops stale buckets for one series. Caller holds c.mu.
func (c *Counter) evictSeries(k key, now time.Time) {
	cutoff := now.Add(-c.window).Unix()
	buckets := c.series[k]

	for start := range buckets {
		if start < cutoff {
			delete(buckets, start)
		}
	}

	if len(buckets) == 0 {
		delete(c.series, k)
		delete(c.appends, k)
	}
}
