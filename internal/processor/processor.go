// Package processor implements the event-time reordering core: per-profile
// min-heap buffers, dual watermarks, deduplication, and a ticker-driven
// in-order drain.
//
// Events arrive out-of-order with bounded lateness and with duplicates. The
// processor delivers them to the registered handler in per-profile
// non-decreasing timestamp order after a deliberate delay (the processing
// window), drops duplicates by event ID, and discards events older than the
// grace period.
package processor

import (
	"container/heap"
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/Sumatoshi-tech/streamcdp/internal/clock"
	"github.com/Sumatoshi-tech/streamcdp/internal/event"
)

// Defaults for the processor configuration.
const (
	// DefaultProcessingWindow delays delivery so late arrivals can still be
	// merged into correct order.
	DefaultProcessingWindow = 5 * time.Second

	// DefaultGracePeriod is the maximum lateness beyond which events are
	// discarded instead of buffered.
	DefaultGracePeriod = 120 * time.Second

	// DefaultDedupTTL is how long a seen event ID is remembered per profile.
	DefaultDedupTTL = 10 * time.Minute

	// DefaultDedupCapacity bounds each per-profile dedup cache; the oldest
	// entries are evicted when it fills.
	DefaultDedupCapacity = 4096

	// DefaultTickerInterval is the drain cadence.
	DefaultTickerInterval = time.Second
)

// ErrWindowExceedsGrace indicates a mis-configuration where events would be
// discarded before they become drainable.
var ErrWindowExceedsGrace = errors.New("processor: processingWindow must not exceed gracePeriod")

// Handler consumes drained events. It runs on the ticker goroutine and must
// not block indefinitely. A panicking handler is logged and the event is
// considered consumed.
type Handler func(profileID string, ev *event.Event)

// Config holds the processor tuning knobs.
type Config struct {
	ProcessingWindow time.Duration
	GracePeriod      time.Duration
	DedupTTL         time.Duration
	DedupCapacity    int
	TickerInterval   time.Duration
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		ProcessingWindow: DefaultProcessingWindow,
		GracePeriod:      DefaultGracePeriod,
		DedupTTL:         DefaultDedupTTL,
		DedupCapacity:    DefaultDedupCapacity,
		TickerInterval:   DefaultTickerInterval,
	}
}

// Validate rejects configurations that would discard events before their
// drain watermark is reached.
func (c Config) Validate() error {
	if c.ProcessingWindow > c.GracePeriod {
		return ErrWindowExceedsGrace
	}

	return nil
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()

	if c.ProcessingWindow <= 0 {
		c.ProcessingWindow = d.ProcessingWindow
	}

	if c.GracePeriod <= 0 {
		c.GracePeriod = d.GracePeriod
	}

	if c.DedupTTL <= 0 {
		c.DedupTTL = d.DedupTTL
	}

	if c.DedupCapacity <= 0 {
		c.DedupCapacity = d.DedupCapacity
	}

	if c.TickerInterval <= 0 {
		c.TickerInterval = d.TickerInterval
	}

	return c
}

// buffer holds one profile's reorder heap and dedup cache.
type buffer struct {
	mu    sync.Mutex
	heap  eventHeap
	dedup *expirable.LRU[string, struct{}]
}

// Processor buffers, reorders, deduplicates, and drains events.
type Processor struct {
	cfg     Config
	clock   clock.Clock
	handler Handler
	logger  *slog.Logger

	mu      sync.Mutex
	buffers map[string]*buffer

	stats   Stats
	stopped atomic.Bool

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a Processor delivering drained events to handler. Zero config
// fields take their defaults; an invalid configuration is rejected.
func New(cfg Config, clk clock.Clock, handler Handler, logger *slog.Logger) (*Processor, error) {
	cfg = cfg.withDefaults()

	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Processor{
		cfg:     cfg,
		clock:   clk,
		handler: handler,
		logger:  logger,
		buffers: make(map[string]*buffer),
	}, nil
}

// Stats returns the processor's operational counters.
func (p *Processor) Stats() *Stats {
	return &p.stats
}

// Submit admits ev under profileID. It never blocks and never fails:
// duplicates and too-late events are dropped and counted. Safe for
// concurrent use by many producers.
func (p *Processor) Submit(profileID string, ev *event.Event) {
	if p.stopped.Load() {
		return
	}

	buf := p.bufferFor(profileID)

	buf.mu.Lock()
	defer buf.mu.Unlock()

	if _, seen := buf.dedup.Get(ev.ID); seen {
		// Duplicates are no-ops: the seen entry's TTL is not refreshed.
		p.stats.dedupHits.Add(1)

		return
	}

	now := p.clock.Now()

	if ev.Timestamp.Before(now.Add(-p.cfg.GracePeriod)) {
		p.stats.droppedTooLate.Add(1)
		p.logger.Warn("event dropped: beyond grace period",
			"event_id", ev.ID,
			"profile_id", profileID,
			"ts", ev.Timestamp,
			"lateness", now.Sub(ev.Timestamp),
		)

		return
	}

	if ev.Timestamp.Before(now.Add(-p.cfg.ProcessingWindow)) {
		p.stats.lateAccepted.Add(1)
	}

	buf.dedup.Add(ev.ID, struct{}{})
	heap.Push(&buf.heap, ev)
	p.stats.buffered.Add(1)
}

// Tick recomputes the processing watermark and drains every profile heap up
// to it, delivering events in pop order. It is invoked by the Start ticker
// and directly by tests; it is not safe for concurrent use with itself.
func (p *Processor) Tick() {
	now := p.clock.Now()
	wproc := now.Add(-p.cfg.ProcessingWindow)

	p.mu.Lock()
	snapshot := make(map[string]*buffer, len(p.buffers))
	for id, buf := range p.buffers {
		snapshot[id] = buf
	}
	p.mu.Unlock()

	var oldestRemaining time.Time

	for profileID, buf := range snapshot {
		drained := buf.drainUpTo(wproc)

		if n := len(drained); n > 0 {
			p.stats.buffered.Add(int64(-n))
			p.stats.processed.Add(int64(n))
		}

		for _, ev := range drained {
			p.deliver(profileID, ev)
		}

		buf.mu.Lock()
		if len(buf.heap) > 0 {
			minTs := buf.heap[0].Timestamp
			if oldestRemaining.IsZero() || minTs.Before(oldestRemaining) {
				oldestRemaining = minTs
			}
		}
		buf.mu.Unlock()
	}

	lag := int64(0)
	if !oldestRemaining.IsZero() {
		// Buffered events inside the processing window (or with future
		// timestamps) are not lagging; the gauge never goes negative.
		lag = max(now.Sub(oldestRemaining).Milliseconds(), 0)
	}

	p.stats.watermarkLagMillis.Store(lag)
}

// Start launches the drain ticker goroutine. A tick happens at least every
// TickerInterval until ctx is cancelled or Stop is called.
func (p *Processor) Start(ctx context.Context) {
	p.runMu.Lock()
	defer p.runMu.Unlock()

	if p.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})

	go p.run(ctx)
}

func (p *Processor) run(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.cfg.TickerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Tick()
		}
	}
}

// Stop cancels the ticker and waits for the in-flight tick to complete.
// Idempotent; submissions after Stop are dropped.
func (p *Processor) Stop() {
	p.stopped.Store(true)

	p.runMu.Lock()
	cancel, done := p.cancel, p.done
	p.runMu.Unlock()

	if cancel == nil {
		return
	}

	cancel()
	<-done
}

// Clear stops the processor and wipes all buffered state. Test-only.
func (p *Processor) Clear() {
	p.Stop()

	p.mu.Lock()
	defer p.mu.Unlock()

	p.buffers = make(map[string]*buffer)
	p.stats.buffered.Store(0)
	p.stats.watermarkLagMillis.Store(0)
}

// bufferFor returns the buffer for profileID, creating it on first use.
func (p *Processor) bufferFor(profileID string) *buffer {
	p.mu.Lock()
	defer p.mu.Unlock()

	buf, ok := p.buffers[profileID]
	if !ok {
		buf = &buffer{
			dedup: expirable.NewLRU[string, struct{}](p.cfg.DedupCapacity, nil, p.cfg.DedupTTL),
		}
		p.buffers[profileID] = buf
	}

	return buf
}

// deliver invokes the handler, containing panics so one bad event cannot
// stall the ticker. The event counts as consumed either way.
func (p *Processor) deliver(profileID string, ev *event.Event) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("handler panicked; event consumed",
				"event_id", ev.ID,
				"profile_id", profileID,
				"panic", r,
			)
		}
	}()

	p.handler(profileID, ev)
}

// drainUpTo pops events with timestamps at or before watermark, in order.
func (b *buffer) drainUpTo(watermark time.Time) []*event.Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	var drained []*event.Event

	for len(b.heap) > 0 && !b.heap[0].Timestamp.After(watermark) {
		drained = append(drained, heap.Pop(&b.heap).(*event.Event))
	}

	return drained
}
