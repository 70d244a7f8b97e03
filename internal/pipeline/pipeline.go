// Package pipeline wires the CDP core together: identity resolution, the
// reordering processor, the profile store, rolling counters, and segment
// evaluation.
//
// The pipeline owns all per-profile state. Inbound producers call Submit
// concurrently; all mutations happen on the processor's single drain
// goroutine, so per-profile updates never interleave. Outbound consumers see
// copies only.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/Sumatoshi-tech/streamcdp/internal/broadcast"
	"github.com/Sumatoshi-tech/streamcdp/internal/clock"
	"github.com/Sumatoshi-tech/streamcdp/internal/event"
	"github.com/Sumatoshi-tech/streamcdp/internal/identity"
	"github.com/Sumatoshi-tech/streamcdp/internal/processor"
	"github.com/Sumatoshi-tech/streamcdp/internal/profile"
	"github.com/Sumatoshi-tech/streamcdp/internal/rolling"
	"github.com/Sumatoshi-tech/streamcdp/internal/segment"
)

const (
	// DefaultSegmentBuffer is the outbound segment-event channel capacity.
	DefaultSegmentBuffer = 1000

	// DefaultSnapshotLimit caps profile snapshot listings.
	DefaultSnapshotLimit = 20

	// DefaultSweepInterval is the cadence of the rolling-counter eviction
	// sweep, which runs outside the drain handler path.
	DefaultSweepInterval = 5 * time.Minute
)

// Config holds the pipeline's tuning knobs.
type Config struct {
	Processor     processor.Config
	Segments      segment.Config
	BucketSize    time.Duration
	RollingWindow time.Duration
	SegmentBuffer int
	SnapshotLimit int
	SweepInterval time.Duration
}

// DefaultConfig returns the documented defaults for all subsystems.
func DefaultConfig() Config {
	return Config{
		Processor:     processor.DefaultConfig(),
		Segments:      segment.DefaultConfig(),
		BucketSize:    rolling.DefaultBucketSize,
		RollingWindow: rolling.DefaultWindow,
		SegmentBuffer: DefaultSegmentBuffer,
		SnapshotLimit: DefaultSnapshotLimit,
		SweepInterval: DefaultSweepInterval,
	}
}

// Pipeline is the assembled CDP core.
type Pipeline struct {
	cfg    Config
	clock  clock.Clock
	logger *slog.Logger

	graph    *identity.Graph
	store    *profile.Store
	counter  *rolling.Counter
	segments *segment.Engine
	proc     *processor.Processor

	segmentOut *broadcast.Broadcaster[segment.Event]
	profileOut *broadcast.Broadcaster[Snapshot]
}

// New assembles a Pipeline. Zero config fields take their defaults; an
// invalid processor configuration is rejected eagerly.
func New(cfg Config, clk clock.Clock, logger *slog.Logger) (*Pipeline, error) {
	if cfg.SegmentBuffer <= 0 {
		cfg.SegmentBuffer = DefaultSegmentBuffer
	}

	if cfg.SnapshotLimit <= 0 {
		cfg.SnapshotLimit = DefaultSnapshotLimit
	}

	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}

	if cfg.Segments.PowerUserThreshold <= 0 {
		cfg.Segments.PowerUserThreshold = segment.DefaultPowerUserThreshold
	}

	if cfg.Segments.PowerUserWindow <= 0 {
		cfg.Segments.PowerUserWindow = segment.DefaultPowerUserWindow
	}

	if cfg.Segments.ReengageThreshold <= 0 {
		cfg.Segments.ReengageThreshold = segment.DefaultReengageThreshold
	}

	if logger == nil {
		logger = slog.Default()
	}

	p := &Pipeline{
		cfg:        cfg,
		clock:      clk,
		logger:     logger,
		graph:      identity.NewGraph(),
		store:      profile.NewStore(),
		counter:    rolling.NewCounter(clk, cfg.BucketSize, cfg.RollingWindow),
		segmentOut: broadcast.New[segment.Event](cfg.SegmentBuffer),
		profileOut: broadcast.New[Snapshot](cfg.SegmentBuffer),
	}

	p.segments = segment.NewEngine(clk, cfg.Segments, p.counter, p.segmentOut)

	proc, err := processor.New(cfg.Processor, clk, p.handleDrained, logger)
	if err != nil {
		return nil, err
	}

	p.proc = proc

	return p, nil
}

// Submit resolves the event's identity to a canonical profile key and hands
// it to the processor. Safe for concurrent use. Events without identifiers
// are rejected; everything else is accepted (drops are counted, not
// signaled).
func (p *Pipeline) Submit(ev *event.Event) error {
	canonicalID, err := p.graph.CanonicalID(ev.Identifiers())
	if err != nil {
		return err
	}

	p.proc.Submit(canonicalID, ev)

	return nil
}

// Start launches the drain ticker and the rolling-counter eviction sweep.
func (p *Pipeline) Start(ctx context.Context) {
	p.proc.Start(ctx)

	go p.counter.Sweep(ctx, p.cfg.SweepInterval)
}

// Stop halts the drain ticker and closes the outbound segment stream.
// Idempotent.
func (p *Pipeline) Stop() {
	p.proc.Stop()
	p.segmentOut.Close()
	p.profileOut.Close()
}

// Tick drives one drain pass synchronously. Used by deterministic tests in
// place of Start's ticker.
func (p *Pipeline) Tick() {
	p.proc.Tick()
}

// SegmentEvents returns the outbound segment transition broadcaster.
func (p *Pipeline) SegmentEvents() *broadcast.Broadcaster[segment.Event] {
	return p.segmentOut
}

// ProfileUpdates returns the outbound profile snapshot broadcaster. A
// snapshot is published after every applied event.
func (p *Pipeline) ProfileUpdates() *broadcast.Broadcaster[Snapshot] {
	return p.profileOut
}

// Clock returns the pipeline's time source.
func (p *Pipeline) Clock() clock.Clock {
	return p.clock
}

// Stats returns the processor's operational counters.
func (p *Pipeline) Stats() *processor.Stats {
	return p.proc.Stats()
}

// Graph returns the identity graph (read-style access for diagnostics).
func (p *Pipeline) Graph() *identity.Graph {
	return p.graph
}

// Store returns the profile store (snapshot reads only).
func (p *Pipeline) Store() *profile.Store {
	return p.store
}

// handleDrained applies one drained event to the per-profile state. It runs
// exclusively on the processor's ticker goroutine, which serializes all
// mutations.
func (p *Pipeline) handleDrained(_ string, ev *event.Event) {
	ids := ev.Identifiers()

	// Re-resolve at drain time: an ALIAS observed between submission and
	// drain may have merged this profile into another canonical key.
	canonicalID, err := p.graph.CanonicalID(ids)
	if err != nil {
		p.logger.Warn("drained event without identifiers", "event_id", ev.ID)

		return
	}

	p.store.MergeIdentifiers(canonicalID, ids)

	if len(ev.Traits) > 0 {
		p.store.MergeTraits(canonicalID, ev.Traits, ev.Timestamp)
	}

	p.store.UpdateLastSeen(canonicalID, ev.Timestamp)

	if ev.Kind == event.KindTrack {
		p.counter.Append(canonicalID, ev.Name, ev.Timestamp)
	}

	p.store.UpdateCounters(canonicalID, p.counter.Snapshot(canonicalID, p.cfg.RollingWindow))

	prof, ok := p.store.Get(canonicalID)
	if !ok {
		return
	}

	current, _ := p.segments.EvaluateAndEmit(prof)
	p.store.UpdateSegments(canonicalID, current)

	p.profileOut.Publish(p.snapshotOf(prof))
}
