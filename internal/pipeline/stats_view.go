package pipeline

// StatsView flattens the pipeline's operational counters into a single read
// surface for metrics collection. All methods are safe for concurrent use.
type StatsView struct {
	p *Pipeline
}

// StatsView returns the pipeline's metrics read surface.
func (p *Pipeline) StatsView() *StatsView {
	return &StatsView{p: p}
}

// Buffered is the number of events held in reorder buffers.
func (v *StatsView) Buffered() int64 { return v.p.proc.Stats().Buffered() }

// Processed is the total number of events drained and applied.
func (v *StatsView) Processed() int64 { return v.p.proc.Stats().Processed() }

// DedupHits is the total number of duplicate events discarded.
func (v *StatsView) DedupHits() int64 { return v.p.proc.Stats().DedupHits() }

// LateAccepted is the total number of late events accepted within grace.
func (v *StatsView) LateAccepted() int64 { return v.p.proc.Stats().LateAccepted() }

// DroppedTooLate is the total number of events rejected past the grace cutoff.
func (v *StatsView) DroppedTooLate() int64 { return v.p.proc.Stats().DroppedTooLate() }

// WatermarkLagMillis is the age of the oldest buffered event in milliseconds.
func (v *StatsView) WatermarkLagMillis() int64 { return v.p.proc.Stats().WatermarkLagMillis() }

// ProfileCount is the number of profiles currently stored.
func (v *StatsView) ProfileCount() int64 { return int64(v.p.store.Len()) }

// SegmentEventsPublished is the total number of segment transitions published.
func (v *StatsView) SegmentEventsPublished() int64 { return v.p.segmentOut.Published() }

// SegmentEventsDropped is the total number of segment transitions dropped on overflow.
func (v *StatsView) SegmentEventsDropped() int64 { return v.p.segmentOut.Dropped() }

// SegmentSubscribers is the number of active segment stream subscribers.
func (v *StatsView) SegmentSubscribers() int64 { return int64(v.p.segmentOut.Subscribers()) }
