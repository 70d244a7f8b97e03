package processor

import "sync/atomic"

// Stats exposes the processor's operational counters. All accessors are
// lock-free; gauges reflect the most recent tick.
type Stats struct {
	buffered           atomic.Int64
	processed          atomic.Int64
	dedupHits          atomic.Int64
	lateAccepted       atomic.Int64
	droppedTooLate     atomic.Int64
	watermarkLagMillis atomic.Int64
}

// Buffered returns the number of events currently held in reorder heaps.
func (s *Stats) Buffered() int64 { return s.buffered.Load() }

// Processed returns the total number of events delivered to the handler.
func (s *Stats) Processed() int64 { return s.processed.Load() }

// DedupHits returns the number of duplicate submissions dropped.
func (s *Stats) DedupHits() int64 { return s.dedupHits.Load() }

// LateAccepted returns the number of events admitted behind the processing
// watermark but inside the grace period.
func (s *Stats) LateAccepted() int64 { return s.lateAccepted.Load() }

// DroppedTooLate returns the number of events discarded for arriving beyond
// the grace period.
func (s *Stats) DroppedTooLate() int64 { return s.droppedTooLate.Load() }

// WatermarkLagMillis returns the age, in milliseconds, of the oldest event
// still buffered as of the last tick. Zero when all heaps are empty.
func (s *Stats) WatermarkLagMillis() int64 { return s.watermarkLagMillis.Load() }
