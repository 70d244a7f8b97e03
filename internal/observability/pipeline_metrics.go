package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

const (
	metricEventsBuffered    = "streamcdp.pipeline.events.buffered"
	metricEventsProcessed   = "streamcdp.pipeline.events.processed"
	metricDedupHits         = "streamcdp.pipeline.dedup.hits"
	metricLateAccepted      = "streamcdp.pipeline.events.late_accepted"
	metricDroppedTooLate    = "streamcdp.pipeline.events.dropped_too_late"
	metricWatermarkLag      = "streamcdp.pipeline.watermark.lag"
	metricProfiles          = "streamcdp.profiles.total"
	metricSegmentPublished  = "streamcdp.segments.events.published"
	metricSegmentDropped    = "streamcdp.segments.events.dropped"
	metricSegmentListeners  = "streamcdp.segments.subscribers"
)

// PipelineStatsSource is the read surface the pipeline metrics observe.
type PipelineStatsSource interface {
	Buffered() int64
	Processed() int64
	DedupHits() int64
	LateAccepted() int64
	DroppedTooLate() int64
	WatermarkLagMillis() int64
	ProfileCount() int64
	SegmentEventsPublished() int64
	SegmentEventsDropped() int64
	SegmentSubscribers() int64
}

// PipelineMetrics exposes pipeline counters as OTel observable instruments.
// The meter's reader invokes the callback on each collection cycle; the
// pipeline itself never touches an instrument directly.
type PipelineMetrics struct {
	src PipelineStatsSource

	buffered          metric.Int64ObservableGauge
	processed         metric.Int64ObservableCounter
	dedupHits         metric.Int64ObservableCounter
	lateAccepted      metric.Int64ObservableCounter
	droppedTooLate    metric.Int64ObservableCounter
	watermarkLag      metric.Int64ObservableGauge
	profiles          metric.Int64ObservableGauge
	segmentPublished  metric.Int64ObservableCounter
	segmentDropped    metric.Int64ObservableCounter
	segmentListeners  metric.Int64ObservableGauge
}

// NewPipelineMetrics registers pipeline instruments on the meter.
func NewPipelineMetrics(mt metric.Meter, src PipelineStatsSource) (*PipelineMetrics, error) {
	b := newMetricBuilder(mt)

	pm := &PipelineMetrics{
		src:              src,
		buffered:         b.gauge(metricEventsBuffered, "Events held in reorder buffers", "{event}"),
		processed:        b.observableCounter(metricEventsProcessed, "Events drained and applied", "{event}"),
		dedupHits:        b.observableCounter(metricDedupHits, "Duplicate events discarded", "{event}"),
		lateAccepted:     b.observableCounter(metricLateAccepted, "Late events accepted within grace", "{event}"),
		droppedTooLate:   b.observableCounter(metricDroppedTooLate, "Events rejected past the grace cutoff", "{event}"),
		watermarkLag:     b.gauge(metricWatermarkLag, "Age of the oldest buffered event", "ms"),
		profiles:         b.gauge(metricProfiles, "Profiles currently stored", "{profile}"),
		segmentPublished: b.observableCounter(metricSegmentPublished, "Segment transitions published", "{event}"),
		segmentDropped:   b.observableCounter(metricSegmentDropped, "Segment transitions dropped on overflow", "{event}"),
		segmentListeners: b.gauge(metricSegmentListeners, "Active segment stream subscribers", "{subscriber}"),
	}

	if b.err != nil {
		return nil, b.err
	}

	_, err := mt.RegisterCallback(pm.observe,
		pm.buffered, pm.processed, pm.dedupHits, pm.lateAccepted, pm.droppedTooLate,
		pm.watermarkLag, pm.profiles, pm.segmentPublished, pm.segmentDropped, pm.segmentListeners,
	)
	if err != nil {
		return nil, fmt.Errorf("register pipeline metrics callback: %w", err)
	}

	return pm, nil
}

func (pm *PipelineMetrics) observe(_ context.Context, obs metric.Observer) error {
	obs.ObserveInt64(pm.buffered, pm.src.Buffered())
	obs.ObserveInt64(pm.processed, pm.src.Processed())
	obs.ObserveInt64(pm.dedupHits, pm.src.DedupHits())
	obs.ObserveInt64(pm.lateAccepted, pm.src.LateAccepted())
	obs.ObserveInt64(pm.droppedTooLate, pm.src.DroppedTooLate())
	obs.ObserveInt64(pm.watermarkLag, pm.src.WatermarkLagMillis())
	obs.ObserveInt64(pm.profiles, pm.src.ProfileCount())
	obs.ObserveInt64(pm.segmentPublished, pm.src.SegmentEventsPublished())
	obs.ObserveInt64(pm.segmentDropped, pm.src.SegmentEventsDropped())
	obs.ObserveInt64(pm.segmentListeners, pm.src.SegmentSubscribers())

	return nil
}
