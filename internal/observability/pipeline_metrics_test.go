package observability_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	noopmetric "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/Sumatoshi-tech/streamcdp/internal/observability"
)

// stubStats is a fixed-value PipelineStatsSource.
type stubStats struct{}

func (stubStats) Buffered() int64               { return 3 }
func (stubStats) Processed() int64              { return 100 }
func (stubStats) DedupHits() int64              { return 7 }
func (stubStats) LateAccepted() int64           { return 2 }
func (stubStats) DroppedTooLate() int64         { return 1 }
func (stubStats) WatermarkLagMillis() int64     { return 1500 }
func (stubStats) ProfileCount() int64           { return 42 }
func (stubStats) SegmentEventsPublished() int64 { return 9 }
func (stubStats) SegmentEventsDropped() int64   { return 0 }
func (stubStats) SegmentSubscribers() int64     { return 4 }

func TestNewPipelineMetrics_NoopMeter(t *testing.T) {
	t.Parallel()

	mt := noopmetric.NewMeterProvider().Meter("test")
	pm, err := observability.NewPipelineMetrics(mt, stubStats{})

	require.NoError(t, err)
	require.NotNil(t, pm)
}

func TestPipelineMetrics_ObservesSource(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := mp.Meter("test")

	_, err := observability.NewPipelineMetrics(meter, stubStats{})
	require.NoError(t, err)

	rm := collectMetrics(t, reader)

	buffered := findMetric(rm, "streamcdp.pipeline.events.buffered")
	require.NotNil(t, buffered, "buffered gauge not found")

	gauge, ok := buffered.Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	require.NotEmpty(t, gauge.DataPoints)
	assert.Equal(t, int64(3), gauge.DataPoints[0].Value)

	processed := findMetric(rm, "streamcdp.pipeline.events.processed")
	require.NotNil(t, processed, "processed counter not found")

	sum, ok := processed.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.NotEmpty(t, sum.DataPoints)
	assert.Equal(t, int64(100), sum.DataPoints[0].Value)

	lag := findMetric(rm, "streamcdp.pipeline.watermark.lag")
	require.NotNil(t, lag, "watermark lag gauge not found")

	profiles := findMetric(rm, "streamcdp.profiles.total")
	require.NotNil(t, profiles, "profiles gauge not found")
}

func TestNewRuntimeMetrics_NoopMeter(t *testing.T) {
	t.Parallel()

	mt := noopmetric.NewMeterProvider().Meter("test")
	rm, err := observability.NewRuntimeMetrics(mt)

	require.NoError(t, err)
	require.NotNil(t, rm)
}

func TestRuntimeMetrics_ObservesGoroutines(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := mp.Meter("test")

	_, err := observability.NewRuntimeMetrics(meter)
	require.NoError(t, err)

	var data metricdata.ResourceMetrics

	err = reader.Collect(context.Background(), &data)
	require.NoError(t, err)

	goroutines := findMetric(data, "streamcdp.runtime.goroutines")
	require.NotNil(t, goroutines, "goroutines gauge not found")

	gauge, ok := goroutines.Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	require.NotEmpty(t, gauge.DataPoints)
	assert.Positive(t, gauge.DataPoints[0].Value)
}
