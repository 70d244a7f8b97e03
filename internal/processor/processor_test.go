package processor_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/streamcdp/internal/clock"
	"github.com/Sumatoshi-tech/streamcdp/internal/event"
	"github.com/Sumatoshi-tech/streamcdp/internal/processor"
)

const testProfile = "user:u1"

// testNow is the fixed submission instant for processor tests.
var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// recorder collects handler invocations.
type recorder struct {
	mu     sync.Mutex
	events []*event.Event
}

func (r *recorder) handle(_ string, ev *event.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, ev)
}

func (r *recorder) ids() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.ID
	}

	return out
}

func trackEvent(id string, ts time.Time) *event.Event {
	return &event.Event{
		ID:        id,
		Timestamp: ts,
		Kind:      event.KindTrack,
		UserID:    "u1",
		Name:      "Feature Used",
	}
}

func newProcessor(t *testing.T, clk clock.Clock, rec *recorder) *processor.Processor {
	t.Helper()

	p, err := processor.New(processor.DefaultConfig(), clk, rec.handle, nil)
	require.NoError(t, err)

	return p
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	bad := processor.Config{
		ProcessingWindow: time.Minute,
		GracePeriod:      time.Second,
	}
	require.ErrorIs(t, bad.Validate(), processor.ErrWindowExceedsGrace)

	_, err := processor.New(bad, clock.NewFake(testNow), func(string, *event.Event) {}, nil)
	require.ErrorIs(t, err, processor.ErrWindowExceedsGrace)
}

func TestProcessor_OutOfOrderDelivery(t *testing.T) {
	t.Parallel()

	clk := clock.NewFake(testNow)
	rec := &recorder{}
	p := newProcessor(t, clk, rec)

	// Five events for one profile, timestamps shuffled, all older than the
	// processing window once the tick fires.
	base := testNow.Add(-60 * time.Second)
	for i, offset := range []time.Duration{10, 30, 50, 20, 40} {
		p.Submit(testProfile, trackEvent(fmt.Sprintf("e%d", i), base.Add(offset*time.Second)))
	}

	p.Tick()

	require.Equal(t, []string{"e0", "e3", "e1", "e4", "e2"}, rec.ids())
	assert.Equal(t, int64(5), p.Stats().Processed())
	assert.Equal(t, int64(0), p.Stats().Buffered())
}

func TestProcessor_HoldsEventsInsideProcessingWindow(t *testing.T) {
	t.Parallel()

	clk := clock.NewFake(testNow)
	rec := &recorder{}
	p := newProcessor(t, clk, rec)

	p.Submit(testProfile, trackEvent("fresh", testNow.Add(-time.Second)))
	p.Tick()

	assert.Empty(t, rec.ids())
	assert.Equal(t, int64(1), p.Stats().Buffered())

	// Once the watermark passes the event's timestamp, it drains.
	clk.Advance(10 * time.Second)
	p.Tick()

	assert.Equal(t, []string{"fresh"}, rec.ids())
	assert.Equal(t, int64(0), p.Stats().Buffered())
}

func TestProcessor_DuplicateDropped(t *testing.T) {
	t.Parallel()

	clk := clock.NewFake(testNow)
	rec := &recorder{}
	p := newProcessor(t, clk, rec)

	ev := trackEvent("dup", testNow.Add(-60*time.Second))
	p.Submit(testProfile, ev)
	p.Submit(testProfile, ev)

	p.Tick()

	assert.Equal(t, []string{"dup"}, rec.ids())
	assert.Equal(t, int64(1), p.Stats().DedupHits())
}

func TestProcessor_DuplicateAcrossProfilesProcessedIndependently(t *testing.T) {
	t.Parallel()

	clk := clock.NewFake(testNow)
	rec := &recorder{}
	p := newProcessor(t, clk, rec)

	ev := trackEvent("shared", testNow.Add(-60*time.Second))
	p.Submit("user:a", ev)
	p.Submit("user:b", ev)

	p.Tick()

	assert.Len(t, rec.ids(), 2)
	assert.Equal(t, int64(0), p.Stats().DedupHits())
}

func TestProcessor_TooLateRejected(t *testing.T) {
	t.Parallel()

	clk := clock.NewFake(testNow)
	rec := &recorder{}
	p := newProcessor(t, clk, rec)

	p.Submit(testProfile, trackEvent("ancient", testNow.Add(-150*time.Second)))

	assert.Equal(t, int64(0), p.Stats().Buffered())
	assert.Equal(t, int64(1), p.Stats().DroppedTooLate())

	p.Tick()
	assert.Empty(t, rec.ids())
}

func TestProcessor_LateAcceptedCounted(t *testing.T) {
	t.Parallel()

	clk := clock.NewFake(testNow)
	rec := &recorder{}
	p := newProcessor(t, clk, rec)

	// Behind the processing watermark but inside the grace period.
	p.Submit(testProfile, trackEvent("late", testNow.Add(-30*time.Second)))

	assert.Equal(t, int64(1), p.Stats().LateAccepted())
	assert.Equal(t, int64(1), p.Stats().Buffered())

	p.Tick()
	assert.Equal(t, []string{"late"}, rec.ids())
}

func TestProcessor_PerProfileOrderingManyProfiles(t *testing.T) {
	t.Parallel()

	clk := clock.NewFake(testNow)
	rec := &recorder{}
	p := newProcessor(t, clk, rec)

	base := testNow.Add(-90 * time.Second)
	for i := range 20 {
		profileID := fmt.Sprintf("user:p%d", i%4)
		// Timestamps deliberately descending within each profile.
		ts := base.Add(time.Duration(20-i) * time.Second)
		p.Submit(profileID, trackEvent(fmt.Sprintf("e%d", i), ts))
	}

	p.Tick()

	// Per profile, delivered timestamps are non-decreasing.
	perProfile := make(map[string][]time.Time)

	rec.mu.Lock()
	for _, ev := range rec.events {
		key := ev.UserID
		perProfile[key] = append(perProfile[key], ev.Timestamp)
	}
	rec.mu.Unlock()

	for id, stamps := range perProfile {
		for i := 1; i < len(stamps); i++ {
			assert.False(t, stamps[i].Before(stamps[i-1]), "profile %s out of order", id)
		}
	}
}

func TestProcessor_HandlerPanicContained(t *testing.T) {
	t.Parallel()

	clk := clock.NewFake(testNow)

	var delivered []string

	p, err := processor.New(processor.DefaultConfig(), clk, func(_ string, ev *event.Event) {
		delivered = append(delivered, ev.ID)
		if ev.ID == "boom" {
			panic("handler failure")
		}
	}, nil)
	require.NoError(t, err)

	p.Submit(testProfile, trackEvent("boom", testNow.Add(-60*time.Second)))
	p.Submit(testProfile, trackEvent("after", testNow.Add(-50*time.Second)))

	p.Tick()

	// Both events were consumed despite the panic.
	assert.Equal(t, []string{"boom", "after"}, delivered)
	assert.Equal(t, int64(2), p.Stats().Processed())
}

func TestProcessor_WatermarkLag(t *testing.T) {
	t.Parallel()

	clk := clock.NewFake(testNow)
	rec := &recorder{}
	p := newProcessor(t, clk, rec)

	p.Submit(testProfile, trackEvent("young", testNow.Add(-2*time.Second)))
	p.Tick()

	assert.Equal(t, int64(2000), p.Stats().WatermarkLagMillis())

	clk.Advance(10 * time.Second)
	p.Tick()

	assert.Equal(t, int64(0), p.Stats().WatermarkLagMillis())
}

func TestProcessor_WatermarkLagNeverNegative(t *testing.T) {
	t.Parallel()

	clk := clock.NewFake(testNow)
	rec := &recorder{}
	p := newProcessor(t, clk, rec)

	// An event timestamped ahead of the clock stays buffered; it is not
	// lagging and must not drive the gauge below zero.
	p.Submit(testProfile, trackEvent("ahead", testNow.Add(3*time.Second)))
	p.Tick()

	assert.Equal(t, int64(0), p.Stats().WatermarkLagMillis())
}

func TestProcessor_StopDropsSubsequentSubmissions(t *testing.T) {
	t.Parallel()

	clk := clock.NewFake(testNow)
	rec := &recorder{}
	p := newProcessor(t, clk, rec)

	p.Start(context.Background())
	p.Stop()
	p.Stop() // Idempotent.

	p.Submit(testProfile, trackEvent("ignored", testNow.Add(-60*time.Second)))
	assert.Equal(t, int64(0), p.Stats().Buffered())
}

func TestProcessor_ClearWipesState(t *testing.T) {
	t.Parallel()

	clk := clock.NewFake(testNow)
	rec := &recorder{}
	p := newProcessor(t, clk, rec)

	p.Submit(testProfile, trackEvent("pending", testNow.Add(-time.Second)))
	require.Equal(t, int64(1), p.Stats().Buffered())

	p.Clear()

	assert.Equal(t, int64(0), p.Stats().Buffered())
	p.Tick()
	assert.Empty(t, rec.ids())
}

func TestProcessor_ConcurrentSubmit(t *testing.T) {
	t.Parallel()

	const producers = 8

	const perProducer = 100

	clk := clock.NewFake(testNow)
	rec := &recorder{}
	p := newProcessor(t, clk, rec)

	var wg sync.WaitGroup
	for n := range producers {
		wg.Add(1)

		go func(n int) {
			defer wg.Done()

			for i := range perProducer {
				id := fmt.Sprintf("p%d-e%d", n, i)
				p.Submit(testProfile, trackEvent(id, testNow.Add(-60*time.Second)))
			}
		}(n)
	}

	wg.Wait()
	p.Tick()

	assert.Len(t, rec.ids(), producers*perProducer)
	assert.Equal(t, int64(producers*perProducer), p.Stats().Processed())
}
