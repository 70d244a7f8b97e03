package segment_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/streamcdp/internal/broadcast"
	"github.com/Sumatoshi-tech/streamcdp/internal/clock"
	"github.com/Sumatoshi-tech/streamcdp/internal/profile"
	"github.com/Sumatoshi-tech/streamcdp/internal/segment"
)

// testNow is the fixed evaluation instant.
var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// fixedCounter is a CounterView returning a constant per-name count.
type fixedCounter map[string]int64

func (f fixedCounter) Count(_, name string, _ time.Duration) int64 {
	return f[name]
}

func activeProfile() profile.Profile {
	return profile.Profile{
		ID:       "user:u1",
		Traits:   map[string]any{},
		LastSeen: testNow,
	}
}

func newEngine(counts fixedCounter) (*segment.Engine, *broadcast.Broadcaster[segment.Event]) {
	out := broadcast.New[segment.Event](16)
	eng := segment.NewEngine(clock.NewFake(testNow), segment.DefaultConfig(), counts, out)

	return eng, out
}

func TestEngine_EvaluatePowerUserBoundary(t *testing.T) {
	t.Parallel()

	eng, _ := newEngine(fixedCounter{segment.TrackFeatureUsed: 4})
	assert.NotContains(t, eng.Evaluate(activeProfile()), segment.PowerUser)

	eng, _ = newEngine(fixedCounter{segment.TrackFeatureUsed: 5})
	assert.Contains(t, eng.Evaluate(activeProfile()), segment.PowerUser)
}

func TestEngine_EvaluateProPlan(t *testing.T) {
	t.Parallel()

	eng, _ := newEngine(fixedCounter{})

	p := activeProfile()
	p.Traits["plan"] = "pro"
	assert.Contains(t, eng.Evaluate(p), segment.ProPlan)

	p.Traits["plan"] = "basic"
	assert.NotContains(t, eng.Evaluate(p), segment.ProPlan)

	// Non-string plan values never match.
	p.Traits["plan"] = 42
	assert.NotContains(t, eng.Evaluate(p), segment.ProPlan)
}

func TestEngine_EvaluateReengageStrict(t *testing.T) {
	t.Parallel()

	eng, _ := newEngine(fixedCounter{})

	p := activeProfile()
	p.LastSeen = testNow.Add(-10 * time.Minute)

	// Exactly at the threshold is not inactive enough.
	assert.NotContains(t, eng.Evaluate(p), segment.Reengage)

	p.LastSeen = testNow.Add(-10*time.Minute - time.Second)
	assert.Contains(t, eng.Evaluate(p), segment.Reengage)
}

func TestEngine_FirstEvaluationEmitsOnlyEnters(t *testing.T) {
	t.Parallel()

	eng, _ := newEngine(fixedCounter{segment.TrackFeatureUsed: 5})

	_, emitted := eng.EvaluateAndEmit(activeProfile())
	require.Len(t, emitted, 1)
	assert.Equal(t, segment.ActionEnter, emitted[0].Action)
	assert.Equal(t, segment.PowerUser, emitted[0].Segment)
	assert.Equal(t, testNow, emitted[0].Timestamp)
}

func TestEngine_DiffEmitsExitOnLoss(t *testing.T) {
	t.Parallel()

	counts := fixedCounter{segment.TrackFeatureUsed: 5}
	eng, _ := newEngine(counts)

	_, emitted := eng.EvaluateAndEmit(activeProfile())
	require.Len(t, emitted, 1)

	// Activity decays below the threshold.
	counts[segment.TrackFeatureUsed] = 3

	_, emitted = eng.EvaluateAndEmit(activeProfile())
	require.Len(t, emitted, 1)
	assert.Equal(t, segment.ActionExit, emitted[0].Action)
	assert.Equal(t, segment.PowerUser, emitted[0].Segment)
}

func TestEngine_NoChangeEmitsNothing(t *testing.T) {
	t.Parallel()

	eng, _ := newEngine(fixedCounter{segment.TrackFeatureUsed: 5})

	eng.EvaluateAndEmit(activeProfile())

	_, emitted := eng.EvaluateAndEmit(activeProfile())
	assert.Empty(t, emitted)
}

func TestEngine_EmittedEventsArePublished(t *testing.T) {
	t.Parallel()

	eng, out := newEngine(fixedCounter{segment.TrackFeatureUsed: 5})

	ch, cancel := out.Subscribe()
	defer cancel()

	eng.EvaluateAndEmit(activeProfile())

	ev := <-ch
	assert.Equal(t, segment.PowerUser, ev.Segment)
	assert.Equal(t, segment.ActionEnter, ev.Action)
}

func TestEngine_DiffMatchesSetDifference(t *testing.T) {
	t.Parallel()

	counts := fixedCounter{segment.TrackFeatureUsed: 5}
	eng, _ := newEngine(counts)

	p := activeProfile()
	p.Traits["plan"] = "pro"

	prev, emitted := eng.EvaluateAndEmit(p)
	require.Len(t, emitted, 2)

	// Drop power_user, keep pro_plan, gain reengage.
	counts[segment.TrackFeatureUsed] = 0
	p.LastSeen = testNow.Add(-time.Hour)

	cur, emitted := eng.EvaluateAndEmit(p)

	enters := map[string]struct{}{}
	exits := map[string]struct{}{}

	for _, ev := range emitted {
		if ev.Action == segment.ActionEnter {
			enters[ev.Segment] = struct{}{}
		} else {
			exits[ev.Segment] = struct{}{}
		}
	}

	for name := range cur {
		if _, was := prev[name]; !was {
			assert.Contains(t, enters, name)
		}
	}

	for name := range prev {
		if _, is := cur[name]; !is {
			assert.Contains(t, exits, name)
		}
	}

	assert.Len(t, enters, 1)
	assert.Len(t, exits, 1)
}
