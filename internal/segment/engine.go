// Package segment evaluates profile membership in the fixed segment catalog
// and emits ENTER/EXIT transition events when membership changes.
package segment

import (
	"sync"
	"time"

	"github.com/Sumatoshi-tech/streamcdp/internal/broadcast"
	"github.com/Sumatoshi-tech/streamcdp/internal/clock"
	"github.com/Sumatoshi-tech/streamcdp/internal/profile"
)

// Segment names in the fixed catalog.
const (
	// PowerUser holds profiles with enough recent "Feature Used" activity.
	PowerUser = "power_user"

	// ProPlan holds profiles whose plan trait equals "pro".
	ProPlan = "pro_plan"

	// Reengage holds profiles inactive for longer than the re-engage threshold.
	Reengage = "reengage"
)

const (
	// TrackFeatureUsed is the TRACK event name counted for PowerUser.
	TrackFeatureUsed = "Feature Used"

	// traitPlan is the trait consulted for ProPlan.
	traitPlan = "plan"

	// planPro is the plan value that grants ProPlan membership.
	planPro = "pro"
)

const (
	// DefaultPowerUserThreshold is the minimum windowed "Feature Used" count.
	DefaultPowerUserThreshold = 5

	// DefaultPowerUserWindow is the rolling window consulted for PowerUser.
	DefaultPowerUserWindow = 24 * time.Hour

	// DefaultReengageThreshold is the inactivity duration that triggers
	// Reengage. The comparison is strict: now-lastSeen must exceed it.
	DefaultReengageThreshold = 10 * time.Minute
)

// Action is a membership transition direction.
type Action string

// Transition actions.
const (
	ActionEnter Action = "ENTER"
	ActionExit  Action = "EXIT"
)

// Event is an emitted segment membership transition.
type Event struct {
	ProfileID string    `json:"profileId"`
	Segment   string    `json:"segment"`
	Action    Action    `json:"action"`
	Timestamp time.Time `json:"ts"`
}

// CounterView answers windowed rolling-count queries.
type CounterView interface {
	Count(profileID, name string, window time.Duration) int64
}

// Config holds the catalog thresholds.
type Config struct {
	PowerUserThreshold int
	PowerUserWindow    time.Duration
	ReengageThreshold  time.Duration
}

// DefaultConfig returns the catalog defaults.
func DefaultConfig() Config {
	return Config{
		PowerUserThreshold: DefaultPowerUserThreshold,
		PowerUserWindow:    DefaultPowerUserWindow,
		ReengageThreshold:  DefaultReengageThreshold,
	}
}

// Engine computes segment membership and diff-emits transitions.
//
// Evaluate is a pure function of (profile, counter view, clock). The
// transition state (last emitted set per profile) lives in the engine and is
// only touched by EvaluateAndEmit, which the pipeline calls from its single
// drain goroutine.
type Engine struct {
	mu      sync.Mutex
	clock   clock.Clock
	cfg     Config
	counter CounterView
	prior   map[string]map[string]struct{}
	out     *broadcast.Broadcaster[Event]
}

// NewEngine creates an Engine publishing transitions to out.
func NewEngine(clk clock.Clock, cfg Config, counter CounterView, out *broadcast.Broadcaster[Event]) *Engine {
	if cfg.PowerUserThreshold <= 0 {
		cfg.PowerUserThreshold = DefaultPowerUserThreshold
	}

	if cfg.PowerUserWindow <= 0 {
		cfg.PowerUserWindow = DefaultPowerUserWindow
	}

	if cfg.ReengageThreshold <= 0 {
		cfg.ReengageThreshold = DefaultReengageThreshold
	}

	return &Engine{
		clock:   clk,
		cfg:     cfg,
		counter: counter,
		prior:   make(map[string]map[string]struct{}),
		out:     out,
	}
}

// Evaluate returns the set of segments p belongs to right now. It does not
// touch transition state.
func (e *Engine) Evaluate(p profile.Profile) map[string]struct{} {
	now := e.clock.Now()
	current := make(map[string]struct{})

	count := e.counter.Count(p.ID, TrackFeatureUsed, e.cfg.PowerUserWindow)
	if count >= int64(e.cfg.PowerUserThreshold) {
		current[PowerUser] = struct{}{}
	}

	if p.TraitString(traitPlan) == planPro {
		current[ProPlan] = struct{}{}
	}

	if now.Sub(p.LastSeen) > e.cfg.ReengageThreshold {
		current[Reengage] = struct{}{}
	}

	return current
}

// EvaluateAndEmit computes the current set, publishes ENTER events for
// segments gained since the last evaluation and EXIT events for segments
// lost, records the new set, and returns it along with the emitted events.
// A profile evaluated for the first time diffs against the empty set.
func (e *Engine) EvaluateAndEmit(p profile.Profile) (map[string]struct{}, []Event) {
	current := e.Evaluate(p)
	now := e.clock.Now()

	e.mu.Lock()
	prior := e.prior[p.ID]
	e.prior[p.ID] = current
	e.mu.Unlock()

	var emitted []Event

	for name := range current {
		if _, was := prior[name]; !was {
			emitted = append(emitted, Event{
				ProfileID: p.ID,
				Segment:   name,
				Action:    ActionEnter,
				Timestamp: now,
			})
		}
	}

	for name := range prior {
		if _, is := current[name]; !is {
			emitted = append(emitted, Event{
				ProfileID: p.ID,
				Segment:   name,
				Action:    ActionExit,
				Timestamp: now,
			})
		}
	}

	if e.out != nil {
		for _, ev := range emitted {
			e.out.Publish(ev)
		}
	}

	return current, emitted
}
