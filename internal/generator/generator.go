// Package generator produces synthetic CDP traffic: identify/track/alias
// events with realistic messiness, including out-of-order timestamps,
// duplicate deliveries, and anonymous-to-known alias chains.
package generator

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/Sumatoshi-tech/streamcdp/internal/clock"
	"github.com/Sumatoshi-tech/streamcdp/internal/event"
)

// Defaults for generator tuning.
const (
	DefaultUsers          = 50
	DefaultRate           = 20
	DefaultDuplicateRatio = 0.05
	DefaultAliasRatio     = 0.02
	DefaultMaxJitter      = 30 * time.Second
)

// trackNames are the TRACK event names emitted, weighted by position.
var trackNames = []string{
	"Feature Used",
	"Feature Used",
	"Page Viewed",
	"Button Clicked",
	"Report Exported",
}

var plans = []string{"free", "free", "pro", "enterprise"}

var countries = []string{"US", "DE", "GB", "FR", "JP", "BR"}

// Sink receives generated events.
type Sink interface {
	Send(ctx context.Context, ev *event.Event) error
}

// Config holds generator tuning knobs.
type Config struct {
	// Users is the size of the simulated user population.
	Users int

	// Rate is events per second during Run.
	Rate int

	// DuplicateRatio is the fraction of events re-sent with the same ID.
	DuplicateRatio float64

	// AliasRatio is the fraction of events that are ALIAS merges.
	AliasRatio float64

	// MaxJitter bounds how far into the past event timestamps scatter.
	MaxJitter time.Duration

	// Seed makes the stream reproducible. Zero seeds from the clock.
	Seed int64
}

// DefaultConfig returns the documented generator defaults.
func DefaultConfig() Config {
	return Config{
		Users:          DefaultUsers,
		Rate:           DefaultRate,
		DuplicateRatio: DefaultDuplicateRatio,
		AliasRatio:     DefaultAliasRatio,
		MaxJitter:      DefaultMaxJitter,
	}
}

// Generator produces a stream of synthetic events. Not safe for concurrent
// use; Run drives it from a single goroutine.
type Generator struct {
	cfg   Config
	clock clock.Clock
	rng   *rand.Rand

	// anonByUser tracks which users still have an unmerged anonymous ID.
	anonByUser map[int]string

	last *event.Event

	// sentByKind counts events delivered by Run, for the end-of-run summary.
	sentByKind map[event.Kind]int64
}

// New creates a Generator. Zero config fields take their defaults.
func New(cfg Config, clk clock.Clock) *Generator {
	if cfg.Users <= 0 {
		cfg.Users = DefaultUsers
	}

	if cfg.Rate <= 0 {
		cfg.Rate = DefaultRate
	}

	if cfg.MaxJitter <= 0 {
		cfg.MaxJitter = DefaultMaxJitter
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = clk.Now().UnixNano()
	}

	return &Generator{
		cfg:        cfg,
		clock:      clk,
		rng:        rand.New(rand.NewSource(seed)),
		anonByUser: make(map[int]string),
		sentByKind: make(map[event.Kind]int64),
	}
}

// Next produces the next event in the stream.
func (g *Generator) Next() *event.Event {
	// Occasionally replay the previous event verbatim to exercise dedup.
	if g.last != nil && g.rng.Float64() < g.cfg.DuplicateRatio {
		return g.last
	}

	user := g.rng.Intn(g.cfg.Users)

	var ev *event.Event

	switch {
	case g.anonByUser[user] != "" && g.rng.Float64() < g.cfg.AliasRatio:
		ev = g.alias(user)
	case g.rng.Float64() < 0.2:
		ev = g.identify(user)
	default:
		ev = g.track(user)
	}

	g.last = ev

	return ev
}

// Run emits events to the sink at the configured rate until ctx is canceled.
func (g *Generator) Run(ctx context.Context, sink Sink) error {
	interval := time.Second / time.Duration(g.cfg.Rate)
	ticker := time.NewTicker(interval)

	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			ev := g.Next()

			err := sink.Send(ctx, ev)
			if err != nil {
				return fmt.Errorf("send event: %w", err)
			}

			g.sentByKind[ev.Kind]++
		}
	}
}

// Sent reports how many events Run has delivered, broken down by kind. Only
// valid after Run returns.
func (g *Generator) Sent() map[event.Kind]int64 {
	out := make(map[event.Kind]int64, len(g.sentByKind))
	for kind, n := range g.sentByKind {
		out[kind] = n
	}

	return out
}

// timestamp scatters event time into the recent past so the reorder buffer
// sees genuinely out-of-order input.
func (g *Generator) timestamp() time.Time {
	jitter := time.Duration(g.rng.Int63n(int64(g.cfg.MaxJitter)))

	return g.clock.Now().Add(-jitter)
}

func (g *Generator) userID(user int) string {
	return fmt.Sprintf("user-%04d", user)
}

func (g *Generator) track(user int) *event.Event {
	ev := &event.Event{
		ID:        uuid.NewString(),
		Timestamp: g.timestamp(),
		Kind:      event.KindTrack,
		Name:      trackNames[g.rng.Intn(len(trackNames))],
		Properties: map[string]any{
			"source": "generator",
		},
	}

	// A share of traffic is anonymous, pre-alias.
	if g.rng.Float64() < 0.3 {
		anon := g.anonFor(user)
		ev.AnonymousID = anon
	} else {
		ev.UserID = g.userID(user)
	}

	return ev
}

func (g *Generator) identify(user int) *event.Event {
	return &event.Event{
		ID:        uuid.NewString(),
		Timestamp: g.timestamp(),
		Kind:      event.KindIdentify,
		UserID:    g.userID(user),
		Email:     fmt.Sprintf("User-%04d@Example.COM", user),
		Traits: map[string]any{
			"plan":    plans[g.rng.Intn(len(plans))],
			"country": countries[g.rng.Intn(len(countries))],
		},
	}
}

func (g *Generator) alias(user int) *event.Event {
	anon := g.anonByUser[user]
	delete(g.anonByUser, user)

	return &event.Event{
		ID:          uuid.NewString(),
		Timestamp:   g.timestamp(),
		Kind:        event.KindAlias,
		UserID:      g.userID(user),
		AnonymousID: anon,
	}
}

// anonFor returns the user's pending anonymous ID, minting one if absent.
func (g *Generator) anonFor(user int) string {
	anon, ok := g.anonByUser[user]
	if !ok {
		anon = "anon-" + uuid.NewString()
		g.anonByUser[user] = anon
	}

	return anon
}
