// Package profile holds canonical customer profiles and the merge primitives
// that keep them consistent under out-of-order event application.
package profile

import (
	"time"
)

// Profile is the materialized record for one canonical customer.
// Instances handed out by the Store are deep copies; mutating them does not
// affect stored state.
type Profile struct {
	// ID is the canonical identifier chosen by the identity graph.
	ID string

	// Identifiers are the observed identifier values, by namespace, without
	// their namespace prefixes.
	Identifiers IdentifierSet

	// Traits are the last-write-wins merged trait values.
	Traits map[string]any

	// Counters is the most recent rolling-count snapshot by event name.
	Counters map[string]int64

	// Segments is the set of segment names the profile currently belongs to.
	Segments map[string]struct{}

	// LastSeen is the maximum event timestamp consumed for this profile.
	// Never decreases.
	LastSeen time.Time
}

// IdentifierSet groups the three identifier namespaces.
type IdentifierSet struct {
	UserIDs      map[string]struct{}
	Emails       map[string]struct{}
	AnonymousIDs map[string]struct{}
}

func newIdentifierSet() IdentifierSet {
	return IdentifierSet{
		UserIDs:      make(map[string]struct{}),
		Emails:       make(map[string]struct{}),
		AnonymousIDs: make(map[string]struct{}),
	}
}

func (s IdentifierSet) clone() IdentifierSet {
	out := newIdentifierSet()
	for v := range s.UserIDs {
		out.UserIDs[v] = struct{}{}
	}

	for v := range s.Emails {
		out.Emails[v] = struct{}{}
	}

	for v := range s.AnonymousIDs {
		out.AnonymousIDs[v] = struct{}{}
	}

	return out
}

// TraitString returns the named trait as a string, or "" when absent or not
// a string.
func (p Profile) TraitString(name string) string {
	v, ok := p.Traits[name].(string)
	if !ok {
		return ""
	}

	return v
}

func (p Profile) clone() Profile {
	out := Profile{
		ID:          p.ID,
		Identifiers: p.Identifiers.clone(),
		Traits:      make(map[string]any, len(p.Traits)),
		Counters:    make(map[string]int64, len(p.Counters)),
		Segments:    make(map[string]struct{}, len(p.Segments)),
		LastSeen:    p.LastSeen,
	}

	for k, v := range p.Traits {
		out.Traits[k] = v
	}

	for k, v := range p.Counters {
		out.Counters[k] = v
	}

	for s := range p.Segments {
		out.Segments[s] = struct{}{}
	}

	return out
}
