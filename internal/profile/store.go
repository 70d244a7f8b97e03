package profile

import (
	"sync"
	"time"

	"github.com/Sumatoshi-tech/streamcdp/internal/identity"
)

// Store maps canonical profile IDs to profiles.
//
// Reads return deep-copied snapshots and never block writers for long.
// Compound per-profile updates (merge traits, then bump lastSeen) are expected
// to be serialized by the single pipeline drain goroutine; the store's own
// lock only guarantees that individual operations are atomic.
type Store struct {
	mu       sync.RWMutex
	profiles map[string]*record
}

// record pairs a profile with its per-trait write timestamps.
type record struct {
	profile    Profile
	traitTimes map[string]time.Time
}

// NewStore creates an empty profile store.
func NewStore() *Store {
	return &Store{
		profiles: make(map[string]*record),
	}
}

// GetOrCreate returns a snapshot of the profile under profileID, installing a
// default profile (empty sets, zero lastSeen) if none exists.
func (s *Store) GetOrCreate(profileID string) Profile {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.getOrCreate(profileID).profile.clone()
}

// MergeIdentifiers set-unions the given normalized identifiers into the
// profile's identifier sets. Values are stored without namespace prefixes.
func (s *Store) MergeIdentifiers(profileID string, normalized []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.getOrCreate(profileID)

	for _, id := range normalized {
		prefix, value := identity.SplitNamespace(id)
		if value == "" {
			continue
		}

		switch prefix {
		case identity.PrefixUser:
			rec.profile.Identifiers.UserIDs[value] = struct{}{}
		case identity.PrefixEmail:
			rec.profile.Identifiers.Emails[value] = struct{}{}
		case identity.PrefixAnon:
			rec.profile.Identifiers.AnonymousIDs[value] = struct{}{}
		}
	}
}

// MergeTraits applies last-write-wins trait merging. A trait value is written
// when eventTs is at or after the stored write time for that key (ties accept
// the newer call); strictly older writes are dropped per key.
func (s *Store) MergeTraits(profileID string, traits map[string]any, eventTs time.Time) {
	if len(traits) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.getOrCreate(profileID)

	for key, value := range traits {
		stored, seen := rec.traitTimes[key]
		if seen && eventTs.Before(stored) {
			continue
		}

		rec.profile.Traits[key] = value
		rec.traitTimes[key] = eventTs
	}
}

// UpdateLastSeen raises the profile's lastSeen to ts. Older timestamps are
// ignored, keeping lastSeen monotone.
func (s *Store) UpdateLastSeen(profileID string, ts time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.getOrCreate(profileID)

	if ts.After(rec.profile.LastSeen) {
		rec.profile.LastSeen = ts
	}
}

// UpdateCounters replaces the profile's rolling-count snapshot.
func (s *Store) UpdateCounters(profileID string, counters map[string]int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.getOrCreate(profileID)

	rec.profile.Counters = make(map[string]int64, len(counters))
	for k, v := range counters {
		rec.profile.Counters[k] = v
	}
}

// UpdateSegments replaces the profile's segment membership set.
func (s *Store) UpdateSegments(profileID string, segments map[string]struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.getOrCreate(profileID)

	rec.profile.Segments = make(map[string]struct{}, len(segments))
	for name := range segments {
		rec.profile.Segments[name] = struct{}{}
	}
}

// Get returns a snapshot of the profile under profileID.
func (s *Store) Get(profileID string) (Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.profiles[profileID]
	if !ok {
		return Profile{}, false
	}

	return rec.profile.clone(), true
}

// All returns snapshots of every stored profile in unspecified order.
func (s *Store) All() []Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Profile, 0, len(s.profiles))
	for _, rec := range s.profiles {
		out = append(out, rec.profile.clone())
	}

	return out
}

// Len returns the number of stored profiles.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.profiles)
}

// getOrCreate returns the record for profileID, installing a default one if
// absent. Caller holds s.mu.
func (s *Store) getOrCreate(profileID string) *record {
	rec, ok := s.profiles[profileID]
	if !ok {
		rec = &record{
			profile: Profile{
				ID:          profileID,
				Identifiers: newIdentifierSet(),
				Traits:      make(map[string]any),
				Counters:    make(map[string]int64),
				Segments:    make(map[string]struct{}),
			},
			traitTimes: make(map[string]time.Time),
		}
		s.profiles[profileID] = rec
	}

	return rec
}
