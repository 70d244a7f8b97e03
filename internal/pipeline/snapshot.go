package pipeline

import (
	"sort"
	"time"

	"github.com/Sumatoshi-tech/streamcdp/internal/profile"
	"github.com/Sumatoshi-tech/streamcdp/internal/segment"
)

// Snapshot is the outbound read-only profile view. Identifier values carry
// no namespace prefixes.
type Snapshot struct {
	ProfileID        string              `json:"profileId"`
	Plan             *string             `json:"plan"`
	Country          *string             `json:"country"`
	LastSeen         time.Time           `json:"lastSeen"`
	Identifiers      SnapshotIdentifiers `json:"identifiers"`
	FeatureUsedCount int64               `json:"featureUsedCount"`
}

// SnapshotIdentifiers lists identifier values per namespace, sorted.
type SnapshotIdentifiers struct {
	UserIDs      []string `json:"userIds"`
	Emails       []string `json:"emails"`
	AnonymousIDs []string `json:"anonymousIds"`
}

// Snapshots lists the stored profiles ordered by lastSeen descending, capped
// at the configured snapshot limit. Equal lastSeen ties order by profile ID
// for determinism.
func (p *Pipeline) Snapshots() []Snapshot {
	profiles := p.store.All()

	sort.Slice(profiles, func(i, j int) bool {
		if !profiles[i].LastSeen.Equal(profiles[j].LastSeen) {
			return profiles[i].LastSeen.After(profiles[j].LastSeen)
		}

		return profiles[i].ID < profiles[j].ID
	})

	if len(profiles) > p.cfg.SnapshotLimit {
		profiles = profiles[:p.cfg.SnapshotLimit]
	}

	out := make([]Snapshot, len(profiles))
	for i, prof := range profiles {
		out[i] = p.snapshotOf(prof)
	}

	return out
}

// SnapshotFor returns the snapshot for one canonical profile ID.
func (p *Pipeline) SnapshotFor(profileID string) (Snapshot, bool) {
	prof, ok := p.store.Get(profileID)
	if !ok {
		return Snapshot{}, false
	}

	return p.snapshotOf(prof), true
}

func (p *Pipeline) snapshotOf(prof profile.Profile) Snapshot {
	return Snapshot{
		ProfileID: prof.ID,
		Plan:      traitPtr(prof, "plan"),
		Country:   traitPtr(prof, "country"),
		LastSeen:  prof.LastSeen,
		Identifiers: SnapshotIdentifiers{
			UserIDs:      sortedKeys(prof.Identifiers.UserIDs),
			Emails:       sortedKeys(prof.Identifiers.Emails),
			AnonymousIDs: sortedKeys(prof.Identifiers.AnonymousIDs),
		},
		FeatureUsedCount: p.counter.Count(prof.ID, segment.TrackFeatureUsed, p.cfg.Segments.PowerUserWindow),
	}
}

// traitPtr returns the trait as *string, or nil when absent or non-string,
// so it serializes as JSON null.
func traitPtr(prof profile.Profile, name string) *string {
	v, ok := prof.Traits[name].(string)
	if !ok {
		return nil
	}

	return &v
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}

	sort.Strings(out)

	return out
}
