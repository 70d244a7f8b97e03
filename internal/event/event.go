// Package event defines the inbound customer activity event model and its
// ingest-boundary validation. Invalid events are rejected here and never
// reach the processing core.
package event

import (
	"errors"
	"fmt"
	"time"

	"github.com/Sumatoshi-tech/streamcdp/internal/identity"
)

// Kind is the event type discriminator.
type Kind string

// Event kinds.
const (
	KindIdentify Kind = "IDENTIFY"
	KindTrack    Kind = "TRACK"
	KindAlias    Kind = "ALIAS"
)

// Validation errors.
var (
	ErrMissingEventID    = errors.New("event: eventId is required")
	ErrMissingTimestamp  = errors.New("event: ts is required")
	ErrInvalidKind       = errors.New("event: type must be IDENTIFY, TRACK, or ALIAS")
	ErrMissingIdentifier = errors.New("event: at least one of userId, email, anonymousId is required")
	ErrMissingTrackName  = errors.New("event: TRACK requires a non-empty name")
)

// Event is one inbound customer activity event.
type Event struct {
	ID          string         `json:"eventId"`
	Timestamp   time.Time      `json:"ts"`
	Kind        Kind           `json:"type"`
	UserID      string         `json:"userId,omitempty"`
	Email       string         `json:"email,omitempty"`
	AnonymousID string         `json:"anonymousId,omitempty"`
	Name        string         `json:"name,omitempty"`
	Properties  map[string]any `json:"properties,omitempty"`
	Traits      map[string]any `json:"traits,omitempty"`
}

// Validate checks the structural contract: eventId and ts present, a known
// kind, at least one identifier, and a name for TRACK events.
func (e *Event) Validate() error {
	if e.ID == "" {
		return ErrMissingEventID
	}

	if e.Timestamp.IsZero() {
		return ErrMissingTimestamp
	}

	switch e.Kind {
	case KindIdentify, KindTrack, KindAlias:
	default:
		return fmt.Errorf("%w: got %q", ErrInvalidKind, e.Kind)
	}

	if e.UserID == "" && e.Email == "" && e.AnonymousID == "" {
		return ErrMissingIdentifier
	}

	if e.Kind == KindTrack && e.Name == "" {
		return ErrMissingTrackName
	}

	return nil
}

// Identifiers returns the event's present identifiers in normalized
// namespaced form, ordered user, email, anon.
func (e *Event) Identifiers() []string {
	ids := make([]string, 0, 3)

	if e.UserID != "" {
		ids = append(ids, identity.Normalize(identity.PrefixUser+e.UserID))
	}

	if e.Email != "" {
		ids = append(ids, identity.Normalize(identity.PrefixEmail+e.Email))
	}

	if e.AnonymousID != "" {
		ids = append(ids, identity.Normalize(identity.PrefixAnon+e.AnonymousID))
	}

	return ids
}
