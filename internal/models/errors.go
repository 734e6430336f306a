package models

import (
	"errors"
	"fmt"
	"strings"

	"rundezvous/backend/internal/geo"
)

// Domain errors. All are distinguishable with errors.Is so the HTTP layer can
// map each to a specific response.
var (
	// ErrNoPartnerAvailable - no candidate satisfied the matchmaking filters.
	ErrNoPartnerAvailable = errors.New("no partner available")

	// ErrNoLandmarkAvailable - the shared region has no landmark to meet at.
	ErrNoLandmarkAvailable = errors.New("no landmark available in region")

	// ErrNoParticipants - a meetup was started on a rundezvous with no
	// attached users. Programmer error, never shown to users.
	ErrNoParticipants = errors.New("rundezvous has no participants")

	// ErrNoRegion - the user is outside every supported region.
	ErrNoRegion = errors.New("location is not in any supported region")

	// ErrDecisionTimeout - the meetup decision window has closed.
	ErrDecisionTimeout = errors.New("meetup decision window has closed")

	// ErrNotStarted - a derived value was read before the meetup started.
	ErrNotStarted = errors.New("rundezvous has not started")

	// ErrInvalidMessage - empty chat message or text over the length bound.
	ErrInvalidMessage = errors.New("invalid chat message")

	// ErrNotFound - generic missing record.
	ErrNotFound = errors.New("record not found")
)

// AmbiguousRegionError reports a point contained by more than one supported
// region. Regions must not overlap; this is a data bug that has to surface
// loudly instead of silently picking one.
type AmbiguousRegionError struct {
	Point   geo.Point
	Regions []string
}

func (e *AmbiguousRegionError) Error() string {
	return fmt.Sprintf("point (%.7f, %.7f) is inside multiple regions: %s",
		e.Point.Lat, e.Point.Lon, strings.Join(e.Regions, ", "))
}
