// Package matchmaker finds the closest eligible partner for a user looking
// for a rundezvous, and claims both sides of the pair race-safely.
package matchmaker

import (
	"log"
	"sort"
	"time"

	"rundezvous/backend/internal/config"
	"rundezvous/backend/internal/geo"
	"rundezvous/backend/internal/models"
	"rundezvous/backend/internal/storage"
)

// Matchmaker implements the candidate pipeline: same region, not self, not
// previously met, fresh location, LOOKING, within the pairing distance,
// closest first.
type Matchmaker struct {
	Storage storage.Storage

	// PairingDistanceMeters is the maximum distance between two users where
	// a meetup can still be created.
	PairingDistanceMeters float64
	// ActiveWindow is the freshness filter on location updates.
	ActiveWindow time.Duration

	Now func() time.Time
}

func New(s storage.Storage, pairingDistanceMeters float64) *Matchmaker {
	return &Matchmaker{
		Storage:               s,
		PairingDistanceMeters: pairingDistanceMeters,
		ActiveWindow:          config.UserActiveWindow,
		Now:                   time.Now,
	}
}

// FindPartner returns the closest eligible un-met LOOKING user in the same
// region. Fails with ErrNoRegion when the user has no location or region,
// and ErrNoPartnerAvailable when no candidate qualifies. The candidate is
// not modified; Claim flips both statuses.
func (m *Matchmaker) FindPartner(user *models.User) (*models.User, error) {
	location, ok := user.Location()
	if !ok || user.RegionID == nil {
		return nil, models.ErrNoRegion
	}

	activeSince := m.Now().Add(-m.ActiveWindow)
	candidates, err := m.Storage.FindLookingCandidates(*user.RegionID, user.ID, activeSince)
	if err != nil {
		return nil, err
	}

	type scored struct {
		user     models.User
		distance float64
	}

	inRange := make([]scored, 0, len(candidates))
	for _, candidate := range candidates {
		candidateLocation, ok := candidate.Location()
		if !ok {
			continue
		}
		distance := geo.Haversine(location, candidateLocation)
		if distance <= m.PairingDistanceMeters {
			inRange = append(inRange, scored{user: candidate, distance: distance})
		}
	}

	if len(inRange) == 0 {
		return nil, models.ErrNoPartnerAvailable
	}

	// Candidates arrive ordered by id, so a stable sort keeps exact
	// distance ties deterministic.
	sort.SliceStable(inRange, func(a, b int) bool {
		return inRange[a].distance < inRange[b].distance
	})

	partner := inRange[0].user
	return &partner, nil
}

// Claim atomically takes both users out of the LOOKING pool. A Redis claim
// key fences the window between candidate selection and the conditional
// status update; the update itself is the compare-and-swap, so a user can be
// claimed by at most one concurrent matchmaking attempt. On a lost race the
// winner keeps the partner and this call fails with ErrNoPartnerAvailable,
// leaving the caller LOOKING.
func (m *Matchmaker) Claim(user, partner *models.User) error {
	acquired := make([]string, 0, 2)
	for _, id := range []string{user.ID, partner.ID} {
		ok, err := m.Storage.ClaimForMatch(id, config.MatchClaimTTL)
		if err != nil || !ok {
			// Another matchmaking attempt holds one of the two.
			m.releaseClaims(acquired...)
			if err != nil {
				return err
			}
			return models.ErrNoPartnerAvailable
		}
		acquired = append(acquired, id)
	}
	defer m.releaseClaims(acquired...)

	won, err := m.Storage.ClaimLookingUser(partner.ID)
	if err != nil {
		return err
	}
	if !won {
		return models.ErrNoPartnerAvailable
	}

	won, err = m.Storage.ClaimLookingUser(user.ID)
	if err != nil {
		return err
	}
	if !won {
		// Roll the partner back into the pool.
		if revertErr := m.Storage.SetUserStatus(partner.ID, models.StatusLooking); revertErr != nil {
			log.Printf("ERROR: Failed to revert claim on user %s: %v", partner.ID, revertErr)
		}
		return models.ErrNoPartnerAvailable
	}

	user.Status = models.StatusChatting
	partner.Status = models.StatusChatting
	return nil
}

func (m *Matchmaker) releaseClaims(userIDs ...string) {
	for _, id := range userIDs {
		if err := m.Storage.ReleaseMatchClaim(id); err != nil {
			log.Printf("ERROR: Failed to release match claim for %s: %v", id, err)
		}
	}
}
