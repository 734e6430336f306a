// Package directory maintains each user's live state: current location,
// assigned region and met-partner history.
package directory

import (
	"log"
	"time"

	"rundezvous/backend/internal/geo"
	"rundezvous/backend/internal/models"
	"rundezvous/backend/internal/regions"
	"rundezvous/backend/internal/storage"
)

// Directory is the write path for user location and history updates.
type Directory struct {
	Storage storage.Storage
	Regions *regions.Index

	// Now is injectable for deterministic tests.
	Now func() time.Time
}

func New(s storage.Storage, index *regions.Index) *Directory {
	return &Directory{
		Storage: s,
		Regions: index,
		Now:     time.Now,
	}
}

// UpdateLocation records a user's reported coordinate, stamps the freshness
// timestamp and reassigns their region. Returns the updated user and whether
// the location actually changed. An ambiguous region assignment propagates
// as an error; a location outside all regions just clears the region.
func (d *Directory) UpdateLocation(userID string, p geo.Point) (*models.User, bool, error) {
	user, err := d.Storage.GetUserByID(userID)
	if err != nil {
		return nil, false, err
	}

	previous, had := user.Location()
	changed := !had || previous != p

	user.SetLocation(p, d.Now())

	region, err := d.Regions.AssignRegion(p)
	if err != nil {
		return nil, false, err
	}
	if region == nil {
		user.RegionID = nil
	} else {
		user.RegionID = &region.ID
	}

	if err := d.Storage.SaveUser(user); err != nil {
		log.Printf("ERROR: Failed to save location for user %s: %v", userID, err)
		return nil, false, err
	}
	return user, changed, nil
}

// RecordMet stores that two users have been matched, symmetrically, so
// neither ever sees the other as a candidate again.
func (d *Directory) RecordMet(userA, userB string) error {
	return d.Storage.RecordMetUsers(userA, userB)
}
