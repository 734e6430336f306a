// Package regions maps coordinates to supported geographic regions and finds
// meetup landmarks inside them.
package regions

import (
	"log"
	"sort"

	"rundezvous/backend/internal/geo"
	"rundezvous/backend/internal/models"
	"rundezvous/backend/internal/storage"
)

// Index answers point-in-region and closest-landmark queries against the
// stored region set.
type Index struct {
	Storage storage.Storage
}

func NewIndex(s storage.Storage) *Index {
	return &Index{Storage: s}
}

// AssignRegion returns the single supported region containing the point.
// Returns (nil, nil) when the point is outside every region - the caller
// clears the user's region. A point inside more than one region is a data
// bug: regions must not overlap, so this fails with AmbiguousRegionError
// instead of silently picking one.
func (i *Index) AssignRegion(p geo.Point) (*models.Region, error) {
	regions, err := i.Storage.ListRegions()
	if err != nil {
		return nil, err
	}

	var matches []*models.Region
	for idx := range regions {
		if regions[idx].Contains(p) {
			matches = append(matches, &regions[idx])
		}
	}

	switch len(matches) {
	case 0:
		return nil, nil
	case 1:
		return matches[0], nil
	default:
		names := make([]string, 0, len(matches))
		for _, r := range matches {
			names = append(names, r.Name)
		}
		err := &models.AmbiguousRegionError{Point: p, Regions: names}
		log.Printf("ERROR: %v", err)
		return nil, err
	}
}

// ClosestLandmark returns the region's landmark nearest to the point,
// measured in the region's metric projection. Fails with
// ErrNoLandmarkAvailable when the region has none.
func (i *Index) ClosestLandmark(region *models.Region, p geo.Point) (*models.Landmark, error) {
	landmarks, err := i.Storage.ListLandmarksInRegion(region.ID)
	if err != nil {
		return nil, err
	}
	if len(landmarks) == 0 {
		return nil, models.ErrNoLandmarkAvailable
	}

	projection := region.Projection()
	sort.SliceStable(landmarks, func(a, b int) bool {
		return projection.PlanarDistance(p, landmarks[a].Location()) <
			projection.PlanarDistance(p, landmarks[b].Location())
	})
	return &landmarks[0], nil
}
