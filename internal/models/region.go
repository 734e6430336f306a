package models

import (
	"github.com/google/uuid"
	"github.com/lib/pq" // pq array types for the boundary ring
	"gorm.io/gorm"

	"rundezvous/backend/internal/geo"
)

// Region describes the geometry of a geographic area supported by the
// system. Users and landmarks are scoped to one. Regions must not overlap.
type Region struct {
	ID   string `gorm:"primaryKey" json:"id"`
	Name string `gorm:"size:50;not null" json:"name"`

	// Boundary is the polygon ring stored as a flattened lat/lon pair array:
	// [lat0, lon0, lat1, lon1, ...].
	Boundary pq.Float64Array `gorm:"type:float8[];not null" json:"boundary"`

	// OriginLat/OriginLon anchor the region's local flat-earth projection,
	// used to measure short distances in meters instead of raw degrees.
	OriginLat float64 `gorm:"not null" json:"origin_lat"`
	OriginLon float64 `gorm:"not null" json:"origin_lon"`
}

func (r *Region) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return
}

// Ring decodes the stored boundary into a polygon.
func (r *Region) Ring() geo.Polygon {
	ring := make(geo.Polygon, 0, len(r.Boundary)/2)
	for i := 0; i+1 < len(r.Boundary); i += 2 {
		ring = append(ring, geo.Point{Lat: r.Boundary[i], Lon: r.Boundary[i+1]})
	}
	return ring
}

// SetRing stores the polygon as a flattened coordinate array and anchors the
// projection at the ring's centroid.
func (r *Region) SetRing(ring geo.Polygon) {
	flat := make(pq.Float64Array, 0, len(ring)*2)
	for _, p := range ring {
		flat = append(flat, p.Lat, p.Lon)
	}
	r.Boundary = flat

	origin := geo.Centroid(ring)
	r.OriginLat = origin.Lat
	r.OriginLon = origin.Lon
}

// Contains reports whether the point lies inside the region's boundary.
func (r *Region) Contains(p geo.Point) bool {
	return r.Ring().Contains(p)
}

// Projection returns the region's local metric projection.
func (r *Region) Projection() geo.Projection {
	return geo.Projection{Origin: geo.Point{Lat: r.OriginLat, Lon: r.OriginLon}}
}

// Landmark is a fixed point inside a region that users can meet at.
type Landmark struct {
	ID   string `gorm:"primaryKey" json:"id"`
	Name string `gorm:"size:50;not null" json:"name"`

	Latitude  float64 `gorm:"not null" json:"latitude"`
	Longitude float64 `gorm:"not null" json:"longitude"`

	// RegionID is the owning region; nil when the landmark's region was
	// deleted out from under it.
	RegionID *string `gorm:"index" json:"region_id,omitempty"`
}

func (l *Landmark) BeforeCreate(tx *gorm.DB) (err error) {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	return
}

// Location returns the landmark's coordinate.
func (l *Landmark) Location() geo.Point {
	return geo.Point{Lat: l.Latitude, Lon: l.Longitude}
}
