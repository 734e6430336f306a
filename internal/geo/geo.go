// Package geo provides the coordinate math used by region assignment,
// matchmaking and arrival detection: great-circle distance, point-in-polygon
// containment, a local flat-earth projection, and centroid calculation.
package geo

import "math"

// EarthRadiusMeters is the mean Earth radius used for distance calculations.
const EarthRadiusMeters = 6371000.0

// Point is a WGS84 coordinate. Longitude is x, Latitude is y.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func toRad(deg float64) float64 { return deg * math.Pi / 180 }

// Haversine returns the great-circle distance in meters between two points.
func Haversine(a, b Point) float64 {
	dLat := toRad(b.Lat - a.Lat)
	dLon := toRad(b.Lon - a.Lon)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusMeters * c
}

// Centroid returns the arithmetic midpoint of the given points.
// The zero Point is returned for an empty slice; callers guard against that.
func Centroid(points []Point) Point {
	if len(points) == 0 {
		return Point{}
	}
	var lat, lon float64
	for _, p := range points {
		lat += p.Lat
		lon += p.Lon
	}
	n := float64(len(points))
	return Point{Lat: lat / n, Lon: lon / n}
}

// Polygon is a closed ring of vertices. The ring does not need to repeat its
// first vertex at the end.
type Polygon []Point

// Contains reports whether p lies inside the polygon, using the ray casting
// algorithm on the lon (x) / lat (y) plane. Points exactly on an edge are
// implementation-defined, matching the underlying geometry test.
func (poly Polygon) Contains(p Point) bool {
	n := len(poly)
	if n < 3 {
		return false
	}

	inside := false
	j := n - 1
	for i := 0; i < n; i++ {
		vi, vj := poly[i], poly[j]
		if (vi.Lat > p.Lat) != (vj.Lat > p.Lat) {
			crossLon := (vj.Lon-vi.Lon)*(p.Lat-vi.Lat)/(vj.Lat-vi.Lat) + vi.Lon
			if p.Lon < crossLon {
				inside = !inside
			}
		}
		j = i
	}
	return inside
}

// Projection converts lat/long coordinates into a flat-earth metric plane
// anchored at an origin, good enough for the short distances a rundezvous
// covers. Each region carries its own origin.
type Projection struct {
	Origin Point
}

// ToPlane projects p into meters east (x) and north (y) of the origin using
// an equirectangular approximation.
func (pr Projection) ToPlane(p Point) (x, y float64) {
	x = toRad(p.Lon-pr.Origin.Lon) * math.Cos(toRad(pr.Origin.Lat)) * EarthRadiusMeters
	y = toRad(p.Lat-pr.Origin.Lat) * EarthRadiusMeters
	return x, y
}

// PlanarDistance returns the distance in meters between two points after
// projecting both into the projection's plane.
func (pr Projection) PlanarDistance(a, b Point) float64 {
	ax, ay := pr.ToPlane(a)
	bx, by := pr.ToPlane(b)
	return math.Hypot(bx-ax, by-ay)
}
