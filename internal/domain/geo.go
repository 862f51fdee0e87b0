package domain

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// extentTolerance absorbs floating-point error when comparing a region's
// extent to the configured minimum: 8.02-8.0 is 0.019999999999999574.
const extentTolerance = 1e-9

// LatLon is a WGS-84 coordinate in degrees.
type LatLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Region is an axis-aligned bounding rectangle. Regions produced by this
// package always satisfy SouthWest <= NorthEast on both axes; treat them as
// immutable values.
type Region struct {
	SouthWest LatLon `json:"south_west"`
	NorthEast LatLon `json:"north_east"`
}

// SpanRegion returns the min/max-normalized rectangle spanning a and b.
func SpanRegion(a, b LatLon) Region {
	return Region{
		SouthWest: LatLon{Lat: math.Min(a.Lat, b.Lat), Lon: math.Min(a.Lon, b.Lon)},
		NorthEast: LatLon{Lat: math.Max(a.Lat, b.Lat), Lon: math.Max(a.Lon, b.Lon)},
	}
}

// LatExtent is the north-south size in degrees.
func (r Region) LatExtent() float64 { return r.NorthEast.Lat - r.SouthWest.Lat }

// LonExtent is the east-west size in degrees.
func (r Region) LonExtent() float64 { return r.NorthEast.Lon - r.SouthWest.Lon }

// Center returns the midpoint of the rectangle.
func (r Region) Center() LatLon {
	return LatLon{
		Lat: (r.SouthWest.Lat + r.NorthEast.Lat) / 2,
		Lon: (r.SouthWest.Lon + r.NorthEast.Lon) / 2,
	}
}

// MeetsMinExtent reports whether both axis extents are at least minExtent.
func (r Region) MeetsMinExtent(minExtent float64) bool {
	return r.LatExtent() >= minExtent-extentTolerance && r.LonExtent() >= minExtent-extentTolerance
}

// ExpandToMinExtent widens every axis narrower than minExtent symmetrically
// about its center so that it measures exactly minExtent. Axes that are
// already wide enough are left untouched. An expanded latitude band that
// would cross a pole is shifted back inside [-90, 90], keeping its extent.
func (r Region) ExpandToMinExtent(minExtent float64) Region {
	out := r
	if r.LatExtent() < minExtent {
		c := (r.SouthWest.Lat + r.NorthEast.Lat) / 2
		out.SouthWest.Lat = c - minExtent/2
		out.NorthEast.Lat = out.SouthWest.Lat + minExtent
		switch {
		case out.NorthEast.Lat > 90:
			out.NorthEast.Lat = 90
			out.SouthWest.Lat = 90 - minExtent
		case out.SouthWest.Lat < -90:
			out.SouthWest.Lat = -90
			out.NorthEast.Lat = -90 + minExtent
		}
	}
	if r.LonExtent() < minExtent {
		c := (r.SouthWest.Lon + r.NorthEast.Lon) / 2
		out.SouthWest.Lon = c - minExtent/2
		out.NorthEast.Lon = out.SouthWest.Lon + minExtent
	}
	return out
}

// Validate checks corner ordering and the minimum extent.
func (r Region) Validate(minExtent float64) error {
	for _, v := range []float64{r.SouthWest.Lat, r.SouthWest.Lon, r.NorthEast.Lat, r.NorthEast.Lon} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &ValidationError{Field: "region", Reason: "coordinates must be finite"}
		}
	}
	if r.SouthWest.Lat > r.NorthEast.Lat || r.SouthWest.Lon > r.NorthEast.Lon {
		return &ValidationError{Field: "region", Reason: "south-west corner must not exceed north-east corner"}
	}
	if r.SouthWest.Lat < -90 || r.NorthEast.Lat > 90 {
		return &ValidationError{Field: "region", Reason: "latitude out of range"}
	}
	if !r.MeetsMinExtent(minExtent) {
		return &ValidationError{
			Field:  "region",
			Reason: fmt.Sprintf("region is too small: each side must be at least %g degrees", minExtent),
		}
	}
	return nil
}

// Bound converts the region to an orb.Bound (points are lon, lat).
func (r Region) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{r.SouthWest.Lon, r.SouthWest.Lat},
		Max: orb.Point{r.NorthEast.Lon, r.NorthEast.Lat},
	}
}

// Contains reports whether p lies inside the region, edges included.
func (r Region) Contains(p LatLon) bool {
	return r.Bound().Contains(orb.Point{p.Lon, p.Lat})
}

// GeoJSON renders the region as a GeoJSON Polygon feature for map overlays.
func (r Region) GeoJSON() ([]byte, error) {
	f := geojson.NewFeature(r.Bound().ToPolygon())
	f.Properties["lat_extent"] = r.LatExtent()
	f.Properties["lon_extent"] = r.LonExtent()
	return f.MarshalJSON()
}

// String formats the region as "(lat,lon)-(lat,lon)".
func (r Region) String() string {
	return fmt.Sprintf("(%.4f,%.4f)-(%.4f,%.4f)",
		r.SouthWest.Lat, r.SouthWest.Lon, r.NorthEast.Lat, r.NorthEast.Lon)
}
