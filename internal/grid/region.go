// Package grid holds the primitives shared by every grid file format: geographic
// points, coverage regions, interpolation cells and the error taxonomy.
package grid

import "math"

// LL is a geographic position in decimal degrees, longitude east-positive.
type LL struct {
	Lng float64
	Lat float64
}

// Valid reports whether the position is finite and inside ±180/±90.
func (p LL) Valid() bool {
	if math.IsNaN(p.Lng) || math.IsNaN(p.Lat) {
		return false
	}
	return p.Lng >= -180.0 && p.Lng <= 180.0 && p.Lat >= -90.0 && p.Lat <= 90.0
}

// Region is a rectangular coverage area plus the grid spacing (density) of
// whatever produced it.
//
// A smaller density means a finer, more specific grid. A zero density marks an
// uninitialized region which covers nothing.
type Region struct {
	SouthWest LL
	NorthEast LL
	Density   float64
}

// NewRegion builds a region from two corners, ordering them componentwise so
// SouthWest <= NorthEast always holds.
func NewRegion(a, b LL, density float64) Region {
	return Region{
		SouthWest: LL{Lng: math.Min(a.Lng, b.Lng), Lat: math.Min(a.Lat, b.Lat)},
		NorthEast: LL{Lng: math.Max(a.Lng, b.Lng), Lat: math.Max(a.Lat, b.Lat)},
		Density:   density,
	}
}

// Empty reports whether the region is uninitialized.
func (r Region) Empty() bool {
	return r.Density <= 0
}

// Contains returns true if p is within the region, edges included.
func (r Region) Contains(p LL) bool {
	if r.Empty() {
		return false
	}
	return p.Lng >= r.SouthWest.Lng && p.Lng <= r.NorthEast.Lng &&
		p.Lat >= r.SouthWest.Lat && p.Lat <= r.NorthEast.Lat
}

// Test returns the region's density when p is covered and 0 otherwise.
func (r Region) Test(p LL) float64 {
	if !r.Contains(p) {
		return 0
	}
	return r.Density
}

// Intersects returns true if the two regions overlap, touching edges included.
func (r Region) Intersects(other Region) bool {
	return !(other.NorthEast.Lng < r.SouthWest.Lng ||
		other.SouthWest.Lng > r.NorthEast.Lng ||
		other.NorthEast.Lat < r.SouthWest.Lat ||
		other.SouthWest.Lat > r.NorthEast.Lat)
}

// Width returns the longitude extent in degrees.
func (r Region) Width() float64 { return r.NorthEast.Lng - r.SouthWest.Lng }

// Height returns the latitude extent in degrees.
func (r Region) Height() float64 { return r.NorthEast.Lat - r.SouthWest.Lat }
