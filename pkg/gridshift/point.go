package gridshift

import (
	"fmt"

	"github.com/beetlebugorg/gridshift/internal/geodesy"
	"github.com/beetlebugorg/gridshift/internal/grid"
)

// Point is a geographic position in decimal degrees, longitude east-positive,
// with a height in metres.
type Point struct {
	Lng float64 `json:"lng" msgpack:"lng"`
	Lat float64 `json:"lat" msgpack:"lat"`
	Hgt float64 `json:"hgt" msgpack:"hgt"`
}

func (p Point) ll() LL {
	return grid.LL{Lng: p.Lng, Lat: p.Lat}
}

func (p Point) geographic() geodesy.Geographic {
	return geodesy.Geographic{Lng: p.Lng, Lat: p.Lat, Hgt: p.Hgt}
}

func pointFrom(g geodesy.Geographic) Point {
	return Point{Lng: g.Lng, Lat: g.Lat, Hgt: g.Hgt}
}

// String formats the point for logs.
func (p Point) String() string {
	return fmt.Sprintf("(%.9f, %.9f, %.3f)", p.Lng, p.Lat, p.Hgt)
}

// LL is a horizontal position in decimal degrees.
type LL = grid.LL

// Region is a rectangular coverage area with its grid density.
type Region = grid.Region

// CellPair is the longitude and latitude correction cells of one binary grid cell.
type CellPair = grid.CellPair

// Status reports how a conversion was served.
type Status int

const (
	// StatusSuccess means a catalog grid covered the point.
	StatusSuccess Status = 0

	// StatusNoCoverage means nothing covered the point and it was returned unchanged.
	StatusNoCoverage Status = 1

	// StatusFallback means no grid covered the point and the fallback converted it.
	StatusFallback Status = 2
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusNoCoverage:
		return "no-coverage"
	case StatusFallback:
		return "fallback"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Degraded reports whether the result did not come from a catalog grid.
func (s Status) Degraded() bool {
	return s != StatusSuccess
}
