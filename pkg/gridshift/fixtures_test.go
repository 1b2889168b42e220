package gridshift

import (
	"math"
	"testing"

	"github.com/beetlebugorg/gridshift/internal/grid"
	"github.com/beetlebugorg/gridshift/internal/gridfile"
	"github.com/beetlebugorg/gridshift/internal/gridtest"
)

// franceText is a coarse 1-degree national grid around the mean translation.
func franceText() gridtest.Text {
	return gridtest.Text{
		SouthWest: grid.LL{Lng: -5.5, Lat: 41},
		Cols:      16,
		Rows:      12,
		DeltaLng:  1,
		DeltaLat:  1,
		Value: func(c, r int) [3]float64 {
			return [3]float64{
				-168 + 0.3*float64(c),
				-60 - 0.2*float64(r),
				320 + 0.1*float64(c-r),
			}
		},
	}
}

// parisBinary is a fine 0.5-degree local grid around Paris.
func parisBinary() gridtest.Binary {
	return gridtest.Binary{
		SouthWest: grid.LL{Lng: 1.5, Lat: 48},
		Cols:      3,
		Rows:      3,
		DeltaLng:  0.5,
		DeltaLat:  0.5,
		Value: func(c, r int) gridfile.Element {
			return gridfile.Element{
				Lng: 4.0 + 0.1*float64(c) + 0.05*float64(r),
				Lat: -0.5 + 0.02*float64(c*r),
			}
		},
	}
}

type fixture struct {
	dir    string
	text   string
	binary string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()
	return fixture{
		dir:    dir,
		text:   gridtest.WriteText(t, dir, "gr3df97a.txt", franceText()),
		binary: gridtest.WriteBinary(t, dir, "paris.gsb", parisBinary()),
	}
}

func (f fixture) resolver(t *testing.T, opts ResolverOptions, specs ...EntrySpec) *Resolver {
	t.Helper()
	r, err := NewResolver(specs, opts)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

var paris = Point{Lng: 2.3372, Lat: 48.8364, Hgt: 40}

func near(a, b Point, tolDeg float64) bool {
	return math.Abs(a.Lng-b.Lng) <= tolDeg && math.Abs(a.Lat-b.Lat) <= tolDeg
}
