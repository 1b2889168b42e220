// Package gridtest builds synthetic grid files for tests.
package gridtest

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/beetlebugorg/gridshift/internal/grid"
	"github.com/beetlebugorg/gridshift/internal/gridfile"
)

// Binary describes a binary grid in degrees. Value returns the correction
// pair, in arc-seconds with longitude positive west, at grid point (col, row)
// counted from the southwest corner.
type Binary struct {
	SouthWest grid.LL
	Cols      int
	Rows      int
	DeltaLng  float64
	DeltaLat  float64
	Order     binary.ByteOrder // nil means big-endian
	Value     func(col, row int) gridfile.Element
}

// NorthEast returns the grid's northeast corner.
func (b Binary) NorthEast() grid.LL {
	return grid.LL{
		Lng: b.SouthWest.Lng + float64(b.Cols-1)*b.DeltaLng,
		Lat: b.SouthWest.Lat + float64(b.Rows-1)*b.DeltaLat,
	}
}

// Bytes encodes the grid.
func (b Binary) Bytes() ([]byte, error) {
	order := b.Order
	if order == nil {
		order = binary.BigEndian
	}
	ne := b.NorthEast()
	h := gridfile.Header{
		NorthLat:  ne.Lat * 3600,
		SouthLat:  b.SouthWest.Lat * 3600,
		EastLng:   -ne.Lng * 3600,
		WestLng:   -b.SouthWest.Lng * 3600,
		LatGrid:   b.DeltaLat * 3600,
		LngGrid:   b.DeltaLng * 3600,
		Type:      "SECONDS",
		Version:   "NTv1",
		FromDatum: "NTF",
		ToDatum:   "RGF93",
	}
	rows := make([][]gridfile.Element, b.Rows)
	for r := range rows {
		rows[r] = make([]gridfile.Element, b.Cols)
		for c := range rows[r] {
			if b.Value != nil {
				rows[r][c] = b.Value(c, r)
			}
		}
	}
	var buf bytes.Buffer
	if err := gridfile.Encode(&buf, h, order, rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteBinary writes the grid to dir/name and returns the path.
func WriteBinary(t testing.TB, dir, name string, b Binary) string {
	t.Helper()
	data, err := b.Bytes()
	if err != nil {
		t.Fatalf("encode %s: %v", name, err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// Text describes a national text grid in degrees. Value returns the
// NTF->RGF93 translation (tx, ty, tz) in metres at grid point (col, row).
type Text struct {
	SouthWest grid.LL
	Cols      int
	Rows      int
	DeltaLng  float64
	DeltaLat  float64
	Value     func(col, row int) [3]float64
	Skip      func(col, row int) bool // omit a node, for corruption tests
}

// NorthEast returns the grid's northeast corner.
func (g Text) NorthEast() grid.LL {
	return grid.LL{
		Lng: g.SouthWest.Lng + float64(g.Cols-1)*g.DeltaLng,
		Lat: g.SouthWest.Lat + float64(g.Rows-1)*g.DeltaLat,
	}
}

// Bytes renders the grid in GR3DF97A layout, longitude-major like the
// published file.
func (g Text) Bytes() []byte {
	ne := g.NorthEast()
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "GR3D  002024 024 20370201\n")
	fmt.Fprintf(&buf, "GR3D1 %10.4f %10.4f %10.4f %10.4f %9.4f %9.4f\n",
		g.SouthWest.Lng, ne.Lng, g.SouthWest.Lat, ne.Lat, g.DeltaLng, g.DeltaLat)
	fmt.Fprintf(&buf, "GR3D2 INTERPOLATION BILINEAIRE\n")
	fmt.Fprintf(&buf, "GR3D3 PREC CM 01:5 02:10 03:20 04:50 99>100\n")
	id := 1
	for c := 0; c < g.Cols; c++ {
		for r := 0; r < g.Rows; r++ {
			id++
			if g.Skip != nil && g.Skip(c, r) {
				continue
			}
			var v [3]float64
			if g.Value != nil {
				v = g.Value(c, r)
			}
			fmt.Fprintf(&buf, "%05d %14.9f %14.9f %9.3f %8.3f %8.3f  01  -0158\n", id,
				g.SouthWest.Lng+float64(c)*g.DeltaLng,
				g.SouthWest.Lat+float64(r)*g.DeltaLat,
				v[0], v[1], v[2])
		}
	}
	return buf.Bytes()
}

// WriteText writes the grid to dir/name and returns the path.
func WriteText(t testing.TB, dir, name string, g Text) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, g.Bytes(), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// MeanTranslation is the published mean NTF->RGF93 translation, handy as a
// realistic constant grid value.
var MeanTranslation = [3]float64{-168, -60, 320}
