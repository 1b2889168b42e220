package grid

import "math"

// Cell is one interpolation cell of a single correction component.
//
// The four corner samples are collapsed into bilinear coefficients when the
// cell is built:
//
//	AA = sw
//	BB = se - sw
//	CC = nw - sw
//	DD = ne - nw - se + sw
//
// so the value at fractional offsets (dx, dy) is AA + BB*dx + CC*dy + DD*dx*dy.
type Cell struct {
	Coverage Region
	DeltaLng float64
	DeltaLat float64
	AA       float64
	BB       float64
	CC       float64
	DD       float64
	SourceID string
}

// Corners holds the four samples surrounding a cell, named by compass corner.
type Corners struct {
	SW, SE, NW, NE float64
}

// NewCell builds a cell whose southwest corner is at sw with the given spacing.
func NewCell(sw LL, deltaLng, deltaLat, density float64, c Corners, source string) Cell {
	return Cell{
		Coverage: Region{
			SouthWest: sw,
			NorthEast: LL{Lng: sw.Lng + deltaLng, Lat: sw.Lat + deltaLat},
			Density:   density,
		},
		DeltaLng: deltaLng,
		DeltaLat: deltaLat,
		AA:       c.SW,
		BB:       c.SE - c.SW,
		CC:       c.NW - c.SW,
		DD:       c.NE - c.NW - c.SE + c.SW,
		SourceID: source,
	}
}

// Valid reports whether the cell currently describes loaded data.
func (c *Cell) Valid() bool {
	return !c.Coverage.Empty()
}

// Reset marks the cell as empty; its coefficients must not be used again
// until the cell is rebuilt.
func (c *Cell) Reset() {
	c.Coverage = Region{}
}

// Offsets converts p into fractional offsets from the cell's southwest corner.
func (c *Cell) Offsets(p LL) (dx, dy float64) {
	dx = (p.Lng - c.Coverage.SouthWest.Lng) / c.DeltaLng
	dy = (p.Lat - c.Coverage.SouthWest.Lat) / c.DeltaLat
	return dx, dy
}

// Interpolate evaluates the bilinear surface at fractional offsets (dx, dy).
func (c *Cell) Interpolate(dx, dy float64) float64 {
	return c.AA + c.BB*dx + c.CC*dy + c.DD*dx*dy
}

// Value interpolates the cell at p. The caller must have checked coverage.
func (c *Cell) Value(p LL) float64 {
	return c.Interpolate(c.Offsets(p))
}

// CellPair is the longitude and latitude correction cells for one grid cell.
// Both always share the same coverage.
type CellPair struct {
	Lng Cell
	Lat Cell
}

// Covers reports whether both cells are loaded and contain p.
func (cp *CellPair) Covers(p LL) bool {
	return cp.Lng.Valid() && cp.Lng.Coverage.Contains(p)
}

// Reset empties both cells.
func (cp *CellPair) Reset() {
	cp.Lng.Reset()
	cp.Lat.Reset()
}

// Interpolate returns the longitude and latitude corrections at p.
func (cp *CellPair) Interpolate(p LL) (dLng, dLat float64) {
	return cp.Lng.Value(p), cp.Lat.Value(p)
}

// Finite reports whether every coefficient is a finite number.
func (c *Cell) Finite() bool {
	for _, v := range [...]float64{c.AA, c.BB, c.CC, c.DD} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
