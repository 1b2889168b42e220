// Package gridfile reads Canadian-style binary datum-shift grid files.
//
// A file is a header of fixed 16-byte records (8-byte key, 8-byte value)
// followed by rows of float64 correction pairs. Rows run south to north and
// elements within a row run west to east. Header angles are arc-seconds with
// longitude positive west.
//
// The byte order of a file is detected from its first header record and every
// field is decoded individually in that order.
package gridfile

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/beetlebugorg/gridshift/internal/grid"
)

// RecordLen is the size of one header record and of one data element.
const RecordLen = 16

// Header record count limits. Seven is the minimum for the required keys.
const (
	minHeaderRecords = 7
	maxHeaderRecords = 1024
)

// Header is the decoded file header.
type Header struct {
	ByteOrder     binary.ByteOrder
	HeaderRecords int // NUM_OREC

	NorthLat float64 // N_LAT, seconds
	SouthLat float64 // S_LAT, seconds
	EastLng  float64 // E_LONG, seconds positive west
	WestLng  float64 // W_LONG, seconds positive west
	LatGrid  float64 // N_GRID, latitude spacing in seconds
	LngGrid  float64 // W_GRID, longitude spacing in seconds

	Type      string // TYPE, e.g. "SECONDS"
	Version   string // VERSION
	FromDatum string // DATUM_F
	ToDatum   string // DATUM_T
}

// Layout holds the values derived from a header once the file size is known.
type Layout struct {
	Coverage   grid.Region
	DeltaLng   float64 // degrees
	DeltaLat   float64 // degrees
	Elements   int     // grid points per record
	Records    int     // records in the file
	RecordSize int64   // Elements * 2 float64
	FirstData  int64   // byte offset of the first record
	DataEnd    int64   // byte offset just past the last record
}

// indexTolerance absorbs floating error when counting grid points.
const indexTolerance = 1e-6

// Header extent limits in arc-seconds.
const (
	maxLngSeconds = 180 * 3600
	maxLatSeconds = 90 * 3600
)

// maxGridPoints bounds elements per record and records per file, keeping
// every derived byte offset well inside int64.
const maxGridPoints = 1 << 22

// DecodeHeader reads and decodes a header from r.
func DecodeHeader(r io.Reader) (*Header, error) {
	first := make([]byte, RecordLen)
	if _, err := io.ReadFull(r, first); err != nil {
		return nil, fmt.Errorf("%w: first record: %v", grid.ErrTruncatedHeader, err)
	}
	if key := strings.TrimSpace(string(first[:8])); key != "NUM_OREC" {
		return nil, fmt.Errorf("%w: first key %q, want NUM_OREC", grid.ErrMalformedHeader, key)
	}

	order, count, err := detectOrder(first[8:12])
	if err != nil {
		return nil, err
	}

	rest := make([]byte, (count-1)*RecordLen)
	if _, err := io.ReadFull(r, rest); err != nil {
		return nil, fmt.Errorf("%w: want %d records: %v", grid.ErrTruncatedHeader, count, err)
	}

	h := &Header{ByteOrder: order, HeaderRecords: count}
	seen := make(map[string]bool)
	for off := 0; off < len(rest); off += RecordLen {
		rec := rest[off : off+RecordLen]
		key := strings.TrimSpace(string(rec[:8]))
		val := rec[8:16]
		seen[key] = true

		switch key {
		case "N_LAT":
			h.NorthLat = decodeFloat(order, val)
		case "S_LAT":
			h.SouthLat = decodeFloat(order, val)
		case "E_LONG":
			h.EastLng = decodeFloat(order, val)
		case "W_LONG":
			h.WestLng = decodeFloat(order, val)
		case "N_GRID":
			h.LatGrid = decodeFloat(order, val)
		case "W_GRID":
			h.LngGrid = decodeFloat(order, val)
		case "TYPE":
			h.Type = decodeString(val)
		case "VERSION":
			h.Version = decodeString(val)
		case "DATUM_F":
			h.FromDatum = decodeString(val)
		case "DATUM_T":
			h.ToDatum = decodeString(val)
		}
	}

	for _, key := range []string{"N_LAT", "S_LAT", "E_LONG", "W_LONG", "N_GRID", "W_GRID"} {
		if !seen[key] {
			return nil, fmt.Errorf("%w: missing %s", grid.ErrMalformedHeader, key)
		}
	}
	if err := h.validate(); err != nil {
		return nil, err
	}
	return h, nil
}

// detectOrder decodes NUM_OREC big-endian first and falls back to
// little-endian when the value is implausible.
func detectOrder(b []byte) (binary.ByteOrder, int, error) {
	for _, order := range []binary.ByteOrder{binary.BigEndian, binary.LittleEndian} {
		n := int(int32(order.Uint32(b)))
		if n >= minHeaderRecords && n <= maxHeaderRecords {
			return order, n, nil
		}
	}
	return nil, 0, fmt.Errorf("%w: NUM_OREC % x is not a plausible record count",
		grid.ErrMalformedHeader, b)
}

func decodeFloat(order binary.ByteOrder, b []byte) float64 {
	return math.Float64frombits(order.Uint64(b))
}

func decodeString(b []byte) string {
	return strings.TrimRight(string(b), " \x00")
}

func (h *Header) validate() error {
	for _, v := range []float64{h.NorthLat, h.SouthLat, h.EastLng, h.WestLng, h.LatGrid, h.LngGrid} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite header value", grid.ErrMalformedHeader)
		}
	}
	for _, v := range []float64{h.EastLng, h.WestLng} {
		if math.Abs(v) > maxLngSeconds {
			return fmt.Errorf("%w: longitude %g\" outside ±%d\"", grid.ErrMalformedHeader, v, maxLngSeconds)
		}
	}
	for _, v := range []float64{h.NorthLat, h.SouthLat} {
		if math.Abs(v) > maxLatSeconds {
			return fmt.Errorf("%w: latitude %g\" outside ±%d\"", grid.ErrMalformedHeader, v, maxLatSeconds)
		}
	}
	if h.LatGrid <= 0 || h.LngGrid <= 0 {
		return fmt.Errorf("%w: grid spacing must be positive (N_GRID=%g W_GRID=%g)",
			grid.ErrMalformedHeader, h.LatGrid, h.LngGrid)
	}
	if h.NorthLat <= h.SouthLat {
		return fmt.Errorf("%w: N_LAT %g not north of S_LAT %g", grid.ErrMalformedHeader, h.NorthLat, h.SouthLat)
	}
	// Longitudes are positive west, so the western edge is the larger value.
	if h.WestLng <= h.EastLng {
		return fmt.Errorf("%w: W_LONG %g not west of E_LONG %g", grid.ErrMalformedHeader, h.WestLng, h.EastLng)
	}
	return nil
}

// Layout derives grid dimensions and coverage. A densityOverride > 0 replaces
// the natural density (the smaller of the two spacings, in degrees).
func (h *Header) Layout(densityOverride float64) (Layout, error) {
	sw := grid.LL{Lng: -h.WestLng / 3600.0, Lat: h.SouthLat / 3600.0}
	ne := grid.LL{Lng: -h.EastLng / 3600.0, Lat: h.NorthLat / 3600.0}
	dLng := h.LngGrid / 3600.0
	dLat := h.LatGrid / 3600.0

	density := densityOverride
	if density <= 0 {
		density = math.Min(dLng, dLat)
	}

	elements := (ne.Lng-sw.Lng)/dLng + indexTolerance + 1.0
	records := (ne.Lat-sw.Lat)/dLat + indexTolerance + 1.0
	if elements > maxGridPoints || records > maxGridPoints {
		return Layout{}, fmt.Errorf("%w: grid of %.0fx%.0f points exceeds %d per axis",
			grid.ErrMalformedHeader, elements, records, maxGridPoints)
	}

	l := Layout{
		Coverage:  grid.Region{SouthWest: sw, NorthEast: ne, Density: density},
		DeltaLng:  dLng,
		DeltaLat:  dLat,
		Elements:  int(elements),
		Records:   int(records),
		FirstData: int64(h.HeaderRecords) * RecordLen,
	}
	if l.Elements < 2 || l.Records < 2 {
		return Layout{}, fmt.Errorf("%w: grid of %dx%d points has no cells",
			grid.ErrMalformedHeader, l.Elements, l.Records)
	}
	l.RecordSize = int64(l.Elements) * RecordLen
	l.DataEnd = l.FirstData + int64(l.Records)*l.RecordSize
	return l, nil
}
