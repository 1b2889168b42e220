// Package textgrid reads national 3D translation grids published as text
// (the GR3DF97A layout).
//
// Each node carries the geocentric translation (tx, ty, tz) from NTF to RGF93
// in metres. Only the header is parsed by Open; the node array is loaded on
// the first lookup and dropped again by Release.
package textgrid

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/beetlebugorg/gridshift/internal/geodesy"
	"github.com/beetlebugorg/gridshift/internal/grid"
)

// Line prefixes of the header block.
const (
	titleKey  = "GR3D"
	extentKey = "GR3D1"
)

const (
	indexSlack  = 1e-6
	inverseIter = 4

	// maxNodes bounds the node array allocated by a full load.
	maxNodes = 1 << 22
)

// Header is the parsed GR3D header block.
type Header struct {
	Title     string
	SouthWest grid.LL
	NorthEast grid.LL
	DeltaLng  float64
	DeltaLat  float64
	Cols      int
	Rows      int
}

// Options configures a Reader.
type Options struct {
	// Density overrides the natural density when > 0.
	Density float64

	// OnRead, when set, is called with the byte count of every full load.
	OnRead func(n int)
}

// Reader serves translations from one text grid. Not safe for concurrent use.
type Reader struct {
	path     string
	source   string
	opts     Options
	header   Header
	coverage grid.Region

	nodes []node // row-major from the southwest, nil until loaded
	cells [3]grid.Cell
	loads int
}

type node struct {
	t   geodesy.Vector
	set bool
}

// Open parses the header of the grid at path.
func Open(path string, opts Options) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", grid.ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("%w: open %s: %w", grid.ErrIO, path, err)
	}
	defer f.Close()

	h, err := ParseHeader(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	density := opts.Density
	if density <= 0 {
		density = math.Min(h.DeltaLng, h.DeltaLat)
	}
	return &Reader{
		path:     path,
		source:   filepath.Base(path),
		opts:     opts,
		header:   *h,
		coverage: grid.NewRegion(h.SouthWest, h.NorthEast, density),
	}, nil
}

// ParseHeader reads header lines from r up to the first data line.
func ParseHeader(r io.Reader) (*Header, error) {
	sc := bufio.NewScanner(r)
	var h Header
	var haveExtent bool
	lines := 0
	for sc.Scan() {
		lines++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if !strings.HasPrefix(fields[0], titleKey) {
			break
		}
		switch fields[0] {
		case titleKey:
			h.Title = strings.TrimSpace(strings.TrimPrefix(sc.Text(), titleKey))
		case extentKey:
			if err := h.parseExtent(fields[1:]); err != nil {
				return nil, err
			}
			haveExtent = true
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", grid.ErrIO, err)
	}
	if lines == 0 {
		return nil, fmt.Errorf("%w: empty file", grid.ErrTruncatedHeader)
	}
	if !haveExtent {
		return nil, fmt.Errorf("%w: no %s line", grid.ErrMalformedHeader, extentKey)
	}
	return &h, nil
}

func (h *Header) parseExtent(fields []string) error {
	if len(fields) < 6 {
		return fmt.Errorf("%w: %s needs 6 values, got %d", grid.ErrMalformedHeader, extentKey, len(fields))
	}
	var v [6]float64
	for i := range v {
		f, err := strconv.ParseFloat(fields[i], 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%w: %s value %q", grid.ErrMalformedHeader, extentKey, fields[i])
		}
		v[i] = f
	}
	h.SouthWest = grid.LL{Lng: v[0], Lat: v[2]}
	h.NorthEast = grid.LL{Lng: v[1], Lat: v[3]}
	h.DeltaLng, h.DeltaLat = v[4], v[5]
	if h.DeltaLng <= 0 || h.DeltaLat <= 0 {
		return fmt.Errorf("%w: spacing must be positive", grid.ErrMalformedHeader)
	}
	if h.NorthEast.Lng <= h.SouthWest.Lng || h.NorthEast.Lat <= h.SouthWest.Lat {
		return fmt.Errorf("%w: extent is empty", grid.ErrMalformedHeader)
	}
	if !h.SouthWest.Valid() || !h.NorthEast.Valid() {
		return fmt.Errorf("%w: extent outside ±180/±90", grid.ErrMalformedHeader)
	}
	cols := (h.NorthEast.Lng-h.SouthWest.Lng)/h.DeltaLng + indexSlack + 1
	rows := (h.NorthEast.Lat-h.SouthWest.Lat)/h.DeltaLat + indexSlack + 1
	if cols*rows > maxNodes {
		return fmt.Errorf("%w: grid of %.0fx%.0f nodes exceeds %d", grid.ErrMalformedHeader, cols, rows, maxNodes)
	}
	h.Cols, h.Rows = int(cols), int(rows)
	if h.Cols < 2 || h.Rows < 2 {
		return fmt.Errorf("%w: grid of %dx%d nodes has no cells", grid.ErrMalformedHeader, h.Cols, h.Rows)
	}
	return nil
}

// Path returns the file path.
func (r *Reader) Path() string { return r.path }

// Source returns the file's short name.
func (r *Reader) Source() string { return r.source }

// Header returns the parsed header.
func (r *Reader) Header() Header { return r.header }

// Coverage returns the grid's coverage region.
func (r *Reader) Coverage() grid.Region { return r.coverage }

// Loaded reports whether the node array is resident.
func (r *Reader) Loaded() bool { return r.nodes != nil }

// Loads counts full loads since Open.
func (r *Reader) Loads() int { return r.loads }

// TestCoverage returns the grid's density if p is covered, else 0.
func (r *Reader) TestCoverage(p grid.LL) float64 {
	return r.coverage.Test(p)
}

// Translation returns the interpolated NTF->RGF93 translation at p.
func (r *Reader) Translation(p grid.LL) (geodesy.Vector, error) {
	if !r.cells[0].Valid() || !r.cells[0].Coverage.Contains(p) {
		if err := r.extract(p); err != nil {
			r.Release()
			return geodesy.Vector{}, err
		}
	}
	return geodesy.Vector{
		X: r.cells[0].Value(p),
		Y: r.cells[1].Value(p),
		Z: r.cells[2].Value(p),
	}, nil
}

func (r *Reader) extract(p grid.LL) error {
	if r.coverage.Test(p) == 0 {
		return &grid.ErrNotCovered{Source: r.source, Point: p}
	}
	if r.nodes == nil {
		if err := r.load(); err != nil {
			return err
		}
	}
	h := &r.header
	col := int(math.Floor((p.Lng - h.SouthWest.Lng) / h.DeltaLng))
	row := int(math.Floor((p.Lat - h.SouthWest.Lat) / h.DeltaLat))
	if col == h.Cols-1 {
		col--
	}
	if row == h.Rows-1 {
		row--
	}
	if col < 0 || row < 0 || col >= h.Cols-1 || row >= h.Rows-1 {
		return &grid.ErrIndexOutOfRange{
			Source: r.source, Element: col, Record: row,
			Elements: h.Cols, Records: h.Rows,
		}
	}

	sw := r.nodes[row*h.Cols+col].t
	se := r.nodes[row*h.Cols+col+1].t
	nw := r.nodes[(row+1)*h.Cols+col].t
	ne := r.nodes[(row+1)*h.Cols+col+1].t
	corner := grid.LL{
		Lng: h.SouthWest.Lng + float64(col)*h.DeltaLng,
		Lat: h.SouthWest.Lat + float64(row)*h.DeltaLat,
	}
	density := r.coverage.Density
	r.cells[0] = grid.NewCell(corner, h.DeltaLng, h.DeltaLat, density,
		grid.Corners{SW: sw.X, SE: se.X, NW: nw.X, NE: ne.X}, r.source)
	r.cells[1] = grid.NewCell(corner, h.DeltaLng, h.DeltaLat, density,
		grid.Corners{SW: sw.Y, SE: se.Y, NW: nw.Y, NE: ne.Y}, r.source)
	r.cells[2] = grid.NewCell(corner, h.DeltaLng, h.DeltaLat, density,
		grid.Corners{SW: sw.Z, SE: se.Z, NW: nw.Z, NE: ne.Z}, r.source)
	return nil
}

// load reads every node of the file.
func (r *Reader) load() error {
	f, err := os.Open(r.path)
	if err != nil {
		return fmt.Errorf("%w: reopen %s: %w", grid.ErrIO, r.path, err)
	}
	defer f.Close()

	h := &r.header
	nodes := make([]node, h.Cols*h.Rows)
	counter := &countingReader{r: f}
	sc := bufio.NewScanner(counter)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], titleKey) {
			continue
		}
		if len(fields) < 6 {
			return fmt.Errorf("%w: %s:%d: %d fields, want at least 6",
				grid.ErrCorruptData, r.source, lineNo, len(fields))
		}
		var v [5]float64
		for i := range v {
			f, err := strconv.ParseFloat(fields[i+1], 64)
			if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
				return fmt.Errorf("%w: %s:%d: %q", grid.ErrCorruptData, r.source, lineNo, fields[i+1])
			}
			v[i] = f
		}
		col := int(math.Round((v[0] - h.SouthWest.Lng) / h.DeltaLng))
		row := int(math.Round((v[1] - h.SouthWest.Lat) / h.DeltaLat))
		if col < 0 || row < 0 || col >= h.Cols || row >= h.Rows {
			return fmt.Errorf("%w: %s:%d: node (%g,%g) outside grid",
				grid.ErrCorruptData, r.source, lineNo, v[0], v[1])
		}
		nodes[row*h.Cols+col] = node{t: geodesy.Vector{X: v[2], Y: v[3], Z: v[4]}, set: true}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("%w: read %s: %w", grid.ErrIO, r.path, err)
	}
	for i, n := range nodes {
		if !n.set {
			return fmt.Errorf("%w: %s: node (%d,%d) missing",
				grid.ErrCorruptData, r.source, i%h.Cols, i/h.Cols)
		}
	}

	r.nodes = nodes
	r.loads++
	if r.opts.OnRead != nil {
		r.opts.OnRead(int(counter.n))
	}
	return nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// Forward converts an RGF93 position to NTF, the grid's native direction.
func (r *Reader) Forward(p geodesy.Geographic) (geodesy.Geographic, error) {
	t, err := r.Translation(grid.LL{Lng: p.Lng, Lat: p.Lat})
	if err != nil {
		return p, err
	}
	x := geodesy.GRS80.ToGeocentric(p).Sub(t)
	return geodesy.Clarke1880IGN.FromGeocentric(x), nil
}

// Inverse converts an NTF position to RGF93. The translation is looked up at
// the RGF93 position, so it is refined from the mean translation by a few
// fixed-point steps. The bool is false when an estimate leaves coverage; the
// returned position is then the last estimate.
func (r *Reader) Inverse(p geodesy.Geographic) (geodesy.Geographic, bool, error) {
	x := geodesy.Clarke1880IGN.ToGeocentric(p)
	pos := geodesy.GRS80.FromGeocentric(x.Add(geodesy.NTFToRGF93))
	for i := 0; i < inverseIter; i++ {
		ll := grid.LL{Lng: pos.Lng, Lat: pos.Lat}
		if r.coverage.Test(ll) == 0 {
			return pos, false, nil
		}
		t, err := r.Translation(ll)
		if err != nil {
			return p, false, err
		}
		pos = geodesy.GRS80.FromGeocentric(x.Add(t))
	}
	return pos, true, nil
}

// Release drops the node array and the current cells. The header stays.
func (r *Reader) Release() {
	r.nodes = nil
	for i := range r.cells {
		r.cells[i].Reset()
	}
}
