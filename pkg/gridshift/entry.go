package gridshift

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/beetlebugorg/gridshift/internal/gridfile"
	"github.com/beetlebugorg/gridshift/internal/textgrid"
)

// Format identifies the grid technique of a catalog entry.
type Format int

const (
	// FormatAny matches every entry in Test.
	FormatAny Format = iota

	// FormatTextGrid3D is the national 3D translation grid (.txt). It
	// converts RGF93 to NTF natively, carries height, and is coarse.
	FormatTextGrid3D

	// FormatBinaryGrid2D is a local 2D correction grid (.gsb, .dat). It
	// converts NTF to RGF93 natively, horizontally only, and is fine.
	FormatBinaryGrid2D
)

func (f Format) String() string {
	switch f {
	case FormatAny:
		return "any"
	case FormatTextGrid3D:
		return "text-3d"
	case FormatBinaryGrid2D:
		return "binary-2d"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}

// extensions maps lower-case file extensions to formats.
var extensions = map[string]Format{
	".txt": FormatTextGrid3D,
	".gsb": FormatBinaryGrid2D,
	".dat": FormatBinaryGrid2D,
}

// FormatForPath returns the format implied by path's extension.
func FormatForPath(path string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if f, ok := extensions[ext]; ok {
		return f, nil
	}
	return FormatAny, fmt.Errorf("%w: %q (want .txt, .gsb or .dat)", ErrUnsupportedFormat, ext)
}

// Binary grid inverse iteration limits.
const (
	inverseMaxIterations = 10
	inverseTolerance     = 1e-11 // degrees
)

// CatalogEntry is one grid file of a resolver's catalog. Exactly one of the
// readers is set, matching format.
//
// Opening an entry reads only the grid header, so coverage is known for
// selection without loading data. Text grids load all nodes on the first
// lookup; binary grids read a window of records around each query and share
// extracted cells through the resolver's CellCache.
//
// Calculate works in the grid's native direction and Inverse in the other.
// Both require the point to be covered; check with Test first.
//
// Entries are usually built by NewResolver, but can be used alone:
//
// Example:
//
//	e, err := gridshift.NewCatalogEntry(gridshift.EntrySpec{Path: "paris.gsb"}, nil, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer e.Close()
//
//	p := gridshift.Point{Lng: 2.35, Lat: 48.85}
//	if e.Test(gridshift.LL{Lng: p.Lng, Lat: p.Lat}, gridshift.FormatAny) > 0 {
//	    rgf, err := e.Calculate(p)
//	    ...
//	}
type CatalogEntry struct {
	format Format
	spec   EntrySpec

	text   *textgrid.Reader
	binary *gridfile.Reader

	cache   CellCache
	metrics *Collector
}

// NewCatalogEntry opens the grid file named by spec. Only the header is read.
// cache and metrics may be nil.
func NewCatalogEntry(spec EntrySpec, cache CellCache, metrics *Collector) (*CatalogEntry, error) {
	format, err := FormatForPath(spec.Path)
	if err != nil {
		return nil, &EntryError{Op: "open", Path: spec.Path, Err: err}
	}

	e := &CatalogEntry{format: format, spec: spec, cache: cache, metrics: metrics}
	onRead := func(n int) { metrics.observeRead(format, n) }

	switch format {
	case FormatTextGrid3D:
		e.text, err = textgrid.Open(spec.Path, textgrid.Options{
			Density: spec.Density,
			OnRead:  onRead,
		})
	case FormatBinaryGrid2D:
		e.binary, err = gridfile.Open(spec.Path, gridfile.Options{
			BufferSize: spec.BufferSize,
			Density:    spec.Density,
			OnRead:     onRead,
		})
	default:
		err = fmt.Errorf("%w: no reader for %s", ErrInternal, format)
	}
	if err != nil {
		return nil, &EntryError{Op: "open", Path: spec.Path, Err: err}
	}
	return e, nil
}

// Format returns the entry's technique.
func (e *CatalogEntry) Format() Format { return e.format }

// Spec returns the catalog line the entry was built from.
func (e *CatalogEntry) Spec() EntrySpec { return e.spec }

// Path returns the grid file path.
func (e *CatalogEntry) Path() string { return e.spec.Path }

// Name returns the grid file's short name.
func (e *CatalogEntry) Name() string { return filepath.Base(e.spec.Path) }

// Coverage returns the grid's coverage region.
func (e *CatalogEntry) Coverage() Region {
	switch e.format {
	case FormatTextGrid3D:
		return e.text.Coverage()
	case FormatBinaryGrid2D:
		return e.binary.Coverage()
	}
	return Region{}
}

// Test returns the entry's density when it has format f (or f is FormatAny)
// and covers p, else 0.
func (e *CatalogEntry) Test(p LL, f Format) float64 {
	if f != FormatAny && f != e.format {
		return 0
	}
	return e.Coverage().Test(p)
}

// Source returns the name of the grid serving p, if the entry covers it.
func (e *CatalogEntry) Source(p LL) (string, bool) {
	if e.Test(p, FormatAny) == 0 {
		return "", false
	}
	return e.Name(), true
}

// Calculate converts p in the grid's native direction: RGF93 to NTF for text
// grids, NTF to RGF93 for binary grids. Binary grids keep p's height.
// p must be covered.
func (e *CatalogEntry) Calculate(p Point) (Point, error) {
	switch e.format {
	case FormatTextGrid3D:
		g, err := e.text.Forward(p.geographic())
		if err != nil {
			return p, &EntryError{Op: "calculate", Path: e.spec.Path, Err: err}
		}
		return pointFrom(g), nil
	case FormatBinaryGrid2D:
		dLng, dLat, err := e.corrections(p.ll())
		if err != nil {
			return p, &EntryError{Op: "calculate", Path: e.spec.Path, Err: err}
		}
		if e.spec.Flags&FlagEastPositive != 0 {
			dLng = -dLng
		}
		return Point{Lng: p.Lng - dLng/3600.0, Lat: p.Lat + dLat/3600.0, Hgt: p.Hgt}, nil
	}
	return p, fmt.Errorf("%w: calculate on %s entry", ErrInternal, e.format)
}

// Inverse converts target against the grid's native direction. Binary grids
// iterate from seed; text grids ignore it. The bool is false when the
// iteration left the grid's coverage.
func (e *CatalogEntry) Inverse(target, seed Point) (Point, bool, error) {
	switch e.format {
	case FormatTextGrid3D:
		g, ok, err := e.text.Inverse(target.geographic())
		if err != nil {
			return target, false, &EntryError{Op: "inverse", Path: e.spec.Path, Err: err}
		}
		return pointFrom(g), ok, nil
	case FormatBinaryGrid2D:
		return e.binaryInverse(target, seed)
	}
	return target, false, fmt.Errorf("%w: inverse on %s entry", ErrInternal, e.format)
}

// binaryInverse finds x with Calculate(x) == target by fixed-point iteration.
func (e *CatalogEntry) binaryInverse(target, seed Point) (Point, bool, error) {
	x := Point{Lng: seed.Lng, Lat: seed.Lat, Hgt: target.Hgt}
	for i := 0; i < inverseMaxIterations; i++ {
		if e.binary.TestCoverage(x.ll()) == 0 {
			return x, false, nil
		}
		fwd, err := e.Calculate(x)
		if err != nil {
			var ee *EntryError
			if errors.As(err, &ee) {
				ee.Op = "inverse"
			}
			return target, false, err
		}
		dLng, dLat := fwd.Lng-target.Lng, fwd.Lat-target.Lat
		x.Lng -= dLng
		x.Lat -= dLat
		if math.Abs(dLng) < inverseTolerance && math.Abs(dLat) < inverseTolerance {
			break
		}
	}
	return x, true, nil
}

// corrections returns the binary grid's native corrections at p, consulting
// the shared cell cache before the file.
func (e *CatalogEntry) corrections(p LL) (float64, float64, error) {
	b := e.binary
	if b.CellValidFor(p) {
		return b.Calculate(p)
	}

	useCache := e.cache != nil && e.spec.Flags&FlagNoCache == 0
	if useCache {
		cells, ok := e.cache.Lookup(e.spec.Path, p)
		e.metrics.observeCache(ok)
		if ok {
			dLng, dLat := cells.Interpolate(p)
			return dLng, dLat, nil
		}
	}

	dLng, dLat, err := b.Calculate(p)
	if err != nil {
		return 0, 0, err
	}
	if useCache {
		e.cache.Store(e.spec.Path, b.Cells())
	}
	return dLng, dLat, nil
}

// Release frees buffers and file handles. The entry stays usable.
func (e *CatalogEntry) Release() {
	switch e.format {
	case FormatTextGrid3D:
		e.text.Release()
	case FormatBinaryGrid2D:
		e.binary.Release()
	}
}

// Close releases everything held by the entry, including its cells in the
// shared cache.
func (e *CatalogEntry) Close() error {
	switch e.format {
	case FormatTextGrid3D:
		e.text.Release()
	case FormatBinaryGrid2D:
		if e.cache != nil {
			e.cache.Remove(e.spec.Path)
		}
		return e.binary.Close()
	}
	return nil
}

// EntryInfo describes a catalog entry's grid.
type EntryInfo struct {
	Path      string  `json:"path"`
	Format    string  `json:"format"`
	Coverage  Region  `json:"coverage"`
	DeltaLng  float64 `json:"delta_lng"`
	DeltaLat  float64 `json:"delta_lat"`
	Columns   int     `json:"columns"`
	Rows      int     `json:"rows"`
	FromDatum string  `json:"from_datum,omitempty"`
	ToDatum   string  `json:"to_datum,omitempty"`
	Version   string  `json:"version,omitempty"`
}

// Info returns the entry's header details.
func (e *CatalogEntry) Info() EntryInfo {
	info := EntryInfo{
		Path:     e.spec.Path,
		Format:   e.format.String(),
		Coverage: e.Coverage(),
	}
	switch e.format {
	case FormatTextGrid3D:
		h := e.text.Header()
		info.DeltaLng, info.DeltaLat = h.DeltaLng, h.DeltaLat
		info.Columns, info.Rows = h.Cols, h.Rows
		info.FromDatum, info.ToDatum = "NTF", "RGF93"
		info.Version = h.Title
	case FormatBinaryGrid2D:
		h, l := e.binary.Header(), e.binary.Layout()
		info.DeltaLng, info.DeltaLat = l.DeltaLng, l.DeltaLat
		info.Columns, info.Rows = l.Elements, l.Records
		info.FromDatum, info.ToDatum = h.FromDatum, h.ToDatum
		info.Version = h.Version
	}
	return info
}
