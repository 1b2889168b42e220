package gridshift

import (
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Resolver converts points between RGF93 and NTF using a catalog of grids.
//
// Forward converts RGF93 to NTF: the finest covering text grid gives the
// first estimate (with height), then the finest binary grid covering that
// estimate refines the horizontal position. Inverse converts NTF to RGF93:
// the text grid runs first for height, then a binary grid covering the input
// overrides the horizontal position.
//
// A Resolver is not safe for concurrent use.
//
// Example:
//
//	r, err := gridshift.NewResolver([]gridshift.EntrySpec{
//	    {Path: "/data/gr3df97a.txt"},
//	    {Path: "/data/paris.gsb"},
//	}, gridshift.DefaultResolverOptions())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer r.Close()
//
//	ntf, status, err := r.Forward(gridshift.Point{Lng: 2.35, Lat: 48.85})
type Resolver struct {
	entries  []*CatalogEntry
	index    *coverageIndex
	fallback Fallback
	cache    CellCache
	metrics  *Collector
	logger   *slog.Logger
}

// NewResolver opens every entry in order. If any entry fails the ones already
// opened are closed and the error is returned.
func NewResolver(specs []EntrySpec, opts ResolverOptions) (*Resolver, error) {
	cache := opts.Cache
	if cache == nil && opts.CacheSize > 0 {
		cache = NewLRUCellCache(opts.CacheSize)
	}

	r := &Resolver{
		entries:  make([]*CatalogEntry, 0, len(specs)),
		fallback: opts.Fallback,
		cache:    cache,
		metrics:  opts.Metrics,
		logger:   opts.logger(),
	}
	for _, spec := range specs {
		if spec.BufferSize <= 0 {
			spec.BufferSize = opts.BufferSize
		}
		e, err := NewCatalogEntry(spec, cache, opts.Metrics)
		if err != nil {
			r.Close()
			return nil, err
		}
		r.entries = append(r.entries, e)
		r.logger.Debug("catalog entry opened",
			"path", spec.Path,
			"format", e.Format().String(),
			"density", e.Coverage().Density)
	}
	r.index = newCoverageIndex(r.entries)
	r.warnUnreachable()
	return r, nil
}

// warnUnreachable logs binary entries that no text entry overlaps. Both
// directions need text coverage first, so such a grid never serves a point.
func (r *Resolver) warnUnreachable() {
	for _, fine := range r.entries {
		if fine.Format() != FormatBinaryGrid2D {
			continue
		}
		reachable := false
		for _, coarse := range r.entries {
			if coarse.Format() == FormatTextGrid3D && coarse.Coverage().Intersects(fine.Coverage()) {
				reachable = true
				break
			}
		}
		if !reachable {
			r.logger.Warn("binary grid outside every text grid, it will not be used", "path", fine.Path())
		}
	}
}

// Entries returns the catalog entries in catalog order.
func (r *Resolver) Entries() []*CatalogEntry {
	out := make([]*CatalogEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Fallback returns the configured fallback, or nil.
func (r *Resolver) Fallback() Fallback { return r.fallback }

// selectEntry returns the entry of format f covering p with the smallest
// positive density. Equal densities keep the earlier entry.
func (r *Resolver) selectEntry(p LL, f Format) *CatalogEntry {
	var best *CatalogEntry
	bestDensity := 0.0
	for _, pos := range r.index.candidates(p) {
		e := r.entries[pos]
		d := e.Test(p, f)
		if d > 0 && (best == nil || d < bestDensity) {
			best, bestDensity = e, d
		}
	}
	return best
}

// Forward converts an RGF93 point to NTF.
//
// A hard error (I/O, corrupt data, internal) returns p unchanged with
// StatusNoCoverage, since no grid served it. A failing fallback returns p with
// StatusFallback. In both cases the error, not the status, is authoritative.
func (r *Resolver) Forward(p Point) (Point, Status, error) {
	start := time.Now()
	out, status, err := r.forward(p)
	r.metrics.observeConversion("forward", status, err, start)
	return out, status, err
}

func (r *Resolver) forward(p Point) (Point, Status, error) {
	coarse := r.selectEntry(p.ll(), FormatTextGrid3D)
	if coarse == nil {
		// The fallback's native direction is NTF to RGF93.
		return r.uncovered(p, "forward", r.fallbackInverse)
	}

	stage1, err := coarse.Calculate(p)
	if err != nil {
		return p, StatusNoCoverage, err
	}

	fine := r.selectEntry(stage1.ll(), FormatBinaryGrid2D)
	if fine == nil {
		r.logger.Debug("forward served", "point", p, "coarse", coarse.Name())
		return stage1, StatusSuccess, nil
	}
	refined, ok, err := fine.Inverse(p, stage1)
	if err != nil {
		return p, StatusNoCoverage, err
	}
	if ok {
		stage1.Lng, stage1.Lat = refined.Lng, refined.Lat
	}
	r.logger.Debug("forward served", "point", p, "coarse", coarse.Name(), "fine", fine.Name(), "refined", ok)
	return stage1, StatusSuccess, nil
}

// Inverse converts an NTF point to RGF93. Errors are reported as for Forward.
func (r *Resolver) Inverse(p Point) (Point, Status, error) {
	start := time.Now()
	out, status, err := r.inverse(p)
	r.metrics.observeConversion("inverse", status, err, start)
	return out, status, err
}

func (r *Resolver) inverse(p Point) (Point, Status, error) {
	coarse := r.selectEntry(p.ll(), FormatTextGrid3D)
	if coarse == nil {
		return r.uncovered(p, "inverse", r.fallbackForward)
	}

	stage1, ok, err := coarse.Inverse(p, p)
	if err != nil {
		return p, StatusNoCoverage, err
	}
	if !ok {
		r.logger.Debug("inverse left text grid coverage", "point", p, "grid", coarse.Name())
		return r.uncovered(p, "inverse", r.fallbackForward)
	}

	fine := r.selectEntry(p.ll(), FormatBinaryGrid2D)
	if fine != nil {
		horizontal, err := fine.Calculate(p)
		if err != nil {
			return p, StatusNoCoverage, err
		}
		stage1.Lng, stage1.Lat = horizontal.Lng, horizontal.Lat
	}
	return stage1, StatusSuccess, nil
}

// uncovered serves a point no grid covers.
func (r *Resolver) uncovered(p Point, direction string, convert func(Point) (Point, error)) (Point, Status, error) {
	if r.fallback == nil {
		r.logger.Debug("no coverage", "direction", direction, "point", p)
		return p, StatusNoCoverage, nil
	}
	out, err := convert(p)
	if err != nil {
		return p, StatusFallback, fmt.Errorf("fallback %s %s: %w", r.fallback.Name(), direction, err)
	}
	r.logger.Debug("fallback used", "direction", direction, "point", p, "fallback", r.fallback.Name())
	return out, StatusFallback, nil
}

func (r *Resolver) fallbackForward(p Point) (Point, error) { return r.fallback.Forward(p) }
func (r *Resolver) fallbackInverse(p Point) (Point, error) { return r.fallback.Inverse(p) }

// Source names what would serve p: the binary grid when one refines the
// text grid, else the text grid, else the fallback. It performs no I/O.
func (r *Resolver) Source(p Point) (string, bool) {
	coarse := r.selectEntry(p.ll(), FormatTextGrid3D)
	if coarse == nil {
		if r.fallback != nil {
			return r.fallback.Name(), true
		}
		return "", false
	}
	if fine := r.selectEntry(p.ll(), FormatBinaryGrid2D); fine != nil {
		return fine.Source(p.ll())
	}
	return coarse.Source(p.ll())
}

// Release frees the cache and every entry's buffers and file handles. The
// catalog and fallback stay; the next query reloads what it needs.
func (r *Resolver) Release() {
	if r.cache != nil {
		r.cache.Release()
	}
	for _, e := range r.entries {
		e.Release()
	}
}

// Close releases everything held by the resolver.
func (r *Resolver) Close() error {
	var errs []error
	if r.cache != nil {
		r.cache.Release()
	}
	for _, e := range r.entries {
		if err := e.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
