// Package gridshift converts geographic coordinates between datums using
// catalogs of correction grid files.
//
// A Resolver is built from an ordered catalog of grid files. Two techniques
// can take part: a national text grid of 3D geocentric translations (coarse,
// carries height) and local binary grids of 2D horizontal corrections (fine).
// For each query the resolver picks the covering grid with the smallest
// density, chains the fine grid after the coarse one, and falls back to an
// alternate transformation when no grid covers the point.
//
// # Basic Usage
//
//	r, err := gridshift.OpenCatalog("/data/grids/catalog.toml", gridshift.DefaultResolverOptions())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer r.Close()
//
//	out, status, err := r.Forward(gridshift.Point{Lng: 2.3372, Lat: 48.8364})
//	if err != nil {
//	    log.Fatal(err) // broken grid file, never a coverage gap
//	}
//	if status != gridshift.StatusSuccess {
//	    log.Printf("degraded result: %s", status)
//	}
//
// # Coverage and Status
//
// A point outside every grid is not an error. Forward and Inverse return the
// point unchanged with StatusNoCoverage, or the fallback's result with
// StatusFallback. Errors are reserved for unreadable or corrupt files and
// for internal selection bugs.
//
// # Catalog Files
//
// Catalogs are TOML:
//
//	fallback = "ntf-mean"
//	cache_size = 64
//
//	[[entry]]
//	path = "gr3df97a.txt"
//
//	[[entry]]
//	path = "paris.gsb"
//	buffer_size = 65536
//
// Entry order matters only when two grids covering a point have the same
// density: the earlier one wins.
//
// # Concurrency
//
// A Resolver is not safe for concurrent use. Every lookup may move a grid
// file's read window and overwrite its current cell. Serialize access with a
// mutex or give each goroutine its own Resolver (see ConvertBatch).
package gridshift
