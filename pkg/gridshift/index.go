package gridshift

import (
	"slices"

	"github.com/dhconnelly/rtreego"
)

// coverageEpsilon gives degenerate coverages a non-zero extent in the R-tree.
const coverageEpsilon = 1e-9

// indexedEntry adapts a catalog position to rtreego.Spatial.
type indexedEntry struct {
	pos    int
	bounds rtreego.Rect
}

// Bounds implements rtreego.Spatial.
func (e indexedEntry) Bounds() rtreego.Rect { return e.bounds }

// coverageIndex finds the entries whose coverage may contain a point.
type coverageIndex struct {
	rtree *rtreego.Rtree
}

func newCoverageIndex(entries []*CatalogEntry) *coverageIndex {
	rtree := rtreego.NewTree(2, 25, 50)
	for i, e := range entries {
		rtree.Insert(indexedEntry{pos: i, bounds: regionRect(e.Coverage())})
	}
	return &coverageIndex{rtree: rtree}
}

// regionRect converts a region to an R-tree rectangle.
func regionRect(r Region) rtreego.Rect {
	point := rtreego.Point{r.SouthWest.Lng, r.SouthWest.Lat}
	lengths := []float64{
		max(r.Width(), coverageEpsilon),
		max(r.Height(), coverageEpsilon),
	}
	rect, _ := rtreego.NewRect(point, lengths)
	return rect
}

// candidates returns catalog positions whose coverage rectangle touches p, in
// catalog order.
func (idx *coverageIndex) candidates(p LL) []int {
	// Pad the query so points on a coverage edge overlap it.
	query, _ := rtreego.NewRect(
		rtreego.Point{p.Lng - coverageEpsilon, p.Lat - coverageEpsilon},
		[]float64{2 * coverageEpsilon, 2 * coverageEpsilon},
	)
	hits := idx.rtree.SearchIntersect(query)
	out := make([]int, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.(indexedEntry).pos)
	}
	slices.Sort(out)
	return out
}
