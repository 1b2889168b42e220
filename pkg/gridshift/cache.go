package gridshift

import (
	"container/list"
	"sync"
)

// CellCache holds binary grid cells extracted earlier so that revisiting an
// area does not touch the grid file again.
//
// Lookup must only return a pair whose coverage contains p.
type CellCache interface {
	Lookup(source string, p LL) (CellPair, bool)
	Store(source string, cells CellPair)
	Remove(source string)
	Release()
}

// LRUCellCache is a CellCache bounded by cell count with least-recently-used
// eviction.
//
// Example:
//
//	cache := gridshift.NewLRUCellCache(256)
//	opts := gridshift.DefaultResolverOptions()
//	opts.Cache = cache
//	r, err := gridshift.NewResolver(entries, opts)
type LRUCellCache struct {
	capacity int
	cells    map[cellKey]*list.Element
	lru      *list.List // most recent at front
	hits     int
	misses   int
	mu       sync.Mutex
}

// cellKey identifies a cell by its source and southwest corner.
type cellKey struct {
	source string
	lng    float64
	lat    float64
}

type cacheEntry struct {
	key   cellKey
	cells CellPair
}

// NewLRUCellCache creates a cache holding at most capacity cell pairs.
// A capacity <= 0 uses DefaultCacheSize.
func NewLRUCellCache(capacity int) *LRUCellCache {
	if capacity <= 0 {
		capacity = DefaultCacheSize
	}
	return &LRUCellCache{
		capacity: capacity,
		cells:    make(map[cellKey]*list.Element),
		lru:      list.New(),
	}
}

// Lookup returns a cached pair from source that covers p.
//
// Recent cells are scanned first; spatially coherent queries usually hit the
// front of the list.
func (c *LRUCellCache) Lookup(source string, p LL) (CellPair, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for elem := c.lru.Front(); elem != nil; elem = elem.Next() {
		entry := elem.Value.(*cacheEntry)
		if entry.key.source == source && entry.cells.Covers(p) {
			c.lru.MoveToFront(elem)
			c.hits++
			return entry.cells, true
		}
	}
	c.misses++
	return CellPair{}, false
}

// Store adds a cell pair, evicting the least recently used one when full.
// Invalid pairs are ignored.
func (c *LRUCellCache) Store(source string, cells CellPair) {
	if !cells.Lng.Valid() {
		return
	}
	key := cellKey{
		source: source,
		lng:    cells.Lng.Coverage.SouthWest.Lng,
		lat:    cells.Lng.Coverage.SouthWest.Lat,
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.cells[key]; ok {
		elem.Value.(*cacheEntry).cells = cells
		c.lru.MoveToFront(elem)
		return
	}

	for c.lru.Len() >= c.capacity {
		c.evictLRU()
	}
	c.cells[key] = c.lru.PushFront(&cacheEntry{key: key, cells: cells})
}

// evictLRU removes the least recently used pair. Must be called with c.mu locked.
func (c *LRUCellCache) evictLRU() {
	elem := c.lru.Back()
	if elem == nil {
		return
	}
	c.lru.Remove(elem)
	delete(c.cells, elem.Value.(*cacheEntry).key)
}

// Remove drops every cell of source.
func (c *LRUCellCache) Remove(source string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, elem := range c.cells {
		if key.source == source {
			c.lru.Remove(elem)
			delete(c.cells, key)
		}
	}
}

// Release empties the cache. Counters are kept.
func (c *LRUCellCache) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cells = make(map[cellKey]*list.Element)
	c.lru.Init()
}

// Stats returns cache statistics.
func (c *LRUCellCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return CacheStats{
		Cells:    c.lru.Len(),
		Capacity: c.capacity,
		Hits:     c.hits,
		Misses:   c.misses,
	}
}

// CacheStats holds cache counters.
type CacheStats struct {
	Cells    int // Cell pairs currently cached
	Capacity int // Maximum cell pairs
	Hits     int // Lookups served from the cache
	Misses   int // Lookups that found nothing
}
