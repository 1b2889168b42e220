package gridshift

import (
	"io"
	"log/slog"

	"github.com/beetlebugorg/gridshift/internal/gridfile"
)

// DefaultBufferSize is the read-ahead budget of a binary grid in bytes.
const DefaultBufferSize = gridfile.DefaultBufferSize

// DefaultCacheSize is the number of cell pairs kept by the resolver's cache.
const DefaultCacheSize = 64

// EntryFlags modify how a catalog entry is read.
type EntryFlags uint

const (
	// FlagEastPositive marks a binary grid whose longitude corrections are
	// east-positive instead of the usual west-positive.
	FlagEastPositive EntryFlags = 1 << iota

	// FlagNoCache keeps the entry's cells out of the shared cell cache.
	FlagNoCache
)

// EntrySpec describes one catalog line.
type EntrySpec struct {
	// Path to the grid file. The extension selects the format.
	Path string

	// BufferSize is the read-ahead budget for binary grids. Zero uses the
	// resolver default.
	BufferSize int

	// Density overrides the grid's natural density when > 0. Use it to
	// rank grids differently from their spacing.
	Density float64

	Flags EntryFlags
}

// ResolverOptions configures a Resolver.
type ResolverOptions struct {
	// Fallback converts points no catalog grid covers. Nil means points
	// outside coverage pass through unchanged.
	Fallback Fallback

	// Cache is shared by the resolver's binary grids. When nil and CacheSize
	// is positive an LRU cache of that size is created.
	Cache     CellCache
	CacheSize int

	// BufferSize applies to entries that do not set their own.
	BufferSize int

	// Metrics receives conversion and I/O counters. May be nil.
	Metrics *Collector

	// Logger receives selection and fallback events. Nil discards them.
	Logger *slog.Logger
}

// DefaultResolverOptions returns default options.
func DefaultResolverOptions() ResolverOptions {
	return ResolverOptions{
		CacheSize:  DefaultCacheSize,
		BufferSize: DefaultBufferSize,
	}
}

func (o ResolverOptions) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
