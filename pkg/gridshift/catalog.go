package gridshift

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Catalog is a parsed catalog file: an ordered list of grid files plus
// resolver-wide settings.
//
// Entry order matters: when two grids of the same format cover a point with
// the same density, the earlier one serves it. The format of each entry comes
// from its file extension (.txt for the national text grid, .gsb or .dat for
// binary grids).
//
// A catalog file looks like:
//
//	fallback = "ntf-mean"
//	buffer_size = 32768
//	cache_size = 128
//
//	[[entry]]
//	path = "gr3df97a.txt"
//
//	[[entry]]
//	path = "local/paris.gsb"
//	density = 0.25
//	east_positive = true
//
// Example:
//
//	c, err := gridshift.LoadCatalog("/etc/gridshift/grids.toml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	opts, err := c.Apply(gridshift.DefaultResolverOptions())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	r, err := gridshift.NewResolver(c.Entries, opts)
type Catalog struct {
	Path       string // catalog file, empty when parsed from a reader
	Fallback   string // registry name, empty for none
	BufferSize int    // default read-ahead for binary grids, 0 for the built-in default
	CacheSize  int    // cell cache size, -1 when unset
	Entries    []EntrySpec
}

type catalogFile struct {
	Fallback   string         `toml:"fallback"`
	BufferSize int            `toml:"buffer_size"`
	CacheSize  int            `toml:"cache_size"`
	Entries    []catalogEntry `toml:"entry"`
}

type catalogEntry struct {
	Path         string  `toml:"path"`
	BufferSize   int     `toml:"buffer_size"`
	Density      float64 `toml:"density"`
	EastPositive bool    `toml:"east_positive"`
	NoCache      bool    `toml:"no_cache"`
}

// LoadCatalog reads a catalog file. Relative entry paths are resolved
// against the catalog's directory.
func LoadCatalog(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: catalog %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("%w: open catalog %s: %w", ErrIO, path, err)
	}
	defer f.Close()

	c, err := ParseCatalog(f, filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	c.Path = path
	return c, nil
}

// ParseCatalog decodes a TOML catalog from r. Relative entry paths are joined
// to baseDir.
func ParseCatalog(r io.Reader, baseDir string) (*Catalog, error) {
	var raw catalogFile
	meta, err := toml.NewDecoder(r).Decode(&raw)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse TOML: %w", ErrConfig, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%w: unknown key %q", ErrConfig, undecoded[0].String())
	}

	c := &Catalog{
		Fallback:   strings.TrimSpace(raw.Fallback),
		BufferSize: raw.BufferSize,
		CacheSize:  -1,
	}
	if meta.IsDefined("cache_size") {
		c.CacheSize = raw.CacheSize
	}
	if c.BufferSize < 0 {
		return nil, fmt.Errorf("%w: buffer_size %d is negative", ErrConfig, c.BufferSize)
	}
	if len(raw.Entries) == 0 && c.Fallback == "" {
		return nil, fmt.Errorf("%w: catalog has no [[entry]] and no fallback", ErrConfig)
	}

	for i, e := range raw.Entries {
		path := strings.TrimSpace(e.Path)
		if path == "" {
			return nil, fmt.Errorf("%w: entry %d: missing path", ErrConfig, i+1)
		}
		if e.BufferSize < 0 || e.Density < 0 {
			return nil, fmt.Errorf("%w: entry %d: negative buffer_size or density", ErrConfig, i+1)
		}
		if _, err := FormatForPath(path); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i+1, err)
		}
		if !filepath.IsAbs(path) && baseDir != "" {
			path = filepath.Join(baseDir, filepath.FromSlash(path))
		}

		spec := EntrySpec{Path: path, BufferSize: e.BufferSize, Density: e.Density}
		if e.EastPositive {
			spec.Flags |= FlagEastPositive
		}
		if e.NoCache {
			spec.Flags |= FlagNoCache
		}
		c.Entries = append(c.Entries, spec)
	}
	return c, nil
}

// Apply merges the catalog's settings into opts. Settings already present in
// opts win over the catalog's fallback.
func (c *Catalog) Apply(opts ResolverOptions) (ResolverOptions, error) {
	if c.BufferSize > 0 {
		opts.BufferSize = c.BufferSize
	}
	if c.CacheSize >= 0 {
		opts.CacheSize = c.CacheSize
	}
	if opts.Fallback == nil && c.Fallback != "" {
		fb, err := LookupFallback(c.Fallback)
		if err != nil {
			return opts, err
		}
		opts.Fallback = fb
	}
	return opts, nil
}

// OpenCatalog loads the catalog at path and builds a resolver from it.
//
// The catalog's fallback is used only when opts has none; its buffer and
// cache sizes replace those in opts. Any unreadable entry fails the whole
// call.
//
// Example:
//
//	r, err := gridshift.OpenCatalog("grids.toml", gridshift.DefaultResolverOptions())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer r.Close()
//
//	for _, e := range r.Entries() {
//	    fmt.Println(e.Name(), e.Format(), e.Coverage())
//	}
func OpenCatalog(path string, opts ResolverOptions) (*Resolver, error) {
	c, err := LoadCatalog(path)
	if err != nil {
		return nil, err
	}
	opts, err = c.Apply(opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return NewResolver(c.Entries, opts)
}
