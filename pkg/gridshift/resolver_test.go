package gridshift

import (
	"bytes"
	"errors"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/beetlebugorg/gridshift/internal/grid"
	"github.com/beetlebugorg/gridshift/internal/gridfile"
	"github.com/beetlebugorg/gridshift/internal/gridtest"
)

func TestFormatForPath(t *testing.T) {
	tests := []struct {
		path string
		want Format
		err  bool
	}{
		{"/data/GR3DF97A.TXT", FormatTextGrid3D, false},
		{"paris.gsb", FormatBinaryGrid2D, false},
		{"ntv1_can.DAT", FormatBinaryGrid2D, false},
		{"grid.las", FormatAny, true},
		{"noext", FormatAny, true},
	}
	for _, tt := range tests {
		got, err := FormatForPath(tt.path)
		if tt.err {
			if !errors.Is(err, ErrUnsupportedFormat) {
				t.Errorf("%s: expected ErrUnsupportedFormat, got %v", tt.path, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("%s: got %v, %v; want %v", tt.path, got, err, tt.want)
		}
	}
}

func TestNewResolverFailsOnBadEntry(t *testing.T) {
	f := newFixture(t)
	_, err := NewResolver([]EntrySpec{
		{Path: f.text},
		{Path: filepath.Join(f.dir, "missing.gsb")},
	}, DefaultResolverOptions())
	if !errors.Is(err, ErrFileNotFound) {
		t.Fatalf("Expected ErrFileNotFound, got %v", err)
	}
	var ee *EntryError
	if !errors.As(err, &ee) || ee.Op != "open" {
		t.Errorf("Expected *EntryError from open, got %T %v", err, err)
	}

	_, err = NewResolver([]EntrySpec{{Path: filepath.Join(f.dir, "grid.xyz")}}, DefaultResolverOptions())
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestSelectionPrefersFinerGrid(t *testing.T) {
	dir := t.TempDir()
	coarse := parisBinary()
	coarse.SouthWest = grid.LL{Lng: 0, Lat: 46}
	coarse.Cols, coarse.Rows = 6, 6
	coarse.DeltaLng, coarse.DeltaLat = 1, 1
	coarsePath := gridtest.WriteBinary(t, dir, "coarse.gsb", coarse)
	finePath := gridtest.WriteBinary(t, dir, "fine.gsb", parisBinary())

	f := fixture{}
	// Coarse first in the catalog: density still decides.
	r := f.resolver(t, DefaultResolverOptions(), EntrySpec{Path: coarsePath}, EntrySpec{Path: finePath})
	for i := 0; i < 3; i++ {
		e := r.selectEntry(paris.ll(), FormatBinaryGrid2D)
		if e == nil || e.Name() != "fine.gsb" {
			t.Fatalf("query %d: expected fine.gsb, got %v", i, e)
		}
	}

	// Outside the fine grid only the coarse one covers.
	if e := r.selectEntry(LL{Lng: 4, Lat: 47}, FormatBinaryGrid2D); e == nil || e.Name() != "coarse.gsb" {
		t.Errorf("Expected coarse.gsb at (4,47), got %v", e)
	}

	// Format filter.
	if e := r.selectEntry(paris.ll(), FormatTextGrid3D); e != nil {
		t.Errorf("Expected no text entry, got %s", e.Name())
	}
}

func TestSelectionTieKeepsCatalogOrder(t *testing.T) {
	dir := t.TempDir()
	a := gridtest.WriteBinary(t, dir, "a.gsb", parisBinary())
	b := gridtest.WriteBinary(t, dir, "b.gsb", parisBinary())

	f := fixture{}
	r := f.resolver(t, DefaultResolverOptions(), EntrySpec{Path: b}, EntrySpec{Path: a})
	for i := 0; i < 5; i++ {
		if e := r.selectEntry(paris.ll(), FormatAny); e.Name() != "b.gsb" {
			t.Fatalf("query %d: expected first entry b.gsb, got %s", i, e.Name())
		}
	}

	// A density override changes the ranking.
	r2 := f.resolver(t, DefaultResolverOptions(), EntrySpec{Path: b}, EntrySpec{Path: a, Density: 0.1})
	if e := r2.selectEntry(paris.ll(), FormatAny); e.Name() != "a.gsb" {
		t.Errorf("Expected density override to select a.gsb, got %s", e.Name())
	}
}

func TestNoCoveragePassthrough(t *testing.T) {
	f := newFixture(t)
	r := f.resolver(t, DefaultResolverOptions(), EntrySpec{Path: f.text}, EntrySpec{Path: f.binary})

	p := Point{Lng: 30, Lat: 10, Hgt: 12}
	for _, convert := range []func(Point) (Point, Status, error){r.Forward, r.Inverse} {
		out, status, err := convert(p)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if status != StatusNoCoverage {
			t.Errorf("Expected StatusNoCoverage, got %s", status)
		}
		if out != p {
			t.Errorf("Expected unchanged %v, got %v", p, out)
		}
	}
}

func TestFallbackActivation(t *testing.T) {
	f := newFixture(t)
	opts := DefaultResolverOptions()
	opts.Fallback = MeanTranslation{}
	r := f.resolver(t, opts, EntrySpec{Path: f.text})

	p := Point{Lng: 30, Lat: 10, Hgt: 0}

	out, status, err := r.Forward(p)
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	want, _ := MeanTranslation{}.Inverse(p)
	if status != StatusFallback || out != want {
		t.Errorf("Forward = %v %s, want %v fallback", out, status, want)
	}

	out, status, err = r.Inverse(p)
	if err != nil {
		t.Fatalf("Inverse: %v", err)
	}
	want, _ = MeanTranslation{}.Forward(p)
	if status != StatusFallback || out != want {
		t.Errorf("Inverse = %v %s, want %v fallback", out, status, want)
	}
}

func TestFallbackErrorIsHard(t *testing.T) {
	opts := DefaultResolverOptions()
	opts.Fallback = failingFallback{}
	r, err := NewResolver(nil, opts)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	if _, _, err := r.Forward(paris); err == nil {
		t.Error("Expected fallback error to propagate")
	}
}

type failingFallback struct{}

func (failingFallback) Name() string                 { return "failing" }
func (failingFallback) Forward(Point) (Point, error) { return Point{}, errors.New("boom") }
func (failingFallback) Inverse(Point) (Point, error) { return Point{}, errors.New("boom") }

func TestTextOnlyRoundTrip(t *testing.T) {
	f := newFixture(t)
	r := f.resolver(t, DefaultResolverOptions(), EntrySpec{Path: f.text})

	for _, p := range []Point{paris, {Lng: -1.5, Lat: 43.4, Hgt: 5}, {Lng: 7.7, Lat: 48.6, Hgt: 150}} {
		ntf, status, err := r.Forward(p)
		if err != nil || status != StatusSuccess {
			t.Fatalf("Forward(%v) = %s, %v", p, status, err)
		}
		if near(ntf, p, 1e-6) {
			t.Errorf("Forward(%v) did not shift the point", p)
		}
		back, status, err := r.Inverse(ntf)
		if err != nil || status != StatusSuccess {
			t.Fatalf("Inverse(%v) = %s, %v", ntf, status, err)
		}
		if !near(back, p, 1e-8) {
			t.Errorf("Round trip %v -> %v -> %v", p, ntf, back)
		}
		if math.Abs(back.Hgt-p.Hgt) > 1e-3 {
			t.Errorf("Height round trip %f -> %f", p.Hgt, back.Hgt)
		}
	}
}

func TestChainedConversion(t *testing.T) {
	f := newFixture(t)
	chained := f.resolver(t, DefaultResolverOptions(), EntrySpec{Path: f.text}, EntrySpec{Path: f.binary})
	textOnly := f.resolver(t, DefaultResolverOptions(), EntrySpec{Path: f.text})

	stage1, _, err := textOnly.Forward(paris)
	if err != nil {
		t.Fatalf("text Forward: %v", err)
	}
	ntf, status, err := chained.Forward(paris)
	if err != nil || status != StatusSuccess {
		t.Fatalf("chained Forward = %s, %v", status, err)
	}

	// Height comes from the text grid, horizontal from the binary grid.
	if ntf.Hgt != stage1.Hgt {
		t.Errorf("Expected stage-1 height %f, got %f", stage1.Hgt, ntf.Hgt)
	}
	if near(ntf, stage1, 1e-9) {
		t.Error("Binary grid did not refine the horizontal position")
	}

	fine := chained.selectEntry(ntf.ll(), FormatBinaryGrid2D)
	if fine == nil {
		t.Fatal("Expected binary grid to cover the NTF result")
	}
	check, err := fine.Calculate(ntf)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if !near(check, paris, 1e-10) {
		t.Errorf("Binary grid maps %v to %v, want %v", ntf, check, paris)
	}

	back, status, err := chained.Inverse(ntf)
	if err != nil || status != StatusSuccess {
		t.Fatalf("chained Inverse = %s, %v", status, err)
	}
	if !near(back, paris, 1e-10) {
		t.Errorf("Chained round trip returned %v, want %v", back, paris)
	}
}

func TestIOErrorIsNotCoverageGap(t *testing.T) {
	f := newFixture(t)
	r := f.resolver(t, DefaultResolverOptions(), EntrySpec{Path: f.text}, EntrySpec{Path: f.binary})

	// Truncate the data area after the header was validated.
	if err := os.Truncate(f.binary, 11*gridfile.RecordLen+16); err != nil {
		t.Fatal(err)
	}

	out, status, err := r.Forward(paris)
	if !errors.Is(err, ErrIO) {
		t.Fatalf("Expected ErrIO, got %v", err)
	}
	if out != paris || status != StatusNoCoverage {
		t.Errorf("Expected input back with no-coverage on error, got %v %s", out, status)
	}
	out, status, err = r.Inverse(paris)
	if !errors.Is(err, ErrIO) {
		t.Errorf("Expected ErrIO from Inverse, got %v", err)
	}
	if out != paris || status != StatusNoCoverage {
		t.Errorf("Expected input back with no-coverage from Inverse, got %v %s", out, status)
	}

	// Away from the binary grid the text grid still works.
	if _, status, err := r.Forward(Point{Lng: -1, Lat: 44}); err != nil || status != StatusSuccess {
		t.Errorf("Expected success outside the broken grid, got %s, %v", status, err)
	}
}

func TestSource(t *testing.T) {
	f := newFixture(t)
	opts := DefaultResolverOptions()
	opts.Fallback = MeanTranslation{}
	r := f.resolver(t, opts, EntrySpec{Path: f.text}, EntrySpec{Path: f.binary})

	tests := []struct {
		p    Point
		want string
	}{
		{paris, "paris.gsb"},
		{Point{Lng: -1, Lat: 44}, "gr3df97a.txt"},
		{Point{Lng: 30, Lat: 10}, MeanTranslationName},
	}
	for _, tt := range tests {
		got, ok := r.Source(tt.p)
		if !ok || got != tt.want {
			t.Errorf("Source(%v) = %q, %v; want %q", tt.p, got, ok, tt.want)
		}
	}

	bare := f.resolver(t, DefaultResolverOptions(), EntrySpec{Path: f.text})
	if got, ok := bare.Source(Point{Lng: 30, Lat: 10}); ok {
		t.Errorf("Expected no source without fallback, got %q", got)
	}
}

func TestReleaseRehydrates(t *testing.T) {
	f := newFixture(t)
	r := f.resolver(t, DefaultResolverOptions(), EntrySpec{Path: f.text}, EntrySpec{Path: f.binary})

	before, _, err := r.Forward(paris)
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	r.Release()
	if len(r.Entries()) != 2 {
		t.Fatalf("Release must keep the catalog, got %d entries", len(r.Entries()))
	}
	after, status, err := r.Forward(paris)
	if err != nil || status != StatusSuccess {
		t.Fatalf("Forward after Release = %s, %v", status, err)
	}
	if after != before {
		t.Errorf("Expected %v after Release, got %v", before, after)
	}
}

func TestEntryInfo(t *testing.T) {
	f := newFixture(t)
	r := f.resolver(t, DefaultResolverOptions(), EntrySpec{Path: f.text}, EntrySpec{Path: f.binary})

	entries := r.Entries()
	text, bin := entries[0].Info(), entries[1].Info()
	if text.Format != "text-3d" || text.Columns != 16 || text.Rows != 12 {
		t.Errorf("Unexpected text info %+v", text)
	}
	if bin.Format != "binary-2d" || bin.Columns != 3 || bin.FromDatum != "NTF" || bin.ToDatum != "RGF93" {
		t.Errorf("Unexpected binary info %+v", bin)
	}
	if bin.Coverage.Density != 0.5 {
		t.Errorf("Expected binary density 0.5, got %f", bin.Coverage.Density)
	}
}

func TestUnreachableBinaryGridIsLogged(t *testing.T) {
	f := newFixture(t)
	far := parisBinary()
	far.SouthWest = grid.LL{Lng: 30, Lat: 10}
	farPath := gridtest.WriteBinary(t, f.dir, "far.gsb", far)

	var logs bytes.Buffer
	opts := DefaultResolverOptions()
	opts.Logger = slog.New(slog.NewTextHandler(&logs, nil))
	f.resolver(t, opts, EntrySpec{Path: f.text}, EntrySpec{Path: f.binary}, EntrySpec{Path: farPath})

	out := logs.String()
	if !strings.Contains(out, "far.gsb") {
		t.Errorf("Expected a warning for far.gsb, got:\n%s", out)
	}
	if strings.Contains(out, "paris.gsb") {
		t.Errorf("paris.gsb overlaps the text grid and must not be reported:\n%s", out)
	}
}
