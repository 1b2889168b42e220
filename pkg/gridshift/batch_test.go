package gridshift

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func batchPoints(n int) []Point {
	points := make([]Point, n)
	for i := range points {
		points[i] = Point{
			Lng: 1.6 + 0.8*float64(i)/float64(n),
			Lat: 48.1 + 0.8*float64(i%7)/7,
			Hgt: float64(i),
		}
	}
	return points
}

func TestConvertBatchMatchesSequential(t *testing.T) {
	f := newFixture(t)
	specs := []EntrySpec{{Path: f.text}, {Path: f.binary}}
	factory := func() (*Resolver, error) { return NewResolver(specs, DefaultResolverOptions()) }

	points := batchPoints(200)
	points = append(points, Point{Lng: 30, Lat: 10})

	opts := DefaultBatchOptions()
	opts.Workers = 4
	results, err := ConvertBatch(context.Background(), factory, points, opts)
	if err != nil {
		t.Fatalf("ConvertBatch: %v", err)
	}

	seq := f.resolver(t, DefaultResolverOptions(), specs...)
	for i, p := range points {
		want, status, err := seq.Forward(p)
		if err != nil {
			t.Fatalf("Forward: %v", err)
		}
		got := results[i]
		if got.Err != nil || got.Status != status || !near(got.Point, want, 1e-12) {
			t.Errorf("point %d: got %+v, want %v %s", i, got, want, status)
		}
	}
	if results[len(points)-1].Status != StatusNoCoverage {
		t.Errorf("Expected the last point uncovered, got %s", results[len(points)-1].Status)
	}
}

func TestConvertBatchInverse(t *testing.T) {
	f := newFixture(t)
	specs := []EntrySpec{{Path: f.text}}
	factory := func() (*Resolver, error) { return NewResolver(specs, DefaultResolverOptions()) }

	points := batchPoints(20)
	fwd, err := ConvertBatch(context.Background(), factory, points, BatchOptions{Workers: 2, MaxFailures: -1})
	if err != nil {
		t.Fatalf("forward batch: %v", err)
	}
	ntf := make([]Point, len(fwd))
	for i, r := range fwd {
		ntf[i] = r.Point
	}
	back, err := ConvertBatch(context.Background(), factory, ntf,
		BatchOptions{Direction: DirectionInverse, Workers: 3, MaxFailures: -1})
	if err != nil {
		t.Fatalf("inverse batch: %v", err)
	}
	for i := range points {
		if !near(back[i].Point, points[i], 1e-8) {
			t.Errorf("point %d: round trip %v -> %v", i, points[i], back[i].Point)
		}
	}
}

func TestConvertBatchTooManyFailures(t *testing.T) {
	opts := DefaultResolverOptions()
	opts.Fallback = failingFallback{}
	factory := func() (*Resolver, error) { return NewResolver(nil, opts) }

	points := make([]Point, 50)
	_, err := ConvertBatch(context.Background(), factory, points, BatchOptions{Workers: 2, MaxFailures: 3})
	if !errors.Is(err, ErrTooManyFailures) {
		t.Errorf("Expected ErrTooManyFailures, got %v", err)
	}

	// Unlimited failures run to completion and report per point.
	results, err := ConvertBatch(context.Background(), factory, points, BatchOptions{Workers: 2, MaxFailures: -1})
	if err != nil {
		t.Fatalf("Expected no batch error, got %v", err)
	}
	for i, r := range results {
		if r.Err == nil {
			t.Errorf("point %d: expected error", i)
		}
	}
}

func TestConvertBatchCancelled(t *testing.T) {
	f := newFixture(t)
	factory := func() (*Resolver, error) {
		return NewResolver([]EntrySpec{{Path: f.text}}, DefaultResolverOptions())
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := ConvertBatch(ctx, factory, batchPoints(10), DefaultBatchOptions()); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestConvertBatchFactoryError(t *testing.T) {
	dir := t.TempDir()
	factory := func() (*Resolver, error) {
		return NewResolver([]EntrySpec{{Path: filepath.Join(dir, "missing.gsb")}}, DefaultResolverOptions())
	}
	if _, err := ConvertBatch(context.Background(), factory, batchPoints(4), DefaultBatchOptions()); !errors.Is(err, ErrFileNotFound) {
		t.Errorf("Expected ErrFileNotFound, got %v", err)
	}
}

func TestCollector(t *testing.T) {
	f := newFixture(t)
	reg := prometheus.NewRegistry()
	metrics := NewCollector(reg, "gridshift")

	opts := DefaultResolverOptions()
	opts.Metrics = metrics
	r := f.resolver(t, opts, EntrySpec{Path: f.text}, EntrySpec{Path: f.binary})

	r.Forward(paris)
	r.Forward(paris)
	r.Forward(Point{Lng: 30, Lat: 10})

	if got := testutil.ToFloat64(metrics.ConversionsTotal.WithLabelValues("forward", "success")); got != 2 {
		t.Errorf("Expected 2 successful conversions, got %f", got)
	}
	if got := testutil.ToFloat64(metrics.ConversionsTotal.WithLabelValues("forward", "no-coverage")); got != 1 {
		t.Errorf("Expected 1 uncovered conversion, got %f", got)
	}
	if got := testutil.ToFloat64(metrics.GridReads.WithLabelValues("binary-2d")); got != 1 {
		t.Errorf("Expected 1 binary read, got %f", got)
	}
	if got := testutil.ToFloat64(metrics.GridBytesRead.WithLabelValues("binary-2d")); got != 3*3*16 {
		t.Errorf("Expected 144 binary bytes, got %f", got)
	}
	if got := testutil.ToFloat64(metrics.GridReads.WithLabelValues("text-3d")); got != 1 {
		t.Errorf("Expected 1 text load, got %f", got)
	}
	if got := testutil.ToFloat64(metrics.CacheMisses); got < 1 {
		t.Errorf("Expected cache misses, got %f", got)
	}
	if n := testutil.CollectAndCount(metrics.ConversionDuration); n != 1 {
		t.Errorf("Expected one duration series, got %d", n)
	}
}

func TestCollectorCountsErrors(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewCollector(reg, "")
	opts := DefaultResolverOptions()
	opts.Metrics = metrics
	opts.Fallback = failingFallback{}
	r, err := NewResolver(nil, opts)
	if err != nil {
		t.Fatal(err)
	}
	r.Inverse(paris)
	if got := testutil.ToFloat64(metrics.ConversionErrors.WithLabelValues("inverse", "other")); got != 1 {
		t.Errorf("Expected 1 error, got %f", got)
	}

	var nilCollector *Collector
	nilCollector.observeRead(FormatTextGrid3D, 10)
	nilCollector.observeCache(true)
}
