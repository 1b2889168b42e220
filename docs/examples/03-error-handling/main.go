package main

import (
	"errors"
	"fmt"
	"log"

	"github.com/beetlebugorg/gridshift/pkg/gridshift"
)

func openResolver(paths ...string) (*gridshift.Resolver, error) {
	specs := make([]gridshift.EntrySpec, len(paths))
	for i, p := range paths {
		specs[i] = gridshift.EntrySpec{Path: p}
	}

	resolver, err := gridshift.NewResolver(specs, gridshift.DefaultResolverOptions())
	if err != nil {
		switch {
		case errors.Is(err, gridshift.ErrFileNotFound):
			return nil, fmt.Errorf("grid missing: %w", err)
		case errors.Is(err, gridshift.ErrUnsupportedFormat):
			return nil, fmt.Errorf("not a grid file: %w", err)
		case errors.Is(err, gridshift.ErrMalformedHeader), errors.Is(err, gridshift.ErrTruncatedHeader):
			return nil, fmt.Errorf("damaged grid header: %w", err)
		}
		return nil, err
	}
	return resolver, nil
}

func main() {
	resolver, err := openResolver("gr3df97a.txt")
	if err != nil {
		log.Fatal(err)
	}
	defer resolver.Close()

	points := []gridshift.Point{
		{Lng: 2.3372, Lat: 48.8364},
		{Lng: 30, Lat: 10},
	}
	for _, p := range points {
		out, status, err := resolver.Forward(p)
		switch {
		case err != nil:
			// Data errors are distinct from coverage gaps
			log.Printf("Conversion of %s failed: %v", p, err)
		case status.Degraded():
			log.Printf("Warning: %s not converted by a grid (%s)", p, status)
		default:
			fmt.Printf("%s -> %s\n", p, out)
		}
	}

	// Try a grid that does not exist
	if _, err := openResolver("NONEXISTENT.gsb"); err != nil {
		log.Printf("Expected error: %v", err)
	}
}
