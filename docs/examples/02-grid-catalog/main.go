package main

import (
	"fmt"
	"log"
	"os"

	"github.com/beetlebugorg/gridshift/pkg/gridshift"
)

const catalogTOML = `
fallback = "ntf-mean"
cache_size = 128

[[entry]]
path = "gr3df97a.txt"

[[entry]]
path = "ntf_r93.gsb"
buffer_size = 32768
`

func main() {
	if err := os.WriteFile("grids.toml", []byte(catalogTOML), 0o644); err != nil {
		log.Fatal(err)
	}

	resolver, err := gridshift.OpenCatalog("grids.toml", gridshift.DefaultResolverOptions())
	if err != nil {
		log.Fatal(err)
	}
	defer resolver.Close()

	for _, e := range resolver.Entries() {
		info := e.Info()
		c := info.Coverage
		fmt.Printf("%-14s %-9s lng [%g, %g] lat [%g, %g] density %g\n",
			e.Name(), info.Format,
			c.SouthWest.Lng, c.NorthEast.Lng, c.SouthWest.Lat, c.NorthEast.Lat,
			c.Density)
	}

	// Find the grid serving each location
	locations := []gridshift.Point{
		{Lng: 2.3372, Lat: 48.8364},  // Paris
		{Lng: -4.4861, Lat: 48.3904}, // Brest
		{Lng: 13.4050, Lat: 52.5200}, // Berlin
	}
	for _, p := range locations {
		source, ok := resolver.Source(p)
		if !ok {
			source = "(none)"
		}
		fmt.Printf("%s served by %s\n", p, source)
	}

	// Drop cached cells and buffers; the next conversion reloads them
	resolver.Release()
}
