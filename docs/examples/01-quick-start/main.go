package main

import (
	"fmt"
	"log"

	"github.com/beetlebugorg/gridshift/pkg/gridshift"
)

func main() {
	// Coarse national grid first, then a finer local grid
	specs := []gridshift.EntrySpec{
		{Path: "gr3df97a.txt"},
		{Path: "ntf_r93.gsb"},
	}

	opts := gridshift.DefaultResolverOptions()
	opts.Fallback = gridshift.MeanTranslation{}

	resolver, err := gridshift.NewResolver(specs, opts)
	if err != nil {
		log.Fatal(err)
	}
	defer resolver.Close()

	// RGF93 -> NTF
	rgf := gridshift.Point{Lng: 2.3372, Lat: 48.8364, Hgt: 40}
	ntf, status, err := resolver.Forward(rgf)
	if err != nil {
		log.Fatal(err)
	}
	source, _ := resolver.Source(rgf)
	fmt.Printf("RGF93 %s -> NTF %s [%s, %s]\n", rgf, ntf, status, source)

	// NTF -> RGF93
	back, status, err := resolver.Inverse(ntf)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("NTF %s -> RGF93 %s [%s]\n", ntf, back, status)
}
