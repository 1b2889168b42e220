package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/beetlebugorg/gridshift/pkg/gridshift"
)

var sourceCmd = &cobra.Command{
	Use:   "source <lng> <lat>",
	Short: "Show which grid serves a point",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var v [2]float64
		for i, a := range args {
			x, err := strconv.ParseFloat(a, 64)
			if err != nil {
				return fmt.Errorf("invalid coordinate %q", a)
			}
			v[i] = x
		}

		r, err := openResolver(newLogger())
		if err != nil {
			return err
		}
		defer r.Close()

		name, ok := r.Source(gridshift.Point{Lng: v[0], Lat: v[1]})
		if !ok {
			fmt.Fprintln(cmd.OutOrStdout(), degradedColor.Sprint("not covered"))
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), name)
		return nil
	},
}
