package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/beetlebugorg/gridshift/pkg/gridshift"
)

var infoFormat string

func init() {
	infoCmd.Flags().StringVar(&infoFormat, "format", "pretty", "output format (pretty|json)")
}

var infoCmd = &cobra.Command{
	Use:   "info [grid...]",
	Short: "Describe grid files or the configured catalog",
	Long: `Info prints the header of each grid file given as an argument. Without
arguments it describes every entry of the configured catalog.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format := strings.ToLower(infoFormat)
		if format != "pretty" && format != "json" {
			return fmt.Errorf("unsupported format %q (must be pretty or json)", infoFormat)
		}

		var infos []gridshift.EntryInfo
		if len(args) > 0 {
			for _, path := range args {
				e, err := gridshift.NewCatalogEntry(gridshift.EntrySpec{Path: path}, nil, nil)
				if err != nil {
					return err
				}
				infos = append(infos, e.Info())
				e.Close()
			}
		} else {
			r, err := openResolver(newLogger())
			if err != nil {
				return err
			}
			for _, e := range r.Entries() {
				infos = append(infos, e.Info())
			}
			r.Close()
		}

		if format == "json" {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(infos)
		}
		for i, info := range infos {
			if i > 0 {
				fmt.Fprintln(cmd.OutOrStdout())
			}
			renderInfoPretty(cmd.OutOrStdout(), info)
		}
		return nil
	},
}

var labelColor = color.New(color.Bold)

func renderInfoPretty(out io.Writer, info gridshift.EntryInfo) {
	row := func(label, format string, a ...any) {
		fmt.Fprintf(out, "%s %s\n", labelColor.Sprintf("%-9s", label+":"), fmt.Sprintf(format, a...))
	}
	c := info.Coverage
	row("path", "%s", info.Path)
	row("format", "%s", info.Format)
	if info.Version != "" {
		row("version", "%s", info.Version)
	}
	if info.FromDatum != "" || info.ToDatum != "" {
		row("datums", "%s -> %s", valueOrUnknown(info.FromDatum), valueOrUnknown(info.ToDatum))
	}
	row("coverage", "lng [%g, %g] lat [%g, %g]", c.SouthWest.Lng, c.NorthEast.Lng, c.SouthWest.Lat, c.NorthEast.Lat)
	row("spacing", "%g x %g deg", info.DeltaLng, info.DeltaLat)
	row("nodes", "%d x %d", info.Columns, info.Rows)
	row("density", "%g", c.Density)
}
