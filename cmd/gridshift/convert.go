package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/beetlebugorg/gridshift/pkg/gridshift"
)

var (
	convertInverse     bool
	convertFormat      string
	convertJobs        int
	convertMaxFailures int
)

func init() {
	convertCmd.Flags().BoolVar(&convertInverse, "inverse", false, "convert NTF to RGF93 instead of RGF93 to NTF")
	convertCmd.Flags().StringVar(&convertFormat, "format", "text", "output format (text|json|msgpack)")
	convertCmd.Flags().IntVarP(&convertJobs, "jobs", "j", 1, "number of parallel workers")
	convertCmd.Flags().IntVar(&convertMaxFailures, "max-failures", -1, "abort after this many failed points (negative: never)")
}

var convertCmd = &cobra.Command{
	Use:   "convert [file]",
	Short: "Convert points read from a file or stdin",
	Long: `Convert reads one point per line as "lng lat [hgt]" in decimal degrees,
separated by spaces or commas. Blank lines and lines starting with # are
skipped. Without --inverse points go from RGF93 to NTF.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format := strings.ToLower(convertFormat)
		switch format {
		case "text", "json", "msgpack":
		default:
			return fmt.Errorf("unsupported format %q (must be text, json or msgpack)", convertFormat)
		}

		in := cmd.InOrStdin()
		if len(args) == 1 && args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		}
		points, err := readPoints(in)
		if err != nil {
			return err
		}

		logger := newLogger()
		specs, opts, err := resolverSpecs(logger)
		if err != nil {
			return err
		}
		factory := func() (*gridshift.Resolver, error) {
			return gridshift.NewResolver(specs, opts)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		batch := gridshift.DefaultBatchOptions()
		if convertInverse {
			batch.Direction = gridshift.DirectionInverse
		}
		if convertJobs > 0 {
			batch.Workers = convertJobs
		}
		batch.MaxFailures = convertMaxFailures
		batch.Logger = logger

		results, err := gridshift.ConvertBatch(ctx, factory, points, batch)
		if err != nil {
			return err
		}

		records := makeRecords(points, results)
		if err := writeRecords(cmd.OutOrStdout(), format, records); err != nil {
			return err
		}
		if n := countFailed(records); n > 0 {
			return fmt.Errorf("%d of %d points failed", n, len(records))
		}
		return nil
	},
}

// record is one converted point as written by convert.
type record struct {
	Input  gridshift.Point `json:"input" msgpack:"input"`
	Output gridshift.Point `json:"output" msgpack:"output"`
	Status string          `json:"status" msgpack:"status"`
	Code   int             `json:"code" msgpack:"code"`
	Error  string          `json:"error,omitempty" msgpack:"error,omitempty"`
}

func makeRecords(points []gridshift.Point, results []gridshift.Result) []record {
	records := make([]record, len(points))
	for i, res := range results {
		records[i] = record{
			Input:  points[i],
			Output: res.Point,
			Status: res.Status.String(),
			Code:   int(res.Status),
		}
		if res.Err != nil {
			records[i].Status = "error"
			records[i].Error = res.Err.Error()
		}
	}
	return records
}

func countFailed(records []record) int {
	n := 0
	for _, r := range records {
		if r.Error != "" {
			n++
		}
	}
	return n
}

// readPoints parses "lng lat [hgt]" lines.
func readPoints(r io.Reader) ([]gridshift.Point, error) {
	var points []gridshift.Point
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		p, ok, err := parsePointLine(sc.Text())
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if ok {
			points = append(points, p)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return points, nil
}

var errPointFields = errors.New("expected lng lat [hgt]")

func parsePointLine(s string) (gridshift.Point, bool, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "#") {
		return gridshift.Point{}, false, nil
	}
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == '\t' || r == ','
	})
	if len(fields) < 2 || len(fields) > 3 {
		return gridshift.Point{}, false, errPointFields
	}
	var v [3]float64
	for i, f := range fields {
		x, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return gridshift.Point{}, false, fmt.Errorf("invalid number %q", f)
		}
		v[i] = x
	}
	p := gridshift.Point{Lng: v[0], Lat: v[1], Hgt: v[2]}
	if !(gridshift.LL{Lng: p.Lng, Lat: p.Lat}).Valid() {
		return gridshift.Point{}, false, fmt.Errorf("coordinate out of range: %s", s)
	}
	return p, true, nil
}

var (
	degradedColor = color.New(color.FgYellow)
	failedColor   = color.New(color.FgRed, color.Bold)
)

func writeRecords(w io.Writer, format string, records []record) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	case "msgpack":
		enc := msgpack.NewEncoder(w)
		for i := range records {
			if err := enc.Encode(&records[i]); err != nil {
				return err
			}
		}
		return nil
	}

	bw := bufio.NewWriter(w)
	for _, r := range records {
		switch {
		case r.Error != "":
			fmt.Fprintf(bw, "%s %s\n", r.Input.String(), failedColor.Sprint("error: "+r.Error))
		case r.Code != int(gridshift.StatusSuccess):
			fmt.Fprintf(bw, "%.9f %.9f %.3f %s\n", r.Output.Lng, r.Output.Lat, r.Output.Hgt, degradedColor.Sprint(r.Status))
		default:
			fmt.Fprintf(bw, "%.9f %.9f %.3f\n", r.Output.Lng, r.Output.Lat, r.Output.Hgt)
		}
	}
	return bw.Flush()
}
