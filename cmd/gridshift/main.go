package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/beetlebugorg/gridshift/internal/version"
	"github.com/beetlebugorg/gridshift/pkg/gridshift"
)

var rootCmd = &cobra.Command{
	Use:   "gridshift",
	Short: "Grid-based NTF/RGF93 datum shifts",
	Long: `gridshift converts coordinates between NTF and RGF93 using the national
correction grids, falling back to a mean translation outside their coverage.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		mode, err := readColorMode(rootColor)
		if err != nil {
			return err
		}
		color.NoColor = !useColor(mode)
		return nil
	},
}

var (
	rootCatalog  string
	rootGrids    []string
	rootFallback string
	rootColor    string
	rootVerbose  bool
)

// main registers subcommands and persistent flags, then executes the root
// command. A failing command exits with status 1.
func main() {
	rootCmd.Version = version.Version

	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(sourceCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().StringVar(&rootCatalog, "catalog", os.Getenv("GRIDSHIFT_CATALOG"), "catalog file (TOML)")
	rootCmd.PersistentFlags().StringArrayVar(&rootGrids, "grid", nil, "grid file to add after the catalog entries (repeatable)")
	rootCmd.PersistentFlags().StringVar(&rootFallback, "fallback", "", "fallback transform for uncovered points ("+strings.Join(gridshift.FallbackNames(), "|")+"|none)")
	rootCmd.PersistentFlags().StringVar(&rootColor, "color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().BoolVarP(&rootVerbose, "verbose", "v", false, "log grid selection and fallbacks to stderr")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

type colorMode string

const (
	colorAuto colorMode = "auto"
	colorOn   colorMode = "on"
	colorOff  colorMode = "off"
)

func readColorMode(value string) (colorMode, error) {
	switch strings.TrimSpace(strings.ToLower(value)) {
	case "", "auto":
		return colorAuto, nil
	case "on":
		return colorOn, nil
	case "off":
		return colorOff, nil
	default:
		return "", fmt.Errorf("invalid --color value %q (expected auto|on|off)", value)
	}
}

func useColor(mode colorMode) bool {
	switch mode {
	case colorOn:
		return true
	case colorOff:
		return false
	default:
		return isTerminal(os.Stdout)
	}
}

// isTerminal reports whether f is a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func newLogger() *slog.Logger {
	return newLoggerAt(slog.LevelWarn)
}

// newLoggerAt logs to stderr from level up, or from debug with --verbose.
func newLoggerAt(level slog.Level) *slog.Logger {
	if rootVerbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// resolverSpecs gathers the entries and options from --catalog, --grid and
// --fallback.
func resolverSpecs(logger *slog.Logger) ([]gridshift.EntrySpec, gridshift.ResolverOptions, error) {
	opts := gridshift.DefaultResolverOptions()
	opts.Logger = logger

	switch rootFallback {
	case "":
	case "none":
	default:
		fb, err := gridshift.LookupFallback(rootFallback)
		if err != nil {
			return nil, opts, err
		}
		opts.Fallback = fb
	}

	var specs []gridshift.EntrySpec
	if rootCatalog != "" {
		c, err := gridshift.LoadCatalog(rootCatalog)
		if err != nil {
			return nil, opts, err
		}
		if opts, err = c.Apply(opts); err != nil {
			return nil, opts, fmt.Errorf("%s: %w", rootCatalog, err)
		}
		specs = append(specs, c.Entries...)
	}
	for _, path := range rootGrids {
		specs = append(specs, gridshift.EntrySpec{Path: path})
	}
	if rootFallback == "none" {
		opts.Fallback = nil
	}
	if len(specs) == 0 && opts.Fallback == nil {
		return nil, opts, fmt.Errorf("no grids: set --catalog or --grid")
	}
	return specs, opts, nil
}

func openResolver(logger *slog.Logger) (*gridshift.Resolver, error) {
	specs, opts, err := resolverSpecs(logger)
	if err != nil {
		return nil, err
	}
	return gridshift.NewResolver(specs, opts)
}
