package gridshift

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Direction selects the conversion applied by ConvertBatch.
type Direction int

const (
	DirectionForward Direction = iota // RGF93 to NTF
	DirectionInverse                  // NTF to RGF93
)

func (d Direction) String() string {
	if d == DirectionInverse {
		return "inverse"
	}
	return "forward"
}

// ResolverFactory builds a resolver for one batch worker. Resolvers are not
// safe for concurrent use, so every worker gets its own.
type ResolverFactory func() (*Resolver, error)

// BatchOptions configures ConvertBatch.
type BatchOptions struct {
	Direction Direction

	// Workers is the number of goroutines, each with its own resolver.
	// Zero uses GOMAXPROCS.
	Workers int

	// MaxFailures aborts the batch once more points than this fail hard.
	// Negative means never abort.
	MaxFailures int

	// Logger receives a warning per degraded point. Nil discards them.
	Logger *slog.Logger
}

// DefaultBatchOptions returns default options.
func DefaultBatchOptions() BatchOptions {
	return BatchOptions{
		Direction:   DirectionForward,
		Workers:     runtime.GOMAXPROCS(0),
		MaxFailures: -1,
	}
}

// Result is the outcome of one point of a batch.
type Result struct {
	Point  Point  `json:"point" msgpack:"point"`
	Status Status `json:"status" msgpack:"status"`
	Err    error  `json:"-" msgpack:"-"`
}

// ConvertBatch converts points on opts.Workers goroutines. Each worker
// converts a contiguous chunk so its grid reads stay spatially coherent.
//
// Degraded points (no coverage, fallback) are logged as warnings and do not
// count as failures. The batch stops with ErrTooManyFailures once hard
// failures exceed MaxFailures, and with ctx's error when ctx is cancelled.
// Results of unprocessed points are left zero.
//
// Resolvers are not safe for concurrent use, so factory is called once per
// worker and each resolver is closed when its worker finishes.
//
// Example:
//
//	factory := func() (*gridshift.Resolver, error) {
//	    return gridshift.OpenCatalog("grids.toml", gridshift.DefaultResolverOptions())
//	}
//	opts := gridshift.DefaultBatchOptions()
//	opts.MaxFailures = 10
//
//	results, err := gridshift.ConvertBatch(ctx, factory, points, opts)
//	if err != nil {
//	    return err
//	}
//	for i, res := range results {
//	    if res.Err != nil || res.Status.Degraded() {
//	        log.Printf("point %d: %s %v", i, res.Status, res.Err)
//	    }
//	}
func ConvertBatch(ctx context.Context, factory ResolverFactory, points []Point, opts BatchOptions) ([]Result, error) {
	results := make([]Result, len(points))
	if len(points) == 0 {
		return results, nil
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	workers = min(workers, len(points))
	logger := opts.Logger
	if logger == nil {
		logger = ResolverOptions{}.logger()
	}

	var failures atomic.Int64
	chunk := (len(points) + workers - 1) / workers

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for lo := 0; lo < len(points); lo += chunk {
		lo := lo // per-iteration copy (go 1.21 loop semantics)
		hi := min(lo+chunk, len(points))
		g.Go(func() error {
			r, err := factory()
			if err != nil {
				return fmt.Errorf("batch worker: %w", err)
			}
			defer r.Close()

			convert := r.Forward
			if opts.Direction == DirectionInverse {
				convert = r.Inverse
			}

			for i := lo; i < hi; i++ {
				select {
				case <-gctx.Done():
					return gctx.Err()
				default:
				}

				out, status, err := convert(points[i])
				results[i] = Result{Point: out, Status: status, Err: err}
				if err != nil {
					n := failures.Add(1)
					logger.Error("conversion failed", "index", i, "point", points[i], "error", err)
					if opts.MaxFailures >= 0 && n > int64(opts.MaxFailures) {
						return fmt.Errorf("%w: %d failed", ErrTooManyFailures, n)
					}
					continue
				}
				if status.Degraded() {
					logger.Warn("degraded conversion",
						"index", i,
						"point", points[i],
						"direction", opts.Direction.String(),
						"status", status.String())
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}
