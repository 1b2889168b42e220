package gridshift

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector records conversion and grid I/O metrics. All methods accept a nil
// receiver so callers can leave metrics off.
type Collector struct {
	ConversionsTotal   *prometheus.CounterVec
	ConversionErrors   *prometheus.CounterVec
	ConversionDuration *prometheus.HistogramVec

	GridBytesRead *prometheus.CounterVec
	GridReads     *prometheus.CounterVec

	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter
}

// NewCollector creates a collector registered on reg. A nil reg uses the
// default registerer.
func NewCollector(reg prometheus.Registerer, namespace string) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Collector{
		ConversionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "conversions_total",
				Help:      "Conversions by direction and status",
			},
			[]string{"direction", "status"},
		),

		ConversionErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "conversion_errors_total",
				Help:      "Failed conversions by direction and error kind",
			},
			[]string{"direction", "kind"},
		),

		ConversionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "conversion_duration_seconds",
				Help:      "Conversion latency in seconds",
				Buckets:   []float64{0.000001, 0.000005, 0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
			},
			[]string{"direction"},
		),

		GridBytesRead: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "grid_bytes_read_total",
				Help:      "Bytes read from grid files by format",
			},
			[]string{"format"},
		),

		GridReads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "grid_reads_total",
				Help:      "Grid file reads by format",
			},
			[]string{"format"},
		),

		CacheHits: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cell_cache_hits_total",
				Help:      "Cell lookups served by the cell cache",
			},
		),

		CacheMisses: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cell_cache_misses_total",
				Help:      "Cell lookups that had to read a grid file",
			},
		),
	}
}

func (c *Collector) observeConversion(direction string, status Status, err error, start time.Time) {
	if c == nil {
		return
	}
	c.ConversionDuration.WithLabelValues(direction).Observe(time.Since(start).Seconds())
	if err != nil {
		c.ConversionErrors.WithLabelValues(direction, errorKind(err)).Inc()
		return
	}
	c.ConversionsTotal.WithLabelValues(direction, status.String()).Inc()
}

func (c *Collector) observeRead(f Format, n int) {
	if c == nil {
		return
	}
	c.GridReads.WithLabelValues(f.String()).Inc()
	c.GridBytesRead.WithLabelValues(f.String()).Add(float64(n))
}

func (c *Collector) observeCache(hit bool) {
	if c == nil {
		return
	}
	if hit {
		c.CacheHits.Inc()
	} else {
		c.CacheMisses.Inc()
	}
}

// errorKind maps an error to a short metric label.
func errorKind(err error) string {
	switch {
	case errors.Is(err, ErrIO):
		return "io"
	case errors.Is(err, ErrCorruptData):
		return "corrupt"
	case errors.Is(err, ErrInternal):
		return "internal"
	default:
		return "other"
	}
}
