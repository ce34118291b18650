// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Fact request outcomes used as the "result" label.
const (
	FactHit      = "hit"
	FactMiss     = "miss"
	FactFallback = "fallback"
)

var (
	once sync.Once

	// Counters
	SlidesRendered  prometheus.Counter
	SlidesSkipped   prometheus.Counter
	PassesCompleted prometheus.Counter
	FactRequests    *prometheus.CounterVec

	// Histograms (seconds)
	FactFetchDuration prometheus.Observer
	RenderDuration    prometheus.Observer

	// Gauges
	FactCacheEntries prometheus.Gauge
	CurrentDistrict  prometheus.Gauge
	SequencerState   prometheus.Gauge // 0=idle,1=running,2=paused,3=completed
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		SlidesRendered = promauto.NewCounter(prometheus.CounterOpts{Name: "slides_rendered_total", Help: "Number of slides rendered and displayed"})
		SlidesSkipped = promauto.NewCounter(prometheus.CounterOpts{Name: "slides_skipped_total", Help: "Number of districts skipped because no geometry was found"})
		PassesCompleted = promauto.NewCounter(prometheus.CounterOpts{Name: "slideshow_passes_total", Help: "Number of completed passes over the catalog"})
		FactRequests = promauto.NewCounterVec(prometheus.CounterOpts{Name: "fact_requests_total", Help: "Fact lookups by result (hit, miss, fallback)"}, []string{"result"})
		FactFetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "fact_fetch_duration_seconds", Help: "Text service call duration seconds", Buckets: prometheus.DefBuckets})
		RenderDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "slide_render_duration_seconds", Help: "Slide render duration seconds", Buckets: prometheus.DefBuckets})
		FactCacheEntries = promauto.NewGauge(prometheus.GaugeOpts{Name: "fact_cache_entries", Help: "Number of memoized facts"})
		CurrentDistrict = promauto.NewGauge(prometheus.GaugeOpts{Name: "slideshow_current_district", Help: "Number of the district currently displayed (0 when none)"})
		SequencerState = promauto.NewGauge(prometheus.GaugeOpts{Name: "slideshow_state", Help: "Sequencer state idle=0 running=1 paused=2 completed=3"})
	})
}

// RecordFact counts a fact lookup with the given result label.
func RecordFact(result string) {
	if FactRequests != nil {
		FactRequests.WithLabelValues(result).Inc()
	}
}

// SetFactCacheEntries records the current number of memoized facts.
func SetFactCacheEntries(n int) {
	if FactCacheEntries != nil {
		FactCacheEntries.Set(float64(n))
	}
}

// SetCurrentDistrict records the district number on display.
func SetCurrentDistrict(n int) {
	if CurrentDistrict != nil {
		CurrentDistrict.Set(float64(n))
	}
}

// SetSequencerState records the sequencer state code.
func SetSequencerState(code int) {
	if SequencerState != nil {
		SequencerState.Set(float64(code))
	}
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding the correlation id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	v := ctx.Value(corrKey)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
