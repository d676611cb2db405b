package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	RunsTotal        prometheus.Counter
	RunsFailed       prometheus.Counter
	ChannelsChecked  prometheus.Counter
	LiveVideosFound  prometheus.Counter
	LedgerAppends    prometheus.Counter
	PlaylistInserts  prometheus.Counter
	PlaylistFailures prometheus.Counter

	// Histograms (seconds)
	RunDuration prometheus.Observer

	// Gauges
	RetryQueueDepth prometheus.Gauge

	// Labeled
	APICalls *prometheus.CounterVec
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		RunsTotal = promauto.NewCounter(prometheus.CounterOpts{Name: "livelinks_runs_total", Help: "Discovery runs started"})
		RunsFailed = promauto.NewCounter(prometheus.CounterOpts{Name: "livelinks_runs_failed_total", Help: "Discovery runs that ended with an error"})
		ChannelsChecked = promauto.NewCounter(prometheus.CounterOpts{Name: "livelinks_channels_checked_total", Help: "Per-channel live checks performed"})
		LiveVideosFound = promauto.NewCounter(prometheus.CounterOpts{Name: "livelinks_live_videos_found_total", Help: "Live videos discovered (before ledger dedup)"})
		LedgerAppends = promauto.NewCounter(prometheus.CounterOpts{Name: "livelinks_ledger_appends_total", Help: "New links appended to the ledger"})
		PlaylistInserts = promauto.NewCounter(prometheus.CounterOpts{Name: "livelinks_playlist_inserts_total", Help: "Successful playlist item insertions"})
		PlaylistFailures = promauto.NewCounter(prometheus.CounterOpts{Name: "livelinks_playlist_failures_total", Help: "Failed playlist item insertions (kept in retry queue)"})
		RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "livelinks_run_duration_seconds", Help: "Full run duration seconds", Buckets: prometheus.DefBuckets})
		RetryQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{Name: "livelinks_retry_queue_depth", Help: "Video IDs pending playlist insertion"})
		APICalls = promauto.NewCounterVec(prometheus.CounterOpts{Name: "livelinks_api_calls_total", Help: "YouTube Data API calls by endpoint"}, []string{"endpoint"})
	})
}

// CountAPICall increments the per-endpoint API call counter.
func CountAPICall(endpoint string) {
	if APICalls != nil {
		APICalls.WithLabelValues(endpoint).Inc()
	}
}

// SetRetryQueueDepth records the current retry-queue size.
func SetRetryQueueDepth(n int) {
	if RetryQueueDepth != nil {
		RetryQueueDepth.Set(float64(n))
	}
}

// TimeFunc measures the duration of fn and records it in obs if non-nil.
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

// GetCorrelation returns the correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	if s, ok := ctx.Value(corrKey).(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with the corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
