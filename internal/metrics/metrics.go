package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Tracks outbound price fetches by vendor domain and result.
	ScansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_scans_total",
			Help: "Total number of product price scans attempted (by vendor and result).",
		},
		[]string{"vendor", "result"}, // result = "ok" | "error" | "no_price"
	)

	// Measures duration of individual price fetches.
	ScanDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tracker_scan_duration_seconds",
			Help:    "Duration of individual price fetches in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms → ~40s
		},
		[]string{"vendor"},
	)

	// Tracks stats computations served, split by cache outcome where cached.
	StatsRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_stats_requests_total",
			Help: "Total number of price-statistics computations served.",
		},
		[]string{"kind"}, // kind = "windowed" | "latest" | "summary"
	)

	// Counts dashboard summary cache hits and misses.
	SummaryCacheAccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_summary_cache_access_total",
			Help: "Number of cache hits/misses for the dashboard summary.",
		},
		[]string{"result"}, // hit | miss
	)

	// Tracks apply-to-products passes and the rows they changed.
	PropagationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_propagations_total",
			Help: "Total number of scan-frequency propagation passes by outcome.",
		},
		[]string{"scope", "result"}, // scope = "vendor" | "all"; result = "ok" | "conflict" | "error"
	)

	PropagationRowsUpdated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tracker_propagation_rows_updated_total",
			Help: "Total product rows whose scan frequency was changed by propagation.",
		},
	)

	// Tracks NATS messages published by subject and result.
	NATSMessageCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nats_messages_total",
			Help: "Total number of NATS messages published.",
		},
		[]string{"subject", "result"}, // result = "ok" | "error"
	)

	NATSMessageLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nats_message_latency_seconds",
			Help:    "Time taken to publish NATS messages",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"subject"},
	)

	// Tracks total errors (aggregated).
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_errors_total",
			Help: "Count of tracker-level errors by component.",
		},
		[]string{"component", "reason"},
	)

	// Gauges the last successful sweep time (seconds since epoch).
	LastSweepTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tracker_last_sweep_timestamp",
			Help: "Timestamp (unix seconds) of the last completed scan sweep.",
		},
	)
)

// ObserveDuration records the time taken for a function and updates the given histogram.
func ObserveDuration(v interface{}, start time.Time, labels ...string) {
	duration := time.Since(start).Seconds()

	switch metric := v.(type) {
	case *prometheus.HistogramVec:
		metric.WithLabelValues(labels...).Observe(duration)
	case *prometheus.SummaryVec:
		metric.WithLabelValues(labels...).Observe(duration)
	default:
		// counters are not meant for duration tracking
	}
}

func IncScan(vendor, result string) {
	ScansTotal.WithLabelValues(vendor, result).Inc()
}

func IncStatsRequest(kind string) {
	StatsRequestsTotal.WithLabelValues(kind).Inc()
}

func IncSummaryCache(result string) {
	SummaryCacheAccess.WithLabelValues(result).Inc()
}

func IncPropagation(scope, result string) {
	PropagationsTotal.WithLabelValues(scope, result).Inc()
}

func IncNATSMessage(subject, result string) {
	NATSMessageCount.WithLabelValues(subject, result).Inc()
}

func IncError(component, reason string) {
	ErrorsTotal.WithLabelValues(component, reason).Inc()
}

func SetLastSweep(t time.Time) {
	LastSweepTimestamp.Set(float64(t.Unix()))
}
