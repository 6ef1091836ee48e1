// Package observability registers the Prometheus collectors shared by the journal binaries.
package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	logPersistGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "futureself",
		Subsystem: "journal",
		Name:      "last_log_persisted_timestamp_seconds",
		Help:      "Unix timestamp of the most recent log entry persisted.",
	})
	streakGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "futureself",
		Subsystem: "stats",
		Name:      "current_streak_days",
		Help:      "Streak reported by the most recent statistics computation.",
	})
	statsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "futureself",
		Subsystem: "stats",
		Name:      "computations_total",
		Help:      "Statistics computations grouped by outcome.",
	}, []string{"outcome"})
	aiCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "futureself",
		Subsystem: "coach",
		Name:      "generations_total",
		Help:      "Generative text requests grouped by prompt kind and outcome.",
	}, []string{"kind", "outcome"})
	aiDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "futureself",
		Subsystem: "coach",
		Name:      "generation_duration_seconds",
		Help:      "Latency of generative text requests.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 8),
	}, []string{"kind"})
	httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "futureself",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by route, method and status code.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method", "status"})
)

func init() {
	prometheus.MustRegister(logPersistGauge, streakGauge, statsCounter, aiCounter, aiDuration, httpDuration)
}

// RecordLogPersisted updates the persistence watermark gauge.
func RecordLogPersisted(ts time.Time) {
	if ts.IsZero() {
		return
	}
	logPersistGauge.Set(float64(ts.Unix()))
}

// RecordStatsComputed counts a successful computation and publishes its streak.
func RecordStatsComputed(streak int) {
	statsCounter.WithLabelValues("ok").Inc()
	streakGauge.Set(float64(streak))
}

// RecordStatsFailure counts a computation aborted by a source failure.
func RecordStatsFailure() {
	statsCounter.WithLabelValues("error").Inc()
}

// RecordGeneration tracks one generative text request.
func RecordGeneration(kind string, err error, elapsed time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	aiCounter.WithLabelValues(kind, outcome).Inc()
	aiDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// ObserveHTTPRequest records the latency of a served request.
func ObserveHTTPRequest(route, method string, status int, elapsed time.Duration) {
	httpDuration.WithLabelValues(route, method, strconv.Itoa(status)).Observe(elapsed.Seconds())
}
