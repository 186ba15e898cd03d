// Package observability exposes Prometheus metrics for the workout store.
package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	operationCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mapty",
		Subsystem: "store",
		Name:      "operations_total",
		Help:      "Store operations grouped by operation and outcome.",
	}, []string{"op", "result"})

	workoutsGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "mapty",
		Subsystem: "store",
		Name:      "workouts",
		Help:      "Number of workouts in the in-memory collection.",
	})

	persistedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "mapty",
		Subsystem: "store",
		Name:      "last_persisted_timestamp_seconds",
		Help:      "Unix timestamp of the most recent successful write of the collection.",
	})

	blobBytesGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "mapty",
		Subsystem: "store",
		Name:      "blob_bytes",
		Help:      "Size of the most recently written collection blob.",
	})

	eventCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mapty",
		Subsystem: "events",
		Name:      "published_total",
		Help:      "Workout change events grouped by type and delivery outcome.",
	}, []string{"type", "result"})

	requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "mapty",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by method, route pattern and status.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

func init() {
	prometheus.MustRegister(operationCounter, workoutsGauge, persistedGauge, blobBytesGauge, eventCounter, requestDuration)
}

// Outcomes used as the result label.
const (
	ResultOK           = "ok"
	ResultInvalid      = "invalid"
	ResultNotFound     = "not_found"
	ResultStorageError = "storage_error"
	ResultDropped      = "dropped"
	ResultError        = "error"
)

// RecordOperation counts one store operation.
func RecordOperation(op, result string) {
	operationCounter.WithLabelValues(op, result).Inc()
}

// SetWorkoutCount updates the collection size gauge.
func SetWorkoutCount(n int) {
	workoutsGauge.Set(float64(n))
}

// RecordPersisted updates the write watermark and blob size.
func RecordPersisted(ts time.Time, size int) {
	if ts.IsZero() {
		return
	}
	persistedGauge.Set(float64(ts.Unix()))
	blobBytesGauge.Set(float64(size))
}

// RecordEvent counts one change event delivery attempt.
func RecordEvent(eventType, result string) {
	eventCounter.WithLabelValues(eventType, result).Inc()
}

// RecordRequest observes one served HTTP request.
func RecordRequest(method, route string, status int, elapsed time.Duration) {
	requestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}
