package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "lotterybets",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lotterybets",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lotterybets",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	betSubmissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lotterybets",
			Subsystem: "bets",
			Name:      "submissions_total",
			Help:      "Total number of bets submitted, by modality and result.",
		},
		[]string{"modality", "result"},
	)

	reconciliations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lotterybets",
			Subsystem: "reconcile",
			Name:      "runs_total",
			Help:      "Total number of bet reconciliations, by modality and outcome.",
		},
		[]string{"modality", "outcome"},
	)

	reconcileDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lotterybets",
			Subsystem: "reconcile",
			Name:      "duration_seconds",
			Help:      "Duration of bet reconciliations.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~16s
		},
		[]string{"modality"},
	)

	providerFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lotterybets",
			Subsystem: "provider",
			Name:      "fetches_total",
			Help:      "Total number of draw result fetches, by modality and result.",
		},
		[]string{"modality", "result"},
	)

	sweepRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lotterybets",
			Subsystem: "sweeper",
			Name:      "runs_total",
			Help:      "Total number of reconciliation sweeps.",
		},
		[]string{"success"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		betSubmissions,
		reconciliations,
		reconcileDuration,
		providerFetches,
		sweepRuns,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	})
}

// RecordSubmission counts a submitted bet. result is "success" or an error kind.
func RecordSubmission(modality, result string) {
	betSubmissions.WithLabelValues(labelOr(modality, "unknown"), labelOr(result, "success")).Inc()
}

// RecordReconciliation records one reconciliation. outcome is a bet status, "cached",
// or an error kind such as "not_yet_drawn".
func RecordReconciliation(modality, outcome string, duration time.Duration) {
	if duration <= 0 {
		duration = time.Millisecond
	}
	modality = labelOr(modality, "unknown")
	reconciliations.WithLabelValues(modality, labelOr(outcome, "unknown")).Inc()
	reconcileDuration.WithLabelValues(modality).Observe(duration.Seconds())
}

// RecordProviderFetch counts one call to the draw result provider.
func RecordProviderFetch(modality, result string) {
	providerFetches.WithLabelValues(labelOr(modality, "unknown"), labelOr(result, "unknown")).Inc()
}

// RecordSweep counts one sweep over unconsulted bets.
func RecordSweep(success bool) {
	sweepRuns.WithLabelValues(strconv.FormatBool(success)).Inc()
}

func labelOr(v, fallback string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return fallback
	}
	return v
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// canonicalPath collapses ids so label cardinality stays bounded:
// /bets/<id>/reconcile becomes /bets/:id/reconcile.
func canonicalPath(raw string) string {
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	switch parts[0] {
	case "bets":
		if len(parts) == 1 {
			return "/bets"
		}
		switch parts[1] {
		case "reconcile", "stats":
			return "/bets/" + parts[1]
		}
		if len(parts) == 2 {
			return "/bets/:id"
		}
		return "/bets/:id/" + parts[2]
	case "rules":
		if len(parts) == 1 {
			return "/rules"
		}
		return "/rules/:modality"
	case "draws":
		if len(parts) < 3 {
			return "/draws"
		}
		if parts[2] == "latest" {
			return "/draws/:modality/latest"
		}
		return "/draws/:modality/:contest"
	}
	return "/" + parts[0]
}
