// Package metrics provides Prometheus instrumentation for contraforge.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	enabled     bool
	serviceName string

	// HTTP metrics
	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec

	// Build metrics
	buildTotal        *prometheus.CounterVec
	buildDuration     *prometheus.HistogramVec
	compileCacheTotal *prometheus.CounterVec

	// Sandbox metrics
	sandboxSweptTotal prometheus.Counter

	// Verification metrics
	verificationTotal    *prometheus.CounterVec
	verificationAttempts prometheus.Histogram
)

// Init initializes the metrics system.
func Init(enabledFlag bool, svcName string) {
	enabled = enabledFlag
	serviceName = svcName

	if !enabled {
		return
	}

	// HTTP request counter
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTP request duration histogram
	httpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	buildTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "build_total",
			Help: "Total number of compile and test jobs",
		},
		[]string{"kind", "status"},
	)

	// Toolchain runs take seconds to minutes
	buildDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "build_duration_seconds",
			Help:    "Compile and test job latency in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 60, 120},
		},
		[]string{"kind"},
	)

	compileCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "compile_cache_total",
			Help: "Compile cache lookups by result",
		},
		[]string{"result"},
	)

	sandboxSweptTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sandbox_swept_total",
			Help: "Total number of stale sandboxes removed by the sweeper",
		},
	)

	verificationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verification_total",
			Help: "Total number of verification sessions by final state",
		},
		[]string{"network", "state"},
	)

	verificationAttempts = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "verification_poll_attempts",
			Help:    "Status polls needed to settle a verification session",
			Buckets: prometheus.LinearBuckets(1, 1, 10),
		},
	)

	// Note: Go runtime metrics (goroutines, memory, GC) are automatically
	// collected by prometheus/client_golang - no custom collector needed
}

// RegisterActiveSandboxes exposes the number of live sandboxes as a gauge.
func RegisterActiveSandboxes(fn func() int64) {
	if !enabled {
		return
	}
	promauto.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "sandbox_active",
			Help: "Sandboxes currently acquired by this process",
		},
		func() float64 { return float64(fn()) },
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	if !enabled {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
	}
	return promhttp.Handler()
}

// Enabled returns whether metrics are enabled.
func Enabled() bool {
	return enabled
}

// ServiceName returns the configured service name for metric labels.
func ServiceName() string {
	return serviceName
}
