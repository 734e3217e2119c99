package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ScanDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quantumalpha_scan_duration_seconds",
			Help:    "Wall time of one scan pass",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 180, 300},
		},
		[]string{"mode"},
	)
	ScanCandidates = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "quantumalpha_scan_candidates",
			Help: "Symbols scored in the latest scan",
		},
	)
	DegradedCycles = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "quantumalpha_degraded_cycles_total",
			Help: "Cycles where at least one candidate fell back to the rule engine",
		},
	)
	ProviderFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quantumalpha_provider_failures_total",
			Help: "Upstream fetch failures by provider and section",
		},
		[]string{"provider", "section"},
	)
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quantumalpha_http_requests_total",
			Help: "API requests by route and status",
		},
		[]string{"route", "status"},
	)
)

func init() {
	prometheus.MustRegister(
		ScanDuration, ScanCandidates, DegradedCycles, ProviderFailures, HTTPRequests,
	)
}

// Handler exposes the registry for mounting on the API router.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve starts a standalone listener for deployments that keep metrics off
// the API port.
func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
