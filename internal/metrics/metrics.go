package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the API.
	Registry = prometheus.NewRegistry()

	// HTTPRequests counts requests by method, path, and status.
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds.
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// SolveDuration tracks wall time per solve in seconds.
	SolveDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "solver_solve_duration_seconds", Help: "Solve wall time in seconds.", Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 600}},
	)
	// SolveIterations tracks search iterations per solve.
	SolveIterations = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "solver_solve_iterations", Help: "Search iterations per solve.", Buckets: []float64{100, 1000, 5000, 10000, 50000, 200000}},
	)
	// Solves counts solve outcomes by status.
	Solves = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "solver_solves_total", Help: "Solves by outcome."},
		[]string{"status"},
	)
	// BestDrivingTime reports the driving time of the most recent best solution.
	BestDrivingTime = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "solver_best_driving_time_minutes", Help: "Driving time of the last completed solve's best solution."},
	)

	// WebhookDeliveries counts webhook delivery outcomes by event type and status.
	WebhookDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "webhook_deliveries_total", Help: "Webhook deliveries by event type and status."},
		[]string{"event_type", "status"},
	)
)

// RegisterDefault registers all collectors on the dedicated registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(SolveDuration)
		Registry.MustRegister(SolveIterations)
		Registry.MustRegister(Solves)
		Registry.MustRegister(BestDrivingTime)
		Registry.MustRegister(WebhookDeliveries)
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once
