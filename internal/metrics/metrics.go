package metrics

import (
	"net/http"

	"github.com/danabek/notification-dispatcher/internal/health"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Reconciler metrics

	SchedulesSyncedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "notifier",
		Name:      "schedules_synced_total",
		Help:      "Schedule mutations applied to the scheduling backend, by action.",
	}, []string{"action"})

	ReconcileDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "notifier",
		Name:      "reconcile_duration_seconds",
		Help:      "Time taken for one full reconciliation pass.",
		Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
	})

	// Dispatcher metrics

	NotificationsDispatchedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "notifier",
		Name:      "notifications_dispatched_total",
		Help:      "Notifications that reached a terminal dispatch outcome.",
	}, []string{"outcome"})

	ClaimConflictsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "notifier",
		Name:      "claim_conflicts_total",
		Help:      "Claims rejected because another poller got the row first.",
	})

	DispatchInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "notifier",
		Name:      "dispatch_in_flight",
		Help:      "Trigger calls currently in flight.",
	})

	DispatchDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "notifier",
		Name:      "dispatch_duration_seconds",
		Help:      "Duration of one claim-to-terminal dispatch, by outcome.",
		Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
	}, []string{"outcome"})

	PollBatchSize = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "notifier",
		Name:      "poll_batch_size",
		Help:      "Candidates returned per poll tick, by poll loop.",
		Buckets:   []float64{1, 2, 5, 10, 25, 50, 100},
	}, []string{"poll"})

	NotificationsReclaimedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "notifier",
		Name:      "notifications_reclaimed_total",
		Help:      "Stuck PROCESSING rows returned to PENDING by the reclaimer.",
	})

	// HTTP metrics

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "notifier",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "notifier",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests.",
	}, []string{"method", "path", "status"})
)

func Register() {
	prometheus.MustRegister(
		SchedulesSyncedTotal,
		ReconcileDuration,
		NotificationsDispatchedTotal,
		ClaimConflictsTotal,
		DispatchInFlight,
		DispatchDuration,
		PollBatchSize,
		NotificationsReclaimedTotal,
		HTTPRequestDuration,
		HTTPRequestsTotal,
	)
}

func NewServer(addr string, checker *health.Checker) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeHealth(w, checker.Liveness(r.Context()))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		writeHealth(w, checker.Readiness(r.Context()))
	})
	return &http.Server{Addr: addr, Handler: mux}
}

func writeHealth(w http.ResponseWriter, result health.HealthResult) {
	w.Header().Set("Content-Type", "application/json")
	if result.Status != "up" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = result.Write(w)
}
