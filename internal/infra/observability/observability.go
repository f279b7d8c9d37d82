// Package observability exposes Prometheus metrics for the economy server.
// Registration happens once at init via promauto on the default registry;
// the /metrics endpoint is mounted by the API server when enabled.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Economy Metrics ────────────────────────────────────────────────────────

var (
	// ClicksApplied counts manual clicks accepted by the server.
	ClicksApplied = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tapcore_clicks_total",
		Help: "Manual clicks accepted after the energy check.",
	})

	// CrystalsMinted counts crystals credited, labelled by source.
	CrystalsMinted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tapcore_crystals_minted_total",
		Help: "Crystals credited to users by source (click, passive, task, shop).",
	}, []string{"source"})

	// UpgradesBought counts successful upgrade purchases by key.
	UpgradesBought = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tapcore_upgrades_bought_total",
		Help: "Successful upgrade purchases by upgrade key.",
	}, []string{"upgrade"})

	// TransfersCompleted counts settled transfers.
	TransfersCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tapcore_transfers_total",
		Help: "Settled crystal transfers between users.",
	})

	// PurchasesCompleted counts settled shop purchases.
	PurchasesCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tapcore_purchases_total",
		Help: "Settled shop purchases (direct and Stars-paid).",
	})

	// TasksClaimed counts claimed task rewards.
	TasksClaimed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tapcore_tasks_claimed_total",
		Help: "Task rewards claimed.",
	})

	// RequestDuration observes HTTP handler latency by route and status.
	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tapcore_http_request_duration_seconds",
		Help:    "HTTP request latency by route pattern and status code.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "status"})
)

// ─── HTTP Instrumentation ───────────────────────────────────────────────────

// statusRecorder captures the response status for the duration metric.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware records request duration per route pattern.
func Middleware(routePattern func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			route := routePattern(r)
			if route == "" {
				route = "unmatched"
			}
			RequestDuration.WithLabelValues(route, strconv.Itoa(rec.status)).
				Observe(time.Since(start).Seconds())
		})
	}
}
