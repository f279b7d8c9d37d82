// Package api provides the HTTP server for the Tapcore economy backend.
// It exposes the REST surface consumed by the mini-app client: users,
// clicks, upgrades, tasks, transfers, the Stars shop and the global chat.
package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/tapcore-app/tapcore/internal/app/economy"
	"github.com/tapcore-app/tapcore/internal/infra/observability"
)

// Server is the Tapcore HTTP API server.
type Server struct {
	svc            *economy.Service
	metricsEnabled bool

	// Per-user click rate limiting. Scripted autoclickers hammer the click
	// endpoint; everything else is low-frequency.
	limiterMu  sync.Mutex
	limiters   map[int64]*rate.Limiter
	clickRate  rate.Limit
	clickBurst int
}

// NewServer creates a new API server over the economy service.
func NewServer(svc *economy.Service) *Server {
	return &Server{
		svc:        svc,
		limiters:   make(map[int64]*rate.Limiter),
		clickRate:  rate.Limit(25), // clicks/sec well above humanly possible tap rates
		clickBurst: 50,
	}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// SetClickRateLimit overrides the per-user click rate limit.
func (s *Server) SetClickRateLimit(perSecond float64, burst int) {
	s.clickRate = rate.Limit(perSecond)
	s.clickBurst = burst
}

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(corsMiddleware)
	r.Use(observability.Middleware(func(req *http.Request) string {
		return chi.RouteContext(req.Context()).RoutePattern()
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/users", func(r chi.Router) {
		r.Post("/", s.handleCreateOrGetUser)
		r.Get("/leaderboard", s.handleLeaderboard)
		r.Get("/by-telegram/{telegramID}", s.handleGetUserByTelegram)
		r.Get("/{userID}", s.handleGetUser)
		r.Patch("/{userID}", s.handleUpdateProfile)
		r.Post("/{userID}/click", s.handleClick)
		r.Post("/{userID}/passive", s.handlePassive)
		r.Post("/{userID}/add-balance", s.handleAddBalance)
	})

	r.Route("/upgrades", func(r chi.Router) {
		r.Get("/user/{userID}", s.handleUserUpgrades)
		r.Post("/user/{userID}/buy", s.handleBuyUpgrade)
	})

	r.Route("/tasks", func(r chi.Router) {
		r.Get("/user/{userID}", s.handleUserTasks)
		r.Post("/user/{userID}/claim", s.handleClaimTask)
	})

	r.Route("/transfers", func(r chi.Router) {
		r.Post("/{userID}", s.handleCreateTransfer)
		r.Get("/{userID}/history", s.handleTransferHistory)
	})

	r.Route("/shop", func(r chi.Router) {
		r.Get("/items", s.handleShopItems)
		r.Post("/purchase/{userID}", s.handlePurchase)
	})

	r.Route("/stars", func(r chi.Router) {
		r.Post("/create-invoice", s.handleCreateInvoice)
		r.Post("/payment", s.handleStarsPayment)
	})

	r.Route("/chat", func(r chi.Router) {
		r.Get("/messages", s.handleChatMessages)
		r.Post("/messages/{userID}", s.handleSendChatMessage)
	})

	r.Get("/settings/click-value", s.handleClickValue)

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

// clickLimiter returns the per-user click limiter, creating it on first use.
func (s *Server) clickLimiter(userID int64) *rate.Limiter {
	s.limiterMu.Lock()
	defer s.limiterMu.Unlock()
	lim, ok := s.limiters[userID]
	if !ok {
		lim = rate.NewLimiter(s.clickRate, s.clickBurst)
		s.limiters[userID] = lim
	}
	return lim
}

// ─── Response Helpers ───────────────────────────────────────────────────────

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response in the {"detail": ...} shape the
// client expects.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"detail": msg})
}

// corsMiddleware adds CORS headers for the web client.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
