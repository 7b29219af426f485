// Package api provides the HTTP server for carepoints: activity ingestion,
// progress queries, and badge and challenge administration.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rural-health/carepoints/internal/app/engagement"
	"github.com/rural-health/carepoints/internal/health"
)

// Options configures a Server.
type Options struct {
	CORSOrigins    []string
	RateLimitRPS   float64 // 0 disables rate limiting
	RateLimitBurst int
	Metrics        bool
	Health         *health.Checker
}

// Server is the carepoints HTTP API server.
type Server struct {
	eng     *engagement.Engine
	health  *health.Checker
	cors    []string
	limiter *rateLimiter

	metricsEnabled bool
}

// NewServer creates a new API server.
func NewServer(eng *engagement.Engine, opts Options) *Server {
	s := &Server{
		eng:            eng,
		health:         opts.Health,
		cors:           opts.CORSOrigins,
		metricsEnabled: opts.Metrics,
	}
	if opts.RateLimitRPS > 0 {
		s.limiter = newRateLimiter(opts.RateLimitRPS, opts.RateLimitBurst)
	}
	return s
}

// PruneVisitors drops rate-limiter state for clients idle longer than
// maxIdle. The daemon's scheduler calls it periodically.
func (s *Server) PruneVisitors(maxIdle time.Duration) int {
	if s.limiter == nil {
		return 0
	}
	return s.limiter.prune(maxIdle)
}

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(corsMiddleware(s.cors))
	r.Use(metricsMiddleware)

	r.Get("/health", s.handleHealth)

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		if s.limiter != nil {
			r.Use(s.limiter.middleware)
		}

		r.Post("/activities", s.handleActivity)
		r.Get("/leaderboard", s.handleLeaderboard)

		r.Route("/users/{userID}", func(r chi.Router) {
			r.Get("/stats", s.handleStats)
			r.Get("/badges", s.handleUserBadges)
			r.Get("/badges/new", s.handleNewBadges)
			r.Get("/feed", s.handleFeed)
			r.Get("/ledger", s.handleLedger)
			r.Get("/challenges", s.handleUserChallenges)
			r.Post("/points/award", s.handleAwardPoints)
			r.Post("/points/spend", s.handleSpendPoints)
		})

		r.Route("/badges", func(r chi.Router) {
			r.Get("/", s.handleListBadges)
			r.Post("/", s.handleCreateBadge)
			r.Get("/{badgeID}", s.handleGetBadge)
			r.Post("/{badgeID}/active", s.handleSetBadgeActive)
		})

		r.Route("/challenges", func(r chi.Router) {
			r.Get("/", s.handleListChallenges)
			r.Post("/", s.handleCreateChallenge)
			r.Get("/{challengeID}", s.handleGetChallenge)
			r.Post("/{challengeID}/join", s.handleJoinChallenge)
			r.Post("/{challengeID}/status", s.handleChallengeStatus)
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	status, code := "ok", http.StatusOK
	if !s.health.IsHealthy() {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]interface{}{
		"status": status,
		"checks": s.health.Statuses(),
	})
}
