package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rural-health/carepoints/internal/app/engagement"
	"github.com/rural-health/carepoints/internal/domain"
)

// ─── Activities ─────────────────────────────────────────────────────────────

// handleActivity scores one qualifying activity. A replayed event_id
// answers 200 with duplicate=true; a scored event answers 201.
func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	var ev domain.ActivityEvent
	if !decodeJSON(w, r, &ev) {
		return
	}
	res, err := s.eng.OnQualifyingActivity(r.Context(), ev)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	status := http.StatusCreated
	if res.Duplicate {
		status = http.StatusOK
	}
	writeJSON(w, status, res)
}

// ─── Users ──────────────────────────────────────────────────────────────────

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.eng.GetUserStats(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleUserBadges lists held badges. ?recent=N returns only the newest N.
func (s *Server) handleUserBadges(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	recent, err := queryInt(r, "recent", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var badges []domain.UserBadge
	if recent > 0 {
		badges, err = s.eng.RecentBadges(r.Context(), userID, recent)
	} else {
		badges, err = s.eng.ListUserBadges(r.Context(), userID)
	}
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	if badges == nil {
		badges = []domain.UserBadge{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"badges": badges})
}

// handleNewBadges answers "what did I earn since my last visit". since is
// RFC 3339; omitted, it covers the last 24 hours.
func (s *Server) handleNewBadges(w http.ResponseWriter, r *http.Request) {
	since := time.Now().Add(-24 * time.Hour)
	if raw := r.URL.Query().Get("since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be an RFC 3339 timestamp")
			return
		}
		since = t
	}
	nb, err := s.eng.CheckNewBadges(r.Context(), chi.URLParam(r, "userID"), since)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nb)
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 20)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	feed, err := s.eng.Feed(r.Context(), chi.URLParam(r, "userID"), limit)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	if feed == nil {
		feed = []domain.FeedEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"feed": feed})
}

func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 50)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	entries, err := s.eng.Ledger(r.Context(), chi.URLParam(r, "userID"), limit)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	if entries == nil {
		entries = []domain.LedgerEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"entries": entries})
}

func (s *Server) handleUserChallenges(w http.ResponseWriter, r *http.Request) {
	parts, err := s.eng.ListParticipations(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	if parts == nil {
		parts = []domain.ChallengeParticipation{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"participations": parts})
}

type pointsRequest struct {
	Amount int64  `json:"amount" validate:"max=1000000000"`
	Reason string `json:"reason" validate:"max=200"`
}

func (s *Server) handleAwardPoints(w http.ResponseWriter, r *http.Request) {
	var req pointsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := s.eng.AwardPoints(r.Context(), chi.URLParam(r, "userID"), req.Amount, req.Reason)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleSpendPoints(w http.ResponseWriter, r *http.Request) {
	var req pointsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	userID := chi.URLParam(r, "userID")
	balance, err := s.eng.SpendPoints(r.Context(), userID, req.Amount, req.Reason)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user_id":      userID,
		"total_points": balance,
	})
}

// ─── Leaderboard ────────────────────────────────────────────────────────────

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	period := domain.Period(r.URL.Query().Get("period"))
	switch period {
	case "":
		period = domain.PeriodWeekly
	case domain.PeriodWeekly, domain.PeriodMonthly, domain.PeriodLifetime:
	default:
		writeError(w, http.StatusBadRequest, "period must be weekly, monthly or lifetime")
		return
	}
	limit, err := queryInt(r, "limit", 10)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	board, err := s.eng.Leaderboard(r.Context(), period, limit)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	if board == nil {
		board = []domain.LeaderboardEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"period":  period,
		"entries": board,
	})
}

// ─── Badges ─────────────────────────────────────────────────────────────────

func (s *Server) handleListBadges(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("all") != "true"
	badges, err := s.eng.ListBadges(r.Context(), activeOnly)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	if badges == nil {
		badges = []domain.Badge{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"badges": badges})
}

func (s *Server) handleCreateBadge(w http.ResponseWriter, r *http.Request) {
	var def engagement.BadgeDefinition
	if !decodeJSON(w, r, &def) {
		return
	}
	b, err := s.eng.CreateBadge(r.Context(), def)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (s *Server) handleGetBadge(w http.ResponseWriter, r *http.Request) {
	b, err := s.eng.GetBadge(r.Context(), chi.URLParam(r, "badgeID"))
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

type activeRequest struct {
	Active *bool `json:"active" validate:"required"`
}

func (s *Server) handleSetBadgeActive(w http.ResponseWriter, r *http.Request) {
	var req activeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.eng.SetBadgeActive(r.Context(), chi.URLParam(r, "badgeID"), *req.Active); err != nil {
		writeEngineError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ─── Challenges ─────────────────────────────────────────────────────────────

func (s *Server) handleListChallenges(w http.ResponseWriter, r *http.Request) {
	status := domain.ChallengeStatus(r.URL.Query().Get("status"))
	challenges, err := s.eng.ListChallenges(r.Context(), status)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	if challenges == nil {
		challenges = []domain.HealthChallenge{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"challenges": challenges})
}

func (s *Server) handleCreateChallenge(w http.ResponseWriter, r *http.Request) {
	var def engagement.ChallengeDefinition
	if !decodeJSON(w, r, &def) {
		return
	}
	c, err := s.eng.CreateChallenge(r.Context(), def)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleGetChallenge(w http.ResponseWriter, r *http.Request) {
	c, err := s.eng.GetChallenge(r.Context(), chi.URLParam(r, "challengeID"))
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

type joinRequest struct {
	UserID string `json:"user_id" validate:"required,max=128"`
}

func (s *Server) handleJoinChallenge(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := s.eng.JoinChallenge(r.Context(), req.UserID, chi.URLParam(r, "challengeID"))
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

type statusRequest struct {
	Status domain.ChallengeStatus `json:"status" validate:"required,oneof=draft active completed expired"`
}

func (s *Server) handleChallengeStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.eng.SetChallengeStatus(r.Context(), chi.URLParam(r, "challengeID"), req.Status); err != nil {
		writeEngineError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
