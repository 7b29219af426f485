package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rural-health/carepoints/internal/app/engagement"
	"github.com/rural-health/carepoints/internal/health"
	"github.com/rural-health/carepoints/internal/infra/sqlite"
)

func newTestServer(t *testing.T, opts Options) (*Server, *engagement.Engine) {
	t.Helper()
	dir := t.TempDir()

	db, err := sqlite.Open(dir)
	if err != nil {
		t.Fatalf("Open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	eng := engagement.NewEngine(db, engagement.DefaultConfig())
	if _, err := eng.SeedBadges(context.Background()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if opts.Health == nil {
		opts.Health = health.NewChecker(db, dir, eng)
	}
	return NewServer(eng, opts), eng
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("decode body: %v", err)
	}
}

func errorTypeOf(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}
	decode(t, w, &body)
	return body.Error.Type
}

// ─── Health Check ───────────────────────────────────────────────────────────

func TestAPI_Health(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	srv.health.RunOnce(context.Background())

	w := do(t, srv.Handler(), "GET", "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var body struct {
		Status string          `json:"status"`
		Checks []health.Status `json:"checks"`
	}
	decode(t, w, &body)
	if body.Status != "ok" || len(body.Checks) != 3 {
		t.Errorf("health = %+v", body)
	}
}

// ─── Activities ─────────────────────────────────────────────────────────────

func TestAPI_Activity_Scored(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	h := srv.Handler()

	w := do(t, h, "POST", "/api/v1/activities", `{"event_id":"e1","user_id":"u1","type":"symptom_logged"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body: %s", w.Code, w.Body.String())
	}
	var res struct {
		PointsAwarded int64 `json:"points_awarded"`
		CurrentStreak int   `json:"current_streak"`
		NewBadges     []struct {
			Code string `json:"code"`
		} `json:"new_badges"`
	}
	decode(t, w, &res)
	if res.PointsAwarded != 60 || res.CurrentStreak != 1 {
		t.Errorf("result = %+v", res)
	}
	if len(res.NewBadges) != 1 || res.NewBadges[0].Code != "first-steps" {
		t.Errorf("new badges = %+v", res.NewBadges)
	}

	w = do(t, h, "POST", "/api/v1/activities", `{"event_id":"e1","user_id":"u1","type":"symptom_logged"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("replay status = %d", w.Code)
	}
	var dup struct {
		Duplicate bool `json:"duplicate"`
	}
	decode(t, w, &dup)
	if !dup.Duplicate {
		t.Error("replay should be flagged duplicate")
	}
}

func TestAPI_Activity_Rejections(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	h := srv.Handler()

	tests := []struct {
		name string
		body string
		code int
	}{
		{"malformed", `{"user_id":`, http.StatusBadRequest},
		{"unknown field", `{"user_id":"u1","type":"symptom_logged","mood":"ok"}`, http.StatusBadRequest},
		{"missing user", `{"type":"symptom_logged"}`, http.StatusBadRequest},
		{"bad timezone", `{"user_id":"u1","type":"symptom_logged","timezone":"Nowhere/Land"}`, http.StatusBadRequest},
		{"unknown type", `{"user_id":"u1","type":"meditation"}`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, "POST", "/api/v1/activities", tt.body)
			if w.Code != tt.code {
				t.Errorf("status = %d, want %d, body: %s", w.Code, tt.code, w.Body.String())
			}
		})
	}
}

// ─── Users ──────────────────────────────────────────────────────────────────

func TestAPI_Stats_UnknownUser(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	w := do(t, srv.Handler(), "GET", "/api/v1/users/ghost/stats", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var stats struct {
		Level             int   `json:"level"`
		PointsToNextLevel int64 `json:"points_to_next_level"`
	}
	decode(t, w, &stats)
	if stats.Level != 1 || stats.PointsToNextLevel != 100 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestAPI_Points(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	h := srv.Handler()

	w := do(t, h, "POST", "/api/v1/users/u1/points/award", `{"amount":0}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("zero award status = %d", w.Code)
	}
	w = do(t, h, "POST", "/api/v1/users/u1/points/award", `{"amount":9223372036854775800}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("oversized award status = %d", w.Code)
	}

	w = do(t, h, "POST", "/api/v1/users/u1/points/award", `{"amount":40,"reason":"survey"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("award status = %d, body: %s", w.Code, w.Body.String())
	}

	w = do(t, h, "POST", "/api/v1/users/u1/points/spend", `{"amount":500}`)
	if w.Code != http.StatusConflict {
		t.Errorf("overspend status = %d", w.Code)
	}
	if typ := errorTypeOf(t, w); typ != "conflict" {
		t.Errorf("error type = %q", typ)
	}

	w = do(t, h, "POST", "/api/v1/users/u1/points/spend", `{"amount":15}`)
	if w.Code != http.StatusOK {
		t.Fatalf("spend status = %d, body: %s", w.Code, w.Body.String())
	}
	var spent struct {
		TotalPoints int64 `json:"total_points"`
	}
	decode(t, w, &spent)
	if spent.TotalPoints != 25 {
		t.Errorf("balance = %d, want 25", spent.TotalPoints)
	}

	w = do(t, h, "GET", "/api/v1/users/u1/ledger", "")
	var ledger struct {
		Entries []json.RawMessage `json:"entries"`
	}
	decode(t, w, &ledger)
	if len(ledger.Entries) != 2 {
		t.Errorf("ledger entries = %d, want 2", len(ledger.Entries))
	}
}

func TestAPI_NewBadges(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	h := srv.Handler()
	before := time.Now().Add(-time.Minute).UTC().Format(time.RFC3339)

	do(t, h, "POST", "/api/v1/activities", `{"user_id":"u1","type":"symptom_logged"}`)

	w := do(t, h, "GET", "/api/v1/users/u1/badges/new?since=yesterday", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad since status = %d", w.Code)
	}

	w = do(t, h, "GET", "/api/v1/users/u1/badges/new?since="+before, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var nb struct {
		Badges    []json.RawMessage `json:"badges"`
		LeveledUp bool              `json:"leveled_up"`
	}
	decode(t, w, &nb)
	if len(nb.Badges) != 1 || nb.LeveledUp {
		t.Errorf("new badges = %+v", nb)
	}

	w = do(t, h, "GET", "/api/v1/users/u1/feed?limit=1", "")
	var feed struct {
		Feed []json.RawMessage `json:"feed"`
	}
	decode(t, w, &feed)
	if len(feed.Feed) != 1 {
		t.Errorf("feed limit ignored: %d entries", len(feed.Feed))
	}
}

// ─── Badges ─────────────────────────────────────────────────────────────────

func TestAPI_Badges(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	h := srv.Handler()

	body := `{"name":"Early Bird","category":"consistency","rarity":"rare","points_reward":25,
		"criteria":{"action":"maintain_streak","days":3}}`
	w := do(t, h, "POST", "/api/v1/badges", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body: %s", w.Code, w.Body.String())
	}

	if w = do(t, h, "POST", "/api/v1/badges", body); w.Code != http.StatusConflict {
		t.Errorf("duplicate status = %d", w.Code)
	}

	w = do(t, h, "POST", "/api/v1/badges", `{"name":"Dancer","category":"wellness","criteria":{"action":"dance"}}`)
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("unknown criteria status = %d", w.Code)
	}

	if w = do(t, h, "GET", "/api/v1/badges/early-bird", ""); w.Code != http.StatusOK {
		t.Errorf("get by code status = %d", w.Code)
	}
	if w = do(t, h, "GET", "/api/v1/badges/missing", ""); w.Code != http.StatusNotFound {
		t.Errorf("missing status = %d", w.Code)
	}

	if w = do(t, h, "POST", "/api/v1/badges/early-bird/active", `{"active":false}`); w.Code != http.StatusNoContent {
		t.Errorf("deactivate status = %d", w.Code)
	}
	if w = do(t, h, "POST", "/api/v1/badges/early-bird/active", `{}`); w.Code != http.StatusBadRequest {
		t.Errorf("missing active flag status = %d", w.Code)
	}

	w = do(t, h, "GET", "/api/v1/badges", "")
	var list struct {
		Badges []json.RawMessage `json:"badges"`
	}
	decode(t, w, &list)
	if len(list.Badges) != 10 {
		t.Errorf("active badges = %d, want the 10 seeded", len(list.Badges))
	}
}

// ─── Challenges ─────────────────────────────────────────────────────────────

func TestAPI_Challenges(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	h := srv.Handler()

	start := time.Now().Add(-time.Hour).UTC().Format(time.RFC3339)
	end := time.Now().Add(72 * time.Hour).UTC().Format(time.RFC3339)
	body := `{"title":"Three logs","activity_type":"symptom_logged","goal_value":3,"goal_unit":"logs",` +
		`"starts_at":"` + start + `","ends_at":"` + end + `","points_reward":30}`

	w := do(t, h, "POST", "/api/v1/challenges", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body: %s", w.Code, w.Body.String())
	}
	var c struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	decode(t, w, &c)
	if c.Status != "active" {
		t.Errorf("status = %q, want active", c.Status)
	}

	path := "/api/v1/challenges/" + c.ID
	if w = do(t, h, "POST", path+"/join", `{"user_id":"u1"}`); w.Code != http.StatusCreated {
		t.Fatalf("join status = %d, body: %s", w.Code, w.Body.String())
	}
	if w = do(t, h, "POST", path+"/join", `{"user_id":"u1"}`); w.Code != http.StatusConflict {
		t.Errorf("rejoin status = %d", w.Code)
	}
	if w = do(t, h, "POST", "/api/v1/challenges/nope/join", `{"user_id":"u1"}`); w.Code != http.StatusNotFound {
		t.Errorf("missing challenge status = %d", w.Code)
	}

	w = do(t, h, "GET", "/api/v1/users/u1/challenges", "")
	var parts struct {
		Participations []json.RawMessage `json:"participations"`
	}
	decode(t, w, &parts)
	if len(parts.Participations) != 1 {
		t.Errorf("participations = %d, want 1", len(parts.Participations))
	}

	if w = do(t, h, "POST", path+"/status", `{"status":"finished"}`); w.Code != http.StatusBadRequest {
		t.Errorf("bad status code = %d", w.Code)
	}
	if w = do(t, h, "POST", path+"/status", `{"status":"completed"}`); w.Code != http.StatusNoContent {
		t.Errorf("status update code = %d", w.Code)
	}
	if w = do(t, h, "POST", path+"/join", `{"user_id":"u2"}`); w.Code != http.StatusConflict {
		t.Errorf("join closed challenge status = %d", w.Code)
	}

	bad := `{"title":"Backwards","activity_type":"symptom_logged","goal_value":1,"goal_unit":"logs",` +
		`"starts_at":"` + end + `","ends_at":"` + start + `"}`
	if w = do(t, h, "POST", "/api/v1/challenges", bad); w.Code != http.StatusBadRequest {
		t.Errorf("backwards window status = %d", w.Code)
	}
}

// ─── Leaderboard ────────────────────────────────────────────────────────────

func TestAPI_Leaderboard(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	h := srv.Handler()

	do(t, h, "POST", "/api/v1/users/a/points/award", `{"amount":30}`)
	do(t, h, "POST", "/api/v1/users/b/points/award", `{"amount":70}`)

	if w := do(t, h, "GET", "/api/v1/leaderboard?period=daily", ""); w.Code != http.StatusBadRequest {
		t.Errorf("bad period status = %d", w.Code)
	}

	w := do(t, h, "GET", "/api/v1/leaderboard?period=lifetime", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var board struct {
		Entries []struct {
			Rank   int    `json:"rank"`
			UserID string `json:"user_id"`
		} `json:"entries"`
	}
	decode(t, w, &board)
	if len(board.Entries) != 2 || board.Entries[0].UserID != "b" || board.Entries[0].Rank != 1 {
		t.Errorf("leaderboard = %+v", board.Entries)
	}
}

// ─── Middleware ─────────────────────────────────────────────────────────────

func TestAPI_RateLimit(t *testing.T) {
	srv, _ := newTestServer(t, Options{RateLimitRPS: 0.001, RateLimitBurst: 2})
	h := srv.Handler()

	for i := 0; i < 2; i++ {
		if w := do(t, h, "GET", "/api/v1/users/u1/stats", ""); w.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i, w.Code)
		}
	}
	w := do(t, h, "GET", "/api/v1/users/u1/stats", "")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("third request status = %d, want 429", w.Code)
	}
	if typ := errorTypeOf(t, w); typ != "rate_limited" {
		t.Errorf("error type = %q", typ)
	}

	// /health is outside the limited group.
	if w := do(t, h, "GET", "/health", ""); w.Code == http.StatusTooManyRequests {
		t.Error("/health should not be rate limited")
	}

	if n := srv.PruneVisitors(0); n != 1 {
		t.Errorf("PruneVisitors() = %d, want 1", n)
	}
}

func TestAPI_CORS(t *testing.T) {
	srv, _ := newTestServer(t, Options{CORSOrigins: []string{"https://clinic.example"}})
	h := srv.Handler()

	req := httptest.NewRequest("OPTIONS", "/api/v1/activities", nil)
	req.Header.Set("Origin", "https://clinic.example")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("preflight status = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://clinic.example" {
		t.Errorf("allow origin = %q", got)
	}

	req = httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("unlisted origin allowed: %q", got)
	}
}

func TestAPI_MetricsUseRoutePatterns(t *testing.T) {
	srv, _ := newTestServer(t, Options{Metrics: true})
	h := srv.Handler()

	do(t, h, "GET", "/api/v1/users/someone/stats", "")

	w := do(t, h, "GET", "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, `route="/api/v1/users/{userID}/stats"`) {
		t.Error("request metric should be labelled with the route pattern")
	}
	if strings.Contains(body, "someone") {
		t.Error("user IDs leaked into metric labels")
	}
}

func TestAPI_MetricsDisabled(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	if w := do(t, srv.Handler(), "GET", "/metrics", ""); w.Code != http.StatusNotFound {
		t.Errorf("metrics status = %d, want 404", w.Code)
	}
}
