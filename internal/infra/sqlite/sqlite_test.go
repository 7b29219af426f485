package sqlite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rural-health/carepoints/internal/domain"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	dir := t.TempDir()
	db, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

var (
	ctx = context.Background()
	t0  = time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
)

func testBadge(code string) domain.Badge {
	return domain.Badge{
		ID:           "id-" + code,
		Code:         code,
		Name:         code,
		Category:     domain.CategoryMilestone,
		Rarity:       domain.RarityCommon,
		PointsReward: 10,
		Criteria:     domain.CriteriaSpec{Action: "log_symptoms", Count: 1},
		Active:       true,
		CreatedAt:    t0,
	}
}

func testChallenge(id string) domain.HealthChallenge {
	return domain.HealthChallenge{
		ID:           id,
		Title:        "Challenge " + id,
		ActivityType: domain.ActivitySymptomLogged,
		GoalValue:    5,
		GoalUnit:     domain.UnitLogs,
		StartsAt:     t0,
		EndsAt:       t0.Add(7 * 24 * time.Hour),
		PointsReward: 50,
		Status:       domain.ChallengeActive,
		CreatedAt:    t0,
	}
}

// ─── Database Lifecycle ─────────────────────────────────────────────────────

func TestOpen_CreatesDatabase(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(filepath.Join(dir, "carepoints.db")); os.IsNotExist(err) {
		t.Error("carepoints.db should exist")
	}
}

func TestOpen_Reopen(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if err := db.SaveProgress(ctx, domain.NewUserProgress("u1", t0)); err != nil {
		t.Fatalf("SaveProgress() error: %v", err)
	}
	db.Close()

	db, err = Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()
	p, err := db.GetProgress(ctx, "u1")
	if err != nil || p == nil {
		t.Fatalf("progress lost across reopen: %v, %v", p, err)
	}
}

func TestOpen_Ping(t *testing.T) {
	db := newTestDB(t)
	if err := db.Ping(); err != nil {
		t.Fatalf("Ping() error: %v", err)
	}
}

// ─── Transactions ───────────────────────────────────────────────────────────

func TestWithTx_RollsBackOnError(t *testing.T) {
	db := newTestDB(t)
	boom := errors.New("boom")

	err := db.WithTx(ctx, func(tx *Tx) error {
		if err := tx.SaveProgress(ctx, domain.NewUserProgress("u1", t0)); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithTx() = %v, want boom", err)
	}
	if p, _ := db.GetProgress(ctx, "u1"); p != nil {
		t.Error("rolled-back write is visible")
	}
}

func TestWithTx_Commits(t *testing.T) {
	db := newTestDB(t)
	err := db.WithTx(ctx, func(tx *Tx) error {
		return tx.SaveProgress(ctx, domain.NewUserProgress("u1", t0))
	})
	if err != nil {
		t.Fatalf("WithTx() error: %v", err)
	}
	if p, _ := db.GetProgress(ctx, "u1"); p == nil {
		t.Error("committed write missing")
	}
}

// ─── Progress ───────────────────────────────────────────────────────────────

func TestProgress_RoundTrip(t *testing.T) {
	db := newTestDB(t)

	if p, err := db.GetProgress(ctx, "nobody"); err != nil || p != nil {
		t.Fatalf("GetProgress(unknown) = %v, %v; want nil, nil", p, err)
	}

	p := domain.NewUserProgress("u1", t0)
	p.TotalPoints = 70
	p.LifetimePoints = 120
	p.Level = 2
	p.CurrentStreak = 3
	p.LongestStreak = 5
	p.TotalSymptomLogs = 8
	p.TotalBadgesEarned = 2
	p.WeeklyPoints = 40
	p.MonthlyPoints = 90
	p.LastActivityDate = domain.NewDate(2025, time.July, 1)
	p.LastLevelUpAt = t0

	if err := db.SaveProgress(ctx, p); err != nil {
		t.Fatalf("SaveProgress() error: %v", err)
	}
	got, err := db.GetProgress(ctx, "u1")
	if err != nil {
		t.Fatalf("GetProgress() error: %v", err)
	}
	if *got != *p {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", *got, *p)
	}

	// Upsert overwrites.
	p.TotalPoints = 10
	if err := db.SaveProgress(ctx, p); err != nil {
		t.Fatalf("SaveProgress() update error: %v", err)
	}
	got, _ = db.GetProgress(ctx, "u1")
	if got.TotalPoints != 10 {
		t.Errorf("TotalPoints = %d, want 10", got.TotalPoints)
	}
}

func TestResetPeriodPoints(t *testing.T) {
	db := newTestDB(t)
	for _, id := range []string{"a", "b"} {
		p := domain.NewUserProgress(id, t0)
		p.WeeklyPoints, p.MonthlyPoints, p.LifetimePoints = 30, 60, 90
		if err := db.SaveProgress(ctx, p); err != nil {
			t.Fatalf("SaveProgress() error: %v", err)
		}
	}

	n, err := db.ResetPeriodPoints(ctx, domain.PeriodMonthly, t0)
	if err != nil || n != 2 {
		t.Fatalf("ResetPeriodPoints() = %d, %v; want 2", n, err)
	}
	p, _ := db.GetProgress(ctx, "a")
	if p.MonthlyPoints != 0 || p.WeeklyPoints != 30 || p.LifetimePoints != 90 {
		t.Errorf("unexpected counters after monthly reset: %+v", p)
	}

	if _, err := db.ResetPeriodPoints(ctx, domain.PeriodLifetime, t0); err == nil {
		t.Error("lifetime points must not be resettable")
	}
}

func TestLeaderboard_SkipsZeroAndOrders(t *testing.T) {
	db := newTestDB(t)
	for id, pts := range map[string]int64{"a": 50, "b": 0, "c": 80, "d": 50} {
		p := domain.NewUserProgress(id, t0)
		p.LifetimePoints = pts
		db.SaveProgress(ctx, p)
	}

	board, err := db.Leaderboard(ctx, domain.PeriodLifetime, 10)
	if err != nil {
		t.Fatalf("Leaderboard() error: %v", err)
	}
	want := []string{"c", "a", "d"}
	if len(board) != len(want) {
		t.Fatalf("len = %d, want %d", len(board), len(want))
	}
	for i, e := range board {
		if e.UserID != want[i] || e.Rank != i+1 {
			t.Errorf("entry %d = %+v, want %s", i, e, want[i])
		}
	}

	if _, err := db.Leaderboard(ctx, "daily", 10); err == nil {
		t.Error("unknown period should fail")
	}
}

// ─── Activity Days & Events ─────────────────────────────────────────────────

func TestActivityDays(t *testing.T) {
	db := newTestDB(t)
	d1 := domain.NewDate(2025, time.July, 1)

	first, err := db.RecordActivityDay(ctx, "u1", d1, domain.ActivitySymptomLogged)
	if err != nil || !first {
		t.Fatalf("first record = %v, %v", first, err)
	}
	first, _ = db.RecordActivityDay(ctx, "u1", d1, domain.ActivitySymptomLogged)
	if first {
		t.Error("second record on the same day reported first")
	}
	db.RecordActivityDay(ctx, "u1", d1.AddDays(2), domain.ActivitySymptomLogged)
	db.RecordActivityDay(ctx, "u1", d1.AddDays(3), domain.ActivityDailyCheckin)
	db.RecordActivityDay(ctx, "u1", d1.AddDays(10), domain.ActivitySymptomLogged)

	n, err := db.CountActivityDays(ctx, "u1", domain.ActivitySymptomLogged, d1, d1.AddDays(6))
	if err != nil {
		t.Fatalf("CountActivityDays() error: %v", err)
	}
	if n != 2 {
		t.Errorf("CountActivityDays() = %d, want 2", n)
	}
}

func TestMarkEventProcessed(t *testing.T) {
	db := newTestDB(t)
	fresh, err := db.MarkEventProcessed(ctx, "evt-1", "u1", t0)
	if err != nil || !fresh {
		t.Fatalf("first mark = %v, %v", fresh, err)
	}
	fresh, _ = db.MarkEventProcessed(ctx, "evt-1", "u1", t0)
	if fresh {
		t.Error("replayed event reported fresh")
	}
}

// ─── Ledger & Feed ──────────────────────────────────────────────────────────

func TestLedgerEntries_NewestFirst(t *testing.T) {
	db := newTestDB(t)
	for i, amt := range []int64{10, 20, 30} {
		if _, err := db.InsertLedgerEntry(ctx, domain.LedgerEntry{
			UserID: "u1", Type: domain.LedgerEarn, Amount: amt, Reason: "test",
			Balance: int64(i+1) * 10, CreatedAt: t0,
		}); err != nil {
			t.Fatalf("InsertLedgerEntry() error: %v", err)
		}
	}

	entries, err := db.LedgerEntries(ctx, "u1", 2)
	if err != nil {
		t.Fatalf("LedgerEntries() error: %v", err)
	}
	if len(entries) != 2 || entries[0].Amount != 30 || entries[1].Amount != 20 {
		t.Errorf("unexpected entries: %+v", entries)
	}
}

func TestFeedEntries(t *testing.T) {
	db := newTestDB(t)
	db.InsertBadge(ctx, testBadge("first-steps"))

	if err := db.InsertFeedEntry(ctx, domain.FeedEntry{
		UserID: "u1", Kind: domain.FeedPointsEarned, Title: "Earned 10 points", Points: 10, CreatedAt: t0,
	}); err != nil {
		t.Fatalf("InsertFeedEntry() error: %v", err)
	}
	if err := db.InsertFeedEntry(ctx, domain.FeedEntry{
		UserID: "u1", Kind: domain.FeedBadgeEarned, Title: "Badge Earned", BadgeID: "id-first-steps",
		CreatedAt: t0.Add(time.Second),
	}); err != nil {
		t.Fatalf("InsertFeedEntry() error: %v", err)
	}

	feed, err := db.FeedEntries(ctx, "u1", 10)
	if err != nil {
		t.Fatalf("FeedEntries() error: %v", err)
	}
	if len(feed) != 2 {
		t.Fatalf("len = %d, want 2", len(feed))
	}
	if feed[0].Kind != domain.FeedBadgeEarned || feed[0].BadgeID != "id-first-steps" {
		t.Errorf("newest entry = %+v", feed[0])
	}
	if feed[1].ID == "" {
		t.Error("feed entry ID should be generated")
	}
}

// ─── Badges ─────────────────────────────────────────────────────────────────

func TestBadges_InsertAndLookup(t *testing.T) {
	db := newTestDB(t)
	b := testBadge("week-warrior")
	b.Criteria = domain.CriteriaSpec{Action: "maintain_streak", Days: 7, Period: "current"}

	if err := db.InsertBadge(ctx, b); err != nil {
		t.Fatalf("InsertBadge() error: %v", err)
	}
	if err := db.InsertBadge(ctx, b); !errors.Is(err, domain.ErrBadgeExists) {
		t.Errorf("duplicate insert = %v, want ErrBadgeExists", err)
	}

	got, err := db.GetBadgeByCode(ctx, "week-warrior")
	if err != nil || got == nil {
		t.Fatalf("GetBadgeByCode() = %v, %v", got, err)
	}
	if got.Criteria != b.Criteria || !got.Active || got.PointsReward != 10 {
		t.Errorf("badge mismatch: %+v", got)
	}
	if missing, _ := db.GetBadge(ctx, "nope"); missing != nil {
		t.Error("GetBadge(missing) should be nil")
	}
}

func TestBadges_GrantIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	db.InsertBadge(ctx, testBadge("a"))
	db.InsertBadge(ctx, testBadge("b"))

	granted, err := db.GrantBadge(ctx, "u1", "id-a", domain.SourceCriteria, t0)
	if err != nil || !granted {
		t.Fatalf("first grant = %v, %v", granted, err)
	}
	granted, _ = db.GrantBadge(ctx, "u1", "id-a", domain.SourceCriteria, t0.Add(time.Hour))
	if granted {
		t.Error("second grant reported new")
	}

	unearned, _ := db.ListUnearnedBadges(ctx, "u1")
	if len(unearned) != 1 || unearned[0].Code != "b" {
		t.Errorf("unearned = %+v", unearned)
	}

	n, _ := db.CountUserBadges(ctx, "u1")
	if n != 1 {
		t.Errorf("CountUserBadges() = %d, want 1", n)
	}
}

func TestBadges_ListUserBadgesSince(t *testing.T) {
	db := newTestDB(t)
	db.InsertBadge(ctx, testBadge("a"))
	db.InsertBadge(ctx, testBadge("b"))
	db.GrantBadge(ctx, "u1", "id-a", domain.SourceCriteria, t0)
	db.GrantBadge(ctx, "u1", "id-b", domain.SourceChallenge, t0.Add(time.Hour))

	all, _ := db.ListUserBadges(ctx, "u1", time.Time{}, 0)
	if len(all) != 2 || all[0].Badge.Code != "b" {
		t.Fatalf("expected newest first, got %+v", all)
	}
	if all[0].Source != domain.SourceChallenge {
		t.Errorf("source = %s, want challenge", all[0].Source)
	}

	recent, _ := db.ListUserBadges(ctx, "u1", t0, 0)
	if len(recent) != 1 || recent[0].Badge.Code != "b" {
		t.Errorf("since filter = %+v", recent)
	}

	limited, _ := db.ListUserBadges(ctx, "u1", time.Time{}, 1)
	if len(limited) != 1 {
		t.Errorf("limit = %d, want 1", len(limited))
	}
}

func TestBadges_Deactivate(t *testing.T) {
	db := newTestDB(t)
	db.InsertBadge(ctx, testBadge("a"))

	if err := db.SetBadgeActive(ctx, "id-a", false); err != nil {
		t.Fatalf("SetBadgeActive() error: %v", err)
	}
	active, _ := db.ListBadges(ctx, true)
	if len(active) != 0 {
		t.Errorf("inactive badge listed: %+v", active)
	}
	unearned, _ := db.ListUnearnedBadges(ctx, "u1")
	if len(unearned) != 0 {
		t.Error("inactive badge offered for evaluation")
	}
	if err := db.SetBadgeActive(ctx, "missing", true); !errors.Is(err, domain.ErrBadgeNotFound) {
		t.Errorf("missing badge = %v", err)
	}
}

// ─── Challenges ─────────────────────────────────────────────────────────────

func TestChallenges_InsertAndStatus(t *testing.T) {
	db := newTestDB(t)
	c := testChallenge("c1")
	if err := db.InsertChallenge(ctx, c); err != nil {
		t.Fatalf("InsertChallenge() error: %v", err)
	}

	got, err := db.GetChallenge(ctx, "c1")
	if err != nil || got == nil {
		t.Fatalf("GetChallenge() = %v, %v", got, err)
	}
	if !got.StartsAt.Equal(c.StartsAt) || !got.EndsAt.Equal(c.EndsAt) || got.GoalUnit != domain.UnitLogs {
		t.Errorf("challenge mismatch: %+v", got)
	}

	if err := db.UpdateChallengeStatus(ctx, "c1", domain.ChallengeCompleted); err != nil {
		t.Fatalf("UpdateChallengeStatus() error: %v", err)
	}
	done, _ := db.ListChallenges(ctx, domain.ChallengeCompleted)
	if len(done) != 1 {
		t.Errorf("completed list = %d, want 1", len(done))
	}
	if err := db.UpdateChallengeStatus(ctx, "nope", domain.ChallengeActive); !errors.Is(err, domain.ErrChallengeNotFound) {
		t.Errorf("missing challenge = %v", err)
	}
}

func TestChallenges_Expire(t *testing.T) {
	db := newTestDB(t)
	db.InsertChallenge(ctx, testChallenge("c1"))
	later := testChallenge("c2")
	later.EndsAt = t0.Add(30 * 24 * time.Hour)
	db.InsertChallenge(ctx, later)

	n, err := db.ExpireChallenges(ctx, t0.Add(8*24*time.Hour))
	if err != nil || n != 1 {
		t.Fatalf("ExpireChallenges() = %d, %v; want 1", n, err)
	}
	c, _ := db.GetChallenge(ctx, "c1")
	if c.Status != domain.ChallengeExpired {
		t.Errorf("status = %s, want expired", c.Status)
	}
}

func TestParticipations_Lifecycle(t *testing.T) {
	db := newTestDB(t)
	db.InsertChallenge(ctx, testChallenge("c1"))

	p := domain.ChallengeParticipation{
		ID: "p1", UserID: "u1", ChallengeID: "c1",
		Status: domain.ParticipationJoined, JoinedAt: t0,
	}
	if err := db.InsertParticipation(ctx, p); err != nil {
		t.Fatalf("InsertParticipation() error: %v", err)
	}
	p2 := p
	p2.ID = "p2"
	if err := db.InsertParticipation(ctx, p2); !errors.Is(err, domain.ErrAlreadyJoined) {
		t.Errorf("double join = %v, want ErrAlreadyJoined", err)
	}

	open, err := db.ListOpenParticipations(ctx, "u1")
	if err != nil || len(open) != 1 {
		t.Fatalf("ListOpenParticipations() = %d, %v", len(open), err)
	}
	if open[0].Challenge.ID != "c1" || open[0].Challenge.PointsReward != 50 {
		t.Errorf("joined challenge = %+v", open[0].Challenge)
	}

	p.ProgressValue = 5
	p.Status = domain.ParticipationCompleted
	p.LastProgress = domain.NewDate(2025, time.July, 2)
	p.CompletedAt = t0.Add(24 * time.Hour)
	if err := db.SaveParticipation(ctx, p); err != nil {
		t.Fatalf("SaveParticipation() error: %v", err)
	}

	open, _ = db.ListOpenParticipations(ctx, "u1")
	if len(open) != 0 {
		t.Errorf("completed participation still open: %+v", open)
	}
	all, _ := db.ListParticipations(ctx, "u1")
	if len(all) != 1 || all[0].ProgressValue != 5 || !all[0].LastProgress.Equal(p.LastProgress) || !all[0].CompletedAt.Equal(p.CompletedAt) {
		t.Errorf("saved participation = %+v", all)
	}
}
