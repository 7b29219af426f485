package engagement

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rural-health/carepoints/internal/domain"
	"github.com/rural-health/carepoints/internal/infra/metrics"
	"github.com/rural-health/carepoints/internal/infra/sqlite"
)

// session is one user's progress loaded inside a transaction. Every
// mutation goes through it and save writes the row back once at the end.
type session struct {
	e   *Engine
	ctx context.Context
	tx  *sqlite.Tx
	p   *domain.UserProgress
	now time.Time

	activity domain.ActivityType
	today    domain.Date
	logged   map[int]int

	awarded    int64
	leveledUp  bool
	newBadges  []domain.Badge
	completed  []domain.HealthChallenge
	byReason   map[string]int64
	levelUps   int
	spentTotal int64
}

// begin loads (or lazily creates) the user's progress inside tx.
func (e *Engine) begin(ctx context.Context, tx *sqlite.Tx, userID string, now time.Time) (*session, error) {
	p, err := tx.GetProgress(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load progress: %w", err)
	}
	if p == nil {
		p = domain.NewUserProgress(userID, now)
	}
	return &session{
		e:        e,
		ctx:      ctx,
		tx:       tx,
		p:        p,
		now:      now,
		today:    domain.DateOf(now, e.cfg.Location),
		logged:   make(map[int]int),
		byReason: make(map[string]int64),
	}, nil
}

// awardPoints credits amount to every counter, writes a ledger row and,
// when withFeed is set, a points_earned feed entry. Levels are resynced
// immediately so later badge checks see the new level.
func (s *session) awardPoints(amount int64, reason string, withFeed bool) error {
	if amount <= 0 {
		return fmt.Errorf("%w: got %d", domain.ErrInvalidPoints, amount)
	}

	p := s.p
	for _, c := range []int64{p.TotalPoints, p.LifetimePoints, p.WeeklyPoints, p.MonthlyPoints} {
		if c > math.MaxInt64-amount {
			return fmt.Errorf("%w: %d would overflow a point counter", domain.ErrInvalidPoints, amount)
		}
	}
	before := p.LifetimePoints
	p.TotalPoints += amount
	p.LifetimePoints += amount
	p.WeeklyPoints += amount
	p.MonthlyPoints += amount
	p.UpdatedAt = s.now

	if _, err := s.tx.InsertLedgerEntry(s.ctx, domain.LedgerEntry{
		UserID:    p.UserID,
		Type:      domain.LedgerEarn,
		Amount:    amount,
		Reason:    reason,
		Balance:   p.TotalPoints,
		CreatedAt: s.now,
	}); err != nil {
		return fmt.Errorf("ledger earn: %w", err)
	}

	if withFeed {
		if err := s.feed(domain.FeedEntry{
			Kind:        domain.FeedPointsEarned,
			Title:       fmt.Sprintf("Earned %d points", amount),
			Description: reason,
			Points:      amount,
		}); err != nil {
			return err
		}
	}

	s.awarded += amount
	s.byReason[s.reasonLabel(reason)] += amount
	return s.syncLevel(before)
}

// syncLevel recomputes the cached level after lifetime points moved from before.
func (s *session) syncLevel(before int64) error {
	up, level := CheckLevelUp(before, s.p.LifetimePoints)
	s.p.Level = level
	if !up {
		return nil
	}
	s.p.LastLevelUpAt = s.now
	s.leveledUp = true
	s.levelUps++
	return s.feed(domain.FeedEntry{
		Kind:        domain.FeedLevelUp,
		Title:       "Level Up!",
		Description: fmt.Sprintf("Congratulations! You reached Level %d!", level),
	})
}

func (s *session) feed(entry domain.FeedEntry) error {
	entry.UserID = s.p.UserID
	entry.CreatedAt = s.now
	if err := s.tx.InsertFeedEntry(s.ctx, entry); err != nil {
		return fmt.Errorf("feed %s: %w", entry.Kind, err)
	}
	return nil
}

// snapshot captures the current state for criteria evaluation.
func (s *session) snapshot() Snapshot {
	return Snapshot{
		Progress:   *s.p,
		Activity:   s.activity,
		Today:      s.today,
		LoggedDays: s.loggedDays,
	}
}

// loggedDays counts symptom-log days in the n-day window ending today.
func (s *session) loggedDays(n int) (int, error) {
	if v, ok := s.logged[n]; ok {
		return v, nil
	}
	v, err := s.tx.CountActivityDays(s.ctx, s.p.UserID, domain.ActivitySymptomLogged,
		s.today.AddDays(-(n - 1)), s.today)
	if err != nil {
		return 0, err
	}
	s.logged[n] = v
	return v, nil
}

func (s *session) save() error {
	s.p.UpdatedAt = s.now
	if err := s.tx.SaveProgress(s.ctx, s.p); err != nil {
		return err
	}
	return nil
}

func (s *session) result() *domain.ActivityResult {
	res := &domain.ActivityResult{
		UserID:              s.p.UserID,
		PointsAwarded:       s.awarded,
		TotalPoints:         s.p.TotalPoints,
		LifetimePoints:      s.p.LifetimePoints,
		CurrentStreak:       s.p.CurrentStreak,
		Level:               s.p.Level,
		LeveledUp:           s.leveledUp,
		NewBadges:           s.newBadges,
		CompletedChallenges: s.completed,
	}
	if res.NewBadges == nil {
		res.NewBadges = []domain.Badge{}
	}
	if res.CompletedChallenges == nil {
		res.CompletedChallenges = []domain.HealthChallenge{}
	}
	return res
}

// flushMetrics publishes counters once the transaction has committed.
func (s *session) flushMetrics() {
	for reason, pts := range s.byReason {
		metrics.PointsAwarded.WithLabelValues(reason).Add(float64(pts))
	}
	if s.spentTotal > 0 {
		metrics.PointsSpent.Add(float64(s.spentTotal))
	}
	for _, b := range s.newBadges {
		metrics.BadgesAwarded.WithLabelValues(b.Code).Inc()
	}
	if s.levelUps > 0 {
		metrics.LevelUps.Add(float64(s.levelUps))
	}
	if n := len(s.completed); n > 0 {
		metrics.ChallengesCompleted.Add(float64(n))
	}
}

// reasonLabel keeps metric cardinality bounded: "badge:first-steps" and
// "challenge:<uuid>" collapse to their prefix, anything else that is not an
// activity type becomes "manual".
func (s *session) reasonLabel(reason string) string {
	if prefix, _, ok := strings.Cut(reason, ":"); ok {
		switch prefix {
		case "badge", "challenge":
			return prefix
		}
		return "manual"
	}
	if _, known := s.e.cfg.ActivityPoints[domain.ActivityType(reason)]; known {
		return reason
	}
	return "manual"
}
