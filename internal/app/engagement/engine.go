// Package engagement is the gamification scoring engine: point ledger,
// levels, streaks, badges and challenges. Every qualifying activity runs
// through one SQLite transaction so a user's progress row is never
// updated from two events at once.
package engagement

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rural-health/carepoints/internal/domain"
	"github.com/rural-health/carepoints/internal/infra/metrics"
	"github.com/rural-health/carepoints/internal/infra/sqlite"
)

// Config tunes scoring. Zero values fall back to DefaultConfig.
type Config struct {
	// ActivityPoints lists every accepted activity type and the points it
	// earns. A type mapped to 0 is accepted but earns nothing.
	ActivityPoints map[domain.ActivityType]int64

	// StreakActivities are the activity types that extend a streak.
	StreakActivities []domain.ActivityType

	// Location decides calendar-day boundaries when an event carries no
	// time zone of its own.
	Location *time.Location
}

// DefaultConfig mirrors the platform's point table: a symptom log is worth
// 10 points and a daily check-in 5.
func DefaultConfig() Config {
	return Config{
		ActivityPoints: map[domain.ActivityType]int64{
			domain.ActivitySymptomLogged: 10,
			domain.ActivityDailyCheckin:  5,
		},
		StreakActivities: []domain.ActivityType{
			domain.ActivitySymptomLogged,
			domain.ActivityDailyCheckin,
		},
		Location: time.UTC,
	}
}

// Engine runs the scoring pipeline and answers progress queries.
type Engine struct {
	db     *sqlite.DB
	cfg    Config
	now    func() time.Time
	logger *slog.Logger
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLogger sets the engine's logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates a scoring engine backed by db.
func NewEngine(db *sqlite.DB, cfg Config, opts ...Option) *Engine {
	def := DefaultConfig()
	if cfg.ActivityPoints == nil {
		cfg.ActivityPoints = def.ActivityPoints
	}
	if cfg.StreakActivities == nil {
		cfg.StreakActivities = def.StreakActivities
	}
	if cfg.Location == nil {
		cfg.Location = def.Location
	}

	e := &Engine{db: db, cfg: cfg, now: time.Now, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ─── Pipeline ───────────────────────────────────────────────────────────────

// OnQualifyingActivity scores one activity event: ledger, streak, level,
// badges, then challenges (with a second badge pass if a challenge paid
// out). All of it commits or none of it does.
func (e *Engine) OnQualifyingActivity(ctx context.Context, ev domain.ActivityEvent) (*domain.ActivityResult, error) {
	if err := validate.Struct(ev); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidEvent, err)
	}
	points, known := e.cfg.ActivityPoints[ev.Type]
	if !known {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownActivity, ev.Type)
	}
	loc, err := e.location(ev.Timezone)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	now := e.now()
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = now
	}
	day := domain.DateOf(ev.OccurredAt, loc)

	var s *session
	err = e.db.WithTx(ctx, func(tx *sqlite.Tx) error {
		if ev.EventID != "" {
			fresh, err := tx.MarkEventProcessed(ctx, ev.EventID, ev.UserID, now)
			if err != nil {
				return fmt.Errorf("mark event: %w", err)
			}
			if !fresh {
				return nil
			}
		}

		sess, err := e.begin(ctx, tx, ev.UserID, now)
		if err != nil {
			return err
		}
		s = sess
		s.activity = ev.Type
		s.today = day

		firstOfDay, err := tx.RecordActivityDay(ctx, ev.UserID, day, ev.Type)
		if err != nil {
			return fmt.Errorf("record activity day: %w", err)
		}
		if ev.Type == domain.ActivitySymptomLogged {
			s.p.TotalSymptomLogs++
		}

		if points > 0 {
			if err := s.awardPoints(points, string(ev.Type), true); err != nil {
				return err
			}
		}

		if e.isStreakActivity(ev.Type) {
			change := ApplyStreak(s.p, day)
			if change == StreakReset {
				e.logger.Debug("streak reset", "user", ev.UserID, "day", day.String())
			}
		}

		if err := s.evaluateBadges(); err != nil {
			return err
		}

		completed, err := s.progressChallenges(ev, day, firstOfDay, points)
		if err != nil {
			return err
		}
		if completed > 0 {
			if err := s.evaluateBadges(); err != nil {
				return err
			}
		}

		return s.save()
	})

	result := "ok"
	switch {
	case err != nil:
		result = "error"
	case s == nil:
		result = "duplicate"
	}
	metrics.ActivitiesProcessed.WithLabelValues(string(ev.Type), result).Inc()
	metrics.PipelineDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		e.logger.Error("activity pipeline failed", "user", ev.UserID, "type", ev.Type, "error", err)
		return nil, fmt.Errorf("process activity: %w", err)
	}
	if s == nil {
		return &domain.ActivityResult{UserID: ev.UserID, Duplicate: true}, nil
	}

	s.flushMetrics()
	res := s.result()
	e.logger.Info("activity scored",
		"user", ev.UserID,
		"type", ev.Type,
		"points", res.PointsAwarded,
		"streak", res.CurrentStreak,
		"level", res.Level,
		"new_badges", len(res.NewBadges),
	)
	return res, nil
}

// location resolves an event's time zone, falling back to the configured one.
func (e *Engine) location(name string) (*time.Location, error) {
	if name == "" {
		return e.cfg.Location, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: timezone %q: %v", domain.ErrInvalidEvent, name, err)
	}
	return loc, nil
}

func (e *Engine) isStreakActivity(t domain.ActivityType) bool {
	for _, a := range e.cfg.StreakActivities {
		if a == t {
			return true
		}
	}
	return false
}

// ─── Queries ────────────────────────────────────────────────────────────────

// GetUserStats returns a user's progress summary. Unknown users read as a
// fresh level-1 profile without anything being written.
func (e *Engine) GetUserStats(ctx context.Context, userID string) (domain.UserStats, error) {
	p, err := e.db.GetProgress(ctx, userID)
	if err != nil {
		return domain.UserStats{}, fmt.Errorf("get progress: %w", err)
	}
	if p == nil {
		p = domain.NewUserProgress(userID, time.Time{})
	}
	return domain.UserStats{
		UserID:                   p.UserID,
		Level:                    p.Level,
		TotalPoints:              p.TotalPoints,
		LifetimePoints:           p.LifetimePoints,
		CurrentStreak:            p.CurrentStreak,
		LongestStreak:            p.LongestStreak,
		TotalBadges:              p.TotalBadgesEarned,
		TotalSymptomLogs:         p.TotalSymptomLogs,
		TotalChallengesCompleted: p.TotalChallengesCompleted,
		WeeklyPoints:             p.WeeklyPoints,
		MonthlyPoints:            p.MonthlyPoints,
		PointsToNextLevel:        PointsToNextLevel(p.LifetimePoints),
		LevelProgressPct:         LevelProgressPct(p.LifetimePoints),
	}, nil
}

// GetProgress returns the raw progress row, or nil for an unknown user.
func (e *Engine) GetProgress(ctx context.Context, userID string) (*domain.UserProgress, error) {
	return e.db.GetProgress(ctx, userID)
}

// CheckNewBadges lists badges earned after since and whether the user
// levelled up in the same interval.
func (e *Engine) CheckNewBadges(ctx context.Context, userID string, since time.Time) (domain.NewBadges, error) {
	out := domain.NewBadges{Level: 1, Badges: []domain.UserBadge{}}

	earned, err := e.db.ListUserBadges(ctx, userID, since, 0)
	if err != nil {
		return out, fmt.Errorf("list new badges: %w", err)
	}
	if earned != nil {
		out.Badges = earned
	}

	p, err := e.db.GetProgress(ctx, userID)
	if err != nil {
		return out, fmt.Errorf("get progress: %w", err)
	}
	if p != nil {
		out.Level = p.Level
		out.LeveledUp = p.LastLevelUpAt.After(since)
	}
	return out, nil
}

// Leaderboard ranks users for period (weekly, monthly or lifetime).
func (e *Engine) Leaderboard(ctx context.Context, period domain.Period, limit int) ([]domain.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	return e.db.Leaderboard(ctx, period, limit)
}

// Feed returns a user's newest activity-feed entries.
func (e *Engine) Feed(ctx context.Context, userID string, limit int) ([]domain.FeedEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	return e.db.FeedEntries(ctx, userID, limit)
}

// Ledger returns a user's newest point movements.
func (e *Engine) Ledger(ctx context.Context, userID string, limit int) ([]domain.LedgerEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	return e.db.LedgerEntries(ctx, userID, limit)
}

// ResetPeriod zeroes every user's weekly or monthly counter. It is driven by
// the daemon's scheduler.
func (e *Engine) ResetPeriod(ctx context.Context, period domain.Period) (int64, error) {
	n, err := e.db.ResetPeriodPoints(ctx, period, e.now())
	if err != nil {
		return 0, fmt.Errorf("reset %s points: %w", period, err)
	}
	metrics.PeriodResets.WithLabelValues(string(period)).Inc()
	e.logger.Info("period points reset", "period", period, "users", n)
	return n, nil
}
