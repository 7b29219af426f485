package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rural-health/carepoints/internal/domain"
)

// ─── User Progress ──────────────────────────────────────────────────────────

const progressColumns = `user_id, total_points, lifetime_points, level, current_streak, longest_streak,
	total_symptom_logs, total_badges_earned, total_challenges_completed, weekly_points, monthly_points,
	last_activity_date, last_level_up_at, created_at, updated_at`

// GetProgress returns a user's progress row, or nil if the user has none.
func (s *store) GetProgress(ctx context.Context, userID string) (*domain.UserProgress, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+progressColumns+` FROM user_progress WHERE user_id = ?`, userID)
	return scanProgress(row)
}

// SaveProgress inserts or fully overwrites a progress row.
func (s *store) SaveProgress(ctx context.Context, p *domain.UserProgress) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO user_progress (`+progressColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
			total_points=excluded.total_points,
			lifetime_points=excluded.lifetime_points,
			level=excluded.level,
			current_streak=excluded.current_streak,
			longest_streak=excluded.longest_streak,
			total_symptom_logs=excluded.total_symptom_logs,
			total_badges_earned=excluded.total_badges_earned,
			total_challenges_completed=excluded.total_challenges_completed,
			weekly_points=excluded.weekly_points,
			monthly_points=excluded.monthly_points,
			last_activity_date=excluded.last_activity_date,
			last_level_up_at=excluded.last_level_up_at,
			updated_at=excluded.updated_at`,
		p.UserID, p.TotalPoints, p.LifetimePoints, p.Level, p.CurrentStreak, p.LongestStreak,
		p.TotalSymptomLogs, p.TotalBadgesEarned, p.TotalChallengesCompleted,
		p.WeeklyPoints, p.MonthlyPoints, p.LastActivityDate.String(),
		nullableUnix(p.LastLevelUpAt), unixNano(p.CreatedAt), unixNano(p.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("save progress %s: %w", p.UserID, err)
	}
	return nil
}

// ResetPeriodPoints zeroes the weekly or monthly counter for every user and
// returns how many rows changed.
func (s *store) ResetPeriodPoints(ctx context.Context, period domain.Period, at time.Time) (int64, error) {
	var column string
	switch period {
	case domain.PeriodWeekly:
		column = "weekly_points"
	case domain.PeriodMonthly:
		column = "monthly_points"
	default:
		return 0, fmt.Errorf("reset period %q: unsupported", period)
	}
	result, err := s.q.ExecContext(ctx,
		`UPDATE user_progress SET `+column+` = 0, updated_at = ? WHERE `+column+` != 0`,
		unixNano(at))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Leaderboard ranks users by the counter for period, highest first.
func (s *store) Leaderboard(ctx context.Context, period domain.Period, limit int) ([]domain.LeaderboardEntry, error) {
	var column string
	switch period {
	case domain.PeriodWeekly:
		column = "weekly_points"
	case domain.PeriodMonthly:
		column = "monthly_points"
	case domain.PeriodLifetime, "":
		column = "lifetime_points"
	default:
		return nil, fmt.Errorf("leaderboard period %q: unsupported", period)
	}
	rows, err := s.q.QueryContext(ctx,
		`SELECT user_id, `+column+`, level FROM user_progress
		 WHERE `+column+` > 0 ORDER BY `+column+` DESC, user_id ASC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.LeaderboardEntry
	for rows.Next() {
		e := domain.LeaderboardEntry{Rank: len(entries) + 1}
		if err := rows.Scan(&e.UserID, &e.Points, &e.Level); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ─── Activity Days ──────────────────────────────────────────────────────────

// RecordActivityDay notes that userID did activity on day. It returns true
// when this is the first such activity on that day.
func (s *store) RecordActivityDay(ctx context.Context, userID string, day domain.Date, activity domain.ActivityType) (bool, error) {
	result, err := s.q.ExecContext(ctx,
		`INSERT OR IGNORE INTO activity_days (user_id, day, activity_type, count) VALUES (?, ?, ?, 1)`,
		userID, day.String(), string(activity))
	if err != nil {
		return false, err
	}
	if n, _ := result.RowsAffected(); n > 0 {
		return true, nil
	}
	_, err = s.q.ExecContext(ctx,
		`UPDATE activity_days SET count = count + 1 WHERE user_id = ? AND day = ? AND activity_type = ?`,
		userID, day.String(), string(activity))
	return false, err
}

// CountActivityDays counts distinct days in [from, to] on which userID did activity.
func (s *store) CountActivityDays(ctx context.Context, userID string, activity domain.ActivityType, from, to domain.Date) (int, error) {
	var n int
	err := s.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM activity_days
		 WHERE user_id = ? AND activity_type = ? AND day >= ? AND day <= ?`,
		userID, string(activity), from.String(), to.String(),
	).Scan(&n)
	return n, err
}

// ─── Processed Events ───────────────────────────────────────────────────────

// MarkEventProcessed records eventID. It returns false if the event was
// already recorded, meaning the caller is looking at a replay.
func (s *store) MarkEventProcessed(ctx context.Context, eventID, userID string, at time.Time) (bool, error) {
	result, err := s.q.ExecContext(ctx,
		`INSERT OR IGNORE INTO processed_events (event_id, user_id, processed_at) VALUES (?, ?, ?)`,
		eventID, userID, unixNano(at))
	if err != nil {
		return false, err
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

func scanProgress(s scanner) (*domain.UserProgress, error) {
	var p domain.UserProgress
	var lastActivity string
	var lastLevelUp sql.NullInt64
	var createdAt, updatedAt int64

	err := s.Scan(&p.UserID, &p.TotalPoints, &p.LifetimePoints, &p.Level,
		&p.CurrentStreak, &p.LongestStreak, &p.TotalSymptomLogs, &p.TotalBadgesEarned,
		&p.TotalChallengesCompleted, &p.WeeklyPoints, &p.MonthlyPoints,
		&lastActivity, &lastLevelUp, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // Not found, no error
	}
	if err != nil {
		return nil, err
	}

	p.LastActivityDate, err = domain.ParseDate(lastActivity)
	if err != nil {
		return nil, err
	}
	p.LastLevelUpAt = fromNullableUnix(lastLevelUp)
	p.CreatedAt = fromUnixNano(createdAt)
	p.UpdatedAt = fromUnixNano(updatedAt)
	return &p, nil
}
