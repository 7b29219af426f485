package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rural-health/carepoints/internal/domain"
)

// ─── Badge Definitions ──────────────────────────────────────────────────────

const badgeColumns = `id, code, name, description, category, rarity, points_reward, icon, criteria, active, created_at`

// InsertBadge stores a new badge definition. Returns domain.ErrBadgeExists
// when the ID or code is already taken.
func (s *store) InsertBadge(ctx context.Context, b domain.Badge) error {
	criteria, err := json.Marshal(b.Criteria)
	if err != nil {
		return fmt.Errorf("encode criteria: %w", err)
	}
	result, err := s.q.ExecContext(ctx,
		`INSERT OR IGNORE INTO badges (`+badgeColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.Code, b.Name, b.Description, string(b.Category), string(b.Rarity),
		b.PointsReward, b.Icon, string(criteria), b.Active, unixNano(b.CreatedAt),
	)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return domain.ErrBadgeExists
	}
	return nil
}

// GetBadge retrieves a badge by ID, or nil if it does not exist.
func (s *store) GetBadge(ctx context.Context, id string) (*domain.Badge, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+badgeColumns+` FROM badges WHERE id = ?`, id)
	return scanBadge(row)
}

// GetBadgeByCode retrieves a badge by its slug, or nil if it does not exist.
func (s *store) GetBadgeByCode(ctx context.Context, code string) (*domain.Badge, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+badgeColumns+` FROM badges WHERE code = ?`, code)
	return scanBadge(row)
}

// ListBadges returns badge definitions ordered by creation.
func (s *store) ListBadges(ctx context.Context, activeOnly bool) ([]domain.Badge, error) {
	query := `SELECT ` + badgeColumns + ` FROM badges`
	if activeOnly {
		query += ` WHERE active = 1`
	}
	query += ` ORDER BY created_at ASC, code ASC`
	rows, err := s.q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBadges(rows)
}

// ListUnearnedBadges returns active badges userID does not hold yet.
func (s *store) ListUnearnedBadges(ctx context.Context, userID string) ([]domain.Badge, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+badgeColumns+` FROM badges b
		 WHERE b.active = 1 AND NOT EXISTS (
			SELECT 1 FROM user_badges ub WHERE ub.user_id = ? AND ub.badge_id = b.id
		 ) ORDER BY b.created_at ASC, b.code ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBadges(rows)
}

// SetBadgeActive enables or retires a badge definition.
func (s *store) SetBadgeActive(ctx context.Context, id string, active bool) error {
	result, err := s.q.ExecContext(ctx, `UPDATE badges SET active = ? WHERE id = ?`, active, id)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return domain.ErrBadgeNotFound
	}
	return nil
}

// ─── Earned Badges ──────────────────────────────────────────────────────────

// GrantBadge records that userID earned badgeID.
// Returns false if the badge was already held (idempotent).
func (s *store) GrantBadge(ctx context.Context, userID, badgeID string, source domain.BadgeSource, at time.Time) (bool, error) {
	result, err := s.q.ExecContext(ctx,
		`INSERT OR IGNORE INTO user_badges (user_id, badge_id, source, earned_at) VALUES (?, ?, ?, ?)`,
		userID, badgeID, string(source), unixNano(at),
	)
	if err != nil {
		return false, err
	}
	n, _ := result.RowsAffected()
	return n > 0, nil // true = newly earned
}

// ListUserBadges returns the badges userID holds, newest first. A positive
// limit caps the result; since, when non-zero, keeps only later awards.
func (s *store) ListUserBadges(ctx context.Context, userID string, since time.Time, limit int) ([]domain.UserBadge, error) {
	query := `SELECT ub.user_id, ub.source, ub.earned_at,
		b.id, b.code, b.name, b.description, b.category, b.rarity, b.points_reward, b.icon, b.criteria, b.active, b.created_at
		FROM user_badges ub JOIN badges b ON b.id = ub.badge_id
		WHERE ub.user_id = ?`
	args := []any{userID}
	if !since.IsZero() {
		query += ` AND ub.earned_at > ?`
		args = append(args, unixNano(since))
	}
	query += ` ORDER BY ub.earned_at DESC, b.code ASC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var earned []domain.UserBadge
	for rows.Next() {
		var ub domain.UserBadge
		var earnedAt int64
		var criteria string
		var createdAt int64
		b := &ub.Badge
		if err := rows.Scan(&ub.UserID, &ub.Source, &earnedAt,
			&b.ID, &b.Code, &b.Name, &b.Description, &b.Category, &b.Rarity,
			&b.PointsReward, &b.Icon, &criteria, &b.Active, &createdAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(criteria), &b.Criteria); err != nil {
			return nil, fmt.Errorf("decode criteria for badge %s: %w", b.Code, err)
		}
		ub.EarnedAt = fromUnixNano(earnedAt)
		b.CreatedAt = fromUnixNano(createdAt)
		earned = append(earned, ub)
	}
	return earned, rows.Err()
}

// CountUserBadges returns how many badges userID holds.
func (s *store) CountUserBadges(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM user_badges WHERE user_id = ?`, userID).Scan(&n)
	return n, err
}

func collectBadges(rows *sql.Rows) ([]domain.Badge, error) {
	var badges []domain.Badge
	for rows.Next() {
		b, err := scanBadge(rows)
		if err != nil {
			return nil, err
		}
		badges = append(badges, *b)
	}
	return badges, rows.Err()
}

func scanBadge(s scanner) (*domain.Badge, error) {
	var b domain.Badge
	var criteria string
	var createdAt int64

	err := s.Scan(&b.ID, &b.Code, &b.Name, &b.Description, &b.Category, &b.Rarity,
		&b.PointsReward, &b.Icon, &criteria, &b.Active, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(criteria), &b.Criteria); err != nil {
		return nil, fmt.Errorf("decode criteria for badge %s: %w", b.Code, err)
	}
	b.CreatedAt = fromUnixNano(createdAt)
	return &b, nil
}
