package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rural-health/carepoints/internal/domain"
)

// ─── Challenges ─────────────────────────────────────────────────────────────

const challengeColumns = `id, title, description, activity_type, goal_value, goal_unit,
	starts_at, ends_at, points_reward, badge_reward_id, status, created_at`

// InsertChallenge creates a challenge definition.
func (s *store) InsertChallenge(ctx context.Context, c domain.HealthChallenge) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO challenges (`+challengeColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Title, c.Description, string(c.ActivityType), c.GoalValue, string(c.GoalUnit),
		unixNano(c.StartsAt), unixNano(c.EndsAt), c.PointsReward, nullStr(c.BadgeRewardID),
		string(c.Status), unixNano(c.CreatedAt),
	)
	return err
}

// GetChallenge retrieves a challenge by ID, or nil if it does not exist.
func (s *store) GetChallenge(ctx context.Context, id string) (*domain.HealthChallenge, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+challengeColumns+` FROM challenges WHERE id = ?`, id)
	return scanChallenge(row)
}

// ListChallenges returns challenges, optionally filtered by status.
func (s *store) ListChallenges(ctx context.Context, status domain.ChallengeStatus) ([]domain.HealthChallenge, error) {
	query := `SELECT ` + challengeColumns + ` FROM challenges`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY starts_at ASC, id ASC`

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var challenges []domain.HealthChallenge
	for rows.Next() {
		c, err := scanChallenge(rows)
		if err != nil {
			return nil, err
		}
		challenges = append(challenges, *c)
	}
	return challenges, rows.Err()
}

// UpdateChallengeStatus moves a challenge to status.
func (s *store) UpdateChallengeStatus(ctx context.Context, id string, status domain.ChallengeStatus) error {
	result, err := s.q.ExecContext(ctx, `UPDATE challenges SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return domain.ErrChallengeNotFound
	}
	return nil
}

// ExpireChallenges marks active challenges whose window closed before now.
func (s *store) ExpireChallenges(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.q.ExecContext(ctx,
		`UPDATE challenges SET status = ? WHERE status = ? AND ends_at < ?`,
		string(domain.ChallengeExpired), string(domain.ChallengeActive), unixNano(now))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// ─── Participations ─────────────────────────────────────────────────────────

const participationColumns = `p.id, p.user_id, p.challenge_id, p.progress_value, p.status,
	p.last_progress_date, p.joined_at, p.completed_at`

// InsertParticipation enrolls a user. Returns domain.ErrAlreadyJoined if the
// user is already enrolled in that challenge.
func (s *store) InsertParticipation(ctx context.Context, p domain.ChallengeParticipation) error {
	result, err := s.q.ExecContext(ctx,
		`INSERT OR IGNORE INTO challenge_participations
			(id, user_id, challenge_id, progress_value, status, last_progress_date, joined_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.UserID, p.ChallengeID, p.ProgressValue, string(p.Status),
		p.LastProgress.String(), unixNano(p.JoinedAt), nullableUnix(p.CompletedAt),
	)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return domain.ErrAlreadyJoined
	}
	return nil
}

// SaveParticipation writes progress, status and completion time back.
func (s *store) SaveParticipation(ctx context.Context, p domain.ChallengeParticipation) error {
	_, err := s.q.ExecContext(ctx,
		`UPDATE challenge_participations
		 SET progress_value = ?, status = ?, last_progress_date = ?, completed_at = ?
		 WHERE id = ?`,
		p.ProgressValue, string(p.Status), p.LastProgress.String(), nullableUnix(p.CompletedAt), p.ID,
	)
	return err
}

// ListParticipations returns every enrollment of a user.
func (s *store) ListParticipations(ctx context.Context, userID string) ([]domain.ChallengeParticipation, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+participationColumns+` FROM challenge_participations p
		 WHERE p.user_id = ? ORDER BY p.joined_at ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ChallengeParticipation
	for rows.Next() {
		p, err := scanParticipation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// OpenParticipation pairs an unfinished enrollment with its challenge.
type OpenParticipation struct {
	Participation domain.ChallengeParticipation
	Challenge     domain.HealthChallenge
}

// ListOpenParticipations returns a user's unfinished enrollments in active
// challenges, with the challenge definition attached.
func (s *store) ListOpenParticipations(ctx context.Context, userID string) ([]OpenParticipation, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+participationColumns+`,
			c.id, c.title, c.description, c.activity_type, c.goal_value, c.goal_unit,
			c.starts_at, c.ends_at, c.points_reward, c.badge_reward_id, c.status, c.created_at
		 FROM challenge_participations p JOIN challenges c ON c.id = p.challenge_id
		 WHERE p.user_id = ? AND p.status != ? AND c.status = ?
		 ORDER BY p.joined_at ASC`,
		userID, string(domain.ParticipationCompleted), string(domain.ChallengeActive))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OpenParticipation
	for rows.Next() {
		var op OpenParticipation
		p := &op.Participation
		c := &op.Challenge
		var lastProgress string
		var joinedAt int64
		var completedAt sql.NullInt64
		var startsAt, endsAt, createdAt int64
		var badgeReward sql.NullString
		if err := rows.Scan(&p.ID, &p.UserID, &p.ChallengeID, &p.ProgressValue, &p.Status,
			&lastProgress, &joinedAt, &completedAt,
			&c.ID, &c.Title, &c.Description, &c.ActivityType, &c.GoalValue, &c.GoalUnit,
			&startsAt, &endsAt, &c.PointsReward, &badgeReward, &c.Status, &createdAt); err != nil {
			return nil, err
		}
		if p.LastProgress, err = domain.ParseDate(lastProgress); err != nil {
			return nil, err
		}
		p.JoinedAt = fromUnixNano(joinedAt)
		p.CompletedAt = fromNullableUnix(completedAt)
		c.StartsAt = fromUnixNano(startsAt)
		c.EndsAt = fromUnixNano(endsAt)
		c.CreatedAt = fromUnixNano(createdAt)
		c.BadgeRewardID = badgeReward.String
		out = append(out, op)
	}
	return out, rows.Err()
}

func scanChallenge(s scanner) (*domain.HealthChallenge, error) {
	var c domain.HealthChallenge
	var startsAt, endsAt, createdAt int64
	var badgeReward sql.NullString

	err := s.Scan(&c.ID, &c.Title, &c.Description, &c.ActivityType, &c.GoalValue, &c.GoalUnit,
		&startsAt, &endsAt, &c.PointsReward, &badgeReward, &c.Status, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c.StartsAt = fromUnixNano(startsAt)
	c.EndsAt = fromUnixNano(endsAt)
	c.CreatedAt = fromUnixNano(createdAt)
	c.BadgeRewardID = badgeReward.String
	return &c, nil
}

func scanParticipation(s scanner) (*domain.ChallengeParticipation, error) {
	var p domain.ChallengeParticipation
	var lastProgress string
	var joinedAt int64
	var completedAt sql.NullInt64

	err := s.Scan(&p.ID, &p.UserID, &p.ChallengeID, &p.ProgressValue, &p.Status,
		&lastProgress, &joinedAt, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if p.LastProgress, err = domain.ParseDate(lastProgress); err != nil {
		return nil, err
	}
	p.JoinedAt = fromUnixNano(joinedAt)
	p.CompletedAt = fromNullableUnix(completedAt)
	return &p, nil
}
