package engagement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rural-health/carepoints/internal/domain"
)

// ─── Progress ───────────────────────────────────────────────────────────────

// progressChallenges advances the user's open enrollments that match ev
// and pays out any that reach their goal. firstOfDay is true when ev is the
// user's first activity of its type on day. Returns how many completed.
func (s *session) progressChallenges(ev domain.ActivityEvent, day domain.Date, firstOfDay bool, points int64) (int, error) {
	open, err := s.tx.ListOpenParticipations(s.ctx, s.p.UserID)
	if err != nil {
		return 0, fmt.Errorf("list participations: %w", err)
	}

	completed := 0
	for _, op := range open {
		c := op.Challenge
		part := op.Participation
		if c.ActivityType != ev.Type || !c.InWindow(ev.OccurredAt) {
			continue
		}

		var delta int64
		switch c.GoalUnit {
		case domain.UnitLogs:
			delta = 1
		case domain.UnitDays:
			if firstOfDay && !part.LastProgress.Equal(day) {
				delta = 1
			}
		case domain.UnitPoints:
			delta = points
		}
		if delta == 0 {
			continue
		}

		part.ProgressValue += delta
		if part.LastProgress.Before(day) {
			part.LastProgress = day
		}
		part.Status = domain.ParticipationInProgress

		if part.ProgressValue >= c.GoalValue {
			part.Status = domain.ParticipationCompleted
			part.CompletedAt = s.now
			if err := s.completeChallenge(c); err != nil {
				return completed, err
			}
			completed++
		}

		if err := s.tx.SaveParticipation(s.ctx, part); err != nil {
			return completed, fmt.Errorf("save participation %s: %w", part.ID, err)
		}
	}
	return completed, nil
}

// completeChallenge pays the challenge's point reward and grants its badge
// directly, without consulting the badge's criteria.
func (s *session) completeChallenge(c domain.HealthChallenge) error {
	s.p.TotalChallengesCompleted++
	s.completed = append(s.completed, c)

	if err := s.feed(domain.FeedEntry{
		Kind:        domain.FeedChallengeCompleted,
		Title:       "Challenge Completed: " + c.Title,
		Description: c.Description,
		Points:      c.PointsReward,
		ChallengeID: c.ID,
	}); err != nil {
		return err
	}

	if c.PointsReward > 0 {
		if err := s.awardPoints(c.PointsReward, "challenge:"+c.ID, false); err != nil {
			return err
		}
	}

	if c.BadgeRewardID != "" {
		b, err := s.tx.GetBadge(s.ctx, c.BadgeRewardID)
		if err != nil {
			return fmt.Errorf("load reward badge: %w", err)
		}
		if b == nil {
			s.e.logger.Warn("challenge reward badge missing", "challenge", c.ID, "badge", c.BadgeRewardID)
			return nil
		}
		if _, err := s.grantBadge(*b, domain.SourceChallenge); err != nil {
			return err
		}
	}
	return nil
}

// ─── Administration ─────────────────────────────────────────────────────────

// ChallengeDefinition is the input for creating a challenge.
type ChallengeDefinition struct {
	Title         string                 `json:"title" validate:"required,max=200"`
	Description   string                 `json:"description" validate:"max=1000"`
	ActivityType  domain.ActivityType    `json:"activity_type" validate:"required"`
	GoalValue     int64                  `json:"goal_value" validate:"gt=0"`
	GoalUnit      domain.GoalUnit        `json:"goal_unit" validate:"required,oneof=logs days points"`
	StartsAt      time.Time              `json:"starts_at" validate:"required"`
	EndsAt        time.Time              `json:"ends_at" validate:"required,gtfield=StartsAt"`
	PointsReward  int64                  `json:"points_reward" validate:"gte=0"`
	BadgeRewardID string                 `json:"badge_reward_id"`
	Status        domain.ChallengeStatus `json:"status" validate:"omitempty,oneof=draft active"`
}

// CreateChallenge validates def and stores it. Status defaults to active.
// BadgeRewardID may name a badge by ID or code.
func (e *Engine) CreateChallenge(ctx context.Context, def ChallengeDefinition) (*domain.HealthChallenge, error) {
	if err := validate.Struct(def); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidChallenge, err)
	}
	if _, known := e.cfg.ActivityPoints[def.ActivityType]; !known {
		return nil, fmt.Errorf("%w: %w %q", domain.ErrInvalidChallenge, domain.ErrUnknownActivity, def.ActivityType)
	}

	badgeID := ""
	if def.BadgeRewardID != "" {
		b, err := e.GetBadge(ctx, def.BadgeRewardID)
		if err != nil {
			return nil, fmt.Errorf("%w: reward badge: %w", domain.ErrInvalidChallenge, err)
		}
		badgeID = b.ID
	}

	status := def.Status
	if status == "" {
		status = domain.ChallengeActive
	}

	c := domain.HealthChallenge{
		ID:            uuid.NewString(),
		Title:         def.Title,
		Description:   def.Description,
		ActivityType:  def.ActivityType,
		GoalValue:     def.GoalValue,
		GoalUnit:      def.GoalUnit,
		StartsAt:      def.StartsAt.UTC(),
		EndsAt:        def.EndsAt.UTC(),
		PointsReward:  def.PointsReward,
		BadgeRewardID: badgeID,
		Status:        status,
		CreatedAt:     e.now(),
	}
	if err := e.db.InsertChallenge(ctx, c); err != nil {
		return nil, fmt.Errorf("insert challenge: %w", err)
	}
	e.logger.Info("challenge created", "id", c.ID, "title", c.Title, "goal", c.GoalValue, "unit", c.GoalUnit)
	return &c, nil
}

// GetChallenge returns a challenge or domain.ErrChallengeNotFound.
func (e *Engine) GetChallenge(ctx context.Context, id string) (*domain.HealthChallenge, error) {
	c, err := e.db.GetChallenge(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, domain.ErrChallengeNotFound
	}
	return c, nil
}

// ListChallenges returns challenges, optionally only those in status.
func (e *Engine) ListChallenges(ctx context.Context, status domain.ChallengeStatus) ([]domain.HealthChallenge, error) {
	return e.db.ListChallenges(ctx, status)
}

// SetChallengeStatus moves a challenge through its lifecycle.
func (e *Engine) SetChallengeStatus(ctx context.Context, id string, status domain.ChallengeStatus) error {
	switch status {
	case domain.ChallengeDraft, domain.ChallengeActive, domain.ChallengeCompleted, domain.ChallengeExpired:
	default:
		return fmt.Errorf("%w: unknown status %q", domain.ErrInvalidChallenge, status)
	}
	return e.db.UpdateChallengeStatus(ctx, id, status)
}

// JoinChallenge enrolls a user in an active challenge whose window has
// not closed.
func (e *Engine) JoinChallenge(ctx context.Context, userID, challengeID string) (*domain.ChallengeParticipation, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", domain.ErrInvalidEvent)
	}
	c, err := e.GetChallenge(ctx, challengeID)
	if err != nil {
		return nil, err
	}
	now := e.now()
	if c.Status != domain.ChallengeActive || now.After(c.EndsAt) {
		return nil, fmt.Errorf("%w: %s is %s", domain.ErrChallengeClosed, c.Title, c.Status)
	}

	p := domain.ChallengeParticipation{
		ID:          uuid.NewString(),
		UserID:      userID,
		ChallengeID: c.ID,
		Status:      domain.ParticipationJoined,
		JoinedAt:    now,
	}
	if err := e.db.InsertParticipation(ctx, p); err != nil {
		if errors.Is(err, domain.ErrAlreadyJoined) {
			return nil, err
		}
		return nil, fmt.Errorf("join challenge: %w", err)
	}
	return &p, nil
}

// ListParticipations returns a user's enrollments.
func (e *Engine) ListParticipations(ctx context.Context, userID string) ([]domain.ChallengeParticipation, error) {
	return e.db.ListParticipations(ctx, userID)
}

// ExpireChallenges closes active challenges whose window has passed.
// The daemon's scheduler calls it periodically.
func (e *Engine) ExpireChallenges(ctx context.Context) (int64, error) {
	n, err := e.db.ExpireChallenges(ctx, e.now())
	if err != nil {
		return 0, fmt.Errorf("expire challenges: %w", err)
	}
	if n > 0 {
		e.logger.Info("challenges expired", "count", n)
	}
	return n, nil
}
