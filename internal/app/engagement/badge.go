package engagement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"

	"github.com/rural-health/carepoints/internal/domain"
)

// ─── Evaluation ─────────────────────────────────────────────────────────────

// evaluateBadges awards every active, unearned badge whose criteria hold.
// Badge rewards can unlock further badges (points, badge count, level), so
// passes repeat until one awards nothing. Each pass shrinks the unearned
// set, which bounds the loop.
func (s *session) evaluateBadges() error {
	for {
		candidates, err := s.tx.ListUnearnedBadges(s.ctx, s.p.UserID)
		if err != nil {
			return fmt.Errorf("list unearned badges: %w", err)
		}

		awarded := 0
		for _, b := range candidates {
			crit, err := ParseCriteria(b.Criteria)
			if err != nil {
				s.e.logger.Warn("skipping badge with unusable criteria", "badge", b.Code, "error", err)
				continue
			}
			ok, err := crit.Met(s.snapshot())
			if err != nil {
				return fmt.Errorf("evaluate badge %s: %w", b.Code, err)
			}
			if !ok {
				continue
			}
			granted, err := s.grantBadge(b, domain.SourceCriteria)
			if err != nil {
				return err
			}
			if granted {
				awarded++
			}
		}

		if awarded == 0 {
			return nil
		}
	}
}

// grantBadge records b for the user and pays its reward. It is a no-op
// returning false when the user already holds b.
func (s *session) grantBadge(b domain.Badge, source domain.BadgeSource) (bool, error) {
	granted, err := s.tx.GrantBadge(s.ctx, s.p.UserID, b.ID, source, s.now)
	if err != nil {
		return false, fmt.Errorf("grant badge %s: %w", b.Code, err)
	}
	if !granted {
		return false, nil
	}

	held, err := s.tx.CountUserBadges(s.ctx, s.p.UserID)
	if err != nil {
		return false, fmt.Errorf("count badges: %w", err)
	}
	s.p.TotalBadgesEarned = held
	s.newBadges = append(s.newBadges, b)

	if err := s.feed(domain.FeedEntry{
		Kind:        domain.FeedBadgeEarned,
		Title:       "Badge Earned: " + b.Name,
		Description: b.Description,
		Points:      b.PointsReward,
		BadgeID:     b.ID,
	}); err != nil {
		return false, err
	}

	if b.PointsReward > 0 {
		if err := s.awardPoints(b.PointsReward, "badge:"+b.Code, false); err != nil {
			return false, err
		}
	}
	return true, nil
}

// ─── Definitions ────────────────────────────────────────────────────────────

// BadgeDefinition is the input for creating a badge.
type BadgeDefinition struct {
	Code         string               `json:"code" validate:"omitempty,max=64"`
	Name         string               `json:"name" validate:"required,max=100"`
	Description  string               `json:"description" validate:"max=500"`
	Category     domain.BadgeCategory `json:"category" validate:"required"`
	Rarity       domain.Rarity        `json:"rarity"`
	PointsReward int64                `json:"points_reward" validate:"gte=0"`
	Icon         string               `json:"icon" validate:"max=64"`
	Criteria     domain.CriteriaSpec  `json:"criteria"`
	Inactive     bool                 `json:"inactive"`
}

// CreateBadge validates def, including its criteria, and stores it.
// A missing code is derived from the name.
func (e *Engine) CreateBadge(ctx context.Context, def BadgeDefinition) (*domain.Badge, error) {
	if err := validate.Struct(def); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidBadge, err)
	}
	if !def.Category.Valid() {
		return nil, fmt.Errorf("%w: unknown category %q", domain.ErrInvalidBadge, def.Category)
	}
	if def.Rarity == "" {
		def.Rarity = domain.RarityCommon
	}
	if !def.Rarity.Valid() {
		return nil, fmt.Errorf("%w: unknown rarity %q", domain.ErrInvalidBadge, def.Rarity)
	}
	if _, err := ParseCriteria(def.Criteria); err != nil {
		return nil, err
	}

	code := def.Code
	if code == "" {
		code = slug.Make(def.Name)
	}
	if !slug.IsSlug(code) {
		return nil, fmt.Errorf("%w: code %q is not a slug", domain.ErrInvalidBadge, code)
	}

	b := domain.Badge{
		ID:           uuid.NewString(),
		Code:         code,
		Name:         def.Name,
		Description:  def.Description,
		Category:     def.Category,
		Rarity:       def.Rarity,
		PointsReward: def.PointsReward,
		Icon:         def.Icon,
		Criteria:     def.Criteria,
		Active:       !def.Inactive,
		CreatedAt:    e.now(),
	}
	if err := e.db.InsertBadge(ctx, b); err != nil {
		if errors.Is(err, domain.ErrBadgeExists) {
			return nil, fmt.Errorf("badge %q: %w", code, err)
		}
		return nil, fmt.Errorf("insert badge: %w", err)
	}
	e.logger.Info("badge created", "code", b.Code, "category", b.Category, "rarity", b.Rarity)
	return &b, nil
}

// SeedBadges installs the default catalog, skipping badges whose code
// already exists. Returns how many were created.
func (e *Engine) SeedBadges(ctx context.Context) (int, error) {
	created := 0
	for _, def := range DefaultBadges() {
		if _, err := e.CreateBadge(ctx, def); err != nil {
			if errors.Is(err, domain.ErrBadgeExists) {
				continue
			}
			return created, fmt.Errorf("seed %s: %w", def.Name, err)
		}
		created++
	}
	return created, nil
}

// GetBadge looks a badge up by ID or code.
func (e *Engine) GetBadge(ctx context.Context, idOrCode string) (*domain.Badge, error) {
	b, err := e.db.GetBadge(ctx, idOrCode)
	if err != nil {
		return nil, err
	}
	if b == nil {
		if b, err = e.db.GetBadgeByCode(ctx, idOrCode); err != nil {
			return nil, err
		}
	}
	if b == nil {
		return nil, domain.ErrBadgeNotFound
	}
	return b, nil
}

// ListBadges returns badge definitions.
func (e *Engine) ListBadges(ctx context.Context, activeOnly bool) ([]domain.Badge, error) {
	return e.db.ListBadges(ctx, activeOnly)
}

// SetBadgeActive retires or re-enables a badge. Users keep badges they
// already earned either way.
func (e *Engine) SetBadgeActive(ctx context.Context, idOrCode string, active bool) error {
	b, err := e.GetBadge(ctx, idOrCode)
	if err != nil {
		return err
	}
	return e.db.SetBadgeActive(ctx, b.ID, active)
}

// ListUserBadges returns every badge a user holds, newest first.
func (e *Engine) ListUserBadges(ctx context.Context, userID string) ([]domain.UserBadge, error) {
	return e.db.ListUserBadges(ctx, userID, time.Time{}, 0)
}

// RecentBadges returns the user's newest limit badges.
func (e *Engine) RecentBadges(ctx context.Context, userID string, limit int) ([]domain.UserBadge, error) {
	if limit <= 0 {
		limit = 5
	}
	return e.db.ListUserBadges(ctx, userID, time.Time{}, limit)
}
