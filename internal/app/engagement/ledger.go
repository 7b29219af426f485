package engagement

import (
	"context"
	"fmt"

	"github.com/rural-health/carepoints/internal/domain"
	"github.com/rural-health/carepoints/internal/infra/sqlite"
)

// AwardPoints grants amount points to a user outside the activity pipeline,
// for example a manual grant by a care coordinator. Badges are re-evaluated
// in the same transaction since the user's stats changed.
func (e *Engine) AwardPoints(ctx context.Context, userID string, amount int64, reason string) (*domain.ActivityResult, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: got %d", domain.ErrInvalidPoints, amount)
	}
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", domain.ErrInvalidEvent)
	}
	if reason == "" {
		reason = "manual"
	}

	var s *session
	err := e.db.WithTx(ctx, func(tx *sqlite.Tx) error {
		sess, err := e.begin(ctx, tx, userID, e.now())
		if err != nil {
			return err
		}
		s = sess
		if err := s.awardPoints(amount, reason, true); err != nil {
			return err
		}
		if err := s.evaluateBadges(); err != nil {
			return err
		}
		return s.save()
	})
	if err != nil {
		return nil, fmt.Errorf("award points: %w", err)
	}

	s.flushMetrics()
	e.logger.Info("points awarded", "user", userID, "amount", amount, "reason", reason)
	return s.result(), nil
}

// SpendPoints deducts amount from the user's spendable balance. Lifetime,
// weekly and monthly counters and the level are unaffected.
func (e *Engine) SpendPoints(ctx context.Context, userID string, amount int64, reason string) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("%w: got %d", domain.ErrInvalidPoints, amount)
	}
	if reason == "" {
		reason = "redeem"
	}

	var s *session
	err := e.db.WithTx(ctx, func(tx *sqlite.Tx) error {
		sess, err := e.begin(ctx, tx, userID, e.now())
		if err != nil {
			return err
		}
		s = sess
		p := s.p
		if p.TotalPoints < amount {
			return fmt.Errorf("%w: balance %d, need %d", domain.ErrInsufficientPoints, p.TotalPoints, amount)
		}
		p.TotalPoints -= amount

		if _, err := tx.InsertLedgerEntry(ctx, domain.LedgerEntry{
			UserID:    userID,
			Type:      domain.LedgerSpend,
			Amount:    amount,
			Reason:    reason,
			Balance:   p.TotalPoints,
			CreatedAt: s.now,
		}); err != nil {
			return fmt.Errorf("ledger spend: %w", err)
		}
		if err := s.feed(domain.FeedEntry{
			Kind:        domain.FeedPointsSpent,
			Title:       fmt.Sprintf("Spent %d points", amount),
			Description: reason,
			Points:      -amount,
		}); err != nil {
			return err
		}
		s.spentTotal = amount
		return s.save()
	})
	if err != nil {
		return 0, fmt.Errorf("spend points: %w", err)
	}

	s.flushMetrics()
	return s.p.TotalPoints, nil
}
