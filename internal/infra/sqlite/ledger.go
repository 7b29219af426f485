package sqlite

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/rural-health/carepoints/internal/domain"
)

// ─── Points Ledger ──────────────────────────────────────────────────────────

// InsertLedgerEntry appends a point movement and returns its row ID.
func (s *store) InsertLedgerEntry(ctx context.Context, e domain.LedgerEntry) (int64, error) {
	result, err := s.q.ExecContext(ctx,
		`INSERT INTO points_ledger (user_id, type, amount, reason, balance, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.UserID, string(e.Type), e.Amount, e.Reason, e.Balance, unixNano(e.CreatedAt),
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// LedgerEntries returns the most recent movements for a user, newest first.
func (s *store) LedgerEntries(ctx context.Context, userID string, limit int) ([]domain.LedgerEntry, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, user_id, type, amount, reason, balance, created_at
		 FROM points_ledger WHERE user_id = ? ORDER BY id DESC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		var ts int64
		if err := rows.Scan(&e.ID, &e.UserID, &e.Type, &e.Amount, &e.Reason, &e.Balance, &ts); err != nil {
			return nil, err
		}
		e.CreatedAt = fromUnixNano(ts)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ─── Activity Feed ──────────────────────────────────────────────────────────

// InsertFeedEntry appends a feed line. An empty ID is filled with a UUID.
func (s *store) InsertFeedEntry(ctx context.Context, e domain.FeedEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO activity_feed (id, user_id, kind, title, description, points, badge_id, challenge_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.UserID, string(e.Kind), e.Title, e.Description, e.Points,
		nullStr(e.BadgeID), nullStr(e.ChallengeID), unixNano(e.CreatedAt),
	)
	return err
}

// FeedEntries returns a user's newest feed entries.
func (s *store) FeedEntries(ctx context.Context, userID string, limit int) ([]domain.FeedEntry, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, user_id, kind, title, description, points, badge_id, challenge_id, created_at
		 FROM activity_feed WHERE user_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.FeedEntry
	for rows.Next() {
		var e domain.FeedEntry
		var badgeID, challengeID sql.NullString
		var ts int64
		if err := rows.Scan(&e.ID, &e.UserID, &e.Kind, &e.Title, &e.Description,
			&e.Points, &badgeID, &challengeID, &ts); err != nil {
			return nil, err
		}
		e.BadgeID = badgeID.String
		e.ChallengeID = challengeID.String
		e.CreatedAt = fromUnixNano(ts)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
