// Package sqlite provides SQLite-based persistent storage for carepoints.
// Uses WAL mode for concurrent reads and crash-safe writes.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver (no CGO required)
)

// querier is satisfied by both *sql.DB and *sql.Tx, so every repository
// method below works inside and outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// store carries the repository methods shared by DB and Tx.
type store struct {
	q querier
}

// DB wraps a SQLite connection with WAL mode and migrations.
type DB struct {
	store
	db *sql.DB
}

// Tx is a write transaction handed to WithTx callbacks. Code running inside
// a callback must use the Tx, never the DB: the pool has a single connection.
type Tx struct {
	store
}

// Open creates or opens the SQLite database at dir/carepoints.db.
// Enables WAL mode, foreign keys, a 5-second busy timeout and IMMEDIATE
// transactions so writers queue instead of failing on upgrade.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dir, "carepoints.db")
	dsn := "file:" + dbPath +
		"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_txlock=immediate"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// SQLite is single-writer; one connection also serializes the
	// read-modify-write of a progress row across goroutines.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	d := &DB{store: store{q: db}, db: db}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return d, nil
}

// Close cleanly shuts down the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping checks database connectivity.
func (d *DB) Ping() error {
	return d.db.Ping()
}

// PingContext checks database connectivity with a deadline.
func (d *DB) PingContext(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// WithTx runs fn inside a transaction. A returned error (or panic) rolls
// everything back; otherwise the transaction commits.
func (d *DB) WithTx(ctx context.Context, fn func(tx *Tx) error) (err error) {
	sqlTx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&Tx{store: store{q: sqlTx}}); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// migrate runs idempotent schema migrations.
func (d *DB) migrate() error {
	migrations := []string{
		// ─── Progress ──────────────────────────────────────────────────
		`CREATE TABLE IF NOT EXISTS user_progress (
			user_id                    TEXT PRIMARY KEY,
			total_points               INTEGER NOT NULL DEFAULT 0,
			lifetime_points            INTEGER NOT NULL DEFAULT 0,
			level                      INTEGER NOT NULL DEFAULT 1,
			current_streak             INTEGER NOT NULL DEFAULT 0,
			longest_streak             INTEGER NOT NULL DEFAULT 0,
			total_symptom_logs         INTEGER NOT NULL DEFAULT 0,
			total_badges_earned        INTEGER NOT NULL DEFAULT 0,
			total_challenges_completed INTEGER NOT NULL DEFAULT 0,
			weekly_points              INTEGER NOT NULL DEFAULT 0,
			monthly_points             INTEGER NOT NULL DEFAULT 0,
			last_activity_date         TEXT NOT NULL DEFAULT '',
			last_level_up_at           INTEGER,
			created_at                 INTEGER NOT NULL,
			updated_at                 INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_progress_lifetime ON user_progress(lifetime_points)`,

		// One row per (user, day, activity type); count tracks repeats.
		`CREATE TABLE IF NOT EXISTS activity_days (
			user_id       TEXT NOT NULL,
			day           TEXT NOT NULL,
			activity_type TEXT NOT NULL,
			count         INTEGER NOT NULL DEFAULT 1,
			PRIMARY KEY (user_id, day, activity_type)
		)`,

		`CREATE TABLE IF NOT EXISTS processed_events (
			event_id     TEXT PRIMARY KEY,
			user_id      TEXT NOT NULL,
			processed_at INTEGER NOT NULL
		)`,

		// ─── Ledger & Feed ─────────────────────────────────────────────
		`CREATE TABLE IF NOT EXISTS points_ledger (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id    TEXT NOT NULL,
			type       TEXT NOT NULL,
			amount     INTEGER NOT NULL,
			reason     TEXT NOT NULL,
			balance    INTEGER NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_user ON points_ledger(user_id, id)`,

		`CREATE TABLE IF NOT EXISTS activity_feed (
			id           TEXT PRIMARY KEY,
			user_id      TEXT NOT NULL,
			kind         TEXT NOT NULL,
			title        TEXT NOT NULL,
			description  TEXT NOT NULL DEFAULT '',
			points       INTEGER NOT NULL DEFAULT 0,
			badge_id     TEXT,
			challenge_id TEXT,
			created_at   INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_feed_user ON activity_feed(user_id, created_at)`,

		// ─── Badges ────────────────────────────────────────────────────
		`CREATE TABLE IF NOT EXISTS badges (
			id            TEXT PRIMARY KEY,
			code          TEXT NOT NULL UNIQUE,
			name          TEXT NOT NULL,
			description   TEXT NOT NULL DEFAULT '',
			category      TEXT NOT NULL,
			rarity        TEXT NOT NULL,
			points_reward INTEGER NOT NULL DEFAULT 0,
			icon          TEXT NOT NULL DEFAULT '',
			criteria      TEXT NOT NULL,
			active        BOOLEAN NOT NULL DEFAULT 1,
			created_at    INTEGER NOT NULL
		)`,

		// The primary key is what makes a badge award happen at most once.
		`CREATE TABLE IF NOT EXISTS user_badges (
			user_id   TEXT NOT NULL,
			badge_id  TEXT NOT NULL REFERENCES badges(id),
			source    TEXT NOT NULL,
			earned_at INTEGER NOT NULL,
			PRIMARY KEY (user_id, badge_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_user_badges_earned ON user_badges(user_id, earned_at)`,

		// ─── Challenges ────────────────────────────────────────────────
		`CREATE TABLE IF NOT EXISTS challenges (
			id              TEXT PRIMARY KEY,
			title           TEXT NOT NULL,
			description     TEXT NOT NULL DEFAULT '',
			activity_type   TEXT NOT NULL,
			goal_value      INTEGER NOT NULL,
			goal_unit       TEXT NOT NULL,
			starts_at       INTEGER NOT NULL,
			ends_at         INTEGER NOT NULL,
			points_reward   INTEGER NOT NULL DEFAULT 0,
			badge_reward_id TEXT REFERENCES badges(id),
			status          TEXT NOT NULL,
			created_at      INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_challenges_status ON challenges(status, ends_at)`,

		`CREATE TABLE IF NOT EXISTS challenge_participations (
			id                 TEXT PRIMARY KEY,
			user_id            TEXT NOT NULL,
			challenge_id       TEXT NOT NULL REFERENCES challenges(id),
			progress_value     INTEGER NOT NULL DEFAULT 0,
			status             TEXT NOT NULL,
			last_progress_date TEXT NOT NULL DEFAULT '',
			joined_at          INTEGER NOT NULL,
			completed_at       INTEGER,
			UNIQUE (user_id, challenge_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_participations_user ON challenge_participations(user_id, status)`,
	}

	for _, m := range migrations {
		if _, err := d.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func unixNano(t time.Time) int64 {
	return t.UnixNano()
}

func fromUnixNano(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func nullableUnix(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func fromNullableUnix(n sql.NullInt64) time.Time {
	if !n.Valid {
		return time.Time{}
	}
	return fromUnixNano(n.Int64)
}

func nullStr(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
