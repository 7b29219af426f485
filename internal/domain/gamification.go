// Package domain holds the pure gamification types shared by the engine,
// the store and the API. Nothing here touches infrastructure.
package domain

import "time"

// ─── Activities ─────────────────────────────────────────────────────────────

// ActivityType names a qualifying user action.
type ActivityType string

const (
	ActivitySymptomLogged ActivityType = "symptom_logged"
	ActivityDailyCheckin  ActivityType = "daily_checkin"
)

// ActivityEvent is the inbound unit of work for the scoring pipeline.
// EventID is optional; when set, replays of the same ID are ignored.
type ActivityEvent struct {
	EventID    string       `json:"event_id,omitempty"`
	UserID     string       `json:"user_id" validate:"required,max=128"`
	Type       ActivityType `json:"type" validate:"required"`
	OccurredAt time.Time    `json:"occurred_at"`
	Timezone   string       `json:"timezone,omitempty" validate:"omitempty,timezone"`
}

// ActivityResult summarizes what one event changed.
type ActivityResult struct {
	UserID              string            `json:"user_id"`
	Duplicate           bool              `json:"duplicate,omitempty"`
	PointsAwarded       int64             `json:"points_awarded"`
	TotalPoints         int64             `json:"total_points"`
	LifetimePoints      int64             `json:"lifetime_points"`
	CurrentStreak       int               `json:"current_streak"`
	Level               int               `json:"level"`
	LeveledUp           bool              `json:"leveled_up"`
	NewBadges           []Badge           `json:"new_badges"`
	CompletedChallenges []HealthChallenge `json:"completed_challenges"`
}

// ─── Progress ───────────────────────────────────────────────────────────────

// UserProgress is the per-user aggregate. Level is a cache of
// LevelForPoints(LifetimePoints) and LongestStreak >= CurrentStreak always.
type UserProgress struct {
	UserID                   string    `json:"user_id"`
	TotalPoints              int64     `json:"total_points"`
	LifetimePoints           int64     `json:"lifetime_points"`
	Level                    int       `json:"level"`
	CurrentStreak            int       `json:"current_streak"`
	LongestStreak            int       `json:"longest_streak"`
	TotalSymptomLogs         int       `json:"total_symptom_logs"`
	TotalBadgesEarned        int       `json:"total_badges_earned"`
	TotalChallengesCompleted int       `json:"total_challenges_completed"`
	WeeklyPoints             int64     `json:"weekly_points"`
	MonthlyPoints            int64     `json:"monthly_points"`
	LastActivityDate         Date      `json:"last_activity_date"`
	LastLevelUpAt            time.Time `json:"last_level_up_at"`
	CreatedAt                time.Time `json:"created_at"`
	UpdatedAt                time.Time `json:"updated_at"`
}

// NewUserProgress returns the zero state a user starts from.
func NewUserProgress(userID string, now time.Time) *UserProgress {
	return &UserProgress{
		UserID:    userID,
		Level:     1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// UserStats is the read model returned to callers.
type UserStats struct {
	UserID                   string  `json:"user_id"`
	Level                    int     `json:"level"`
	TotalPoints              int64   `json:"total_points"`
	LifetimePoints           int64   `json:"lifetime_points"`
	CurrentStreak            int     `json:"current_streak"`
	LongestStreak            int     `json:"longest_streak"`
	TotalBadges              int     `json:"total_badges"`
	TotalSymptomLogs         int     `json:"total_symptom_logs"`
	TotalChallengesCompleted int     `json:"total_challenges_completed"`
	WeeklyPoints             int64   `json:"weekly_points"`
	MonthlyPoints            int64   `json:"monthly_points"`
	PointsToNextLevel        int64   `json:"points_to_next_level"`
	LevelProgressPct         float64 `json:"level_progress_pct"`
}

// Period selects a point counter.
type Period string

const (
	PeriodWeekly   Period = "weekly"
	PeriodMonthly  Period = "monthly"
	PeriodLifetime Period = "lifetime"
)

// LeaderboardEntry ranks one user for a period.
type LeaderboardEntry struct {
	Rank   int    `json:"rank"`
	UserID string `json:"user_id"`
	Points int64  `json:"points"`
	Level  int    `json:"level"`
}

// ─── Ledger & Feed ──────────────────────────────────────────────────────────

// LedgerType distinguishes point movements.
type LedgerType string

const (
	LedgerEarn  LedgerType = "earn"
	LedgerSpend LedgerType = "spend"
)

// LedgerEntry records one point movement. Balance is TotalPoints after it.
type LedgerEntry struct {
	ID        int64      `json:"id"`
	UserID    string     `json:"user_id"`
	Type      LedgerType `json:"type"`
	Amount    int64      `json:"amount"`
	Reason    string     `json:"reason"`
	Balance   int64      `json:"balance"`
	CreatedAt time.Time  `json:"created_at"`
}

// FeedKind categorizes activity-feed entries.
type FeedKind string

const (
	FeedPointsEarned       FeedKind = "points_earned"
	FeedPointsSpent        FeedKind = "points_spent"
	FeedBadgeEarned        FeedKind = "badge_earned"
	FeedLevelUp            FeedKind = "level_up"
	FeedChallengeCompleted FeedKind = "challenge_completed"
)

// FeedEntry is a user-visible line in the activity feed.
type FeedEntry struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Kind        FeedKind  `json:"kind"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Points      int64     `json:"points"`
	BadgeID     string    `json:"badge_id,omitempty"`
	ChallengeID string    `json:"challenge_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ─── Badges ─────────────────────────────────────────────────────────────────

// BadgeCategory groups badges by theme.
type BadgeCategory string

const (
	CategorySymptomTracking BadgeCategory = "symptom_tracking"
	CategoryConsistency     BadgeCategory = "consistency"
	CategoryWellness        BadgeCategory = "wellness"
	CategoryMilestone       BadgeCategory = "milestone"
	CategorySocial          BadgeCategory = "social"
	CategoryTreatment       BadgeCategory = "treatment"
)

// Valid reports whether c is a known category.
func (c BadgeCategory) Valid() bool {
	switch c {
	case CategorySymptomTracking, CategoryConsistency, CategoryWellness,
		CategoryMilestone, CategorySocial, CategoryTreatment:
		return true
	}
	return false
}

// Rarity indicates how hard a badge is to earn.
type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityUncommon  Rarity = "uncommon"
	RarityRare      Rarity = "rare"
	RarityEpic      Rarity = "epic"
	RarityLegendary Rarity = "legendary"
)

// Valid reports whether r is a known rarity.
func (r Rarity) Valid() bool {
	switch r {
	case RarityCommon, RarityUncommon, RarityRare, RarityEpic, RarityLegendary:
		return true
	}
	return false
}

// CriteriaSpec is the stored, JSON form of a badge predicate.
// The engine parses it into a closed criterion before use.
type CriteriaSpec struct {
	Action   string `json:"action" validate:"required"`
	Count    int64  `json:"count,omitempty" validate:"gte=0"`
	Period   string `json:"period,omitempty"`
	Days     int    `json:"days,omitempty" validate:"gte=0"`
	Weeks    int    `json:"weeks,omitempty" validate:"gte=0"`
	Months   int    `json:"months,omitempty" validate:"gte=0"`
	Activity string `json:"activity,omitempty"`
}

// Badge is an achievement definition. Definitions are immutable once
// created apart from the Active flag.
type Badge struct {
	ID           string        `json:"id"`
	Code         string        `json:"code"`
	Name         string        `json:"name"`
	Description  string        `json:"description"`
	Category     BadgeCategory `json:"category"`
	Rarity       Rarity        `json:"rarity"`
	PointsReward int64         `json:"points_reward"`
	Icon         string        `json:"icon"`
	Criteria     CriteriaSpec  `json:"criteria"`
	Active       bool          `json:"active"`
	CreatedAt    time.Time     `json:"created_at"`
}

// BadgeSource records why a badge was granted.
type BadgeSource string

const (
	SourceCriteria  BadgeSource = "criteria"
	SourceChallenge BadgeSource = "challenge"
)

// UserBadge is an earned badge. At most one exists per (user, badge).
type UserBadge struct {
	UserID   string      `json:"user_id"`
	Badge    Badge       `json:"badge"`
	Source   BadgeSource `json:"source"`
	EarnedAt time.Time   `json:"earned_at"`
}

// NewBadges answers "what changed since".
type NewBadges struct {
	Badges    []UserBadge `json:"badges"`
	LeveledUp bool        `json:"leveled_up"`
	Level     int         `json:"level"`
}

// ─── Challenges ─────────────────────────────────────────────────────────────

// GoalUnit says how challenge progress accumulates.
type GoalUnit string

const (
	UnitLogs   GoalUnit = "logs"
	UnitDays   GoalUnit = "days"
	UnitPoints GoalUnit = "points"
)

// ChallengeStatus is the lifecycle of a challenge definition.
type ChallengeStatus string

const (
	ChallengeDraft     ChallengeStatus = "draft"
	ChallengeActive    ChallengeStatus = "active"
	ChallengeCompleted ChallengeStatus = "completed"
	ChallengeExpired   ChallengeStatus = "expired"
)

// HealthChallenge is a time-boxed goal users opt into.
type HealthChallenge struct {
	ID            string          `json:"id"`
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	ActivityType  ActivityType    `json:"activity_type"`
	GoalValue     int64           `json:"goal_value"`
	GoalUnit      GoalUnit        `json:"goal_unit"`
	StartsAt      time.Time       `json:"starts_at"`
	EndsAt        time.Time       `json:"ends_at"`
	PointsReward  int64           `json:"points_reward"`
	BadgeRewardID string          `json:"badge_reward_id,omitempty"`
	Status        ChallengeStatus `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
}

// InWindow reports whether t falls inside [StartsAt, EndsAt].
func (c HealthChallenge) InWindow(t time.Time) bool {
	return !t.Before(c.StartsAt) && !t.After(c.EndsAt)
}

// ParticipationStatus is the per-user state of a challenge.
type ParticipationStatus string

const (
	ParticipationJoined     ParticipationStatus = "joined"
	ParticipationInProgress ParticipationStatus = "in_progress"
	ParticipationCompleted  ParticipationStatus = "completed"
)

// ChallengeParticipation tracks one user's progress on one challenge.
type ChallengeParticipation struct {
	ID            string              `json:"id"`
	UserID        string              `json:"user_id"`
	ChallengeID   string              `json:"challenge_id"`
	ProgressValue int64               `json:"progress_value"`
	Status        ParticipationStatus `json:"status"`
	LastProgress  Date                `json:"last_progress_date"`
	JoinedAt      time.Time           `json:"joined_at"`
	CompletedAt   time.Time           `json:"completed_at"`
}
