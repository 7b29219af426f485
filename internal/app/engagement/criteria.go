package engagement

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/rural-health/carepoints/internal/domain"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Snapshot is what a criterion is evaluated against: the user's progress
// after the current mutation plus the activity that triggered it.
type Snapshot struct {
	Progress domain.UserProgress
	Activity domain.ActivityType
	Today    domain.Date

	// LoggedDays returns how many of the last n calendar days (today
	// included) had at least one symptom log.
	LoggedDays func(n int) (int, error)
}

// Criterion is a parsed badge predicate. The set of implementations is
// closed; ParseCriteria is the only constructor.
type Criterion interface {
	Met(s Snapshot) (bool, error)
	criterion()
}

// SymptomLogCount holds when the user has logged at least Count symptoms.
type SymptomLogCount struct{ Count int64 }

// SymptomLogWindow holds when at least Count of the last Days calendar days
// had a symptom log.
type SymptomLogWindow struct {
	Days  int
	Count int
}

// StreakAtLeast compares the current (or longest) streak with Days.
type StreakAtLeast struct {
	Days    int
	Longest bool
}

// PointsAtLeast compares one point counter with Count.
type PointsAtLeast struct {
	Count  int64
	Period domain.Period
}

// LevelAtLeast holds once the user reaches Level.
type LevelAtLeast struct{ Level int }

// BadgeCount holds once the user has earned Count badges.
type BadgeCount struct{ Count int }

// ChallengesCompleted holds once the user has finished Count challenges.
type ChallengesCompleted struct{ Count int }

// SpecificActivity holds when the triggering activity is Activity.
type SpecificActivity struct{ Activity domain.ActivityType }

func (SymptomLogCount) criterion() {}
func (SymptomLogWindow) criterion() {}
func (StreakAtLeast) criterion() {}
func (PointsAtLeast) criterion() {}
func (LevelAtLeast) criterion() {}
func (BadgeCount) criterion() {}
func (ChallengesCompleted) criterion() {}
func (SpecificActivity) criterion() {}

func (c SymptomLogCount) Met(s Snapshot) (bool, error) {
	return int64(s.Progress.TotalSymptomLogs) >= c.Count, nil
}

func (c SymptomLogWindow) Met(s Snapshot) (bool, error) {
	if s.LoggedDays == nil {
		return false, nil
	}
	n, err := s.LoggedDays(c.Days)
	if err != nil {
		return false, fmt.Errorf("count logged days: %w", err)
	}
	return n >= c.Count, nil
}

func (c StreakAtLeast) Met(s Snapshot) (bool, error) {
	if c.Longest {
		return s.Progress.LongestStreak >= c.Days, nil
	}
	return s.Progress.CurrentStreak >= c.Days, nil
}

func (c PointsAtLeast) Met(s Snapshot) (bool, error) {
	switch c.Period {
	case domain.PeriodWeekly:
		return s.Progress.WeeklyPoints >= c.Count, nil
	case domain.PeriodMonthly:
		return s.Progress.MonthlyPoints >= c.Count, nil
	default:
		return s.Progress.LifetimePoints >= c.Count, nil
	}
}

func (c LevelAtLeast) Met(s Snapshot) (bool, error) {
	return s.Progress.Level >= c.Level, nil
}

func (c BadgeCount) Met(s Snapshot) (bool, error) {
	return s.Progress.TotalBadgesEarned >= c.Count, nil
}

func (c ChallengesCompleted) Met(s Snapshot) (bool, error) {
	return s.Progress.TotalChallengesCompleted >= c.Count, nil
}

func (c SpecificActivity) Met(s Snapshot) (bool, error) {
	return s.Activity == c.Activity, nil
}

// ParseCriteria validates spec and returns its closed form. Unknown actions
// and periods are rejected with domain.ErrInvalidCriteria.
func ParseCriteria(spec domain.CriteriaSpec) (Criterion, error) {
	if err := validate.Struct(spec); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidCriteria, err)
	}

	count := spec.Count
	if count == 0 {
		count = 1
	}

	switch spec.Action {
	case "log_symptoms":
		switch spec.Period {
		case "", "all_time":
			return SymptomLogCount{Count: count}, nil
		case "days", "weeks", "months":
			days := windowDays(spec)
			need := int(spec.Count)
			if need == 0 {
				need = days
			}
			if need > days {
				return nil, fmt.Errorf("%w: log_symptoms needs %d days in a %d-day window",
					domain.ErrInvalidCriteria, need, days)
			}
			return SymptomLogWindow{Days: days, Count: need}, nil
		}

	case "maintain_streak":
		days := spec.Days
		if days == 0 {
			days = int(spec.Count)
		}
		if days == 0 {
			days = 7
		}
		switch spec.Period {
		case "", "current":
			return StreakAtLeast{Days: days}, nil
		case "longest":
			return StreakAtLeast{Days: days, Longest: true}, nil
		}

	case "earn_points":
		switch spec.Period {
		case "", "total", "all_time", string(domain.PeriodLifetime):
			return PointsAtLeast{Count: count, Period: domain.PeriodLifetime}, nil
		case string(domain.PeriodWeekly):
			return PointsAtLeast{Count: count, Period: domain.PeriodWeekly}, nil
		case string(domain.PeriodMonthly):
			return PointsAtLeast{Count: count, Period: domain.PeriodMonthly}, nil
		}

	case "reach_level":
		return LevelAtLeast{Level: int(count)}, nil

	case "earn_badges", "badge_collector":
		return BadgeCount{Count: int(count)}, nil

	case "complete_challenges":
		return ChallengesCompleted{Count: int(count)}, nil

	case "specific_activity":
		if spec.Activity == "" {
			return nil, fmt.Errorf("%w: specific_activity needs an activity", domain.ErrInvalidCriteria)
		}
		return SpecificActivity{Activity: domain.ActivityType(spec.Activity)}, nil

	default:
		return nil, fmt.Errorf("%w: unknown action %q", domain.ErrInvalidCriteria, spec.Action)
	}

	return nil, fmt.Errorf("%w: action %q does not support period %q",
		domain.ErrInvalidCriteria, spec.Action, spec.Period)
}

// windowDays sizes a log_symptoms window. Months count as 30 days.
func windowDays(spec domain.CriteriaSpec) int {
	switch spec.Period {
	case "weeks":
		if spec.Weeks > 0 {
			return 7 * spec.Weeks
		}
		return 7
	case "months":
		if spec.Months > 0 {
			return 30 * spec.Months
		}
		return 30
	default:
		if spec.Days > 0 {
			return spec.Days
		}
		return 7
	}
}
