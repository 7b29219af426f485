package engagement

import "github.com/rural-health/carepoints/internal/domain"

// StreakChange describes what one qualifying activity did to a streak.
type StreakChange int

const (
	StreakUnchanged StreakChange = iota // same calendar day as the last activity
	StreakStarted                       // first activity ever
	StreakExtended                      // the day after the last activity
	StreakReset                         // a gap of two or more days
)

func (c StreakChange) String() string {
	switch c {
	case StreakStarted:
		return "started"
	case StreakExtended:
		return "extended"
	case StreakReset:
		return "reset"
	default:
		return "unchanged"
	}
}

// ApplyStreak advances p's streak for activity on day. There is no grace
// period and no freeze: any missed day resets the current streak to 1.
// LongestStreak never decreases.
//
// An activity dated before LastActivityDate (a late, out-of-order event)
// leaves the streak untouched.
func ApplyStreak(p *domain.UserProgress, day domain.Date) StreakChange {
	var change StreakChange
	switch {
	case p.LastActivityDate.IsZero():
		p.CurrentStreak = 1
		change = StreakStarted
	default:
		gap := p.LastActivityDate.DaysUntil(day)
		switch {
		case gap <= 0:
			return StreakUnchanged
		case gap == 1:
			p.CurrentStreak++
			change = StreakExtended
		default:
			p.CurrentStreak = 1
			change = StreakReset
		}
	}

	p.LastActivityDate = day
	if p.CurrentStreak > p.LongestStreak {
		p.LongestStreak = p.CurrentStreak
	}
	return change
}
