package engagement

import "github.com/rural-health/carepoints/internal/domain"

// DefaultBadges is the starter catalog installed by SeedBadges.
func DefaultBadges() []BadgeDefinition {
	return []BadgeDefinition{
		{
			Name:         "First Steps",
			Description:  "Logged your first symptom entry",
			Category:     domain.CategorySymptomTracking,
			Rarity:       domain.RarityCommon,
			PointsReward: 50,
			Icon:         "fa-heartbeat",
			Criteria:     domain.CriteriaSpec{Action: "log_symptoms", Count: 1, Period: "all_time"},
		},
		{
			Name:         "Week Warrior",
			Description:  "Logged symptoms for 7 consecutive days",
			Category:     domain.CategoryConsistency,
			Rarity:       domain.RarityUncommon,
			PointsReward: 100,
			Icon:         "fa-calendar-check",
			Criteria:     domain.CriteriaSpec{Action: "maintain_streak", Days: 7, Period: "current"},
		},
		{
			Name:         "Monthly Champion",
			Description:  "Logged symptoms for 30 consecutive days",
			Category:     domain.CategoryConsistency,
			Rarity:       domain.RarityRare,
			PointsReward: 500,
			Icon:         "fa-trophy",
			Criteria:     domain.CriteriaSpec{Action: "maintain_streak", Days: 30, Period: "current"},
		},
		{
			Name:         "Dedicated Logger",
			Description:  "Logged symptoms 10 times",
			Category:     domain.CategorySymptomTracking,
			Rarity:       domain.RarityUncommon,
			PointsReward: 150,
			Icon:         "fa-clipboard-list",
			Criteria:     domain.CriteriaSpec{Action: "log_symptoms", Count: 10, Period: "all_time"},
		},
		{
			Name:        "Century Club",
			Description: "Earned 100 points",
			Category:    domain.CategoryMilestone,
			Rarity:      domain.RarityCommon,
			Icon:        "fa-star",
			Criteria:    domain.CriteriaSpec{Action: "earn_points", Count: 100, Period: "total"},
		},
		{
			Name:        "Point Master",
			Description: "Earned 500 points",
			Category:    domain.CategoryMilestone,
			Rarity:      domain.RarityUncommon,
			Icon:        "fa-medal",
			Criteria:    domain.CriteriaSpec{Action: "earn_points", Count: 500, Period: "total"},
		},
		{
			Name:        "Rising Star",
			Description: "Reached Level 5",
			Category:    domain.CategoryMilestone,
			Rarity:      domain.RarityRare,
			Icon:        "fa-star",
			Criteria:    domain.CriteriaSpec{Action: "reach_level", Count: 5},
		},
		{
			Name:         "Badge Collector",
			Description:  "Earned 5 badges",
			Category:     domain.CategoryMilestone,
			Rarity:       domain.RarityUncommon,
			PointsReward: 200,
			Icon:         "fa-award",
			Criteria:     domain.CriteriaSpec{Action: "earn_badges", Count: 5},
		},
		{
			Name:         "Daily Dedication",
			Description:  "Logged symptoms every day for a week",
			Category:     domain.CategoryConsistency,
			Rarity:       domain.RarityUncommon,
			PointsReward: 150,
			Icon:         "fa-calendar-day",
			Criteria:     domain.CriteriaSpec{Action: "log_symptoms", Count: 7, Period: "days", Days: 7},
		},
		{
			Name:         "Wellness Warrior",
			Description:  "Logged symptoms 30 times",
			Category:     domain.CategoryWellness,
			Rarity:       domain.RarityRare,
			PointsReward: 300,
			Icon:         "fa-heart",
			Criteria:     domain.CriteriaSpec{Action: "log_symptoms", Count: 30, Period: "all_time"},
		},
	}
}
