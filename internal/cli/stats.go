package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(statsCmd)
}

var statsCmd = &cobra.Command{
	Use:   "stats USER",
	Short: "Show a user's points, level, streaks and badge count",
	Args:  cobra.ExactArgs(1),
	RunE:  runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	s, err := d.Engine.GetUserStats(context.Background(), args[0])
	if err != nil {
		return err
	}

	fmt.Printf("User:          %s\n", s.UserID)
	fmt.Printf("Level:         %d\n", s.Level)
	fmt.Printf("Progress:      %s  (%d to next level)\n", renderBar(s.LevelProgressPct), s.PointsToNextLevel)
	fmt.Printf("Points:        %d available, %d lifetime\n", s.TotalPoints, s.LifetimePoints)
	fmt.Printf("This week:     %d\n", s.WeeklyPoints)
	fmt.Printf("This month:    %d\n", s.MonthlyPoints)
	fmt.Printf("Streak:        %d (longest %d)\n", s.CurrentStreak, s.LongestStreak)
	fmt.Printf("Symptom logs:  %d\n", s.TotalSymptomLogs)
	fmt.Printf("Badges:        %d\n", s.TotalBadges)
	fmt.Printf("Challenges:    %d completed\n", s.TotalChallengesCompleted)

	return nil
}
