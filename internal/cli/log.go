package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rural-health/carepoints/internal/domain"
)

func init() {
	logCmd.Flags().StringVarP(&logType, "type", "t", string(domain.ActivitySymptomLogged), "Activity type")
	logCmd.Flags().StringVar(&logEventID, "event-id", "", "Idempotency key; a replayed ID scores nothing")
	logCmd.Flags().StringVar(&logAt, "at", "", "When it happened (RFC 3339 or YYYY-MM-DD, default now)")
	logCmd.Flags().StringVar(&logTZ, "tz", "", "IANA time zone deciding the calendar day")
	rootCmd.AddCommand(logCmd)
}

var (
	logType    string
	logEventID string
	logAt      string
	logTZ      string
)

var logCmd = &cobra.Command{
	Use:   "log USER",
	Short: "Record a qualifying activity and print what it earned",
	Args:  cobra.ExactArgs(1),
	RunE:  runLog,
}

func runLog(cmd *cobra.Command, args []string) error {
	at, err := parseWhen(logAt)
	if err != nil {
		return err
	}

	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	res, err := d.Engine.OnQualifyingActivity(context.Background(), domain.ActivityEvent{
		EventID:    logEventID,
		UserID:     args[0],
		Type:       domain.ActivityType(logType),
		OccurredAt: at,
		Timezone:   logTZ,
	})
	if err != nil {
		return err
	}

	if res.Duplicate {
		fmt.Printf("Event %s was already scored; nothing changed.\n", logEventID)
		return nil
	}

	fmt.Printf("+%d points (balance %d, lifetime %d)\n", res.PointsAwarded, res.TotalPoints, res.LifetimePoints)
	fmt.Printf("Streak: %d day(s)   Level: %d\n", res.CurrentStreak, res.Level)
	if res.LeveledUp {
		fmt.Printf("Level up! You reached level %d.\n", res.Level)
	}
	for _, b := range res.NewBadges {
		fmt.Printf("Badge earned: %s (%s, +%d)\n", b.Name, b.Rarity, b.PointsReward)
	}
	for _, c := range res.CompletedChallenges {
		fmt.Printf("Challenge completed: %s (+%d)\n", c.Title, c.PointsReward)
	}
	return nil
}
