package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rural-health/carepoints/internal/app/engagement"
	"github.com/rural-health/carepoints/internal/domain"
)

func init() {
	f := challengeCreateCmd.Flags()
	f.StringVar(&chDef.Title, "title", "", "Challenge title")
	f.StringVar(&chDef.Description, "description", "", "Description")
	f.StringVar((*string)(&chDef.ActivityType), "activity", string(domain.ActivitySymptomLogged), "Activity that counts toward the goal")
	f.Int64Var(&chDef.GoalValue, "goal", 0, "Goal value")
	f.StringVar((*string)(&chDef.GoalUnit), "unit", string(domain.UnitLogs), "logs, days or points")
	f.StringVar(&chStarts, "starts", "", "Start (RFC 3339 or YYYY-MM-DD, default now)")
	f.StringVar(&chEnds, "ends", "", "End (RFC 3339 or YYYY-MM-DD)")
	f.DurationVar(&chFor, "for", 7*24*time.Hour, "Length when --ends is not given")
	f.Int64Var(&chDef.PointsReward, "points", 0, "Points granted on completion")
	f.StringVar(&chDef.BadgeRewardID, "badge", "", "Badge ID or code granted on completion")
	f.BoolVar(&chDraft, "draft", false, "Create as draft")
	_ = challengeCreateCmd.MarkFlagRequired("title")
	_ = challengeCreateCmd.MarkFlagRequired("goal")

	challengeListCmd.Flags().StringVarP(&chStatus, "status", "s", "", "Only challenges in this status")

	challengeCmd.AddCommand(challengeCreateCmd, challengeListCmd, challengeJoinCmd, challengeStatusCmd)
	rootCmd.AddCommand(challengeCmd)
}

var (
	chDef    engagement.ChallengeDefinition
	chStarts string
	chEnds   string
	chFor    time.Duration
	chDraft  bool
	chStatus string
)

var challengeCmd = &cobra.Command{
	Use:     "challenge",
	Aliases: []string{"challenges"},
	Short:   "Manage time-boxed health challenges",
}

var challengeCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a challenge",
	RunE:  runChallengeCreate,
}

var challengeListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List challenges",
	RunE:    runChallengeList,
}

var challengeJoinCmd = &cobra.Command{
	Use:   "join CHALLENGE USER",
	Short: "Enroll a user in an active challenge",
	Args:  cobra.ExactArgs(2),
	RunE:  runChallengeJoin,
}

var challengeStatusCmd = &cobra.Command{
	Use:   "status CHALLENGE STATUS",
	Short: "Move a challenge to draft, active, completed or expired",
	Args:  cobra.ExactArgs(2),
	RunE:  runChallengeStatus,
}

func runChallengeCreate(cmd *cobra.Command, args []string) error {
	starts, err := parseWhen(chStarts)
	if err != nil {
		return err
	}
	if starts.IsZero() {
		starts = time.Now()
	}
	ends, err := parseWhen(chEnds)
	if err != nil {
		return err
	}
	if ends.IsZero() {
		ends = starts.Add(chFor)
	}
	chDef.StartsAt, chDef.EndsAt = starts, ends
	if chDraft {
		chDef.Status = domain.ChallengeDraft
	}

	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	c, err := d.Engine.CreateChallenge(context.Background(), chDef)
	if err != nil {
		return err
	}
	fmt.Printf("Created challenge %s (%s), %s until %s\n", c.ID, c.Status, c.Title, formatTime(c.EndsAt))
	return nil
}

func runChallengeList(cmd *cobra.Command, args []string) error {
	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	challenges, err := d.Engine.ListChallenges(context.Background(), domain.ChallengeStatus(chStatus))
	if err != nil {
		return err
	}
	if len(challenges) == 0 {
		fmt.Println("No challenges.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tGOAL\tSTATUS\tENDS")
	for _, c := range challenges {
		fmt.Fprintf(w, "%s\t%s\t%d %s\t%s\t%s\n",
			c.ID,
			c.Title,
			c.GoalValue, c.GoalUnit,
			c.Status,
			formatTime(c.EndsAt),
		)
	}
	return w.Flush()
}

func runChallengeJoin(cmd *cobra.Command, args []string) error {
	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	p, err := d.Engine.JoinChallenge(context.Background(), args[1], args[0])
	if err != nil {
		return err
	}
	fmt.Printf("%s joined %s\n", p.UserID, p.ChallengeID)
	return nil
}

func runChallengeStatus(cmd *cobra.Command, args []string) error {
	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	if err := d.Engine.SetChallengeStatus(context.Background(), args[0], domain.ChallengeStatus(args[1])); err != nil {
		return err
	}
	fmt.Printf("Challenge %s is now %s\n", args[0], args[1])
	return nil
}
