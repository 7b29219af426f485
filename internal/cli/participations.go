package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func init() {
	challengeCmd.AddCommand(challengeProgressCmd)
}

var challengeProgressCmd = &cobra.Command{
	Use:   "progress USER",
	Short: "Show a user's progress in every challenge they joined",
	Args:  cobra.ExactArgs(1),
	RunE:  runChallengeProgress,
}

func runChallengeProgress(cmd *cobra.Command, args []string) error {
	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	ctx := context.Background()
	parts, err := d.Engine.ListParticipations(ctx, args[0])
	if err != nil {
		return err
	}
	if len(parts) == 0 {
		fmt.Printf("%s has not joined any challenge.\n", args[0])
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CHALLENGE\tPROGRESS\tSTATUS")
	for _, p := range parts {
		c, err := d.Engine.GetChallenge(ctx, p.ChallengeID)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%s %d/%d\t%s\n",
			c.Title,
			renderBar(ratioPct(p.ProgressValue, c.GoalValue)),
			p.ProgressValue, c.GoalValue,
			p.Status,
		)
	}
	return w.Flush()
}
