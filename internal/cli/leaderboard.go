package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rural-health/carepoints/internal/domain"
)

func init() {
	leaderboardCmd.Flags().StringVarP(&boardPeriod, "period", "p", string(domain.PeriodWeekly), "weekly, monthly or lifetime")
	leaderboardCmd.Flags().IntVarP(&boardLimit, "limit", "n", 10, "Number of rows")
	rootCmd.AddCommand(leaderboardCmd)
}

var (
	boardPeriod string
	boardLimit  int
)

var leaderboardCmd = &cobra.Command{
	Use:     "leaderboard",
	Aliases: []string{"top"},
	Short:   "Rank users by points for a period",
	RunE:    runLeaderboard,
}

func runLeaderboard(cmd *cobra.Command, args []string) error {
	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	board, err := d.Engine.Leaderboard(context.Background(), domain.Period(boardPeriod), boardLimit)
	if err != nil {
		return err
	}

	if len(board) == 0 {
		fmt.Printf("Nobody has %s points yet.\n", boardPeriod)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tUSER\tPOINTS\tLEVEL")
	for _, e := range board {
		fmt.Fprintf(w, "%d\t%s\t%d\t%d\n", e.Rank, e.UserID, e.Points, e.Level)
	}
	return w.Flush()
}
