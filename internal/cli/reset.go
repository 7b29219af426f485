package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rural-health/carepoints/internal/domain"
)

func init() {
	rootCmd.AddCommand(resetCmd)
}

var resetCmd = &cobra.Command{
	Use:       "reset weekly|monthly",
	Short:     "Zero every user's weekly or monthly points now",
	Long:      `Run a period reset by hand. The server does this on its own schedule.`,
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{string(domain.PeriodWeekly), string(domain.PeriodMonthly)},
	RunE:      runReset,
}

func runReset(cmd *cobra.Command, args []string) error {
	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	n, err := d.Engine.ResetPeriod(context.Background(), domain.Period(args[0]))
	if err != nil {
		return err
	}
	fmt.Printf("Reset %s points for %d user(s).\n", args[0], n)
	return nil
}
