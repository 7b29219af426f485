package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func init() {
	pointsCmd.PersistentFlags().StringVarP(&pointsReason, "reason", "r", "", "Reason recorded in the ledger")
	pointsCmd.AddCommand(pointsAwardCmd, pointsSpendCmd)
	rootCmd.AddCommand(pointsCmd)
}

var pointsReason string

var pointsCmd = &cobra.Command{
	Use:   "points",
	Short: "Grant or redeem points by hand",
}

var pointsAwardCmd = &cobra.Command{
	Use:   "award USER AMOUNT",
	Short: "Grant points outside the activity pipeline",
	Args:  cobra.ExactArgs(2),
	RunE:  runPointsAward,
}

var pointsSpendCmd = &cobra.Command{
	Use:   "spend USER AMOUNT",
	Short: "Redeem points from a user's balance",
	Args:  cobra.ExactArgs(2),
	RunE:  runPointsSpend,
}

func parseAmount(s string) (int64, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("amount %q: not a whole number", s)
	}
	return n, nil
}

func runPointsAward(cmd *cobra.Command, args []string) error {
	amount, err := parseAmount(args[1])
	if err != nil {
		return err
	}

	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	res, err := d.Engine.AwardPoints(context.Background(), args[0], amount, pointsReason)
	if err != nil {
		return err
	}
	fmt.Printf("Awarded %d to %s. Balance %d, level %d.\n", amount, args[0], res.TotalPoints, res.Level)
	for _, b := range res.NewBadges {
		fmt.Printf("Badge earned: %s\n", b.Name)
	}
	return nil
}

func runPointsSpend(cmd *cobra.Command, args []string) error {
	amount, err := parseAmount(args[1])
	if err != nil {
		return err
	}

	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	balance, err := d.Engine.SpendPoints(context.Background(), args[0], amount, pointsReason)
	if err != nil {
		return err
	}
	fmt.Printf("Spent %d. %s has %d left.\n", amount, args[0], balance)
	return nil
}
