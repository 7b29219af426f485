package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func init() {
	feedCmd.Flags().IntVarP(&feedLimit, "limit", "n", 20, "Number of entries")
	ledgerCmd.Flags().IntVarP(&ledgerLimit, "limit", "n", 50, "Number of entries")
	rootCmd.AddCommand(feedCmd, ledgerCmd)
}

var (
	feedLimit   int
	ledgerLimit int
)

var feedCmd = &cobra.Command{
	Use:   "feed USER",
	Short: "Show a user's recent achievements",
	Args:  cobra.ExactArgs(1),
	RunE:  runFeed,
}

var ledgerCmd = &cobra.Command{
	Use:   "ledger USER",
	Short: "Show a user's point transactions",
	Args:  cobra.ExactArgs(1),
	RunE:  runLedger,
}

func runFeed(cmd *cobra.Command, args []string) error {
	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	feed, err := d.Engine.Feed(context.Background(), args[0], feedLimit)
	if err != nil {
		return err
	}
	if len(feed) == 0 {
		fmt.Println("Nothing yet. Run 'carepoints log <user>' to get started.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "WHEN\tKIND\tTITLE\tPOINTS")
	for _, e := range feed {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", formatTime(e.CreatedAt), e.Kind, e.Title, e.Points)
	}
	return w.Flush()
}

func runLedger(cmd *cobra.Command, args []string) error {
	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	entries, err := d.Engine.Ledger(context.Background(), args[0], ledgerLimit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("No transactions.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "WHEN\tTYPE\tAMOUNT\tBALANCE\tREASON")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n", formatTime(e.CreatedAt), e.Type, e.Amount, e.Balance, e.Reason)
	}
	return w.Flush()
}
