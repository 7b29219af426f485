package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rural-health/carepoints/internal/app/engagement"
	"github.com/rural-health/carepoints/internal/domain"
)

func init() {
	badgesListCmd.Flags().BoolVarP(&badgesAll, "all", "a", false, "Include inactive badges")

	f := badgesCreateCmd.Flags()
	f.StringVar(&badgeDef.Code, "code", "", "Slug code (derived from the name when empty)")
	f.StringVar(&badgeDef.Name, "name", "", "Display name")
	f.StringVar(&badgeDef.Description, "description", "", "Description")
	f.StringVar((*string)(&badgeDef.Category), "category", string(domain.CategoryMilestone), "Category")
	f.StringVar((*string)(&badgeDef.Rarity), "rarity", string(domain.RarityCommon), "Rarity")
	f.Int64Var(&badgeDef.PointsReward, "points", 0, "Points granted with the badge")
	f.StringVar(&badgeDef.Icon, "icon", "", "Icon name")
	f.StringVar(&badgeDef.Criteria.Action, "action", "", "Criteria action, e.g. log_symptoms or maintain_streak")
	f.Int64Var(&badgeDef.Criteria.Count, "count", 0, "Criteria threshold")
	f.StringVar(&badgeDef.Criteria.Period, "period", "", "Criteria period")
	f.IntVar(&badgeDef.Criteria.Days, "days", 0, "Criteria day window or streak length")
	f.StringVar(&badgeDef.Criteria.Activity, "activity", "", "Activity type for specific_activity")
	f.BoolVar(&badgeDef.Inactive, "inactive", false, "Create the badge switched off")
	_ = badgesCreateCmd.MarkFlagRequired("name")
	_ = badgesCreateCmd.MarkFlagRequired("action")

	badgesCmd.AddCommand(badgesListCmd, badgesCreateCmd, badgesUserCmd, badgesSeedCmd)
	rootCmd.AddCommand(badgesCmd)
}

var (
	badgesAll bool
	badgeDef  engagement.BadgeDefinition
)

var badgesCmd = &cobra.Command{
	Use:   "badges",
	Short: "Manage the badge catalog",
}

var badgesListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List badges in the catalog",
	RunE:    runBadgesList,
}

var badgesCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Add a badge to the catalog",
	RunE:  runBadgesCreate,
}

var badgesUserCmd = &cobra.Command{
	Use:   "user USER",
	Short: "List the badges a user holds",
	Args:  cobra.ExactArgs(1),
	RunE:  runBadgesUser,
}

var badgesSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Install the default badge catalog",
	RunE:  runBadgesSeed,
}

func runBadgesList(cmd *cobra.Command, args []string) error {
	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	badges, err := d.Engine.ListBadges(context.Background(), !badgesAll)
	if err != nil {
		return err
	}

	if len(badges) == 0 {
		fmt.Println("No badges defined. Run 'carepoints badges seed' to install the defaults.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CODE\tNAME\tCATEGORY\tRARITY\tPOINTS\tACTIVE")
	for _, b := range badges {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%t\n",
			b.Code,
			b.Name,
			b.Category,
			b.Rarity,
			b.PointsReward,
			b.Active,
		)
	}
	return w.Flush()
}

func runBadgesCreate(cmd *cobra.Command, args []string) error {
	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	b, err := d.Engine.CreateBadge(context.Background(), badgeDef)
	if err != nil {
		return err
	}
	fmt.Printf("Created badge %s (%s)\n", b.Code, b.ID)
	return nil
}

func runBadgesUser(cmd *cobra.Command, args []string) error {
	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	held, err := d.Engine.ListUserBadges(context.Background(), args[0])
	if err != nil {
		return err
	}
	if len(held) == 0 {
		fmt.Printf("%s has no badges yet.\n", args[0])
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "BADGE\tRARITY\tSOURCE\tEARNED")
	for _, ub := range held {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", ub.Badge.Name, ub.Badge.Rarity, ub.Source, formatTime(ub.EarnedAt))
	}
	return w.Flush()
}

func runBadgesSeed(cmd *cobra.Command, args []string) error {
	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	n, err := d.Engine.SeedBadges(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("Installed %d badge(s).\n", n)
	return nil
}
