// Package cli implements the carepoints command-line interface using Cobra.
// Each subcommand maps to one engine operation (log, stats, badges, etc.).
package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "carepoints",
	Short: "carepoints: points, streaks and badges for symptom tracking",
	Long: `carepoints scores patient activity for a health-tracking platform.
Symptom logs and daily check-ins earn points, build streaks, unlock badges
and advance health challenges. Run 'carepoints serve' for the HTTP API.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A .env in the working directory may set CAREPOINTS_HOME.
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load .env: %w", err)
		}
		return nil
	},
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
