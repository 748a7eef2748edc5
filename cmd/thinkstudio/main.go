package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var noColor bool

var sessionID string

var rootCmd = &cobra.Command{
	Use:     "thinkstudio",
	Short:   "Local studio for exploring public-sector data strategies",
	Version: version,
	Long: `thinkstudio is a local workspace for data strategy work: browse a
curated catalog of published strategies, self-assess data maturity,
map strategic tensions, and track delivery actions.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().StringVar(&sessionID, "session", "", "session id to work in (default session if omitted)")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(catalogCmd)
	rootCmd.AddCommand(diagnoseCmd)
	rootCmd.AddCommand(lensesCmd)
	rootCmd.AddCommand(actionsCmd)
	rootCmd.AddCommand(guideCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
