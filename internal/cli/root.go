package cli

import (
	"github.com/andy/duesink/internal/app"
	"github.com/spf13/cobra"
)

var appInstance *app.App

var rootCmd = &cobra.Command{
	Use:   "duesink",
	Short: "Invoices, installments and collections from the terminal",
	Long: `Duesink issues invoices split into installments, tracks what is paid
and overdue, and drives collection reminders and payment reconciliation.

By default, running duesink without arguments launches the interactive TUI.
Use subcommands for CLI operations.`,
	Run: func(cmd *cobra.Command, args []string) {
		// Default behavior: launch TUI
		launchTUI(cmd, args)
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// SetApp sets the app instance for commands to use
func SetApp(a *app.App) {
	appInstance = a
}

func init() {
	// Add all subcommands
	rootCmd.AddCommand(clientsCmd)
	rootCmd.AddCommand(invoicesCmd)
	rootCmd.AddCommand(quoteCmd)
	rootCmd.AddCommand(collectionsCmd)
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(reportsCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(tuiCmd)
}
