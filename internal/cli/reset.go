package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset data in the database",
	Long: `Reset data in the database.

Examples:
  duesink reset collections   # Delete collections and their delivery log
  duesink reset invoices      # Delete invoices and everything hanging off them
  duesink reset all           # Wipe everything, clients included`,
}

// Child tables first, so foreign keys hold at every step
var (
	collectionTables = []string{"delivery_logs", "collections"}
	invoiceTables    = []string{"delivery_logs", "collections", "payment_history", "reconciliations", "installments", "invoice_line_items", "invoices"}
	allTables        = append(append([]string{}, invoiceTables...), "clients")
)

func newResetCmd(use, short, prompt string, tables []string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirmPrompt(prompt) {
				fmt.Println("Cancelled.")
				return nil
			}

			tx, err := appInstance.DB.Begin()
			if err != nil {
				return fmt.Errorf("failed to begin transaction: %w", err)
			}
			defer tx.Rollback()

			for _, table := range tables {
				if _, err := tx.Exec(fmt.Sprintf("DELETE FROM %s", table)); err != nil {
					return fmt.Errorf("failed to clear %s: %w", table, err)
				}
			}
			if err := tx.Commit(); err != nil {
				return fmt.Errorf("failed to commit: %w", err)
			}

			fmt.Printf("Cleared: %s\n", strings.Join(tables, ", "))
			return nil
		},
	}
}

func confirmPrompt(message string) bool {
	fmt.Printf("%s [y/N] ", message)
	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	input = strings.TrimSpace(strings.ToLower(input))
	return input == "y" || input == "yes"
}

func init() {
	resetCmd.AddCommand(newResetCmd("collections",
		"Delete all collections and their delivery log",
		"This will delete ALL collections and delivery logs. Continue?",
		collectionTables))
	resetCmd.AddCommand(newResetCmd("invoices",
		"Delete all invoices, installments, collections and reconciliations",
		"This will delete ALL invoices and everything attached to them. Continue?",
		invoiceTables))
	resetCmd.AddCommand(newResetCmd("all",
		"Delete ALL data, clients included",
		"This will delete ALL data (clients, invoices, everything). Continue?",
		allTables))
}
