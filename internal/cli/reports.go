package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/andy/duesink/internal/domain"
	"github.com/spf13/cobra"
)

var reportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "Receivables, client balances and revenue",
}

var reportsReceivablesCmd = &cobra.Command{
	Use:   "receivables",
	Short: "What is owed across open invoices, with aging",
	RunE: func(cmd *cobra.Command, args []string) error {
		summary, err := appInstance.ReportService.GetReceivables(context.Background())
		if err != nil {
			return fmt.Errorf("failed to build report: %w", err)
		}

		fmt.Printf("Receivables as of %s\n", summary.AsOf.Format(dateLayout))
		fmt.Println(strings.Repeat("=", 40))
		fmt.Printf("Open invoices: %d\n", summary.Invoices)
		for _, s := range []domain.InvoiceStatus{
			domain.InvoiceStatusPending,
			domain.InvoiceStatusPartial,
			domain.InvoiceStatusOverdue,
			domain.InvoiceStatusPaid,
		} {
			fmt.Printf("  %-9s %d\n", s, summary.ByStatus[s])
		}
		fmt.Printf("Outstanding:   %s\n", formatAmount(summary.Outstanding))
		fmt.Printf("Overdue:       %s\n", formatAmount(summary.Overdue))

		fmt.Println()
		fmt.Printf("%-10s %6s %16s\n", "Days late", "Count", "Amount")
		fmt.Println(strings.Repeat("-", 34))
		for _, b := range summary.Aging {
			fmt.Printf("%-10s %6d %16s\n", b.Label, b.Count, formatAmount(b.Amount))
		}
		return nil
	},
}

var reportsClientCmd = &cobra.Command{
	Use:   "client [client_id_or_name]",
	Short: "Balances for one client",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		id, err := resolveClientID(ctx, args[0])
		if err != nil {
			return fmt.Errorf("failed to resolve client: %w", err)
		}

		summary, err := appInstance.ReportService.GetClientSummary(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to build report: %w", err)
		}

		fmt.Printf("%s\n", clientName(ctx, id))
		fmt.Println(strings.Repeat("=", 40))
		fmt.Printf("Invoiced:    %s\n", formatAmount(summary.Invoiced))
		fmt.Printf("Paid:        %s\n", formatAmount(summary.Paid))
		fmt.Printf("Outstanding: %s\n", formatAmount(summary.Outstanding))
		fmt.Printf("Overdue:     %s\n", formatAmount(summary.Overdue))
		fmt.Printf("Invoices:    %d\n", len(summary.Invoices))
		return nil
	},
}

var reportsRevenueCmd = &cobra.Command{
	Use:   "revenue",
	Short: "Payments received per month",
	RunE: func(cmd *cobra.Command, args []string) error {
		year, _ := cmd.Flags().GetInt("year")
		if year == 0 {
			year = time.Now().Year()
		}

		revenue, err := appInstance.ReportService.GetRevenueByMonth(context.Background(), year)
		if err != nil {
			return fmt.Errorf("failed to build report: %w", err)
		}

		fmt.Printf("Revenue %d\n", year)
		fmt.Println(strings.Repeat("-", 28))
		for m := time.January; m <= time.December; m++ {
			fmt.Printf("%-10s %16s\n", m, formatAmount(revenue[m]))
		}
		return nil
	},
}

func init() {
	reportsCmd.AddCommand(reportsReceivablesCmd)
	reportsCmd.AddCommand(reportsClientCmd)
	reportsCmd.AddCommand(reportsRevenueCmd)

	reportsRevenueCmd.Flags().Int("year", 0, "Year (defaults to the current year)")
}
