package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/andy/duesink/internal/domain"
	"github.com/andy/duesink/internal/service"
	"github.com/spf13/cobra"
)

var invoicesCmd = &cobra.Command{
	Use:   "invoices",
	Short: "Manage invoices",
	Long:  `Create, list, cancel invoices and record installment payments.`,
}

var invoicesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List invoices",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		// Parse filters
		var clientID *int64
		if cmd.Flags().Changed("client") {
			id, err := resolveClientID(ctx, mustString(cmd, "client"))
			if err != nil {
				return fmt.Errorf("failed to resolve client: %w", err)
			}
			clientID = &id
		}

		var status *domain.InvoiceStatus
		if cmd.Flags().Changed("status") {
			s := domain.InvoiceStatus(mustString(cmd, "status"))
			status = &s
		}

		invoices, err := appInstance.InvoiceService.ListInvoices(ctx, clientID, status)
		if err != nil {
			return fmt.Errorf("failed to list invoices: %w", err)
		}

		if len(invoices) == 0 {
			fmt.Println("No invoices found")
			return nil
		}

		fmt.Printf("%-5s %-15s %-20s %-11s %-16s %-16s %-10s\n", "ID", "Number", "Client", "Due", "Total", "Outstanding", "Status")
		fmt.Println(strings.Repeat("-", 100))

		for _, invoice := range invoices {
			fmt.Printf("%-5d %-15s %-20s %-11s %-16s %-16s %-10s\n",
				invoice.ID,
				invoice.Number,
				truncate(clientName(ctx, invoice.ClientID), 20),
				invoice.DueDate.Format(dateLayout),
				formatAmount(invoice.PayableTotal()),
				formatAmount(invoice.Outstanding()),
				invoice.Status,
			)
		}

		fmt.Printf("\nTotal: %d invoice(s)\n", len(invoices))
		return nil
	},
}

var invoicesCreateCmd = &cobra.Command{
	Use:   "create [client_id_or_name]",
	Short: "Issue a new invoice",
	Long: `Issue a new invoice and generate its installment schedule.

Line items are given as "description|quantity|unit amount", optionally with
a fourth "|total" field. Amounts accept 1.234,56 or 1,234.56.

Example:
  duesink invoices create ACME --due 2026-03-10 --count 3 --rate 1.5 \
    --item "Consulting|10|150,00" --item "Travel|1|320"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		clientID, err := resolveClientID(ctx, args[0])
		if err != nil {
			return fmt.Errorf("failed to resolve client: %w", err)
		}

		defaultDue := time.Now().AddDate(0, 0, appInstance.Config.Invoice.DefaultDueDays)
		due, err := dateFlag(cmd, "due", defaultDue)
		if err != nil {
			return err
		}

		rawItems, _ := cmd.Flags().GetStringArray("item")
		items, err := parseItems(rawItems)
		if err != nil {
			return err
		}

		count, _ := cmd.Flags().GetInt("count")
		input := service.CreateInvoiceInput{
			ClientID:          clientID,
			Description:       mustString(cmd, "description"),
			DueDate:           due,
			Total:             mustString(cmd, "total"),
			Discount:          mustString(cmd, "discount"),
			MonthlyRate:       mustString(cmd, "rate"),
			InstallmentPolicy: domain.InstallmentPolicy(mustString(cmd, "policy")),
			InterestPolicy:    domain.InterestPolicy(mustString(cmd, "interest")),
			InstallmentCount:  count,
			Notes:             mustString(cmd, "notes"),
			Items:             items,
		}
		if input.InstallmentPolicy == "" {
			input.InstallmentPolicy = domain.InstallmentPolicySingle
			if count > 1 {
				input.InstallmentPolicy = domain.InstallmentPolicyInstallment
			}
		}

		invoice, err := appInstance.InvoiceService.CreateInvoice(ctx, input)
		if err != nil {
			return fmt.Errorf("failed to create invoice: %w", err)
		}

		fmt.Printf("✓ Invoice created: %s\n", invoice.Number)
		fmt.Printf("  Client: %s\n", clientName(ctx, clientID))
		fmt.Printf("  Total: %s\n", formatAmount(invoice.PayableTotal()))
		printInstallments(invoice.Installments, time.Now())
		return nil
	},
}

var invoicesShowCmd = &cobra.Command{
	Use:   "show [id_or_number]",
	Short: "Show invoice details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		var details *service.InvoiceDetails
		var err error
		if id, perr := parseID(args[0], "invoice"); perr == nil {
			details, err = appInstance.InvoiceService.GetInvoiceDetails(ctx, id)
		} else {
			details, err = appInstance.InvoiceService.GetInvoiceByNumber(ctx, args[0])
		}
		if err != nil {
			return fmt.Errorf("failed to get invoice: %w", err)
		}

		invoice := details.Invoice
		fmt.Println(strings.Repeat("=", 80))
		fmt.Printf("Invoice: %s\n", invoice.Number)
		fmt.Println(strings.Repeat("=", 80))
		fmt.Printf("Client: %s\n", clientName(ctx, invoice.ClientID))
		fmt.Printf("Issued: %s   Due: %s\n", invoice.IssueDate.Format(dateLayout), invoice.DueDate.Format(dateLayout))
		fmt.Printf("Policy: %s / %s interest at %s%% a month\n", invoice.InstallmentPolicy, invoice.InterestPolicy, invoice.MonthlyRate.String())
		fmt.Printf("Status: %s\n", details.Status)
		if invoice.Description != "" {
			fmt.Printf("Description: %s\n", invoice.Description)
		}
		fmt.Println()

		if len(details.Items) > 0 {
			fmt.Println("Line Items:")
			fmt.Println(strings.Repeat("-", 80))
			fmt.Printf("%-40s %10s %13s %14s\n", "Description", "Qty", "Unit", "Total")
			fmt.Println(strings.Repeat("-", 80))
			for _, item := range details.Items {
				fmt.Printf("%-40s %10s %13s %14s\n",
					truncate(item.Description, 40),
					item.Quantity.String(),
					formatAmount(item.UnitAmount),
					formatAmount(item.Total),
				)
			}
			fmt.Println(strings.Repeat("-", 80))
		}

		printInstallments(details.Installments, details.AsOf)

		fmt.Println()
		fmt.Printf("Total:       %s\n", formatAmount(invoice.Total))
		if !invoice.Discount.IsZero() {
			fmt.Printf("Discount:    %s\n", formatAmount(invoice.Discount))
		}
		fmt.Printf("Payable:     %s\n", formatAmount(invoice.PayableTotal()))
		fmt.Printf("Paid:        %s\n", formatAmount(details.TotalPaid))
		fmt.Printf("Outstanding: %s\n", formatAmount(details.Outstanding))
		fmt.Println(strings.Repeat("=", 80))
		return nil
	},
}

var invoicesCancelCmd = &cobra.Command{
	Use:   "cancel [id]",
	Short: "Cancel an invoice, its installments and open collections",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		id, err := parseID(args[0], "invoice")
		if err != nil {
			return err
		}

		if err := appInstance.InvoiceService.CancelInvoice(ctx, id); err != nil {
			return fmt.Errorf("failed to cancel invoice: %w", err)
		}

		fmt.Printf("✓ Invoice #%d cancelled\n", id)
		return nil
	},
}

var invoicesPayCmd = &cobra.Command{
	Use:   "pay [installment_id] [amount]",
	Short: "Record a payment against an installment",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		id, err := parseID(args[0], "installment")
		if err != nil {
			return err
		}
		amount, err := parseAmountArg(args[1])
		if err != nil {
			return err
		}
		paidAt, err := dateFlag(cmd, "date", time.Now())
		if err != nil {
			return err
		}

		invoice, err := appInstance.InvoiceService.RecordInstallmentPayment(ctx, service.RecordPaymentInput{
			InstallmentID: id,
			Amount:        amount,
			PaidAt:        paidAt,
			Method:        mustString(cmd, "method"),
		})
		if err != nil {
			return fmt.Errorf("failed to record payment: %w", err)
		}

		fmt.Printf("✓ Payment of %s recorded on %s\n", formatAmount(amount), paidAt.Format(dateLayout))
		fmt.Printf("  Invoice %s is now %s (outstanding %s)\n", invoice.Number, invoice.Status, formatAmount(invoice.Outstanding()))
		return nil
	},
}

func printInstallments(installments []*domain.Installment, asOf time.Time) {
	if len(installments) == 0 {
		return
	}
	fmt.Println()
	fmt.Println("Installments:")
	fmt.Println(strings.Repeat("-", 80))
	fmt.Printf("%-6s %-4s %-11s %14s %12s %14s %-10s\n", "ID", "#", "Due", "Principal", "Interest", "Paid", "Status")
	fmt.Println(strings.Repeat("-", 80))
	for _, inst := range installments {
		fmt.Printf("%-6d %-4d %-11s %14s %12s %14s %-10s\n",
			inst.ID,
			inst.Number,
			inst.DueDate.Format(dateLayout),
			formatAmount(inst.Principal),
			formatAmount(inst.Interest),
			formatAmount(inst.AmountPaid),
			inst.StatusAt(asOf),
		)
	}
}

// parseItems reads "description|quantity|unit[|total]" line items
func parseItems(raw []string) ([]service.LineItemInput, error) {
	items := make([]service.LineItemInput, 0, len(raw))
	for i, r := range raw {
		parts := strings.Split(r, "|")
		if len(parts) < 3 || len(parts) > 4 {
			return nil, fmt.Errorf("item %d: expected description|quantity|unit[|total], got %q", i+1, r)
		}
		item := service.LineItemInput{
			Description: strings.TrimSpace(parts[0]),
			Quantity:    strings.TrimSpace(parts[1]),
			UnitAmount:  strings.TrimSpace(parts[2]),
		}
		if len(parts) == 4 {
			item.Total = strings.TrimSpace(parts[3])
		}
		items = append(items, item)
	}
	return items, nil
}

func mustString(cmd *cobra.Command, name string) string {
	s, _ := cmd.Flags().GetString(name)
	return s
}

func init() {
	invoicesCmd.AddCommand(invoicesListCmd)
	invoicesCmd.AddCommand(invoicesCreateCmd)
	invoicesCmd.AddCommand(invoicesShowCmd)
	invoicesCmd.AddCommand(invoicesCancelCmd)
	invoicesCmd.AddCommand(invoicesPayCmd)

	// List flags
	invoicesListCmd.Flags().String("client", "", "Filter by client ID or name")
	invoicesListCmd.Flags().String("status", "", "Filter by status (pending, partial, paid, overdue, cancelled)")

	// Create flags
	invoicesCreateCmd.Flags().StringArray("item", nil, "Line item as description|quantity|unit[|total] (repeatable)")
	invoicesCreateCmd.MarkFlagRequired("item")
	invoicesCreateCmd.Flags().String("due", "", "First due date (defaults to the configured due days from today)")
	invoicesCreateCmd.Flags().String("total", "", "Invoice total (defaults to the sum of the items)")
	invoicesCreateCmd.Flags().String("discount", "", "Up-front discount")
	invoicesCreateCmd.Flags().String("rate", "", "Monthly interest rate in percent")
	invoicesCreateCmd.Flags().Int("count", 1, "Number of installments")
	invoicesCreateCmd.Flags().String("policy", "", "Installment policy (single, installment, recurring)")
	invoicesCreateCmd.Flags().String("interest", "", "Interest policy (simple, compound, price)")
	invoicesCreateCmd.Flags().String("description", "", "Invoice description")
	invoicesCreateCmd.Flags().String("notes", "", "Internal notes")

	// Pay flags
	invoicesPayCmd.Flags().String("date", "", "Payment date (defaults to today)")
	invoicesPayCmd.Flags().String("method", "", "Payment method (pix, boleto, transfer, ...)")
}
