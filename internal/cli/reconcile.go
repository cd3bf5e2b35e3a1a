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

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Match received payments to installments",
}

var reconcileCreateCmd = &cobra.Command{
	Use:   "create [installment_id] [amount]",
	Short: "Record money received for an installment, pending confirmation",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "installment")
		if err != nil {
			return err
		}
		amount, err := parseAmountArg(args[1])
		if err != nil {
			return err
		}
		receivedAt, err := dateFlag(cmd, "date", time.Now())
		if err != nil {
			return err
		}

		rec, err := appInstance.ReconciliationService.Create(context.Background(), service.CreateReconciliationInput{
			InstallmentID: id,
			Amount:        amount,
			ReceivedAt:    receivedAt,
			Method:        mustString(cmd, "method"),
			Reference:     mustString(cmd, "reference"),
			Description:   mustString(cmd, "description"),
		})
		if err != nil {
			return fmt.Errorf("failed to create reconciliation: %w", err)
		}

		fmt.Printf("✓ Reconciliation #%d recorded: %s via %s\n", rec.ID, formatAmount(rec.Amount), rec.Method)
		return nil
	},
}

var reconcileConfirmCmd = &cobra.Command{
	Use:   "confirm [id]",
	Short: "Confirm a reconciliation and apply the payment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "reconciliation")
		if err != nil {
			return err
		}

		result, err := appInstance.ReconciliationService.Confirm(context.Background(), id, mustString(cmd, "notes"))
		if err != nil {
			return fmt.Errorf("failed to confirm reconciliation: %w", err)
		}

		h := result.History
		fmt.Printf("✓ Reconciliation #%d confirmed\n", id)
		fmt.Printf("  Paid:     %s\n", formatAmount(h.AmountPaid))
		if !h.InterestApplied.IsZero() {
			fmt.Printf("  Interest: %s\n", formatAmount(h.InterestApplied))
		}
		if !h.PenaltyApplied.IsZero() {
			fmt.Printf("  Penalty:  %s\n", formatAmount(h.PenaltyApplied))
		}
		if !h.DiscountApplied.IsZero() {
			fmt.Printf("  Discount: %s\n", formatAmount(h.DiscountApplied))
		}
		fmt.Printf("  Due:      %s\n", formatAmount(result.GrandTotal))
		if result.Settled {
			fmt.Println("  Installment settled")
		}
		fmt.Printf("  Invoice %s is now %s\n", result.Invoice.Number, result.Invoice.Status)
		return nil
	},
}

var reconcileRejectCmd = &cobra.Command{
	Use:   "reject [id]",
	Short: "Reject a reconciliation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "reconciliation")
		if err != nil {
			return err
		}

		if _, err := appInstance.ReconciliationService.Reject(context.Background(), id); err != nil {
			return fmt.Errorf("failed to reject reconciliation: %w", err)
		}

		fmt.Printf("✓ Reconciliation #%d rejected\n", id)
		return nil
	},
}

var reconcileShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show a reconciliation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "reconciliation")
		if err != nil {
			return err
		}

		rec, err := appInstance.ReconciliationService.Get(context.Background(), id)
		if err != nil {
			return fmt.Errorf("failed to get reconciliation: %w", err)
		}
		printReconciliations([]*domain.Reconciliation{rec})
		return nil
	},
}

var reconcilePendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List reconciliations awaiting confirmation",
	RunE: func(cmd *cobra.Command, args []string) error {
		recs, err := appInstance.ReconciliationService.ListPending(context.Background())
		if err != nil {
			return fmt.Errorf("failed to list reconciliations: %w", err)
		}
		printReconciliations(recs)
		return nil
	},
}

var reconcileHistoryCmd = &cobra.Command{
	Use:   "history [installment_id]",
	Short: "Show confirmed payments for an installment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "installment")
		if err != nil {
			return err
		}

		entries, err := appInstance.ReconciliationService.ListPaymentHistory(context.Background(), id)
		if err != nil {
			return fmt.Errorf("failed to get payment history: %w", err)
		}
		if len(entries) == 0 {
			fmt.Println("No payments recorded")
			return nil
		}

		fmt.Printf("%-11s %-10s %14s %12s %12s %12s\n", "Paid", "Method", "Amount", "Interest", "Penalty", "Discount")
		fmt.Println(strings.Repeat("-", 76))
		for _, e := range entries {
			fmt.Printf("%-11s %-10s %14s %12s %12s %12s\n",
				e.PaidAt.Format(dateLayout),
				truncate(e.Method, 10),
				formatAmount(e.AmountPaid),
				formatAmount(e.InterestApplied),
				formatAmount(e.PenaltyApplied),
				formatAmount(e.DiscountApplied),
			)
		}
		return nil
	},
}

func printReconciliations(recs []*domain.Reconciliation) {
	if len(recs) == 0 {
		fmt.Println("No reconciliations found")
		return
	}

	fmt.Printf("%-5s %-11s %14s %-11s %-10s %-16s %-10s\n", "ID", "Installment", "Amount", "Received", "Method", "Reference", "Status")
	fmt.Println(strings.Repeat("-", 84))
	for _, r := range recs {
		fmt.Printf("%-5d %-11d %14s %-11s %-10s %-16s %-10s\n",
			r.ID,
			r.InstallmentID,
			formatAmount(r.Amount),
			r.ReceivedAt.Format(dateLayout),
			truncate(r.Method, 10),
			truncate(r.Reference, 16),
			r.Status,
		)
	}
}

func init() {
	reconcileCmd.AddCommand(reconcileCreateCmd)
	reconcileCmd.AddCommand(reconcileConfirmCmd)
	reconcileCmd.AddCommand(reconcileRejectCmd)
	reconcileCmd.AddCommand(reconcileShowCmd)
	reconcileCmd.AddCommand(reconcilePendingCmd)
	reconcileCmd.AddCommand(reconcileHistoryCmd)

	reconcileCreateCmd.Flags().String("method", "", "Payment method (required)")
	reconcileCreateCmd.MarkFlagRequired("method")
	reconcileCreateCmd.Flags().String("reference", "", "Bank or PIX reference")
	reconcileCreateCmd.Flags().String("description", "", "Free text")
	reconcileCreateCmd.Flags().String("date", "", "Receipt date (defaults to today)")

	reconcileConfirmCmd.Flags().String("notes", "", "Notes stored with the payment history")
}
