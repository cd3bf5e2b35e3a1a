package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/andy/duesink/internal/service"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var quoteCmd = &cobra.Command{
	Use:   "quote",
	Short: "Preview schedules and charges without saving anything",
}

func newScheduleQuoteCmd(use, short string, run func(service.PreviewInput) (*service.SchedulePreview, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use + " [total]",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			total, err := parseAmountArg(args[0])
			if err != nil {
				return err
			}
			discount, err := amountFlag(cmd, "discount")
			if err != nil {
				return err
			}
			rate := decimal.Zero
			if r, err := rateFlag(cmd, "rate"); err != nil {
				return err
			} else if r != nil {
				rate = *r
			}
			first, err := dateFlag(cmd, "first-due", time.Now().AddDate(0, 1, 0))
			if err != nil {
				return err
			}
			count, _ := cmd.Flags().GetInt("count")

			p, err := run(service.PreviewInput{
				Total:        total,
				Discount:     discount,
				MonthlyRate:  rate,
				Count:        count,
				FirstDueDate: first,
			})
			if err != nil {
				return err
			}

			fmt.Printf("%-4s %-11s %14s %12s %14s\n", "#", "Due", "Principal", "Interest", "Installment")
			fmt.Println(strings.Repeat("-", 60))
			for _, row := range p.Installments {
				fmt.Printf("%-4d %-11s %14s %12s %14s\n",
					row.Number,
					row.DueDate.Format(dateLayout),
					formatAmount(row.Principal),
					formatAmount(row.Interest),
					formatAmount(row.Total),
				)
			}
			fmt.Println(strings.Repeat("-", 60))
			fmt.Printf("Principal: %s  Interest: %s  Total: %s\n",
				formatAmount(p.Principal), formatAmount(p.TotalInterest), formatAmount(p.Total))
			if !p.FixedInstallment.IsZero() {
				fmt.Printf("Fixed installment: %s\n", formatAmount(p.FixedInstallment))
				if p.LastResidue.IsPositive() {
					fmt.Printf("Last installment carries %s of rounding residue\n", formatAmount(p.LastResidue))
				}
			}
			if p.EffectiveRate.IsPositive() {
				fmt.Printf("Effective rate over %d months: %s%%\n", count, p.EffectiveRate.StringFixed(2))
			}
			return nil
		},
	}
	cmd.Flags().Int("count", 1, "Number of installments")
	cmd.Flags().String("rate", "", "Monthly interest rate in percent")
	cmd.Flags().String("discount", "", "Up-front discount")
	cmd.Flags().String("first-due", "", "First due date (defaults to a month from today)")
	return cmd
}

var quoteLateInterestCmd = &cobra.Command{
	Use:   "late-interest [amount] [due_date]",
	Short: "Daily interest owed on a late amount",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, due, asOf, err := chargeArgs(cmd, args)
		if err != nil {
			return err
		}
		rate, err := rateFlag(cmd, "rate")
		if err != nil {
			return err
		}

		r := appInstance.QuoteService.PreviewLateInterest(amount, due, asOf, rate)
		fmt.Printf("Days late: %d\n", r.DaysLate)
		fmt.Printf("Interest:  %s\n", formatAmount(r.Interest))
		fmt.Printf("Total:     %s\n", formatAmount(r.Total))
		return nil
	},
}

var quotePenaltyCmd = &cobra.Command{
	Use:   "penalty [amount] [due_date]",
	Short: "One-off fine owed on a late amount",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, due, asOf, err := chargeArgs(cmd, args)
		if err != nil {
			return err
		}
		rate, err := rateFlag(cmd, "rate")
		if err != nil {
			return err
		}

		r := appInstance.QuoteService.PreviewLatePenalty(amount, due, asOf, rate)
		fmt.Printf("Days late: %d\n", r.DaysLate)
		fmt.Printf("Penalty:   %s\n", formatAmount(r.Penalty))
		fmt.Printf("Total:     %s\n", formatAmount(r.Total))
		return nil
	},
}

var quoteDiscountCmd = &cobra.Command{
	Use:   "discount [amount] [due_date]",
	Short: "Discount earned by paying before the due date",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, due, paidAt, err := chargeArgs(cmd, args)
		if err != nil {
			return err
		}
		rate, err := rateFlag(cmd, "rate")
		if err != nil {
			return err
		}

		r := appInstance.QuoteService.PreviewEarlyDiscount(amount, due, paidAt, rate)
		fmt.Printf("Days early: %d\n", r.DaysEarly)
		fmt.Printf("Discount:   %s\n", formatAmount(r.Discount))
		fmt.Printf("Final:      %s\n", formatAmount(r.Final))
		return nil
	},
}

var quoteRatesCmd = &cobra.Command{
	Use:   "rates",
	Short: "Show the configured charge rates",
	RunE: func(cmd *cobra.Command, args []string) error {
		r := appInstance.QuoteService.Rates()
		fmt.Printf("Daily interest:   %s%%\n", r.DailyInterest.String())
		fmt.Printf("Late penalty:     %s%%\n", r.Penalty.String())
		fmt.Printf("Monthly discount: %s%%\n", r.MonthlyDiscount.String())
		return nil
	},
}

// chargeArgs reads [amount] [due_date] and the --on date
func chargeArgs(cmd *cobra.Command, args []string) (decimal.Decimal, time.Time, time.Time, error) {
	amount, err := parseAmountArg(args[0])
	if err != nil {
		return decimal.Zero, time.Time{}, time.Time{}, err
	}
	due, err := parseDate(args[1])
	if err != nil {
		return decimal.Zero, time.Time{}, time.Time{}, fmt.Errorf("invalid due date: %w", err)
	}
	on, err := dateFlag(cmd, "on", time.Now())
	if err != nil {
		return decimal.Zero, time.Time{}, time.Time{}, err
	}
	return amount, due, on, nil
}

func init() {
	quoteCmd.AddCommand(newScheduleQuoteCmd("simple", "Simple interest schedule", func(in service.PreviewInput) (*service.SchedulePreview, error) {
		return appInstance.QuoteService.PreviewSimpleSchedule(in)
	}))
	quoteCmd.AddCommand(newScheduleQuoteCmd("compound", "Compound interest schedule", func(in service.PreviewInput) (*service.SchedulePreview, error) {
		return appInstance.QuoteService.PreviewCompoundSchedule(in)
	}))
	quoteCmd.AddCommand(newScheduleQuoteCmd("price", "Fixed installment (Price table) schedule", func(in service.PreviewInput) (*service.SchedulePreview, error) {
		return appInstance.QuoteService.PreviewPriceSchedule(in)
	}))
	quoteCmd.AddCommand(quoteLateInterestCmd)
	quoteCmd.AddCommand(quotePenaltyCmd)
	quoteCmd.AddCommand(quoteDiscountCmd)
	quoteCmd.AddCommand(quoteRatesCmd)

	for _, c := range []*cobra.Command{quoteLateInterestCmd, quotePenaltyCmd, quoteDiscountCmd} {
		c.Flags().String("on", "", "Payment date (defaults to today)")
		c.Flags().String("rate", "", "Rate in percent (defaults to the configured rate)")
	}
}
