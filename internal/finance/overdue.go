package finance

import (
	"math"
	"time"

	"github.com/andy/duesink/internal/money"
	"github.com/shopspring/decimal"
)

const day = 24 * time.Hour

var thirty = decimal.NewFromInt(30)

// LateInterestResult is daily interest accrued on an overdue amount.
type LateInterestResult struct {
	DaysLate int
	Interest decimal.Decimal
	Total    decimal.Decimal
}

// LatePenaltyResult is the one-off fine for paying late.
type LatePenaltyResult struct {
	DaysLate int
	Penalty  decimal.Decimal
	Total    decimal.Decimal
}

// EarlyDiscountResult is the discount earned by paying ahead of due date.
type EarlyDiscountResult struct {
	DaysEarly int
	Discount  decimal.Decimal
	Final     decimal.Decimal
}

// DaysLate counts whole days elapsed from due to asOf, or 0 when asOf is
// not after due.
func DaysLate(due, asOf time.Time) int {
	return wholeDays(due, asOf)
}

// DaysEarly counts whole days from paidAt up to due, or 0 when paidAt is
// not before due.
func DaysEarly(due, paidAt time.Time) int {
	return wholeDays(paidAt, due)
}

func wholeDays(from, to time.Time) int {
	if !to.After(from) {
		return 0
	}
	return int(math.Floor(float64(to.Sub(from)) / float64(day)))
}

// LateInterest charges dailyRate percent per whole day late.
func LateInterest(principal decimal.Decimal, due, asOf time.Time, dailyRate decimal.Decimal) LateInterestResult {
	days := DaysLate(due, asOf)
	if days <= 0 {
		return LateInterestResult{Interest: decimal.Zero, Total: principal}
	}
	interest := money.Round(money.Percent(principal, dailyRate).Mul(decimal.NewFromInt(int64(days))))
	return LateInterestResult{
		DaysLate: days,
		Interest: interest,
		Total:    principal.Add(interest),
	}
}

// LatePenalty charges penaltyRate percent once when at least one day late.
func LatePenalty(principal decimal.Decimal, due, asOf time.Time, penaltyRate decimal.Decimal) LatePenaltyResult {
	days := DaysLate(due, asOf)
	if days <= 0 {
		return LatePenaltyResult{Penalty: decimal.Zero, Total: principal}
	}
	penalty := money.Round(money.Percent(principal, penaltyRate))
	return LatePenaltyResult{
		DaysLate: days,
		Penalty:  penalty,
		Total:    principal.Add(penalty),
	}
}

// EarlyDiscount grants monthlyRate percent per 30 days paid ahead, prorated
// by day. The final amount never goes below zero.
func EarlyDiscount(total decimal.Decimal, due, paidAt time.Time, monthlyRate decimal.Decimal) EarlyDiscountResult {
	days := DaysEarly(due, paidAt)
	if days <= 0 {
		return EarlyDiscountResult{Discount: decimal.Zero, Final: total}
	}
	months := decimal.NewFromInt(int64(days)).Div(thirty)
	discount := money.Round(money.Percent(total, monthlyRate).Mul(months))
	return EarlyDiscountResult{
		DaysEarly: days,
		Discount:  discount,
		Final:     money.Max(decimal.Zero, total.Sub(discount)),
	}
}

// IsOverdue reports whether asOf is past due.
func IsOverdue(due, asOf time.Time) bool {
	return asOf.After(due)
}

// DaysUntilDue counts days from asOf to due, rounding partial days up.
// It is negative once the due date has passed.
func DaysUntilDue(due, asOf time.Time) int {
	return int(math.Ceil(float64(due.Sub(asOf)) / float64(day)))
}

// EffectiveRate compounds a nominal percentage over periods and returns the
// effective percentage.
func EffectiveRate(nominal decimal.Decimal, periods int) decimal.Decimal {
	if periods < 1 {
		return decimal.Zero
	}
	f := pow(one.Add(nominal.Div(hundred)), periods)
	return f.Sub(one).Mul(hundred).Round(4)
}

// InvoiceGrandTotal is base less discount plus interest, penalty and any
// other charges.
func InvoiceGrandTotal(base, discount, interest, penalty, other decimal.Decimal) decimal.Decimal {
	return base.Sub(discount).Add(interest).Add(penalty).Add(other)
}
