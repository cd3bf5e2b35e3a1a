// Package finance holds the pure calculations behind invoices: installment
// schedules, overdue charges and status consolidation. Nothing here touches
// storage or the clock.
package finance

import (
	"fmt"
	"time"

	"github.com/andy/duesink/internal/domain"
	"github.com/andy/duesink/internal/money"
	"github.com/shopspring/decimal"
)

// factorPlaces bounds the precision of intermediate (1+r)^n factors.
const factorPlaces = 18

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// ScheduleInput describes an invoice to split into installments.
// MonthlyRate is a percentage (5 means 5% per month).
type ScheduleInput struct {
	Total        decimal.Decimal
	Discount     decimal.Decimal
	MonthlyRate  decimal.Decimal
	Count        int
	FirstDueDate time.Time
	Policy       domain.InterestPolicy
}

// ScheduledInstallment is one row of a generated schedule.
type ScheduledInstallment struct {
	Number    int
	DueDate   time.Time
	Principal decimal.Decimal
	Interest  decimal.Decimal
	Total     decimal.Decimal
}

// PriceResult summarizes a fixed-installment (Price) loan.
type PriceResult struct {
	Installment       decimal.Decimal
	TotalInterest     decimal.Decimal
	TotalWithInterest decimal.Decimal
	// Residue is what the last installment carries beyond Installment when
	// the rounded installments fall short of the principal.
	Residue decimal.Decimal
}

// Schedule splits the net total (Total - Discount) into Count installments
// due monthly from FirstDueDate. Principals sum exactly to the net total;
// the rounding residue lands on the last installment.
func Schedule(in ScheduleInput) ([]ScheduledInstallment, error) {
	if err := validateSchedule(in); err != nil {
		return nil, err
	}

	net := in.Total.Sub(in.Discount)
	switch in.Policy {
	case domain.InterestPolicySimple:
		return accrualSchedule(net, in, simpleFactor), nil
	case domain.InterestPolicyCompound:
		return accrualSchedule(net, in, compoundFactor), nil
	case domain.InterestPolicyPrice:
		return priceSchedule(net, in), nil
	}
	return nil, &domain.InvalidScheduleError{Reason: fmt.Sprintf("unknown interest policy %q", in.Policy)}
}

func validateSchedule(in ScheduleInput) error {
	switch {
	case in.Count < 1:
		return &domain.InvalidScheduleError{Reason: "installment count must be at least 1"}
	case !in.Total.IsPositive():
		return &domain.InvalidScheduleError{Reason: "total must be positive"}
	case in.Discount.IsNegative():
		return &domain.InvalidScheduleError{Reason: "discount cannot be negative"}
	case in.Discount.GreaterThanOrEqual(in.Total):
		return &domain.InvalidScheduleError{Reason: "discount must be less than total"}
	case in.MonthlyRate.IsNegative():
		return &domain.InvalidScheduleError{Reason: "rate cannot be negative"}
	case in.FirstDueDate.IsZero():
		return &domain.InvalidScheduleError{Reason: "first due date is required"}
	}
	return nil
}

// splitPrincipal divides net into count parts truncated to the cent. The last
// part absorbs the leftover cents, so it is never smaller than the others and
// never negative.
func splitPrincipal(net decimal.Decimal, count int) []decimal.Decimal {
	base := net.Div(decimal.NewFromInt(int64(count))).Truncate(2)
	parts := make([]decimal.Decimal, count)
	for i := 0; i < count-1; i++ {
		parts[i] = base
	}
	parts[count-1] = net.Sub(base.Mul(decimal.NewFromInt(int64(count - 1))))
	return parts
}

// interestFactor returns the interest multiplier for the n-th installment
// (1-based) at monthly rate r, where r is a fraction.
type interestFactor func(r decimal.Decimal, n int) decimal.Decimal

// simpleFactor charges r for every month before installment n, so the
// first installment carries no interest.
func simpleFactor(r decimal.Decimal, n int) decimal.Decimal {
	return r.Mul(decimal.NewFromInt(int64(n - 1)))
}

func compoundFactor(r decimal.Decimal, n int) decimal.Decimal {
	return pow(one.Add(r), n).Sub(one)
}

func accrualSchedule(net decimal.Decimal, in ScheduleInput, factor interestFactor) []ScheduledInstallment {
	r := in.MonthlyRate.Div(hundred)
	principals := splitPrincipal(net, in.Count)

	rows := make([]ScheduledInstallment, in.Count)
	for i := range rows {
		n := i + 1
		interest := money.Round(principals[i].Mul(factor(r, n)))
		rows[i] = ScheduledInstallment{
			Number:    n,
			DueDate:   AddMonths(in.FirstDueDate, i),
			Principal: principals[i],
			Interest:  interest,
			Total:     principals[i].Add(interest),
		}
	}
	return rows
}

// priceSchedule amortizes net with equal installments. Interest is charged
// on the declining balance; the last row takes whatever balance remains so
// principals sum to net, and its interest is set so every row totals the
// same fixed installment. When the balance left for the last row exceeds the
// installment (a zero rate with a cent residue, as in 1000/3), its interest
// clamps to zero and that row totals one or more cents above the others.
func priceSchedule(net decimal.Decimal, in ScheduleInput) []ScheduledInstallment {
	r := in.MonthlyRate.Div(hundred)
	installment := priceInstallment(net, in.Count, r)

	rows := make([]ScheduledInstallment, in.Count)
	balance := net
	for i := range rows {
		n := i + 1
		var principal, interest decimal.Decimal
		if n == in.Count {
			principal = balance
			interest = installment.Sub(balance)
			if interest.IsNegative() {
				interest = decimal.Zero
			}
		} else {
			interest = money.Round(balance.Mul(r))
			principal = installment.Sub(interest)
			if principal.GreaterThan(balance) {
				principal = balance
			}
		}
		balance = balance.Sub(principal)
		rows[i] = ScheduledInstallment{
			Number:    n,
			DueDate:   AddMonths(in.FirstDueDate, i),
			Principal: principal,
			Interest:  interest,
			Total:     principal.Add(interest),
		}
	}
	return rows
}

// priceInstallment is P * r(1+r)^n / ((1+r)^n - 1), or P/n when r is zero.
func priceInstallment(principal decimal.Decimal, n int, r decimal.Decimal) decimal.Decimal {
	if r.IsZero() {
		return money.Round(principal.Div(decimal.NewFromInt(int64(n))))
	}
	f := pow(one.Add(r), n)
	return money.Round(principal.Mul(r).Mul(f).Div(f.Sub(one)))
}

// PriceSummary computes the fixed installment for a Price loan and the
// interest it carries. monthlyRate is a percentage. Installment is rounded to
// the cent, so Installment*n may differ from the schedule's sum by the
// rounding residue; at a zero rate 1000/3 quotes 333.33 while the schedule
// bills 333.33, 333.33 and 333.34. Residue reports that difference.
func PriceSummary(principal decimal.Decimal, n int, monthlyRate decimal.Decimal) (PriceResult, error) {
	switch {
	case n < 1:
		return PriceResult{}, &domain.InvalidScheduleError{Reason: "installment count must be at least 1"}
	case !principal.IsPositive():
		return PriceResult{}, &domain.InvalidScheduleError{Reason: "principal must be positive"}
	case monthlyRate.IsNegative():
		return PriceResult{}, &domain.InvalidScheduleError{Reason: "rate cannot be negative"}
	}

	installment := priceInstallment(principal, n, monthlyRate.Div(hundred))
	total := installment.Mul(decimal.NewFromInt(int64(n)))
	residue := decimal.Zero
	if total.LessThan(principal) {
		residue = principal.Sub(total)
		total = principal
	}
	return PriceResult{
		Installment:       installment,
		TotalInterest:     total.Sub(principal),
		TotalWithInterest: total,
		Residue:           residue,
	}, nil
}

// pow raises base to a non-negative integer power by squaring.
func pow(base decimal.Decimal, n int) decimal.Decimal {
	result := one
	for n > 0 {
		if n&1 == 1 {
			result = result.Mul(base).Round(factorPlaces)
		}
		base = base.Mul(base).Round(factorPlaces)
		n >>= 1
	}
	return result
}

// AddMonths advances t by months calendar months, clamping the day to the
// last day of the target month (Jan 31 + 1 month is Feb 28 or 29).
func AddMonths(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	target := time.Date(year, month+time.Month(months), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	last := daysIn(target.Year(), target.Month(), t.Location())
	if day > last {
		day = last
	}
	return time.Date(target.Year(), target.Month(), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}
