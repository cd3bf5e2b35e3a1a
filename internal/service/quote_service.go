package service

import (
	"time"

	"github.com/andy/duesink/internal/domain"
	"github.com/andy/duesink/internal/finance"
	"github.com/shopspring/decimal"
)

// ChargeRates are the configured defaults for overdue and early-payment
// charges, all in percent.
type ChargeRates struct {
	DailyInterest   decimal.Decimal
	Penalty         decimal.Decimal
	MonthlyDiscount decimal.Decimal
}

// SchedulePreview is a schedule with its totals.
type SchedulePreview struct {
	Installments  []finance.ScheduledInstallment
	Principal     decimal.Decimal
	TotalInterest decimal.Decimal
	Total         decimal.Decimal
	// FixedInstallment and LastResidue are set for Price schedules only
	FixedInstallment decimal.Decimal
	LastResidue      decimal.Decimal
	// EffectiveRate is the monthly rate compounded over the schedule, in
	// percent. Only compound and Price schedules compound.
	EffectiveRate decimal.Decimal
}

// PreviewInput is the common input of the schedule previews.
type PreviewInput struct {
	Total        decimal.Decimal
	Discount     decimal.Decimal
	MonthlyRate  decimal.Decimal
	Count        int
	FirstDueDate time.Time
}

// QuoteService computes schedules and charges without persisting anything.
// A nil rate in the charge previews means the configured default.
type QuoteService interface {
	PreviewSimpleSchedule(input PreviewInput) (*SchedulePreview, error)
	PreviewCompoundSchedule(input PreviewInput) (*SchedulePreview, error)
	PreviewPriceSchedule(input PreviewInput) (*SchedulePreview, error)
	PreviewLateInterest(principal decimal.Decimal, due, asOf time.Time, dailyRate *decimal.Decimal) finance.LateInterestResult
	PreviewLatePenalty(principal decimal.Decimal, due, asOf time.Time, penaltyRate *decimal.Decimal) finance.LatePenaltyResult
	PreviewEarlyDiscount(total decimal.Decimal, due, paidAt time.Time, monthlyRate *decimal.Decimal) finance.EarlyDiscountResult
	Rates() ChargeRates
}

type quoteService struct {
	rates ChargeRates
}

// NewQuoteService creates a quote service with default charge rates
func NewQuoteService(rates ChargeRates) QuoteService {
	return &quoteService{rates: rates}
}

func (s *quoteService) Rates() ChargeRates {
	return s.rates
}

func (s *quoteService) PreviewSimpleSchedule(input PreviewInput) (*SchedulePreview, error) {
	return preview(input, domain.InterestPolicySimple)
}

func (s *quoteService) PreviewCompoundSchedule(input PreviewInput) (*SchedulePreview, error) {
	p, err := preview(input, domain.InterestPolicyCompound)
	if err != nil {
		return nil, err
	}
	p.EffectiveRate = finance.EffectiveRate(input.MonthlyRate, input.Count)
	return p, nil
}

func (s *quoteService) PreviewPriceSchedule(input PreviewInput) (*SchedulePreview, error) {
	p, err := preview(input, domain.InterestPolicyPrice)
	if err != nil {
		return nil, err
	}

	summary, err := finance.PriceSummary(input.Total.Sub(input.Discount), input.Count, input.MonthlyRate)
	if err != nil {
		return nil, err
	}
	p.FixedInstallment = summary.Installment
	p.LastResidue = summary.Residue
	p.EffectiveRate = finance.EffectiveRate(input.MonthlyRate, input.Count)
	return p, nil
}

func preview(input PreviewInput, policy domain.InterestPolicy) (*SchedulePreview, error) {
	rows, err := finance.Schedule(finance.ScheduleInput{
		Total:        input.Total,
		Discount:     input.Discount,
		MonthlyRate:  input.MonthlyRate,
		Count:        input.Count,
		FirstDueDate: input.FirstDueDate,
		Policy:       policy,
	})
	if err != nil {
		return nil, err
	}

	p := &SchedulePreview{
		Installments:  rows,
		Principal:     decimal.Zero,
		TotalInterest: decimal.Zero,
		Total:         decimal.Zero,
	}
	for _, row := range rows {
		p.Principal = p.Principal.Add(row.Principal)
		p.TotalInterest = p.TotalInterest.Add(row.Interest)
		p.Total = p.Total.Add(row.Total)
	}
	return p, nil
}

func (s *quoteService) PreviewLateInterest(principal decimal.Decimal, due, asOf time.Time, dailyRate *decimal.Decimal) finance.LateInterestResult {
	return finance.LateInterest(principal, due, asOf, rateOr(dailyRate, s.rates.DailyInterest))
}

func (s *quoteService) PreviewLatePenalty(principal decimal.Decimal, due, asOf time.Time, penaltyRate *decimal.Decimal) finance.LatePenaltyResult {
	return finance.LatePenalty(principal, due, asOf, rateOr(penaltyRate, s.rates.Penalty))
}

func (s *quoteService) PreviewEarlyDiscount(total decimal.Decimal, due, paidAt time.Time, monthlyRate *decimal.Decimal) finance.EarlyDiscountResult {
	return finance.EarlyDiscount(total, due, paidAt, rateOr(monthlyRate, s.rates.MonthlyDiscount))
}

func rateOr(rate *decimal.Decimal, fallback decimal.Decimal) decimal.Decimal {
	if rate != nil {
		return *rate
	}
	return fallback
}
