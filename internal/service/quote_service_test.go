package service

import (
	"errors"
	"testing"

	"github.com/andy/duesink/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQuoteService() QuoteService {
	return NewQuoteService(ChargeRates{
		DailyInterest:   dec("0.033"),
		Penalty:         dec("2"),
		MonthlyDiscount: dec("1"),
	})
}

func TestPreviewSchedules_Totals(t *testing.T) {
	svc := newTestQuoteService()
	in := PreviewInput{
		Total:        dec("1000"),
		Count:        4,
		FirstDueDate: testNow,
	}

	p, err := svc.PreviewSimpleSchedule(in)
	require.NoError(t, err)
	assert.Len(t, p.Installments, 4)
	assert.Equal(t, "1000.00", p.Principal.StringFixed(2))
	assert.True(t, p.TotalInterest.IsZero())
	assert.Equal(t, "1000.00", p.Total.StringFixed(2))
	assert.True(t, p.FixedInstallment.IsZero(), "only price schedules report a fixed installment")

	p, err = svc.PreviewPriceSchedule(in)
	require.NoError(t, err)
	assert.Equal(t, "250.00", p.FixedInstallment.StringFixed(2))

	in.MonthlyRate = dec("2")
	p, err = svc.PreviewCompoundSchedule(in)
	require.NoError(t, err)
	assert.Equal(t, "1000.00", p.Principal.StringFixed(2))
	assert.True(t, p.TotalInterest.IsPositive())
	assert.True(t, p.Total.Equal(p.Principal.Add(p.TotalInterest)))
	assert.Equal(t, "8.2432", p.EffectiveRate.String())
}

func TestPreviewSchedules_EffectiveRateAndResidue(t *testing.T) {
	svc := newTestQuoteService()
	in := PreviewInput{
		Total:        dec("1000"),
		Count:        3,
		FirstDueDate: testNow,
	}

	p, err := svc.PreviewPriceSchedule(in)
	require.NoError(t, err)
	assert.Equal(t, "333.33", p.FixedInstallment.StringFixed(2))
	assert.Equal(t, "0.01", p.LastResidue.StringFixed(2))
	assert.True(t, p.EffectiveRate.IsZero())
	assert.Equal(t, "1000.00", p.Total.StringFixed(2))

	p, err = svc.PreviewSimpleSchedule(PreviewInput{Total: dec("1000"), Count: 3, MonthlyRate: dec("1"), FirstDueDate: testNow})
	require.NoError(t, err)
	assert.True(t, p.EffectiveRate.IsZero(), "simple interest does not compound")

	in.MonthlyRate = dec("1")
	in.Count = 12
	p, err = svc.PreviewPriceSchedule(in)
	require.NoError(t, err)
	assert.Equal(t, "12.6825", p.EffectiveRate.String())
	assert.True(t, p.LastResidue.IsZero())
}

func TestPreviewSchedules_Invalid(t *testing.T) {
	_, err := newTestQuoteService().PreviewPriceSchedule(PreviewInput{
		Total:        dec("1000"),
		Count:        0,
		FirstDueDate: testNow,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidSchedule))
}

func TestPreviewCharges_DefaultAndOverride(t *testing.T) {
	svc := newTestQuoteService()
	due := testNow.AddDate(0, 0, -10)

	late := svc.PreviewLateInterest(dec("1000"), due, testNow, nil)
	assert.Equal(t, 10, late.DaysLate)
	assert.Equal(t, "3.30", late.Interest.StringFixed(2))
	assert.Equal(t, "1003.30", late.Total.StringFixed(2))

	rate := dec("1")
	late = svc.PreviewLateInterest(dec("1000"), due, testNow, &rate)
	assert.Equal(t, "100.00", late.Interest.StringFixed(2))

	penalty := svc.PreviewLatePenalty(dec("1000"), due, testNow, nil)
	assert.Equal(t, "20.00", penalty.Penalty.StringFixed(2))

	onTime := svc.PreviewLatePenalty(dec("1000"), testNow.AddDate(0, 0, 5), testNow, nil)
	assert.True(t, onTime.Penalty.IsZero())

	discount := svc.PreviewEarlyDiscount(dec("1000"), testNow.AddDate(0, 0, 30), testNow, nil)
	assert.Equal(t, 30, discount.DaysEarly)
	assert.Equal(t, "10.00", discount.Discount.StringFixed(2))
	assert.Equal(t, "990.00", discount.Final.StringFixed(2))

	assert.True(t, svc.Rates().Penalty.Equal(dec("2")))
}
