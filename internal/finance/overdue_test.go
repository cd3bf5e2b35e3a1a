package finance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLateInterest(t *testing.T) {
	due := date(2024, time.March, 1)

	res := LateInterest(dec("1000"), due, due.Add(10*day), dec("0.033"))
	assert.Equal(t, 10, res.DaysLate)
	assert.Equal(t, "3.30", res.Interest.StringFixed(2))
	assert.Equal(t, "1003.30", res.Total.StringFixed(2))

	// partial days do not count
	res = LateInterest(dec("1000"), due, due.Add(36*time.Hour), dec("1"))
	assert.Equal(t, 1, res.DaysLate)
	assert.Equal(t, "10.00", res.Interest.StringFixed(2))
}

func TestLateInterest_ZeroWhenNotLate(t *testing.T) {
	due := date(2024, time.March, 1)
	for _, asOf := range []time.Time{due, due.Add(-48 * time.Hour), due.Add(23 * time.Hour)} {
		res := LateInterest(dec("1000"), due, asOf, dec("1"))
		assert.Equal(t, 0, res.DaysLate)
		assert.True(t, res.Interest.IsZero())
		assert.True(t, res.Total.Equal(dec("1000")))
	}
}

func TestLatePenalty(t *testing.T) {
	due := date(2024, time.March, 1)

	res := LatePenalty(dec("500"), due, due.Add(45*day), dec("2"))
	assert.Equal(t, 45, res.DaysLate)
	assert.Equal(t, "10.00", res.Penalty.StringFixed(2))

	res = LatePenalty(dec("500"), due, due, dec("2"))
	assert.Equal(t, 0, res.DaysLate)
	assert.True(t, res.Penalty.IsZero())
}

func TestEarlyDiscount(t *testing.T) {
	due := date(2024, time.March, 31)

	res := EarlyDiscount(dec("1000"), due, due.Add(-15*day), dec("2"))
	assert.Equal(t, 15, res.DaysEarly)
	assert.Equal(t, "10.00", res.Discount.StringFixed(2))
	assert.Equal(t, "990.00", res.Final.StringFixed(2))

	res = EarlyDiscount(dec("1000"), due, due.Add(2*day), dec("2"))
	assert.Equal(t, 0, res.DaysEarly)
	assert.True(t, res.Discount.IsZero())
	assert.True(t, res.Final.Equal(dec("1000")))
}

func TestEarlyDiscount_NeverNegative(t *testing.T) {
	due := date(2026, time.March, 31)
	res := EarlyDiscount(dec("100"), due, due.Add(-3000*day), dec("5"))
	assert.True(t, res.Discount.GreaterThan(dec("100")))
	assert.True(t, res.Final.IsZero())
}

func TestIsOverdueAndDaysUntilDue(t *testing.T) {
	due := date(2024, time.March, 10)

	assert.False(t, IsOverdue(due, due))
	assert.True(t, IsOverdue(due, due.Add(time.Second)))

	assert.Equal(t, 5, DaysUntilDue(due, due.Add(-5*day)))
	assert.Equal(t, 1, DaysUntilDue(due, due.Add(-2*time.Hour)))
	assert.Equal(t, -3, DaysUntilDue(due, due.Add(3*day)))
}

func TestInvoiceGrandTotal(t *testing.T) {
	got := InvoiceGrandTotal(dec("1000"), dec("50"), dec("12.5"), dec("20"), dec("3"))
	assert.Equal(t, "985.50", got.StringFixed(2))
}
