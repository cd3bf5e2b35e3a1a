package service

import (
	"context"
	"testing"
	"time"

	"github.com/andy/duesink/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestReportService(invoices *mockInvoiceRepo) *reportService {
	svc := NewReportService(invoices).(*reportService)
	svc.now = func() time.Time { return testNow }
	return svc
}

func TestGetReceivables(t *testing.T) {
	invoices := newMockInvoiceRepo()
	late := seedInvoice(invoices, 1, "100", 2, testNow.AddDate(0, 0, -45))
	seedInvoice(invoices, 2, "300", 1, testNow.AddDate(0, 0, 20))
	cancelled := seedInvoice(invoices, 3, "999", 1, testNow.AddDate(0, 0, -100))
	_, err := invoices.Cancel(context.Background(), cancelled.ID, testNow)
	require.NoError(t, err)

	summary, err := newTestReportService(invoices).GetReceivables(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Invoices)
	assert.Equal(t, "500.00", summary.Outstanding.StringFixed(2))
	assert.Equal(t, 1, summary.ByStatus[domain.InvoiceStatusOverdue])
	assert.Equal(t, 1, summary.ByStatus[domain.InvoiceStatusPending])

	// first installment is 45 days late, the second (due 14 days ago) 14
	assert.Equal(t, "200.00", summary.Overdue.StringFixed(2))
	assert.Equal(t, 1, summary.Aging[0].Count)
	assert.Equal(t, 1, summary.Aging[1].Count)
	assert.Equal(t, 0, summary.Aging[3].Count, "cancelled invoices are not aged")
	assert.Len(t, late.Installments, 2)
}

func TestGetClientSummaryAndRevenue(t *testing.T) {
	ctx := context.Background()
	invoices := newMockInvoiceRepo()
	inv := seedInvoice(invoices, 4, "250", 2, testNow.AddDate(0, 0, 5))
	paidAt := time.Date(2026, time.January, 3, 0, 0, 0, 0, time.UTC)
	require.NoError(t, inv.Installments[0].ApplyPayment(dec("250"), paidAt, "pix", false))

	svc := newTestReportService(invoices)

	summary, err := svc.GetClientSummary(ctx, inv.ClientID)
	require.NoError(t, err)
	assert.Equal(t, "500.00", summary.Invoiced.StringFixed(2))
	assert.Equal(t, "250.00", summary.Paid.StringFixed(2))
	assert.Equal(t, "250.00", summary.Outstanding.StringFixed(2))
	assert.True(t, summary.Overdue.IsZero())

	revenue, err := svc.GetRevenueByMonth(ctx, 2026)
	require.NoError(t, err)
	assert.Equal(t, "250.00", revenue[time.January].StringFixed(2))
	assert.True(t, revenue[time.February].IsZero())

	total, err := svc.GetOutstandingTotal(ctx)
	require.NoError(t, err)
	assert.Equal(t, "250.00", total.StringFixed(2))
}
