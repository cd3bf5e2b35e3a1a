package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/andy/duesink/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestReconciliationService(invoices *mockInvoiceRepo) (*reconciliationService, *mockReconciliationRepo) {
	recs := newMockReconciliationRepo(invoices)
	rates := ChargeRates{
		DailyInterest:   dec("0.033"),
		Penalty:         dec("2"),
		MonthlyDiscount: dec("3"),
	}
	svc := NewReconciliationService(recs, invoices, rates, zerolog.Nop()).(*reconciliationService)
	svc.now = func() time.Time { return testNow }
	return svc, recs
}

func TestReconciliation_EarlyPaymentSettlesWithDiscount(t *testing.T) {
	ctx := context.Background()
	invoices := newMockInvoiceRepo()
	inv := seedInvoice(invoices, 60, "500", 1, testNow.AddDate(0, 0, 10))
	svc, recs := newTestReconciliationService(invoices)

	rec, err := svc.Create(ctx, CreateReconciliationInput{
		InstallmentID: inv.Installments[0].ID,
		Amount:        dec("495"),
		ReceivedAt:    testNow,
		Method:        "pix",
		Reference:     "E2E-123",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ReconciliationStatusPending, rec.Status)
	assert.Equal(t, inv.ClientID, rec.ClientID)

	result, err := svc.Confirm(ctx, rec.ID, "early")
	require.NoError(t, err)

	assert.Equal(t, domain.ReconciliationStatusConfirmed, result.Reconciliation.Status)
	assert.Equal(t, "5.00", result.History.DiscountApplied.StringFixed(2))
	assert.True(t, result.History.InterestApplied.IsZero())
	assert.True(t, result.History.PenaltyApplied.IsZero())
	assert.Equal(t, "early", result.History.Notes)

	require.Len(t, recs.settlements, 1)
	assert.True(t, recs.settlements[0].Payment.Settle)
	assert.True(t, result.Settled)
	assert.Equal(t, "495.00", result.GrandTotal.StringFixed(2))
	assert.Equal(t, domain.InstallmentStatusPaid, inv.Installments[0].Status)
	assert.Equal(t, domain.InvoiceStatusPaid, result.Invoice.Status)
}

func TestReconciliation_LatePartialPayment(t *testing.T) {
	ctx := context.Background()
	invoices := newMockInvoiceRepo()
	inv := seedInvoice(invoices, 61, "500", 2, testNow.AddDate(0, 0, -10))
	svc, recs := newTestReconciliationService(invoices)

	rec, err := svc.Create(ctx, CreateReconciliationInput{
		InstallmentID: inv.Installments[0].ID,
		Amount:        dec("200"),
		ReceivedAt:    testNow,
		Method:        "boleto",
	})
	require.NoError(t, err)

	result, err := svc.Confirm(ctx, rec.ID, "")
	require.NoError(t, err)

	assert.Equal(t, "1.65", result.History.InterestApplied.StringFixed(2))
	assert.Equal(t, "10.00", result.History.PenaltyApplied.StringFixed(2))
	assert.True(t, result.History.DiscountApplied.IsZero())
	assert.False(t, recs.settlements[0].Payment.Settle)
	assert.False(t, result.Settled)
	assert.Equal(t, "511.65", result.GrandTotal.StringFixed(2))
	assert.Equal(t, domain.InstallmentStatusOverdue, inv.Installments[0].Status)
	assert.Equal(t, domain.InvoiceStatusPartial, result.Invoice.Status)
}

func TestReconciliation_ChargesUseInstallmentAtConfirmTime(t *testing.T) {
	ctx := context.Background()
	invoices := newMockInvoiceRepo()
	inv := seedInvoice(invoices, 65, "500", 1, testNow.AddDate(0, 0, -10))
	svc, recs := newTestReconciliationService(invoices)
	inst := inv.Installments[0]

	rec, err := svc.Create(ctx, CreateReconciliationInput{
		InstallmentID: inst.ID,
		Amount:        dec("205"),
		ReceivedAt:    testNow,
		Method:        "pix",
	})
	require.NoError(t, err)

	// another payment lands after the reconciliation was read
	recs.beforeConfirm = func() {
		require.NoError(t, inst.ApplyPayment(dec("300"), testNow, "boleto", false))
	}

	result, err := svc.Confirm(ctx, rec.ID, "")
	require.NoError(t, err)

	// charges are on the remaining 200, not the 500 seen at creation
	assert.Equal(t, "0.66", result.History.InterestApplied.StringFixed(2))
	assert.Equal(t, "4.00", result.History.PenaltyApplied.StringFixed(2))
	assert.Equal(t, "204.66", result.GrandTotal.StringFixed(2))
	assert.True(t, result.Settled)
	assert.Equal(t, domain.InstallmentStatusPaid, inst.Status)
	assert.Equal(t, domain.InvoiceStatusPaid, result.Invoice.Status)
}

func TestReconciliation_ConfirmOnlyOnce(t *testing.T) {
	ctx := context.Background()
	invoices := newMockInvoiceRepo()
	inv := seedInvoice(invoices, 62, "100", 1, testNow)
	svc, _ := newTestReconciliationService(invoices)

	rec, err := svc.Create(ctx, CreateReconciliationInput{InstallmentID: inv.Installments[0].ID, Amount: dec("100"), Method: "cash"})
	require.NoError(t, err)
	assert.Equal(t, testNow, rec.ReceivedAt, "receipt date defaults to now")

	_, err = svc.Confirm(ctx, rec.ID, "")
	require.NoError(t, err)

	_, err = svc.Confirm(ctx, rec.ID, "")
	assert.True(t, errors.Is(err, domain.ErrInvalidTransition))

	_, err = svc.Reject(ctx, rec.ID)
	assert.True(t, errors.Is(err, domain.ErrInvalidTransition))
}

func TestReconciliation_RejectHasNoEffect(t *testing.T) {
	ctx := context.Background()
	invoices := newMockInvoiceRepo()
	inv := seedInvoice(invoices, 63, "100", 1, testNow.AddDate(0, 0, 5))
	svc, recs := newTestReconciliationService(invoices)

	rec, err := svc.Create(ctx, CreateReconciliationInput{InstallmentID: inv.Installments[0].ID, Amount: dec("100"), Method: "cash"})
	require.NoError(t, err)

	rejected, err := svc.Reject(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReconciliationStatusRejected, rejected.Status)
	require.NotNil(t, rejected.ResolvedAt)

	assert.Empty(t, recs.settlements)
	assert.Empty(t, invoices.payments)
	assert.True(t, inv.Installments[0].AmountPaid.IsZero())

	_, err = svc.Confirm(ctx, rec.ID, "")
	assert.True(t, errors.Is(err, domain.ErrInvalidTransition))
}

func TestReconciliation_CreateRejections(t *testing.T) {
	ctx := context.Background()
	invoices := newMockInvoiceRepo()
	inv := seedInvoice(invoices, 64, "100", 1, testNow)
	svc, _ := newTestReconciliationService(invoices)
	instID := inv.Installments[0].ID

	_, err := svc.Create(ctx, CreateReconciliationInput{InstallmentID: instID, Amount: dec("0"), Method: "pix"})
	assert.True(t, errors.Is(err, domain.ErrValidation))

	_, err = svc.Create(ctx, CreateReconciliationInput{InstallmentID: instID, Amount: dec("10")})
	assert.True(t, errors.Is(err, domain.ErrValidation), "method is required")

	_, err = svc.Create(ctx, CreateReconciliationInput{InstallmentID: 12345, Amount: dec("10"), Method: "pix"})
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	inv.Installments[0].Status = domain.InstallmentStatusCancelled
	_, err = svc.Create(ctx, CreateReconciliationInput{InstallmentID: instID, Amount: dec("10"), Method: "pix"})
	assert.True(t, errors.Is(err, domain.ErrValidation))
}
