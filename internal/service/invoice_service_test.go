package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/andy/duesink/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, time.January, 15, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestInvoiceService(invoices *mockInvoiceRepo, clients *mockClientRepo) *invoiceService {
	svc := NewInvoiceService(invoices, clients, InvoiceOptions{}, zerolog.Nop()).(*invoiceService)
	svc.now = func() time.Time { return testNow }
	return svc
}

// seedInvoice stores an invoice with count installments of amount each,
// due monthly from firstDue.
func seedInvoice(m *mockInvoiceRepo, id int64, amount string, count int, firstDue time.Time) *domain.Invoice {
	inv := domain.NewInvoice(1, dec(amount).Mul(decimal.NewFromInt(int64(count))), firstDue)
	inv.ID = id
	inv.Number = "FAT-2026-00" + decimal.NewFromInt(id).String()
	inv.InstallmentCount = count
	for i := 0; i < count; i++ {
		inv.Installments = append(inv.Installments, &domain.Installment{
			ID:         id*100 + int64(i+1),
			Number:     i + 1,
			DueDate:    firstDue.AddDate(0, i, 0),
			Principal:  dec(amount),
			Interest:   decimal.Zero,
			AmountPaid: decimal.Zero,
			Status:     domain.InstallmentStatusPending,
		})
	}
	m.add(inv)
	return inv
}

func validCreateInput() CreateInvoiceInput {
	return CreateInvoiceInput{
		ClientID:          1,
		Description:       "Website retainer",
		DueDate:           time.Date(2026, time.February, 10, 0, 0, 0, 0, time.UTC),
		MonthlyRate:       "5",
		InstallmentPolicy: domain.InstallmentPolicyInstallment,
		InterestPolicy:    domain.InterestPolicySimple,
		InstallmentCount:  3,
		Items: []LineItemInput{
			{Description: "Consulting", Quantity: "2", UnitAmount: "500,00"},
		},
	}
}

func TestCreateInvoice_Success(t *testing.T) {
	ctx := context.Background()
	invoices := newMockInvoiceRepo()
	svc := newTestInvoiceService(invoices, newMockClientRepo(&domain.Client{ID: 1, Name: "ACME"}))

	inv, err := svc.CreateInvoice(ctx, validCreateInput())
	require.NoError(t, err)

	assert.Equal(t, "FAT-2026-001", inv.Number)
	assert.Equal(t, "FAT", invoices.prefix)
	assert.True(t, inv.Total.Equal(dec("1000")), "total comes from line items")
	assert.Equal(t, domain.InvoiceStatusPending, inv.Status)
	assert.Equal(t, testNow, inv.IssueDate)
	require.Len(t, inv.LineItems, 1)
	require.Len(t, inv.Installments, 3)

	sum := decimal.Zero
	for _, inst := range inv.Installments {
		sum = sum.Add(inst.Principal)
	}
	assert.True(t, sum.Equal(dec("1000")), "principals sum to net total, got %s", sum)
	assert.Equal(t, "0.00", inv.Installments[0].Interest.StringFixed(2))
	assert.Equal(t, "16.67", inv.Installments[1].Interest.StringFixed(2))
	assert.Equal(t, "33.33", inv.Installments[2].Interest.StringFixed(2))
	assert.Equal(t, time.March, inv.Installments[1].DueDate.Month())
}

func TestCreateInvoice_SinglePolicyForcesOneInstallment(t *testing.T) {
	invoices := newMockInvoiceRepo()
	svc := newTestInvoiceService(invoices, newMockClientRepo(&domain.Client{ID: 1, Name: "ACME"}))

	input := validCreateInput()
	input.InstallmentPolicy = domain.InstallmentPolicySingle
	input.InstallmentCount = 6
	input.MonthlyRate = "3"

	inv, err := svc.CreateInvoice(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, 1, inv.InstallmentCount)
	require.Len(t, inv.Installments, 1)
	assert.True(t, inv.Installments[0].Interest.IsZero())
	assert.True(t, inv.MonthlyRate.IsZero())
}

func TestCreateInvoice_DefaultInterestPolicy(t *testing.T) {
	svc := newTestInvoiceService(newMockInvoiceRepo(), newMockClientRepo(&domain.Client{ID: 1, Name: "ACME"}))

	input := validCreateInput()
	input.InterestPolicy = ""

	inv, err := svc.CreateInvoice(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, domain.InterestPolicyCompound, inv.InterestPolicy)
}

func TestCreateInvoice_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(in *CreateInvoiceInput)
		target error
	}{
		{"unknown client", func(in *CreateInvoiceInput) { in.ClientID = 99 }, domain.ErrNotFound},
		{"no client", func(in *CreateInvoiceInput) { in.ClientID = 0 }, domain.ErrValidation},
		{"no items", func(in *CreateInvoiceInput) { in.Items = nil }, domain.ErrValidation},
		{"no due date", func(in *CreateInvoiceInput) { in.DueDate = time.Time{} }, domain.ErrValidation},
		{"bad interest policy", func(in *CreateInvoiceInput) { in.InterestPolicy = "weird" }, domain.ErrValidation},
		{"unparseable amount", func(in *CreateInvoiceInput) { in.Items[0].UnitAmount = "abc" }, domain.ErrValidation},
		{"three decimals", func(in *CreateInvoiceInput) { in.Total = "10.001" }, domain.ErrValidation},
		{"line total mismatch", func(in *CreateInvoiceInput) { in.Items[0].Total = "999,00" }, domain.ErrValidation},
		{"empty description", func(in *CreateInvoiceInput) { in.Items[0].Description = "" }, domain.ErrValidation},
		{"discount covers total", func(in *CreateInvoiceInput) { in.Discount = "1.000,00" }, domain.ErrInvalidSchedule},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			invoices := newMockInvoiceRepo()
			svc := newTestInvoiceService(invoices, newMockClientRepo(&domain.Client{ID: 1, Name: "ACME"}))

			input := validCreateInput()
			tt.mutate(&input)

			_, err := svc.CreateInvoice(context.Background(), input)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.target), "got %v", err)
			assert.Nil(t, invoices.created, "nothing may be stored")
		})
	}
}

func TestCreateInvoice_ValidationFieldName(t *testing.T) {
	svc := newTestInvoiceService(newMockInvoiceRepo(), newMockClientRepo(&domain.Client{ID: 1, Name: "ACME"}))

	input := validCreateInput()
	input.Items[0].Quantity = ""

	_, err := svc.CreateInvoice(context.Background(), input)
	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "items[0].quantity", verr.Field)
}

func TestCancelInvoice_Idempotent(t *testing.T) {
	ctx := context.Background()
	invoices := newMockInvoiceRepo()
	inv := seedInvoice(invoices, 10, "500", 2, testNow.AddDate(0, 1, 0))
	svc := newTestInvoiceService(invoices, newMockClientRepo())

	require.NoError(t, svc.CancelInvoice(ctx, inv.ID))
	require.NoError(t, svc.CancelInvoice(ctx, inv.ID))

	assert.Equal(t, domain.InvoiceStatusCancelled, inv.Status)
	for _, inst := range inv.Installments {
		assert.Equal(t, domain.InstallmentStatusCancelled, inst.Status)
	}

	details, err := svc.GetInvoiceDetails(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusCancelled, details.Status)
}

func TestCancelInvoice_NotFound(t *testing.T) {
	svc := newTestInvoiceService(newMockInvoiceRepo(), newMockClientRepo())
	err := svc.CancelInvoice(context.Background(), 404)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestRecordInstallmentPayment_Consolidates(t *testing.T) {
	ctx := context.Background()
	invoices := newMockInvoiceRepo()
	inv := seedInvoice(invoices, 20, "500", 2, testNow.AddDate(0, 1, 0))
	svc := newTestInvoiceService(invoices, newMockClientRepo())

	first := inv.Installments[0].ID
	second := inv.Installments[1].ID

	got, err := svc.RecordInstallmentPayment(ctx, RecordPaymentInput{InstallmentID: first, Amount: dec("200"), Method: "pix"})
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusPartial, got.Status)
	assert.Equal(t, testNow, invoices.payments[0].PaidAt, "payment date defaults to now")

	got, err = svc.RecordInstallmentPayment(ctx, RecordPaymentInput{InstallmentID: first, Amount: dec("300")})
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusPartial, got.Status)
	assert.Equal(t, domain.InstallmentStatusPaid, inv.Installments[0].Status)

	got, err = svc.RecordInstallmentPayment(ctx, RecordPaymentInput{InstallmentID: second, Amount: dec("500")})
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusPaid, got.Status)
}

func TestRecordInstallmentPayment_Rejections(t *testing.T) {
	ctx := context.Background()
	invoices := newMockInvoiceRepo()
	inv := seedInvoice(invoices, 30, "500", 1, testNow.AddDate(0, 1, 0))
	svc := newTestInvoiceService(invoices, newMockClientRepo())

	_, err := svc.RecordInstallmentPayment(ctx, RecordPaymentInput{InstallmentID: inv.Installments[0].ID, Amount: dec("0")})
	assert.True(t, errors.Is(err, domain.ErrValidation))

	_, err = svc.RecordInstallmentPayment(ctx, RecordPaymentInput{InstallmentID: 0, Amount: dec("10")})
	assert.True(t, errors.Is(err, domain.ErrValidation))

	require.NoError(t, svc.CancelInvoice(ctx, inv.ID))
	_, err = svc.RecordInstallmentPayment(ctx, RecordPaymentInput{InstallmentID: inv.Installments[0].ID, Amount: dec("10")})
	assert.True(t, errors.Is(err, domain.ErrValidation))
}

func TestGetInvoiceDetails_RecomputesOverdue(t *testing.T) {
	invoices := newMockInvoiceRepo()
	inv := seedInvoice(invoices, 40, "300", 2, testNow.AddDate(0, 0, -5))
	svc := newTestInvoiceService(invoices, newMockClientRepo())

	details, err := svc.GetInvoiceDetails(context.Background(), inv.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.InvoiceStatusOverdue, details.Status)
	assert.Equal(t, domain.InstallmentStatusOverdue, details.Installments[0].Status)
	assert.Equal(t, domain.InstallmentStatusPending, details.Installments[1].Status)
	assert.True(t, details.TotalPaid.IsZero())
	assert.True(t, details.Outstanding.Equal(dec("600")))
	assert.Equal(t, testNow, details.AsOf)
}

func TestListInvoices_FiltersOnRecomputedStatus(t *testing.T) {
	invoices := newMockInvoiceRepo()
	seedInvoice(invoices, 50, "100", 1, testNow.AddDate(0, 0, -3))
	seedInvoice(invoices, 51, "100", 1, testNow.AddDate(0, 0, 10))
	svc := newTestInvoiceService(invoices, newMockClientRepo())

	overdue := domain.InvoiceStatusOverdue
	got, err := svc.ListInvoices(context.Background(), nil, &overdue)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(50), got[0].ID)

	all, err := svc.ListInvoices(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
