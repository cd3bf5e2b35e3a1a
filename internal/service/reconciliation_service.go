package service

import (
	"context"
	"strings"
	"time"

	"github.com/andy/duesink/internal/domain"
	"github.com/andy/duesink/internal/finance"
	"github.com/andy/duesink/internal/money"
	"github.com/andy/duesink/internal/repository"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// CreateReconciliationInput is money received that should settle an
// installment once confirmed.
type CreateReconciliationInput struct {
	InstallmentID int64           `validate:"gt=0"`
	Amount        decimal.Decimal `validate:"-"`
	ReceivedAt    time.Time
	Method        string `validate:"required,max=50"`
	Reference     string `validate:"max=100"`
	Description   string `validate:"max=500"`
}

// ConfirmResult is what confirming a reconciliation produced. GrandTotal is
// what the installment cost at the receipt date: outstanding less discount
// plus interest and penalty. Settled reports whether the amount covered it.
type ConfirmResult struct {
	Reconciliation *domain.Reconciliation
	History        *domain.PaymentHistoryEntry
	Invoice        *domain.Invoice
	GrandTotal     decimal.Decimal
	Settled        bool
}

// ReconciliationService matches received payments to installments
type ReconciliationService interface {
	// Create records a pending reconciliation
	Create(ctx context.Context, input CreateReconciliationInput) (*domain.Reconciliation, error)

	// Confirm applies the payment with interest, penalty and discount computed
	// at the receipt date, writes the payment history and re-consolidates the
	// invoice in one transaction
	Confirm(ctx context.Context, id int64, notes string) (*ConfirmResult, error)

	// Reject closes a pending reconciliation without touching the installment
	Reject(ctx context.Context, id int64) (*domain.Reconciliation, error)

	Get(ctx context.Context, id int64) (*domain.Reconciliation, error)
	GetByInstallment(ctx context.Context, installmentID int64) ([]*domain.Reconciliation, error)
	ListPending(ctx context.Context) ([]*domain.Reconciliation, error)
	ListPaymentHistory(ctx context.Context, installmentID int64) ([]*domain.PaymentHistoryEntry, error)
}

type reconciliationService struct {
	reconciliationRepo repository.ReconciliationRepository
	invoiceRepo        repository.InvoiceRepository
	rates              ChargeRates
	log                zerolog.Logger
	now                func() time.Time
}

// NewReconciliationService creates a new reconciliation service
func NewReconciliationService(
	reconciliationRepo repository.ReconciliationRepository,
	invoiceRepo repository.InvoiceRepository,
	rates ChargeRates,
	log zerolog.Logger,
) ReconciliationService {
	return &reconciliationService{
		reconciliationRepo: reconciliationRepo,
		invoiceRepo:        invoiceRepo,
		rates:              rates,
		log:                log,
		now:                time.Now,
	}
}

func (s *reconciliationService) Create(ctx context.Context, input CreateReconciliationInput) (*domain.Reconciliation, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	if !input.Amount.IsPositive() {
		return nil, domain.NewValidationError("amount", input.Amount.String(), "amount must be positive")
	}

	inst, err := s.invoiceRepo.GetInstallment(ctx, input.InstallmentID)
	if err != nil {
		return nil, err
	}
	if inst.Status == domain.InstallmentStatusCancelled {
		return nil, domain.NewValidationError("installmentId", inst.ID, "installment is cancelled")
	}
	invoice, err := s.invoiceRepo.GetByID(ctx, inst.InvoiceID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	receivedAt := input.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = now
	}

	rec := &domain.Reconciliation{
		InstallmentID: inst.ID,
		InvoiceID:     invoice.ID,
		ClientID:      invoice.ClientID,
		Amount:        money.Round(input.Amount),
		ReceivedAt:    receivedAt,
		Method:        strings.TrimSpace(input.Method),
		Reference:     strings.TrimSpace(input.Reference),
		Description:   strings.TrimSpace(input.Description),
		Status:        domain.ReconciliationStatusPending,
		CreatedAt:     now,
	}
	if err := s.reconciliationRepo.Create(ctx, rec); err != nil {
		return nil, err
	}

	s.log.Info().
		Int64("reconciliation_id", rec.ID).
		Int64("installment_id", rec.InstallmentID).
		Str("amount", money.Format(rec.Amount)).
		Msg("reconciliation created")
	return rec, nil
}

// charges are what settlement adds to or takes off the outstanding amount.
type charges struct {
	interest decimal.Decimal
	penalty  decimal.Decimal
	discount decimal.Decimal
}

// required is the amount that settles outstanding under these charges.
func (c charges) required(outstanding decimal.Decimal) decimal.Decimal {
	return money.Max(decimal.Zero, finance.InvoiceGrandTotal(outstanding, c.discount, c.interest, c.penalty, decimal.Zero))
}

func (s *reconciliationService) chargesAt(inst *domain.Installment, paidAt time.Time) charges {
	outstanding := inst.Outstanding()
	if !outstanding.IsPositive() {
		return charges{interest: decimal.Zero, penalty: decimal.Zero, discount: decimal.Zero}
	}
	return charges{
		interest: finance.LateInterest(outstanding, inst.DueDate, paidAt, s.rates.DailyInterest).Interest,
		penalty:  finance.LatePenalty(outstanding, inst.DueDate, paidAt, s.rates.Penalty).Penalty,
		discount: finance.EarlyDiscount(outstanding, inst.DueDate, paidAt, s.rates.MonthlyDiscount).Discount,
	}
}

func (s *reconciliationService) Confirm(ctx context.Context, id int64, notes string) (*ConfirmResult, error) {
	rec, err := s.reconciliationRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Status != domain.ReconciliationStatusPending {
		return nil, &domain.InvalidTransitionError{Entity: "reconciliation", ID: id, From: string(rec.Status), To: string(domain.ReconciliationStatusConfirmed)}
	}

	now := s.now()
	history := &domain.PaymentHistoryEntry{
		InstallmentID:   rec.InstallmentID,
		InvoiceID:       rec.InvoiceID,
		ClientID:        rec.ClientID,
		AmountPaid:      rec.Amount,
		PaidAt:          rec.ReceivedAt,
		Method:          rec.Method,
		Reference:       rec.Reference,
		InterestApplied: decimal.Zero,
		PenaltyApplied:  decimal.Zero,
		DiscountApplied: decimal.Zero,
		Notes:           strings.TrimSpace(notes),
		CreatedAt:       now,
	}

	// Charges depend on what is still outstanding, so they are priced
	// against the installment read inside the confirming transaction.
	var (
		settle     bool
		grandTotal decimal.Decimal
	)
	price := func(inst *domain.Installment, h *domain.PaymentHistoryEntry) bool {
		c := s.chargesAt(inst, rec.ReceivedAt)
		h.InterestApplied = c.interest
		h.PenaltyApplied = c.penalty
		h.DiscountApplied = c.discount
		grandTotal = c.required(inst.Outstanding())
		settle = rec.Amount.GreaterThanOrEqual(grandTotal)
		return settle
	}

	invoice, err := s.reconciliationRepo.Confirm(ctx, repository.Settlement{
		ReconciliationID: id,
		At:               now,
		Payment: repository.InstallmentPayment{
			InstallmentID: rec.InstallmentID,
			Amount:        rec.Amount,
			PaidAt:        rec.ReceivedAt,
			Method:        rec.Method,
			AsOf:          now,
		},
		History: history,
		Price:   price,
	})
	if err != nil {
		return nil, err
	}

	if err := rec.Resolve(domain.ReconciliationStatusConfirmed, now); err != nil {
		return nil, err
	}

	s.log.Info().
		Int64("reconciliation_id", id).
		Int64("installment_id", rec.InstallmentID).
		Str("amount", money.Format(rec.Amount)).
		Str("interest", money.Format(history.InterestApplied)).
		Str("penalty", money.Format(history.PenaltyApplied)).
		Str("discount", money.Format(history.DiscountApplied)).
		Str("grand_total", money.Format(grandTotal)).
		Bool("settled", settle).
		Str("invoice_status", string(invoice.Status)).
		Msg("reconciliation confirmed")

	return &ConfirmResult{
		Reconciliation: rec,
		History:        history,
		Invoice:        invoice,
		GrandTotal:     grandTotal,
		Settled:        settle,
	}, nil
}

func (s *reconciliationService) Reject(ctx context.Context, id int64) (*domain.Reconciliation, error) {
	rec, err := s.reconciliationRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := rec.Resolve(domain.ReconciliationStatusRejected, now); err != nil {
		return nil, err
	}
	if err := s.reconciliationRepo.Reject(ctx, id, now); err != nil {
		return nil, err
	}

	s.log.Info().Int64("reconciliation_id", id).Msg("reconciliation rejected")
	return rec, nil
}

func (s *reconciliationService) Get(ctx context.Context, id int64) (*domain.Reconciliation, error) {
	return s.reconciliationRepo.GetByID(ctx, id)
}

func (s *reconciliationService) GetByInstallment(ctx context.Context, installmentID int64) ([]*domain.Reconciliation, error) {
	return s.reconciliationRepo.ListByInstallment(ctx, installmentID)
}

func (s *reconciliationService) ListPending(ctx context.Context) ([]*domain.Reconciliation, error) {
	status := domain.ReconciliationStatusPending
	return s.reconciliationRepo.List(ctx, &status)
}

func (s *reconciliationService) ListPaymentHistory(ctx context.Context, installmentID int64) ([]*domain.PaymentHistoryEntry, error) {
	return s.reconciliationRepo.ListPaymentHistory(ctx, installmentID)
}
