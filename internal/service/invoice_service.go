package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/andy/duesink/internal/domain"
	"github.com/andy/duesink/internal/finance"
	"github.com/andy/duesink/internal/money"
	"github.com/andy/duesink/internal/repository"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ClientDirectory answers whether a client exists. It is all the ledger
// needs to know about clients.
type ClientDirectory interface {
	Exists(ctx context.Context, id int64) (bool, error)
}

// LineItemInput is one invoice line as entered. Amounts are locale
// formatted strings; Total is optional and, when given, must match
// Quantity x UnitAmount.
type LineItemInput struct {
	Description string `validate:"required,max=500"`
	Quantity    string `validate:"required"`
	UnitAmount  string `validate:"required"`
	Total       string
}

// CreateInvoiceInput is everything needed to issue an invoice. A blank
// Total is taken from the sum of the line items. InterestPolicy falls back
// to the configured default.
type CreateInvoiceInput struct {
	ClientID          int64                    `validate:"gt=0"`
	Description       string                   `validate:"max=500"`
	DueDate           time.Time                `validate:"required"`
	Total             string
	Discount          string
	MonthlyRate       string
	InstallmentPolicy domain.InstallmentPolicy `validate:"required,oneof=single installment recurring"`
	InterestPolicy    domain.InterestPolicy    `validate:"omitempty,oneof=simple compound price"`
	InstallmentCount  int                      `validate:"gte=0,lte=360"`
	Notes             string
	Items             []LineItemInput `validate:"required,min=1,dive"`
}

// RecordPaymentInput is a payment received against one installment.
type RecordPaymentInput struct {
	InstallmentID int64           `validate:"gt=0"`
	Amount        decimal.Decimal `validate:"-"`
	PaidAt        time.Time
	Method        string `validate:"max=50"`
}

// InvoiceDetails is an invoice with its derived figures recomputed at AsOf.
type InvoiceDetails struct {
	Invoice      *domain.Invoice
	Items        []*domain.LineItem
	Installments []*domain.Installment
	TotalPaid    decimal.Decimal
	Outstanding  decimal.Decimal
	Status       domain.InvoiceStatus
	AsOf         time.Time
}

// InvoiceOptions are the configured invoice defaults.
type InvoiceOptions struct {
	NumberPrefix   string
	InterestPolicy domain.InterestPolicy
}

// InvoiceService manages the invoice lifecycle
type InvoiceService interface {
	// CreateInvoice validates the input, generates the installment schedule
	// and stores everything atomically under a fresh invoice number
	CreateInvoice(ctx context.Context, input CreateInvoiceInput) (*domain.Invoice, error)

	// GetInvoiceDetails loads an invoice and recomputes its status
	GetInvoiceDetails(ctx context.Context, id int64) (*InvoiceDetails, error)

	// GetInvoiceByNumber is GetInvoiceDetails keyed by invoice number
	GetInvoiceByNumber(ctx context.Context, number string) (*InvoiceDetails, error)

	// ListInvoices lists invoices with optional filters; status filters on
	// the recomputed status
	ListInvoices(ctx context.Context, clientID *int64, status *domain.InvoiceStatus) ([]*domain.Invoice, error)

	// CancelInvoice cancels an invoice and its installments. Cancelling twice
	// is a no-op.
	CancelInvoice(ctx context.Context, id int64) error

	// RecordInstallmentPayment applies a payment and re-consolidates the invoice
	RecordInstallmentPayment(ctx context.Context, input RecordPaymentInput) (*domain.Invoice, error)
}

type invoiceService struct {
	invoiceRepo repository.InvoiceRepository
	clients     ClientDirectory
	opts        InvoiceOptions
	log         zerolog.Logger
	now         func() time.Time
}

// NewInvoiceService creates a new invoice service
func NewInvoiceService(
	invoiceRepo repository.InvoiceRepository,
	clients ClientDirectory,
	opts InvoiceOptions,
	log zerolog.Logger,
) InvoiceService {
	if opts.NumberPrefix == "" {
		opts.NumberPrefix = "FAT"
	}
	if !opts.InterestPolicy.Valid() {
		opts.InterestPolicy = domain.InterestPolicyCompound
	}
	return &invoiceService{
		invoiceRepo: invoiceRepo,
		clients:     clients,
		opts:        opts,
		log:         log,
		now:         time.Now,
	}
}

func (s *invoiceService) CreateInvoice(ctx context.Context, input CreateInvoiceInput) (*domain.Invoice, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	items, itemsTotal, err := buildLineItems(input.Items)
	if err != nil {
		return nil, err
	}

	total, err := parseAmount("total", input.Total)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.Total) == "" {
		total = itemsTotal
	}
	discount, err := parseAmount("discount", input.Discount)
	if err != nil {
		return nil, err
	}
	rate, err := parseRate("monthlyRate", input.MonthlyRate)
	if err != nil {
		return nil, err
	}

	exists, err := s.clients.Exists(ctx, input.ClientID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, &domain.NotFoundError{Entity: "client", ID: input.ClientID}
	}

	count := input.InstallmentCount
	if count == 0 {
		count = 1
	}
	interestPolicy := input.InterestPolicy
	if interestPolicy == "" {
		interestPolicy = s.opts.InterestPolicy
	}
	if input.InstallmentPolicy == domain.InstallmentPolicySingle {
		count = 1
		rate = decimal.Zero
	}

	rows, err := finance.Schedule(finance.ScheduleInput{
		Total:        total,
		Discount:     discount,
		MonthlyRate:  rate,
		Count:        count,
		FirstDueDate: input.DueDate,
		Policy:       interestPolicy,
	})
	if err != nil {
		return nil, err
	}

	now := s.now()
	invoice := domain.NewInvoice(input.ClientID, total, input.DueDate)
	invoice.IssueDate = now
	invoice.CreatedAt = now
	invoice.UpdatedAt = now
	invoice.Description = strings.TrimSpace(input.Description)
	invoice.Notes = input.Notes
	invoice.Discount = discount
	invoice.MonthlyRate = rate
	invoice.InstallmentPolicy = input.InstallmentPolicy
	invoice.InterestPolicy = interestPolicy
	invoice.InstallmentCount = count
	invoice.LineItems = items
	invoice.Installments = make([]*domain.Installment, 0, len(rows))
	for _, row := range rows {
		invoice.Installments = append(invoice.Installments, &domain.Installment{
			Number:     row.Number,
			DueDate:    row.DueDate,
			Principal:  row.Principal,
			Interest:   row.Interest,
			AmountPaid: decimal.Zero,
			Status:     domain.InstallmentStatusPending,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	}
	invoice.Status = finance.ConsolidateInvoice(invoice, now)

	if err := s.invoiceRepo.Create(ctx, invoice, s.opts.NumberPrefix); err != nil {
		return nil, err
	}

	s.log.Info().
		Int64("invoice_id", invoice.ID).
		Str("number", invoice.Number).
		Int64("client_id", invoice.ClientID).
		Str("total", money.Format(invoice.Total)).
		Int("installments", invoice.InstallmentCount).
		Str("interest_policy", string(invoice.InterestPolicy)).
		Msg("invoice created")

	return invoice, nil
}

func buildLineItems(inputs []LineItemInput) ([]*domain.LineItem, decimal.Decimal, error) {
	items := make([]*domain.LineItem, 0, len(inputs))
	sum := decimal.Zero

	for i, in := range inputs {
		field := fmt.Sprintf("items[%d]", i)
		qty, err := money.ParseRate(in.Quantity)
		if err != nil {
			return nil, decimal.Zero, domain.NewValidationError(field+".quantity", in.Quantity, err.Error())
		}
		unit, err := parseAmount(field+".unitAmount", in.UnitAmount)
		if err != nil {
			return nil, decimal.Zero, err
		}

		item := domain.NewLineItem(in.Description, qty, unit)
		if strings.TrimSpace(in.Total) != "" {
			given, err := parseAmount(field+".total", in.Total)
			if err != nil {
				return nil, decimal.Zero, err
			}
			item.Total = given
		}
		if err := item.Validate(); err != nil {
			return nil, decimal.Zero, err
		}

		items = append(items, item)
		sum = sum.Add(item.Total)
	}

	return items, sum, nil
}

func (s *invoiceService) GetInvoiceDetails(ctx context.Context, id int64) (*InvoiceDetails, error) {
	invoice, err := s.invoiceRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.details(invoice), nil
}

func (s *invoiceService) GetInvoiceByNumber(ctx context.Context, number string) (*InvoiceDetails, error) {
	invoice, err := s.invoiceRepo.GetByNumber(ctx, strings.TrimSpace(number))
	if err != nil {
		return nil, err
	}
	return s.details(invoice), nil
}

func (s *invoiceService) details(invoice *domain.Invoice) *InvoiceDetails {
	asOf := s.now()
	refresh(invoice, asOf)
	return &InvoiceDetails{
		Invoice:      invoice,
		Items:        invoice.LineItems,
		Installments: invoice.Installments,
		TotalPaid:    invoice.TotalPaid(),
		Outstanding:  invoice.Outstanding(),
		Status:       invoice.Status,
		AsOf:         asOf,
	}
}

// refresh recomputes installment and invoice status at asOf. The stored
// status is only a cache.
func refresh(invoice *domain.Invoice, asOf time.Time) {
	for _, inst := range invoice.Installments {
		inst.Status = inst.StatusAt(asOf)
	}
	invoice.Status = finance.ConsolidateInvoice(invoice, asOf)
}

func (s *invoiceService) ListInvoices(ctx context.Context, clientID *int64, status *domain.InvoiceStatus) ([]*domain.Invoice, error) {
	invoices, err := s.invoiceRepo.List(ctx, clientID, nil)
	if err != nil {
		return nil, err
	}

	asOf := s.now()
	out := make([]*domain.Invoice, 0, len(invoices))
	for _, inv := range invoices {
		refresh(inv, asOf)
		if status != nil && inv.Status != *status {
			continue
		}
		out = append(out, inv)
	}
	return out, nil
}

func (s *invoiceService) CancelInvoice(ctx context.Context, id int64) error {
	changed, err := s.invoiceRepo.Cancel(ctx, id, s.now())
	if err != nil {
		return err
	}

	if changed {
		s.log.Info().Int64("invoice_id", id).Msg("invoice cancelled")
	} else {
		s.log.Debug().Int64("invoice_id", id).Msg("invoice already cancelled")
	}
	return nil
}

func (s *invoiceService) RecordInstallmentPayment(ctx context.Context, input RecordPaymentInput) (*domain.Invoice, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	if !input.Amount.IsPositive() {
		return nil, domain.NewValidationError("amount", input.Amount.String(), "payment must be positive")
	}

	now := s.now()
	paidAt := input.PaidAt
	if paidAt.IsZero() {
		paidAt = now
	}

	invoice, err := s.invoiceRepo.ApplyPayment(ctx, repository.InstallmentPayment{
		InstallmentID: input.InstallmentID,
		Amount:        money.Round(input.Amount),
		PaidAt:        paidAt,
		Method:        strings.TrimSpace(input.Method),
		AsOf:          now,
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Int64("installment_id", input.InstallmentID).
		Int64("invoice_id", invoice.ID).
		Str("amount", money.Format(input.Amount)).
		Str("status", string(invoice.Status)).
		Msg("installment payment recorded")

	return invoice, nil
}
