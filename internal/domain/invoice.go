package domain

import (
	"strings"
	"time"

	"github.com/andy/duesink/internal/money"
	"github.com/shopspring/decimal"
)

type InvoiceStatus string

const (
	InvoiceStatusPending   InvoiceStatus = "pending"
	InvoiceStatusPartial   InvoiceStatus = "partial"
	InvoiceStatusPaid      InvoiceStatus = "paid"
	InvoiceStatusOverdue   InvoiceStatus = "overdue"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
)

// InstallmentPolicy is how the invoice total is split over time.
type InstallmentPolicy string

const (
	InstallmentPolicySingle      InstallmentPolicy = "single"
	InstallmentPolicyInstallment InstallmentPolicy = "installment"
	InstallmentPolicyRecurring   InstallmentPolicy = "recurring"
)

// InterestPolicy is how interest is added to each installment.
type InterestPolicy string

const (
	InterestPolicySimple   InterestPolicy = "simple"
	InterestPolicyCompound InterestPolicy = "compound"
	InterestPolicyPrice    InterestPolicy = "price"
)

func (p InterestPolicy) Valid() bool {
	switch p {
	case InterestPolicySimple, InterestPolicyCompound, InterestPolicyPrice:
		return true
	}
	return false
}

func (p InstallmentPolicy) Valid() bool {
	switch p {
	case InstallmentPolicySingle, InstallmentPolicyInstallment, InstallmentPolicyRecurring:
		return true
	}
	return false
}

type Invoice struct {
	ID                int64
	Number            string
	ClientID          int64
	Description       string
	IssueDate         time.Time
	DueDate           time.Time
	Total             decimal.Decimal
	Discount          decimal.Decimal
	MonthlyRate       decimal.Decimal // percent per month
	Status            InvoiceStatus   // cached; recomputed on read
	InstallmentPolicy InstallmentPolicy
	InterestPolicy    InterestPolicy
	InstallmentCount  int
	Notes             string
	CreatedAt         time.Time
	UpdatedAt         time.Time

	// Related data (populated by repository)
	LineItems    []*LineItem
	Installments []*Installment
}

type LineItem struct {
	ID          int64
	InvoiceID   int64
	Description string
	Quantity    decimal.Decimal
	UnitAmount  decimal.Decimal
	Total       decimal.Decimal
}

// NewInvoice creates a pending invoice issued now
func NewInvoice(clientID int64, total decimal.Decimal, dueDate time.Time) *Invoice {
	now := time.Now()
	return &Invoice{
		ClientID:          clientID,
		IssueDate:         now,
		DueDate:           dueDate,
		Total:             total,
		Discount:          decimal.Zero,
		MonthlyRate:       decimal.Zero,
		Status:            InvoiceStatusPending,
		InstallmentPolicy: InstallmentPolicySingle,
		InterestPolicy:    InterestPolicyCompound,
		InstallmentCount:  1,
		CreatedAt:         now,
		UpdatedAt:         now,
		LineItems:         make([]*LineItem, 0),
		Installments:      make([]*Installment, 0),
	}
}

// IsCancelled returns true if the invoice was cancelled
func (i *Invoice) IsCancelled() bool {
	return i.Status == InvoiceStatusCancelled
}

// NetTotal is the total after the up-front discount.
func (i *Invoice) NetTotal() decimal.Decimal {
	return i.Total.Sub(i.Discount)
}

// PayableTotal is what the client owes across all live installments,
// interest included. Without loaded installments it falls back to NetTotal.
func (i *Invoice) PayableTotal() decimal.Decimal {
	if len(i.Installments) == 0 {
		return i.NetTotal()
	}
	sum := decimal.Zero
	for _, inst := range i.Installments {
		if inst.Status == InstallmentStatusCancelled {
			continue
		}
		sum = sum.Add(inst.AmountDue())
	}
	return sum
}

// TotalPaid sums payments across installments.
func (i *Invoice) TotalPaid() decimal.Decimal {
	sum := decimal.Zero
	for _, inst := range i.Installments {
		sum = sum.Add(inst.AmountPaid)
	}
	return sum
}

// Outstanding is PayableTotal minus TotalPaid, never negative.
func (i *Invoice) Outstanding() decimal.Decimal {
	out := i.PayableTotal().Sub(i.TotalPaid())
	if out.IsNegative() {
		return decimal.Zero
	}
	return out
}

// Validate returns an error if the invoice is invalid
func (i *Invoice) Validate() error {
	if strings.TrimSpace(i.Number) == "" {
		return NewValidationError("number", i.Number, "invoice number is required")
	}
	if i.ClientID <= 0 {
		return NewValidationError("clientId", i.ClientID, "client ID is required")
	}
	if !i.Total.IsPositive() {
		return NewValidationError("total", i.Total.String(), "total must be positive")
	}
	if i.Discount.IsNegative() {
		return NewValidationError("discount", i.Discount.String(), "discount cannot be negative")
	}
	if i.Discount.GreaterThanOrEqual(i.Total) {
		return NewValidationError("discount", i.Discount.String(), "discount must be less than total")
	}
	if i.MonthlyRate.IsNegative() {
		return NewValidationError("monthlyRate", i.MonthlyRate.String(), "rate cannot be negative")
	}
	if i.InstallmentCount < 1 {
		return NewValidationError("installmentCount", i.InstallmentCount, "at least one installment is required")
	}
	if i.DueDate.IsZero() {
		return NewValidationError("dueDate", nil, "due date is required")
	}
	if !i.InstallmentPolicy.Valid() {
		return NewValidationError("installmentPolicy", i.InstallmentPolicy, "unknown installment policy")
	}
	if !i.InterestPolicy.Valid() {
		return NewValidationError("interestPolicy", i.InterestPolicy, "unknown interest policy")
	}
	return nil
}

// NewLineItem computes the line total from quantity and unit amount
func NewLineItem(description string, quantity, unitAmount decimal.Decimal) *LineItem {
	return &LineItem{
		Description: strings.TrimSpace(description),
		Quantity:    quantity,
		UnitAmount:  unitAmount,
		Total:       money.Round(quantity.Mul(unitAmount)),
	}
}

func (li *LineItem) Validate() error {
	if li.Description == "" {
		return NewValidationError("items.description", li.Description, "description is required")
	}
	if !li.Quantity.IsPositive() {
		return NewValidationError("items.quantity", li.Quantity.String(), "quantity must be positive")
	}
	if li.UnitAmount.IsNegative() {
		return NewValidationError("items.unitAmount", li.UnitAmount.String(), "unit amount cannot be negative")
	}
	if !li.Total.Equal(money.Round(li.Quantity.Mul(li.UnitAmount))) {
		return NewValidationError("items.total", li.Total.String(), "line total must equal quantity times unit amount")
	}
	return nil
}
