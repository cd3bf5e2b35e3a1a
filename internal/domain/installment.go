package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type InstallmentStatus string

const (
	InstallmentStatusPending   InstallmentStatus = "pending"
	InstallmentStatusPaid      InstallmentStatus = "paid"
	InstallmentStatusOverdue   InstallmentStatus = "overdue"
	InstallmentStatusCancelled InstallmentStatus = "cancelled"
)

type Installment struct {
	ID            int64
	InvoiceID     int64
	Number        int // 1-based
	DueDate       time.Time
	Principal     decimal.Decimal
	Interest      decimal.Decimal
	AmountPaid    decimal.Decimal
	PaidAt        *time.Time
	PaymentMethod string
	Status        InstallmentStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// AmountDue is principal plus scheduled interest.
func (i *Installment) AmountDue() decimal.Decimal {
	return i.Principal.Add(i.Interest)
}

// Outstanding is what remains to be paid, never negative.
func (i *Installment) Outstanding() decimal.Decimal {
	out := i.AmountDue().Sub(i.AmountPaid)
	if out.IsNegative() {
		return decimal.Zero
	}
	return out
}

// IsUnsettled reports whether the installment still expects money.
func (i *Installment) IsUnsettled() bool {
	if i.Status != InstallmentStatusPending && i.Status != InstallmentStatusOverdue {
		return false
	}
	return i.AmountPaid.LessThan(i.AmountDue())
}

// IsOverdueAt reports whether an unsettled installment is past due at asOf.
func (i *Installment) IsOverdueAt(asOf time.Time) bool {
	return i.IsUnsettled() && i.DueDate.Before(asOf)
}

// StatusAt derives the displayed status at asOf without touching Status.
func (i *Installment) StatusAt(asOf time.Time) InstallmentStatus {
	switch i.Status {
	case InstallmentStatusPaid, InstallmentStatusCancelled:
		return i.Status
	}
	if i.IsOverdueAt(asOf) {
		return InstallmentStatusOverdue
	}
	return InstallmentStatusPending
}

// ApplyPayment adds amount to what was paid. The installment becomes paid
// once the paid amount covers AmountDue, or immediately when settle is set.
func (i *Installment) ApplyPayment(amount decimal.Decimal, paidAt time.Time, method string, settle bool) error {
	if i.Status == InstallmentStatusCancelled {
		return NewValidationError("installmentId", i.ID, "installment is cancelled")
	}
	if !amount.IsPositive() {
		return NewValidationError("amount", amount.String(), "payment must be positive")
	}

	i.AmountPaid = i.AmountPaid.Add(amount)
	i.PaidAt = &paidAt
	if method != "" {
		i.PaymentMethod = method
	}
	if settle || i.AmountPaid.GreaterThanOrEqual(i.AmountDue()) {
		i.Status = InstallmentStatusPaid
	} else {
		i.Status = i.StatusAt(paidAt)
	}
	i.UpdatedAt = paidAt
	return nil
}
