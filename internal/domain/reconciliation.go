package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type ReconciliationStatus string

const (
	ReconciliationStatusPending   ReconciliationStatus = "pending"
	ReconciliationStatusConfirmed ReconciliationStatus = "confirmed"
	ReconciliationStatusRejected  ReconciliationStatus = "rejected"
)

// Reconciliation matches money received against an installment. It stays
// pending until an operator confirms or rejects it.
type Reconciliation struct {
	ID            int64
	InstallmentID int64
	InvoiceID     int64
	ClientID      int64
	Amount        decimal.Decimal
	ReceivedAt    time.Time
	Method        string
	Reference     string
	Description   string
	Status        ReconciliationStatus
	ResolvedAt    *time.Time
	CreatedAt     time.Time
}

func (r *Reconciliation) Validate() error {
	if r.InstallmentID <= 0 {
		return NewValidationError("installmentId", r.InstallmentID, "installment is required")
	}
	if !r.Amount.IsPositive() {
		return NewValidationError("amount", r.Amount.String(), "amount must be positive")
	}
	if r.ReceivedAt.IsZero() {
		return NewValidationError("receivedAt", nil, "receipt date is required")
	}
	if strings.TrimSpace(r.Method) == "" {
		return NewValidationError("method", r.Method, "payment method is required")
	}
	return nil
}

// Resolve moves a pending reconciliation to confirmed or rejected.
func (r *Reconciliation) Resolve(next ReconciliationStatus, at time.Time) error {
	if r.Status != ReconciliationStatusPending || next == ReconciliationStatusPending {
		return &InvalidTransitionError{Entity: "reconciliation", ID: r.ID, From: string(r.Status), To: string(next)}
	}
	r.Status = next
	r.ResolvedAt = &at
	return nil
}

// PaymentHistoryEntry is the immutable record written when a payment is
// applied to an installment.
type PaymentHistoryEntry struct {
	ID               int64
	InstallmentID    int64
	InvoiceID        int64
	ClientID         int64
	ReconciliationID *int64
	AmountPaid       decimal.Decimal
	PaidAt           time.Time
	Method           string
	Reference        string
	InterestApplied  decimal.Decimal
	PenaltyApplied   decimal.Decimal
	DiscountApplied  decimal.Decimal
	Notes            string
	CreatedAt        time.Time
}
