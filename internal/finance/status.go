package finance

import (
	"time"

	"github.com/andy/duesink/internal/domain"
	"github.com/shopspring/decimal"
)

// ConsolidateInput is everything the invoice status depends on.
type ConsolidateInput struct {
	Cancelled    bool
	Installments []*domain.Installment
	TotalPaid    decimal.Decimal
	// InvoiceTotal is the payable total: principal plus scheduled interest
	// less discount, as returned by (*domain.Invoice).PayableTotal.
	InvoiceTotal decimal.Decimal
	AsOf         time.Time
}

// Consolidate derives the invoice status from its installments and the
// cumulative amount paid. It is pure and idempotent.
//
// Cancelled wins over everything. With nothing paid the invoice is overdue
// when any unsettled installment is past due, pending otherwise. It is paid
// once payments cover the payable InvoiceTotal, or once every non-cancelled
// installment has status paid even if payments fall short of that total (a
// settling payment can close an installment below its amount). Anything in
// between is partial.
func Consolidate(in ConsolidateInput) domain.InvoiceStatus {
	if in.Cancelled {
		return domain.InvoiceStatusCancelled
	}

	if !in.TotalPaid.IsPositive() {
		for _, inst := range in.Installments {
			if inst.IsOverdueAt(in.AsOf) {
				return domain.InvoiceStatusOverdue
			}
		}
		return domain.InvoiceStatusPending
	}

	if in.TotalPaid.GreaterThanOrEqual(in.InvoiceTotal) || allSettled(in.Installments) {
		return domain.InvoiceStatusPaid
	}
	return domain.InvoiceStatusPartial
}

// ConsolidateInvoice runs Consolidate over an invoice with its
// installments loaded.
func ConsolidateInvoice(inv *domain.Invoice, asOf time.Time) domain.InvoiceStatus {
	return Consolidate(ConsolidateInput{
		Cancelled:    inv.IsCancelled(),
		Installments: inv.Installments,
		TotalPaid:    inv.TotalPaid(),
		InvoiceTotal: inv.PayableTotal(),
		AsOf:         asOf,
	})
}

func allSettled(installments []*domain.Installment) bool {
	live := 0
	for _, inst := range installments {
		switch inst.Status {
		case domain.InstallmentStatusCancelled:
			continue
		case domain.InstallmentStatusPaid:
			live++
		default:
			return false
		}
	}
	return live > 0
}
