package repository

import (
	"context"
	"time"

	"github.com/andy/duesink/internal/domain"
	"github.com/shopspring/decimal"
)

// ClientRepository manages client persistence
type ClientRepository interface {
	Create(ctx context.Context, client *domain.Client) error
	GetByID(ctx context.Context, id int64) (*domain.Client, error)
	GetByName(ctx context.Context, name string) (*domain.Client, error)
	List(ctx context.Context, includeArchived bool) ([]*domain.Client, error)
	Update(ctx context.Context, client *domain.Client) error
	Archive(ctx context.Context, id int64) error
	Unarchive(ctx context.Context, id int64) error
	Exists(ctx context.Context, id int64) (bool, error)
}

// InstallmentPayment is one payment applied to an installment. Settle marks
// the installment paid even when Amount is below what is due (early
// payment discount). AsOf is the clock used to re-consolidate the invoice.
type InstallmentPayment struct {
	InstallmentID int64
	Amount        decimal.Decimal
	PaidAt        time.Time
	Method        string
	Settle        bool
	AsOf          time.Time
}

// InvoiceRepository manages invoices together with their line items and
// installments. Create, Cancel and ApplyPayment are atomic.
type InvoiceRepository interface {
	// Create allocates the invoice number and inserts the invoice, its line
	// items and its installments in one transaction.
	Create(ctx context.Context, invoice *domain.Invoice, numberPrefix string) error
	GetByID(ctx context.Context, id int64) (*domain.Invoice, error)
	GetByNumber(ctx context.Context, number string) (*domain.Invoice, error)
	List(ctx context.Context, clientID *int64, status *domain.InvoiceStatus) ([]*domain.Invoice, error)
	GetLineItems(ctx context.Context, invoiceID int64) ([]*domain.LineItem, error)
	GetInstallments(ctx context.Context, invoiceID int64) ([]*domain.Installment, error)
	GetInstallment(ctx context.Context, id int64) (*domain.Installment, error)
	// Cancel marks the invoice, its installments and their open collections
	// cancelled. It reports false when the invoice was already cancelled.
	Cancel(ctx context.Context, id int64, at time.Time) (bool, error)
	ApplyPayment(ctx context.Context, payment InstallmentPayment) (*domain.Invoice, error)
	GetNextInvoiceNumber(ctx context.Context, prefix string, year int) (string, error)
}

// CollectionFilter narrows a collection listing; nil fields match all.
type CollectionFilter struct {
	ClientID      *int64
	InstallmentID *int64
	Statuses      []domain.CollectionStatus
}

// DispatchRecord is the outcome of one dispatch attempt. Next equals
// Expected when the attempt does not move the state.
type DispatchRecord struct {
	CollectionID int64
	Expected     domain.CollectionStatus
	Next         domain.CollectionStatus
	At           time.Time
	NextRetryAt  *time.Time
	Log          *domain.DeliveryLogEntry
}

// CollectionRepository manages collections and their delivery log. Status
// changes are compare-and-swap on the expected current status.
type CollectionRepository interface {
	Create(ctx context.Context, collection *domain.Collection) error
	GetByID(ctx context.Context, id int64) (*domain.Collection, error)
	List(ctx context.Context, filter CollectionFilter) ([]*domain.Collection, error)
	Transition(ctx context.Context, collection *domain.Collection, expected domain.CollectionStatus) error
	RecordDispatch(ctx context.Context, record DispatchRecord) (*domain.Collection, error)
	IncrementAttempt(ctx context.Context, id int64, nextRetryAt *time.Time, at time.Time) (*domain.Collection, error)
	ListDeliveryLog(ctx context.Context, collectionID int64) ([]*domain.DeliveryLogEntry, error)
	Stats(ctx context.Context, clientID *int64) (*domain.CollectionStats, error)
}

// Settlement confirms a reconciliation: the history entry and payment are
// written in the same transaction as the status change.
type Settlement struct {
	ReconciliationID int64
	At               time.Time
	Payment          InstallmentPayment
	History          *domain.PaymentHistoryEntry
	// Price runs inside the transaction against the installment as stored
	// there, before the payment is applied. It may fill the charges on
	// History and returns whether the payment settles the installment,
	// overriding Payment.Settle.
	Price func(inst *domain.Installment, history *domain.PaymentHistoryEntry) bool
}

// ReconciliationRepository manages reconciliations and payment history
type ReconciliationRepository interface {
	Create(ctx context.Context, rec *domain.Reconciliation) error
	GetByID(ctx context.Context, id int64) (*domain.Reconciliation, error)
	ListByInstallment(ctx context.Context, installmentID int64) ([]*domain.Reconciliation, error)
	List(ctx context.Context, status *domain.ReconciliationStatus) ([]*domain.Reconciliation, error)
	Confirm(ctx context.Context, settlement Settlement) (*domain.Invoice, error)
	Reject(ctx context.Context, id int64, at time.Time) error
	ListPaymentHistory(ctx context.Context, installmentID int64) ([]*domain.PaymentHistoryEntry, error)
}
