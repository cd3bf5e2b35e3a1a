package service

import (
	"context"
	"time"

	"github.com/andy/duesink/internal/domain"
	"github.com/andy/duesink/internal/finance"
	"github.com/andy/duesink/internal/repository"
)

// mock implementations

type mockInvoiceRepo struct {
	invoices     map[int64]*domain.Invoice
	installments map[int64]*domain.Installment
	created      *domain.Invoice
	prefix       string
	cancelled    map[int64]bool
	payments     []repository.InstallmentPayment
	createErr    error
}

func newMockInvoiceRepo() *mockInvoiceRepo {
	return &mockInvoiceRepo{
		invoices:     make(map[int64]*domain.Invoice),
		installments: make(map[int64]*domain.Installment),
		cancelled:    make(map[int64]bool),
	}
}

// add stores an invoice and indexes its installments.
func (m *mockInvoiceRepo) add(inv *domain.Invoice) {
	m.invoices[inv.ID] = inv
	for _, inst := range inv.Installments {
		inst.InvoiceID = inv.ID
		m.installments[inst.ID] = inst
	}
}

func (m *mockInvoiceRepo) Create(ctx context.Context, invoice *domain.Invoice, numberPrefix string) error {
	if m.createErr != nil {
		return m.createErr
	}
	invoice.ID = int64(len(m.invoices) + 1)
	invoice.Number = numberPrefix + "-2026-001"
	m.prefix = numberPrefix
	m.created = invoice
	for i, inst := range invoice.Installments {
		inst.ID = invoice.ID*100 + int64(i+1)
	}
	m.add(invoice)
	return nil
}

func (m *mockInvoiceRepo) GetByID(ctx context.Context, id int64) (*domain.Invoice, error) {
	if inv, ok := m.invoices[id]; ok {
		return inv, nil
	}
	return nil, &domain.NotFoundError{Entity: "invoice", ID: id}
}

func (m *mockInvoiceRepo) GetByNumber(ctx context.Context, number string) (*domain.Invoice, error) {
	for _, inv := range m.invoices {
		if inv.Number == number {
			return inv, nil
		}
	}
	return nil, &domain.NotFoundError{Entity: "invoice", ID: number}
}

func (m *mockInvoiceRepo) List(ctx context.Context, clientID *int64, status *domain.InvoiceStatus) ([]*domain.Invoice, error) {
	out := make([]*domain.Invoice, 0)
	for _, inv := range m.invoices {
		if clientID != nil && inv.ClientID != *clientID {
			continue
		}
		out = append(out, inv)
	}
	return out, nil
}

func (m *mockInvoiceRepo) GetLineItems(ctx context.Context, invoiceID int64) ([]*domain.LineItem, error) {
	inv, err := m.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	return inv.LineItems, nil
}

func (m *mockInvoiceRepo) GetInstallments(ctx context.Context, invoiceID int64) ([]*domain.Installment, error) {
	inv, err := m.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	return inv.Installments, nil
}

func (m *mockInvoiceRepo) GetInstallment(ctx context.Context, id int64) (*domain.Installment, error) {
	if inst, ok := m.installments[id]; ok {
		return inst, nil
	}
	return nil, &domain.NotFoundError{Entity: "installment", ID: id}
}

func (m *mockInvoiceRepo) Cancel(ctx context.Context, id int64, at time.Time) (bool, error) {
	inv, err := m.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	if inv.IsCancelled() {
		return false, nil
	}
	inv.Status = domain.InvoiceStatusCancelled
	for _, inst := range inv.Installments {
		inst.Status = domain.InstallmentStatusCancelled
	}
	m.cancelled[id] = true
	return true, nil
}

func (m *mockInvoiceRepo) ApplyPayment(ctx context.Context, p repository.InstallmentPayment) (*domain.Invoice, error) {
	m.payments = append(m.payments, p)
	inst, err := m.GetInstallment(ctx, p.InstallmentID)
	if err != nil {
		return nil, err
	}
	inv := m.invoices[inst.InvoiceID]
	if inv.IsCancelled() {
		return nil, domain.NewValidationError("installmentId", inst.ID, "invoice is cancelled")
	}
	if err := inst.ApplyPayment(p.Amount, p.PaidAt, p.Method, p.Settle); err != nil {
		return nil, err
	}
	inv.Status = finance.ConsolidateInvoice(inv, p.AsOf)
	return inv, nil
}

func (m *mockInvoiceRepo) GetNextInvoiceNumber(ctx context.Context, prefix string, year int) (string, error) {
	return prefix + "-2026-001", nil
}

type mockClientRepo struct {
	clients map[int64]*domain.Client
}

func newMockClientRepo(clients ...*domain.Client) *mockClientRepo {
	m := &mockClientRepo{clients: make(map[int64]*domain.Client)}
	for _, c := range clients {
		m.clients[c.ID] = c
	}
	return m
}

func (m *mockClientRepo) Create(ctx context.Context, client *domain.Client) error {
	client.ID = int64(len(m.clients) + 1)
	m.clients[client.ID] = client
	return nil
}
func (m *mockClientRepo) GetByID(ctx context.Context, id int64) (*domain.Client, error) {
	if c, ok := m.clients[id]; ok {
		return c, nil
	}
	return nil, &domain.NotFoundError{Entity: "client", ID: id}
}
func (m *mockClientRepo) GetByName(ctx context.Context, name string) (*domain.Client, error) {
	for _, c := range m.clients {
		if c.Name == name {
			return c, nil
		}
	}
	return nil, &domain.NotFoundError{Entity: "client", ID: name}
}
func (m *mockClientRepo) List(ctx context.Context, includeArchived bool) ([]*domain.Client, error) {
	return nil, nil
}
func (m *mockClientRepo) Update(ctx context.Context, client *domain.Client) error { return nil }
func (m *mockClientRepo) Archive(ctx context.Context, id int64) error             { return nil }
func (m *mockClientRepo) Unarchive(ctx context.Context, id int64) error           { return nil }
func (m *mockClientRepo) Exists(ctx context.Context, id int64) (bool, error) {
	_, ok := m.clients[id]
	return ok, nil
}

type mockCollectionRepo struct {
	collections map[int64]*domain.Collection
	dispatches  []repository.DispatchRecord
	filters     []repository.CollectionFilter
}

func newMockCollectionRepo() *mockCollectionRepo {
	return &mockCollectionRepo{collections: make(map[int64]*domain.Collection)}
}

func (m *mockCollectionRepo) Create(ctx context.Context, c *domain.Collection) error {
	c.ID = int64(len(m.collections) + 1)
	m.collections[c.ID] = c
	return nil
}

// GetByID hands out a copy so stale-state races can be simulated.
func (m *mockCollectionRepo) GetByID(ctx context.Context, id int64) (*domain.Collection, error) {
	c, ok := m.collections[id]
	if !ok {
		return nil, &domain.NotFoundError{Entity: "collection", ID: id}
	}
	cp := *c
	return &cp, nil
}

func (m *mockCollectionRepo) List(ctx context.Context, filter repository.CollectionFilter) ([]*domain.Collection, error) {
	m.filters = append(m.filters, filter)
	return nil, nil
}

func (m *mockCollectionRepo) Transition(ctx context.Context, c *domain.Collection, expected domain.CollectionStatus) error {
	stored := m.collections[c.ID]
	if stored.Status != expected {
		return &domain.InvalidTransitionError{Entity: "collection", ID: c.ID, From: string(stored.Status), To: string(c.Status)}
	}
	cp := *c
	m.collections[c.ID] = &cp
	return nil
}

func (m *mockCollectionRepo) RecordDispatch(ctx context.Context, rec repository.DispatchRecord) (*domain.Collection, error) {
	m.dispatches = append(m.dispatches, rec)
	c := m.collections[rec.CollectionID]
	if c.Status != rec.Expected {
		return nil, &domain.InvalidTransitionError{Entity: "collection", ID: c.ID, From: string(c.Status), To: string(rec.Next)}
	}
	if rec.Next != rec.Expected {
		if err := c.Transition(rec.Next, rec.At); err != nil {
			return nil, err
		}
	}
	c.NextRetryAt = rec.NextRetryAt
	c.Attempts++
	if rec.Log != nil {
		rec.Log.CollectionID = c.ID
		rec.Log.Attempt = c.Attempts
	}
	cp := *c
	return &cp, nil
}

func (m *mockCollectionRepo) IncrementAttempt(ctx context.Context, id int64, nextRetryAt *time.Time, at time.Time) (*domain.Collection, error) {
	c := m.collections[id]
	if c.Status.IsTerminal() {
		return nil, &domain.InvalidTransitionError{Entity: "collection", ID: id, From: string(c.Status), To: string(c.Status)}
	}
	c.Attempts++
	c.NextRetryAt = nextRetryAt
	c.UpdatedAt = at
	cp := *c
	return &cp, nil
}

func (m *mockCollectionRepo) ListDeliveryLog(ctx context.Context, collectionID int64) ([]*domain.DeliveryLogEntry, error) {
	return nil, nil
}

func (m *mockCollectionRepo) Stats(ctx context.Context, clientID *int64) (*domain.CollectionStats, error) {
	stats := domain.NewCollectionStats()
	for _, c := range m.collections {
		if clientID != nil && c.ClientID != *clientID {
			continue
		}
		stats.Total++
		stats.ByStatus[c.Status]++
	}
	return stats, nil
}

type mockReconciliationRepo struct {
	recs        map[int64]*domain.Reconciliation
	settlements []repository.Settlement
	invoices    *mockInvoiceRepo
	// beforeConfirm runs as Confirm starts, standing in for a writer that
	// commits between the service's reads and the confirming transaction.
	beforeConfirm func()
}

func newMockReconciliationRepo(invoices *mockInvoiceRepo) *mockReconciliationRepo {
	return &mockReconciliationRepo{recs: make(map[int64]*domain.Reconciliation), invoices: invoices}
}

func (m *mockReconciliationRepo) Create(ctx context.Context, rec *domain.Reconciliation) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	rec.ID = int64(len(m.recs) + 1)
	m.recs[rec.ID] = rec
	return nil
}

func (m *mockReconciliationRepo) GetByID(ctx context.Context, id int64) (*domain.Reconciliation, error) {
	rec, ok := m.recs[id]
	if !ok {
		return nil, &domain.NotFoundError{Entity: "reconciliation", ID: id}
	}
	cp := *rec
	return &cp, nil
}

func (m *mockReconciliationRepo) ListByInstallment(ctx context.Context, installmentID int64) ([]*domain.Reconciliation, error) {
	return nil, nil
}

func (m *mockReconciliationRepo) List(ctx context.Context, status *domain.ReconciliationStatus) ([]*domain.Reconciliation, error) {
	return nil, nil
}

func (m *mockReconciliationRepo) Confirm(ctx context.Context, s repository.Settlement) (*domain.Invoice, error) {
	if m.beforeConfirm != nil {
		m.beforeConfirm()
	}
	if err := m.recs[s.ReconciliationID].Resolve(domain.ReconciliationStatusConfirmed, s.At); err != nil {
		return nil, err
	}
	if s.Price != nil {
		inst, err := m.invoices.GetInstallment(ctx, s.Payment.InstallmentID)
		if err != nil {
			return nil, err
		}
		s.Payment.Settle = s.Price(inst, s.History)
	}
	m.settlements = append(m.settlements, s)
	return m.invoices.ApplyPayment(ctx, s.Payment)
}

func (m *mockReconciliationRepo) Reject(ctx context.Context, id int64, at time.Time) error {
	return m.recs[id].Resolve(domain.ReconciliationStatusRejected, at)
}

func (m *mockReconciliationRepo) ListPaymentHistory(ctx context.Context, installmentID int64) ([]*domain.PaymentHistoryEntry, error) {
	return nil, nil
}
