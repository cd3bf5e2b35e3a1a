package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/andy/duesink/internal/db"
	"github.com/andy/duesink/internal/domain"
)

// ReconciliationRepo is a SQLite implementation of ReconciliationRepository
type ReconciliationRepo struct {
	db *db.DB
}

// NewReconciliationRepo creates a new ReconciliationRepo
func NewReconciliationRepo(database *db.DB) *ReconciliationRepo {
	return &ReconciliationRepo{db: database}
}

const reconciliationColumns = `id, installment_id, invoice_id, client_id, amount, received_at,
	method, reference, description, status, resolved_at, created_at`

// Create inserts a pending reconciliation
func (r *ReconciliationRepo) Create(ctx context.Context, rec *domain.Reconciliation) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO reconciliations (
			installment_id, invoice_id, client_id, amount, received_at,
			method, reference, description, status, resolved_at, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		rec.InstallmentID,
		rec.InvoiceID,
		rec.ClientID,
		formatAmount(rec.Amount),
		formatTime(rec.ReceivedAt),
		rec.Method,
		rec.Reference,
		rec.Description,
		string(rec.Status),
		nullTime(rec.ResolvedAt),
		formatTime(rec.CreatedAt),
	)
	if err != nil {
		return storeErr("create reconciliation", "reconciliation", nil, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return storeErr("get reconciliation ID", "reconciliation", nil, err)
	}

	rec.ID = id
	return nil
}

// GetByID retrieves a reconciliation by ID
func (r *ReconciliationRepo) GetByID(ctx context.Context, id int64) (*domain.Reconciliation, error) {
	query := `SELECT ` + reconciliationColumns + ` FROM reconciliations WHERE id = ?`

	rec, err := scanReconciliation(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, storeErr("get reconciliation", "reconciliation", id, err)
	}
	return rec, nil
}

// ListByInstallment returns an installment's reconciliations, newest first
func (r *ReconciliationRepo) ListByInstallment(ctx context.Context, installmentID int64) ([]*domain.Reconciliation, error) {
	query := `SELECT ` + reconciliationColumns + ` FROM reconciliations WHERE installment_id = ? ORDER BY id DESC`
	return r.list(ctx, query, installmentID)
}

// List returns reconciliations, optionally filtered by status, newest first
func (r *ReconciliationRepo) List(ctx context.Context, status *domain.ReconciliationStatus) ([]*domain.Reconciliation, error) {
	if status != nil {
		query := `SELECT ` + reconciliationColumns + ` FROM reconciliations WHERE status = ? ORDER BY id DESC`
		return r.list(ctx, query, string(*status))
	}
	query := `SELECT ` + reconciliationColumns + ` FROM reconciliations ORDER BY id DESC`
	return r.list(ctx, query)
}

func (r *ReconciliationRepo) list(ctx context.Context, query string, args ...interface{}) ([]*domain.Reconciliation, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr("list reconciliations", "reconciliation", nil, err)
	}
	defer rows.Close()

	recs := make([]*domain.Reconciliation, 0)
	for rows.Next() {
		rec, err := scanReconciliation(rows)
		if err != nil {
			return nil, storeErr("scan reconciliation", "reconciliation", nil, err)
		}
		recs = append(recs, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate reconciliations", "reconciliation", nil, err)
	}

	return recs, nil
}

// Confirm moves a pending reconciliation to confirmed, applies the payment
// to the installment and writes the payment history entry, re-consolidating
// the invoice. Settlement.Price sees the installment read inside the same
// transaction. Everything commits together or not at all.
func (r *ReconciliationRepo) Confirm(ctx context.Context, s Settlement) (*domain.Invoice, error) {
	var invoice *domain.Invoice
	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		if err := resolveReconciliation(ctx, tx, s.ReconciliationID, domain.ReconciliationStatusConfirmed, s.At); err != nil {
			return err
		}

		var price func(*domain.Installment) bool
		if s.Price != nil {
			price = func(inst *domain.Installment) bool {
				return s.Price(inst, s.History)
			}
		}

		var err error
		if invoice, err = applyInstallmentPayment(ctx, tx, s.Payment, price); err != nil {
			return err
		}

		if s.History != nil {
			id := s.ReconciliationID
			s.History.ReconciliationID = &id
			if err := insertPaymentHistory(ctx, tx, s.History); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, storeErr("confirm reconciliation", "reconciliation", s.ReconciliationID, err)
	}
	return invoice, nil
}

// Reject moves a pending reconciliation to rejected
func (r *ReconciliationRepo) Reject(ctx context.Context, id int64, at time.Time) error {
	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		return resolveReconciliation(ctx, tx, id, domain.ReconciliationStatusRejected, at)
	})
	return storeErr("reject reconciliation", "reconciliation", id, err)
}

// ListPaymentHistory returns confirmed payments for an installment, oldest first
func (r *ReconciliationRepo) ListPaymentHistory(ctx context.Context, installmentID int64) ([]*domain.PaymentHistoryEntry, error) {
	query := `
		SELECT id, installment_id, invoice_id, client_id, reconciliation_id, amount_paid,
		       paid_at, method, reference, interest_applied, penalty_applied,
		       discount_applied, notes, created_at
		FROM payment_history
		WHERE installment_id = ?
		ORDER BY paid_at, id
	`

	rows, err := r.db.QueryContext(ctx, query, installmentID)
	if err != nil {
		return nil, storeErr("list payment history", "installment", installmentID, err)
	}
	defer rows.Close()

	entries := make([]*domain.PaymentHistoryEntry, 0)
	for rows.Next() {
		e := &domain.PaymentHistoryEntry{}
		var reconciliationID sql.NullInt64
		var paidAt, createdAt string
		var amounts amountScanner

		err := rows.Scan(
			&e.ID,
			&e.InstallmentID,
			&e.InvoiceID,
			&e.ClientID,
			&reconciliationID,
			amounts.add("amount_paid", &e.AmountPaid),
			&paidAt,
			&e.Method,
			&e.Reference,
			amounts.add("interest_applied", &e.InterestApplied),
			amounts.add("penalty_applied", &e.PenaltyApplied),
			amounts.add("discount_applied", &e.DiscountApplied),
			&e.Notes,
			&createdAt,
		)
		if err != nil {
			return nil, storeErr("scan payment history", "payment history", nil, err)
		}
		if err := amounts.parse(); err != nil {
			return nil, storeErr("scan payment history", "payment history", e.ID, err)
		}

		if reconciliationID.Valid {
			id := reconciliationID.Int64
			e.ReconciliationID = &id
		}
		if e.PaidAt, err = parseTime(paidAt); err != nil {
			return nil, storeErr("scan payment history", "payment history", e.ID, fmt.Errorf("failed to parse paid_at: %w", err))
		}
		if e.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, storeErr("scan payment history", "payment history", e.ID, fmt.Errorf("failed to parse created_at: %w", err))
		}

		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate payment history", "payment history", nil, err)
	}

	return entries, nil
}

// resolveReconciliation is a compare-and-swap from pending.
func resolveReconciliation(ctx context.Context, q dbtx, id int64, next domain.ReconciliationStatus, at time.Time) error {
	result, err := q.ExecContext(ctx, `
		UPDATE reconciliations
		SET status = ?, resolved_at = ?
		WHERE id = ? AND status = ?
	`, string(next), formatTime(at), id, string(domain.ReconciliationStatusPending))
	if err != nil {
		return fmt.Errorf("failed to update reconciliation: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 1 {
		return nil
	}

	var current string
	if err := q.QueryRowContext(ctx, `SELECT status FROM reconciliations WHERE id = ?`, id).Scan(&current); err != nil {
		return err
	}
	return &domain.InvalidTransitionError{Entity: "reconciliation", ID: id, From: current, To: string(next)}
}

func insertPaymentHistory(ctx context.Context, q dbtx, e *domain.PaymentHistoryEntry) error {
	query := `
		INSERT INTO payment_history (
			installment_id, invoice_id, client_id, reconciliation_id, amount_paid,
			paid_at, method, reference, interest_applied, penalty_applied,
			discount_applied, notes, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var reconciliationID interface{}
	if e.ReconciliationID != nil {
		reconciliationID = *e.ReconciliationID
	}

	result, err := q.ExecContext(ctx, query,
		e.InstallmentID,
		e.InvoiceID,
		e.ClientID,
		reconciliationID,
		formatAmount(e.AmountPaid),
		formatTime(e.PaidAt),
		e.Method,
		e.Reference,
		formatAmount(e.InterestApplied),
		formatAmount(e.PenaltyApplied),
		formatAmount(e.DiscountApplied),
		e.Notes,
		formatTime(e.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert payment history: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get payment history ID: %w", err)
	}
	e.ID = id
	return nil
}

func scanReconciliation(row rowScanner) (*domain.Reconciliation, error) {
	rec := &domain.Reconciliation{}
	var receivedAt, status, createdAt string
	var resolvedAt sql.NullString
	var amounts amountScanner

	err := row.Scan(
		&rec.ID,
		&rec.InstallmentID,
		&rec.InvoiceID,
		&rec.ClientID,
		amounts.add("amount", &rec.Amount),
		&receivedAt,
		&rec.Method,
		&rec.Reference,
		&rec.Description,
		&status,
		&resolvedAt,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	if err := amounts.parse(); err != nil {
		return nil, err
	}
	rec.Status = domain.ReconciliationStatus(status)

	if rec.ReceivedAt, err = parseTime(receivedAt); err != nil {
		return nil, fmt.Errorf("failed to parse received_at: %w", err)
	}
	if rec.ResolvedAt, err = parseNullTime(resolvedAt); err != nil {
		return nil, fmt.Errorf("failed to parse resolved_at: %w", err)
	}
	if rec.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}

	return rec, nil
}
