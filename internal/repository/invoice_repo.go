package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/andy/duesink/internal/db"
	"github.com/andy/duesink/internal/domain"
	"github.com/andy/duesink/internal/finance"
)

// InvoiceRepo is a SQLite implementation of InvoiceRepository
type InvoiceRepo struct {
	db *db.DB
}

// NewInvoiceRepo creates a new InvoiceRepo
func NewInvoiceRepo(database *db.DB) *InvoiceRepo {
	return &InvoiceRepo{db: database}
}

const invoiceColumns = `id, invoice_number, client_id, description, issue_date, due_date,
	total, discount, monthly_rate, status, installment_policy, interest_policy,
	installment_count, notes, created_at, updated_at`

const installmentColumns = `id, invoice_id, number, due_date, principal, interest,
	amount_paid, paid_at, payment_method, status, created_at, updated_at`

// Create inserts the invoice, its line items and its installments as one
// unit. The invoice number is allocated inside the same transaction.
func (r *InvoiceRepo) Create(ctx context.Context, invoice *domain.Invoice, numberPrefix string) error {
	if len(invoice.LineItems) == 0 {
		return domain.NewValidationError("items", nil, "at least one line item is required")
	}
	if len(invoice.Installments) != invoice.InstallmentCount {
		return domain.NewValidationError("installments", len(invoice.Installments), "installments do not match installment count")
	}
	for _, item := range invoice.LineItems {
		if err := item.Validate(); err != nil {
			return err
		}
	}

	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		number, err := nextInvoiceNumber(ctx, tx, numberPrefix, invoice.IssueDate.Year())
		if err != nil {
			return err
		}
		invoice.Number = number

		if err := invoice.Validate(); err != nil {
			return err
		}

		if err := insertInvoice(ctx, tx, invoice); err != nil {
			return err
		}
		for _, item := range invoice.LineItems {
			item.InvoiceID = invoice.ID
			if err := insertLineItem(ctx, tx, item); err != nil {
				return err
			}
		}
		for _, inst := range invoice.Installments {
			inst.InvoiceID = invoice.ID
			if err := insertInstallment(ctx, tx, inst); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		invoice.ID = 0
		invoice.Number = ""
		return storeErr("create invoice", "invoice", nil, err)
	}
	return nil
}

func insertInvoice(ctx context.Context, q dbtx, invoice *domain.Invoice) error {
	query := `
		INSERT INTO invoices (
			invoice_number, client_id, description, issue_date, due_date,
			total, discount, monthly_rate, status, installment_policy,
			interest_policy, installment_count, notes, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := q.ExecContext(ctx, query,
		invoice.Number,
		invoice.ClientID,
		invoice.Description,
		formatTime(invoice.IssueDate),
		formatTime(invoice.DueDate),
		formatAmount(invoice.Total),
		formatAmount(invoice.Discount),
		invoice.MonthlyRate.String(),
		string(invoice.Status),
		string(invoice.InstallmentPolicy),
		string(invoice.InterestPolicy),
		invoice.InstallmentCount,
		invoice.Notes,
		formatTime(invoice.CreatedAt),
		formatTime(invoice.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert invoice: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get invoice ID: %w", err)
	}
	invoice.ID = id
	return nil
}

func insertLineItem(ctx context.Context, q dbtx, item *domain.LineItem) error {
	query := `
		INSERT INTO invoice_line_items (invoice_id, description, quantity, unit_amount, total)
		VALUES (?, ?, ?, ?, ?)
	`

	result, err := q.ExecContext(ctx, query,
		item.InvoiceID,
		item.Description,
		item.Quantity.String(),
		formatAmount(item.UnitAmount),
		formatAmount(item.Total),
	)
	if err != nil {
		return fmt.Errorf("failed to insert line item: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get line item ID: %w", err)
	}
	item.ID = id
	return nil
}

func insertInstallment(ctx context.Context, q dbtx, inst *domain.Installment) error {
	query := `
		INSERT INTO installments (
			invoice_id, number, due_date, principal, interest, amount_paid,
			paid_at, payment_method, status, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := q.ExecContext(ctx, query,
		inst.InvoiceID,
		inst.Number,
		formatTime(inst.DueDate),
		formatAmount(inst.Principal),
		formatAmount(inst.Interest),
		formatAmount(inst.AmountPaid),
		nullTime(inst.PaidAt),
		inst.PaymentMethod,
		string(inst.Status),
		formatTime(inst.CreatedAt),
		formatTime(inst.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert installment %d: %w", inst.Number, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get installment ID: %w", err)
	}
	inst.ID = id
	return nil
}

// GetByID retrieves an invoice with its line items and installments
func (r *InvoiceRepo) GetByID(ctx context.Context, id int64) (*domain.Invoice, error) {
	invoice, err := loadInvoice(ctx, r.db, "id = ?", id)
	if err != nil {
		return nil, storeErr("get invoice", "invoice", id, err)
	}
	if err := r.loadRelated(ctx, invoice); err != nil {
		return nil, err
	}
	return invoice, nil
}

// GetByNumber retrieves an invoice by invoice number
func (r *InvoiceRepo) GetByNumber(ctx context.Context, number string) (*domain.Invoice, error) {
	invoice, err := loadInvoice(ctx, r.db, "invoice_number = ?", number)
	if err != nil {
		return nil, storeErr("get invoice", "invoice", number, err)
	}
	if err := r.loadRelated(ctx, invoice); err != nil {
		return nil, err
	}
	return invoice, nil
}

func (r *InvoiceRepo) loadRelated(ctx context.Context, invoice *domain.Invoice) error {
	var err error
	if invoice.LineItems, err = r.GetLineItems(ctx, invoice.ID); err != nil {
		return err
	}
	if invoice.Installments, err = r.GetInstallments(ctx, invoice.ID); err != nil {
		return err
	}
	return nil
}

// List retrieves invoices with optional filters. Installments are loaded so
// callers can recompute status; line items are not.
func (r *InvoiceRepo) List(ctx context.Context, clientID *int64, status *domain.InvoiceStatus) ([]*domain.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE 1=1`
	args := make([]interface{}, 0)

	if clientID != nil {
		query += " AND client_id = ?"
		args = append(args, *clientID)
	}

	if status != nil {
		query += " AND status = ?"
		args = append(args, string(*status))
	}

	query += " ORDER BY created_at DESC, id DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr("list invoices", "invoice", nil, err)
	}

	invoices := make([]*domain.Invoice, 0)
	for rows.Next() {
		invoice, err := scanInvoice(rows)
		if err != nil {
			rows.Close()
			return nil, storeErr("scan invoice", "invoice", nil, err)
		}
		invoices = append(invoices, invoice)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, storeErr("iterate invoices", "invoice", nil, err)
	}
	rows.Close()

	for _, invoice := range invoices {
		if invoice.Installments, err = r.GetInstallments(ctx, invoice.ID); err != nil {
			return nil, err
		}
	}

	return invoices, nil
}

// GetLineItems retrieves all line items for an invoice
func (r *InvoiceRepo) GetLineItems(ctx context.Context, invoiceID int64) ([]*domain.LineItem, error) {
	query := `
		SELECT id, invoice_id, description, quantity, unit_amount, total
		FROM invoice_line_items
		WHERE invoice_id = ?
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query, invoiceID)
	if err != nil {
		return nil, storeErr("get line items", "invoice", invoiceID, err)
	}
	defer rows.Close()

	items := make([]*domain.LineItem, 0)
	for rows.Next() {
		item := &domain.LineItem{}
		var amounts amountScanner

		err := rows.Scan(
			&item.ID,
			&item.InvoiceID,
			&item.Description,
			amounts.add("quantity", &item.Quantity),
			amounts.add("unit_amount", &item.UnitAmount),
			amounts.add("total", &item.Total),
		)
		if err != nil {
			return nil, storeErr("scan line item", "line item", nil, err)
		}
		if err := amounts.parse(); err != nil {
			return nil, storeErr("scan line item", "line item", item.ID, err)
		}

		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate line items", "line item", nil, err)
	}

	return items, nil
}

// GetInstallments retrieves installments for an invoice ordered by number
func (r *InvoiceRepo) GetInstallments(ctx context.Context, invoiceID int64) ([]*domain.Installment, error) {
	installments, err := loadInstallments(ctx, r.db, invoiceID)
	if err != nil {
		return nil, storeErr("get installments", "invoice", invoiceID, err)
	}
	return installments, nil
}

// GetInstallment retrieves one installment by ID
func (r *InvoiceRepo) GetInstallment(ctx context.Context, id int64) (*domain.Installment, error) {
	inst, err := loadInstallment(ctx, r.db, id)
	if err != nil {
		return nil, storeErr("get installment", "installment", id, err)
	}
	return inst, nil
}

// Cancel cancels the invoice and everything hanging off it. Cancelling an
// already-cancelled invoice changes nothing and reports false.
func (r *InvoiceRepo) Cancel(ctx context.Context, id int64, at time.Time) (bool, error) {
	changed := false
	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		var status string
		err := tx.QueryRowContext(ctx, `SELECT status FROM invoices WHERE id = ?`, id).Scan(&status)
		if err != nil {
			return err
		}
		if domain.InvoiceStatus(status) == domain.InvoiceStatusCancelled {
			return nil
		}

		stamp := formatTime(at)
		if _, err := tx.ExecContext(ctx,
			`UPDATE invoices SET status = ?, updated_at = ? WHERE id = ?`,
			string(domain.InvoiceStatusCancelled), stamp, id,
		); err != nil {
			return fmt.Errorf("failed to cancel invoice: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE installments SET status = ?, updated_at = ? WHERE invoice_id = ?`,
			string(domain.InstallmentStatusCancelled), stamp, id,
		); err != nil {
			return fmt.Errorf("failed to cancel installments: %w", err)
		}
		if err := cancelOpenCollections(ctx, tx, id, at); err != nil {
			return err
		}

		changed = true
		return nil
	})
	if err != nil {
		return false, storeErr("cancel invoice", "invoice", id, err)
	}
	return changed, nil
}

// ApplyPayment records a payment against an installment and re-consolidates
// the owning invoice in the same transaction.
func (r *InvoiceRepo) ApplyPayment(ctx context.Context, payment InstallmentPayment) (*domain.Invoice, error) {
	var invoice *domain.Invoice
	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		var err error
		invoice, err = applyInstallmentPayment(ctx, tx, payment, nil)
		return err
	})
	if err != nil {
		return nil, storeErr("record installment payment", "installment", payment.InstallmentID, err)
	}
	return invoice, nil
}

// applyInstallmentPayment is the read-compute-write sequence shared by
// direct payments and reconciliation. q must be a transaction. When price is
// set it decides Settle from the installment as loaded here.
func applyInstallmentPayment(ctx context.Context, q dbtx, payment InstallmentPayment, price func(*domain.Installment) bool) (*domain.Invoice, error) {
	inst, err := loadInstallment(ctx, q, payment.InstallmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &domain.NotFoundError{Entity: "installment", ID: payment.InstallmentID}
		}
		return nil, err
	}

	invoice, err := loadInvoice(ctx, q, "id = ?", inst.InvoiceID)
	if err != nil {
		return nil, err
	}
	if invoice.IsCancelled() {
		return nil, domain.NewValidationError("installmentId", inst.ID, "invoice is cancelled")
	}

	settle := payment.Settle
	if price != nil {
		settle = price(inst)
	}
	if err := inst.ApplyPayment(payment.Amount, payment.PaidAt, payment.Method, settle); err != nil {
		return nil, err
	}

	_, err = q.ExecContext(ctx, `
		UPDATE installments
		SET amount_paid = ?, paid_at = ?, payment_method = ?, status = ?, updated_at = ?
		WHERE id = ?
	`,
		formatAmount(inst.AmountPaid),
		nullTime(inst.PaidAt),
		inst.PaymentMethod,
		string(inst.Status),
		formatTime(inst.UpdatedAt),
		inst.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update installment: %w", err)
	}

	if invoice.Installments, err = loadInstallments(ctx, q, invoice.ID); err != nil {
		return nil, err
	}
	invoice.Status = finance.ConsolidateInvoice(invoice, payment.AsOf)
	invoice.UpdatedAt = payment.AsOf

	_, err = q.ExecContext(ctx,
		`UPDATE invoices SET status = ?, updated_at = ? WHERE id = ?`,
		string(invoice.Status), formatTime(invoice.UpdatedAt), invoice.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update invoice status: %w", err)
	}

	if inst.Status == domain.InstallmentStatusPaid {
		if err := settleOpenCollections(ctx, q, inst.ID, payment.PaidAt); err != nil {
			return nil, err
		}
	}

	return invoice, nil
}

// GetNextInvoiceNumber generates the next invoice number in format "PREFIX-YEAR-SEQUENCE"
func (r *InvoiceRepo) GetNextInvoiceNumber(ctx context.Context, prefix string, year int) (string, error) {
	number, err := nextInvoiceNumber(ctx, r.db, prefix, year)
	if err != nil {
		return "", storeErr("get next invoice number", "invoice", nil, err)
	}
	return number, nil
}

func nextInvoiceNumber(ctx context.Context, q dbtx, prefix string, year int) (string, error) {
	// Longer numbers sort first so sequence 1000 beats 999
	query := `
		SELECT invoice_number
		FROM invoices
		WHERE invoice_number LIKE ?
		ORDER BY LENGTH(invoice_number) DESC, invoice_number DESC
		LIMIT 1
	`

	stem := fmt.Sprintf("%s-%d-", prefix, year)
	var lastNumber string

	err := q.QueryRowContext(ctx, query, stem+"%").Scan(&lastNumber)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return stem + "001", nil
		}
		return "", fmt.Errorf("failed to get last invoice number: %w", err)
	}

	lastSeq, err := strconv.Atoi(strings.TrimPrefix(lastNumber, stem))
	if err != nil {
		return "", fmt.Errorf("failed to parse invoice number %q: %w", lastNumber, err)
	}

	return fmt.Sprintf("%s%03d", stem, lastSeq+1), nil
}

func loadInvoice(ctx context.Context, q dbtx, where string, arg interface{}) (*domain.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE ` + where
	return scanInvoice(q.QueryRowContext(ctx, query, arg))
}

func loadInstallment(ctx context.Context, q dbtx, id int64) (*domain.Installment, error) {
	query := `SELECT ` + installmentColumns + ` FROM installments WHERE id = ?`
	return scanInstallment(q.QueryRowContext(ctx, query, id))
}

func loadInstallments(ctx context.Context, q dbtx, invoiceID int64) ([]*domain.Installment, error) {
	query := `SELECT ` + installmentColumns + ` FROM installments WHERE invoice_id = ? ORDER BY number`

	rows, err := q.QueryContext(ctx, query, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query installments: %w", err)
	}
	defer rows.Close()

	installments := make([]*domain.Installment, 0)
	for rows.Next() {
		inst, err := scanInstallment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan installment: %w", err)
		}
		installments = append(installments, inst)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating installments: %w", err)
	}

	return installments, nil
}

// scanInvoice is a helper to parse invoice fields
func scanInvoice(row rowScanner) (*domain.Invoice, error) {
	invoice := &domain.Invoice{}
	var issueDate, dueDate, status, installmentPolicy, interestPolicy, monthlyRate string
	var createdAt, updatedAt string
	var amounts amountScanner

	err := row.Scan(
		&invoice.ID,
		&invoice.Number,
		&invoice.ClientID,
		&invoice.Description,
		&issueDate,
		&dueDate,
		amounts.add("total", &invoice.Total),
		amounts.add("discount", &invoice.Discount),
		&monthlyRate,
		&status,
		&installmentPolicy,
		&interestPolicy,
		&invoice.InstallmentCount,
		&invoice.Notes,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := amounts.parse(); err != nil {
		return nil, err
	}
	if invoice.MonthlyRate, err = parseAmount(monthlyRate); err != nil {
		return nil, fmt.Errorf("failed to parse monthly_rate: %w", err)
	}

	invoice.Status = domain.InvoiceStatus(status)
	invoice.InstallmentPolicy = domain.InstallmentPolicy(installmentPolicy)
	invoice.InterestPolicy = domain.InterestPolicy(interestPolicy)

	if invoice.IssueDate, err = parseTime(issueDate); err != nil {
		return nil, fmt.Errorf("failed to parse issue_date: %w", err)
	}
	if invoice.DueDate, err = parseTime(dueDate); err != nil {
		return nil, fmt.Errorf("failed to parse due_date: %w", err)
	}
	if invoice.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if invoice.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}

	return invoice, nil
}

func scanInstallment(row rowScanner) (*domain.Installment, error) {
	inst := &domain.Installment{}
	var dueDate, status, createdAt, updatedAt string
	var paidAt sql.NullString
	var amounts amountScanner

	err := row.Scan(
		&inst.ID,
		&inst.InvoiceID,
		&inst.Number,
		&dueDate,
		amounts.add("principal", &inst.Principal),
		amounts.add("interest", &inst.Interest),
		amounts.add("amount_paid", &inst.AmountPaid),
		&paidAt,
		&inst.PaymentMethod,
		&status,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := amounts.parse(); err != nil {
		return nil, err
	}
	inst.Status = domain.InstallmentStatus(status)

	if inst.DueDate, err = parseTime(dueDate); err != nil {
		return nil, fmt.Errorf("failed to parse due_date: %w", err)
	}
	if inst.PaidAt, err = parseNullTime(paidAt); err != nil {
		return nil, fmt.Errorf("failed to parse paid_at: %w", err)
	}
	if inst.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if inst.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}

	return inst, nil
}
