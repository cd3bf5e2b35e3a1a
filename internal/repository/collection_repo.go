package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/andy/duesink/internal/db"
	"github.com/andy/duesink/internal/domain"
)

// CollectionRepo is a SQLite implementation of CollectionRepository
type CollectionRepo struct {
	db *db.DB
}

// NewCollectionRepo creates a new CollectionRepo
func NewCollectionRepo(database *db.DB) *CollectionRepo {
	return &CollectionRepo{db: database}
}

const collectionColumns = `id, installment_id, invoice_id, client_id, channel, status, attempts,
	next_retry_at, sent_at, received_at, read_at, paid_at, cancelled_at, created_at, updated_at`

// Create inserts a new collection
func (r *CollectionRepo) Create(ctx context.Context, c *domain.Collection) error {
	if err := c.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO collections (
			installment_id, invoice_id, client_id, channel, status, attempts,
			next_retry_at, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		c.InstallmentID,
		c.InvoiceID,
		c.ClientID,
		string(c.Channel),
		string(c.Status),
		c.Attempts,
		nullTime(c.NextRetryAt),
		formatTime(c.CreatedAt),
		formatTime(c.UpdatedAt),
	)
	if err != nil {
		return storeErr("create collection", "collection", nil, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return storeErr("get collection ID", "collection", nil, err)
	}

	c.ID = id
	return nil
}

// GetByID retrieves a collection by ID
func (r *CollectionRepo) GetByID(ctx context.Context, id int64) (*domain.Collection, error) {
	c, err := loadCollection(ctx, r.db, id)
	if err != nil {
		return nil, storeErr("get collection", "collection", id, err)
	}
	return c, nil
}

// List retrieves collections matching the filter, oldest first
func (r *CollectionRepo) List(ctx context.Context, filter CollectionFilter) ([]*domain.Collection, error) {
	query := `SELECT ` + collectionColumns + ` FROM collections WHERE 1=1`
	args := make([]interface{}, 0)

	if filter.ClientID != nil {
		query += " AND client_id = ?"
		args = append(args, *filter.ClientID)
	}
	if filter.InstallmentID != nil {
		query += " AND installment_id = ?"
		args = append(args, *filter.InstallmentID)
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			placeholders[i] = "?"
			args = append(args, string(s))
		}
		query += " AND status IN (" + strings.Join(placeholders, ", ") + ")"
	}

	query += " ORDER BY created_at, id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr("list collections", "collection", nil, err)
	}
	defer rows.Close()

	collections := make([]*domain.Collection, 0)
	for rows.Next() {
		c, err := scanCollection(rows)
		if err != nil {
			return nil, storeErr("scan collection", "collection", nil, err)
		}
		collections = append(collections, c)
	}

	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate collections", "collection", nil, err)
	}

	return collections, nil
}

// Transition writes c's status and timestamps if the stored status still
// equals expected. A lost race surfaces as InvalidTransitionError carrying
// the status that won.
func (r *CollectionRepo) Transition(ctx context.Context, c *domain.Collection, expected domain.CollectionStatus) error {
	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		return casCollection(ctx, tx, c, expected, false)
	})
	return storeErr("update collection", "collection", c.ID, err)
}

// RecordDispatch bumps the attempt counter, moves the status if requested,
// and appends the delivery log entry, all under one compare-and-swap.
func (r *CollectionRepo) RecordDispatch(ctx context.Context, rec DispatchRecord) (*domain.Collection, error) {
	var updated *domain.Collection
	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		c, err := loadCollection(ctx, tx, rec.CollectionID)
		if err != nil {
			return err
		}
		if c.Status != rec.Expected || c.Status.IsTerminal() {
			return &domain.InvalidTransitionError{Entity: "collection", ID: c.ID, From: string(c.Status), To: string(rec.Next)}
		}

		if rec.Next != rec.Expected {
			if err := c.Transition(rec.Next, rec.At); err != nil {
				return err
			}
		}
		c.NextRetryAt = rec.NextRetryAt
		c.UpdatedAt = rec.At
		if err := casCollection(ctx, tx, c, rec.Expected, true); err != nil {
			return err
		}
		c.Attempts++

		if rec.Log != nil {
			rec.Log.CollectionID = c.ID
			rec.Log.Attempt = c.Attempts
			if rec.Log.Channel == "" {
				rec.Log.Channel = c.Channel
			}
			if err := insertDeliveryLog(ctx, tx, rec.Log); err != nil {
				return err
			}
		}

		updated = c
		return nil
	})
	if err != nil {
		return nil, storeErr("record dispatch", "collection", rec.CollectionID, err)
	}
	return updated, nil
}

// IncrementAttempt bumps the attempt counter without a dispatch outcome and
// sets the next retry time, stamping the row with at. Terminal collections
// are rejected.
func (r *CollectionRepo) IncrementAttempt(ctx context.Context, id int64, nextRetryAt *time.Time, at time.Time) (*domain.Collection, error) {
	var updated *domain.Collection
	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		c, err := loadCollection(ctx, tx, id)
		if err != nil {
			return err
		}
		if c.Status.IsTerminal() {
			return &domain.InvalidTransitionError{Entity: "collection", ID: id, From: string(c.Status), To: string(c.Status)}
		}

		c.NextRetryAt = nextRetryAt
		c.UpdatedAt = at
		if err := casCollection(ctx, tx, c, c.Status, true); err != nil {
			return err
		}
		c.Attempts++
		updated = c
		return nil
	})
	if err != nil {
		return nil, storeErr("increment attempt", "collection", id, err)
	}
	return updated, nil
}

// ListDeliveryLog returns the delivery log for a collection, oldest first
func (r *CollectionRepo) ListDeliveryLog(ctx context.Context, collectionID int64) ([]*domain.DeliveryLogEntry, error) {
	query := `
		SELECT id, collection_id, channel, destination, subject, body_summary,
		       status, error_message, message_id, attempt, created_at
		FROM delivery_logs
		WHERE collection_id = ?
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query, collectionID)
	if err != nil {
		return nil, storeErr("list delivery log", "collection", collectionID, err)
	}
	defer rows.Close()

	entries := make([]*domain.DeliveryLogEntry, 0)
	for rows.Next() {
		e := &domain.DeliveryLogEntry{}
		var channel, status, createdAt string

		err := rows.Scan(
			&e.ID,
			&e.CollectionID,
			&channel,
			&e.Destination,
			&e.Subject,
			&e.BodySummary,
			&status,
			&e.ErrorMessage,
			&e.MessageID,
			&e.Attempt,
			&createdAt,
		)
		if err != nil {
			return nil, storeErr("scan delivery log", "delivery log", nil, err)
		}

		e.Channel = domain.Channel(channel)
		e.Status = domain.DeliveryStatus(status)
		if e.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, storeErr("scan delivery log", "delivery log", e.ID, fmt.Errorf("failed to parse created_at: %w", err))
		}

		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate delivery log", "delivery log", nil, err)
	}

	return entries, nil
}

// Stats counts collections per status, optionally for one client
func (r *CollectionRepo) Stats(ctx context.Context, clientID *int64) (*domain.CollectionStats, error) {
	query := `SELECT status, COUNT(*) FROM collections`
	args := make([]interface{}, 0)
	if clientID != nil {
		query += " WHERE client_id = ?"
		args = append(args, *clientID)
	}
	query += " GROUP BY status"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr("get collection stats", "collection", nil, err)
	}
	defer rows.Close()

	stats := domain.NewCollectionStats()
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, storeErr("scan collection stats", "collection", nil, err)
		}
		stats.ByStatus[domain.CollectionStatus(status)] = n
		stats.Total += n
	}

	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate collection stats", "collection", nil, err)
	}

	return stats, nil
}

// casCollection writes c conditioned on the stored status being expected.
func casCollection(ctx context.Context, q dbtx, c *domain.Collection, expected domain.CollectionStatus, bumpAttempt bool) error {
	query := `
		UPDATE collections
		SET status = ?, next_retry_at = ?, sent_at = ?, received_at = ?,
		    read_at = ?, paid_at = ?, cancelled_at = ?, updated_at = ?`
	if bumpAttempt {
		query += `, attempts = attempts + 1`
	}
	query += ` WHERE id = ? AND status = ?`

	result, err := q.ExecContext(ctx, query,
		string(c.Status),
		nullTime(c.NextRetryAt),
		nullTime(c.SentAt),
		nullTime(c.ReceivedAt),
		nullTime(c.ReadAt),
		nullTime(c.PaidAt),
		nullTime(c.CancelledAt),
		formatTime(c.UpdatedAt),
		c.ID,
		string(expected),
	)
	if err != nil {
		return fmt.Errorf("failed to update collection: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 1 {
		return nil
	}

	current, err := loadCollection(ctx, q, c.ID)
	if err != nil {
		return err
	}
	return &domain.InvalidTransitionError{Entity: "collection", ID: c.ID, From: string(current.Status), To: string(c.Status)}
}

func insertDeliveryLog(ctx context.Context, q dbtx, e *domain.DeliveryLogEntry) error {
	query := `
		INSERT INTO delivery_logs (
			collection_id, channel, destination, subject, body_summary,
			status, error_message, message_id, attempt, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := q.ExecContext(ctx, query,
		e.CollectionID,
		string(e.Channel),
		e.Destination,
		e.Subject,
		e.BodySummary,
		string(e.Status),
		e.ErrorMessage,
		e.MessageID,
		e.Attempt,
		formatTime(e.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert delivery log: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get delivery log ID: %w", err)
	}
	e.ID = id
	return nil
}

// settleOpenCollections marks every non-terminal collection of an
// installment paid.
func settleOpenCollections(ctx context.Context, q dbtx, installmentID int64, at time.Time) error {
	stamp := formatTime(at)
	_, err := q.ExecContext(ctx, `
		UPDATE collections
		SET status = ?, paid_at = ?, next_retry_at = NULL, updated_at = ?
		WHERE installment_id = ? AND status NOT IN (?, ?)
	`,
		string(domain.CollectionStatusPaid), stamp, stamp,
		installmentID,
		string(domain.CollectionStatusPaid), string(domain.CollectionStatusCancelled),
	)
	if err != nil {
		return fmt.Errorf("failed to settle collections: %w", err)
	}
	return nil
}

// cancelOpenCollections cancels every non-terminal collection of an invoice.
func cancelOpenCollections(ctx context.Context, q dbtx, invoiceID int64, at time.Time) error {
	stamp := formatTime(at)
	_, err := q.ExecContext(ctx, `
		UPDATE collections
		SET status = ?, cancelled_at = ?, next_retry_at = NULL, updated_at = ?
		WHERE invoice_id = ? AND status NOT IN (?, ?)
	`,
		string(domain.CollectionStatusCancelled), stamp, stamp,
		invoiceID,
		string(domain.CollectionStatusPaid), string(domain.CollectionStatusCancelled),
	)
	if err != nil {
		return fmt.Errorf("failed to cancel collections: %w", err)
	}
	return nil
}

func loadCollection(ctx context.Context, q dbtx, id int64) (*domain.Collection, error) {
	query := `SELECT ` + collectionColumns + ` FROM collections WHERE id = ?`
	return scanCollection(q.QueryRowContext(ctx, query, id))
}

func scanCollection(row rowScanner) (*domain.Collection, error) {
	c := &domain.Collection{}
	var channel, status, createdAt, updatedAt string
	var nextRetryAt, sentAt, receivedAt, readAt, paidAt, cancelledAt sql.NullString

	err := row.Scan(
		&c.ID,
		&c.InstallmentID,
		&c.InvoiceID,
		&c.ClientID,
		&channel,
		&status,
		&c.Attempts,
		&nextRetryAt,
		&sentAt,
		&receivedAt,
		&readAt,
		&paidAt,
		&cancelledAt,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.Channel = domain.Channel(channel)
	c.Status = domain.CollectionStatus(status)

	optional := []struct {
		name string
		src  sql.NullString
		dst  **time.Time
	}{
		{"next_retry_at", nextRetryAt, &c.NextRetryAt},
		{"sent_at", sentAt, &c.SentAt},
		{"received_at", receivedAt, &c.ReceivedAt},
		{"read_at", readAt, &c.ReadAt},
		{"paid_at", paidAt, &c.PaidAt},
		{"cancelled_at", cancelledAt, &c.CancelledAt},
	}
	for _, o := range optional {
		if *o.dst, err = parseNullTime(o.src); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", o.name, err)
		}
	}

	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if c.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}

	return c, nil
}
