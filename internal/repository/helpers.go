package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/andy/duesink/internal/domain"
	"github.com/andy/duesink/internal/money"
	"github.com/shopspring/decimal"
)

// timeLayout is the RFC3339 format for storing times in SQLite
const timeLayout = time.RFC3339

// dbtx is satisfied by both *sql.DB and *sql.Tx so query helpers can run
// inside or outside a transaction.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// parseTime parses a time string in RFC3339 format
func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func formatTime(t time.Time) string {
	return t.Format(timeLayout)
}

// nullTime formats an optional time for an INSERT/UPDATE argument
func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.Format(timeLayout)
}

// parseNullTime parses an optional time column
func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// formatAmount renders an amount as an exact two-place decimal string
func formatAmount(d decimal.Decimal) string {
	return d.StringFixed(money.Places)
}

func parseAmount(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(s)
}

// amountScanner collects TEXT amount columns and parses them after Scan.
type amountScanner struct {
	fields []amountField
}

type amountField struct {
	name   string
	raw    *string
	target *decimal.Decimal
}

func (a *amountScanner) add(name string, target *decimal.Decimal) *string {
	raw := new(string)
	a.fields = append(a.fields, amountField{name: name, raw: raw, target: target})
	return raw
}

func (a *amountScanner) parse() error {
	for _, f := range a.fields {
		d, err := parseAmount(*f.raw)
		if err != nil {
			return fmt.Errorf("failed to parse %s: %w", f.name, err)
		}
		*f.target = d
	}
	return nil
}

// storeErr wraps a driver failure as a PersistenceError, mapping
// sql.ErrNoRows to NotFoundError.
func storeErr(op, entity string, id interface{}, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return &domain.NotFoundError{Entity: entity, ID: id}
	}
	for _, known := range []error{domain.ErrNotFound, domain.ErrValidation, domain.ErrInvalidTransition, domain.ErrPersistence} {
		if errors.Is(err, known) {
			return err
		}
	}
	return &domain.PersistenceError{Op: op, Err: err}
}

// requireRow returns NotFoundError when an UPDATE matched nothing
func requireRow(result sql.Result, entity string, id interface{}) error {
	n, err := result.RowsAffected()
	if err != nil {
		return &domain.PersistenceError{Op: "get rows affected", Err: err}
	}
	if n == 0 {
		return &domain.NotFoundError{Entity: entity, ID: id}
	}
	return nil
}
