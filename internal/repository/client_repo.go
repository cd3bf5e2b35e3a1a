package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/andy/duesink/internal/db"
	"github.com/andy/duesink/internal/domain"
)

// ClientRepo is a SQLite implementation of ClientRepository
type ClientRepo struct {
	db *db.DB
}

// NewClientRepo creates a new ClientRepo
func NewClientRepo(database *db.DB) *ClientRepo {
	return &ClientRepo{db: database}
}

const clientColumns = `id, name, email, phone, tax_id, notes, is_archived, created_at, updated_at`

// Create inserts a new client into the database
func (r *ClientRepo) Create(ctx context.Context, client *domain.Client) error {
	if err := client.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO clients (name, email, phone, tax_id, notes, is_archived, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		client.Name,
		client.Email,
		client.Phone,
		client.TaxID,
		client.Notes,
		client.IsArchived,
		formatTime(client.CreatedAt),
		formatTime(client.UpdatedAt),
	)
	if err != nil {
		return storeErr("create client", "client", client.Name, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return storeErr("get client ID", "client", client.Name, err)
	}

	client.ID = id
	return nil
}

// GetByID retrieves a client by ID
func (r *ClientRepo) GetByID(ctx context.Context, id int64) (*domain.Client, error) {
	query := `SELECT ` + clientColumns + ` FROM clients WHERE id = ?`

	client, err := scanClient(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, storeErr("get client", "client", id, err)
	}
	return client, nil
}

// GetByName retrieves a client by name
func (r *ClientRepo) GetByName(ctx context.Context, name string) (*domain.Client, error) {
	query := `SELECT ` + clientColumns + ` FROM clients WHERE name = ?`

	client, err := scanClient(r.db.QueryRowContext(ctx, query, name))
	if err != nil {
		return nil, storeErr("get client", "client", name, err)
	}
	return client, nil
}

// List retrieves all clients, optionally including archived ones
func (r *ClientRepo) List(ctx context.Context, includeArchived bool) ([]*domain.Client, error) {
	query := `
		SELECT ` + clientColumns + `
		FROM clients
		WHERE is_archived = 0 OR ? = 1
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, query, includeArchived)
	if err != nil {
		return nil, storeErr("list clients", "client", nil, err)
	}
	defer rows.Close()

	clients := make([]*domain.Client, 0)
	for rows.Next() {
		client, err := scanClient(rows)
		if err != nil {
			return nil, storeErr("scan client", "client", nil, err)
		}
		clients = append(clients, client)
	}

	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate clients", "client", nil, err)
	}

	return clients, nil
}

// Update updates an existing client
func (r *ClientRepo) Update(ctx context.Context, client *domain.Client) error {
	if err := client.Validate(); err != nil {
		return err
	}

	client.UpdatedAt = time.Now()

	query := `
		UPDATE clients
		SET name = ?, email = ?, phone = ?, tax_id = ?, notes = ?, is_archived = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		client.Name,
		client.Email,
		client.Phone,
		client.TaxID,
		client.Notes,
		client.IsArchived,
		formatTime(client.UpdatedAt),
		client.ID,
	)
	if err != nil {
		return storeErr("update client", "client", client.ID, err)
	}

	return requireRow(result, "client", client.ID)
}

// Archive marks a client as archived
func (r *ClientRepo) Archive(ctx context.Context, id int64) error {
	query := `
		UPDATE clients
		SET is_archived = 1, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query, formatTime(time.Now()), id)
	if err != nil {
		return storeErr("archive client", "client", id, err)
	}

	return requireRow(result, "client", id)
}

// Unarchive restores an archived client
func (r *ClientRepo) Unarchive(ctx context.Context, id int64) error {
	query := `
		UPDATE clients
		SET is_archived = 0, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query, formatTime(time.Now()), id)
	if err != nil {
		return storeErr("unarchive client", "client", id, err)
	}

	return requireRow(result, "client", id)
}

// Exists reports whether a client with the given ID is on file
func (r *ClientRepo) Exists(ctx context.Context, id int64) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM clients WHERE id = ?`, id).Scan(&n)
	if err != nil {
		return false, storeErr("check client", "client", id, err)
	}
	return n > 0, nil
}

func scanClient(row rowScanner) (*domain.Client, error) {
	client := &domain.Client{}
	var createdAt, updatedAt string

	err := row.Scan(
		&client.ID,
		&client.Name,
		&client.Email,
		&client.Phone,
		&client.TaxID,
		&client.Notes,
		&client.IsArchived,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if client.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if client.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}

	return client, nil
}
