package postgres

import (
	"context"
	"database/sql"
	"errors"

	billing "utility-billing/internal/billing/domain"
)

// InvoiceRepository persists invoices.
type InvoiceRepository struct {
	db *sql.DB
}

// NewInvoiceRepository constructs a repository.
func NewInvoiceRepository(db *sql.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

// Save inserts an invoice, replacing amount and status on id conflict.
func (r *InvoiceRepository) Save(ctx context.Context, invoice billing.Invoice) error {
	if r == nil || r.db == nil {
		return errors.New("invoice repo: nil db")
	}
	if err := invoice.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO invoices (
	id, customer_id, reading_id, consumed_kwh, amount, issued_on, status
) VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (id) DO UPDATE SET
	consumed_kwh = EXCLUDED.consumed_kwh,
	amount = EXCLUDED.amount,
	status = EXCLUDED.status`,
		invoice.ID, invoice.CustomerID, invoice.ReadingID, invoice.ConsumedKWh, invoice.Amount, invoice.IssuedOn, string(invoice.Status))
	return err
}

// Get fetches an invoice.
func (r *InvoiceRepository) Get(ctx context.Context, id int64) (*billing.Invoice, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("invoice repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT id, customer_id, reading_id, consumed_kwh, amount, issued_on, status
FROM invoices
WHERE id = $1`, id)
	invoice, err := scanInvoice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, billing.ErrInvoiceNotFound
	}
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

// List returns every invoice ordered by id.
func (r *InvoiceRepository) List(ctx context.Context) ([]billing.Invoice, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("invoice repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, customer_id, reading_id, consumed_kwh, amount, issued_on, status
FROM invoices
ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []billing.Invoice
	for rows.Next() {
		invoice, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, invoice)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// MaxID returns the largest persisted invoice id, or 0 when the table is empty.
func (r *InvoiceRepository) MaxID(ctx context.Context) (int64, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("invoice repo: nil db")
	}
	var max sql.NullInt64
	if err := r.db.QueryRowContext(ctx, `SELECT MAX(id) FROM invoices`).Scan(&max); err != nil {
		return 0, err
	}
	if !max.Valid {
		return 0, nil
	}
	return max.Int64, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvoice(row rowScanner) (billing.Invoice, error) {
	var (
		invoice billing.Invoice
		status  string
	)
	if err := row.Scan(&invoice.ID, &invoice.CustomerID, &invoice.ReadingID,
		&invoice.ConsumedKWh, &invoice.Amount, &invoice.IssuedOn, &status); err != nil {
		return billing.Invoice{}, err
	}
	invoice.IssuedOn = billing.Day(invoice.IssuedOn.UTC())
	invoice.Status = billing.InvoiceStatus(status)
	return invoice, nil
}
