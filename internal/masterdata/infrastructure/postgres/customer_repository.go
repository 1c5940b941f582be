package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	masterdata "utility-billing/internal/masterdata/domain"
)

const (
	defaultCustomersTable = "customers"
	defaultMetersTable    = "meters"
)

//go:embed schema.sql
var schema string

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Migrate creates the customers and meters tables if absent.
func Migrate(ctx context.Context, db DBTX) error {
	if db == nil {
		return errors.New("masterdata migrate: nil db")
	}
	_, err := db.ExecContext(ctx, schema)
	return err
}

// CustomerRepository is a Postgres implementation for customers and their
// meters.
type CustomerRepository struct {
	db             DBTX
	customersTable string
	metersTable    string
}

// NewCustomerRepository constructs a repository.
func NewCustomerRepository(db DBTX, opts ...CustomerOption) *CustomerRepository {
	repo := &CustomerRepository{db: db, customersTable: defaultCustomersTable, metersTable: defaultMetersTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// CustomerOption configures the repository.
type CustomerOption func(*CustomerRepository)

// WithTables overrides the default table names.
func WithTables(customers, meters string) CustomerOption {
	return func(repo *CustomerRepository) {
		if customers != "" {
			repo.customersTable = customers
		}
		if meters != "" {
			repo.metersTable = meters
		}
	}
}

// Customer loads a customer by id.
func (r *CustomerRepository) Customer(ctx context.Context, id int64) (*masterdata.Customer, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("customer repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT id, name, tax_id, email, phone
FROM %s
WHERE id = $1
LIMIT 1`, r.customersTable)

	var customer masterdata.Customer
	if err := r.db.QueryRowContext(ctx, query, id).Scan(
		&customer.ID,
		&customer.Name,
		&customer.TaxID,
		&customer.Email,
		&customer.Phone,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, masterdata.ErrCustomerNotFound
		}
		return nil, err
	}
	return &customer, nil
}

// SaveCustomer upserts a customer.
func (r *CustomerRepository) SaveCustomer(ctx context.Context, customer masterdata.Customer) error {
	if r == nil || r.db == nil {
		return errors.New("customer repo: nil db")
	}
	if err := customer.Validate(); err != nil {
		return err
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	name,
	tax_id,
	email,
	phone
) VALUES (
	$1, $2, $3, $4, $5
)
ON CONFLICT (id)
DO UPDATE SET
	name = EXCLUDED.name,
	tax_id = EXCLUDED.tax_id,
	email = EXCLUDED.email,
	phone = EXCLUDED.phone,
	updated_at = NOW()`, r.customersTable)

	_, err := r.db.ExecContext(ctx, query,
		customer.ID,
		customer.Name,
		customer.TaxID,
		customer.Email,
		customer.Phone,
	)
	return err
}

// SaveMeter upserts a meter with its current reading.
func (r *CustomerRepository) SaveMeter(ctx context.Context, meter masterdata.Meter) error {
	if r == nil || r.db == nil {
		return errors.New("customer repo: nil db")
	}
	if err := meter.Validate(); err != nil {
		return err
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	customer_id,
	number,
	current_kwh
) VALUES (
	$1, $2, $3, $4
)
ON CONFLICT (id)
DO UPDATE SET
	customer_id = EXCLUDED.customer_id,
	number = EXCLUDED.number,
	current_kwh = EXCLUDED.current_kwh,
	updated_at = NOW()`, r.metersTable)

	_, err := r.db.ExecContext(ctx, query,
		meter.ID,
		meter.CustomerID,
		meter.Number,
		meter.CurrentKWh,
	)
	return err
}

// Sync upserts customers, then meters.
func (r *CustomerRepository) Sync(ctx context.Context, customers []masterdata.Customer, meters []masterdata.Meter) error {
	for _, customer := range customers {
		if err := r.SaveCustomer(ctx, customer); err != nil {
			return fmt.Errorf("customer %d: %w", customer.ID, err)
		}
	}
	for _, meter := range meters {
		if err := r.SaveMeter(ctx, meter); err != nil {
			return fmt.Errorf("meter %d: %w", meter.ID, err)
		}
	}
	return nil
}
