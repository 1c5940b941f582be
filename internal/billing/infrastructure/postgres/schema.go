package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
)

//go:embed schema.sql
var schema string

// Migrate creates the invoices and reading_anomalies tables if absent.
func Migrate(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return errors.New("billing migrate: nil db")
	}
	_, err := db.ExecContext(ctx, schema)
	return err
}
