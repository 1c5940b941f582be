package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	billing "utility-billing/internal/billing/domain"
)

// AnomalyRepository stores rejected readings in reading_anomalies.
type AnomalyRepository struct {
	db *sql.DB
}

// NewAnomalyRepository constructs a repository.
func NewAnomalyRepository(db *sql.DB) *AnomalyRepository {
	return &AnomalyRepository{db: db}
}

// Record inserts one anomaly row.
func (r *AnomalyRepository) Record(ctx context.Context, anomaly billing.Anomaly) error {
	if r == nil || r.db == nil {
		return errors.New("anomaly repo: nil db")
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO reading_anomalies (
	id, customer_id, meter_id, reading_id, kwh, average_kwh, observed_on, marker
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		uuid.NewString(), anomaly.CustomerID, anomaly.MeterID, anomaly.ReadingID,
		anomaly.KWh, anomaly.Average, anomaly.ObservedOn, billing.AnomalyMarker)
	return err
}

// Count returns the number of stored anomalies.
func (r *AnomalyRepository) Count(ctx context.Context) (int64, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("anomaly repo: nil db")
	}
	var count int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reading_anomalies`).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return count, err
}
