package billing

import "context"

// InvoiceSink receives every invoice the orchestrator issues.
type InvoiceSink interface {
	Save(ctx context.Context, invoice Invoice) error
}

// InvoiceRepository is an InvoiceSink that can be queried back.
type InvoiceRepository interface {
	InvoiceSink
	List(ctx context.Context) ([]Invoice, error)
	Get(ctx context.Context, id int64) (*Invoice, error)
}

// AnomalyLog is the append-only record of rejected readings.
type AnomalyLog interface {
	Record(ctx context.Context, anomaly Anomaly) error
}
