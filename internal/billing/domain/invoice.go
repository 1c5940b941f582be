package billing

import "time"

// InvoiceStatus is the payment state of an invoice.
type InvoiceStatus string

const (
	InvoiceStatusPending InvoiceStatus = "pending"
)

// DateLayout is the wire format for invoice and anomaly dates.
const DateLayout = "2006-01-02"

// Invoice is issued for a reading accepted by the band check.
type Invoice struct {
	ID          int64         `json:"id"`
	CustomerID  int64         `json:"customer_id"`
	ReadingID   int64         `json:"reading_id"`
	ConsumedKWh float64       `json:"kwh"`
	Amount      float64       `json:"amount"`
	IssuedOn    time.Time     `json:"issued_on"`
	Status      InvoiceStatus `json:"status"`
}

// Validate checks invoice identity and values.
func (i Invoice) Validate() error {
	if i.ID <= 0 || i.CustomerID <= 0 || i.ReadingID <= 0 {
		return ErrInvalidInvoice
	}
	if i.ConsumedKWh < 0 || i.Amount < 0 {
		return ErrNegativeConsumption
	}
	return nil
}

// IssueDate returns the issue day formatted as YYYY-MM-DD.
func (i Invoice) IssueDate() string { return i.IssuedOn.Format(DateLayout) }

// Day truncates t to midnight in its own location.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
