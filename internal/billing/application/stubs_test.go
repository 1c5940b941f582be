package application

import (
	"context"
	"sync"
	"time"

	billing "utility-billing/internal/billing/domain"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

var testNow = time.Date(2024, 4, 15, 13, 45, 0, 0, time.UTC)

type stubSink struct {
	mu       sync.Mutex
	invoices []billing.Invoice
	err      error
}

func (s *stubSink) Save(ctx context.Context, invoice billing.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.invoices = append(s.invoices, invoice)
	return nil
}

type stubAnomalies struct {
	mu      sync.Mutex
	entries []billing.Anomaly
}

func (s *stubAnomalies) Record(ctx context.Context, anomaly billing.Anomaly) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, anomaly)
	return nil
}

type stubIDs struct {
	readings int64
	invoices int64
}

func (s *stubIDs) NextReadingID() int64 { s.readings++; return s.readings }
func (s *stubIDs) NextInvoiceID() int64 { s.invoices++; return s.invoices }

type recordingNotifier struct {
	events []AnomalyEvent
}

func (n *recordingNotifier) Notify(ctx context.Context, event AnomalyEvent) {
	n.events = append(n.events, event)
}
