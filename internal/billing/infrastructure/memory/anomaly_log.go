package memory

import (
	"context"
	"sync"

	billing "utility-billing/internal/billing/domain"
)

// AnomalyLog keeps rejected readings in memory.
type AnomalyLog struct {
	mu      sync.Mutex
	entries []billing.Anomaly
}

// NewAnomalyLog constructs an empty log.
func NewAnomalyLog() *AnomalyLog {
	return &AnomalyLog{}
}

// Record appends an anomaly.
func (l *AnomalyLog) Record(ctx context.Context, anomaly billing.Anomaly) error {
	_ = ctx
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, anomaly)
	return nil
}

// Entries returns a copy of the recorded anomalies in order.
func (l *AnomalyLog) Entries() []billing.Anomaly {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]billing.Anomaly, len(l.entries))
	copy(out, l.entries)
	return out
}
