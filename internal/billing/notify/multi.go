package notify

import (
	"context"

	billingapp "utility-billing/internal/billing/application"
)

// MultiNotifier sends every inconsistent-reading event to each configured
// notifier in order, so one anomaly can reach several re-read channels.
type MultiNotifier struct {
	notifiers []billingapp.AnomalyNotifier
}

// NewMultiNotifier keeps the non-nil notifiers.
func NewMultiNotifier(notifiers ...billingapp.AnomalyNotifier) *MultiNotifier {
	kept := make([]billingapp.AnomalyNotifier, 0, len(notifiers))
	for _, n := range notifiers {
		if n != nil {
			kept = append(kept, n)
		}
	}
	return &MultiNotifier{notifiers: kept}
}

// Len reports how many notifiers receive each anomaly.
func (m *MultiNotifier) Len() int {
	if m == nil {
		return 0
	}
	return len(m.notifiers)
}

// Notify hands the anomaly to every notifier. Notifiers own their failures.
func (m *MultiNotifier) Notify(ctx context.Context, event billingapp.AnomalyEvent) {
	for i := 0; i < m.Len(); i++ {
		m.notifiers[i].Notify(ctx, event)
	}
}
