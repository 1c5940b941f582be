package memory

import (
	"context"
	"sort"
	"sync"

	billing "utility-billing/internal/billing/domain"
)

// InvoiceRepository is an in-memory invoice store. Saving an existing id
// replaces it.
type InvoiceRepository struct {
	mu   sync.RWMutex
	data map[int64]billing.Invoice
}

// NewInvoiceRepository constructs a repository.
func NewInvoiceRepository() *InvoiceRepository {
	return &InvoiceRepository{data: make(map[int64]billing.Invoice)}
}

// Save persists an invoice.
func (r *InvoiceRepository) Save(ctx context.Context, invoice billing.Invoice) error {
	_ = ctx
	if err := invoice.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[invoice.ID] = invoice
	return nil
}

// Get loads an invoice by id.
func (r *InvoiceRepository) Get(ctx context.Context, id int64) (*billing.Invoice, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	invoice, ok := r.data[id]
	if !ok {
		return nil, billing.ErrInvoiceNotFound
	}
	return &invoice, nil
}

// List returns every invoice ordered by id.
func (r *InvoiceRepository) List(ctx context.Context) ([]billing.Invoice, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]billing.Invoice, 0, len(r.data))
	for _, invoice := range r.data {
		out = append(out, invoice)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// MaxID returns the largest stored invoice id, or 0.
func (r *InvoiceRepository) MaxID(ctx context.Context) (int64, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	var max int64
	for id := range r.data {
		if id > max {
			max = id
		}
	}
	return max, nil
}
