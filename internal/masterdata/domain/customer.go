package masterdata

import "errors"

// Customer is the billed party. Reference data, never mutated after load.
type Customer struct {
	ID    int64
	Name  string
	TaxID string
	Email string
	Phone string
}

// Validate checks customer invariants.
func (c Customer) Validate() error {
	if c.ID <= 0 {
		return errors.New("customer: invalid id")
	}
	return nil
}
