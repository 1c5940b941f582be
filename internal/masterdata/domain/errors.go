package masterdata

import "errors"

var (
	// ErrCustomerNotFound is returned when a customer id is unknown.
	ErrCustomerNotFound = errors.New("masterdata: customer not found")
	// ErrMeterNotFound is returned when a meter id is unknown.
	ErrMeterNotFound = errors.New("masterdata: meter not found")
	// ErrNegativeReading is returned when a meter snapshot would go negative.
	ErrNegativeReading = errors.New("masterdata: negative reading")
)
