package billing

import "errors"

var (
	// ErrNegativeConsumption is returned when a candidate reading is below zero.
	ErrNegativeConsumption = errors.New("billing: negative consumption")
	// ErrInvalidTariff is returned for malformed tier tables.
	ErrInvalidTariff = errors.New("billing: invalid tariff")
	// ErrInvalidTolerance is returned for a band tolerance outside [0, 1).
	ErrInvalidTolerance = errors.New("billing: invalid tolerance")
	// ErrInvoiceNotFound is returned when an invoice id is unknown.
	ErrInvoiceNotFound = errors.New("billing: invoice not found")
	// ErrInvalidInvoice is returned when an invoice is missing identity.
	ErrInvalidInvoice = errors.New("billing: invalid invoice")
)
