package masterdata

import "errors"

// Meter is a physical electricity meter owned by a customer.
type Meter struct {
	ID         int64
	CustomerID int64
	Number     string
	CurrentKWh float64
}

// NewMeter constructs a meter with an empty current reading.
func NewMeter(id, customerID int64, number string) (Meter, error) {
	m := Meter{ID: id, CustomerID: customerID, Number: number}
	if err := m.Validate(); err != nil {
		return Meter{}, err
	}
	return m, nil
}

// Validate checks meter invariants.
func (m Meter) Validate() error {
	if m.ID <= 0 {
		return errors.New("meter: invalid id")
	}
	if m.CustomerID <= 0 {
		return errors.New("meter: invalid customer id")
	}
	if m.CurrentKWh < 0 {
		return ErrNegativeReading
	}
	return nil
}

// RecordReading moves the current reading snapshot to kwh.
func (m *Meter) RecordReading(kwh float64) error {
	if m == nil {
		return errors.New("meter: nil meter")
	}
	if kwh < 0 {
		return ErrNegativeReading
	}
	m.CurrentKWh = kwh
	return nil
}
