package metering

import (
	"errors"
	"math"
)

// Status is the review state of a reading.
type Status string

const (
	StatusNormal       Status = "normal"
	StatusInconsistent Status = "inconsistent"
	StatusReviewed     Status = "reviewed"
)

var (
	// ErrNegativeConsumption is returned for readings below zero kWh.
	ErrNegativeConsumption = errors.New("metering: negative consumption")
	// ErrInvalidConsumption is returned for NaN or infinite kWh.
	ErrInvalidConsumption = errors.New("metering: consumption is not finite")
	// ErrInvalidReadingID is returned for non-positive ids.
	ErrInvalidReadingID = errors.New("metering: invalid reading id")
	// ErrReadingNotFound is returned when a reading id is unknown.
	ErrReadingNotFound = errors.New("metering: reading not found")
)

// Reading is a single reported consumption value for a meter in a billing period.
type Reading struct {
	ID      int64
	MeterID int64
	Period  string
	KWh     float64
	ReadOn  string
	Status  Status
}

// NewReading builds a reading in the normal state.
func NewReading(id, meterID int64, period string, kwh float64, readOn string) (Reading, error) {
	if id <= 0 {
		return Reading{}, ErrInvalidReadingID
	}
	if meterID <= 0 {
		return Reading{}, errors.New("metering: invalid meter id")
	}
	if math.IsNaN(kwh) || math.IsInf(kwh, 0) {
		return Reading{}, ErrInvalidConsumption
	}
	if kwh < 0 {
		return Reading{}, ErrNegativeConsumption
	}
	return Reading{
		ID:      id,
		MeterID: meterID,
		Period:  period,
		KWh:     kwh,
		ReadOn:  readOn,
		Status:  StatusNormal,
	}, nil
}

// MarkReviewed records that an operator confirmed the reading.
func (r *Reading) MarkReviewed() {
	if r != nil {
		r.Status = StatusReviewed
	}
}

// MarkInconsistent flags the reading as rejected by the band check.
func (r *Reading) MarkInconsistent() {
	if r != nil {
		r.Status = StatusInconsistent
	}
}

// Billable reports whether the reading may feed a consumption baseline.
func (r Reading) Billable() bool { return r.Status != StatusInconsistent }

// Consumptions returns the kWh values in order.
func Consumptions(readings []Reading) []float64 {
	values := make([]float64, 0, len(readings))
	for _, reading := range readings {
		values = append(values, reading.KWh)
	}
	return values
}
