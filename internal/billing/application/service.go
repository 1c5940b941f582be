package application

import (
	"context"
	"errors"
	"sync"

	billing "utility-billing/internal/billing/domain"
	masterdata "utility-billing/internal/masterdata/domain"
	metering "utility-billing/internal/metering/domain"
)

// RecordStore is the subset of the record store the billing service needs.
type RecordStore interface {
	Customer(id int64) (masterdata.Customer, error)
	Meter(id int64) (masterdata.Meter, error)
	BillableHistory(meterID int64) []metering.Reading
	AppendReading(reading metering.Reading) error
	MarkReadingInconsistent(meterID, id int64) error
	UpdateMeterReading(meterID int64, kwh float64) error
	NextReadingID() int64
}

// Service bills meters held in a record store.
type Service struct {
	mu        sync.Mutex
	store     RecordStore
	processor *Processor
}

// NewService constructs the service.
func NewService(store RecordStore, processor *Processor) (*Service, error) {
	if store == nil {
		return nil, errors.New("billing service: nil record store")
	}
	if processor == nil {
		return nil, errors.New("billing service: nil processor")
	}
	return &Service{store: store, processor: processor}, nil
}

// BillMeter processes a new reading of kwh for meterID against the meter's
// billable history and appends it to the store.
func (s *Service) BillMeter(ctx context.Context, meterID int64, kwh float64) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	meter, customer, err := s.lookup(meterID)
	if err != nil {
		return Result{}, err
	}
	readingID := s.store.NextReadingID()
	result, err := s.processor.ProcessReading(ctx, ReadingInput{
		Customer:  customer,
		Meter:     meter,
		History:   s.store.BillableHistory(meterID),
		KWh:       kwh,
		ReadingID: readingID,
	})
	if err != nil {
		return Result{}, err
	}

	now := s.processor.clock.Now()
	reading, err := metering.NewReading(readingID, meterID, now.Format("2006-01"), kwh, now.Format(billing.DateLayout))
	if err != nil {
		return Result{}, err
	}
	if result.Outcome == OutcomeInconsistent {
		reading.MarkInconsistent()
	} else if err := s.store.UpdateMeterReading(meterID, kwh); err != nil {
		return Result{}, err
	}
	if err := s.store.AppendReading(reading); err != nil {
		return Result{}, err
	}
	return result, nil
}

// BillLatest treats the meter's most recent billable reading as the
// candidate and the earlier ones as its history. ok is false when the meter
// has no readings.
func (s *Service) BillLatest(ctx context.Context, meterID int64) (result Result, ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	meter, customer, err := s.lookup(meterID)
	if err != nil {
		return Result{}, false, err
	}
	readings := s.store.BillableHistory(meterID)
	if len(readings) == 0 {
		return Result{}, false, nil
	}
	latest := readings[len(readings)-1]
	result, err = s.processor.ProcessReading(ctx, ReadingInput{
		Customer:  customer,
		Meter:     meter,
		History:   readings[:len(readings)-1],
		KWh:       latest.KWh,
		ReadingID: latest.ID,
	})
	if err != nil {
		return Result{}, false, err
	}
	if result.Outcome == OutcomeInconsistent {
		err = s.store.MarkReadingInconsistent(meterID, latest.ID)
	} else {
		err = s.store.UpdateMeterReading(meterID, latest.KWh)
	}
	if err != nil {
		return Result{}, false, err
	}
	return result, true, nil
}

func (s *Service) lookup(meterID int64) (masterdata.Meter, masterdata.Customer, error) {
	meter, err := s.store.Meter(meterID)
	if err != nil {
		return masterdata.Meter{}, masterdata.Customer{}, err
	}
	customer, err := s.store.Customer(meter.CustomerID)
	if err != nil {
		return masterdata.Meter{}, masterdata.Customer{}, err
	}
	return meter, customer, nil
}
