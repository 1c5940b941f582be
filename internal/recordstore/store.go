package recordstore

import (
	"math"
	"sort"
	"sync"

	masterdata "utility-billing/internal/masterdata/domain"
	metering "utility-billing/internal/metering/domain"
)

// Store holds the customers, meters and readings of one load. Customers and
// meters are keyed by id with first-write-wins; readings keep insertion order.
type Store struct {
	mu        sync.RWMutex
	customers map[int64]masterdata.Customer
	meters    map[int64]masterdata.Meter
	readings  []metering.Reading
	ids       IDGenerator
}

// Option configures a Store.
type Option func(*Store)

// WithIDGenerator replaces the default sequence generator.
func WithIDGenerator(ids IDGenerator) Option {
	return func(s *Store) {
		if ids != nil {
			s.ids = ids
		}
	}
}

// New constructs an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		customers: make(map[int64]masterdata.Customer),
		meters:    make(map[int64]masterdata.Meter),
		ids:       NewSequenceIDs(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddCustomer stores c unless its id is already present. It reports whether
// c was stored.
func (s *Store) AddCustomer(c masterdata.Customer) (bool, error) {
	if err := c.Validate(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.customers[c.ID]; ok {
		return false, nil
	}
	s.customers[c.ID] = c
	return true, nil
}

// AddMeter stores m unless its id is already present.
func (s *Store) AddMeter(m masterdata.Meter) (bool, error) {
	if err := m.Validate(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.meters[m.ID]; ok {
		return false, nil
	}
	s.meters[m.ID] = m
	return true, nil
}

// AppendReading appends r to the history.
func (s *Store) AppendReading(r metering.Reading) error {
	if r.ID <= 0 {
		return metering.ErrInvalidReadingID
	}
	if math.IsNaN(r.KWh) || math.IsInf(r.KWh, 0) {
		return metering.ErrInvalidConsumption
	}
	if r.KWh < 0 {
		return metering.ErrNegativeConsumption
	}
	if r.Status == "" {
		r.Status = metering.StatusNormal
	}
	s.mu.Lock()
	s.readings = append(s.readings, r)
	s.mu.Unlock()
	if observer, ok := s.ids.(interface{ ObserveReadingID(int64) }); ok {
		observer.ObserveReadingID(r.ID)
	}
	return nil
}

// Customer returns the customer with id.
func (s *Store) Customer(id int64) (masterdata.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.customers[id]
	if !ok {
		return masterdata.Customer{}, masterdata.ErrCustomerNotFound
	}
	return c, nil
}

// Meter returns the meter with id.
func (s *Store) Meter(id int64) (masterdata.Meter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.meters[id]
	if !ok {
		return masterdata.Meter{}, masterdata.ErrMeterNotFound
	}
	return m, nil
}

// Customers returns all customers by ascending id.
func (s *Store) Customers() []masterdata.Customer {
	s.mu.RLock()
	out := make([]masterdata.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		out = append(out, c)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Meters returns all meters by ascending id.
func (s *Store) Meters() []masterdata.Meter {
	s.mu.RLock()
	out := make([]masterdata.Meter, 0, len(s.meters))
	for _, m := range s.meters {
		out = append(out, m)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Readings returns a copy of every reading in insertion order.
func (s *Store) Readings() []metering.Reading {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]metering.Reading, len(s.readings))
	copy(out, s.readings)
	return out
}

// ReadingsForMeter returns the meter's readings in insertion order.
func (s *Store) ReadingsForMeter(meterID int64) []metering.Reading {
	return s.filter(func(r metering.Reading) bool { return r.MeterID == meterID })
}

// BillableHistory returns the meter's readings that may feed a baseline.
func (s *Store) BillableHistory(meterID int64) []metering.Reading {
	return s.filter(func(r metering.Reading) bool { return r.MeterID == meterID && r.Billable() })
}

func (s *Store) filter(keep func(metering.Reading) bool) []metering.Reading {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []metering.Reading
	for _, r := range s.readings {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

// MarkReadingReviewed moves a meter's reading to the reviewed state.
func (s *Store) MarkReadingReviewed(meterID, id int64) error {
	return s.transition(meterID, id, (*metering.Reading).MarkReviewed)
}

// UpdateMeterReading records kwh as the meter's current reading.
func (s *Store) UpdateMeterReading(meterID int64, kwh float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.meters[meterID]
	if !ok {
		return masterdata.ErrMeterNotFound
	}
	if err := m.RecordReading(kwh); err != nil {
		return err
	}
	s.meters[meterID] = m
	return nil
}

// NextReadingID returns a fresh reading id.
func (s *Store) NextReadingID() int64 { return s.ids.NextReadingID() }

// NextInvoiceID returns a fresh invoice id.
func (s *Store) NextInvoiceID() int64 { return s.ids.NextInvoiceID() }

// ObserveInvoiceID keeps the invoice sequence past an id persisted elsewhere.
func (s *Store) ObserveInvoiceID(id int64) {
	if observer, ok := s.ids.(interface{ ObserveInvoiceID(int64) }); ok {
		observer.ObserveInvoiceID(id)
	}
}

// MarkReadingInconsistent flags a meter's reading rejected by the band check.
func (s *Store) MarkReadingInconsistent(meterID, id int64) error {
	return s.transition(meterID, id, (*metering.Reading).MarkInconsistent)
}

// transition applies fn to the newest reading matching (meterID, id).
// Reading ids are only unique per meter in input tables.
func (s *Store) transition(meterID, id int64, fn func(*metering.Reading)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.readings) - 1; i >= 0; i-- {
		if s.readings[i].MeterID == meterID && s.readings[i].ID == id {
			fn(&s.readings[i])
			return nil
		}
	}
	return metering.ErrReadingNotFound
}
