package application

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	billing "utility-billing/internal/billing/domain"
	masterdata "utility-billing/internal/masterdata/domain"
	metering "utility-billing/internal/metering/domain"
	"utility-billing/internal/observability/logging"
	"utility-billing/internal/observability/metrics"
)

// Outcome is the terminal state of one processed reading.
type Outcome string

const (
	OutcomeInvoiced     Outcome = metrics.OutcomeInvoiced
	OutcomeInconsistent Outcome = metrics.OutcomeInconsistent
)

// MessageInconsistent is reported for readings outside the band.
const MessageInconsistent = "reading inconsistent, re-read scheduled"

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// IDGenerator hands out reading and invoice ids.
type IDGenerator interface {
	NextReadingID() int64
	NextInvoiceID() int64
}

// AnomalyEvent describes a rejected reading for notifiers.
type AnomalyEvent struct {
	Anomaly  billing.Anomaly
	Customer masterdata.Customer
	Meter    masterdata.Meter
	Band     billing.Band
}

// AnomalyNotifier is told about every rejected reading, after it is logged.
type AnomalyNotifier interface {
	Notify(ctx context.Context, event AnomalyEvent)
}

// ReadingInput is one candidate reading with its context.
type ReadingInput struct {
	Customer masterdata.Customer
	Meter    masterdata.Meter
	History  []metering.Reading
	KWh      float64
	// ReadingID identifies the candidate; zero allocates a fresh id.
	ReadingID int64
}

// Result reports how a candidate reading was handled.
type Result struct {
	Outcome   Outcome          `json:"outcome"`
	Message   string           `json:"message"`
	ReadingID int64            `json:"reading_id"`
	Average   float64          `json:"average_kwh"`
	Band      billing.Band     `json:"band"`
	Amount    float64          `json:"amount,omitempty"`
	Invoice   *billing.Invoice `json:"invoice,omitempty"`
}

// Processor validates candidate readings against their history and either
// issues an invoice or logs an anomaly.
type Processor struct {
	sink      billing.InvoiceSink
	anomalies billing.AnomalyLog
	ids       IDGenerator
	analyzer  billing.Analyzer
	tariff    *billing.TieredTariff
	clock     Clock
	notifier  AnomalyNotifier
	logger    *zap.Logger
}

// Option configures the processor.
type Option func(*Processor)

// WithAnalyzer overrides the baseline window and tolerance.
func WithAnalyzer(analyzer billing.Analyzer) Option {
	return func(p *Processor) {
		p.analyzer = analyzer
	}
}

// WithTariff overrides the default tariff.
func WithTariff(tariff *billing.TieredTariff) Option {
	return func(p *Processor) {
		if tariff != nil {
			p.tariff = tariff
		}
	}
}

// WithClock overrides the system clock.
func WithClock(clock Clock) Option {
	return func(p *Processor) {
		if clock != nil {
			p.clock = clock
		}
	}
}

// WithNotifier registers an anomaly notifier.
func WithNotifier(notifier AnomalyNotifier) Option {
	return func(p *Processor) {
		p.notifier = notifier
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Processor) {
		p.logger = logging.OrNop(logger)
	}
}

// NewProcessor constructs the processor.
func NewProcessor(sink billing.InvoiceSink, anomalies billing.AnomalyLog, ids IDGenerator, opts ...Option) (*Processor, error) {
	if sink == nil {
		return nil, errors.New("billing processor: nil invoice sink")
	}
	if anomalies == nil {
		return nil, errors.New("billing processor: nil anomaly log")
	}
	if ids == nil {
		return nil, errors.New("billing processor: nil id generator")
	}
	p := &Processor{
		sink:      sink,
		anomalies: anomalies,
		ids:       ids,
		analyzer:  billing.DefaultAnalyzer(),
		tariff:    billing.DefaultTariff(),
		clock:     SystemClock{},
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// ProcessReading runs the band check for in and records the outcome. An
// out-of-band reading is a normal result, not an error.
func (p *Processor) ProcessReading(ctx context.Context, in ReadingInput) (Result, error) {
	start := time.Now()
	outcome := "error"
	defer func() {
		metrics.ObserveReading(outcome, time.Since(start))
	}()

	if math.IsNaN(in.KWh) || math.IsInf(in.KWh, 0) || in.KWh < 0 {
		return Result{}, billing.ErrNegativeConsumption
	}
	if err := in.Customer.Validate(); err != nil {
		return Result{}, err
	}

	average := p.analyzer.Baseline(metering.Consumptions(in.History))
	band := p.analyzer.Band(average)
	readingID := in.ReadingID
	if readingID == 0 {
		readingID = p.ids.NextReadingID()
	}
	now := p.clock.Now()

	if !band.Contains(in.KWh) {
		anomaly := billing.Anomaly{
			CustomerID: in.Customer.ID,
			MeterID:    in.Meter.ID,
			ReadingID:  readingID,
			KWh:        in.KWh,
			Average:    average,
			ObservedOn: billing.Day(now),
		}
		if err := p.anomalies.Record(ctx, anomaly); err != nil {
			return Result{}, fmt.Errorf("billing processor: record anomaly: %w", err)
		}
		if p.notifier != nil {
			p.notifier.Notify(ctx, AnomalyEvent{Anomaly: anomaly, Customer: in.Customer, Meter: in.Meter, Band: band})
		}
		outcome = string(OutcomeInconsistent)
		p.logger.Info("reading inconsistent",
			zap.Int64("customer_id", in.Customer.ID),
			zap.Int64("meter_id", in.Meter.ID),
			zap.Float64("kwh", in.KWh),
			zap.Float64("average_kwh", average),
		)
		return Result{
			Outcome:   OutcomeInconsistent,
			Message:   MessageInconsistent,
			ReadingID: readingID,
			Average:   average,
			Band:      band,
		}, nil
	}

	amount := p.tariff.Price(in.KWh)
	invoice := billing.Invoice{
		ID:          p.ids.NextInvoiceID(),
		CustomerID:  in.Customer.ID,
		ReadingID:   readingID,
		ConsumedKWh: in.KWh,
		Amount:      amount,
		IssuedOn:    billing.Day(now),
		Status:      billing.InvoiceStatusPending,
	}
	if err := p.sink.Save(ctx, invoice); err != nil {
		return Result{}, fmt.Errorf("billing processor: save invoice: %w", err)
	}
	outcome = string(OutcomeInvoiced)
	metrics.AddInvoiced(invoice.ConsumedKWh, invoice.Amount)
	p.logger.Info("invoice issued",
		zap.Int64("invoice_id", invoice.ID),
		zap.Int64("customer_id", invoice.CustomerID),
		zap.Float64("kwh", invoice.ConsumedKWh),
		zap.Float64("amount", invoice.Amount),
	)
	return Result{
		Outcome:   OutcomeInvoiced,
		Message:   fmt.Sprintf("invoice issued: %.2f", amount),
		ReadingID: readingID,
		Average:   average,
		Band:      band,
		Amount:    amount,
		Invoice:   &invoice,
	}, nil
}
