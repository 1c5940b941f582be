package application

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	billing "utility-billing/internal/billing/domain"
	"utility-billing/internal/observability/logging"
	"utility-billing/internal/recordstore"
)

// Candidate is an externally supplied reading for a meter.
type Candidate struct {
	MeterID int64
	KWh     float64
}

// ParseCandidates parses "meter=kwh" pairs separated by commas.
func ParseCandidates(value string) ([]Candidate, error) {
	var out []Candidate
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		meter, kwh, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("billing candidates: %q: expected meter=kwh", part)
		}
		meterID, err := strconv.ParseInt(strings.TrimSpace(meter), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("billing candidates: %q: %w", part, err)
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(kwh), 64)
		if err != nil {
			return nil, fmt.Errorf("billing candidates: %q: %w", part, err)
		}
		out = append(out, Candidate{MeterID: meterID, KWh: value})
	}
	return out, nil
}

// RunRequest names the input table and optional explicit candidates.
type RunRequest struct {
	InputPath  string
	Candidates []Candidate
}

// MeterResult is the outcome for one meter in a run.
type MeterResult struct {
	MeterID    int64  `json:"meter_id"`
	CustomerID int64  `json:"customer_id"`
	Result     Result `json:"result"`
}

// RunReport summarises a billing run.
type RunReport struct {
	Customers    int               `json:"customers"`
	Meters       int               `json:"meters"`
	Readings     int               `json:"readings"`
	Results      []MeterResult     `json:"results"`
	Invoices     []billing.Invoice `json:"invoices"`
	Inconsistent int               `json:"inconsistent"`
	Session      *Session          `json:"-"`
}

// Session is a loaded record store wired to a billing service.
type Session struct {
	Store   *recordstore.Store
	Service *Service
}

// RunnerConfig wires a Runner.
type RunnerConfig struct {
	Sink      billing.InvoiceSink
	Anomalies billing.AnomalyLog
	Policy    Policy
	Clock     Clock
	Notifier  AnomalyNotifier
	Logger    *zap.Logger
	// InvoiceIDFloor keeps new invoice ids above ones already persisted.
	InvoiceIDFloor int64
	StoreOptions   []recordstore.Option
}

// Runner is the batch entry point: load a table, bill, report.
type Runner struct {
	cfg      RunnerConfig
	analyzer billing.Analyzer
	tariff   *billing.TieredTariff
	logger   *zap.Logger
}

// NewRunner validates the configuration.
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if cfg.Sink == nil {
		return nil, errors.New("billing runner: nil invoice sink")
	}
	if cfg.Anomalies == nil {
		return nil, errors.New("billing runner: nil anomaly log")
	}
	if cfg.Policy.Tiers == nil {
		cfg.Policy = DefaultPolicy()
	}
	analyzer, err := cfg.Policy.Analyzer()
	if err != nil {
		return nil, err
	}
	tariff, err := cfg.Policy.Tariff()
	if err != nil {
		return nil, err
	}
	return &Runner{cfg: cfg, analyzer: analyzer, tariff: tariff, logger: logging.OrNop(cfg.Logger)}, nil
}

// Open loads the table at path and wires a billing service over it.
func (r *Runner) Open(ctx context.Context, path string) (*Session, error) {
	if path == "" {
		return nil, errors.New("billing runner: empty input path")
	}
	store, err := recordstore.LoadFile(ctx, path, r.cfg.StoreOptions...)
	if err != nil {
		return nil, err
	}
	store.ObserveInvoiceID(r.cfg.InvoiceIDFloor)

	processor, err := NewProcessor(r.cfg.Sink, r.cfg.Anomalies, store,
		WithAnalyzer(r.analyzer),
		WithTariff(r.tariff),
		WithClock(r.cfg.Clock),
		WithNotifier(r.cfg.Notifier),
		WithLogger(r.logger),
	)
	if err != nil {
		return nil, err
	}
	service, err := NewService(store, processor)
	if err != nil {
		return nil, err
	}
	r.logger.Info("input loaded",
		zap.String("path", path),
		zap.Int("customers", len(store.Customers())),
		zap.Int("meters", len(store.Meters())),
		zap.Int("readings", len(store.Readings())),
	)
	return &Session{Store: store, Service: service}, nil
}

// Run loads req.InputPath and bills either the explicit candidates or, when
// none are given, the latest reading of every meter.
func (r *Runner) Run(ctx context.Context, req RunRequest) (*RunReport, error) {
	session, err := r.Open(ctx, req.InputPath)
	if err != nil {
		return nil, err
	}
	report := &RunReport{
		Customers: len(session.Store.Customers()),
		Meters:    len(session.Store.Meters()),
		Readings:  len(session.Store.Readings()),
		Session:   session,
	}

	if len(req.Candidates) > 0 {
		for _, candidate := range req.Candidates {
			result, err := session.Service.BillMeter(ctx, candidate.MeterID, candidate.KWh)
			if err != nil {
				return nil, fmt.Errorf("billing runner: meter %d: %w", candidate.MeterID, err)
			}
			r.collect(session, report, candidate.MeterID, result)
		}
		return report, nil
	}

	for _, meter := range session.Store.Meters() {
		result, ok, err := session.Service.BillLatest(ctx, meter.ID)
		if err != nil {
			return nil, fmt.Errorf("billing runner: meter %d: %w", meter.ID, err)
		}
		if ok {
			r.collect(session, report, meter.ID, result)
		}
	}
	return report, nil
}

func (r *Runner) collect(session *Session, report *RunReport, meterID int64, result Result) {
	var customerID int64
	if meter, err := session.Store.Meter(meterID); err == nil {
		customerID = meter.CustomerID
	}
	report.Results = append(report.Results, MeterResult{MeterID: meterID, CustomerID: customerID, Result: result})
	if result.Invoice != nil {
		report.Invoices = append(report.Invoices, *result.Invoice)
	}
	if result.Outcome == OutcomeInconsistent {
		report.Inconsistent++
	}
}
