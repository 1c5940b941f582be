package metrics

import (
	"database/sql"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const (
	metricPrefix = "billing_"

	resultSuccess = "success"
	resultError   = "error"

	outcomeInvoiced     = "invoiced"
	outcomeInconsistent = "inconsistent"
)

var (
	registerOnce sync.Once

	loadTotal   *prometheus.CounterVec
	loadLatency *prometheus.HistogramVec

	readingsTotal  *prometheus.CounterVec
	readingLatency *prometheus.HistogramVec
	invoicedAmount prometheus.Counter
	invoicedKWh    prometheus.Counter

	exportTotal   *prometheus.CounterVec
	exportLatency *prometheus.HistogramVec

	notifyTotal *prometheus.CounterVec
)

// Init registers billing metrics and, when db is set, DB-backed gauges.
func Init(db *sql.DB, logger *zap.Logger) {
	registerOnce.Do(func() {
		loadTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "load_total",
				Help: "Total input table loads by result",
			},
			[]string{"result"},
		)
		loadLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "load_latency_seconds",
				Help:    "Input table load latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		readingsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "readings_processed_total",
				Help: "Total candidate readings processed by outcome",
			},
			[]string{"outcome"},
		)
		readingLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "reading_latency_seconds",
				Help:    "Candidate reading processing latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"outcome"},
		)
		invoicedAmount = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "invoiced_amount_total",
				Help: "Sum of issued invoice amounts",
			},
		)
		invoicedKWh = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "invoiced_kwh_total",
				Help: "Sum of invoiced consumption in kWh",
			},
		)

		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "export_total",
				Help: "Total invoice exports by format and result",
			},
			[]string{"format", "result"},
		)
		exportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "export_latency_seconds",
				Help:    "Invoice export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		notifyTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "anomaly_notifications_total",
				Help: "Total anomaly notifications by result",
			},
			[]string{"result"},
		)

		prometheus.MustRegister(
			loadTotal,
			loadLatency,
			readingsTotal,
			readingLatency,
			invoicedAmount,
			invoicedKWh,
			exportTotal,
			exportLatency,
			notifyTotal,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveLoad records input load duration and result.
func ObserveLoad(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if loadTotal != nil {
		loadTotal.WithLabelValues(result).Inc()
	}
	if loadLatency != nil {
		loadLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// ObserveReading records a processed candidate reading.
func ObserveReading(outcome string, duration time.Duration) {
	if outcome == "" {
		outcome = "unknown"
	}
	if readingsTotal != nil {
		readingsTotal.WithLabelValues(outcome).Inc()
	}
	if readingLatency != nil {
		readingLatency.WithLabelValues(outcome).Observe(duration.Seconds())
	}
}

// AddInvoiced accumulates an issued invoice.
func AddInvoiced(kwh, amount float64) {
	if kwh < 0 || amount < 0 {
		return
	}
	if invoicedKWh != nil {
		invoicedKWh.Add(kwh)
	}
	if invoicedAmount != nil {
		invoicedAmount.Add(amount)
	}
}

// ObserveExport records export latency and result.
func ObserveExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if exportTotal != nil {
		exportTotal.WithLabelValues(format, result).Inc()
	}
	if exportLatency != nil {
		exportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// IncNotify increments anomaly notification counter.
func IncNotify(result string) {
	if result == "" {
		result = resultSuccess
	}
	if notifyTotal != nil {
		notifyTotal.WithLabelValues(result).Inc()
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError

	OutcomeInvoiced     = outcomeInvoiced
	OutcomeInconsistent = outcomeInconsistent
)
