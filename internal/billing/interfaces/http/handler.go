package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"utility-billing/internal/audit"
	"utility-billing/internal/auth"
	billingapp "utility-billing/internal/billing/application"
	billing "utility-billing/internal/billing/domain"
	"utility-billing/internal/billing/infrastructure/csvfile"
	billinginterfaces "utility-billing/internal/billing/interfaces"
	masterdata "utility-billing/internal/masterdata/domain"
	metering "utility-billing/internal/metering/domain"
	"utility-billing/internal/observability/logging"
	"utility-billing/internal/observability/metrics"
)

// ReadingBiller bills a new reading for a meter.
type ReadingBiller interface {
	BillMeter(ctx context.Context, meterID int64, kwh float64) (billingapp.Result, error)
}

// InvoiceReader lists and loads invoices.
type InvoiceReader interface {
	List(ctx context.Context) ([]billing.Invoice, error)
	Get(ctx context.Context, id int64) (*billing.Invoice, error)
}

// CustomerReader loads customers for invoice rendering.
type CustomerReader interface {
	Customer(id int64) (masterdata.Customer, error)
}

// Handler provides billing HTTP endpoints.
type Handler struct {
	biller    ReadingBiller
	invoices  InvoiceReader
	customers CustomerReader
	currency  string
	logger    *zap.Logger
	audit     audit.Logger
}

// Option configures the handler.
type Option func(*Handler)

// WithAuditLogger records billed readings in an audit log.
func WithAuditLogger(logger audit.Logger) Option {
	return func(h *Handler) {
		h.audit = logger
	}
}

// NewHandler constructs a handler.
func NewHandler(biller ReadingBiller, invoices InvoiceReader, customers CustomerReader, currency string, logger *zap.Logger, opts ...Option) (*Handler, error) {
	if biller == nil {
		return nil, errors.New("billing handler: nil biller")
	}
	if invoices == nil {
		return nil, errors.New("billing handler: nil invoice reader")
	}
	if customers == nil {
		return nil, errors.New("billing handler: nil customer reader")
	}
	h := &Handler{
		biller:    biller,
		invoices:  invoices,
		customers: customers,
		currency:  currency,
		logger:    logging.OrNop(logger),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Register mounts the billing routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/readings", h.handleReadings)
	mux.HandleFunc("/api/v1/invoices", h.handleInvoices)
	mux.HandleFunc("/api/v1/invoices/", h.handleInvoicePDF)
	mux.HandleFunc("/api/v1/exports/invoices.csv", h.handleExportCSV)
	mux.HandleFunc("/api/v1/exports/invoices.xlsx", h.handleExportXLSX)
}

type readingRequest struct {
	MeterID int64    `json:"meter_id"`
	KWh     *float64 `json:"kwh"`
}

func (h *Handler) handleReadings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req readingRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if req.MeterID <= 0 {
		http.Error(w, "meter_id is required", http.StatusBadRequest)
		return
	}
	if req.KWh == nil {
		http.Error(w, "kwh is required", http.StatusBadRequest)
		return
	}

	result, err := h.biller.BillMeter(r.Context(), req.MeterID, *req.KWh)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.recordAudit(r, req, result)
	status := http.StatusCreated
	if result.Outcome == billingapp.OutcomeInconsistent {
		status = http.StatusOK
	}
	writeJSON(w, status, result)
}

func (h *Handler) handleInvoices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	list, err := h.listInvoices(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) handleInvoicePDF(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/invoices/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[1] != "pdf" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "invalid invoice id", http.StatusBadRequest)
		return
	}

	start := time.Now()
	invoice, err := h.invoices.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	customer, err := h.customers.Customer(invoice.CustomerID)
	if err != nil {
		customer = masterdata.Customer{ID: invoice.CustomerID}
	}
	data, err := billinginterfaces.BuildInvoicePDF(*invoice, customer, h.currency)
	if err != nil {
		metrics.ObserveExport("pdf", metrics.ResultError, time.Since(start))
		h.respondError(w, r, err)
		return
	}
	metrics.ObserveExport("pdf", metrics.ResultSuccess, time.Since(start))
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=fatura-%d.pdf", id))
	_, _ = w.Write(data)
}

func (h *Handler) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	start := time.Now()
	list, err := h.listInvoices(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := csvfile.WriteInvoicesCSV(&buf, list); err != nil {
		metrics.ObserveExport("csv", metrics.ResultError, time.Since(start))
		h.respondError(w, r, err)
		return
	}
	metrics.ObserveExport("csv", metrics.ResultSuccess, time.Since(start))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename=faturas.csv")
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	start := time.Now()
	list, err := h.listInvoices(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	data, err := billinginterfaces.BuildInvoicesXLSX(list)
	if err != nil {
		metrics.ObserveExport("xlsx", metrics.ResultError, time.Since(start))
		h.respondError(w, r, err)
		return
	}
	metrics.ObserveExport("xlsx", metrics.ResultSuccess, time.Since(start))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename=faturas.xlsx")
	_, _ = w.Write(data)
}

func (h *Handler) recordAudit(r *http.Request, req readingRequest, result billingapp.Result) {
	if h.audit == nil {
		return
	}
	entry := audit.ReadingBilled(audit.BilledReading{
		MeterID:   req.MeterID,
		KWh:       *req.KWh,
		ReadingID: result.ReadingID,
		Outcome:   string(result.Outcome),
	})
	entry.Actor = auth.SubjectFromContext(r.Context())
	entry.Role = string(auth.RoleFromContext(r.Context()))
	entry.IP = r.RemoteAddr
	entry.UserAgent = r.UserAgent()
	if err := h.audit.Log(r.Context(), entry); err != nil {
		h.logger.Warn("audit log failed", zap.Int64("meter_id", req.MeterID), zap.Error(err))
	}
}

// listInvoices applies the optional customer_id filter.
func (h *Handler) listInvoices(r *http.Request) ([]billing.Invoice, error) {
	list, err := h.invoices.List(r.Context())
	if err != nil {
		return nil, err
	}
	value := r.URL.Query().Get("customer_id")
	if value == "" {
		return list, nil
	}
	customerID, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return nil, errBadQuery
	}
	filtered := make([]billing.Invoice, 0, len(list))
	for _, invoice := range list {
		if invoice.CustomerID == customerID {
			filtered = append(filtered, invoice)
		}
	}
	return filtered, nil
}

var errBadQuery = errors.New("invalid customer_id")

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, masterdata.ErrMeterNotFound),
		errors.Is(err, masterdata.ErrCustomerNotFound),
		errors.Is(err, billing.ErrInvoiceNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, billing.ErrNegativeConsumption),
		errors.Is(err, metering.ErrNegativeConsumption),
		errors.Is(err, errBadQuery):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		h.logger.Error("billing request failed", zap.String("path", r.URL.Path), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}
