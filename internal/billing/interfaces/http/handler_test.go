package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"utility-billing/internal/audit"
	billingapp "utility-billing/internal/billing/application"
	billing "utility-billing/internal/billing/domain"
	"utility-billing/internal/billing/infrastructure/csvfile"
	"utility-billing/internal/billing/infrastructure/memory"
	masterdata "utility-billing/internal/masterdata/domain"
	metering "utility-billing/internal/metering/domain"
	"utility-billing/internal/recordstore"
)

type fixedClock struct{}

func (fixedClock) Now() time.Time { return time.Date(2024, 4, 15, 9, 0, 0, 0, time.UTC) }

type recordingAudit struct {
	entries []audit.Entry
}

func (r *recordingAudit) Log(_ context.Context, entry audit.Entry) error {
	r.entries = append(r.entries, entry)
	return nil
}

type fixture struct {
	mux       *http.ServeMux
	invoices  *memory.InvoiceRepository
	anomalies *memory.AnomalyLog
	audit     *recordingAudit
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	store := recordstore.New()
	if _, err := store.AddCustomer(masterdata.Customer{ID: 1, Name: "Ana Souza"}); err != nil {
		t.Fatalf("add customer: %v", err)
	}
	meter, err := masterdata.NewMeter(10, 1, "MED-0010")
	if err != nil {
		t.Fatalf("new meter: %v", err)
	}
	if _, err := store.AddMeter(meter); err != nil {
		t.Fatalf("add meter: %v", err)
	}
	for i, kwh := range []float64{90, 95, 100} {
		reading, err := metering.NewReading(int64(i+1), 10, "2024-01", kwh, "2024-01-31")
		if err != nil {
			t.Fatalf("new reading: %v", err)
		}
		if err := store.AppendReading(reading); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	invoices := memory.NewInvoiceRepository()
	anomalies := memory.NewAnomalyLog()
	processor, err := billingapp.NewProcessor(invoices, anomalies, store, billingapp.WithClock(fixedClock{}))
	if err != nil {
		t.Fatalf("new processor: %v", err)
	}
	service, err := billingapp.NewService(store, processor)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	auditLog := &recordingAudit{}
	handler, err := NewHandler(service, invoices, store, "BRL", nil, WithAuditLogger(auditLog))
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	mux := http.NewServeMux()
	handler.Register(mux)
	return fixture{mux: mux, invoices: invoices, anomalies: anomalies, audit: auditLog}
}

func (f fixture) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	resp := httptest.NewRecorder()
	f.mux.ServeHTTP(resp, req)
	return resp
}

func TestPostReading_Invoiced(t *testing.T) {
	f := newFixture(t)
	resp := f.do(http.MethodPost, "/api/v1/readings", `{"meter_id":10,"kwh":98}`)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var result billingapp.Result
	if err := json.Unmarshal(resp.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.Outcome != billingapp.OutcomeInvoiced || result.Amount != 39.2 || result.Invoice == nil {
		t.Fatalf("unexpected result: %+v", result)
	}
	list, _ := f.invoices.List(context.Background())
	if len(list) != 1 || list[0].Status != billing.InvoiceStatusPending {
		t.Fatalf("invoice not stored: %+v", list)
	}
	if len(f.audit.entries) != 1 || f.audit.entries[0].ResourceID != "10" || f.audit.entries[0].Action != "reading.bill" {
		t.Fatalf("unexpected audit entries: %+v", f.audit.entries)
	}
}

func TestPostReading_Inconsistent(t *testing.T) {
	f := newFixture(t)
	resp := f.do(http.MethodPost, "/api/v1/readings", `{"meter_id":10,"kwh":115}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), `"outcome":"inconsistent"`) {
		t.Fatalf("unexpected body: %s", resp.Body.String())
	}
	if len(f.anomalies.Entries()) != 1 {
		t.Fatalf("expected one anomaly")
	}
}

func TestPostReading_Errors(t *testing.T) {
	f := newFixture(t)
	cases := []struct {
		method string
		body   string
		want   int
	}{
		{http.MethodGet, "", http.StatusMethodNotAllowed},
		{http.MethodPost, `not json`, http.StatusBadRequest},
		{http.MethodPost, `{"meter_id":10}`, http.StatusBadRequest},
		{http.MethodPost, `{"kwh":10}`, http.StatusBadRequest},
		{http.MethodPost, `{"meter_id":10,"kwh":-1}`, http.StatusBadRequest},
		{http.MethodPost, `{"meter_id":99,"kwh":10}`, http.StatusNotFound},
	}
	for _, tc := range cases {
		if resp := f.do(tc.method, "/api/v1/readings", tc.body); resp.Code != tc.want {
			t.Fatalf("%s %q: expected %d, got %d", tc.method, tc.body, tc.want, resp.Code)
		}
	}
}

func TestInvoiceListAndExports(t *testing.T) {
	f := newFixture(t)
	if resp := f.do(http.MethodPost, "/api/v1/readings", `{"meter_id":10,"kwh":98}`); resp.Code != http.StatusCreated {
		t.Fatalf("seed invoice: %d", resp.Code)
	}

	resp := f.do(http.MethodGet, "/api/v1/invoices?customer_id=1", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("list: %d", resp.Code)
	}
	var list []billing.Invoice
	if err := json.Unmarshal(resp.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 1 || list[0].Amount != 39.2 {
		t.Fatalf("unexpected list: %+v", list)
	}
	if resp := f.do(http.MethodGet, "/api/v1/invoices?customer_id=2", ""); strings.TrimSpace(resp.Body.String()) != "[]" {
		t.Fatalf("expected empty filtered list, got %s", resp.Body.String())
	}
	if resp := f.do(http.MethodGet, "/api/v1/invoices?customer_id=x", ""); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}

	resp = f.do(http.MethodGet, "/api/v1/exports/invoices.csv", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("csv export: %d", resp.Code)
	}
	exported, err := csvfile.ReadInvoicesCSV(bytes.NewReader(resp.Body.Bytes()))
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(exported) != 1 || exported[0].ID != list[0].ID || exported[0].IssueDate() != "2024-04-15" {
		t.Fatalf("unexpected csv export: %+v", exported)
	}

	resp = f.do(http.MethodGet, "/api/v1/exports/invoices.xlsx", "")
	if resp.Code != http.StatusOK || resp.Body.Len() == 0 {
		t.Fatalf("xlsx export: %d", resp.Code)
	}

	resp = f.do(http.MethodGet, "/api/v1/invoices/1/pdf", "")
	if resp.Code != http.StatusOK || !bytes.HasPrefix(resp.Body.Bytes(), []byte("%PDF")) {
		t.Fatalf("pdf export: %d", resp.Code)
	}
}

func TestInvoicePDF_Errors(t *testing.T) {
	f := newFixture(t)
	if resp := f.do(http.MethodGet, "/api/v1/invoices/9/pdf", ""); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
	if resp := f.do(http.MethodGet, "/api/v1/invoices/abc/pdf", ""); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
	if resp := f.do(http.MethodGet, "/api/v1/invoices/1/html", ""); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}
