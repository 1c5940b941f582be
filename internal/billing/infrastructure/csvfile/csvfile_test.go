package csvfile

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	billing "utility-billing/internal/billing/domain"
)

func TestAnomalyLog_AppendsRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leituras_inconsistentes.csv")
	if err := os.WriteFile(path, []byte("7,300,2024-03-01,inconsistente\n"), 0o644); err != nil {
		t.Fatalf("seed log: %v", err)
	}
	log, err := NewAnomalyLog(path)
	if err != nil {
		t.Fatalf("new log: %v", err)
	}
	day := time.Date(2024, 4, 15, 0, 0, 0, 0, time.UTC)
	if err := log.Record(context.Background(), billing.Anomaly{CustomerID: 1, KWh: 115, ObservedOn: day}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := log.Record(context.Background(), billing.Anomaly{CustomerID: 2, KWh: 210.5, ObservedOn: day}); err != nil {
		t.Fatalf("record: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	want := "7,300,2024-03-01,inconsistente\n" +
		"1,115,2024-04-15,inconsistente\n" +
		"2,210.5,2024-04-15,inconsistente\n"
	if string(data) != want {
		t.Fatalf("unexpected log contents:\n%s", data)
	}
}

func TestAnomalyLog_ConcurrentRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "anomalies.csv")
	log, err := NewAnomalyLog(path)
	if err != nil {
		t.Fatalf("new log: %v", err)
	}
	var wg sync.WaitGroup
	for i := 1; i <= 20; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_ = log.Record(context.Background(), billing.Anomaly{CustomerID: id, KWh: 1, ObservedOn: time.Now()})
		}(int64(i))
	}
	wg.Wait()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if lines := strings.Count(string(data), "\n"); lines != 20 {
		t.Fatalf("expected 20 rows, got %d", lines)
	}
}

func TestNewAnomalyLog_EmptyPath(t *testing.T) {
	if _, err := NewAnomalyLog(""); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestInvoices_RoundTrip(t *testing.T) {
	invoices := []billing.Invoice{
		{ID: 1, CustomerID: 1, ReadingID: 4, ConsumedKWh: 98, Amount: 39.2, IssuedOn: time.Date(2024, 4, 15, 0, 0, 0, 0, time.UTC), Status: billing.InvoiceStatusPending},
		{ID: 2, CustomerID: 2, ReadingID: 9, ConsumedKWh: 200.01, Amount: 130.0065, IssuedOn: time.Date(2024, 4, 16, 0, 0, 0, 0, time.UTC), Status: billing.InvoiceStatusPending},
	}
	path := filepath.Join(t.TempDir(), "faturas.csv")
	if err := os.WriteFile(path, []byte("stale"), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := ExportInvoicesFile(path, invoices); err != nil {
		t.Fatalf("export: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.HasPrefix(string(data), "fatura_id,cliente_id,leitura_id,kwh_consumido,valor_fatura,data_emissao,situacao_fatura\n") {
		t.Fatalf("unexpected header:\n%s", data)
	}

	got, err := ReadInvoicesCSV(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("read invoices: %v", err)
	}
	if len(got) != len(invoices) {
		t.Fatalf("expected %d invoices, got %d", len(invoices), len(got))
	}
	for i := range invoices {
		if got[i] != invoices[i] {
			t.Fatalf("invoice %d mismatch: got=%+v want=%+v", i, got[i], invoices[i])
		}
	}
}

func TestReadInvoicesCSV_Errors(t *testing.T) {
	if _, err := ReadInvoicesCSV(strings.NewReader("")); err != ErrInvalidHeader {
		t.Fatalf("expected ErrInvalidHeader, got %v", err)
	}
	if _, err := ReadInvoicesCSV(strings.NewReader("a,b,c,d,e,f,g\n")); err != ErrInvalidHeader {
		t.Fatalf("expected ErrInvalidHeader, got %v", err)
	}
	bad := strings.Join(InvoiceHeader, ",") + "\nx,1,1,1,1,2024-01-01,pending\n"
	if _, err := ReadInvoicesCSV(strings.NewReader(bad)); err == nil {
		t.Fatalf("expected parse error")
	}
}
