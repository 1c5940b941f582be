package recordstore

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	masterdata "utility-billing/internal/masterdata/domain"
)

const header = "cliente_id,nome,cpf,email,telefone,medidor_id,num_medidor,leitura_id,mes_referencia,leitura_kwh,data_leitura\n"

const sampleTable = header +
	"1,Ana Souza,123.456.789-00,ana@example.com,11999990000,10,MED-0010,1,2024-01,90,2024-01-31\n" +
	"1,Ana S. Renamed,000,other@example.com,000,10,MED-XXXX,2,2024-02,95,2024-02-29\n" +
	"1,Ana Souza,123.456.789-00,ana@example.com,11999990000,10,MED-0010,3,2024-03,100,2024-03-31\n" +
	"2,Bruno Lima,987.654.321-00,bruno@example.com,21988880000,20,MED-0020,4,2024-01,210.5,2024-01-31\n"

func TestLoadCSV_DedupesCustomersAndMeters(t *testing.T) {
	store, err := LoadCSV(context.Background(), strings.NewReader(sampleTable))
	if err != nil {
		t.Fatalf("load csv: %v", err)
	}

	customers := store.Customers()
	if len(customers) != 2 {
		t.Fatalf("expected 2 customers, got %d", len(customers))
	}
	ana, err := store.Customer(1)
	if err != nil {
		t.Fatalf("customer 1: %v", err)
	}
	if ana.Name != "Ana Souza" || ana.Email != "ana@example.com" {
		t.Fatalf("first occurrence must win, got %+v", ana)
	}
	meter, err := store.Meter(10)
	if err != nil {
		t.Fatalf("meter 10: %v", err)
	}
	if meter.Number != "MED-0010" || meter.CustomerID != 1 {
		t.Fatalf("unexpected meter: %+v", meter)
	}

	if got := len(store.Readings()); got != 4 {
		t.Fatalf("expected 4 readings, got %d", got)
	}
	history := store.ReadingsForMeter(10)
	if len(history) != 3 {
		t.Fatalf("expected 3 readings for meter 10, got %d", len(history))
	}
	for i, want := range []float64{90, 95, 100} {
		if history[i].KWh != want {
			t.Fatalf("reading %d kwh mismatch: got=%v want=%v", i, history[i].KWh, want)
		}
	}
}

func TestLoadCSV_MalformedRowsFailWholeLoad(t *testing.T) {
	cases := []struct {
		name string
		row  string
	}{
		{name: "non-numeric customer id", row: "abc,X,1,x@y,1,10,M,1,2024-01,90,2024-01-31\n"},
		{name: "non-numeric meter id", row: "1,X,1,x@y,1,M10,M,1,2024-01,90,2024-01-31\n"},
		{name: "non-numeric reading id", row: "1,X,1,x@y,1,10,M,one,2024-01,90,2024-01-31\n"},
		{name: "non-numeric kwh", row: "1,X,1,x@y,1,10,M,1,2024-01,ninety,2024-01-31\n"},
		{name: "negative kwh", row: "1,X,1,x@y,1,10,M,1,2024-01,-1,2024-01-31\n"},
		{name: "nan kwh", row: "1,X,1,x@y,1,10,M,1,2024-01,NaN,2024-01-31\n"},
		{name: "infinite kwh", row: "1,X,1,x@y,1,10,M,1,2024-01,+Inf,2024-01-31\n"},
	}
	good := "1,X,1,x@y,1,10,M,1,2024-01,90,2024-01-31\n"
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadCSV(context.Background(), strings.NewReader(header+good+tc.row))
			if err == nil {
				t.Fatalf("expected load error")
			}
			if !strings.Contains(err.Error(), "row 3") {
				t.Fatalf("error should name the row: %v", err)
			}
		})
	}
}

func TestLoadCSV_RejectsNonFiniteKWh(t *testing.T) {
	table := header + "1,X,1,x@y,1,10,M,1,2024-01,90,2024-01-31\n" + "1,X,1,x@y,1,10,M,2,2024-02,nan,2024-02-29\n"
	_, err := LoadCSV(context.Background(), strings.NewReader(table))
	if !errors.Is(err, ErrNotFinite) {
		t.Fatalf("expected ErrNotFinite, got %v", err)
	}
}

func TestStore_TransitionsUsePerMeterIDs(t *testing.T) {
	table := sampleTable + "2,Bruno Lima,987.654.321-00,bruno@example.com,21988880000,20,MED-0020,3,2024-02,500,2024-02-29\n"
	store, err := LoadCSV(context.Background(), strings.NewReader(table))
	if err != nil {
		t.Fatalf("load csv: %v", err)
	}
	if err := store.MarkReadingInconsistent(20, 3); err != nil {
		t.Fatalf("mark inconsistent: %v", err)
	}
	if got := len(store.BillableHistory(10)); got != 3 {
		t.Fatalf("meter 10 must keep 3 billable readings, got %d", got)
	}
	if got := len(store.BillableHistory(20)); got != 1 {
		t.Fatalf("meter 20 must keep 1 billable reading, got %d", got)
	}
}

func TestLoadCSV_MissingColumn(t *testing.T) {
	table := "cliente_id,nome\n1,Ana\n"
	_, err := LoadCSV(context.Background(), strings.NewReader(table))
	if !errors.Is(err, ErrMissingColumn) {
		t.Fatalf("expected missing column error, got %v", err)
	}
	_, err = LoadCSV(context.Background(), strings.NewReader(""))
	if !errors.Is(err, ErrMissingColumn) {
		t.Fatalf("expected missing column error for empty input, got %v", err)
	}
}

func TestLoadCSV_HonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := LoadCSV(ctx, strings.NewReader(sampleTable)); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
}

func TestLoadFile_XLSX(t *testing.T) {
	book := excelize.NewFile()
	sheet := book.GetSheetName(0)
	lines := strings.Split(strings.TrimSpace(sampleTable), "\n")
	for r, line := range lines {
		for c, value := range strings.Split(line, ",") {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				t.Fatalf("cell name: %v", err)
			}
			if err := book.SetCellStr(sheet, cell, value); err != nil {
				t.Fatalf("set cell: %v", err)
			}
		}
	}
	var buf bytes.Buffer
	if err := book.Write(&buf); err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	path := filepath.Join(t.TempDir(), "leituras.xlsx")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	store, err := LoadFile(context.Background(), path)
	if err != nil {
		t.Fatalf("load xlsx: %v", err)
	}
	if len(store.Customers()) != 2 || len(store.Meters()) != 2 || len(store.Readings()) != 4 {
		t.Fatalf("unexpected counts: customers=%d meters=%d readings=%d",
			len(store.Customers()), len(store.Meters()), len(store.Readings()))
	}
	bruno, err := store.Customer(2)
	if err != nil {
		t.Fatalf("customer 2: %v", err)
	}
	if bruno.TaxID != "987.654.321-00" {
		t.Fatalf("tax id mismatch: %q", bruno.TaxID)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(context.Background(), filepath.Join(t.TempDir(), "absent.csv"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not exist error, got %v", err)
	}
}

func TestStore_IDsSkipLoadedReadings(t *testing.T) {
	store, err := LoadCSV(context.Background(), strings.NewReader(sampleTable))
	if err != nil {
		t.Fatalf("load csv: %v", err)
	}
	if got := store.NextReadingID(); got != 5 {
		t.Fatalf("expected next reading id 5, got %d", got)
	}
	if got := store.NextInvoiceID(); got != 1 {
		t.Fatalf("expected first invoice id 1, got %d", got)
	}
	store.ObserveInvoiceID(40)
	if got := store.NextInvoiceID(); got != 41 {
		t.Fatalf("expected invoice id 41 after observe, got %d", got)
	}
}

func TestStore_ReadingTransitions(t *testing.T) {
	store, err := LoadCSV(context.Background(), strings.NewReader(sampleTable))
	if err != nil {
		t.Fatalf("load csv: %v", err)
	}
	if err := store.MarkReadingReviewed(10, 2); err != nil {
		t.Fatalf("mark reviewed: %v", err)
	}
	if err := store.MarkReadingReviewed(10, 99); err == nil {
		t.Fatalf("expected not found for unknown reading")
	}
	if err := store.MarkReadingReviewed(20, 2); err == nil {
		t.Fatalf("expected not found for reading of another meter")
	}
	if err := store.UpdateMeterReading(10, 98); err != nil {
		t.Fatalf("update meter: %v", err)
	}
	meter, _ := store.Meter(10)
	if meter.CurrentKWh != 98 {
		t.Fatalf("current reading mismatch: %v", meter.CurrentKWh)
	}
	if err := store.UpdateMeterReading(77, 1); !errors.Is(err, masterdata.ErrMeterNotFound) {
		t.Fatalf("expected meter not found, got %v", err)
	}
}
