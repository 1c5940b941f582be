package recordstore

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	masterdata "utility-billing/internal/masterdata/domain"
	metering "utility-billing/internal/metering/domain"
	"utility-billing/internal/observability/metrics"
)

// Input table columns. One row per reading; customer and meter fields repeat.
const (
	ColCustomerID  = "cliente_id"
	ColName        = "nome"
	ColTaxID       = "cpf"
	ColEmail       = "email"
	ColPhone       = "telefone"
	ColMeterID     = "medidor_id"
	ColMeterNumber = "num_medidor"
	ColReadingID   = "leitura_id"
	ColPeriod      = "mes_referencia"
	ColKWh         = "leitura_kwh"
	ColReadOn      = "data_leitura"
)

// Columns lists every required input column.
var Columns = []string{
	ColCustomerID, ColName, ColTaxID, ColEmail, ColPhone,
	ColMeterID, ColMeterNumber,
	ColReadingID, ColPeriod, ColKWh, ColReadOn,
}

// ErrMissingColumn is returned when the header lacks a required column.
var ErrMissingColumn = errors.New("recordstore: missing column")

// ErrNotFinite is returned for NaN or infinite numeric cells.
var ErrNotFinite = errors.New("recordstore: value is not finite")

// LoadFile loads a table from path. Files ending in .xlsx are read as
// workbooks, anything else as CSV.
func LoadFile(ctx context.Context, path string, opts ...Option) (*Store, error) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveLoad(result, time.Since(start))
	}()

	f, err := os.Open(path)
	if err != nil {
		result = metrics.ResultError
		return nil, err
	}
	defer f.Close()

	var store *Store
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		store, err = LoadXLSX(ctx, f, opts...)
	} else {
		store, err = LoadCSV(ctx, f, opts...)
	}
	if err != nil {
		result = metrics.ResultError
		return nil, err
	}
	return store, nil
}

// LoadCSV parses a header-addressed CSV table. Any malformed row fails the
// whole load.
func LoadCSV(ctx context.Context, r io.Reader, opts ...Option) (*Store, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("recordstore: empty table: %w", ErrMissingColumn)
		}
		return nil, fmt.Errorf("recordstore: read header: %w", err)
	}
	return ingest(ctx, header, func() ([]string, error) {
		return reader.Read()
	}, opts...)
}

// LoadXLSX parses the first sheet of a workbook with the same layout as the
// CSV table.
func LoadXLSX(ctx context.Context, r io.Reader, opts ...Option) (*Store, error) {
	book, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("recordstore: open workbook: %w", err)
	}
	defer book.Close()

	rows, err := book.GetRows(book.GetSheetName(0))
	if err != nil {
		return nil, fmt.Errorf("recordstore: read sheet: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("recordstore: empty table: %w", ErrMissingColumn)
	}
	next := 1
	return ingest(ctx, rows[0], func() ([]string, error) {
		if next >= len(rows) {
			return nil, io.EOF
		}
		row := rows[next]
		next++
		return row, nil
	}, opts...)
}

func ingest(ctx context.Context, header []string, next func() ([]string, error), opts ...Option) (*Store, error) {
	index, err := columnIndex(header)
	if err != nil {
		return nil, err
	}
	store := New(opts...)
	// Line numbers count the header as line 1.
	for line := 2; ; line++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("recordstore: row %d: %w", line, err)
		}
		if blank(record) {
			continue
		}
		if err := ingestRow(store, row{index: index, record: record}); err != nil {
			return nil, fmt.Errorf("recordstore: row %d: %w", line, err)
		}
	}
	return store, nil
}

func ingestRow(store *Store, r row) error {
	customerID, err := r.id(ColCustomerID)
	if err != nil {
		return err
	}
	if _, err := store.AddCustomer(masterdata.Customer{
		ID:    customerID,
		Name:  r.text(ColName),
		TaxID: r.text(ColTaxID),
		Email: r.text(ColEmail),
		Phone: r.text(ColPhone),
	}); err != nil {
		return err
	}

	meterID, err := r.id(ColMeterID)
	if err != nil {
		return err
	}
	meter, err := masterdata.NewMeter(meterID, customerID, r.text(ColMeterNumber))
	if err != nil {
		return err
	}
	if _, err := store.AddMeter(meter); err != nil {
		return err
	}

	readingID, err := r.id(ColReadingID)
	if err != nil {
		return err
	}
	kwh, err := r.number(ColKWh)
	if err != nil {
		return err
	}
	reading, err := metering.NewReading(readingID, meterID, r.text(ColPeriod), kwh, r.text(ColReadOn))
	if err != nil {
		return err
	}
	return store.AppendReading(reading)
}

func columnIndex(header []string) (map[string]int, error) {
	index := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}
	var missing []string
	for _, col := range Columns {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}
	return index, nil
}

type row struct {
	index  map[string]int
	record []string
}

func (r row) text(col string) string {
	i := r.index[col]
	if i >= len(r.record) {
		return ""
	}
	return strings.TrimSpace(r.record[i])
}

func (r row) id(col string) (int64, error) {
	v, err := strconv.ParseInt(r.text(col), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", col, err)
	}
	return v, nil
}

func (r row) number(col string) (float64, error) {
	v, err := strconv.ParseFloat(r.text(col), 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", col, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%s: %w", col, ErrNotFinite)
	}
	return v, nil
}

func blank(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}
