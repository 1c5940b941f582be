package csvfile

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	billing "utility-billing/internal/billing/domain"
	"utility-billing/internal/observability/metrics"
)

// InvoiceHeader is the header row of the invoice export.
var InvoiceHeader = []string{
	"fatura_id",
	"cliente_id",
	"leitura_id",
	"kwh_consumido",
	"valor_fatura",
	"data_emissao",
	"situacao_fatura",
}

// ErrInvalidHeader is returned when an invoice file does not start with
// InvoiceHeader.
var ErrInvalidHeader = errors.New("csv invoices: invalid header")

// WriteInvoicesCSV writes the header and one row per invoice.
func WriteInvoicesCSV(w io.Writer, invoices []billing.Invoice) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(InvoiceHeader); err != nil {
		return err
	}
	for _, invoice := range invoices {
		if err := cw.Write(invoiceRecord(invoice)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportInvoicesFile writes invoices to path, replacing any existing file.
func ExportInvoicesFile(path string, invoices []billing.Invoice) (err error) {
	start := time.Now()
	defer func() {
		result := metrics.ResultSuccess
		if err != nil {
			result = metrics.ResultError
		}
		metrics.ObserveExport("csv", result, time.Since(start))
	}()

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteInvoicesCSV(f, invoices); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// ReadInvoicesCSV parses a file written by WriteInvoicesCSV.
func ReadInvoicesCSV(r io.Reader) ([]billing.Invoice, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(InvoiceHeader)
	header, err := cr.Read()
	if err == io.EOF {
		return nil, ErrInvalidHeader
	}
	if err != nil {
		return nil, err
	}
	for i, name := range InvoiceHeader {
		if header[i] != name {
			return nil, ErrInvalidHeader
		}
	}

	var out []billing.Invoice
	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		invoice, err := parseInvoice(record)
		if err != nil {
			return nil, fmt.Errorf("csv invoices: line %d: %w", line, err)
		}
		out = append(out, invoice)
	}
}

func invoiceRecord(i billing.Invoice) []string {
	return []string{
		strconv.FormatInt(i.ID, 10),
		strconv.FormatInt(i.CustomerID, 10),
		strconv.FormatInt(i.ReadingID, 10),
		strconv.FormatFloat(i.ConsumedKWh, 'f', -1, 64),
		strconv.FormatFloat(i.Amount, 'f', -1, 64),
		i.IssueDate(),
		string(i.Status),
	}
}

func parseInvoice(record []string) (billing.Invoice, error) {
	var (
		invoice billing.Invoice
		err     error
	)
	if invoice.ID, err = strconv.ParseInt(record[0], 10, 64); err != nil {
		return invoice, err
	}
	if invoice.CustomerID, err = strconv.ParseInt(record[1], 10, 64); err != nil {
		return invoice, err
	}
	if invoice.ReadingID, err = strconv.ParseInt(record[2], 10, 64); err != nil {
		return invoice, err
	}
	if invoice.ConsumedKWh, err = strconv.ParseFloat(record[3], 64); err != nil {
		return invoice, err
	}
	if invoice.Amount, err = strconv.ParseFloat(record[4], 64); err != nil {
		return invoice, err
	}
	if invoice.IssuedOn, err = time.Parse(billing.DateLayout, record[5]); err != nil {
		return invoice, err
	}
	invoice.Status = billing.InvoiceStatus(record[6])
	return invoice, nil
}
