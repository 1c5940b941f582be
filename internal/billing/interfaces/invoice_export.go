package interfaces

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	billing "utility-billing/internal/billing/domain"
	"utility-billing/internal/billing/infrastructure/csvfile"
	masterdata "utility-billing/internal/masterdata/domain"
)

// InvoicesSheet is the worksheet holding the invoice rows.
const InvoicesSheet = "faturas"

// BuildInvoicePDF renders a one-page invoice for a customer.
func BuildInvoicePDF(invoice billing.Invoice, customer masterdata.Customer, currency string) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, fmt.Sprintf("Electricity Invoice #%d", invoice.ID))
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Customer: %s (#%d)", customer.Name, invoice.CustomerID))
	pdf.Ln(5)
	if customer.TaxID != "" {
		pdf.Cell(0, 6, fmt.Sprintf("Tax ID: %s", customer.TaxID))
		pdf.Ln(5)
	}
	if customer.Email != "" {
		pdf.Cell(0, 6, fmt.Sprintf("Email: %s", customer.Email))
		pdf.Ln(5)
	}
	pdf.Cell(0, 6, fmt.Sprintf("Issued: %s", invoice.IssueDate()))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Status: %s", invoice.Status))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(40, 6, "Reading", "1", 0, "C", false, 0, "")
	pdf.CellFormat(50, 6, "Consumption (kWh)", "1", 0, "C", false, 0, "")
	pdf.CellFormat(50, 6, fmt.Sprintf("Amount (%s)", currency), "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(40, 6, fmt.Sprintf("%d", invoice.ReadingID), "1", 0, "C", false, 0, "")
	pdf.CellFormat(50, 6, fmt.Sprintf("%.2f", invoice.ConsumedKWh), "1", 0, "R", false, 0, "")
	pdf.CellFormat(50, 6, fmt.Sprintf("%.2f", invoice.Amount), "1", 0, "R", false, 0, "")
	pdf.Ln(-1)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildInvoicesXLSX renders the invoice export as a workbook with the same
// columns as the CSV export.
func BuildInvoicesXLSX(invoices []billing.Invoice) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", InvoicesSheet); err != nil {
		return nil, err
	}

	for i, name := range csvfile.InvoiceHeader {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		_ = f.SetCellValue(InvoicesSheet, cell, name)
	}
	var totalKWh, totalAmount float64
	for i, invoice := range invoices {
		row := i + 2
		_ = f.SetCellValue(InvoicesSheet, fmt.Sprintf("A%d", row), invoice.ID)
		_ = f.SetCellValue(InvoicesSheet, fmt.Sprintf("B%d", row), invoice.CustomerID)
		_ = f.SetCellValue(InvoicesSheet, fmt.Sprintf("C%d", row), invoice.ReadingID)
		_ = f.SetCellValue(InvoicesSheet, fmt.Sprintf("D%d", row), invoice.ConsumedKWh)
		_ = f.SetCellValue(InvoicesSheet, fmt.Sprintf("E%d", row), invoice.Amount)
		_ = f.SetCellValue(InvoicesSheet, fmt.Sprintf("F%d", row), invoice.IssueDate())
		_ = f.SetCellValue(InvoicesSheet, fmt.Sprintf("G%d", row), string(invoice.Status))
		totalKWh += invoice.ConsumedKWh
		totalAmount += invoice.Amount
	}
	totalRow := len(invoices) + 2
	_ = f.SetCellValue(InvoicesSheet, fmt.Sprintf("C%d", totalRow), "total")
	_ = f.SetCellValue(InvoicesSheet, fmt.Sprintf("D%d", totalRow), totalKWh)
	_ = f.SetCellValue(InvoicesSheet, fmt.Sprintf("E%d", totalRow), totalAmount)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
