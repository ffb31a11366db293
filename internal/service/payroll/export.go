package payroll

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/buildcrew/payroll-service/internal/domain/payroll"
	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const (
	contentTypeCSV  = "text/csv"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypePDF  = "application/pdf"

	exportSheetName = "Payroll"
)

var exportHeaders = []string{
	"Employee ID", "Employee Name",
	"Regular Hours", "Overtime Hours", "Double Time Hours", "PTO Hours", "Sick Hours", "Holiday Hours",
	"Regular Pay", "Overtime Pay", "Double Time Pay", "PTO Pay", "Sick Pay", "Holiday Pay",
	"Bonuses", "Commissions", "Reimbursements", "Gross Pay",
	"Federal Withholding", "State Withholding", "Social Security", "Medicare", "Local Tax",
	"Retirement 401k", "Health Insurance", "Other Deductions",
	"Total Deductions", "Net Pay",
}

// exportTable is the flat projection of a run: header, one row per entry,
// a blank row, then summary lines. Cells are strings or decimals.
func exportTable(run payroll.PayrollRun) [][]any {
	rows := make([][]any, 0, len(run.Entries)+6)

	header := make([]any, len(exportHeaders))
	for i, h := range exportHeaders {
		header[i] = h
	}
	rows = append(rows, header)

	for _, e := range run.Entries {
		rows = append(rows, []any{
			e.EmployeeID, e.EmployeeName,
			e.Hours.Regular, e.Hours.Overtime, e.Hours.DoubleTime, e.Hours.PTO, e.Hours.Sick, e.Hours.Holiday,
			e.Pay.Regular, e.Pay.Overtime, e.Pay.DoubleTime, e.Pay.PTO, e.Pay.Sick, e.Pay.Holiday,
			e.Pay.Bonuses, e.Pay.Commissions, e.Pay.Reimbursements, e.GrossPay,
			e.Taxes.Federal, e.Taxes.State, e.Taxes.SocialSecurity, e.Taxes.Medicare, e.Taxes.Local,
			e.Deductions.Retirement401k, e.Deductions.HealthInsurance, e.Deductions.Other,
			e.TotalDeductions, e.NetPay,
		})
	}

	rows = append(rows,
		[]any{},
		[]any{"Pay Period", run.Period.Label},
		[]any{"Pay Date", run.Period.PayDate.Format("2006-01-02")},
		[]any{"Total Gross", run.Totals.GrossPay},
		[]any{"Total Net", run.Totals.NetPay},
	)
	return rows
}

func exportFilename(run payroll.PayrollRun, ext string) string {
	return fmt.Sprintf("payroll-run-%d-%s.%s", run.RunNumber, run.Period.ID, ext)
}

// ExportCSV renders the run as CSV.
func ExportCSV(run payroll.PayrollRun) (payroll.ExportFile, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	for _, row := range exportTable(run) {
		record := make([]string, len(row))
		for i, cell := range row {
			record[i] = cellString(cell)
		}
		if err := w.Write(record); err != nil {
			return payroll.ExportFile{}, fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return payroll.ExportFile{}, fmt.Errorf("failed to flush csv: %w", err)
	}

	return payroll.ExportFile{
		Filename:    exportFilename(run, "csv"),
		ContentType: contentTypeCSV,
		Data:        buf.Bytes(),
	}, nil
}

// ExportXLSX renders the run as a single-sheet workbook.
func ExportXLSX(run payroll.PayrollRun) (payroll.ExportFile, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheetName); err != nil {
		return payroll.ExportFile{}, fmt.Errorf("failed to name sheet: %w", err)
	}

	for r, row := range exportTable(run) {
		for c, cell := range row {
			name, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return payroll.ExportFile{}, fmt.Errorf("failed to resolve cell: %w", err)
			}
			var value any = cell
			if dec, ok := cell.(decimal.Decimal); ok {
				value = dec.InexactFloat64()
			}
			if err := f.SetCellValue(exportSheetName, name, value); err != nil {
				return payroll.ExportFile{}, fmt.Errorf("failed to set cell %s: %w", name, err)
			}
		}
	}
	if err := f.SetColWidth(exportSheetName, "A", "B", 24); err != nil {
		return payroll.ExportFile{}, fmt.Errorf("failed to size name columns: %w", err)
	}
	if err := f.SetColWidth(exportSheetName, "C", "AB", 14); err != nil {
		return payroll.ExportFile{}, fmt.Errorf("failed to size amount columns: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return payroll.ExportFile{}, fmt.Errorf("failed to write workbook: %w", err)
	}

	return payroll.ExportFile{
		Filename:    exportFilename(run, "xlsx"),
		ContentType: contentTypeXLSX,
		Data:        buf.Bytes(),
	}, nil
}

func cellString(cell any) string {
	switch v := cell.(type) {
	case decimal.Decimal:
		return v.StringFixed(2)
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// ========== PAY STUB ==========

// RenderPayStub draws a one-page pay stub for a single entry.
func RenderPayStub(run payroll.PayrollRun, entry payroll.PayrollEntry) (payroll.ExportFile, error) {
	pdf := gofpdf.New("P", "mm", "Letter", "")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(40, 10, "Pay Stub")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 7, fmt.Sprintf("Employee: %s (%s)", entry.EmployeeName, entry.EmployeeID))
	pdf.Ln(6)
	pdf.Cell(0, 7, fmt.Sprintf("Pay Period: %s", run.Period.Label))
	pdf.Ln(6)
	pdf.Cell(0, 7, fmt.Sprintf("Pay Date: %s", run.Period.PayDate.Format("2006-01-02")))
	pdf.Ln(6)
	pdf.Cell(0, 7, fmt.Sprintf("Run #%d, status %s", run.RunNumber, run.Status))
	pdf.Ln(10)

	section := func(title string, lines [][2]string) {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.Cell(0, 8, title)
		pdf.Ln(8)
		pdf.SetFont("Helvetica", "", 11)
		for _, l := range lines {
			pdf.CellFormat(90, 6, l[0], "", 0, "L", false, 0, "")
			pdf.CellFormat(40, 6, l[1], "", 1, "R", false, 0, "")
		}
		pdf.Ln(4)
	}

	section("Hours", [][2]string{
		{"Regular", entry.Hours.Regular.StringFixed(2)},
		{"Overtime", entry.Hours.Overtime.StringFixed(2)},
		{"Double Time", entry.Hours.DoubleTime.StringFixed(2)},
		{"PTO", entry.Hours.PTO.StringFixed(2)},
		{"Sick", entry.Hours.Sick.StringFixed(2)},
		{"Holiday", entry.Hours.Holiday.StringFixed(2)},
	})
	section("Earnings", [][2]string{
		{"Regular", money(entry.Pay.Regular)},
		{"Overtime", money(entry.Pay.Overtime)},
		{"Double Time", money(entry.Pay.DoubleTime)},
		{"PTO", money(entry.Pay.PTO)},
		{"Sick", money(entry.Pay.Sick)},
		{"Holiday", money(entry.Pay.Holiday)},
		{"Bonuses", money(entry.Pay.Bonuses)},
		{"Commissions", money(entry.Pay.Commissions)},
		{"Reimbursements", money(entry.Pay.Reimbursements)},
		{"Gross Pay", money(entry.GrossPay)},
	})
	section("Taxes", [][2]string{
		{"Federal Withholding", money(entry.Taxes.Federal)},
		{"State Withholding", money(entry.Taxes.State)},
		{"Social Security", money(entry.Taxes.SocialSecurity)},
		{"Medicare", money(entry.Taxes.Medicare)},
		{"Local Tax", money(entry.Taxes.Local)},
	})
	section("Deductions", [][2]string{
		{"Retirement 401k", money(entry.Deductions.Retirement401k)},
		{"Health Insurance", money(entry.Deductions.HealthInsurance)},
		{"Other", money(entry.Deductions.Other)},
		{"Total Deductions", money(entry.TotalDeductions)},
	})
	section("Summary", [][2]string{
		{"Net Pay", money(entry.NetPay)},
		{"YTD Gross", money(entry.YTD.Gross)},
		{"YTD Federal", money(entry.YTD.Federal)},
		{"YTD State", money(entry.YTD.State)},
		{"YTD Social Security", money(entry.YTD.SocialSecurity)},
		{"YTD Medicare", money(entry.YTD.Medicare)},
	})

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return payroll.ExportFile{}, fmt.Errorf("failed to render pay stub: %w", err)
	}

	return payroll.ExportFile{
		Filename:    fmt.Sprintf("paystub-%s-%s.pdf", entry.EmployeeID, run.Period.ID),
		ContentType: contentTypePDF,
		Data:        buf.Bytes(),
	}, nil
}

func money(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}
