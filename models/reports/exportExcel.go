package reports

import (
	"bytes"
	"fmt"
	"time"

	"github.com/mmdatafocus/boarding_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const ExcelContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ExcelExporter is implemented by every report that can be downloaded as xlsx.
type ExcelExporter interface {
	ExcelFileName() string
	WriteExcel(f *excelize.File) error
}

type sheetWriter struct {
	f     *excelize.File
	sheet string
	row   int
	err   error
}

func newSheet(f *excelize.File, sheet string) *sheetWriter {
	w := &sheetWriter{f: f, sheet: sheet, row: 1}
	if idx, err := f.GetSheetIndex(sheet); err == nil && idx >= 0 {
		return w
	}
	if _, err := f.NewSheet(sheet); err != nil {
		w.err = err
	}
	return w
}

func cellValue(v interface{}) interface{} {
	switch t := v.(type) {
	case decimal.Decimal:
		f, _ := t.Round(2).Float64()
		return f
	case time.Time:
		if t.IsZero() {
			return ""
		}
		return t.Format(utils.DateLayout)
	case *time.Time:
		if t == nil {
			return ""
		}
		return t.Format(utils.DateLayout)
	}
	return v
}

func (w *sheetWriter) write(values ...interface{}) {
	if w.err != nil {
		return
	}
	for i, v := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, w.row)
		if err != nil {
			w.err = err
			return
		}
		if err := w.f.SetCellValue(w.sheet, cell, cellValue(v)); err != nil {
			w.err = err
			return
		}
	}
	w.row++
}

func (w *sheetWriter) heading(values ...interface{}) {
	w.write(values...)
	if w.err != nil || len(values) == 0 {
		return
	}
	style, err := w.f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		w.err = err
		return
	}
	last, _ := excelize.CoordinatesToCellName(len(values), w.row-1)
	first, _ := excelize.CoordinatesToCellName(1, w.row-1)
	w.err = w.f.SetCellStyle(w.sheet, first, last, style)
}

func (w *sheetWriter) blank() { w.row++ }

// RenderExcel builds the workbook of a report into memory.
func RenderExcel(report ExcelExporter) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	if err := report.WriteExcel(f); err != nil {
		return nil, err
	}
	// the default sheet stays empty once the report wrote its own
	if f.SheetCount > 1 {
		if err := f.DeleteSheet("Sheet1"); err != nil {
			return nil, err
		}
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (r *TrialBalanceReport) ExcelFileName() string {
	return fmt.Sprintf("trial-balance-%s.xlsx", r.AsOf.Format(utils.DateLayout))
}

func (r *TrialBalanceReport) WriteExcel(f *excelize.File) error {
	w := newSheet(f, "Trial Balance")
	w.write("Trial balance as of", r.AsOf)
	w.blank()
	w.heading("Code", "Account", "Type", "Debit", "Credit")
	for _, l := range r.Lines {
		w.write(l.AccountCode, l.AccountName, string(l.AccountType), l.Debit, l.Credit)
	}
	w.write("", "Total", "", r.TotalDebit, r.TotalCredit)
	return w.err
}

func (r *IncomeStatementReport) ExcelFileName() string {
	return fmt.Sprintf("income-statement-%s-%s.xlsx", r.From.Format(utils.DateLayout), r.To.Format(utils.DateLayout))
}

func (r *IncomeStatementReport) WriteExcel(f *excelize.File) error {
	w := newSheet(f, "Income Statement")
	w.write("Income statement", r.From, r.To)
	w.blank()
	w.heading("Code", "Revenue", "Amount")
	for _, l := range r.Revenue {
		w.write(l.AccountCode, l.AccountName, l.Amount)
	}
	w.write("", "Total revenue", r.TotalRevenue)
	w.blank()
	w.heading("Code", "Expenses", "Amount")
	for _, l := range r.Expenses {
		w.write(l.AccountCode, l.AccountName, l.Amount)
	}
	w.write("", "Total expenses", r.TotalExpenses)
	w.blank()
	w.write("", "Net income", r.NetIncome)
	return w.err
}

func (r *BalanceSheetReport) ExcelFileName() string {
	return fmt.Sprintf("balance-sheet-%s.xlsx", r.AsOf.Format(utils.DateLayout))
}

func (r *BalanceSheetReport) WriteExcel(f *excelize.File) error {
	w := newSheet(f, "Balance Sheet")
	w.write("Balance sheet as of", r.AsOf)
	section := func(title string, lines []BalanceSheetLine, total decimal.Decimal) {
		w.blank()
		w.heading("Code", title, "Amount")
		for _, l := range lines {
			w.write(l.AccountCode, l.AccountName, l.Amount)
		}
		w.write("", "Total "+title, total)
	}
	section("Assets", r.Assets, r.TotalAssets)
	section("Liabilities", r.Liabilities, r.TotalLiabilities)
	section("Equity", r.Equity, r.TotalEquity)
	w.blank()
	w.write("", "Total liabilities and equity", r.TotalLiabilitiesAndEquity)
	return w.err
}

func (r *MonthlyCashFlowReport) ExcelFileName() string {
	return fmt.Sprintf("cashflow-%d.xlsx", r.Year)
}

func (r *MonthlyCashFlowReport) WriteExcel(f *excelize.File) error {
	w := newSheet(f, "Cash Flow")
	types := sortedKeys(r.Months)
	head := []interface{}{"Month", "Opening", "Inflows", "Outflows", "Net change", "Closing"}
	for _, t := range types {
		head = append(head, "In: "+t, "Out: "+t)
	}
	w.heading(head...)
	for _, m := range r.Months {
		row := []interface{}{m.Month, m.OpeningBalance, m.Inflows, m.Outflows, m.NetChange, m.ClosingBalance}
		for _, t := range types {
			row = append(row, m.InflowsByType[t], m.OutflowsByType[t])
		}
		w.write(row...)
	}
	w.write("Total", r.OpeningBalance, r.TotalInflows, r.TotalOutflows, r.TotalInflows.Sub(r.TotalOutflows), r.ClosingBalance)
	return w.err
}

func (r *AccountsPayableReport) ExcelFileName() string {
	return fmt.Sprintf("accounts-payable-%s.xlsx", r.AsOf.Format(utils.DateLayout))
}

func (r *AccountsPayableReport) WriteExcel(f *excelize.File) error {
	w := newSheet(f, "Accounts Payable")
	w.heading("Supplier", "Billed", "Paid", "Outstanding", "Open expenses", "Oldest unpaid")
	for _, row := range r.Rows {
		w.write(row.SupplierName, row.Billed, row.Paid, row.Outstanding, row.OpenExpenses, row.OldestUnpaidDate)
	}
	w.write("Total", r.TotalBilled, r.TotalPaid, r.TotalOutstanding)
	return w.err
}

func (r *ReceivableAgingReport) ExcelFileName() string {
	return fmt.Sprintf("receivable-aging-%s.xlsx", r.AsOf.Format(utils.DateLayout))
}

func (r *ReceivableAgingReport) WriteExcel(f *excelize.File) error {
	w := newSheet(f, "Receivable Aging")
	w.heading("Student number", "Student", "Current", "1-30", "31-60", "61-90", "90+", "Total", "Invoices")
	for _, row := range r.Rows {
		w.write(row.StudentNumber, row.StudentName, row.Current, row.Days1to30, row.Days31to60,
			row.Days61to90, row.Days90Plus, row.Total, row.InvoiceCount)
	}
	t := r.Totals
	w.write("", "Total", t.Current, t.Days1to30, t.Days31to60, t.Days61to90, t.Days90Plus, t.Total, t.InvoiceCount)
	return w.err
}

func (r *DashboardReport) ExcelFileName() string {
	return fmt.Sprintf("dashboard-%s.xlsx", r.AsOf.Format(utils.DateLayout))
}

func (r *DashboardReport) WriteExcel(f *excelize.File) error {
	w := newSheet(f, "Dashboard")
	w.heading("Metric", "Value")
	w.write("Month", r.Month)
	w.write("Rooms", r.Rooms)
	w.write("Total beds", r.TotalBeds)
	w.write("Occupied beds", r.OccupiedBeds)
	w.write("Occupancy %", r.OccupancyRate)
	w.write("Active students", r.ActiveStudents)
	w.write("Month revenue", r.MonthRevenue)
	w.write("Month expenses", r.MonthExpenses)
	w.write("Month net income", r.MonthNetIncome)
	w.write("Cash position", r.CashPosition)
	w.write("Receivables", r.ReceivableBalance)
	w.write("Payables", r.PayableBalance)
	w.write("Pending requests", r.PendingRequests)
	w.blank()
	w.heading("Top expenses", "Amount")
	for _, e := range r.TopExpenses {
		w.write(e.AccountName, e.Amount)
	}
	return w.err
}
