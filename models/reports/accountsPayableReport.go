package reports

import (
	"context"
	"sort"
	"time"

	"github.com/mmdatafocus/boarding_backend/models"
	"github.com/shopspring/decimal"
)

type AccountsPayableRow struct {
	SupplierId       int             `json:"supplier_id"`
	SupplierName     string          `json:"supplier_name"`
	Billed           decimal.Decimal `json:"billed"`
	Paid             decimal.Decimal `json:"paid"`
	Outstanding      decimal.Decimal `json:"outstanding"`
	OpenExpenses     int             `json:"open_expenses"`
	OldestUnpaidDate *time.Time      `json:"oldest_unpaid_date"`
}

type AccountsPayableReport struct {
	BoardingHouseId  int                   `json:"boarding_house_id"`
	AsOf             time.Time             `json:"as_of"`
	Rows             []*AccountsPayableRow `json:"rows"`
	TotalBilled      decimal.Decimal       `json:"total_billed"`
	TotalPaid        decimal.Decimal       `json:"total_paid"`
	TotalOutstanding decimal.Decimal       `json:"total_outstanding"`
}

type creditExpenseRow struct {
	ExpenseId    int
	SupplierId   int
	SupplierName string
	ExpenseDate  time.Time
	Amount       decimal.Decimal
}

type expensePaidRow struct {
	ExpenseId int
	Paid      decimal.Decimal
}

// GetAccountsPayableReport totals credit purchases and supplier payments made up to asOf, per supplier.
func GetAccountsPayableReport(ctx context.Context, asOf time.Time) (*AccountsPayableReport, error) {
	return cachedReport(ctx, "accounts_payable", func(ctx context.Context, houseId int) (*AccountsPayableReport, error) {
		db, err := reportDB(ctx)
		if err != nil {
			return nil, err
		}
		end := *dayAfter(asOf)

		q := db.Table("expenses AS e").
			Select("e.id AS expense_id, e.supplier_id AS supplier_id, sp.name AS supplier_name, "+
				"e.expense_date AS expense_date, e.amount AS amount").
			Joins("JOIN suppliers sp ON sp.id = e.supplier_id").
			Where("e.payment_method = ? AND e.status <> ? AND e.expense_date < ?",
				models.ExpensePaymentCredit, models.ExpenseStatusVoid, end)
		if houseId > 0 {
			q = q.Where("e.boarding_house_id = ?", houseId)
		}
		var expenses []creditExpenseRow
		if err := q.Order("e.expense_date, e.id").Scan(&expenses).Error; err != nil {
			return nil, err
		}

		pq := db.Table("supplier_payments AS p").
			Select("p.expense_id AS expense_id, COALESCE(SUM(p.amount), 0) AS paid").
			Where("p.payment_date < ?", end)
		if houseId > 0 {
			pq = pq.Where("p.boarding_house_id = ?", houseId)
		}
		var paidRows []expensePaidRow
		if err := pq.Group("p.expense_id").Scan(&paidRows).Error; err != nil {
			return nil, err
		}
		paid := make(map[int]decimal.Decimal, len(paidRows))
		for _, p := range paidRows {
			paid[p.ExpenseId] = p.Paid.Round(2)
		}

		report := &AccountsPayableReport{
			BoardingHouseId:  houseId,
			AsOf:             *startOf(asOf),
			Rows:             []*AccountsPayableRow{},
			TotalBilled:      decimal.Zero,
			TotalPaid:        decimal.Zero,
			TotalOutstanding: decimal.Zero,
		}
		bySupplier := map[int]*AccountsPayableRow{}
		for _, e := range expenses {
			row, ok := bySupplier[e.SupplierId]
			if !ok {
				row = &AccountsPayableRow{
					SupplierId:   e.SupplierId,
					SupplierName: e.SupplierName,
					Billed:       decimal.Zero,
					Paid:         decimal.Zero,
					Outstanding:  decimal.Zero,
				}
				bySupplier[e.SupplierId] = row
				report.Rows = append(report.Rows, row)
			}
			amount := e.Amount.Round(2)
			settled := paid[e.ExpenseId]
			row.Billed = row.Billed.Add(amount)
			row.Paid = row.Paid.Add(settled)
			if settled.LessThan(amount) {
				row.OpenExpenses++
				if row.OldestUnpaidDate == nil {
					d := e.ExpenseDate
					row.OldestUnpaidDate = &d
				}
			}
		}
		for _, row := range report.Rows {
			row.Outstanding = row.Billed.Sub(row.Paid)
			report.TotalBilled = report.TotalBilled.Add(row.Billed)
			report.TotalPaid = report.TotalPaid.Add(row.Paid)
			report.TotalOutstanding = report.TotalOutstanding.Add(row.Outstanding)
		}
		sort.SliceStable(report.Rows, func(i, j int) bool {
			return report.Rows[i].Outstanding.GreaterThan(report.Rows[j].Outstanding)
		})
		return report, nil
	}, asOf)
}
