package reports

import (
	"context"
	"sort"
	"time"

	"github.com/mmdatafocus/boarding_backend/models"
	"github.com/mmdatafocus/boarding_backend/utils"
	"github.com/shopspring/decimal"
)

type ReceivableAgingRow struct {
	StudentId     int             `json:"student_id"`
	StudentNumber string          `json:"student_number"`
	StudentName   string          `json:"student_name"`
	Current       decimal.Decimal `json:"current"`
	Days1to30     decimal.Decimal `json:"days_1_30"`
	Days31to60    decimal.Decimal `json:"days_31_60"`
	Days61to90    decimal.Decimal `json:"days_61_90"`
	Days90Plus    decimal.Decimal `json:"days_90_plus"`
	Total         decimal.Decimal `json:"total"`
	InvoiceCount  int             `json:"invoice_count"`
}

type ReceivableAgingReport struct {
	BoardingHouseId int                   `json:"boarding_house_id"`
	AsOf            time.Time             `json:"as_of"`
	Rows            []*ReceivableAgingRow `json:"rows"`
	Totals          ReceivableAgingRow    `json:"totals"`
}

type openInvoiceRow struct {
	StudentId     int
	StudentNumber string
	FirstName     string
	LastName      string
	DueDate       time.Time
	Amount        decimal.Decimal
	AmountPaid    decimal.Decimal
}

func newAgingRow() ReceivableAgingRow {
	return ReceivableAgingRow{
		Current:    decimal.Zero,
		Days1to30:  decimal.Zero,
		Days31to60: decimal.Zero,
		Days61to90: decimal.Zero,
		Days90Plus: decimal.Zero,
		Total:      decimal.Zero,
	}
}

// addAged puts an outstanding amount in the bucket for daysOverdue (<= 0 is current).
func (r *ReceivableAgingRow) addAged(daysOverdue int, amount decimal.Decimal) {
	switch {
	case daysOverdue <= 0:
		r.Current = r.Current.Add(amount)
	case daysOverdue <= 30:
		r.Days1to30 = r.Days1to30.Add(amount)
	case daysOverdue <= 60:
		r.Days31to60 = r.Days31to60.Add(amount)
	case daysOverdue <= 90:
		r.Days61to90 = r.Days61to90.Add(amount)
	default:
		r.Days90Plus = r.Days90Plus.Add(amount)
	}
	r.Total = r.Total.Add(amount)
	r.InvoiceCount++
}

// GetReceivableAgingReport ages the open balance of every invoice dated on or before asOf by its due date.
func GetReceivableAgingReport(ctx context.Context, asOf time.Time) (*ReceivableAgingReport, error) {
	return cachedReport(ctx, "receivable_aging", func(ctx context.Context, houseId int) (*ReceivableAgingReport, error) {
		db, err := reportDB(ctx)
		if err != nil {
			return nil, err
		}
		q := db.Table("student_invoices AS si").
			Select("si.student_id AS student_id, s.student_number AS student_number, s.first_name AS first_name, "+
				"s.last_name AS last_name, si.due_date AS due_date, si.amount AS amount, si.amount_paid AS amount_paid").
			Joins("JOIN students s ON s.id = si.student_id").
			Where("si.status IN ? AND si.invoice_date < ?",
				[]models.InvoiceStatus{models.InvoiceStatusUnpaid, models.InvoiceStatusPartial}, *dayAfter(asOf))
		if houseId > 0 {
			q = q.Where("si.boarding_house_id = ?", houseId)
		}
		var invoices []openInvoiceRow
		if err := q.Order("si.student_id, si.due_date").Scan(&invoices).Error; err != nil {
			return nil, err
		}

		ref := *startOf(asOf)
		byStudent := map[int]*ReceivableAgingRow{}
		totals := newAgingRow()
		for _, inv := range invoices {
			outstanding := inv.Amount.Sub(inv.AmountPaid).Round(2)
			if !outstanding.IsPositive() {
				continue
			}
			row, ok := byStudent[inv.StudentId]
			if !ok {
				r := newAgingRow()
				r.StudentId = inv.StudentId
				r.StudentNumber = inv.StudentNumber
				r.StudentName = inv.FirstName + " " + inv.LastName
				row = &r
				byStudent[inv.StudentId] = row
			}
			days := utils.DaysBetween(utils.StartOfDay(inv.DueDate), ref)
			row.addAged(days, outstanding)
			totals.addAged(days, outstanding)
		}

		rows := make([]*ReceivableAgingRow, 0, len(byStudent))
		for _, r := range byStudent {
			rows = append(rows, r)
		}
		sort.Slice(rows, func(i, j int) bool {
			if !rows[i].Total.Equal(rows[j].Total) {
				return rows[i].Total.GreaterThan(rows[j].Total)
			}
			return rows[i].StudentId < rows[j].StudentId
		})
		return &ReceivableAgingReport{
			BoardingHouseId: houseId,
			AsOf:            ref,
			Rows:            rows,
			Totals:          totals,
		}, nil
	}, asOf)
}
