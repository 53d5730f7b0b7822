package reports

import (
	"context"
	"sort"
	"time"

	"github.com/mmdatafocus/boarding_backend/models"
	"github.com/mmdatafocus/boarding_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type TopExpense struct {
	AccountCode string          `json:"account_code"`
	AccountName string          `json:"account_name"`
	Amount      decimal.Decimal `json:"amount"`
}

type DashboardReport struct {
	BoardingHouseId   int             `json:"boarding_house_id"`
	AsOf              time.Time       `json:"as_of"`
	Month             string          `json:"month"`
	Rooms             int64           `json:"rooms"`
	TotalBeds         int64           `json:"total_beds"`
	OccupiedBeds      int64           `json:"occupied_beds"`
	OccupancyRate     decimal.Decimal `json:"occupancy_rate"`
	ActiveStudents    int64           `json:"active_students"`
	MonthRevenue      decimal.Decimal `json:"month_revenue"`
	MonthExpenses     decimal.Decimal `json:"month_expenses"`
	MonthNetIncome    decimal.Decimal `json:"month_net_income"`
	CashPosition      decimal.Decimal `json:"cash_position"`
	ReceivableBalance decimal.Decimal `json:"receivable_balance"`
	PayableBalance    decimal.Decimal `json:"payable_balance"`
	PendingRequests   int64           `json:"pending_requests"`
	TopExpenses       []TopExpense    `json:"top_expenses"`
}

func scoped(q *gorm.DB, column string, houseId int) *gorm.DB {
	if houseId > 0 {
		return q.Where(column+" = ?", houseId)
	}
	return q
}

// GetDashboardReport summarises occupancy, the month of asOf and balances as of asOf.
func GetDashboardReport(ctx context.Context, asOf time.Time) (*DashboardReport, error) {
	return cachedReport(ctx, "dashboard", func(ctx context.Context, houseId int) (*DashboardReport, error) {
		db, err := reportDB(ctx)
		if err != nil {
			return nil, err
		}
		monthStart, monthEnd := utils.GetMonthRange(asOf.Year(), asOf.Month())
		report := &DashboardReport{
			BoardingHouseId: houseId,
			AsOf:            *startOf(asOf),
			Month:           monthStart.Format(utils.PeriodLayout),
			OccupancyRate:   decimal.Zero,
			TopExpenses:     []TopExpense{},
		}

		var rooms struct {
			Rooms int64
			Beds  int64
		}
		err = scoped(db.Table("rooms"), "boarding_house_id", houseId).
			Select("COUNT(*) AS rooms, COALESCE(SUM(capacity), 0) AS beds").
			Scan(&rooms).Error
		if err != nil {
			return nil, err
		}
		report.Rooms, report.TotalBeds = rooms.Rooms, rooms.Beds

		err = scoped(db.Table("student_enrollments"), "boarding_house_id", houseId).
			Where("status = ?", models.EnrollmentStatusActive).
			Count(&report.OccupiedBeds).Error
		if err != nil {
			return nil, err
		}
		if report.TotalBeds > 0 {
			report.OccupancyRate = decimal.NewFromInt(report.OccupiedBeds * 100).
				Div(decimal.NewFromInt(report.TotalBeds)).Round(2)
		}
		err = scoped(db.Table("students"), "boarding_house_id", houseId).
			Where("status = ?", models.StudentStatusActive).
			Count(&report.ActiveStudents).Error
		if err != nil {
			return nil, err
		}
		err = scoped(db.Table("expenditure_requests"), "boarding_house_id", houseId).
			Where("status = ?", models.RequestStatusPending).
			Count(&report.PendingRequests).Error
		if err != nil {
			return nil, err
		}

		month, err := accountTotals(db, houseId, &monthStart, dayAfter(monthEnd),
			models.AccountTypeRevenue, models.AccountTypeExpense)
		if err != nil {
			return nil, err
		}
		report.MonthRevenue, report.MonthExpenses = decimal.Zero, decimal.Zero
		for _, t := range month {
			if t.Type == models.AccountTypeRevenue {
				report.MonthRevenue = report.MonthRevenue.Add(t.natural())
				continue
			}
			amount := t.natural()
			report.MonthExpenses = report.MonthExpenses.Add(amount)
			if amount.IsPositive() {
				report.TopExpenses = append(report.TopExpenses, TopExpense{AccountCode: t.Code, AccountName: t.Name, Amount: amount})
			}
		}
		report.MonthNetIncome = report.MonthRevenue.Sub(report.MonthExpenses)
		sort.SliceStable(report.TopExpenses, func(i, j int) bool {
			return report.TopExpenses[i].Amount.GreaterThan(report.TopExpenses[j].Amount)
		})
		if len(report.TopExpenses) > 5 {
			report.TopExpenses = report.TopExpenses[:5]
		}

		balances, err := accountTotals(db, houseId, nil, dayAfter(asOf), models.AccountTypeAsset, models.AccountTypeLiability)
		if err != nil {
			return nil, err
		}
		report.CashPosition, report.ReceivableBalance, report.PayableBalance = decimal.Zero, decimal.Zero, decimal.Zero
		for _, t := range balances {
			switch {
			case isCashSubType(t.SubType):
				report.CashPosition = report.CashPosition.Add(t.natural())
			case t.SubType == models.AccountSubTypeReceivable:
				report.ReceivableBalance = report.ReceivableBalance.Add(t.natural())
			case t.SubType == models.AccountSubTypePayable:
				report.PayableBalance = report.PayableBalance.Add(t.natural())
			}
		}
		return report, nil
	}, asOf)
}
