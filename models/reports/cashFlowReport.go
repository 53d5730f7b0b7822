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

var cashSubTypes = []models.AccountSubType{
	models.AccountSubTypeCash,
	models.AccountSubTypeBank,
	models.AccountSubTypePettyCash,
}

type CashFlowMonth struct {
	Month          string                     `json:"month"`
	OpeningBalance decimal.Decimal            `json:"opening_balance"`
	Inflows        decimal.Decimal            `json:"inflows"`
	Outflows       decimal.Decimal            `json:"outflows"`
	NetChange      decimal.Decimal            `json:"net_change"`
	ClosingBalance decimal.Decimal            `json:"closing_balance"`
	InflowsByType  map[string]decimal.Decimal `json:"inflows_by_type"`
	OutflowsByType map[string]decimal.Decimal `json:"outflows_by_type"`
}

type MonthlyCashFlowReport struct {
	BoardingHouseId int             `json:"boarding_house_id"`
	Year            int             `json:"year"`
	OpeningBalance  decimal.Decimal `json:"opening_balance"`
	TotalInflows    decimal.Decimal `json:"total_inflows"`
	TotalOutflows   decimal.Decimal `json:"total_outflows"`
	ClosingBalance  decimal.Decimal `json:"closing_balance"`
	Months          []CashFlowMonth `json:"months"`
}

type cashFlowLine struct {
	TransactionId   int
	TransactionDate time.Time
	Debit           decimal.Decimal
	Credit          decimal.Decimal
	Type            models.AccountType
	SubType         models.AccountSubType
}

func isCashSubType(s models.AccountSubType) bool {
	for _, c := range cashSubTypes {
		if c == s {
			return true
		}
	}
	return false
}

func cashBalanceBefore(db *gorm.DB, houseId int, before time.Time) (decimal.Decimal, error) {
	q := db.Table("journal_entries AS je").
		Select("COALESCE(SUM(je.debit), 0) - COALESCE(SUM(je.credit), 0)").
		Joins("JOIN transactions t ON t.id = je.transaction_id AND t.deleted_at IS NULL").
		Joins("JOIN accounts a ON a.id = je.account_id").
		Where("a.sub_type IN ? AND je.transaction_date < ?", cashSubTypes, before)
	if houseId > 0 {
		q = q.Where("je.boarding_house_id = ?", houseId)
	}
	var balance decimal.NullDecimal
	if err := q.Row().Scan(&balance); err != nil {
		return decimal.Zero, err
	}
	if !balance.Valid {
		return decimal.Zero, nil
	}
	return balance.Decimal.Round(2), nil
}

// cashFlowLines returns every line of live transactions in [from, to) that touch a cash-like account.
func cashFlowLines(db *gorm.DB, houseId int, from, to time.Time) ([]cashFlowLine, error) {
	touching := db.Table("journal_entries AS je2").
		Select("je2.transaction_id").
		Joins("JOIN accounts a2 ON a2.id = je2.account_id").
		Where("a2.sub_type IN ? AND je2.transaction_date >= ? AND je2.transaction_date < ?", cashSubTypes, from, to)
	if houseId > 0 {
		touching = touching.Where("je2.boarding_house_id = ?", houseId)
	}
	var lines []cashFlowLine
	err := db.Table("journal_entries AS je").
		Select("je.transaction_id AS transaction_id, je.transaction_date AS transaction_date, je.debit AS debit, "+
			"je.credit AS credit, a.type AS type, a.sub_type AS sub_type").
		Joins("JOIN transactions t ON t.id = je.transaction_id AND t.deleted_at IS NULL").
		Joins("JOIN accounts a ON a.id = je.account_id").
		Where("je.transaction_id IN (?)", touching).
		Order("je.transaction_id, je.id").
		Scan(&lines).Error
	if err != nil {
		return nil, err
	}
	return lines, nil
}

// GetMonthlyCashFlowReport shows, per month of the year, how Cash, Bank and Petty Cash moved.
// Counterpart lines are classified by account type; transfers between cash accounts net to zero.
func GetMonthlyCashFlowReport(ctx context.Context, year int) (*MonthlyCashFlowReport, error) {
	if year < 1900 || year > 9999 {
		return nil, utils.NewValidationError("invalid year %d", year)
	}
	return cachedReport(ctx, "cashflow_monthly", func(ctx context.Context, houseId int) (*MonthlyCashFlowReport, error) {
		db, err := reportDB(ctx)
		if err != nil {
			return nil, err
		}
		yearStart := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
		yearEnd := yearStart.AddDate(1, 0, 0)

		opening, err := cashBalanceBefore(db, houseId, yearStart)
		if err != nil {
			return nil, err
		}
		lines, err := cashFlowLines(db, houseId, yearStart, yearEnd)
		if err != nil {
			return nil, err
		}

		months := make([]CashFlowMonth, 12)
		for i := range months {
			months[i] = CashFlowMonth{
				Month:          yearStart.AddDate(0, i, 0).Format(utils.PeriodLayout),
				OpeningBalance: decimal.Zero,
				Inflows:        decimal.Zero,
				Outflows:       decimal.Zero,
				InflowsByType:  map[string]decimal.Decimal{},
				OutflowsByType: map[string]decimal.Decimal{},
			}
		}
		for _, l := range lines {
			if isCashSubType(l.SubType) {
				continue
			}
			m := &months[int(l.TransactionDate.Month())-1]
			// credit on a counterpart line is cash coming in
			amount := l.Credit.Sub(l.Debit).Round(2)
			key := string(l.Type)
			switch {
			case amount.IsPositive():
				m.Inflows = m.Inflows.Add(amount)
				m.InflowsByType[key] = m.InflowsByType[key].Add(amount)
			case amount.IsNegative():
				m.Outflows = m.Outflows.Add(amount.Neg())
				m.OutflowsByType[key] = m.OutflowsByType[key].Add(amount.Neg())
			}
		}

		report := &MonthlyCashFlowReport{
			BoardingHouseId: houseId,
			Year:            year,
			OpeningBalance:  opening,
			TotalInflows:    decimal.Zero,
			TotalOutflows:   decimal.Zero,
		}
		running := opening
		for i := range months {
			m := &months[i]
			m.OpeningBalance = running
			m.NetChange = m.Inflows.Sub(m.Outflows)
			m.ClosingBalance = running.Add(m.NetChange)
			running = m.ClosingBalance
			report.TotalInflows = report.TotalInflows.Add(m.Inflows)
			report.TotalOutflows = report.TotalOutflows.Add(m.Outflows)
		}
		report.ClosingBalance = running
		report.Months = months
		return report, nil
	}, year)
}

// sortedKeys gives a stable column order for the export.
func sortedKeys(months []CashFlowMonth) []string {
	seen := map[string]bool{}
	for _, m := range months {
		for k := range m.InflowsByType {
			seen[k] = true
		}
		for k := range m.OutflowsByType {
			seen[k] = true
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
