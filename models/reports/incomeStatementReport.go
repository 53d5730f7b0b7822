package reports

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mmdatafocus/boarding_backend/models"
	"github.com/mmdatafocus/boarding_backend/utils"
	"github.com/shopspring/decimal"
)

type IncomeStatementLine struct {
	AccountId   int             `json:"account_id"`
	AccountCode string          `json:"account_code"`
	AccountName string          `json:"account_name"`
	Amount      decimal.Decimal `json:"amount"`
}

type IncomeStatementReport struct {
	BoardingHouseId int                   `json:"boarding_house_id"`
	From            time.Time             `json:"from"`
	To              time.Time             `json:"to"`
	Revenue         []IncomeStatementLine `json:"revenue"`
	Expenses        []IncomeStatementLine `json:"expenses"`
	TotalRevenue    decimal.Decimal       `json:"total_revenue"`
	TotalExpenses   decimal.Decimal       `json:"total_expenses"`
	NetIncome       decimal.Decimal       `json:"net_income"`
	SnapshotId      int                   `json:"snapshot_id,omitempty"`
}

func buildIncomeStatement(ctx context.Context, houseId int, from, to time.Time) (*IncomeStatementReport, error) {
	db, err := reportDB(ctx)
	if err != nil {
		return nil, err
	}
	totals, err := accountTotals(db, houseId, startOf(from), dayAfter(to), models.AccountTypeRevenue, models.AccountTypeExpense)
	if err != nil {
		return nil, err
	}
	report := &IncomeStatementReport{
		BoardingHouseId: houseId,
		From:            *startOf(from),
		To:              *startOf(to),
		Revenue:         []IncomeStatementLine{},
		Expenses:        []IncomeStatementLine{},
		TotalRevenue:    decimal.Zero,
		TotalExpenses:   decimal.Zero,
	}
	for _, t := range totals {
		line := IncomeStatementLine{AccountId: t.AccountId, AccountCode: t.Code, AccountName: t.Name}
		switch t.Type {
		case models.AccountTypeRevenue:
			line.Amount = t.Credit.Sub(t.Debit)
			report.TotalRevenue = report.TotalRevenue.Add(line.Amount)
			report.Revenue = append(report.Revenue, line)
		case models.AccountTypeExpense:
			line.Amount = t.Debit.Sub(t.Credit)
			report.TotalExpenses = report.TotalExpenses.Add(line.Amount)
			report.Expenses = append(report.Expenses, line)
		}
	}
	report.NetIncome = report.TotalRevenue.Sub(report.TotalExpenses)
	return report, nil
}

func validateRange(from, to time.Time) error {
	if from.IsZero() || to.IsZero() {
		return utils.NewValidationError("from and to dates are required")
	}
	if to.Before(from) {
		return utils.NewValidationError("to date must not be before from date")
	}
	return nil
}

// GetIncomeStatementReport covers [from, to], both inclusive.
func GetIncomeStatementReport(ctx context.Context, from, to time.Time) (*IncomeStatementReport, error) {
	if err := validateRange(from, to); err != nil {
		return nil, err
	}
	return cachedReport(ctx, "income_statement", func(ctx context.Context, houseId int) (*IncomeStatementReport, error) {
		return buildIncomeStatement(ctx, houseId, from, to)
	}, from, to)
}

// GenerateIncomeStatement builds the statement from the ledger and stores it as a snapshot.
func GenerateIncomeStatement(ctx context.Context, from, to time.Time) (*IncomeStatementReport, error) {
	if err := validateRange(from, to); err != nil {
		return nil, err
	}
	houseId := reportScope(ctx)
	ctx, span := startReportSpan(ctx, "income_statement_generate", houseId)
	defer span.End()

	report, err := buildIncomeStatement(ctx, houseId, from, to)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(report)
	if err != nil {
		return nil, err
	}
	snapshot := &models.IncomeStatementSnapshot{
		FromDate:      report.From,
		ToDate:        report.To,
		TotalRevenue:  report.TotalRevenue,
		TotalExpenses: report.TotalExpenses,
		NetIncome:     report.NetIncome,
		Payload:       string(payload),
	}
	if err := models.SaveIncomeStatementSnapshot(ctx, snapshot); err != nil {
		return nil, err
	}
	report.SnapshotId = snapshot.ID
	return report, nil
}

// DecodeIncomeStatementSnapshot restores the report stored with a snapshot.
func DecodeIncomeStatementSnapshot(snapshot *models.IncomeStatementSnapshot) (*IncomeStatementReport, error) {
	var report IncomeStatementReport
	if err := json.Unmarshal([]byte(snapshot.Payload), &report); err != nil {
		return nil, err
	}
	report.SnapshotId = snapshot.ID
	return &report, nil
}
