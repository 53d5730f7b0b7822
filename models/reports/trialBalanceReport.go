package reports

import (
	"context"
	"time"

	"github.com/mmdatafocus/boarding_backend/models"
	"github.com/shopspring/decimal"
)

type TrialBalanceLine struct {
	AccountId   int                `json:"account_id"`
	AccountCode string             `json:"account_code"`
	AccountName string             `json:"account_name"`
	AccountType models.AccountType `json:"account_type"`
	Debit       decimal.Decimal    `json:"debit"`
	Credit      decimal.Decimal    `json:"credit"`
}

type TrialBalanceReport struct {
	BoardingHouseId int                `json:"boarding_house_id"`
	AsOf            time.Time          `json:"as_of"`
	Lines           []TrialBalanceLine `json:"lines"`
	TotalDebit      decimal.Decimal    `json:"total_debit"`
	TotalCredit     decimal.Decimal    `json:"total_credit"`
	IsBalanced      bool               `json:"is_balanced"`
}

// GetTrialBalanceReport puts each account's net balance on its debit or credit side as of asOf (inclusive).
func GetTrialBalanceReport(ctx context.Context, asOf time.Time) (*TrialBalanceReport, error) {
	return cachedReport(ctx, "trial_balance", func(ctx context.Context, houseId int) (*TrialBalanceReport, error) {
		db, err := reportDB(ctx)
		if err != nil {
			return nil, err
		}
		totals, err := accountTotals(db, houseId, nil, dayAfter(asOf))
		if err != nil {
			return nil, err
		}
		report := &TrialBalanceReport{
			BoardingHouseId: houseId,
			AsOf:            *startOf(asOf),
			Lines:           []TrialBalanceLine{},
			TotalDebit:      decimal.Zero,
			TotalCredit:     decimal.Zero,
		}
		for _, t := range totals {
			net := t.Debit.Sub(t.Credit)
			if net.IsZero() {
				continue
			}
			line := TrialBalanceLine{
				AccountId:   t.AccountId,
				AccountCode: t.Code,
				AccountName: t.Name,
				AccountType: t.Type,
				Debit:       decimal.Zero,
				Credit:      decimal.Zero,
			}
			if net.IsPositive() {
				line.Debit = net
			} else {
				line.Credit = net.Neg()
			}
			report.TotalDebit = report.TotalDebit.Add(line.Debit)
			report.TotalCredit = report.TotalCredit.Add(line.Credit)
			report.Lines = append(report.Lines, line)
		}
		report.IsBalanced = report.TotalDebit.Equal(report.TotalCredit)
		return report, nil
	}, asOf)
}
