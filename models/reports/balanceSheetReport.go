package reports

import (
	"context"
	"time"

	"github.com/mmdatafocus/boarding_backend/models"
	"github.com/shopspring/decimal"
)

type BalanceSheetLine struct {
	AccountId   int             `json:"account_id"`
	AccountCode string          `json:"account_code"`
	AccountName string          `json:"account_name"`
	Amount      decimal.Decimal `json:"amount"`
}

type BalanceSheetReport struct {
	BoardingHouseId           int                `json:"boarding_house_id"`
	AsOf                      time.Time          `json:"as_of"`
	Assets                    []BalanceSheetLine `json:"assets"`
	Liabilities               []BalanceSheetLine `json:"liabilities"`
	Equity                    []BalanceSheetLine `json:"equity"`
	CurrentEarnings           decimal.Decimal    `json:"current_earnings"`
	TotalAssets               decimal.Decimal    `json:"total_assets"`
	TotalLiabilities          decimal.Decimal    `json:"total_liabilities"`
	TotalEquity               decimal.Decimal    `json:"total_equity"`
	TotalLiabilitiesAndEquity decimal.Decimal    `json:"total_liabilities_and_equity"`
	IsBalanced                bool               `json:"is_balanced"`
}

const currentEarningsLabel = "Current Earnings"

// GetBalanceSheetReport reports balances as of asOf. Revenue minus expense to date appears
// as a synthetic "Current Earnings" equity line since no closing entries are posted.
func GetBalanceSheetReport(ctx context.Context, asOf time.Time) (*BalanceSheetReport, error) {
	return cachedReport(ctx, "balance_sheet", func(ctx context.Context, houseId int) (*BalanceSheetReport, error) {
		db, err := reportDB(ctx)
		if err != nil {
			return nil, err
		}
		totals, err := accountTotals(db, houseId, nil, dayAfter(asOf))
		if err != nil {
			return nil, err
		}
		report := &BalanceSheetReport{
			BoardingHouseId:  houseId,
			AsOf:             *startOf(asOf),
			Assets:           []BalanceSheetLine{},
			Liabilities:      []BalanceSheetLine{},
			Equity:           []BalanceSheetLine{},
			CurrentEarnings:  decimal.Zero,
			TotalAssets:      decimal.Zero,
			TotalLiabilities: decimal.Zero,
			TotalEquity:      decimal.Zero,
		}
		for _, t := range totals {
			line := BalanceSheetLine{AccountId: t.AccountId, AccountCode: t.Code, AccountName: t.Name}
			switch t.Type {
			case models.AccountTypeAsset:
				line.Amount = t.Debit.Sub(t.Credit)
				if line.Amount.IsZero() {
					continue
				}
				report.TotalAssets = report.TotalAssets.Add(line.Amount)
				report.Assets = append(report.Assets, line)
			case models.AccountTypeLiability:
				line.Amount = t.Credit.Sub(t.Debit)
				if line.Amount.IsZero() {
					continue
				}
				report.TotalLiabilities = report.TotalLiabilities.Add(line.Amount)
				report.Liabilities = append(report.Liabilities, line)
			case models.AccountTypeEquity:
				line.Amount = t.Credit.Sub(t.Debit)
				if line.Amount.IsZero() {
					continue
				}
				report.TotalEquity = report.TotalEquity.Add(line.Amount)
				report.Equity = append(report.Equity, line)
			case models.AccountTypeRevenue:
				report.CurrentEarnings = report.CurrentEarnings.Add(t.Credit.Sub(t.Debit))
			case models.AccountTypeExpense:
				report.CurrentEarnings = report.CurrentEarnings.Sub(t.Debit.Sub(t.Credit))
			}
		}
		if !report.CurrentEarnings.IsZero() {
			report.Equity = append(report.Equity, BalanceSheetLine{AccountName: currentEarningsLabel, Amount: report.CurrentEarnings})
			report.TotalEquity = report.TotalEquity.Add(report.CurrentEarnings)
		}
		report.TotalLiabilitiesAndEquity = report.TotalLiabilities.Add(report.TotalEquity)
		report.IsBalanced = report.TotalAssets.Equal(report.TotalLiabilitiesAndEquity)
		return report, nil
	}, asOf)
}
