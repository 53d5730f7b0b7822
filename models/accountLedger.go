package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/boarding_backend/config"
	"github.com/mmdatafocus/boarding_backend/utils"
	"github.com/shopspring/decimal"
)

type AccountLedgerLine struct {
	TransactionId   int             `json:"transaction_id"`
	TransactionDate time.Time       `json:"transaction_date"`
	Type            TransactionType `json:"type"`
	Reference       string          `json:"reference"`
	Description     string          `json:"description"`
	Debit           decimal.Decimal `json:"debit"`
	Credit          decimal.Decimal `json:"credit"`
	RunningBalance  decimal.Decimal `json:"running_balance"`
}

type AccountLedgerReport struct {
	Account        *Account            `json:"account"`
	From           time.Time           `json:"from"`
	To             time.Time           `json:"to"`
	OpeningBalance decimal.Decimal     `json:"opening_balance"`
	TotalDebit     decimal.Decimal     `json:"total_debit"`
	TotalCredit    decimal.Decimal     `json:"total_credit"`
	ClosingBalance decimal.Decimal     `json:"closing_balance"`
	Lines          []AccountLedgerLine `json:"lines"`
}

// AccountLedger lists the account's lines in [from, to] with a running balance
// that starts from the balance of everything posted before from.
func AccountLedger(ctx context.Context, accountId int, from time.Time, to time.Time) (*AccountLedgerReport, error) {
	boardingHouseId, err := requireBoardingHouseId(ctx)
	if err != nil {
		return nil, err
	}
	if to.Before(from) {
		return nil, utils.NewValidationError("to date is before from date")
	}
	account, err := utils.FetchModel[Account](ctx, boardingHouseId, accountId)
	if err != nil {
		return nil, err
	}
	from = utils.StartOfDay(from)
	to = utils.StartOfDay(to)

	db := config.GetDB().WithContext(ctx)

	var opening struct {
		Debit  decimal.Decimal
		Credit decimal.Decimal
	}
	err = db.Table("journal_entries AS je").
		Select("COALESCE(SUM(je.debit), 0) AS debit, COALESCE(SUM(je.credit), 0) AS credit").
		Joins("JOIN transactions AS t ON t.id = je.transaction_id AND t.deleted_at IS NULL").
		Where("je.account_id = ? AND je.transaction_date < ?", accountId, from).
		Scan(&opening).Error
	if err != nil {
		return nil, err
	}

	type row struct {
		TransactionId   int
		TransactionDate time.Time
		Type            TransactionType
		Reference       string
		Description     string
		LineDescription string
		Debit           decimal.Decimal
		Credit          decimal.Decimal
	}
	var rows []row
	err = db.Table("journal_entries AS je").
		Select("je.transaction_id, je.transaction_date, t.type, t.reference, t.description, je.description AS line_description, je.debit, je.credit").
		Joins("JOIN transactions AS t ON t.id = je.transaction_id AND t.deleted_at IS NULL").
		Where("je.account_id = ? AND je.transaction_date >= ? AND je.transaction_date < ?", accountId, from, to.AddDate(0, 0, 1)).
		Order("je.transaction_date, je.transaction_id, je.id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	report := &AccountLedgerReport{
		Account:        account,
		From:           from,
		To:             to,
		OpeningBalance: account.SignedBalance(opening.Debit, opening.Credit),
		TotalDebit:     decimal.Zero,
		TotalCredit:    decimal.Zero,
		Lines:          make([]AccountLedgerLine, 0, len(rows)),
	}
	running := report.OpeningBalance
	for _, r := range rows {
		running = running.Add(account.SignedBalance(r.Debit, r.Credit))
		report.TotalDebit = report.TotalDebit.Add(r.Debit)
		report.TotalCredit = report.TotalCredit.Add(r.Credit)
		description := r.LineDescription
		if description == "" {
			description = r.Description
		}
		report.Lines = append(report.Lines, AccountLedgerLine{
			TransactionId:   r.TransactionId,
			TransactionDate: r.TransactionDate,
			Type:            r.Type,
			Reference:       r.Reference,
			Description:     description,
			Debit:           r.Debit,
			Credit:          r.Credit,
			RunningBalance:  running,
		})
	}
	report.ClosingBalance = running
	return report, nil
}
