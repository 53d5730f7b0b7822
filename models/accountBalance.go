package models

import (
	"context"
	"sort"
	"time"

	"github.com/mmdatafocus/boarding_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CurrentAccountBalance caches the running totals of an account.
// It must always equal the sum of journal entries of non-voided transactions.
type CurrentAccountBalance struct {
	ID                int             `gorm:"primary_key" json:"id"`
	BoardingHouseId   int             `gorm:"index;not null" json:"boarding_house_id"`
	AccountId         int             `gorm:"uniqueIndex;not null" json:"account_id"`
	TotalDebit        decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"total_debit"`
	TotalCredit       decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"total_credit"`
	Balance           decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"balance"`
	LastTransactionId int             `json:"last_transaction_id"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type AccountBalanceDrift struct {
	AccountId      int             `json:"account_id"`
	AccountCode    string          `json:"account_code"`
	AccountName    string          `json:"account_name"`
	CachedDebit    decimal.Decimal `json:"cached_debit"`
	CachedCredit   decimal.Decimal `json:"cached_credit"`
	CachedBalance  decimal.Decimal `json:"cached_balance"`
	LedgerDebit    decimal.Decimal `json:"ledger_debit"`
	LedgerCredit   decimal.Decimal `json:"ledger_credit"`
	LedgerBalance  decimal.Decimal `json:"ledger_balance"`
	Difference     decimal.Decimal `json:"difference"`
	MissingInCache bool            `json:"missing_in_cache"`
}

type RebuildBalancesResult struct {
	BoardingHouseId int                   `json:"boarding_house_id"`
	DryRun          bool                  `json:"dry_run"`
	AccountsChecked int                   `json:"accounts_checked"`
	Drifts          []AccountBalanceDrift `json:"drifts"`
}

type DebitCredit struct {
	Debit  decimal.Decimal
	Credit decimal.Decimal
}

// applyBalanceDeltas adds (or, when reverse, removes) the entries' amounts to the cached balances.
func applyBalanceDeltas(tx *gorm.DB, boardingHouseId int, transactionId int, accounts map[int]*Account, entries []JournalEntry, reverse bool) error {
	deltas := make(map[int]*DebitCredit)
	for _, e := range entries {
		d, ok := deltas[e.AccountId]
		if !ok {
			d = &DebitCredit{Debit: decimal.Zero, Credit: decimal.Zero}
			deltas[e.AccountId] = d
		}
		d.Debit = d.Debit.Add(e.Debit)
		d.Credit = d.Credit.Add(e.Credit)
	}

	for _, accountId := range entryAccountIds(entries) {
		d := deltas[accountId]
		account, ok := accounts[accountId]
		if !ok {
			return utils.NewValidationError("account %d not found", accountId)
		}
		if reverse {
			d.Debit = d.Debit.Neg()
			d.Credit = d.Credit.Neg()
		}

		var balance CurrentAccountBalance
		err := forUpdate(tx).Where("account_id = ?", accountId).Limit(1).Find(&balance).Error
		if err != nil {
			return err
		}
		if balance.ID == 0 {
			balance = CurrentAccountBalance{
				BoardingHouseId: boardingHouseId,
				AccountId:       accountId,
				TotalDebit:      decimal.Zero,
				TotalCredit:     decimal.Zero,
			}
		}
		balance.TotalDebit = balance.TotalDebit.Add(d.Debit)
		balance.TotalCredit = balance.TotalCredit.Add(d.Credit)
		balance.Balance = account.SignedBalance(balance.TotalDebit, balance.TotalCredit)
		balance.LastTransactionId = transactionId
		if err := tx.Save(&balance).Error; err != nil {
			return err
		}
	}
	return nil
}

// LedgerTotals sums journal entries of non-voided transactions per account.
// boardingHouseId 0 covers every house; asOf nil covers all dates.
func LedgerTotals(tx *gorm.DB, boardingHouseId int, asOf *time.Time) (map[int]DebitCredit, error) {
	type row struct {
		AccountId   int
		TotalDebit  decimal.Decimal
		TotalCredit decimal.Decimal
	}
	q := tx.Table("journal_entries AS je").
		Select("je.account_id AS account_id, COALESCE(SUM(je.debit), 0) AS total_debit, COALESCE(SUM(je.credit), 0) AS total_credit").
		Joins("JOIN transactions AS t ON t.id = je.transaction_id AND t.deleted_at IS NULL")
	if boardingHouseId > 0 {
		q = q.Where("je.boarding_house_id = ?", boardingHouseId)
	}
	if asOf != nil {
		q = q.Where("je.transaction_date < ?", utils.StartOfDay(*asOf).AddDate(0, 0, 1))
	}
	var rows []row
	if err := q.Group("je.account_id").Scan(&rows).Error; err != nil {
		return nil, err
	}
	totals := make(map[int]DebitCredit, len(rows))
	for _, r := range rows {
		totals[r.AccountId] = DebitCredit{Debit: r.TotalDebit, Credit: r.TotalCredit}
	}
	return totals, nil
}

// DiffAccountBalances compares the cache against the ledger of record.
func DiffAccountBalances(tx *gorm.DB, boardingHouseId int) ([]AccountBalanceDrift, int, error) {
	var accounts []Account
	if err := tx.Where("boarding_house_id = ?", boardingHouseId).Order("code").Find(&accounts).Error; err != nil {
		return nil, 0, err
	}
	ledger, err := LedgerTotals(tx, boardingHouseId, nil)
	if err != nil {
		return nil, 0, err
	}
	var cached []CurrentAccountBalance
	if err := tx.Where("boarding_house_id = ?", boardingHouseId).Find(&cached).Error; err != nil {
		return nil, 0, err
	}
	cache := make(map[int]CurrentAccountBalance, len(cached))
	for _, c := range cached {
		cache[c.AccountId] = c
	}

	drifts := []AccountBalanceDrift{}
	for _, a := range accounts {
		l, hasLedger := ledger[a.ID]
		if !hasLedger {
			l = DebitCredit{Debit: decimal.Zero, Credit: decimal.Zero}
		}
		c, hasCache := cache[a.ID]
		ledgerBalance := a.SignedBalance(l.Debit, l.Credit)
		if hasCache && c.TotalDebit.Equal(l.Debit) && c.TotalCredit.Equal(l.Credit) && c.Balance.Equal(ledgerBalance) {
			continue
		}
		if !hasCache && !hasLedger {
			continue
		}
		if !hasCache && l.Debit.IsZero() && l.Credit.IsZero() {
			continue
		}
		drifts = append(drifts, AccountBalanceDrift{
			AccountId:      a.ID,
			AccountCode:    a.Code,
			AccountName:    a.Name,
			CachedDebit:    c.TotalDebit,
			CachedCredit:   c.TotalCredit,
			CachedBalance:  c.Balance,
			LedgerDebit:    l.Debit,
			LedgerCredit:   l.Credit,
			LedgerBalance:  ledgerBalance,
			Difference:     c.Balance.Sub(ledgerBalance),
			MissingInCache: !hasCache,
		})
	}
	sort.SliceStable(drifts, func(i, j int) bool { return drifts[i].AccountCode < drifts[j].AccountCode })
	return drifts, len(accounts), nil
}

// RebuildAccountBalancesTx recomputes current_account_balances of a house from
// its journal entries. With dryRun only the drift report is returned.
func RebuildAccountBalancesTx(tx *gorm.DB, boardingHouseId int, dryRun bool) (*RebuildBalancesResult, error) {
	drifts, checked, err := DiffAccountBalances(tx, boardingHouseId)
	if err != nil {
		return nil, err
	}
	result := &RebuildBalancesResult{
		BoardingHouseId: boardingHouseId,
		DryRun:          dryRun,
		AccountsChecked: checked,
		Drifts:          drifts,
	}
	if dryRun || len(drifts) == 0 {
		return result, nil
	}

	for _, d := range drifts {
		var balance CurrentAccountBalance
		if err := tx.Where("account_id = ?", d.AccountId).Limit(1).Find(&balance).Error; err != nil {
			return nil, err
		}
		balance.BoardingHouseId = boardingHouseId
		balance.AccountId = d.AccountId
		balance.TotalDebit = d.LedgerDebit
		balance.TotalCredit = d.LedgerCredit
		balance.Balance = d.LedgerBalance
		if err := tx.Save(&balance).Error; err != nil {
			return nil, err
		}
	}
	return result, nil
}

// RebuildAccountBalances runs the rebuild for the request's house under the posting lock.
func RebuildAccountBalances(ctx context.Context, dryRun bool) (*RebuildBalancesResult, error) {
	boardingHouseId, err := requireBoardingHouseId(ctx)
	if err != nil {
		return nil, err
	}
	var result *RebuildBalancesResult
	err = WithPostingTx(ctx, boardingHouseId, func(tx *gorm.DB) error {
		var err error
		result, err = RebuildAccountBalancesTx(tx, boardingHouseId, dryRun)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
