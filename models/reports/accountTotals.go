package reports

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/mmdatafocus/boarding_backend/config"
	"github.com/mmdatafocus/boarding_backend/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type accountTotal struct {
	AccountId     int
	Code          string
	Name          string
	Type          models.AccountType
	SubType       models.AccountSubType
	NormalBalance models.NormalBalance
	Debit         decimal.Decimal
	Credit        decimal.Decimal
}

// natural is the balance in the account's normal direction.
func (t accountTotal) natural() decimal.Decimal {
	if t.NormalBalance == models.NormalBalanceCredit {
		return t.Credit.Sub(t.Debit)
	}
	return t.Debit.Sub(t.Credit)
}

func reportDB(ctx context.Context) (*gorm.DB, error) {
	db := config.GetDB()
	if db == nil {
		return nil, errors.New("database not connected")
	}
	return db.WithContext(ctx), nil
}

// accountTotals sums journal lines of live transactions per account in [from, to).
// A nil bound is open. With houseId 0 accounts are merged across houses by code
// and carry no account id.
func accountTotals(db *gorm.DB, houseId int, from, to *time.Time, types ...models.AccountType) ([]accountTotal, error) {
	q := db.Table("journal_entries AS je").
		Select("a.id AS account_id, a.code AS code, a.name AS name, a.type AS type, a.sub_type AS sub_type, " +
			"a.normal_balance AS normal_balance, COALESCE(SUM(je.debit), 0) AS debit, COALESCE(SUM(je.credit), 0) AS credit").
		Joins("JOIN transactions t ON t.id = je.transaction_id AND t.deleted_at IS NULL").
		Joins("JOIN accounts a ON a.id = je.account_id")
	if houseId > 0 {
		q = q.Where("je.boarding_house_id = ?", houseId)
	}
	if from != nil {
		q = q.Where("je.transaction_date >= ?", *from)
	}
	if to != nil {
		q = q.Where("je.transaction_date < ?", *to)
	}
	if len(types) > 0 {
		q = q.Where("a.type IN ?", types)
	}
	var rows []accountTotal
	err := q.Group("a.id, a.code, a.name, a.type, a.sub_type, a.normal_balance").Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for i := range rows {
		rows[i].Debit = rows[i].Debit.Round(2)
		rows[i].Credit = rows[i].Credit.Round(2)
	}
	if houseId == 0 {
		rows = mergeByCode(rows)
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Code < rows[j].Code })
	return rows, nil
}

func mergeByCode(rows []accountTotal) []accountTotal {
	index := make(map[string]int, len(rows))
	merged := make([]accountTotal, 0, len(rows))
	for _, r := range rows {
		if i, ok := index[r.Code]; ok {
			merged[i].Debit = merged[i].Debit.Add(r.Debit)
			merged[i].Credit = merged[i].Credit.Add(r.Credit)
			continue
		}
		r.AccountId = 0
		index[r.Code] = len(merged)
		merged = append(merged, r)
	}
	return merged
}

// dayAfter turns an inclusive date into an exclusive upper bound.
func dayAfter(t time.Time) *time.Time {
	next := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
	return &next
}

func startOf(t time.Time) *time.Time {
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return &start
}
