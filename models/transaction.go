package models

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mmdatafocus/boarding_backend/config"
	"github.com/mmdatafocus/boarding_backend/metrics"
	"github.com/mmdatafocus/boarding_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Transaction is one posted financial event. Voiding soft-deletes it.
type Transaction struct {
	ID              int             `gorm:"primary_key" json:"id"`
	BoardingHouseId int             `gorm:"index;not null" json:"boarding_house_id"`
	Type            TransactionType `gorm:"size:40;index;not null" json:"type"`
	Reference       string          `gorm:"size:100;index" json:"reference"`
	ReferenceType   string          `gorm:"size:40;index:idx_transaction_ref,priority:1" json:"reference_type"`
	ReferenceId     int             `gorm:"index:idx_transaction_ref,priority:2" json:"reference_id"`
	Description     string          `gorm:"type:text" json:"description"`
	Amount          decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"amount"`
	TransactionDate time.Time       `gorm:"index;not null" json:"transaction_date"`
	CreatedBy       int             `json:"created_by"`
	CreatedByName   string          `gorm:"size:100" json:"created_by_name"`
	VoidReason      string          `gorm:"size:255" json:"void_reason,omitempty"`
	VoidedBy        int             `json:"voided_by,omitempty"`
	VoidedAt        *time.Time      `json:"voided_at,omitempty"`
	CorrelationId   string          `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt       gorm.DeletedAt  `gorm:"index" json:"deleted_at,omitempty"`
	Entries         []JournalEntry  `gorm:"foreignKey:TransactionId" json:"entries,omitempty"`
}

// JournalEntry is one debit or credit line of a transaction.
type JournalEntry struct {
	ID              int             `gorm:"primary_key" json:"id"`
	TransactionId   int             `gorm:"index;not null" json:"transaction_id"`
	BoardingHouseId int             `gorm:"index;not null" json:"boarding_house_id"`
	AccountId       int             `gorm:"index;not null" json:"account_id"`
	Debit           decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"debit"`
	Credit          decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"credit"`
	Description     string          `gorm:"size:255" json:"description"`
	TransactionDate time.Time       `gorm:"index;not null" json:"transaction_date"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	Account         *Account        `gorm:"foreignKey:AccountId" json:"account,omitempty"`
}

type PostingLine struct {
	AccountId   int             `json:"account_id" binding:"required"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Description string          `json:"description"`
}

type PostingInput struct {
	Type            TransactionType
	Reference       string
	ReferenceType   string
	ReferenceId     int
	Description     string
	TransactionDate time.Time
	Lines           []PostingLine
}

type TransactionFilter struct {
	From           *time.Time
	To             *time.Time
	Type           TransactionType
	AccountId      int
	IncludeDeleted bool
	PageInput
}

// normalizeLines rounds every line to 2dp and checks the double entry rules:
// at least two lines, one positive side per line, debits equal credits.
func normalizeLines(lines []PostingLine) ([]PostingLine, decimal.Decimal, error) {
	if len(lines) < 2 {
		return nil, decimal.Zero, fmt.Errorf("%w: a transaction needs at least two lines", utils.ErrUnbalancedEntry)
	}
	out := make([]PostingLine, 0, len(lines))
	totalDebit := decimal.Zero
	totalCredit := decimal.Zero
	for i, l := range lines {
		l.Debit = utils.RoundMoney(l.Debit)
		l.Credit = utils.RoundMoney(l.Credit)
		if l.AccountId <= 0 {
			return nil, decimal.Zero, utils.NewValidationError("line %d: account is required", i+1)
		}
		if l.Debit.IsNegative() || l.Credit.IsNegative() {
			return nil, decimal.Zero, utils.NewValidationError("line %d: amounts cannot be negative", i+1)
		}
		if l.Debit.IsPositive() == l.Credit.IsPositive() {
			return nil, decimal.Zero, utils.NewValidationError("line %d: exactly one of debit or credit must be positive", i+1)
		}
		totalDebit = totalDebit.Add(l.Debit)
		totalCredit = totalCredit.Add(l.Credit)
		out = append(out, l)
	}
	if !totalDebit.Equal(totalCredit) {
		return nil, decimal.Zero, fmt.Errorf("%w: debits %s, credits %s", utils.ErrUnbalancedEntry, totalDebit.StringFixed(2), totalCredit.StringFixed(2))
	}
	return out, totalDebit, nil
}

// checkPeriodLock rejects dates on or before PERIOD_LOCK_DATE.
func checkPeriodLock(date time.Time) error {
	lockDate, ok := config.PeriodLockDate()
	if !ok {
		return nil
	}
	if !utils.StartOfDay(date).After(lockDate) {
		return fmt.Errorf("%w: books are closed up to %s", utils.ErrPeriodLocked, lockDate.Format(utils.DateLayout))
	}
	return nil
}

// loadPostingAccounts fetches the line accounts and checks house and active flag.
func loadPostingAccounts(tx *gorm.DB, boardingHouseId int, lines []PostingLine) (map[int]*Account, error) {
	ids := make([]int, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.AccountId)
	}
	ids = utils.UniqueSlice(ids)

	var accounts []*Account
	if err := tx.Where("id IN ?", ids).Find(&accounts).Error; err != nil {
		return nil, err
	}
	byId := make(map[int]*Account, len(accounts))
	for _, a := range accounts {
		byId[a.ID] = a
	}
	for _, id := range ids {
		a, ok := byId[id]
		if !ok || a.BoardingHouseId != boardingHouseId {
			return nil, utils.NewValidationError("account %d not found in boarding house %d", id, boardingHouseId)
		}
		if !a.Active() {
			return nil, utils.NewValidationError("account %s (%s) is inactive", a.Code, a.Name)
		}
	}
	return byId, nil
}

// PostTransactionTx validates and writes a balanced transaction, maintains
// current_account_balances and queues a ledger event, all on tx.
// Call it inside WithPostingTx.
func PostTransactionTx(ctx context.Context, tx *gorm.DB, boardingHouseId int, input *PostingInput) (*Transaction, error) {
	if boardingHouseId <= 0 {
		return nil, ErrBoardingHouseRequired
	}
	if input.Type == "" {
		return nil, utils.NewValidationError("transaction type is required")
	}
	if input.TransactionDate.IsZero() {
		return nil, utils.NewValidationError("transaction date is required")
	}
	lines, total, err := normalizeLines(input.Lines)
	if err != nil {
		return nil, err
	}
	if err := checkPeriodLock(input.TransactionDate); err != nil {
		return nil, err
	}
	accounts, err := loadPostingAccounts(tx, boardingHouseId, lines)
	if err != nil {
		return nil, err
	}

	userId, userName := utils.ActorFromContext(ctx)
	date := utils.StartOfDay(input.TransactionDate)
	txn := Transaction{
		BoardingHouseId: boardingHouseId,
		Type:            input.Type,
		Reference:       strings.TrimSpace(input.Reference),
		ReferenceType:   input.ReferenceType,
		ReferenceId:     input.ReferenceId,
		Description:     input.Description,
		Amount:          total,
		TransactionDate: date,
		CreatedBy:       userId,
		CreatedByName:   userName,
		CorrelationId:   correlationIdFromContextOrNew(ctx),
	}
	for _, l := range lines {
		txn.Entries = append(txn.Entries, JournalEntry{
			BoardingHouseId: boardingHouseId,
			AccountId:       l.AccountId,
			Debit:           l.Debit,
			Credit:          l.Credit,
			Description:     l.Description,
			TransactionDate: date,
		})
	}
	if err := tx.Create(&txn).Error; err != nil {
		return nil, err
	}

	if err := applyBalanceDeltas(tx, boardingHouseId, txn.ID, accounts, txn.Entries, false); err != nil {
		return nil, err
	}
	if err := writeLedgerEvent(ctx, tx, &txn, LedgerEventPosted); err != nil {
		return nil, err
	}
	metrics.RecordPosting(string(txn.Type))
	return &txn, nil
}

// PostTransaction posts in its own DB transaction under the house posting lock.
func PostTransaction(ctx context.Context, input *PostingInput) (*Transaction, error) {
	boardingHouseId, err := requireBoardingHouseId(ctx)
	if err != nil {
		return nil, err
	}
	var result *Transaction
	err = WithPostingTx(ctx, boardingHouseId, func(tx *gorm.DB) error {
		var err error
		result, err = PostTransactionTx(ctx, tx, boardingHouseId, input)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// VoidTransactionTx soft-deletes a transaction and reverses its balance deltas.
// Voiding an already voided transaction is a conflict.
func VoidTransactionTx(ctx context.Context, tx *gorm.DB, boardingHouseId int, id int, reason string) (*Transaction, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, utils.NewValidationError("void reason is required")
	}
	var txn Transaction
	err := forUpdate(tx.Unscoped()).Preload("Entries").
		Where("boarding_house_id = ?", boardingHouseId).
		First(&txn, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	if txn.DeletedAt.Valid {
		return nil, utils.NewConflictError("transaction %d is already voided", id)
	}
	if err := checkPeriodLock(txn.TransactionDate); err != nil {
		return nil, err
	}

	ids := make([]int, 0, len(txn.Entries))
	for _, e := range txn.Entries {
		ids = append(ids, e.AccountId)
	}
	var accounts []*Account
	if err := tx.Where("id IN ?", utils.UniqueSlice(ids)).Find(&accounts).Error; err != nil {
		return nil, err
	}
	byId := make(map[int]*Account, len(accounts))
	for _, a := range accounts {
		byId[a.ID] = a
	}
	if err := applyBalanceDeltas(tx, boardingHouseId, txn.ID, byId, txn.Entries, true); err != nil {
		return nil, err
	}

	userId, _ := utils.ActorFromContext(ctx)
	now := time.Now().UTC()
	if err := tx.Model(&txn).Updates(map[string]interface{}{
		"void_reason": reason,
		"voided_by":   userId,
		"voided_at":   now,
	}).Error; err != nil {
		return nil, err
	}
	if err := tx.Delete(&txn).Error; err != nil {
		return nil, err
	}
	txn.VoidReason = reason
	txn.VoidedBy = userId
	txn.VoidedAt = &now
	txn.DeletedAt = gorm.DeletedAt{Time: now, Valid: true}

	if err := writeLedgerEvent(ctx, tx, &txn, LedgerEventVoided); err != nil {
		return nil, err
	}
	metrics.RecordVoid(string(txn.Type))
	return &txn, nil
}

// VoidTransaction voids a manual journal. Transactions owned by a document
// (invoice, payment, expense...) must be voided through that document.
func VoidTransaction(ctx context.Context, id int, reason string) (*Transaction, error) {
	boardingHouseId, err := requireBoardingHouseId(ctx)
	if err != nil {
		return nil, err
	}
	var result *Transaction
	err = WithPostingTx(ctx, boardingHouseId, func(tx *gorm.DB) error {
		var owner Transaction
		if err := tx.Unscoped().Where("boarding_house_id = ?", boardingHouseId).First(&owner, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.ErrorRecordNotFound
			}
			return err
		}
		if owner.ReferenceType != "" && owner.ReferenceType != ReferenceTypeJournal {
			return utils.NewValidationError("transaction %d belongs to %s %d, void it there", id, owner.ReferenceType, owner.ReferenceId)
		}
		var err error
		result, err = VoidTransactionTx(ctx, tx, boardingHouseId, id, reason)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func GetTransaction(ctx context.Context, id int) (*Transaction, error) {
	db := config.GetDB()
	q := db.WithContext(ctx).Unscoped().Preload("Entries", func(db *gorm.DB) *gorm.DB {
		return db.Order("id")
	}).Preload("Entries.Account")
	if boardingHouseId := scopeBoardingHouseId(ctx); boardingHouseId > 0 {
		q = q.Where("boarding_house_id = ?", boardingHouseId)
	}
	var txn Transaction
	if err := q.First(&txn, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &txn, nil
}

func ListTransactions(ctx context.Context, filter TransactionFilter) (*Paginated[*Transaction], error) {
	db := config.GetDB()
	q := db.WithContext(ctx).Model(&Transaction{})
	if filter.IncludeDeleted {
		q = q.Unscoped()
	}
	if boardingHouseId := scopeBoardingHouseId(ctx); boardingHouseId > 0 {
		q = q.Where("boarding_house_id = ?", boardingHouseId)
	}
	if filter.From != nil {
		q = q.Where("transaction_date >= ?", utils.StartOfDay(*filter.From))
	}
	if filter.To != nil {
		q = q.Where("transaction_date < ?", utils.StartOfDay(*filter.To).AddDate(0, 0, 1))
	}
	if filter.Type != "" {
		q = q.Where("type = ?", filter.Type)
	}
	if filter.AccountId > 0 {
		q = q.Where("id IN (?)", db.Model(&JournalEntry{}).Select("transaction_id").Where("account_id = ?", filter.AccountId))
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, err
	}
	page, pageSize := filter.normalize()
	var items []*Transaction
	err := q.Preload("Entries").
		Order("transaction_date DESC, id DESC").
		Offset(filter.offset()).Limit(pageSize).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return &Paginated[*Transaction]{Items: items, Total: total, Page: page, PageSize: pageSize}, nil
}

// entryAccountIds returns the distinct, sorted accounts touched by the entries.
func entryAccountIds(entries []JournalEntry) []int {
	ids := make([]int, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.AccountId)
	}
	ids = utils.UniqueSlice(ids)
	sort.Ints(ids)
	return ids
}
