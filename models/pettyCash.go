package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mmdatafocus/boarding_backend/config"
	"github.com/mmdatafocus/boarding_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type PettyCashAccount struct {
	ID              int             `gorm:"primary_key" json:"id"`
	BoardingHouseId int             `gorm:"index;not null" json:"boarding_house_id"`
	Name            string          `gorm:"size:100;not null" json:"name"`
	AssignedUserId  int             `gorm:"index;not null;default:0" json:"assigned_user_id"`
	LedgerAccountId int             `gorm:"index;not null" json:"ledger_account_id"`
	Balance         decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"balance"`
	IsActive        *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type PettyCashTransaction struct {
	ID                 int                      `gorm:"primary_key" json:"id"`
	BoardingHouseId    int                      `gorm:"index;not null" json:"boarding_house_id"`
	PettyCashAccountId int                      `gorm:"index;not null" json:"petty_cash_account_id"`
	Type               PettyCashTransactionType `gorm:"size:20;not null" json:"type"`
	Amount             decimal.Decimal          `gorm:"type:decimal(20,2);not null;default:0" json:"amount"`
	Date               time.Time                `gorm:"index;not null" json:"date"`
	Description        string                   `gorm:"size:255" json:"description"`
	ExpenseId          int                      `gorm:"index;not null;default:0" json:"expense_id"`
	TransactionId      int                      `gorm:"index" json:"transaction_id"`
	BalanceAfter       decimal.Decimal          `gorm:"type:decimal(20,2);not null;default:0" json:"balance_after"`
	IsVoid             bool                     `gorm:"not null;default:false" json:"is_void"`
	CreatedBy          int                      `json:"created_by"`
	CreatedAt          time.Time                `gorm:"autoCreateTime" json:"created_at"`
}

type NewPettyCashAccount struct {
	Name            string `json:"name" binding:"required,max=100"`
	AssignedUserId  int    `json:"assigned_user_id"`
	LedgerAccountId int    `json:"ledger_account_id"`
}

type PettyCashMovementInput struct {
	Amount      decimal.Decimal      `json:"amount"`
	Date        time.Time            `json:"date" binding:"required"`
	Method      ExpensePaymentMethod `json:"method" binding:"required"`
	Description string               `json:"description"`
}

type PettyCashDrift struct {
	PettyCashAccountId int             `json:"petty_cash_account_id"`
	Name               string          `json:"name"`
	Stored             decimal.Decimal `json:"stored"`
	Actual             decimal.Decimal `json:"actual"`
}

func (p *PettyCashAccount) Active() bool {
	return p.IsActive == nil || *p.IsActive
}

func (p *PettyCashAccount) checkFunds(amount decimal.Decimal) error {
	if config.AllowNegativePettyCash() {
		return nil
	}
	if p.Balance.LessThan(amount) {
		return fmt.Errorf("%w: petty cash %s holds %s, needs %s",
			utils.ErrInsufficientFunds, p.Name, p.Balance.StringFixed(2), amount.StringFixed(2))
	}
	return nil
}

func lockPettyCashAccount(tx *gorm.DB, boardingHouseId int, id int) (*PettyCashAccount, error) {
	var account PettyCashAccount
	err := forUpdate(tx).Where("boarding_house_id = ?", boardingHouseId).First(&account, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewValidationError("petty cash account not found")
		}
		return nil, err
	}
	if !account.Active() {
		return nil, utils.NewValidationError("petty cash account %s is inactive", account.Name)
	}
	return &account, nil
}

// addMovement appends a movement and moves the running balance.
func (p *PettyCashAccount) addMovement(tx *gorm.DB, kind PettyCashTransactionType, amount decimal.Decimal, date time.Time, description string, expenseId int, transactionId int) (*PettyCashTransaction, error) {
	if kind == PettyCashReplenish {
		p.Balance = p.Balance.Add(amount)
	} else {
		p.Balance = p.Balance.Sub(amount)
	}
	movement := PettyCashTransaction{
		BoardingHouseId:    p.BoardingHouseId,
		PettyCashAccountId: p.ID,
		Type:               kind,
		Amount:             amount,
		Date:               date,
		Description:        description,
		ExpenseId:          expenseId,
		TransactionId:      transactionId,
		BalanceAfter:       p.Balance,
	}
	if err := tx.Create(&movement).Error; err != nil {
		return nil, err
	}
	if err := tx.Model(p).Update("balance", p.Balance).Error; err != nil {
		return nil, err
	}
	return &movement, nil
}

func voidPettyCashMovementsOfExpense(tx *gorm.DB, boardingHouseId int, pettyCashAccountId int, expenseId int) error {
	if _, err := lockPettyCashAccountAny(tx, boardingHouseId, pettyCashAccountId); err != nil {
		return err
	}
	err := tx.Model(&PettyCashTransaction{}).
		Where("petty_cash_account_id = ? AND expense_id = ?", pettyCashAccountId, expenseId).
		Update("is_void", true).Error
	if err != nil {
		return err
	}
	_, err = recalculatePettyCashAccount(tx, pettyCashAccountId)
	return err
}

// lockPettyCashAccountAny locks the account even when it has been deactivated.
func lockPettyCashAccountAny(tx *gorm.DB, boardingHouseId int, id int) (*PettyCashAccount, error) {
	var account PettyCashAccount
	if err := forUpdate(tx).Where("boarding_house_id = ?", boardingHouseId).First(&account, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &account, nil
}

// recalculatePettyCashAccount replays non-void movements in date order, rewriting
// balance_after and the stored balance. Returns the stored balance before the rewrite.
func recalculatePettyCashAccount(tx *gorm.DB, id int) (decimal.Decimal, error) {
	var account PettyCashAccount
	if err := tx.First(&account, id).Error; err != nil {
		return decimal.Zero, err
	}
	var movements []PettyCashTransaction
	if err := tx.Where("petty_cash_account_id = ? AND is_void = ?", id, false).
		Order("date, id").Find(&movements).Error; err != nil {
		return decimal.Zero, err
	}
	balance := decimal.Zero
	for _, m := range movements {
		if m.Type == PettyCashReplenish {
			balance = balance.Add(m.Amount)
		} else {
			balance = balance.Sub(m.Amount)
		}
		if !m.BalanceAfter.Equal(balance) {
			if err := tx.Model(&PettyCashTransaction{}).Where("id = ?", m.ID).Update("balance_after", balance).Error; err != nil {
				return decimal.Zero, err
			}
		}
	}
	if err := tx.Model(&PettyCashAccount{}).Where("id = ?", id).Update("balance", balance).Error; err != nil {
		return decimal.Zero, err
	}
	return account.Balance, nil
}

func actualPettyCashBalance(tx *gorm.DB, id int) (decimal.Decimal, error) {
	var row struct {
		TotalIn  decimal.Decimal
		TotalOut decimal.Decimal
	}
	err := tx.Model(&PettyCashTransaction{}).
		Select("COALESCE(SUM(CASE WHEN type = ? THEN amount ELSE 0 END),0) AS total_in, "+
			"COALESCE(SUM(CASE WHEN type <> ? THEN amount ELSE 0 END),0) AS total_out", PettyCashReplenish, PettyCashReplenish).
		Where("petty_cash_account_id = ? AND is_void = ?", id, false).
		Scan(&row).Error
	if err != nil {
		return decimal.Zero, err
	}
	return row.TotalIn.Sub(row.TotalOut), nil
}

// DiffPettyCashBalances lists petty cash accounts whose stored balance differs from their movements.
func DiffPettyCashBalances(tx *gorm.DB, boardingHouseId int) ([]PettyCashDrift, error) {
	var accounts []PettyCashAccount
	if err := tx.Where("boarding_house_id = ?", boardingHouseId).Order("id").Find(&accounts).Error; err != nil {
		return nil, err
	}
	drifts := []PettyCashDrift{}
	for _, account := range accounts {
		actual, err := actualPettyCashBalance(tx, account.ID)
		if err != nil {
			return nil, err
		}
		if !actual.Equal(account.Balance) {
			drifts = append(drifts, PettyCashDrift{
				PettyCashAccountId: account.ID,
				Name:               account.Name,
				Stored:             account.Balance,
				Actual:             actual,
			})
		}
	}
	return drifts, nil
}

// RecalculatePettyCashTx rewrites every petty cash balance of the house from its movements.
func RecalculatePettyCashTx(tx *gorm.DB, boardingHouseId int) ([]PettyCashDrift, error) {
	drifts, err := DiffPettyCashBalances(tx, boardingHouseId)
	if err != nil {
		return nil, err
	}
	for _, d := range drifts {
		if _, err := recalculatePettyCashAccount(tx, d.PettyCashAccountId); err != nil {
			return nil, err
		}
	}
	return drifts, nil
}

func CreatePettyCashAccount(ctx context.Context, input *NewPettyCashAccount) (*PettyCashAccount, error) {
	boardingHouseId, err := requireBoardingHouseId(ctx)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, utils.NewValidationError("name is required")
	}
	if input.AssignedUserId > 0 {
		var user User
		err := config.GetDB().WithContext(ctx).
			Where("id = ? AND boarding_house_id = ?", input.AssignedUserId, boardingHouseId).First(&user).Error
		if err != nil {
			return nil, utils.NewValidationError("assigned user not found in this boarding house")
		}
	}

	var account PettyCashAccount
	err = config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ledger *Account
		var err error
		if input.LedgerAccountId > 0 {
			ledger, err = utils.FetchModelTx[Account](tx, boardingHouseId, input.LedgerAccountId)
			if err != nil {
				return utils.NewValidationError("ledger account not found")
			}
		} else {
			ledger, err = GetSystemAccount(tx, boardingHouseId, SystemAccountPettyCash)
			if err != nil {
				return err
			}
		}
		if ledger.Type != AccountTypeAsset || ledger.SubType != AccountSubTypePettyCash {
			return utils.NewValidationError("account %s is not a petty cash asset account", ledger.Code)
		}
		account = PettyCashAccount{
			BoardingHouseId: boardingHouseId,
			Name:            name,
			AssignedUserId:  input.AssignedUserId,
			LedgerAccountId: ledger.ID,
			IsActive:        utils.NewTrue(),
		}
		return tx.Create(&account).Error
	})
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func SetPettyCashAccountActive(ctx context.Context, id int, isActive bool) (*PettyCashAccount, error) {
	boardingHouseId, err := requireBoardingHouseId(ctx)
	if err != nil {
		return nil, err
	}
	account, err := utils.FetchModel[PettyCashAccount](ctx, boardingHouseId, id)
	if err != nil {
		return nil, err
	}
	if !isActive && !account.Balance.IsZero() {
		return nil, utils.NewValidationError("petty cash account %s still holds %s", account.Name, account.Balance.StringFixed(2))
	}
	account.IsActive = &isActive
	if err := config.GetDB().WithContext(ctx).Model(account).Update("is_active", isActive).Error; err != nil {
		return nil, err
	}
	return account, nil
}

// movePettyCash posts a replenishment (Dr petty / Cr source) or a return (Dr source / Cr petty).
func movePettyCash(ctx context.Context, id int, kind PettyCashTransactionType, input *PettyCashMovementInput) (*PettyCashTransaction, error) {
	boardingHouseId, err := requireBoardingHouseId(ctx)
	if err != nil {
		return nil, err
	}
	amount := utils.RoundMoney(input.Amount)
	if !amount.IsPositive() {
		return nil, utils.NewValidationError("amount must be positive")
	}
	if input.Date.IsZero() {
		return nil, utils.NewValidationError("date is required")
	}
	date := utils.StartOfDay(input.Date)

	var movement *PettyCashTransaction
	err = WithPostingTx(ctx, boardingHouseId, func(tx *gorm.DB) error {
		account, err := lockPettyCashAccount(tx, boardingHouseId, id)
		if err != nil {
			return err
		}
		if kind == PettyCashReturn {
			if err := account.checkFunds(amount); err != nil {
				return err
			}
		}
		source, err := paymentSourceAccount(tx, boardingHouseId, input.Method)
		if err != nil {
			return err
		}
		description := strings.TrimSpace(input.Description)
		posting := &PostingInput{
			ReferenceType:   ReferenceTypePettyCash,
			TransactionDate: date,
		}
		if kind == PettyCashReplenish {
			posting.Type = TransactionTypePettyReplenish
			posting.Description = "Petty cash replenishment: " + account.Name
			posting.Lines = []PostingLine{
				{AccountId: account.LedgerAccountId, Debit: amount, Description: description},
				{AccountId: source.ID, Credit: amount, Description: description},
			}
		} else {
			posting.Type = TransactionTypePettyReturn
			posting.Description = "Petty cash returned: " + account.Name
			posting.Lines = []PostingLine{
				{AccountId: source.ID, Debit: amount, Description: description},
				{AccountId: account.LedgerAccountId, Credit: amount, Description: description},
			}
		}
		txn, err := PostTransactionTx(ctx, tx, boardingHouseId, posting)
		if err != nil {
			return err
		}
		movement, err = account.addMovement(tx, kind, amount, date, description, 0, txn.ID)
		if err != nil {
			return err
		}
		movement.CreatedBy, _ = utils.ActorFromContext(ctx)
		if err := tx.Model(movement).Update("created_by", movement.CreatedBy).Error; err != nil {
			return err
		}
		return tx.Model(&Transaction{}).Where("id = ?", txn.ID).Updates(map[string]interface{}{
			"reference":    fmt.Sprintf("PCT-%06d", movement.ID),
			"reference_id": movement.ID,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return movement, nil
}

func ReplenishPettyCash(ctx context.Context, id int, input *PettyCashMovementInput) (*PettyCashTransaction, error) {
	return movePettyCash(ctx, id, PettyCashReplenish, input)
}

func ReturnPettyCash(ctx context.Context, id int, input *PettyCashMovementInput) (*PettyCashTransaction, error) {
	return movePettyCash(ctx, id, PettyCashReturn, input)
}

func GetPettyCashAccount(ctx context.Context, id int) (*PettyCashAccount, error) {
	boardingHouseId, err := requireBoardingHouseId(ctx)
	if err != nil {
		return nil, err
	}
	return utils.FetchModel[PettyCashAccount](ctx, boardingHouseId, id)
}

func ListPettyCashAccounts(ctx context.Context) ([]*PettyCashAccount, error) {
	boardingHouseId, err := requireBoardingHouseId(ctx)
	if err != nil {
		return nil, err
	}
	var accounts []*PettyCashAccount
	err = config.GetDB().WithContext(ctx).Where("boarding_house_id = ?", boardingHouseId).Order("name").Find(&accounts).Error
	if err != nil {
		return nil, err
	}
	return accounts, nil
}

func ListPettyCashTransactions(ctx context.Context, id int, from, to *time.Time) ([]*PettyCashTransaction, error) {
	boardingHouseId, err := requireBoardingHouseId(ctx)
	if err != nil {
		return nil, err
	}
	if err := utils.ValidateResourceId[PettyCashAccount](ctx, boardingHouseId, id); err != nil {
		return nil, err
	}
	q := config.GetDB().WithContext(ctx).Where("petty_cash_account_id = ?", id)
	if from != nil {
		q = q.Where("date >= ?", utils.StartOfDay(*from))
	}
	if to != nil {
		q = q.Where("date < ?", utils.StartOfDay(*to).AddDate(0, 0, 1))
	}
	var movements []*PettyCashTransaction
	if err := q.Order("date, id").Find(&movements).Error; err != nil {
		return nil, err
	}
	return movements, nil
}
