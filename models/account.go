package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mmdatafocus/boarding_backend/config"
	"github.com/mmdatafocus/boarding_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Account struct {
	ID              int            `gorm:"primary_key" json:"id"`
	BoardingHouseId int            `gorm:"not null;uniqueIndex:idx_account_house_code,priority:1;index" json:"boarding_house_id"`
	Code            string         `gorm:"size:20;not null;uniqueIndex:idx_account_house_code,priority:2" json:"code"`
	Name            string         `gorm:"size:100;not null" json:"name"`
	Type            AccountType    `gorm:"size:20;not null;index" json:"type"`
	SubType         AccountSubType `gorm:"size:20;not null;default:'Other';index" json:"sub_type"`
	NormalBalance   NormalBalance  `gorm:"size:10;not null;default:'DEBIT'" json:"normal_balance"`
	ParentId        int            `gorm:"index;not null;default:0" json:"parent_id"`
	Description     string         `gorm:"type:text" json:"description"`
	IsSystem        *bool          `gorm:"not null;default:false" json:"is_system"`
	SystemCode      string         `gorm:"size:30;index" json:"system_code"`
	IsActive        *bool          `gorm:"not null;default:true" json:"is_active"`
	CreatedAt       time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

func (a *Account) Active() bool {
	return a.IsActive == nil || *a.IsActive
}

func (a *Account) System() bool {
	return a.IsSystem != nil && *a.IsSystem
}

// SignedBalance turns debit/credit totals into a balance in the account's normal direction.
func (a *Account) SignedBalance(debit, credit decimal.Decimal) decimal.Decimal {
	if a.NormalBalance == NormalBalanceCredit {
		return credit.Sub(debit)
	}
	return debit.Sub(credit)
}

type NewAccount struct {
	Code        string         `json:"code" binding:"required,max=20"`
	Name        string         `json:"name" binding:"required,max=100"`
	Type        AccountType    `json:"type" binding:"required"`
	SubType     AccountSubType `json:"sub_type"`
	ParentId    int            `json:"parent_id"`
	Description string         `json:"description"`
}

type AccountWithBalance struct {
	Account
	TotalDebit  decimal.Decimal `json:"total_debit"`
	TotalCredit decimal.Decimal `json:"total_credit"`
	Balance     decimal.Decimal `json:"balance"`
}

// System account codes seeded for every boarding house.
const (
	SystemAccountCash            = "CASH"
	SystemAccountBank            = "BANK"
	SystemAccountPettyCash       = "PETTY_CASH"
	SystemAccountReceivable      = "AR"
	SystemAccountPayable         = "AP"
	SystemAccountStudentDeposits = "STUDENT_DEPOSITS"
	SystemAccountOwnersEquity    = "OWNERS_EQUITY"
	SystemAccountRetained        = "RETAINED_EARNINGS"
	SystemAccountRentalIncome    = "RENTAL_INCOME"
	SystemAccountAdminFeeIncome  = "ADMIN_FEE_INCOME"
	SystemAccountOtherIncome     = "OTHER_INCOME"
	SystemAccountGeneralExpenses = "GENERAL_EXPENSES"
	SystemAccountUtilities       = "UTILITIES"
	SystemAccountRepairs         = "REPAIRS"
	SystemAccountSalaries        = "SALARIES"
	SystemAccountFood            = "FOOD"
)

type defaultAccount struct {
	Code       string
	Name       string
	Type       AccountType
	SubType    AccountSubType
	SystemCode string
}

var defaultChartOfAccounts = []defaultAccount{
	{"1000", "Cash on Hand", AccountTypeAsset, AccountSubTypeCash, SystemAccountCash},
	{"1010", "Bank", AccountTypeAsset, AccountSubTypeBank, SystemAccountBank},
	{"1020", "Petty Cash", AccountTypeAsset, AccountSubTypePettyCash, SystemAccountPettyCash},
	{"1100", "Accounts Receivable", AccountTypeAsset, AccountSubTypeReceivable, SystemAccountReceivable},
	{"2000", "Accounts Payable", AccountTypeLiability, AccountSubTypePayable, SystemAccountPayable},
	{"2100", "Student Deposits", AccountTypeLiability, AccountSubTypeDeposit, SystemAccountStudentDeposits},
	{"3000", "Owner's Equity", AccountTypeEquity, AccountSubTypeEquity, SystemAccountOwnersEquity},
	{"3100", "Retained Earnings", AccountTypeEquity, AccountSubTypeEquity, SystemAccountRetained},
	{"4000", "Rental Income", AccountTypeRevenue, AccountSubTypeIncome, SystemAccountRentalIncome},
	{"4010", "Admin Fee Income", AccountTypeRevenue, AccountSubTypeIncome, SystemAccountAdminFeeIncome},
	{"4020", "Other Income", AccountTypeRevenue, AccountSubTypeIncome, SystemAccountOtherIncome},
	{"5000", "General Expenses", AccountTypeExpense, AccountSubTypeExpense, SystemAccountGeneralExpenses},
	{"5010", "Utilities", AccountTypeExpense, AccountSubTypeExpense, SystemAccountUtilities},
	{"5020", "Repairs & Maintenance", AccountTypeExpense, AccountSubTypeExpense, SystemAccountRepairs},
	{"5030", "Salaries", AccountTypeExpense, AccountSubTypeExpense, SystemAccountSalaries},
	{"5040", "Food & Provisions", AccountTypeExpense, AccountSubTypeExpense, SystemAccountFood},
}

// SeedDefaultAccounts creates the missing system accounts of a house. Safe to re-run.
func SeedDefaultAccounts(tx *gorm.DB, boardingHouseId int) error {
	var existing []Account
	if err := tx.Where("boarding_house_id = ? AND is_system = ?", boardingHouseId, true).Find(&existing).Error; err != nil {
		return err
	}
	have := make(map[string]bool, len(existing))
	for _, a := range existing {
		have[a.SystemCode] = true
	}
	for _, d := range defaultChartOfAccounts {
		if have[d.SystemCode] {
			continue
		}
		account := Account{
			BoardingHouseId: boardingHouseId,
			Code:            d.Code,
			Name:            d.Name,
			Type:            d.Type,
			SubType:         d.SubType,
			NormalBalance:   d.Type.NormalBalance(),
			IsSystem:        utils.NewTrue(),
			SystemCode:      d.SystemCode,
			IsActive:        utils.NewTrue(),
		}
		if err := tx.Create(&account).Error; err != nil {
			return err
		}
	}
	return nil
}

// GetSystemAccount looks up a seeded account by its system code.
func GetSystemAccount(tx *gorm.DB, boardingHouseId int, systemCode string) (*Account, error) {
	var account Account
	err := tx.Where("boarding_house_id = ? AND system_code = ?", boardingHouseId, systemCode).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewValidationError("system account %s is missing for boarding house %d", systemCode, boardingHouseId)
		}
		return nil, err
	}
	return &account, nil
}

// validate input for both create & update. (id = 0 for create)
func (input *NewAccount) validate(ctx context.Context, boardingHouseId int, id int) error {
	input.Code = strings.TrimSpace(input.Code)
	input.Name = strings.TrimSpace(input.Name)
	if !input.Type.IsValid() {
		return utils.NewValidationError("invalid account type %q", input.Type)
	}
	if input.SubType == "" {
		input.SubType = AccountSubTypeOther
	}
	if id > 0 && id == input.ParentId {
		return utils.NewValidationError("self-parent not allowed")
	}
	if err := utils.ValidateUnique[Account](ctx, boardingHouseId, "code", input.Code, id); err != nil {
		return err
	}
	if input.ParentId > 0 {
		if err := utils.ValidateResourceId[Account](ctx, boardingHouseId, input.ParentId); err != nil {
			return utils.NewValidationError("parent account not found")
		}
	}
	return nil
}

func CreateAccount(ctx context.Context, input *NewAccount) (*Account, error) {
	boardingHouseId, err := requireBoardingHouseId(ctx)
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx, boardingHouseId, 0); err != nil {
		return nil, err
	}

	account := Account{
		BoardingHouseId: boardingHouseId,
		Code:            input.Code,
		Name:            input.Name,
		Type:            input.Type,
		SubType:         input.SubType,
		NormalBalance:   input.Type.NormalBalance(),
		ParentId:        input.ParentId,
		Description:     input.Description,
		IsSystem:        utils.NewFalse(),
		IsActive:        utils.NewTrue(),
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

func UpdateAccount(ctx context.Context, id int, input *NewAccount) (*Account, error) {
	boardingHouseId, err := requireBoardingHouseId(ctx)
	if err != nil {
		return nil, err
	}
	account, err := utils.FetchModel[Account](ctx, boardingHouseId, id)
	if err != nil {
		return nil, err
	}
	if err := input.validate(ctx, boardingHouseId, id); err != nil {
		return nil, err
	}

	db := config.GetDB()
	updates := map[string]interface{}{
		"Name":        input.Name,
		"Description": input.Description,
		"ParentId":    input.ParentId,
	}
	if !account.System() {
		updates["Code"] = input.Code
		updates["SubType"] = input.SubType
	}
	if input.Type != account.Type {
		if account.System() {
			return nil, utils.NewValidationError("cannot change the type of a system account")
		}
		var count int64
		if err := db.WithContext(ctx).Model(&JournalEntry{}).Where("account_id = ?", account.ID).Count(&count).Error; err != nil {
			return nil, err
		}
		if count > 0 {
			return nil, utils.NewValidationError("cannot change account type after it has been posted to")
		}
		updates["Type"] = input.Type
		updates["NormalBalance"] = input.Type.NormalBalance()
	}

	if err := db.WithContext(ctx).Model(account).Updates(updates).Error; err != nil {
		return nil, err
	}
	return utils.FetchModel[Account](ctx, boardingHouseId, id)
}

// SetAccountActive activates or deactivates an account.
// System accounts and accounts still carrying a balance cannot be deactivated.
func SetAccountActive(ctx context.Context, id int, isActive bool) (*Account, error) {
	boardingHouseId, err := requireBoardingHouseId(ctx)
	if err != nil {
		return nil, err
	}
	account, err := utils.FetchModel[Account](ctx, boardingHouseId, id)
	if err != nil {
		return nil, err
	}
	db := config.GetDB()
	if !isActive {
		if account.System() {
			return nil, utils.NewValidationError("system accounts cannot be deactivated")
		}
		var balance CurrentAccountBalance
		err := db.WithContext(ctx).Where("account_id = ?", account.ID).Limit(1).Find(&balance).Error
		if err != nil {
			return nil, err
		}
		if !balance.Balance.IsZero() {
			return nil, utils.NewValidationError("account %s still has a balance of %s", account.Code, balance.Balance.StringFixed(2))
		}
	}
	if err := db.WithContext(ctx).Model(account).Update("is_active", isActive).Error; err != nil {
		return nil, err
	}
	account.IsActive = &isActive
	return account, nil
}

// ListAccounts returns the chart of accounts with current balances, ordered by code.
func ListAccounts(ctx context.Context, includeInactive bool) ([]*AccountWithBalance, error) {
	boardingHouseId, err := requireBoardingHouseId(ctx)
	if err != nil {
		return nil, err
	}
	db := config.GetDB()
	q := db.WithContext(ctx).Where("boarding_house_id = ?", boardingHouseId)
	if !includeInactive {
		q = q.Where("is_active = ?", true)
	}
	var accounts []Account
	if err := q.Order("code").Find(&accounts).Error; err != nil {
		return nil, err
	}
	var balances []CurrentAccountBalance
	if err := db.WithContext(ctx).Where("boarding_house_id = ?", boardingHouseId).Find(&balances).Error; err != nil {
		return nil, err
	}
	byAccount := make(map[int]CurrentAccountBalance, len(balances))
	for _, b := range balances {
		byAccount[b.AccountId] = b
	}

	results := make([]*AccountWithBalance, 0, len(accounts))
	for _, a := range accounts {
		b := byAccount[a.ID]
		results = append(results, &AccountWithBalance{
			Account:     a,
			TotalDebit:  b.TotalDebit,
			TotalCredit: b.TotalCredit,
			Balance:     b.Balance,
		})
	}
	return results, nil
}

func GetAccount(ctx context.Context, id int) (*Account, error) {
	return utils.FetchModel[Account](ctx, scopeBoardingHouseId(ctx), id)
}
