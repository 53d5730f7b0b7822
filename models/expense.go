package models

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mmdatafocus/boarding_backend/config"
	"github.com/mmdatafocus/boarding_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Expense struct {
	ID                   int                  `gorm:"primary_key" json:"id"`
	BoardingHouseId      int                  `gorm:"index;not null" json:"boarding_house_id"`
	ExpenseNumber        string               `gorm:"size:40;index" json:"expense_number"`
	ExpenseDate          time.Time            `gorm:"index;not null" json:"expense_date"`
	AccountId            int                  `gorm:"index;not null" json:"account_id"`
	SupplierId           int                  `gorm:"index;not null;default:0" json:"supplier_id"`
	Amount               decimal.Decimal      `gorm:"type:decimal(20,2);not null;default:0" json:"amount"`
	AmountPaid           decimal.Decimal      `gorm:"type:decimal(20,2);not null;default:0" json:"amount_paid"`
	PaymentMethod        ExpensePaymentMethod `gorm:"size:20;not null" json:"payment_method"`
	PettyCashAccountId   int                  `gorm:"index;not null;default:0" json:"petty_cash_account_id"`
	Description          string               `gorm:"size:255" json:"description"`
	Reference            string               `gorm:"size:100" json:"reference"`
	ReceiptUrl           string               `gorm:"size:500" json:"receipt_url"`
	Status               ExpenseStatus        `gorm:"size:20;not null;index" json:"status"`
	TransactionId        int                  `gorm:"index" json:"transaction_id"`
	ExpenditureRequestId int                  `gorm:"index;not null;default:0" json:"expenditure_request_id"`
	VoidReason           string               `gorm:"size:255" json:"void_reason,omitempty"`
	CreatedBy            int                  `json:"created_by"`
	CreatedAt            time.Time            `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time            `gorm:"autoUpdateTime" json:"updated_at"`
	Supplier             *Supplier            `gorm:"foreignKey:SupplierId" json:"supplier,omitempty"`
	Account              *Account             `gorm:"foreignKey:AccountId" json:"account,omitempty"`
}

type SupplierPayment struct {
	ID              int                  `gorm:"primary_key" json:"id"`
	BoardingHouseId int                  `gorm:"index;not null" json:"boarding_house_id"`
	SupplierId      int                  `gorm:"index;not null" json:"supplier_id"`
	ExpenseId       int                  `gorm:"index;not null" json:"expense_id"`
	Amount          decimal.Decimal      `gorm:"type:decimal(20,2);not null;default:0" json:"amount"`
	PaymentDate     time.Time            `gorm:"index;not null" json:"payment_date"`
	Method          ExpensePaymentMethod `gorm:"size:20;not null" json:"method"`
	Reference       string               `gorm:"size:100" json:"reference"`
	TransactionId   int                  `gorm:"index" json:"transaction_id"`
	CreatedAt       time.Time            `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time            `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewExpense struct {
	ExpenseDate        time.Time            `json:"expense_date" binding:"required"`
	AccountId          int                  `json:"account_id" binding:"required"`
	SupplierId         int                  `json:"supplier_id"`
	Amount             decimal.Decimal      `json:"amount"`
	PaymentMethod      ExpensePaymentMethod `json:"payment_method" binding:"required"`
	PettyCashAccountId int                  `json:"petty_cash_account_id"`
	Description        string               `json:"description" binding:"required,max=255"`
	Reference          string               `json:"reference"`
}

type NewSupplierPayment struct {
	ExpenseId   int                  `json:"expense_id" binding:"required"`
	Amount      decimal.Decimal      `json:"amount"`
	PaymentDate time.Time            `json:"payment_date" binding:"required"`
	Method      ExpensePaymentMethod `json:"method" binding:"required"`
	Reference   string               `json:"reference"`
}

type ExpenseFilter struct {
	From       *time.Time
	To         *time.Time
	SupplierId int
	AccountId  int
	Status     ExpenseStatus
	PageInput
}

func (e *Expense) Outstanding() decimal.Decimal {
	if e.Status == ExpenseStatusVoid {
		return decimal.Zero
	}
	return e.Amount.Sub(e.AmountPaid)
}

func expenseStatusFor(amount, paid decimal.Decimal) ExpenseStatus {
	switch {
	case paid.IsZero():
		return ExpenseStatusUnpaid
	case paid.GreaterThanOrEqual(amount):
		return ExpenseStatusPaid
	default:
		return ExpenseStatusPartial
	}
}

// paymentSourceAccount is the account credited when money leaves for cash or bank.
func paymentSourceAccount(tx *gorm.DB, boardingHouseId int, method ExpensePaymentMethod) (*Account, error) {
	switch method {
	case ExpensePaymentCash:
		return GetSystemAccount(tx, boardingHouseId, SystemAccountCash)
	case ExpensePaymentBank:
		return GetSystemAccount(tx, boardingHouseId, SystemAccountBank)
	}
	return nil, utils.NewValidationError("payment method must be cash or bank")
}

// recordExpenseTx posts Dr expense account / Cr cash, bank, petty cash or accounts payable.
func recordExpenseTx(ctx context.Context, tx *gorm.DB, boardingHouseId int, input *NewExpense, requestId int) (*Expense, error) {
	amount := utils.RoundMoney(input.Amount)
	if !amount.IsPositive() {
		return nil, utils.NewValidationError("expense amount must be positive")
	}
	if input.ExpenseDate.IsZero() {
		return nil, utils.NewValidationError("expense date is required")
	}
	expenseAccount, err := utils.FetchModelTx[Account](tx, boardingHouseId, input.AccountId)
	if err != nil {
		return nil, utils.NewValidationError("expense account not found")
	}
	if expenseAccount.Type != AccountTypeExpense {
		return nil, utils.NewValidationError("account %s is not an expense account", expenseAccount.Code)
	}

	var supplier *Supplier
	if input.SupplierId > 0 {
		supplier, err = utils.FetchModelTx[Supplier](tx, boardingHouseId, input.SupplierId)
		if err != nil {
			return nil, utils.NewValidationError("supplier not found")
		}
		if !supplier.Active() {
			return nil, utils.NewValidationError("supplier %s is inactive", supplier.Name)
		}
	}

	date := utils.StartOfDay(input.ExpenseDate)
	expense := Expense{
		BoardingHouseId:      boardingHouseId,
		ExpenseDate:          date,
		AccountId:            expenseAccount.ID,
		SupplierId:           input.SupplierId,
		Amount:               amount,
		AmountPaid:           amount,
		PaymentMethod:        input.PaymentMethod,
		Description:          strings.TrimSpace(input.Description),
		Reference:            strings.TrimSpace(input.Reference),
		Status:               ExpenseStatusPaid,
		ExpenditureRequestId: requestId,
	}
	expense.CreatedBy, _ = utils.ActorFromContext(ctx)

	var creditAccount *Account
	var pettyAccount *PettyCashAccount
	switch input.PaymentMethod {
	case ExpensePaymentCash, ExpensePaymentBank:
		creditAccount, err = paymentSourceAccount(tx, boardingHouseId, input.PaymentMethod)
	case ExpensePaymentCredit:
		if supplier == nil {
			return nil, utils.NewValidationError("a supplier is required for credit expenses")
		}
		expense.AmountPaid = decimal.Zero
		expense.Status = ExpenseStatusUnpaid
		creditAccount, err = GetSystemAccount(tx, boardingHouseId, SystemAccountPayable)
	case ExpensePaymentPettyCash:
		if input.PettyCashAccountId <= 0 {
			return nil, utils.NewValidationError("a petty cash account is required")
		}
		pettyAccount, err = lockPettyCashAccount(tx, boardingHouseId, input.PettyCashAccountId)
		if err != nil {
			return nil, err
		}
		if err := pettyAccount.checkFunds(amount); err != nil {
			return nil, err
		}
		expense.PettyCashAccountId = pettyAccount.ID
		creditAccount, err = utils.FetchModelTx[Account](tx, boardingHouseId, pettyAccount.LedgerAccountId)
	default:
		return nil, utils.NewValidationError("invalid payment method %q", input.PaymentMethod)
	}
	if err != nil {
		return nil, err
	}

	if err := tx.Create(&expense).Error; err != nil {
		return nil, err
	}
	expense.ExpenseNumber = fmt.Sprintf("EXP-%06d", expense.ID)

	description := expense.Description
	if supplier != nil {
		description = supplier.Name + ": " + description
	}
	txn, err := PostTransactionTx(ctx, tx, boardingHouseId, &PostingInput{
		Type:            TransactionTypeExpense,
		Reference:       expense.ExpenseNumber,
		ReferenceType:   ReferenceTypeExpense,
		ReferenceId:     expense.ID,
		Description:     description,
		TransactionDate: date,
		Lines: []PostingLine{
			{AccountId: expenseAccount.ID, Debit: amount, Description: expense.Description},
			{AccountId: creditAccount.ID, Credit: amount, Description: string(expense.PaymentMethod)},
		},
	})
	if err != nil {
		return nil, err
	}
	expense.TransactionId = txn.ID
	if err := tx.Model(&expense).Updates(map[string]interface{}{
		"expense_number": expense.ExpenseNumber,
		"transaction_id": expense.TransactionId,
	}).Error; err != nil {
		return nil, err
	}

	if pettyAccount != nil {
		if _, err := pettyAccount.addMovement(tx, PettyCashExpense, amount, date, expense.Description, expense.ID, txn.ID); err != nil {
			return nil, err
		}
	}
	return &expense, nil
}

func RecordExpense(ctx context.Context, input *NewExpense) (*Expense, error) {
	boardingHouseId, err := requireBoardingHouseId(ctx)
	if err != nil {
		return nil, err
	}
	var result *Expense
	err = WithPostingTx(ctx, boardingHouseId, func(tx *gorm.DB) error {
		var err error
		result, err = recordExpenseTx(ctx, tx, boardingHouseId, input, 0)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// VoidExpense voids an expense that has no supplier payments; petty cash spent on it is restored.
func VoidExpense(ctx context.Context, id int, reason string) (*Expense, error) {
	boardingHouseId, err := requireBoardingHouseId(ctx)
	if err != nil {
		return nil, err
	}
	var expense Expense
	err = WithPostingTx(ctx, boardingHouseId, func(tx *gorm.DB) error {
		if err := forUpdate(tx).Where("boarding_house_id = ?", boardingHouseId).First(&expense, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.ErrorRecordNotFound
			}
			return err
		}
		if expense.Status == ExpenseStatusVoid {
			return utils.NewConflictError("expense %s is already void", expense.ExpenseNumber)
		}
		var payments int64
		if err := tx.Model(&SupplierPayment{}).Where("expense_id = ?", expense.ID).Count(&payments).Error; err != nil {
			return err
		}
		if payments > 0 {
			return utils.NewValidationError("expense %s has supplier payments and cannot be voided", expense.ExpenseNumber)
		}
		if _, err := VoidTransactionTx(ctx, tx, boardingHouseId, expense.TransactionId, reason); err != nil {
			return err
		}
		if expense.PettyCashAccountId > 0 {
			if err := voidPettyCashMovementsOfExpense(tx, boardingHouseId, expense.PettyCashAccountId, expense.ID); err != nil {
				return err
			}
		}
		if err := tx.Model(&expense).Updates(map[string]interface{}{
			"status":      ExpenseStatusVoid,
			"void_reason": strings.TrimSpace(reason),
		}).Error; err != nil {
			return err
		}
		expense.Status = ExpenseStatusVoid
		expense.VoidReason = strings.TrimSpace(reason)
		if expense.ExpenditureRequestId > 0 {
			return tx.Model(&ExpenditureRequest{}).Where("id = ?", expense.ExpenditureRequestId).
				Updates(map[string]interface{}{"status": RequestStatusApproved, "expense_id": 0}).Error
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &expense, nil
}

// PaySupplier settles (part of) a credit expense: Dr Accounts Payable / Cr Cash or Bank.
func PaySupplier(ctx context.Context, input *NewSupplierPayment) (*SupplierPayment, error) {
	boardingHouseId, err := requireBoardingHouseId(ctx)
	if err != nil {
		return nil, err
	}
	amount := utils.RoundMoney(input.Amount)
	if !amount.IsPositive() {
		return nil, utils.NewValidationError("payment amount must be positive")
	}
	if input.PaymentDate.IsZero() {
		return nil, utils.NewValidationError("payment date is required")
	}

	var payment SupplierPayment
	err = WithPostingTx(ctx, boardingHouseId, func(tx *gorm.DB) error {
		var expense Expense
		if err := forUpdate(tx).Where("boarding_house_id = ?", boardingHouseId).First(&expense, input.ExpenseId).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.NewValidationError("expense not found")
			}
			return err
		}
		if expense.PaymentMethod != ExpensePaymentCredit || expense.SupplierId == 0 {
			return utils.NewValidationError("expense %s was not bought on credit", expense.ExpenseNumber)
		}
		outstanding := expense.Outstanding()
		if amount.GreaterThan(outstanding) {
			return utils.NewValidationError("payment %s exceeds outstanding %s", amount.StringFixed(2), outstanding.StringFixed(2))
		}
		source, err := paymentSourceAccount(tx, boardingHouseId, input.Method)
		if err != nil {
			return err
		}
		payable, err := GetSystemAccount(tx, boardingHouseId, SystemAccountPayable)
		if err != nil {
			return err
		}
		supplier, err := utils.FetchModelTx[Supplier](tx, boardingHouseId, expense.SupplierId)
		if err != nil {
			return err
		}

		payment = SupplierPayment{
			BoardingHouseId: boardingHouseId,
			SupplierId:      supplier.ID,
			ExpenseId:       expense.ID,
			Amount:          amount,
			PaymentDate:     utils.StartOfDay(input.PaymentDate),
			Method:          input.Method,
			Reference:       strings.TrimSpace(input.Reference),
		}
		if err := tx.Create(&payment).Error; err != nil {
			return err
		}
		txn, err := PostTransactionTx(ctx, tx, boardingHouseId, &PostingInput{
			Type:            TransactionTypeSupplierPayment,
			Reference:       fmt.Sprintf("SPY-%06d", payment.ID),
			ReferenceType:   ReferenceTypeSupplierPayment,
			ReferenceId:     payment.ID,
			Description:     fmt.Sprintf("Payment to %s for %s", supplier.Name, expense.ExpenseNumber),
			TransactionDate: payment.PaymentDate,
			Lines: []PostingLine{
				{AccountId: payable.ID, Debit: amount, Description: expense.ExpenseNumber},
				{AccountId: source.ID, Credit: amount, Description: payment.Reference},
			},
		})
		if err != nil {
			return err
		}
		payment.TransactionId = txn.ID
		if err := tx.Model(&payment).Update("transaction_id", txn.ID).Error; err != nil {
			return err
		}
		expense.AmountPaid = expense.AmountPaid.Add(amount)
		return tx.Model(&expense).Updates(map[string]interface{}{
			"amount_paid": expense.AmountPaid,
			"status":      expenseStatusFor(expense.Amount, expense.AmountPaid),
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func GetExpense(ctx context.Context, id int) (*Expense, error) {
	boardingHouseId, err := requireBoardingHouseId(ctx)
	if err != nil {
		return nil, err
	}
	return utils.FetchModel[Expense](ctx, boardingHouseId, id, "Supplier", "Account")
}

func ListExpenses(ctx context.Context, filter ExpenseFilter) (*Paginated[*Expense], error) {
	boardingHouseId, err := requireBoardingHouseId(ctx)
	if err != nil {
		return nil, err
	}
	q := config.GetDB().WithContext(ctx).Model(&Expense{}).Where("boarding_house_id = ?", boardingHouseId)
	if filter.From != nil {
		q = q.Where("expense_date >= ?", utils.StartOfDay(*filter.From))
	}
	if filter.To != nil {
		q = q.Where("expense_date < ?", utils.StartOfDay(*filter.To).AddDate(0, 0, 1))
	}
	if filter.SupplierId > 0 {
		q = q.Where("supplier_id = ?", filter.SupplierId)
	}
	if filter.AccountId > 0 {
		q = q.Where("account_id = ?", filter.AccountId)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, err
	}
	page, pageSize := filter.normalize()
	var items []*Expense
	err = q.Preload("Supplier").Preload("Account").
		Order("expense_date DESC, id DESC").
		Offset(filter.offset()).Limit(pageSize).Find(&items).Error
	if err != nil {
		return nil, err
	}
	return &Paginated[*Expense]{Items: items, Total: total, Page: page, PageSize: pageSize}, nil
}

// UploadExpenseReceipt stores a receipt (PDF or image, images resized) and links it to the expense.
func UploadExpenseReceipt(ctx context.Context, id int, file io.Reader) (*Expense, error) {
	boardingHouseId, err := requireBoardingHouseId(ctx)
	if err != nil {
		return nil, err
	}
	expense, err := utils.FetchModel[Expense](ctx, boardingHouseId, id)
	if err != nil {
		return nil, err
	}
	data, contentType, err := utils.PrepareDocumentUpload(file, utils.ReceiptMaxWidth)
	if err != nil {
		return nil, err
	}
	ext := "jpg"
	if contentType == "application/pdf" {
		ext = "pdf"
	}
	objectName := fmt.Sprintf("receipts/%d/%d/%s.%s", boardingHouseId, expense.ID, utils.GenerateUniqueFilename(), ext)
	if err := uploadObject(ctx, objectName, data, contentType); err != nil {
		return nil, err
	}
	url := utils.PublicObjectURL(objectName)
	if err := config.GetDB().WithContext(ctx).Model(expense).Update("receipt_url", url).Error; err != nil {
		return nil, err
	}
	expense.ReceiptUrl = url
	return expense, nil
}
