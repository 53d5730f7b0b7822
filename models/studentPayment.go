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

type StudentPayment struct {
	ID               int                        `gorm:"primary_key" json:"id"`
	BoardingHouseId  int                        `gorm:"index;not null" json:"boarding_house_id"`
	StudentId        int                        `gorm:"index;not null" json:"student_id"`
	ReceiptNumber    string                     `gorm:"size:40;index" json:"receipt_number"`
	Amount           decimal.Decimal            `gorm:"type:decimal(20,2);not null;default:0" json:"amount"`
	AmountAllocated  decimal.Decimal            `gorm:"type:decimal(20,2);not null;default:0" json:"amount_allocated"`
	PaymentDate      time.Time                  `gorm:"index;not null" json:"payment_date"`
	Method           StudentPaymentMethod       `gorm:"size:20;not null" json:"method"`
	DepositAccountId int                        `gorm:"not null" json:"deposit_account_id"`
	Reference        string                     `gorm:"size:100" json:"reference"`
	Notes            string                     `gorm:"type:text" json:"notes"`
	TransactionId    int                        `gorm:"index" json:"transaction_id"`
	VoidReason       string                     `gorm:"size:255" json:"void_reason,omitempty"`
	CreatedAt        time.Time                  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time                  `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt        gorm.DeletedAt             `gorm:"index" json:"deleted_at,omitempty"`
	Allocations      []StudentPaymentAllocation `gorm:"foreignKey:PaymentId" json:"allocations,omitempty"`
}

type StudentPaymentAllocation struct {
	ID              int             `gorm:"primary_key" json:"id"`
	BoardingHouseId int             `gorm:"index;not null" json:"boarding_house_id"`
	PaymentId       int             `gorm:"index;not null" json:"payment_id"`
	InvoiceId       int             `gorm:"index;not null" json:"invoice_id"`
	Amount          decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"amount"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

type NewStudentPayment struct {
	StudentId        int                  `json:"student_id" binding:"required"`
	Amount           decimal.Decimal      `json:"amount"`
	PaymentDate      time.Time            `json:"payment_date" binding:"required"`
	Method           StudentPaymentMethod `json:"method" binding:"required"`
	DepositAccountId int                  `json:"deposit_account_id"`
	Reference        string               `json:"reference"`
	Notes            string               `json:"notes"`
}

func (p *StudentPayment) Unallocated() decimal.Decimal {
	return p.Amount.Sub(p.AmountAllocated)
}

// depositAccountFor resolves where the money lands: an explicit cash-like
// account, otherwise Cash for cash and Bank for bank or mobile money.
func depositAccountFor(tx *gorm.DB, boardingHouseId int, method StudentPaymentMethod, accountId int) (*Account, error) {
	if accountId > 0 {
		account, err := utils.FetchModelTx[Account](tx, boardingHouseId, accountId)
		if err != nil {
			return nil, utils.NewValidationError("deposit account not found")
		}
		if account.Type != AccountTypeAsset || !account.SubType.IsCashLike() {
			return nil, utils.NewValidationError("account %s is not a cash or bank account", account.Code)
		}
		return account, nil
	}
	switch method {
	case StudentPaymentCash:
		return GetSystemAccount(tx, boardingHouseId, SystemAccountCash)
	case StudentPaymentBank, StudentPaymentMobileMoney:
		return GetSystemAccount(tx, boardingHouseId, SystemAccountBank)
	}
	return nil, utils.NewValidationError("invalid payment method %q", method)
}

// allocateStudentCredit applies unallocated payment money to open invoices,
// oldest payment to oldest invoice first.
func allocateStudentCredit(tx *gorm.DB, studentId int) error {
	var payments []StudentPayment
	if err := tx.Where("student_id = ?", studentId).Order("payment_date, id").Find(&payments).Error; err != nil {
		return err
	}
	var invoices []StudentInvoice
	err := tx.Where("student_id = ? AND status IN ?", studentId, []InvoiceStatus{InvoiceStatusUnpaid, InvoiceStatusPartial}).
		Order("due_date, invoice_date, id").Find(&invoices).Error
	if err != nil {
		return err
	}

	i := 0
	for pi := range payments {
		p := &payments[pi]
		credit := p.Unallocated()
		allocated := decimal.Zero
		for credit.IsPositive() && i < len(invoices) {
			inv := &invoices[i]
			open := inv.Outstanding()
			if !open.IsPositive() {
				i++
				continue
			}
			amount := decimal.Min(credit, open)
			if err := tx.Create(&StudentPaymentAllocation{
				BoardingHouseId: p.BoardingHouseId,
				PaymentId:       p.ID,
				InvoiceId:       inv.ID,
				Amount:          amount,
			}).Error; err != nil {
				return err
			}
			inv.AmountPaid = inv.AmountPaid.Add(amount)
			inv.Status = invoiceStatusFor(inv.Amount, inv.AmountPaid)
			if err := tx.Model(inv).Updates(map[string]interface{}{
				"amount_paid": inv.AmountPaid,
				"status":      inv.Status,
			}).Error; err != nil {
				return err
			}
			credit = credit.Sub(amount)
			allocated = allocated.Add(amount)
			if inv.Status == InvoiceStatusPaid {
				i++
			}
		}
		if allocated.IsPositive() {
			p.AmountAllocated = p.AmountAllocated.Add(allocated)
			if err := tx.Model(p).Update("amount_allocated", p.AmountAllocated).Error; err != nil {
				return err
			}
		}
		if i >= len(invoices) {
			break
		}
	}
	return nil
}

// RecordPayment posts Dr Cash/Bank / Cr Accounts Receivable and allocates the
// money to the student's oldest open invoices. Any surplus stays as credit.
func RecordPayment(ctx context.Context, input *NewStudentPayment) (*StudentPayment, error) {
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

	var payment StudentPayment
	err = WithPostingTx(ctx, boardingHouseId, func(tx *gorm.DB) error {
		student, err := utils.FetchModelTx[Student](tx, boardingHouseId, input.StudentId)
		if err != nil {
			return err
		}
		deposit, err := depositAccountFor(tx, boardingHouseId, input.Method, input.DepositAccountId)
		if err != nil {
			return err
		}
		receivable, err := GetSystemAccount(tx, boardingHouseId, SystemAccountReceivable)
		if err != nil {
			return err
		}

		payment = StudentPayment{
			BoardingHouseId:  boardingHouseId,
			StudentId:        student.ID,
			Amount:           amount,
			AmountAllocated:  decimal.Zero,
			PaymentDate:      utils.StartOfDay(input.PaymentDate),
			Method:           input.Method,
			DepositAccountId: deposit.ID,
			Reference:        strings.TrimSpace(input.Reference),
			Notes:            input.Notes,
		}
		if err := tx.Create(&payment).Error; err != nil {
			return err
		}
		payment.ReceiptNumber = fmt.Sprintf("RCT-%06d", payment.ID)

		txn, err := PostTransactionTx(ctx, tx, boardingHouseId, &PostingInput{
			Type:            TransactionTypeStudentPayment,
			Reference:       payment.ReceiptNumber,
			ReferenceType:   ReferenceTypeStudentPayment,
			ReferenceId:     payment.ID,
			Description:     fmt.Sprintf("Payment from %s (%s)", student.FullName(), payment.Method),
			TransactionDate: payment.PaymentDate,
			Lines: []PostingLine{
				{AccountId: deposit.ID, Debit: amount, Description: payment.Reference},
				{AccountId: receivable.ID, Credit: amount, Description: student.StudentNumber},
			},
		})
		if err != nil {
			return err
		}
		payment.TransactionId = txn.ID
		if err := tx.Model(&payment).Updates(map[string]interface{}{
			"receipt_number": payment.ReceiptNumber,
			"transaction_id": payment.TransactionId,
		}).Error; err != nil {
			return err
		}
		if err := allocateStudentCredit(tx, student.ID); err != nil {
			return err
		}
		if _, err := refreshStudentBalance(tx, boardingHouseId, student.ID); err != nil {
			return err
		}
		return tx.Preload("Allocations").First(&payment, payment.ID).Error
	})
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// VoidPayment voids the payment's ledger transaction, reopens the invoices it paid
// and re-applies the student's remaining credit.
func VoidPayment(ctx context.Context, id int, reason string) (*StudentPayment, error) {
	boardingHouseId, err := requireBoardingHouseId(ctx)
	if err != nil {
		return nil, err
	}
	var payment StudentPayment
	err = WithPostingTx(ctx, boardingHouseId, func(tx *gorm.DB) error {
		err := forUpdate(tx.Unscoped()).Preload("Allocations").
			Where("boarding_house_id = ?", boardingHouseId).First(&payment, id).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.ErrorRecordNotFound
			}
			return err
		}
		if payment.DeletedAt.Valid {
			return utils.NewConflictError("payment %s is already void", payment.ReceiptNumber)
		}
		if _, err := VoidTransactionTx(ctx, tx, boardingHouseId, payment.TransactionId, reason); err != nil {
			return err
		}
		if err := releaseAllocations(tx, payment.Allocations); err != nil {
			return err
		}
		if err := tx.Where("payment_id = ?", payment.ID).Delete(&StudentPaymentAllocation{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&payment).Updates(map[string]interface{}{
			"void_reason":      strings.TrimSpace(reason),
			"amount_allocated": decimal.Zero,
		}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&payment).Error; err != nil {
			return err
		}
		if err := allocateStudentCredit(tx, payment.StudentId); err != nil {
			return err
		}
		if _, err := refreshStudentBalance(tx, boardingHouseId, payment.StudentId); err != nil {
			return err
		}
		return tx.Unscoped().First(&payment, payment.ID).Error
	})
	if err != nil {
		return nil, err
	}
	payment.Allocations = nil
	return &payment, nil
}

// releaseAllocations takes allocated money back off the invoices.
func releaseAllocations(tx *gorm.DB, allocations []StudentPaymentAllocation) error {
	for _, a := range allocations {
		var inv StudentInvoice
		if err := forUpdate(tx).First(&inv, a.InvoiceId).Error; err != nil {
			return err
		}
		inv.AmountPaid = inv.AmountPaid.Sub(a.Amount)
		if inv.AmountPaid.IsNegative() {
			inv.AmountPaid = decimal.Zero
		}
		if inv.Status != InvoiceStatusVoid {
			inv.Status = invoiceStatusFor(inv.Amount, inv.AmountPaid)
		}
		if err := tx.Model(&inv).Updates(map[string]interface{}{
			"amount_paid": inv.AmountPaid,
			"status":      inv.Status,
		}).Error; err != nil {
			return err
		}
	}
	return nil
}

func ListStudentPayments(ctx context.Context, studentId int, includeVoid bool) ([]*StudentPayment, error) {
	boardingHouseId, err := requireBoardingHouseId(ctx)
	if err != nil {
		return nil, err
	}
	q := config.GetDB().WithContext(ctx)
	if includeVoid {
		q = q.Unscoped()
	}
	var payments []*StudentPayment
	err = q.Preload("Allocations").
		Where("boarding_house_id = ? AND student_id = ?", boardingHouseId, studentId).
		Order("payment_date, id").Find(&payments).Error
	if err != nil {
		return nil, err
	}
	return payments, nil
}
