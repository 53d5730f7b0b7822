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

type InvoiceType string

const (
	InvoiceTypeRent     InvoiceType = "rent"
	InvoiceTypeAdminFee InvoiceType = "admin_fee"
	InvoiceTypeCharge   InvoiceType = "charge"
)

const invoiceDueDays = 7

type StudentInvoice struct {
	ID              int             `gorm:"primary_key" json:"id"`
	BoardingHouseId int             `gorm:"index;not null" json:"boarding_house_id"`
	StudentId       int             `gorm:"index;not null" json:"student_id"`
	EnrollmentId    int             `gorm:"index:idx_invoice_enrollment_period,priority:1;not null;default:0" json:"enrollment_id"`
	InvoiceNumber   string          `gorm:"size:40;index" json:"invoice_number"`
	InvoiceType     InvoiceType     `gorm:"size:20;not null;default:'charge'" json:"invoice_type"`
	Period          string          `gorm:"size:7;index:idx_invoice_enrollment_period,priority:2" json:"period"`
	Description     string          `gorm:"size:255" json:"description"`
	Amount          decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"amount"`
	AmountPaid      decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"amount_paid"`
	InvoiceDate     time.Time       `gorm:"index;not null" json:"invoice_date"`
	DueDate         time.Time       `gorm:"index;not null" json:"due_date"`
	Status          InvoiceStatus   `gorm:"size:20;not null;default:'unpaid';index" json:"status"`
	IncomeAccountId int             `gorm:"not null" json:"income_account_id"`
	TransactionId   int             `gorm:"index" json:"transaction_id"`
	VoidReason      string          `gorm:"size:255" json:"void_reason,omitempty"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewStudentInvoice struct {
	StudentId       int             `json:"student_id" binding:"required"`
	EnrollmentId    int             `json:"-"`
	InvoiceType     InvoiceType     `json:"-"`
	Period          string          `json:"-"`
	Description     string          `json:"description" binding:"required,max=255"`
	Amount          decimal.Decimal `json:"amount"`
	InvoiceDate     time.Time       `json:"invoice_date" binding:"required"`
	DueDate         time.Time       `json:"due_date"`
	IncomeAccountId int             `json:"income_account_id"`
}

type GenerateInvoicesResult struct {
	Period   string            `json:"period"`
	DryRun   bool              `json:"dry_run"`
	Created  int               `json:"created"`
	Skipped  int               `json:"skipped"`
	Total    decimal.Decimal   `json:"total"`
	Invoices []*StudentInvoice `json:"invoices"`
}

func (i *StudentInvoice) Outstanding() decimal.Decimal {
	if i.Status == InvoiceStatusVoid {
		return decimal.Zero
	}
	return i.Amount.Sub(i.AmountPaid)
}

func invoiceStatusFor(amount, paid decimal.Decimal) InvoiceStatus {
	switch {
	case paid.IsZero():
		return InvoiceStatusUnpaid
	case paid.GreaterThanOrEqual(amount):
		return InvoiceStatusPaid
	default:
		return InvoiceStatusPartial
	}
}

// createInvoiceTx posts Dr Accounts Receivable / Cr income and writes the invoice.
// Any unapplied student credit is applied to it straight away.
func createInvoiceTx(ctx context.Context, tx *gorm.DB, boardingHouseId int, student *Student, input *NewStudentInvoice) (*StudentInvoice, error) {
	amount := utils.RoundMoney(input.Amount)
	if !amount.IsPositive() {
		return nil, utils.NewValidationError("invoice amount must be positive")
	}
	if input.InvoiceDate.IsZero() {
		return nil, utils.NewValidationError("invoice date is required")
	}
	invoiceDate := utils.StartOfDay(input.InvoiceDate)
	dueDate := invoiceDate.AddDate(0, 0, invoiceDueDays)
	if !input.DueDate.IsZero() {
		dueDate = utils.StartOfDay(input.DueDate)
	}
	if dueDate.Before(invoiceDate) {
		return nil, utils.NewValidationError("due date is before the invoice date")
	}
	if input.InvoiceType == "" {
		input.InvoiceType = InvoiceTypeCharge
	}

	if input.IncomeAccountId == 0 {
		income, err := GetSystemAccount(tx, boardingHouseId, SystemAccountOtherIncome)
		if err != nil {
			return nil, err
		}
		input.IncomeAccountId = income.ID
	}
	income, err := utils.FetchModelTx[Account](tx, boardingHouseId, input.IncomeAccountId)
	if err != nil {
		return nil, utils.NewValidationError("income account not found")
	}
	if income.Type != AccountTypeRevenue {
		return nil, utils.NewValidationError("account %s is not a revenue account", income.Code)
	}
	receivable, err := GetSystemAccount(tx, boardingHouseId, SystemAccountReceivable)
	if err != nil {
		return nil, err
	}

	invoice := StudentInvoice{
		BoardingHouseId: boardingHouseId,
		StudentId:       student.ID,
		EnrollmentId:    input.EnrollmentId,
		InvoiceType:     input.InvoiceType,
		Period:          input.Period,
		Description:     strings.TrimSpace(input.Description),
		Amount:          amount,
		AmountPaid:      decimal.Zero,
		InvoiceDate:     invoiceDate,
		DueDate:         dueDate,
		Status:          InvoiceStatusUnpaid,
		IncomeAccountId: income.ID,
	}
	if err := tx.Create(&invoice).Error; err != nil {
		return nil, err
	}
	invoice.InvoiceNumber = fmt.Sprintf("INV-%06d", invoice.ID)

	txn, err := PostTransactionTx(ctx, tx, boardingHouseId, &PostingInput{
		Type:            TransactionTypeStudentInvoice,
		Reference:       invoice.InvoiceNumber,
		ReferenceType:   ReferenceTypeStudentInvoice,
		ReferenceId:     invoice.ID,
		Description:     fmt.Sprintf("%s: %s", student.FullName(), invoice.Description),
		TransactionDate: invoiceDate,
		Lines: []PostingLine{
			{AccountId: receivable.ID, Debit: amount, Description: student.StudentNumber},
			{AccountId: income.ID, Credit: amount, Description: invoice.Description},
		},
	})
	if err != nil {
		return nil, err
	}
	invoice.TransactionId = txn.ID
	if err := tx.Model(&invoice).Updates(map[string]interface{}{
		"invoice_number": invoice.InvoiceNumber,
		"transaction_id": invoice.TransactionId,
	}).Error; err != nil {
		return nil, err
	}

	if err := allocateStudentCredit(tx, student.ID); err != nil {
		return nil, err
	}
	if _, err := refreshStudentBalance(tx, boardingHouseId, student.ID); err != nil {
		return nil, err
	}
	if err := tx.First(&invoice, invoice.ID).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

// CreateInvoice raises an ad hoc charge against a student.
func CreateInvoice(ctx context.Context, input *NewStudentInvoice) (*StudentInvoice, error) {
	boardingHouseId, err := requireBoardingHouseId(ctx)
	if err != nil {
		return nil, err
	}
	input.EnrollmentId = 0
	input.Period = ""
	input.InvoiceType = InvoiceTypeCharge

	var result *StudentInvoice
	err = WithPostingTx(ctx, boardingHouseId, func(tx *gorm.DB) error {
		student, err := utils.FetchModelTx[Student](tx, boardingHouseId, input.StudentId)
		if err != nil {
			return err
		}
		result, err = createInvoiceTx(ctx, tx, boardingHouseId, student, input)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GenerateMonthlyInvoicesTx raises one rent invoice per active enrollment for the period.
// Students that already have a non-void rent invoice for the period are skipped, so a
// room transfer inside the month does not bill the month twice.
func GenerateMonthlyInvoicesTx(ctx context.Context, tx *gorm.DB, boardingHouseId int, period string, dryRun bool) (*GenerateInvoicesResult, error) {
	periodStart, periodEnd, err := utils.ParsePeriod(period)
	if err != nil {
		return nil, err
	}
	period = utils.PeriodOf(periodStart)
	rentIncome, err := GetSystemAccount(tx, boardingHouseId, SystemAccountRentalIncome)
	if err != nil {
		return nil, err
	}

	var enrollments []StudentEnrollment
	err = tx.Preload("Room").
		Where("boarding_house_id = ? AND status = ? AND start_date < ?", boardingHouseId, EnrollmentStatusActive, periodEnd.AddDate(0, 0, 1)).
		Order("id").Find(&enrollments).Error
	if err != nil {
		return nil, err
	}

	result := &GenerateInvoicesResult{Period: period, DryRun: dryRun, Total: decimal.Zero, Invoices: []*StudentInvoice{}}
	for _, e := range enrollments {
		if !e.MonthlyRent.IsPositive() {
			result.Skipped++
			continue
		}
		var existing int64
		err := tx.Model(&StudentInvoice{}).
			Where("student_id = ? AND period = ? AND invoice_type = ? AND status <> ?", e.StudentId, period, InvoiceTypeRent, InvoiceStatusVoid).
			Count(&existing).Error
		if err != nil {
			return nil, err
		}
		if existing > 0 {
			result.Skipped++
			continue
		}
		invoiceDate := periodStart
		if e.StartDate.After(invoiceDate) {
			invoiceDate = e.StartDate
		}
		roomNumber := ""
		if e.Room != nil {
			roomNumber = e.Room.RoomNumber
		}
		input := &NewStudentInvoice{
			StudentId:       e.StudentId,
			EnrollmentId:    e.ID,
			InvoiceType:     InvoiceTypeRent,
			Period:          period,
			Description:     fmt.Sprintf("Rent %s, room %s", period, roomNumber),
			Amount:          e.MonthlyRent,
			InvoiceDate:     invoiceDate,
			IncomeAccountId: rentIncome.ID,
		}
		result.Created++
		result.Total = result.Total.Add(e.MonthlyRent)
		if dryRun {
			result.Invoices = append(result.Invoices, &StudentInvoice{
				BoardingHouseId: boardingHouseId,
				StudentId:       e.StudentId,
				EnrollmentId:    e.ID,
				InvoiceType:     InvoiceTypeRent,
				Period:          period,
				Description:     input.Description,
				Amount:          e.MonthlyRent,
				InvoiceDate:     invoiceDate,
				Status:          InvoiceStatusUnpaid,
			})
			continue
		}
		student, err := utils.FetchModelTx[Student](tx, boardingHouseId, e.StudentId)
		if err != nil {
			return nil, err
		}
		invoice, err := createInvoiceTx(ctx, tx, boardingHouseId, student, input)
		if err != nil {
			return nil, fmt.Errorf("enrollment %d: %w", e.ID, err)
		}
		result.Invoices = append(result.Invoices, invoice)
	}
	return result, nil
}

func GenerateMonthlyInvoices(ctx context.Context, period string, dryRun bool) (*GenerateInvoicesResult, error) {
	boardingHouseId, err := requireBoardingHouseId(ctx)
	if err != nil {
		return nil, err
	}
	var result *GenerateInvoicesResult
	err = WithPostingTx(ctx, boardingHouseId, func(tx *gorm.DB) error {
		var err error
		result, err = GenerateMonthlyInvoicesTx(ctx, tx, boardingHouseId, period, dryRun)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// VoidInvoice cancels an invoice that has no payment applied and voids its ledger transaction.
func VoidInvoice(ctx context.Context, id int, reason string) (*StudentInvoice, error) {
	boardingHouseId, err := requireBoardingHouseId(ctx)
	if err != nil {
		return nil, err
	}
	var invoice StudentInvoice
	err = WithPostingTx(ctx, boardingHouseId, func(tx *gorm.DB) error {
		if err := forUpdate(tx).Where("boarding_house_id = ?", boardingHouseId).First(&invoice, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.ErrorRecordNotFound
			}
			return err
		}
		if invoice.Status == InvoiceStatusVoid {
			return utils.NewConflictError("invoice %s is already void", invoice.InvoiceNumber)
		}
		if !invoice.AmountPaid.IsZero() {
			return utils.NewValidationError("invoice %s has payments applied, void the payments first", invoice.InvoiceNumber)
		}
		if _, err := VoidTransactionTx(ctx, tx, boardingHouseId, invoice.TransactionId, reason); err != nil {
			return err
		}
		if err := tx.Model(&invoice).Updates(map[string]interface{}{
			"status":      InvoiceStatusVoid,
			"void_reason": strings.TrimSpace(reason),
		}).Error; err != nil {
			return err
		}
		invoice.Status = InvoiceStatusVoid
		invoice.VoidReason = strings.TrimSpace(reason)
		_, err := refreshStudentBalance(tx, boardingHouseId, invoice.StudentId)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

func ListStudentInvoices(ctx context.Context, studentId int, includeVoid bool) ([]*StudentInvoice, error) {
	boardingHouseId, err := requireBoardingHouseId(ctx)
	if err != nil {
		return nil, err
	}
	q := config.GetDB().WithContext(ctx).Where("boarding_house_id = ? AND student_id = ?", boardingHouseId, studentId)
	if !includeVoid {
		q = q.Where("status <> ?", InvoiceStatusVoid)
	}
	var invoices []*StudentInvoice
	if err := q.Order("invoice_date, id").Find(&invoices).Error; err != nil {
		return nil, err
	}
	return invoices, nil
}
