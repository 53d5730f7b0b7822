package models

import (
	"context"
	"sort"
	"time"

	"github.com/mmdatafocus/boarding_backend/config"
	"github.com/mmdatafocus/boarding_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// StudentAccountBalance is the per student AR subledger:
// Balance = invoiced (non-void) - paid (non-void). Negative means credit.
type StudentAccountBalance struct {
	ID              int             `gorm:"primary_key" json:"id"`
	BoardingHouseId int             `gorm:"index;not null" json:"boarding_house_id"`
	StudentId       int             `gorm:"uniqueIndex;not null" json:"student_id"`
	TotalInvoiced   decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"total_invoiced"`
	TotalPaid       decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"total_paid"`
	Balance         decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"balance"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type StudentBalanceDrift struct {
	StudentId      int             `json:"student_id"`
	StudentNumber  string          `json:"student_number"`
	StudentName    string          `json:"student_name"`
	CachedBalance  decimal.Decimal `json:"cached_balance"`
	ActualInvoiced decimal.Decimal `json:"actual_invoiced"`
	ActualPaid     decimal.Decimal `json:"actual_paid"`
	ActualBalance  decimal.Decimal `json:"actual_balance"`
	Difference     decimal.Decimal `json:"difference"`
}

type RecalculateStudentBalancesResult struct {
	BoardingHouseId int                   `json:"boarding_house_id"`
	DryRun          bool                  `json:"dry_run"`
	StudentsChecked int                   `json:"students_checked"`
	Drifts          []StudentBalanceDrift `json:"drifts"`
}

type StatementLine struct {
	Date        time.Time       `json:"date"`
	Kind        string          `json:"kind"` // invoice|payment
	DocumentId  int             `json:"document_id"`
	Number      string          `json:"number"`
	Description string          `json:"description"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Balance     decimal.Decimal `json:"balance"`
}

type StudentStatement struct {
	Student       *Student        `json:"student"`
	TotalInvoiced decimal.Decimal `json:"total_invoiced"`
	TotalPaid     decimal.Decimal `json:"total_paid"`
	Balance       decimal.Decimal `json:"balance"`
	Lines         []StatementLine `json:"lines"`
}

type studentTotals struct {
	Invoiced decimal.Decimal
	Paid     decimal.Decimal
}

// actualStudentTotals sums non-void invoices and payments per student from the documents.
func actualStudentTotals(tx *gorm.DB, boardingHouseId int, studentId int) (map[int]studentTotals, error) {
	type row struct {
		StudentId int
		Total     decimal.Decimal
	}
	var invoiced, paid []row

	q := tx.Model(&StudentInvoice{}).
		Select("student_id, COALESCE(SUM(amount), 0) AS total").
		Where("boarding_house_id = ? AND status <> ?", boardingHouseId, InvoiceStatusVoid)
	if studentId > 0 {
		q = q.Where("student_id = ?", studentId)
	}
	if err := q.Group("student_id").Scan(&invoiced).Error; err != nil {
		return nil, err
	}
	q = tx.Model(&StudentPayment{}).
		Select("student_id, COALESCE(SUM(amount), 0) AS total").
		Where("boarding_house_id = ?", boardingHouseId)
	if studentId > 0 {
		q = q.Where("student_id = ?", studentId)
	}
	if err := q.Group("student_id").Scan(&paid).Error; err != nil {
		return nil, err
	}

	totals := make(map[int]studentTotals)
	for _, r := range invoiced {
		t := totals[r.StudentId]
		t.Invoiced = r.Total
		totals[r.StudentId] = t
	}
	for _, r := range paid {
		t := totals[r.StudentId]
		t.Paid = r.Total
		totals[r.StudentId] = t
	}
	return totals, nil
}

// refreshStudentBalance recomputes one student's cached balance from the documents.
func refreshStudentBalance(tx *gorm.DB, boardingHouseId int, studentId int) (*StudentAccountBalance, error) {
	totals, err := actualStudentTotals(tx, boardingHouseId, studentId)
	if err != nil {
		return nil, err
	}
	t := totals[studentId]

	var balance StudentAccountBalance
	if err := forUpdate(tx).Where("student_id = ?", studentId).Limit(1).Find(&balance).Error; err != nil {
		return nil, err
	}
	balance.BoardingHouseId = boardingHouseId
	balance.StudentId = studentId
	balance.TotalInvoiced = t.Invoiced
	balance.TotalPaid = t.Paid
	balance.Balance = t.Invoiced.Sub(t.Paid)
	if err := tx.Save(&balance).Error; err != nil {
		return nil, err
	}
	return &balance, nil
}

// DiffStudentBalances compares student_account_balances with invoices minus payments.
func DiffStudentBalances(tx *gorm.DB, boardingHouseId int) ([]StudentBalanceDrift, int, error) {
	var students []Student
	if err := tx.Where("boarding_house_id = ?", boardingHouseId).Order("id").Find(&students).Error; err != nil {
		return nil, 0, err
	}
	totals, err := actualStudentTotals(tx, boardingHouseId, 0)
	if err != nil {
		return nil, 0, err
	}
	var cached []StudentAccountBalance
	if err := tx.Where("boarding_house_id = ?", boardingHouseId).Find(&cached).Error; err != nil {
		return nil, 0, err
	}
	cache := make(map[int]StudentAccountBalance, len(cached))
	for _, c := range cached {
		cache[c.StudentId] = c
	}

	drifts := []StudentBalanceDrift{}
	for _, s := range students {
		t := totals[s.ID]
		actual := t.Invoiced.Sub(t.Paid)
		c, ok := cache[s.ID]
		if ok && c.Balance.Equal(actual) && c.TotalInvoiced.Equal(t.Invoiced) && c.TotalPaid.Equal(t.Paid) {
			continue
		}
		if !ok && actual.IsZero() && t.Invoiced.IsZero() {
			continue
		}
		drifts = append(drifts, StudentBalanceDrift{
			StudentId:      s.ID,
			StudentNumber:  s.StudentNumber,
			StudentName:    s.FullName(),
			CachedBalance:  c.Balance,
			ActualInvoiced: t.Invoiced,
			ActualPaid:     t.Paid,
			ActualBalance:  actual,
			Difference:     c.Balance.Sub(actual),
		})
	}
	return drifts, len(students), nil
}

// RecalculateStudentBalancesTx rebuilds student_account_balances of a house.
func RecalculateStudentBalancesTx(tx *gorm.DB, boardingHouseId int, dryRun bool) (*RecalculateStudentBalancesResult, error) {
	drifts, checked, err := DiffStudentBalances(tx, boardingHouseId)
	if err != nil {
		return nil, err
	}
	result := &RecalculateStudentBalancesResult{
		BoardingHouseId: boardingHouseId,
		DryRun:          dryRun,
		StudentsChecked: checked,
		Drifts:          drifts,
	}
	if dryRun {
		return result, nil
	}
	for _, d := range drifts {
		if _, err := refreshStudentBalance(tx, boardingHouseId, d.StudentId); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func RecalculateStudentBalances(ctx context.Context, dryRun bool) (*RecalculateStudentBalancesResult, error) {
	boardingHouseId, err := requireBoardingHouseId(ctx)
	if err != nil {
		return nil, err
	}
	var result *RecalculateStudentBalancesResult
	err = WithPostingTx(ctx, boardingHouseId, func(tx *gorm.DB) error {
		var err error
		result, err = RecalculateStudentBalancesTx(tx, boardingHouseId, dryRun)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetStudentStatement lists non-void invoices and payments in date order with a running balance.
func GetStudentStatement(ctx context.Context, studentId int) (*StudentStatement, error) {
	boardingHouseId, err := requireBoardingHouseId(ctx)
	if err != nil {
		return nil, err
	}
	student, err := utils.FetchModel[Student](ctx, boardingHouseId, studentId)
	if err != nil {
		return nil, err
	}
	db := config.GetDB().WithContext(ctx)

	var invoices []StudentInvoice
	if err := db.Where("student_id = ? AND status <> ?", studentId, InvoiceStatusVoid).Find(&invoices).Error; err != nil {
		return nil, err
	}
	var payments []StudentPayment
	if err := db.Where("student_id = ?", studentId).Find(&payments).Error; err != nil {
		return nil, err
	}

	lines := make([]StatementLine, 0, len(invoices)+len(payments))
	for _, inv := range invoices {
		lines = append(lines, StatementLine{
			Date:        inv.InvoiceDate,
			Kind:        "invoice",
			DocumentId:  inv.ID,
			Number:      inv.InvoiceNumber,
			Description: inv.Description,
			Debit:       inv.Amount,
			Credit:      decimal.Zero,
		})
	}
	for _, p := range payments {
		lines = append(lines, StatementLine{
			Date:        p.PaymentDate,
			Kind:        "payment",
			DocumentId:  p.ID,
			Number:      p.ReceiptNumber,
			Description: string(p.Method) + " " + p.Reference,
			Debit:       decimal.Zero,
			Credit:      p.Amount,
		})
	}
	// invoices before payments on the same day
	sort.SliceStable(lines, func(i, j int) bool {
		if !lines[i].Date.Equal(lines[j].Date) {
			return lines[i].Date.Before(lines[j].Date)
		}
		if lines[i].Kind != lines[j].Kind {
			return lines[i].Kind == "invoice"
		}
		return lines[i].DocumentId < lines[j].DocumentId
	})

	statement := &StudentStatement{
		Student:       student,
		TotalInvoiced: decimal.Zero,
		TotalPaid:     decimal.Zero,
		Balance:       decimal.Zero,
		Lines:         lines,
	}
	running := decimal.Zero
	for i := range statement.Lines {
		running = running.Add(statement.Lines[i].Debit).Sub(statement.Lines[i].Credit)
		statement.Lines[i].Balance = running
		statement.TotalInvoiced = statement.TotalInvoiced.Add(statement.Lines[i].Debit)
		statement.TotalPaid = statement.TotalPaid.Add(statement.Lines[i].Credit)
	}
	statement.Balance = running
	return statement, nil
}
