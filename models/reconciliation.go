package models

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mmdatafocus/boarding_backend/config"
	"github.com/mmdatafocus/boarding_backend/metrics"
	"github.com/mmdatafocus/boarding_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	CheckUnbalancedTransaction = "UNBALANCED_TRANSACTION"
	CheckShortTransaction      = "SHORT_TRANSACTION"
	CheckAccountBalanceDrift   = "ACCOUNT_BALANCE_DRIFT"
	CheckStudentBalanceDrift   = "STUDENT_BALANCE_DRIFT"
	CheckReceivableControl     = "AR_CONTROL_MISMATCH"
	CheckPettyCashDrift        = "PETTY_CASH_DRIFT"
)

var integrityChecks = []string{
	CheckUnbalancedTransaction,
	CheckShortTransaction,
	CheckAccountBalanceDrift,
	CheckStudentBalanceDrift,
	CheckReceivableControl,
	CheckPettyCashDrift,
}

// ReconciliationReport is one integrity finding; a run shares its correlation id.
type ReconciliationReport struct {
	ID              int       `gorm:"primary_key" json:"id"`
	BoardingHouseId int       `gorm:"index;not null" json:"boarding_house_id"`
	CheckType       string    `gorm:"size:50;index;not null" json:"check_type"`
	EntityType      string    `gorm:"size:50;index;not null" json:"entity_type"`
	EntityId        int       `gorm:"index;not null" json:"entity_id"`
	Details         string    `gorm:"type:text" json:"details"`
	CorrelationId   string    `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
}

type IntegrityFinding struct {
	CheckType  string `json:"check_type"`
	EntityType string `json:"entity_type"`
	EntityId   int    `json:"entity_id"`
	Details    string `json:"details"`
}

type IntegrityReport struct {
	BoardingHouseId int                `json:"boarding_house_id"`
	CorrelationId   string             `json:"correlation_id"`
	CheckedAt       time.Time          `json:"checked_at"`
	IsClean         bool               `json:"is_clean"`
	Counts          map[string]int     `json:"counts"`
	Findings        []IntegrityFinding `json:"findings"`
}

type transactionLineCheck struct {
	TransactionId int
	Reference     string
	LineCount     int
	TotalDebit    decimal.Decimal
	TotalCredit   decimal.Decimal
}

func (r *IntegrityReport) add(check, entityType string, entityId int, details interface{}) {
	text, ok := details.(string)
	if !ok {
		b, _ := json.Marshal(details)
		text = string(b)
	}
	r.Findings = append(r.Findings, IntegrityFinding{
		CheckType:  check,
		EntityType: entityType,
		EntityId:   entityId,
		Details:    text,
	})
	r.Counts[check]++
}

// suspiciousTransactions returns live transactions that are unbalanced or have fewer than two lines.
func suspiciousTransactions(tx *gorm.DB, boardingHouseId int) ([]transactionLineCheck, error) {
	var rows []transactionLineCheck
	err := tx.Raw(`
		SELECT t.id AS transaction_id, t.reference AS reference,
		       COUNT(je.id) AS line_count,
		       COALESCE(SUM(je.debit), 0) AS total_debit,
		       COALESCE(SUM(je.credit), 0) AS total_credit
		FROM transactions t
		LEFT JOIN journal_entries je ON je.transaction_id = t.id
		WHERE t.boarding_house_id = ? AND t.deleted_at IS NULL
		GROUP BY t.id, t.reference
		HAVING COUNT(je.id) < 2
		    OR ROUND(COALESCE(SUM(je.debit), 0), 2) <> ROUND(COALESCE(SUM(je.credit), 0), 2)
		ORDER BY t.id
	`, boardingHouseId).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// receivableControlDifference compares the AR control account with the student subledger.
func receivableControlDifference(tx *gorm.DB, boardingHouseId int) (control, subledger decimal.Decimal, err error) {
	ar, err := GetSystemAccount(tx, boardingHouseId, SystemAccountReceivable)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	totals, err := LedgerTotals(tx, boardingHouseId, nil)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	t := totals[ar.ID]
	control = ar.SignedBalance(t.Debit, t.Credit)

	students, err := actualStudentTotals(tx, boardingHouseId, 0)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	subledger = decimal.Zero
	for _, s := range students {
		subledger = subledger.Add(s.Invoiced.Sub(s.Paid))
	}
	return control, subledger, nil
}

// CheckIntegrityTx runs every ledger and subledger check for a house without writing anything.
func CheckIntegrityTx(tx *gorm.DB, boardingHouseId int) (*IntegrityReport, error) {
	report := &IntegrityReport{
		BoardingHouseId: boardingHouseId,
		CheckedAt:       time.Now().UTC(),
		Counts:          make(map[string]int, len(integrityChecks)),
		Findings:        []IntegrityFinding{},
	}
	for _, check := range integrityChecks {
		report.Counts[check] = 0
	}

	suspicious, err := suspiciousTransactions(tx, boardingHouseId)
	if err != nil {
		return nil, err
	}
	for _, row := range suspicious {
		if row.LineCount < 2 {
			report.add(CheckShortTransaction, "Transaction", row.TransactionId,
				fmt.Sprintf("transaction %s has %d journal lines", row.Reference, row.LineCount))
			continue
		}
		report.add(CheckUnbalancedTransaction, "Transaction", row.TransactionId,
			fmt.Sprintf("transaction %s debit %s credit %s", row.Reference,
				row.TotalDebit.StringFixed(2), row.TotalCredit.StringFixed(2)))
	}

	accountDrifts, _, err := DiffAccountBalances(tx, boardingHouseId)
	if err != nil {
		return nil, err
	}
	for _, d := range accountDrifts {
		report.add(CheckAccountBalanceDrift, "Account", d.AccountId, d)
	}

	studentDrifts, _, err := DiffStudentBalances(tx, boardingHouseId)
	if err != nil {
		return nil, err
	}
	for _, d := range studentDrifts {
		report.add(CheckStudentBalanceDrift, "Student", d.StudentId, d)
	}

	control, subledger, err := receivableControlDifference(tx, boardingHouseId)
	switch {
	case errors.Is(err, utils.ErrValidation):
		// no AR control account to compare against
		report.add(CheckReceivableControl, "BoardingHouse", boardingHouseId, err.Error())
	case err != nil:
		return nil, err
	case !control.Equal(subledger):
		report.add(CheckReceivableControl, "BoardingHouse", boardingHouseId,
			fmt.Sprintf("AR control %s, student subledger %s", control.StringFixed(2), subledger.StringFixed(2)))
	}

	pettyDrifts, err := DiffPettyCashBalances(tx, boardingHouseId)
	if err != nil {
		return nil, err
	}
	for _, d := range pettyDrifts {
		report.add(CheckPettyCashDrift, "PettyCashAccount", d.PettyCashAccountId, d)
	}

	report.IsClean = len(report.Findings) == 0
	return report, nil
}

// RunIntegrityChecks checks a house, stores the findings in reconciliation_reports
// under one correlation id and exports the counts to the drift gauge.
func RunIntegrityChecks(ctx context.Context, boardingHouseId int) (*IntegrityReport, error) {
	if boardingHouseId <= 0 {
		return nil, ErrBoardingHouseRequired
	}
	db := config.GetDB()
	if db == nil {
		return nil, errors.New("database not connected")
	}
	db = db.WithContext(ctx)
	report, err := CheckIntegrityTx(db, boardingHouseId)
	if err != nil {
		return nil, err
	}
	report.CorrelationId = correlationIdFromContextOrNew(ctx)

	if len(report.Findings) > 0 {
		rows := make([]ReconciliationReport, 0, len(report.Findings))
		for _, f := range report.Findings {
			rows = append(rows, ReconciliationReport{
				BoardingHouseId: boardingHouseId,
				CheckType:       f.CheckType,
				EntityType:      f.EntityType,
				EntityId:        f.EntityId,
				Details:         f.Details,
				CorrelationId:   report.CorrelationId,
				CreatedAt:       report.CheckedAt,
			})
		}
		if err := db.CreateInBatches(rows, 200).Error; err != nil {
			return nil, err
		}
	}
	for check, n := range report.Counts {
		metrics.SetDriftFindings(boardingHouseId, check, n)
	}
	return report, nil
}

// CheckAccountsDrift reports cache drift limited to the given accounts.
func CheckAccountsDrift(ctx context.Context, boardingHouseId int, accountIds []int) ([]AccountBalanceDrift, error) {
	db := config.GetDB()
	if db == nil {
		return nil, errors.New("database not connected")
	}
	drifts, _, err := DiffAccountBalances(db.WithContext(ctx), boardingHouseId)
	if err != nil {
		return nil, err
	}
	wanted := make(map[int]bool, len(accountIds))
	for _, id := range accountIds {
		wanted[id] = true
	}
	result := []AccountBalanceDrift{}
	for _, d := range drifts {
		if wanted[d.AccountId] {
			result = append(result, d)
		}
	}
	return result, nil
}

// ListReconciliationReports returns stored findings of a house, newest first.
func ListReconciliationReports(ctx context.Context, boardingHouseId int, correlationId string, limit int) ([]*ReconciliationReport, error) {
	if limit <= 0 || limit > 1000 {
		limit = 200
	}
	q := config.GetDB().WithContext(ctx).Where("boarding_house_id = ?", boardingHouseId)
	if correlationId != "" {
		q = q.Where("correlation_id = ?", correlationId)
	}
	var rows []*ReconciliationReport
	if err := q.Order("id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
