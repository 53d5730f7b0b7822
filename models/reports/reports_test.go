package reports_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/mmdatafocus/boarding_backend/config"
	"github.com/mmdatafocus/boarding_backend/models"
	"github.com/mmdatafocus/boarding_backend/models/reports"
	"github.com/mmdatafocus/boarding_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, models.MigrateTable(db))
	require.NoError(t, config.UseDB(db))
	t.Cleanup(func() {
		_ = config.UseDB(nil)
		_ = sqlDB.Close()
	})
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func money(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func assertMoney(t *testing.T, expected string, actual decimal.Decimal) {
	t.Helper()
	assert.True(t, money(expected).Equal(actual), "expected %s, got %s", expected, actual.String())
}

func adminContext() context.Context {
	return utils.SetIsAdminInContext(context.Background(), true)
}

type ledgerFixture struct {
	ctx   context.Context
	house *models.BoardingHouse
}

func (f ledgerFixture) account(t *testing.T, code string) *models.Account {
	t.Helper()
	account, err := models.GetSystemAccount(config.GetDB().WithContext(f.ctx), f.house.ID, code)
	require.NoError(t, err)
	return account
}

// seedLedger books, for one house:
//
//	2025-01-10 rent charge 100 (due 01-17)
//	2025-03-01 owner capital 1000
//	2025-03-02 rent charge 300 (due 03-09)
//	2025-03-05 utilities 200 paid in cash
func seedLedger(t *testing.T, code string) ledgerFixture {
	t.Helper()
	house, err := models.CreateBoardingHouse(adminContext(), &models.NewBoardingHouse{Name: code + " Lodge", Code: code})
	require.NoError(t, err)
	ctx := utils.SetBoardingHouseIdInContext(context.Background(), house.ID)
	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetUserNameInContext(ctx, "accountant")
	f := ledgerFixture{ctx: ctx, house: house}

	student, err := models.CreateStudent(ctx, &models.NewStudent{FirstName: "Rudo", LastName: "Chikwanha", Gender: models.GenderFemale})
	require.NoError(t, err)
	rentIncome := f.account(t, models.SystemAccountRentalIncome)
	for _, charge := range []struct {
		amount string
		date   time.Time
	}{
		{"100", day(2025, 1, 10)},
		{"300", day(2025, 3, 2)},
	} {
		_, err := models.CreateInvoice(ctx, &models.NewStudentInvoice{
			StudentId:       student.ID,
			Description:     "Rent",
			Amount:          money(charge.amount),
			InvoiceDate:     charge.date,
			IncomeAccountId: rentIncome.ID,
		})
		require.NoError(t, err)
	}

	_, err = models.PostManualJournal(ctx, &models.NewManualJournal{
		JournalDate: day(2025, 3, 1),
		Reference:   "CAP-1",
		Description: "Owner capital",
		Lines: []models.PostingLine{
			{AccountId: f.account(t, models.SystemAccountCash).ID, Debit: money("1000")},
			{AccountId: f.account(t, models.SystemAccountOwnersEquity).ID, Credit: money("1000")},
		},
	})
	require.NoError(t, err)

	_, err = models.RecordExpense(ctx, &models.NewExpense{
		ExpenseDate:   day(2025, 3, 5),
		AccountId:     f.account(t, models.SystemAccountUtilities).ID,
		Amount:        money("200"),
		PaymentMethod: models.ExpensePaymentCash,
		Description:   "Electricity",
	})
	require.NoError(t, err)
	return f
}

func TestTrialBalance(t *testing.T) {
	setupTestDB(t)
	f := seedLedger(t, "TB")

	report, err := reports.GetTrialBalanceReport(f.ctx, day(2025, 3, 31))
	require.NoError(t, err)
	assert.True(t, report.IsBalanced)
	assertMoney(t, "1400", report.TotalDebit)
	assertMoney(t, "1400", report.TotalCredit)

	byCode := map[string]reports.TrialBalanceLine{}
	for _, line := range report.Lines {
		byCode[line.AccountCode] = line
	}
	require.Len(t, byCode, 5)
	assertMoney(t, "800", byCode["1000"].Debit)
	assertMoney(t, "400", byCode["1100"].Debit)
	assertMoney(t, "1000", byCode["3000"].Credit)
	assertMoney(t, "400", byCode["4000"].Credit)
	assertMoney(t, "200", byCode["5010"].Debit)

	early, err := reports.GetTrialBalanceReport(f.ctx, day(2025, 2, 28))
	require.NoError(t, err)
	assert.Len(t, early.Lines, 2)
	assertMoney(t, "100", early.TotalDebit)
	assert.True(t, early.IsBalanced)
}

func TestTrialBalanceScopesAndConsolidates(t *testing.T) {
	setupTestDB(t)
	first := seedLedger(t, "ONE")
	seedLedger(t, "TWO")

	own, err := reports.GetTrialBalanceReport(first.ctx, day(2025, 3, 31))
	require.NoError(t, err)
	assert.Equal(t, first.house.ID, own.BoardingHouseId)
	assertMoney(t, "1400", own.TotalDebit)

	consolidated, err := reports.GetTrialBalanceReport(adminContext(), day(2025, 3, 31))
	require.NoError(t, err)
	assert.Equal(t, 0, consolidated.BoardingHouseId)
	assertMoney(t, "2800", consolidated.TotalDebit)
	assert.True(t, consolidated.IsBalanced)
	require.Len(t, consolidated.Lines, 5)
	assert.Equal(t, "1000", consolidated.Lines[0].AccountCode)
	assert.Zero(t, consolidated.Lines[0].AccountId)
	assertMoney(t, "1600", consolidated.Lines[0].Debit)
}

func TestIncomeStatement(t *testing.T) {
	setupTestDB(t)
	f := seedLedger(t, "IS")

	report, err := reports.GetIncomeStatementReport(f.ctx, day(2025, 3, 1), day(2025, 3, 31))
	require.NoError(t, err)
	assertMoney(t, "300", report.TotalRevenue)
	assertMoney(t, "200", report.TotalExpenses)
	assertMoney(t, "100", report.NetIncome)
	require.Len(t, report.Revenue, 1)
	assert.Equal(t, "4000", report.Revenue[0].AccountCode)
	require.Len(t, report.Expenses, 1)
	assert.Equal(t, "5010", report.Expenses[0].AccountCode)

	quarter, err := reports.GetIncomeStatementReport(f.ctx, day(2025, 1, 1), day(2025, 3, 31))
	require.NoError(t, err)
	assertMoney(t, "200", quarter.NetIncome)

	_, err = reports.GetIncomeStatementReport(f.ctx, day(2025, 3, 31), day(2025, 3, 1))
	assert.ErrorIs(t, err, utils.ErrValidation)
	_, err = reports.GetIncomeStatementReport(f.ctx, time.Time{}, day(2025, 3, 1))
	assert.ErrorIs(t, err, utils.ErrValidation)
}

func TestGenerateIncomeStatementStoresSnapshot(t *testing.T) {
	setupTestDB(t)
	f := seedLedger(t, "SNAP")

	report, err := reports.GenerateIncomeStatement(f.ctx, day(2025, 3, 1), day(2025, 3, 31))
	require.NoError(t, err)
	require.NotZero(t, report.SnapshotId)

	snapshot, err := models.GetIncomeStatementSnapshot(f.ctx, report.SnapshotId)
	require.NoError(t, err)
	assert.Equal(t, f.house.ID, snapshot.BoardingHouseId)
	assert.Equal(t, "accountant", snapshot.GeneratedByName)
	assertMoney(t, "100", snapshot.NetIncome)

	decoded, err := reports.DecodeIncomeStatementSnapshot(snapshot)
	require.NoError(t, err)
	assert.Equal(t, report.SnapshotId, decoded.SnapshotId)
	assertMoney(t, "300", decoded.TotalRevenue)
	require.Len(t, decoded.Expenses, 1)
	assert.Equal(t, "Utilities", decoded.Expenses[0].AccountName)

	list, err := models.ListIncomeStatementSnapshots(f.ctx, models.PageInput{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, list.Total)
	assert.Empty(t, list.Items[0].Payload)
}

func TestBalanceSheetCarriesCurrentEarnings(t *testing.T) {
	setupTestDB(t)
	f := seedLedger(t, "BS")

	report, err := reports.GetBalanceSheetReport(f.ctx, day(2025, 3, 31))
	require.NoError(t, err)
	assert.True(t, report.IsBalanced)
	assertMoney(t, "1200", report.TotalAssets)
	assert.True(t, report.TotalLiabilities.IsZero())
	assertMoney(t, "200", report.CurrentEarnings)
	assertMoney(t, "1200", report.TotalEquity)
	assertMoney(t, "1200", report.TotalLiabilitiesAndEquity)

	last := report.Equity[len(report.Equity)-1]
	assert.Equal(t, "Current Earnings", last.AccountName)
	assert.Zero(t, last.AccountId)
}

func TestReceivableAgingBuckets(t *testing.T) {
	setupTestDB(t)
	f := seedLedger(t, "AGE")

	report, err := reports.GetReceivableAgingReport(f.ctx, day(2025, 3, 31))
	require.NoError(t, err)
	require.Len(t, report.Rows, 1)
	row := report.Rows[0]
	assert.Equal(t, "Rudo Chikwanha", row.StudentName)
	assert.Equal(t, 2, row.InvoiceCount)
	assertMoney(t, "300", row.Days1to30)
	assertMoney(t, "100", row.Days61to90)
	assertMoney(t, "400", row.Total)
	assertMoney(t, "400", report.Totals.Total)

	early, err := reports.GetReceivableAgingReport(f.ctx, day(2025, 1, 12))
	require.NoError(t, err)
	require.Len(t, early.Rows, 1)
	assertMoney(t, "100", early.Rows[0].Current)
}

func TestRenderExcel(t *testing.T) {
	setupTestDB(t)
	f := seedLedger(t, "XLS")

	report, err := reports.GetTrialBalanceReport(f.ctx, day(2025, 3, 31))
	require.NoError(t, err)
	assert.Equal(t, "trial-balance-2025-03-31.xlsx", report.ExcelFileName())

	content, err := reports.RenderExcel(report)
	require.NoError(t, err)
	require.NotEmpty(t, content)

	book, err := excelize.OpenReader(bytes.NewReader(content))
	require.NoError(t, err)
	defer book.Close()
	assert.Equal(t, []string{"Trial Balance"}, book.GetSheetList())
	title, err := book.GetCellValue("Trial Balance", "A1")
	require.NoError(t, err)
	assert.Equal(t, "Trial balance as of", title)
}
