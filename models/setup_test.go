package models_test

import (
	"context"
	"testing"
	"time"

	"github.com/mmdatafocus/boarding_backend/config"
	"github.com/mmdatafocus/boarding_backend/models"
	"github.com/mmdatafocus/boarding_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB installs a fresh in-memory database as the global connection.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// every connection to :memory: is its own database
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, models.MigrateTable(db))
	require.NoError(t, config.UseDB(db))
	t.Cleanup(func() {
		_ = config.UseDB(nil)
		_ = sqlDB.Close()
	})
	return db
}

func adminContext() context.Context {
	return utils.SetIsAdminInContext(context.Background(), true)
}

// newHouse creates a boarding house with its chart of accounts and returns a request context scoped to it.
func newHouse(t *testing.T, code string) (context.Context, *models.BoardingHouse) {
	t.Helper()
	house, err := models.CreateBoardingHouse(adminContext(), &models.NewBoardingHouse{
		Name: code + " Hostel",
		Code: code,
	})
	require.NoError(t, err)

	ctx := utils.SetBoardingHouseIdInContext(context.Background(), house.ID)
	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetUserNameInContext(ctx, "tester")
	return ctx, house
}

func systemAccount(t *testing.T, ctx context.Context, houseId int, code string) *models.Account {
	t.Helper()
	account, err := models.GetSystemAccount(config.GetDB().WithContext(ctx), houseId, code)
	require.NoError(t, err)
	return account
}

func cachedBalance(t *testing.T, accountId int) decimal.Decimal {
	t.Helper()
	var balance models.CurrentAccountBalance
	err := config.GetDB().WithContext(adminContext()).Where("account_id = ?", accountId).Limit(1).Find(&balance).Error
	require.NoError(t, err)
	if balance.ID == 0 {
		return decimal.Zero
	}
	return balance.Balance
}

func studentBalance(t *testing.T, studentId int) decimal.Decimal {
	t.Helper()
	var balance models.StudentAccountBalance
	err := config.GetDB().WithContext(adminContext()).Where("student_id = ?", studentId).Take(&balance).Error
	require.NoError(t, err)
	return balance.Balance
}

func assertMoney(t *testing.T, expected string, actual decimal.Decimal) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(expected).Equal(actual), "expected %s, got %s", expected, actual.String())
}

func money(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// postCapital records an owner's cash injection.
func postCapital(t *testing.T, ctx context.Context, houseId int, amount string, date time.Time) *models.Transaction {
	t.Helper()
	cash := systemAccount(t, ctx, houseId, models.SystemAccountCash)
	equity := systemAccount(t, ctx, houseId, models.SystemAccountOwnersEquity)
	txn, err := models.PostManualJournal(ctx, &models.NewManualJournal{
		JournalDate: date,
		Reference:   "CAP-1",
		Description: "Owner capital",
		Lines: []models.PostingLine{
			{AccountId: cash.ID, Debit: money(amount)},
			{AccountId: equity.ID, Credit: money(amount)},
		},
	})
	require.NoError(t, err)
	return txn
}
