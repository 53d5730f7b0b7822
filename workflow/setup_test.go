package workflow_test

import (
	"context"
	"testing"
	"time"

	"github.com/mmdatafocus/boarding_backend/config"
	"github.com/mmdatafocus/boarding_backend/models"
	"github.com/mmdatafocus/boarding_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
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
	return db
}

func maintenanceContext() context.Context {
	return utils.NewMaintenanceContext(context.Background(), "test")
}

func newHouse(t *testing.T, code string) (context.Context, *models.BoardingHouse) {
	t.Helper()
	house, err := models.CreateBoardingHouse(utils.SetIsAdminInContext(context.Background(), true), &models.NewBoardingHouse{
		Name: code + " Residence",
		Code: code,
	})
	require.NoError(t, err)
	ctx := utils.SetBoardingHouseIdInContext(context.Background(), house.ID)
	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetCorrelationIdInContext(ctx, "corr-"+code)
	return ctx, house
}

// postCapital books Dr CASH / Cr OWNERS_EQUITY and returns the outbox record it wrote.
func postCapital(t *testing.T, ctx context.Context, houseId int, amount string) models.LedgerEventRecord {
	t.Helper()
	db := config.GetDB().WithContext(ctx)
	cash, err := models.GetSystemAccount(db, houseId, models.SystemAccountCash)
	require.NoError(t, err)
	equity, err := models.GetSystemAccount(db, houseId, models.SystemAccountOwnersEquity)
	require.NoError(t, err)
	txn, err := models.PostManualJournal(ctx, &models.NewManualJournal{
		JournalDate: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
		Reference:   "CAP",
		Description: "Capital",
		Lines: []models.PostingLine{
			{AccountId: cash.ID, Debit: decimal.RequireFromString(amount)},
			{AccountId: equity.ID, Credit: decimal.RequireFromString(amount)},
		},
	})
	require.NoError(t, err)

	var record models.LedgerEventRecord
	require.NoError(t, config.GetDB().WithContext(maintenanceContext()).
		Where("transaction_id = ?", txn.ID).Take(&record).Error)
	return record
}

func loadRecord(t *testing.T, id int) models.LedgerEventRecord {
	t.Helper()
	var record models.LedgerEventRecord
	require.NoError(t, config.GetDB().WithContext(maintenanceContext()).First(&record, id).Error)
	return record
}
