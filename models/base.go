package models

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/mmdatafocus/boarding_backend/config"
	"github.com/mmdatafocus/boarding_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrBoardingHouseRequired = fmt.Errorf("%w: boarding house id is required", utils.ErrValidation)

// boarding house of the request; 0 is rejected
func requireBoardingHouseId(ctx context.Context) (int, error) {
	boardingHouseId, ok := utils.GetBoardingHouseIdFromContext(ctx)
	if !ok || boardingHouseId <= 0 {
		return 0, ErrBoardingHouseRequired
	}
	return boardingHouseId, nil
}

// boarding house of the request; 0 means every house (boss consolidated view)
func scopeBoardingHouseId(ctx context.Context) int {
	boardingHouseId, _ := utils.GetBoardingHouseIdFromContext(ctx)
	return boardingHouseId
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := utils.GetCorrelationIdFromContext(ctx); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}

// isMySQL reports whether the connection speaks MySQL (row locks, advisory locks).
func isMySQL(db *gorm.DB) bool {
	return db != nil && db.Dialector != nil && db.Dialector.Name() == "mysql"
}

// forUpdate adds SELECT ... FOR UPDATE on MySQL; other dialects run unlocked.
func forUpdate(tx *gorm.DB) *gorm.DB {
	if isMySQL(tx) {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

// WithPostingTx runs fn in one DB transaction holding the house's posting lock.
// Every write that touches the ledger goes through here.
func WithPostingTx(ctx context.Context, boardingHouseId int, fn func(tx *gorm.DB) error) error {
	db := config.GetDB()
	if db == nil {
		return errors.New("database not connected")
	}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := AcquirePostingLock(tx, boardingHouseId); err != nil {
			return err
		}
		defer ReleasePostingLock(tx, boardingHouseId)
		return fn(tx)
	})
	if err != nil {
		return err
	}
	InvalidateReportCache(boardingHouseId)
	return nil
}

func reportVersionKey(boardingHouseId int) string {
	return "ReportVersion:" + strconv.Itoa(boardingHouseId)
}

// InvalidateReportCache bumps the cache version of the house and of the consolidated view.
func InvalidateReportCache(boardingHouseId int) {
	logger := config.GetLogger()
	for _, key := range []string{reportVersionKey(boardingHouseId), reportVersionKey(0)} {
		if _, err := config.IncrRedisValue(key); err != nil {
			config.LogError(logger, "base.go", "InvalidateReportCache", "IncrRedisValue", key, err)
		}
	}
}

// ReportCacheVersion is part of every cached report key; it changes after each posting.
func ReportCacheVersion(boardingHouseId int) string {
	v, ok, err := config.GetRedisValue(reportVersionKey(boardingHouseId))
	if err != nil || !ok {
		return "0"
	}
	return v
}

func sumDecimals(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}
