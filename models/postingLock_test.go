package models_test

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/mmdatafocus/boarding_backend/config"
	"github.com/mmdatafocus/boarding_backend/models"
	"github.com/mmdatafocus/boarding_backend/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	getLockQuery     = regexp.QuoteMeta("SELECT GET_LOCK(?, ?)")
	releaseLockQuery = regexp.QuoteMeta("SELECT RELEASE_LOCK(?)")
)

func newMockMySQL(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	return db, mock
}

func TestAcquirePostingLock(t *testing.T) {
	t.Run("granted", func(t *testing.T) {
		db, mock := newMockMySQL(t)
		mock.ExpectQuery(getLockQuery).
			WithArgs("posting:house:7", 30).
			WillReturnRows(sqlmock.NewRows([]string{"GET_LOCK"}).AddRow(1))

		require.NoError(t, models.AcquirePostingLock(db, 7))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("timed out", func(t *testing.T) {
		db, mock := newMockMySQL(t)
		mock.ExpectQuery(getLockQuery).
			WithArgs("posting:house:7", 30).
			WillReturnRows(sqlmock.NewRows([]string{"GET_LOCK"}).AddRow(0))

		err := models.AcquirePostingLock(db, 7)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "boarding_house_id=7")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("release", func(t *testing.T) {
		db, mock := newMockMySQL(t)
		mock.ExpectQuery(releaseLockQuery).
			WithArgs("posting:house:7").
			WillReturnRows(sqlmock.NewRows([]string{"RELEASE_LOCK"}).AddRow(1))

		models.ReleasePostingLock(db, 7)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("skipped on sqlite", func(t *testing.T) {
		db := setupTestDB(t)
		assert.NoError(t, models.AcquirePostingLock(db, 7))
		models.ReleasePostingLock(db, 7)
	})
}

func TestWithPostingTxHoldsLockForTransaction(t *testing.T) {
	db, mock := newMockMySQL(t)
	require.NoError(t, config.UseDB(db))
	t.Cleanup(func() { _ = config.UseDB(nil) })
	ctx := utils.SetBoardingHouseIdInContext(context.Background(), 3)

	t.Run("commit", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(getLockQuery).
			WithArgs("posting:house:3", 30).
			WillReturnRows(sqlmock.NewRows([]string{"GET_LOCK"}).AddRow(1))
		mock.ExpectQuery(releaseLockQuery).
			WithArgs("posting:house:3").
			WillReturnRows(sqlmock.NewRows([]string{"RELEASE_LOCK"}).AddRow(1))
		mock.ExpectCommit()

		called := false
		err := models.WithPostingTx(ctx, 3, func(tx *gorm.DB) error {
			called = true
			return nil
		})
		require.NoError(t, err)
		assert.True(t, called)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rollback", func(t *testing.T) {
		boom := errors.New("boom")
		mock.ExpectBegin()
		mock.ExpectQuery(getLockQuery).
			WithArgs("posting:house:3", 30).
			WillReturnRows(sqlmock.NewRows([]string{"GET_LOCK"}).AddRow(1))
		mock.ExpectQuery(releaseLockQuery).
			WithArgs("posting:house:3").
			WillReturnRows(sqlmock.NewRows([]string{"RELEASE_LOCK"}).AddRow(1))
		mock.ExpectRollback()

		err := models.WithPostingTx(ctx, 3, func(tx *gorm.DB) error { return boom })
		assert.ErrorIs(t, err, boom)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("lock not granted", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(getLockQuery).
			WithArgs("posting:house:3", 30).
			WillReturnRows(sqlmock.NewRows([]string{"GET_LOCK"}).AddRow(0))
		mock.ExpectRollback()

		called := false
		err := models.WithPostingTx(ctx, 3, func(tx *gorm.DB) error {
			called = true
			return nil
		})
		assert.Error(t, err)
		assert.False(t, called)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUpdateRoomChecksOccupancyUnderRowLock(t *testing.T) {
	db, mock := newMockMySQL(t)
	require.NoError(t, config.UseDB(db))
	t.Cleanup(func() { _ = config.UseDB(nil) })
	ctx := utils.SetBoardingHouseIdInContext(context.Background(), 4)

	roomRow := func() *sqlmock.Rows {
		return sqlmock.NewRows([]string{"id", "boarding_house_id", "room_number", "capacity", "monthly_rent", "gender", "status"}).
			AddRow(9, 4, "B2", 2, "80", "mixed", "available")
	}
	mock.ExpectQuery("SELECT \\* FROM `rooms`").WillReturnRows(roomRow())
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `rooms`").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM `rooms` .* FOR UPDATE").WillReturnRows(roomRow())
	mock.ExpectQuery("SELECT room_id, COUNT\\(\\*\\) AS count FROM `student_enrollments`").
		WillReturnRows(sqlmock.NewRows([]string{"room_id", "count"}).AddRow(9, 2))
	mock.ExpectRollback()

	_, err := models.UpdateRoom(ctx, 9, &models.NewRoom{RoomNumber: "B2", Capacity: 1, MonthlyRent: money("80")})
	assert.ErrorIs(t, err, utils.ErrValidation)
	assert.NoError(t, mock.ExpectationsWereMet())
}
