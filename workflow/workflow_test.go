package workflow_test

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/mmdatafocus/boarding_backend/config"
	"github.com/mmdatafocus/boarding_backend/models"
	"github.com/mmdatafocus/boarding_backend/utils"
	"github.com/mmdatafocus/boarding_backend/workflow"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdempotencyLifecycle(t *testing.T) {
	setupTestDB(t)
	db := config.GetDB().WithContext(maintenanceContext())
	load := func() models.IdempotencyKey {
		var key models.IdempotencyKey
		require.NoError(t, db.Where("boarding_house_id = ? AND handler_name = ? AND message_id = ?", 1, "drift", "42").Take(&key).Error)
		return key
	}

	skip, err := workflow.BeginIdempotency(db, 1, "drift", "42")
	require.NoError(t, err)
	assert.False(t, skip)
	assert.Equal(t, models.IdempotencyStatusStarted, load().Status)

	_, err = workflow.BeginIdempotency(db, 1, "drift", "42")
	assert.ErrorIs(t, err, workflow.ErrIdempotencyInProgress)

	require.NoError(t, workflow.MarkIdempotencyFailed(db, 1, "drift", "42", errors.New("db gone")))
	failed := load()
	assert.Equal(t, models.IdempotencyStatusFailed, failed.Status)
	require.NotNil(t, failed.LastError)
	assert.Equal(t, "db gone", *failed.LastError)

	skip, err = workflow.BeginIdempotency(db, 1, "drift", "42")
	require.NoError(t, err, "a failed attempt is retried")
	assert.False(t, skip)
	retried := load()
	assert.Equal(t, models.IdempotencyStatusStarted, retried.Status)
	assert.Nil(t, retried.LastError)

	require.NoError(t, workflow.MarkIdempotencySucceeded(db, 1, "drift", "42"))
	skip, err = workflow.BeginIdempotency(db, 1, "drift", "42")
	require.NoError(t, err)
	assert.True(t, skip)

	skip, err = workflow.BeginIdempotency(db, 2, "drift", "42")
	require.NoError(t, err)
	assert.False(t, skip, "keys are per house")
}

func TestIdempotencyTakesOverStaleStart(t *testing.T) {
	setupTestDB(t)
	db := config.GetDB().WithContext(maintenanceContext())

	_, err := workflow.BeginIdempotency(db, 1, "drift", "7")
	require.NoError(t, err)
	require.NoError(t, db.Model(&models.IdempotencyKey{}).Where("message_id = ?", "7").
		UpdateColumn("updated_at", time.Now().Add(-time.Hour)).Error)

	skip, err := workflow.BeginIdempotency(db, 1, "drift", "7")
	require.NoError(t, err)
	assert.False(t, skip)
}

func TestOutboxDispatcherPublishesPending(t *testing.T) {
	db := setupTestDB(t)
	ctx, house := newHouse(t, "OUT")
	record := postCapital(t, ctx, house.ID, "250")
	assert.Equal(t, models.OutboxPublishStatusPending, record.PublishStatus)

	var published []config.LedgerEventMessage
	d := workflow.NewOutboxDispatcher(db, logrus.New())
	d.Publish = func(ctx context.Context, msg config.LedgerEventMessage) (string, error) {
		published = append(published, msg)
		return "msg-1", nil
	}

	mctx := maintenanceContext()
	assert.Equal(t, 1, d.DispatchOnce(mctx))
	require.Len(t, published, 1)
	assert.Equal(t, record.ID, published[0].ID)
	assert.Equal(t, house.ID, published[0].BoardingHouseId)
	assert.Equal(t, record.TransactionId, published[0].TransactionId)
	assert.Equal(t, string(models.LedgerEventPosted), published[0].EventType)
	assert.Len(t, published[0].AccountIds, 2)
	assert.Equal(t, "corr-OUT", published[0].CorrelationId)

	stored := loadRecord(t, record.ID)
	assert.Equal(t, models.OutboxPublishStatusSent, stored.PublishStatus)
	assert.Equal(t, 1, stored.PublishAttempts)
	require.NotNil(t, stored.PubSubMessageId)
	assert.Equal(t, "msg-1", *stored.PubSubMessageId)
	assert.NotNil(t, stored.PublishedAt)
	assert.Nil(t, stored.LockedAt)
	assert.Nil(t, stored.LockedBy)

	assert.Equal(t, 0, d.DispatchOnce(mctx))
	assert.Len(t, published, 1)
}

func TestOutboxDispatcherBacksOffAfterFailure(t *testing.T) {
	db := setupTestDB(t)
	ctx, house := newHouse(t, "RETRY")
	record := postCapital(t, ctx, house.ID, "80")

	calls := 0
	d := workflow.NewOutboxDispatcher(db, logrus.New())
	d.InitialBackoff = time.Hour
	d.MaxBackoff = 2 * time.Hour
	d.Publish = func(ctx context.Context, msg config.LedgerEventMessage) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("topic unavailable")
		}
		return "msg-2", nil
	}

	mctx := maintenanceContext()
	assert.Equal(t, 0, d.DispatchOnce(mctx))
	stored := loadRecord(t, record.ID)
	assert.Equal(t, models.OutboxPublishStatusFailed, stored.PublishStatus)
	assert.Equal(t, 1, stored.PublishAttempts)
	require.NotNil(t, stored.LastPublishError)
	assert.Equal(t, "topic unavailable", *stored.LastPublishError)
	require.NotNil(t, stored.NextAttemptAt)
	assert.True(t, stored.NextAttemptAt.After(time.Now().Add(50*time.Minute)))

	assert.Equal(t, 0, d.DispatchOnce(mctx), "not due yet")
	assert.Equal(t, 1, calls)

	require.NoError(t, db.WithContext(mctx).Model(&models.LedgerEventRecord{}).Where("id = ?", record.ID).
		Update("next_attempt_at", time.Now().UTC().Add(-time.Minute)).Error)
	assert.Equal(t, 1, d.DispatchOnce(mctx))
	stored = loadRecord(t, record.ID)
	assert.Equal(t, models.OutboxPublishStatusSent, stored.PublishStatus)
	assert.Equal(t, 2, stored.PublishAttempts)
	assert.Nil(t, stored.NextAttemptAt)
}

func TestOutboxDispatcherMovesToDeadAfterMaxAttempts(t *testing.T) {
	db := setupTestDB(t)
	ctx, house := newHouse(t, "DEAD")
	record := postCapital(t, ctx, house.ID, "80")

	calls := 0
	d := workflow.NewOutboxDispatcher(db, nil)
	d.MaxAttempts = 1
	d.Publish = func(ctx context.Context, msg config.LedgerEventMessage) (string, error) {
		calls++
		return "", errors.New("permission denied")
	}

	mctx := maintenanceContext()
	assert.Equal(t, 0, d.DispatchOnce(mctx))
	stored := loadRecord(t, record.ID)
	assert.Equal(t, models.OutboxPublishStatusDead, stored.PublishStatus)
	assert.Nil(t, stored.NextAttemptAt)

	assert.Equal(t, 0, d.DispatchOnce(mctx))
	assert.Equal(t, 1, calls)
}

func TestOutboxDispatcherReclaimsStaleProcessing(t *testing.T) {
	db := setupTestDB(t)
	ctx, house := newHouse(t, "STALE")
	record := postCapital(t, ctx, house.ID, "80")

	mctx := maintenanceContext()
	lockedAt := time.Now().UTC().Add(-time.Hour)
	require.NoError(t, db.WithContext(mctx).Model(&models.LedgerEventRecord{}).Where("id = ?", record.ID).
		Updates(map[string]interface{}{
			"publish_status":   models.OutboxPublishStatusProcessing,
			"locked_at":        &lockedAt,
			"locked_by":        "crashed-dispatcher",
			"publish_attempts": 1,
		}).Error)

	d := workflow.NewOutboxDispatcher(db, nil)
	d.Publish = func(ctx context.Context, msg config.LedgerEventMessage) (string, error) {
		return "msg-3", nil
	}
	assert.Equal(t, 1, d.DispatchOnce(mctx))
	stored := loadRecord(t, record.ID)
	assert.Equal(t, models.OutboxPublishStatusSent, stored.PublishStatus)
	assert.Equal(t, 2, stored.PublishAttempts)
}

func TestProcessLedgerEvent(t *testing.T) {
	db := setupTestDB(t)
	ctx, house := newHouse(t, "RECON")
	first := postCapital(t, ctx, house.ID, "400")
	msg := models.ConvertToLedgerEventMessage(first)

	report, err := workflow.ProcessLedgerEvent(context.Background(), nil, msg)
	require.NoError(t, err)
	assert.Nil(t, report, "clean ledger needs no full check")

	var key models.IdempotencyKey
	require.NoError(t, db.WithContext(maintenanceContext()).
		Where("message_id = ?", strconv.Itoa(first.ID)).Take(&key).Error)
	assert.Equal(t, models.IdempotencyStatusSucceeded, key.Status)

	cash, err := models.GetSystemAccount(db.WithContext(ctx), house.ID, models.SystemAccountCash)
	require.NoError(t, err)
	require.NoError(t, db.WithContext(maintenanceContext()).Model(&models.CurrentAccountBalance{}).
		Where("account_id = ?", cash.ID).
		Updates(map[string]interface{}{"total_debit": 900, "balance": 900}).Error)

	report, err = workflow.ProcessLedgerEvent(context.Background(), nil, msg)
	require.NoError(t, err)
	assert.Nil(t, report, "redelivered event is skipped")

	second := postCapital(t, ctx, house.ID, "100")
	report, err = workflow.ProcessLedgerEvent(context.Background(), logrus.New(), models.ConvertToLedgerEventMessage(second))
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.False(t, report.IsClean)
	assert.Equal(t, 1, report.Counts[models.CheckAccountBalanceDrift])
	assert.Equal(t, "corr-RECON", report.CorrelationId)

	_, err = workflow.ProcessLedgerEvent(context.Background(), nil, config.LedgerEventMessage{ID: 1})
	assert.ErrorIs(t, err, utils.ErrValidation)
}

func TestTargetBoardingHouses(t *testing.T) {
	db := setupTestDB(t)
	_, first := newHouse(t, "HSE1")
	_, second := newHouse(t, "HSE2")
	_, err := models.DeactivateBoardingHouse(utils.SetIsAdminInContext(context.Background(), true), second.ID)
	require.NoError(t, err)

	houses, err := workflow.TargetBoardingHouses(context.Background(), db, 0)
	require.NoError(t, err)
	require.Len(t, houses, 1)
	assert.Equal(t, first.ID, houses[0].ID)

	houses, err = workflow.TargetBoardingHouses(context.Background(), db, second.ID)
	require.NoError(t, err)
	require.Len(t, houses, 1)
	assert.Equal(t, "HSE2", houses[0].Code)

	_, err = workflow.TargetBoardingHouses(context.Background(), db, 9999)
	assert.ErrorIs(t, err, utils.ErrorRecordNotFound)
}

func TestWithMaintenanceLockRunsWithoutRedis(t *testing.T) {
	ctx := workflow.HouseMaintenanceContext(context.Background(), "rebuild", 5)
	houseId, ok := utils.GetBoardingHouseIdFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, 5, houseId)
	skip, _ := utils.GetSkipTenantScopeFromContext(ctx)
	assert.True(t, skip)

	ran := false
	err := workflow.WithMaintenanceLock(ctx, "rebuild", 5, func(ctx context.Context) error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)

	boom := errors.New("boom")
	err = workflow.WithMaintenanceLock(ctx, "rebuild", 5, func(ctx context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
}
