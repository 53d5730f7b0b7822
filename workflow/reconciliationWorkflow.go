package workflow

import (
	"context"
	"strconv"

	"github.com/mmdatafocus/boarding_backend/config"
	"github.com/mmdatafocus/boarding_backend/models"
	"github.com/mmdatafocus/boarding_backend/utils"
	"github.com/sirupsen/logrus"
)

const ledgerEventHandler = "ledger_event_drift_check"

// ProcessLedgerEvent checks the accounts a posting touched. Any drift triggers a full
// integrity run for the house, which stores findings and updates the drift gauge.
// Redelivered events are skipped once they have succeeded.
func ProcessLedgerEvent(ctx context.Context, logger *logrus.Logger, msg config.LedgerEventMessage) (*models.IntegrityReport, error) {
	if msg.BoardingHouseId <= 0 {
		return nil, utils.NewValidationError("ledger event without boarding house")
	}
	ctx = utils.NewMaintenanceContext(ctx, "pubsub")
	if msg.CorrelationId != "" {
		ctx = utils.SetCorrelationIdInContext(ctx, msg.CorrelationId)
	}
	db := config.GetDB().WithContext(ctx)
	messageId := strconv.Itoa(msg.ID)

	skip, err := BeginIdempotency(db, msg.BoardingHouseId, ledgerEventHandler, messageId)
	if err != nil {
		return nil, err
	}
	if skip {
		return nil, nil
	}

	report, err := checkLedgerEvent(ctx, msg)
	if err != nil {
		config.LogError(logger, "reconciliationWorkflow.go", "ProcessLedgerEvent", "checkLedgerEvent", msg, err)
		_ = MarkIdempotencyFailed(db, msg.BoardingHouseId, ledgerEventHandler, messageId, err)
		return nil, err
	}
	if err := MarkIdempotencySucceeded(db, msg.BoardingHouseId, ledgerEventHandler, messageId); err != nil {
		return nil, err
	}
	if report != nil && !report.IsClean && logger != nil {
		logger.WithFields(logrus.Fields{
			"field":             "ProcessLedgerEvent",
			"boarding_house_id": msg.BoardingHouseId,
			"transaction_id":    msg.TransactionId,
			"correlation_id":    report.CorrelationId,
			"counts":            report.Counts,
		}).Warn("ledger drift detected")
	}
	return report, nil
}

func checkLedgerEvent(ctx context.Context, msg config.LedgerEventMessage) (*models.IntegrityReport, error) {
	drifts, err := models.CheckAccountsDrift(ctx, msg.BoardingHouseId, msg.AccountIds)
	if err != nil {
		return nil, err
	}
	if len(drifts) == 0 {
		return nil, nil
	}
	return models.RunIntegrityChecks(ctx, msg.BoardingHouseId)
}
