package handlers

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/boarding_backend/config"
	"github.com/mmdatafocus/boarding_backend/models"
	"github.com/mmdatafocus/boarding_backend/utils"
	"github.com/mmdatafocus/boarding_backend/workflow"
	"github.com/sirupsen/logrus"
)

type dryRunRequest struct {
	DryRun bool `json:"dry_run"`
}

type PubSubMessage struct {
	Message struct {
		Data []byte `json:"data,omitempty"`
		ID   string `json:"id"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

func integrityCheckHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		boardingHouseId, _ := utils.GetBoardingHouseIdFromContext(ctx)
		var report *models.IntegrityReport
		err := workflow.WithMaintenanceLock(ctx, "integrity", boardingHouseId, func(ctx context.Context) error {
			var err error
			report, err = models.RunIntegrityChecks(ctx, boardingHouseId)
			return err
		})
		if err != nil {
			respondError(c, "integrityCheckHandler", err)
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

func reconciliationReportsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		boardingHouseId, _ := utils.GetBoardingHouseIdFromContext(ctx)
		limit, ok := queryInt(c, "limit", 200)
		if !ok {
			return
		}
		rows, err := models.ListReconciliationReports(ctx, boardingHouseId, c.Query("correlation_id"), limit)
		if err != nil {
			respondError(c, "reconciliationReportsHandler", err)
			return
		}
		c.JSON(http.StatusOK, rows)
	}
}

func rebuildBalancesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req dryRunRequest
		if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
			return
		}
		ctx := c.Request.Context()
		boardingHouseId, _ := utils.GetBoardingHouseIdFromContext(ctx)
		var result *models.RebuildBalancesResult
		err := workflow.WithMaintenanceLock(ctx, "rebuild-balances", boardingHouseId, func(ctx context.Context) error {
			var err error
			result, err = models.RebuildAccountBalances(ctx, req.DryRun)
			return err
		})
		if err != nil {
			respondError(c, "rebuildBalancesHandler", err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func recalculateStudentBalancesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req dryRunRequest
		if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
			return
		}
		ctx := c.Request.Context()
		boardingHouseId, _ := utils.GetBoardingHouseIdFromContext(ctx)
		var result *models.RecalculateStudentBalancesResult
		err := workflow.WithMaintenanceLock(ctx, "student-balances", boardingHouseId, func(ctx context.Context) error {
			var err error
			result, err = models.RecalculateStudentBalances(ctx, req.DryRun)
			return err
		})
		if err != nil {
			respondError(c, "recalculateStudentBalancesHandler", err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// ledgerEventPushHandler receives Pub/Sub push deliveries of ledger events.
// Malformed payloads are acked (204) so they are not retried forever; processing
// failures answer 500 so Pub/Sub redelivers.
func ledgerEventPushHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()

		if expected := os.Getenv("PUBSUB_PUSH_TOKEN"); expected != "" {
			if subtle.ConstantTimeCompare([]byte(c.Query("token")), []byte(expected)) != 1 {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
				return
			}
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			config.LogError(logger, "maintenanceHandler.go", "ledgerEventPushHandler", "io.ReadAll", nil, err)
			c.Status(http.StatusNoContent)
			return
		}
		var msg PubSubMessage
		if err := json.Unmarshal(body, &msg); err != nil {
			config.LogError(logger, "maintenanceHandler.go", "ledgerEventPushHandler", "Unmarshal body", string(body), err)
			c.Status(http.StatusNoContent)
			return
		}
		var event config.LedgerEventMessage
		if err := json.Unmarshal(msg.Message.Data, &event); err != nil {
			config.LogError(logger, "maintenanceHandler.go", "ledgerEventPushHandler", "Unmarshal ledger event", string(msg.Message.Data), err)
			c.Status(http.StatusNoContent)
			return
		}
		if event.BoardingHouseId <= 0 || event.ID <= 0 {
			logger.WithFields(logrus.Fields{
				"field":      "ledgerEventPushHandler",
				"message_id": msg.Message.ID,
			}).Warn("ledger event without id or boarding house; dropped")
			c.Status(http.StatusNoContent)
			return
		}
		if event.CorrelationId == "" {
			event.CorrelationId = msg.Message.ID
		}

		if _, err := workflow.ProcessLedgerEvent(c.Request.Context(), logger, event); err != nil {
			logger.WithFields(logrus.Fields{
				"field":             "ledgerEventPushHandler",
				"boarding_house_id": event.BoardingHouseId,
				"transaction_id":    event.TransactionId,
				"message_id":        msg.Message.ID,
				"correlation_id":    event.CorrelationId,
			}).Error("ledger event processing failed: " + err.Error())
			c.Status(http.StatusInternalServerError)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
