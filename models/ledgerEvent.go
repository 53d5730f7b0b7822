package models

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mmdatafocus/boarding_backend/config"
	"gorm.io/gorm"
)

type LedgerEventType string

const (
	LedgerEventPosted LedgerEventType = "posted"
	LedgerEventVoided LedgerEventType = "voided"
)

const (
	OutboxPublishStatusPending    = "PENDING"
	OutboxPublishStatusProcessing = "PROCESSING"
	OutboxPublishStatusSent       = "SENT"
	OutboxPublishStatusFailed     = "FAILED"
	OutboxPublishStatusDead       = "DEAD"
)

// LedgerEventRecord is the transactional outbox: written with the posting,
// published to Pub/Sub after commit by the outbox dispatcher.
type LedgerEventRecord struct {
	ID               int             `gorm:"primary_key;index:idx_ledger_outbox_dispatch,priority:3" json:"id"`
	BoardingHouseId  int             `gorm:"not null;index" json:"boarding_house_id"`
	TransactionId    int             `gorm:"not null;index" json:"transaction_id"`
	EventType        LedgerEventType `gorm:"size:20;not null" json:"event_type"`
	AccountIds       string          `gorm:"type:text" json:"account_ids"`
	OccurredAt       time.Time       `gorm:"not null" json:"occurred_at"`
	PublishStatus    string          `gorm:"size:20;index;not null;default:'PENDING';index:idx_ledger_outbox_dispatch,priority:1" json:"publish_status"` // PENDING|PROCESSING|SENT|FAILED|DEAD
	PublishedAt      *time.Time      `gorm:"index" json:"published_at"`
	PubSubMessageId  *string         `gorm:"size:255" json:"pubsub_message_id"`
	PublishAttempts  int             `gorm:"not null;default:0" json:"publish_attempts"`
	NextAttemptAt    *time.Time      `gorm:"index;index:idx_ledger_outbox_dispatch,priority:2" json:"next_attempt_at"`
	LockedAt         *time.Time      `gorm:"index" json:"locked_at"`
	LockedBy         *string         `gorm:"size:100" json:"locked_by"`
	LastPublishError *string         `gorm:"type:text" json:"last_publish_error"`
	CorrelationId    string          `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func writeLedgerEvent(ctx context.Context, tx *gorm.DB, txn *Transaction, eventType LedgerEventType) error {
	accountIds, err := json.Marshal(entryAccountIds(txn.Entries))
	if err != nil {
		return err
	}
	record := LedgerEventRecord{
		BoardingHouseId: txn.BoardingHouseId,
		TransactionId:   txn.ID,
		EventType:       eventType,
		AccountIds:      string(accountIds),
		OccurredAt:      time.Now().UTC(),
		PublishStatus:   OutboxPublishStatusPending,
		CorrelationId:   correlationIdFromContextOrNew(ctx),
	}
	return tx.Create(&record).Error
}

func (r *LedgerEventRecord) AccountIdList() []int {
	var ids []int
	if r.AccountIds == "" {
		return ids
	}
	_ = json.Unmarshal([]byte(r.AccountIds), &ids)
	return ids
}

func ConvertToLedgerEventMessage(record LedgerEventRecord) config.LedgerEventMessage {
	return config.LedgerEventMessage{
		ID:              record.ID,
		BoardingHouseId: record.BoardingHouseId,
		TransactionId:   record.TransactionId,
		EventType:       string(record.EventType),
		AccountIds:      record.AccountIdList(),
		OccurredAt:      record.OccurredAt,
		CorrelationId:   record.CorrelationId,
	}
}
