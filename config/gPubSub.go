package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
)

// LedgerEventMessage is the payload published for every posted or voided transaction.
type LedgerEventMessage struct {
	ID              int       `json:"id"`
	BoardingHouseId int       `json:"boarding_house_id"`
	TransactionId   int       `json:"transaction_id"`
	EventType       string    `json:"event_type"`
	AccountIds      []int     `json:"account_ids"`
	OccurredAt      time.Time `json:"occurred_at"`
	CorrelationId   string    `json:"correlation_id"`
}

var (
	pubsubClient   *pubsub.Client
	ledgerTopic    *pubsub.Topic
	pubsubClientMu sync.Mutex
)

const pubsubMaxConnectAttempts = 3

func getPubSubProjectID() string {
	if v := os.Getenv("PUBSUB_PROJECT_ID"); v != "" {
		return v
	}
	if v := os.Getenv("GOOGLE_CLOUD_PROJECT"); v != "" {
		return v
	}
	return os.Getenv("GCP_PROJECT")
}

func LedgerEventsTopic() string {
	return strings.TrimSpace(os.Getenv("LEDGER_EVENTS_TOPIC"))
}

// PubSubEnabled reports whether ledger events should be published at all.
func PubSubEnabled() bool {
	return getPubSubProjectID() != "" && LedgerEventsTopic() != ""
}

func getPubSubClient(ctx context.Context) (*pubsub.Client, error) {
	pubsubClientMu.Lock()
	defer pubsubClientMu.Unlock()
	if pubsubClient != nil {
		return pubsubClient, nil
	}

	projectID := getPubSubProjectID()
	if projectID == "" {
		return nil, errors.New("PUBSUB_PROJECT_ID/GOOGLE_CLOUD_PROJECT not set")
	}
	credJSON := os.Getenv("PUBSUB_CREDENTIALS_JSON")

	var lastErr error
	for attempt := 1; attempt <= pubsubMaxConnectAttempts; attempt++ {
		var (
			c   *pubsub.Client
			err error
		)
		if credJSON != "" {
			c, err = pubsub.NewClient(ctx, projectID, option.WithCredentialsJSON([]byte(credJSON)))
		} else {
			// Application Default Credentials.
			c, err = pubsub.NewClient(ctx, projectID)
		}
		if err == nil {
			pubsubClient = c
			log.Printf("pubsub client ready (project_id=%s attempt=%d)", projectID, attempt)
			return c, nil
		}
		lastErr = err
		sleep := time.Second * time.Duration(1<<attempt)
		log.Printf("failed to init pubsub client (project_id=%s attempt=%d): %v; retrying in %s", projectID, attempt, err, sleep)
		time.Sleep(sleep)
	}
	return nil, fmt.Errorf("pubsub client: %w", lastErr)
}

// PublishLedgerEventWithResult publishes and returns the Pub/Sub server-assigned message ID.
// Events of one boarding house share an ordering key.
func PublishLedgerEventWithResult(ctx context.Context, msg LedgerEventMessage) (string, error) {
	topicName := LedgerEventsTopic()
	if topicName == "" {
		return "", errors.New("LEDGER_EVENTS_TOPIC is required")
	}
	t, err := getLedgerTopic(ctx, topicName)
	if err != nil {
		return "", err
	}
	msgJSON, err := json.Marshal(msg)
	if err != nil {
		return "", err
	}
	result := t.Publish(ctx, &pubsub.Message{
		Data:        msgJSON,
		OrderingKey: fmt.Sprintf("house-%d", msg.BoardingHouseId),
		Attributes: map[string]string{
			"event_type":     msg.EventType,
			"correlation_id": msg.CorrelationId,
		},
	})
	id, err := result.Get(ctx)
	if err != nil {
		// A failed ordered publish pauses the key until resumed.
		t.ResumePublish(fmt.Sprintf("house-%d", msg.BoardingHouseId))
	}
	return id, err
}

func getLedgerTopic(ctx context.Context, topicName string) (*pubsub.Topic, error) {
	client, err := getPubSubClient(ctx)
	if err != nil {
		return nil, err
	}
	pubsubClientMu.Lock()
	defer pubsubClientMu.Unlock()
	if ledgerTopic == nil {
		ledgerTopic = client.Topic(topicName)
		ledgerTopic.EnableMessageOrdering = true
	}
	return ledgerTopic, nil
}

func ClosePubSub() {
	pubsubClientMu.Lock()
	defer pubsubClientMu.Unlock()
	if ledgerTopic != nil {
		ledgerTopic.Stop()
		ledgerTopic = nil
	}
	if pubsubClient != nil {
		_ = pubsubClient.Close()
		pubsubClient = nil
	}
}
