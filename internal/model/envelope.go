package model

import "time"

// WebhookPayload is the envelope POSTed to a watcher's webhook URL when its
// condition triggers. This shape is the outbound wire contract; customer
// receivers depend on it bit-exactly.
type WebhookPayload struct {
	Event     string            `json:"event"`
	Watcher   WebhookWatcherRef `json:"watcher"`
	Data      map[string]any    `json:"data"`
	Timestamp time.Time         `json:"timestamp"`
	Source    string            `json:"source"`
	Delivery  WebhookDelivery   `json:"delivery"`
}

type WebhookWatcherRef struct {
	ID     string `json:"id"`
	TypeID string `json:"typeId"`
}

type WebhookDelivery struct {
	Attempt     int `json:"attempt"`     // 1-based
	MaxAttempts int `json:"maxAttempts"` // maxRetries + 1
}

// Check event kinds relayed to the analytics pipeline.
const (
	EventCheckSucceeded = "check_succeeded"
	EventCheckFailed    = "check_failed"
	EventTriggered      = "triggered"
	EventWebhookFailed  = "webhook_failed"
	EventSLAViolation   = "sla_violation"
	EventBillingFailed  = "billing_failed"
)

// CheckEvent is the payload written to the outbox table and relayed to the
// watcher.events Kafka topic for the analytics worker.
type CheckEvent struct {
	ID         string    `json:"id" db:"id"` // event ULID
	Event      string    `json:"event" db:"event"`
	WatcherID  string    `json:"watcher_id" db:"watcher_id"`
	TypeID     string    `json:"type_id" db:"type_id"`
	OperatorID string    `json:"operator_id" db:"operator_id"`
	CustomerID string    `json:"customer_id" db:"customer_id"`
	Triggered  bool      `json:"triggered,omitempty" db:"triggered"`
	Error      string    `json:"error,omitempty" db:"error"`
	At         time.Time `json:"at" db:"at"`
}
