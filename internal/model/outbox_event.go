package model

import "time"

// OutboxEvent is a relay row; the Debezium outbox SMT publishes Payload to
// Kafka based on the topic column.
type OutboxEvent struct {
	ID          int64     `db:"id"`
	Aggregate   string    `db:"aggregate"`    // e.g. "watcher"
	AggregateID string    `db:"aggregate_id"` // watcher ID
	Topic       string    `db:"topic"`
	Payload     []byte    `db:"payload"`
	Attempts    int       `db:"attempts"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}
