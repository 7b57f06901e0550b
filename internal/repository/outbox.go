package repository

import (
	"context"
	"encoding/json"

	"github.com/jmoiron/sqlx"

	"github.com/watchmarket/watchmarket/internal/model"
)

// WatcherEventsTopic is the Kafka topic the relay publishes outbox rows to;
// the analytics worker consumes it.
const WatcherEventsTopic = "watcher.events"

// OutboxRepository stages check/trigger/violation events for the Kafka
// relay (Debezium outbox SMT picks rows up and publishes by topic column).
type OutboxRepository interface {
	PublishCheckEvent(ctx context.Context, ev model.CheckEvent) error
}

// OutboxRepositoryImpl is a sqlx-backed implementation.
type OutboxRepositoryImpl struct {
	db *sqlx.DB
}

// NewOutboxRepository constructs an OutboxRepositoryImpl.
func NewOutboxRepository(db *sqlx.DB) *OutboxRepositoryImpl {
	return &OutboxRepositoryImpl{db: db}
}

var _ OutboxRepository = (*OutboxRepositoryImpl)(nil)

// PublishCheckEvent stages one watcher event row for the relay.
func (r *OutboxRepositoryImpl) PublishCheckEvent(ctx context.Context, ev model.CheckEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	const q = `
		INSERT INTO outbox (aggregate, aggregate_id, topic, payload, created_at)
		VALUES ('watcher', ?, ?, ?, NOW())
	`
	_, err = r.db.ExecContext(ctx, q, ev.WatcherID, WatcherEventsTopic, payload)
	return err
}
