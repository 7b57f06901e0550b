package repository

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/watchmarket/watchmarket/internal/model"
)

// CHEventsRepository stores and serves watcher check/trigger history from
// ClickHouse (read side of the analytics pipeline).
type CHEventsRepository interface {
	InsertBatch(ctx context.Context, events []model.CheckEvent) error
	ListByWatcher(ctx context.Context, watcherID, event string, limit, offset int) ([]model.CheckEvent, error)
}

type chEventsRepository struct {
	ch *sqlx.DB // ClickHouse connection
}

func NewCHEventsRepository(ch *sqlx.DB) CHEventsRepository {
	return &chEventsRepository{ch: ch}
}

func (r *chEventsRepository) InsertBatch(ctx context.Context, events []model.CheckEvent) error {
	if len(events) == 0 {
		return nil
	}

	var sb strings.Builder
	args := make([]any, 0, len(events)*8)

	sb.WriteString(`
		INSERT INTO watchmkt.watcher_events
		    (id, event, watcher_id, type_id, operator_id, customer_id, triggered, error, at)
		VALUES `)
	for i, ev := range events {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("(?, ?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args, ev.ID, ev.Event, ev.WatcherID, ev.TypeID,
			ev.OperatorID, ev.CustomerID, ev.Triggered, ev.Error, ev.At)
	}

	_, err := r.ch.ExecContext(ctx, sb.String(), args...)
	return err
}

func (r *chEventsRepository) ListByWatcher(ctx context.Context, watcherID, event string, limit, offset int) ([]model.CheckEvent, error) {
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	q := `
		SELECT id, event, watcher_id, type_id, operator_id, customer_id, triggered, error, at
		FROM watchmkt.watcher_events
		WHERE watcher_id = ?
	`
	args := []any{watcherID}

	if event != "" {
		q += " AND event = ?"
		args = append(args, event)
	}

	q += " ORDER BY at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	var rows []model.CheckEvent
	if err := r.ch.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, err
	}
	return rows, nil
}
