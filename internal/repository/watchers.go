package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/watchmarket/watchmarket/internal/model"
)

type WatchersRepository interface {
	Get(ctx context.Context, id string) (*model.Watcher, error)
	Create(ctx context.Context, w model.Watcher) error
	// Update rewrites the whole document row. Watchers are processed one at
	// a time per tick, so last-write-wins is acceptable here.
	Update(ctx context.Context, w *model.Watcher) error
	ListActive(ctx context.Context) ([]model.Watcher, error)
	// ListDueBilling returns active recurring watchers with
	// next_billing_at <= now.
	ListDueBilling(ctx context.Context, now time.Time) ([]model.Watcher, error)
}

type WatchersRepositoryImpl struct {
	db *sqlx.DB
}

func NewWatchersRepository(db *sqlx.DB) *WatchersRepositoryImpl {
	return &WatchersRepositoryImpl{db: db}
}

var _ WatchersRepository = (*WatchersRepositoryImpl)(nil)

const watcherColumns = `id, type_id, operator_id, customer_id, config, webhook_url,
	status, created_at, expires_at, last_checked, last_triggered, trigger_count,
	last_check_result, last_check_success, consecutive_failures,
	billing_cycle, next_billing_at, billing_history,
	cancelled_at, cancellation_reason,
	polling_interval_minutes, ttl_hours, retry_policy, sla`

func (r *WatchersRepositoryImpl) Get(ctx context.Context, id string) (*model.Watcher, error) {
	var w model.Watcher
	err := r.db.GetContext(ctx, &w, `
		SELECT `+watcherColumns+`
		  FROM watchers
		 WHERE id = ? LIMIT 1
	`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

const insertWatcherSQL = `
	INSERT INTO watchers (` + watcherColumns + `)
	VALUES (:id, :type_id, :operator_id, :customer_id, :config, :webhook_url,
	        :status, :created_at, :expires_at, :last_checked, :last_triggered, :trigger_count,
	        :last_check_result, :last_check_success, :consecutive_failures,
	        :billing_cycle, :next_billing_at, :billing_history,
	        :cancelled_at, :cancellation_reason,
	        :polling_interval_minutes, :ttl_hours, :retry_policy, :sla)`

func insertWatcher(ctx context.Context, e sqlx.ExtContext, w model.Watcher) error {
	_, err := sqlx.NamedExecContext(ctx, e, insertWatcherSQL, w)
	return err
}

func (r *WatchersRepositoryImpl) Create(ctx context.Context, w model.Watcher) error {
	return insertWatcher(ctx, r.db, w)
}

func (r *WatchersRepositoryImpl) Update(ctx context.Context, w *model.Watcher) error {
	_, err := r.db.NamedExecContext(ctx, `
		UPDATE watchers SET
		    status = :status,
		    expires_at = :expires_at,
		    last_checked = :last_checked,
		    last_triggered = :last_triggered,
		    trigger_count = :trigger_count,
		    last_check_result = :last_check_result,
		    last_check_success = :last_check_success,
		    consecutive_failures = :consecutive_failures,
		    billing_cycle = :billing_cycle,
		    next_billing_at = :next_billing_at,
		    billing_history = :billing_history,
		    cancelled_at = :cancelled_at,
		    cancellation_reason = :cancellation_reason,
		    polling_interval_minutes = :polling_interval_minutes,
		    retry_policy = :retry_policy,
		    sla = :sla
		WHERE id = :id
	`, w)
	return err
}

func (r *WatchersRepositoryImpl) ListActive(ctx context.Context) ([]model.Watcher, error) {
	var rows []model.Watcher
	err := r.db.SelectContext(ctx, &rows, `
		SELECT `+watcherColumns+`
		  FROM watchers
		 WHERE status = 'active'
		 ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *WatchersRepositoryImpl) ListDueBilling(ctx context.Context, now time.Time) ([]model.Watcher, error) {
	var rows []model.Watcher
	err := r.db.SelectContext(ctx, &rows, `
		SELECT `+watcherColumns+`
		  FROM watchers
		 WHERE status = 'active'
		   AND billing_cycle <> 'one-time'
		   AND next_billing_at IS NOT NULL
		   AND next_billing_at <= ?
		 ORDER BY next_billing_at
	`, now)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
