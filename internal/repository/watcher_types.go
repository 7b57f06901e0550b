package repository

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/watchmarket/watchmarket/internal/model"
)

type WatcherTypesRepository interface {
	Get(ctx context.Context, id string) (*model.WatcherType, error)
	List(ctx context.Context, category model.Category, operatorID string, limit, offset int) ([]model.WatcherType, error)
	Create(ctx context.Context, wt model.WatcherType) error
	IncrementStats(ctx context.Context, id string, instances, triggers int64) error
}

type WatcherTypesRepositoryImpl struct {
	db *sqlx.DB
}

func NewWatcherTypesRepository(db *sqlx.DB) *WatcherTypesRepositoryImpl {
	return &WatcherTypesRepositoryImpl{db: db}
}

var _ WatcherTypesRepository = (*WatcherTypesRepositoryImpl)(nil)

const watcherTypeColumns = `id, operator_id, name, category, price, config_schema,
	executor_id, status, created_at, instances, triggers`

func (r *WatcherTypesRepositoryImpl) Get(ctx context.Context, id string) (*model.WatcherType, error) {
	var wt model.WatcherType
	err := r.db.GetContext(ctx, &wt, `
		SELECT `+watcherTypeColumns+`
		  FROM watcher_types
		 WHERE id = ? LIMIT 1
	`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &wt, nil
}

func (r *WatcherTypesRepositoryImpl) List(ctx context.Context, category model.Category, operatorID string, limit, offset int) ([]model.WatcherType, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	q := `SELECT ` + watcherTypeColumns + ` FROM watcher_types WHERE status = 'active'`
	args := []any{}

	if category != "" {
		q += " AND category = ?"
		args = append(args, category.String())
	}
	if operatorID != "" {
		q += " AND operator_id = ?"
		args = append(args, operatorID)
	}

	q += " ORDER BY created_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	var rows []model.WatcherType
	if err := r.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *WatcherTypesRepositoryImpl) Create(ctx context.Context, wt model.WatcherType) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO watcher_types
		    (id, operator_id, name, category, price, config_schema,
		     executor_id, status, created_at, instances, triggers)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, 0)
	`, wt.ID, wt.OperatorID, wt.Name, wt.Category.String(), wt.Price,
		wt.ConfigSchema, wt.ExecutorID, wt.Status.String(), wt.CreatedAt)
	return err
}

func (r *WatcherTypesRepositoryImpl) IncrementStats(ctx context.Context, id string, instances, triggers int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE watcher_types
		   SET instances = instances + ?, triggers = triggers + ?
		 WHERE id = ?
	`, instances, triggers, id)
	return err
}
