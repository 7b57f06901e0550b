package repository

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/watchmarket/watchmarket/internal/model"
)

type OperatorsRepository interface {
	Get(ctx context.Context, id string) (*model.Operator, error)
	Create(ctx context.Context, op model.Operator) error
	// IncrementStats applies stat deltas atomically in the store
	// (read-modify-write in a single UPDATE), so concurrent cron and API
	// increments never lose updates.
	IncrementStats(ctx context.Context, id string, watchersCreated, triggers int64, earned decimal.Decimal) error
}

type OperatorsRepositoryImpl struct {
	db *sqlx.DB
}

func NewOperatorsRepository(db *sqlx.DB) *OperatorsRepositoryImpl {
	return &OperatorsRepositoryImpl{db: db}
}

var _ OperatorsRepository = (*OperatorsRepositoryImpl)(nil)

func (r *OperatorsRepositoryImpl) Get(ctx context.Context, id string) (*model.Operator, error) {
	var op model.Operator
	err := r.db.GetContext(ctx, &op, `
		SELECT id, name, payout_address, description, status, created_at,
		       watchers_created, total_triggers, total_earned, uptime_percent
		  FROM operators
		 WHERE id = ? LIMIT 1
	`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &op, nil
}

func (r *OperatorsRepositoryImpl) Create(ctx context.Context, op model.Operator) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO operators
		    (id, name, payout_address, description, status, created_at,
		     watchers_created, total_triggers, total_earned, uptime_percent)
		VALUES (?, ?, ?, ?, ?, ?, 0, 0, 0, 100)
	`, op.ID, op.Name, op.PayoutAddress, op.Description, op.Status.String(), op.CreatedAt)
	return err
}

func (r *OperatorsRepositoryImpl) IncrementStats(ctx context.Context, id string, watchersCreated, triggers int64, earned decimal.Decimal) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE operators
		   SET watchers_created = watchers_created + ?,
		       total_triggers   = total_triggers + ?,
		       total_earned     = total_earned + ?
		 WHERE id = ?
	`, watchersCreated, triggers, earned, id)
	return err
}
