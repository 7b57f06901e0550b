package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/watchmarket/watchmarket/internal/model"
)

type CustomersRepository interface {
	Get(ctx context.Context, id string) (*model.Customer, error)
	Create(ctx context.Context, c model.Customer) error
	IncrementUsage(ctx context.Context, id string, freeWatchers int, watchersCreated int64, spent decimal.Decimal) error
	// Upgrade flips tier free->paid. Reports false when already paid.
	Upgrade(ctx context.Context, id string, at time.Time) (bool, error)
}

type CustomersRepositoryImpl struct {
	db *sqlx.DB
}

func NewCustomersRepository(db *sqlx.DB) *CustomersRepositoryImpl {
	return &CustomersRepositoryImpl{db: db}
}

var _ CustomersRepository = (*CustomersRepositoryImpl)(nil)

func (r *CustomersRepositoryImpl) Get(ctx context.Context, id string) (*model.Customer, error) {
	var c model.Customer
	err := r.db.GetContext(ctx, &c, `
		SELECT id, tier, free_watchers_used, upgraded_at, created_at,
		       total_watchers_created, total_spent
		  FROM customers
		 WHERE id = ? LIMIT 1
	`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CustomersRepositoryImpl) Create(ctx context.Context, c model.Customer) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO customers
		    (id, tier, free_watchers_used, upgraded_at, created_at,
		     total_watchers_created, total_spent)
		VALUES (?, ?, ?, ?, ?, 0, 0)
		ON DUPLICATE KEY UPDATE id = id
	`, c.ID, c.Tier.String(), c.FreeWatchersUsed, c.UpgradedAt, c.CreatedAt)
	return err
}

func (r *CustomersRepositoryImpl) IncrementUsage(ctx context.Context, id string, freeWatchers int, watchersCreated int64, spent decimal.Decimal) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE customers
		   SET free_watchers_used     = free_watchers_used + ?,
		       total_watchers_created = total_watchers_created + ?,
		       total_spent            = total_spent + ?
		 WHERE id = ?
	`, freeWatchers, watchersCreated, spent, id)
	return err
}

func (r *CustomersRepositoryImpl) Upgrade(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE customers
		   SET tier = 'paid', upgraded_at = ?
		 WHERE id = ? AND tier = 'free'
	`, at, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
