package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/watchmarket/watchmarket/internal/model"
)

type PaymentsRepository interface {
	Create(ctx context.Context, p model.Payment) error
	// SumForWatcherSince returns the signed sum of payment amounts for the
	// watcher created at or after since. Refunds already issued (negative
	// rows) reduce the sum.
	SumForWatcherSince(ctx context.Context, watcherID string, since time.Time) (decimal.Decimal, error)
	ListByWatcher(ctx context.Context, watcherID string, limit int) ([]model.Payment, error)
}

type PaymentsRepositoryImpl struct {
	db *sqlx.DB
}

func NewPaymentsRepository(db *sqlx.DB) *PaymentsRepositoryImpl {
	return &PaymentsRepositoryImpl{db: db}
}

var _ PaymentsRepository = (*PaymentsRepositoryImpl)(nil)

func insertPayment(ctx context.Context, e sqlx.ExtContext, p model.Payment) error {
	_, err := e.ExecContext(ctx, `
		INSERT INTO payments
		    (id, watcher_id, operator_id, customer_id,
		     amount, operator_share, platform_share, network, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.WatcherID, p.OperatorID, p.CustomerID,
		p.Amount, p.OperatorShare, p.PlatformShare, p.Network, p.CreatedAt)
	return err
}

func (r *PaymentsRepositoryImpl) Create(ctx context.Context, p model.Payment) error {
	return insertPayment(ctx, r.db, p)
}

func (r *PaymentsRepositoryImpl) SumForWatcherSince(ctx context.Context, watcherID string, since time.Time) (decimal.Decimal, error) {
	var sum decimal.NullDecimal
	err := r.db.GetContext(ctx, &sum, `
		SELECT SUM(amount)
		  FROM payments
		 WHERE watcher_id = ? AND created_at >= ?
	`, watcherID, since)
	if err != nil {
		return decimal.Zero, err
	}
	if !sum.Valid {
		return decimal.Zero, nil
	}
	return sum.Decimal, nil
}

func (r *PaymentsRepositoryImpl) ListByWatcher(ctx context.Context, watcherID string, limit int) ([]model.Payment, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var rows []model.Payment
	err := r.db.SelectContext(ctx, &rows, `
		SELECT id, watcher_id, operator_id, customer_id,
		       amount, operator_share, platform_share, network, created_at
		  FROM payments
		 WHERE watcher_id = ?
		 ORDER BY created_at DESC
		 LIMIT ?
	`, watcherID, limit)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
