package repository

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/watchmarket/watchmarket/internal/model"
)

type ViolationsRepository interface {
	Get(ctx context.Context, id string) (*model.SLAViolation, error)
	Create(ctx context.Context, v model.SLAViolation) error
	// SetRefund backfills refund fields after the credit payment is issued.
	SetRefund(ctx context.Context, id string, amount decimal.Decimal, refundID string) error
	// Acknowledge records operator acknowledgement. Reports false when the
	// violation does not exist.
	Acknowledge(ctx context.Context, id, resolution string) (bool, error)
	ListByWatcher(ctx context.Context, watcherID string, limit int) ([]model.SLAViolation, error)
}

type ViolationsRepositoryImpl struct {
	db *sqlx.DB
}

func NewViolationsRepository(db *sqlx.DB) *ViolationsRepositoryImpl {
	return &ViolationsRepositoryImpl{db: db}
}

var _ ViolationsRepository = (*ViolationsRepositoryImpl)(nil)

const violationColumns = `id, watcher_id, operator_id, customer_id, violation_type,
	threshold, actual_value, start_time, end_time, duration_minutes,
	auto_refund, refund_amount, refund_id, created_at, acknowledged, resolution`

func (r *ViolationsRepositoryImpl) Get(ctx context.Context, id string) (*model.SLAViolation, error) {
	var v model.SLAViolation
	err := r.db.GetContext(ctx, &v, `
		SELECT `+violationColumns+`
		  FROM sla_violations
		 WHERE id = ? LIMIT 1
	`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *ViolationsRepositoryImpl) Create(ctx context.Context, v model.SLAViolation) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO sla_violations (`+violationColumns+`)
		VALUES (:id, :watcher_id, :operator_id, :customer_id, :violation_type,
		        :threshold, :actual_value, :start_time, :end_time, :duration_minutes,
		        :auto_refund, :refund_amount, :refund_id, :created_at, :acknowledged, :resolution)
	`, v)
	return err
}

func (r *ViolationsRepositoryImpl) SetRefund(ctx context.Context, id string, amount decimal.Decimal, refundID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sla_violations
		   SET refund_amount = ?, refund_id = ?
		 WHERE id = ?
	`, amount, refundID, id)
	return err
}

func (r *ViolationsRepositoryImpl) Acknowledge(ctx context.Context, id, resolution string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE sla_violations
		   SET acknowledged = 1, resolution = ?
		 WHERE id = ?
	`, resolution, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *ViolationsRepositoryImpl) ListByWatcher(ctx context.Context, watcherID string, limit int) ([]model.SLAViolation, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var rows []model.SLAViolation
	err := r.db.SelectContext(ctx, &rows, `
		SELECT `+violationColumns+`
		  FROM sla_violations
		 WHERE watcher_id = ?
		 ORDER BY created_at DESC
		 LIMIT ?
	`, watcherID, limit)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
