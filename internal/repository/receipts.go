package repository

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/watchmarket/watchmarket/internal/model"
)

// ReceiptsRepository is the read side of the idempotency witness; writes go
// through CreationsRepository so the receipt commits with its watcher and
// payment.
type ReceiptsRepository interface {
	GetByHash(ctx context.Context, fulfillmentHash string) (*model.Receipt, error)
}

type ReceiptsRepositoryImpl struct {
	db *sqlx.DB
}

func NewReceiptsRepository(db *sqlx.DB) *ReceiptsRepositoryImpl {
	return &ReceiptsRepositoryImpl{db: db}
}

var _ ReceiptsRepository = (*ReceiptsRepositoryImpl)(nil)

func (r *ReceiptsRepositoryImpl) GetByHash(ctx context.Context, fulfillmentHash string) (*model.Receipt, error) {
	var rc model.Receipt
	err := r.db.GetContext(ctx, &rc, `
		SELECT id, watcher_id, type_id, amount, chain, rail, timestamp,
		       fulfillment_hash, customer_id, operator_id, payment_id
		  FROM receipts
		 WHERE fulfillment_hash = ? LIMIT 1
	`, fulfillmentHash)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rc, nil
}

// insertReceipt runs inside the creation transaction. fulfillment_hash
// carries a UNIQUE index; a duplicate insert from a racing identical request
// fails here and rolls back the watcher and payment with it.
func insertReceipt(ctx context.Context, e sqlx.ExtContext, rc model.Receipt) error {
	_, err := e.ExecContext(ctx, `
		INSERT INTO receipts
		    (id, watcher_id, type_id, amount, chain, rail, timestamp,
		     fulfillment_hash, customer_id, operator_id, payment_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rc.ID, rc.WatcherID, rc.TypeID, rc.Amount, rc.Chain, rc.Rail, rc.Timestamp,
		rc.FulfillmentHash, rc.CustomerID, rc.OperatorID, rc.PaymentID)
	return err
}