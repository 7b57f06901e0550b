package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"github.com/watchmarket/watchmarket/internal/model"
)

// ErrDuplicateFulfillment reports that a receipt with the same fulfillment
// hash was already committed by an earlier or concurrent identical request.
var ErrDuplicateFulfillment = errors.New("duplicate fulfillment hash")

const mysqlErrDuplicateEntry = 1062

// CreationsRepository persists a new watcher, its charge, and the
// idempotency receipt as a single unit. The receipt's UNIQUE fulfillment
// hash acts as the commit gate: when two identical requests race, the
// loser's receipt insert fails and the watcher and payment roll back with
// it, so no orphaned charge survives.
type CreationsRepository interface {
	Persist(ctx context.Context, w model.Watcher, p model.Payment, rc model.Receipt) error
}

type CreationsRepositoryImpl struct {
	db *sqlx.DB
}

func NewCreationsRepository(db *sqlx.DB) *CreationsRepositoryImpl {
	return &CreationsRepositoryImpl{db: db}
}

var _ CreationsRepository = (*CreationsRepositoryImpl)(nil)

func (r *CreationsRepositoryImpl) Persist(ctx context.Context, w model.Watcher, p model.Payment, rc model.Receipt) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin creation tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := insertWatcher(ctx, tx, w); err != nil {
		return fmt.Errorf("insert watcher: %w", err)
	}
	if err := insertPayment(ctx, tx, p); err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	if err := insertReceipt(ctx, tx, rc); err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == mysqlErrDuplicateEntry {
			return ErrDuplicateFulfillment
		}
		return fmt.Errorf("insert receipt: %w", err)
	}

	return tx.Commit()
}
