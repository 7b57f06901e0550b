package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Revenue split between the operator and the platform.
var (
	operatorShareRatio = decimal.New(80, -2) // 0.80
	platformShareRatio = decimal.New(20, -2) // 0.20
)

// Payment is an immutable settlement record. A negative amount is a
// refund/credit; the 80/20 split applies with the same sign.
type Payment struct {
	ID            string          `db:"id" json:"id"`
	WatcherID     string          `db:"watcher_id" json:"watcherId"`
	OperatorID    string          `db:"operator_id" json:"operatorId"`
	CustomerID    string          `db:"customer_id" json:"customerId"`
	Amount        decimal.Decimal `db:"amount" json:"amount"`
	OperatorShare decimal.Decimal `db:"operator_share" json:"operatorShare"`
	PlatformShare decimal.Decimal `db:"platform_share" json:"platformShare"`
	Network       string          `db:"network" json:"network"`
	CreatedAt     time.Time       `db:"created_at" json:"createdAt"`
}

// SplitAmount returns the operator and platform shares of amount.
// The shares always sum exactly to amount.
func SplitAmount(amount decimal.Decimal) (operator, platform decimal.Decimal) {
	operator = amount.Mul(operatorShareRatio)
	platform = amount.Sub(operator)
	return operator, platform
}

// Receipt witnesses one successful fulfillment of a creation request.
// The fulfillment hash is the idempotency key: a second request with the
// same hash replays this receipt instead of creating anything.
type Receipt struct {
	ID              string          `db:"id" json:"id"`
	WatcherID       string          `db:"watcher_id" json:"watcherId"`
	TypeID          string          `db:"type_id" json:"typeId"`
	Amount          decimal.Decimal `db:"amount" json:"amount"`
	Chain           string          `db:"chain" json:"chain"`
	Rail            string          `db:"rail" json:"rail"`
	Timestamp       time.Time       `db:"timestamp" json:"timestamp"`
	FulfillmentHash string          `db:"fulfillment_hash" json:"fulfillmentHash"`
	CustomerID      string          `db:"customer_id" json:"customerId"`
	OperatorID      string          `db:"operator_id" json:"operatorId"`
	PaymentID       string          `db:"payment_id" json:"paymentId"`
}
