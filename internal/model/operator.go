package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type OperatorStatus string

const (
	OperatorActive    OperatorStatus = "active"
	OperatorSuspended OperatorStatus = "suspended"
	OperatorPending   OperatorStatus = "pending"
)

func (s OperatorStatus) String() string { return string(s) }

func (s OperatorStatus) Valid() bool {
	return s == OperatorActive || s == OperatorSuspended || s == OperatorPending
}

// Operator is a service provider who defines watcher types and receives the
// operator share (80%) of customer payments.
type Operator struct {
	ID            string          `db:"id" json:"id"`
	Name          string          `db:"name" json:"name"`
	PayoutAddress string          `db:"payout_address" json:"payoutAddress"`
	Description   string          `db:"description" json:"description"`
	Status        OperatorStatus  `db:"status" json:"status"`
	CreatedAt     time.Time       `db:"created_at" json:"createdAt"`
	// stats (mutated only via atomic increments)
	WatchersCreated int64           `db:"watchers_created" json:"watchersCreated"`
	TotalTriggers   int64           `db:"total_triggers" json:"totalTriggers"`
	TotalEarned     decimal.Decimal `db:"total_earned" json:"totalEarned"`
	UptimePercent   float64         `db:"uptime_percent" json:"uptimePercent"`
}
