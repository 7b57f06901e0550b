package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Tier string

const (
	TierFree Tier = "free"
	TierPaid Tier = "paid"
)

func (t Tier) String() string { return string(t) }

// FreeTierWatcherCap is the number of watchers a free customer may create.
const FreeTierWatcherCap = 1

// FreeTierPollingFloorMinutes is the minimum polling interval on the free
// tier; lower requested intervals are silently raised to this value.
const FreeTierPollingFloorMinutes = 30

// Customer is created lazily on the first watcher-creation request.
// The ID is caller-supplied (typically a wallet address).
type Customer struct {
	ID               string          `db:"id" json:"id"`
	Tier             Tier            `db:"tier" json:"tier"`
	FreeWatchersUsed int             `db:"free_watchers_used" json:"freeWatchersUsed"`
	UpgradedAt       *time.Time      `db:"upgraded_at" json:"upgradedAt"`
	CreatedAt        time.Time       `db:"created_at" json:"createdAt"`
	// stats
	TotalWatchersCreated int64           `db:"total_watchers_created" json:"totalWatchersCreated"`
	TotalSpent           decimal.Decimal `db:"total_spent" json:"totalSpent"`
}
