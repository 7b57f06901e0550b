package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Category string

const (
	CategoryWallet   Category = "wallet"
	CategoryPrice    Category = "price"
	CategoryContract Category = "contract"
	CategorySocial   Category = "social"
	CategoryDefi     Category = "defi"
	CategoryCustom   Category = "custom"
)

func (c Category) String() string { return string(c) }

// ParseCategory normalizes input; empty => custom.
// Returns (value, true) if valid; otherwise (custom, false).
func ParseCategory(s string) (Category, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "wallet":
		return CategoryWallet, true
	case "price":
		return CategoryPrice, true
	case "contract":
		return CategoryContract, true
	case "social":
		return CategorySocial, true
	case "defi":
		return CategoryDefi, true
	case "", "custom":
		return CategoryCustom, true
	default:
		return CategoryCustom, false
	}
}

type TypeStatus string

const (
	TypeActive     TypeStatus = "active"
	TypeDeprecated TypeStatus = "deprecated"
)

func (s TypeStatus) String() string { return string(s) }

// MinTypePrice is the marketplace floor for a watcher type price (USD).
var MinTypePrice = decimal.RequireFromString("0.001")

// WatcherType is a product listing an operator offers on the marketplace.
// ConfigSchema is an opaque JSON schema published as a client-side hint;
// the core never validates against it.
type WatcherType struct {
	ID           string          `db:"id" json:"id"`
	OperatorID   string          `db:"operator_id" json:"operatorId"`
	Name         string          `db:"name" json:"name"`
	Category     Category        `db:"category" json:"category"`
	Price        decimal.Decimal `db:"price" json:"price"` // USD per billing cycle
	ConfigSchema JSONMap         `db:"config_schema" json:"configSchema"`
	ExecutorID   *string         `db:"executor_id" json:"executorId"` // nullable registry key
	Status       TypeStatus      `db:"status" json:"status"`
	CreatedAt    time.Time       `db:"created_at" json:"createdAt"`
	// stats
	Instances int64 `db:"instances" json:"instances"`
	Triggers  int64 `db:"triggers" json:"triggers"`
}
