package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type ViolationType string

const (
	ViolationUptime              ViolationType = "uptime"
	ViolationConsecutiveFailures ViolationType = "consecutive_failures"
)

func (t ViolationType) String() string { return string(t) }

// SLA thresholds. Consecutive failures are evaluated before uptime.
const (
	ConsecutiveFailureThreshold = 5
	UptimeThresholdPercent      = 99.0
)

// SLAViolation is immutable except for the acknowledgement fields.
type SLAViolation struct {
	ID              string           `db:"id" json:"id"`
	WatcherID       string           `db:"watcher_id" json:"watcherId"`
	OperatorID      string           `db:"operator_id" json:"operatorId"`
	CustomerID      string           `db:"customer_id" json:"customerId"`
	ViolationType   ViolationType    `db:"violation_type" json:"violationType"`
	Threshold       float64          `db:"threshold" json:"threshold"`
	ActualValue     float64          `db:"actual_value" json:"actualValue"`
	StartTime       time.Time        `db:"start_time" json:"startTime"`
	EndTime         time.Time        `db:"end_time" json:"endTime"`
	DurationMinutes float64          `db:"duration_minutes" json:"durationMinutes"`
	AutoRefund      bool             `db:"auto_refund" json:"autoRefund"`
	RefundAmount    *decimal.Decimal `db:"refund_amount" json:"refundAmount"`
	RefundID        *string          `db:"refund_id" json:"refundId"`
	CreatedAt       time.Time        `db:"created_at" json:"createdAt"`
	Acknowledged    bool             `db:"acknowledged" json:"acknowledged"`
	Resolution      *string          `db:"resolution" json:"resolution"`
}
