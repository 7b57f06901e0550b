package model

import (
	"database/sql/driver"
	"strings"
	"time"
)

type WatcherStatus string

const (
	WatcherActive    WatcherStatus = "active"
	WatcherPaused    WatcherStatus = "paused"
	WatcherExpired   WatcherStatus = "expired"
	WatcherSuspended WatcherStatus = "suspended"
	WatcherCancelled WatcherStatus = "cancelled"
)

func (s WatcherStatus) String() string { return string(s) }

// Terminal reports whether the status can never transition again.
func (s WatcherStatus) Terminal() bool {
	return s == WatcherExpired || s == WatcherCancelled
}

type BillingCycle string

const (
	CycleOneTime BillingCycle = "one-time"
	CycleWeekly  BillingCycle = "weekly"
	CycleMonthly BillingCycle = "monthly"
)

func (c BillingCycle) String() string { return string(c) }

// ParseBillingCycle normalizes input; empty => one-time.
// Returns (value, true) if valid; otherwise (one-time, false).
func ParseBillingCycle(s string) (BillingCycle, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "one-time", "onetime":
		return CycleOneTime, true
	case "weekly":
		return CycleWeekly, true
	case "monthly":
		return CycleMonthly, true
	default:
		return CycleOneTime, false
	}
}

// AllowedPollingIntervals are the selectable cadences, in minutes.
var AllowedPollingIntervals = []int{5, 15, 30, 60}

// AllowedTTLHours are the selectable watcher lifetimes; nil TTL means no expiry.
var AllowedTTLHours = []int{24, 72, 168}

// MaxRetries is the upper bound on webhook retry attempts per delivery.
const MaxRetries = 5

// RetryPolicy bounds webhook delivery retries. A delivery makes at most
// MaxRetries+1 attempts with backoff BackoffMs * 2^attempt between them.
type RetryPolicy struct {
	MaxRetries int   `json:"maxRetries"`
	BackoffMs  int64 `json:"backoffMs"`
}

func (p RetryPolicy) Value() (driver.Value, error) { return jsonValue(p) }
func (p *RetryPolicy) Scan(src any) error          { return scanJSON(src, p) }

// DefaultRetryPolicy applies when the creation request omits a policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, BackoffMs: 1000}
}

// DowntimePeriod is one contiguous stretch of failed checks.
// EndTime nil means the outage is ongoing.
type DowntimePeriod struct {
	StartTime       time.Time  `json:"startTime"`
	EndTime         *time.Time `json:"endTime"`
	DurationMinutes *float64   `json:"durationMinutes"`
	Reason          string     `json:"reason"`
	Resolved        bool       `json:"resolved"`
}

// SLAInfo is the per-watcher availability record embedded in the watcher row.
type SLAInfo struct {
	UptimePercent   float64          `json:"uptimePercent"`
	ViolationCount  int              `json:"violationCount"`
	LastViolation   *time.Time       `json:"lastViolation"`
	DowntimePeriods []DowntimePeriod `json:"downtimePeriods"`
}

func (s SLAInfo) Value() (driver.Value, error) { return jsonValue(s) }
func (s *SLAInfo) Scan(src any) error          { return scanJSON(src, s) }

// NewSLAInfo returns the initial record: full uptime, clean history.
func NewSLAInfo() SLAInfo {
	return SLAInfo{UptimePercent: 100, DowntimePeriods: []DowntimePeriod{}}
}

// OpenDowntime returns the ongoing downtime period, if any.
func (s *SLAInfo) OpenDowntime() *DowntimePeriod {
	for i := range s.DowntimePeriods {
		if s.DowntimePeriods[i].EndTime == nil {
			return &s.DowntimePeriods[i]
		}
	}
	return nil
}

type BillingStatus string

const (
	BillingSuccess BillingStatus = "success"
	BillingFailed  BillingStatus = "failed"
)

// BillingRecord is one entry in a watcher's billing history.
type BillingRecord struct {
	ID            string        `json:"id"`
	BillingDate   time.Time     `json:"billingDate"` // the date the charge was due
	ProcessedAt   time.Time     `json:"processedAt"`
	Amount        string        `json:"amount"` // decimal string, USD
	Status        BillingStatus `json:"status"`
	PaymentID     *string       `json:"paymentId"`
	FailureReason *string       `json:"failureReason"`
}

// BillingHistory is the ordered billing record list, stored as a JSON column.
type BillingHistory []BillingRecord

func (h BillingHistory) Value() (driver.Value, error) { return jsonValue(h) }
func (h *BillingHistory) Scan(src any) error          { return scanJSON(src, h) }

// Watcher is a running, paid instance of a WatcherType.
type Watcher struct {
	ID         string  `db:"id" json:"id"`
	TypeID     string  `db:"type_id" json:"typeId"`
	OperatorID string  `db:"operator_id" json:"operatorId"`
	CustomerID string  `db:"customer_id" json:"customerId"`
	Config     JSONMap `db:"config" json:"config"`
	WebhookURL string  `db:"webhook_url" json:"webhookUrl"`

	Status    WatcherStatus `db:"status" json:"status"`
	CreatedAt time.Time     `db:"created_at" json:"createdAt"`
	ExpiresAt *time.Time    `db:"expires_at" json:"expiresAt"`

	LastChecked     *time.Time `db:"last_checked" json:"lastChecked"`
	LastTriggered   *time.Time `db:"last_triggered" json:"lastTriggered"`
	TriggerCount    int64      `db:"trigger_count" json:"triggerCount"`
	LastCheckResult JSONMap    `db:"last_check_result" json:"lastCheckResult"`
	// LastCheckSuccess reflects the executor check only; webhook delivery
	// failures never touch it.
	LastCheckSuccess    *bool `db:"last_check_success" json:"lastCheckSuccess"`
	ConsecutiveFailures int   `db:"consecutive_failures" json:"consecutiveFailures"`

	BillingCycle   BillingCycle   `db:"billing_cycle" json:"billingCycle"`
	NextBillingAt  *time.Time     `db:"next_billing_at" json:"nextBillingAt"`
	BillingHistory BillingHistory `db:"billing_history" json:"billingHistory"`

	CancelledAt        *time.Time `db:"cancelled_at" json:"cancelledAt"`
	CancellationReason *string    `db:"cancellation_reason" json:"cancellationReason"`

	PollingIntervalMinutes int  `db:"polling_interval_minutes" json:"pollingIntervalMinutes"`
	TTLHours               *int `db:"ttl_hours" json:"ttlHours"`

	RetryPolicy RetryPolicy `db:"retry_policy" json:"retryPolicy"`
	SLA         SLAInfo     `db:"sla" json:"sla"`
}

// DueForCheck reports whether the polling cadence allows a check at now.
// The first check always runs.
func (w *Watcher) DueForCheck(now time.Time) bool {
	if w.LastChecked == nil {
		return true
	}
	return now.Sub(*w.LastChecked) >= time.Duration(w.PollingIntervalMinutes)*time.Minute
}
