// Package sla tracks per-watcher downtime, computes trailing-window uptime,
// and issues automatic partial refunds when a violation threshold is crossed.
package sla

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/watchmarket/watchmarket/internal/logger"
	"github.com/watchmarket/watchmarket/internal/metrics"
	"github.com/watchmarket/watchmarket/internal/model"
	"github.com/watchmarket/watchmarket/internal/repository"
	"github.com/watchmarket/watchmarket/internal/util"
)

const (
	// UptimeWindow is the trailing window uptime percent is computed over.
	UptimeWindow = 24 * time.Hour
	// RefundWindow is the trailing window of payments a violation refund
	// is computed from.
	RefundWindow = 7 * 24 * time.Hour
)

// refundRatio: a violation refunds half of the recent payment volume.
var refundRatio = decimal.New(5, -1) // 0.50

type Engine struct {
	violations repository.ViolationsRepository
	payments   repository.PaymentsRepository
	network    string

	// Now is the clock; overridable in tests.
	Now func() time.Time
}

func New(violations repository.ViolationsRepository, payments repository.PaymentsRepository, network string) *Engine {
	return &Engine{
		violations: violations,
		payments:   payments,
		network:    network,
		Now:        time.Now,
	}
}

// RecordCheck folds one check outcome into the watcher's SLA record:
// a failure opens a downtime period (unless one is already open), a success
// closes the open one. Uptime percent is recomputed either way.
func (e *Engine) RecordCheck(w *model.Watcher, success bool, at time.Time) {
	open := w.SLA.OpenDowntime()

	if success {
		if open != nil {
			end := at
			dur := at.Sub(open.StartTime).Minutes()
			open.EndTime = &end
			open.DurationMinutes = &dur
			open.Resolved = true
		}
	} else if open == nil {
		w.SLA.DowntimePeriods = append(w.SLA.DowntimePeriods, model.DowntimePeriod{
			StartTime: at,
			Reason:    "Check failed",
		})
	}

	w.SLA.UptimePercent = UptimePercent(w.SLA, at)
}

// UptimePercent computes availability over the trailing UptimeWindow ending
// at now: 100 * (1 - downtime/window), clamped to [0,100]. An open downtime
// period counts up to now.
func UptimePercent(sla model.SLAInfo, now time.Time) float64 {
	windowStart := now.Add(-UptimeWindow)

	var downtime time.Duration
	for _, p := range sla.DowntimePeriods {
		start := p.StartTime
		end := now
		if p.EndTime != nil {
			end = *p.EndTime
		}
		if end.Before(windowStart) {
			continue
		}
		if start.Before(windowStart) {
			start = windowStart
		}
		if end.After(now) {
			end = now
		}
		if end.After(start) {
			downtime += end.Sub(start)
		}
	}

	pct := 100 * (1 - float64(downtime)/float64(UptimeWindow))
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

// EvaluateViolation runs after a failed check. Detection order: consecutive
// failures first, then uptime. Returns the persisted violation, or nil when
// no threshold is crossed. There is deliberately no deduplication window; a
// watcher oscillating at the threshold files a violation per failed check.
func (e *Engine) EvaluateViolation(ctx context.Context, w *model.Watcher) (*model.SLAViolation, error) {
	now := e.Now().UTC()

	var (
		vtype     model.ViolationType
		threshold float64
		actual    float64
	)

	switch {
	case w.ConsecutiveFailures >= model.ConsecutiveFailureThreshold:
		vtype = model.ViolationConsecutiveFailures
		threshold = model.ConsecutiveFailureThreshold
		actual = float64(w.ConsecutiveFailures)
	case w.SLA.UptimePercent < model.UptimeThresholdPercent:
		vtype = model.ViolationUptime
		threshold = model.UptimeThresholdPercent
		actual = w.SLA.UptimePercent
	default:
		return nil, nil
	}

	start := now
	if open := w.SLA.OpenDowntime(); open != nil {
		start = open.StartTime
	}

	v := model.SLAViolation{
		ID:              util.NewWithPrefix("slv"),
		WatcherID:       w.ID,
		OperatorID:      w.OperatorID,
		CustomerID:      w.CustomerID,
		ViolationType:   vtype,
		Threshold:       threshold,
		ActualValue:     actual,
		StartTime:       start,
		EndTime:         now,
		DurationMinutes: now.Sub(start).Minutes(),
		AutoRefund:      true,
		CreatedAt:       now,
	}

	if err := e.violations.Create(ctx, v); err != nil {
		return nil, fmt.Errorf("persist violation: %w", err)
	}

	metrics.SLAViolationsTotal.WithLabelValues(vtype.String()).Inc()

	w.SLA.ViolationCount++
	w.SLA.LastViolation = &now

	refund, refundID, err := e.issueRefund(ctx, w, v.ID, now)
	if err != nil {
		// The violation stands even when the refund could not be issued.
		logger.Log.Error("sla refund failed",
			zap.String("watcher_id", w.ID),
			zap.String("violation_id", v.ID),
			zap.Error(err))
		return &v, nil
	}
	if refundID != "" {
		v.RefundAmount = &refund
		v.RefundID = &refundID
	}

	return &v, nil
}

// issueRefund credits the customer 50% of the watcher's trailing-7-day
// payment sum as a negative payment. Earlier refunds in the window reduce
// the base, which naturally damps repeated violations.
func (e *Engine) issueRefund(ctx context.Context, w *model.Watcher, violationID string, now time.Time) (decimal.Decimal, string, error) {
	paid, err := e.payments.SumForWatcherSince(ctx, w.ID, now.Add(-RefundWindow))
	if err != nil {
		return decimal.Zero, "", fmt.Errorf("sum payments: %w", err)
	}

	refund := paid.Mul(refundRatio)
	if !refund.IsPositive() {
		return decimal.Zero, "", nil
	}

	amount := refund.Neg()
	opShare, platShare := model.SplitAmount(amount)

	p := model.Payment{
		ID:            util.NewWithPrefix("pay"),
		WatcherID:     w.ID,
		OperatorID:    w.OperatorID,
		CustomerID:    w.CustomerID,
		Amount:        amount,
		OperatorShare: opShare,
		PlatformShare: platShare,
		Network:       e.network,
		CreatedAt:     now,
	}
	if err := e.payments.Create(ctx, p); err != nil {
		return decimal.Zero, "", fmt.Errorf("create refund payment: %w", err)
	}

	if err := e.violations.SetRefund(ctx, violationID, refund, p.ID); err != nil {
		return decimal.Zero, "", fmt.Errorf("backfill refund: %w", err)
	}

	return refund, p.ID, nil
}
