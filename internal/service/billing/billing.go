// Package billing advances recurring charges: it finds due watchers, settles
// each charge on the payment rail, appends billing records, and suspends
// watchers whose charge fails.
package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/watchmarket/watchmarket/internal/errs"
	"github.com/watchmarket/watchmarket/internal/logger"
	"github.com/watchmarket/watchmarket/internal/metrics"
	"github.com/watchmarket/watchmarket/internal/model"
	"github.com/watchmarket/watchmarket/internal/repository"
	"github.com/watchmarket/watchmarket/internal/util"
)

// Settler is the external payment rail. Production wires the real protocol
// settlement; the default simulation always clears.
type Settler interface {
	// Charge settles amount against the watcher's customer and returns a
	// settlement reference. An error means the charge was declined.
	Charge(ctx context.Context, w *model.Watcher, amount decimal.Decimal) (string, error)
}

// SimulatedSettler clears every charge; real settlement happens on the
// external rail in production.
type SimulatedSettler struct{}

func (SimulatedSettler) Charge(_ context.Context, _ *model.Watcher, _ decimal.Decimal) (string, error) {
	return util.NewWithPrefix("stl"), nil
}

type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailed  Outcome = "failed"
	OutcomeSkipped Outcome = "skipped"
)

type Engine struct {
	watchers  repository.WatchersRepository
	types     repository.WatcherTypesRepository
	operators repository.OperatorsRepository
	payments  repository.PaymentsRepository
	outbox    repository.OutboxRepository
	settler   Settler
	network   string

	// Now is the clock; overridable in tests.
	Now func() time.Time
}

func New(
	watchers repository.WatchersRepository,
	types repository.WatcherTypesRepository,
	operators repository.OperatorsRepository,
	payments repository.PaymentsRepository,
	outbox repository.OutboxRepository,
	settler Settler,
	network string,
) *Engine {
	if settler == nil {
		settler = SimulatedSettler{}
	}
	return &Engine{
		watchers:  watchers,
		types:     types,
		operators: operators,
		payments:  payments,
		outbox:    outbox,
		settler:   settler,
		network:   network,
		Now:       time.Now,
	}
}

// DueBillings returns active recurring watchers whose next billing date has
// arrived.
func (e *Engine) DueBillings(ctx context.Context) ([]model.Watcher, error) {
	return e.watchers.ListDueBilling(ctx, e.Now().UTC())
}

// Result reports one billing attempt.
type Result struct {
	Outcome   Outcome              `json:"outcome"`
	WatcherID string               `json:"watcherId"`
	Record    *model.BillingRecord `json:"record,omitempty"`
}

// ProcessBilling charges one watcher if due. Not-recurring or not-yet-due is
// a skipped no-op, not an error. A declined charge or a system error during
// processing both suspend the watcher; only the recorded reason differs.
func (e *Engine) ProcessBilling(ctx context.Context, watcherID string) (*Result, error) {
	w, err := e.watchers.Get(ctx, watcherID)
	if err != nil {
		return nil, fmt.Errorf("watcher lookup: %w", err)
	}
	if w == nil {
		return nil, errs.NotFound("watcher", watcherID)
	}

	now := e.Now().UTC()
	if w.Status != model.WatcherActive || w.BillingCycle == model.CycleOneTime ||
		w.NextBillingAt == nil || w.NextBillingAt.After(now) {
		metrics.BillingRunsTotal.WithLabelValues("skipped").Inc()
		return &Result{Outcome: OutcomeSkipped, WatcherID: w.ID}, nil
	}

	dueAt := *w.NextBillingAt

	wt, err := e.types.Get(ctx, w.TypeID)
	if err != nil {
		return e.recordFailure(ctx, w, dueAt, now, fmt.Sprintf("system_error: type lookup: %v", err))
	}
	if wt == nil {
		return e.recordFailure(ctx, w, dueAt, now, "system_error: watcher type missing")
	}

	amount := wt.Price

	ref, err := e.settler.Charge(ctx, w, amount)
	if err != nil {
		return e.recordFailure(ctx, w, dueAt, now, fmt.Sprintf("payment_declined: %v", err))
	}

	opShare, platShare := model.SplitAmount(amount)
	payment := model.Payment{
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
	if err := e.payments.Create(ctx, payment); err != nil {
		return e.recordFailure(ctx, w, dueAt, now, fmt.Sprintf("system_error: persist payment: %v", err))
	}

	record := model.BillingRecord{
		ID:          util.NewWithPrefix("bil"),
		BillingDate: dueAt,
		ProcessedAt: now,
		Amount:      amount.String(),
		Status:      model.BillingSuccess,
		PaymentID:   &payment.ID,
	}
	w.BillingHistory = append(w.BillingHistory, record)

	// Advance from the due date, not from now, so late cron runs don't
	// drift the schedule.
	var next time.Time
	switch w.BillingCycle {
	case model.CycleWeekly:
		next = dueAt.AddDate(0, 0, 7)
	case model.CycleMonthly:
		next = dueAt.AddDate(0, 1, 0)
	}
	w.NextBillingAt = &next

	if err := e.watchers.Update(ctx, w); err != nil {
		return nil, fmt.Errorf("persist billing advance: %w", err)
	}

	if err := e.operators.IncrementStats(ctx, w.OperatorID, 0, 0, opShare); err != nil {
		logger.Log.Error("operator earnings increment", zap.String("operator_id", w.OperatorID), zap.Error(err))
	}

	logger.Log.Debug("settled recurring charge",
		zap.String("watcher_id", w.ID),
		zap.String("settlement_ref", ref),
		zap.String("amount", amount.String()))

	metrics.BillingRunsTotal.WithLabelValues("success").Inc()
	return &Result{Outcome: OutcomeSuccess, WatcherID: w.ID, Record: &record}, nil
}

// recordFailure appends a failed billing record and suspends the watcher.
// Suspension is stronger than a failed check: no checks or billing run until
// an operator or billing action reactivates it.
func (e *Engine) recordFailure(ctx context.Context, w *model.Watcher, dueAt, now time.Time, reason string) (*Result, error) {
	record := model.BillingRecord{
		ID:            util.NewWithPrefix("bil"),
		BillingDate:   dueAt,
		ProcessedAt:   now,
		Amount:        "0",
		Status:        model.BillingFailed,
		FailureReason: &reason,
	}
	w.BillingHistory = append(w.BillingHistory, record)
	w.Status = model.WatcherSuspended

	if err := e.watchers.Update(ctx, w); err != nil {
		return nil, fmt.Errorf("persist suspension: %w", err)
	}

	ev := model.CheckEvent{
		ID:         util.New(),
		Event:      model.EventBillingFailed,
		WatcherID:  w.ID,
		TypeID:     w.TypeID,
		OperatorID: w.OperatorID,
		CustomerID: w.CustomerID,
		Error:      reason,
		At:         now,
	}
	if err := e.outbox.PublishCheckEvent(ctx, ev); err != nil {
		logger.Log.Warn("outbox publish", zap.String("watcher_id", w.ID), zap.Error(err))
	}

	metrics.BillingRunsTotal.WithLabelValues("failed").Inc()
	return &Result{Outcome: OutcomeFailed, WatcherID: w.ID, Record: &record}, nil
}

// RunSummary is returned to the cron trigger.
type RunSummary struct {
	Due       int           `json:"due"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Suspended int           `json:"suspended"`
	Errors    int           `json:"errors"`
	Duration  time.Duration `json:"-"`
}

// ProcessAllDueBillings bills every due watcher independently; one failure
// never aborts the rest.
func (e *Engine) ProcessAllDueBillings(ctx context.Context) (*RunSummary, error) {
	started := e.Now()

	due, err := e.DueBillings(ctx)
	if err != nil {
		return nil, fmt.Errorf("list due billings: %w", err)
	}

	sum := &RunSummary{Due: len(due)}
	for i := range due {
		res, err := e.ProcessBilling(ctx, due[i].ID)
		if err != nil {
			logger.Log.Error("billing run", zap.String("watcher_id", due[i].ID), zap.Error(err))
			sum.Errors++
			continue
		}
		switch res.Outcome {
		case OutcomeSuccess:
			sum.Succeeded++
		case OutcomeFailed:
			sum.Failed++
			sum.Suspended++
		}
	}

	sum.Duration = e.Now().Sub(started)
	return sum, nil
}
