// Package checker is the polling engine: one RunTick pass checks every
// active watcher that is due, invokes its executor under a bounded timeout,
// delivers webhooks for triggered conditions, and feeds the SLA engine.
package checker

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/watchmarket/watchmarket/internal/executor"
	"github.com/watchmarket/watchmarket/internal/logger"
	"github.com/watchmarket/watchmarket/internal/metrics"
	"github.com/watchmarket/watchmarket/internal/model"
	"github.com/watchmarket/watchmarket/internal/repository"
	"github.com/watchmarket/watchmarket/internal/service/sla"
	"github.com/watchmarket/watchmarket/internal/util"
	"github.com/watchmarket/watchmarket/internal/webhook"
)

const defaultExecutorTimeout = 30 * time.Second

var decimalZero = decimal.Zero

type Engine struct {
	watchers  repository.WatchersRepository
	types     repository.WatcherTypesRepository
	operators repository.OperatorsRepository
	outbox    repository.OutboxRepository
	registry  *executor.Registry
	deliverer *webhook.Deliverer
	sla       *sla.Engine

	// ExecutorTimeout bounds one executor invocation; an overrun is
	// abandoned (result discarded) and counted as a failed check.
	ExecutorTimeout time.Duration
	// Now is the clock; overridable in tests.
	Now func() time.Time
}

func New(
	watchers repository.WatchersRepository,
	types repository.WatcherTypesRepository,
	operators repository.OperatorsRepository,
	outbox repository.OutboxRepository,
	registry *executor.Registry,
	deliverer *webhook.Deliverer,
	slaEngine *sla.Engine,
) *Engine {
	return &Engine{
		watchers:        watchers,
		types:           types,
		operators:       operators,
		outbox:          outbox,
		registry:        registry,
		deliverer:       deliverer,
		sla:             slaEngine,
		ExecutorTimeout: defaultExecutorTimeout,
		Now:             time.Now,
	}
}

// TickSummary is returned to the cron trigger.
type TickSummary struct {
	Total     int           `json:"total"`
	Checked   int           `json:"checked"`
	Triggered int           `json:"triggered"`
	Failed    int           `json:"failed"`
	Skipped   int           `json:"skipped"`
	Expired   int           `json:"expired"`
	Errors    int           `json:"errors"`
	Duration  time.Duration `json:"-"`
}

// RunTick processes every active watcher once, sequentially. A failure on
// one watcher never aborts the others.
func (e *Engine) RunTick(ctx context.Context) (*TickSummary, error) {
	started := e.Now()

	active, err := e.watchers.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active watchers: %w", err)
	}

	sum := &TickSummary{Total: len(active)}
	for i := range active {
		e.processWatcher(ctx, &active[i], sum)
	}

	sum.Duration = e.Now().Sub(started)
	return sum, nil
}

func (e *Engine) processWatcher(ctx context.Context, w *model.Watcher, sum *TickSummary) {
	now := e.Now().UTC()

	// Expiry is terminal; an expired watcher never re-enters active.
	if w.ExpiresAt != nil && now.After(*w.ExpiresAt) {
		w.Status = model.WatcherExpired
		if err := e.watchers.Update(ctx, w); err != nil {
			logger.Log.Error("expire watcher", zap.String("watcher_id", w.ID), zap.Error(err))
			sum.Errors++
			return
		}
		metrics.ChecksTotal.WithLabelValues("expired").Inc()
		sum.Expired++
		return
	}

	if !w.DueForCheck(now) {
		sum.Skipped++
		return
	}

	wt, err := e.types.Get(ctx, w.TypeID)
	if err != nil {
		logger.Log.Error("type lookup", zap.String("watcher_id", w.ID), zap.Error(err))
		sum.Errors++
		return
	}
	if wt == nil || wt.ExecutorID == nil {
		metrics.ChecksTotal.WithLabelValues("skipped").Inc()
		sum.Skipped++
		return
	}
	ex, ok := e.registry.Lookup(*wt.ExecutorID)
	if !ok {
		metrics.ChecksTotal.WithLabelValues("skipped").Inc()
		sum.Skipped++
		return
	}

	res, checkErr := e.runCheck(ctx, ex, w.Config)
	w.LastChecked = &now

	if checkErr != nil {
		e.recordFailure(ctx, w, now, checkErr, sum)
		return
	}

	succeeded := true
	w.LastCheckSuccess = &succeeded
	w.LastCheckResult = model.JSONMap(res.Data)
	w.ConsecutiveFailures = 0
	e.sla.RecordCheck(w, true, now)

	metrics.ChecksTotal.WithLabelValues("succeeded").Inc()
	sum.Checked++
	e.publishEvent(ctx, w, model.EventCheckSucceeded, res.Triggered, "", now)

	if res.Triggered {
		e.fireWebhook(ctx, w, wt, res, now, sum)
	}

	if err := e.watchers.Update(ctx, w); err != nil {
		logger.Log.Error("persist check result", zap.String("watcher_id", w.ID), zap.Error(err))
		sum.Errors++
	}
}

// runCheck invokes the executor under the timeout. On overrun the waiting
// caller gives up; the in-flight call is abandoned, not aborted server-side.
func (e *Engine) runCheck(ctx context.Context, ex executor.Executor, config model.JSONMap) (executor.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, e.ExecutorTimeout)
	defer cancel()

	type outcome struct {
		res executor.Result
		err error
	}
	ch := make(chan outcome, 1)
	go func() {
		r, err := ex.Check(ctx, config)
		ch <- outcome{res: r, err: err}
	}()

	select {
	case <-ctx.Done():
		return executor.Result{}, fmt.Errorf("executor timed out after %s", e.ExecutorTimeout)
	case o := <-ch:
		return o.res, o.err
	}
}

func (e *Engine) recordFailure(ctx context.Context, w *model.Watcher, now time.Time, checkErr error, sum *TickSummary) {
	failed := false
	w.LastCheckSuccess = &failed
	w.LastCheckResult = model.JSONMap{"error": checkErr.Error()}
	w.ConsecutiveFailures++
	e.sla.RecordCheck(w, false, now)

	metrics.ChecksTotal.WithLabelValues("failed").Inc()
	sum.Failed++
	e.publishEvent(ctx, w, model.EventCheckFailed, false, checkErr.Error(), now)

	if v, err := e.sla.EvaluateViolation(ctx, w); err != nil {
		logger.Log.Error("sla evaluation", zap.String("watcher_id", w.ID), zap.Error(err))
		sum.Errors++
	} else if v != nil {
		e.publishEvent(ctx, w, model.EventSLAViolation, false, string(v.ViolationType), now)
	}

	if err := e.watchers.Update(ctx, w); err != nil {
		logger.Log.Error("persist check failure", zap.String("watcher_id", w.ID), zap.Error(err))
		sum.Errors++
	}
}

// fireWebhook delivers the trigger notification under the watcher's retry
// policy. Delivery failure after the retry budget is an error for the tick
// only; it never alters watcher status or last-check-success.
func (e *Engine) fireWebhook(ctx context.Context, w *model.Watcher, wt *model.WatcherType, res executor.Result, now time.Time, sum *TickSummary) {
	ref := model.WebhookWatcherRef{ID: w.ID, TypeID: w.TypeID}
	attempts, err := e.deliverer.Deliver(ctx, w.WebhookURL, "watcher.triggered", ref, res.Data, w.RetryPolicy)
	if err != nil {
		metrics.WebhookDeliveriesTotal.WithLabelValues("exhausted").Inc()
		logger.Log.Warn("webhook delivery exhausted",
			zap.String("watcher_id", w.ID),
			zap.Int("attempts", attempts),
			zap.Error(err))
		sum.Errors++
		e.publishEvent(ctx, w, model.EventWebhookFailed, true, err.Error(), now)
		return
	}

	metrics.WebhookDeliveriesTotal.WithLabelValues("delivered").Inc()
	metrics.ChecksTotal.WithLabelValues("triggered").Inc()

	w.TriggerCount++
	w.LastTriggered = &now
	sum.Triggered++
	e.publishEvent(ctx, w, model.EventTriggered, true, "", now)

	if err := e.operators.IncrementStats(ctx, wt.OperatorID, 0, 1, decimalZero); err != nil {
		logger.Log.Error("operator trigger stat", zap.String("operator_id", wt.OperatorID), zap.Error(err))
	}
	if err := e.types.IncrementStats(ctx, wt.ID, 0, 1); err != nil {
		logger.Log.Error("type trigger stat", zap.String("type_id", wt.ID), zap.Error(err))
	}
}

func (e *Engine) publishEvent(ctx context.Context, w *model.Watcher, event string, triggered bool, errMsg string, at time.Time) {
	ev := model.CheckEvent{
		ID:         util.New(),
		Event:      event,
		WatcherID:  w.ID,
		TypeID:     w.TypeID,
		OperatorID: w.OperatorID,
		CustomerID: w.CustomerID,
		Triggered:  triggered,
		Error:      errMsg,
		At:         at,
	}
	if err := e.outbox.PublishCheckEvent(ctx, ev); err != nil {
		// analytics only; never fail the tick over it
		logger.Log.Warn("outbox publish", zap.String("watcher_id", w.ID), zap.Error(err))
	}
}
