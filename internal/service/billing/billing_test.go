package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/watchmarket/watchmarket/internal/model"
	"github.com/watchmarket/watchmarket/internal/repository/memory"
)

// failingSettler declines every charge.
type failingSettler struct{ err error }

func (s failingSettler) Charge(context.Context, *model.Watcher, decimal.Decimal) (string, error) {
	return "", s.err
}

type fixture struct {
	engine    *Engine
	watchers  *memory.Watchers
	types     *memory.WatcherTypes
	operators *memory.Operators
	payments  *memory.Payments
	outbox    *memory.Outbox
	now       time.Time
}

func newFixture(t *testing.T, settler Settler) *fixture {
	t.Helper()

	f := &fixture{
		watchers:  memory.NewWatchers(),
		types:     memory.NewWatcherTypes(),
		operators: memory.NewOperators(),
		payments:  memory.NewPayments(),
		outbox:    memory.NewOutbox(),
		now:       time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
	}
	f.engine = New(f.watchers, f.types, f.operators, f.payments, f.outbox, settler, "base")
	f.engine.Now = func() time.Time { return f.now }

	ctx := context.Background()
	require.NoError(t, f.operators.Create(ctx, model.Operator{ID: "opr_1", Status: model.OperatorActive}))
	require.NoError(t, f.types.Create(ctx, model.WatcherType{
		ID:         "wtp_1",
		OperatorID: "opr_1",
		Price:      decimal.RequireFromString("0.10"),
		Status:     model.TypeActive,
	}))
	return f
}

func (f *fixture) seedRecurring(t *testing.T, id string, cycle model.BillingCycle, due time.Time) {
	t.Helper()
	require.NoError(t, f.watchers.Create(context.Background(), model.Watcher{
		ID:             id,
		TypeID:         "wtp_1",
		OperatorID:     "opr_1",
		CustomerID:     "cust_1",
		Status:         model.WatcherActive,
		CreatedAt:      due.AddDate(0, 0, -7),
		BillingCycle:   cycle,
		NextBillingAt:  &due,
		BillingHistory: model.BillingHistory{},
		SLA:            model.NewSLAInfo(),
	}))
}

func TestProcessBillingSuccessAdvancesFromDueDate(t *testing.T) {
	f := newFixture(t, SimulatedSettler{})
	due := f.now.Add(-2 * time.Hour) // cron ran late
	f.seedRecurring(t, "wat_1", model.CycleWeekly, due)
	ctx := context.Background()

	res, err := f.engine.ProcessBilling(ctx, "wat_1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, res.Outcome)

	w, err := f.watchers.Get(ctx, "wat_1")
	require.NoError(t, err)
	require.NotNil(t, w.NextBillingAt)
	assert.Equal(t, due.AddDate(0, 0, 7), *w.NextBillingAt,
		"schedule advances from the due date, not the processing time")

	require.Len(t, w.BillingHistory, 1)
	rec := w.BillingHistory[0]
	assert.Equal(t, model.BillingSuccess, rec.Status)
	assert.Equal(t, due, rec.BillingDate)
	assert.Equal(t, f.now, rec.ProcessedAt)
	assert.True(t, decimal.RequireFromString(rec.Amount).Equal(decimal.RequireFromString("0.10")))
	require.NotNil(t, rec.PaymentID)

	pays, err := f.payments.ListByWatcher(ctx, "wat_1", 10)
	require.NoError(t, err)
	require.Len(t, pays, 1)
	assert.True(t, pays[0].Amount.Equal(decimal.RequireFromString("0.10")))

	op, err := f.operators.Get(ctx, "opr_1")
	require.NoError(t, err)
	assert.True(t, op.TotalEarned.Equal(decimal.RequireFromString("0.08")))
}

func TestProcessBillingMonthlyRollover(t *testing.T) {
	f := newFixture(t, SimulatedSettler{})
	due := time.Date(2026, 1, 31, 9, 0, 0, 0, time.UTC)
	f.now = due.Add(time.Hour)
	f.seedRecurring(t, "wat_1", model.CycleMonthly, due)

	_, err := f.engine.ProcessBilling(context.Background(), "wat_1")
	require.NoError(t, err)

	w, err := f.watchers.Get(context.Background(), "wat_1")
	require.NoError(t, err)
	// Jan 31 + 1 month normalizes into March.
	assert.Equal(t, time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC), *w.NextBillingAt)
}

func TestProcessBillingSkips(t *testing.T) {
	f := newFixture(t, SimulatedSettler{})
	ctx := context.Background()

	// not yet due
	f.seedRecurring(t, "wat_future", model.CycleWeekly, f.now.Add(24*time.Hour))
	res, err := f.engine.ProcessBilling(ctx, "wat_future")
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, res.Outcome)

	// one-time cycle never bills
	require.NoError(t, f.watchers.Create(ctx, model.Watcher{
		ID:           "wat_once",
		TypeID:       "wtp_1",
		OperatorID:   "opr_1",
		Status:       model.WatcherActive,
		BillingCycle: model.CycleOneTime,
	}))
	res, err = f.engine.ProcessBilling(ctx, "wat_once")
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, res.Outcome)
}

func TestProcessBillingDeclineSuspends(t *testing.T) {
	f := newFixture(t, failingSettler{err: errors.New("card expired")})
	due := f.now.Add(-time.Hour)
	f.seedRecurring(t, "wat_1", model.CycleWeekly, due)
	ctx := context.Background()

	res, err := f.engine.ProcessBilling(ctx, "wat_1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, res.Outcome)

	w, err := f.watchers.Get(ctx, "wat_1")
	require.NoError(t, err)
	assert.Equal(t, model.WatcherSuspended, w.Status)

	require.Len(t, w.BillingHistory, 1)
	rec := w.BillingHistory[0]
	assert.Equal(t, model.BillingFailed, rec.Status)
	require.NotNil(t, rec.FailureReason)
	assert.Contains(t, *rec.FailureReason, "payment_declined")
	assert.Contains(t, *rec.FailureReason, "card expired")

	// the failure is surfaced to the event stream
	events := f.outbox.Events()
	require.Len(t, events, 1)
	assert.Equal(t, model.EventBillingFailed, events[0].Event)

	// no payment was recorded
	pays, err := f.payments.ListByWatcher(ctx, "wat_1", 10)
	require.NoError(t, err)
	assert.Empty(t, pays)
}

func TestProcessBillingMissingTypeIsSystemError(t *testing.T) {
	f := newFixture(t, SimulatedSettler{})
	due := f.now.Add(-time.Hour)
	f.seedRecurring(t, "wat_1", model.CycleWeekly, due)

	stored, err := f.watchers.Get(context.Background(), "wat_1")
	require.NoError(t, err)
	stored.TypeID = "wtp_gone"
	require.NoError(t, f.watchers.Update(context.Background(), stored))

	res, err := f.engine.ProcessBilling(context.Background(), "wat_1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	require.NotNil(t, res.Record.FailureReason)
	assert.Contains(t, *res.Record.FailureReason, "system_error")
}

func TestSuspendedWatcherExcludedFromDueBillings(t *testing.T) {
	f := newFixture(t, failingSettler{err: errors.New("declined")})
	due := f.now.Add(-time.Hour)
	f.seedRecurring(t, "wat_1", model.CycleWeekly, due)
	ctx := context.Background()

	before, err := f.engine.DueBillings(ctx)
	require.NoError(t, err)
	assert.Len(t, before, 1)

	_, err = f.engine.ProcessBilling(ctx, "wat_1")
	require.NoError(t, err)

	after, err := f.engine.DueBillings(ctx)
	require.NoError(t, err)
	assert.Empty(t, after, "suspension removes the watcher from the billing queue")
}

func TestProcessAllDueBillingsIsolation(t *testing.T) {
	f := newFixture(t, SimulatedSettler{})
	due := f.now.Add(-time.Hour)
	f.seedRecurring(t, "wat_ok", model.CycleWeekly, due)
	f.seedRecurring(t, "wat_bad", model.CycleWeekly, due.Add(-time.Minute))
	ctx := context.Background()

	// break one watcher's type resolution
	bad, err := f.watchers.Get(ctx, "wat_bad")
	require.NoError(t, err)
	bad.TypeID = "wtp_gone"
	require.NoError(t, f.watchers.Update(ctx, bad))

	sum, err := f.engine.ProcessAllDueBillings(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, sum.Due)
	assert.Equal(t, 1, sum.Succeeded)
	assert.Equal(t, 1, sum.Failed)
	assert.Equal(t, 1, sum.Suspended)

	ok, err := f.watchers.Get(ctx, "wat_ok")
	require.NoError(t, err)
	assert.Equal(t, model.WatcherActive, ok.Status, "one failure never blocks the rest")
}
