package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/watchmarket/watchmarket/internal/executor"
	"github.com/watchmarket/watchmarket/internal/model"
	"github.com/watchmarket/watchmarket/internal/repository/memory"
)

type fixture struct {
	svc       *Service
	operators *memory.Operators
	types     *memory.WatcherTypes
	customers *memory.Customers
	watchers  *memory.Watchers
	payments  *memory.Payments
	receipts  *memory.Receipts
	now       time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		operators: memory.NewOperators(),
		types:     memory.NewWatcherTypes(),
		customers: memory.NewCustomers(),
		watchers:  memory.NewWatchers(),
		payments:  memory.NewPayments(),
		receipts:  memory.NewReceipts(),
		now:       time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
	}

	registry := executor.NewRegistry()
	executor.RegisterDefaults(registry)

	f.svc = New(
		f.operators, f.types, f.customers, f.watchers,
		f.receipts, memory.NewCreations(f.watchers, f.payments, f.receipts), registry,
		"base", "base", "x402",
	)
	f.svc.BatchPause = 0
	f.svc.Now = func() time.Time { return f.now }

	require.NoError(t, f.operators.Create(context.Background(), model.Operator{
		ID:     "opr_test",
		Name:   "Test Operator",
		Status: model.OperatorActive,
	}))
	require.NoError(t, f.types.Create(context.Background(), model.WatcherType{
		ID:         "wtp_test",
		OperatorID: "opr_test",
		Name:       "Test Watch",
		Category:   model.CategoryCustom,
		Price:      decimal.RequireFromString("0.10"),
		Status:     model.TypeActive,
	}))
	return f
}

func validRequest() CreateRequest {
	return CreateRequest{
		TypeID:     "wtp_test",
		Config:     model.JSONMap{"url": "https://example.com"},
		Webhook:    "https://hooks.example.com/w1",
		CustomerID: "cust_paid",
	}
}

func seedPaidCustomer(t *testing.T, f *fixture, id string) {
	t.Helper()
	require.NoError(t, f.customers.Create(context.Background(), model.Customer{
		ID:   id,
		Tier: model.TierPaid,
	}))
}

func TestCreateWatcherDefaults(t *testing.T) {
	f := newFixture(t)
	seedPaidCustomer(t, f, "cust_paid")

	res, err := f.svc.CreateWatcher(context.Background(), validRequest())
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.False(t, res.Idempotent)
	assert.Equal(t, model.WatcherActive, res.Watcher.Status)
	assert.Equal(t, 30, res.Watcher.PollingIntervalMinutes)
	assert.Equal(t, model.CycleOneTime, res.Watcher.BillingCycle)
	assert.Nil(t, res.Watcher.NextBillingAt)
	assert.Nil(t, res.Watcher.ExpiresAt)
	assert.Equal(t, model.DefaultRetryPolicy(), res.Watcher.RetryPolicy)
	assert.Equal(t, float64(100), res.Watcher.SLA.UptimePercent)
}

func TestCreateWatcherPaymentSplit(t *testing.T) {
	f := newFixture(t)
	seedPaidCustomer(t, f, "cust_paid")

	res, err := f.svc.CreateWatcher(context.Background(), validRequest())
	require.NoError(t, err)
	require.NotNil(t, res.Payment)

	p := res.Payment
	assert.True(t, p.Amount.Equal(decimal.RequireFromString("0.10")))
	assert.True(t, p.OperatorShare.Equal(decimal.RequireFromString("0.08")), "operator share: %s", p.OperatorShare)
	assert.True(t, p.PlatformShare.Equal(decimal.RequireFromString("0.02")), "platform share: %s", p.PlatformShare)
	assert.True(t, p.OperatorShare.Add(p.PlatformShare).Equal(p.Amount))
}

func TestCreateWatcherIdempotentReplay(t *testing.T) {
	f := newFixture(t)
	seedPaidCustomer(t, f, "cust_paid")

	first, err := f.svc.CreateWatcher(context.Background(), validRequest())
	require.NoError(t, err)

	second, err := f.svc.CreateWatcher(context.Background(), validRequest())
	require.NoError(t, err)

	assert.True(t, second.Idempotent)
	assert.Equal(t, first.Watcher.ID, second.Watcher.ID)
	assert.Equal(t, first.Receipt.ID, second.Receipt.ID)
	assert.Nil(t, second.Payment, "a replay must not charge again")

	// exactly one payment exists
	pays, err := f.payments.ListByWatcher(context.Background(), first.Watcher.ID, 10)
	require.NoError(t, err)
	assert.Len(t, pays, 1)
}

func TestCreateWatcherDistinctConfigNotIdempotent(t *testing.T) {
	f := newFixture(t)
	seedPaidCustomer(t, f, "cust_paid")

	first, err := f.svc.CreateWatcher(context.Background(), validRequest())
	require.NoError(t, err)

	req := validRequest()
	req.Config = model.JSONMap{"url": "https://example.org"}
	second, err := f.svc.CreateWatcher(context.Background(), req)
	require.NoError(t, err)

	assert.False(t, second.Idempotent)
	assert.NotEqual(t, first.Watcher.ID, second.Watcher.ID)
}

func TestCreateWatcherInvalidInputs(t *testing.T) {
	f := newFixture(t)
	seedPaidCustomer(t, f, "cust_paid")
	ctx := context.Background()

	req := validRequest()
	req.PollingInterval = 7
	_, err := f.svc.CreateWatcher(ctx, req)
	assertInvalidConfig(t, err, "invalid_polling_interval")

	req = validRequest()
	ttl := 48
	req.TTLHours = &ttl
	_, err = f.svc.CreateWatcher(ctx, req)
	assertInvalidConfig(t, err, "invalid_ttl")

	req = validRequest()
	req.RetryPolicy = &model.RetryPolicy{MaxRetries: 9, BackoffMs: 100}
	_, err = f.svc.CreateWatcher(ctx, req)
	assertInvalidConfig(t, err, "invalid_retry_policy")

	req = validRequest()
	req.Webhook = "ftp://example.com/hook"
	_, err = f.svc.CreateWatcher(ctx, req)
	assertInvalidConfig(t, err, "invalid_webhook")

	req = validRequest()
	req.BillingCycle = "daily"
	_, err = f.svc.CreateWatcher(ctx, req)
	assertInvalidConfig(t, err, "invalid_billing_cycle")
}

func TestCreateWatcherUnknownType(t *testing.T) {
	f := newFixture(t)
	seedPaidCustomer(t, f, "cust_paid")

	req := validRequest()
	req.TypeID = "wtp_missing"
	_, err := f.svc.CreateWatcher(context.Background(), req)

	var serr *errsError
	require.Error(t, err)
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "not_found", string(serr.Kind))
}

func TestCreateWatcherAnonymousCustomer(t *testing.T) {
	f := newFixture(t)

	req := validRequest()
	req.CustomerID = ""
	res, err := f.svc.CreateWatcher(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, AnonymousCustomerID, res.Watcher.CustomerID)

	// auto-created on the free tier
	c, err := f.customers.Get(context.Background(), AnonymousCustomerID)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, model.TierFree, c.Tier)
}

func TestFreeTierCapAndPollingFloor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// First free watcher: allowed, but cadence is floored silently.
	req := validRequest()
	req.CustomerID = "cust_free"
	req.PollingInterval = 5
	res, err := f.svc.CreateWatcher(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, model.FreeTierPollingFloorMinutes, res.Watcher.PollingIntervalMinutes)

	// Second free watcher: over the cap.
	req2 := validRequest()
	req2.CustomerID = "cust_free"
	req2.Config = model.JSONMap{"url": "https://example.net"}
	_, err = f.svc.CreateWatcher(ctx, req2)
	require.Error(t, err)

	var serr *errsError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "tier_limit_exceeded", string(serr.Kind))
	assert.Contains(t, serr.Details["upgrade"], "/v1/customers/cust_free/upgrade")
}

func TestPaidTierKeepsRequestedInterval(t *testing.T) {
	f := newFixture(t)
	seedPaidCustomer(t, f, "cust_paid")

	req := validRequest()
	req.PollingInterval = 5
	res, err := f.svc.CreateWatcher(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Watcher.PollingIntervalMinutes)
}

func TestBillingScheduleComputation(t *testing.T) {
	f := newFixture(t)
	seedPaidCustomer(t, f, "cust_paid")
	ctx := context.Background()

	req := validRequest()
	req.BillingCycle = "weekly"
	res, err := f.svc.CreateWatcher(ctx, req)
	require.NoError(t, err)
	require.NotNil(t, res.Watcher.NextBillingAt)
	assert.Equal(t, f.now.AddDate(0, 0, 7), *res.Watcher.NextBillingAt)

	req = validRequest()
	req.Config = model.JSONMap{"url": "https://example.org"}
	req.BillingCycle = "monthly"
	res, err = f.svc.CreateWatcher(ctx, req)
	require.NoError(t, err)
	require.NotNil(t, res.Watcher.NextBillingAt)
	assert.Equal(t, f.now.AddDate(0, 1, 0), *res.Watcher.NextBillingAt)
}

func TestCreateWatcherTTLExpiry(t *testing.T) {
	f := newFixture(t)
	seedPaidCustomer(t, f, "cust_paid")

	req := validRequest()
	ttl := 24
	req.TTLHours = &ttl
	res, err := f.svc.CreateWatcher(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, res.Watcher.ExpiresAt)
	assert.Equal(t, f.now.Add(24*time.Hour), *res.Watcher.ExpiresAt)
}

func TestCreateWatcherExecutorConfigRejected(t *testing.T) {
	f := newFixture(t)
	seedPaidCustomer(t, f, "cust_paid")

	execID := "http_status"
	require.NoError(t, f.types.Create(context.Background(), model.WatcherType{
		ID:         "wtp_http",
		OperatorID: "opr_test",
		Name:       "HTTP Watch",
		Category:   model.CategoryCustom,
		Price:      decimal.RequireFromString("0.01"),
		ExecutorID: &execID,
		Status:     model.TypeActive,
	}))

	req := validRequest()
	req.TypeID = "wtp_http"
	req.Config = model.JSONMap{} // missing url
	_, err := f.svc.CreateWatcher(context.Background(), req)
	assertInvalidConfig(t, err, "invalid_executor_config")
}

func TestCreateWatcherStatIncrements(t *testing.T) {
	f := newFixture(t)
	seedPaidCustomer(t, f, "cust_paid")
	ctx := context.Background()

	_, err := f.svc.CreateWatcher(ctx, validRequest())
	require.NoError(t, err)

	op, err := f.operators.Get(ctx, "opr_test")
	require.NoError(t, err)
	assert.Equal(t, int64(1), op.WatchersCreated)
	assert.True(t, op.TotalEarned.Equal(decimal.RequireFromString("0.08")))

	wt, err := f.types.Get(ctx, "wtp_test")
	require.NoError(t, err)
	assert.Equal(t, int64(1), wt.Instances)

	c, err := f.customers.Get(ctx, "cust_paid")
	require.NoError(t, err)
	assert.Equal(t, int64(1), c.TotalWatchersCreated)
	assert.True(t, c.TotalSpent.Equal(decimal.RequireFromString("0.10")))
}

func TestCreateBatchPartialFailure(t *testing.T) {
	f := newFixture(t)
	seedPaidCustomer(t, f, "cust_paid")

	bad := validRequest()
	bad.TypeID = "wtp_missing"

	other := validRequest()
	other.Config = model.JSONMap{"url": "https://example.org"}

	res, err := f.svc.CreateBatch(context.Background(), []CreateRequest{validRequest(), bad, other})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Successful)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Items, 3)

	// positions preserved
	assert.Equal(t, 0, res.Items[0].Index)
	assert.True(t, res.Items[0].Success)
	assert.Equal(t, 1, res.Items[1].Index)
	assert.False(t, res.Items[1].Success)
	assert.Error(t, res.Items[1].Error)
	assert.Equal(t, 2, res.Items[2].Index)
	assert.True(t, res.Items[2].Success)
}

func TestCreateBatchLimits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateBatch(ctx, nil)
	assertInvalidConfig(t, err, "empty_batch")

	over := make([]CreateRequest, MaxBatchSize+1)
	for i := range over {
		over[i] = validRequest()
	}
	_, err = f.svc.CreateBatch(ctx, over)
	assertInvalidConfig(t, err, "batch_too_large")
}
