package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/watchmarket/watchmarket/internal/errs"
	"github.com/watchmarket/watchmarket/internal/model"
)

func createActiveWatcher(t *testing.T, f *fixture) *model.Watcher {
	t.Helper()
	seedPaidCustomer(t, f, "cust_paid")

	req := validRequest()
	req.BillingCycle = "weekly"
	res, err := f.svc.CreateWatcher(context.Background(), req)
	require.NoError(t, err)
	return &res.Watcher
}

func TestCancelWatcher(t *testing.T) {
	f := newFixture(t)
	w := createActiveWatcher(t, f)

	f.now = f.now.Add(10 * time.Minute)
	cancelled, err := f.svc.CancelWatcher(context.Background(), w.ID, "no longer needed")
	require.NoError(t, err)

	assert.Equal(t, model.WatcherCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)
	assert.Equal(t, f.now, *cancelled.CancelledAt)
	require.NotNil(t, cancelled.CancellationReason)
	assert.Equal(t, "no longer needed", *cancelled.CancellationReason)
	assert.Nil(t, cancelled.NextBillingAt, "cancellation stops recurring billing")
}

func TestCancelWatcherAlreadyCancelled(t *testing.T) {
	f := newFixture(t)
	w := createActiveWatcher(t, f)
	ctx := context.Background()

	_, err := f.svc.CancelWatcher(ctx, w.ID, "")
	require.NoError(t, err)

	_, err = f.svc.CancelWatcher(ctx, w.ID, "")
	require.Error(t, err)
	assert.Equal(t, errs.KindAlreadyCancelled, errs.KindOf(err))
}

func TestCancelWatcherNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CancelWatcher(context.Background(), "wat_missing", "")
	require.Error(t, err)
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
}

func TestRefundEligibilityWithinWindow(t *testing.T) {
	f := newFixture(t)
	w := createActiveWatcher(t, f)
	ctx := context.Background()

	f.now = f.now.Add(30 * time.Minute)
	_, err := f.svc.CancelWatcher(ctx, w.ID, "")
	require.NoError(t, err)

	st, err := f.svc.RefundEligibility(ctx, w.ID)
	require.NoError(t, err)
	assert.True(t, st.Eligible)
}

func TestRefundEligibilityOutsideWindow(t *testing.T) {
	f := newFixture(t)
	w := createActiveWatcher(t, f)
	ctx := context.Background()

	f.now = f.now.Add(RefundEligibilityWindow + time.Minute)
	_, err := f.svc.CancelWatcher(ctx, w.ID, "")
	require.NoError(t, err)

	st, err := f.svc.RefundEligibility(ctx, w.ID)
	require.NoError(t, err)
	assert.False(t, st.Eligible)
	assert.Contains(t, st.Reason, "after creation")
}

func TestRefundEligibilityNotCancelled(t *testing.T) {
	f := newFixture(t)
	w := createActiveWatcher(t, f)

	st, err := f.svc.RefundEligibility(context.Background(), w.ID)
	require.NoError(t, err)
	assert.False(t, st.Eligible)
	assert.Contains(t, st.Reason, "not cancelled")
}

// A watcher that has triggered is permanently ineligible, even inside the
// window. Eligibility can only move eligible -> ineligible, never back.
func TestRefundEligibilityTriggeredIsPermanent(t *testing.T) {
	f := newFixture(t)
	w := createActiveWatcher(t, f)
	ctx := context.Background()

	stored, err := f.watchers.Get(ctx, w.ID)
	require.NoError(t, err)
	stored.TriggerCount = 1
	require.NoError(t, f.watchers.Update(ctx, stored))

	f.now = f.now.Add(5 * time.Minute)
	_, err = f.svc.CancelWatcher(ctx, w.ID, "")
	require.NoError(t, err)

	st, err := f.svc.RefundEligibility(ctx, w.ID)
	require.NoError(t, err)
	assert.False(t, st.Eligible)
	assert.Contains(t, st.Reason, "triggered")
}
