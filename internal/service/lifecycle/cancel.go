package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/watchmarket/watchmarket/internal/errs"
	"github.com/watchmarket/watchmarket/internal/model"
)

// RefundEligibilityWindow: a watcher is refund-eligible only when cancelled
// within this window of creation.
const RefundEligibilityWindow = time.Hour

// CancelWatcher cancels a watcher, recording the reason and clearing the
// billing schedule so no further recurring charges occur. No proration is
// computed here.
func (s *Service) CancelWatcher(ctx context.Context, id, reason string) (*model.Watcher, error) {
	w, err := s.watchers.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("watcher lookup: %w", err)
	}
	if w == nil {
		return nil, errs.NotFound("watcher", id)
	}
	if w.Status == model.WatcherCancelled {
		return nil, errs.AlreadyCancelled(id)
	}

	now := s.Now().UTC()
	w.Status = model.WatcherCancelled
	w.CancelledAt = &now
	if reason != "" {
		w.CancellationReason = &reason
	}
	w.NextBillingAt = nil

	if err := s.watchers.Update(ctx, w); err != nil {
		return nil, fmt.Errorf("persist cancellation: %w", err)
	}
	return w, nil
}

// RefundStatus is a read-only eligibility determination; nothing is mutated
// and no refund is issued here.
type RefundStatus struct {
	WatcherID    string     `json:"watcherId"`
	Eligible     bool       `json:"eligible"`
	Reason       string     `json:"reason"`
	CreatedAt    time.Time  `json:"createdAt"`
	CancelledAt  *time.Time `json:"cancelledAt,omitempty"`
	TriggerCount int64      `json:"triggerCount"`
}

// RefundEligibility: eligible iff the watcher is cancelled, was cancelled
// within RefundEligibilityWindow of creation, and never fired a webhook.
// A single trigger makes it permanently ineligible.
func (s *Service) RefundEligibility(ctx context.Context, id string) (*RefundStatus, error) {
	w, err := s.watchers.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("watcher lookup: %w", err)
	}
	if w == nil {
		return nil, errs.NotFound("watcher", id)
	}

	st := &RefundStatus{
		WatcherID:    w.ID,
		CreatedAt:    w.CreatedAt,
		CancelledAt:  w.CancelledAt,
		TriggerCount: w.TriggerCount,
	}

	switch {
	case w.TriggerCount > 0:
		st.Reason = "watcher has triggered; refunds are only available for unused watchers"
	case w.Status != model.WatcherCancelled:
		st.Reason = "watcher is not cancelled"
	case w.CancelledAt == nil:
		st.Reason = "watcher is not cancelled"
	case w.CancelledAt.Sub(w.CreatedAt) > RefundEligibilityWindow:
		st.Reason = fmt.Sprintf("cancelled more than %s after creation", RefundEligibilityWindow)
	default:
		st.Eligible = true
		st.Reason = fmt.Sprintf("cancelled within %s of creation with no triggers", RefundEligibilityWindow)
	}

	return st, nil
}
