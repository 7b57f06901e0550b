// Package lifecycle implements the watcher state machine on its write side:
// creation (with idempotent replay and free-tier gating), batch creation,
// cancellation, and the refund-eligibility query.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/watchmarket/watchmarket/internal/errs"
	"github.com/watchmarket/watchmarket/internal/executor"
	"github.com/watchmarket/watchmarket/internal/fingerprint"
	"github.com/watchmarket/watchmarket/internal/logger"
	"github.com/watchmarket/watchmarket/internal/metrics"
	"github.com/watchmarket/watchmarket/internal/model"
	"github.com/watchmarket/watchmarket/internal/repository"
	"github.com/watchmarket/watchmarket/internal/util"
)

// AnonymousCustomerID stands in when a creation request carries no customer.
const AnonymousCustomerID = "anonymous"

// MaxBatchSize bounds one batch-creation call.
const MaxBatchSize = 50

type Service struct {
	operators repository.OperatorsRepository
	types     repository.WatcherTypesRepository
	customers repository.CustomersRepository
	watchers  repository.WatchersRepository
	receipts  repository.ReceiptsRepository
	creations repository.CreationsRepository
	registry  *executor.Registry

	network string
	chain   string
	rail    string

	// BatchPause is the inter-item backpressure pause in batch creation.
	BatchPause time.Duration
	// Now is the clock; overridable in tests.
	Now func() time.Time
}

func New(
	operators repository.OperatorsRepository,
	types repository.WatcherTypesRepository,
	customers repository.CustomersRepository,
	watchers repository.WatchersRepository,
	receipts repository.ReceiptsRepository,
	creations repository.CreationsRepository,
	registry *executor.Registry,
	network, chain, rail string,
) *Service {
	return &Service{
		operators:  operators,
		types:      types,
		customers:  customers,
		watchers:   watchers,
		receipts:   receipts,
		creations:  creations,
		registry:   registry,
		network:    network,
		chain:      chain,
		rail:       rail,
		BatchPause: 100 * time.Millisecond,
		Now:        time.Now,
	}
}

// CreateRequest carries one watcher-creation payload. Zero values select
// defaults: polling 30m, one-time billing, no TTL, default retry policy.
type CreateRequest struct {
	TypeID          string
	Config          model.JSONMap
	Webhook         string
	CustomerID      string
	BillingCycle    string
	PollingInterval int
	TTLHours        *int
	RetryPolicy     *model.RetryPolicy
}

// CreateResult is the creation outcome. On an idempotent replay Payment is
// nil and Idempotent is true: nothing new was created or charged.
type CreateResult struct {
	Idempotent bool
	Watcher    model.Watcher
	Receipt    model.Receipt
	Payment    *model.Payment
}

// CreateWatcher runs the full creation pipeline: input validation,
// idempotency lookup, customer/type/operator resolution, tier gating,
// billing schedule computation, executor config validation, then persistence
// of watcher + payment + receipt and the stat increments.
func (s *Service) CreateWatcher(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	now := s.Now().UTC()

	interval := req.PollingInterval
	if interval == 0 {
		interval = 30
	}
	if !slices.Contains(model.AllowedPollingIntervals, interval) {
		return nil, errs.InvalidConfig("invalid_polling_interval",
			fmt.Sprintf("polling interval %d minutes is not offered", interval),
			map[string]any{"allowed_minutes": model.AllowedPollingIntervals})
	}

	if req.TTLHours != nil && !slices.Contains(model.AllowedTTLHours, *req.TTLHours) {
		return nil, errs.InvalidConfig("invalid_ttl",
			fmt.Sprintf("ttl of %d hours is not offered", *req.TTLHours),
			map[string]any{"allowed_hours": model.AllowedTTLHours})
	}

	policy := model.DefaultRetryPolicy()
	if req.RetryPolicy != nil {
		policy = *req.RetryPolicy
		if policy.MaxRetries < 0 || policy.MaxRetries > model.MaxRetries {
			return nil, errs.InvalidConfig("invalid_retry_policy",
				fmt.Sprintf("maxRetries must be between 0 and %d", model.MaxRetries),
				map[string]any{"max_retries_range": []int{0, model.MaxRetries}})
		}
		if policy.BackoffMs <= 0 {
			return nil, errs.InvalidConfig("invalid_retry_policy",
				"backoffMs is required and must be positive", nil)
		}
	}

	customerID := req.CustomerID
	if customerID == "" {
		customerID = AnonymousCustomerID
	}

	// Idempotency gate: an identical earlier request short-circuits the
	// rest of the pipeline and replays its receipt.
	hash, err := fingerprint.Compute(req.TypeID, req.Config, req.Webhook, customerID)
	if err != nil {
		return nil, err
	}
	if existing, err := s.receipts.GetByHash(ctx, hash); err != nil {
		return nil, fmt.Errorf("receipt lookup: %w", err)
	} else if existing != nil {
		return s.replayReceipt(ctx, existing)
	}

	customer, err := s.resolveCustomer(ctx, customerID, now)
	if err != nil {
		return nil, err
	}

	wt, err := s.types.Get(ctx, req.TypeID)
	if err != nil {
		return nil, fmt.Errorf("type lookup: %w", err)
	}
	if wt == nil {
		return nil, errs.NotFound("watcher_type", req.TypeID)
	}

	if customer.Tier == model.TierFree {
		if customer.FreeWatchersUsed >= model.FreeTierWatcherCap {
			return nil, errs.TierLimitExceeded(
				fmt.Sprintf("free tier allows %d watcher(s); upgrade to create more", model.FreeTierWatcherCap),
				map[string]any{
					"free_watcher_cap": model.FreeTierWatcherCap,
					"upgrade":          "/v1/customers/" + customerID + "/upgrade",
				})
		}
		// Free tier floors the cadence silently; the stored value is
		// authoritative, the caller is not told.
		if interval < model.FreeTierPollingFloorMinutes {
			interval = model.FreeTierPollingFloorMinutes
		}
	}

	op, err := s.operators.Get(ctx, wt.OperatorID)
	if err != nil {
		return nil, fmt.Errorf("operator lookup: %w", err)
	}
	if op == nil {
		return nil, errs.NotFound("operator", wt.OperatorID)
	}

	if !util.ValidWebhookURL(req.Webhook) {
		return nil, errs.InvalidConfig("invalid_webhook",
			"webhook must be a valid http(s) URL", nil)
	}

	cycle, ok := model.ParseBillingCycle(req.BillingCycle)
	if !ok {
		return nil, errs.InvalidConfig("invalid_billing_cycle",
			fmt.Sprintf("billing cycle %q is not offered", req.BillingCycle),
			map[string]any{"allowed": []string{"one-time", "weekly", "monthly"}})
	}

	var nextBilling *time.Time
	switch cycle {
	case model.CycleWeekly:
		t := now.AddDate(0, 0, 7)
		nextBilling = &t
	case model.CycleMonthly:
		// Native calendar rollover: Jan 31 + 1 month normalizes into March.
		t := now.AddDate(0, 1, 0)
		nextBilling = &t
	}

	if wt.ExecutorID != nil {
		if ex, ok := s.registry.Lookup(*wt.ExecutorID); ok {
			if v, ok := ex.(executor.Validator); ok {
				if verrs := v.ValidateConfig(req.Config); len(verrs) > 0 {
					return nil, errs.InvalidConfig("invalid_executor_config",
						"config rejected by executor", map[string]any{"errors": verrs})
				}
			}
		}
	}

	var expiresAt *time.Time
	if req.TTLHours != nil {
		t := now.Add(time.Duration(*req.TTLHours) * time.Hour)
		expiresAt = &t
	}

	w := model.Watcher{
		ID:                     util.NewWithPrefix("wat"),
		TypeID:                 wt.ID,
		OperatorID:             wt.OperatorID,
		CustomerID:             customerID,
		Config:                 req.Config,
		WebhookURL:             req.Webhook,
		Status:                 model.WatcherActive,
		CreatedAt:              now,
		ExpiresAt:              expiresAt,
		BillingCycle:           cycle,
		NextBillingAt:          nextBilling,
		BillingHistory:         model.BillingHistory{},
		PollingIntervalMinutes: interval,
		TTLHours:               req.TTLHours,
		RetryPolicy:            policy,
		SLA:                    model.NewSLAInfo(),
	}
	opShare, platShare := model.SplitAmount(wt.Price)
	payment := model.Payment{
		ID:            util.NewWithPrefix("pay"),
		WatcherID:     w.ID,
		OperatorID:    wt.OperatorID,
		CustomerID:    customerID,
		Amount:        wt.Price,
		OperatorShare: opShare,
		PlatformShare: platShare,
		Network:       s.network,
		CreatedAt:     now,
	}
	receipt := model.Receipt{
		ID:              util.NewWithPrefix("rcp"),
		WatcherID:       w.ID,
		TypeID:          wt.ID,
		Amount:          wt.Price,
		Chain:           s.chain,
		Rail:            s.rail,
		Timestamp:       now,
		FulfillmentHash: hash,
		CustomerID:      customerID,
		OperatorID:      wt.OperatorID,
		PaymentID:       payment.ID,
	}
	// Watcher, payment, and receipt commit or roll back together. When an
	// identical request wins the race, its receipt holds the fulfillment
	// hash and this unit vanishes; the winner's result is replayed instead
	// of surfacing an error.
	if err := s.creations.Persist(ctx, w, payment, receipt); err != nil {
		if errors.Is(err, repository.ErrDuplicateFulfillment) {
			existing, lerr := s.receipts.GetByHash(ctx, hash)
			if lerr != nil {
				return nil, fmt.Errorf("receipt lookup after duplicate: %w", lerr)
			}
			if existing == nil {
				return nil, fmt.Errorf("persist creation: %w", err)
			}
			return s.replayReceipt(ctx, existing)
		}
		return nil, fmt.Errorf("persist creation: %w", err)
	}

	if err := s.operators.IncrementStats(ctx, op.ID, 1, 0, opShare); err != nil {
		logger.Log.Error("operator stat increment failed", zap.String("operator_id", op.ID), zap.Error(err))
	}
	if err := s.types.IncrementStats(ctx, wt.ID, 1, 0); err != nil {
		logger.Log.Error("type stat increment failed", zap.String("type_id", wt.ID), zap.Error(err))
	}
	freeUsed := 0
	if customer.Tier == model.TierFree {
		freeUsed = 1
	}
	if err := s.customers.IncrementUsage(ctx, customerID, freeUsed, 1, wt.Price); err != nil {
		logger.Log.Error("customer stat increment failed", zap.String("customer_id", customerID), zap.Error(err))
	}

	metrics.WatchersCreatedTotal.WithLabelValues(customer.Tier.String()).Inc()

	return &CreateResult{Watcher: w, Receipt: receipt, Payment: &payment}, nil
}

// replayReceipt rebuilds the idempotent result for an identical request
// that already committed.
func (s *Service) replayReceipt(ctx context.Context, rc *model.Receipt) (*CreateResult, error) {
	w, err := s.watchers.Get(ctx, rc.WatcherID)
	if err != nil {
		return nil, fmt.Errorf("replay watcher lookup: %w", err)
	}
	if w == nil {
		return nil, errs.NotFound("watcher", rc.WatcherID)
	}
	return &CreateResult{Idempotent: true, Watcher: *w, Receipt: *rc}, nil
}

func (s *Service) resolveCustomer(ctx context.Context, id string, now time.Time) (*model.Customer, error) {
	c, err := s.customers.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("customer lookup: %w", err)
	}
	if c != nil {
		return c, nil
	}

	nc := model.Customer{ID: id, Tier: model.TierFree, CreatedAt: now}
	if err := s.customers.Create(ctx, nc); err != nil {
		return nil, fmt.Errorf("customer create: %w", err)
	}
	return &nc, nil
}

// BatchItemResult reports one batch item's outcome in its original position.
type BatchItemResult struct {
	Index   int            `json:"index"`
	Success bool           `json:"success"`
	Result  *CreateResult  `json:"result,omitempty"`
	Error   error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// BatchResult summarizes a batch creation; partial failure is the normal,
// expected shape, not an exception.
type BatchResult struct {
	Successful int
	Failed     int
	Items      []BatchItemResult
}

// CreateBatch processes up to MaxBatchSize requests through the same
// pipeline, isolating per-item failures and pausing briefly between items
// for backpressure. Sibling successes are never rolled back.
func (s *Service) CreateBatch(ctx context.Context, reqs []CreateRequest) (*BatchResult, error) {
	if len(reqs) == 0 {
		return nil, errs.InvalidConfig("empty_batch", "batch requires at least one watcher", nil)
	}
	if len(reqs) > MaxBatchSize {
		return nil, errs.InvalidConfig("batch_too_large",
			fmt.Sprintf("batch size %d exceeds the limit", len(reqs)),
			map[string]any{"max_batch_size": MaxBatchSize})
	}

	out := &BatchResult{Items: make([]BatchItemResult, 0, len(reqs))}
	for i, req := range reqs {
		if i > 0 && s.BatchPause > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(s.BatchPause):
			}
		}

		res, err := s.CreateWatcher(ctx, req)
		if err != nil {
			out.Failed++
			out.Items = append(out.Items, BatchItemResult{Index: i, Error: err})
			continue
		}
		out.Successful++
		out.Items = append(out.Items, BatchItemResult{Index: i, Success: true, Result: res})
	}
	return out, nil
}
