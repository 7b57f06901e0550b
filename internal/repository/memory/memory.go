// Package memory provides in-memory repository implementations backing unit
// tests and local development without a MySQL instance.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/watchmarket/watchmarket/internal/errs"
	"github.com/watchmarket/watchmarket/internal/model"
	"github.com/watchmarket/watchmarket/internal/repository"
)

type Operators struct {
	mu   sync.Mutex
	rows map[string]model.Operator
}

func NewOperators() *Operators {
	return &Operators{rows: make(map[string]model.Operator)}
}

var _ repository.OperatorsRepository = (*Operators)(nil)

func (s *Operators) Get(_ context.Context, id string) (*model.Operator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	op, ok := s.rows[id]
	if !ok {
		return nil, nil
	}
	return &op, nil
}

func (s *Operators) Create(_ context.Context, op model.Operator) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[op.ID] = op
	return nil
}

func (s *Operators) IncrementStats(_ context.Context, id string, watchersCreated, triggers int64, earned decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	op, ok := s.rows[id]
	if !ok {
		return errs.NotFound("operator", id)
	}
	op.WatchersCreated += watchersCreated
	op.TotalTriggers += triggers
	op.TotalEarned = op.TotalEarned.Add(earned)
	s.rows[id] = op
	return nil
}

type WatcherTypes struct {
	mu   sync.Mutex
	rows map[string]model.WatcherType
}

func NewWatcherTypes() *WatcherTypes {
	return &WatcherTypes{rows: make(map[string]model.WatcherType)}
}

var _ repository.WatcherTypesRepository = (*WatcherTypes)(nil)

func (s *WatcherTypes) Get(_ context.Context, id string) (*model.WatcherType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wt, ok := s.rows[id]
	if !ok {
		return nil, nil
	}
	return &wt, nil
}

func (s *WatcherTypes) List(_ context.Context, category model.Category, operatorID string, limit, offset int) ([]model.WatcherType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.WatcherType
	for _, wt := range s.rows {
		if wt.Status != model.TypeActive {
			continue
		}
		if category != "" && wt.Category != category {
			continue
		}
		if operatorID != "" && wt.OperatorID != operatorID {
			continue
		}
		out = append(out, wt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, limit, offset), nil
}

func (s *WatcherTypes) Create(_ context.Context, wt model.WatcherType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[wt.ID] = wt
	return nil
}

func (s *WatcherTypes) IncrementStats(_ context.Context, id string, instances, triggers int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	wt, ok := s.rows[id]
	if !ok {
		return errs.NotFound("watcher_type", id)
	}
	wt.Instances += instances
	wt.Triggers += triggers
	s.rows[id] = wt
	return nil
}

type Customers struct {
	mu   sync.Mutex
	rows map[string]model.Customer
}

func NewCustomers() *Customers {
	return &Customers{rows: make(map[string]model.Customer)}
}

var _ repository.CustomersRepository = (*Customers)(nil)

func (s *Customers) Get(_ context.Context, id string) (*model.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.rows[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (s *Customers) Create(_ context.Context, c model.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[c.ID]; ok {
		return nil // upsert semantics, matching ON DUPLICATE KEY UPDATE id=id
	}
	s.rows[c.ID] = c
	return nil
}

func (s *Customers) IncrementUsage(_ context.Context, id string, freeWatchers int, watchersCreated int64, spent decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.rows[id]
	if !ok {
		return errs.NotFound("customer", id)
	}
	c.FreeWatchersUsed += freeWatchers
	c.TotalWatchersCreated += watchersCreated
	c.TotalSpent = c.TotalSpent.Add(spent)
	s.rows[id] = c
	return nil
}

func (s *Customers) Upgrade(_ context.Context, id string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.rows[id]
	if !ok || c.Tier != model.TierFree {
		return false, nil
	}
	c.Tier = model.TierPaid
	c.UpgradedAt = &at
	s.rows[id] = c
	return true, nil
}

type Watchers struct {
	mu    sync.Mutex
	rows  map[string]model.Watcher
	order []string // insertion order, stands in for created_at ordering
}

func NewWatchers() *Watchers {
	return &Watchers{rows: make(map[string]model.Watcher)}
}

var _ repository.WatchersRepository = (*Watchers)(nil)

func (s *Watchers) Get(_ context.Context, id string) (*model.Watcher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.rows[id]
	if !ok {
		return nil, nil
	}
	return &w, nil
}

func (s *Watchers) Create(_ context.Context, w model.Watcher) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[w.ID]; !ok {
		s.order = append(s.order, w.ID)
	}
	s.rows[w.ID] = w
	return nil
}

func (s *Watchers) Update(_ context.Context, w *model.Watcher) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[w.ID]; !ok {
		return errs.NotFound("watcher", w.ID)
	}
	s.rows[w.ID] = *w
	return nil
}

func (s *Watchers) ListActive(_ context.Context) ([]model.Watcher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Watcher
	for _, id := range s.order {
		if w := s.rows[id]; w.Status == model.WatcherActive {
			out = append(out, w)
		}
	}
	return out, nil
}

func (s *Watchers) ListDueBilling(_ context.Context, now time.Time) ([]model.Watcher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Watcher
	for _, id := range s.order {
		w := s.rows[id]
		if w.Status != model.WatcherActive || w.BillingCycle == model.CycleOneTime {
			continue
		}
		if w.NextBillingAt == nil || w.NextBillingAt.After(now) {
			continue
		}
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NextBillingAt.Before(*out[j].NextBillingAt) })
	return out, nil
}

type Payments struct {
	mu   sync.Mutex
	rows []model.Payment
}

func NewPayments() *Payments { return &Payments{} }

var _ repository.PaymentsRepository = (*Payments)(nil)

func (s *Payments) Create(_ context.Context, p model.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, p)
	return nil
}

func (s *Payments) SumForWatcherSince(_ context.Context, watcherID string, since time.Time) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum := decimal.Zero
	for _, p := range s.rows {
		if p.WatcherID == watcherID && !p.CreatedAt.Before(since) {
			sum = sum.Add(p.Amount)
		}
	}
	return sum, nil
}

func (s *Payments) ListByWatcher(_ context.Context, watcherID string, limit int) ([]model.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Payment
	for _, p := range s.rows {
		if p.WatcherID == watcherID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type Receipts struct {
	mu     sync.Mutex
	byHash map[string]model.Receipt
}

func NewReceipts() *Receipts {
	return &Receipts{byHash: make(map[string]model.Receipt)}
}

var _ repository.ReceiptsRepository = (*Receipts)(nil)

func (s *Receipts) GetByHash(_ context.Context, fulfillmentHash string) (*model.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rc, ok := s.byHash[fulfillmentHash]
	if !ok {
		return nil, nil
	}
	return &rc, nil
}

// Creations mirrors the transactional creation unit: the receipt hash is
// reserved first under the receipts lock, so a racing identical request
// fails before any sibling row lands.
type Creations struct {
	watchers *Watchers
	payments *Payments
	receipts *Receipts
}

func NewCreations(w *Watchers, p *Payments, r *Receipts) *Creations {
	return &Creations{watchers: w, payments: p, receipts: r}
}

var _ repository.CreationsRepository = (*Creations)(nil)

func (s *Creations) Persist(ctx context.Context, w model.Watcher, p model.Payment, rc model.Receipt) error {
	s.receipts.mu.Lock()
	if _, ok := s.receipts.byHash[rc.FulfillmentHash]; ok {
		s.receipts.mu.Unlock()
		return repository.ErrDuplicateFulfillment
	}
	s.receipts.byHash[rc.FulfillmentHash] = rc
	s.receipts.mu.Unlock()

	if err := s.watchers.Create(ctx, w); err != nil {
		return err
	}
	return s.payments.Create(ctx, p)
}

type Violations struct {
	mu   sync.Mutex
	rows map[string]model.SLAViolation
}

func NewViolations() *Violations {
	return &Violations{rows: make(map[string]model.SLAViolation)}
}

var _ repository.ViolationsRepository = (*Violations)(nil)

func (s *Violations) Get(_ context.Context, id string) (*model.SLAViolation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.rows[id]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (s *Violations) Create(_ context.Context, v model.SLAViolation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[v.ID] = v
	return nil
}

func (s *Violations) SetRefund(_ context.Context, id string, amount decimal.Decimal, refundID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.rows[id]
	if !ok {
		return errs.NotFound("sla_violation", id)
	}
	v.RefundAmount = &amount
	v.RefundID = &refundID
	s.rows[id] = v
	return nil
}

func (s *Violations) Acknowledge(_ context.Context, id, resolution string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.rows[id]
	if !ok {
		return false, nil
	}
	v.Acknowledged = true
	v.Resolution = &resolution
	s.rows[id] = v
	return true, nil
}

func (s *Violations) ListByWatcher(_ context.Context, watcherID string, limit int) ([]model.SLAViolation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.SLAViolation
	for _, v := range s.rows {
		if v.WatcherID == watcherID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Outbox records staged events for assertions; no relay runs in tests.
type Outbox struct {
	mu     sync.Mutex
	events []model.CheckEvent
}

func NewOutbox() *Outbox { return &Outbox{} }

var _ repository.OutboxRepository = (*Outbox)(nil)

func (s *Outbox) PublishCheckEvent(_ context.Context, ev model.CheckEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *Outbox) Events() []model.CheckEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.CheckEvent, len(s.events))
	copy(out, s.events)
	return out
}

func paginate[T any](rows []T, limit, offset int) []T {
	if offset >= len(rows) {
		return nil
	}
	rows = rows[offset:]
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows
}
