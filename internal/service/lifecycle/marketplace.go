package lifecycle

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/watchmarket/watchmarket/internal/errs"
	"github.com/watchmarket/watchmarket/internal/model"
	"github.com/watchmarket/watchmarket/internal/util"
)

// RegisterOperator onboards a service provider. Operators start active and
// are never deleted; only their stats mutate afterwards.
func (s *Service) RegisterOperator(ctx context.Context, name, payoutAddress, description string) (*model.Operator, error) {
	name = strings.TrimSpace(name)
	payoutAddress = strings.TrimSpace(payoutAddress)
	if name == "" {
		return nil, errs.InvalidConfig("missing_name", "operator name is required", nil)
	}
	if payoutAddress == "" {
		return nil, errs.InvalidConfig("missing_payout_address", "payout address is required", nil)
	}

	op := model.Operator{
		ID:            util.NewWithPrefix("opr"),
		Name:          name,
		PayoutAddress: payoutAddress,
		Description:   strings.TrimSpace(description),
		Status:        model.OperatorActive,
		CreatedAt:     s.Now().UTC(),
		UptimePercent: 100,
	}
	if err := s.operators.Create(ctx, op); err != nil {
		return nil, fmt.Errorf("persist operator: %w", err)
	}
	return &op, nil
}

// TypeRequest describes a new marketplace listing.
type TypeRequest struct {
	OperatorID   string
	Name         string
	Category     string
	Price        decimal.Decimal
	ConfigSchema model.JSONMap
	ExecutorID   *string
}

// CreateWatcherType lists a new watcher type for an operator.
func (s *Service) CreateWatcherType(ctx context.Context, req TypeRequest) (*model.WatcherType, error) {
	op, err := s.operators.Get(ctx, req.OperatorID)
	if err != nil {
		return nil, fmt.Errorf("operator lookup: %w", err)
	}
	if op == nil {
		return nil, errs.NotFound("operator", req.OperatorID)
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, errs.InvalidConfig("missing_name", "watcher type name is required", nil)
	}

	category, ok := model.ParseCategory(req.Category)
	if !ok {
		return nil, errs.InvalidConfig("invalid_category",
			fmt.Sprintf("category %q is not offered", req.Category),
			map[string]any{"allowed": []string{"wallet", "price", "contract", "social", "defi", "custom"}})
	}

	if req.Price.LessThan(model.MinTypePrice) {
		return nil, errs.InvalidConfig("price_too_low",
			fmt.Sprintf("price must be at least %s USD", model.MinTypePrice),
			map[string]any{"min_price": model.MinTypePrice.String()})
	}

	if req.ExecutorID != nil {
		if _, ok := s.registry.Lookup(*req.ExecutorID); !ok {
			return nil, errs.InvalidConfig("unknown_executor",
				fmt.Sprintf("executor %q is not registered", *req.ExecutorID), nil)
		}
	}

	wt := model.WatcherType{
		ID:           util.NewWithPrefix("wtp"),
		OperatorID:   req.OperatorID,
		Name:         name,
		Category:     category,
		Price:        req.Price,
		ConfigSchema: req.ConfigSchema,
		ExecutorID:   req.ExecutorID,
		Status:       model.TypeActive,
		CreatedAt:    s.Now().UTC(),
	}
	if err := s.types.Create(ctx, wt); err != nil {
		return nil, fmt.Errorf("persist watcher type: %w", err)
	}
	return &wt, nil
}

// ListWatcherTypes returns the active catalog, optionally narrowed by
// category and operator.
func (s *Service) ListWatcherTypes(ctx context.Context, category model.Category, operatorID string, limit, offset int) ([]model.WatcherType, error) {
	return s.types.List(ctx, category, operatorID, limit, offset)
}

// UpgradeCustomer flips a customer to the paid tier. Settlement of the
// upgrade fee happens on the external payment rail; this records the tier
// transition. Reports upgraded=false when the customer was already paid.
func (s *Service) UpgradeCustomer(ctx context.Context, id string) (*model.Customer, bool, error) {
	c, err := s.customers.Get(ctx, id)
	if err != nil {
		return nil, false, fmt.Errorf("customer lookup: %w", err)
	}
	if c == nil {
		return nil, false, errs.NotFound("customer", id)
	}

	upgraded, err := s.customers.Upgrade(ctx, id, s.Now().UTC())
	if err != nil {
		return nil, false, fmt.Errorf("upgrade: %w", err)
	}

	c, err = s.customers.Get(ctx, id)
	if err != nil {
		return nil, false, fmt.Errorf("customer reload: %w", err)
	}
	return c, upgraded, nil
}
