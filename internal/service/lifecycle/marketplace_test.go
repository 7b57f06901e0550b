package lifecycle

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/watchmarket/watchmarket/internal/errs"
	"github.com/watchmarket/watchmarket/internal/model"
)

func TestRegisterOperator(t *testing.T) {
	f := newFixture(t)

	op, err := f.svc.RegisterOperator(context.Background(), "  ChainWatch Labs  ", "0x1111111111111111111111111111111111111111", " on-chain monitoring ")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(op.ID, "opr_"), "id %q", op.ID)
	assert.Equal(t, "ChainWatch Labs", op.Name)
	assert.Equal(t, "on-chain monitoring", op.Description)
	assert.Equal(t, model.OperatorActive, op.Status)
	assert.Equal(t, float64(100), op.UptimePercent)
	assert.Equal(t, f.now, op.CreatedAt)

	stored, err := f.operators.Get(context.Background(), op.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
}

func TestRegisterOperatorValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.RegisterOperator(context.Background(), "   ", "0xabc", "")
	assertInvalidConfig(t, err, "missing_name")

	_, err = f.svc.RegisterOperator(context.Background(), "Ops", "  ", "")
	assertInvalidConfig(t, err, "missing_payout_address")
}

func validTypeRequest() TypeRequest {
	return TypeRequest{
		OperatorID: "opr_test",
		Name:       "Gas Price Watch",
		Category:   "price",
		Price:      decimal.RequireFromString("0.05"),
	}
}

func TestCreateWatcherType(t *testing.T) {
	f := newFixture(t)

	exec := "http_status"
	req := validTypeRequest()
	req.ExecutorID = &exec
	req.ConfigSchema = model.JSONMap{"url": "string"}

	wt, err := f.svc.CreateWatcherType(context.Background(), req)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(wt.ID, "wtp_"), "id %q", wt.ID)
	assert.Equal(t, "opr_test", wt.OperatorID)
	assert.Equal(t, model.CategoryPrice, wt.Category)
	assert.Equal(t, model.TypeActive, wt.Status)
	require.NotNil(t, wt.ExecutorID)
	assert.Equal(t, "http_status", *wt.ExecutorID)
}

func TestCreateWatcherTypeUnknownOperator(t *testing.T) {
	f := newFixture(t)

	req := validTypeRequest()
	req.OperatorID = "opr_nope"
	_, err := f.svc.CreateWatcherType(context.Background(), req)

	var e *errsError
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errs.KindNotFound, e.Kind)
}

func TestCreateWatcherTypeValidation(t *testing.T) {
	f := newFixture(t)

	req := validTypeRequest()
	req.Name = "  "
	_, err := f.svc.CreateWatcherType(context.Background(), req)
	assertInvalidConfig(t, err, "missing_name")

	req = validTypeRequest()
	req.Category = "weather"
	_, err = f.svc.CreateWatcherType(context.Background(), req)
	assertInvalidConfig(t, err, "invalid_category")

	req = validTypeRequest()
	req.Price = decimal.RequireFromString("0.0001")
	_, err = f.svc.CreateWatcherType(context.Background(), req)
	assertInvalidConfig(t, err, "price_too_low")

	exec := "no_such_executor"
	req = validTypeRequest()
	req.ExecutorID = &exec
	_, err = f.svc.CreateWatcherType(context.Background(), req)
	assertInvalidConfig(t, err, "unknown_executor")
}

func TestCreateWatcherTypeEmptyCategoryDefaultsCustom(t *testing.T) {
	f := newFixture(t)

	req := validTypeRequest()
	req.Category = ""
	wt, err := f.svc.CreateWatcherType(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, model.CategoryCustom, wt.Category)
}

func TestListWatcherTypesFiltering(t *testing.T) {
	f := newFixture(t)

	for i, cat := range []model.Category{model.CategoryWallet, model.CategoryWallet, model.CategoryPrice} {
		require.NoError(t, f.types.Create(context.Background(), model.WatcherType{
			ID:         "wtp_list_" + string(cat) + string(rune('a'+i)),
			OperatorID: "opr_test",
			Name:       "Listed",
			Category:   cat,
			Price:      decimal.RequireFromString("0.01"),
			Status:     model.TypeActive,
			CreatedAt:  f.now.Add(time.Duration(i) * time.Minute),
		}))
	}
	// deprecated listings stay out of the catalog
	require.NoError(t, f.types.Create(context.Background(), model.WatcherType{
		ID:         "wtp_list_deprecated",
		OperatorID: "opr_test",
		Name:       "Deprecated",
		Category:   model.CategoryWallet,
		Status:     model.TypeDeprecated,
	}))

	wallets, err := f.svc.ListWatcherTypes(context.Background(), model.CategoryWallet, "", 50, 0)
	require.NoError(t, err)
	assert.Len(t, wallets, 2)

	all, err := f.svc.ListWatcherTypes(context.Background(), "", "opr_test", 50, 0)
	require.NoError(t, err)
	assert.Len(t, all, 4) // fixture type plus the three seeded above
}

func TestUpgradeCustomer(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.customers.Create(context.Background(), model.Customer{
		ID:   "cust_free",
		Tier: model.TierFree,
	}))

	c, upgraded, err := f.svc.UpgradeCustomer(context.Background(), "cust_free")
	require.NoError(t, err)
	assert.True(t, upgraded)
	assert.Equal(t, model.TierPaid, c.Tier)
	require.NotNil(t, c.UpgradedAt)
	assert.Equal(t, f.now, *c.UpgradedAt)

	// a second upgrade is a no-op
	c, upgraded, err = f.svc.UpgradeCustomer(context.Background(), "cust_free")
	require.NoError(t, err)
	assert.False(t, upgraded)
	assert.Equal(t, model.TierPaid, c.Tier)
}

func TestUpgradeCustomerNotFound(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.svc.UpgradeCustomer(context.Background(), "cust_missing")
	var e *errsError
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errs.KindNotFound, e.Kind)
}
