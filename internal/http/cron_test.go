package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/watchmarket/watchmarket/internal/executor"
	"github.com/watchmarket/watchmarket/internal/repository/memory"
	"github.com/watchmarket/watchmarket/internal/service/billing"
	"github.com/watchmarket/watchmarket/internal/service/checker"
	"github.com/watchmarket/watchmarket/internal/service/sla"
	"github.com/watchmarket/watchmarket/internal/webhook"
)

func cronTestServer(t *testing.T) *echo.Echo {
	t.Helper()

	watchers := memory.NewWatchers()
	types := memory.NewWatcherTypes()
	operators := memory.NewOperators()
	payments := memory.NewPayments()
	violations := memory.NewViolations()
	outbox := memory.NewOutbox()

	registry := executor.NewRegistry()
	executor.RegisterDefaults(registry)

	slaEngine := sla.New(violations, payments, "base")
	deliverer := webhook.NewDeliverer(time.Second)

	checkerEngine := checker.New(watchers, types, operators, outbox, registry, deliverer, slaEngine)
	billingEngine := billing.New(watchers, types, operators, payments, outbox, billing.SimulatedSettler{}, "base")

	e := echo.New()
	e.POST("/internal/cron/check", cronCheckHandler(checkerEngine))
	e.POST("/internal/cron/billing", cronBillingHandler(billingEngine))
	return e
}

func TestCronEndpointsReportCountsAndDuration(t *testing.T) {
	e := cronTestServer(t)

	for _, path := range []string{"/internal/cron/check", "/internal/cron/billing"} {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code, path)

		var out map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), path)
		assert.Contains(t, out, "summary", path)
		assert.Contains(t, out, "durationMs", path)
	}
}
