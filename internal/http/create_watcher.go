package http

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/watchmarket/watchmarket/internal/model"
	"github.com/watchmarket/watchmarket/internal/service/lifecycle"
)

type createWatcherReq struct {
	TypeID          string             `json:"typeId"`
	Config          model.JSONMap      `json:"config"`
	Webhook         string             `json:"webhook"`
	CustomerID      string             `json:"customerId"`
	BillingCycle    string             `json:"billingCycle"`
	PollingInterval int                `json:"pollingInterval"`
	TTLHours        *int               `json:"ttl"`
	RetryPolicy     *model.RetryPolicy `json:"retryPolicy"`
}

func (r createWatcherReq) toServiceRequest() lifecycle.CreateRequest {
	return lifecycle.CreateRequest{
		TypeID:          strings.TrimSpace(r.TypeID),
		Config:          r.Config,
		Webhook:         strings.TrimSpace(r.Webhook),
		CustomerID:      strings.TrimSpace(r.CustomerID),
		BillingCycle:    r.BillingCycle,
		PollingInterval: r.PollingInterval,
		TTLHours:        r.TTLHours,
		RetryPolicy:     r.RetryPolicy,
	}
}

func createWatcherHandler(svc *lifecycle.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req createWatcherReq
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request"})
		}

		res, err := svc.CreateWatcher(c.Request().Context(), req.toServiceRequest())
		if err != nil {
			return writeServiceError(c, err)
		}

		if res.Idempotent {
			// replay of an identical request: nothing new was created or charged
			return c.JSON(http.StatusOK, map[string]any{
				"idempotent": true,
				"watcher":    res.Watcher,
				"receipt":    res.Receipt,
			})
		}

		return c.JSON(http.StatusCreated, map[string]any{
			"watcher": res.Watcher,
			"receipt": res.Receipt,
			"payment": res.Payment,
		})
	}
}
