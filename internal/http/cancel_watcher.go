package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/watchmarket/watchmarket/internal/service/lifecycle"
)

type cancelReq struct {
	Reason string `json:"reason"`
}

func cancelWatcherHandler(svc *lifecycle.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req cancelReq
		// body is optional on DELETE
		_ = c.Bind(&req)

		w, err := svc.CancelWatcher(c.Request().Context(), c.Param("id"), req.Reason)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(http.StatusOK, map[string]any{"watcher": w})
	}
}

func refundStatusHandler(svc *lifecycle.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		st, err := svc.RefundEligibility(c.Request().Context(), c.Param("id"))
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(http.StatusOK, st)
	}
}
