package http

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/watchmarket/watchmarket/internal/errs"
	"github.com/watchmarket/watchmarket/internal/repository"
)

type acknowledgeReq struct {
	Resolution string `json:"resolution"`
}

func acknowledgeViolationHandler(violations repository.ViolationsRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req acknowledgeReq
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request"})
		}
		resolution := strings.TrimSpace(req.Resolution)
		if resolution == "" {
			resolution = "acknowledged"
		}

		ok, err := violations.Acknowledge(c.Request().Context(), c.Param("id"), resolution)
		if err != nil {
			return writeServiceError(c, err)
		}
		if !ok {
			return writeServiceError(c, errs.NotFound("violation", c.Param("id")))
		}
		return c.JSON(http.StatusOK, map[string]any{
			"acknowledged": true,
			"violationId":  c.Param("id"),
		})
	}
}
