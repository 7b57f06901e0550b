package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/watchmarket/watchmarket/internal/service/lifecycle"
)

// upgradeCustomerHandler moves a customer to the paid tier. Upgrading an
// already-paid customer is a no-op answered with upgraded=false.
func upgradeCustomerHandler(svc *lifecycle.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		cust, upgraded, err := svc.UpgradeCustomer(c.Request().Context(), c.Param("id"))
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(http.StatusOK, map[string]any{
			"upgraded": upgraded,
			"customer": cust,
		})
	}
}
