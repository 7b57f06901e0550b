package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/watchmarket/watchmarket/internal/service/billing"
	"github.com/watchmarket/watchmarket/internal/service/checker"
)

// cronCheckHandler runs one checker tick over every active watcher and
// reports the tally. Individual watcher failures are counted, not fatal.
func cronCheckHandler(engine *checker.Engine) echo.HandlerFunc {
	return func(c echo.Context) error {
		sum, err := engine.RunTick(c.Request().Context())
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(http.StatusOK, map[string]any{
			"summary":    sum,
			"durationMs": sum.Duration.Milliseconds(),
		})
	}
}

func cronBillingHandler(engine *billing.Engine) echo.HandlerFunc {
	return func(c echo.Context) error {
		sum, err := engine.ProcessAllDueBillings(c.Request().Context())
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(http.StatusOK, map[string]any{
			"summary":    sum,
			"durationMs": sum.Duration.Milliseconds(),
		})
	}
}
