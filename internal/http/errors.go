package http

import (
	"net/http"

	echo "github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"

	"github.com/watchmarket/watchmarket/internal/errs"
)

// writeServiceError maps the service error taxonomy onto HTTP statuses and a
// structured body: {error, reason, details}.
func writeServiceError(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	body := map[string]any{"error": "internal error"}

	if e, ok := err.(*errs.Error); ok {
		switch e.Kind {
		case errs.KindInvalidConfig:
			status = http.StatusBadRequest
		case errs.KindNotFound:
			status = http.StatusNotFound
		case errs.KindTierLimitExceeded:
			status = http.StatusPaymentRequired
		case errs.KindAlreadyCancelled:
			status = http.StatusBadRequest
		default:
			status = http.StatusInternalServerError
		}
		body = map[string]any{"error": e.Message, "reason": e.Reason}
		if len(e.Details) > 0 {
			body["details"] = e.Details
		}
		return c.JSON(status, body)
	}

	log.Errorf("unclassified handler error: %v", err)
	return c.JSON(status, body)
}
