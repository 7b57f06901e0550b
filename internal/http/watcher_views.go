package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/watchmarket/watchmarket/internal/errs"
	"github.com/watchmarket/watchmarket/internal/repository"
	"github.com/watchmarket/watchmarket/internal/service/sla"
)

func getWatcherHandler(watchers repository.WatchersRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		w, err := watchers.Get(c.Request().Context(), c.Param("id"))
		if err != nil {
			return writeServiceError(c, err)
		}
		if w == nil {
			return writeServiceError(c, errs.NotFound("watcher", c.Param("id")))
		}
		return c.JSON(http.StatusOK, map[string]any{"watcher": w})
	}
}

func billingHistoryHandler(watchers repository.WatchersRepository, payments repository.PaymentsRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		w, err := watchers.Get(ctx, c.Param("id"))
		if err != nil {
			return writeServiceError(c, err)
		}
		if w == nil {
			return writeServiceError(c, errs.NotFound("watcher", c.Param("id")))
		}

		pays, err := payments.ListByWatcher(ctx, w.ID, 100)
		if err != nil {
			return writeServiceError(c, err)
		}

		return c.JSON(http.StatusOK, map[string]any{
			"watcherId":     w.ID,
			"billingCycle":  w.BillingCycle,
			"status":        w.Status,
			"nextBillingAt": w.NextBillingAt,
			"records":       w.BillingHistory,
			"payments":      pays,
		})
	}
}

func slaStatusHandler(watchers repository.WatchersRepository, violations repository.ViolationsRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		w, err := watchers.Get(ctx, c.Param("id"))
		if err != nil {
			return writeServiceError(c, err)
		}
		if w == nil {
			return writeServiceError(c, errs.NotFound("watcher", c.Param("id")))
		}

		vs, err := violations.ListByWatcher(ctx, w.ID, 50)
		if err != nil {
			return writeServiceError(c, err)
		}

		return c.JSON(http.StatusOK, map[string]any{
			"watcherId":           w.ID,
			"uptimePercent":       sla.UptimePercent(w.SLA, time.Now().UTC()),
			"consecutiveFailures": w.ConsecutiveFailures,
			"downtimePeriods":     w.SLA.DowntimePeriods,
			"violations":          vs,
		})
	}
}

func listEventsHandler(events repository.CHEventsRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		limit := queryInt(c, "limit", 100)
		if limit > 1000 {
			limit = 1000
		}
		offset := queryInt(c, "offset", 0)

		rows, err := events.ListByWatcher(c.Request().Context(), c.Param("id"), c.QueryParam("event"), limit, offset)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(http.StatusOK, map[string]any{
			"watcherId": c.Param("id"),
			"count":     len(rows),
			"events":    rows,
		})
	}
}

func queryInt(c echo.Context, name string, def int) int {
	s := c.QueryParam(name)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return def
	}
	return n
}
