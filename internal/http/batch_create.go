package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/watchmarket/watchmarket/internal/errs"
	"github.com/watchmarket/watchmarket/internal/service/lifecycle"
)

type batchCreateReq struct {
	Watchers []createWatcherReq `json:"watchers"`
	// CustomerID is the default attribution for items that omit their own.
	CustomerID string `json:"customerId"`
}

type batchItemView struct {
	Index   int            `json:"index"`
	Success bool           `json:"success"`
	Result  any            `json:"result,omitempty"`
	Error   map[string]any `json:"error,omitempty"`
}

// batchCreateHandler answers 201 when every item succeeded, 207 on a mix,
// and 400 when nothing succeeded.
func batchCreateHandler(svc *lifecycle.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req batchCreateReq
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request"})
		}

		items := make([]lifecycle.CreateRequest, 0, len(req.Watchers))
		for _, w := range req.Watchers {
			item := w.toServiceRequest()
			if item.CustomerID == "" {
				item.CustomerID = req.CustomerID
			}
			items = append(items, item)
		}

		res, err := svc.CreateBatch(c.Request().Context(), items)
		if err != nil {
			return writeServiceError(c, err)
		}

		views := make([]batchItemView, 0, len(res.Items))
		for _, it := range res.Items {
			v := batchItemView{Index: it.Index, Success: it.Success}
			if it.Success {
				res := map[string]any{
					"watcher": it.Result.Watcher,
					"receipt": it.Result.Receipt,
				}
				if it.Result.Payment != nil {
					res["payment"] = it.Result.Payment
				}
				if it.Result.Idempotent {
					res["idempotent"] = true
				}
				v.Result = res
			} else {
				v.Error = batchErrorView(it.Error)
			}
			views = append(views, v)
		}

		status := http.StatusCreated
		switch {
		case res.Successful == 0:
			status = http.StatusBadRequest
		case res.Failed > 0:
			status = http.StatusMultiStatus
		}

		return c.JSON(status, map[string]any{
			"successful": res.Successful,
			"failed":     res.Failed,
			"results":    views,
		})
	}
}

func batchErrorView(err error) map[string]any {
	if e, ok := err.(*errs.Error); ok {
		v := map[string]any{"error": e.Message, "reason": e.Reason}
		if len(e.Details) > 0 {
			v["details"] = e.Details
		}
		return v
	}
	return map[string]any{"error": "internal error"}
}
