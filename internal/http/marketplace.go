package http

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/watchmarket/watchmarket/internal/model"
	"github.com/watchmarket/watchmarket/internal/service/lifecycle"
)

type registerOperatorReq struct {
	Name          string `json:"name"`
	PayoutAddress string `json:"payoutAddress"`
	Description   string `json:"description"`
}

func registerOperatorHandler(svc *lifecycle.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req registerOperatorReq
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request"})
		}

		op, err := svc.RegisterOperator(c.Request().Context(), req.Name, req.PayoutAddress, req.Description)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(http.StatusCreated, map[string]any{"operator": op})
	}
}

type createTypeReq struct {
	OperatorID   string        `json:"operatorId"`
	Name         string        `json:"name"`
	Category     string        `json:"category"`
	Price        string        `json:"price"` // decimal string, USD
	ConfigSchema model.JSONMap `json:"configSchema"`
	ExecutorID   *string       `json:"executorId"`
}

func createWatcherTypeHandler(svc *lifecycle.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req createTypeReq
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request"})
		}

		price, err := decimal.NewFromString(strings.TrimSpace(req.Price))
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid price"})
		}

		wt, err := svc.CreateWatcherType(c.Request().Context(), lifecycle.TypeRequest{
			OperatorID:   strings.TrimSpace(req.OperatorID),
			Name:         req.Name,
			Category:     req.Category,
			Price:        price,
			ConfigSchema: req.ConfigSchema,
			ExecutorID:   req.ExecutorID,
		})
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(http.StatusCreated, map[string]any{"watcherType": wt})
	}
}

func listWatcherTypesHandler(svc *lifecycle.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		var category model.Category
		if raw := c.QueryParam("category"); raw != "" {
			parsed, ok := model.ParseCategory(raw)
			if !ok {
				return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid category"})
			}
			category = parsed
		}

		limit := queryInt(c, "limit", 50)
		if limit > 200 {
			limit = 200
		}
		offset := queryInt(c, "offset", 0)

		types, err := svc.ListWatcherTypes(c.Request().Context(), category, c.QueryParam("operatorId"), limit, offset)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(http.StatusOK, map[string]any{
			"count":        len(types),
			"watcherTypes": types,
		})
	}
}
