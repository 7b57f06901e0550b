package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/watchmarket/watchmarket/internal/model"
	"github.com/watchmarket/watchmarket/internal/util"
)

// PriceThresholdExecutor fetches a JSON price feed and triggers when the
// price crosses the configured threshold.
//
// Config:
//
//	feed_url  - http(s) endpoint returning a JSON object
//	field     - object key holding the price (default "price")
//	direction - "above" | "below"
//	threshold - numeric bound
type PriceThresholdExecutor struct {
	client *http.Client
	br     *Breaker
}

func NewPriceThresholdExecutor() *PriceThresholdExecutor {
	return &PriceThresholdExecutor{
		client: &http.Client{},
		br:     NewBreaker(3, 30*time.Second),
	}
}

var (
	_ Executor  = (*PriceThresholdExecutor)(nil)
	_ Validator = (*PriceThresholdExecutor)(nil)
)

func (e *PriceThresholdExecutor) ValidateConfig(config model.JSONMap) []string {
	var errors []string

	raw, _ := config["feed_url"].(string)
	if !util.ValidWebhookURL(raw) {
		errors = append(errors, "feed_url must be a valid http(s) URL")
	}

	dir, _ := config["direction"].(string)
	if dir != "above" && dir != "below" {
		errors = append(errors, `direction must be "above" or "below"`)
	}

	if _, ok := config["threshold"].(float64); !ok {
		errors = append(errors, "threshold must be a number")
	}

	return errors
}

func (e *PriceThresholdExecutor) Check(ctx context.Context, config model.JSONMap) (Result, error) {
	feedURL, _ := config["feed_url"].(string)
	if feedURL == "" {
		return Result{}, fmt.Errorf("price_threshold: missing feed_url")
	}

	field, _ := config["field"].(string)
	if field == "" {
		field = "price"
	}
	dir, _ := config["direction"].(string)
	threshold, ok := config["threshold"].(float64)
	if !ok {
		return Result{}, fmt.Errorf("price_threshold: missing threshold")
	}

	if !e.br.TryAcquire() {
		return Result{}, fmt.Errorf("price_threshold: circuit open for %s", feedURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		e.br.OnFailure()
		return Result{}, err
	}

	res, err := e.client.Do(req)
	if err != nil {
		e.br.OnFailure()
		return Result{}, fmt.Errorf("price_threshold: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode/100 != 2 {
		e.br.OnFailure()
		return Result{}, fmt.Errorf("price_threshold: feed status=%d", res.StatusCode)
	}

	var body map[string]any
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		e.br.OnFailure()
		return Result{}, fmt.Errorf("price_threshold: decode feed: %w", err)
	}

	price, ok := body[field].(float64)
	if !ok {
		e.br.OnFailure()
		return Result{}, fmt.Errorf("price_threshold: feed missing numeric field %q", field)
	}

	e.br.OnSuccess()

	triggered := false
	switch dir {
	case "above":
		triggered = price > threshold
	case "below":
		triggered = price < threshold
	}

	return Result{
		Triggered: triggered,
		Data: map[string]any{
			"price":     price,
			"threshold": threshold,
			"direction": dir,
		},
	}, nil
}
