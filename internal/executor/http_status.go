package executor

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/watchmarket/watchmarket/internal/model"
	"github.com/watchmarket/watchmarket/internal/util"
)

// HTTPStatusExecutor polls a URL and triggers when the response status
// deviates from the expected one (default 200). Used by contract/custom
// watcher types as a generic endpoint monitor.
type HTTPStatusExecutor struct {
	client *http.Client
	br     *Breaker
}

func NewHTTPStatusExecutor() *HTTPStatusExecutor {
	return &HTTPStatusExecutor{
		client: &http.Client{}, // per-call deadline comes from ctx
		br:     NewBreaker(3, 30*time.Second),
	}
}

var (
	_ Executor  = (*HTTPStatusExecutor)(nil)
	_ Validator = (*HTTPStatusExecutor)(nil)
)

func (e *HTTPStatusExecutor) ValidateConfig(config model.JSONMap) []string {
	var errors []string
	raw, _ := config["url"].(string)
	if !util.ValidWebhookURL(raw) {
		errors = append(errors, "url must be a valid http(s) URL")
	}
	if v, ok := config["expect_status"]; ok {
		if f, ok := v.(float64); !ok || f < 100 || f > 599 {
			errors = append(errors, "expect_status must be an HTTP status code")
		}
	}
	return errors
}

func (e *HTTPStatusExecutor) Check(ctx context.Context, config model.JSONMap) (Result, error) {
	rawURL, _ := config["url"].(string)
	if rawURL == "" {
		return Result{}, fmt.Errorf("http_status: missing url")
	}

	expect := 200
	if f, ok := config["expect_status"].(float64); ok {
		expect = int(f)
	}

	if !e.br.TryAcquire() {
		return Result{}, fmt.Errorf("http_status: circuit open for %s", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		e.br.OnFailure()
		return Result{}, err
	}

	res, err := e.client.Do(req)
	if err != nil {
		e.br.OnFailure()
		return Result{}, fmt.Errorf("http_status: %w", err)
	}
	defer res.Body.Close()

	e.br.OnSuccess()

	return Result{
		Triggered: res.StatusCode != expect,
		Data: map[string]any{
			"url":             rawURL,
			"status":          res.StatusCode,
			"expected_status": expect,
		},
	}, nil
}
