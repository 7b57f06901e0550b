package executor

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/watchmarket/watchmarket/internal/model"
)

func TestRegistryDefaults(t *testing.T) {
	r := NewRegistry()
	RegisterDefaults(r)

	_, ok := r.Lookup("http_status")
	assert.True(t, ok)
	_, ok = r.Lookup("price_threshold")
	assert.True(t, ok)
	_, ok = r.Lookup("unknown")
	assert.False(t, ok)
}

func TestHTTPStatusExecutor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ex := NewHTTPStatusExecutor()
	ctx := context.Background()

	// default expectation is 200, so 503 triggers
	res, err := ex.Check(ctx, model.JSONMap{"url": srv.URL})
	require.NoError(t, err)
	assert.True(t, res.Triggered)
	assert.Equal(t, http.StatusServiceUnavailable, res.Data["status"])

	// matching expectation does not trigger
	res, err = ex.Check(ctx, model.JSONMap{"url": srv.URL, "expect_status": float64(503)})
	require.NoError(t, err)
	assert.False(t, res.Triggered)
}

func TestHTTPStatusValidateConfig(t *testing.T) {
	ex := NewHTTPStatusExecutor()

	assert.Empty(t, ex.ValidateConfig(model.JSONMap{"url": "https://example.com"}))
	assert.NotEmpty(t, ex.ValidateConfig(model.JSONMap{}))
	assert.NotEmpty(t, ex.ValidateConfig(model.JSONMap{"url": "ftp://example.com"}))
	assert.NotEmpty(t, ex.ValidateConfig(model.JSONMap{"url": "https://example.com", "expect_status": float64(9000)}))
}

func TestPriceThresholdExecutor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"price": 1850.25}`)
	}))
	defer srv.Close()

	ex := NewPriceThresholdExecutor()
	ctx := context.Background()

	res, err := ex.Check(ctx, model.JSONMap{
		"feed_url":  srv.URL,
		"direction": "above",
		"threshold": float64(1800),
	})
	require.NoError(t, err)
	assert.True(t, res.Triggered)
	assert.Equal(t, 1850.25, res.Data["price"])

	res, err = ex.Check(ctx, model.JSONMap{
		"feed_url":  srv.URL,
		"direction": "below",
		"threshold": float64(1800),
	})
	require.NoError(t, err)
	assert.False(t, res.Triggered)
}

func TestPriceThresholdCustomField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"usd": 0.97}`)
	}))
	defer srv.Close()

	ex := NewPriceThresholdExecutor()
	res, err := ex.Check(context.Background(), model.JSONMap{
		"feed_url":  srv.URL,
		"field":     "usd",
		"direction": "below",
		"threshold": float64(0.99),
	})
	require.NoError(t, err)
	assert.True(t, res.Triggered)
}

func TestPriceThresholdBadFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"note": "no price here"}`)
	}))
	defer srv.Close()

	ex := NewPriceThresholdExecutor()
	_, err := ex.Check(context.Background(), model.JSONMap{
		"feed_url":  srv.URL,
		"direction": "above",
		"threshold": float64(1),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `missing numeric field "price"`)
}

func TestPriceThresholdValidateConfig(t *testing.T) {
	ex := NewPriceThresholdExecutor()

	assert.Empty(t, ex.ValidateConfig(model.JSONMap{
		"feed_url":  "https://feed.example.com",
		"direction": "above",
		"threshold": float64(10),
	}))

	errs := ex.ValidateConfig(model.JSONMap{"feed_url": "nope", "direction": "sideways"})
	assert.Len(t, errs, 3)
}

func TestBreakerOpensAfterThreshold(t *testing.T) {
	br := NewBreaker(2, time.Hour)

	require.True(t, br.TryAcquire())
	br.OnFailure()
	require.True(t, br.TryAcquire())
	br.OnFailure()

	assert.False(t, br.TryAcquire(), "breaker opens at the failure threshold")
}

func TestBreakerHalfOpenProbe(t *testing.T) {
	br := NewBreaker(1, 10*time.Millisecond)

	require.True(t, br.TryAcquire())
	br.OnFailure()
	require.False(t, br.TryAcquire())

	time.Sleep(20 * time.Millisecond)
	assert.True(t, br.TryAcquire(), "after the open window a single probe is allowed")
	br.OnSuccess()
	assert.True(t, br.TryAcquire())
}
