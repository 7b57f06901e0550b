package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/watchmarket/watchmarket/internal/model"
)

func TestDeliverFirstAttemptSuccess(t *testing.T) {
	var payloads []model.WebhookPayload
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p model.WebhookPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&p))
		mu.Lock()
		payloads = append(payloads, p)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := NewDeliverer(time.Second)
	attempts, err := d.Deliver(context.Background(), srv.URL, "watcher.triggered",
		model.WebhookWatcherRef{ID: "wat_1", TypeID: "wtp_1"},
		map[string]any{"value": 42.0},
		model.RetryPolicy{MaxRetries: 3, BackoffMs: 10},
	)
	require.NoError(t, err)
	assert.Equal(t, 1, attempts)

	require.Len(t, payloads, 1)
	p := payloads[0]
	assert.Equal(t, "watcher.triggered", p.Event)
	assert.Equal(t, "wat_1", p.Watcher.ID)
	assert.Equal(t, "wtp_1", p.Watcher.TypeID)
	assert.Equal(t, Source, p.Source)
	assert.Equal(t, 42.0, p.Data["value"])
	assert.Equal(t, 1, p.Delivery.Attempt)
	assert.Equal(t, 4, p.Delivery.MaxAttempts)
}

func TestDeliverRetriesWithBackoff(t *testing.T) {
	var mu sync.Mutex
	var stamps []time.Time
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		stamps = append(stamps, time.Now())
		n := len(stamps)
		mu.Unlock()
		if n < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := NewDeliverer(time.Second)
	attempts, err := d.Deliver(context.Background(), srv.URL, "watcher.triggered",
		model.WebhookWatcherRef{ID: "wat_1"}, nil,
		model.RetryPolicy{MaxRetries: 3, BackoffMs: 100},
	)
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)

	// waits double per attempt: ~100ms then ~200ms
	require.Len(t, stamps, 3)
	assert.GreaterOrEqual(t, stamps[1].Sub(stamps[0]), 100*time.Millisecond)
	assert.GreaterOrEqual(t, stamps[2].Sub(stamps[1]), 200*time.Millisecond)
}

func TestDeliverExhaustsBudget(t *testing.T) {
	var calls int
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	d := NewDeliverer(time.Second)
	attempts, err := d.Deliver(context.Background(), srv.URL, "watcher.triggered",
		model.WebhookWatcherRef{ID: "wat_1"}, nil,
		model.RetryPolicy{MaxRetries: 2, BackoffMs: 1},
	)
	require.Error(t, err)
	assert.Equal(t, 3, attempts, "budget is maxRetries + 1")
	assert.Equal(t, 3, calls)
	assert.Contains(t, err.Error(), "status=502")
}

func TestDeliverZeroRetriesSingleAttempt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer srv.Close()

	d := NewDeliverer(time.Second)
	attempts, err := d.Deliver(context.Background(), srv.URL, "watcher.triggered",
		model.WebhookWatcherRef{ID: "wat_1"}, nil,
		model.RetryPolicy{MaxRetries: 0, BackoffMs: 1000},
	)
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestDeliverHonorsContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	d := NewDeliverer(time.Second)
	_, err := d.Deliver(ctx, srv.URL, "watcher.triggered",
		model.WebhookWatcherRef{ID: "wat_1"}, nil,
		model.RetryPolicy{MaxRetries: 5, BackoffMs: 5000},
	)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
