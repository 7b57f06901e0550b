// Package executor holds the pluggable check strategies a watcher type can
// bind to. Implementations are registered once at startup under a string key
// (the watcher type's executor_id); the polling engine looks them up per tick.
package executor

import (
	"context"
	"sync"

	"github.com/watchmarket/watchmarket/internal/model"
)

// Result is the outcome of one condition evaluation.
type Result struct {
	Triggered bool
	Data      map[string]any
}

// Executor evaluates a watcher's condition against its opaque config.
type Executor interface {
	Check(ctx context.Context, config model.JSONMap) (Result, error)
}

// Validator is an optional capability: executors that can pre-validate a
// config shape reject bad watchers at creation time instead of at first check.
type Validator interface {
	ValidateConfig(config model.JSONMap) []string
}

// Registry maps executor IDs to implementations. Registration happens at
// startup; lookups are concurrent.
type Registry struct {
	mu   sync.RWMutex
	byID map[string]Executor
}

func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]Executor)}
}

func (r *Registry) Register(id string, ex Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[id] = ex
}

func (r *Registry) Lookup(id string) (Executor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ex, ok := r.byID[id]
	return ex, ok
}

// RegisterDefaults wires the built-in executors.
func RegisterDefaults(r *Registry) {
	r.Register("http_status", NewHTTPStatusExecutor())
	r.Register("price_threshold", NewPriceThresholdExecutor())
}
