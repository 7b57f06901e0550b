// Package worker holds the long-running background consumers.
package worker

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/watchmarket/watchmarket/internal/kafka"
	"github.com/watchmarket/watchmarket/internal/model"
	"github.com/watchmarket/watchmarket/internal/repository"
)

// Analytics:
// - fetches check events from Kafka (relayed off the outbox table),
// - batches them into ClickHouse with size/time based flushes.
//
// Delivery is at-least-once; ClickHouse ingestion tolerates the occasional
// duplicate row since events carry their own ULIDs and reads aggregate.
type Analytics struct {
	Consumer *kafka.Consumer
	Events   repository.CHEventsRepository

	BatchSize int           // max buffered events per flush
	BatchWait time.Duration // max time to wait before flush
}

func NewAnalytics(consumer *kafka.Consumer, events repository.CHEventsRepository) *Analytics {
	return &Analytics{
		Consumer:  consumer,
		Events:    events,
		BatchSize: 200,
		BatchWait: 300 * time.Millisecond,
	}
}

// Run starts the consumer and blocks until ctx is cancelled.
func (w *Analytics) Run(ctx context.Context) error {
	if w.BatchSize <= 0 {
		w.BatchSize = 200
	}
	if w.BatchWait <= 0 {
		w.BatchWait = 300 * time.Millisecond
	}

	events := make(chan model.CheckEvent, w.BatchSize*2)

	go w.runBatchWriter(ctx, events)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
			m, err := w.Consumer.Fetch(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				log.Printf("[analytics] kafka fetch err: %v", err)
				time.Sleep(200 * time.Millisecond)
				continue
			}
			w.processOne(ctx, m, events)
		}
	}
}

func (w *Analytics) processOne(ctx context.Context, m kafka.Message, out chan<- model.CheckEvent) {
	var ev model.CheckEvent
	if err := json.Unmarshal(m.Value, &ev); err != nil || ev.ID == "" {
		_ = w.Consumer.Commit(ctx, m) // poison → commit, skip
		if err != nil {
			log.Printf("[analytics] bad event json: %v", err)
		} else {
			log.Printf("[analytics] event missing id")
		}
		return
	}

	select {
	case out <- ev:
	case <-ctx.Done():
		return
	}

	// Always commit (at-least-once).
	if err := w.Consumer.Commit(ctx, m); err != nil {
		log.Printf("[analytics] commit err: %v", err)
	}
}

// runBatchWriter does size/time-based flush of event inserts.
func (w *Analytics) runBatchWriter(ctx context.Context, in <-chan model.CheckEvent) {
	tick := time.NewTicker(w.BatchWait)
	defer tick.Stop()

	buf := make([]model.CheckEvent, 0, w.BatchSize)

	flush := func() {
		if len(buf) == 0 {
			return
		}
		if err := w.Events.InsertBatch(context.Background(), buf); err != nil {
			// Dropped on insert failure; the outbox row survives upstream and
			// a replay of the topic can backfill.
			log.Printf("[analytics] clickhouse insert err (%d events dropped): %v", len(buf), err)
		}
		buf = buf[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case ev, ok := <-in:
			if !ok {
				flush()
				return
			}
			buf = append(buf, ev)
			if len(buf) >= w.BatchSize {
				flush()
			}
		case <-tick.C:
			flush()
		}
	}
}
