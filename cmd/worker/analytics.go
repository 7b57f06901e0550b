package worker

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/watchmarket/watchmarket/internal/config"
	"github.com/watchmarket/watchmarket/internal/db"
	"github.com/watchmarket/watchmarket/internal/kafka"
	"github.com/watchmarket/watchmarket/internal/logger"
	"github.com/watchmarket/watchmarket/internal/metrics"
	"github.com/watchmarket/watchmarket/internal/repository"
	"github.com/watchmarket/watchmarket/internal/worker"
)

var analyticsCmd = &cobra.Command{
	Use:   "analytics",
	Short: "Consume watcher check events into ClickHouse",
	RunE:  runAnalytics,
}

func runAnalytics(cmd *cobra.Command, args []string) error {
	// 1) load config
	cfgPath, _ := cmd.Root().PersistentFlags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger.Init(cfg.Log.Level)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	// 2) ClickHouse connection
	chDB, err := db.NewClickHouseConnection(db.ClickHouseOpts{
		DSN:             cfg.ClickHouse.DSN,
		MaxOpenConns:    cfg.ClickHouse.MaxOpenConns,
		MaxIdleConns:    cfg.ClickHouse.MaxIdleConns,
		ConnMaxLifetime: cfg.ClickHouse.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ClickHouse.ConnMaxIdleTime,
		PingTimeout:     cfg.ClickHouse.PingTimeout,
	})
	if err != nil {
		return fmt.Errorf("clickhouse connect: %w", err)
	}
	defer func() { _ = chDB.Close() }()

	eventsRepo := repository.NewCHEventsRepository(chDB)

	// 3) kafka consumer on the outbox-relayed topic
	groupID := cfg.Kafka.GroupID
	if groupID == "" {
		groupID = "watchmkt-analytics"
	}

	consumer := kafka.NewConsumerFromConfig(kafka.Config{
		Brokers:        cfg.Kafka.Brokers,
		Topic:          repository.WatcherEventsTopic,
		GroupID:        groupID,
		MinBytes:       cfg.Kafka.MinBytes,
		MaxBytes:       cfg.Kafka.MaxBytes,
		CommitInterval: time.Duration(cfg.Kafka.CommitInterval) * time.Millisecond,
	})
	defer consumer.Close()

	w := worker.NewAnalytics(consumer, eventsRepo)

	// tune knobs
	if cfg.Analytics.BatchSize > 0 {
		w.BatchSize = cfg.Analytics.BatchSize
	}
	if cfg.Analytics.BatchWait > 0 {
		w.BatchWait = cfg.Analytics.BatchWait
	}

	// 4) graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf(">> analytics started topic=%s group=%s batchSize=%d batchWait=%s",
		repository.WatcherEventsTopic, groupID, w.BatchSize, w.BatchWait)

	return w.Run(ctx)
}
