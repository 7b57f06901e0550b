package cmd

import (
	"fmt"
	"log"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/watchmarket/watchmarket/internal/config"
	"github.com/watchmarket/watchmarket/internal/db"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with demo operators and watcher types",
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1) load config
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		// 2) connect MySQL
		sqlDB, err := db.NewMySQLConnection(cfg.MySQL.DSN, db.MySQLOpts{
			MaxOpenConns:    cfg.MySQL.MaxOpenConns,
			MaxIdleConns:    cfg.MySQL.MaxIdleConns,
			ConnMaxLifetime: cfg.MySQL.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.MySQL.ConnMaxIdleTime,
			PingTimeout:     cfg.MySQL.PingTimeout,
		})
		if err != nil {
			return fmt.Errorf("mysql connect: %w", err)
		}
		defer sqlDB.Close()

		log.Println(">> Seeding demo marketplace data...")

		if err := seedOperators(sqlDB); err != nil {
			return err
		}
		if err := seedWatcherTypes(sqlDB); err != nil {
			return err
		}
		if err := seedCustomers(sqlDB); err != nil {
			return err
		}

		log.Println(">> Seed completed ✅")
		return nil
	},
}

type demoOperator struct {
	id, name, payout, description string
}

type demoType struct {
	id, operatorID, name, category, price, schema string
	executorID                                    *string
}

// seedOperators inserts deterministic demo operators (idempotent).
func seedOperators(dbx *sqlx.DB) error {
	operators := []demoOperator{
		{"opr_demo_chainwatch", "ChainWatch Labs", "0x1111111111111111111111111111111111111111", "On-chain monitoring across EVM networks"},
		{"opr_demo_pricefeeds", "PriceFeeds Inc", "0x2222222222222222222222222222222222222222", "Market price alerts over aggregated feeds"},
		{"opr_demo_uptime", "Uptime Collective", "0x3333333333333333333333333333333333333333", "Website and API availability monitoring"},
	}

	// idempotent upsert based on id (PRIMARY KEY)
	const q = `
INSERT INTO operators
    (id, name, payout_address, description, status, created_at,
     watchers_created, total_triggers, total_earned, uptime_percent)
VALUES
    (?, ?, ?, ?, 'active', ?, 0, 0, 0, 100)
ON DUPLICATE KEY UPDATE
    name           = VALUES(name),
    payout_address = VALUES(payout_address),
    description    = VALUES(description)
`
	tx, err := dbx.Beginx()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now()
	for _, op := range operators {
		if _, err := tx.Exec(q, op.id, op.name, op.payout, op.description, now); err != nil {
			return fmt.Errorf("insert operator %q: %w", op.name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit operators: %w", err)
	}
	return nil
}

// seedWatcherTypes lists one demo type per category.
func seedWatcherTypes(dbx *sqlx.DB) error {
	httpExec := "http_status"
	priceExec := "price_threshold"

	types := []demoType{
		{"wtp_demo_wallet", "opr_demo_chainwatch", "Wallet Balance Watch", "wallet", "0.050",
			`{"address":"string","threshold":"string"}`, nil},
		{"wtp_demo_ethprice", "opr_demo_pricefeeds", "ETH Price Alert", "price", "0.025",
			`{"feed_url":"string","field":"string","direction":"string","threshold":"number"}`, &priceExec},
		{"wtp_demo_uptime", "opr_demo_uptime", "Endpoint Uptime Check", "custom", "0.010",
			`{"url":"string","expect_status":"number"}`, &httpExec},
	}

	const q = `
INSERT INTO watcher_types
    (id, operator_id, name, category, price, config_schema, executor_id,
     status, created_at, instances, triggers)
VALUES
    (?, ?, ?, ?, ?, ?, ?, 'active', ?, 0, 0)
ON DUPLICATE KEY UPDATE
    name          = VALUES(name),
    price         = VALUES(price),
    config_schema = VALUES(config_schema),
    executor_id   = VALUES(executor_id)
`
	tx, err := dbx.Beginx()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now()
	for _, wt := range types {
		if _, err := tx.Exec(q, wt.id, wt.operatorID, wt.name, wt.category, wt.price, wt.schema, wt.executorID, now); err != nil {
			return fmt.Errorf("insert watcher type %q: %w", wt.name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit watcher types: %w", err)
	}
	return nil
}

// seedCustomers inserts one free and one paid demo customer.
func seedCustomers(dbx *sqlx.DB) error {
	const q = `
INSERT INTO customers
    (id, tier, free_watchers_used, upgraded_at, created_at,
     total_watchers_created, total_spent)
VALUES
    (?, ?, 0, ?, ?, 0, 0)
ON DUPLICATE KEY UPDATE
    tier = VALUES(tier)
`
	now := time.Now()
	if _, err := dbx.Exec(q, "cust_demo_free", "free", nil, now); err != nil {
		return fmt.Errorf("insert free customer: %w", err)
	}
	if _, err := dbx.Exec(q, "cust_demo_paid", "paid", now, now); err != nil {
		return fmt.Errorf("insert paid customer: %w", err)
	}
	return nil
}
