package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/watchmarket/watchmarket/internal/config"
	"github.com/watchmarket/watchmarket/internal/db"
	"github.com/watchmarket/watchmarket/internal/executor"
	"github.com/watchmarket/watchmarket/internal/logger"
	"github.com/watchmarket/watchmarket/internal/repository"
	"github.com/watchmarket/watchmarket/internal/service/billing"
	"github.com/watchmarket/watchmarket/internal/service/checker"
	"github.com/watchmarket/watchmarket/internal/service/sla"
	"github.com/watchmarket/watchmarket/internal/webhook"
)

var cronCmd = &cobra.Command{
	Use:   "cron",
	Short: "Run a scheduled pass once and exit",
}

var cronCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Run one checker tick over all active watchers",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCron(func(ctx context.Context, cfg config.Config, dbx *sqlx.DB) error {
			engine := buildChecker(cfg, dbx)
			sum, err := engine.RunTick(ctx)
			if err != nil {
				return err
			}
			log.Printf(">> check tick: total=%d checked=%d triggered=%d failed=%d skipped=%d expired=%d errors=%d took=%s",
				sum.Total, sum.Checked, sum.Triggered, sum.Failed, sum.Skipped, sum.Expired, sum.Errors, sum.Duration)
			return nil
		})
	},
}

var cronBillingCmd = &cobra.Command{
	Use:   "billing",
	Short: "Process all due recurring billings",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCron(func(ctx context.Context, cfg config.Config, dbx *sqlx.DB) error {
			engine := buildBilling(cfg, dbx)
			sum, err := engine.ProcessAllDueBillings(ctx)
			if err != nil {
				return err
			}
			log.Printf(">> billing run: due=%d succeeded=%d failed=%d suspended=%d errors=%d took=%s",
				sum.Due, sum.Succeeded, sum.Failed, sum.Suspended, sum.Errors, sum.Duration)
			return nil
		})
	},
}

func init() {
	cronCmd.AddCommand(cronCheckCmd)
	cronCmd.AddCommand(cronBillingCmd)
}

func runCron(fn func(context.Context, config.Config, *sqlx.DB) error) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger.Init(cfg.Log.Level)

	dbx, err := db.NewMySQLConnection(cfg.MySQL.DSN, db.MySQLOpts{
		MaxOpenConns:    cfg.MySQL.MaxOpenConns,
		MaxIdleConns:    cfg.MySQL.MaxIdleConns,
		ConnMaxLifetime: cfg.MySQL.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.MySQL.ConnMaxIdleTime,
		PingTimeout:     cfg.MySQL.PingTimeout,
	})
	if err != nil {
		return fmt.Errorf("mysql connect: %w", err)
	}
	defer dbx.Close()

	return fn(context.Background(), cfg, dbx)
}

func buildChecker(cfg config.Config, dbx *sqlx.DB) *checker.Engine {
	watchersRepo := repository.NewWatchersRepository(dbx)
	typesRepo := repository.NewWatcherTypesRepository(dbx)
	operatorsRepo := repository.NewOperatorsRepository(dbx)
	outboxRepo := repository.NewOutboxRepository(dbx)
	paymentsRepo := repository.NewPaymentsRepository(dbx)
	violationsRepo := repository.NewViolationsRepository(dbx)

	registry := executor.NewRegistry()
	executor.RegisterDefaults(registry)

	slaEngine := sla.New(violationsRepo, paymentsRepo, cfg.Payments.Network)
	deliverer := webhook.NewDeliverer(cfg.Checker.WebhookTimeout)

	engine := checker.New(
		watchersRepo, typesRepo, operatorsRepo, outboxRepo,
		registry, deliverer, slaEngine,
	)
	if cfg.Checker.ExecutorTimeout > 0 {
		engine.ExecutorTimeout = cfg.Checker.ExecutorTimeout
	}
	return engine
}

func buildBilling(cfg config.Config, dbx *sqlx.DB) *billing.Engine {
	watchersRepo := repository.NewWatchersRepository(dbx)
	typesRepo := repository.NewWatcherTypesRepository(dbx)
	operatorsRepo := repository.NewOperatorsRepository(dbx)
	paymentsRepo := repository.NewPaymentsRepository(dbx)
	outboxRepo := repository.NewOutboxRepository(dbx)

	var settler billing.Settler
	if cfg.Billing.SimulateSettlement {
		settler = billing.SimulatedSettler{}
	}
	return billing.New(
		watchersRepo, typesRepo, operatorsRepo, paymentsRepo, outboxRepo,
		settler, cfg.Payments.Network,
	)
}
