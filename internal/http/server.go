package http

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	echoMid "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/watchmarket/watchmarket/internal/config"
	"github.com/watchmarket/watchmarket/internal/executor"
	"github.com/watchmarket/watchmarket/internal/http/middleware"
	"github.com/watchmarket/watchmarket/internal/metrics"
	"github.com/watchmarket/watchmarket/internal/repository"
	"github.com/watchmarket/watchmarket/internal/service/billing"
	"github.com/watchmarket/watchmarket/internal/service/checker"
	"github.com/watchmarket/watchmarket/internal/service/lifecycle"
	"github.com/watchmarket/watchmarket/internal/service/sla"
	"github.com/watchmarket/watchmarket/internal/webhook"
)

type Server struct{ e *echo.Echo }

func NewServer(cfg config.Config, mysqlDB, clickhouseDB *sqlx.DB, rds *redis.Client) *Server {
	// repos (MySQL)
	operatorsRepo := repository.NewOperatorsRepository(mysqlDB)
	typesRepo := repository.NewWatcherTypesRepository(mysqlDB)
	customersRepo := repository.NewCustomersRepository(mysqlDB)
	watchersRepo := repository.NewWatchersRepository(mysqlDB)
	paymentsRepo := repository.NewPaymentsRepository(mysqlDB)
	receiptsRepo := repository.NewReceiptsRepository(mysqlDB)
	violationsRepo := repository.NewViolationsRepository(mysqlDB)
	outboxRepo := repository.NewOutboxRepository(mysqlDB)
	creationsRepo := repository.NewCreationsRepository(mysqlDB)

	// repos (ClickHouse)
	chEventsRepo := repository.NewCHEventsRepository(clickhouseDB)

	// executors
	registry := executor.NewRegistry()
	executor.RegisterDefaults(registry)

	// services
	lifecycleSvc := lifecycle.New(
		operatorsRepo, typesRepo, customersRepo, watchersRepo,
		receiptsRepo, creationsRepo, registry,
		cfg.Payments.Network, cfg.Payments.Chain, cfg.Payments.Rail,
	)
	if cfg.Checker.BatchPause > 0 {
		lifecycleSvc.BatchPause = cfg.Checker.BatchPause
	}

	slaEngine := sla.New(violationsRepo, paymentsRepo, cfg.Payments.Network)
	deliverer := webhook.NewDeliverer(cfg.Checker.WebhookTimeout)

	checkerEngine := checker.New(
		watchersRepo, typesRepo, operatorsRepo, outboxRepo,
		registry, deliverer, slaEngine,
	)
	if cfg.Checker.ExecutorTimeout > 0 {
		checkerEngine.ExecutorTimeout = cfg.Checker.ExecutorTimeout
	}

	var settler billing.Settler
	if cfg.Billing.SimulateSettlement {
		settler = billing.SimulatedSettler{}
	}
	billingEngine := billing.New(
		watchersRepo, typesRepo, operatorsRepo, paymentsRepo, outboxRepo,
		settler, cfg.Payments.Network,
	)

	// echo
	e := echo.New()
	e.HideBanner = true
	e.Use(echoMid.Recover(), echoMid.Logger())

	metrics.MustRegister(prometheus.DefaultRegisterer)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// health
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	// middlewares
	rlMW := middleware.RateLimitMiddleware(middleware.RateLimitConfig{
		Redis:          rds,
		DefaultRPS:     cfg.RateLimit.RPS,
		KeyPrefix:      "rl:caller:",
		Window:         time.Second,
		RetryAfterHint: true,
	})
	cronMW := middleware.CronKeyMiddleware(cfg.Cron.Key)

	// routes
	v1 := e.Group("/v1", rlMW)

	v1.POST("/watchers", createWatcherHandler(lifecycleSvc))
	v1.POST("/watchers/batch", batchCreateHandler(lifecycleSvc))
	v1.GET("/watchers/:id", getWatcherHandler(watchersRepo))
	v1.DELETE("/watchers/:id", cancelWatcherHandler(lifecycleSvc))
	v1.GET("/watchers/:id/refund-status", refundStatusHandler(lifecycleSvc))
	v1.GET("/watchers/:id/billing", billingHistoryHandler(watchersRepo, paymentsRepo))
	v1.GET("/watchers/:id/sla", slaStatusHandler(watchersRepo, violationsRepo))
	v1.GET("/watchers/:id/events", listEventsHandler(chEventsRepo))

	v1.POST("/operators", registerOperatorHandler(lifecycleSvc))
	v1.POST("/watcher-types", createWatcherTypeHandler(lifecycleSvc))
	v1.GET("/watcher-types", listWatcherTypesHandler(lifecycleSvc))

	v1.POST("/customers/:id/upgrade", upgradeCustomerHandler(lifecycleSvc))
	v1.POST("/sla-violations/:id/acknowledge", acknowledgeViolationHandler(violationsRepo))

	// cron triggers, guarded by the shared key rather than rate limited
	cron := e.Group("/internal/cron", cronMW)
	cron.POST("/check", cronCheckHandler(checkerEngine))
	cron.POST("/billing", cronBillingHandler(billingEngine))

	return &Server{e: e}
}

func (s *Server) Start(addr string) error {
	log.Printf("http: listening on %s", addr)
	return s.e.Start(addr)
}
func (s *Server) Shutdown(ctx context.Context) error { return s.e.Shutdown(ctx) }
