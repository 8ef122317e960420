package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"settlement-api/internal/config"
	"settlement-api/internal/controller"
	"settlement-api/internal/database"
	"settlement-api/internal/engine"
	"settlement-api/internal/external"
	"settlement-api/internal/gateway"
	"settlement-api/internal/middleware"
	"settlement-api/internal/monitoring"
	"settlement-api/internal/repository"
	"settlement-api/internal/routes"
	"settlement-api/internal/scheduler"
	"settlement-api/internal/service"
	"settlement-api/pkg/logger"
)

// @title Settlement API
// @version 1.0
// @description Payment settlement and reconciliation engine - converges gateway webhooks and polls into turnover and ledger records
// @BasePath /api

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

// @securityDefinitions.apikey InternalAPI
// @in header
// @name X-API-Key
// @description Internal service API key for inter-service communication.

var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	logger.Init(cfg.Logging)

	logrus.WithFields(logrus.Fields{
		"version":    version,
		"build_time": buildTime,
		"git_commit": gitCommit,
		"port":       cfg.Server.Port,
	}).Info("Starting Settlement API")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := initializeApp(ctx, cfg)
	if err != nil {
		logrus.Fatalf("Failed to initialize application: %v", err)
	}

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      app.router.GetEngine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logrus.WithField("address", server.Addr).Info("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("Failed to start server: %v", err)
		}
	}()

	if app.scheduler != nil {
		if err := app.scheduler.Start(); err != nil {
			logrus.Fatalf("Failed to start reconciliation scheduler: %v", err)
		}
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	// Stop accepting new poll cycles before tearing the stores down.
	if app.scheduler != nil {
		app.scheduler.Stop()
	}
	cancel()
	app.cleanup(shutdownCtx)

	logrus.Info("Server exited")
}

// Application holds all application dependencies
type Application struct {
	config    *config.Config
	router    *routes.Router
	scheduler *scheduler.ReconciliationScheduler
	cleanup   func(ctx context.Context)
}

// initializeApp wires stores, engines, services and HTTP surface together.
func initializeApp(ctx context.Context, cfg *config.Config) (*Application, error) {
	logrus.Info("Initializing application dependencies...")

	log := logrus.StandardLogger()
	auditLog := logger.AuditLogger(cfg.Logging)

	db, err := database.Connect(ctx, &cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("database initialization failed: %w", err)
	}

	redisClient, err := database.NewRedisClient(ctx, &cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("redis initialization failed: %w", err)
	}

	var publisher engine.EventPublisher
	var rabbitPublisher *external.RabbitMQPublisher
	if cfg.RabbitMQ.Enabled {
		rabbitPublisher, err = external.NewRabbitMQPublisher(cfg.RabbitMQ.URL, log)
		if err != nil {
			return nil, fmt.Errorf("rabbitmq initialization failed: %w", err)
		}
		publisher = rabbitPublisher
	} else {
		logrus.Info("RabbitMQ disabled, settlement events will not be published")
	}

	var metrics monitoring.MetricsService
	if cfg.Monitoring.EnableMetrics {
		metrics = monitoring.NewMetricsService()
	} else {
		metrics = monitoring.NewNoopMetrics()
	}

	// Repositories
	transactionRepo := repository.NewTransactionRepository(db.DB)
	turnoverRepo := repository.NewTurnoverRepository(db.DB)
	ledgerRepo := repository.NewLedgerRepository(db.DB)
	commissionRepo := repository.NewCommissionRepository(db.DB)
	webhookLogRepo := repository.NewWebhookLogRepository(db.DB)
	defaultMultiplier, err := decimal.NewFromString(cfg.Settlement.TurnoverMultiplier)
	if err != nil {
		return nil, fmt.Errorf("invalid default turnover multiplier %q: %w", cfg.Settlement.TurnoverMultiplier, err)
	}
	settingsRepo := repository.NewSettingsRepository(db.DB, defaultMultiplier)
	lockRepo := repository.NewLockRepository(redisClient)
	lockManager := repository.NewSettlementLockManager(lockRepo)
	txRunner := database.NewTxRunner(db.Client)

	// Gateway
	signer := gateway.NewSigner(cfg.Gateway.Secret)
	statusMapper := gateway.NewStatusMapper(cfg.Gateway.StatusCodes)
	gatewayClient := gateway.NewClient(&gateway.ClientConfig{
		BaseURL:       cfg.Gateway.BaseURL,
		MerchantNo:    cfg.Gateway.MerchantNo,
		Secret:        cfg.Gateway.Secret,
		Timeout:       cfg.Gateway.Timeout,
		RetryAttempts: cfg.Gateway.RetryAttempts,
		RateLimit:     cfg.Gateway.RateLimit,
	})

	// Engines
	settlementEngine := engine.NewSettlementEngine(
		transactionRepo, turnoverRepo, ledgerRepo, settingsRepo,
		lockManager, txRunner, publisher,
		engine.SettlementOptions{
			LockTTL:        cfg.Settlement.LockTTL,
			DefaultLabel:   cfg.Settlement.DefaultLabel,
			PromotionLabel: cfg.Settlement.PromotionLabel,
		},
		log,
	)
	affiliateEngine := engine.NewAffiliateEngine(commissionRepo, transactionRepo, lockManager, log)

	// Services
	paymentService := service.NewPaymentService(
		transactionRepo, settingsRepo, gatewayClient, affiliateEngine,
		metrics, log, cfg.Gateway.NotifyURL,
	)
	adminService := service.NewAdminService(
		settlementEngine, affiliateEngine, ledgerRepo, commissionRepo,
		webhookLogRepo, settingsRepo, metrics, auditLog,
	)

	// Controllers
	webhookController := controller.NewWebhookController(
		signer, statusMapper, settlementEngine, webhookLogRepo,
		metrics, log, auditLog,
	)
	paymentController := controller.NewPaymentController(paymentService)
	adminController := controller.NewAdminController(adminService, paymentService)
	healthController := controller.NewHealthController(db.Client, redisClient, version)

	authMiddleware := middleware.NewAuthMiddleware(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, cfg.Auth.InternalAPIKey)

	routerConfig := &routes.RouterConfig{
		Debug:          cfg.Logging.Level == "debug",
		CORSEnabled:    true,
		MetricsPath:    cfg.Monitoring.MetricsPath,
		TrustedProxies: cfg.Server.TrustedProxies,
	}
	router := routes.NewRouter(
		webhookController, paymentController, adminController,
		healthController, authMiddleware, routerConfig,
	)
	router.SetupRoutes(routerConfig, log, metrics)

	var reconciliation *scheduler.ReconciliationScheduler
	if cfg.Scheduler.Enabled {
		reconciliation = scheduler.NewReconciliationScheduler(
			transactionRepo, gatewayClient, statusMapper, settlementEngine,
			metrics, log,
			scheduler.Config{
				PayinInterval:  cfg.Scheduler.SettlementInterval,
				PayoutInterval: cfg.Scheduler.PayoutInterval,
				BatchSize:      cfg.Scheduler.BatchSize,
			},
		)
	} else {
		logrus.Info("Reconciliation scheduler disabled")
	}

	cleanup := func(shutdownCtx context.Context) {
		logrus.Info("Cleaning up application resources...")
		if rabbitPublisher != nil {
			if err := rabbitPublisher.Close(); err != nil {
				logrus.Errorf("Failed to close RabbitMQ connection: %v", err)
			}
		}
		if err := redisClient.Close(); err != nil {
			logrus.Errorf("Failed to close redis client: %v", err)
		}
		if err := db.Close(shutdownCtx); err != nil {
			logrus.Errorf("Failed to disconnect from mongodb: %v", err)
		}
	}

	logrus.Info("Application initialization completed")

	return &Application{
		config:    cfg,
		router:    router,
		scheduler: reconciliation,
		cleanup:   cleanup,
	}, nil
}
