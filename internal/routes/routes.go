package routes

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"settlement-api/internal/controller"
	"settlement-api/internal/middleware"
	"settlement-api/internal/monitoring"
)

type Router struct {
	engine             *gin.Engine
	webhookController  *controller.WebhookController
	paymentController  *controller.PaymentController
	adminController    *controller.AdminController
	healthController   *controller.HealthController
	authMiddleware     *middleware.AuthMiddleware
}

type RouterConfig struct {
	Debug          bool
	CORSEnabled    bool
	AllowedOrigins []string
	MetricsPath    string
	TrustedProxies []string
}

func NewRouter(
	webhookController *controller.WebhookController,
	paymentController *controller.PaymentController,
	adminController *controller.AdminController,
	healthController *controller.HealthController,
	authMiddleware *middleware.AuthMiddleware,
	config *RouterConfig,
) *Router {
	if !config.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	if len(config.TrustedProxies) > 0 {
		_ = engine.SetTrustedProxies(config.TrustedProxies)
	}

	return &Router{
		engine:            engine,
		webhookController: webhookController,
		paymentController: paymentController,
		adminController:   adminController,
		healthController:  healthController,
		authMiddleware:    authMiddleware,
	}
}

func (r *Router) SetupRoutes(config *RouterConfig, logger *logrus.Logger, metrics monitoring.MetricsService) {
	r.setupGlobalMiddleware(config, logger, metrics)
	r.setupHealthRoutes(config)
	r.setupWebhookRoutes()

	api := r.engine.Group("/api")
	r.setupPaymentRoutes(api)
	r.setupAdminRoutes(api)
}

func (r *Router) setupGlobalMiddleware(config *RouterConfig, logger *logrus.Logger, metrics monitoring.MetricsService) {
	r.engine.Use(gin.Recovery())
	r.engine.Use(requestid.New())
	r.engine.Use(middleware.RequestLogging(logger, metrics))

	if config.CORSEnabled {
		corsConfig := cors.Config{
			AllowOrigins:     config.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-Requested-With", "X-Request-ID", "X-API-Key"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}
		if len(corsConfig.AllowOrigins) == 0 {
			corsConfig.AllowAllOrigins = true
		}
		r.engine.Use(cors.New(corsConfig))
	}
}

func (r *Router) setupHealthRoutes(config *RouterConfig) {
	health := r.engine.Group("/health")
	{
		health.GET("", r.healthController.Health)
		health.GET("/live", r.healthController.Liveness)
		health.GET("/ready", r.healthController.Readiness)
	}

	metricsPath := config.MetricsPath
	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	r.engine.GET(metricsPath, gin.WrapH(promhttp.Handler()))
}

// setupWebhookRoutes registers the gateway notification endpoint. It carries
// no session auth; the MD5 signature on the payload is the authentication.
func (r *Router) setupWebhookRoutes() {
	webhook := r.engine.Group("/webhook")
	{
		webhook.POST("/payment", r.webhookController.HandleNotification)
	}
}

func (r *Router) setupPaymentRoutes(api *gin.RouterGroup) {
	payments := api.Group("/payments")
	payments.Use(r.authMiddleware.JWTAuth())
	{
		payments.POST("/deposit", r.paymentController.InitiateDeposit)
		payments.POST("/deposit/:tradeNo/submit", r.paymentController.SubmitPayin)
		payments.POST("/withdraw", r.paymentController.InitiateWithdrawal)
		payments.GET("/user/:userId", r.paymentController.ListUserTransactions)
		payments.GET("/:tradeNo", r.paymentController.GetTransaction)
	}
}

func (r *Router) setupAdminRoutes(api *gin.RouterGroup) {
	admin := api.Group("/admin")
	admin.Use(r.authMiddleware.AdminAuth())
	{
		admin.POST("/transactions/:tradeNo/settle", r.adminController.ManualSettle)
		admin.POST("/withdrawals/:tradeNo/reverse", r.adminController.ReverseWithdrawal)
		admin.GET("/users/:userId/transactions", r.paymentController.ListUserTransactions)

		admin.GET("/ledger", r.adminController.ListLedger)
		admin.GET("/ledger/balance", r.adminController.GetMainBalance)
		admin.POST("/ledger/capital", r.adminController.RecordCapitalMovement)

		admin.POST("/bet-results", r.adminController.IngestBetResult)
		admin.PUT("/commissions/:id/status", r.adminController.UpdateCommissionStatus)
		admin.GET("/affiliates/:affiliateId/commissions", r.adminController.ListCommissions)
		admin.GET("/affiliates/:affiliateId/balance", r.adminController.GetAffiliateBalance)

		admin.GET("/webhook-log", r.adminController.GetWebhookLog)
		admin.PUT("/settings/turnover-multiplier", r.adminController.SetTurnoverMultiplier)
		admin.GET("/gateway/balance", r.adminController.GetMerchantBalance)
	}
}

func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}
