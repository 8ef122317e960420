package controller

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"settlement-api/internal/engine"
	"settlement-api/internal/gateway"
	"settlement-api/internal/models"
	"settlement-api/internal/monitoring"
	"settlement-api/internal/repository"
)

// ackToken is the acknowledgement the gateway expects; anything else makes it
// redeliver.
const ackToken = "SUCCESS"

// WebhookController receives gateway status notifications. Every delivery is
// logged before verification, so forged and malformed payloads leave a trail.
// The only error response is the signature rejection; all other outcomes ack
// with the token and let the reconciliation polls converge on whatever this
// delivery could not settle.
type WebhookController struct {
	signer           *gateway.Signer
	statusMapper     *gateway.StatusMapper
	settlementEngine engine.SettlementEngine
	webhookLogRepo   repository.WebhookLogRepository
	metrics          monitoring.MetricsService
	logger           *logrus.Logger
	auditLogger      *logrus.Logger
}

func NewWebhookController(
	signer *gateway.Signer,
	statusMapper *gateway.StatusMapper,
	settlementEngine engine.SettlementEngine,
	webhookLogRepo repository.WebhookLogRepository,
	metrics monitoring.MetricsService,
	logger *logrus.Logger,
	auditLogger *logrus.Logger,
) *WebhookController {
	return &WebhookController{
		signer:           signer,
		statusMapper:     statusMapper,
		settlementEngine: settlementEngine,
		webhookLogRepo:   webhookLogRepo,
		metrics:          metrics,
		logger:           logger,
		auditLogger:      auditLogger,
	}
}

// HandleNotification processes one gateway delivery:
// parse, log, verify signature, map the status code, settle, ack.
func (c *WebhookController) HandleNotification(ctx *gin.Context) {
	body, err := io.ReadAll(ctx.Request.Body)
	if err != nil {
		c.metrics.RecordWebhookDelivery("unreadable")
		ctx.String(http.StatusOK, ackToken)
		return
	}

	var params map[string]string
	if err := json.Unmarshal(body, &params); err != nil {
		c.logger.WithError(err).Warn("Webhook payload is not a flat JSON object")
		c.logDelivery(ctx, params, string(body), false)
		c.metrics.RecordWebhookDelivery("malformed")
		ctx.String(http.StatusOK, ackToken)
		return
	}

	signatureOK := c.signer.Verify(params, params["sign"])
	c.logDelivery(ctx, params, string(body), signatureOK)

	if !signatureOK {
		c.metrics.IncrementSignatureRejections()
		c.metrics.RecordWebhookDelivery("bad_signature")
		c.auditLogger.WithFields(logrus.Fields{
			"trade_no":  params["tradeNo"],
			"remote_ip": ctx.ClientIP(),
		}).Warn("Webhook signature verification failed")
		ctx.JSON(http.StatusForbidden, gin.H{"error": "invalid signature"})
		return
	}

	tradeNo := params["tradeNo"]
	statusCode := params["status"]

	target, transitions := c.statusMapper.TargetStatus(statusCode)
	if !transitions {
		c.metrics.RecordWebhookDelivery("no_transition")
		ctx.String(http.StatusOK, ackToken)
		return
	}

	result, err := c.settlementEngine.Settle(ctx.Request.Context(), &engine.SettleRequest{
		TradeNo:         tradeNo,
		TargetStatus:    target,
		PlatformTradeNo: params["platformTradeNo"],
		Notes:           "settled via gateway notification",
		Actor:           "webhook",
	})
	switch {
	case errors.Is(err, engine.ErrSettlementInProgress):
		// Another path holds the lock; the gateway does not need to retry.
		c.metrics.RecordWebhookDelivery("concurrent")
	case errors.Is(err, repository.ErrTransactionNotFound):
		// The gateway knows a trade this platform does not. Redelivery cannot
		// fix that, so ack and let the metric surface the desync.
		c.metrics.IncrementStatusConflicts("webhook")
		c.metrics.RecordWebhookDelivery("unknown_trade")
		c.logger.WithField("trade_no", tradeNo).Warn("Gateway notified an unknown trade number")
	case err != nil:
		c.logger.WithError(err).WithField("trade_no", tradeNo).Error("Webhook settlement failed")
		c.metrics.IncrementSettlementErrors("webhook", "settle")
		c.metrics.RecordWebhookDelivery("error")
	case !result.Applied:
		c.metrics.RecordWebhookDelivery("replay")
	default:
		c.metrics.RecordSettlement(string(result.Transaction.Type), string(target), "webhook")
		c.metrics.RecordWebhookDelivery("settled")
	}

	ctx.String(http.StatusOK, ackToken)
}

func (c *WebhookController) logDelivery(ctx *gin.Context, params map[string]string, raw string, signatureOK bool) {
	entry := &models.WebhookLogEntry{
		TradeNo:         params["tradeNo"],
		PlatformTradeNo: params["platformTradeNo"],
		StatusCode:      params["status"],
		RawPayload:      raw,
		SignatureOK:     signatureOK,
	}
	if err := c.webhookLogRepo.Create(ctx.Request.Context(), entry); err != nil {
		c.logger.WithError(err).Error("Failed to append webhook log entry")
	}
}
