package controller

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"settlement-api/internal/models"
	"settlement-api/internal/service"
)

type AdminController struct {
	adminService   service.AdminService
	paymentService service.PaymentService
}

func NewAdminController(adminService service.AdminService, paymentService service.PaymentService) *AdminController {
	return &AdminController{
		adminService:   adminService,
		paymentService: paymentService,
	}
}

func adminID(ctx *gin.Context) string {
	if id, exists := ctx.Get("admin_id"); exists {
		if s, ok := id.(string); ok {
			return s
		}
	}
	return "internal"
}

// @Summary Manually settle a transaction
// @Tags admin
// @Accept json
// @Produce json
// @Param tradeNo path string true "Trade number"
// @Param request body ManualSettleRequest true "Settlement decision"
// @Success 200 {object} engine.SettleResult
// @Failure 400 {object} ErrorResponse
// @Security InternalAPI
// @Router /api/admin/transactions/{tradeNo}/settle [post]
func (c *AdminController) ManualSettle(ctx *gin.Context) {
	var req ManualSettleRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request format",
			Message: err.Error(),
		})
		return
	}

	status := models.TransactionStatus(req.TargetStatus)
	if !status.Valid() || status == models.StatusPending {
		ctx.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Target status must be approved or rejected",
		})
		return
	}

	result, err := c.adminService.ManualSettle(ctx.Request.Context(), &service.ManualSettleRequest{
		TradeNo:      ctx.Param("tradeNo"),
		TargetStatus: status,
		Notes:        req.Notes,
		AdminID:      adminID(ctx),
	})
	if err != nil {
		ctx.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Settlement failed",
			Message: err.Error(),
		})
		return
	}

	ctx.JSON(http.StatusOK, result)
}

// @Summary Reverse an approved withdrawal
// @Tags admin
// @Accept json
// @Produce json
// @Param tradeNo path string true "Trade number"
// @Param request body ReverseWithdrawalRequest true "Reversal reason"
// @Success 200 {object} engine.SettleResult
// @Failure 400 {object} ErrorResponse
// @Security InternalAPI
// @Router /api/admin/withdrawals/{tradeNo}/reverse [post]
func (c *AdminController) ReverseWithdrawal(ctx *gin.Context) {
	var req ReverseWithdrawalRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request format",
			Message: err.Error(),
		})
		return
	}

	result, err := c.adminService.ReverseWithdrawal(ctx.Request.Context(), ctx.Param("tradeNo"), req.Notes, adminID(ctx))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Reversal failed",
			Message: err.Error(),
		})
		return
	}

	ctx.JSON(http.StatusOK, result)
}

// @Summary House balance from the admin ledger
// @Tags admin
// @Produce json
// @Success 200 {object} map[string]string
// @Security InternalAPI
// @Router /api/admin/ledger/balance [get]
func (c *AdminController) GetMainBalance(ctx *gin.Context) {
	balance, err := c.adminService.GetMainBalance(ctx.Request.Context(), ctx.Query("currency"))
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "Failed to compute balance",
			Message: err.Error(),
		})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"balance": balance.String()})
}

func (c *AdminController) ListLedger(ctx *gin.Context) {
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "100"))
	offset, _ := strconv.Atoi(ctx.DefaultQuery("offset", "0"))

	entries, err := c.adminService.ListLedger(ctx.Request.Context(), models.LedgerKind(ctx.Query("kind")), limit, offset)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "Failed to list ledger",
			Message: err.Error(),
		})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"entries": entries,
		"count":   len(entries),
	})
}

func (c *AdminController) RecordCapitalMovement(ctx *gin.Context) {
	var req CapitalMovementRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request format",
			Message: err.Error(),
		})
		return
	}

	entry, err := c.adminService.RecordCapitalMovement(ctx.Request.Context(), &service.CapitalMovementRequest{
		Kind:       models.LedgerKind(req.Kind),
		Amount:     req.Amount,
		CurrencyID: req.CurrencyID,
		Notes:      req.Notes,
		AdminID:    adminID(ctx),
	})
	if err != nil {
		ctx.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Failed to record capital movement",
			Message: err.Error(),
		})
		return
	}

	ctx.JSON(http.StatusCreated, entry)
}

// @Summary Ingest a bet result
// @Tags admin
// @Accept json
// @Produce json
// @Param request body BetResultRequest true "Bet result"
// @Success 201 {object} models.Commission
// @Failure 400 {object} ErrorResponse
// @Security InternalAPI
// @Router /api/admin/bet-results [post]
func (c *AdminController) IngestBetResult(ctx *gin.Context) {
	var req BetResultRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request format",
			Message: err.Error(),
		})
		return
	}

	commission, err := c.adminService.IngestBetResult(ctx.Request.Context(), &models.BetResult{
		BetResultID:     req.BetResultID,
		PlayerID:        req.PlayerID,
		AffiliateID:     req.AffiliateID,
		Outcome:         models.BetOutcome(req.Outcome),
		ReferenceAmount: req.ReferenceAmount,
		CommissionRate:  req.CommissionRate,
	})
	if err != nil {
		ctx.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Failed to ingest bet result",
			Message: err.Error(),
		})
		return
	}

	ctx.JSON(http.StatusCreated, commission)
}

func (c *AdminController) UpdateCommissionStatus(ctx *gin.Context) {
	var req CommissionStatusRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request format",
			Message: err.Error(),
		})
		return
	}

	err := c.adminService.UpdateCommissionStatus(ctx.Request.Context(), &service.CommissionStatusRequest{
		CommissionID: ctx.Param("id"),
		Status:       models.CommissionStatus(req.Status),
		Notes:        req.Notes,
		AdminID:      adminID(ctx),
	})
	if err != nil {
		ctx.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Failed to update commission",
			Message: err.Error(),
		})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"status": "updated"})
}

func (c *AdminController) ListCommissions(ctx *gin.Context) {
	affiliateID, err := strconv.ParseInt(ctx.Param("affiliateId"), 10, 64)
	if err != nil || affiliateID <= 0 {
		ctx.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid affiliate ID",
		})
		return
	}

	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "100"))
	offset, _ := strconv.Atoi(ctx.DefaultQuery("offset", "0"))

	commissions, err := c.adminService.ListCommissions(ctx.Request.Context(), affiliateID, limit, offset)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "Failed to list commissions",
			Message: err.Error(),
		})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"commissions": commissions,
		"count":       len(commissions),
	})
}

func (c *AdminController) GetAffiliateBalance(ctx *gin.Context) {
	affiliateID, err := strconv.ParseInt(ctx.Param("affiliateId"), 10, 64)
	if err != nil || affiliateID <= 0 {
		ctx.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid affiliate ID",
		})
		return
	}

	balance, err := c.adminService.GetAffiliateBalance(ctx.Request.Context(), affiliateID)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "Failed to compute affiliate balance",
			Message: err.Error(),
		})
		return
	}

	ctx.JSON(http.StatusOK, balance)
}

func (c *AdminController) GetWebhookLog(ctx *gin.Context) {
	var since time.Time
	if raw := ctx.Query("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, ErrorResponse{
				Error: "since must be RFC3339",
			})
			return
		}
		since = parsed
	}

	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "100"))
	offset, _ := strconv.Atoi(ctx.DefaultQuery("offset", "0"))

	entries, err := c.adminService.GetWebhookLog(ctx.Request.Context(), ctx.Query("trade_no"), since, limit, offset)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "Failed to read webhook log",
			Message: err.Error(),
		})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"entries": entries,
		"count":   len(entries),
	})
}

func (c *AdminController) SetTurnoverMultiplier(ctx *gin.Context) {
	var req TurnoverMultiplierRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request format",
			Message: err.Error(),
		})
		return
	}

	if err := c.adminService.SetTurnoverMultiplier(ctx.Request.Context(), req.Multiplier); err != nil {
		ctx.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Failed to update turnover multiplier",
			Message: err.Error(),
		})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"status": "updated"})
}

// @Summary Merchant balance at the gateway
// @Tags admin
// @Produce json
// @Success 200 {object} gateway.MerchantBalance
// @Security InternalAPI
// @Router /api/admin/gateway/balance [get]
func (c *AdminController) GetMerchantBalance(ctx *gin.Context) {
	balance, err := c.paymentService.GetMerchantBalance(ctx.Request.Context())
	if err != nil {
		ctx.JSON(http.StatusBadGateway, ErrorResponse{
			Error:   "Failed to query gateway balance",
			Message: err.Error(),
		})
		return
	}

	ctx.JSON(http.StatusOK, balance)
}
