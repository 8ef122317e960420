package controller

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"settlement-api/internal/service"
)

// PaymentController serves the player-facing initiation endpoints. Settlement
// state never changes here; initiated transactions wait for the webhook or
// the polls.
type PaymentController struct {
	paymentService service.PaymentService
}

func NewPaymentController(paymentService service.PaymentService) *PaymentController {
	return &PaymentController{
		paymentService: paymentService,
	}
}

// @Summary Initiate a deposit
// @Tags payments
// @Accept json
// @Produce json
// @Param request body InitiateDepositRequest true "Deposit request"
// @Success 201 {object} service.InitiateDepositResponse
// @Failure 400 {object} ErrorResponse
// @Security BearerAuth
// @Router /api/payments/deposit [post]
func (c *PaymentController) InitiateDeposit(ctx *gin.Context) {
	var req InitiateDepositRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request format",
			Message: err.Error(),
		})
		return
	}

	response, err := c.paymentService.InitiateDeposit(ctx.Request.Context(), &service.InitiateDepositRequest{
		UserID:      req.UserID,
		Amount:      req.Amount,
		CurrencyID:  req.CurrencyID,
		PromotionID: req.PromotionID,
	})
	if err != nil {
		ctx.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Failed to initiate deposit",
			Message: err.Error(),
		})
		return
	}

	ctx.JSON(http.StatusCreated, response)
}

// @Summary Submit payer reference for a pending deposit
// @Tags payments
// @Accept json
// @Produce json
// @Param tradeNo path string true "Trade number"
// @Param request body SubmitPayinRequest true "Payin submit request"
// @Success 200 {object} map[string]string
// @Failure 400 {object} ErrorResponse
// @Security BearerAuth
// @Router /api/payments/deposit/{tradeNo}/submit [post]
func (c *PaymentController) SubmitPayin(ctx *gin.Context) {
	var req SubmitPayinRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request format",
			Message: err.Error(),
		})
		return
	}

	err := c.paymentService.SubmitPayin(ctx.Request.Context(), &service.SubmitPayinRequest{
		TradeNo:        ctx.Param("tradeNo"),
		PayerReference: req.PayerReference,
	})
	if err != nil {
		ctx.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Failed to submit payin",
			Message: err.Error(),
		})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"status": "submitted"})
}

// @Summary Initiate a withdrawal
// @Tags payments
// @Accept json
// @Produce json
// @Param request body InitiateWithdrawalRequest true "Withdrawal request"
// @Success 201 {object} service.InitiateWithdrawalResponse
// @Failure 400 {object} ErrorResponse
// @Security BearerAuth
// @Router /api/payments/withdraw [post]
func (c *PaymentController) InitiateWithdrawal(ctx *gin.Context) {
	var req InitiateWithdrawalRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request format",
			Message: err.Error(),
		})
		return
	}

	response, err := c.paymentService.InitiateWithdrawal(ctx.Request.Context(), &service.InitiateWithdrawalRequest{
		UserID:      req.UserID,
		AffiliateID: req.AffiliateID,
		Amount:      req.Amount,
		CurrencyID:  req.CurrencyID,
		BankCode:    req.BankCode,
		AccountNo:   req.AccountNo,
		AccountName: req.AccountName,
	})
	if err != nil {
		ctx.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Failed to initiate withdrawal",
			Message: err.Error(),
		})
		return
	}

	ctx.JSON(http.StatusCreated, response)
}

// @Summary Get a transaction by trade number
// @Tags payments
// @Produce json
// @Param tradeNo path string true "Trade number"
// @Success 200 {object} models.Transaction
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /api/payments/{tradeNo} [get]
func (c *PaymentController) GetTransaction(ctx *gin.Context) {
	transaction, err := c.paymentService.GetTransaction(ctx.Request.Context(), ctx.Param("tradeNo"))
	if err != nil {
		ctx.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "Transaction not found",
			Message: err.Error(),
		})
		return
	}

	ctx.JSON(http.StatusOK, transaction)
}

// @Summary List a user's transactions
// @Tags payments
// @Produce json
// @Param userId path int true "User ID"
// @Success 200 {array} models.Transaction
// @Failure 400 {object} ErrorResponse
// @Security BearerAuth
// @Router /api/payments/user/{userId} [get]
func (c *PaymentController) ListUserTransactions(ctx *gin.Context) {
	userID, err := strconv.ParseInt(ctx.Param("userId"), 10, 64)
	if err != nil || userID <= 0 {
		ctx.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid user ID",
		})
		return
	}

	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(ctx.DefaultQuery("offset", "0"))

	transactions, err := c.paymentService.ListUserTransactions(ctx.Request.Context(), userID, limit, offset)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "Failed to list transactions",
			Message: err.Error(),
		})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"transactions": transactions,
		"count":        len(transactions),
	})
}
