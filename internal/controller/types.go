package controller

import "github.com/shopspring/decimal"

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type InitiateDepositRequest struct {
	UserID      int64           `json:"user_id" binding:"required"`
	Amount      decimal.Decimal `json:"amount" binding:"required"`
	CurrencyID  string          `json:"currency_id" binding:"required"`
	PromotionID string          `json:"promotion_id"`
}

type SubmitPayinRequest struct {
	PayerReference string `json:"payer_reference" binding:"required"`
}

type InitiateWithdrawalRequest struct {
	UserID      int64           `json:"user_id" binding:"required"`
	AffiliateID int64           `json:"affiliate_id"`
	Amount      decimal.Decimal `json:"amount" binding:"required"`
	CurrencyID  string          `json:"currency_id" binding:"required"`
	BankCode    string          `json:"bank_code" binding:"required"`
	AccountNo   string          `json:"account_no" binding:"required"`
	AccountName string          `json:"account_name"`
}

type ManualSettleRequest struct {
	TargetStatus string `json:"target_status" binding:"required"`
	Notes        string `json:"notes"`
}

type ReverseWithdrawalRequest struct {
	Notes string `json:"notes"`
}

type CapitalMovementRequest struct {
	Kind       string          `json:"kind" binding:"required"`
	Amount     decimal.Decimal `json:"amount" binding:"required"`
	CurrencyID string          `json:"currency_id" binding:"required"`
	Notes      string          `json:"notes"`
}

type BetResultRequest struct {
	BetResultID     string          `json:"bet_result_id" binding:"required"`
	PlayerID        int64           `json:"player_id" binding:"required"`
	AffiliateID     int64           `json:"affiliate_id" binding:"required"`
	Outcome         string          `json:"outcome" binding:"required,oneof=win loss"`
	ReferenceAmount decimal.Decimal `json:"reference_amount" binding:"required"`
	CommissionRate  decimal.Decimal `json:"commission_rate" binding:"required"`
}

type CommissionStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Notes  string `json:"notes"`
}

type TurnoverMultiplierRequest struct {
	Multiplier decimal.Decimal `json:"multiplier" binding:"required"`
}
