package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TransactionType identifies the monetary operation a transaction settles.
type TransactionType string

const (
	TypeDeposit  TransactionType = "deposit"
	TypeWithdraw TransactionType = "withdraw"
	TypeWin      TransactionType = "win"
	TypeLoss     TransactionType = "loss"
)

// TransactionStatus is the settlement state of a transaction. Approved and
// rejected are terminal.
type TransactionStatus string

const (
	StatusPending  TransactionStatus = "pending"
	StatusApproved TransactionStatus = "approved"
	StatusRejected TransactionStatus = "rejected"
)

// IsTerminal reports whether the status can no longer regress.
func (s TransactionStatus) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// Valid reports whether s is one of the known settlement states.
func (s TransactionStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Transaction is a player deposit or withdrawal correlated with one gateway
// operation through TradeNo. It is created pending by the initiation flow and
// mutated only by the settlement engine.
type Transaction struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	UserID      int64              `bson:"user_id" json:"user_id"`
	AffiliateID int64              `bson:"affiliate_id,omitempty" json:"affiliate_id,omitempty"`

	Type   TransactionType   `bson:"type" json:"type"`
	Status TransactionStatus `bson:"status" json:"status"`

	Amount     decimal.Decimal `bson:"amount" json:"amount"`
	CurrencyID string          `bson:"currency_id" json:"currency_id"`

	// TradeNo is the merchant-generated idempotency key shared with the
	// gateway; PlatformTradeNo is assigned by the gateway once it accepts
	// the operation.
	TradeNo         string `bson:"trade_no" json:"trade_no"`
	PlatformTradeNo string `bson:"platform_trade_no,omitempty" json:"platform_trade_no,omitempty"`

	PromotionID primitive.ObjectID `bson:"promotion_id,omitempty" json:"promotion_id,omitempty"`
	BonusAmount decimal.Decimal    `bson:"bonus_amount" json:"bonus_amount"`

	// SettlementAnchorID links an affiliate withdrawal to a prior completed
	// settlement; anchored withdrawals are excluded from lifetime totals.
	SettlementAnchorID primitive.ObjectID `bson:"settlement_anchor_id,omitempty" json:"settlement_anchor_id,omitempty"`

	Notes       string     `bson:"notes,omitempty" json:"notes,omitempty"`
	ProcessedAt *time.Time `bson:"processed_at,omitempty" json:"processed_at,omitempty"`
	ProcessedBy string     `bson:"processed_by,omitempty" json:"processed_by,omitempty"`

	// GatewayConfirmedAt is set by the payout poll once the gateway reports
	// a withdrawal disbursement as complete. It never changes ledger state.
	GatewayConfirmedAt *time.Time `bson:"gateway_confirmed_at,omitempty" json:"gateway_confirmed_at,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// NewTransaction creates a pending transaction for the initiation flow.
func NewTransaction(userID int64, txType TransactionType, amount decimal.Decimal, currencyID string) *Transaction {
	now := time.Now()
	return &Transaction{
		UserID:     userID,
		Type:       txType,
		Status:     StatusPending,
		Amount:     amount,
		CurrencyID: currencyID,
		TradeNo:    fmt.Sprintf("TRX-%d-%d", now.UnixNano(), userID),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// IsDeposit reports whether the transaction credits the player.
func (t *Transaction) IsDeposit() bool {
	return t.Type == TypeDeposit
}

// IsWithdrawal reports whether the transaction debits the player.
func (t *Transaction) IsWithdrawal() bool {
	return t.Type == TypeWithdraw
}

// HasPromotion reports whether a promotion was attached at deposit time.
func (t *Transaction) HasPromotion() bool {
	return !t.PromotionID.IsZero()
}

// MarkSettled applies the terminal bookkeeping fields for a status change.
func (t *Transaction) MarkSettled(status TransactionStatus, notes, actor string) {
	now := time.Now()
	t.Status = status
	t.Notes = notes
	t.ProcessedAt = &now
	t.ProcessedBy = actor
	t.UpdatedAt = now
}

// WebhookLogEntry is an append-only record of every inbound gateway delivery,
// written before signature verification so forged payloads are auditable too.
type WebhookLogEntry struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	TradeNo         string             `bson:"trade_no" json:"trade_no"`
	PlatformTradeNo string             `bson:"platform_trade_no,omitempty" json:"platform_trade_no,omitempty"`
	StatusCode      string             `bson:"status_code" json:"status_code"`
	RawPayload      string             `bson:"raw_payload" json:"raw_payload"`
	SignatureOK     bool               `bson:"signature_ok" json:"signature_ok"`
	ReceivedAt      time.Time          `bson:"received_at" json:"received_at"`
}
