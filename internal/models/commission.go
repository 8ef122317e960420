package models

import (
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// BetOutcome is the player-side result of a bet; commissions flow the
// opposite way.
type BetOutcome string

const (
	BetOutcomeWin  BetOutcome = "win"
	BetOutcomeLoss BetOutcome = "loss"
)

// CommissionStatus progresses only through explicit admin action, never
// automatically alongside settlement.
type CommissionStatus string

const (
	CommissionPending  CommissionStatus = "pending"
	CommissionApproved CommissionStatus = "approved"
	CommissionRejected CommissionStatus = "rejected"
	CommissionPaid     CommissionStatus = "paid"
)

// Valid reports whether s is a known commission state.
func (s CommissionStatus) Valid() bool {
	switch s {
	case CommissionPending, CommissionApproved, CommissionRejected, CommissionPaid:
		return true
	}
	return false
}

// Commission is the affiliate payable recorded for one bet result. The amount
// is positive when the player lost (affiliate gains) and negative when the
// player won (affiliate funds the win).
type Commission struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	BetResultID string             `bson:"bet_result_id" json:"bet_result_id"`
	PlayerID    int64              `bson:"player_id" json:"player_id"`
	AffiliateID int64              `bson:"affiliate_id" json:"affiliate_id"`

	Outcome    BetOutcome       `bson:"outcome" json:"outcome"`
	Amount     decimal.Decimal  `bson:"amount" json:"amount"`
	Percentage decimal.Decimal  `bson:"percentage" json:"percentage"`
	Status     CommissionStatus `bson:"status" json:"status"`

	Notes     string    `bson:"notes,omitempty" json:"notes,omitempty"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// BetResult is the upstream event that drives commission calculation.
type BetResult struct {
	BetResultID     string          `json:"bet_result_id"`
	PlayerID        int64           `json:"player_id"`
	AffiliateID     int64           `json:"affiliate_id"`
	Outcome         BetOutcome      `json:"outcome"`
	ReferenceAmount decimal.Decimal `json:"reference_amount"`
	CommissionRate  decimal.Decimal `json:"commission_rate"`
}

// AffiliateBalance is a read-time aggregate, deliberately never persisted so
// it cannot drift from the ledgers it is derived from.
type AffiliateBalance struct {
	AffiliateID       int64           `json:"affiliate_id"`
	LifetimeProfit    decimal.Decimal `json:"lifetime_profit"`
	LifetimeLoss      decimal.Decimal `json:"lifetime_loss"`
	LifetimeWithdraw  decimal.Decimal `json:"lifetime_withdraw"`
	PendingWithdrawal decimal.Decimal `json:"pending_withdrawal"`
	CurrentBalance    decimal.Decimal `json:"current_balance"`
}
