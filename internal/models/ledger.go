package models

import (
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TurnoverKind distinguishes the base wagering requirement of a deposit from
// the extra requirement attached to a promotion bonus.
type TurnoverKind string

const (
	TurnoverDefault   TurnoverKind = "default"
	TurnoverPromotion TurnoverKind = "promotion"
)

// TurnoverStatus is active while the wagering requirement still binds the
// deposited funds. Reversed deposits deactivate their rows instead of
// deleting them.
type TurnoverStatus string

const (
	TurnoverActive   TurnoverStatus = "active"
	TurnoverInactive TurnoverStatus = "inactive"
)

// TurnoverRecord tracks the cumulative wager a player must place before
// deposited or bonus funds become withdrawable. At most one row exists per
// (transaction_id, kind), enforced by a unique index.
type TurnoverRecord struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	UserID        int64              `bson:"user_id" json:"user_id"`
	TransactionID primitive.ObjectID `bson:"transaction_id" json:"transaction_id"`
	Kind          TurnoverKind       `bson:"kind" json:"kind"`
	Status        TurnoverStatus     `bson:"status" json:"status"`

	DepositAmount     decimal.Decimal `bson:"deposit_amount" json:"deposit_amount"`
	TargetTurnover    decimal.Decimal `bson:"target_turnover" json:"target_turnover"`
	RemainingTurnover decimal.Decimal `bson:"remaining_turnover" json:"remaining_turnover"`

	Label     string    `bson:"label,omitempty" json:"label,omitempty"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// LedgerKind classifies an admin ledger entry. The aggregate house balance is
// Σadmin_deposit − Σplayer_deposit − Σpromotion + Σplayer_withdraw +
// Σadmin_withdraw over approved rows.
type LedgerKind string

const (
	LedgerAdminDeposit   LedgerKind = "admin_deposit"
	LedgerPlayerDeposit  LedgerKind = "player_deposit"
	LedgerPromotion      LedgerKind = "promotion"
	LedgerPlayerWithdraw LedgerKind = "player_withdraw"
	LedgerAdminWithdraw  LedgerKind = "admin_withdraw"
)

// LedgerKindForTransaction maps a transaction type to its base ledger kind.
func LedgerKindForTransaction(t TransactionType) LedgerKind {
	if t == TypeWithdraw {
		return LedgerPlayerWithdraw
	}
	return LedgerPlayerDeposit
}

// AdminLedgerEntry is one immutable-amount row of the house balance ledger.
// Its status mirrors the parent transaction's status; at most one row exists
// per (transaction_id, kind).
type AdminLedgerEntry struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Amount        decimal.Decimal    `bson:"amount" json:"amount"`
	Kind          LedgerKind         `bson:"kind" json:"kind"`
	Status        TransactionStatus  `bson:"status" json:"status"`
	PromotionID   primitive.ObjectID `bson:"promotion_id,omitempty" json:"promotion_id,omitempty"`
	TransactionID primitive.ObjectID `bson:"transaction_id,omitempty" json:"transaction_id,omitempty"`
	CurrencyID    string             `bson:"currency_id" json:"currency_id"`
	Notes         string             `bson:"notes,omitempty" json:"notes,omitempty"`
	CreatedAt     time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time          `bson:"updated_at" json:"updated_at"`
}

// Promotion holds the bonus terms referenced by a deposit.
type Promotion struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Name             string             `bson:"name" json:"name"`
	BonusPercent     decimal.Decimal    `bson:"bonus_percent" json:"bonus_percent"`
	TurnoverMultiply decimal.Decimal    `bson:"turnover_multiply" json:"turnover_multiply"`
	IsActive         bool               `bson:"is_active" json:"is_active"`
	CreatedAt        time.Time          `bson:"created_at" json:"created_at"`
}

// BonusFor computes the bonus credited for a deposit amount.
func (p *Promotion) BonusFor(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(p.BonusPercent).Div(decimal.NewFromInt(100))
}

// Settings is the single global configuration row consumed by the settlement
// engine.
type Settings struct {
	ID primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`

	// TurnoverMultiplier is applied to every approved deposit to derive the
	// default wagering requirement.
	TurnoverMultiplier decimal.Decimal `bson:"turnover_multiplier" json:"turnover_multiplier"`

	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
