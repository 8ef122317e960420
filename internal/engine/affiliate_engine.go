package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"settlement-api/internal/models"
	"settlement-api/internal/repository"
)

// AffiliateEngine records bet-driven commissions and derives affiliate
// balances at read time. Balances are never stored, so the commission and
// withdrawal ledgers remain the only sources of truth.
type AffiliateEngine interface {
	RecordBetResult(ctx context.Context, result *models.BetResult) (*models.Commission, error)
	GetBalance(ctx context.Context, affiliateID int64) (*models.AffiliateBalance, error)
	AuthorizeWithdrawal(ctx context.Context, affiliateID int64, amount decimal.Decimal, reserve func(ctx context.Context) error) error
}

// ErrInsufficientBalance is returned when a requested withdrawal exceeds the
// affiliate's current balance.
var ErrInsufficientBalance = errors.New("insufficient affiliate balance")

type affiliateEngine struct {
	commissionRepo  repository.CommissionRepository
	transactionRepo repository.TransactionRepository
	lockManager     *repository.SettlementLockManager
	logger          *logrus.Logger
	lockTTL         time.Duration
}

func NewAffiliateEngine(
	commissionRepo repository.CommissionRepository,
	transactionRepo repository.TransactionRepository,
	lockManager *repository.SettlementLockManager,
	logger *logrus.Logger,
) AffiliateEngine {
	return &affiliateEngine{
		commissionRepo:  commissionRepo,
		transactionRepo: transactionRepo,
		lockManager:     lockManager,
		logger:          logger,
		lockTTL:         10 * time.Second,
	}
}

// RecordBetResult converts one bet result into a pending commission. Replayed
// events return the existing commission unchanged.
func (e *affiliateEngine) RecordBetResult(ctx context.Context, result *models.BetResult) (*models.Commission, error) {
	if result.BetResultID == "" {
		return nil, fmt.Errorf("bet result ID is required")
	}
	if result.ReferenceAmount.IsNegative() {
		return nil, fmt.Errorf("reference amount cannot be negative")
	}

	existing, err := e.commissionRepo.GetByBetResultID(ctx, result.BetResultID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	amount := result.ReferenceAmount.Mul(result.CommissionRate).Div(decimal.NewFromInt(100))
	// A player win is funded by the affiliate, so the commission goes
	// negative.
	if result.Outcome == models.BetOutcomeWin {
		amount = amount.Neg()
	}

	commission := &models.Commission{
		BetResultID: result.BetResultID,
		PlayerID:    result.PlayerID,
		AffiliateID: result.AffiliateID,
		Outcome:     result.Outcome,
		Amount:      amount,
		Percentage:  result.CommissionRate,
		Status:      models.CommissionPending,
	}
	if err := e.commissionRepo.Create(ctx, commission); err != nil {
		return nil, err
	}

	e.logger.WithFields(logrus.Fields{
		"bet_result_id": result.BetResultID,
		"affiliate_id":  result.AffiliateID,
		"outcome":       result.Outcome,
		"amount":        amount.String(),
	}).Info("Commission recorded")

	return commission, nil
}

// GetBalance folds the approved commission totals and withdrawal totals into
// the affiliate's current balance.
func (e *affiliateEngine) GetBalance(ctx context.Context, affiliateID int64) (*models.AffiliateBalance, error) {
	commissions, err := e.commissionRepo.GetAffiliateLifetimeTotals(ctx, affiliateID)
	if err != nil {
		return nil, err
	}
	withdrawals, err := e.transactionRepo.GetAffiliateTotals(ctx, affiliateID)
	if err != nil {
		return nil, err
	}

	balance := &models.AffiliateBalance{
		AffiliateID:       affiliateID,
		LifetimeProfit:    commissions.Profit,
		LifetimeLoss:      commissions.Loss,
		LifetimeWithdraw:  withdrawals.ApprovedUnanchored,
		PendingWithdrawal: withdrawals.Pending,
	}
	balance.CurrentBalance = balance.LifetimeProfit.
		Sub(balance.LifetimeLoss).
		Sub(balance.LifetimeWithdraw).
		Sub(balance.PendingWithdrawal)

	return balance, nil
}

// AuthorizeWithdrawal checks the requested amount against the current balance
// and, when it fits, runs reserve — all under one per-affiliate lock. reserve
// must leave the pending withdrawal behind before it returns; once the lock is
// released the next request reads the balance again, and only a stored pending
// row keeps it from authorizing against the same funds.
func (e *affiliateEngine) AuthorizeWithdrawal(ctx context.Context, affiliateID int64, amount decimal.Decimal, reserve func(ctx context.Context) error) error {
	if !amount.IsPositive() {
		return fmt.Errorf("withdrawal amount must be positive")
	}

	lock, err := e.lockManager.LockAffiliate(ctx, affiliateID, e.lockTTL)
	if err != nil {
		if errors.Is(err, repository.ErrLockHeld) {
			return fmt.Errorf("affiliate %d has a withdrawal in flight", affiliateID)
		}
		return fmt.Errorf("failed to lock affiliate: %w", err)
	}
	defer func() {
		if releaseErr := e.lockManager.ReleaseLock(ctx, lock); releaseErr != nil {
			e.logger.WithError(releaseErr).WithField("affiliate_id", affiliateID).Warn("Failed to release affiliate lock")
		}
	}()

	balance, err := e.GetBalance(ctx, affiliateID)
	if err != nil {
		return err
	}
	if amount.GreaterThan(balance.CurrentBalance) {
		return fmt.Errorf("%w: requested %s, available %s",
			ErrInsufficientBalance, amount.String(), balance.CurrentBalance.String())
	}
	if reserve == nil {
		return nil
	}
	return reserve(ctx)
}
