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

// SettlementEngine is the single writer of transaction status and its
// dependent ledgers. Both delivery paths (webhook and polls) and manual admin
// actions converge here, so replays and races collapse into one idempotent
// settlement per transaction.
type SettlementEngine interface {
	Settle(ctx context.Context, req *SettleRequest) (*SettleResult, error)
	ReverseWithdrawal(ctx context.Context, req *ReverseWithdrawalRequest) (*SettleResult, error)
	MarkPayoutConfirmed(ctx context.Context, tradeNo string) error
}

// TxRunner executes fn atomically. The mongo-backed implementation wraps fn
// in a session transaction; tests substitute a passthrough.
type TxRunner interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// EventPublisher emits settlement events for downstream consumers. Publishing
// is best-effort: a broker outage never fails a settlement.
type EventPublisher interface {
	PublishSettlement(ctx context.Context, event *SettlementEvent) error
}

type SettlementEvent struct {
	TradeNo    string                   `json:"trade_no"`
	UserID     int64                    `json:"user_id"`
	Type       models.TransactionType   `json:"type"`
	Status     models.TransactionStatus `json:"status"`
	Amount     decimal.Decimal          `json:"amount"`
	CurrencyID string                   `json:"currency_id"`
	Actor      string                   `json:"actor"`
	OccurredAt time.Time                `json:"occurred_at"`
}

// SettlementOptions carries the engine tunables read from configuration.
type SettlementOptions struct {
	// LockTTL bounds how long a settlement may hold its per-transaction lock.
	LockTTL time.Duration
	// DefaultLabel is stamped on the base turnover record of every deposit.
	DefaultLabel string
	// PromotionLabel is the fallback label for bonus rows whose promotion
	// carries no name.
	PromotionLabel string
}

type settlementEngine struct {
	transactionRepo repository.TransactionRepository
	turnoverRepo    repository.TurnoverRepository
	ledgerRepo      repository.LedgerRepository
	settingsRepo    repository.SettingsRepository
	lockManager     *repository.SettlementLockManager
	txRunner        TxRunner
	publisher       EventPublisher
	logger          *logrus.Logger
	opts            SettlementOptions
}

func NewSettlementEngine(
	transactionRepo repository.TransactionRepository,
	turnoverRepo repository.TurnoverRepository,
	ledgerRepo repository.LedgerRepository,
	settingsRepo repository.SettingsRepository,
	lockManager *repository.SettlementLockManager,
	txRunner TxRunner,
	publisher EventPublisher,
	opts SettlementOptions,
	logger *logrus.Logger,
) SettlementEngine {
	if opts.LockTTL <= 0 {
		opts.LockTTL = 30 * time.Second
	}
	return &settlementEngine{
		transactionRepo: transactionRepo,
		turnoverRepo:    turnoverRepo,
		ledgerRepo:      ledgerRepo,
		settingsRepo:    settingsRepo,
		lockManager:     lockManager,
		txRunner:        txRunner,
		publisher:       publisher,
		logger:          logger,
		opts:            opts,
	}
}

type SettleRequest struct {
	TradeNo         string                   `json:"trade_no"`
	TargetStatus    models.TransactionStatus `json:"target_status"`
	PlatformTradeNo string                   `json:"platform_trade_no,omitempty"`
	Notes           string                   `json:"notes,omitempty"`
	Actor           string                   `json:"actor"`
}

type SettleResult struct {
	Transaction *models.Transaction `json:"transaction"`
	// Applied is false when the settlement was a no-op: the transaction was
	// already terminal or the target status carried no transition.
	Applied bool   `json:"applied"`
	Reason  string `json:"reason,omitempty"`
}

// ErrSettlementInProgress means another caller holds the settlement lock for
// the same transaction. The delivery paths treat it as success and let the
// holder finish.
var ErrSettlementInProgress = errors.New("settlement already in progress")

func (e *settlementEngine) Settle(ctx context.Context, req *SettleRequest) (*SettleResult, error) {
	if !req.TargetStatus.Valid() {
		return nil, fmt.Errorf("invalid target status %q", req.TargetStatus)
	}

	lock, err := e.lockManager.LockTransaction(ctx, req.TradeNo, e.opts.LockTTL)
	if err != nil {
		if errors.Is(err, repository.ErrLockHeld) {
			return nil, ErrSettlementInProgress
		}
		return nil, fmt.Errorf("failed to lock transaction: %w", err)
	}
	defer func() {
		if releaseErr := e.lockManager.ReleaseLock(ctx, lock); releaseErr != nil {
			e.logger.WithError(releaseErr).WithField("trade_no", req.TradeNo).Warn("Failed to release settlement lock")
		}
	}()

	transaction, err := e.transactionRepo.GetByTradeNo(ctx, req.TradeNo)
	if err != nil {
		return nil, err
	}

	// Terminal states are sticky: a late or replayed delivery never moves an
	// approved or rejected transaction.
	if transaction.Status.IsTerminal() {
		return &SettleResult{
			Transaction: transaction,
			Applied:     false,
			Reason:      fmt.Sprintf("already %s", transaction.Status),
		}, nil
	}

	if req.TargetStatus == models.StatusPending {
		return &SettleResult{
			Transaction: transaction,
			Applied:     false,
			Reason:      "status carries no transition",
		}, nil
	}

	if req.PlatformTradeNo != "" && transaction.PlatformTradeNo == "" {
		transaction.PlatformTradeNo = req.PlatformTradeNo
	}
	transaction.MarkSettled(req.TargetStatus, req.Notes, req.Actor)

	err = e.txRunner.WithTransaction(ctx, func(ctx context.Context) error {
		// Fan-out first: applyApproval sets the bonus amount on the
		// transaction, and the write below has to carry it.
		if req.TargetStatus == models.StatusApproved {
			if err := e.applyApproval(ctx, transaction); err != nil {
				return err
			}
		} else {
			if err := e.applyRejection(ctx, transaction); err != nil {
				return err
			}
		}
		if err := e.transactionRepo.Update(ctx, transaction); err != nil {
			return err
		}
		// Ledger rows always mirror the final transaction status.
		return e.ledgerRepo.SetStatusByTransaction(ctx, transaction.ID, transaction.Status)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to settle transaction %s: %w", req.TradeNo, err)
	}

	e.logger.WithFields(logrus.Fields{
		"trade_no": req.TradeNo,
		"status":   req.TargetStatus,
		"type":     transaction.Type,
		"actor":    req.Actor,
	}).Info("Transaction settled")

	e.publishEvent(ctx, transaction, req.Actor)

	return &SettleResult{Transaction: transaction, Applied: true}, nil
}

// applyApproval fans an approved settlement out into turnover records and
// admin ledger rows. Every write is an upsert keyed on (transaction_id, kind)
// so a replayed approval converges on the same rows.
func (e *settlementEngine) applyApproval(ctx context.Context, transaction *models.Transaction) error {
	if transaction.IsDeposit() {
		settings, err := e.settingsRepo.Get(ctx)
		if err != nil {
			return err
		}

		target := transaction.Amount.Mul(settings.TurnoverMultiplier)
		if err := e.turnoverRepo.Upsert(ctx, &models.TurnoverRecord{
			UserID:            transaction.UserID,
			TransactionID:     transaction.ID,
			Kind:              models.TurnoverDefault,
			Status:            models.TurnoverActive,
			DepositAmount:     transaction.Amount,
			TargetTurnover:    target,
			RemainingTurnover: target,
			Label:             e.opts.DefaultLabel,
		}); err != nil {
			return err
		}

		if transaction.HasPromotion() {
			if err := e.applyPromotion(ctx, transaction); err != nil {
				return err
			}
		}
	}

	return e.ledgerRepo.Upsert(ctx, &models.AdminLedgerEntry{
		TransactionID: transaction.ID,
		Kind:          models.LedgerKindForTransaction(transaction.Type),
		Amount:        transaction.Amount,
		Status:        models.StatusApproved,
		CurrencyID:    transaction.CurrencyID,
		Notes:         transaction.Notes,
	})
}

func (e *settlementEngine) applyPromotion(ctx context.Context, transaction *models.Transaction) error {
	promotion, err := e.settingsRepo.GetPromotion(ctx, transaction.PromotionID)
	if err != nil {
		return err
	}

	bonus := promotion.BonusFor(transaction.Amount)
	transaction.BonusAmount = bonus

	label := promotion.Name
	if label == "" {
		label = e.opts.PromotionLabel
	}

	bonusTarget := bonus.Mul(promotion.TurnoverMultiply)
	if err := e.turnoverRepo.Upsert(ctx, &models.TurnoverRecord{
		UserID:            transaction.UserID,
		TransactionID:     transaction.ID,
		Kind:              models.TurnoverPromotion,
		Status:            models.TurnoverActive,
		DepositAmount:     bonus,
		TargetTurnover:    bonusTarget,
		RemainingTurnover: bonusTarget,
		Label:             label,
	}); err != nil {
		return err
	}

	return e.ledgerRepo.Upsert(ctx, &models.AdminLedgerEntry{
		TransactionID: transaction.ID,
		Kind:          models.LedgerPromotion,
		Amount:        bonus,
		Status:        models.StatusApproved,
		PromotionID:   promotion.ID,
		CurrencyID:    transaction.CurrencyID,
		Notes:         label,
	})
}

// applyRejection deactivates any turnover rows an earlier partial settlement
// may have written. Ledger rows are not deleted; the status mirror marks them
// rejected so aggregates skip them.
func (e *settlementEngine) applyRejection(ctx context.Context, transaction *models.Transaction) error {
	return e.turnoverRepo.SetStatusByTransaction(ctx, transaction.ID, models.TurnoverInactive)
}

type ReverseWithdrawalRequest struct {
	TradeNo string `json:"trade_no"`
	Notes   string `json:"notes,omitempty"`
	Actor   string `json:"actor"`
}

// ReverseWithdrawal moves an approved withdrawal back to rejected when the
// gateway reports the disbursement terminally failed. This is the only
// sanctioned exit from a terminal state, and it exists solely for the payout
// poll and manual admin correction.
func (e *settlementEngine) ReverseWithdrawal(ctx context.Context, req *ReverseWithdrawalRequest) (*SettleResult, error) {
	lock, err := e.lockManager.LockTransaction(ctx, req.TradeNo, e.opts.LockTTL)
	if err != nil {
		if errors.Is(err, repository.ErrLockHeld) {
			return nil, ErrSettlementInProgress
		}
		return nil, fmt.Errorf("failed to lock transaction: %w", err)
	}
	defer func() {
		if releaseErr := e.lockManager.ReleaseLock(ctx, lock); releaseErr != nil {
			e.logger.WithError(releaseErr).WithField("trade_no", req.TradeNo).Warn("Failed to release settlement lock")
		}
	}()

	transaction, err := e.transactionRepo.GetByTradeNo(ctx, req.TradeNo)
	if err != nil {
		return nil, err
	}

	if !transaction.IsWithdrawal() {
		return nil, fmt.Errorf("transaction %s is not a withdrawal", req.TradeNo)
	}
	if transaction.Status != models.StatusApproved {
		return &SettleResult{
			Transaction: transaction,
			Applied:     false,
			Reason:      fmt.Sprintf("withdrawal is %s, nothing to reverse", transaction.Status),
		}, nil
	}

	transaction.MarkSettled(models.StatusRejected, req.Notes, req.Actor)

	err = e.txRunner.WithTransaction(ctx, func(ctx context.Context) error {
		if err := e.transactionRepo.Update(ctx, transaction); err != nil {
			return err
		}
		return e.ledgerRepo.SetStatusByTransaction(ctx, transaction.ID, models.StatusRejected)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to reverse withdrawal %s: %w", req.TradeNo, err)
	}

	e.logger.WithFields(logrus.Fields{
		"trade_no": req.TradeNo,
		"actor":    req.Actor,
	}).Warn("Approved withdrawal reversed after terminal gateway failure")

	e.publishEvent(ctx, transaction, req.Actor)

	return &SettleResult{Transaction: transaction, Applied: true}, nil
}

// MarkPayoutConfirmed records the gateway's disbursement confirmation. It
// never changes transaction or ledger state.
func (e *settlementEngine) MarkPayoutConfirmed(ctx context.Context, tradeNo string) error {
	transaction, err := e.transactionRepo.GetByTradeNo(ctx, tradeNo)
	if err != nil {
		return err
	}
	if transaction.GatewayConfirmedAt != nil {
		return nil
	}

	now := time.Now()
	transaction.GatewayConfirmedAt = &now
	if err := e.transactionRepo.Update(ctx, transaction); err != nil {
		return fmt.Errorf("failed to mark payout confirmed: %w", err)
	}

	e.logger.WithField("trade_no", tradeNo).Info("Payout confirmed by gateway")
	return nil
}

func (e *settlementEngine) publishEvent(ctx context.Context, transaction *models.Transaction, actor string) {
	if e.publisher == nil {
		return
	}

	event := &SettlementEvent{
		TradeNo:    transaction.TradeNo,
		UserID:     transaction.UserID,
		Type:       transaction.Type,
		Status:     transaction.Status,
		Amount:     transaction.Amount,
		CurrencyID: transaction.CurrencyID,
		Actor:      actor,
		OccurredAt: time.Now(),
	}
	if err := e.publisher.PublishSettlement(ctx, event); err != nil {
		e.logger.WithError(err).WithField("trade_no", transaction.TradeNo).Warn("Failed to publish settlement event")
	}
}
