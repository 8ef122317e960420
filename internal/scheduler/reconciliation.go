package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"settlement-api/internal/engine"
	"settlement-api/internal/gateway"
	"settlement-api/internal/models"
	"settlement-api/internal/monitoring"
	"settlement-api/internal/repository"
)

// ReconciliationScheduler runs the two polls that pick up whatever the
// webhook path missed. Each poll is wrapped in SkipIfStillRunning so a slow
// gateway never stacks overlapping cycles.
type ReconciliationScheduler struct {
	transactionRepo  repository.TransactionRepository
	gatewayClient    gateway.Client
	statusMapper     *gateway.StatusMapper
	settlementEngine engine.SettlementEngine
	metrics          monitoring.MetricsService
	logger           *logrus.Logger

	payinInterval  time.Duration
	payoutInterval time.Duration
	batchSize      int

	cron *cron.Cron
}

type Config struct {
	PayinInterval  time.Duration
	PayoutInterval time.Duration
	BatchSize      int
}

func NewReconciliationScheduler(
	transactionRepo repository.TransactionRepository,
	gatewayClient gateway.Client,
	statusMapper *gateway.StatusMapper,
	settlementEngine engine.SettlementEngine,
	metrics monitoring.MetricsService,
	logger *logrus.Logger,
	config Config,
) *ReconciliationScheduler {
	if config.BatchSize == 0 {
		config.BatchSize = 100
	}
	return &ReconciliationScheduler{
		transactionRepo:  transactionRepo,
		gatewayClient:    gatewayClient,
		statusMapper:     statusMapper,
		settlementEngine: settlementEngine,
		metrics:          metrics,
		logger:           logger,
		payinInterval:    config.PayinInterval,
		payoutInterval:   config.PayoutInterval,
		batchSize:        config.BatchSize,
	}
}

// Start registers both polls and launches the cron loop.
func (s *ReconciliationScheduler) Start() error {
	cronLogger := cron.PrintfLogger(s.logger)
	s.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cronLogger),
		cron.Recover(cronLogger),
	))

	if _, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.payinInterval), s.runPayinPoll); err != nil {
		return fmt.Errorf("failed to schedule payin poll: %w", err)
	}
	if _, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.payoutInterval), s.runPayoutPoll); err != nil {
		return fmt.Errorf("failed to schedule payout poll: %w", err)
	}

	s.cron.Start()
	s.logger.WithFields(logrus.Fields{
		"payin_interval":  s.payinInterval,
		"payout_interval": s.payoutInterval,
	}).Info("Reconciliation scheduler started")
	return nil
}

// Stop halts scheduling and waits for a running cycle to finish.
func (s *ReconciliationScheduler) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
	s.logger.Info("Reconciliation scheduler stopped")
}

func (s *ReconciliationScheduler) runPayinPoll() {
	ctx, cancel := context.WithTimeout(context.Background(), s.payinInterval)
	defer cancel()

	started := time.Now()
	processed := s.ReconcilePayins(ctx)
	s.metrics.RecordPollCycle("payin", processed, time.Since(started))
}

func (s *ReconciliationScheduler) runPayoutPoll() {
	ctx, cancel := context.WithTimeout(context.Background(), s.payoutInterval)
	defer cancel()

	started := time.Now()
	processed := s.ReconcilePayouts(ctx)
	s.metrics.RecordPollCycle("payout", processed, time.Since(started))
}

// ReconcilePayins queries the gateway for every pending deposit and settles
// the ones that reached a terminal status. Failures are per-item: one bad
// transaction never blocks the rest of the batch.
func (s *ReconciliationScheduler) ReconcilePayins(ctx context.Context) int {
	pending, err := s.transactionRepo.GetPendingByType(ctx, models.TypeDeposit, s.batchSize)
	if err != nil {
		s.logger.WithError(err).Error("Payin poll failed to load pending deposits")
		s.metrics.IncrementPollErrors("payin", "load")
		return 0
	}

	for _, tx := range pending {
		s.reconcilePayin(ctx, tx)
	}
	return len(pending)
}

func (s *ReconciliationScheduler) reconcilePayin(ctx context.Context, tx *models.Transaction) {
	result, err := s.gatewayClient.QueryPayinResult(ctx, tx.TradeNo)
	if err != nil {
		if gateway.IsTransient(err) {
			s.metrics.IncrementPollErrors("payin", "transient")
		} else {
			s.logger.WithError(err).WithField("trade_no", tx.TradeNo).Error("Payin query failed")
			s.metrics.IncrementPollErrors("payin", "query")
		}
		return
	}

	target, transitions := s.statusMapper.TargetStatus(result.StatusCode)
	if !transitions {
		return
	}

	_, err = s.settlementEngine.Settle(ctx, &engine.SettleRequest{
		TradeNo:         tx.TradeNo,
		TargetStatus:    target,
		PlatformTradeNo: result.PlatformTradeNo,
		Notes:           "settled via payin reconciliation",
		Actor:           "payin-poll",
	})
	if err != nil && !errors.Is(err, engine.ErrSettlementInProgress) {
		s.logger.WithError(err).WithField("trade_no", tx.TradeNo).Error("Payin settlement failed")
		s.metrics.IncrementPollErrors("payin", "settle")
		return
	}
	if err == nil {
		s.metrics.RecordSettlement(string(tx.Type), string(target), "payin-poll")
	}
}

// ReconcilePayouts handles both halves of the withdrawal lifecycle: pending
// withdrawals waiting on a disbursement result, and approved withdrawals the
// gateway has not confirmed yet.
func (s *ReconciliationScheduler) ReconcilePayouts(ctx context.Context) int {
	processed := 0

	pending, err := s.transactionRepo.GetPendingByType(ctx, models.TypeWithdraw, s.batchSize)
	if err != nil {
		s.logger.WithError(err).Error("Payout poll failed to load pending withdrawals")
		s.metrics.IncrementPollErrors("payout", "load")
	} else {
		for _, tx := range pending {
			s.reconcilePendingPayout(ctx, tx)
		}
		processed += len(pending)
	}

	unconfirmed, err := s.transactionRepo.GetApprovedUnconfirmedWithdrawals(ctx, s.batchSize)
	if err != nil {
		s.logger.WithError(err).Error("Payout poll failed to load unconfirmed withdrawals")
		s.metrics.IncrementPollErrors("payout", "load")
	} else {
		for _, tx := range unconfirmed {
			s.reconcileApprovedPayout(ctx, tx)
		}
		processed += len(unconfirmed)
	}

	return processed
}

func (s *ReconciliationScheduler) reconcilePendingPayout(ctx context.Context, tx *models.Transaction) {
	result, err := s.gatewayClient.QueryPayoutResult(ctx, tx.TradeNo)
	if err != nil {
		if gateway.IsTransient(err) {
			s.metrics.IncrementPollErrors("payout", "transient")
		} else {
			s.logger.WithError(err).WithField("trade_no", tx.TradeNo).Error("Payout query failed")
			s.metrics.IncrementPollErrors("payout", "query")
		}
		return
	}

	target, transitions := s.statusMapper.TargetStatus(result.StatusCode)
	if !transitions {
		return
	}

	_, err = s.settlementEngine.Settle(ctx, &engine.SettleRequest{
		TradeNo:         tx.TradeNo,
		TargetStatus:    target,
		PlatformTradeNo: result.PlatformTradeNo,
		Notes:           "settled via payout reconciliation",
		Actor:           "payout-poll",
	})
	if err != nil && !errors.Is(err, engine.ErrSettlementInProgress) {
		s.logger.WithError(err).WithField("trade_no", tx.TradeNo).Error("Payout settlement failed")
		s.metrics.IncrementPollErrors("payout", "settle")
		return
	}
	if err == nil {
		s.metrics.RecordSettlement(string(tx.Type), string(target), "payout-poll")
	}
}

// reconcileApprovedPayout tracks an approved withdrawal until the gateway
// reports a terminal result. Confirmation only stamps the transaction; a
// terminal failure reverses the approval.
func (s *ReconciliationScheduler) reconcileApprovedPayout(ctx context.Context, tx *models.Transaction) {
	result, err := s.gatewayClient.QueryPayoutResult(ctx, tx.TradeNo)
	if err != nil {
		if gateway.IsTransient(err) {
			s.metrics.IncrementPollErrors("payout", "transient")
		} else {
			s.logger.WithError(err).WithField("trade_no", tx.TradeNo).Error("Payout confirmation query failed")
			s.metrics.IncrementPollErrors("payout", "query")
		}
		return
	}

	outcome := s.statusMapper.Map(result.StatusCode)
	switch outcome {
	case gateway.OutcomeApproved:
		if err := s.settlementEngine.MarkPayoutConfirmed(ctx, tx.TradeNo); err != nil {
			s.logger.WithError(err).WithField("trade_no", tx.TradeNo).Error("Failed to record payout confirmation")
			s.metrics.IncrementPollErrors("payout", "confirm")
		}
	case gateway.OutcomeRejected:
		s.metrics.IncrementStatusConflicts("payout")
		s.logger.WithFields(logrus.Fields{
			"trade_no":    tx.TradeNo,
			"status_code": result.StatusCode,
		}).Warn("Gateway reports approved withdrawal as failed, reversing")

		_, err := s.settlementEngine.ReverseWithdrawal(ctx, &engine.ReverseWithdrawalRequest{
			TradeNo: tx.TradeNo,
			Notes:   fmt.Sprintf("gateway reported terminal failure (status %s)", result.StatusCode),
			Actor:   "payout-poll",
		})
		if err != nil && !errors.Is(err, engine.ErrSettlementInProgress) {
			s.logger.WithError(err).WithField("trade_no", tx.TradeNo).Error("Withdrawal reversal failed")
			s.metrics.IncrementPollErrors("payout", "reverse")
		}
	}
}
