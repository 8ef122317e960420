package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"settlement-api/internal/engine"
	"settlement-api/internal/models"
	"settlement-api/internal/monitoring"
	"settlement-api/internal/repository"
)

// AdminService exposes the back-office operations: manual settlement,
// ledger inspection, capital movements, commission management and the
// webhook audit trail.
type AdminService interface {
	ManualSettle(ctx context.Context, req *ManualSettleRequest) (*engine.SettleResult, error)
	ReverseWithdrawal(ctx context.Context, tradeNo, notes, adminID string) (*engine.SettleResult, error)

	GetMainBalance(ctx context.Context, currencyID string) (decimal.Decimal, error)
	ListLedger(ctx context.Context, kind models.LedgerKind, limit, offset int) ([]*models.AdminLedgerEntry, error)
	RecordCapitalMovement(ctx context.Context, req *CapitalMovementRequest) (*models.AdminLedgerEntry, error)

	IngestBetResult(ctx context.Context, result *models.BetResult) (*models.Commission, error)
	UpdateCommissionStatus(ctx context.Context, req *CommissionStatusRequest) error
	ListCommissions(ctx context.Context, affiliateID int64, limit, offset int) ([]*models.Commission, error)
	GetAffiliateBalance(ctx context.Context, affiliateID int64) (*models.AffiliateBalance, error)

	GetWebhookLog(ctx context.Context, tradeNo string, since time.Time, limit, offset int) ([]*models.WebhookLogEntry, error)
	SetTurnoverMultiplier(ctx context.Context, multiplier decimal.Decimal) error
}

type adminService struct {
	settlementEngine engine.SettlementEngine
	affiliateEngine  engine.AffiliateEngine
	ledgerRepo       repository.LedgerRepository
	commissionRepo   repository.CommissionRepository
	webhookLogRepo   repository.WebhookLogRepository
	settingsRepo     repository.SettingsRepository
	metrics          monitoring.MetricsService
	auditLogger      *logrus.Logger
}

func NewAdminService(
	settlementEngine engine.SettlementEngine,
	affiliateEngine engine.AffiliateEngine,
	ledgerRepo repository.LedgerRepository,
	commissionRepo repository.CommissionRepository,
	webhookLogRepo repository.WebhookLogRepository,
	settingsRepo repository.SettingsRepository,
	metrics monitoring.MetricsService,
	auditLogger *logrus.Logger,
) AdminService {
	return &adminService{
		settlementEngine: settlementEngine,
		affiliateEngine:  affiliateEngine,
		ledgerRepo:       ledgerRepo,
		commissionRepo:   commissionRepo,
		webhookLogRepo:   webhookLogRepo,
		settingsRepo:     settingsRepo,
		metrics:          metrics,
		auditLogger:      auditLogger,
	}
}

type ManualSettleRequest struct {
	TradeNo      string                   `json:"trade_no"`
	TargetStatus models.TransactionStatus `json:"target_status"`
	Notes        string                   `json:"notes"`
	AdminID      string                   `json:"admin_id"`
}

// ManualSettle routes an admin decision through the same engine as the
// automated paths, so manual actions share the locks and idempotency rules.
func (s *adminService) ManualSettle(ctx context.Context, req *ManualSettleRequest) (*engine.SettleResult, error) {
	result, err := s.settlementEngine.Settle(ctx, &engine.SettleRequest{
		TradeNo:      req.TradeNo,
		TargetStatus: req.TargetStatus,
		Notes:        req.Notes,
		Actor:        fmt.Sprintf("admin:%s", req.AdminID),
	})
	if err != nil {
		return nil, err
	}

	s.auditLogger.WithFields(logrus.Fields{
		"trade_no": req.TradeNo,
		"status":   req.TargetStatus,
		"admin_id": req.AdminID,
		"applied":  result.Applied,
	}).Info("Manual settlement")

	if result.Applied {
		s.metrics.RecordSettlement(string(result.Transaction.Type), string(req.TargetStatus), "admin")
	}
	return result, nil
}

func (s *adminService) ReverseWithdrawal(ctx context.Context, tradeNo, notes, adminID string) (*engine.SettleResult, error) {
	result, err := s.settlementEngine.ReverseWithdrawal(ctx, &engine.ReverseWithdrawalRequest{
		TradeNo: tradeNo,
		Notes:   notes,
		Actor:   fmt.Sprintf("admin:%s", adminID),
	})
	if err != nil {
		return nil, err
	}

	s.auditLogger.WithFields(logrus.Fields{
		"trade_no": tradeNo,
		"admin_id": adminID,
		"applied":  result.Applied,
	}).Warn("Manual withdrawal reversal")
	return result, nil
}

func (s *adminService) GetMainBalance(ctx context.Context, currencyID string) (decimal.Decimal, error) {
	return s.ledgerRepo.MainBalance(ctx, currencyID)
}

func (s *adminService) ListLedger(ctx context.Context, kind models.LedgerKind, limit, offset int) ([]*models.AdminLedgerEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.ledgerRepo.List(ctx, kind, limit, offset)
}

type CapitalMovementRequest struct {
	Kind       models.LedgerKind `json:"kind"`
	Amount     decimal.Decimal   `json:"amount"`
	CurrencyID string            `json:"currency_id"`
	Notes      string            `json:"notes"`
	AdminID    string            `json:"admin_id"`
}

// RecordCapitalMovement writes an admin_deposit or admin_withdraw entry for
// house funds moved outside the player flows.
func (s *adminService) RecordCapitalMovement(ctx context.Context, req *CapitalMovementRequest) (*models.AdminLedgerEntry, error) {
	if req.Kind != models.LedgerAdminDeposit && req.Kind != models.LedgerAdminWithdraw {
		return nil, fmt.Errorf("capital movements must be admin_deposit or admin_withdraw, got %s", req.Kind)
	}
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("capital movement amount must be positive")
	}

	entry := &models.AdminLedgerEntry{
		Kind:       req.Kind,
		Amount:     req.Amount,
		Status:     models.StatusApproved,
		CurrencyID: req.CurrencyID,
		Notes:      req.Notes,
	}
	if err := s.ledgerRepo.Create(ctx, entry); err != nil {
		return nil, err
	}

	s.auditLogger.WithFields(logrus.Fields{
		"kind":     req.Kind,
		"amount":   req.Amount.String(),
		"admin_id": req.AdminID,
	}).Info("Capital movement recorded")
	return entry, nil
}

func (s *adminService) IngestBetResult(ctx context.Context, result *models.BetResult) (*models.Commission, error) {
	commission, err := s.affiliateEngine.RecordBetResult(ctx, result)
	if err != nil {
		return nil, err
	}

	amount, _ := commission.Amount.Float64()
	s.metrics.RecordCommission(string(commission.Outcome), amount)
	return commission, nil
}

type CommissionStatusRequest struct {
	CommissionID string                  `json:"commission_id"`
	Status       models.CommissionStatus `json:"status"`
	Notes        string                  `json:"notes"`
	AdminID      string                  `json:"admin_id"`
}

// commissionTransitions lists the allowed status progressions. Paid and
// rejected are final.
var commissionTransitions = map[models.CommissionStatus][]models.CommissionStatus{
	models.CommissionPending:  {models.CommissionApproved, models.CommissionRejected},
	models.CommissionApproved: {models.CommissionPaid, models.CommissionRejected},
}

func (s *adminService) UpdateCommissionStatus(ctx context.Context, req *CommissionStatusRequest) error {
	if !req.Status.Valid() {
		return fmt.Errorf("invalid commission status %q", req.Status)
	}

	id, err := primitive.ObjectIDFromHex(req.CommissionID)
	if err != nil {
		return fmt.Errorf("invalid commission ID: %w", err)
	}

	commission, err := s.commissionRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	allowed := false
	for _, next := range commissionTransitions[commission.Status] {
		if next == req.Status {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("commission cannot move from %s to %s", commission.Status, req.Status)
	}

	if err := s.commissionRepo.UpdateStatus(ctx, id, req.Status, req.Notes); err != nil {
		return err
	}

	s.auditLogger.WithFields(logrus.Fields{
		"commission_id": req.CommissionID,
		"from":          commission.Status,
		"to":            req.Status,
		"admin_id":      req.AdminID,
	}).Info("Commission status updated")
	return nil
}

func (s *adminService) ListCommissions(ctx context.Context, affiliateID int64, limit, offset int) ([]*models.Commission, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.commissionRepo.ListByAffiliate(ctx, affiliateID, limit, offset)
}

func (s *adminService) GetAffiliateBalance(ctx context.Context, affiliateID int64) (*models.AffiliateBalance, error) {
	return s.affiliateEngine.GetBalance(ctx, affiliateID)
}

func (s *adminService) GetWebhookLog(ctx context.Context, tradeNo string, since time.Time, limit, offset int) ([]*models.WebhookLogEntry, error) {
	if tradeNo != "" {
		return s.webhookLogRepo.GetByTradeNo(ctx, tradeNo)
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.webhookLogRepo.List(ctx, since, limit, offset)
}

func (s *adminService) SetTurnoverMultiplier(ctx context.Context, multiplier decimal.Decimal) error {
	if !multiplier.IsPositive() {
		return fmt.Errorf("turnover multiplier must be positive")
	}
	if err := s.settingsRepo.SetTurnoverMultiplier(ctx, multiplier); err != nil {
		return err
	}

	s.auditLogger.WithField("multiplier", multiplier.String()).Info("Turnover multiplier updated")
	return nil
}
