package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"settlement-api/internal/engine"
	"settlement-api/internal/gateway"
	"settlement-api/internal/models"
	"settlement-api/internal/repository"
)

type MockSettlementEngine struct {
	mock.Mock
}

func (m *MockSettlementEngine) Settle(ctx context.Context, req *engine.SettleRequest) (*engine.SettleResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*engine.SettleResult), args.Error(1)
}

func (m *MockSettlementEngine) ReverseWithdrawal(ctx context.Context, req *engine.ReverseWithdrawalRequest) (*engine.SettleResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*engine.SettleResult), args.Error(1)
}

func (m *MockSettlementEngine) MarkPayoutConfirmed(ctx context.Context, tradeNo string) error {
	args := m.Called(ctx, tradeNo)
	return args.Error(0)
}

type MockAffiliateEngine struct {
	mock.Mock
}

func (m *MockAffiliateEngine) RecordBetResult(ctx context.Context, result *models.BetResult) (*models.Commission, error) {
	args := m.Called(ctx, result)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Commission), args.Error(1)
}

func (m *MockAffiliateEngine) GetBalance(ctx context.Context, affiliateID int64) (*models.AffiliateBalance, error) {
	args := m.Called(ctx, affiliateID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AffiliateBalance), args.Error(1)
}

func (m *MockAffiliateEngine) AuthorizeWithdrawal(ctx context.Context, affiliateID int64, amount decimal.Decimal, reserve func(ctx context.Context) error) error {
	args := m.Called(ctx, affiliateID, amount, reserve)
	if err := args.Error(0); err != nil {
		return err
	}
	if reserve != nil {
		return reserve(ctx)
	}
	return nil
}

type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) Create(ctx context.Context, transaction *models.Transaction) error {
	args := m.Called(ctx, transaction)
	return args.Error(0)
}

func (m *MockTransactionRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Transaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) GetByTradeNo(ctx context.Context, tradeNo string) (*models.Transaction, error) {
	args := m.Called(ctx, tradeNo)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) Update(ctx context.Context, transaction *models.Transaction) error {
	args := m.Called(ctx, transaction)
	return args.Error(0)
}

func (m *MockTransactionRepository) GetPendingByType(ctx context.Context, txType models.TransactionType, limit int) ([]*models.Transaction, error) {
	args := m.Called(ctx, txType, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) GetApprovedUnconfirmedWithdrawals(ctx context.Context, limit int) ([]*models.Transaction, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) GetByUserID(ctx context.Context, userID int64, limit, offset int) ([]*models.Transaction, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) GetAffiliateTotals(ctx context.Context, affiliateID int64) (*repository.AffiliateWithdrawTotals, error) {
	args := m.Called(ctx, affiliateID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.AffiliateWithdrawTotals), args.Error(1)
}

type MockSettingsRepository struct {
	mock.Mock
}

func (m *MockSettingsRepository) Get(ctx context.Context) (*models.Settings, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Settings), args.Error(1)
}

func (m *MockSettingsRepository) SetTurnoverMultiplier(ctx context.Context, multiplier decimal.Decimal) error {
	args := m.Called(ctx, multiplier)
	return args.Error(0)
}

func (m *MockSettingsRepository) GetPromotion(ctx context.Context, id primitive.ObjectID) (*models.Promotion, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Promotion), args.Error(1)
}

func (m *MockSettingsRepository) ListActivePromotions(ctx context.Context) ([]*models.Promotion, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Promotion), args.Error(1)
}

type MockCommissionRepository struct {
	mock.Mock
}

func (m *MockCommissionRepository) GetByBetResultID(ctx context.Context, betResultID string) (*models.Commission, error) {
	args := m.Called(ctx, betResultID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Commission), args.Error(1)
}

func (m *MockCommissionRepository) Create(ctx context.Context, commission *models.Commission) error {
	args := m.Called(ctx, commission)
	return args.Error(0)
}

func (m *MockCommissionRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Commission, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Commission), args.Error(1)
}

func (m *MockCommissionRepository) UpdateStatus(ctx context.Context, id primitive.ObjectID, status models.CommissionStatus, notes string) error {
	args := m.Called(ctx, id, status, notes)
	return args.Error(0)
}

func (m *MockCommissionRepository) ListByAffiliate(ctx context.Context, affiliateID int64, limit, offset int) ([]*models.Commission, error) {
	args := m.Called(ctx, affiliateID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Commission), args.Error(1)
}

func (m *MockCommissionRepository) GetAffiliateLifetimeTotals(ctx context.Context, affiliateID int64) (*repository.AffiliateLifetimeTotals, error) {
	args := m.Called(ctx, affiliateID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.AffiliateLifetimeTotals), args.Error(1)
}

type MockLedgerRepository struct {
	mock.Mock
}

func (m *MockLedgerRepository) Upsert(ctx context.Context, entry *models.AdminLedgerEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockLedgerRepository) SetStatusByTransaction(ctx context.Context, transactionID primitive.ObjectID, status models.TransactionStatus) error {
	args := m.Called(ctx, transactionID, status)
	return args.Error(0)
}

func (m *MockLedgerRepository) GetByTransaction(ctx context.Context, transactionID primitive.ObjectID) ([]*models.AdminLedgerEntry, error) {
	args := m.Called(ctx, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.AdminLedgerEntry), args.Error(1)
}

func (m *MockLedgerRepository) List(ctx context.Context, kind models.LedgerKind, limit, offset int) ([]*models.AdminLedgerEntry, error) {
	args := m.Called(ctx, kind, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.AdminLedgerEntry), args.Error(1)
}

func (m *MockLedgerRepository) MainBalance(ctx context.Context, currencyID string) (decimal.Decimal, error) {
	args := m.Called(ctx, currencyID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockLedgerRepository) Create(ctx context.Context, entry *models.AdminLedgerEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

type MockWebhookLogRepository struct {
	mock.Mock
}

func (m *MockWebhookLogRepository) Create(ctx context.Context, entry *models.WebhookLogEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockWebhookLogRepository) GetByTradeNo(ctx context.Context, tradeNo string) ([]*models.WebhookLogEntry, error) {
	args := m.Called(ctx, tradeNo)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.WebhookLogEntry), args.Error(1)
}

func (m *MockWebhookLogRepository) List(ctx context.Context, since time.Time, limit, offset int) ([]*models.WebhookLogEntry, error) {
	args := m.Called(ctx, since, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.WebhookLogEntry), args.Error(1)
}

type MockGatewayClient struct {
	mock.Mock
}

func (m *MockGatewayClient) Checkout(ctx context.Context, req *gateway.CheckoutRequest) (*gateway.CheckoutResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.CheckoutResponse), args.Error(1)
}

func (m *MockGatewayClient) SubmitPayin(ctx context.Context, req *gateway.PayinSubmitRequest) (*gateway.TradeResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.TradeResult), args.Error(1)
}

func (m *MockGatewayClient) QueryPayinResult(ctx context.Context, tradeNo string) (*gateway.TradeResult, error) {
	args := m.Called(ctx, tradeNo)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.TradeResult), args.Error(1)
}

func (m *MockGatewayClient) Disbursement(ctx context.Context, req *gateway.DisbursementRequest) (*gateway.TradeResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.TradeResult), args.Error(1)
}

func (m *MockGatewayClient) QueryPayoutResult(ctx context.Context, tradeNo string) (*gateway.TradeResult, error) {
	args := m.Called(ctx, tradeNo)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.TradeResult), args.Error(1)
}

func (m *MockGatewayClient) QueryBalance(ctx context.Context) (*gateway.MerchantBalance, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.MerchantBalance), args.Error(1)
}
