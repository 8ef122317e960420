package engine

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"settlement-api/internal/models"
	"settlement-api/internal/repository"
)

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

type MockTurnoverRepository struct {
	mock.Mock
}

func (m *MockTurnoverRepository) Upsert(ctx context.Context, record *models.TurnoverRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockTurnoverRepository) GetByTransaction(ctx context.Context, transactionID primitive.ObjectID) ([]*models.TurnoverRecord, error) {
	args := m.Called(ctx, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.TurnoverRecord), args.Error(1)
}

func (m *MockTurnoverRepository) SetStatusByTransaction(ctx context.Context, transactionID primitive.ObjectID, status models.TurnoverStatus) error {
	args := m.Called(ctx, transactionID, status)
	return args.Error(0)
}

func (m *MockTurnoverRepository) GetActiveByUser(ctx context.Context, userID int64) ([]*models.TurnoverRecord, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.TurnoverRecord), args.Error(1)
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

// MockLockRepository always grants locks unless primed otherwise.
type MockLockRepository struct {
	mock.Mock
}

func (m *MockLockRepository) AcquireLock(ctx context.Context, key string, ttl time.Duration) (*repository.DistributedLock, error) {
	args := m.Called(ctx, key, ttl)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.DistributedLock), args.Error(1)
}

func (m *MockLockRepository) ReleaseLock(ctx context.Context, lock *repository.DistributedLock) error {
	args := m.Called(ctx, lock)
	return args.Error(0)
}

func (m *MockLockRepository) ExtendLock(ctx context.Context, lock *repository.DistributedLock, ttl time.Duration) error {
	args := m.Called(ctx, lock, ttl)
	return args.Error(0)
}

func (m *MockLockRepository) IsLocked(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) PublishSettlement(ctx context.Context, event *SettlementEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// passthroughTxRunner executes the callback directly, without a session.
type passthroughTxRunner struct{}

func (passthroughTxRunner) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
