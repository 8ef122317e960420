package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"settlement-api/internal/engine"
	"settlement-api/internal/gateway"
	"settlement-api/internal/models"
	"settlement-api/internal/monitoring"
)

type paymentFixture struct {
	transactionRepo *MockTransactionRepository
	settingsRepo    *MockSettingsRepository
	gatewayClient   *MockGatewayClient
	affiliateEngine *MockAffiliateEngine
	service         PaymentService
}

func newPaymentFixture() *paymentFixture {
	f := &paymentFixture{
		transactionRepo: new(MockTransactionRepository),
		settingsRepo:    new(MockSettingsRepository),
		gatewayClient:   new(MockGatewayClient),
		affiliateEngine: new(MockAffiliateEngine),
	}

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	f.service = NewPaymentService(
		f.transactionRepo,
		f.settingsRepo,
		f.gatewayClient,
		f.affiliateEngine,
		monitoring.NewNoopMetrics(),
		logger,
		"https://platform.example.com/webhook/payment",
	)
	return f
}

func TestInitiateDeposit_CreatesPendingAndReturnsPaymentURL(t *testing.T) {
	f := newPaymentFixture()

	f.transactionRepo.On("Create", mock.Anything, mock.MatchedBy(func(tx *models.Transaction) bool {
		return tx.Status == models.StatusPending && tx.IsDeposit()
	})).Return(nil)
	f.gatewayClient.On("Checkout", mock.Anything, mock.MatchedBy(func(r *gateway.CheckoutRequest) bool {
		return r.Amount.Equal(decimal.NewFromInt(1000)) && r.NotifyURL != ""
	})).Return(&gateway.CheckoutResponse{
		PlatformTradeNo: "P-1",
		PaymentURL:      "https://pay.example.com/P-1",
	}, nil)
	f.transactionRepo.On("Update", mock.Anything, mock.MatchedBy(func(tx *models.Transaction) bool {
		return tx.PlatformTradeNo == "P-1"
	})).Return(nil)

	resp, err := f.service.InitiateDeposit(context.Background(), &InitiateDepositRequest{
		UserID:     42,
		Amount:     decimal.NewFromInt(1000),
		CurrencyID: "IDR",
	})

	require.NoError(t, err)
	assert.NotEmpty(t, resp.TradeNo)
	assert.Equal(t, "https://pay.example.com/P-1", resp.PaymentURL)
	f.transactionRepo.AssertExpectations(t)
}

func TestInitiateDeposit_RejectsInactivePromotion(t *testing.T) {
	f := newPaymentFixture()

	promoID := primitive.NewObjectID()
	f.settingsRepo.On("GetPromotion", mock.Anything, promoID).Return(&models.Promotion{
		ID:       promoID,
		Name:     "Expired Bonus",
		IsActive: false,
	}, nil)

	_, err := f.service.InitiateDeposit(context.Background(), &InitiateDepositRequest{
		UserID:      42,
		Amount:      decimal.NewFromInt(100),
		CurrencyID:  "IDR",
		PromotionID: promoID.Hex(),
	})

	assert.Error(t, err)
	f.transactionRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestInitiateDeposit_RejectsNonPositiveAmount(t *testing.T) {
	f := newPaymentFixture()

	_, err := f.service.InitiateDeposit(context.Background(), &InitiateDepositRequest{
		UserID: 42,
		Amount: decimal.Zero,
	})

	assert.Error(t, err)
}

func TestSubmitPayin_RejectsSettledTransaction(t *testing.T) {
	f := newPaymentFixture()

	settled := models.NewTransaction(42, models.TypeDeposit, decimal.NewFromInt(100), "IDR")
	settled.Status = models.StatusApproved
	f.transactionRepo.On("GetByTradeNo", mock.Anything, "DEP-1").Return(settled, nil)

	err := f.service.SubmitPayin(context.Background(), &SubmitPayinRequest{
		TradeNo:        "DEP-1",
		PayerReference: "REF",
	})

	assert.Error(t, err)
	f.gatewayClient.AssertNotCalled(t, "SubmitPayin", mock.Anything, mock.Anything)
}

func TestInitiateWithdrawal_AffiliateBalanceChecked(t *testing.T) {
	f := newPaymentFixture()

	f.affiliateEngine.On("AuthorizeWithdrawal", mock.Anything, int64(3), decimal.NewFromInt(500), mock.Anything).
		Return(engine.ErrInsufficientBalance)

	_, err := f.service.InitiateWithdrawal(context.Background(), &InitiateWithdrawalRequest{
		UserID:      42,
		AffiliateID: 3,
		Amount:      decimal.NewFromInt(500),
		CurrencyID:  "IDR",
	})

	assert.ErrorIs(t, err, engine.ErrInsufficientBalance)
	f.transactionRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	f.gatewayClient.AssertNotCalled(t, "Disbursement", mock.Anything, mock.Anything)
}

func TestInitiateWithdrawal_AffiliateReservesInsideAuthorization(t *testing.T) {
	f := newPaymentFixture()

	f.affiliateEngine.On("AuthorizeWithdrawal", mock.Anything, int64(3), decimal.NewFromInt(200), mock.Anything).
		Return(nil)
	f.transactionRepo.On("Create", mock.Anything, mock.MatchedBy(func(tx *models.Transaction) bool {
		return tx.AffiliateID == 3 && tx.Status == models.StatusPending && tx.IsWithdrawal()
	})).Return(nil)
	f.gatewayClient.On("Disbursement", mock.Anything, mock.Anything).
		Return(&gateway.TradeResult{TradeNo: "WD-1"}, nil)

	resp, err := f.service.InitiateWithdrawal(context.Background(), &InitiateWithdrawalRequest{
		UserID:      42,
		AffiliateID: 3,
		Amount:      decimal.NewFromInt(200),
		CurrencyID:  "IDR",
		BankCode:    "BCA",
		AccountNo:   "123",
	})

	require.NoError(t, err)
	assert.NotEmpty(t, resp.TradeNo)
	f.transactionRepo.AssertExpectations(t)
	f.affiliateEngine.AssertExpectations(t)
}

func TestInitiateWithdrawal_TransientDisbursementKeepsPending(t *testing.T) {
	f := newPaymentFixture()

	f.transactionRepo.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.gatewayClient.On("Disbursement", mock.Anything, mock.Anything).
		Return(nil, &gateway.TransientError{Op: "disbursement", Err: assert.AnError})

	resp, err := f.service.InitiateWithdrawal(context.Background(), &InitiateWithdrawalRequest{
		UserID:     42,
		Amount:     decimal.NewFromInt(200),
		CurrencyID: "IDR",
		BankCode:   "BCA",
		AccountNo:  "123",
	})

	// The payout poll resolves whether the gateway accepted it.
	require.NoError(t, err)
	assert.NotEmpty(t, resp.TradeNo)
}

func TestInitiateWithdrawal_TerminalGatewayRejection(t *testing.T) {
	f := newPaymentFixture()

	f.transactionRepo.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.gatewayClient.On("Disbursement", mock.Anything, mock.Anything).
		Return(nil, assert.AnError)

	_, err := f.service.InitiateWithdrawal(context.Background(), &InitiateWithdrawalRequest{
		UserID:     42,
		Amount:     decimal.NewFromInt(200),
		CurrencyID: "IDR",
	})

	assert.Error(t, err)
}
