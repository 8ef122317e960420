package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"settlement-api/internal/engine"
	"settlement-api/internal/gateway"
	"settlement-api/internal/models"
	"settlement-api/internal/monitoring"
	"settlement-api/internal/repository"
)

// PaymentService drives the initiation side of the payment lifecycle. It
// creates transactions pending and hands the terminal transitions to the
// settlement engine via webhook or polls; initiation itself never approves
// anything.
type PaymentService interface {
	InitiateDeposit(ctx context.Context, req *InitiateDepositRequest) (*InitiateDepositResponse, error)
	SubmitPayin(ctx context.Context, req *SubmitPayinRequest) error
	InitiateWithdrawal(ctx context.Context, req *InitiateWithdrawalRequest) (*InitiateWithdrawalResponse, error)
	GetTransaction(ctx context.Context, tradeNo string) (*models.Transaction, error)
	ListUserTransactions(ctx context.Context, userID int64, limit, offset int) ([]*models.Transaction, error)
	GetMerchantBalance(ctx context.Context) (*gateway.MerchantBalance, error)
}

type paymentService struct {
	transactionRepo repository.TransactionRepository
	settingsRepo    repository.SettingsRepository
	gatewayClient   gateway.Client
	affiliateEngine engine.AffiliateEngine
	metrics         monitoring.MetricsService
	logger          *logrus.Logger
	notifyURL       string
}

func NewPaymentService(
	transactionRepo repository.TransactionRepository,
	settingsRepo repository.SettingsRepository,
	gatewayClient gateway.Client,
	affiliateEngine engine.AffiliateEngine,
	metrics monitoring.MetricsService,
	logger *logrus.Logger,
	notifyURL string,
) PaymentService {
	return &paymentService{
		transactionRepo: transactionRepo,
		settingsRepo:    settingsRepo,
		gatewayClient:   gatewayClient,
		affiliateEngine: affiliateEngine,
		metrics:         metrics,
		logger:          logger,
		notifyURL:       notifyURL,
	}
}

type InitiateDepositRequest struct {
	UserID      int64           `json:"user_id"`
	Amount      decimal.Decimal `json:"amount"`
	CurrencyID  string          `json:"currency_id"`
	PromotionID string          `json:"promotion_id,omitempty"`
}

type InitiateDepositResponse struct {
	TradeNo    string `json:"trade_no"`
	PaymentURL string `json:"payment_url"`
}

func (s *paymentService) InitiateDeposit(ctx context.Context, req *InitiateDepositRequest) (*InitiateDepositResponse, error) {
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("deposit amount must be positive")
	}

	transaction := models.NewTransaction(req.UserID, models.TypeDeposit, req.Amount, req.CurrencyID)

	if req.PromotionID != "" {
		promoID, err := primitive.ObjectIDFromHex(req.PromotionID)
		if err != nil {
			return nil, fmt.Errorf("invalid promotion ID: %w", err)
		}
		promotion, err := s.settingsRepo.GetPromotion(ctx, promoID)
		if err != nil {
			return nil, err
		}
		if !promotion.IsActive {
			return nil, fmt.Errorf("promotion %s is not active", promotion.Name)
		}
		transaction.PromotionID = promotion.ID
	}

	if err := s.transactionRepo.Create(ctx, transaction); err != nil {
		return nil, err
	}

	started := time.Now()
	checkout, err := s.gatewayClient.Checkout(ctx, &gateway.CheckoutRequest{
		TradeNo:    transaction.TradeNo,
		Amount:     transaction.Amount,
		CurrencyID: transaction.CurrencyID,
		UserID:     transaction.UserID,
		NotifyURL:  s.notifyURL,
	})
	s.metrics.RecordGatewayCall("checkout", err == nil, time.Since(started))
	if err != nil {
		// The transaction stays pending; the payin poll will pick it up if
		// the gateway accepted the checkout before the failure.
		s.logger.WithError(err).WithField("trade_no", transaction.TradeNo).Error("Checkout call failed")
		return nil, fmt.Errorf("checkout failed: %w", err)
	}

	if checkout.PlatformTradeNo != "" {
		transaction.PlatformTradeNo = checkout.PlatformTradeNo
		if err := s.transactionRepo.Update(ctx, transaction); err != nil {
			s.logger.WithError(err).WithField("trade_no", transaction.TradeNo).Warn("Failed to store platform trade number")
		}
	}

	return &InitiateDepositResponse{
		TradeNo:    transaction.TradeNo,
		PaymentURL: checkout.PaymentURL,
	}, nil
}

type SubmitPayinRequest struct {
	TradeNo        string `json:"trade_no"`
	PayerReference string `json:"payer_reference"`
}

// SubmitPayin relays the payer's reference to the gateway for a checkout that
// requires it. The result status is ignored here; settlement arrives via
// webhook or poll.
func (s *paymentService) SubmitPayin(ctx context.Context, req *SubmitPayinRequest) error {
	transaction, err := s.transactionRepo.GetByTradeNo(ctx, req.TradeNo)
	if err != nil {
		return err
	}
	if transaction.Status != models.StatusPending {
		return fmt.Errorf("transaction %s is already %s", req.TradeNo, transaction.Status)
	}

	started := time.Now()
	_, err = s.gatewayClient.SubmitPayin(ctx, &gateway.PayinSubmitRequest{
		TradeNo:        req.TradeNo,
		PayerReference: req.PayerReference,
	})
	s.metrics.RecordGatewayCall("payin-submit", err == nil, time.Since(started))
	if err != nil {
		return fmt.Errorf("payin submit failed: %w", err)
	}
	return nil
}

type InitiateWithdrawalRequest struct {
	UserID      int64           `json:"user_id"`
	AffiliateID int64           `json:"affiliate_id,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	CurrencyID  string          `json:"currency_id"`
	BankCode    string          `json:"bank_code"`
	AccountNo   string          `json:"account_no"`
	AccountName string          `json:"account_name"`
}

type InitiateWithdrawalResponse struct {
	TradeNo string `json:"trade_no"`
}

func (s *paymentService) InitiateWithdrawal(ctx context.Context, req *InitiateWithdrawalRequest) (*InitiateWithdrawalResponse, error) {
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("withdrawal amount must be positive")
	}

	transaction := models.NewTransaction(req.UserID, models.TypeWithdraw, req.Amount, req.CurrencyID)
	transaction.AffiliateID = req.AffiliateID

	// Affiliate withdrawals create the pending record inside the balance
	// check's lock: the next request must already see the pending row, or two
	// in-flight withdrawals could both pass against the same funds.
	if req.AffiliateID != 0 {
		err := s.affiliateEngine.AuthorizeWithdrawal(ctx, req.AffiliateID, req.Amount, func(ctx context.Context) error {
			return s.transactionRepo.Create(ctx, transaction)
		})
		if err != nil {
			return nil, err
		}
	} else if err := s.transactionRepo.Create(ctx, transaction); err != nil {
		return nil, err
	}

	started := time.Now()
	_, err := s.gatewayClient.Disbursement(ctx, &gateway.DisbursementRequest{
		TradeNo:     transaction.TradeNo,
		Amount:      transaction.Amount,
		CurrencyID:  transaction.CurrencyID,
		BankCode:    req.BankCode,
		AccountNo:   req.AccountNo,
		AccountName: req.AccountName,
		NotifyURL:   s.notifyURL,
	})
	s.metrics.RecordGatewayCall("disbursement", err == nil, time.Since(started))
	if err != nil && !gateway.IsTransient(err) {
		return nil, fmt.Errorf("disbursement failed: %w", err)
	}
	if err != nil {
		// Transient failure: the payout poll resolves whether the gateway
		// accepted the disbursement.
		s.logger.WithError(err).WithField("trade_no", transaction.TradeNo).Warn("Disbursement call failed transiently")
	}

	return &InitiateWithdrawalResponse{TradeNo: transaction.TradeNo}, nil
}

func (s *paymentService) GetTransaction(ctx context.Context, tradeNo string) (*models.Transaction, error) {
	return s.transactionRepo.GetByTradeNo(ctx, tradeNo)
}

func (s *paymentService) ListUserTransactions(ctx context.Context, userID int64, limit, offset int) ([]*models.Transaction, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.transactionRepo.GetByUserID(ctx, userID, limit, offset)
}

func (s *paymentService) GetMerchantBalance(ctx context.Context) (*gateway.MerchantBalance, error) {
	started := time.Now()
	balance, err := s.gatewayClient.QueryBalance(ctx)
	s.metrics.RecordGatewayCall("query-balance", err == nil, time.Since(started))
	return balance, err
}
