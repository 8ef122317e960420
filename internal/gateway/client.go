package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

// Client wraps the outbound operations of the payment gateway. Every call is
// signed before sending; timeouts and 5xx responses surface as
// *TransientError and are never interpreted as a terminal gateway status.
type Client interface {
	Checkout(ctx context.Context, req *CheckoutRequest) (*CheckoutResponse, error)
	SubmitPayin(ctx context.Context, req *PayinSubmitRequest) (*TradeResult, error)
	QueryPayinResult(ctx context.Context, tradeNo string) (*TradeResult, error)
	Disbursement(ctx context.Context, req *DisbursementRequest) (*TradeResult, error)
	QueryPayoutResult(ctx context.Context, tradeNo string) (*TradeResult, error)
	QueryBalance(ctx context.Context) (*MerchantBalance, error)
}

// TransientError marks a gateway failure that the next poll cycle should
// retry: timeouts, connection errors, 5xx responses.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient gateway error during %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err is a retryable gateway failure.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

type ClientConfig struct {
	BaseURL       string
	MerchantNo    string
	Secret        string
	Timeout       time.Duration
	RetryAttempts int
	// RateLimit is the maximum request rate per minute against the gateway.
	RateLimit int
}

type client struct {
	config      *ClientConfig
	signer      *Signer
	httpClient  *http.Client
	rateLimiter *rate.Limiter
}

func NewClient(config *ClientConfig) Client {
	if config.Timeout == 0 {
		config.Timeout = 15 * time.Second
	}
	if config.RetryAttempts == 0 {
		config.RetryAttempts = 3
	}
	if config.RateLimit == 0 {
		config.RateLimit = 120
	}

	return &client{
		config: config,
		signer: NewSigner(config.Secret),
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		rateLimiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(config.RateLimit)), 1),
	}
}

// Request/response types

type CheckoutRequest struct {
	TradeNo    string
	Amount     decimal.Decimal
	CurrencyID string
	UserID     int64
	NotifyURL  string
}

type CheckoutResponse struct {
	TradeNo         string
	PlatformTradeNo string
	PaymentURL      string
	StatusCode      string
}

// PayinSubmitRequest attaches the payer-provided reference to a prior
// checkout.
type PayinSubmitRequest struct {
	TradeNo        string
	PayerReference string
}

type DisbursementRequest struct {
	TradeNo     string
	Amount      decimal.Decimal
	CurrencyID  string
	BankCode    string
	AccountNo   string
	AccountName string
	NotifyURL   string
}

// TradeResult is the gateway's view of one operation, returned by submit and
// query calls.
type TradeResult struct {
	TradeNo         string
	PlatformTradeNo string
	StatusCode      string
	Amount          decimal.Decimal
	Message         string
}

type MerchantBalance struct {
	Available decimal.Decimal
	Frozen    decimal.Decimal
	Currency  string
}

// Implementation

func (c *client) Checkout(ctx context.Context, req *CheckoutRequest) (*CheckoutResponse, error) {
	params := map[string]string{
		"merchantNo": c.config.MerchantNo,
		"tradeNo":    req.TradeNo,
		"amount":     FormatAmount(req.Amount),
		"currency":   req.CurrencyID,
		"userId":     strconv.FormatInt(req.UserID, 10),
		"notifyUrl":  req.NotifyURL,
	}

	body, err := c.post(ctx, "checkout", "/v1/trade/checkout", params)
	if err != nil {
		return nil, err
	}

	var result struct {
		TradeNo         string `json:"tradeNo"`
		PlatformTradeNo string `json:"platformTradeNo"`
		PaymentURL      string `json:"paymentUrl"`
		Status          string `json:"status"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse checkout response: %w", err)
	}

	return &CheckoutResponse{
		TradeNo:         result.TradeNo,
		PlatformTradeNo: result.PlatformTradeNo,
		PaymentURL:      result.PaymentURL,
		StatusCode:      result.Status,
	}, nil
}

func (c *client) SubmitPayin(ctx context.Context, req *PayinSubmitRequest) (*TradeResult, error) {
	params := map[string]string{
		"merchantNo": c.config.MerchantNo,
		"tradeNo":    req.TradeNo,
		"payerRef":   req.PayerReference,
	}

	body, err := c.post(ctx, "payin-submit", "/v1/trade/payin/submit", params)
	if err != nil {
		return nil, err
	}
	return parseTradeResult(body, "payin-submit")
}

func (c *client) QueryPayinResult(ctx context.Context, tradeNo string) (*TradeResult, error) {
	params := map[string]string{
		"merchantNo": c.config.MerchantNo,
		"tradeNo":    tradeNo,
	}

	body, err := c.post(ctx, "query-payin", "/v1/trade/payin/query", params)
	if err != nil {
		return nil, err
	}
	return parseTradeResult(body, "query-payin")
}

func (c *client) Disbursement(ctx context.Context, req *DisbursementRequest) (*TradeResult, error) {
	params := map[string]string{
		"merchantNo":  c.config.MerchantNo,
		"tradeNo":     req.TradeNo,
		"amount":      FormatAmount(req.Amount),
		"currency":    req.CurrencyID,
		"bankCode":    req.BankCode,
		"accountNo":   req.AccountNo,
		"accountName": req.AccountName,
		"notifyUrl":   req.NotifyURL,
	}

	body, err := c.post(ctx, "disbursement", "/v1/trade/payout", params)
	if err != nil {
		return nil, err
	}
	return parseTradeResult(body, "disbursement")
}

func (c *client) QueryPayoutResult(ctx context.Context, tradeNo string) (*TradeResult, error) {
	params := map[string]string{
		"merchantNo": c.config.MerchantNo,
		"tradeNo":    tradeNo,
	}

	body, err := c.post(ctx, "query-payout", "/v1/trade/payout/query", params)
	if err != nil {
		return nil, err
	}
	return parseTradeResult(body, "query-payout")
}

func (c *client) QueryBalance(ctx context.Context) (*MerchantBalance, error) {
	params := map[string]string{
		"merchantNo": c.config.MerchantNo,
	}

	body, err := c.post(ctx, "query-balance", "/v1/merchant/balance", params)
	if err != nil {
		return nil, err
	}

	var result struct {
		Available string `json:"available"`
		Frozen    string `json:"frozen"`
		Currency  string `json:"currency"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse balance response: %w", err)
	}

	available, err := decimal.NewFromString(result.Available)
	if err != nil {
		return nil, fmt.Errorf("invalid available balance %q: %w", result.Available, err)
	}
	frozen := decimal.Zero
	if result.Frozen != "" {
		if frozen, err = decimal.NewFromString(result.Frozen); err != nil {
			return nil, fmt.Errorf("invalid frozen balance %q: %w", result.Frozen, err)
		}
	}

	return &MerchantBalance{
		Available: available,
		Frozen:    frozen,
		Currency:  result.Currency,
	}, nil
}

func parseTradeResult(body []byte, op string) (*TradeResult, error) {
	var result struct {
		TradeNo         string `json:"tradeNo"`
		PlatformTradeNo string `json:"platformTradeNo"`
		Status          string `json:"status"`
		Amount          string `json:"amount"`
		Message         string `json:"msg"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse %s response: %w", op, err)
	}

	amount := decimal.Zero
	if result.Amount != "" {
		parsed, err := decimal.NewFromString(result.Amount)
		if err != nil {
			return nil, fmt.Errorf("invalid amount %q in %s response: %w", result.Amount, op, err)
		}
		amount = parsed
	}

	return &TradeResult{
		TradeNo:         result.TradeNo,
		PlatformTradeNo: result.PlatformTradeNo,
		StatusCode:      result.Status,
		Amount:          amount,
		Message:         result.Message,
	}, nil
}

// post signs params, sends them and returns the response body. 5xx and
// transport failures are retried with linear backoff before being reported
// as transient.
func (c *client) post(ctx context.Context, op, endpoint string, params map[string]string) ([]byte, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait failed: %w", err)
	}

	params["timestamp"] = strconv.FormatInt(time.Now().Unix(), 10)
	params["sign"] = c.signer.Sign(params)

	payload, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", op, err)
	}

	var resp *http.Response
	var respErr error

	for attempt := 0; attempt < c.config.RetryAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("failed to create %s request: %w", op, err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Merchant-No", c.config.MerchantNo)

		resp, respErr = c.httpClient.Do(req)
		if respErr == nil && resp.StatusCode < 500 {
			break
		}
		if resp != nil {
			resp.Body.Close()
			resp = nil
		}

		if attempt < c.config.RetryAttempts-1 {
			select {
			case <-time.After(time.Duration(attempt+1) * time.Second):
			case <-ctx.Done():
				return nil, &TransientError{Op: op, Err: ctx.Err()}
			}
		}
	}

	if respErr != nil {
		return nil, &TransientError{Op: op, Err: respErr}
	}
	if resp == nil {
		return nil, &TransientError{Op: op, Err: fmt.Errorf("gateway unavailable after %d attempts", c.config.RetryAttempts)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransientError{Op: op, Err: err}
	}

	if resp.StatusCode >= 500 {
		return nil, &TransientError{Op: op, Err: fmt.Errorf("gateway returned %d: %s", resp.StatusCode, string(body))}
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("gateway rejected %s with %d: %s", op, resp.StatusCode, string(body))
	}

	return body, nil
}
