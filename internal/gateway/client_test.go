package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(url string) Client {
	return NewClient(&ClientConfig{
		BaseURL:       url,
		MerchantNo:    "M001",
		Secret:        "s3cr3t",
		Timeout:       2 * time.Second,
		RetryAttempts: 2,
		RateLimit:     6000,
	})
}

func decodeParams(t *testing.T, r *http.Request) map[string]string {
	t.Helper()
	var params map[string]string
	require.NoError(t, json.NewDecoder(r.Body).Decode(&params))
	return params
}

func TestClient_Checkout_SignsRequest(t *testing.T) {
	signer := NewSigner("s3cr3t")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/trade/checkout", r.URL.Path)
		assert.Equal(t, "M001", r.Header.Get("X-Merchant-No"))

		params := decodeParams(t, r)
		assert.Equal(t, "DEP-1", params["tradeNo"])
		assert.Equal(t, "1000.00", params["amount"])
		assert.NotEmpty(t, params["timestamp"])
		assert.True(t, signer.Verify(params, params["sign"]))

		json.NewEncoder(w).Encode(map[string]string{
			"tradeNo":         "DEP-1",
			"platformTradeNo": "P-9001",
			"paymentUrl":      "https://pay.example.com/P-9001",
			"status":          "0015",
		})
	}))
	defer server.Close()

	result, err := newTestClient(server.URL).Checkout(context.Background(), &CheckoutRequest{
		TradeNo:    "DEP-1",
		Amount:     decimal.NewFromInt(1000),
		CurrencyID: "IDR",
		UserID:     42,
		NotifyURL:  "https://platform.example.com/webhook",
	})

	require.NoError(t, err)
	assert.Equal(t, "P-9001", result.PlatformTradeNo)
	assert.Equal(t, "https://pay.example.com/P-9001", result.PaymentURL)
	assert.Equal(t, "0015", result.StatusCode)
}

func TestClient_QueryPayinResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/trade/payin/query", r.URL.Path)
		params := decodeParams(t, r)
		assert.Equal(t, "DEP-7", params["tradeNo"])

		json.NewEncoder(w).Encode(map[string]string{
			"tradeNo":         "DEP-7",
			"platformTradeNo": "P-7",
			"status":          "0000",
			"amount":          "250.50",
		})
	}))
	defer server.Close()

	result, err := newTestClient(server.URL).QueryPayinResult(context.Background(), "DEP-7")

	require.NoError(t, err)
	assert.Equal(t, "0000", result.StatusCode)
	assert.True(t, result.Amount.Equal(decimal.RequireFromString("250.50")))
}

func TestClient_Disbursement(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		params := decodeParams(t, r)
		assert.Equal(t, "500.00", params["amount"])
		assert.Equal(t, "BCA", params["bankCode"])

		json.NewEncoder(w).Encode(map[string]string{
			"tradeNo": "WD-1",
			"status":  "0015",
		})
	}))
	defer server.Close()

	result, err := newTestClient(server.URL).Disbursement(context.Background(), &DisbursementRequest{
		TradeNo:     "WD-1",
		Amount:      decimal.NewFromInt(500),
		CurrencyID:  "IDR",
		BankCode:    "BCA",
		AccountNo:   "1234567890",
		AccountName: "Test Account",
	})

	require.NoError(t, err)
	assert.Equal(t, "0015", result.StatusCode)
}

func TestClient_QueryBalance(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"available": "15000.00",
			"frozen":    "300.00",
			"currency":  "IDR",
		})
	}))
	defer server.Close()

	balance, err := newTestClient(server.URL).QueryBalance(context.Background())

	require.NoError(t, err)
	assert.True(t, balance.Available.Equal(decimal.NewFromInt(15000)))
	assert.True(t, balance.Frozen.Equal(decimal.NewFromInt(300)))
	assert.Equal(t, "IDR", balance.Currency)
}

func TestClient_ServerError_IsTransient(t *testing.T) {
	var attempts int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).QueryPayinResult(context.Background(), "DEP-1")

	require.Error(t, err)
	assert.True(t, IsTransient(err))
	assert.Equal(t, 2, attempts)
}

func TestClient_ClientError_IsNotTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).QueryPayinResult(context.Background(), "DEP-1")

	require.Error(t, err)
	assert.False(t, IsTransient(err))
}

func TestClient_ConnectionRefused_IsTransient(t *testing.T) {
	_, err := newTestClient("http://127.0.0.1:1").QueryBalance(context.Background())

	require.Error(t, err)
	assert.True(t, IsTransient(err))
}
